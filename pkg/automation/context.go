// Package automation holds the value object passed to every node runner: the
// job that triggered the run, the stage transition and the acting user.
package automation

import (
	"fmt"
	"sort"
	"strconv"

	"github.com/dukex/stageflow/pkg/models"
)

// Context is the triggering subject of a run. FromStage, ToStage and Actor are
// optional; a job created event has no FromStage.
type Context struct {
	Job       *models.Job
	FromStage *models.Stage
	ToStage   *models.Stage
	Actor     *models.User
	EventKey  string
	EventID   string
}

// JobID returns the subject job ID or "" when there is no job.
func (c *Context) JobID() string {
	if c == nil || c.Job == nil {
		return ""
	}

	return c.Job.ID
}

// TemplateData flattens the context into the token vocabulary used by
// message-sending runners. Scalar keys of extra are exposed as input.<key>.
func (c *Context) TemplateData(extra map[string]any) map[string]string {
	data := map[string]string{
		"contact.name":         "",
		"contact.number":       "",
		"contact.email":        "",
		"invoice.number":       "",
		"invoice.total_amount": "",
		"job.id":               "",
		"job.title":            "",
		"job.priority":         "",
		"job.due_date":         "",
		"to_stage.name":        "",
		"from_stage.name":      "",
		"actor.name":           "",
	}

	if c != nil {
		c.fill(data)
	}

	for k, v := range extra {
		if s, ok := scalarString(v); ok {
			data["input."+k] = s
		}
	}

	return data
}

func (c *Context) fill(data map[string]string) {
	if job := c.Job; job != nil {
		data["job.id"] = job.ID
		data["job.title"] = job.Title
		data["job.priority"] = job.Priority
		data["job.due_date"] = job.DueDate

		if job.Contact != nil {
			data["contact.name"] = job.Contact.Name
			data["contact.number"] = job.Contact.Number
			data["contact.email"] = job.Contact.Email
		}

		if job.Invoice != nil {
			data["invoice.number"] = job.Invoice.Number
			data["invoice.total_amount"] = strconv.FormatFloat(job.Invoice.TotalAmount, 'f', 2, 64)
		}
	}

	if c.ToStage != nil {
		data["to_stage.name"] = c.ToStage.Name
	}

	if c.FromStage != nil {
		data["from_stage.name"] = c.FromStage.Name
	}

	if c.Actor != nil {
		data["actor.name"] = c.Actor.Name
	}
}

// Keys returns the sorted keys of a template data map.
func Keys(data map[string]string) []string {
	keys := make([]string, 0, len(data))
	for k := range data {
		keys = append(keys, k)
	}

	sort.Strings(keys)

	return keys
}

func scalarString(v any) (string, bool) {
	switch val := v.(type) {
	case string:
		return val, true
	case bool:
		return strconv.FormatBool(val), true
	case float64:
		return strconv.FormatFloat(val, 'f', -1, 64), true
	case float32:
		return strconv.FormatFloat(float64(val), 'f', -1, 32), true
	case int, int32, int64, uint, uint32, uint64:
		return fmt.Sprint(val), true
	default:
		return "", false
	}
}
