// Package webhook implements the http.webhook node.
package webhook

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/dukex/stageflow/pkg/automation"
	"github.com/dukex/stageflow/pkg/models"
	"github.com/dukex/stageflow/pkg/nodes"
	"github.com/dukex/stageflow/pkg/template"
)

var ErrMissingURL = errors.New("missing required field 'url'")

// StatusError is returned for non-2xx responses.
type StatusError struct {
	StatusCode int
	Body       string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("webhook responded with HTTP %d: %s", e.StatusCode, e.Body)
}

type Node struct {
	client *http.Client
}

func New(client *http.Client) *Node {
	if client == nil {
		client = &http.Client{Timeout: 15 * time.Second}
	}

	return &Node{client: client}
}

// Run sends the configured request. URL, headers and body are rendered with
// the run's template data. Without a body, non-GET requests send the event,
// the template data and the accumulated input as JSON.
func (n *Node) Run(ctx context.Context, actx *automation.Context, config, input map[string]any) (models.NodeResult, error) {
	data := actx.TemplateData(input)

	url := strings.TrimSpace(template.Render(nodes.String(config, "url"), data))
	if url == "" {
		return models.NodeResult{}, ErrMissingURL
	}

	method := strings.ToUpper(nodes.StringOr(config, "method", http.MethodPost))

	headers := nodes.StringMap(config, "headers")
	for k, v := range headers {
		headers[k] = template.Render(v, data)
	}

	var body []byte

	if raw := nodes.String(config, "body"); raw != "" {
		body = []byte(template.Render(raw, data))
	} else if method != http.MethodGet && method != http.MethodHead {
		var event string
		if actx != nil {
			event = actx.EventKey
		}

		payload, err := json.Marshal(map[string]any{
			"event": event,
			"data":  data,
			"input": input,
		})
		if err != nil {
			return models.NodeResult{}, fmt.Errorf("failed to encode payload: %w", err)
		}

		body = payload
	}

	if seconds, ok := nodes.Number(config, "timeout_seconds"); ok && seconds > 0 {
		var cancel context.CancelFunc

		ctx, cancel = context.WithTimeout(ctx, time.Duration(seconds*float64(time.Second)))
		defer cancel()
	}

	resp, err := nodes.Do(ctx, n.client, method, url, headers, body)
	if err != nil {
		return models.NodeResult{}, err
	}

	if !resp.OK() {
		return models.NodeResult{}, &StatusError{StatusCode: resp.StatusCode, Body: truncate(string(resp.Body), 512)}
	}

	return models.Succeeded(map[string]any{
		"status_code": resp.StatusCode,
		"response":    resp.Decoded(),
	}), nil
}

// truncate cuts s to at most n bytes without splitting a rune.
func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}

	for n > 0 && !utf8.RuneStart(s[n]) {
		n--
	}

	return s[:n]
}
