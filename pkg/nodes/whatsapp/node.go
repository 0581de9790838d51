// Package whatsapp implements the whatsapp.send_template node using the
// WhatsApp Business Cloud API.
package whatsapp

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/dukex/stageflow/pkg/automation"
	"github.com/dukex/stageflow/pkg/models"
	"github.com/dukex/stageflow/pkg/nodes"
	"github.com/dukex/stageflow/pkg/template"
)

const (
	DefaultBaseURL  = "https://graph.facebook.com/v19.0"
	DefaultLanguage = "es"
)

var (
	ErrNotConfigured   = errors.New("whatsapp token or phone number id is not configured")
	ErrMissingTo       = errors.New("whatsapp recipient is empty")
	ErrMissingTemplate = errors.New("whatsapp template name is empty")
)

type Options struct {
	Token         string
	PhoneNumberID string
	BaseURL       string
}

type Node struct {
	client *http.Client
	opts   Options
}

func New(client *http.Client, opts Options) *Node {
	if client == nil {
		client = http.DefaultClient
	}

	opts.BaseURL = strings.TrimRight(opts.BaseURL, "/")
	if opts.BaseURL == "" {
		opts.BaseURL = DefaultBaseURL
	}

	return &Node{client: client, opts: opts}
}

type messagesResponse struct {
	Messages []struct {
		ID string `json:"id"`
	} `json:"messages"`
	Error *struct {
		Message string `json:"message"`
		Code    int    `json:"code"`
	} `json:"error"`
}

// Run sends an approved template. Parameters are rendered and sent as the
// template body components, in order.
func (n *Node) Run(ctx context.Context, actx *automation.Context, config, input map[string]any) (models.NodeResult, error) {
	if n.opts.Token == "" || n.opts.PhoneNumberID == "" {
		return models.NodeResult{}, ErrNotConfigured
	}

	data := actx.TemplateData(input)

	to := template.Render(nodes.String(config, "to"), data)
	if strings.TrimSpace(to) == "" {
		to = data["contact.number"]
	}

	to = Normalize(to)
	if to == "" {
		return models.NodeResult{}, ErrMissingTo
	}

	name := strings.TrimSpace(nodes.String(config, "template"))
	if name == "" {
		return models.NodeResult{}, ErrMissingTemplate
	}

	tmpl := map[string]any{
		"name":     name,
		"language": map[string]any{"code": nodes.StringOr(config, "language", DefaultLanguage)},
	}

	if params := nodes.Strings(config, "parameters"); len(params) > 0 {
		values := make([]map[string]any, 0, len(params))
		for _, p := range params {
			values = append(values, map[string]any{"type": "text", "text": template.Render(p, data)})
		}

		tmpl["components"] = []map[string]any{{"type": "body", "parameters": values}}
	}

	payload := map[string]any{
		"messaging_product": "whatsapp",
		"to":                to,
		"type":              "template",
		"template":          tmpl,
	}

	headers := map[string]string{"Authorization": "Bearer " + n.opts.Token}

	resp, err := nodes.PostJSON(ctx, n.client, fmt.Sprintf("%s/%s/messages", n.opts.BaseURL, n.opts.PhoneNumberID), headers, payload)
	if err != nil {
		return models.NodeResult{}, err
	}

	var decoded messagesResponse
	_ = json.Unmarshal(resp.Body, &decoded)

	if !resp.OK() || decoded.Error != nil {
		msg := http.StatusText(resp.StatusCode)
		if decoded.Error != nil {
			msg = decoded.Error.Message
		}

		return models.NodeResult{}, fmt.Errorf("whatsapp send failed (HTTP %d): %s", resp.StatusCode, msg)
	}

	var messageID string
	if len(decoded.Messages) > 0 {
		messageID = decoded.Messages[0].ID
	}

	return models.Succeeded(map[string]any{
		"message_id": messageID,
		"to":         to,
	}), nil
}

// Normalize strips everything but ASCII digits from a phone number.
func Normalize(number string) string {
	return strings.Map(func(r rune) rune {
		if r >= '0' && r <= '9' {
			return r
		}

		return -1
	}, number)
}
