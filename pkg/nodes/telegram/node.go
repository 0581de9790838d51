// Package telegram implements the telegram.send_message node on top of the
// Telegram Bot API.
package telegram

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"github.com/dukex/stageflow/pkg/automation"
	"github.com/dukex/stageflow/pkg/models"
	"github.com/dukex/stageflow/pkg/nodes"
	"github.com/dukex/stageflow/pkg/template"
)

const DefaultBaseURL = "https://api.telegram.org"

var (
	ErrMissingToken  = errors.New("telegram bot token is not configured")
	ErrMissingChatID = errors.New("telegram chat id is empty")
	ErrMissingText   = errors.New("telegram message text is empty")
)

type Options struct {
	Token   string
	BaseURL string
}

type Node struct {
	client  *http.Client
	token   string
	baseURL string
}

func New(client *http.Client, opts Options) *Node {
	if client == nil {
		client = http.DefaultClient
	}

	baseURL := strings.TrimRight(opts.BaseURL, "/")
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}

	return &Node{client: client, token: opts.Token, baseURL: baseURL}
}

type sendMessageResponse struct {
	OK          bool   `json:"ok"`
	Description string `json:"description"`
	Result      struct {
		MessageID int64 `json:"message_id"`
	} `json:"result"`
}

// Run sends the rendered text to chat_id, falling back to the Telegram chat
// of the job contact.
func (n *Node) Run(ctx context.Context, actx *automation.Context, config, input map[string]any) (models.NodeResult, error) {
	data := actx.TemplateData(input)

	token := nodes.StringOr(config, "bot_token", n.token)
	if token == "" {
		return models.NodeResult{}, ErrMissingToken
	}

	chatID := strings.TrimSpace(template.Render(nodes.String(config, "chat_id"), data))
	if chatID == "" && actx != nil && actx.Job != nil && actx.Job.Contact != nil {
		chatID = actx.Job.Contact.TelegramChatID
	}

	if chatID == "" {
		return models.NodeResult{}, ErrMissingChatID
	}

	text := template.Render(nodes.String(config, "text"), data)
	if strings.TrimSpace(text) == "" {
		return models.NodeResult{}, ErrMissingText
	}

	payload := map[string]any{"chat_id": chatID, "text": text}
	if mode := nodes.String(config, "parse_mode"); mode != "" {
		payload["parse_mode"] = mode
	}

	resp, err := nodes.PostJSON(ctx, n.client, fmt.Sprintf("%s/bot%s/sendMessage", n.baseURL, token), nil, payload)
	if err != nil {
		return models.NodeResult{}, redact(err, token)
	}

	var decoded sendMessageResponse
	if err := json.Unmarshal(resp.Body, &decoded); err != nil && resp.OK() {
		return models.NodeResult{}, fmt.Errorf("invalid telegram response: %w", err)
	}

	if !resp.OK() || !decoded.OK {
		msg := decoded.Description
		if msg == "" {
			msg = http.StatusText(resp.StatusCode)
		}

		return models.NodeResult{}, fmt.Errorf("telegram sendMessage failed (HTTP %d): %s", resp.StatusCode, msg)
	}

	return models.Succeeded(map[string]any{
		"message_id": decoded.Result.MessageID,
		"chat_id":    chatID,
	}), nil
}

// redact drops the request URL, which embeds the bot token, from transport
// errors.
func redact(err error, token string) error {
	var urlErr *url.Error
	if errors.As(err, &urlErr) {
		err = urlErr.Err
	}

	return fmt.Errorf("telegram sendMessage failed: %s", strings.ReplaceAll(err.Error(), token, "[redacted]"))
}
