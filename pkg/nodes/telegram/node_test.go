package telegram

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/dukex/stageflow/pkg/automation"
	"github.com/dukex/stageflow/pkg/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testContext() *automation.Context {
	return &automation.Context{
		Job: &models.Job{
			ID:      "job-1",
			Title:   "Reparación",
			Contact: &models.Contact{Name: "Ana", TelegramChatID: "555"},
		},
		ToStage: &models.Stage{Name: "Listo"},
	}
}

func TestNode_Run_SendsToContactChat(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/botsecret/sendMessage", r.URL.Path)

		var body map[string]any
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, "555", body["chat_id"])
		assert.Equal(t, "Hola Ana, tu trabajo está Listo", body["text"])
		assert.Equal(t, "HTML", body["parse_mode"])

		_, _ = w.Write([]byte(`{"ok":true,"result":{"message_id":42}}`))
	}))
	defer server.Close()

	node := New(server.Client(), Options{Token: "secret", BaseURL: server.URL})
	config := map[string]any{
		"text":       "Hola {{contact.name}}, tu trabajo está {{to_stage.name}}",
		"parse_mode": "HTML",
	}

	result, err := node.Run(context.Background(), testContext(), config, nil)
	require.NoError(t, err)
	assert.Equal(t, int64(42), result.Output["message_id"])
	assert.Equal(t, "555", result.Output["chat_id"])
}

func TestNode_Run_ConfigOverrides(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/botother/sendMessage", r.URL.Path)

		var body map[string]any
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, "-100", body["chat_id"])
		assert.NotContains(t, body, "parse_mode")

		_, _ = w.Write([]byte(`{"ok":true,"result":{"message_id":7}}`))
	}))
	defer server.Close()

	node := New(server.Client(), Options{Token: "secret", BaseURL: server.URL})
	config := map[string]any{"chat_id": "-100", "bot_token": "other", "text": "ping"}

	_, err := node.Run(context.Background(), testContext(), config, nil)
	require.NoError(t, err)
}

func TestNode_Run_APIError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		_, _ = w.Write([]byte(`{"ok":false,"description":"Bad Request: chat not found"}`))
	}))
	defer server.Close()

	node := New(server.Client(), Options{Token: "secret", BaseURL: server.URL})

	_, err := node.Run(context.Background(), testContext(), map[string]any{"text": "hi"}, nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "chat not found")
}

func TestNode_Run_TransportErrorHidesToken(t *testing.T) {
	server := httptest.NewServer(http.NotFoundHandler())
	baseURL := server.URL
	server.Close()

	node := New(&http.Client{}, Options{Token: "SECRET123:abc", BaseURL: baseURL})

	_, err := node.Run(context.Background(), testContext(), map[string]any{"text": "hi"}, nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "telegram sendMessage failed")
	assert.NotContains(t, err.Error(), "SECRET123")
	assert.NotContains(t, err.Error(), baseURL)
}

func TestNode_Run_Validation(t *testing.T) {
	noChat := &automation.Context{Job: &models.Job{ID: "j", Contact: &models.Contact{Name: "Ana"}}}

	_, err := New(nil, Options{}).Run(context.Background(), testContext(), map[string]any{"text": "hi"}, nil)
	assert.ErrorIs(t, err, ErrMissingToken)

	_, err = New(nil, Options{Token: "t"}).Run(context.Background(), noChat, map[string]any{"text": "hi"}, nil)
	assert.ErrorIs(t, err, ErrMissingChatID)

	_, err = New(nil, Options{Token: "t"}).Run(context.Background(), testContext(), map[string]any{"text": "{{missing}}"}, nil)
	assert.ErrorIs(t, err, ErrMissingText)
}
