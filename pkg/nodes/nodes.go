// Package nodes holds helpers shared by the built-in node runners.
package nodes

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
)

// maxResponseBytes bounds how much of a remote response is kept.
const maxResponseBytes = 1 << 20

// String returns config[key] as a string. Numbers and booleans are formatted.
func String(config map[string]any, key string) string {
	switch v := config[key].(type) {
	case string:
		return v
	case float64:
		return strconv.FormatFloat(v, 'f', -1, 64)
	case int:
		return strconv.Itoa(v)
	case bool:
		return strconv.FormatBool(v)
	default:
		return ""
	}
}

// StringOr returns String(config, key) or fallback when it is empty.
func StringOr(config map[string]any, key, fallback string) string {
	if s := strings.TrimSpace(String(config, key)); s != "" {
		return s
	}

	return fallback
}

// StringMap returns the string values of a nested object.
func StringMap(config map[string]any, key string) map[string]string {
	out := map[string]string{}

	switch v := config[key].(type) {
	case map[string]any:
		for k, val := range v {
			if s, ok := val.(string); ok {
				out[k] = s
			}
		}
	case map[string]string:
		for k, val := range v {
			out[k] = val
		}
	}

	return out
}

// Strings returns the string items of a list.
func Strings(config map[string]any, key string) []string {
	switch v := config[key].(type) {
	case []string:
		return append([]string(nil), v...)
	case []any:
		out := make([]string, 0, len(v))
		for _, item := range v {
			out = append(out, fmt.Sprint(item))
		}

		return out
	default:
		return nil
	}
}

// Number returns config[key] as a float64.
func Number(config map[string]any, key string) (float64, bool) {
	switch v := config[key].(type) {
	case float64:
		return v, true
	case int:
		return float64(v), true
	case string:
		f, err := strconv.ParseFloat(strings.TrimSpace(v), 64)

		return f, err == nil
	default:
		return 0, false
	}
}

// Response is the outcome of an outbound HTTP call.
type Response struct {
	StatusCode int
	Body       []byte
}

// Decoded returns the body parsed as JSON, or the raw text when it is not JSON.
func (r Response) Decoded() any {
	var v any
	if err := json.Unmarshal(r.Body, &v); err == nil {
		return v
	}

	return string(r.Body)
}

func (r Response) OK() bool {
	return r.StatusCode >= 200 && r.StatusCode < 300
}

// Do sends an HTTP request honouring ctx cancellation.
func Do(ctx context.Context, client *http.Client, method, url string, headers map[string]string, body []byte) (Response, error) {
	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}

	req, err := http.NewRequestWithContext(ctx, method, url, reader)
	if err != nil {
		return Response{}, fmt.Errorf("failed to create request: %w", err)
	}

	for k, v := range headers {
		req.Header.Set(k, v)
	}

	if body != nil && req.Header.Get("Content-Type") == "" {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := client.Do(req)
	if err != nil {
		return Response{}, fmt.Errorf("request failed: %w", err)
	}

	defer func() { _ = resp.Body.Close() }()

	respBody, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return Response{}, fmt.Errorf("failed to read response: %w", err)
	}

	return Response{StatusCode: resp.StatusCode, Body: respBody}, nil
}

// PostJSON marshals payload and POSTs it.
func PostJSON(ctx context.Context, client *http.Client, url string, headers map[string]string, payload any) (Response, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return Response{}, fmt.Errorf("failed to encode payload: %w", err)
	}

	return Do(ctx, client, http.MethodPost, url, headers, body)
}
