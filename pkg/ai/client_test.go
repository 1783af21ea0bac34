package ai

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/anthropics/anthropic-sdk-go/option"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"
)

func fakeAnthropicMessage(text string) string {
	encoded, _ := json.Marshal(text)
	return fmt.Sprintf(`{
		"id": "msg_test",
		"type": "message",
		"role": "assistant",
		"model": "claude-test",
		"content": [{"type": "text", "text": %s}],
		"stop_reason": "end_turn",
		"stop_sequence": null,
		"usage": {"input_tokens": 42, "output_tokens": 7}
	}`, encoded)
}

func TestAnthropicClientComplete(t *testing.T) {
	var captured map[string]interface{}
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, err := io.ReadAll(r.Body)
		require.NoError(t, err)
		require.NoError(t, json.Unmarshal(body, &captured))
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprint(w, fakeAnthropicMessage(`{"score": 80}`))
	}))
	defer server.Close()

	client, err := NewAnthropicClient(AnthropicConfig{
		APIKey:  "test-key",
		Model:   "claude-test",
		Logger:  zerolog.Nop(),
		Options: []option.RequestOption{option.WithBaseURL(server.URL)},
	})
	require.NoError(t, err)

	resp, err := client.Complete(context.Background(), CompletionRequest{
		System:      "grade strictly",
		Prompt:      "grade this",
		MaxTokens:   256,
		Temperature: 0.2,
	})
	require.NoError(t, err)
	require.Equal(t, `{"score": 80}`, resp.Text)
	require.Equal(t, int64(42), resp.InputTokens)
	require.Equal(t, int64(7), resp.OutputTokens)

	require.Equal(t, "claude-test", captured["model"])
	require.Equal(t, float64(256), captured["max_tokens"])
	system, ok := captured["system"].([]interface{})
	require.True(t, ok)
	require.Len(t, system, 1)
}

func TestAnthropicClientSurfacesErrors(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusUnauthorized)
		fmt.Fprint(w, `{"type":"error","error":{"type":"authentication_error","message":"invalid x-api-key"}}`)
	}))
	defer server.Close()

	client, err := NewAnthropicClient(AnthropicConfig{
		APIKey:  "bad-key",
		Options: []option.RequestOption{option.WithBaseURL(server.URL), option.WithMaxRetries(0)},
	})
	require.NoError(t, err)

	_, err = client.Complete(context.Background(), CompletionRequest{Prompt: "hi"})
	require.Error(t, err)
}

func TestOpenAIClientComplete(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/chat/completions", r.URL.Path)
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprint(w, `{
			"id": "chatcmpl-1",
			"object": "chat.completion",
			"created": 1,
			"model": "gpt-test",
			"choices": [{"index": 0, "message": {"role": "assistant", "content": " {\"score\": 64} "}, "finish_reason": "stop"}],
			"usage": {"prompt_tokens": 11, "completion_tokens": 3, "total_tokens": 14}
		}`)
	}))
	defer server.Close()

	client, err := NewOpenAIClient(OpenAIConfig{APIKey: "test", Model: "gpt-test", BaseURL: server.URL})
	require.NoError(t, err)

	resp, err := client.Complete(context.Background(), CompletionRequest{System: "s", Prompt: "p"})
	require.NoError(t, err)
	require.Equal(t, `{"score": 64}`, resp.Text)
	require.Equal(t, int64(11), resp.InputTokens)
}

func TestNewClientRequiresKey(t *testing.T) {
	client, err := NewClient(ProviderConfig{Provider: "anthropic"})
	require.Nil(t, client)
	require.True(t, errors.Is(err, ErrNotConfigured))

	client, err = NewClient(ProviderConfig{Provider: "openai", OpenAIAPIKey: "k"})
	require.NoError(t, err)
	require.Equal(t, "openai", client.Provider())

	_, err = NewClient(ProviderConfig{Provider: "cohere"})
	require.Error(t, err)
}
