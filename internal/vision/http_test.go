package vision

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func modelResponse(text string, in, out int) map[string]any {
	return map[string]any{
		"model":   "vision-test",
		"content": []map[string]any{{"type": "text", "text": text}},
		"usage":   map[string]any{"input_tokens": in, "output_tokens": out},
	}
}

func newTestClient(endpoint string) *HTTPClient {
	return NewHTTPClient(HTTPClientOptions{
		Endpoint:     endpoint,
		APIKey:       "test-key",
		Model:        "vision-test",
		SystemPrompt: "system",
		MaxRetries:   2,
	})
}

func TestHTTPClient_Send(t *testing.T) {
	var gotBody map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "test-key", r.Header.Get("x-api-key"))
		require.NoError(t, json.NewDecoder(r.Body).Decode(&gotBody))
		require.NoError(t, json.NewEncoder(w).Encode(modelResponse("400,300", 120, 8)))
	}))
	defer srv.Close()

	client := newTestClient(srv.URL)
	reply, err := client.Send(context.Background(), []byte("png-bytes"), "find the save button")
	require.NoError(t, err)

	require.Equal(t, "400,300", reply.Text)
	require.Equal(t, 120, reply.InputTokens)
	require.Equal(t, 8, reply.OutputTokens)
	require.Equal(t, "vision-test", reply.Model)
	require.GreaterOrEqual(t, reply.Duration, time.Duration(0))

	// Screenshot travels as a base64 image block, prompt as a text block.
	require.Equal(t, "system", gotBody["system"])
	messages := gotBody["messages"].([]any)
	content := messages[0].(map[string]any)["content"].([]any)
	image := content[0].(map[string]any)
	require.Equal(t, "image", image["type"])
	source := image["source"].(map[string]any)
	require.Equal(t, base64.StdEncoding.EncodeToString([]byte("png-bytes")), source["data"])
	text := content[1].(map[string]any)
	require.Equal(t, "find the save button", text["text"])
}

func TestHTTPClient_RetriesRateLimit(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) == 1 {
			w.WriteHeader(http.StatusTooManyRequests)
			return
		}
		require.NoError(t, json.NewEncoder(w).Encode(modelResponse("MATCH", 1, 1)))
	}))
	defer srv.Close()

	client := newTestClient(srv.URL)
	reply, err := client.Send(context.Background(), []byte("png"), "prompt")
	require.NoError(t, err)
	require.Equal(t, "MATCH", reply.Text)
	require.Equal(t, int32(2), calls.Load())
}

func TestHTTPClient_DoesNotRetryClientErrors(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusBadRequest)
		w.Write([]byte("bad request")) //nolint:errcheck
	}))
	defer srv.Close()

	client := newTestClient(srv.URL)
	_, err := client.Send(context.Background(), []byte("png"), "prompt")

	var modelErr *ModelError
	require.ErrorAs(t, err, &modelErr)
	require.Equal(t, http.StatusBadRequest, modelErr.StatusCode)
	require.Equal(t, int32(1), calls.Load())
}

func TestHTTPClient_GivesUpAfterMaxRetries(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	client := newTestClient(srv.URL)
	_, err := client.Send(context.Background(), []byte("png"), "prompt")

	var modelErr *ModelError
	require.ErrorAs(t, err, &modelErr)
	require.Equal(t, http.StatusInternalServerError, modelErr.StatusCode)
	// Initial attempt plus MaxRetries retries.
	require.Equal(t, int32(3), calls.Load())
}

func TestHTTPClient_CancelledContext(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		<-r.Context().Done()
	}))
	defer srv.Close()

	client := newTestClient(srv.URL)
	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	_, err := client.Send(ctx, []byte("png"), "prompt")
	require.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestHTTPClient_EmptyContent(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, json.NewEncoder(w).Encode(map[string]any{"content": []any{}}))
	}))
	defer srv.Close()

	client := newTestClient(srv.URL)
	_, err := client.Send(context.Background(), []byte("png"), "prompt")
	require.Error(t, err)
	require.Contains(t, err.Error(), "no content")
}
