package fal

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/time/rate"
)

// queue server that reports IN_QUEUE, then IN_PROGRESS, then COMPLETED
func queueServer(t *testing.T, result any) (*httptest.Server, *atomic.Int32) {
	t.Helper()
	var polls atomic.Int32
	mux := http.NewServeMux()
	var server *httptest.Server
	mux.HandleFunc("POST /fal-ai/flux-lora", func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "Key test-key", r.Header.Get("Authorization"))
		json.NewEncoder(w).Encode(map[string]any{
			"request_id":   "req-1",
			"status":       "IN_QUEUE",
			"status_url":   server.URL + "/requests/req-1/status",
			"response_url": server.URL + "/requests/req-1",
		})
	})
	mux.HandleFunc("GET /requests/req-1/status", func(w http.ResponseWriter, r *http.Request) {
		status := "COMPLETED"
		switch polls.Add(1) {
		case 1:
			status = "IN_QUEUE"
		case 2:
			status = "IN_PROGRESS"
		}
		json.NewEncoder(w).Encode(map[string]any{"status": status, "request_id": "req-1"})
	})
	mux.HandleFunc("GET /requests/req-1", func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(result)
	})
	server = httptest.NewServer(mux)
	t.Cleanup(server.Close)
	return server, &polls
}

func testClient(server *httptest.Server) *Client {
	return &Client{
		apiKey:   "test-key",
		queueUrl: server.URL,
		http:     server.Client(),
		limiter:  rate.NewLimiter(rate.Inf, 1), // no pacing in tests
	}
}

func TestSubscribe(t *testing.T) {
	server, polls := queueServer(t, GenerateOutput{
		Images: []Image{{Url: "https://cdn.example/img.png", Width: 1024, Height: 768}},
		Seed:   42,
	})
	c := testClient(server)

	out, err := Subscribe[GenerateOutput](context.Background(), c,
		"fal-ai/flux-lora", &GenerateInput{Prompt: "a forest clearing"})
	require.NoError(t, err)
	require.Len(t, out.Images, 1)
	assert.Equal(t, "https://cdn.example/img.png", out.Images[0].Url)
	assert.Equal(t, uint64(42), out.Seed)
	assert.GreaterOrEqual(t, polls.Load(), int32(3))
}

func TestSubscribeErrorStatus(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"detail":"over quota"}`, http.StatusTooManyRequests)
	})
	server := httptest.NewServer(mux)
	t.Cleanup(server.Close)
	c := testClient(server)

	_, err := Subscribe[GenerateOutput](context.Background(), c, "fal-ai/flux-lora", &GenerateInput{})
	require.Error(t, err)
	apiErr, ok := err.(*ApiError)
	require.True(t, ok)
	assert.Equal(t, http.StatusTooManyRequests, apiErr.Status)
	assert.True(t, apiErr.Temporary())
}

func TestFetchImageDataUrl(t *testing.T) {
	c := &Client{apiKey: "k", http: http.DefaultClient, limiter: rate.NewLimiter(rate.Inf, 1)}
	data, err := c.FetchImage(context.Background(), "data:image/png;base64,aGVsbG8=")
	require.NoError(t, err)
	assert.Equal(t, []byte("hello"), data)
}

func TestFetchImageHttp(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, "png-bytes")
	}))
	t.Cleanup(server.Close)
	c := testClient(server)

	data, err := c.FetchImage(context.Background(), server.URL+"/img.png")
	require.NoError(t, err)
	assert.Equal(t, []byte("png-bytes"), data)
}
