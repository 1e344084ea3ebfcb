package llm

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"syscall"
	"testing"

	"github.com/awender/fableforge/constants"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestApiErrorTemporary(t *testing.T) {
	assert.True(t, (&ApiError{Status: http.StatusTooManyRequests}).Temporary())
	assert.True(t, (&ApiError{Status: http.StatusServiceUnavailable}).Temporary())
	assert.True(t, (&ApiError{Retryable: true}).Temporary())
	assert.True(t, (&ApiError{Err: syscall.ECONNRESET}).Temporary())
	assert.False(t, (&ApiError{Status: http.StatusBadRequest}).Temporary())
	assert.False(t, (&ApiError{Status: http.StatusUnauthorized}).Temporary())
}

func TestChatUnsupportedModel(t *testing.T) {
	_, err := Chat("key", "claude-3", "hi")
	assert.ErrorContains(t, err, "unsupported model")

	_, err = ChatJsonResponse[struct{}]("key", "llama3", "hi")
	assert.ErrorContains(t, err, "unsupported model")

	// "openai/" models need all three of prefix, name, and url
	_, err = Chat("key", "openai/mymodel", "hi")
	assert.ErrorContains(t, err, "invalid openai model")
}

func TestChatOpenAICompatibleDispatch(t *testing.T) {
	var gotPath, gotModel string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		var req OpenAIChatRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		gotModel = req.Model
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"choices":[{"message":{"role":"assistant","content":"pong"}}]}`))
	}))
	defer server.Close()

	got, err := Chat("key", "openai/mymodel/"+server.URL, "ping")
	require.NoError(t, err)
	assert.Equal(t, "pong", got)
	assert.Equal(t, "/chat/completions", gotPath)
	assert.Equal(t, "mymodel", gotModel)
}

func TestCallOpenAICustomEndpointEnvKey(t *testing.T) {
	var gotAuth string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"choices":[{"message":{"role":"assistant","content":"pong"}}]}`))
	}))
	defer server.Close()

	// custom endpoints fall back to the generic model key env
	t.Setenv(constants.ENV_MODEL_KEY, "sekrit")
	_, err := OpenAIChat(server.URL, "", "mymodel", "ping")
	require.NoError(t, err)
	assert.Equal(t, "Bearer sekrit", gotAuth)
}
