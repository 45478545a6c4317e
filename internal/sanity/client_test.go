package sanity

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jonathan/nirman-site/internal/logger"
)

func fastRetry() RetryConfig {
	cfg := DefaultRetryConfig()
	cfg.InitialDelay = time.Millisecond
	cfg.MaxDelay = 5 * time.Millisecond
	return cfg
}

func newTestClient(t *testing.T, handler http.HandlerFunc, mutate ...func(*Config)) *Client {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	cfg := DefaultConfig()
	cfg.BaseURL = server.URL
	for _, m := range mutate {
		m(&cfg)
	}
	return New(cfg, logger.NewNop(), WithRetry(fastRetry()))
}

func TestEndpoint(t *testing.T) {
	c := New(Config{}, nil)
	assert.Equal(t, "https://z1g1o05i.api.sanity.io/v2025-12-11/data/query/production", c.Endpoint())

	cdn := New(Config{ProjectID: "abc", Dataset: "staging", APIVersion: "v2024-01-01", UseCDN: true}, nil)
	assert.Equal(t, "https://abc.apicdn.sanity.io/v2024-01-01/data/query/staging", cdn.Endpoint())
}

func TestQuery_Success(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v2025-12-11/data/query/production", r.URL.Path)
		assert.Equal(t, `*[_type == "service" && slug.current == $slug][0]{title}`, r.URL.Query().Get("query"))
		assert.Equal(t, `"roofing"`, r.URL.Query().Get("$slug"))
		assert.Empty(t, r.Header.Get("Authorization"))
		_, _ = w.Write([]byte(`{"ms":3,"query":"...","result":{"title":"Roofing"}}`))
	})

	var out struct {
		Title string `json:"title"`
	}
	err := c.Query(context.Background(),
		`*[_type == "service" && slug.current == $slug][0]{title}`,
		map[string]any{"slug": "roofing"}, &out)

	require.NoError(t, err)
	assert.Equal(t, "Roofing", out.Title)
}

func TestQuery_Token(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "Bearer secret", r.Header.Get("Authorization"))
		_, _ = w.Write([]byte(`{"result":[]}`))
	}, func(cfg *Config) { cfg.Token = "secret" })

	var out []any
	require.NoError(t, c.Query(context.Background(), `*[]`, nil, &out))
	assert.Empty(t, out)
}

func TestQuery_NullResult(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`{"result":null}`))
	})

	out := struct{ Title string }{Title: "untouched"}
	err := c.Query(context.Background(), `*[0]`, nil, &out)

	assert.ErrorIs(t, err, ErrNoResult)
	assert.Equal(t, "untouched", out.Title)
}

func TestQuery_ClientErrorNotRetried(t *testing.T) {
	var calls atomic.Int32
	c := newTestClient(t, func(w http.ResponseWriter, _ *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusBadRequest)
		_, _ = w.Write([]byte(`{"error":{"description":"expected '}' following object body","type":"queryParseError"}}`))
	})

	err := c.Query(context.Background(), `*[`, nil, nil)
	require.Error(t, err)

	var qerr *Error
	require.ErrorAs(t, err, &qerr)
	assert.Equal(t, http.StatusBadRequest, qerr.StatusCode)
	assert.False(t, qerr.Retryable())
	assert.Contains(t, err.Error(), "expected '}'")
	assert.Equal(t, int32(1), calls.Load())
}

func TestQuery_RetriesServerErrors(t *testing.T) {
	var calls atomic.Int32
	c := newTestClient(t, func(w http.ResponseWriter, _ *http.Request) {
		if calls.Add(1) < 3 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		_, _ = w.Write([]byte(`{"result":"ok"}`))
	})

	var out string
	require.NoError(t, c.Query(context.Background(), `"ok"`, nil, &out))
	assert.Equal(t, "ok", out)
	assert.Equal(t, int32(3), calls.Load())
}

func TestQuery_GivesUpAfterMaxAttempts(t *testing.T) {
	var calls atomic.Int32
	c := newTestClient(t, func(w http.ResponseWriter, _ *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusTooManyRequests)
	})

	err := c.Query(context.Background(), `*`, nil, nil)

	var qerr *Error
	require.ErrorAs(t, err, &qerr)
	assert.Equal(t, http.StatusTooManyRequests, qerr.StatusCode)
	assert.Equal(t, int32(3), calls.Load())
}

func TestQuery_MalformedResponse(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`<html>gateway</html>`))
	})

	err := c.Query(context.Background(), `*`, nil, nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "malformed response")
}

func TestQuery_ContextCancelled(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`{"result":1}`))
	})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := c.Query(ctx, `1`, nil, nil)
	require.Error(t, err)
	assert.True(t, errors.Is(err, context.Canceled))
}

func TestError_Retryable(t *testing.T) {
	tests := []struct {
		name string
		err  *Error
		want bool
	}{
		{"server error", &Error{StatusCode: 502}, true},
		{"rate limited", &Error{StatusCode: 429}, true},
		{"not found", &Error{StatusCode: 404}, false},
		{"network", &Error{Cause: errors.New("connection refused")}, true},
		{"cancelled", &Error{Cause: context.Canceled}, false},
		{"no cause", &Error{Message: "invalid"}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.err.Retryable())
		})
	}
}

func TestRetry_StopsOnNonRetryable(t *testing.T) {
	calls := 0
	sentinel := errors.New("fatal")
	err := Retry(context.Background(), fastRetry(), func() error {
		calls++
		return sentinel
	})
	assert.ErrorIs(t, err, sentinel)
	assert.Equal(t, 1, calls)
}
