package directory

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestResolveIDAcceptsBothReplyShapes(t *testing.T) {
	cases := map[string]string{
		"service": `{"data":{"user_id":42,"name":"Ana","email":"ana@example.com","active":true}}`,
		"legacy":  `{"success":true,"userId":42,"nome":"Ana","email":"ana@example.com","ativo":true}`,
	}
	for name, body := range cases {
		t.Run(name, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				assert.Equal(t, "ana@example.com", r.URL.Query().Get("email"))
				_, _ = w.Write([]byte(body))
			}))
			defer srv.Close()

			id, err := NewHTTPResolver(srv.URL, time.Second, zap.NewNop()).ResolveID(context.Background(), "ana@example.com")
			require.NoError(t, err)
			assert.Equal(t, int64(42), id)
		})
	}
}

func TestResolveIDForwardsBearerToken(t *testing.T) {
	var auth atomic.Value
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		auth.Store(r.Header.Get("Authorization"))
		_, _ = w.Write([]byte(`{"data":{"user_id":7}}`))
	}))
	defer srv.Close()

	r := NewHTTPResolver(srv.URL, time.Second, zap.NewNop())

	_, err := r.ResolveID(WithBearerToken(context.Background(), "tok"), "a@b.co")
	require.NoError(t, err)
	assert.Equal(t, "Bearer tok", auth.Load())

	_, err = r.ResolveID(context.Background(), "a@b.co")
	require.NoError(t, err)
	assert.Equal(t, "", auth.Load())
}

func TestResolveIDNotFoundIsNotRetried(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		w.WriteHeader(http.StatusNotFound)
	}))
	defer srv.Close()

	_, err := NewHTTPResolver(srv.URL, time.Second, zap.NewNop()).ResolveID(context.Background(), "x@y.io")
	require.ErrorIs(t, err, ErrNotFound)
	assert.Equal(t, int32(1), atomic.LoadInt32(&calls))
}

func TestResolveIDRetriesServerErrors(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if atomic.AddInt32(&calls, 1) < 3 {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		_, _ = w.Write([]byte(`{"data":{"user_id":9}}`))
	}))
	defer srv.Close()

	id, err := NewHTTPResolver(srv.URL, 5*time.Second, zap.NewNop()).ResolveID(context.Background(), "x@y.io")
	require.NoError(t, err)
	assert.Equal(t, int64(9), id)
	assert.Equal(t, int32(3), atomic.LoadInt32(&calls))
}

func TestResolveIDUnsuccessfulLegacyReply(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"success":false,"userId":3}`))
	}))
	defer srv.Close()

	_, err := NewHTTPResolver(srv.URL, time.Second, zap.NewNop()).ResolveID(context.Background(), "x@y.io")
	require.ErrorIs(t, err, ErrNotFound)
}
