package httpfetch

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFetch(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/old":
			http.Redirect(w, r, "/logo.png", http.StatusFound)
		case "/logo.png":
			assert.Equal(t, "RadioVault/test", r.Header.Get("User-Agent"))
			w.Header().Set("Content-Type", "image/PNG; charset=binary")
			_, _ = w.Write([]byte("png"))
		default:
			http.NotFound(w, r)
		}
	}))
	defer srv.Close()

	c := New("RadioVault/test")
	resp, err := c.Fetch(context.Background(), srv.URL+"/old", time.Second)
	require.NoError(t, err)
	assert.True(t, resp.OK())
	assert.Equal(t, "image/png", resp.ContentType())
	assert.Equal(t, []byte("png"), resp.Body)
	assert.Equal(t, srv.URL+"/logo.png", resp.URL)

	resp, err = c.Fetch(context.Background(), srv.URL+"/missing", time.Second)
	require.NoError(t, err)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	assert.False(t, resp.OK())
}

func TestFetchTimeout(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-r.Context().Done():
		case <-time.After(2 * time.Second):
		}
	}))
	defer srv.Close()

	start := time.Now()
	_, err := New("").Fetch(context.Background(), srv.URL, 50*time.Millisecond)
	require.Error(t, err)
	assert.Less(t, time.Since(start), time.Second)
}

func TestGetOK(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	_, err := GetOK(context.Background(), New(""), srv.URL, time.Second)
	var se *StatusError
	require.True(t, errors.As(err, &se))
	assert.Equal(t, http.StatusServiceUnavailable, se.StatusCode)
}
