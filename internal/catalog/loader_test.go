package catalog

import (
	"context"
	"errors"
	"net"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoader_Remote(t *testing.T) {
	var gotUA string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotUA = r.Header.Get("User-Agent")
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(sampleCatalog))
	}))
	defer srv.Close()

	l := NewLoader(srv.Client(), srv.URL+"/data.json", "findme-test", nil)
	cat, err := l.Load(context.Background())
	require.NoError(t, err)

	assert.Equal(t, []string{"GitHub", "Reddit", "GitLab"}, cat.Names())
	assert.Equal(t, "findme-test", gotUA)
}

func TestLoader_RefetchesEveryLoad(t *testing.T) {
	hits := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits++
		_, _ = w.Write([]byte(`{"A": {"url": "https://a/{}"}}`))
	}))
	defer srv.Close()

	l := NewLoader(srv.Client(), srv.URL, "", nil)
	for i := 0; i < 3; i++ {
		_, err := l.Load(context.Background())
		require.NoError(t, err)
	}
	assert.Equal(t, 3, hits)
}

func TestLoader_NonSuccessStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "gone", http.StatusNotFound)
	}))
	defer srv.Close()

	_, err := NewLoader(srv.Client(), srv.URL, "", nil).Load(context.Background())
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrUnavailable))
	assert.Contains(t, err.Error(), "404")
}

func TestLoader_MalformedPayload(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`<html>not json</html>`))
	}))
	defer srv.Close()

	_, err := NewLoader(srv.Client(), srv.URL, "", nil).Load(context.Background())
	assert.True(t, errors.Is(err, ErrUnavailable))
}

func TestLoader_NetworkError(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	addr := ln.Addr().String()
	ln.Close()

	_, err = NewLoader(http.DefaultClient, "http://"+addr+"/data.json", "", nil).Load(context.Background())
	assert.True(t, errors.Is(err, ErrUnavailable))
}

func TestLoader_File(t *testing.T) {
	path := filepath.Join(t.TempDir(), "data.json")
	require.NoError(t, os.WriteFile(path, []byte(sampleCatalog), 0o600))

	cat, err := NewLoader(nil, path, "", nil).Load(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 3, cat.Len())

	_, err = NewLoader(nil, filepath.Join(t.TempDir(), "missing.json"), "", nil).Load(context.Background())
	assert.True(t, errors.Is(err, ErrUnavailable))
}

func TestNewLoader_DefaultSource(t *testing.T) {
	assert.Equal(t, DefaultURL, NewLoader(nil, "", "", nil).Source())
}
