package storage

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSupabaseBackend_Put(t *testing.T) {
	var gotPath, gotAuth, gotKey, gotUpsert, gotType string
	var gotBody []byte
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		gotAuth = r.Header.Get("Authorization")
		gotKey = r.Header.Get("apikey")
		gotUpsert = r.Header.Get("x-upsert")
		gotType = r.Header.Get("Content-Type")
		gotBody, _ = io.ReadAll(r.Body)
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"Key":"issues/x"}`))
	}))
	defer srv.Close()

	b := NewSupabaseBackend(srv.URL+"/", "issues", "service-key", time.Second)
	url, err := b.Put(context.Background(), "images/u_a.png", Object{Data: pngBytes, ContentType: "image/png"})
	require.NoError(t, err)

	assert.Equal(t, srv.URL+"/storage/v1/object/public/issues/images/u_a.png", url)
	assert.Equal(t, "/storage/v1/object/issues/images/u_a.png", gotPath)
	assert.Equal(t, "Bearer service-key", gotAuth)
	assert.Equal(t, "service-key", gotKey)
	assert.Equal(t, "true", gotUpsert)
	assert.Equal(t, "image/png", gotType)
	assert.Equal(t, pngBytes, gotBody)
}

func TestSupabaseBackend_NonSuccessStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"error":"Bucket not found"}`, http.StatusBadRequest)
	}))
	defer srv.Close()

	b := NewSupabaseBackend(srv.URL, "missing", "k", time.Second)
	_, err := b.Put(context.Background(), "images/a.png", Object{Data: pngBytes})
	require.Error(t, err)
	assert.True(t, strings.Contains(err.Error(), "400"), err.Error())
}

func TestFetcher_Fetch(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/missing" {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		w.Header().Set("Content-Type", "image/png")
		_, _ = w.Write(pngBytes)
	}))
	defer srv.Close()

	f := NewFetcher(time.Second)
	obj, err := f.Fetch(context.Background(), srv.URL+"/avatars/me.png")
	require.NoError(t, err)
	assert.Equal(t, "me.png", obj.Filename)
	assert.Equal(t, "image/png", obj.ContentType)
	assert.Equal(t, pngBytes, obj.Data)

	_, err = f.Fetch(context.Background(), srv.URL+"/missing")
	assert.Error(t, err)
}
