package storage

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
)

// SupabaseBackend talks to the Supabase Storage REST API with the service
// key. The bucket must be public for the returned URL to resolve.
type SupabaseBackend struct {
	client  *resty.Client
	baseURL string
	bucket  string
}

func NewSupabaseBackend(baseURL, bucket, serviceKey string, timeout time.Duration) *SupabaseBackend {
	baseURL = strings.TrimRight(baseURL, "/")
	if timeout <= 0 {
		timeout = 20 * time.Second
	}
	client := resty.New().
		SetBaseURL(baseURL).
		SetTimeout(timeout).
		SetAuthToken(serviceKey).
		SetHeader("apikey", serviceKey)

	return &SupabaseBackend{client: client, baseURL: baseURL, bucket: bucket}
}

func (b *SupabaseBackend) Put(ctx context.Context, key string, obj Object) (string, error) {
	contentType := obj.ContentType
	if contentType == "" {
		contentType = "application/octet-stream"
	}

	resp, err := b.client.R().
		SetContext(ctx).
		SetHeader("Content-Type", contentType).
		SetHeader("x-upsert", "true").
		SetBody(obj.Data).
		Post(fmt.Sprintf("/storage/v1/object/%s/%s", b.bucket, key))
	if err != nil {
		return "", err
	}
	if resp.IsError() {
		return "", fmt.Errorf("supabase returned status %d: %s", resp.StatusCode(), strings.TrimSpace(resp.String()))
	}
	return fmt.Sprintf("%s/storage/v1/object/public/%s/%s", b.baseURL, b.bucket, key), nil
}
