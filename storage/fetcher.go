package storage

import (
	"context"
	"fmt"
	"net/url"
	"path"
	"time"

	"github.com/go-resty/resty/v2"
)

// Fetcher downloads remote files, e.g. an identity provider's avatar.
type Fetcher struct {
	client *resty.Client
}

func NewFetcher(timeout time.Duration) *Fetcher {
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	return &Fetcher{client: resty.New().SetTimeout(timeout)}
}

func (f *Fetcher) Fetch(ctx context.Context, rawURL string) (Object, error) {
	resp, err := f.client.R().SetContext(ctx).Get(rawURL)
	if err != nil {
		return Object{}, err
	}
	if resp.IsError() {
		return Object{}, fmt.Errorf("fetch %s: status %d", rawURL, resp.StatusCode())
	}

	name := ""
	if u, err := url.Parse(rawURL); err == nil {
		if base := path.Base(u.Path); base != "/" && base != "." {
			name = base
		}
	}
	return Object{
		Data:        resp.Body(),
		Filename:    name,
		ContentType: resp.Header().Get("Content-Type"),
	}, nil
}
