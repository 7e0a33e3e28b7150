package storage

import (
	"context"
	"errors"
	"fmt"
	"net"
	"path"
	"regexp"
	"strings"
	"time"

	"github.com/gabriel-vasile/mimetype"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

const (
	resultOK       = "ok"
	resultRejected = "rejected"
	resultFailed   = "failed"
	resultTimeout  = "timeout"
)

// Observer receives one call per upload attempt.
type Observer interface {
	ObserveUpload(kind, result string)
}

// Guard is the Uploader the services use. It checks the allow-list before
// touching the backend and bounds every backend call with a timeout.
type Guard struct {
	backend  Backend
	timeout  time.Duration
	log      *zap.Logger
	observer Observer
	newKey   func(kind Kind, name string) string
}

func NewGuard(backend Backend, timeout time.Duration, log *zap.Logger, observer Observer) *Guard {
	if timeout <= 0 {
		timeout = 20 * time.Second
	}
	return &Guard{
		backend:  backend,
		timeout:  timeout,
		log:      log,
		observer: observer,
		newKey:   objectKey,
	}
}

func (g *Guard) Upload(ctx context.Context, obj Object, kind Kind) (string, error) {
	ext, err := resolveExtension(obj, kind)
	if err != nil {
		g.observe(kind, resultRejected)
		return "", err
	}

	name := obj.Filename
	if name == "" || path.Ext(name) == "" {
		name = "file." + ext
	}
	key := g.newKey(kind, name)

	ctx, cancel := context.WithTimeout(ctx, g.timeout)
	defer cancel()

	url, err := g.backend.Put(ctx, key, obj)
	if err != nil {
		if isTimeout(ctx, err) {
			g.observe(kind, resultTimeout)
			g.log.Warn("storage upload timed out", zap.String("key", key), zap.Duration("timeout", g.timeout))
			return "", fmt.Errorf("%w: %v", ErrTimeout, err)
		}
		g.observe(kind, resultFailed)
		g.log.Error("storage upload failed", zap.String("key", key), zap.Error(err))
		return "", fmt.Errorf("%w: %v", ErrUploadFailed, err)
	}
	g.observe(kind, resultOK)
	return url, nil
}

func (g *Guard) observe(kind Kind, result string) {
	if g.observer != nil {
		g.observer.ObserveUpload(string(kind), result)
	}
}

// resolveExtension picks the extension from the file name, then the
// declared content type, then the bytes themselves.
func resolveExtension(obj Object, kind Kind) (string, error) {
	if len(obj.Data) == 0 {
		return "", ErrEmptyPayload
	}
	if _, ok := allowedExtensions[kind]; !ok {
		return "", fmt.Errorf("%w: unknown kind %q", ErrDisallowedType, kind)
	}

	ext := strings.ToLower(strings.TrimPrefix(path.Ext(obj.Filename), "."))
	if ext == "" && obj.ContentType != "" {
		if m := mimetype.Lookup(strings.TrimSpace(strings.Split(obj.ContentType, ";")[0])); m != nil {
			ext = strings.TrimPrefix(m.Extension(), ".")
		}
	}
	if ext == "" {
		ext = strings.TrimPrefix(mimetype.Detect(obj.Data).Extension(), ".")
	}
	if !Allowed(kind, ext) {
		return "", fmt.Errorf("%w: %q is not an allowed %s type", ErrDisallowedType, ext, kind)
	}
	return ext, nil
}

var unsafeChars = regexp.MustCompile(`[^A-Za-z0-9._-]+`)

func objectKey(kind Kind, name string) string {
	safe := unsafeChars.ReplaceAllString(path.Base(name), "_")
	return fmt.Sprintf("%ss/%s_%s", kind, uuid.NewString(), safe)
}

func isTimeout(ctx context.Context, err error) bool {
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(ctx.Err(), context.DeadlineExceeded) {
		return true
	}
	var ne net.Error
	return errors.As(err, &ne) && ne.Timeout()
}
