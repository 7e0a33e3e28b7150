// Package storage uploads issue photos, report documents and avatars to an
// object store and hands back the URL to persist.
package storage

import (
	"context"
	"errors"
	"strings"
)

// Kind is the declared media kind of an upload.
type Kind string

const (
	KindImage    Kind = "image"
	KindDocument Kind = "document"
)

var (
	ErrDisallowedType = errors.New("file type not allowed")
	ErrEmptyPayload   = errors.New("file is empty")
	ErrUploadFailed   = errors.New("upload failed")
	ErrTimeout        = errors.New("storage timed out")
)

var allowedExtensions = map[Kind]map[string]bool{
	KindImage:    {"jpg": true, "jpeg": true, "png": true, "gif": true, "bmp": true, "webp": true},
	KindDocument: {"pdf": true, "doc": true, "docx": true},
}

// Allowed reports whether ext (with or without the leading dot) may be
// uploaded as kind.
func Allowed(kind Kind, ext string) bool {
	ext = strings.ToLower(strings.TrimPrefix(ext, "."))
	return allowedExtensions[kind][ext]
}

// Object is an in-memory file. Filename and ContentType are what the client
// declared; either may be empty.
type Object struct {
	Data        []byte
	Filename    string
	ContentType string
}

// Uploader stores an object of the given kind and returns its public URL.
type Uploader interface {
	Upload(ctx context.Context, obj Object, kind Kind) (string, error)
}

// Backend writes bytes under key. Backends do no validation of their own.
type Backend interface {
	Put(ctx context.Context, key string, obj Object) (string, error)
}
