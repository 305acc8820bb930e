// Package contentstore implements the boundary contract of SPEC_FULL.md
// §6.3: media blob storage is out of scope, but InputParser's image/audio
// sub-parsers need somewhere to resolve a reference. Two non-goals-compatible
// reference implementations are provided; no external object store is wired.
// Grounded on the standard library deliberately: no example repo in the pack
// owns a blob-storage client, and this is explicitly a non-goal boundary, not
// a component the spec asks to be richly wired.
package contentstore

import (
	"context"
	"encoding/base64"
	"fmt"
	"os"
	"path/filepath"

	"github.com/google/uuid"

	"coreconvo/domain"
)

// Store is the collaborator contract of §6.3.
type Store interface {
	Put(ctx context.Context, category string, data []byte, contentType domain.ContentType) (ref string, err error)
	Get(ctx context.Context, ref string) ([]byte, error)
}

// FilesystemStore persists blobs under baseDir/<category>/<uuid>.
type FilesystemStore struct {
	baseDir string
}

func NewFilesystemStore(baseDir string) *FilesystemStore {
	return &FilesystemStore{baseDir: baseDir}
}

func (s *FilesystemStore) Put(ctx context.Context, category string, data []byte, contentType domain.ContentType) (string, error) {
	dir := filepath.Join(s.baseDir, category)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", domain.NewError(domain.ErrStorageFailure, "creating media directory", err)
	}
	filename := uuid.NewString() + extensionFor(contentType)
	path := filepath.Join(dir, filename)
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return "", domain.NewError(domain.ErrStorageFailure, "writing media file", err)
	}
	return fmt.Sprintf("%s/%s", category, filename), nil
}

func (s *FilesystemStore) Get(ctx context.Context, ref string) ([]byte, error) {
	data, err := os.ReadFile(filepath.Join(s.baseDir, ref))
	if err != nil {
		return nil, domain.NewError(domain.ErrNotFound, "media not found: "+ref, err)
	}
	return data, nil
}

// Base64Store is the inline reference implementation: Put returns a
// data-URI-shaped ref directly rather than writing to disk, and Get decodes
// it back out -- useful in tests, where nothing should touch the filesystem.
type Base64Store struct{}

func NewBase64Store() *Base64Store { return &Base64Store{} }

func (s *Base64Store) Put(ctx context.Context, category string, data []byte, contentType domain.ContentType) (string, error) {
	return fmt.Sprintf("base64:%s:%s", contentType, base64.StdEncoding.EncodeToString(data)), nil
}

func (s *Base64Store) Get(ctx context.Context, ref string) ([]byte, error) {
	parts := splitRef(ref)
	if len(parts) != 3 {
		return nil, domain.NewError(domain.ErrInvalidReference, "malformed base64 ref", nil)
	}
	data, err := base64.StdEncoding.DecodeString(parts[2])
	if err != nil {
		return nil, domain.NewError(domain.ErrInvalidReference, "malformed base64 payload", err)
	}
	return data, nil
}

func splitRef(ref string) []string {
	out := make([]string, 0, 3)
	start := 0
	count := 0
	for i, r := range ref {
		if r == ':' && count < 2 {
			out = append(out, ref[start:i])
			start = i + 1
			count++
		}
	}
	out = append(out, ref[start:])
	return out
}

func extensionFor(ct domain.ContentType) string {
	switch ct {
	case domain.ContentTypeImage:
		return ".img"
	case domain.ContentTypeAudio:
		return ".audio"
	default:
		return ".bin"
	}
}
