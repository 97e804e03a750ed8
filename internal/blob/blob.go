// Package blob stores uploaded attachment files under opaque storage names.
package blob

import (
	"errors"
	"io"
	"mime"
	"os"
	"path/filepath"
	"strings"

	"github.com/gabriel-vasile/mimetype"
	"github.com/google/uuid"

	"github.com/savline-dev/savline/internal/claim"
)

// ErrBadName is returned when a storage name is not one this manager could
// have produced, before any disk access happens.
var ErrBadName = errors.New("blob: invalid storage name")

// Manager persists attachment blobs in a single flat directory, keyed by
// opaque storage names generated at upload time.
type Manager struct {
	dir string
}

// NewManager ensures dir exists and returns a manager over it.
func NewManager(dir string) (*Manager, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, err
	}
	return &Manager{dir: dir}, nil
}

// Dir returns the attachment directory.
func (m *Manager) Dir() string {
	return m.dir
}

// Store writes the blob under a fresh uuid-based storage name. The original
// extension is kept on the storage name so direct inspection of the data
// directory stays readable; lookups never depend on it.
func (m *Manager) Store(originalName string, r io.Reader) (claim.Attachment, error) {
	storageName := uuid.NewString() + strings.ToLower(filepath.Ext(originalName))

	f, err := os.Create(filepath.Join(m.dir, storageName))
	if err != nil {
		return claim.Attachment{}, err
	}
	if _, err := io.Copy(f, r); err != nil {
		f.Close()
		os.Remove(f.Name())
		return claim.Attachment{}, err
	}
	if err := f.Close(); err != nil {
		return claim.Attachment{}, err
	}

	return claim.Attachment{
		OriginalName: filepath.Base(originalName),
		StorageName:  storageName,
	}, nil
}

// Open returns the stored blob for a previously issued storage name.
func (m *Manager) Open(storageName string) (*os.File, error) {
	if storageName == "" || storageName != filepath.Base(storageName) {
		return nil, ErrBadName
	}
	return os.Open(filepath.Join(m.dir, storageName))
}

// ContentType infers a MIME type for serving. Extension mapping is tried
// first; an unknown extension falls back to sniffing the stored bytes, then
// to application/octet-stream.
func (m *Manager) ContentType(att claim.Attachment) string {
	if ct := mime.TypeByExtension(filepath.Ext(att.OriginalName)); ct != "" {
		return ct
	}
	if mt, err := mimetype.DetectFile(filepath.Join(m.dir, att.StorageName)); err == nil {
		return mt.String()
	}
	return "application/octet-stream"
}

// Dedupe drops incoming attachments whose original filename already appears
// in existing, or earlier in the same batch. First write wins; order is
// preserved.
func Dedupe(existing, incoming []claim.Attachment) []claim.Attachment {
	seen := make(map[string]bool, len(existing))
	for _, att := range existing {
		seen[att.OriginalName] = true
	}

	var kept []claim.Attachment
	for _, att := range incoming {
		if seen[att.OriginalName] {
			continue
		}
		seen[att.OriginalName] = true
		kept = append(kept, att)
	}
	return kept
}
