package store

import (
	"encoding/json"
	"fmt"
	"math/rand"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"

	"github.com/savline-dev/savline/internal/claim"
)

// FileStore persists the whole claim collection as one JSON document,
// rewritten wholesale on every mutation.
type FileStore struct {
	path string

	mu sync.Mutex // serializes load-mutate-save and file writes

	idMu    sync.Mutex // guards entropy; separate so NewID is safe inside Update
	entropy *rand.Rand
}

// NewFileStore initializes a store backed by the JSON document at path.
// The parent directory is created if missing.
func NewFileStore(path string) (*FileStore, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, err
	}
	return &FileStore{
		path:    path,
		entropy: rand.New(rand.NewSource(time.Now().UnixNano())),
	}, nil
}

// Path returns the location of the persisted document.
func (s *FileStore) Path() string {
	return s.path
}

func (s *FileStore) LoadAll() ([]claim.Claim, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.load()
}

func (s *FileStore) SaveAll(claims []claim.Claim) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.save(claims)
}

func (s *FileStore) Update(mutate func(claims []claim.Claim) ([]claim.Claim, error)) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	claims, err := s.load()
	if err != nil {
		return err
	}
	claims, err = mutate(claims)
	if err != nil {
		return err
	}
	return s.save(claims)
}

// WithLock runs fn while holding the writer lock without touching the
// document, so callers like the backup importer can swap the underlying
// files with no mutation racing them.
func (s *FileStore) WithLock(fn func() error) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return fn()
}

// NewID returns a ULID: millisecond time prefix plus random suffix, so ids
// sort by creation time and collisions are negligible.
func (s *FileStore) NewID() string {
	s.idMu.Lock()
	defer s.idMu.Unlock()
	return ulid.MustNew(ulid.Timestamp(time.Now()), s.entropy).String()
}

// load must be called with s.mu held.
func (s *FileStore) load() ([]claim.Claim, error) {
	content, err := os.ReadFile(s.path)
	if err != nil {
		if os.IsNotExist(err) {
			return []claim.Claim{}, nil
		}
		return nil, err
	}

	var claims []claim.Claim
	if err := json.Unmarshal(content, &claims); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrCorrupt, err)
	}
	return claims, nil
}

// save must be called with s.mu held. Writes to a temporary file first and
// renames it over the document, so readers see either the old collection or
// the new one, never a partial write.
func (s *FileStore) save(claims []claim.Claim) error {
	bytes, err := json.MarshalIndent(claims, "", "  ")
	if err != nil {
		return err
	}

	tempPath := s.path + ".tmp"
	if err := os.WriteFile(tempPath, bytes, 0644); err != nil {
		return err
	}
	return os.Rename(tempPath, s.path)
}
