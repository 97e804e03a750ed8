// Package backup packages the persisted claim document and the attachment
// directory into a zip archive, and restores from one.
//
// Restore is staged: every entry path is validated against the archive root,
// the archive is extracted into a scratch directory, the claim document is
// decoded to prove it parses, and only then are the live document and
// attachment directory swapped out under the store's writer lock. A failed
// import leaves the live data untouched.
package backup

import (
	"archive/zip"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/savline-dev/savline/internal/blob"
	"github.com/savline-dev/savline/internal/claim"
	"github.com/savline-dev/savline/internal/store"
)

const (
	documentEntry = "claims.json"
	filesPrefix   = "files/"
)

// ErrBadArchive is returned when an archive contains entries outside the
// expected layout, including traversal attempts.
var ErrBadArchive = errors.New("backup: archive entry outside expected layout")

// Archiver exports and restores the store's on-disk state.
type Archiver struct {
	store *store.FileStore
	blobs *blob.Manager
}

// NewArchiver creates an archiver over the live store and attachment dir.
func NewArchiver(st *store.FileStore, blobs *blob.Manager) *Archiver {
	return &Archiver{store: st, blobs: blobs}
}

// Export streams a zip of the claim document and every attachment to w,
// without buffering the archive. The store lock is held so a concurrent
// mutation cannot tear the snapshot.
func (a *Archiver) Export(w io.Writer) error {
	return a.store.WithLock(func() error {
		zw := zip.NewWriter(w)

		if err := a.addFile(zw, documentEntry, a.store.Path()); err != nil && !os.IsNotExist(err) {
			return err
		}

		entries, err := os.ReadDir(a.blobs.Dir())
		if err != nil {
			return err
		}
		for _, entry := range entries {
			if entry.IsDir() {
				continue
			}
			src := filepath.Join(a.blobs.Dir(), entry.Name())
			if err := a.addFile(zw, filesPrefix+entry.Name(), src); err != nil {
				return err
			}
		}

		return zw.Close()
	})
}

func (a *Archiver) addFile(zw *zip.Writer, name, src string) error {
	f, err := os.Open(src)
	if err != nil {
		return err
	}
	defer f.Close()

	entry, err := zw.Create(name)
	if err != nil {
		return err
	}
	_, err = io.Copy(entry, f)
	return err
}

// Import restores the store from archive bytes.
func (a *Archiver) Import(r io.ReaderAt, size int64) error {
	zr, err := zip.NewReader(r, size)
	if err != nil {
		return fmt.Errorf("backup: open archive: %w", err)
	}

	stage, err := os.MkdirTemp(filepath.Dir(a.store.Path()), "restore-*")
	if err != nil {
		return err
	}
	defer os.RemoveAll(stage)

	stageFiles := filepath.Join(stage, "files")
	if err := os.MkdirAll(stageFiles, 0755); err != nil {
		return err
	}

	sawDocument := false
	for _, f := range zr.File {
		name := path.Clean(f.Name)
		switch {
		case f.FileInfo().IsDir():
			continue
		case name == documentEntry:
			sawDocument = true
			if err := extractEntry(f, filepath.Join(stage, documentEntry)); err != nil {
				return err
			}
		case strings.HasPrefix(name, filesPrefix):
			base := strings.TrimPrefix(name, filesPrefix)
			if base == "" || base != filepath.Base(base) {
				return fmt.Errorf("%w: %q", ErrBadArchive, f.Name)
			}
			if err := extractEntry(f, filepath.Join(stageFiles, base)); err != nil {
				return err
			}
		default:
			return fmt.Errorf("%w: %q", ErrBadArchive, f.Name)
		}
	}

	stageDoc := filepath.Join(stage, documentEntry)
	if !sawDocument {
		if err := os.WriteFile(stageDoc, []byte("[]"), 0644); err != nil {
			return err
		}
	}

	// Prove the restored document parses before touching live state.
	content, err := os.ReadFile(stageDoc)
	if err != nil {
		return err
	}
	var claims []claim.Claim
	if err := json.Unmarshal(content, &claims); err != nil {
		return fmt.Errorf("backup: restored document is not a claim collection: %w", err)
	}

	return a.store.WithLock(func() error {
		if err := os.Rename(stageDoc, a.store.Path()); err != nil {
			return err
		}

		old := a.blobs.Dir() + ".old"
		if err := os.Rename(a.blobs.Dir(), old); err != nil {
			return err
		}
		if err := os.Rename(stageFiles, a.blobs.Dir()); err != nil {
			// Put the previous attachment dir back so the store keeps serving.
			os.Rename(old, a.blobs.Dir())
			return err
		}
		return os.RemoveAll(old)
	})
}

func extractEntry(f *zip.File, dst string) error {
	src, err := f.Open()
	if err != nil {
		return err
	}
	defer src.Close()

	out, err := os.Create(dst)
	if err != nil {
		return err
	}
	if _, err := io.Copy(out, src); err != nil {
		out.Close()
		return err
	}
	return out.Close()
}
