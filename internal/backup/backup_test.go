package backup

import (
	"archive/zip"
	"bytes"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/savline-dev/savline/internal/blob"
	"github.com/savline-dev/savline/internal/claim"
	"github.com/savline-dev/savline/internal/store"
)

type env struct {
	store *store.FileStore
	blobs *blob.Manager
	arch  *Archiver
}

func newEnv(t *testing.T) *env {
	t.Helper()
	dir := t.TempDir()

	st, err := store.NewFileStore(filepath.Join(dir, "claims.json"))
	if err != nil {
		t.Fatalf("NewFileStore failed: %v", err)
	}
	blobs, err := blob.NewManager(filepath.Join(dir, "files"))
	if err != nil {
		t.Fatalf("NewManager failed: %v", err)
	}
	return &env{store: st, blobs: blobs, arch: NewArchiver(st, blobs)}
}

func TestExportImportRoundTrip(t *testing.T) {
	src := newEnv(t)

	att, err := src.blobs.Store("photo.jpg", bytes.NewReader([]byte("jpeg bytes")))
	if err != nil {
		t.Fatalf("Store blob failed: %v", err)
	}
	claims := []claim.Claim{{
		ID:      "c1",
		Email:   "a@x.com",
		StoreID: "Annemasse",
		Status:  claim.StatusRegistered,
		Files:   []claim.Attachment{att},
	}}
	if err := src.store.SaveAll(claims); err != nil {
		t.Fatalf("SaveAll failed: %v", err)
	}

	var buf bytes.Buffer
	if err := src.arch.Export(&buf); err != nil {
		t.Fatalf("Export failed: %v", err)
	}

	dst := newEnv(t)
	if err := dst.arch.Import(bytes.NewReader(buf.Bytes()), int64(buf.Len())); err != nil {
		t.Fatalf("Import failed: %v", err)
	}

	restored, err := dst.store.LoadAll()
	if err != nil {
		t.Fatalf("LoadAll after import failed: %v", err)
	}
	if len(restored) != 1 || restored[0].ID != "c1" {
		t.Fatalf("Expected the exported claim back, got %v", restored)
	}
	if len(restored[0].Files) != 1 || restored[0].Files[0].StorageName != att.StorageName {
		t.Errorf("Attachment metadata lost: %v", restored[0].Files)
	}

	content, err := os.ReadFile(filepath.Join(dst.blobs.Dir(), att.StorageName))
	if err != nil {
		t.Fatalf("Restored blob missing: %v", err)
	}
	if string(content) != "jpeg bytes" {
		t.Errorf("Blob content mismatch: %q", content)
	}
}

func TestExportEmptyStore(t *testing.T) {
	src := newEnv(t)

	var buf bytes.Buffer
	if err := src.arch.Export(&buf); err != nil {
		t.Fatalf("Export failed: %v", err)
	}

	zr, err := zip.NewReader(bytes.NewReader(buf.Bytes()), int64(buf.Len()))
	if err != nil {
		t.Fatalf("Export produced an unreadable archive: %v", err)
	}
	// No document written yet, no files: the archive is simply empty.
	if len(zr.File) != 0 {
		t.Errorf("Expected empty archive, got %d entries", len(zr.File))
	}
}

func makeArchive(t *testing.T, entries map[string]string) []byte {
	t.Helper()
	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	for name, content := range entries {
		w, err := zw.Create(name)
		if err != nil {
			t.Fatalf("Create entry failed: %v", err)
		}
		w.Write([]byte(content))
	}
	if err := zw.Close(); err != nil {
		t.Fatalf("Close archive failed: %v", err)
	}
	return buf.Bytes()
}

func TestImportRejectsTraversal(t *testing.T) {
	dst := newEnv(t)
	dst.store.SaveAll([]claim.Claim{{ID: "live"}})

	bad := [][]byte{
		makeArchive(t, map[string]string{"../evil.sh": "x"}),
		makeArchive(t, map[string]string{"files/../../evil.sh": "x"}),
		makeArchive(t, map[string]string{"files/sub/dir.txt": "x"}),
		makeArchive(t, map[string]string{"random.txt": "x"}),
	}
	for i, archive := range bad {
		err := dst.arch.Import(bytes.NewReader(archive), int64(len(archive)))
		if !errors.Is(err, ErrBadArchive) {
			t.Errorf("Archive %d: expected ErrBadArchive, got %v", i, err)
		}
	}

	// The live collection must be untouched after every rejected import.
	claims, _ := dst.store.LoadAll()
	if len(claims) != 1 || claims[0].ID != "live" {
		t.Errorf("Rejected import touched live data: %v", claims)
	}
}

func TestImportRejectsMalformedDocument(t *testing.T) {
	dst := newEnv(t)
	dst.store.SaveAll([]claim.Claim{{ID: "live"}})

	archive := makeArchive(t, map[string]string{"claims.json": "{broken"})
	err := dst.arch.Import(bytes.NewReader(archive), int64(len(archive)))
	if err == nil {
		t.Fatal("Expected malformed document to be rejected")
	}

	claims, _ := dst.store.LoadAll()
	if len(claims) != 1 || claims[0].ID != "live" {
		t.Errorf("Failed import touched live data: %v", claims)
	}
}

func TestImportWithoutDocumentRestoresEmpty(t *testing.T) {
	dst := newEnv(t)
	dst.store.SaveAll([]claim.Claim{{ID: "live"}})

	archive := makeArchive(t, map[string]string{"files/orphan.bin": "x"})
	if err := dst.arch.Import(bytes.NewReader(archive), int64(len(archive))); err != nil {
		t.Fatalf("Import failed: %v", err)
	}

	claims, _ := dst.store.LoadAll()
	if len(claims) != 0 {
		t.Errorf("Expected empty collection, got %v", claims)
	}
	if _, err := os.Stat(filepath.Join(dst.blobs.Dir(), "orphan.bin")); err != nil {
		t.Errorf("Expected restored blob, got %v", err)
	}
}
