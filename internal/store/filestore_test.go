package store

import (
	"errors"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/savline-dev/savline/internal/claim"
)

func newTestStore(t *testing.T) *FileStore {
	t.Helper()
	s, err := NewFileStore(filepath.Join(t.TempDir(), "claims.json"))
	if err != nil {
		t.Fatalf("NewFileStore failed: %v", err)
	}
	return s
}

func TestFileStore_EmptyWhenMissing(t *testing.T) {
	s := newTestStore(t)

	claims, err := s.LoadAll()
	if err != nil {
		t.Fatalf("LoadAll failed: %v", err)
	}
	if len(claims) != 0 {
		t.Errorf("Expected empty collection, got %d claims", len(claims))
	}
}

func TestFileStore_SaveLoadRoundTrip(t *testing.T) {
	s := newTestStore(t)

	in := []claim.Claim{
		{ID: "c1", CustomerName: "Marie", Email: "m@x.com", StoreID: "Annemasse", Status: claim.StatusRegistered},
		{ID: "c2", CustomerName: "Paul", Email: "p@x.com", StoreID: "Lyon", Status: claim.StatusAccepted},
	}
	if err := s.SaveAll(in); err != nil {
		t.Fatalf("SaveAll failed: %v", err)
	}

	out, err := s.LoadAll()
	if err != nil {
		t.Fatalf("LoadAll failed: %v", err)
	}
	if len(out) != 2 {
		t.Fatalf("Expected 2 claims, got %d", len(out))
	}
	if out[0].ID != "c1" || out[1].ID != "c2" {
		t.Errorf("Order not preserved: %v, %v", out[0].ID, out[1].ID)
	}
	if out[1].Status != claim.StatusAccepted {
		t.Errorf("Expected Accepted, got %v", out[1].Status)
	}
}

func TestFileStore_CorruptDocument(t *testing.T) {
	s := newTestStore(t)

	if err := os.WriteFile(s.Path(), []byte("{not json"), 0644); err != nil {
		t.Fatalf("WriteFile failed: %v", err)
	}

	_, err := s.LoadAll()
	if !errors.Is(err, ErrCorrupt) {
		t.Errorf("Expected ErrCorrupt, got %v", err)
	}
}

func TestFileStore_UpdateAbortsWithoutWrite(t *testing.T) {
	s := newTestStore(t)
	if err := s.SaveAll([]claim.Claim{{ID: "keep"}}); err != nil {
		t.Fatalf("SaveAll failed: %v", err)
	}

	wantErr := errors.New("boom")
	err := s.Update(func(claims []claim.Claim) ([]claim.Claim, error) {
		return nil, wantErr
	})
	if !errors.Is(err, wantErr) {
		t.Fatalf("Expected mutate error, got %v", err)
	}

	claims, _ := s.LoadAll()
	if len(claims) != 1 || claims[0].ID != "keep" {
		t.Errorf("Collection changed despite aborted update: %v", claims)
	}
}

func TestFileStore_ConcurrentUpdatesAreSerialized(t *testing.T) {
	s := newTestStore(t)

	const writers = 50
	var wg sync.WaitGroup
	for i := 0; i < writers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			err := s.Update(func(claims []claim.Claim) ([]claim.Claim, error) {
				return append(claims, claim.Claim{ID: s.NewID()}), nil
			})
			if err != nil {
				t.Errorf("Update failed: %v", err)
			}
		}()
	}
	wg.Wait()

	claims, err := s.LoadAll()
	if err != nil {
		t.Fatalf("LoadAll failed: %v", err)
	}
	if len(claims) != writers {
		t.Errorf("Lost updates: expected %d claims, got %d", writers, len(claims))
	}
}

func TestFileStore_NewIDUnique(t *testing.T) {
	s := newTestStore(t)

	seen := make(map[string]bool)
	for i := 0; i < 1000; i++ {
		id := s.NewID()
		if seen[id] {
			t.Fatalf("Duplicate id generated: %s", id)
		}
		seen[id] = true
	}
}
