package storage

import (
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"testing"
)

type counter struct {
	N int `json:"n"`
}

func newTestStore(t *testing.T) (*FileStore, string) {
	t.Helper()
	dir := t.TempDir()
	s, err := NewFileStore(dir)
	if err != nil {
		t.Fatalf("new store: %v", err)
	}
	return s, dir
}

func TestFileStoreGetMissing(t *testing.T) {
	s, _ := newTestStore(t)
	if _, err := s.Get(context.Background(), Sessions, "1"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("err = %v, want ErrNotFound", err)
	}
}

func TestFileStoreDurableAcrossReopen(t *testing.T) {
	ctx := context.Background()
	s, dir := newTestStore(t)
	err := UpdateJSON(ctx, s, Sessions, "42", func(c *counter, exists bool) error {
		if exists {
			t.Fatalf("unexpected existing doc")
		}
		c.N = 7
		return nil
	})
	if err != nil {
		t.Fatalf("update: %v", err)
	}

	reopened, err := NewFileStore(dir)
	if err != nil {
		t.Fatal(err)
	}
	got, err := GetJSON[counter](ctx, reopened, Sessions, "42")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got.N != 7 {
		t.Fatalf("n = %d, want 7", got.N)
	}
	entries, err := os.ReadDir(dir)
	if err != nil {
		t.Fatal(err)
	}
	if len(entries) != 1 || entries[0].Name() != Sessions+".json" {
		names := make([]string, 0, len(entries))
		for _, e := range entries {
			names = append(names, e.Name())
		}
		t.Fatalf("temp files left behind: %v", names)
	}
}

func TestFileStoreUpdateErrorLeavesDocument(t *testing.T) {
	ctx := context.Background()
	s, _ := newTestStore(t)
	_ = UpdateJSON(ctx, s, Sessions, "1", func(c *counter, _ bool) error { c.N = 1; return nil })

	boom := errors.New("boom")
	err := UpdateJSON(ctx, s, Sessions, "1", func(c *counter, _ bool) error { c.N = 2; return boom })
	if !errors.Is(err, boom) {
		t.Fatalf("err = %v, want boom", err)
	}
	got, _ := GetJSON[counter](ctx, s, Sessions, "1")
	if got.N != 1 {
		t.Fatalf("n = %d, want 1", got.N)
	}
}

func TestFileStoreCorruptionBackup(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, Sessions+".json"), []byte("{not json"), 0o644); err != nil {
		t.Fatal(err)
	}
	s, err := NewFileStore(dir)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := s.Get(ctx, Sessions, "1"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("err = %v, want ErrNotFound after recovery", err)
	}
	backups, _ := filepath.Glob(filepath.Join(dir, Sessions+".json.corrupt-*"))
	if len(backups) != 1 {
		t.Fatalf("backups = %v, want one", backups)
	}
	if err := UpdateJSON(ctx, s, Sessions, "1", func(c *counter, _ bool) error { c.N = 3; return nil }); err != nil {
		t.Fatalf("write after recovery: %v", err)
	}
}

func TestFileStoreConcurrentUpdates(t *testing.T) {
	ctx := context.Background()
	s, _ := newTestStore(t)
	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_ = UpdateJSON(ctx, s, Payments, "shared", func(c *counter, _ bool) error {
				c.N++
				return nil
			})
		}()
	}
	wg.Wait()
	got, _ := GetJSON[counter](ctx, s, Payments, "shared")
	if got.N != 50 {
		t.Fatalf("n = %d, want 50", got.N)
	}
}

func TestFileStoreScanAndDelete(t *testing.T) {
	ctx := context.Background()
	s, _ := newTestStore(t)
	for i := 3; i >= 1; i-- {
		n := i
		_ = UpdateJSON(ctx, s, Plans, strconv.Itoa(n), func(c *counter, _ bool) error { c.N = n; return nil })
	}
	if err := s.Delete(ctx, Plans, "2"); err != nil {
		t.Fatalf("delete: %v", err)
	}
	var keys []string
	err := ScanJSON(ctx, s, Plans, func(key string, c counter) error {
		keys = append(keys, key)
		return nil
	})
	if err != nil {
		t.Fatal(err)
	}
	if len(keys) != 2 || keys[0] != "1" || keys[1] != "3" {
		t.Fatalf("keys = %v", keys)
	}
}

func TestUpdateJSONRecoversUndecodableDocument(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	raw := `{"5":{"n":"not a number"},"6":{"n":3}}`
	if err := os.WriteFile(filepath.Join(dir, Sessions+".json"), []byte(raw), 0o644); err != nil {
		t.Fatal(err)
	}
	s, err := NewFileStore(dir)
	if err != nil {
		t.Fatal(err)
	}

	if _, err := GetJSON[counter](ctx, s, Sessions, "5"); !errors.Is(err, ErrNotFound) || !errors.Is(err, ErrCorrupt) {
		t.Fatalf("get err = %v, want corrupt and not found", err)
	}

	var seen []int
	err = ScanJSON(ctx, s, Sessions, func(_ string, c counter) error {
		seen = append(seen, c.N)
		return nil
	})
	if err != nil || len(seen) != 1 || seen[0] != 3 {
		t.Fatalf("scan = %v, %v; want only the readable document", seen, err)
	}

	err = UpdateJSON(ctx, s, Sessions, "5", func(c *counter, exists bool) error {
		if exists || c.N != 0 {
			t.Fatalf("corrupt document must start fresh: exists=%v n=%d", exists, c.N)
		}
		c.N = 1
		return nil
	})
	if err != nil {
		t.Fatalf("update: %v", err)
	}
	if got, err := GetJSON[counter](ctx, s, Sessions, "5"); err != nil || got.N != 1 {
		t.Fatalf("after repair = %+v, %v", got, err)
	}

	var backups []string
	err = s.Scan(ctx, Corrupt, func(key string, body []byte) error {
		var kept string
		if err := json.Unmarshal(body, &kept); err != nil {
			return err
		}
		if kept != `{"n":"not a number"}` {
			t.Errorf("backup body = %q", kept)
		}
		backups = append(backups, key)
		return nil
	})
	if err != nil || len(backups) != 1 || !strings.HasPrefix(backups[0], Sessions+"/5@") {
		t.Fatalf("backups = %v, %v", backups, err)
	}
}
