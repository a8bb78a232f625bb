package localfs

import (
	"os"
	"path/filepath"
	"testing"

	"skuldbot.io/attest/digest"
	"skuldbot.io/attest/storage"
	"skuldbot.io/attest/storage/testkit"
)

func TestLocalFS_Conformance(t *testing.T) {
	testkit.RunCASConformance(t, func(t *testing.T) storage.CAS {
		cas, err := New(t.TempDir())
		if err != nil {
			t.Fatalf("New: %v", err)
		}
		return cas
	})
}

func TestLocalFS_RequiresRoot(t *testing.T) {
	if _, err := New(""); err == nil {
		t.Fatalf("New(\"\") should fail")
	}
}

func TestLocalFS_CorruptedObjectDetectedOnGet(t *testing.T) {
	dir := t.TempDir()
	cas, err := New(dir)
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	b := []byte("evidence bytes before tampering")
	id, err := cas.Put(b)
	if err != nil {
		t.Fatalf("Put: %v", err)
	}

	// Alter the bytes on disk behind the store's back.
	s := id.String()
	path := filepath.Join(dir, s[:2], s)
	if err := os.Chmod(path, 0o644); err != nil {
		t.Fatalf("Chmod: %v", err)
	}
	if err := os.WriteFile(path, []byte("evidence bytes AFTER tampering!"), 0o644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}

	if _, err := cas.Get(id); err != storage.ErrCIDMismatch {
		t.Fatalf("Get tampered object: got err=%v, want ErrCIDMismatch", err)
	}
}

func TestLocalFS_ShardedPath(t *testing.T) {
	dir := t.TempDir()
	cas, err := New(dir)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	id, err := cas.Put([]byte("shard me"))
	if err != nil {
		t.Fatalf("Put: %v", err)
	}
	s := id.String()
	if _, err := os.Stat(filepath.Join(dir, s[:2], s)); err != nil {
		t.Fatalf("expected sharded object path: %v", err)
	}
	if _, err := digest.ContentCIDv1([]byte("shard me")); err != nil {
		t.Fatalf("ContentCIDv1: %v", err)
	}
}
