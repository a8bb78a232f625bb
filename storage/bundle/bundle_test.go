package bundle_test

import (
	"archive/tar"
	"bytes"
	"io"
	"strings"
	"testing"

	"github.com/ipfs/go-cid"

	"skuldbot.io/attest/storage"
	"skuldbot.io/attest/storage/bundle"
	"skuldbot.io/attest/storage/testkit"
)

func putAll(t *testing.T, cas storage.CAS, payloads ...string) []cid.Cid {
	t.Helper()
	ids := make([]cid.Cid, len(payloads))
	for i, p := range payloads {
		id, err := cas.Put([]byte(p))
		if err != nil {
			t.Fatalf("Put: %v", err)
		}
		ids[i] = id
	}
	return ids
}

func TestBundle_ExportIsDeterministic(t *testing.T) {
	cas := testkit.NewMem()
	ids := putAll(t, cas, "audit log entry", "screenshot bytes")
	record := []byte(`{"record":{},"signature":{}}`)

	var outA bytes.Buffer
	if err := bundle.Export(&outA, cas, []cid.Cid{ids[1], ids[0]}, bundle.ExportOptions{Attestation: record}); err != nil {
		t.Fatal(err)
	}
	var outB bytes.Buffer
	if err := bundle.Export(&outB, cas, []cid.Cid{ids[0], ids[1]}, bundle.ExportOptions{Attestation: record}); err != nil {
		t.Fatal(err)
	}

	if !bytes.Equal(outA.Bytes(), outB.Bytes()) {
		t.Fatalf("expected deterministic bundle bytes")
	}
}

func TestBundle_ImportRoundTrip(t *testing.T) {
	src := testkit.NewMem()
	ids := putAll(t, src, "evidence item one", "evidence item two")
	record := []byte(`{"record":{"version":"1"},"signature":{}}`)

	var buf bytes.Buffer
	opts := bundle.ExportOptions{
		Attestation: record,
		Labels:      map[string]cid.Cid{"pk-1": ids[0]},
	}
	if err := bundle.Export(&buf, src, ids, opts); err != nil {
		t.Fatal(err)
	}

	dst := testkit.NewMem()
	got, err := bundle.Import(&buf, dst)
	if err != nil {
		t.Fatal(err)
	}
	if !bytes.Equal(got, record) {
		t.Fatalf("imported attestation differs from exported")
	}
	for _, id := range ids {
		b, err := dst.Get(id)
		if err != nil {
			t.Fatalf("Get %s after import: %v", id, err)
		}
		if len(b) == 0 {
			t.Fatalf("empty block after import")
		}
	}
}

func TestBundle_ImportRejectsCorruptBlock(t *testing.T) {
	src := testkit.NewMem()
	ids := putAll(t, src, "original bytes")

	var buf bytes.Buffer
	if err := bundle.Export(&buf, src, ids, bundle.ExportOptions{}); err != nil {
		t.Fatal(err)
	}

	// Rewrite the block payload in the TAR while keeping its CID name.
	var tampered bytes.Buffer
	tr := tar.NewReader(bytes.NewReader(buf.Bytes()))
	tw := tar.NewWriter(&tampered)
	for {
		h, err := tr.Next()
		if err == io.EOF {
			break
		}
		if err != nil {
			t.Fatal(err)
		}
		b, err := io.ReadAll(tr)
		if err != nil {
			t.Fatal(err)
		}
		if strings.HasPrefix(h.Name, "blocks/") {
			b = []byte("tampered bytes!")
			h.Size = int64(len(b))
		}
		if err := tw.WriteHeader(h); err != nil {
			t.Fatal(err)
		}
		if _, err := tw.Write(b); err != nil {
			t.Fatal(err)
		}
	}
	if err := tw.Close(); err != nil {
		t.Fatal(err)
	}

	dst := testkit.NewMem()
	if _, err := bundle.Import(&tampered, dst); err != storage.ErrCIDMismatch {
		t.Fatalf("Import tampered bundle: got %v, want ErrCIDMismatch", err)
	}
}

func TestBundle_ImportRejectsUnknownEntry(t *testing.T) {
	var buf bytes.Buffer
	tw := tar.NewWriter(&buf)
	content := []byte("surprise")
	if err := tw.WriteHeader(&tar.Header{Name: "extra/file", Mode: 0o644, Size: int64(len(content)), Typeflag: tar.TypeReg}); err != nil {
		t.Fatal(err)
	}
	if _, err := tw.Write(content); err != nil {
		t.Fatal(err)
	}
	if err := tw.Close(); err != nil {
		t.Fatal(err)
	}

	if _, err := bundle.Import(&buf, testkit.NewMem()); err == nil {
		t.Fatalf("unknown entry should fail the import")
	}
}

func TestBundle_ImportRejectsPathEscape(t *testing.T) {
	var buf bytes.Buffer
	tw := tar.NewWriter(&buf)
	content := []byte("nope")
	if err := tw.WriteHeader(&tar.Header{Name: "../escape", Mode: 0o644, Size: int64(len(content)), Typeflag: tar.TypeReg}); err != nil {
		t.Fatal(err)
	}
	if _, err := tw.Write(content); err != nil {
		t.Fatal(err)
	}
	if err := tw.Close(); err != nil {
		t.Fatal(err)
	}

	if _, err := bundle.Import(&buf, testkit.NewMem()); err == nil {
		t.Fatalf("path escape should fail the import")
	}
}
