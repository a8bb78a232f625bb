// Package bundle exports and imports attestation bundles: a deterministic
// TAR holding one sealed attestation record plus the evidence blocks it
// references, suitable for handing to an auditor as a single file.
package bundle

import (
	"archive/tar"
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"sort"
	"strings"
	"time"

	"github.com/ipfs/go-cid"

	"skuldbot.io/attest/digest"
	"skuldbot.io/attest/storage"
)

// FormatVersion is the current bundle index schema version.
const FormatVersion = 1

var epoch0 = time.Unix(0, 0).UTC()

// ExportOptions controls bundle export behavior.
type ExportOptions struct {
	// Attestation is the sealed attestation record JSON, stored as
	// attestation.json. Optional: evidence-only bundles omit it.
	Attestation []byte

	// Labels is optional, non-authoritative metadata mapping pack IDs to
	// their manifest CIDs.
	Labels map[string]cid.Cid
}

// Export writes a deterministic TAR bundle containing the blocks for the
// given CIDs plus the attestation record.
//
// The bundle bytes are deterministic: entry order is fixed (attestation
// first, then blocks lexicographic, then the index) and TAR headers are
// normalized. All exported bytes are validated against their CIDs.
func Export(w io.Writer, cas storage.CAS, ids []cid.Cid, opts ExportOptions) error {
	if cas == nil {
		return fmt.Errorf("bundle: nil CAS")
	}

	uniq := make(map[string]cid.Cid, len(ids))
	for _, id := range ids {
		if !id.Defined() {
			return storage.ErrInvalidCID
		}
		uniq[id.String()] = id
	}

	cidStrings := make([]string, 0, len(uniq))
	for s := range uniq {
		cidStrings = append(cidStrings, s)
	}
	sort.Strings(cidStrings)

	tw := tar.NewWriter(w)

	if len(opts.Attestation) > 0 {
		if err := writeFile(tw, "attestation.json", opts.Attestation); err != nil {
			_ = tw.Close()
			return err
		}
	}

	blocks := make([]indexBlock, 0, len(cidStrings))
	for _, s := range cidStrings {
		id := uniq[s]
		b, err := cas.Get(id)
		if err != nil {
			_ = tw.Close()
			return err
		}
		got, err := digest.ContentCIDv1(b)
		if err != nil {
			_ = tw.Close()
			return err
		}
		if got.String() != id.String() {
			_ = tw.Close()
			return storage.ErrCIDMismatch
		}

		if err := writeFile(tw, "blocks/"+id.String(), b); err != nil {
			_ = tw.Close()
			return err
		}
		blocks = append(blocks, indexBlock{CID: id.String(), Size: len(b)})
	}

	idx := indexJSON{
		Version:   FormatVersion,
		CIDCodec:  "raw",
		Multihash: "sha2-256",
		Blocks:    blocks,
	}
	if len(opts.Labels) > 0 {
		names := make([]string, 0, len(opts.Labels))
		for k := range opts.Labels {
			names = append(names, k)
		}
		sort.Strings(names)

		labels := make([]indexLabel, 0, len(names))
		for _, k := range names {
			if k == "" {
				_ = tw.Close()
				return fmt.Errorf("bundle: empty label key")
			}
			v := opts.Labels[k]
			if !v.Defined() {
				_ = tw.Close()
				return storage.ErrInvalidCID
			}
			labels = append(labels, indexLabel{Name: k, CID: v.String()})
		}
		idx.Labels = labels
	}

	b, err := marshalIndex(idx)
	if err != nil {
		_ = tw.Close()
		return err
	}
	if err := writeFile(tw, "index.json", b); err != nil {
		_ = tw.Close()
		return err
	}

	return tw.Close()
}

// Import reads a bundle from r, imports every evidence block into cas, and
// returns the attestation record JSON (nil for evidence-only bundles).
//
// Import is fail-closed: unknown entries, path escapes, duplicate blocks,
// and any byte/CID mismatch abort the import.
func Import(r io.Reader, cas storage.CAS) ([]byte, error) {
	if cas == nil {
		return nil, fmt.Errorf("bundle: nil CAS")
	}

	tr := tar.NewReader(r)
	seen := map[string]struct{}{}
	var attestation []byte

	for {
		h, err := tr.Next()
		if err == io.EOF {
			return attestation, nil
		}
		if err != nil {
			return nil, err
		}
		name := cleanTarPath(h.Name)
		if name == "" {
			return nil, fmt.Errorf("bundle: invalid entry path: %q", h.Name)
		}
		if h.Typeflag != tar.TypeReg {
			return nil, fmt.Errorf("bundle: unexpected tar entry type: %v (%s)", h.Typeflag, name)
		}

		switch {
		case name == "attestation.json":
			attestation, err = io.ReadAll(tr)
			if err != nil {
				return nil, err
			}

		case name == "index.json":
			// Non-authoritative metadata; blocks speak for themselves.
			_, _ = io.Copy(io.Discard, tr)

		case strings.HasPrefix(name, "blocks/"):
			cidStr := strings.TrimPrefix(name, "blocks/")
			id, derr := cid.Decode(cidStr)
			if derr != nil || !id.Defined() {
				return nil, storage.ErrInvalidCID
			}

			payload, rerr := io.ReadAll(tr)
			if rerr != nil {
				return nil, rerr
			}
			got, herr := digest.ContentCIDv1(payload)
			if herr != nil {
				return nil, herr
			}
			if got.String() != id.String() {
				return nil, storage.ErrCIDMismatch
			}

			if _, ok := seen[id.String()]; ok {
				return nil, fmt.Errorf("bundle: duplicate block entry: %s", id)
			}
			seen[id.String()] = struct{}{}

			putID, perr := cas.Put(payload)
			if perr != nil {
				return nil, perr
			}
			if putID.String() != id.String() {
				return nil, storage.ErrCIDMismatch
			}

		default:
			return nil, fmt.Errorf("bundle: unknown entry: %s", name)
		}
	}
}

type indexJSON struct {
	Version   int          `json:"version"`
	CIDCodec  string       `json:"cidCodec"`
	Multihash string       `json:"multihash"`
	Blocks    []indexBlock `json:"blocks"`
	Labels    []indexLabel `json:"labels,omitempty"`
}

type indexBlock struct {
	CID  string `json:"cid"`
	Size int    `json:"size"`
}

type indexLabel struct {
	Name string `json:"name"`
	CID  string `json:"cid"`
}

func marshalIndex(idx indexJSON) ([]byte, error) {
	// Structs and slices only; encoding/json is deterministic here.
	b, err := json.Marshal(idx)
	if err != nil {
		return nil, err
	}
	return append(b, '\n'), nil
}

func writeFile(tw *tar.Writer, name string, content []byte) error {
	hdr := &tar.Header{
		Name:     name,
		Mode:     0o644,
		Size:     int64(len(content)),
		ModTime:  epoch0,
		Typeflag: tar.TypeReg,
	}
	if err := tw.WriteHeader(hdr); err != nil {
		return err
	}
	_, err := io.Copy(tw, bytes.NewReader(content))
	return err
}

func cleanTarPath(name string) string {
	name = strings.TrimSpace(name)
	name = strings.ReplaceAll(name, "\\", "/")
	name = strings.TrimPrefix(name, "./")
	name = strings.TrimPrefix(name, "/")
	if name == "" {
		return ""
	}

	parts := strings.Split(name, "/")
	out := make([]string, 0, len(parts))
	for _, part := range parts {
		if part == "" || part == "." || part == ".." {
			return ""
		}
		out = append(out, part)
	}
	return strings.Join(out, "/")
}
