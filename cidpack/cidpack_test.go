package cidpack

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
)

func writeTree(t *testing.T, root string, files map[string][]byte) {
	t.Helper()
	for rel, data := range files {
		p := filepath.Join(root, filepath.FromSlash(rel))
		if err := os.MkdirAll(filepath.Dir(p), 0o777); err != nil {
			t.Fatalf("MkdirAll: %v", err)
		}
		if err := os.WriteFile(p, data, 0o666); err != nil {
			t.Fatalf("WriteFile: %v", err)
		}
	}
}

func TestPackExtractRoundTrip(t *testing.T) {
	src := t.TempDir()
	files := map[string][]byte{
		"a.txt":     []byte("hello"),
		"dir/b.bin": {0x00, 0xFF, 0x42},
	}
	writeTree(t, src, files)

	var buf bytes.Buffer
	ts := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	h, err := Pack(&buf, src, PackOptions{
		UserVersion: 7,
		Notes:       "test package",
		Timestamp:   ts,
		Level:       6,
	})
	if err != nil {
		t.Fatalf("Pack: %v", err)
	}
	if h.FileCount != 2 {
		t.Fatalf("FileCount = %d, want 2", h.FileCount)
	}

	wantPrefix := []byte{0x28, 0x43, 0x49, 0x44, 0x50, 0x61, 0x63, 0x6B, 0x29, 0x20, 0x56, 0x31}
	if !bytes.Equal(buf.Bytes()[:12], wantPrefix) {
		t.Fatalf("signature = % X, want % X", buf.Bytes()[:12], wantPrefix)
	}

	dst := t.TempDir()
	h2, err := Extract(bytes.NewReader(buf.Bytes()), dst, ExtractOptions{Overwrite: false})
	if err != nil {
		t.Fatalf("Extract: %v", err)
	}
	if h2.FileCount != h.FileCount || h2.Notes != h.Notes || h2.UserVersion != h.UserVersion {
		t.Fatalf("extracted header mismatch: %+v vs %+v", h2, h)
	}
	if !h2.Timestamp.Equal(ts) {
		t.Fatalf("Timestamp = %v, want %v", h2.Timestamp, ts)
	}

	for rel, want := range files {
		got, err := os.ReadFile(filepath.Join(dst, filepath.FromSlash(rel)))
		if err != nil {
			t.Fatalf("ReadFile(%s): %v", rel, err)
		}
		if diff := cmp.Diff(want, got); diff != "" {
			t.Errorf("%s mismatch (-want +got):\n%s", rel, diff)
		}
	}
}

func TestExtractDetailsDoesNotConsumeFileRecords(t *testing.T) {
	src := t.TempDir()
	writeTree(t, src, map[string][]byte{"only.txt": bytes.Repeat([]byte("x"), 100)})

	var buf bytes.Buffer
	if _, err := Pack(&buf, src, PackOptions{Notes: "n", Level: 6}); err != nil {
		t.Fatalf("Pack: %v", err)
	}

	r := bytes.NewReader(buf.Bytes())
	h, err := ExtractDetails(r)
	if err != nil {
		t.Fatalf("ExtractDetails: %v", err)
	}
	if h.FileCount != 1 {
		t.Fatalf("FileCount = %d, want 1", h.FileCount)
	}

	dst := t.TempDir()
	h2, err := Extract(r, dst, ExtractOptions{})
	if err != nil {
		t.Fatalf("Extract after ExtractDetails: %v", err)
	}
	if h2.FileCount != 1 {
		t.Fatalf("second FileCount = %d, want 1", h2.FileCount)
	}
}

func TestExtractDetectsMD5Mismatch(t *testing.T) {
	src := t.TempDir()
	writeTree(t, src, map[string][]byte{"f.txt": []byte("corrupt me")})

	var buf bytes.Buffer
	if _, err := Pack(&buf, src, PackOptions{Level: 6}); err != nil {
		t.Fatalf("Pack: %v", err)
	}
	raw := buf.Bytes()
	// Flip a byte inside the payload region, after header+record.
	raw[len(raw)-1] ^= 0xFF

	dst := t.TempDir()
	_, err := Extract(bytes.NewReader(raw), dst, ExtractOptions{})
	if err == nil {
		t.Fatal("expected an error extracting a corrupted payload")
	}
}

func TestExtractRejectsExistingFileWithoutOverwrite(t *testing.T) {
	src := t.TempDir()
	writeTree(t, src, map[string][]byte{"f.txt": []byte("data")})

	var buf bytes.Buffer
	if _, err := Pack(&buf, src, PackOptions{Level: 6}); err != nil {
		t.Fatalf("Pack: %v", err)
	}

	dst := t.TempDir()
	if err := os.WriteFile(filepath.Join(dst, "f.txt"), []byte("existing"), 0o666); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}

	_, err := Extract(bytes.NewReader(buf.Bytes()), dst, ExtractOptions{Overwrite: false})
	if err == nil {
		t.Fatal("expected CallerError for existing file without overwrite")
	}

	if _, err := Extract(bytes.NewReader(buf.Bytes()), dst, ExtractOptions{Overwrite: true}); err != nil {
		t.Fatalf("Extract with Overwrite: %v", err)
	}
}

func TestValidateTargetPathRejectsSourceDescendant(t *testing.T) {
	if err := ValidateTargetPath("/src/out.cidpack", "/src"); err == nil {
		t.Fatal("expected error for target inside source tree")
	}
	if err := ValidateTargetPath("/srcOUT/out.cidpack", "/src"); err != nil {
		t.Fatalf("sibling directory with shared prefix should be allowed: %v", err)
	}
	if err := ValidateTargetPath("/other/out.cidpack", "/src"); err != nil {
		t.Fatalf("unrelated path should be allowed: %v", err)
	}
}

func TestStoredFallbackForIncompressibleData(t *testing.T) {
	src := t.TempDir()
	// Already-dense random-looking data that deflate won't shrink.
	data := make([]byte, 64)
	for i := range data {
		data[i] = byte(i*97 + 13)
	}
	writeTree(t, src, map[string][]byte{"r.bin": data})

	var buf bytes.Buffer
	if _, err := Pack(&buf, src, PackOptions{Level: 9}); err != nil {
		t.Fatalf("Pack: %v", err)
	}

	dst := t.TempDir()
	if _, err := Extract(bytes.NewReader(buf.Bytes()), dst, ExtractOptions{}); err != nil {
		t.Fatalf("Extract: %v", err)
	}
	got, err := os.ReadFile(filepath.Join(dst, "r.bin"))
	if err != nil {
		t.Fatalf("ReadFile: %v", err)
	}
	if !bytes.Equal(got, data) {
		t.Fatal("round-tripped data does not match original")
	}
}
