package integrity

import (
	"archive/zip"
	"crypto/sha256"
	"encoding/hex"
	"os"
	"path/filepath"
	"testing"

	"github.com/duskfetch/dlengine/internal/model"
)

func writeFile(t *testing.T, dir, name string, content []byte) string {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, content, 0644); err != nil {
		t.Fatalf("setup: %v", err)
	}
	return path
}

func TestVerifySizeMatch(t *testing.T) {
	dir := t.TempDir()
	path := writeFile(t, dir, "f.bin", []byte("hello world"))
	size := uint64(11)

	result := Verify(path, Options{ExpectedSize: &size})
	if !result.OK {
		t.Fatalf("expected size check to pass, got errors: %v", result.Errors)
	}
}

func TestVerifySizeMismatch(t *testing.T) {
	dir := t.TempDir()
	path := writeFile(t, dir, "f.bin", []byte("hello world"))
	size := uint64(999)

	result := Verify(path, Options{ExpectedSize: &size})
	if result.OK {
		t.Fatalf("expected size mismatch to fail verification")
	}
}

func TestVerifyChecksumSHA256Match(t *testing.T) {
	dir := t.TempDir()
	content := []byte("the quick brown fox")
	path := writeFile(t, dir, "f.bin", content)
	sum := sha256.Sum256(content)
	expected := hex.EncodeToString(sum[:])

	result := Verify(path, Options{ExpectedChecksum: expected, ChecksumAlgo: model.ChecksumSHA256})
	if !result.OK {
		t.Fatalf("expected checksum match, got errors: %v", result.Errors)
	}
}

func TestVerifyChecksumMismatchReportsOneError(t *testing.T) {
	dir := t.TempDir()
	path := writeFile(t, dir, "f.bin", []byte("actual content"))

	result := Verify(path, Options{ExpectedChecksum: "deadbeef", ChecksumAlgo: model.ChecksumSHA256})
	if result.OK {
		t.Fatalf("expected checksum mismatch to fail")
	}
	if len(result.Errors) != 1 {
		t.Fatalf("expected exactly one error, got %v", result.Errors)
	}
}

func TestVerifyCollectsMultipleFailuresAtOnce(t *testing.T) {
	dir := t.TempDir()
	path := writeFile(t, dir, "f.bin", []byte("small"))
	wrongSize := uint64(99999)

	result := Verify(path, Options{
		ExpectedSize:     &wrongSize,
		ExpectedChecksum: "deadbeef",
		ChecksumAlgo:     model.ChecksumSHA256,
	})
	if result.OK {
		t.Fatalf("expected verification to fail")
	}
	if len(result.Errors) != 2 {
		t.Fatalf("expected both the size and checksum failures to be reported, got %v", result.Errors)
	}
}

func TestVerifyMediaTypeMatch(t *testing.T) {
	dir := t.TempDir()
	path := writeFile(t, dir, "f.txt", []byte("plain text content here"))

	result := Verify(path, Options{ExpectedMediaType: "text/plain; charset=utf-8"})
	if !result.OK {
		t.Fatalf("expected content type match, got errors: %v", result.Errors)
	}
}

func TestVerifyMediaTypeMismatch(t *testing.T) {
	dir := t.TempDir()
	path := writeFile(t, dir, "f.txt", []byte("plain text content here"))

	result := Verify(path, Options{ExpectedMediaType: "application/zip"})
	if result.OK {
		t.Fatalf("expected content type mismatch to fail")
	}
}

func TestVerifyArchiveShapeAcceptsValidZip(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "package.apk")
	f, err := os.Create(path)
	if err != nil {
		t.Fatalf("setup: %v", err)
	}
	zw := zip.NewWriter(f)
	w, err := zw.Create("AndroidManifest.xml")
	if err != nil {
		t.Fatalf("setup: %v", err)
	}
	if _, err := w.Write([]byte("<manifest/>")); err != nil {
		t.Fatalf("setup: %v", err)
	}
	if err := zw.Close(); err != nil {
		t.Fatalf("setup: %v", err)
	}
	f.Close()

	result := Verify(path, Options{CheckArchiveShape: true})
	if !result.OK {
		t.Fatalf("expected a valid zip-shaped .apk to pass, got errors: %v", result.Errors)
	}
}

func TestVerifyArchiveShapeRejectsNonZip(t *testing.T) {
	dir := t.TempDir()
	path := writeFile(t, dir, "package.apk", []byte("this is not a zip file at all"))

	result := Verify(path, Options{CheckArchiveShape: true})
	if result.OK {
		t.Fatalf("expected a non-zip .apk to fail archive shape check")
	}
}

func TestVerifyArchiveShapeSkippedForNonArchiveExtension(t *testing.T) {
	dir := t.TempDir()
	path := writeFile(t, dir, "readme.txt", []byte("this is not a zip file at all"))

	result := Verify(path, Options{CheckArchiveShape: true})
	if !result.OK {
		t.Fatalf("expected the archive shape check to be skipped for a non-archive extension, got errors: %v", result.Errors)
	}
}

type stubSigner struct{ err error }

func (s stubSigner) VerifySignature(string) error { return s.err }

func TestVerifyRequiresSignerWhenSignatureRequired(t *testing.T) {
	dir := t.TempDir()
	path := writeFile(t, dir, "f.bin", []byte("x"))

	result := Verify(path, Options{RequireSignature: true})
	if result.OK {
		t.Fatalf("expected missing signer to fail verification")
	}
}

func TestVerifySignerInvokedAndHonored(t *testing.T) {
	dir := t.TempDir()
	path := writeFile(t, dir, "f.bin", []byte("x"))

	result := Verify(path, Options{RequireSignature: true, Signer: stubSigner{}})
	if !result.OK {
		t.Fatalf("expected a passing signer to satisfy verification, got errors: %v", result.Errors)
	}
}
