// Package integrity checks a completed download against the expectations
// carried on its Request: size, digest, content type, and (for archive
// extensions) basic archive-shape validity.
package integrity

import (
	"archive/zip"
	"crypto/md5"
	"crypto/sha256"
	"crypto/sha512"
	"encoding/hex"
	"fmt"
	"hash"
	"io"
	"mime"
	"net/http"
	"os"
	"path/filepath"
	"strings"

	"github.com/duskfetch/dlengine/internal/model"
)

var archiveExtensions = map[string]bool{
	".apk":  true,
	".apks": true,
}

// SignatureVerifier is a host-provided hook for domain-specific signature
// checks (e.g. APK signing block validation). A download with signature
// verification enabled and no verifier configured is treated as a failure.
type SignatureVerifier interface {
	VerifySignature(path string) error
}

// Result is the outcome of a full integrity pass.
type Result struct {
	OK     bool
	Errors []string
}

// Options controls which checks Verify runs.
type Options struct {
	ExpectedSize     *uint64
	ExpectedChecksum string
	ChecksumAlgo     model.ChecksumAlgorithm
	ExpectedMediaType string
	CheckArchiveShape bool
	RequireSignature  bool
	Signer            SignatureVerifier
}

// Verify runs every configured check against the file at path, collecting
// every failure rather than stopping at the first one.
func Verify(path string, opts Options) Result {
	var errs []string

	if opts.ExpectedSize != nil {
		if err := checkSize(path, *opts.ExpectedSize); err != nil {
			errs = append(errs, err.Error())
		}
	}

	if opts.ExpectedChecksum != "" {
		if err := checkDigest(path, opts.ChecksumAlgo, opts.ExpectedChecksum); err != nil {
			errs = append(errs, err.Error())
		}
	}

	if opts.ExpectedMediaType != "" {
		if err := checkMediaType(path, opts.ExpectedMediaType); err != nil {
			errs = append(errs, err.Error())
		}
	}

	if opts.CheckArchiveShape && archiveExtensions[strings.ToLower(filepath.Ext(path))] {
		if err := checkArchiveShape(path); err != nil {
			errs = append(errs, err.Error())
		}
	}

	if opts.RequireSignature {
		if opts.Signer == nil {
			errs = append(errs, "signature verification required but no signer configured")
		} else if err := opts.Signer.VerifySignature(path); err != nil {
			errs = append(errs, fmt.Sprintf("signature verification failed: %v", err))
		}
	}

	return Result{OK: len(errs) == 0, Errors: errs}
}

func checkSize(path string, expected uint64) error {
	info, err := os.Stat(path)
	if err != nil {
		return fmt.Errorf("size check: %w", err)
	}
	if uint64(info.Size()) != expected {
		return fmt.Errorf("size mismatch: expected %d, got %d", expected, info.Size())
	}
	return nil
}

func checkDigest(path string, algo model.ChecksumAlgorithm, expected string) error {
	var h hash.Hash
	switch algo {
	case model.ChecksumMD5:
		h = md5.New()
	case model.ChecksumSHA256, "":
		h = sha256.New()
	case model.ChecksumSHA512:
		h = sha512.New()
	default:
		return fmt.Errorf("unsupported checksum algorithm: %s", algo)
	}

	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("digest check: %w", err)
	}
	defer f.Close()

	if _, err := io.Copy(h, f); err != nil {
		return fmt.Errorf("digest check: %w", err)
	}

	got := hex.EncodeToString(h.Sum(nil))
	want := strings.ToLower(strings.TrimSpace(expected))
	if got != want {
		return fmt.Errorf("checksum mismatch: expected %s, got %s", want, got)
	}
	return nil
}

func checkMediaType(path, expected string) error {
	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("content-type check: %w", err)
	}
	defer f.Close()

	buf := make([]byte, 512)
	n, _ := f.Read(buf)
	detected := http.DetectContentType(buf[:n])

	detectedBase, _, _ := mime.ParseMediaType(detected)
	expectedBase, _, err := mime.ParseMediaType(expected)
	if err != nil {
		expectedBase = strings.TrimSpace(strings.Split(expected, ";")[0])
	}

	if detectedBase != expectedBase {
		return fmt.Errorf("content type mismatch: expected %s, detected %s", expectedBase, detectedBase)
	}
	return nil
}

func checkArchiveShape(path string) error {
	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("archive check: %w", err)
	}
	defer f.Close()

	magic := make([]byte, 4)
	if _, err := io.ReadFull(f, magic); err != nil {
		return fmt.Errorf("archive check: file too small to be a zip-based archive")
	}
	if magic[0] != 'P' || magic[1] != 'K' {
		return fmt.Errorf("archive check: missing PK magic bytes")
	}

	info, err := f.Stat()
	if err != nil {
		return fmt.Errorf("archive check: %w", err)
	}
	zr, err := zip.NewReader(f, info.Size())
	if err != nil {
		return fmt.Errorf("archive check: %w", err)
	}
	if len(zr.File) == 0 {
		return fmt.Errorf("archive check: archive contains no entries")
	}
	return nil
}
