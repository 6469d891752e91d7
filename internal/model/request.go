package model

import "github.com/google/uuid"

// ChecksumAlgorithm names the digest used to verify a finished download.
type ChecksumAlgorithm string

const (
	ChecksumMD5    ChecksumAlgorithm = "MD5"
	ChecksumSHA256 ChecksumAlgorithm = "SHA256"
	ChecksumSHA512 ChecksumAlgorithm = "SHA512"
)

// DestinationKind selects how a request's target directory is derived.
type DestinationKind string

const (
	DestinationAuto   DestinationKind = "auto"
	DestinationCustom DestinationKind = "custom"
	DestinationScoped DestinationKind = "scoped"
)

// Destination describes where a download's file should be placed.
type Destination struct {
	Kind DestinationKind `json:"type" yaml:"type"`
	Path string          `json:"path,omitempty" yaml:"path,omitempty"` // absolute path for Custom, relative path for Scoped
}

func AutoDestination() Destination                { return Destination{Kind: DestinationAuto} }
func CustomDestination(absPath string) Destination { return Destination{Kind: DestinationCustom, Path: absPath} }
func ScopedDestination(relPath string) Destination { return Destination{Kind: DestinationScoped, Path: relPath} }

// Request is the immutable description of a single download submitted by a
// caller. Its ID is the handle key used everywhere else in the engine.
type Request struct {
	ID                string            `json:"id" yaml:"id"`
	URL               string            `json:"url" yaml:"url"`
	FileName          string            `json:"fileName" yaml:"fileName"`
	Destination       Destination       `json:"destination" yaml:"destination"`
	Headers           map[string]string `json:"headers" yaml:"headers"`
	ExpectedChecksum  string            `json:"expectedChecksum,omitempty" yaml:"expectedChecksum,omitempty"`
	ChecksumAlgorithm ChecksumAlgorithm `json:"checksumAlgorithm" yaml:"checksumAlgorithm"`
	ExpectedMediaType string            `json:"expectedMediaType,omitempty" yaml:"expectedMediaType,omitempty"`
}

// NewRequest fills in a UUID when ID is empty and applies default field
// values, mirroring the "immutable after creation" contract from the data
// model: the returned value should never be mutated by the caller again.
func NewRequest(r Request) Request {
	if r.ID == "" {
		r.ID = uuid.NewString()
	}
	if r.Headers == nil {
		r.Headers = map[string]string{}
	}
	if r.ChecksumAlgorithm == "" {
		r.ChecksumAlgorithm = ChecksumSHA256
	}
	return r
}
