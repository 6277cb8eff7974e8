package data

import (
	"errors"
	"strings"

	"github.com/tinoosan/launcher/internal/fp"
)

var (
	ErrInvalidSource = errors.New("source uri is required")
	ErrTargetPath    = errors.New("target directory is required")
)

// DownloadSource is one payload location plus the directory it lands in.
type DownloadSource struct {
	URI string `json:"uri" yaml:"uri" toml:"uri"`
	Dir string `json:"dir" yaml:"dir" toml:"dir"`
}

// Validate checks that both fields are present.
func (s DownloadSource) Validate() error {
	if strings.TrimSpace(s.URI) == "" {
		return ErrInvalidSource
	}
	if strings.TrimSpace(s.Dir) == "" {
		return ErrTargetPath
	}
	return nil
}

// Fingerprint identifies the source independent of incidental whitespace.
func (s DownloadSource) Fingerprint() string {
	return fp.Fingerprint(s.URI, s.Dir)
}

// IsMagnet reports whether the source is a BitTorrent magnet link.
func (s DownloadSource) IsMagnet() bool {
	if !strings.HasPrefix(s.URI, "magnet:?") {
		return false
	}
	return strings.Contains(s.URI, "xt=urn:btih:")
}
