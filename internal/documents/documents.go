// Package documents pins charity supporting documents (government id,
// approval letter) and returns a content hash plus a retrievable URL.
package documents

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"
	"strings"

	"chariblock/internal/platform/config"
)

// ErrUploadFailed is returned by every backend when a document could not be
// pinned. Callers must not persist anything that references the document.
var ErrUploadFailed = errors.New("document upload failed")

// Document is one uploaded file.
type Document struct {
	Filename    string
	ContentType string
	Bytes       []byte
}

// Pinned is where a document ended up.
type Pinned struct {
	Hash string
	URL  string
}

// Uploader pins documents.
type Uploader interface {
	Upload(ctx context.Context, doc Document) (Pinned, error)
}

// New picks the backend from cfg: Pinata when both API keys are set, S3 when
// a bucket is set, otherwise the local directory.
func New(ctx context.Context, cfg config.DocumentsConfig, logger *slog.Logger) (Uploader, error) {
	switch {
	case cfg.PinataAPIKey != "" && cfg.PinataSecretKey != "":
		logger.InfoContext(ctx, "documents: pinning to IPFS via Pinata", "endpoint", cfg.PinataEndpoint)
		return NewPinata(cfg.PinataEndpoint, cfg.PinataGateway, cfg.PinataAPIKey, cfg.PinataSecretKey), nil
	case cfg.S3Bucket != "":
		logger.InfoContext(ctx, "documents: storing in S3", "bucket", cfg.S3Bucket, "region", cfg.S3Region)
		return NewS3(ctx, cfg.S3Bucket, cfg.S3Region)
	default:
		logger.WarnContext(ctx, "documents: no pinning backend configured, writing to local directory", "dir", cfg.LocalDir)
		return NewLocal(cfg.LocalDir, cfg.LocalURLPrefix)
	}
}

// cleanFilename strips directories and characters that would break a path
// or a multipart header.
func cleanFilename(name string) (string, error) {
	name = filepath.Base(strings.TrimSpace(strings.ReplaceAll(name, `\`, "/")))
	name = strings.Map(func(r rune) rune {
		if r == '"' || r < 0x20 {
			return -1
		}
		return r
	}, name)
	if name == "" || name == "." || name == "/" || name == ".." {
		return "", fmt.Errorf("%w: invalid filename", ErrUploadFailed)
	}
	return name, nil
}
