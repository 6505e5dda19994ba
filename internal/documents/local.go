package documents

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
)

// Local writes documents to a directory for development. The hash is not a
// content address: it is mock_hash_<filename>.
type Local struct {
	dir       string
	urlPrefix string
}

func NewLocal(dir, urlPrefix string) (*Local, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create documents dir: %w", err)
	}
	if urlPrefix != "" && !strings.HasSuffix(urlPrefix, "/") {
		urlPrefix += "/"
	}
	return &Local{dir: dir, urlPrefix: urlPrefix}, nil
}

func (l *Local) Upload(ctx context.Context, doc Document) (Pinned, error) {
	if err := ctx.Err(); err != nil {
		return Pinned{}, fmt.Errorf("%w: %v", ErrUploadFailed, err)
	}
	name, err := cleanFilename(doc.Filename)
	if err != nil {
		return Pinned{}, err
	}
	// Prefix keeps two uploads of the same name from overwriting each other
	stored := uuid.NewString()[:8] + "_" + name
	if err := os.WriteFile(filepath.Join(l.dir, stored), doc.Bytes, 0o644); err != nil {
		return Pinned{}, fmt.Errorf("%w: write %s: %v", ErrUploadFailed, stored, err)
	}
	return Pinned{
		Hash: "mock_hash_" + name,
		URL:  l.urlPrefix + stored,
	}, nil
}
