package uploader

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"resty.dev/v3"
)

// Local downloads media into the upload directory the API server serves
// from. The stored location is the bare filename.
type Local struct {
	http *resty.Client
	dir  string
}

func NewLocal(dir string) *Local {
	return &Local{
		http: resty.New(),
		dir:  dir,
	}
}

func (u *Local) Upload(ctx context.Context, sourceURL, name string) (string, error) {
	res, err := u.http.R().WithContext(ctx).Get(sourceURL)
	if err != nil {
		return "", fmt.Errorf("fetch media: %w", err)
	}
	if !res.IsSuccess() {
		return "", fmt.Errorf("fetch media: unexpected status %s", res.Status())
	}

	if err := os.MkdirAll(u.dir, 0o755); err != nil {
		return "", fmt.Errorf("create upload dir: %w", err)
	}
	if err := os.WriteFile(filepath.Join(u.dir, name), res.Bytes(), 0o644); err != nil {
		return "", fmt.Errorf("write media: %w", err)
	}

	return name, nil
}
