// Package export stores the output of a run locally and, when configured,
// in an S3-compatible bucket.
package export

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"

	"github.com/dmitrijs2005/gophid/internal/logging"
)

// Uploader puts one object.
type Uploader interface {
	Upload(ctx context.Context, key string, body []byte) error
}

// Location tells where an export ended up; empty fields were not written.
type Location struct {
	Path string
	Key  string
}

type Exporter struct {
	path     string
	uploader Uploader
	log      logging.Logger
	now      func() time.Time
}

// NewExporter writes to path when it is non-empty and uploads through u
// when it is non-nil.
func NewExporter(path string, u Uploader, log logging.Logger) *Exporter {
	return &Exporter{path: path, uploader: u, log: log, now: time.Now}
}

func (e *Exporter) Export(ctx context.Context, data []byte) (Location, error) {
	var loc Location

	if e.path != "" {
		if err := writeFile(e.path, data); err != nil {
			return loc, fmt.Errorf("failed to write %s: %w", e.path, err)
		}
		loc.Path = e.path
		e.log.Info(ctx, "output written", "path", e.path, "bytes", len(data))
	}

	if e.uploader != nil {
		key := StorageKey(e.now())
		if err := e.uploader.Upload(ctx, key, data); err != nil {
			return loc, fmt.Errorf("failed to upload output: %w", err)
		}
		loc.Key = key
		e.log.Info(ctx, "output uploaded", "key", key, "bytes", len(data))
	}

	return loc, nil
}

// StorageKey is runs/<yyyy>/<mm>/<dd>/<uuid>.csv.
func StorageKey(d time.Time) string {
	d = d.UTC()
	return fmt.Sprintf("runs/%04d/%02d/%02d/%s.csv", d.Year(), int(d.Month()), d.Day(), uuid.New())
}

func writeFile(path string, data []byte) error {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return err
		}
	}
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return err
	}
	return os.Rename(tmp, path)
}
