// Package fixture stores and replays raw upstream payloads on disk so a run
// can be reproduced offline.
package fixture

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/couchcryptid/outage-overlay/internal/adapter/httpfetch"
)

// Dir serves payloads from files named after httpfetch.Request.Name.
type Dir struct {
	root string
}

// NewDir returns a Dir reading from root.
func NewDir(root string) *Dir {
	return &Dir{root: root}
}

// Get reads the payload saved for req. A missing file is an error wrapping
// os.ErrNotExist.
func (d *Dir) Get(ctx context.Context, req httpfetch.Request) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	data, err := os.ReadFile(filepath.Join(d.root, req.Name))
	if err != nil {
		return nil, fmt.Errorf("fixture %s: %w", req.Name, err)
	}
	return data, nil
}

// Recorder passes requests through to another Getter and saves every
// successful payload under root.
type Recorder struct {
	next   httpfetch.Getter
	root   string
	logger *slog.Logger
}

// NewRecorder creates root if needed and returns a recording Getter.
func NewRecorder(next httpfetch.Getter, root string, logger *slog.Logger) (*Recorder, error) {
	if err := os.MkdirAll(root, 0o755); err != nil {
		return nil, fmt.Errorf("create fixture dir: %w", err)
	}
	return &Recorder{next: next, root: root, logger: logger}, nil
}

// Get forwards req and saves a successful payload under req.Name.
func (r *Recorder) Get(ctx context.Context, req httpfetch.Request) ([]byte, error) {
	data, err := r.next.Get(ctx, req)
	if err != nil {
		return nil, err
	}
	path := filepath.Join(r.root, req.Name)
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return nil, fmt.Errorf("write fixture %s: %w", req.Name, err)
	}
	r.logger.Info("payload recorded", "source", req.Source, "path", path, "bytes", len(data))
	return data, nil
}
