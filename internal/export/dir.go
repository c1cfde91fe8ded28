package export

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
)

// DirSink stores each bundle as <Dir>/<session-id>.mvdl.
type DirSink struct {
	Dir string
}

// NewDirSink creates the directory if needed.
func NewDirSink(dir string) (*DirSink, error) {
	if dir == "" {
		return nil, fmt.Errorf("dir sink: empty directory")
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("dir sink: %w", err)
	}
	return &DirSink{Dir: dir}, nil
}

// Path returns the file a session's bundle is stored in.
func (d *DirSink) Path(sessionID string) string {
	return filepath.Join(d.Dir, sessionID+Extension)
}

// Write stores b atomically (temp file + rename). Writing the same bundle
// twice is a no-op; writing a different bundle under an existing ID fails
// with ErrConflict.
func (d *DirSink) Write(ctx context.Context, b *Bundle) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	if err := validID(b.SessionID); err != nil {
		return "", fmt.Errorf("write bundle: %w", err)
	}

	path := d.Path(b.SessionID)
	if existing, err := d.Read(ctx, b.SessionID); err == nil {
		if existing.Digest != b.Digest {
			return "", fmt.Errorf("write bundle %s: %w", b.SessionID, ErrConflict)
		}
		return path, nil
	} else if !errors.Is(err, ErrNotFound) {
		return "", fmt.Errorf("write bundle %s: %w", b.SessionID, err)
	}

	data, err := Encode(b)
	if err != nil {
		return "", err
	}
	tmp, err := os.CreateTemp(d.Dir, "."+b.SessionID+"-*")
	if err != nil {
		return "", fmt.Errorf("write bundle %s: %w", b.SessionID, err)
	}
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return "", fmt.Errorf("write bundle %s: %w", b.SessionID, err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return "", fmt.Errorf("write bundle %s: %w", b.SessionID, err)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		os.Remove(tmp.Name())
		return "", fmt.Errorf("write bundle %s: %w", b.SessionID, err)
	}
	return path, nil
}

// Read loads and verifies the bundle for sessionID.
func (d *DirSink) Read(_ context.Context, sessionID string) (*Bundle, error) {
	if err := validID(sessionID); err != nil {
		return nil, fmt.Errorf("read bundle: %w", err)
	}
	return ReadFile(d.Path(sessionID))
}

// List returns every bundle in the directory, ordered by session ID.
func (d *DirSink) List(ctx context.Context) ([]Summary, error) {
	entries, err := os.ReadDir(d.Dir)
	if err != nil {
		return nil, fmt.Errorf("list bundles: %w", err)
	}
	var ids []string
	for _, e := range entries {
		name := e.Name()
		if e.IsDir() || strings.HasPrefix(name, ".") || !strings.HasSuffix(name, Extension) {
			continue
		}
		ids = append(ids, strings.TrimSuffix(name, Extension))
	}
	sort.Strings(ids)

	out := make([]Summary, 0, len(ids))
	for _, id := range ids {
		b, err := d.Read(ctx, id)
		if err != nil {
			return nil, err
		}
		out = append(out, b.Summary())
	}
	return out, nil
}

// Close is a no-op.
func (d *DirSink) Close() error { return nil }

// ReadFile loads and verifies a bundle file.
func ReadFile(path string) (*Bundle, error) {
	data, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("read %s: %w", filepath.Base(path), ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("read bundle: %w", err)
	}
	return DecodeBundle(data)
}

// validID rejects IDs that would escape the archive root.
func validID(id string) error {
	if id == "" || id == "." || id == ".." {
		return fmt.Errorf("invalid session id %q", id)
	}
	if strings.ContainsAny(id, `/\`) {
		return fmt.Errorf("invalid session id %q: must not be a path", id)
	}
	return nil
}
