package objectstore

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// LocalStore keeps resumes on the local filesystem. The dashboard API serves
// the directory under /files so PublicURL stays dereferenceable.
type LocalStore struct {
	dir        string
	publicBase string
}

func NewLocalStore(dir, publicBase string) (*LocalStore, error) {
	if strings.TrimSpace(dir) == "" {
		return nil, fmt.Errorf("DATA_DIR required for local storage backend")
	}
	if err := requirePublicBase("local", publicBase); err != nil {
		return nil, err
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create storage dir: %w", err)
	}
	return &LocalStore{dir: dir, publicBase: publicBase}, nil
}

func (l *LocalStore) Name() string {
	return "local"
}

// Dir is the root directory objects are written under.
func (l *LocalStore) Dir() string {
	return l.dir
}

func (l *LocalStore) Upload(ctx context.Context, key string, data []byte, _ string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	dest, err := l.resolve(key)
	if err != nil {
		return err
	}
	if _, err := os.Stat(dest); err == nil {
		return fmt.Errorf("object %s already exists", key)
	}
	if err := os.MkdirAll(filepath.Dir(dest), 0o755); err != nil {
		return err
	}
	tmp := dest + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return err
	}
	return os.Rename(tmp, dest)
}

func (l *LocalStore) PublicURL(key string) string {
	return publicURL(l.publicBase, joinKey("", key))
}

// resolve maps key into dir, refusing keys that escape it.
func (l *LocalStore) resolve(key string) (string, error) {
	clean := joinKey("", "/"+key)
	dest := filepath.Join(l.dir, filepath.FromSlash(clean))
	root, err := filepath.Abs(l.dir)
	if err != nil {
		return "", err
	}
	abs, err := filepath.Abs(dest)
	if err != nil {
		return "", err
	}
	if abs != root && !strings.HasPrefix(abs, root+string(filepath.Separator)) {
		return "", fmt.Errorf("object key %q escapes storage dir", key)
	}
	return dest, nil
}
