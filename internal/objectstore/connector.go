package objectstore

import (
	"context"
	"fmt"
	"net/url"
	"path"
	"strings"

	"github.com/rs/zerolog"
)

// Store writes resume files to an object store and hands out references to them.
type Store interface {
	Name() string
	Upload(ctx context.Context, key string, data []byte, contentType string) error
	PublicURL(key string) string
}

// Load instantiates the backend named by backend (local, s3, azure, sftp, ftps).
// publicBase overrides the URL prefix PublicURL uses; backends that have no
// native public URL (local, sftp, ftps) require it.
func Load(ctx context.Context, backend, localDir, publicBase string, logger zerolog.Logger) (Store, error) {
	var (
		store Store
		err   error
	)
	switch strings.TrimSpace(strings.ToLower(backend)) {
	case "", "local":
		store, err = NewLocalStore(localDir, publicBase)
	case "s3":
		store, err = NewS3Store(ctx, publicBase)
	case "azure":
		store, err = NewAzureBlobStore(publicBase)
	case "sftp":
		store, err = NewSFTPStore(publicBase)
	case "ftps":
		store, err = NewFTPSStore(publicBase)
	default:
		err = fmt.Errorf("unknown storage backend %q", backend)
	}
	if err != nil {
		return nil, err
	}
	logger.Info().Str("backend", store.Name()).Msg("initialized object store")
	return store, nil
}

func joinKey(prefix, key string) string {
	if prefix == "" {
		return path.Clean(key)
	}
	return path.Join(prefix, key)
}

// publicURL appends an escaped object key to base.
func publicURL(base, key string) string {
	segments := strings.Split(strings.TrimPrefix(key, "/"), "/")
	for i, s := range segments {
		segments[i] = url.PathEscape(s)
	}
	return strings.TrimRight(base, "/") + "/" + strings.Join(segments, "/")
}

func requirePublicBase(backend, publicBase string) error {
	if strings.TrimSpace(publicBase) == "" {
		return fmt.Errorf("STORAGE_PUBLIC_BASE_URL required for %s backend", backend)
	}
	return nil
}
