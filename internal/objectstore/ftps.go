package objectstore

import (
	"bytes"
	"context"
	"crypto/tls"
	"fmt"
	"net"
	"os"
	"path"
	"strconv"
	"strings"
	"time"

	"github.com/secsy/goftp"
)

type ftpsStore struct {
	config     goftp.Config
	addr       string
	baseDir    string
	publicBase string
}

func NewFTPSStore(publicBase string) (Store, error) {
	host := os.Getenv("FTPS_HOST")
	user := os.Getenv("FTPS_USER")
	pw := os.Getenv("FTPS_PASSWORD")
	if host == "" || user == "" || pw == "" {
		return nil, fmt.Errorf("FTPS_HOST/FTPS_USER/FTPS_PASSWORD required for ftps storage")
	}
	port := os.Getenv("FTPS_PORT")
	if port == "" {
		port = "21"
	}
	if _, err := strconv.Atoi(port); err != nil {
		return nil, fmt.Errorf("invalid ftps port: %w", err)
	}
	if err := requirePublicBase("ftps", publicBase); err != nil {
		return nil, err
	}
	return &ftpsStore{
		config: goftp.Config{
			User:     user,
			Password: pw,
			// rely on network ACLs for now
			TLSConfig:          &tls.Config{InsecureSkipVerify: os.Getenv("FTPS_VERIFY_TLS") != "true"},
			TLSMode:            goftp.TLSExplicit,
			Timeout:            30 * time.Second,
			ConnectionsPerHost: 1,
		},
		addr:       net.JoinHostPort(host, port),
		baseDir:    os.Getenv("FTPS_BASE_DIR"),
		publicBase: publicBase,
	}, nil
}

func (f *ftpsStore) Name() string {
	return "ftps"
}

func (f *ftpsStore) Upload(ctx context.Context, key string, data []byte, _ string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	client, err := goftp.DialConfig(f.config, f.addr)
	if err != nil {
		return fmt.Errorf("ftps dial: %w", err)
	}
	defer client.Close()

	targetPath := joinKey(f.baseDir, key)
	if err := ensureFTPDir(client, path.Dir(targetPath)); err != nil {
		return err
	}
	if err := client.Store(targetPath, bytes.NewReader(data)); err != nil {
		return fmt.Errorf("ftps store: %w", err)
	}
	return nil
}

func (f *ftpsStore) PublicURL(key string) string {
	return publicURL(f.publicBase, joinKey("", key))
}

func ensureFTPDir(client *goftp.Client, dir string) error {
	if dir == "" || dir == "." || dir == "/" {
		return nil
	}
	current := ""
	if strings.HasPrefix(dir, "/") {
		current = "/"
	}
	for _, segment := range strings.Split(dir, "/") {
		if segment == "" {
			continue
		}
		current = path.Join(current, segment)
		if _, err := client.Mkdir(current); err != nil {
			if !strings.Contains(strings.ToLower(err.Error()), "file exists") {
				return fmt.Errorf("ftps mkdir %s: %w", current, err)
			}
		}
	}
	return nil
}
