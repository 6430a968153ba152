package objectstore

import (
	"context"
	"fmt"
	"net"
	"os"
	"path"
	"strconv"
	"time"

	"github.com/pkg/sftp"
	"golang.org/x/crypto/ssh"
)

// sftpStore writes resumes to a remote host that serves them over HTTP
// from STORAGE_PUBLIC_BASE_URL.
type sftpStore struct {
	addr       string
	user       string
	password   string
	keyPath    string
	baseDir    string
	publicBase string
}

func NewSFTPStore(publicBase string) (Store, error) {
	host := os.Getenv("SFTP_HOST")
	user := os.Getenv("SFTP_USER")
	if host == "" || user == "" {
		return nil, fmt.Errorf("SFTP_HOST and SFTP_USER required for sftp storage")
	}
	port := os.Getenv("SFTP_PORT")
	if port == "" {
		port = "22"
	}
	if _, err := strconv.Atoi(port); err != nil {
		return nil, fmt.Errorf("invalid sftp port: %w", err)
	}
	if err := requirePublicBase("sftp", publicBase); err != nil {
		return nil, err
	}
	return &sftpStore{
		addr:       net.JoinHostPort(host, port),
		user:       user,
		password:   os.Getenv("SFTP_PASSWORD"),
		keyPath:    os.Getenv("SFTP_KEY_PATH"),
		baseDir:    os.Getenv("SFTP_BASE_DIR"),
		publicBase: publicBase,
	}, nil
}

func (s *sftpStore) Name() string {
	return "sftp"
}

func (s *sftpStore) Upload(ctx context.Context, key string, data []byte, _ string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	client, err := s.newClient()
	if err != nil {
		return err
	}
	defer client.Close()

	remotePath := joinKey(s.baseDir, key)
	if err := client.MkdirAll(path.Dir(remotePath)); err != nil {
		return fmt.Errorf("sftp mkdir: %w", err)
	}
	f, err := client.OpenFile(remotePath, os.O_CREATE|os.O_WRONLY|os.O_EXCL)
	if err != nil {
		return fmt.Errorf("sftp open %s: %w", remotePath, err)
	}
	defer f.Close()

	if _, err := f.Write(data); err != nil {
		return fmt.Errorf("sftp write %s: %w", remotePath, err)
	}
	return nil
}

func (s *sftpStore) PublicURL(key string) string {
	return publicURL(s.publicBase, joinKey("", key))
}

func (s *sftpStore) newClient() (*sftp.Client, error) {
	auths := []ssh.AuthMethod{}
	if s.keyPath != "" {
		key, err := os.ReadFile(s.keyPath)
		if err != nil {
			return nil, fmt.Errorf("read key: %w", err)
		}
		signer, err := ssh.ParsePrivateKey(key)
		if err != nil {
			return nil, fmt.Errorf("parse key: %w", err)
		}
		auths = append(auths, ssh.PublicKeys(signer))
	}
	if s.password != "" {
		auths = append(auths, ssh.Password(s.password))
	}
	if len(auths) == 0 {
		return nil, fmt.Errorf("sftp storage requires password or key")
	}
	cfg := ssh.ClientConfig{
		User:            s.user,
		Auth:            auths,
		HostKeyCallback: ssh.InsecureIgnoreHostKey(),
		Timeout:         10 * time.Second,
	}

	conn, err := ssh.Dial("tcp", s.addr, &cfg)
	if err != nil {
		return nil, fmt.Errorf("ssh dial: %w", err)
	}
	return sftp.NewClient(conn)
}
