package ssh

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"os"
	"path"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/pkg/sftp"
	"golang.org/x/crypto/ssh"
	"golang.org/x/crypto/ssh/knownhosts"

	"github.com/williamokano/tddf_uploader/pkg/storage"
)

type Backend struct {
	name       string
	sshClient  *ssh.Client
	sftpClient *sftp.Client
	remotePath string
}

func init() {
	storage.RegisterBackend("ssh", func(ctx context.Context, cfg storage.Config) (storage.Backend, error) {
		return New(cfg)
	})
}

// New creates an SFTP backend
func New(cfg storage.Config) (*Backend, error) {
	sshCfg, err := parseConfig(cfg)
	if err != nil {
		return nil, storage.WrapError(cfg.Name, "init", err)
	}

	clientConfig, err := sshCfg.clientConfig()
	if err != nil {
		return nil, storage.WrapError(cfg.Name, "init", err)
	}

	addr := net.JoinHostPort(sshCfg.Host, strconv.Itoa(sshCfg.Port))
	sshClient, err := ssh.Dial("tcp", addr, clientConfig)
	if err != nil {
		return nil, storage.WrapError(cfg.Name, "connect", errors.Join(storage.ErrConnFailed, err))
	}

	sftpClient, err := sftp.NewClient(sshClient)
	if err != nil {
		sshClient.Close()
		return nil, storage.WrapError(cfg.Name, "sftp init", err)
	}

	if err := sftpClient.MkdirAll(sshCfg.RemotePath); err != nil {
		sftpClient.Close()
		sshClient.Close()
		return nil, storage.WrapError(cfg.Name, "mkdir", err)
	}

	return &Backend{
		name:       cfg.Name,
		sshClient:  sshClient,
		sftpClient: sftpClient,
		remotePath: sshCfg.RemotePath,
	}, nil
}

func (b *Backend) Name() string { return b.name }
func (b *Backend) Type() string { return "ssh" }

// Write uploads a file via SFTP, renaming into place once complete
func (b *Backend) Write(ctx context.Context, sourcePath, destPath string) error {
	return storage.WithRetry(ctx, storage.DefaultRetryConfig(), func() error {
		localFile, err := os.Open(sourcePath)
		if err != nil {
			return err
		}
		defer localFile.Close()

		remotePath := path.Join(b.remotePath, destPath)
		if err := b.sftpClient.MkdirAll(path.Dir(remotePath)); err != nil {
			return storage.WrapError(b.name, "mkdir", err)
		}

		partial := remotePath + ".partial"
		remoteFile, err := b.sftpClient.Create(partial)
		if err != nil {
			return storage.WrapError(b.name, "create", err)
		}

		if _, err := io.Copy(remoteFile, localFile); err != nil {
			remoteFile.Close()
			b.sftpClient.Remove(partial)
			return storage.WrapError(b.name, "upload", err)
		}
		if err := remoteFile.Close(); err != nil {
			b.sftpClient.Remove(partial)
			return storage.WrapError(b.name, "upload", err)
		}

		if err := b.sftpClient.PosixRename(partial, remotePath); err != nil {
			b.sftpClient.Remove(partial)
			return storage.WrapError(b.name, "rename", err)
		}
		return nil
	})
}

// Delete removes a file via SFTP
func (b *Backend) Delete(ctx context.Context, filePath string) error {
	if err := b.sftpClient.Remove(path.Join(b.remotePath, filePath)); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return storage.WrapError(b.name, "delete", storage.ErrNotFound)
		}
		return storage.WrapError(b.name, "delete", err)
	}
	return nil
}

// List walks the remote tree and returns files matching pattern
func (b *Backend) List(ctx context.Context, pattern string) ([]storage.FileInfo, error) {
	var files []storage.FileInfo

	walker := b.sftpClient.Walk(b.remotePath)
	for walker.Step() {
		if err := ctx.Err(); err != nil {
			return nil, storage.WrapError(b.name, "list", err)
		}
		if err := walker.Err(); err != nil {
			return nil, storage.WrapError(b.name, "list", err)
		}

		info := walker.Stat()
		if info.IsDir() || info.Size() == 0 || strings.HasSuffix(info.Name(), ".partial") {
			continue
		}

		rel := strings.TrimPrefix(strings.TrimPrefix(walker.Path(), b.remotePath), "/")
		if !storage.MatchGlob(rel, pattern) {
			continue
		}

		files = append(files, storage.FileInfo{
			Path:    rel,
			Size:    info.Size(),
			ModTime: info.ModTime(),
		})
	}

	sort.Slice(files, func(i, j int) bool {
		return files[i].ModTime.After(files[j].ModTime)
	})

	return files, nil
}

// Stat returns file metadata
func (b *Backend) Stat(ctx context.Context, filePath string) (*storage.FileInfo, error) {
	info, err := b.sftpClient.Stat(path.Join(b.remotePath, filePath))
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, storage.ErrNotFound
		}
		return nil, storage.WrapError(b.name, "stat", err)
	}

	return &storage.FileInfo{
		Path:    filePath,
		Size:    info.Size(),
		ModTime: info.ModTime(),
	}, nil
}

// Exists checks if file exists
func (b *Backend) Exists(ctx context.Context, filePath string) (bool, error) {
	_, err := b.Stat(ctx, filePath)
	if errors.Is(err, storage.ErrNotFound) {
		return false, nil
	}
	return err == nil, err
}

// Close releases resources
func (b *Backend) Close() error {
	var errs []error
	if b.sftpClient != nil {
		errs = append(errs, b.sftpClient.Close())
	}
	if b.sshClient != nil {
		errs = append(errs, b.sshClient.Close())
	}
	return errors.Join(errs...)
}

func (c *Config) clientConfig() (*ssh.ClientConfig, error) {
	clientConfig := &ssh.ClientConfig{
		User:            c.User,
		HostKeyCallback: ssh.InsecureIgnoreHostKey(),
		Timeout:         30 * time.Second,
	}

	if c.KnownHosts != "" {
		callback, err := knownhosts.New(c.KnownHosts)
		if err != nil {
			return nil, fmt.Errorf("failed to load known_hosts: %w", err)
		}
		clientConfig.HostKeyCallback = callback
	}

	if c.Password != "" {
		clientConfig.Auth = append(clientConfig.Auth, ssh.Password(c.Password))
	}

	if c.KeyPath != "" {
		key, err := os.ReadFile(c.KeyPath)
		if err != nil {
			return nil, fmt.Errorf("failed to read SSH key: %w", err)
		}

		var signer ssh.Signer
		if c.KeyPassphrase != "" {
			signer, err = ssh.ParsePrivateKeyWithPassphrase(key, []byte(c.KeyPassphrase))
		} else {
			signer, err = ssh.ParsePrivateKey(key)
		}
		if err != nil {
			return nil, fmt.Errorf("failed to parse SSH key: %w", err)
		}

		clientConfig.Auth = append(clientConfig.Auth, ssh.PublicKeys(signer))
	}

	if len(clientConfig.Auth) == 0 {
		return nil, fmt.Errorf("password or key_path is required: %w", storage.ErrInvalidConfig)
	}

	return clientConfig, nil
}

func parseConfig(cfg storage.Config) (*Config, error) {
	sshCfg := &Config{
		Port:          storage.IntOption(cfg.Options, "port", 22),
		Password:      storage.StringOption(cfg.Options, "password", ""),
		KeyPath:       storage.StringOption(cfg.Options, "key_path", ""),
		KeyPassphrase: storage.StringOption(cfg.Options, "key_passphrase", ""),
		KnownHosts:    storage.StringOption(cfg.Options, "known_hosts", ""),
		RemotePath:    storage.StringOption(cfg.Options, "remote_path", cfg.BaseDir),
	}

	var err error
	if sshCfg.Host, err = storage.RequireString(cfg.Options, "host"); err != nil {
		return nil, err
	}
	if sshCfg.User, err = storage.RequireString(cfg.Options, "user"); err != nil {
		return nil, err
	}
	if sshCfg.RemotePath == "" {
		return nil, missingRemotePath()
	}

	return sshCfg, nil
}

func missingRemotePath() error {
	return fmt.Errorf("remote_path or base_dir is required: %w", storage.ErrInvalidConfig)
}
