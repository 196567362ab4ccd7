package s3

import (
	"context"
	"errors"
	"os"
	"sort"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/feature/s3/manager"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"

	"github.com/williamokano/tddf_uploader/pkg/storage"
)

type Backend struct {
	name     string
	client   *s3.Client
	bucket   string
	prefix   string
	uploader *manager.Uploader
}

func init() {
	storage.RegisterBackend("s3", func(ctx context.Context, cfg storage.Config) (storage.Backend, error) {
		return New(ctx, cfg)
	})
}

// New creates an S3 (or S3 compatible) backend and checks the bucket is reachable
func New(ctx context.Context, cfg storage.Config) (*Backend, error) {
	s3Cfg, err := parseConfig(cfg)
	if err != nil {
		return nil, storage.WrapError(cfg.Name, "init", err)
	}

	awsCfg, err := config.LoadDefaultConfig(ctx,
		config.WithRegion(s3Cfg.Region),
		config.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(s3Cfg.AccessKeyID, s3Cfg.SecretAccessKey, ""),
		),
	)
	if err != nil {
		return nil, storage.WrapError(cfg.Name, "init", err)
	}

	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if s3Cfg.Endpoint != "" {
			o.BaseEndpoint = aws.String(s3Cfg.endpointURL())
		}
		o.UsePathStyle = s3Cfg.ForcePathStyle
	})

	if _, err := client.HeadBucket(ctx, &s3.HeadBucketInput{Bucket: aws.String(s3Cfg.Bucket)}); err != nil {
		return nil, storage.WrapError(cfg.Name, "connection test", storage.ErrConnFailed)
	}

	return &Backend{
		name:     cfg.Name,
		client:   client,
		bucket:   s3Cfg.Bucket,
		prefix:   strings.Trim(s3Cfg.Prefix, "/"),
		uploader: manager.NewUploader(client),
	}, nil
}

func (b *Backend) Name() string { return b.name }
func (b *Backend) Type() string { return "s3" }

// Write uploads a file with the multipart-capable upload manager
func (b *Backend) Write(ctx context.Context, sourcePath, destPath string) error {
	return storage.WithRetry(ctx, storage.DefaultRetryConfig(), func() error {
		file, err := os.Open(sourcePath)
		if err != nil {
			return err
		}
		defer file.Close()

		_, err = b.uploader.Upload(ctx, &s3.PutObjectInput{
			Bucket:      aws.String(b.bucket),
			Key:         aws.String(b.key(destPath)),
			Body:        file,
			ContentType: aws.String("application/octet-stream"),
		})
		if err != nil {
			return storage.WrapError(b.name, "upload", classify(err))
		}
		return nil
	})
}

// Delete removes an object from S3
func (b *Backend) Delete(ctx context.Context, objectPath string) error {
	_, err := b.client.DeleteObject(ctx, &s3.DeleteObjectInput{
		Bucket: aws.String(b.bucket),
		Key:    aws.String(b.key(objectPath)),
	})
	if err != nil {
		return storage.WrapError(b.name, "delete", classify(err))
	}
	return nil
}

// List returns objects matching the pattern
func (b *Backend) List(ctx context.Context, pattern string) ([]storage.FileInfo, error) {
	var files []storage.FileInfo

	paginator := s3.NewListObjectsV2Paginator(b.client, &s3.ListObjectsV2Input{
		Bucket: aws.String(b.bucket),
		Prefix: aws.String(b.key(storage.ListPrefix(pattern))),
	})

	for paginator.HasMorePages() {
		page, err := paginator.NextPage(ctx)
		if err != nil {
			return nil, storage.WrapError(b.name, "list", classify(err))
		}

		for _, obj := range page.Contents {
			rel := b.relative(aws.ToString(obj.Key))
			if rel == "" || !storage.MatchGlob(rel, pattern) {
				continue
			}

			size := aws.ToInt64(obj.Size)
			if size == 0 {
				continue
			}

			files = append(files, storage.FileInfo{
				Path:    rel,
				Size:    size,
				ModTime: aws.ToTime(obj.LastModified),
			})
		}
	}

	sort.Slice(files, func(i, j int) bool {
		return files[i].ModTime.After(files[j].ModTime)
	})

	return files, nil
}

// Stat returns metadata about an object
func (b *Backend) Stat(ctx context.Context, objectPath string) (*storage.FileInfo, error) {
	result, err := b.client.HeadObject(ctx, &s3.HeadObjectInput{
		Bucket: aws.String(b.bucket),
		Key:    aws.String(b.key(objectPath)),
	})
	if err != nil {
		err = classify(err)
		if errors.Is(err, storage.ErrNotFound) {
			return nil, storage.ErrNotFound
		}
		return nil, storage.WrapError(b.name, "stat", err)
	}

	return &storage.FileInfo{
		Path:    objectPath,
		Size:    aws.ToInt64(result.ContentLength),
		ModTime: aws.ToTime(result.LastModified),
	}, nil
}

// Exists checks if an object exists
func (b *Backend) Exists(ctx context.Context, objectPath string) (bool, error) {
	_, err := b.Stat(ctx, objectPath)
	if errors.Is(err, storage.ErrNotFound) {
		return false, nil
	}
	return err == nil, err
}

// Close is a no-op for S3
func (b *Backend) Close() error {
	return nil
}

func (b *Backend) key(rel string) string {
	if b.prefix == "" {
		return rel
	}
	return b.prefix + "/" + strings.TrimPrefix(rel, "/")
}

func (b *Backend) relative(key string) string {
	if b.prefix == "" {
		return key
	}
	return strings.TrimPrefix(strings.TrimPrefix(key, b.prefix), "/")
}

// classify maps SDK errors onto storage sentinels so retries and callers can react
func classify(err error) error {
	var notFound *types.NotFound
	var noSuchKey *types.NoSuchKey
	if errors.As(err, &notFound) || errors.As(err, &noSuchKey) {
		return storage.ErrNotFound
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return errors.Join(storage.ErrTimeout, err)
	}
	return err
}

func parseConfig(cfg storage.Config) (*Config, error) {
	s3Cfg := &Config{
		Endpoint:       storage.StringOption(cfg.Options, "endpoint", ""),
		Prefix:         storage.StringOption(cfg.Options, "prefix", cfg.BaseDir),
		UseSSL:         storage.BoolOption(cfg.Options, "use_ssl", true),
		ForcePathStyle: storage.BoolOption(cfg.Options, "force_path_style", false),
	}

	var err error
	if s3Cfg.Region, err = storage.RequireString(cfg.Options, "region"); err != nil {
		return nil, err
	}
	if s3Cfg.Bucket, err = storage.RequireString(cfg.Options, "bucket"); err != nil {
		return nil, err
	}
	if s3Cfg.AccessKeyID, err = storage.RequireString(cfg.Options, "access_key_id"); err != nil {
		return nil, err
	}
	if s3Cfg.SecretAccessKey, err = storage.RequireString(cfg.Options, "secret_access_key"); err != nil {
		return nil, err
	}

	return s3Cfg, nil
}
