package store

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"strings"
	"time"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
	"golang.org/x/sync/errgroup"
)

const (
	initAttempts     = 5
	initBaseInterval = time.Second
	initMaxInterval  = 30 * time.Second
	deleteBatchLimit = 4
)

// MinioGateway implements Gateway against a MinIO (or any S3-compatible)
// endpoint.
type MinioGateway struct {
	client *minio.Client
	bucket string
	urlTTL time.Duration
}

// NewMinioGateway connects to the endpoint and ensures the bucket exists,
// retrying with doubling intervals while the store comes up.
func NewMinioGateway(ctx context.Context, cfg Config) (*MinioGateway, error) {
	if cfg.Endpoint == "" {
		return nil, fmt.Errorf("empty store endpoint")
	}
	if cfg.Bucket == "" {
		return nil, fmt.Errorf("empty store bucket")
	}
	if cfg.SignedURLTTL <= 0 {
		cfg.SignedURLTTL = time.Hour
	}

	var lastErr error
	interval := initBaseInterval

	for attempt := 0; attempt < initAttempts; attempt++ {
		if ctx.Err() != nil {
			return nil, fmt.Errorf("context canceled before store init: %w", ctx.Err())
		}

		client, err := minio.New(cfg.Endpoint, &minio.Options{
			Creds:  credentials.NewStaticV4(cfg.AccessKey, cfg.SecretKey, ""),
			Secure: cfg.UseSSL,
		})
		if err != nil {
			lastErr = fmt.Errorf("create store client: %w", err)
		} else if err := ensureBucket(ctx, client, cfg.Bucket); err != nil {
			lastErr = err
		} else {
			return &MinioGateway{client: client, bucket: cfg.Bucket, urlTTL: cfg.SignedURLTTL}, nil
		}

		if attempt < initAttempts-1 {
			log.Printf("Store init attempt %d failed: %v, retrying in %s", attempt+1, lastErr, interval)
			select {
			case <-ctx.Done():
				return nil, fmt.Errorf("context canceled while waiting to retry store init: %w", ctx.Err())
			case <-time.After(interval):
				interval *= 2
				if interval > initMaxInterval {
					interval = initMaxInterval
				}
			}
		}
	}

	return nil, fmt.Errorf("store init failed after %d attempts: %w", initAttempts, lastErr)
}

func ensureBucket(ctx context.Context, client *minio.Client, bucket string) error {
	exists, err := client.BucketExists(ctx, bucket)
	if err != nil {
		return fmt.Errorf("check bucket exists: %w", err)
	}
	if exists {
		return nil
	}
	if err := client.MakeBucket(ctx, bucket, minio.MakeBucketOptions{}); err != nil {
		return fmt.Errorf("create bucket: %w", err)
	}
	return nil
}

func (g *MinioGateway) Download(ctx context.Context, ref, localPath string) error {
	object, err := CleanRef(ref)
	if err != nil {
		return err
	}

	if err := g.client.FGetObject(ctx, g.bucket, object, localPath, minio.GetObjectOptions{}); err != nil {
		if minio.ToErrorResponse(err).Code == "NoSuchKey" {
			return fmt.Errorf("download %s: %w", ref, ErrNotFound)
		}
		return fmt.Errorf("download %s: %w", ref, err)
	}
	return nil
}

func (g *MinioGateway) Upload(ctx context.Context, localPath, ref string) error {
	object, err := CleanRef(ref)
	if err != nil {
		return err
	}

	if _, err := g.client.FPutObject(ctx, g.bucket, object, localPath, minio.PutObjectOptions{}); err != nil {
		return fmt.Errorf("upload %s to %s: %w", localPath, ref, err)
	}
	return nil
}

func (g *MinioGateway) List(ctx context.Context, prefix string) ([]string, error) {
	if prefix != "" && !strings.HasSuffix(prefix, "/") {
		prefix += "/"
	}

	var refs []string
	for info := range g.client.ListObjects(ctx, g.bucket, minio.ListObjectsOptions{
		Prefix:    prefix,
		Recursive: true,
	}) {
		if info.Err != nil {
			return nil, fmt.Errorf("list %s: %w", prefix, info.Err)
		}
		if strings.HasSuffix(info.Key, "/") {
			continue
		}
		refs = append(refs, info.Key)
	}
	return refs, nil
}

func (g *MinioGateway) Delete(ctx context.Context, ref string) error {
	object, err := CleanRef(ref)
	if err != nil {
		return err
	}

	if err := g.client.RemoveObject(ctx, g.bucket, object, minio.RemoveObjectOptions{}); err != nil {
		if minio.ToErrorResponse(err).Code == "NoSuchKey" {
			return fmt.Errorf("delete %s: %w", ref, ErrNotFound)
		}
		return fmt.Errorf("delete %s: %w", ref, err)
	}
	return nil
}

func (g *MinioGateway) DeleteBatch(ctx context.Context, refs []string) error {
	grp, ctx := errgroup.WithContext(ctx)
	grp.SetLimit(deleteBatchLimit)

	for _, ref := range refs {
		ref := ref
		grp.Go(func() error {
			return g.Delete(ctx, ref)
		})
	}
	return grp.Wait()
}

func (g *MinioGateway) SignedURL(ctx context.Context, ref, method string) (string, error) {
	object, err := CleanRef(ref)
	if err != nil {
		return "", err
	}

	switch strings.ToUpper(method) {
	case http.MethodGet, "":
		u, err := g.client.PresignedGetObject(ctx, g.bucket, object, g.urlTTL, nil)
		if err != nil {
			return "", fmt.Errorf("sign GET url for %s: %w", ref, err)
		}
		return u.String(), nil
	case http.MethodPut:
		u, err := g.client.PresignedPutObject(ctx, g.bucket, object, g.urlTTL)
		if err != nil {
			return "", fmt.Errorf("sign PUT url for %s: %w", ref, err)
		}
		return u.String(), nil
	default:
		return "", fmt.Errorf("unsupported signed url method: %s", method)
	}
}
