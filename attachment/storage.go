// kotatsu/attachment/storage.go
package attachment

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
)

// FileStore is the capability interface both storage backends implement:
// save a file under a folder and delete it again. The implementation is
// selected at construction time.
type FileStore interface {
	Save(ctx context.Context, folder, filename string, data []byte, contentType string) (string, error)
	Delete(ctx context.Context, folder, filename string) error
}

// LocalStore implements FileStore on the local filesystem, under
// {base}/{folder}/{filename}.
type LocalStore struct {
	BaseDir string
}

func (ls *LocalStore) Save(_ context.Context, folder, filename string, data []byte, _ string) (string, error) {
	dir := filepath.Join(ls.BaseDir, filepath.FromSlash(folder))
	if err := os.MkdirAll(dir, 0755); err != nil {
		return "", err
	}
	if err := os.WriteFile(filepath.Join(dir, filename), data, 0644); err != nil {
		return "", err
	}
	return "/files/" + path.Join(folder, filename), nil
}

func (ls *LocalStore) Delete(_ context.Context, folder, filename string) error {
	err := os.Remove(filepath.Join(ls.BaseDir, filepath.FromSlash(folder), filename))
	if os.IsNotExist(err) {
		return nil
	}
	return err
}

// S3Store implements FileStore for S3-compatible object storage.
type S3Store struct {
	Client    *minio.Client
	Bucket    string
	PublicURL string
}

func NewS3Store(endpoint, accessKey, secretKey, bucket, region, publicURL string, useSSL bool) (*S3Store, error) {
	endpoint = strings.TrimPrefix(endpoint, "https://")
	endpoint = strings.TrimPrefix(endpoint, "http://")

	var creds *credentials.Credentials
	if accessKey == "" || secretKey == "" {
		// Use IAM role credentials if keys are not provided
		creds = credentials.NewIAM("")
	} else {
		creds = credentials.NewStaticV4(accessKey, secretKey, "")
	}

	client, err := minio.New(endpoint, &minio.Options{
		Creds:  creds,
		Secure: useSSL,
		Region: region,
	})
	if err != nil {
		return nil, err
	}

	exists, err := client.BucketExists(context.Background(), bucket)
	if err != nil {
		return nil, fmt.Errorf("failed to check bucket existence: %w", err)
	}
	if !exists {
		return nil, fmt.Errorf("bucket %s does not exist", bucket)
	}

	if publicURL == "" {
		protocol := "http"
		if useSSL {
			protocol = "https"
		}
		publicURL = fmt.Sprintf("%s://%s.%s", protocol, bucket, endpoint)
	}
	publicURL = strings.TrimSuffix(publicURL, "/")

	return &S3Store{
		Client:    client,
		Bucket:    bucket,
		PublicURL: publicURL,
	}, nil
}

func (s3 *S3Store) Save(ctx context.Context, folder, filename string, data []byte, contentType string) (string, error) {
	key := path.Join(folder, filename)
	_, err := s3.Client.PutObject(ctx, s3.Bucket, key, bytes.NewReader(data), int64(len(data)), minio.PutObjectOptions{
		ContentType: contentType,
	})
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("%s/%s", s3.PublicURL, key), nil
}

func (s3 *S3Store) Delete(ctx context.Context, folder, filename string) error {
	return s3.Client.RemoveObject(ctx, s3.Bucket, path.Join(folder, filename), minio.RemoveObjectOptions{})
}
