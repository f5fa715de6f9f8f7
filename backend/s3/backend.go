// Package s3 implements a backend over an S3-compatible object store.
// Files map to objects; directories are zero-byte marker objects with a
// trailing slash and a directory content type.
package s3

import (
	"context"
	"strings"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"

	"github.com/nwerse/virtfs/backend"
	"github.com/nwerse/virtfs/data"
)

const directoryContentType = "application/x-directory"

type S3Backend struct {
	client     *minio.Client
	bucketName string
}

func NewS3Backend(endpoint, bucketName, accessKey, secretKey string, useSSL bool) (*S3Backend, error) {
	client, err := minio.New(endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(accessKey, secretKey, ""),
		Secure: useSSL,
	})
	if err != nil {
		return nil, err
	}

	return &S3Backend{
		client:     client,
		bucketName: bucketName,
	}, nil
}

// Name returns the identifier name defined for this backend.
func (*S3Backend) Name() string {
	return "s3"
}

// Open is part of the lifecycle behaviour and gets called when the backend is mounted.
func (sb *S3Backend) Open(ctx context.Context) error {
	exists, err := sb.client.BucketExists(ctx, sb.bucketName)
	if err != nil {
		return err
	}

	if !exists {
		return data.ErrMountFailed
	}

	return nil
}

// Close is part of the lifecycle behaviour and gets called when the backend is unmounted.
func (sb *S3Backend) Close(ctx context.Context) error {
	// The client is stateless; the bucket persists independently.
	return nil
}

// Capabilities returns the capabilities supported by this backend.
func (sb *S3Backend) Capabilities() *backend.Capabilities {
	return &backend.Capabilities{
		Capabilities: []backend.Capability{
			backend.CapabilityStorage,
			backend.CapabilityPersistent,
		},
	}
}

// objectKey maps a backend-relative virtual path onto an object key.
// Directory paths keep their trailing slash; the root maps to "".
func objectKey(path data.VirtualPath) string {
	return strings.TrimPrefix(path.String(), "/")
}

func isNoSuchKey(err error) bool {
	return minio.ToErrorResponse(err).Code == "NoSuchKey"
}
