package s3

import (
	"bytes"
	"context"
	"io"
	"strings"

	"github.com/minio/minio-go/v7"

	"github.com/nwerse/virtfs/backend"
	"github.com/nwerse/virtfs/data"
)

// Create creates a file or directory. The object store has no real
// hierarchy, so intermediate directories need no materialization; only the
// requested entry gets a marker or an empty object.
func (sb *S3Backend) Create(ctx context.Context, path data.VirtualPath) error {
	if path.IsRoot() {
		return data.ErrExist
	}

	exists, err := sb.existsAnyShape(ctx, path)
	if err != nil {
		return err
	}
	if exists {
		return data.ErrExist
	}

	contentType := ""
	if path.IsDirectory() {
		contentType = directoryContentType
	}

	_, err = sb.client.PutObject(ctx, sb.bucketName, objectKey(path),
		bytes.NewReader(nil), 0, minio.PutObjectOptions{ContentType: contentType})

	return err
}

// Delete removes the entry at path.
func (sb *S3Backend) Delete(ctx context.Context, path data.VirtualPath, recursive bool) error {
	key := objectKey(path)

	if !path.IsDirectory() {
		if _, err := sb.client.StatObject(ctx, sb.bucketName, key, minio.StatObjectOptions{}); err != nil {
			if isNoSuchKey(err) {
				if dir, derr := sb.directoryExists(ctx, path.AsDirectory()); derr == nil && dir {
					return data.ErrIsDirectory
				}
				return data.ErrNotExist
			}
			return err
		}

		return sb.client.RemoveObject(ctx, sb.bucketName, key, minio.RemoveObjectOptions{})
	}

	if !path.IsRoot() {
		exists, err := sb.directoryExists(ctx, path)
		if err != nil {
			return err
		}
		if !exists {
			return data.ErrNotExist
		}
	}

	children, err := sb.childKeys(ctx, key)
	if err != nil {
		return err
	}
	if len(children) > 0 && !recursive {
		return data.ErrDirectoryNotEmpty
	}

	for _, child := range children {
		if err := sb.client.RemoveObject(ctx, sb.bucketName, child, minio.RemoveObjectOptions{}); err != nil {
			return err
		}
	}

	if !path.IsRoot() {
		return sb.client.RemoveObject(ctx, sb.bucketName, key, minio.RemoveObjectOptions{})
	}

	return nil
}

// Exists reports whether an entry of the path's shape exists.
func (sb *S3Backend) Exists(ctx context.Context, path data.VirtualPath) (bool, error) {
	if path.IsRoot() {
		return true, nil
	}

	if path.IsDirectory() {
		return sb.directoryExists(ctx, path)
	}

	_, err := sb.client.StatObject(ctx, sb.bucketName, objectKey(path), minio.StatObjectOptions{})
	if err != nil {
		if isNoSuchKey(err) {
			return false, nil
		}
		return false, err
	}

	return true, nil
}

// Enumerate lists objects below the directory path. The listing is driven by
// the store itself; entries arrive in key order and the sequence stays lazy.
func (sb *S3Backend) Enumerate(ctx context.Context, path data.VirtualPath, pattern string, scope data.EnumerateScope, targets data.EnumerateTargets) data.Enumeration {
	match, err := backend.CompilePattern(pattern)
	if err != nil {
		return data.FailedEnumeration(err)
	}

	if !path.IsDirectory() {
		return data.FailedEnumeration(data.ErrNotDirectory)
	}

	prefix := objectKey(path)

	return func(yield func(data.VirtualPath, error) bool) {
		// Without Recursive the listing uses "/" as delimiter, which
		// collapses deeper keys into trailing-slash prefix entries.
		objects := sb.client.ListObjects(ctx, sb.bucketName, minio.ListObjectsOptions{
			Prefix:    prefix,
			Recursive: scope == data.ScopeRecursive,
		})

		for info := range objects {
			if info.Err != nil {
				yield(data.VirtualPath{}, info.Err)
				return
			}

			if info.Key == prefix {
				continue
			}

			isDir := strings.HasSuffix(info.Key, "/")
			wanted := isDir && targets.WantsDirectories() || !isDir && targets.WantsFiles()
			if !wanted {
				continue
			}

			entry, ok := data.TryParse("/" + info.Key)
			if !ok {
				continue
			}

			if !match(entry.FileName()) {
				continue
			}

			if !yield(entry, nil) {
				return
			}
		}
	}
}

// OpenStream opens a buffered stream over the object's content; writes are
// uploaded as a whole object when the stream closes.
func (sb *S3Backend) OpenStream(ctx context.Context, path data.VirtualPath, access data.AccessMode, share data.ShareMode) (backend.Stream, error) {
	if path.IsDirectory() {
		return nil, data.ErrIsDirectory
	}

	key := objectKey(path)

	_, err := sb.client.StatObject(ctx, sb.bucketName, key, minio.StatObjectOptions{})
	switch {
	case err != nil && isNoSuchKey(err):
		if dir, derr := sb.directoryExists(ctx, path.AsDirectory()); derr == nil && dir {
			return nil, data.ErrIsDirectory
		}
		if !access.HasCreate() {
			return nil, data.ErrNotExist
		}

	case err != nil:
		return nil, err

	case access.HasExcl():
		return nil, data.ErrExist
	}

	var content []byte
	if err == nil && !access.HasTrunc() {
		content, err = sb.readObject(ctx, key)
		if err != nil {
			return nil, err
		}
	}

	flush := func(ctx context.Context, final []byte) error {
		_, err := sb.client.PutObject(ctx, sb.bucketName, key,
			bytes.NewReader(final), int64(len(final)), minio.PutObjectOptions{})
		return err
	}

	return backend.NewBufferStream(ctx, content, access, flush), nil
}

// directoryExists accepts either an explicit marker object or any stored key
// below the prefix.
func (sb *S3Backend) directoryExists(ctx context.Context, dir data.VirtualPath) (bool, error) {
	key := objectKey(dir)

	_, err := sb.client.StatObject(ctx, sb.bucketName, key, minio.StatObjectOptions{})
	if err == nil {
		return true, nil
	}
	if !isNoSuchKey(err) {
		return false, err
	}

	children, err := sb.childKeys(ctx, key)
	if err != nil {
		return false, err
	}

	return len(children) > 0, nil
}

func (sb *S3Backend) existsAnyShape(ctx context.Context, path data.VirtualPath) (bool, error) {
	if exists, err := sb.directoryExists(ctx, path.AsDirectory()); err != nil || exists {
		return exists, err
	}

	file, err := path.AsFile()
	if err != nil {
		return false, nil
	}

	_, err = sb.client.StatObject(ctx, sb.bucketName, objectKey(file), minio.StatObjectOptions{})
	if err != nil {
		if isNoSuchKey(err) {
			return false, nil
		}
		return false, err
	}

	return true, nil
}

// childKeys collects every key strictly below the prefix.
func (sb *S3Backend) childKeys(ctx context.Context, prefix string) ([]string, error) {
	var keys []string

	objects := sb.client.ListObjects(ctx, sb.bucketName, minio.ListObjectsOptions{
		Prefix:    prefix,
		Recursive: true,
	})

	for info := range objects {
		if info.Err != nil {
			return nil, info.Err
		}
		if info.Key != prefix {
			keys = append(keys, info.Key)
		}
	}

	return keys, nil
}

func (sb *S3Backend) readObject(ctx context.Context, key string) ([]byte, error) {
	obj, err := sb.client.GetObject(ctx, sb.bucketName, key, minio.GetObjectOptions{})
	if err != nil {
		return nil, err
	}
	defer obj.Close()

	content, err := io.ReadAll(obj)
	if err != nil {
		if isNoSuchKey(err) {
			return nil, data.ErrNotExist
		}
		return nil, err
	}

	return content, nil
}
