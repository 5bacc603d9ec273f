package storage

import (
	"MediaVault/config"
	"context"
	"crypto/sha256"
	"errors"
	"fmt"
	"io"
	"log"
	"net"
	"net/http"
	"os"
	"strings"
	"sync"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
)

const (
	// Every multipart part except the last must meet this floor.
	S3MinPartSize = 5 * 1024 * 1024
	// Hard multipart part-count limit of the protocol.
	S3MaxParts = 10000

	diagnosticSampleSize = 1024
)

// S3Driver stores blobs in an S3-compatible object store via minio-go.
type S3Driver struct {
	mu          sync.Mutex
	client      *minio.Client
	core        *minio.Core
	fingerprint string
	bucket      string
}

// NewS3Driver creates an S3 driver. The client is built lazily on first use
// and rebuilt only when the resolved configuration fingerprint changes.
func NewS3Driver() *S3Driver {
	return &S3Driver{}
}

// Name returns the driver name recorded on file records.
func (d *S3Driver) Name() string {
	return DriverS3
}

func configFingerprint() string {
	cfg := config.AppConfig
	raw := strings.Join([]string{
		cfg.S3Endpoint, cfg.S3Region, cfg.S3AccessKey, cfg.S3SecretKey,
		fmt.Sprintf("%t", cfg.S3UseSSL), cfg.BucketName,
	}, "|")
	return fmt.Sprintf("%x", sha256.Sum256([]byte(raw)))
}

// clients returns the cached client pair, rebuilding it when the resolved
// configuration changed since the last call.
func (d *S3Driver) clients(ctx context.Context) (*minio.Client, *minio.Core, string, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	fp := configFingerprint()
	if d.client != nil && d.fingerprint == fp {
		return d.client, d.core, d.bucket, nil
	}

	cfg := config.AppConfig
	client, err := minio.New(cfg.S3Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.S3AccessKey, cfg.S3SecretKey, ""),
		Secure: cfg.S3UseSSL,
		Region: cfg.S3Region,
	})
	if err != nil {
		return nil, nil, "", err
	}
	exists, err := client.BucketExists(ctx, cfg.BucketName)
	if err != nil {
		return nil, nil, "", err
	}
	if !exists {
		if err := client.MakeBucket(ctx, cfg.BucketName, minio.MakeBucketOptions{Region: cfg.S3Region}); err != nil {
			return nil, nil, "", err
		}
	}
	d.client = client
	d.core = &minio.Core{Client: client}
	d.fingerprint = fp
	d.bucket = cfg.BucketName
	return d.client, d.core, d.bucket, nil
}

// isChecksumError reports whether the failure looks like transient
// corruption on the wire.
func isChecksumError(err error) bool {
	if err == nil {
		return false
	}
	resp := minio.ToErrorResponse(err)
	if resp.Code == "XAmzContentSHA256Mismatch" || resp.Code == "BadDigest" {
		return true
	}
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "checksum") || strings.Contains(msg, "crc")
}

// isTransient reports whether an operation is worth retrying.
func isTransient(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}
	if isChecksumError(err) {
		return true
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return true
	}
	resp := minio.ToErrorResponse(err)
	if resp.StatusCode >= 500 {
		return true
	}
	if resp.Code == "SlowDown" || resp.Code == "RequestTimeout" {
		return true
	}
	return false
}

// isNotFound maps the object store's 404/400/403 classes onto one signal.
func isNotFound(err error) bool {
	if err == nil {
		return false
	}
	resp := minio.ToErrorResponse(err)
	switch resp.Code {
	case "NoSuchKey", "NoSuchBucket", "NotFound":
		return true
	}
	switch resp.StatusCode {
	case 400, 403, 404:
		return true
	}
	return false
}

func isInvalidRange(err error) bool {
	if err == nil {
		return false
	}
	resp := minio.ToErrorResponse(err)
	return resp.Code == "InvalidRange" || resp.StatusCode == http.StatusRequestedRangeNotSatisfiable
}

// withRetry runs op with bounded exponential backoff on transient failures.
func (d *S3Driver) withRetry(ctx context.Context, what, key string, op func() error) error {
	cfg := config.AppConfig
	attempts := cfg.StorageRetryMax
	if attempts < 1 {
		attempts = 1
	}
	var err error
	for attempt := 1; attempt <= attempts; attempt++ {
		err = op()
		if err == nil || !isTransient(err) {
			return err
		}
		if isChecksumError(err) {
			d.diagnoseChecksum(ctx, key)
		}
		if attempt == attempts {
			break
		}
		log.Printf("s3 %s retry %d for %s: %v", what, attempt, key, err)
		if sleepErr := sleepCtx(ctx, backoffDelay(attempt, cfg.StorageRetryBase, cfg.StorageRetryCap, true)); sleepErr != nil {
			return sleepErr
		}
	}
	return err
}

// diagnoseChecksum emits a HEAD plus a small sample read so transient
// corruption leaves a trace without failing the user-visible request.
func (d *S3Driver) diagnoseChecksum(ctx context.Context, key string) {
	client, _, bucket, err := d.clients(ctx)
	if err != nil {
		log.Printf("s3 checksum diagnostic skipped for %s: %v", key, err)
		return
	}
	info, statErr := client.StatObject(ctx, bucket, key, minio.StatObjectOptions{})
	if statErr != nil {
		log.Printf("s3 checksum diagnostic head failed for %s: %v", key, statErr)
		return
	}
	opts := minio.GetObjectOptions{}
	_ = opts.SetRange(0, diagnosticSampleSize-1)
	obj, getErr := client.GetObject(ctx, bucket, key, opts)
	if getErr != nil {
		log.Printf("s3 checksum diagnostic read failed for %s: %v", key, getErr)
		return
	}
	defer obj.Close()
	sample := make([]byte, diagnosticSampleSize)
	n, readErr := io.ReadFull(obj, sample)
	if readErr != nil && readErr != io.ErrUnexpectedEOF && readErr != io.EOF {
		log.Printf("s3 checksum diagnostic sample failed for %s: %v", key, readErr)
		return
	}
	log.Printf("s3 checksum diagnostic for %s: size=%d etag=%s sample=%d bytes sha256=%x",
		key, info.Size, info.ETag, n, sha256.Sum256(sample[:n]))
}

// Put issues a single PUT. Multipart is reserved for the chunk-combine path.
func (d *S3Driver) Put(ctx context.Context, key string, reader io.Reader, size int64, contentType string) error {
	client, _, bucket, err := d.clients(ctx)
	if err != nil {
		return err
	}
	_, err = client.PutObject(ctx, bucket, key, reader, size, minio.PutObjectOptions{
		ContentType:      contentType,
		DisableMultipart: true,
	})
	return err
}

// Stat returns normalized metadata or ErrNotFound. Unrecognized transient
// classes degrade to not-found with a warning instead of an opaque error.
func (d *S3Driver) Stat(ctx context.Context, key string) (Meta, error) {
	client, _, bucket, err := d.clients(ctx)
	if err != nil {
		return Meta{}, err
	}
	info, err := client.StatObject(ctx, bucket, key, minio.StatObjectOptions{})
	if err != nil {
		if isNotFound(err) {
			return Meta{}, ErrNotFound
		}
		log.Printf("s3 stat unrecognized error for %s, treating as not found: %v", key, err)
		return Meta{}, ErrNotFound
	}
	return Meta{
		Size:         info.Size,
		ETag:         info.ETag,
		LastModified: info.LastModified,
		ContentType:  info.ContentType,
	}, nil
}

// Read streams the object, optionally ranged, retrying transient failures.
func (d *S3Driver) Read(ctx context.Context, key string, rng *ReadRange) (*ReadResult, error) {
	client, _, bucket, err := d.clients(ctx)
	if err != nil {
		return nil, err
	}
	var result *ReadResult
	err = d.withRetry(ctx, "read", key, func() error {
		opts := minio.GetObjectOptions{}
		if rng != nil {
			end := rng.End
			if end < 0 {
				end = 0 // minio treats (start, 0) as start-to-EOF
			}
			if err := opts.SetRange(rng.Start, end); err != nil {
				return err
			}
		}
		obj, getErr := client.GetObject(ctx, bucket, key, opts)
		if getErr != nil {
			return getErr
		}
		stat, statErr := obj.Stat()
		if statErr != nil {
			_ = obj.Close()
			if isInvalidRange(statErr) {
				return fmt.Errorf("%w for %s", ErrInvalidRange, key)
			}
			if isNotFound(statErr) {
				return ErrNotFound
			}
			return statErr
		}
		meta := Meta{
			Size:         stat.Size,
			ETag:         stat.ETag,
			LastModified: stat.LastModified,
			ContentType:  stat.ContentType,
		}
		result = &ReadResult{Body: obj, Meta: meta}
		if rng != nil {
			end := rng.End
			if end < 0 || end >= stat.Size {
				end = stat.Size - 1
			}
			result.ContentRange = fmt.Sprintf("bytes %d-%d/%d", rng.Start, end, stat.Size)
			result.Partial = rng.Start != 0 || end != stat.Size-1
		}
		return nil
	})
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return result, nil
}

// Delete removes one object, retrying transient failures.
func (d *S3Driver) Delete(ctx context.Context, key string) error {
	client, _, bucket, err := d.clients(ctx)
	if err != nil {
		return err
	}
	return d.withRetry(ctx, "delete", key, func() error {
		return client.RemoveObject(ctx, bucket, key, minio.RemoveObjectOptions{})
	})
}

// forwardListing pumps a listing stream into dst, bailing out when ctx is
// cancelled so an abandoned consumer cannot strand this goroutine on a send.
// dst is always closed on return.
func forwardListing(ctx context.Context, src <-chan minio.ObjectInfo, dst chan<- minio.ObjectInfo) error {
	defer close(dst)
	for obj := range src {
		if obj.Err != nil {
			return obj.Err
		}
		select {
		case dst <- obj:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	return nil
}

// DeletePrefix paginates a list-by-prefix and issues batched deletes until
// no continuation remains. On a remove failure the listing is cancelled and
// both streams are drained to completion before the error propagates.
func (d *S3Driver) DeletePrefix(ctx context.Context, prefix string) error {
	client, _, bucket, err := d.clients(ctx)
	if err != nil {
		return err
	}
	return d.withRetry(ctx, "delete-prefix", prefix, func() error {
		listCtx, cancel := context.WithCancel(ctx)
		defer cancel()
		src := client.ListObjects(listCtx, bucket, minio.ListObjectsOptions{
			Prefix:    prefix,
			Recursive: true,
		})
		objectsCh := make(chan minio.ObjectInfo)
		listErr := make(chan error, 1)
		go func() {
			listErr <- forwardListing(listCtx, src, objectsCh)
		}()
		var removeFailed error
		for removeErr := range client.RemoveObjects(listCtx, bucket, objectsCh, minio.RemoveObjectsOptions{}) {
			if removeErr.Err != nil && removeFailed == nil {
				removeFailed = removeErr.Err
				cancel()
			}
		}
		listingErr := <-listErr
		if removeFailed != nil {
			return removeFailed
		}
		return listingErr
	})
}

// Assemble uploads every part as one multipart segment then completes the
// upload. Any failure aborts the multipart upload before the error
// propagates so no incomplete upload is orphaned.
func (d *S3Driver) Assemble(ctx context.Context, key string, contentType string, parts []Part) error {
	_, core, bucket, err := d.clients(ctx)
	if err != nil {
		return err
	}
	uploadID, err := core.NewMultipartUpload(ctx, bucket, key, minio.PutObjectOptions{
		ContentType: contentType,
	})
	if err != nil {
		return err
	}
	abort := func() {
		if abortErr := core.AbortMultipartUpload(context.Background(), bucket, key, uploadID); abortErr != nil {
			log.Printf("s3 multipart abort failed for %s: %v", key, abortErr)
		}
	}
	completed := make([]minio.CompletePart, 0, len(parts))
	for i, part := range parts {
		if i < len(parts)-1 && part.Size < S3MinPartSize {
			abort()
			return fmt.Errorf("part %d is %d bytes, below the %d byte multipart floor", i, part.Size, int64(S3MinPartSize))
		}
		src, openErr := os.Open(part.Path)
		if openErr != nil {
			abort()
			return openErr
		}
		uploaded, putErr := core.PutObjectPart(ctx, bucket, key, uploadID, i+1, src, part.Size, minio.PutObjectPartOptions{})
		_ = src.Close()
		if putErr != nil {
			abort()
			return putErr
		}
		completed = append(completed, minio.CompletePart{
			PartNumber: uploaded.PartNumber,
			ETag:       uploaded.ETag,
		})
	}
	if _, err := core.CompleteMultipartUpload(ctx, bucket, key, uploadID, completed, minio.PutObjectOptions{}); err != nil {
		abort()
		return err
	}
	return nil
}

// MinPartSize is the multipart part-size floor.
func (d *S3Driver) MinPartSize() int64 {
	return S3MinPartSize
}

// MaxParts is the multipart part-count limit.
func (d *S3Driver) MaxParts() int {
	return S3MaxParts
}
