package drivers

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"net/url"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
)

// fileNameMetadata is the user-metadata key holding the original file name.
// S3 only carries ASCII in metadata, so the name is query-escaped.
const fileNameMetadata = "original-name"

// S3Driver keeps customer files in an S3-compatible bucket (AWS, MinIO, R2).
type S3Driver struct {
	Client        *s3.Client
	PresignClient *s3.PresignClient
	Bucket        string
	// PublicURL is set when the bucket is served directly, e.g. behind a CDN.
	PublicURL string
}

func NewS3Driver(client *s3.Client, bucket string, publicURL string) *S3Driver {
	return &S3Driver{
		Client:        client,
		PresignClient: s3.NewPresignClient(client),
		Bucket:        bucket,
		PublicURL:     strings.TrimSuffix(publicURL, "/"),
	}
}

func (d *S3Driver) Save(ctx context.Context, key string, body io.Reader, info ObjectInfo) error {
	input := &s3.PutObjectInput{
		Bucket:             aws.String(d.Bucket),
		Key:                aws.String(key),
		Body:               body,
		ContentType:        aws.String(info.contentType()),
		ContentDisposition: aws.String(info.ContentDisposition()),
	}
	if info.FileName != "" {
		input.Metadata = map[string]string{fileNameMetadata: url.QueryEscape(info.FileName)}
	}
	if _, err := d.Client.PutObject(ctx, input); err != nil {
		return fmt.Errorf("failed to put s3://%s/%s: %w", d.Bucket, key, err)
	}
	return nil
}

func (d *S3Driver) Get(ctx context.Context, key string) (io.ReadCloser, ObjectInfo, error) {
	resp, err := d.Client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(d.Bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		var noSuchKey *types.NoSuchKey
		if errors.As(err, &noSuchKey) {
			return nil, ObjectInfo{}, fmt.Errorf("object %s: %w", key, fs.ErrNotExist)
		}
		return nil, ObjectInfo{}, fmt.Errorf("failed to get s3://%s/%s: %w", d.Bucket, key, err)
	}

	info := ObjectInfo{ContentType: aws.ToString(resp.ContentType)}
	if name, ok := resp.Metadata[fileNameMetadata]; ok {
		if unescaped, err := url.QueryUnescape(name); err == nil {
			info.FileName = unescaped
		}
	}
	info.ContentType = info.contentType()
	return resp.Body, info, nil
}

// Delete succeeds for absent keys; S3 does not report them.
func (d *S3Driver) Delete(ctx context.Context, key string) error {
	_, err := d.Client.DeleteObject(ctx, &s3.DeleteObjectInput{
		Bucket: aws.String(d.Bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		return fmt.Errorf("failed to delete s3://%s/%s: %w", d.Bucket, key, err)
	}
	return nil
}

// GenerateURL returns the public link when the bucket is served directly and a
// presigned GET otherwise.
func (d *S3Driver) GenerateURL(ctx context.Context, key string, expires time.Duration) (string, error) {
	if d.PublicURL != "" {
		return d.PublicURL + "/" + key, nil
	}
	if expires <= 0 {
		expires = time.Hour
	}

	presigned, err := d.PresignClient.PresignGetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(d.Bucket),
		Key:    aws.String(key),
	}, s3.WithPresignExpires(expires))
	if err != nil {
		return "", fmt.Errorf("failed to presign s3://%s/%s: %w", d.Bucket, key, err)
	}
	return presigned.URL, nil
}
