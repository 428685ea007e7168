// Copyright (c) 2026 Madalin Gabriel Ignisca <hi@madalin.me>
// Copyright (c) 2026 Vlah Software House SRL <contact@vlah.sh>
// All rights reserved. See LICENSE for details.

// Package storage keeps images that authors upload from the post editor in
// an S3-compatible bucket. It wraps the AWS SDK v2 and is configured for
// path-style access, which MinIO and CEPH require.
package storage

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	s3types "github.com/aws/aws-sdk-go-v2/service/s3/types"
	gonanoid "github.com/matoous/go-nanoid/v2"

	domainerrors "msdevblog/internal/errors"
	"msdevblog/internal/imaging"
)

// MaxImageSize is the largest accepted upload.
const MaxImageSize = 5 << 20

// imageTypes maps accepted content types to the stored file extension.
var imageTypes = map[string]string{
	"image/png":  ".png",
	"image/jpeg": ".jpg",
	"image/gif":  ".gif",
	"image/webp": ".webp",
}

// Client wraps an S3 client for a single public bucket.
type Client struct {
	s3        *s3.Client
	bucket    string
	endpoint  string
	publicURL string // optional CDN/direct URL for public files
	now       func() time.Time
}

// New creates a storage client. Returns (nil, nil) if endpoint or
// credentials are empty, allowing the app to start without uploads.
func New(endpoint, region, accessKey, secretKey, bucket, publicURL string) (*Client, error) {
	if endpoint == "" || accessKey == "" || secretKey == "" {
		return nil, nil
	}
	if bucket == "" {
		return nil, fmt.Errorf("s3 bucket is required")
	}

	endpoint = strings.TrimRight(endpoint, "/")

	s3Client := s3.New(s3.Options{
		Region:       region,
		BaseEndpoint: aws.String(endpoint),
		Credentials:  credentials.NewStaticCredentialsProvider(accessKey, secretKey, ""),
		UsePathStyle: true,
	})

	return &Client{
		s3:        s3Client,
		bucket:    bucket,
		endpoint:  endpoint,
		publicURL: strings.TrimRight(publicURL, "/"),
		now:       time.Now,
	}, nil
}

// Upload stores an object with a public-read ACL so it can be linked from
// posts directly.
func (c *Client) Upload(ctx context.Context, key, contentType string, body io.Reader, size int64) error {
	_, err := c.s3.PutObject(ctx, &s3.PutObjectInput{
		Bucket:        aws.String(c.bucket),
		Key:           aws.String(key),
		Body:          body,
		ContentLength: aws.Int64(size),
		ContentType:   aws.String(contentType),
		ACL:           s3types.ObjectCannedACLPublicRead,
	})
	if err != nil {
		return fmt.Errorf("s3 upload %s/%s: %w", c.bucket, key, err)
	}
	return nil
}

// Delete removes an object.
func (c *Client) Delete(ctx context.Context, key string) error {
	_, err := c.s3.DeleteObject(ctx, &s3.DeleteObjectInput{
		Bucket: aws.String(c.bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		return fmt.Errorf("s3 delete %s/%s: %w", c.bucket, key, err)
	}
	return nil
}

// FileURL returns the public URL for a key. Uses the configured public URL
// if set, otherwise builds a path-style URL.
func (c *Client) FileURL(key string) string {
	if c.publicURL != "" {
		return c.publicURL + "/" + key
	}
	return c.endpoint + "/" + c.bucket + "/" + key
}

// Origin returns the scheme and host images are served from, for the
// Content-Security-Policy.
func (c *Client) Origin() string {
	base := c.publicURL
	if base == "" {
		base = c.endpoint
	}
	scheme, rest, ok := strings.Cut(base, "://")
	if !ok {
		return base
	}
	host, _, _ := strings.Cut(rest, "/")
	return scheme + "://" + host
}

// ObjectKey builds the key for a new upload: uploads/YYYY/MM/DD/<id><ext>.
func ObjectKey(now time.Time, ext string) (string, error) {
	id, err := gonanoid.New()
	if err != nil {
		return "", fmt.Errorf("generate object id: %w", err)
	}
	return now.UTC().Format("uploads/2006/01/02/") + id + ext, nil
}

// SaveImage checks that data is an accepted image and uploads it. The type
// is sniffed from the content, not taken from the client, and the header
// must decode. Returns the
// public URL.
func (c *Client) SaveImage(ctx context.Context, data []byte) (string, error) {
	if len(data) == 0 {
		return "", domainerrors.ValidationWithDetails("validation failed", map[string]string{"file": "is empty"})
	}
	if len(data) > MaxImageSize {
		return "", domainerrors.ValidationWithDetails("validation failed", map[string]string{"file": "must not exceed 5 MB"})
	}
	contentType := http.DetectContentType(data)
	ext, ok := imageTypes[contentType]
	if !ok {
		return "", domainerrors.ValidationWithDetails("validation failed", map[string]string{
			"file": "must be a PNG, JPEG, GIF or WebP image",
		})
	}
	if _, err := imaging.Inspect(data); err != nil {
		msg := "is not a readable image"
		if errors.Is(err, imaging.ErrTooLarge) {
			msg = fmt.Sprintf("must be at most %d pixels wide and tall", imaging.MaxDimension)
		}
		return "", domainerrors.ValidationWithDetails("validation failed", map[string]string{"file": msg})
	}

	key, err := ObjectKey(c.now(), ext)
	if err != nil {
		return "", err
	}
	if err := c.Upload(ctx, key, contentType, bytes.NewReader(data), int64(len(data))); err != nil {
		return "", err
	}
	return c.FileURL(key), nil
}
