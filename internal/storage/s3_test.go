// Copyright (c) 2026 Madalin Gabriel Ignisca <hi@madalin.me>
// Copyright (c) 2026 Vlah Software House SRL <contact@vlah.sh>
// All rights reserved. See LICENSE for details.

package storage

import (
	"context"
	"regexp"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	domainerrors "msdevblog/internal/errors"
)

func TestNewWithoutCredentials(t *testing.T) {
	c, err := New("", "us-east-1", "", "", "uploads", "")
	require.NoError(t, err)
	assert.Nil(t, c, "storage should be disabled without credentials")

	_, err = New("http://minio:9000", "us-east-1", "key", "secret", "", "")
	assert.Error(t, err, "bucket is required")
}

func TestFileURL(t *testing.T) {
	c, err := New("http://minio:9000/", "us-east-1", "key", "secret", "uploads", "")
	require.NoError(t, err)
	assert.Equal(t, "http://minio:9000/uploads/a/b.png", c.FileURL("a/b.png"))
	assert.Equal(t, "http://minio:9000", c.Origin())

	c, err = New("http://minio:9000", "us-east-1", "key", "secret", "uploads", "https://cdn.example.com/blog/")
	require.NoError(t, err)
	assert.Equal(t, "https://cdn.example.com/blog/a/b.png", c.FileURL("a/b.png"))
	assert.Equal(t, "https://cdn.example.com", c.Origin())
}

func TestObjectKey(t *testing.T) {
	now := time.Date(2026, 5, 7, 23, 30, 0, 0, time.UTC)
	key, err := ObjectKey(now, ".png")
	require.NoError(t, err)
	assert.Regexp(t, regexp.MustCompile(`^uploads/2026/05/07/[A-Za-z0-9_-]{21}\.png$`), key)

	other, err := ObjectKey(now, ".png")
	require.NoError(t, err)
	assert.NotEqual(t, key, other)
}

func TestSaveImageRejects(t *testing.T) {
	c, err := New("http://127.0.0.1:1", "us-east-1", "key", "secret", "uploads", "")
	require.NoError(t, err)

	tests := []struct {
		name string
		data []byte
	}{
		{"empty", nil},
		{"too large", make([]byte, MaxImageSize+1)},
		{"not an image", []byte("<html><body>hi</body></html>")},
		{"truncated png", []byte("\x89PNG\r\n\x1a\n\x00\x00\x00\rIHDR")},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := c.SaveImage(context.Background(), tt.data)
			require.Error(t, err)
			assert.Contains(t, domainerrors.FieldErrors(err), "file")
		})
	}
}
