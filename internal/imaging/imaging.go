// Copyright (c) 2026 Madalin Gabriel Ignisca <hi@madalin.me>
// Copyright (c) 2026 Vlah Software House SRL <contact@vlah.sh>
// All rights reserved. See LICENSE for details.

// Package imaging checks images uploaded from the post editor before they
// are stored. Only the header is decoded, so a large upload costs no more
// than a small one.
package imaging

import (
	"bytes"
	"errors"
	"fmt"
	"image"
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"

	_ "golang.org/x/image/webp"
)

// MaxDimension is the largest accepted width or height in pixels.
const MaxDimension = 8000

// ErrTooLarge is returned for images wider or taller than MaxDimension.
var ErrTooLarge = errors.New("image dimensions too large")

// Info describes a decoded image header.
type Info struct {
	Format string // "png", "jpeg", "gif" or "webp"
	Width  int
	Height int
}

// Inspect decodes the image header in data. It fails when the data is not
// a readable PNG, JPEG, GIF or WebP image, and with ErrTooLarge when either
// side exceeds MaxDimension.
func Inspect(data []byte) (Info, error) {
	cfg, format, err := image.DecodeConfig(bytes.NewReader(data))
	if err != nil {
		return Info{}, fmt.Errorf("decode image header: %w", err)
	}
	info := Info{Format: format, Width: cfg.Width, Height: cfg.Height}
	if info.Width <= 0 || info.Height <= 0 {
		return info, fmt.Errorf("decode image header: empty %s image", format)
	}
	if info.Width > MaxDimension || info.Height > MaxDimension {
		return info, ErrTooLarge
	}
	return info, nil
}
