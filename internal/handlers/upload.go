// Copyright (c) 2026 Madalin Gabriel Ignisca <hi@madalin.me>
// Copyright (c) 2026 Vlah Software House SRL <contact@vlah.sh>
// All rights reserved. See LICENSE for details.

package handlers

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"

	domainerrors "msdevblog/internal/errors"
	"msdevblog/internal/middleware"
	"msdevblog/internal/storage"
)

// ImageStore saves an uploaded image and returns its public URL.
type ImageStore interface {
	SaveImage(ctx context.Context, data []byte) (string, error)
}

// Upload accepts images from the post editor. It answers with JSON
// holding the image URL and a Markdown snippet to paste into the post.
type Upload struct {
	images ImageStore
}

// NewUpload creates the upload handler. A nil store disables uploads.
func NewUpload(images ImageStore) *Upload {
	return &Upload{images: images}
}

// uploadResponse is the JSON body of a successful upload.
type uploadResponse struct {
	URL      string `json:"url"`
	Markdown string `json:"markdown"`
}

// Image handles a multipart upload in the "file" field.
func (u *Upload) Image(w http.ResponseWriter, r *http.Request) {
	if u.images == nil {
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{"error": "uploads are not configured"})
		return
	}
	v := middleware.ViewerFromCtx(r.Context())

	r.Body = http.MaxBytesReader(w, r.Body, storage.MaxImageSize+64<<10)
	file, header, err := r.FormFile("file")
	if err != nil {
		var tooBig *http.MaxBytesError
		if errors.As(err, &tooBig) {
			writeJSON(w, http.StatusRequestEntityTooLarge, map[string]string{"error": "file must not exceed 5 MB"})
			return
		}
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "no file provided"})
		return
	}
	defer file.Close()

	data, err := io.ReadAll(io.LimitReader(file, storage.MaxImageSize+1))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "failed to read file"})
		return
	}

	url, err := u.images.SaveImage(r.Context(), data)
	if err != nil {
		status := domainerrors.StatusOf(err)
		if status >= http.StatusInternalServerError {
			slog.Error("image upload failed", "user_id", v.ID, "error", err)
			writeJSON(w, status, map[string]string{"error": "upload failed"})
			return
		}
		msg := domainerrors.FieldErrors(err)["file"]
		if msg == "" {
			msg = errorMessage(err)
		}
		writeJSON(w, status, map[string]string{"error": "file " + msg})
		return
	}

	slog.Info("image uploaded", "user_id", v.ID, "name", header.Filename, "size", len(data), "url", url)
	writeJSON(w, http.StatusCreated, uploadResponse{URL: url, Markdown: "![](" + url + ")"})
}
