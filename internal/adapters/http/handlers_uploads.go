package http

import (
	"errors"
	"net/http"

	"github.com/PykeW/update-all/internal/application"
)

// Multipart parsing buffers up to this many bytes in memory; the rest spills
// to temp files. Installer payloads run to gigabytes, so keep this small.
const uploadMemoryLimit = 32 << 20

func (h *Handler) uploadPackage(w http.ResponseWriter, r *http.Request) {
	actor, ok := mustActor(w, r)
	if !ok {
		return
	}

	if err := r.ParseMultipartForm(uploadMemoryLimit); err != nil {
		writeValidationError(r.Context(), w, "upload_package", errors.New("request must be multipart/form-data"))
		return
	}
	file, header, err := r.FormFile("file")
	if err != nil {
		writeValidationError(r.Context(), w, "upload_package", errors.New("form field \"file\" is required"))
		return
	}
	defer file.Close()

	res, err := h.service.UploadPackage(r.Context(), actor, application.UploadInput{
		Filename:    header.Filename,
		ContentType: header.Header.Get("Content-Type"),
		SizeBytes:   header.Size,
	}, file)
	if err != nil {
		writeMappedError(r.Context(), w, "upload_package", err)
		return
	}
	writeSuccess(w, http.StatusCreated, map[string]any{
		"oss_key":    res.OSSKey,
		"etag":       res.ETag,
		"size_bytes": res.SizeBytes,
	})
}
