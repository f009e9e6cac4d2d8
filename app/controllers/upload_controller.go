package controllers

import (
	"io"
	"mime"
	"net/http"
	"path"

	"github.com/go-chi/chi/v5"

	"github.com/shashiranjanraj/saveur/app/services"
	"github.com/shashiranjanraj/saveur/pkg/response"
)

// UploadController serves stored recipe attachments back to clients.
type UploadController struct {
	attachments *services.AttachmentService
}

func NewUploadController(attachments *services.AttachmentService) *UploadController {
	return &UploadController{attachments: attachments}
}

// Show streams one stored attachment. The content type is derived from the
// stored file extension.
func (c *UploadController) Show(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "filename")

	rc, err := c.attachments.Open(name)
	if err != nil {
		response.NotFound(w)
		return
	}
	defer rc.Close()

	if ct := mime.TypeByExtension(path.Ext(name)); ct != "" {
		w.Header().Set("Content-Type", ct)
	} else {
		w.Header().Set("Content-Type", "application/octet-stream")
	}
	io.Copy(w, rc) //nolint:errcheck
}
