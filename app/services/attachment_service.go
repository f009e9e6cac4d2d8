package services

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"io"
	"path"
	"path/filepath"
	"strings"

	"github.com/shashiranjanraj/saveur/pkg/logger"
	"github.com/shashiranjanraj/saveur/pkg/metrics"
	"github.com/shashiranjanraj/saveur/pkg/storage"
	"github.com/shashiranjanraj/saveur/pkg/workerpool"
)

// Attachment kinds. Each carries its own extension accept-list.
const (
	KindPhoto = "photo"
	KindPDF   = "pdf"
)

var acceptedExts = map[string]map[string]bool{
	KindPhoto: {".jpg": true, ".jpeg": true, ".png": true, ".gif": true, ".webp": true},
	KindPDF:   {".pdf": true},
}

// AttachmentService owns the physical files behind recipe photo/pdf
// references. It writes to one flat prefix on the configured storage disk
// under server-generated names, and removes files best-effort: a removal
// failure is logged and swallowed, never surfaced to the caller.
type AttachmentService struct {
	disk storage.Disk
	pool *workerpool.Pool
	dir  string
}

// NewAttachmentService builds the service. pool may be shared with other
// background work; removals are submitted there so request handlers never
// wait on the filesystem.
func NewAttachmentService(disk storage.Disk, pool *workerpool.Pool, dir string) *AttachmentService {
	return &AttachmentService{disk: disk, pool: pool, dir: strings.Trim(dir, "/")}
}

// Store writes an uploaded file under a fresh server-generated name and
// returns that name. The declared filename only contributes its extension;
// collisions between concurrent uploads are impossible by construction.
func (s *AttachmentService) Store(kind, declaredName string, r io.Reader) (string, error) {
	ext := strings.ToLower(filepath.Ext(declaredName))
	allowed, ok := acceptedExts[kind]
	if !ok {
		return "", fmt.Errorf("%w: unknown attachment kind %q", ErrUnsupportedFile, kind)
	}
	if !allowed[ext] {
		return "", fmt.Errorf("%w: %s is not accepted for %s uploads", ErrUnsupportedFile, ext, kind)
	}

	name := randomName() + ext
	if err := s.disk.PutStream(s.path(name), r); err != nil {
		return "", fmt.Errorf("attachment store: %w", err)
	}

	metrics.UploadsStored.WithLabelValues(kind).Inc()
	return name, nil
}

// Remove deletes a stored file, fire-and-forget. The work runs on the
// worker pool; if the pool is saturated or shut down it runs inline.
// Callers must not depend on removal confirmation.
func (s *AttachmentService) Remove(storedName string) {
	if storedName == "" {
		return
	}

	task := func() { s.removeNow(storedName) }
	if s.pool == nil || s.pool.Submit(task) != nil {
		task()
	}
}

func (s *AttachmentService) removeNow(storedName string) {
	if err := s.disk.Delete(s.path(storedName)); err != nil {
		metrics.UploadRemovals.WithLabelValues("error").Inc()
		logger.Warn("attachment removal failed", "file", storedName, "error", err)
		return
	}
	metrics.UploadRemovals.WithLabelValues("ok").Inc()
}

// Open returns a reader on a stored file, for the /uploads serving route.
func (s *AttachmentService) Open(storedName string) (io.ReadCloser, error) {
	// Reject traversal attempts; stored names are always flat.
	if storedName != path.Base(storedName) {
		return nil, ErrNotFound
	}
	rc, err := s.disk.GetStream(s.path(storedName))
	if err != nil {
		return nil, ErrNotFound
	}
	return rc, nil
}

// URL returns the public URL for a stored file.
func (s *AttachmentService) URL(storedName string) string {
	return s.disk.URL(s.path(storedName))
}

func (s *AttachmentService) path(name string) string {
	return path.Join(s.dir, name)
}

func randomName() string {
	b := make([]byte, 12)
	_, _ = rand.Read(b)
	return hex.EncodeToString(b)
}
