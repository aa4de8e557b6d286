package internal

import (
	"errors"
	"fmt"
	"io"
	"mime"
	"net/http"
	"os"
	"path/filepath"
	"strconv"
	"time"
)

// UploadHandler stores multipart uploads in a flat local directory. Files are
// named by the nanosecond clock plus the original extension and become
// publicly fetchable under /uploads/<name> with no access control.
type UploadHandler struct {
	dir         string
	maxFileSize int64
	metrics     *Metrics
}

type uploadResponse struct {
	FileURL  string `json:"fileUrl"`
	FileType string `json:"fileType"`
}

func NewUploadHandler(dir string, maxFileSize int64, metrics *Metrics) *UploadHandler {
	return &UploadHandler{dir: dir, maxFileSize: maxFileSize, metrics: metrics}
}

// HandleUpload processes a single-file multipart upload on field "file" and
// responds with the public URL and detected MIME type.
func (h *UploadHandler) HandleUpload(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w, http.MethodPost)
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, h.maxFileSize)
	if err := r.ParseMultipartForm(h.maxFileSize); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			writeError(w, http.StatusRequestEntityTooLarge, errors.New("file too large"))
			return
		}
		writeError(w, http.StatusBadRequest, errors.New("no file provided"))
		return
	}

	file, header, err := r.FormFile("file")
	if err != nil {
		writeError(w, http.StatusBadRequest, errors.New("no file provided"))
		return
	}
	defer file.Close()

	ext := filepath.Ext(filepath.Base(header.Filename))
	name := strconv.FormatInt(time.Now().UnixNano(), 10) + ext

	if err := os.MkdirAll(h.dir, 0755); err != nil {
		writeError(w, http.StatusInternalServerError, fmt.Errorf("create upload directory: %w", err))
		return
	}

	destPath := filepath.Join(h.dir, name)
	destFile, err := os.Create(destPath)
	if err != nil {
		writeError(w, http.StatusInternalServerError, fmt.Errorf("create file: %w", err))
		return
	}
	defer destFile.Close()

	if _, err := io.Copy(destFile, file); err != nil {
		os.Remove(destPath)
		writeError(w, http.StatusInternalServerError, fmt.Errorf("save file: %w", err))
		return
	}

	h.metrics.IncUpload()
	writeJSON(w, http.StatusOK, uploadResponse{
		FileURL:  "/uploads/" + name,
		FileType: resolveMIMEType(ext, header.Header.Get("Content-Type")),
	})
}

// StaticHandler serves the upload directory under the /uploads/ prefix.
func (h *UploadHandler) StaticHandler() http.Handler {
	return http.StripPrefix("/uploads/", http.FileServer(http.Dir(h.dir)))
}

// resolveMIMEType maps the original extension to a MIME type, falling back to
// the type the client declared for the part, then to a generic binary type.
func resolveMIMEType(ext, declared string) string {
	if typ := mime.TypeByExtension(ext); typ != "" {
		return typ
	}
	if declared != "" {
		return declared
	}
	return "application/octet-stream"
}
