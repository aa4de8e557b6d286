package internal

import (
	"bytes"
	"encoding/json"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"regexp"
	"testing"
)

var uploadedPNGPattern = regexp.MustCompile(`^/uploads/[0-9]+\.png$`)

func multipartBody(t *testing.T, fieldName, fileName string, content []byte) (*bytes.Buffer, string) {
	t.Helper()
	body := &bytes.Buffer{}
	writer := multipart.NewWriter(body)
	part, err := writer.CreateFormFile(fieldName, fileName)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := io.Copy(part, bytes.NewReader(content)); err != nil {
		t.Fatal(err)
	}
	writer.Close()
	return body, writer.FormDataContentType()
}

func TestUploadStoresFileAndReportsType(t *testing.T) {
	handler := NewUploadHandler(t.TempDir(), 10*1024*1024, NewMetrics())

	fileContent := []byte{0x89, 'P', 'N', 'G', 0x0d, 0x0a, 0x1a, 0x0a, 1, 2, 3}
	body, contentType := multipartBody(t, "file", "photo.png", fileContent)

	req := httptest.NewRequest(http.MethodPost, "/upload", body)
	req.Header.Set("Content-Type", contentType)
	rec := httptest.NewRecorder()
	handler.HandleUpload(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected status OK, got %d: %s", rec.Code, rec.Body.String())
	}

	var resp uploadResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if !uploadedPNGPattern.MatchString(resp.FileURL) {
		t.Errorf("fileUrl %q does not match /uploads/<digits>.png", resp.FileURL)
	}
	if resp.FileType != "image/png" {
		t.Errorf("expected image/png, got %q", resp.FileType)
	}

	// the stored file must be fetchable by its public path with identical bytes
	staticReq := httptest.NewRequest(http.MethodGet, resp.FileURL, nil)
	staticRec := httptest.NewRecorder()
	handler.StaticHandler().ServeHTTP(staticRec, staticReq)
	if staticRec.Code != http.StatusOK {
		t.Fatalf("fetch uploaded file: status %d", staticRec.Code)
	}
	if !bytes.Equal(staticRec.Body.Bytes(), fileContent) {
		t.Errorf("served bytes differ from uploaded bytes")
	}
}

func TestUploadRejectsMissingFile(t *testing.T) {
	handler := NewUploadHandler(t.TempDir(), 10*1024*1024, NewMetrics())

	body := &bytes.Buffer{}
	writer := multipart.NewWriter(body)
	_ = writer.WriteField("note", "no file here")
	writer.Close()

	req := httptest.NewRequest(http.MethodPost, "/upload", body)
	req.Header.Set("Content-Type", writer.FormDataContentType())
	rec := httptest.NewRecorder()
	handler.HandleUpload(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected status 400, got %d", rec.Code)
	}
	var resp map[string]string
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode error body: %v", err)
	}
	if resp["error"] == "" {
		t.Errorf("expected error payload, got %v", resp)
	}
}

func TestUploadRejectsOversizedFile(t *testing.T) {
	handler := NewUploadHandler(t.TempDir(), 100, NewMetrics())

	body, contentType := multipartBody(t, "file", "large.bin", bytes.Repeat([]byte("a"), 500))
	req := httptest.NewRequest(http.MethodPost, "/upload", body)
	req.Header.Set("Content-Type", contentType)
	rec := httptest.NewRecorder()
	handler.HandleUpload(rec, req)

	if rec.Code != http.StatusRequestEntityTooLarge {
		t.Fatalf("expected status 413, got %d", rec.Code)
	}
}

func TestStaticHandlerMissingFile(t *testing.T) {
	handler := NewUploadHandler(t.TempDir(), 100, NewMetrics())

	req := httptest.NewRequest(http.MethodGet, "/uploads/123456789.png", nil)
	rec := httptest.NewRecorder()
	handler.StaticHandler().ServeHTTP(rec, req)
	if rec.Code != http.StatusNotFound {
		t.Fatalf("expected 404 for absent file, got %d", rec.Code)
	}
}

func TestResolveMIMEType(t *testing.T) {
	if typ := resolveMIMEType(".png", ""); typ != "image/png" {
		t.Errorf("png: got %q", typ)
	}
	if typ := resolveMIMEType(".nosuchext", "application/x-custom"); typ != "application/x-custom" {
		t.Errorf("declared fallback: got %q", typ)
	}
	if typ := resolveMIMEType("", ""); typ != "application/octet-stream" {
		t.Errorf("generic fallback: got %q", typ)
	}
}
