package api

import (
	"encoding/json"
	"io"
	"mime"
	"mime/multipart"
	"net/http"
	"strings"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"go.uber.org/zap"
)

const (
	kindJSON      = "json"
	kindMultipart = "multipart"

	maxMemory = 32 << 20
)

// BadRequestError marks an ingestion payload the caller has to fix.
type BadRequestError struct {
	Message string
	Err     error
}

func (e *BadRequestError) Error() string { return e.Message }

func (e *BadRequestError) Unwrap() error { return e.Err }

// JSONRequest is the body of a JSON-only call. FileNames are hints for
// attachments that were not uploaded.
type JSONRequest struct {
	Message        string   `json:"message"`
	HasAttachments bool     `json:"hasAttachments,omitempty"`
	FileCount      int      `json:"fileCount,omitempty"`
	FileNames      []string `json:"fileNames,omitempty"`
}

type chatRequest struct {
	Message string
	Files   []string
}

func payloadKind(r *http.Request) string {
	mediaType, _, err := mime.ParseMediaType(r.Header.Get("Content-Type"))
	if err == nil && mediaType == "multipart/form-data" {
		return kindMultipart
	}
	return kindJSON
}

func (h *Handler) parseRequest(r *http.Request, kind string) (*chatRequest, error) {
	var (
		req *chatRequest
		err error
	)
	if kind == kindMultipart {
		req, err = h.parseMultipart(r)
	} else {
		req, err = parseJSON(r)
	}
	if err != nil {
		return nil, err
	}

	if req.Message == "" && len(req.Files) == 0 {
		return nil, &BadRequestError{Message: "Message or files are required"}
	}
	return req, nil
}

func parseJSON(r *http.Request) (*chatRequest, error) {
	var body JSONRequest
	dec := json.NewDecoder(r.Body)
	if err := dec.Decode(&body); err != nil {
		return nil, &BadRequestError{Message: "Invalid JSON in request", Err: err}
	}
	// The body must hold exactly one JSON value.
	if _, err := dec.Token(); err != io.EOF {
		if err == nil {
			err = errors.New("unexpected data after JSON value")
		}
		return nil, &BadRequestError{Message: "Invalid JSON in request", Err: err}
	}

	req := &chatRequest{Message: body.Message}
	if body.HasAttachments {
		req.Files = append(req.Files, body.FileNames...)
	}
	return req, nil
}

// parseMultipart stores every uploaded part and keeps only its original name.
func (h *Handler) parseMultipart(r *http.Request) (*chatRequest, error) {
	if err := r.ParseMultipartForm(maxMemory); err != nil {
		return nil, &BadRequestError{Message: "Error processing uploaded files", Err: err}
	}
	defer r.MultipartForm.RemoveAll()

	req := &chatRequest{}
	if values := r.MultipartForm.Value["message"]; len(values) > 0 {
		req.Message = values[0]
	}
	for _, fh := range r.MultipartForm.File["files"] {
		name, err := h.storePart(fh)
		if err != nil {
			return nil, &BadRequestError{Message: "Error processing uploaded files", Err: err}
		}
		req.Files = append(req.Files, name)
	}
	return req, nil
}

func (h *Handler) storePart(fh *multipart.FileHeader) (string, error) {
	name := strings.TrimSpace(fh.Filename)
	if name == "" {
		name = "file-" + uuid.NewString()
	}

	f, err := fh.Open()
	if err != nil {
		return "", err
	}
	defer f.Close()

	path, err := h.uploads.Save(name, f)
	if err != nil {
		return "", err
	}
	h.logger.Info("Saved upload",
		zap.String("name", name),
		zap.Int64("size", fh.Size),
		zap.String("path", path))
	return name, nil
}
