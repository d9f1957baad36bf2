// Package client talks to the ingestion endpoint on behalf of the terminal
// chat client.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"strings"

	"github.com/RichardoC/neurosci-ai/internal/chat"
	"github.com/pkg/errors"
	"go.uber.org/zap"
)

const chatPath = "/api/chat"

// StatusError is returned when the endpoint answers with a non-2xx status.
type StatusError struct {
	Status  int
	Message string
}

func (e *StatusError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("chat endpoint returned status %d", e.Status)
	}
	return fmt.Sprintf("chat endpoint returned status %d: %s", e.Status, e.Message)
}

type Client struct {
	baseURL    string
	httpClient *http.Client
	logger     *zap.Logger
}

func New(baseURL string, httpClient *http.Client, logger *zap.Logger) *Client {
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: httpClient,
		logger:     logger,
	}
}

type jsonBody struct {
	Message        string   `json:"message"`
	HasAttachments bool     `json:"hasAttachments,omitempty"`
	FileCount      int      `json:"fileCount,omitempty"`
	FileNames      []string `json:"fileNames,omitempty"`
}

type replyBody struct {
	Response string `json:"response"`
	Message  string `json:"message"`
	Error    string `json:"error"`
	Files    []struct {
		Name string `json:"name"`
	} `json:"files"`
}

// Complete sends payloads as multipart form data, or a JSON body when only
// text and attachment names are available.
func (c *Client) Complete(ctx context.Context, req chat.CompletionRequest) (*chat.CompletionReply, error) {
	var (
		body        io.Reader
		contentType string
		err         error
	)
	if len(req.Files) > 0 {
		body, contentType, err = multipartBody(req)
	} else {
		body, contentType, err = jsonRequestBody(req)
	}
	if err != nil {
		return nil, err
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+chatPath, body)
	if err != nil {
		return nil, errors.Wrap(err, "failed to build chat request")
	}
	httpReq.Header.Set("Content-Type", contentType)

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, errors.Wrap(err, "failed to reach chat endpoint")
	}
	defer resp.Body.Close()

	var decoded replyBody
	decodeErr := json.NewDecoder(resp.Body).Decode(&decoded)

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		c.logger.Warn("Chat endpoint returned an error",
			zap.Int("status", resp.StatusCode),
			zap.String("error", decoded.Error))
		return nil, &StatusError{Status: resp.StatusCode, Message: decoded.Error}
	}
	if decodeErr != nil {
		return nil, errors.Wrap(decodeErr, "failed to decode chat response")
	}

	reply := &chat.CompletionReply{Response: decoded.Response, Message: decoded.Message}
	for _, f := range decoded.Files {
		reply.Files = append(reply.Files, f.Name)
	}
	return reply, nil
}

func jsonRequestBody(req chat.CompletionRequest) (io.Reader, string, error) {
	payload := jsonBody{Message: req.Message}
	if len(req.FileNames) > 0 {
		payload.HasAttachments = true
		payload.FileCount = len(req.FileNames)
		payload.FileNames = req.FileNames
	}
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, "", errors.Wrap(err, "failed to encode chat request")
	}
	return bytes.NewReader(data), "application/json", nil
}

func multipartBody(req chat.CompletionRequest) (io.Reader, string, error) {
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)

	if err := mw.WriteField("message", req.Message); err != nil {
		return nil, "", errors.Wrap(err, "failed to write message field")
	}
	for _, f := range req.Files {
		contentType := f.ContentType
		if contentType == "" {
			contentType = "application/octet-stream"
		}
		h := make(textproto.MIMEHeader)
		h.Set("Content-Disposition", fmt.Sprintf(`form-data; name="files"; filename=%q`, f.Name))
		h.Set("Content-Type", contentType)

		part, err := mw.CreatePart(h)
		if err != nil {
			return nil, "", errors.Wrapf(err, "failed to add %s", f.Name)
		}
		if _, err := part.Write(f.Data); err != nil {
			return nil, "", errors.Wrapf(err, "failed to write %s", f.Name)
		}
	}
	if err := mw.Close(); err != nil {
		return nil, "", errors.Wrap(err, "failed to finish multipart body")
	}
	return &buf, mw.FormDataContentType(), nil
}
