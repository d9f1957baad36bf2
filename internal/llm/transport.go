package llm

import (
	"encoding/json"
	"io"
	"net/http"
)

const unknownUpstreamError = "Unknown error"

// doer matches the HTTP client interface langchaingo accepts.
type doer interface {
	Do(req *http.Request) (*http.Response, error)
}

// upstreamDoer turns provider failures into typed errors before langchaingo
// flattens them into strings.
type upstreamDoer struct {
	next doer
}

func (d *upstreamDoer) Do(req *http.Request) (*http.Response, error) {
	resp, err := d.next.Do(req)
	if err != nil {
		return nil, &TransportError{Err: err}
	}
	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		return resp, nil
	}
	defer resp.Body.Close()

	return nil, &UpstreamError{
		Status:  resp.StatusCode,
		Message: upstreamMessage(resp.Body),
	}
}

func upstreamMessage(body io.Reader) string {
	var payload struct {
		Error struct {
			Message string `json:"message"`
		} `json:"error"`
	}
	if err := json.NewDecoder(io.LimitReader(body, 1<<20)).Decode(&payload); err != nil || payload.Error.Message == "" {
		return unknownUpstreamError
	}
	return payload.Error.Message
}
