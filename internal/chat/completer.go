package chat

import (
	"context"

	"github.com/RichardoC/neurosci-ai/internal/llm"
	"github.com/RichardoC/neurosci-ai/internal/models"
)

// CompletionRequest is one submission as sent to the completion endpoint.
// Files carries payloads; FileNames announces attachments whose payloads
// were not supplied.
type CompletionRequest struct {
	Message   string
	Files     []models.Upload
	FileNames []string
}

// CompletionReply mirrors the endpoint's response body. Message is the
// secondary text field used when Response is empty.
type CompletionReply struct {
	Response string
	Message  string
	Files    []string
}

type Completer interface {
	Complete(ctx context.Context, req CompletionRequest) (*CompletionReply, error)
}

// Gateway is the in-process completion gateway.
type Gateway interface {
	Complete(ctx context.Context, prompt string, files []string) (*llm.Completion, error)
}

// DirectCompleter calls the gateway without going through HTTP. Payload
// bytes are dropped; only names are announced.
type DirectCompleter struct {
	gateway Gateway
}

func NewDirectCompleter(gateway Gateway) *DirectCompleter {
	return &DirectCompleter{gateway: gateway}
}

func (d *DirectCompleter) Complete(ctx context.Context, req CompletionRequest) (*CompletionReply, error) {
	names := req.FileNames
	if len(req.Files) > 0 {
		names = make([]string, 0, len(req.Files))
		for _, f := range req.Files {
			names = append(names, f.Name)
		}
	}

	completion, err := d.gateway.Complete(ctx, req.Message, names)
	if err != nil {
		return nil, err
	}
	return &CompletionReply{Response: completion.Text, Files: completion.Files}, nil
}
