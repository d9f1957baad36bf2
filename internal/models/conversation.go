package models

import (
	"net/url"
	"path/filepath"
	"time"

	"github.com/google/uuid"
)

const (
	DefaultTitle           = "New Chat"
	AttachmentsPlaceholder = "Sent attachments"
	TitleMaxLen            = 40
	titleEllipsis          = "..."
)

// Role identifies the author of a message.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

func (r Role) Valid() bool {
	return r == RoleUser || r == RoleAssistant
}

type Attachment struct {
	Name string `json:"name"`
	Type string `json:"type"`
	Size int64  `json:"size"`
	URL  string `json:"url"`
}

type Message struct {
	Role        Role         `json:"role"`
	Content     string       `json:"content"`
	Timestamp   time.Time    `json:"timestamp"`
	Attachments []Attachment `json:"attachments,omitempty"`
}

type Conversation struct {
	ID        string    `json:"id"`
	Title     string    `json:"title"`
	Messages  []Message `json:"messages"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
	IsStarred bool      `json:"isStarred,omitempty"`
}

// NewConversation returns an empty conversation with a fresh id and the default title.
func NewConversation(now time.Time) Conversation {
	return Conversation{
		ID:        uuid.NewString(),
		Title:     DefaultTitle,
		Messages:  []Message{},
		CreatedAt: now,
		UpdatedAt: now,
	}
}

// Clone returns a deep copy so callers can't mutate controller-owned slices.
func (c Conversation) Clone() Conversation {
	out := c
	out.Messages = make([]Message, len(c.Messages))
	for i, m := range c.Messages {
		if m.Attachments != nil {
			m.Attachments = append([]Attachment(nil), m.Attachments...)
		}
		out.Messages[i] = m
	}
	return out
}

// DeriveTitle truncates content to TitleMaxLen characters, appending an
// ellipsis when anything was cut.
func DeriveTitle(content string) string {
	runes := []rune(content)
	if len(runes) <= TitleMaxLen {
		return content
	}
	return string(runes[:TitleMaxLen]) + titleEllipsis
}

// Upload is a staged attachment payload. It never reaches the durable slot;
// only its Attachment descriptor does.
type Upload struct {
	Name        string
	ContentType string
	Size        int64
	Data        []byte
	// Path is set when the upload was read from the local filesystem.
	Path string
}

// Attachment builds the display descriptor for u. The URL is only
// resolvable on the machine that staged the upload.
func (u Upload) Attachment() Attachment {
	ref := "attachment:" + uuid.NewString()
	if u.Path != "" {
		if abs, err := filepath.Abs(u.Path); err == nil {
			ref = (&url.URL{Scheme: "file", Path: filepath.ToSlash(abs)}).String()
		}
	}
	size := u.Size
	if size == 0 {
		size = int64(len(u.Data))
	}
	return Attachment{
		Name: u.Name,
		Type: u.ContentType,
		Size: size,
		URL:  ref,
	}
}
