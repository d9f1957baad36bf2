// Package chat holds the conversation collection and drives the exchange
// with the completion endpoint.
package chat

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/RichardoC/neurosci-ai/internal/db"
	"github.com/RichardoC/neurosci-ai/internal/models"
	"go.uber.org/zap"
)

var (
	ErrEmptySubmission    = errors.New("message or attachments are required")
	ErrSubmissionInFlight = errors.New("a submission is already in flight")
	ErrNotFound           = errors.New("conversation not found")
	ErrEmptyTitle         = errors.New("title must not be empty")
)

const (
	ApologyMessage    = "Sorry, there was an error processing your request."
	NoResponseMessage = "No response from the model"
)

// Result describes one completed submission. Err is set when the completer
// failed; Reply then holds the apology that was appended in its place.
type Result struct {
	ConversationID string
	User           models.Message
	Reply          models.Message
	Err            error
}

// Controller is the single writer of the conversation collection. All
// methods are safe for concurrent use; only Submit is limited to one call at
// a time, and it does not block the other operations while waiting on the
// completer.
type Controller struct {
	mu        sync.Mutex
	convs     []models.Conversation
	currentID string
	input     string
	staged    []models.Upload
	inFlight  bool

	repo      db.ConversationRepository
	completer Completer
	logger    *zap.Logger
	now       func() time.Time
}

func New(repo db.ConversationRepository, completer Completer, logger *zap.Logger) *Controller {
	return &Controller{
		convs:     []models.Conversation{},
		repo:      repo,
		completer: completer,
		logger:    logger,
		now:       time.Now,
	}
}

// Restore loads the stored collection and selects its first conversation,
// creating a fresh one when nothing was stored. A load failure is returned
// after the controller has already fallen back to an empty collection.
func (c *Controller) Restore(ctx context.Context) error {
	convs, err := c.repo.Load(ctx)
	if err != nil {
		c.logger.Error("Failed to load conversations, starting empty", zap.Error(err))
		convs = []models.Conversation{}
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	c.convs = convs
	if len(c.convs) > 0 {
		c.currentID = c.convs[0].ID
		return err
	}
	c.createLocked()
	return err
}

func (c *Controller) CreateConversation() models.Conversation {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.createLocked().Clone()
}

func (c *Controller) createLocked() *models.Conversation {
	conv := models.NewConversation(c.now())
	c.convs = append([]models.Conversation{conv}, c.convs...)
	c.currentID = conv.ID
	c.input = ""
	c.staged = nil
	c.persistLocked()
	return &c.convs[0]
}

// SelectConversation makes id current. Unknown ids are ignored.
func (c *Controller) SelectConversation(id string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.indexLocked(id) < 0 {
		return false
	}
	c.currentID = id
	return true
}

// DeleteConversation removes id. If it was current, the first remaining
// conversation becomes current, or none if the collection is now empty.
func (c *Controller) DeleteConversation(id string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	i := c.indexLocked(id)
	if i < 0 {
		return false
	}
	c.convs = append(c.convs[:i], c.convs[i+1:]...)
	if c.currentID == id {
		c.currentID = ""
		if len(c.convs) > 0 {
			c.currentID = c.convs[0].ID
		}
	}
	c.persistLocked()
	return true
}

func (c *Controller) RenameConversation(id, title string) error {
	title = strings.TrimSpace(title)
	if title == "" {
		return ErrEmptyTitle
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	i := c.indexLocked(id)
	if i < 0 {
		return ErrNotFound
	}
	c.convs[i].Title = title
	c.convs[i].UpdatedAt = c.now()
	c.persistLocked()
	return nil
}

// ToggleStar flips the starred flag and returns the new value.
func (c *Controller) ToggleStar(id string) (bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	i := c.indexLocked(id)
	if i < 0 {
		return false, ErrNotFound
	}
	c.convs[i].IsStarred = !c.convs[i].IsStarred
	c.convs[i].UpdatedAt = c.now()
	c.persistLocked()
	return c.convs[i].IsStarred, nil
}

// SetInput stages the text of the next submission.
func (c *Controller) SetInput(text string) {
	c.mu.Lock()
	c.input = text
	c.mu.Unlock()
}

func (c *Controller) Input() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.input
}

// Stage adds attachments to the next submission.
func (c *Controller) Stage(uploads ...models.Upload) {
	c.mu.Lock()
	c.staged = append(c.staged, uploads...)
	c.mu.Unlock()
}

// Unstage drops the staged attachment at index i.
func (c *Controller) Unstage(i int) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if i < 0 || i >= len(c.staged) {
		return false
	}
	c.staged = append(c.staged[:i:i], c.staged[i+1:]...)
	return true
}

func (c *Controller) Staged() []models.Upload {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]models.Upload(nil), c.staged...)
}

// SubmitDraft submits the staged input and attachments.
func (c *Controller) SubmitDraft(ctx context.Context) (*Result, error) {
	c.mu.Lock()
	text, files := c.input, append([]models.Upload(nil), c.staged...)
	c.mu.Unlock()
	return c.Submit(ctx, text, files)
}

// Submit appends a user message to the current conversation, asks the
// completer for a reply and appends that reply. Completer failures do not
// return an error: they append ApologyMessage and are reported in
// Result.Err. names announces attachments whose payloads are not available;
// they are only used when files is empty.
func (c *Controller) Submit(ctx context.Context, text string, files []models.Upload, names ...string) (*Result, error) {
	content := strings.TrimSpace(text)

	c.mu.Lock()
	if content == "" && len(files) == 0 && len(names) == 0 {
		c.mu.Unlock()
		return nil, ErrEmptySubmission
	}
	if c.inFlight {
		c.mu.Unlock()
		return nil, ErrSubmissionInFlight
	}

	i := c.indexLocked(c.currentID)
	if i < 0 {
		c.createLocked()
		i = 0
	}
	if content == "" {
		content = models.AttachmentsPlaceholder
	}

	now := c.now()
	user := models.Message{Role: models.RoleUser, Content: content, Timestamp: now}
	switch {
	case len(files) > 0:
		for _, f := range files {
			user.Attachments = append(user.Attachments, f.Attachment())
		}
	case len(names) > 0:
		for _, n := range names {
			user.Attachments = append(user.Attachments, models.Attachment{Name: n})
		}
	}

	conv := &c.convs[i]
	if len(conv.Messages) == 0 {
		conv.Title = models.DeriveTitle(content)
	}
	conv.Messages = append(conv.Messages, user)
	conv.UpdatedAt = now
	convID := conv.ID

	c.inFlight = true
	c.input = ""
	c.staged = nil
	c.persistLocked()
	c.mu.Unlock()

	defer c.clearInFlight()

	req := CompletionRequest{Message: content}
	if len(files) > 0 {
		req.Files = files
	} else {
		req.FileNames = names
	}

	result := &Result{ConversationID: convID, User: user}
	reply, err := c.complete(ctx, req)
	text = ApologyMessage
	if err != nil {
		result.Err = err
		c.logger.Error("Completion failed",
			zap.Error(err),
			zap.String("conversation", convID))
	} else {
		text = replyText(reply)
	}
	result.Reply = c.appendReply(convID, text)
	return result, nil
}

// complete turns a completer panic into an error so the apology path runs.
func (c *Controller) complete(ctx context.Context, req CompletionRequest) (reply *CompletionReply, err error) {
	defer func() {
		if p := recover(); p != nil {
			err = fmt.Errorf("completer panicked: %v", p)
		}
	}()
	return c.completer.Complete(ctx, req)
}

func replyText(reply *CompletionReply) string {
	switch {
	case reply == nil:
		return NoResponseMessage
	case reply.Response != "":
		return reply.Response
	case reply.Message != "":
		return reply.Message
	default:
		return NoResponseMessage
	}
}

func (c *Controller) appendReply(convID, text string) models.Message {
	c.mu.Lock()
	defer c.mu.Unlock()

	msg := models.Message{Role: models.RoleAssistant, Content: text, Timestamp: c.now()}
	i := c.indexLocked(convID)
	if i < 0 {
		c.logger.Info("Dropping reply for deleted conversation", zap.String("conversation", convID))
		return msg
	}
	c.convs[i].Messages = append(c.convs[i].Messages, msg)
	c.convs[i].UpdatedAt = msg.Timestamp
	c.persistLocked()
	return msg
}

func (c *Controller) clearInFlight() {
	c.mu.Lock()
	c.inFlight = false
	c.mu.Unlock()
}

func (c *Controller) InFlight() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.inFlight
}

// Conversations returns a copy of the collection, most recent first.
func (c *Controller) Conversations() []models.Conversation {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]models.Conversation, len(c.convs))
	for i, conv := range c.convs {
		out[i] = conv.Clone()
	}
	return out
}

func (c *Controller) Conversation(id string) (models.Conversation, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	i := c.indexLocked(id)
	if i < 0 {
		return models.Conversation{}, false
	}
	return c.convs[i].Clone(), true
}

func (c *Controller) CurrentID() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.currentID
}

func (c *Controller) Current() (models.Conversation, bool) {
	return c.Conversation(c.CurrentID())
}

func (c *Controller) indexLocked(id string) int {
	if id == "" {
		return -1
	}
	for i := range c.convs {
		if c.convs[i].ID == id {
			return i
		}
	}
	return -1
}

// persistLocked writes the whole collection. A failed save is logged; the
// in-memory collection stays authoritative.
func (c *Controller) persistLocked() {
	if err := c.repo.Save(context.Background(), c.convs); err != nil {
		c.logger.Error("Failed to save conversations",
			zap.Error(err),
			zap.Int("count", len(c.convs)))
	}
}
