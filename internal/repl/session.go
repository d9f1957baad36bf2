// Package repl is the terminal front end of the chat controller.
package repl

import (
	"context"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/RichardoC/neurosci-ai/internal/chat"
	"github.com/RichardoC/neurosci-ai/internal/models"
	"github.com/peterh/liner"
	"github.com/pkg/errors"
	"go.uber.org/zap"
)

const DefaultPrompt = "neurosci> "

const helpText = `Commands:
  /new                 start a new conversation
  /list                list conversations
  /select <n|id>       switch to a conversation
  /delete [n|id]       delete a conversation (default: current)
  /rename <title>      rename the current conversation
  /star [n|id]         toggle the star on a conversation (default: current)
  /attach <path>...    stage files for the next message
  /detach <n>          drop a staged file
  /files               list staged files
  /show                print the current conversation
  /help                show this help
  /quit                exit
Anything else is sent as a message.`

// Prompter reads one line of input.
type Prompter interface {
	Prompt(prompt string) (string, error)
}

type Session struct {
	ctrl     *chat.Controller
	out      io.Writer
	renderer Renderer
	logger   *zap.Logger
}

func NewSession(ctrl *chat.Controller, out io.Writer, renderer Renderer, logger *zap.Logger) *Session {
	if renderer == nil {
		renderer = PlainRenderer{}
	}
	return &Session{ctrl: ctrl, out: out, renderer: renderer, logger: logger}
}

// Run reads lines until the input ends or /quit is entered.
func (s *Session) Run(ctx context.Context, p Prompter) error {
	fmt.Fprintln(s.out, "Type /help for commands.")
	for {
		if err := ctx.Err(); err != nil {
			return nil
		}
		line, err := p.Prompt(DefaultPrompt)
		if err != nil {
			if errors.Is(err, io.EOF) || errors.Is(err, liner.ErrPromptAborted) {
				fmt.Fprintln(s.out)
				return nil
			}
			return errors.Wrap(err, "failed to read input")
		}

		more, err := s.Handle(ctx, line)
		if err != nil {
			fmt.Fprintf(s.out, "Error: %v\n", err)
		}
		if !more {
			return nil
		}
	}
}

// Handle executes one input line. It returns false once the session should
// end.
func (s *Session) Handle(ctx context.Context, line string) (bool, error) {
	line = strings.TrimSpace(line)
	if line == "" {
		return true, nil
	}
	if !strings.HasPrefix(line, "/") {
		return true, s.send(ctx, line)
	}

	command, rest, _ := strings.Cut(line, " ")
	rest = strings.TrimSpace(rest)
	args := strings.Fields(rest)

	switch strings.ToLower(command) {
	case "/help", "/?":
		fmt.Fprintln(s.out, helpText)
	case "/quit", "/exit", "/q":
		return false, nil
	case "/new":
		conv := s.ctrl.CreateConversation()
		fmt.Fprintf(s.out, "Started %q\n", conv.Title)
	case "/list":
		s.list()
	case "/select":
		if len(args) != 1 {
			return true, errors.New("usage: /select <n|id>")
		}
		id, err := s.resolve(args[0])
		if err != nil {
			return true, err
		}
		s.ctrl.SelectConversation(id)
		s.show()
	case "/delete":
		id, err := s.resolveOrCurrent(args)
		if err != nil {
			return true, err
		}
		if !s.ctrl.DeleteConversation(id) {
			return true, chat.ErrNotFound
		}
		fmt.Fprintln(s.out, "Deleted.")
	case "/rename":
		if err := s.ctrl.RenameConversation(s.ctrl.CurrentID(), rest); err != nil {
			return true, err
		}
		fmt.Fprintf(s.out, "Renamed to %q\n", strings.TrimSpace(rest))
	case "/star":
		id, err := s.resolveOrCurrent(args)
		if err != nil {
			return true, err
		}
		starred, err := s.ctrl.ToggleStar(id)
		if err != nil {
			return true, err
		}
		if starred {
			fmt.Fprintln(s.out, "Starred.")
		} else {
			fmt.Fprintln(s.out, "Unstarred.")
		}
	case "/attach":
		return true, s.attach(args)
	case "/detach":
		if len(args) != 1 {
			return true, errors.New("usage: /detach <n>")
		}
		n, err := strconv.Atoi(args[0])
		if err != nil || !s.ctrl.Unstage(n-1) {
			return true, errors.Errorf("no staged file %s", args[0])
		}
		s.files()
	case "/files":
		s.files()
	case "/show":
		s.show()
	default:
		return true, errors.Errorf("unknown command: %s (type /help for commands)", command)
	}
	return true, nil
}

func (s *Session) send(ctx context.Context, text string) error {
	s.ctrl.SetInput(text)
	res, err := s.ctrl.SubmitDraft(ctx)
	if err != nil {
		return err
	}
	if res.Err != nil {
		s.logger.Debug("Submission failed", zap.Error(res.Err))
	}
	fmt.Fprintln(s.out, s.renderer.Render(res.Reply.Content))
	return nil
}

func (s *Session) attach(paths []string) error {
	if len(paths) == 0 {
		return errors.New("usage: /attach <path>...")
	}
	for _, p := range paths {
		u, err := LoadUpload(p)
		if err != nil {
			return err
		}
		s.ctrl.Stage(u)
		fmt.Fprintf(s.out, "Attached %s (%s, %s)\n", u.Name, u.ContentType, FormatSize(u.Size))
	}
	return nil
}

func (s *Session) files() {
	staged := s.ctrl.Staged()
	if len(staged) == 0 {
		fmt.Fprintln(s.out, "No files staged.")
		return
	}
	for i, u := range staged {
		fmt.Fprintf(s.out, "%2d. %s (%s)\n", i+1, u.Name, FormatSize(u.Size))
	}
}

func (s *Session) list() {
	convs := s.ctrl.Conversations()
	if len(convs) == 0 {
		fmt.Fprintln(s.out, "No conversations.")
		return
	}
	current := s.ctrl.CurrentID()
	for i, c := range convs {
		marker := " "
		if c.ID == current {
			marker = ">"
		}
		star := ""
		if c.IsStarred {
			star = " *"
		}
		fmt.Fprintf(s.out, "%s %2d. %s%s (%d messages, %s)\n",
			marker, i+1, c.Title, star, len(c.Messages), c.UpdatedAt.Format("2006-01-02 15:04"))
	}
}

func (s *Session) show() {
	conv, ok := s.ctrl.Current()
	if !ok {
		fmt.Fprintln(s.out, "No conversation selected. Use /new to start one.")
		return
	}
	fmt.Fprintf(s.out, "== %s ==\n", conv.Title)
	for _, m := range conv.Messages {
		fmt.Fprintf(s.out, "[%s] %s\n", m.Timestamp.Format("15:04"), roleLabel(m.Role))
		for _, a := range m.Attachments {
			if a.Size > 0 {
				fmt.Fprintf(s.out, "  + %s (%s)\n", a.Name, FormatSize(a.Size))
			} else {
				fmt.Fprintf(s.out, "  + %s\n", a.Name)
			}
		}
		if m.Role == models.RoleAssistant {
			fmt.Fprintln(s.out, s.renderer.Render(m.Content))
		} else {
			fmt.Fprintln(s.out, m.Content)
		}
	}
}

func roleLabel(r models.Role) string {
	if r == models.RoleUser {
		return "You"
	}
	return "neurosci.ai"
}

// resolve maps a 1-based list position or a conversation id to an id.
func (s *Session) resolve(ref string) (string, error) {
	convs := s.ctrl.Conversations()
	if n, err := strconv.Atoi(ref); err == nil {
		if n < 1 || n > len(convs) {
			return "", chat.ErrNotFound
		}
		return convs[n-1].ID, nil
	}
	for _, c := range convs {
		if c.ID == ref {
			return c.ID, nil
		}
	}
	return "", chat.ErrNotFound
}

func (s *Session) resolveOrCurrent(args []string) (string, error) {
	if len(args) > 0 {
		return s.resolve(args[0])
	}
	id := s.ctrl.CurrentID()
	if id == "" {
		return "", chat.ErrNotFound
	}
	return id, nil
}
