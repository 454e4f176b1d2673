package console

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"
	"sync"

	"github.com/aretw0/parley/internal/presentation/tui"
	"github.com/aretw0/parley/pkg/domain"
	"github.com/aretw0/parley/pkg/ports"
	"github.com/muesli/termenv"
	"golang.org/x/term"
)

var _ ports.Sink = (*Sink)(nil)

// Sink prints agent messages to a terminal.
type Sink struct {
	mu     sync.Mutex
	w      io.Writer
	out    *termenv.Output
	render func(string) (string, error)
	expect domain.ValueCategory
}

// Option configures the Sink.
type Option func(*Sink)

// WithRenderer renders text messages as markdown before printing.
func WithRenderer(render func(string) (string, error)) Option {
	return func(s *Sink) {
		s.render = render
	}
}

// WithProfile forces a colour profile instead of detecting it from w.
func WithProfile(p termenv.Profile) Option {
	return func(s *Sink) {
		s.out = termenv.NewOutput(s.w, termenv.WithProfile(p))
	}
}

// NewSink creates a Sink writing to w (os.Stdout when nil). When w is a
// terminal, text is rendered with glamour.
func NewSink(w io.Writer, opts ...Option) *Sink {
	if w == nil {
		w = os.Stdout
	}
	s := &Sink{w: w, out: termenv.NewOutput(w)}
	if isTerminal(w) {
		s.render = tui.NewRenderer()
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func isTerminal(w io.Writer) bool {
	f, ok := w.(*os.File)
	return ok && term.IsTerminal(int(f.Fd()))
}

func (s *Sink) Send(ctx context.Context, msg domain.Message) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	var line string
	switch msg.Type {
	case domain.MessagePicture:
		line = "Picture: " + msg.URL
	case domain.MessageRDL, domain.MessageLink:
		line = fmt.Sprintf("%s <%s>", s.out.String(msg.Title).Underline(), msg.URL)
	case domain.MessageChoice:
		line = fmt.Sprintf("  %d. %s", msg.Index+1, msg.Title)
	case domain.MessageButton:
		line = s.out.String("[" + msg.Title + "]").Bold().String()
	default:
		line = s.text(msg.Text)
	}

	if msg.Icon != "" {
		prefix := s.out.String("[" + msg.Icon + "]").Foreground(s.out.Color("#a78bfa"))
		line = prefix.String() + " " + line
	}
	_, err := fmt.Fprintln(s.w, line)
	return err
}

func (s *Sink) text(text string) string {
	if s.render == nil {
		return text
	}
	rendered, err := s.render(text)
	if err != nil {
		return text
	}
	return strings.TrimSpace(rendered)
}

func (s *Sink) SetExpected(ctx context.Context, expect domain.ValueCategory) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.expect = expect
	return nil
}

// Prompt returns the input prompt for the current expectation.
func (s *Sink) Prompt() string {
	s.mu.Lock()
	defer s.mu.Unlock()

	switch s.expect {
	case domain.CategoryNone:
		return "> "
	case domain.CategoryYesNo:
		return "(yes/no) > "
	case domain.CategoryMultipleChoice:
		return "(pick a number) > "
	case domain.CategoryPassword:
		return "(password) > "
	default:
		return "(" + strings.ReplaceAll(string(s.expect), "_", " ") + ") > "
	}
}
