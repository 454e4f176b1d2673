// Package testutils holds fakes shared by the package tests.
package testutils

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/aretw0/parley/pkg/domain"
	"github.com/aretw0/parley/pkg/ports"
)

// Stmt is a minimal Statement. Two Stmts are compatible when their names match.
type Stmt struct {
	Name   string
	Action bool
	// Unfilled lists the slots still missing, in order.
	Unfilled []domain.Slot
	Filled   map[string]any
}

// Query returns an executable, auto-confirmable statement.
func Query(name string) Stmt {
	return Stmt{Name: name}
}

// Action returns a statement that needs confirmation before it runs.
func Action(name string, slots ...string) Stmt {
	s := Stmt{Name: name, Action: true}
	for _, slot := range slots {
		s.Unfilled = append(s.Unfilled, domain.Slot{Name: slot, Category: domain.CategoryRawString})
	}
	return s
}

func (s Stmt) Compatible(other domain.Statement) bool {
	o, ok := other.(Stmt)
	return ok && o.Name == s.Name
}

func (s Stmt) Slots() []domain.Slot {
	return s.Unfilled
}

func (s Stmt) WithSlot(name string, value any) (domain.Statement, error) {
	idx := -1
	for i, slot := range s.Unfilled {
		if slot.Name == name {
			idx = i
		}
	}
	if idx < 0 {
		return nil, fmt.Errorf("%s has no slot %q", s.Name, name)
	}
	out := s
	out.Unfilled = append(append([]domain.Slot(nil), s.Unfilled[:idx]...), s.Unfilled[idx+1:]...)
	out.Filled = make(map[string]any, len(s.Filled)+1)
	for k, v := range s.Filled {
		out.Filled[k] = v
	}
	out.Filled[name] = value
	return out, nil
}

func (s Stmt) Executable() bool   { return len(s.Unfilled) == 0 }
func (s Stmt) AutoConfirm() bool  { return !s.Action }
func (s Stmt) OutputType() string { return "test:" + s.Name }

func (s Stmt) String() string {
	keys := make([]string, 0, len(s.Filled))
	for k := range s.Filled {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	args := make([]string, 0, len(keys))
	for _, k := range keys {
		args = append(args, fmt.Sprintf("%s=%v", k, s.Filled[k]))
	}
	return s.Name + "(" + strings.Join(args, ", ") + ")"
}

// Item wraps a statement in a history item.
func Item(stmt domain.Statement, confirm domain.ConfirmState, results *domain.ResultList) domain.HistoryItem {
	return domain.HistoryItem{Statement: stmt, Confirm: confirm, Results: results}
}

// Results builds a result list of rows with an "id" field.
func Results(ids ...string) *domain.ResultList {
	list := &domain.ResultList{Count: len(ids)}
	for _, id := range ids {
		list.Items = append(list.Items, domain.ResultItem{Value: map[string]domain.Value{
			"id": {Type: domain.TypeString, Raw: id},
		}})
	}
	return list
}

// Dialogue is a scripted ports.Dialogue. Ask and NextIntent consume Intents
// in order; every reply is recorded.
type Dialogue struct {
	mu      sync.Mutex
	Intents []domain.Intent
	Replies []domain.Message
	Expect  domain.ValueCategory
	Icon    string
}

var _ ports.Dialogue = (*Dialogue)(nil)

// Texts returns the text of every recorded reply.
func (d *Dialogue) Texts() []string {
	d.mu.Lock()
	defer d.mu.Unlock()
	out := make([]string, 0, len(d.Replies))
	for _, m := range d.Replies {
		out = append(out, m.Text)
	}
	return out
}

func (d *Dialogue) send(m domain.Message) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	m.Icon = d.Icon
	d.Replies = append(d.Replies, m)
	return nil
}

func (d *Dialogue) Reply(ctx context.Context, text string) error {
	return d.send(domain.TextMessage(text, ""))
}

func (d *Dialogue) Replyf(ctx context.Context, format string, args ...any) error {
	return d.Reply(ctx, fmt.Sprintf(format, args...))
}

func (d *Dialogue) ReplyPicture(ctx context.Context, url string) error {
	return d.send(domain.Message{Type: domain.MessagePicture, URL: url})
}

func (d *Dialogue) ReplyLink(ctx context.Context, title, url string) error {
	return d.send(domain.Message{Type: domain.MessageLink, Title: title, Text: title, URL: url})
}

func (d *Dialogue) ReplyButton(ctx context.Context, title, payload string) error {
	return d.send(domain.Message{Type: domain.MessageButton, Title: title, Text: title, Payload: payload})
}

func (d *Dialogue) ReplyChoice(ctx context.Context, idx int, title string) error {
	return d.send(domain.Message{Type: domain.MessageChoice, Title: title, Text: title, Index: idx})
}

func (d *Dialogue) SetIcon(icon string) {
	d.mu.Lock()
	d.Icon = icon
	d.mu.Unlock()
}

func (d *Dialogue) Expecting() domain.ValueCategory {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.Expect
}

func (d *Dialogue) SetExpected(ctx context.Context, expect domain.ValueCategory) error {
	d.mu.Lock()
	d.Expect = expect
	d.mu.Unlock()
	return nil
}

func (d *Dialogue) NextIntent(ctx context.Context) (domain.UserInput, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if len(d.Intents) == 0 {
		return domain.UserInput{}, domain.Cancelled()
	}
	next := d.Intents[0]
	d.Intents = d.Intents[1:]
	return domain.UserInput{Intent: next, Confident: true}, nil
}

func (d *Dialogue) Ask(ctx context.Context, expect domain.ValueCategory, question string) (any, error) {
	if err := d.Reply(ctx, question); err != nil {
		return nil, err
	}
	in, err := d.NextIntent(ctx)
	if err != nil {
		return nil, err
	}
	switch it := in.Intent.(type) {
	case domain.AnswerIntent:
		return it.Value, nil
	case domain.ChoiceIntent:
		return it.Index, nil
	default:
		return nil, domain.SwitchTo(in.Intent, in.Confident)
	}
}

func (d *Dialogue) AskChoices(ctx context.Context, question string, choices []string) (int, error) {
	if err := d.Reply(ctx, question); err != nil {
		return 0, err
	}
	for i, c := range choices {
		if err := d.ReplyChoice(ctx, i, c); err != nil {
			return 0, err
		}
	}
	in, err := d.NextIntent(ctx)
	if err != nil {
		return 0, err
	}
	choice, ok := in.Intent.(domain.ChoiceIntent)
	if !ok {
		return 0, domain.SwitchTo(in.Intent, in.Confident)
	}
	return choice.Index, nil
}

func (d *Dialogue) Fail(ctx context.Context, detail string) error {
	return d.Reply(ctx, "Sorry, I did not understand that.")
}

func (d *Dialogue) LookingFor(ctx context.Context) error {
	return d.Reply(ctx, d.Expecting().LookingFor())
}
