package skill

import (
	"context"
	"strconv"
	"strings"

	"github.com/aretw0/parley/pkg/domain"
	"github.com/aretw0/parley/pkg/ports"
)

var _ ports.Parser = (*Parser)(nil)

var controlWords = map[string]domain.ControlCommand{
	"stop":       domain.CommandStop,
	"cancel":     domain.CommandStop,
	"never mind": domain.CommandNeverMind,
	"nevermind":  domain.CommandNeverMind,
	"forget it":  domain.CommandNeverMind,
	"debug":      domain.CommandDebug,
	"wake up":    domain.CommandWakeUp,
	"hey":        domain.CommandWakeUp,
	"train":      domain.CommandTrain,
}

var yesNoWords = map[string]bool{
	"yes": true, "yeah": true, "yep": true, "sure": true, "ok": true, "okay": true,
	"no": false, "nope": false, "nah": false,
}

var ordinals = map[string]int{
	"first": 0, "second": 1, "third": 2, "fourth": 3, "fifth": 4,
}

// Parser is a keyword parser over a catalog. It is deliberately simple: it
// exists to drive the conversation from a terminal or an HTTP client without
// an NLU service.
//
// A line naming a skill keyword becomes a ProgramIntent; "name=value" tokens
// fill the skill's inputs.
type Parser struct {
	catalog *Catalog
}

// NewParser creates a parser matching the skills of c.
func NewParser(c *Catalog) *Parser {
	return &Parser{catalog: c}
}

func (p *Parser) Parse(ctx context.Context, text string, expect domain.ValueCategory) (domain.Intent, error) {
	raw := strings.TrimSpace(text)
	norm := strings.TrimRight(strings.ToLower(raw), ".!?")

	if cmd, ok := controlWords[norm]; ok {
		return domain.ControlIntent{Command: cmd}, nil
	}
	if expect != domain.CategoryPassword {
		if yes, ok := yesNoWords[norm]; ok {
			if yes {
				return domain.Yes, nil
			}
			return domain.No, nil
		}
	}

	switch expect {
	case domain.CategoryMultipleChoice:
		if idx, ok := choice(norm); ok {
			return domain.ChoiceIntent{Index: idx}, nil
		}
	case domain.CategoryNumber:
		if n, err := strconv.ParseFloat(norm, 64); err == nil {
			return domain.AnswerIntent{Category: domain.CategoryNumber, Value: n}, nil
		}
	}

	if intent, ok, err := p.invocation(norm, raw); ok || err != nil {
		return intent, err
	}

	switch expect {
	case domain.CategoryNone, domain.CategoryYesNo, domain.CategoryMultipleChoice, domain.CategoryNumber:
	default:
		return domain.AnswerIntent{Category: expect, Value: raw}, nil
	}

	if norm == "help" {
		return domain.LegacyIntent{Kind: "help"}, nil
	}
	return domain.FailedIntent{Utterance: raw}, nil
}

func choice(norm string) (int, bool) {
	norm = strings.TrimSuffix(strings.TrimPrefix(norm, "the "), " one")
	if idx, ok := ordinals[norm]; ok {
		return idx, true
	}
	if n, err := strconv.Atoi(norm); err == nil && n > 0 {
		return n - 1, true
	}
	return 0, false
}

// invocation matches the first skill with a keyword among the words of norm.
func (p *Parser) invocation(norm, raw string) (domain.Intent, bool, error) {
	words := strings.Fields(norm)
	for _, s := range p.catalog.skills {
		if !matches(words, s.Keywords) {
			continue
		}
		inv, err := p.catalog.Invoke(s.ID, args(raw, s))
		if err != nil {
			return nil, false, err
		}
		return domain.ProgramIntent{Program: inv}, true, nil
	}
	return nil, false, nil
}

func matches(words, keywords []string) bool {
	for _, w := range words {
		for _, kw := range keywords {
			if w == kw {
				return true
			}
		}
	}
	return false
}

// args collects name=value tokens naming one of the skill's slots. Values
// keep their original case.
func args(raw string, s *Skill) map[string]any {
	out := make(map[string]any)
	for _, tok := range strings.Fields(raw) {
		name, value, ok := strings.Cut(tok, "=")
		if !ok || value == "" {
			continue
		}
		name = strings.ToLower(name)
		for _, spec := range s.Slots {
			if spec.Name != name {
				continue
			}
			if domain.ValueCategory(spec.Category) == domain.CategoryNumber {
				if n, err := strconv.ParseFloat(value, 64); err == nil {
					out[name] = n
					break
				}
			}
			out[name] = value
		}
	}
	return out
}

// HelpText lists the available skills.
func (c *Catalog) HelpText() string {
	if len(c.skills) == 0 {
		return "I don't know any skill yet."
	}
	names := make([]string, 0, len(c.skills))
	for _, s := range c.skills {
		if s.Description != "" {
			names = append(names, s.Description)
		} else {
			names = append(names, s.ID)
		}
	}
	return "I can help with: " + strings.Join(names, ", ") + "."
}
