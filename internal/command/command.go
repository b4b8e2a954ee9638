// Package command parses client lines into switcher commands.
package command

import (
	"fmt"
	"strconv"
	"strings"

	swerr "switcherd/internal/errors"
)

// Verb is the operation a line asks for.
type Verb int

const (
	Unknown Verb = iota
	Transition
	Cut
	Program
	Preview
	Ping
)

var verbNames = map[Verb]string{
	Unknown:    "unknown",
	Transition: "transition",
	Cut:        "cut",
	Program:    "program",
	Preview:    "preview",
	Ping:       "ping",
}

func (v Verb) String() string {
	if n, ok := verbNames[v]; ok {
		return n
	}
	return "unknown"
}

// TakesSelector reports whether the verb needs an input number.
func (v Verb) TakesSelector() bool { return v == Program || v == Preview }

// ParseVerb maps a verb name ("transition", "cut", ...) back to a Verb.
func ParseVerb(name string) (Verb, error) {
	name = strings.ToLower(strings.TrimSpace(name))
	for v, n := range verbNames {
		if v != Unknown && n == name {
			return v, nil
		}
	}
	return Unknown, fmt.Errorf("unknown verb %q", name)
}

// Command is one parsed line.  Input is meaningful only when
// Verb.TakesSelector() is true.
type Command struct {
	Verb  Verb
	Input uint16
	Raw   string
}

// Reply is the direct answer owed to the issuing client: ACK for the
// probe and the no-argument triggers, an echo for selector commands,
// nothing for anything else.
func (c Command) Reply() string {
	switch c.Verb {
	case Ping, Transition, Cut:
		return "ACK"
	case Program, Preview:
		return c.Raw
	default:
		return ""
	}
}

// Vocabulary maps spellings to verbs.  Words stand alone ("tr");
// selectors are followed by '=' or '_' and a number ("pg=3").
type Vocabulary struct {
	words     map[string]Verb
	selectors map[string]Verb
}

// DefaultVocabulary returns the stock spellings.
func DefaultVocabulary() *Vocabulary {
	return &Vocabulary{
		words: map[string]Verb{
			"auto": Transition,
			"tr":   Transition,
			"ct":   Cut,
			"ping": Ping,
		},
		selectors: map[string]Verb{
			"pg":  Program,
			"pv":  Preview,
			"prv": Preview,
		},
	}
}

// Alias adds another spelling for verb.  Spellings are case-sensitive
// and may not contain whitespace, '=' or '_'.
func (v *Vocabulary) Alias(word string, verb Verb) error {
	if word == "" || strings.ContainsAny(word, "=_ \t\r\n") {
		return fmt.Errorf("invalid command word %q", word)
	}
	if verb == Unknown {
		return fmt.Errorf("cannot alias %q to the unknown verb", word)
	}
	if verb.TakesSelector() {
		delete(v.words, word)
		v.selectors[word] = verb
	} else {
		delete(v.selectors, word)
		v.words[word] = verb
	}
	return nil
}

// Lookup returns the verb behind an existing spelling.
func (v *Vocabulary) Lookup(word string) (Verb, bool) {
	if verb, ok := v.words[word]; ok {
		return verb, true
	}
	verb, ok := v.selectors[word]
	return verb, ok
}

// Parse turns one line into a Command.  Surrounding whitespace is
// ignored.  Lines the vocabulary does not know yield Verb Unknown and
// no error.  A known selector with a missing, signed, non-numeric or
// partially numeric tail yields a *errors.ParseError.
func (v *Vocabulary) Parse(line string) (Command, error) {
	raw := strings.TrimSpace(line)
	cmd := Command{Raw: raw}
	if raw == "" {
		return cmd, nil
	}

	if verb, ok := v.words[raw]; ok {
		cmd.Verb = verb
		return cmd, nil
	}

	head, tail, hasSep := raw, "", false
	if i := strings.IndexAny(raw, "=_"); i >= 0 {
		head, tail, hasSep = raw[:i], raw[i+1:], true
	}
	verb, ok := v.selectors[head]
	if !ok {
		return cmd, nil
	}
	if !hasSep || tail == "" {
		return cmd, &swerr.ParseError{Line: raw, Reason: "missing input number"}
	}
	n, err := strconv.ParseUint(tail, 10, 16)
	if err != nil {
		return cmd, &swerr.ParseError{Line: raw, Reason: fmt.Sprintf("input %q is not a number", tail)}
	}
	cmd.Verb = verb
	cmd.Input = uint16(n)
	return cmd, nil
}

var defaultVocabulary = DefaultVocabulary()

// Parse parses line with the default vocabulary.
func Parse(line string) (Command, error) { return defaultVocabulary.Parse(line) }
