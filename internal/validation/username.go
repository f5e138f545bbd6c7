package validation

import (
	_ "embed"
	"fmt"
	"os"
	"strings"
	"unicode/utf8"

	"golang.org/x/text/cases"
	"golang.org/x/text/unicode/norm"
	"gopkg.in/yaml.v3"
)

const (
	MinLength = 3
	MaxLength = 20
)

//go:embed profanity.yaml
var defaultList []byte

// Kind classifies a rejected username.
type Kind int

const (
	TooShort Kind = iota + 1
	TooLong
	ContainsProfanity
)

// Error is returned by Validate for a rejected username. Words is only set
// for ContainsProfanity.
type Error struct {
	Kind  Kind
	Words []string
}

func (e *Error) Error() string {
	switch e.Kind {
	case TooShort:
		return fmt.Sprintf("Username must have a minimum length of %d characters.", MinLength)
	case TooLong:
		return fmt.Sprintf("Username cannot exceed a maximum length of %d characters.", MaxLength)
	case ContainsProfanity:
		return fmt.Sprintf("The entered username contains the following disallowed words: [%s]",
			strings.Join(e.Words, ", "))
	default:
		return "invalid username"
	}
}

// Validator checks usernames against length bounds and a word list. It is a
// pure function of its input and safe for concurrent use.
type Validator struct {
	words []string
}

type wordList struct {
	Words []string `yaml:"words"`
}

// New builds a validator over the given words. Words are normalised the same
// way names are, blank entries are ignored.
func New(words []string) *Validator {
	v := &Validator{}
	for _, w := range words {
		w = v.normalize(strings.TrimSpace(w))
		if w != "" {
			v.words = append(v.words, w)
		}
	}
	return v
}

// Parse builds a validator from a YAML document with a top-level "words" list.
func Parse(data []byte) (*Validator, error) {
	var list wordList
	if err := yaml.Unmarshal(data, &list); err != nil {
		return nil, fmt.Errorf("parse word list: %w", err)
	}
	return New(list.Words), nil
}

// LoadFile reads a word list from disk.
func LoadFile(path string) (*Validator, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read word list %s: %w", path, err)
	}
	return Parse(data)
}

var std = mustDefault()

func mustDefault() *Validator {
	v, err := Parse(defaultList)
	if err != nil {
		panic(err)
	}
	return v
}

// Default returns the validator built from the embedded word list.
func Default() *Validator { return std }

// ValidateUsername checks name against the embedded word list.
func ValidateUsername(name string) error {
	return std.Validate(name)
}

// Validate returns nil for an acceptable name or an *Error describing the
// first rule it breaks.
func (v *Validator) Validate(name string) error {
	n := utf8.RuneCountInString(name)
	if n < MinLength {
		return &Error{Kind: TooShort}
	}
	if n > MaxLength {
		return &Error{Kind: TooLong}
	}
	if found := v.findProfanity(name); len(found) > 0 {
		return &Error{Kind: ContainsProfanity, Words: found}
	}
	return nil
}

func (v *Validator) findProfanity(name string) []string {
	folded := v.normalize(name)
	var found []string
	for _, w := range v.words {
		if strings.Contains(folded, w) {
			found = append(found, w)
		}
	}
	return found
}

// normalize folds case after NFKC so full-width and styled letters match
// the plain list entries. Casers are stateful, so one is built per call.
func (v *Validator) normalize(s string) string {
	return cases.Fold().String(norm.NFKC.String(s))
}

// Words returns a copy of the normalised word list.
func (v *Validator) Words() []string {
	return append([]string(nil), v.words...)
}
