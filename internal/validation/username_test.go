package validation

import (
	"errors"
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"testing"
)

func kindOf(t *testing.T, err error) Kind {
	t.Helper()
	var ve *Error
	if !errors.As(err, &ve) {
		t.Fatalf("expected *validation.Error, got %T (%v)", err, err)
	}
	return ve.Kind
}

func TestAcceptableUsernames(t *testing.T) {
	for _, name := range []string{
		"Alaric",
		"Alaric Ganthaeter",
		"Yslith",
		"Tyrlia",
		"CaptainJaeger",
		"Captain Jaeger",
	} {
		if err := ValidateUsername(name); err != nil {
			t.Fatalf("%q should be accepted, got %v", name, err)
		}
	}
}

func TestTooShortUsernames(t *testing.T) {
	for _, name := range []string{"Al", "H3", "A", "CJ", ""} {
		if got := kindOf(t, ValidateUsername(name)); got != TooShort {
			t.Fatalf("%q: expected TooShort, got %v", name, got)
		}
	}
}

func TestTooLongUsernames(t *testing.T) {
	for _, name := range []string{
		"AlaricAlaricAlaricAlaricAlaricAlaric",
		"CaptainJaegerCaptainJaegerCaptainJaegerCaptainJaegerCaptainJaeger",
	} {
		if got := kindOf(t, ValidateUsername(name)); got != TooLong {
			t.Fatalf("%q: expected TooLong, got %v", name, got)
		}
	}
}

func TestLengthCountsRunes(t *testing.T) {
	// Three runes, nine bytes.
	if err := ValidateUsername("ÆØÅ"); err != nil {
		t.Fatalf("expected three-rune name to pass, got %v", err)
	}
}

func TestProfaneUsernames(t *testing.T) {
	words := Default().Words()
	if len(words) == 0 {
		t.Fatal("embedded word list is empty")
	}
	for _, w := range words {
		for _, variant := range []string{w, strings.ToUpper(w)} {
			name := "AB" + variant + "cd"
			err := ValidateUsername(name)
			if got := kindOf(t, err); got != ContainsProfanity {
				t.Fatalf("%q: expected ContainsProfanity, got %v", name, got)
			}
			var ve *Error
			errors.As(err, &ve)
			if !reflect.DeepEqual(ve.Words, []string{w}) {
				t.Fatalf("%q: expected words [%s], got %v", name, w, ve.Words)
			}
		}
	}
}

func TestFullWidthProfanity(t *testing.T) {
	v := New([]string{"Fuck"})
	err := v.Validate("ABＦＵＣＫcd")
	if got := kindOf(t, err); got != ContainsProfanity {
		t.Fatalf("expected full-width letters to be folded, got %v", got)
	}
}

func TestErrorMessages(t *testing.T) {
	cases := map[string]error{
		"Username must have a minimum length of 3 characters.":       &Error{Kind: TooShort},
		"Username cannot exceed a maximum length of 20 characters.": &Error{Kind: TooLong},
		"The entered username contains the following disallowed words: [a, b]": &Error{
			Kind: ContainsProfanity, Words: []string{"a", "b"},
		},
	}
	for want, err := range cases {
		if err.Error() != want {
			t.Fatalf("got %q, want %q", err.Error(), want)
		}
	}
}

func TestLoadFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "words.yaml")
	if err := os.WriteFile(path, []byte("words:\n  - grob\n  - \"  \"\n"), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	v, err := LoadFile(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if !reflect.DeepEqual(v.Words(), []string{"grob"}) {
		t.Fatalf("unexpected words %v", v.Words())
	}
	if got := kindOf(t, v.Validate("MrGROBnik")); got != ContainsProfanity {
		t.Fatalf("expected custom word to be rejected, got %v", got)
	}
	if err := v.Validate("Alaric"); err != nil {
		t.Fatalf("expected Alaric to pass, got %v", err)
	}

	if _, err := LoadFile(filepath.Join(t.TempDir(), "missing.yaml")); err == nil {
		t.Fatal("expected error for missing file")
	}
	if _, err := Parse([]byte("words: [unterminated")); err == nil {
		t.Fatal("expected parse error")
	}
}
