package grading

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
)

// Type is the kind of question being answered.
type Type string

const (
	TypeSingle   Type = "single"
	TypeMultiple Type = "multiple"
	TypeFill     Type = "fill"
	TypeEssay    Type = "essay"
)

func (t Type) Valid() bool {
	switch t {
	case TypeSingle, TypeMultiple, TypeFill, TypeEssay:
		return true
	}
	return false
}

// HasOptions reports whether answers are option letters.
func (t Type) HasOptions() bool { return t == TypeSingle || t == TypeMultiple }

var ErrInvalidAnswerFormat = errors.New("invalid answer format")

// Value is a normalized answer. Which concrete variant you get depends on the
// question type it was normalized for.
type Value interface {
	Tokens() []string
}

// SingleLetter is the answer to a single-choice question.
type SingleLetter string

func (v SingleLetter) Tokens() []string {
	if v == "" {
		return nil
	}
	return []string{string(v)}
}

// LetterSet is the answer to a multiple-choice question: distinct letters in
// the order they were first given.
type LetterSet []string

func (v LetterSet) Tokens() []string {
	if len(v) == 0 {
		return nil
	}
	out := make([]string, len(v))
	copy(out, v)
	return out
}

// FreeText is a fill-in answer.
type FreeText string

func (v FreeText) Tokens() []string {
	if v == "" {
		return nil
	}
	return []string{string(v)}
}

// EssayText always yields exactly one token, even when empty.
type EssayText string

func (v EssayText) Tokens() []string { return []string{string(v)} }

// Normalize turns raw submitted tokens into the canonical value for t.
// It never fails; shapes that make no sense for t collapse to an empty answer.
func Normalize(raw []string, t Type) Value {
	switch t {
	case TypeSingle:
		if len(raw) == 0 {
			return SingleLetter("")
		}
		return SingleLetter(strings.TrimSpace(raw[0]))
	case TypeMultiple:
		seen := make(map[string]struct{}, len(raw))
		out := make(LetterSet, 0, len(raw))
		for _, r := range raw {
			s := strings.TrimSpace(r)
			if s == "" {
				continue
			}
			if _, dup := seen[s]; dup {
				continue
			}
			seen[s] = struct{}{}
			out = append(out, s)
		}
		return out
	case TypeEssay:
		if len(raw) == 0 {
			return EssayText("")
		}
		return EssayText(strings.TrimSpace(raw[0]))
	default:
		if len(raw) == 0 {
			return FreeText("")
		}
		return FreeText(strings.TrimSpace(raw[0]))
	}
}

// ValidateKey checks an answer key at data-entry time and returns its
// canonical tokens. Option-based types need bare uppercase letters.
func ValidateKey(raw []string, t Type) ([]string, error) {
	if !t.Valid() {
		return nil, fmt.Errorf("%w: unknown question type %q", ErrInvalidAnswerFormat, t)
	}
	switch t {
	case TypeSingle, TypeMultiple:
		tokens := Normalize(raw, TypeMultiple).Tokens()
		if len(tokens) == 0 {
			return nil, fmt.Errorf("%w: answer key is empty", ErrInvalidAnswerFormat)
		}
		for _, tok := range tokens {
			if !IsLetter(tok) {
				return nil, fmt.Errorf("%w: %q is not an option letter", ErrInvalidAnswerFormat, tok)
			}
		}
		return tokens, nil
	case TypeFill:
		var tokens []string
		for _, r := range raw {
			if s := strings.TrimSpace(r); s != "" {
				tokens = append(tokens, s)
			}
		}
		if len(tokens) == 0 {
			return nil, fmt.Errorf("%w: fill-in key needs at least one accepted answer", ErrInvalidAnswerFormat)
		}
		return tokens, nil
	default:
		// essay keys are reference text only, possibly empty
		var tokens []string
		for _, r := range raw {
			if s := strings.TrimSpace(r); s != "" {
				tokens = append(tokens, s)
			}
		}
		return tokens, nil
	}
}

// IsLetter reports whether s is a single uppercase ASCII letter.
func IsLetter(s string) bool {
	return len(s) == 1 && s[0] >= 'A' && s[0] <= 'Z'
}

// ParseRaw decodes an answer payload from the wire. It accepts a JSON array of
// strings, a bare string, or null/absent (no answer).
func ParseRaw(msg json.RawMessage) ([]string, error) {
	trimmed := strings.TrimSpace(string(msg))
	if trimmed == "" || trimmed == "null" {
		return nil, nil
	}
	var arr []string
	if err := json.Unmarshal(msg, &arr); err == nil {
		return arr, nil
	}
	var s string
	if err := json.Unmarshal(msg, &s); err == nil {
		return []string{s}, nil
	}
	return nil, fmt.Errorf("%w: expected an array of strings", ErrInvalidAnswerFormat)
}

// DecodeTokens reads a stored JSON token list. Stored data is trusted only
// loosely: anything unparseable is an empty list and non-string elements are
// dropped.
func DecodeTokens(stored string) []string {
	if strings.TrimSpace(stored) == "" {
		return nil
	}
	var items []interface{}
	if err := json.Unmarshal([]byte(stored), &items); err != nil {
		var s string
		if json.Unmarshal([]byte(stored), &s) == nil && s != "" {
			return []string{s}
		}
		return nil
	}
	out := make([]string, 0, len(items))
	for _, it := range items {
		if s, ok := it.(string); ok {
			out = append(out, s)
		}
	}
	return out
}

// EncodeTokens is the storage form of a token list; nil encodes as [].
func EncodeTokens(tokens []string) string {
	if tokens == nil {
		tokens = []string{}
	}
	b, _ := json.Marshal(tokens)
	return string(b)
}
