package grading

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNormalize(t *testing.T) {
	assert.Equal(t, SingleLetter("B"), Normalize([]string{" B", "C"}, TypeSingle))
	assert.Empty(t, Normalize([]string{"", "B"}, TypeSingle).Tokens(), "only the first token counts")
	assert.Empty(t, Normalize(nil, TypeSingle).Tokens())

	assert.Equal(t, LetterSet{"C", "A"}, Normalize([]string{"C", " A", "C", ""}, TypeMultiple))
	assert.Empty(t, Normalize([]string{}, TypeMultiple).Tokens())

	assert.Equal(t, []string{"x"}, Normalize([]string{" x "}, TypeFill).Tokens())
	assert.Empty(t, Normalize([]string{""}, TypeFill).Tokens())

	assert.Equal(t, []string{""}, Normalize(nil, TypeEssay).Tokens())
	assert.Equal(t, []string{"text"}, Normalize([]string{"text"}, TypeEssay).Tokens())
}

func TestValidateKey(t *testing.T) {
	tokens, err := ValidateKey([]string{"A", "C", "A"}, TypeMultiple)
	require.NoError(t, err)
	assert.Equal(t, []string{"A", "C"}, tokens)

	_, err = ValidateKey([]string{"a"}, TypeSingle)
	assert.ErrorIs(t, err, ErrInvalidAnswerFormat)

	_, err = ValidateKey([]string{"AB"}, TypeMultiple)
	assert.ErrorIs(t, err, ErrInvalidAnswerFormat)

	_, err = ValidateKey(nil, TypeSingle)
	assert.ErrorIs(t, err, ErrInvalidAnswerFormat)

	_, err = ValidateKey([]string{" "}, TypeFill)
	assert.ErrorIs(t, err, ErrInvalidAnswerFormat)

	tokens, err = ValidateKey(nil, TypeEssay)
	require.NoError(t, err)
	assert.Empty(t, tokens)

	_, err = ValidateKey([]string{"A"}, Type("ranking"))
	assert.ErrorIs(t, err, ErrInvalidAnswerFormat)
}

func TestParseRaw(t *testing.T) {
	got, err := ParseRaw(json.RawMessage(`["C","A"]`))
	require.NoError(t, err)
	assert.Equal(t, []string{"C", "A"}, got)

	got, err = ParseRaw(json.RawMessage(`"A"`))
	require.NoError(t, err)
	assert.Equal(t, []string{"A"}, got)

	got, err = ParseRaw(nil)
	require.NoError(t, err)
	assert.Nil(t, got)

	got, err = ParseRaw(json.RawMessage(`null`))
	require.NoError(t, err)
	assert.Nil(t, got)

	_, err = ParseRaw(json.RawMessage(`[1,2]`))
	assert.ErrorIs(t, err, ErrInvalidAnswerFormat)

	_, err = ParseRaw(json.RawMessage(`{"selected":"A"}`))
	assert.ErrorIs(t, err, ErrInvalidAnswerFormat)
}

func TestDecodeTokensIsLenient(t *testing.T) {
	assert.Equal(t, []string{"A", "C"}, DecodeTokens(`["A","C"]`))
	assert.Equal(t, []string{"A"}, DecodeTokens(`["A", 3, null]`))
	assert.Equal(t, []string{"B"}, DecodeTokens(`"B"`))
	assert.Empty(t, DecodeTokens(`{"broken":`))
	assert.Empty(t, DecodeTokens(""))
	assert.Equal(t, "[]", EncodeTokens(nil))
	assert.Equal(t, `["A","C"]`, EncodeTokens([]string{"A", "C"}))
}
