package tables

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"
)

func TestHashKnownValues(t *testing.T) {
	// ".-" -> sentinel 1, then 0 (.), then 1 (-) => binary 101 = 5
	assert.Equal(t, 5, Hash(".-"))
	// "-----" (digit 0) -> 1 followed by five 1s => binary 111111 = 63
	assert.Equal(t, 63, Hash("-----"))
}

func TestHashRangeAndInvalid(t *testing.T) {
	assert.Equal(t, 0, Hash(""))
	assert.Equal(t, 0, Hash("........")) // length 8, too long
	assert.Equal(t, 0, Hash("x"))
}

func TestRoundTripKnownCharacters(t *testing.T) {
	for ch := range Representations() {
		rep, ok := CharToRepresentation(ch)
		require.True(t, ok)
		got, ok := RepresentationToChar(rep)
		require.True(t, ok, "representation %q for %q should decode", rep, ch)
		assert.Equal(t, ch, got)
	}
}

func TestRoundTripProperty(t *testing.T) {
	reps := Representations()
	chars := make([]rune, 0, len(reps))
	for c := range reps {
		chars = append(chars, c)
	}

	rapid.Check(t, func(t *rapid.T) {
		idx := rapid.IntRange(0, len(chars)-1).Draw(t, "idx")
		ch := chars[idx]
		rep, ok := CharToRepresentation(ch)
		require.True(t, ok)
		require.True(t, 2 <= Hash(rep) && Hash(rep) <= 255)
		got, ok := RepresentationToChar(rep)
		require.True(t, ok)
		require.Equal(t, ch, got)
	})
}

func TestLowercaseNormalizes(t *testing.T) {
	upper, ok1 := CharToRepresentation('A')
	lower, ok2 := CharToRepresentation('a')
	require.True(t, ok1)
	require.True(t, ok2)
	assert.Equal(t, upper, lower)
}

func TestIsValidRepresentation(t *testing.T) {
	assert.True(t, IsValidRepresentation(".-"))
	assert.False(t, IsValidRepresentation(""))
	assert.False(t, IsValidRepresentation("x"))
	assert.False(t, IsValidRepresentation("........"))
}

func TestProceduralExpansion(t *testing.T) {
	rep, runTogether, ok := ProceduralExpansion('*')
	require.True(t, ok)
	assert.True(t, runTogether)
	assert.Equal(t, ".-.-", rep)

	_, _, ok = ProceduralExpansion('Z')
	assert.False(t, ok)
}

func TestPhonetic(t *testing.T) {
	s, ok := Phonetic('q')
	require.True(t, ok)
	assert.Equal(t, "Quebec", s)
}
