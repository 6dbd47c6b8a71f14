// Package tables provides the character <-> Morse representation lookup,
// the procedural-signal and phonetic-alphabet tables, and the
// representation hash used for O(1) reverse lookup.
//
// Grounded on direwolf's src/morse.go MORSE table (the character set and
// its ARRL/Wikipedia-derived punctuation extras), generalized into a
// two-way, hash-indexed table the way libcw's CW_TABLE does, since the
// spec requires O(1) lookup in both directions rather than morse.go's
// linear scan.
package tables

import (
	"strings"
	"unicode"
)

type entry struct {
	ch  rune
	rep string
}

// table is the direct (char -> representation) list. It carries the full
// set direwolf's own MORSE array enumerates: core alphanumerics plus the
// ARRL and Wikipedia-sourced punctuation/prosign-adjacent marks. spec.md
// names only a subset; nothing in its Non-goals excludes the rest, so the
// full set is kept.
var table = []entry{
	{'A', ".-"}, {'B', "-..."}, {'C', "-.-."}, {'D', "-.."}, {'E', "."},
	{'F', "..-."}, {'G', "--."}, {'H', "...."}, {'I', ".."}, {'J', ".---"},
	{'K', "-.-"}, {'L', ".-.."}, {'M', "--"}, {'N', "-."}, {'O', "---"},
	{'P', ".--."}, {'Q', "--.-"}, {'R', ".-."}, {'S', "..."}, {'T', "-"},
	{'U', "..-"}, {'V', "...-"}, {'W', ".--"}, {'X', "-..-"}, {'Y', "-.--"},
	{'Z', "--.."},
	{'1', ".----"}, {'2', "..---"}, {'3', "...--"}, {'4', "....-"},
	{'5', "....."}, {'6', "-...."}, {'7', "--..."}, {'8', "---.."},
	{'9', "----."}, {'0', "-----"},
	{'.', ".-.-.-"}, {',', "--..--"}, {'?', "..--.."}, {'/', "-..-."},
	{'=', "-...-"}, {'-', "-....-"}, {')', "-.--.-"}, {':', "---..."},
	{';', "-.-.-."}, {'"', ".-..-."}, {'\'', ".----."}, {'$', "...-..-"},
	{'!', "-.-.--"}, {'(', "-.--."}, {'&', ".-..."}, {'+', ".-.-."},
	{'_', "..--.-"}, {'@', ".--.-."},
}

// procedural holds multi-character procedural signals (prosigns) that are
// sent as a single run-together unit: the second field is true when the
// elements should be sent without the usual inter-character gap.
var procedural = map[rune]struct {
	rep         string
	runTogether bool
}{
	'*': {".-.-", true},   // AA, new line
	'%': {"...-.-", true}, // SK, end of contact
	'#': {"-.-..-..", true}, // CL, closing station
}

// phoneticAlphabet is the NATO phonetic spelling for each letter, used by
// client UIs for read-back; not part of the encode/decode path itself.
var phoneticAlphabet = map[rune]string{
	'A': "Alfa", 'B': "Bravo", 'C': "Charlie", 'D': "Delta", 'E': "Echo",
	'F': "Foxtrot", 'G': "Golf", 'H': "Hotel", 'I': "India", 'J': "Juliett",
	'K': "Kilo", 'L': "Lima", 'M': "Mike", 'N': "November", 'O': "Oscar",
	'P': "Papa", 'Q': "Quebec", 'R': "Romeo", 'S': "Sierra", 'T': "Tango",
	'U': "Uniform", 'V': "Victor", 'W': "Whiskey", 'X': "Xray", 'Y': "Yankee",
	'Z': "Zulu",
	'0': "Zero", '1': "One", '2': "Two", '3': "Three", '4': "Four",
	'5': "Five", '6': "Six", '7': "Seven", '8': "Eight", '9': "Nine",
}

const hashTableSize = 256

var (
	forwardTable [hashTableSize]string // rune (ASCII upper) -> representation, 0 means none
	reverseTable [hashTableSize]rune   // hash -> char, 0 means none
	forwardByRune = map[rune]string{}
)

func init() {
	for _, e := range table {
		forwardByRune[e.ch] = e.rep
		if e.ch < hashTableSize {
			forwardTable[e.ch] = e.rep
		}
		h := Hash(e.rep)
		if h != 0 {
			reverseTable[h] = e.ch
		}
	}
}

func normalize(c rune) rune {
	if unicode.IsLower(c) {
		return unicode.ToUpper(c)
	}
	return c
}

// Hash computes the representation hash described in spec §4.1: a leading
// sentinel 1 bit, then one bit per symbol (dot=0, dash=1) from most to
// least significant, for representations of length 1..7. Returns 0 for an
// invalid (too long, or containing a character other than '.'/'-') or
// empty representation.
func Hash(rep string) int {
	if len(rep) == 0 || len(rep) > 7 {
		return 0
	}
	h := 1
	for _, r := range rep {
		h <<= 1
		switch r {
		case '.':
			// contributes 0 bit
		case '-':
			h |= 1
		default:
			return 0
		}
	}
	return h
}

// CharToRepresentation looks up the Morse representation for a character,
// case-insensitively. The second return is false when the character is
// not in the table (including space, which per spec is handled by the
// generator/receiver as a word boundary, not as a table entry).
func CharToRepresentation(c rune) (string, bool) {
	c = normalize(c)
	rep, ok := forwardByRune[c]
	return rep, ok
}

// RepresentationToChar looks up the character for a representation via
// the O(1) hash table. Returns false for an unknown or malformed
// representation.
func RepresentationToChar(rep string) (rune, bool) {
	h := Hash(rep)
	if h == 0 {
		return 0, false
	}
	ch := reverseTable[h]
	if ch == 0 {
		return 0, false
	}
	return ch, true
}

// IsValidCharacter reports whether c has a table entry.
func IsValidCharacter(c rune) bool {
	_, ok := CharToRepresentation(c)
	return ok
}

// IsValidRepresentation reports whether rep is a well-formed dot/dash
// string of length 1..7 that decodes to a known character.
func IsValidRepresentation(rep string) bool {
	if rep == "" || len(rep) > 7 {
		return false
	}
	for _, r := range rep {
		if r != '.' && r != '-' {
			return false
		}
	}
	_, ok := RepresentationToChar(rep)
	return ok
}

// ProceduralExpansion returns the procedural-signal encoding for a
// prosign character, and whether its elements should be sent run
// together (no inter-character gap between them).
func ProceduralExpansion(c rune) (rep string, runTogether bool, ok bool) {
	p, found := procedural[normalize(c)]
	if !found {
		return "", false, false
	}
	return p.rep, p.runTogether, true
}

// Phonetic returns the NATO phonetic spelling of a letter or digit.
func Phonetic(c rune) (string, bool) {
	s, ok := phoneticAlphabet[normalize(c)]
	return s, ok
}

// Representations returns a copy of the full character table as a map
// (so in no particular order), for client UIs (e.g. a practice-mode dictionary) that want
// to enumerate every known symbol. Not part of the hot encode/decode
// path.
func Representations() map[rune]string {
	out := make(map[rune]string, len(forwardByRune))
	for k, v := range forwardByRune {
		out[k] = v
	}
	return out
}

// SplitWords is a small convenience for callers that handle text a word
// at a time (generator.PlayString does not use it): it splits on literal
// spaces only (the engine's sole word separator), trimming
// nothing, so callers can tell a leading/trailing space from no space.
func SplitWords(s string) []string {
	return strings.Split(s, " ")
}
