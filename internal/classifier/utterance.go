package classifier

import (
	"strings"
	"unicode"
)

// utterance is the lower-cased, tokenized form of one input that every
// rule branch inspects. Tokens are maximal runs of letters, marks and
// digits, so Devanagari words (which carry combining vowel signs) stay
// whole.
type utterance struct {
	raw    string
	lower  string
	tokens []string
	set    map[string]struct{}
	padded string
}

func newUtterance(text string) utterance {
	lower := strings.ToLower(strings.TrimSpace(text))
	tokens := strings.FieldsFunc(lower, func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsMark(r) && !unicode.IsDigit(r)
	})
	set := make(map[string]struct{}, len(tokens))
	for _, t := range tokens {
		set[t] = struct{}{}
	}
	return utterance{
		raw:    strings.TrimSpace(text),
		lower:  lower,
		tokens: tokens,
		set:    set,
		padded: " " + strings.Join(tokens, " ") + " ",
	}
}

// has reports whether any of the words occurs in the utterance. A single
// word matches a whole token or its plain plural; a phrase (containing a
// space) matches a run of consecutive tokens, again allowing a plural
// final word.
func (u utterance) has(words ...string) bool {
	for _, w := range words {
		if strings.Contains(w, " ") {
			if strings.Contains(u.padded, " "+w+" ") || strings.Contains(u.padded, " "+w+"s ") {
				return true
			}
			continue
		}
		if _, ok := u.set[w]; ok {
			return true
		}
		if _, ok := u.set[w+"s"]; ok {
			return true
		}
	}
	return false
}

// index returns the position of the first token equal to word, or -1.
func (u utterance) index(word string) int {
	for i, t := range u.tokens {
		if t == word {
			return i
		}
	}
	return -1
}

// after returns the tokens following the first occurrence of word,
// joined by single spaces.
func (u utterance) after(word string) string {
	i := u.index(word)
	if i < 0 {
		return ""
	}
	return strings.Join(u.tokens[i+1:], " ")
}

// without returns the tokens that are not in drop, joined by spaces.
func (u utterance) without(drop map[string]bool) string {
	kept := make([]string, 0, len(u.tokens))
	for _, t := range u.tokens {
		if !drop[t] {
			kept = append(kept, t)
		}
	}
	return strings.Join(kept, " ")
}

// words splits the original text into whitespace-delimited fields,
// pairing each with its normalized (lower-cased, punctuation-trimmed)
// form. Titles are rebuilt from the original fields so user casing
// survives.
func (u utterance) words() (fields, norm []string) {
	fields = strings.Fields(u.raw)
	norm = make([]string, len(fields))
	for i, f := range fields {
		norm[i] = normalizeWord(f)
	}
	return fields, norm
}

func normalizeWord(s string) string {
	return strings.TrimFunc(strings.ToLower(s), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsMark(r) && !unicode.IsDigit(r)
	})
}

// trimWords drops leading words found in lead and trailing words found in
// trail, then drops any word found in anywhere. The result is joined with
// single spaces and stripped of trailing punctuation.
func (u utterance) trimWords(lead, trail, anywhere map[string]bool) string {
	fields, norm := u.words()
	start, end := 0, len(fields)
	for start < end && (lead[norm[start]] || norm[start] == "") {
		start++
	}
	for end > start && (trail[norm[end-1]] || norm[end-1] == "") {
		end--
	}
	kept := make([]string, 0, end-start)
	for i := start; i < end; i++ {
		if anywhere[norm[i]] {
			continue
		}
		kept = append(kept, fields[i])
	}
	return strings.TrimRight(strings.Join(kept, " "), ".,!?;:")
}

func capitalize(s string) string {
	for i, r := range s {
		return string(unicode.ToUpper(r)) + s[i+len(string(r)):]
	}
	return s
}

func setOf(words ...string) map[string]bool {
	m := make(map[string]bool, len(words))
	for _, w := range words {
		m[w] = true
	}
	return m
}
