// Package segment splits reply text into sentence-like pieces for rendering.
package segment

import (
	"strings"
	"unicode"
	"unicode/utf8"
)

// DefaultMaxRunes bounds a single rendered segment.
const DefaultMaxRunes = 200

// Split breaks text on sentence punctuation (. ! ? ; … and newlines) and
// hard-splits any sentence longer than maxRunes on word boundaries. A dot or
// colon between two digits, as in 9.9 or 10:30, is not a boundary. Empty
// input returns nil.
func Split(text string, maxRunes int) []string {
	if maxRunes <= 0 {
		maxRunes = DefaultMaxRunes
	}

	var out []string
	for _, s := range sentences(text) {
		if utf8.RuneCountInString(s) <= maxRunes {
			out = append(out, s)
			continue
		}
		out = append(out, hardSplit(s, maxRunes)...)
	}
	return out
}

// sentences splits text at boundary runes, keeping the boundary and any
// closing punctuation or quotes with the sentence it ends.
func sentences(text string) []string {
	rs := []rune(text)
	var out []string
	start := 0

	flush := func(end int) {
		s := strings.TrimSpace(string(rs[start:end]))
		start = end
		if s == "" {
			return
		}
		// Stray punctuation belongs to the previous sentence.
		if len(out) > 0 && !hasWord(s) {
			out[len(out)-1] += " " + s
			return
		}
		out = append(out, s)
	}

	for i := 0; i < len(rs); i++ {
		if !isBoundary(rs, i) {
			continue
		}
		j := i + 1
		for j < len(rs) && isTrailer(rs[j]) {
			j++
		}
		flush(j)
		i = j - 1
	}
	flush(len(rs))
	return out
}

func isBoundary(rs []rune, i int) bool {
	switch rs[i] {
	case '.', ':':
		// 9.9 and 10:30
		if i > 0 && i < len(rs)-1 && unicode.IsDigit(rs[i-1]) && unicode.IsDigit(rs[i+1]) {
			return false
		}
		return rs[i] == '.'
	case '!', '?', ';', '…', '\n', '\r', '。', '！', '？', '；':
		return true
	}
	return false
}

func isTrailer(r rune) bool {
	switch r {
	case '.', '!', '?', '…', '"', '\'', ')', '”', '’', '»':
		return true
	}
	return false
}

func hasWord(s string) bool {
	for _, r := range s {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			return true
		}
	}
	return false
}

// hardSplit breaks text that exceeds maxRunes on word boundaries. A single
// word longer than maxRunes is cut by rune count.
func hardSplit(text string, maxRunes int) []string {
	var out []string
	var current []string
	curLen := 0

	flush := func() {
		if len(current) > 0 {
			out = append(out, strings.Join(current, " "))
		}
		current = nil
		curLen = 0
	}

	for _, word := range strings.Fields(text) {
		wl := utf8.RuneCountInString(word)
		if wl > maxRunes {
			flush()
			rs := []rune(word)
			for len(rs) > maxRunes {
				out = append(out, string(rs[:maxRunes]))
				rs = rs[maxRunes:]
			}
			current = []string{string(rs)}
			curLen = len(rs)
			continue
		}
		add := wl
		if len(current) > 0 {
			add++ // space
		}
		if curLen+add > maxRunes {
			flush()
			add = wl
		}
		current = append(current, word)
		curLen += add
	}
	flush()
	return out
}
