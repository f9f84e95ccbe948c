// Package markdown implements the chunking, table normalization, and tag
// extraction used to translate Agent markdown output into Discord-safe
// messages.
package markdown

import "strings"

// line carries the per-line attributes the chunker needs to decide where a
// cut is safe and how to re-open a fence across it.
type line struct {
	text           string
	inCodeBlock    bool
	lang           string
	isOpeningFence bool
	isClosingFence bool
}

// Split breaks content into chunks of at most maxLen characters. Fenced code
// blocks that straddle a cut are closed at the end of one chunk and reopened
// with the original language fence at the start of the next; opening and
// closing fences are never duplicated into adjacent chunks.
func Split(content string, maxLen int) []string {
	if maxLen <= 0 {
		maxLen = 2000
	}
	if len(content) <= maxLen {
		return []string{content}
	}

	lines := tokenizeLines(escapeBackticksInCodeBlocks(content))

	var chunks []string
	var cur strings.Builder
	var curLang string
	inFence := false

	flush := func(closeFence bool) {
		if closeFence && inFence {
			if cur.Len() > 0 {
				cur.WriteByte('\n')
			}
			cur.WriteString("```")
		}
		chunks = append(chunks, cur.String())
		cur.Reset()
	}

	for _, ln := range lines {
		candidate := ln.text
		extra := len(candidate) + 1 // + newline
		closeLen := 0
		if inFence {
			closeLen = len("\n```")
		}

		justReopened := false
		if cur.Len() > 0 && cur.Len()+extra+closeLen > maxLen {
			flush(true)
			if inFence {
				cur.WriteString("```" + curLang)
				cur.WriteByte('\n')
				justReopened = true
			}
		}

		if cur.Len() > 0 && !justReopened {
			cur.WriteByte('\n')
		}
		cur.WriteString(candidate)

		if ln.isOpeningFence {
			inFence = true
			curLang = ln.lang
		} else if ln.isClosingFence {
			inFence = false
			curLang = ""
		}
	}

	if cur.Len() > 0 || len(chunks) == 0 {
		flush(false)
	}

	return chunks
}

// tokenizeLines walks content line by line, tagging fence boundaries.
func tokenizeLines(content string) []line {
	raw := strings.Split(content, "\n")
	lines := make([]line, 0, len(raw))
	inFence := false

	for _, text := range raw {
		trimmed := strings.TrimLeft(text, " \t")
		isFenceMarker := strings.HasPrefix(trimmed, "```")

		l := line{text: text, inCodeBlock: inFence}
		if isFenceMarker {
			if !inFence {
				l.isOpeningFence = true
				l.lang = strings.TrimSpace(trimmed[3:])
				inFence = true
			} else {
				l.isClosingFence = true
				inFence = false
			}
		}
		lines = append(lines, l)
	}
	return lines
}

// escapeBackticksInCodeBlocks rewrites the interior of every fenced code
// block so literal backticks are escaped, leaving the fences themselves
// intact. Idempotent: an already-escaped backtick is not re-escaped.
func escapeBackticksInCodeBlocks(content string) string {
	raw := strings.Split(content, "\n")
	inFence := false
	for i, text := range raw {
		trimmed := strings.TrimLeft(text, " \t")
		if strings.HasPrefix(trimmed, "```") {
			inFence = !inFence
			continue
		}
		if inFence {
			raw[i] = EscapeBareBackticks(text)
		}
	}
	return strings.Join(raw, "\n")
}

// EscapeBareBackticks escapes backticks in s that are not already preceded
// by a backslash, so s can't prematurely close or open a fence when posted
// as plain text.
func EscapeBareBackticks(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	for i := 0; i < len(s); i++ {
		c := s[i]
		if c == '`' && (i == 0 || s[i-1] != '\\') {
			b.WriteByte('\\')
		}
		b.WriteByte(c)
	}
	return b.String()
}
