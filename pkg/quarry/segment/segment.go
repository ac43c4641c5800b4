// Package segment splits raw document text into addressable passage spans.
//
// Spans partition the text exactly: every byte belongs to exactly one span,
// so concatenating span texts in order reconstructs the original document.
package segment

import (
	"unicode"
	"unicode/utf8"
)

// Span is a contiguous slice of a document's text, addressed by byte offsets.
// Text is always the verbatim substring text[Start:End] of the source.
type Span struct {
	DocID string
	Start int
	End   int
	Text  string
}

// Policy controls span sizing. All lengths are in bytes.
type Policy struct {
	MinLen    int // spans shorter than this are merged into the following span
	MaxLen    int // spans longer than this are split on clause boundaries
	WindowLen int // window size used when the text has no sentence punctuation
}

// DefaultPolicy returns the sizing used when the caller does not care.
func DefaultPolicy() Policy {
	return Policy{
		MinLen:    40,
		MaxLen:    800,
		WindowLen: 400,
	}
}

// Segmenter produces passage spans from raw text.
type Segmenter struct {
	policy Policy
}

// New creates a segmenter. Zero or negative policy fields fall back to the
// defaults, so segment.New(segment.Policy{}) is usable.
func New(policy Policy) *Segmenter {
	def := DefaultPolicy()
	if policy.MinLen <= 0 {
		policy.MinLen = def.MinLen
	}
	if policy.MaxLen <= 0 {
		policy.MaxLen = def.MaxLen
	}
	if policy.WindowLen <= 0 {
		policy.WindowLen = def.WindowLen
	}
	if policy.MaxLen < policy.MinLen {
		policy.MaxLen = policy.MinLen
	}
	return &Segmenter{policy: policy}
}

// Segment splits text into spans. An empty document yields no spans.
func (s *Segmenter) Segment(docID, text string) []Span {
	if len(text) == 0 {
		return nil
	}

	cuts := sentenceCuts(text)
	if len(cuts) == 0 {
		cuts = windowCuts(text, s.policy.WindowLen)
	}
	cuts = append(cuts, len(text))

	cuts = mergeShort(cuts, s.policy.MinLen)
	cuts = splitLong(text, cuts, s.policy.MaxLen)

	spans := make([]Span, 0, len(cuts))
	prev := 0
	for _, cut := range cuts {
		if cut <= prev {
			continue
		}
		spans = append(spans, Span{
			DocID: docID,
			Start: prev,
			End:   cut,
			Text:  text[prev:cut],
		})
		prev = cut
	}
	return spans
}

// sentenceCuts returns byte positions where a new sentence or paragraph
// begins. Positions exclude 0 and len(text).
func sentenceCuts(text string) []int {
	var cuts []int
	i := 0
	for i < len(text) {
		r, size := utf8.DecodeRuneInString(text[i:])

		if r == '.' || r == '!' || r == '?' {
			j := i + size
			// Closing quotes and brackets stay with the sentence.
			for j < len(text) {
				q, qs := utf8.DecodeRuneInString(text[j:])
				if q == '"' || q == '\'' || q == ')' || q == ']' || q == '”' || q == '’' {
					j += qs
					continue
				}
				break
			}
			k := j
			sawSpace := false
			for k < len(text) {
				w, ws := utf8.DecodeRuneInString(text[k:])
				if !unicode.IsSpace(w) {
					break
				}
				sawSpace = true
				k += ws
			}
			if sawSpace && k < len(text) {
				cuts = append(cuts, k)
			}
			i = k
			continue
		}

		if r == '\n' {
			// Blank line: paragraph boundary even without punctuation.
			k := i + size
			newlines := 1
			for k < len(text) {
				w, ws := utf8.DecodeRuneInString(text[k:])
				if !unicode.IsSpace(w) {
					break
				}
				if w == '\n' {
					newlines++
				}
				k += ws
			}
			if newlines >= 2 && k > 0 && k < len(text) {
				cuts = append(cuts, k)
			}
			i = k
			continue
		}

		i += size
	}
	return cuts
}

// windowCuts produces fixed-size cut positions for punctuation-free text,
// preferring to break after whitespace so words stay intact.
func windowCuts(text string, window int) []int {
	var cuts []int
	start := 0
	for len(text)-start > window {
		limit := start + window
		// Back up to the last whitespace inside the window.
		cut := -1
		i := start
		for i < limit {
			r, size := utf8.DecodeRuneInString(text[i:])
			if i+size > limit {
				break
			}
			if unicode.IsSpace(r) {
				cut = i + size
			}
			i += size
		}
		if cut <= start {
			// No whitespace: hard cut at the nearest rune boundary.
			cut = limit
			for cut > start && !utf8.RuneStart(text[cut]) {
				cut--
			}
			if cut == start {
				break
			}
		}
		cuts = append(cuts, cut)
		start = cut
	}
	return cuts
}

// mergeShort drops cut points that would leave a segment shorter than minLen,
// folding it into the following segment. A short final segment is folded into
// the one before it.
func mergeShort(cuts []int, minLen int) []int {
	out := cuts[:0]
	prev := 0
	for i, cut := range cuts {
		last := i == len(cuts)-1
		if !last && cut-prev < minLen {
			continue
		}
		out = append(out, cut)
		prev = cut
	}
	if n := len(out); n >= 2 {
		tailStart := 0
		if n >= 3 {
			tailStart = out[n-3]
		}
		if out[n-1]-out[n-2] < minLen && out[n-2]-tailStart > 0 {
			out = append(out[:n-2], out[n-1])
		}
	}
	return out
}

// splitLong inserts additional cut points into oversized segments, breaking
// on clause boundaries where possible and on rune boundaries otherwise.
func splitLong(text string, cuts []int, maxLen int) []int {
	var out []int
	prev := 0
	for _, cut := range cuts {
		for cut-prev > maxLen {
			mid := clauseCut(text, prev, prev+maxLen)
			if mid <= prev {
				mid = prev + maxLen
				for mid > prev && !utf8.RuneStart(text[mid]) {
					mid--
				}
				if mid == prev {
					break
				}
			}
			out = append(out, mid)
			prev = mid
		}
		out = append(out, cut)
		prev = cut
	}
	return out
}

// clauseCut returns the position after the last clause separator (comma,
// semicolon, colon, dash followed by space) in text[start:limit], or -1.
func clauseCut(text string, start, limit int) int {
	best := -1
	i := start
	for i < limit && i < len(text) {
		r, size := utf8.DecodeRuneInString(text[i:])
		if r == ',' || r == ';' || r == ':' || r == '—' {
			j := i + size
			if j < len(text) {
				w, ws := utf8.DecodeRuneInString(text[j:])
				if unicode.IsSpace(w) && j+ws <= limit {
					best = j + ws
				}
			}
		}
		i += size
	}
	return best
}
