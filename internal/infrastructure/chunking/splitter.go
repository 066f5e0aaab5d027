// Package chunking splits source text into retrieval-sized windows.
// Boundaries prefer paragraph breaks, then sentence ends, so testimony
// passages stay readable when quoted back as sources.
package chunking

import "strings"

type Splitter struct {
	ChunkSize int
	Overlap   int
}

func NewSplitter(chunkSize, overlap int) *Splitter {
	if chunkSize <= 0 {
		chunkSize = 900
	}
	if overlap < 0 {
		overlap = 0
	}
	if overlap >= chunkSize {
		overlap = chunkSize / 4
	}
	return &Splitter{
		ChunkSize: chunkSize,
		Overlap:   overlap,
	}
}

func (s *Splitter) Split(text string) []string {
	runes := []rune(strings.TrimSpace(text))
	if len(runes) == 0 {
		return nil
	}

	var out []string
	start := 0
	for start < len(runes) {
		end := start + s.ChunkSize
		if end >= len(runes) {
			end = len(runes)
		} else {
			end = s.breakPoint(runes, start, end)
		}

		chunk := strings.TrimSpace(string(runes[start:end]))
		if chunk != "" {
			out = append(out, chunk)
		}
		if end == len(runes) {
			break
		}

		next := end - s.Overlap
		if next <= start {
			next = end
		}
		start = next
	}
	return out
}

// breakPoint searches backward from the window limit for a paragraph
// break, then a sentence end, then a space. The search stays in the
// second half of the window so chunks never degenerate.
func (s *Splitter) breakPoint(runes []rune, start, limit int) int {
	floor := start + s.ChunkSize/2

	for i := limit - 1; i > floor; i-- {
		if runes[i] == '\n' && i > 0 && runes[i-1] == '\n' {
			return i
		}
	}
	for i := limit - 1; i > floor; i-- {
		switch runes[i] {
		case '.', '!', '?':
			return i + 1
		}
	}
	for i := limit - 1; i > floor; i-- {
		if runes[i] == ' ' || runes[i] == '\n' {
			return i
		}
	}
	return limit
}
