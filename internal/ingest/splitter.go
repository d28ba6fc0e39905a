package ingest

import (
	"strings"
	"unicode/utf8"
)

// Splitter breaks document text into overlapping chunks, preferring to break
// at paragraph, then line, then word boundaries before cutting mid-word.
type Splitter struct {
	ChunkSize    int // Max chunk length in runes
	ChunkOverlap int // Runes carried over between adjacent chunks

	separators []string
}

// NewSplitter creates a splitter. Overlap must be smaller than size.
func NewSplitter(size, overlap int) *Splitter {
	if size <= 0 {
		size = 500
	}
	if overlap < 0 || overlap >= size {
		overlap = size / 4
	}
	return &Splitter{
		ChunkSize:    size,
		ChunkOverlap: overlap,
		separators:   []string{"\n\n", "\n", " "},
	}
}

// Split breaks text into chunks of at most ChunkSize runes.
func (s *Splitter) Split(text string) []string {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil
	}
	return s.split(text, s.separators)
}

func (s *Splitter) split(text string, seps []string) []string {
	if utf8.RuneCountInString(text) <= s.ChunkSize {
		return []string{text}
	}

	// Pick the coarsest separator actually present.
	sep := ""
	var rest []string
	for i, sp := range seps {
		if strings.Contains(text, sp) {
			sep = sp
			rest = seps[i+1:]
			break
		}
	}
	if sep == "" {
		return s.window(text)
	}

	pieces := strings.Split(text, sep)
	sepLen := utf8.RuneCountInString(sep)

	var out []string
	var current []string
	curLen := 0
	dirty := false // true when current holds pieces not yet emitted

	emit := func() {
		chunk := strings.TrimSpace(strings.Join(current, sep))
		if chunk != "" {
			out = append(out, chunk)
		}
		// Retain a tail of pieces as the overlap for the next chunk.
		var tail []string
		tailLen := 0
		for i := len(current) - 1; i >= 0; i-- {
			pl := utf8.RuneCountInString(current[i]) + sepLen
			if tailLen+pl > s.ChunkOverlap {
				break
			}
			tail = append([]string{current[i]}, tail...)
			tailLen += pl
		}
		current = tail
		curLen = tailLen
		dirty = false
	}

	for _, piece := range pieces {
		pl := utf8.RuneCountInString(piece)
		if pl > s.ChunkSize {
			// Oversized piece: flush what we have, then recurse into it
			// with finer separators.
			if dirty {
				emit()
			}
			out = append(out, s.split(piece, rest)...)
			current = nil
			curLen = 0
			dirty = false
			continue
		}
		if curLen > 0 && curLen+pl+sepLen > s.ChunkSize {
			if dirty {
				emit()
			}
			if curLen+pl+sepLen > s.ChunkSize {
				// The carried-over tail plus this piece still overflows.
				// Drop the overlap rather than emitting a chunk that only
				// repeats the previous suffix or exceeds ChunkSize.
				current = nil
				curLen = 0
			}
		}
		current = append(current, piece)
		curLen += pl + sepLen
		dirty = true
	}
	if dirty {
		chunk := strings.TrimSpace(strings.Join(current, sep))
		if chunk != "" {
			out = append(out, chunk)
		}
	}
	return out
}

// window hard-cuts text into overlapping rune windows. Last resort when no
// separator is available.
func (s *Splitter) window(text string) []string {
	runes := []rune(text)
	step := s.ChunkSize - s.ChunkOverlap
	if step <= 0 {
		step = s.ChunkSize
	}
	var out []string
	for start := 0; start < len(runes); start += step {
		end := start + s.ChunkSize
		if end > len(runes) {
			end = len(runes)
		}
		out = append(out, string(runes[start:end]))
		if end == len(runes) {
			break
		}
	}
	return out
}
