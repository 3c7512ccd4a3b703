package stt

import (
	"strings"
	"unicode/utf8"
)

const (
	flushDurationMS = 30_000
	flushRuneCount  = 300
)

// PendingSegment is a flushed span of accumulated speech ready to persist.
type PendingSegment struct {
	Text    string
	StartMS int
	EndMS   int
	Speaker string
}

// SegmentBuffer accumulates short recognizer chunks and flushes a confirmed
// segment once at least 30 seconds of audio or 300 characters of text have
// piled up. Not safe for concurrent use; callers keep one buffer per stream.
type SegmentBuffer struct {
	parts   []string
	totalMS int
	lastEnd int
}

// NewSegmentBuffer constructs an empty buffer.
func NewSegmentBuffer() *SegmentBuffer {
	return &SegmentBuffer{}
}

// PushChunk appends one recognizer chunk. It returns the flushed segment
// when the accumulation threshold is reached, nil otherwise.
func (b *SegmentBuffer) PushChunk(text string, startMS, endMS int, speaker string) *PendingSegment {
	b.parts = append(b.parts, text)
	b.totalMS += endMS - startMS
	b.lastEnd = endMS

	current := strings.TrimSpace(strings.Join(b.parts, " "))
	if b.totalMS < flushDurationMS && utf8.RuneCountInString(current) < flushRuneCount {
		return nil
	}

	b.parts = b.parts[:0]
	b.totalMS = 0
	return &PendingSegment{
		Text:    current,
		StartMS: endMS - utf8.RuneCountInString(current),
		EndMS:   endMS,
		Speaker: speaker,
	}
}

// Pending reports whether unflushed chunk text remains in the buffer.
func (b *SegmentBuffer) Pending() bool {
	return len(b.parts) > 0
}

// Drain flushes whatever remains regardless of thresholds; nil when empty.
func (b *SegmentBuffer) Drain(speaker string) *PendingSegment {
	if len(b.parts) == 0 {
		return nil
	}
	current := strings.TrimSpace(strings.Join(b.parts, " "))
	endMS := b.lastEnd
	b.parts = b.parts[:0]
	b.totalMS = 0
	if current == "" {
		return nil
	}
	return &PendingSegment{
		Text:    current,
		StartMS: endMS - utf8.RuneCountInString(current),
		EndMS:   endMS,
		Speaker: speaker,
	}
}
