// Package stream implements the streaming chat-completion relay core: it
// splits the provider's newline-delimited JSON chunk records out of a raw
// byte stream, extracts incremental content deltas, and fans one upstream
// body out to two independent consumers.
package stream

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"
)

// recordMarker begins every chunk record after the first one in a delivery.
// Provider chunks are not guaranteed to carry exactly one record: several
// records may be coalesced into one delivered buffer, and a record's content
// string may itself contain newlines, so a naive newline split is unsafe.
// Checking for the marker disambiguates the common case.
const recordMarker = "\n{\"id\":"

// chunkRecord mirrors the shape of a streaming chat-completion record.
type chunkRecord struct {
	Choices []struct {
		Delta struct {
			Content *string `json:"content"`
		} `json:"delta"`
	} `json:"choices"`
}

// ExtractDelta parses one JSON record and returns its incremental content
// fragment. A record with no choices contributes nothing; terminal and
// keep-alive records look like this and are not an error. A record whose
// first choice has no delta content also contributes nothing.
func ExtractDelta(record []byte) (string, error) {
	var rec chunkRecord
	if err := json.Unmarshal(record, &rec); err != nil {
		return "", fmt.Errorf("malformed stream record: %w", err)
	}
	if len(rec.Choices) == 0 {
		return "", nil
	}
	if rec.Choices[0].Delta.Content == nil {
		return "", nil
	}
	return *rec.Choices[0].Delta.Content, nil
}

// SplitChunk splits one delivered buffer into its independent JSON record
// strings. If the trimmed text does not contain the marker that begins a
// subsequent record, the whole buffer is a single record; otherwise it is
// split on newlines. Empty trimmed text yields zero records.
func SplitChunk(chunk []byte) []string {
	trimmed := strings.TrimSpace(string(chunk))
	if trimmed == "" {
		return nil
	}
	if !strings.Contains(trimmed, recordMarker) {
		return []string{trimmed}
	}
	return strings.Split(trimmed, "\n")
}

// DecodeChunk runs SplitChunk and ExtractDelta over one delivered buffer and
// returns the records' fragments concatenated in order as a single delta.
// Malformed JSON in any record is fatal to the whole buffer.
func DecodeChunk(chunk []byte) (string, error) {
	var delta strings.Builder
	for _, record := range SplitChunk(chunk) {
		next, err := ExtractDelta([]byte(record))
		if err != nil {
			return "", err
		}
		delta.WriteString(next)
	}
	return delta.String(), nil
}

// Demuxer incrementally decodes a chunk-record byte stream into accumulated
// text. Unlike DecodeChunk it carries partial records across writes, so the
// decoded text is identical no matter how the stream is fragmented into
// delivery buffers. A record is only finalized when the marker beginning the
// next record arrives, or at Close.
//
// Demuxer implements io.Writer so a consumer branch can simply be copied
// into it.
type Demuxer struct {
	buf     bytes.Buffer
	text    strings.Builder
	onDelta func(string)
	err     error
}

// NewDemuxer returns a Demuxer. onDelta, if non-nil, is invoked with each
// non-empty decoded delta as it is finalized.
func NewDemuxer(onDelta func(string)) *Demuxer {
	return &Demuxer{onDelta: onDelta}
}

// Write feeds raw stream bytes into the demuxer. Decoding errors are sticky:
// once a record fails to parse the demuxer refuses further input.
func (d *Demuxer) Write(p []byte) (int, error) {
	if d.err != nil {
		return 0, d.err
	}
	d.buf.Write(p)

	for {
		idx := bytes.Index(d.buf.Bytes(), []byte(recordMarker))
		if idx < 0 {
			break
		}
		record := append([]byte(nil), d.buf.Bytes()[:idx]...)
		rest := append([]byte(nil), d.buf.Bytes()[idx+1:]...)
		d.buf.Reset()
		d.buf.Write(rest)

		if err := d.emit(record); err != nil {
			return 0, err
		}
	}

	return len(p), nil
}

// Close finalizes the trailing record, if any. It must be called at
// end-of-stream; a malformed trailing record is a stream error.
func (d *Demuxer) Close() error {
	if d.err != nil {
		return d.err
	}
	record := d.buf.Bytes()
	d.buf.Reset()
	return d.emit(record)
}

// Text returns the content accumulated so far.
func (d *Demuxer) Text() string {
	return d.text.String()
}

func (d *Demuxer) emit(record []byte) error {
	record = bytes.TrimSpace(record)
	if len(record) == 0 {
		return nil
	}
	delta, err := ExtractDelta(record)
	if err != nil {
		d.err = err
		return err
	}
	if delta != "" {
		d.text.WriteString(delta)
		if d.onDelta != nil {
			d.onDelta(delta)
		}
	}
	return nil
}
