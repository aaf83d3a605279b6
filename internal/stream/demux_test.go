package stream

import (
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func record(content string) string {
	return fmt.Sprintf(`{"id":"chatcmpl-1","object":"chat.completion.chunk","choices":[{"delta":{"content":%q}}]}`, content)
}

const terminalRecord = `{"id":"chatcmpl-1","object":"chat.completion.chunk","choices":[]}`

func TestExtractDelta(t *testing.T) {
	t.Run("content fragment", func(t *testing.T) {
		delta, err := ExtractDelta([]byte(record("Hi")))
		require.NoError(t, err)
		assert.Equal(t, "Hi", delta)
	})

	t.Run("empty choices contributes nothing", func(t *testing.T) {
		delta, err := ExtractDelta([]byte(terminalRecord))
		require.NoError(t, err)
		assert.Equal(t, "", delta)
	})

	t.Run("missing delta content contributes nothing", func(t *testing.T) {
		delta, err := ExtractDelta([]byte(`{"id":"chatcmpl-1","choices":[{"delta":{}}]}`))
		require.NoError(t, err)
		assert.Equal(t, "", delta)
	})

	t.Run("malformed record is fatal", func(t *testing.T) {
		_, err := ExtractDelta([]byte(`{"id":`))
		assert.Error(t, err)
	})
}

func TestSplitChunk(t *testing.T) {
	t.Run("single record", func(t *testing.T) {
		records := SplitChunk([]byte(record("Hi") + "\n"))
		assert.Equal(t, []string{record("Hi")}, records)
	})

	t.Run("coalesced records split on newlines", func(t *testing.T) {
		chunk := record("Hi") + "\n" + record(" there")
		records := SplitChunk([]byte(chunk))
		assert.Len(t, records, 2)
	})

	t.Run("interior newline without marker stays one record", func(t *testing.T) {
		// A content string containing a newline must not be split.
		rec := record("line one\nline two")
		records := SplitChunk([]byte(rec))
		assert.Equal(t, []string{rec}, records)
	})

	t.Run("empty chunk yields zero records", func(t *testing.T) {
		assert.Nil(t, SplitChunk([]byte("  \n ")))
		assert.Nil(t, SplitChunk(nil))
	})
}

func TestDecodeChunk(t *testing.T) {
	t.Run("concatenates records in order", func(t *testing.T) {
		chunk := record("Hi") + "\n" + record(" there") + "\n" + terminalRecord
		delta, err := DecodeChunk([]byte(chunk))
		require.NoError(t, err)
		assert.Equal(t, "Hi there", delta)
	})

	t.Run("malformed record fails the buffer", func(t *testing.T) {
		chunk := record("Hi") + "\n" + `{"id": garbage`
		_, err := DecodeChunk([]byte(chunk))
		assert.Error(t, err)
	})
}

func TestDemuxerFragmentation(t *testing.T) {
	// The decoded text must be identical no matter where the byte stream is
	// fragmented into delivery buffers, including mid-record splits.
	full := strings.Join([]string{
		record("Hello"),
		record(", "),
		record("wor\nld"), // interior newline inside content
		record("!"),
		terminalRecord,
	}, "\n") + "\n"

	const want = "Hello, wor\nld!"

	for split := 0; split <= len(full); split++ {
		d := NewDemuxer(nil)
		_, err := d.Write([]byte(full[:split]))
		require.NoError(t, err, "split at %d", split)
		_, err = d.Write([]byte(full[split:]))
		require.NoError(t, err, "split at %d", split)
		require.NoError(t, d.Close(), "split at %d", split)
		require.Equal(t, want, d.Text(), "split at %d", split)
	}
}

func TestDemuxerSingleByteWrites(t *testing.T) {
	full := record("Hi") + "\n" + record(" there")
	d := NewDemuxer(nil)
	for i := 0; i < len(full); i++ {
		_, err := d.Write([]byte{full[i]})
		require.NoError(t, err)
	}
	require.NoError(t, d.Close())
	assert.Equal(t, "Hi there", d.Text())
}

func TestDemuxerOnDelta(t *testing.T) {
	var got []string
	d := NewDemuxer(func(delta string) { got = append(got, delta) })

	_, err := d.Write([]byte(record("Hi") + "\n" + record(" there") + "\n"))
	require.NoError(t, err)
	require.NoError(t, d.Close())

	assert.Equal(t, []string{"Hi", " there"}, got)
	assert.Equal(t, "Hi there", d.Text())
}

func TestDemuxerMalformedTrailingRecord(t *testing.T) {
	d := NewDemuxer(nil)
	_, err := d.Write([]byte(record("ok") + "\n" + `{"id": truncated`))
	require.NoError(t, err) // not finalized until Close
	assert.Error(t, d.Close())
}

func TestDemuxerStickyError(t *testing.T) {
	d := NewDemuxer(nil)
	_, err := d.Write([]byte("not json at all\n" + record("x")))
	require.Error(t, err)
	_, err = d.Write([]byte(record("y")))
	assert.Error(t, err)
}
