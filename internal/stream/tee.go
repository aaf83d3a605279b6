package stream

import (
	"fmt"
	"io"
)

// Tee duplicates one upstream stream into two independent readers carrying
// identical byte content. A single read loop feeds both branches through
// pipes, so buffering is bounded by pipe backpressure: a branch that lags
// simply slows the other down rather than growing a buffer without bound.
//
// On upstream end-of-stream both branches see io.EOF; on upstream error both
// branches surface that error. Closing one branch early does not abort the
// other: its bytes are discarded and the surviving branch still reads to
// end-of-stream. The copy stops early only when both branches are gone.
func Tee(upstream io.Reader) (io.ReadCloser, io.ReadCloser) {
	pr1, pw1 := io.Pipe()
	pr2, pw2 := io.Pipe()

	go func() {
		var gone1, gone2 bool
		buf := make([]byte, 32*1024)
		for {
			n, err := upstream.Read(buf)
			if n > 0 {
				if !gone1 {
					if _, werr := pw1.Write(buf[:n]); werr != nil {
						gone1 = true
					}
				}
				if !gone2 {
					if _, werr := pw2.Write(buf[:n]); werr != nil {
						gone2 = true
					}
				}
				if gone1 && gone2 {
					return
				}
			}
			if err != nil {
				if err == io.EOF {
					err = nil
				}
				// err == nil closes with io.EOF on the read side
				pw1.CloseWithError(err)
				pw2.CloseWithError(err)
				return
			}
		}
	}()

	return pr1, pr2
}

// Accumulate fully consumes one tee branch through a Demuxer and returns the
// assembled text. The commit callback is invoked exactly once, on clean
// end-of-stream only; a mid-flight stream error returns without committing,
// so no partial message is ever persisted for the turn. Accumulated text may
// legitimately be empty (a stream that ends with zero deltas) and is still
// committed.
func Accumulate(branch io.Reader, onDelta func(string), commit func(text string) error) error {
	demux := NewDemuxer(onDelta)

	if _, err := io.Copy(demux, branch); err != nil {
		return fmt.Errorf("stream relay: %w", err)
	}
	if err := demux.Close(); err != nil {
		return fmt.Errorf("stream relay: %w", err)
	}

	return commit(demux.Text())
}
