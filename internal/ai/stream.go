package ai

import (
	"bufio"
	"context"
	"io"
	"strings"
)

// StreamChatCompletion makes one streaming completion call and returns the
// response re-framed as newline-delimited JSON chunk records: the provider's
// SSE framing is stripped (each "data:" event becomes one record line, the
// terminal [DONE] sentinel is dropped). This is the framing relayed verbatim
// to browser clients, so both sides of the relay decode identically.
func (c *Client) StreamChatCompletion(ctx context.Context, messages []ChatMessage) (io.ReadCloser, error) {
	body, err := c.post(ctx, "/chat/completions", chatCompletionRequest{
		Model:    c.backend.ChatModel,
		Messages: messages,
		Stream:   true,
	})
	if err != nil {
		return nil, err
	}

	pr, pw := io.Pipe()

	go func() {
		defer body.Close()

		scanner := bufio.NewScanner(body)
		// Single deltas are tiny, but a coalesced event can be large.
		scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)

		for scanner.Scan() {
			line := strings.TrimSpace(scanner.Text())
			if line == "" {
				continue
			}
			line = strings.TrimPrefix(line, "data:")
			line = strings.TrimSpace(line)
			if line == "" || line == "[DONE]" {
				continue
			}
			if _, err := io.WriteString(pw, line+"\n"); err != nil {
				// Reader went away; stop pulling from the provider.
				return
			}
		}

		pw.CloseWithError(scanner.Err())
	}()

	return pr, nil
}
