package client

import (
	"errors"
	"time"

	"bardchat-backend/internal/models"
)

// TurnState describes where a transcript is in its current turn.
type TurnState int

const (
	// StateIdle means no turn is in flight: input is enabled.
	StateIdle TurnState = iota
	// StateAnswering means a turn was submitted and the transcript is
	// waiting for the first response byte (classification or stream start).
	StateAnswering
	// StateStreaming means deltas are arriving for the placeholder entry.
	StateStreaming
)

// ErrTurnInFlight is returned when a new turn is submitted before the
// previous one resolved.
var ErrTurnInFlight = errors.New("a turn is already in flight")

// OpeningMessage is shown for a chat with no history yet.
const OpeningMessage = "Oh great. What do you want?"

// FallbackTitle labels chats that have not been summarized yet.
const FallbackTitle = "A chat with you and Bard"

// Transcript is the in-memory view of one chat while turns are in flight.
// Entries are held oldest-first. During an active turn the final entry is a
// placeholder assistant message with empty content, filled in place as
// deltas arrive or replaced wholesale when the turn resolves to an image.
// It is not safe for concurrent use; callers drive it from a single loop.
type Transcript struct {
	entries []models.ClientMessage
	state   TurnState

	// focusInput is set only on the transition back to idle so the UI does
	// not try to focus a disabled input mid-turn.
	focusInput bool
}

// NewTranscript builds a transcript from persisted history. Stored messages
// arrive newest-first with a limit; they are reversed here so the transcript
// always holds oldest-first order.
func NewTranscript(newestFirst []models.Message) *Transcript {
	t := &Transcript{
		entries: make([]models.ClientMessage, 0, len(newestFirst)+2),
		state:   StateIdle,
	}
	for i := len(newestFirst) - 1; i >= 0; i-- {
		m := newestFirst[i]
		id := m.ID
		t.entries = append(t.entries, models.ClientMessage{
			ID:        &id,
			Role:      m.Role,
			Type:      m.Type,
			Content:   m.Content,
			Image:     m.Image,
			CreatedAt: m.CreatedAt,
		})
	}
	return t
}

// State returns the transcript's current turn state.
func (t *Transcript) State() TurnState {
	return t.state
}

// InputEnabled reports whether the user may submit a new message.
func (t *Transcript) InputEnabled() bool {
	return t.state == StateIdle
}

// Messages returns the transcript entries oldest-first. The returned slice
// is shared; callers must not mutate it.
func (t *Transcript) Messages() []models.ClientMessage {
	return t.entries
}

// Pending reports whether the final entry is an unresolved placeholder.
func (t *Transcript) Pending() bool {
	return t.state != StateIdle
}

// Submit records a user utterance and appends the placeholder assistant
// entry that subsequent deltas fill in. At most one placeholder exists per
// in-flight turn.
func (t *Transcript) Submit(content string) error {
	if t.state != StateIdle {
		return ErrTurnInFlight
	}

	now := time.Now()
	t.entries = append(t.entries,
		models.ClientMessage{
			Role:      models.RoleUser,
			Type:      models.MessageTypeChat,
			Content:   content,
			CreatedAt: now,
		},
		models.ClientMessage{
			Role:      models.RoleAssistant,
			Type:      models.MessageTypeChat,
			Content:   "",
			CreatedAt: now,
		},
	)
	t.state = StateAnswering
	t.focusInput = false
	return nil
}

// AppendDelta fills the placeholder entry in place with an incremental text
// fragment. Deltas arriving while idle are dropped.
func (t *Transcript) AppendDelta(delta string) {
	if t.state == StateIdle || len(t.entries) == 0 {
		return
	}
	t.state = StateStreaming
	t.entries[len(t.entries)-1].Content += delta
}

// ResolveImage replaces the placeholder entry wholesale with the final image
// message. Image turns are request/response; nothing renders incrementally.
func (t *Transcript) ResolveImage(msg models.Message) {
	if t.state == StateIdle || len(t.entries) == 0 {
		return
	}
	id := msg.ID
	t.entries[len(t.entries)-1] = models.ClientMessage{
		ID:        &id,
		Role:      msg.Role,
		Type:      msg.Type,
		Content:   msg.Content,
		Image:     msg.Image,
		CreatedAt: msg.CreatedAt,
	}
	t.finish()
}

// Finish marks the in-flight turn complete after the stream ends.
func (t *Transcript) Finish() {
	if t.state == StateIdle {
		return
	}
	t.finish()
}

// Abort drops the placeholder (and nothing else) after a failed turn, so a
// dangling loading indicator is not left on screen.
func (t *Transcript) Abort() {
	if t.state == StateIdle {
		return
	}
	if n := len(t.entries); n > 0 && t.entries[n-1].Role == models.RoleAssistant && t.entries[n-1].ID == nil {
		t.entries = t.entries[:n-1]
	}
	t.finish()
}

func (t *Transcript) finish() {
	t.state = StateIdle
	t.focusInput = true
}

// TakeFocus reports whether focus should return to the input, clearing the
// flag. True only once per transition back to idle.
func (t *Transcript) TakeFocus() bool {
	f := t.focusInput
	t.focusInput = false
	return f
}
