package ai

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
)

// Classification is the classifier's decision for a turn.
type Classification struct {
	Type         string `json:"type"` // TypeChat or TypeImage
	ReferenceURL string `json:"reference_url,omitempty"`
}

const (
	TypeChat  = "chat"
	TypeImage = "image"
)

// classifierInstructions asks for a strict JSON verdict so the reply can be
// parsed without scraping prose.
const classifierInstructions = `You are a classifier that inspects an in-progress conversation. Your job is to determine if the latest message in the conversation from the user is asking for an image to be generated or not. Respond with strict JSON and nothing else: {"type":"image"} if the user is asking for an image, {"type":"chat"} if not. If the user's request references an existing image by URL, include it as {"type":"image","reference_url":"..."}. If you are unsure in any way, respond with {"type":"chat"}.`

// ClassifyTurn inspects a conversation history whose final entry is the
// newest user utterance and decides whether the turn is an ordinary chat
// turn or an image-generation request.
//
// The parse is fail-open: a reply that is not valid JSON, or that lacks a
// recognized type, classifies as chat. Misclassifying an image request as
// chat is preferable to spuriously invoking paid image generation. Transport
// failures still surface as errors.
func (c *Client) ClassifyTurn(ctx context.Context, history []ChatMessage) (Classification, error) {
	messages := append([]ChatMessage{Text("system", classifierInstructions)}, history...)

	reply, err := c.CreateChatCompletion(ctx, messages)
	if err != nil {
		if errors.Is(err, ErrNoContent) {
			// Shape problem, not a transport problem: fail open.
			return Classification{Type: TypeChat}, nil
		}
		return Classification{}, err
	}

	return ParseClassification(reply), nil
}

// ParseClassification parses a classifier reply into a Classification. It
// never fails: anything other than a well-formed image verdict is chat.
func ParseClassification(reply string) Classification {
	var parsed Classification
	if err := json.Unmarshal([]byte(strings.TrimSpace(reply)), &parsed); err != nil {
		return Classification{Type: TypeChat}
	}

	switch parsed.Type {
	case TypeImage:
		return parsed
	case TypeChat:
		return Classification{Type: TypeChat}
	default:
		return Classification{Type: TypeChat}
	}
}
