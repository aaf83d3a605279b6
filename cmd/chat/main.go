// Command chat is a terminal client for the bardchat server: it drives the
// full turn loop (classify, stream or image) against a live server and
// renders deltas as they arrive.
package main

import (
	"bardchat-backend/internal/client"
	"bardchat-backend/internal/models"
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
	"github.com/peterh/liner"
)

func main() {
	serverURL := flag.String("server", "http://localhost:8080", "bardchat server base URL")
	email := flag.String("email", "", "account email")
	password := flag.String("password", "", "account password")
	signup := flag.Bool("signup", false, "create the account before logging in")
	flag.Parse()

	if *email == "" || *password == "" {
		fmt.Fprintln(os.Stderr, "usage: chat -email <email> -password <password> [-signup] [-server <url>]")
		os.Exit(2)
	}

	ctx := context.Background()
	c := client.New(*serverURL)

	if *signup {
		if _, err := c.Signup(ctx, *email, *password, ""); err != nil {
			log.Fatalf("signup failed: %v", err)
		}
	}
	auth, err := c.Login(ctx, *email, *password)
	if err != nil {
		log.Fatalf("login failed: %v", err)
	}
	fmt.Printf("Logged in as %s\n", auth.User.Email)

	line := liner.NewLiner()
	defer line.Close()
	line.SetCtrlCAborts(true)

	historyFile := filepath.Join(os.TempDir(), ".bardchat_history")
	if f, err := os.Open(historyFile); err == nil {
		line.ReadHistory(f)
		f.Close()
	}
	defer func() {
		if f, err := os.Create(historyFile); err == nil {
			line.WriteHistory(f)
			f.Close()
		}
	}()

	fmt.Println(`Commands: /chats, /open <id>, /new <prompt>, /quit. Anything else is sent to the current chat.`)

	session := &session{client: c}
	for {
		input, err := line.Prompt("> ")
		if err != nil {
			if errors.Is(err, liner.ErrPromptAborted) {
				fmt.Println()
				return
			}
			if errors.Is(err, io.EOF) {
				return
			}
			log.Fatalf("read failed: %v", err)
		}
		input = strings.TrimSpace(input)
		if input == "" {
			continue
		}
		line.AppendHistory(input)

		if input == "/quit" {
			return
		}
		if err := session.handle(ctx, input); err != nil {
			fmt.Printf("error: %v\n", err)
		}
	}
}

// session holds the active chat and its transcript between prompts.
type session struct {
	client     *client.Client
	chatID     uuid.UUID
	transcript *client.Transcript
}

func (s *session) handle(ctx context.Context, input string) error {
	switch {
	case input == "/chats":
		return s.listChats(ctx)
	case strings.HasPrefix(input, "/open "):
		return s.openChat(ctx, strings.TrimSpace(strings.TrimPrefix(input, "/open ")))
	case strings.HasPrefix(input, "/new "):
		return s.newChat(ctx, strings.TrimSpace(strings.TrimPrefix(input, "/new ")))
	case strings.HasPrefix(input, "/"):
		return fmt.Errorf("unknown command %q", input)
	default:
		return s.sendTurn(ctx, input)
	}
}

func (s *session) listChats(ctx context.Context) error {
	chats, err := s.client.ListChats(ctx)
	if err != nil {
		return err
	}
	if len(chats.Chats) == 0 {
		fmt.Println("No chats yet. Start one with /new <prompt>.")
		return nil
	}
	for _, chat := range chats.Chats {
		title := client.FallbackTitle
		if chat.Summary != nil {
			title = *chat.Summary
		}
		fmt.Printf("%s  %-40s  %d messages\n", chat.ID, title, chat.MessagesCount)
	}
	return nil
}

func (s *session) openChat(ctx context.Context, idStr string) error {
	chatID, err := uuid.Parse(idStr)
	if err != nil {
		return fmt.Errorf("invalid chat ID %q", idStr)
	}

	chat, err := s.client.GetChat(ctx, chatID)
	if err != nil {
		return err
	}

	s.chatID = chatID
	s.transcript = client.NewTranscript(chat.Messages)
	if len(s.transcript.Messages()) == 0 {
		fmt.Printf("[assistant] %s\n", client.OpeningMessage)
	}
	for _, m := range s.transcript.Messages() {
		printMessage(m)
	}
	return nil
}

func (s *session) newChat(ctx context.Context, prompt string) error {
	if prompt == "" {
		return errors.New("prompt is required")
	}

	chatID, err := s.client.CreateChat(ctx, prompt)
	if err != nil {
		return err
	}

	s.chatID = chatID
	// The seed message is submitted through the transcript below, so the
	// transcript starts empty rather than from the fetched history.
	s.transcript = client.NewTranscript(nil)
	fmt.Printf("Created chat %s\n", chatID)

	// The seed prompt is already persisted, so the turn streams against the
	// stored message rather than submitting a new one.
	return s.streamStored(ctx, prompt)
}

func (s *session) sendTurn(ctx context.Context, content string) error {
	if s.transcript == nil {
		return errors.New("no chat open; use /new <prompt> or /open <id>")
	}
	if !s.transcript.InputEnabled() {
		return errors.New("a turn is already in flight")
	}

	kind, err := s.client.Classify(ctx, s.chatID, content)
	if err != nil {
		return err
	}

	if err := s.transcript.Submit(content); err != nil {
		return err
	}

	if kind == "image" {
		fmt.Println("[assistant] (generating an image, begrudgingly...)")
		msg, err := s.client.GenerateImage(ctx, s.chatID, models.GenerateImageRequest{
			Input: models.StreamMessageRequest{Role: models.RoleUser, Content: content},
		})
		if err != nil {
			s.transcript.Abort()
			return err
		}
		s.transcript.ResolveImage(*msg)
		printMessage(s.transcript.Messages()[len(s.transcript.Messages())-1])
		return nil
	}

	fmt.Print("[assistant] ")
	_, err = s.client.StreamMessage(ctx, s.chatID,
		models.StreamMessageRequest{Role: models.RoleUser, Content: content},
		func(delta string) {
			s.transcript.AppendDelta(delta)
			fmt.Print(delta)
		})
	if err != nil {
		s.transcript.Abort()
		fmt.Println()
		return err
	}
	s.transcript.Finish()
	fmt.Println()
	return nil
}

// streamStored runs a turn whose user message the server already holds: the
// stored message's ID is passed so the server does not persist it twice.
func (s *session) streamStored(ctx context.Context, content string) error {
	if err := s.transcript.Submit(content); err != nil {
		return err
	}

	chat, err := s.client.GetChat(ctx, s.chatID)
	if err != nil {
		s.transcript.Abort()
		return err
	}
	var stored *models.Message
	for i := range chat.Messages {
		if chat.Messages[i].Role == models.RoleUser {
			stored = &chat.Messages[i]
			break
		}
	}
	if stored == nil {
		s.transcript.Abort()
		return errors.New("seed message missing from chat")
	}

	id := stored.ID
	fmt.Print("[assistant] ")
	_, err = s.client.StreamMessage(ctx, s.chatID,
		models.StreamMessageRequest{ID: &id, Role: models.RoleUser, Content: content},
		func(delta string) {
			s.transcript.AppendDelta(delta)
			fmt.Print(delta)
		})
	if err != nil {
		s.transcript.Abort()
		fmt.Println()
		return err
	}
	s.transcript.Finish()
	fmt.Println()
	return nil
}

func printMessage(m models.ClientMessage) {
	switch {
	case m.Type == models.MessageTypeImage && m.Image != nil:
		fmt.Printf("[%s] (image) %s (%dx%d)\n", m.Role, m.Image.Path, m.Image.Width, m.Image.Height)
	default:
		fmt.Printf("[%s] %s\n", m.Role, m.Content)
	}
}
