package server

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"dotori/app/client/messenger"
	"dotori/app/config"
	"dotori/app/service/pipeline"
	"encoding/hex"
	"log/slog"
	"strconv"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/samber/do"
)

var _ do.Shutdownable = (*Service)(nil)

// MessageProcessor produces the reply for one inbound message.
type MessageProcessor interface {
	Process(ctx context.Context, message string) string
}

// Sender delivers a reply back to the messaging platform.
type Sender interface {
	SendText(ctx context.Context, recipientID, text string) error
}

// Service is the webhook boundary. Whatever happens inside, the
// delivery endpoint acknowledges with 200 so the platform does not
// retry-storm us.
type Service struct {
	cfg       *config.Config
	processor MessageProcessor
	sender    Sender
	app       *fiber.App
}

func New(di *do.Injector) (*Service, error) {
	return NewService(
		do.MustInvoke[*config.Config](di),
		do.MustInvoke[*pipeline.Service](di),
		do.MustInvoke[*messenger.Client](di),
	), nil
}

func NewService(cfg *config.Config, processor MessageProcessor, sender Sender) *Service {
	s := &Service{
		cfg:       cfg,
		processor: processor,
		sender:    sender,
	}

	app := fiber.New(fiber.Config{
		DisableStartupMessage: true,
	})
	app.Use(recover.New())

	app.Get("/", s.handleRoot)
	app.Get("/webhook", s.handleVerify)

	if cfg.Messenger.AppSecret != "" {
		app.Post("/webhook", s.verifySignature, s.handleEvents)
	} else {
		app.Post("/webhook", s.handleEvents)
	}

	app.Post("/chat", s.handleChat)

	s.app = app

	return s
}

func (s *Service) Run(ctx context.Context) error {
	go func() {
		<-ctx.Done()
		_ = s.app.ShutdownWithTimeout(5 * time.Second)
	}()

	return s.app.Listen(":" + s.cfg.Server.Port)
}

func (s *Service) Shutdown() error {
	return s.app.ShutdownWithTimeout(5 * time.Second)
}

func (s *Service) handleRoot(c *fiber.Ctx) error {
	return c.JSON(fiber.Map{
		"message": "Dotori chatbot is running",
		"status":  "ok",
	})
}

// handleVerify implements the subscribe handshake: echo the numeric
// challenge when the shared token matches, 403 otherwise.
func (s *Service) handleVerify(c *fiber.Ctx) error {
	mode := c.Query("hub.mode")
	token := c.Query("hub.verify_token")
	challenge := c.Query("hub.challenge")

	if mode == "subscribe" && token == s.cfg.Messenger.VerifyToken {
		if value, err := strconv.Atoi(challenge); err == nil {
			slog.Info("Webhook verified")
			return c.SendString(strconv.Itoa(value))
		}
	}

	slog.Warn("Webhook verification failed", "mode", mode)

	return c.Status(fiber.StatusForbidden).SendString("Verification failed")
}

// verifySignature checks X-Hub-Signature-256 over the raw body.
// Mounted only when an app secret is configured.
func (s *Service) verifySignature(c *fiber.Ctx) error {
	signature := c.Get("X-Hub-Signature-256")

	mac := hmac.New(sha256.New, []byte(s.cfg.Messenger.AppSecret))
	mac.Write(c.Body())
	expected := "sha256=" + hex.EncodeToString(mac.Sum(nil))

	if !hmac.Equal([]byte(signature), []byte(expected)) {
		slog.Warn("Webhook signature mismatch")
		return c.Status(fiber.StatusForbidden).JSON(statusResponse{
			Status:  "error",
			Message: "invalid signature",
		})
	}

	return c.Next()
}

func (s *Service) handleEvents(c *fiber.Ctx) error {
	var event webhookEvent
	if err := c.BodyParser(&event); err != nil {
		slog.Error("Failed to parse webhook body", "error", err)
		return c.JSON(statusResponse{Status: "error", Message: "invalid JSON format"})
	}

	if event.Object != "page" {
		slog.Warn("Ignoring non-page event", "object", event.Object)
		return c.JSON(statusResponse{Status: "ignored"})
	}

	for _, e := range event.Entry {
		for _, msg := range e.Messaging {
			s.handleMessagingEvent(c.UserContext(), msg)
		}
	}

	return c.JSON(statusResponse{Status: "ok"})
}

// handleMessagingEvent processes a single event to completion.
// Malformed events are skipped, failures are logged, siblings in the
// same batch always get their turn.
func (s *Service) handleMessagingEvent(ctx context.Context, event messagingEvent) {
	if event.Sender.ID == "" {
		slog.Warn("Skipping event without sender id")
		return
	}

	if event.Message.Text == "" {
		slog.Warn("Skipping event without message text", "sender", event.Sender.ID)
		return
	}

	start := time.Now()
	replyText := s.processor.Process(ctx, event.Message.Text)

	slog.Info("Processed message",
		"sender", event.Sender.ID,
		"duration", time.Since(start))

	if err := s.sender.SendText(ctx, event.Sender.ID, replyText); err != nil {
		slog.Error("Failed to deliver reply",
			"sender", event.Sender.ID,
			"error", err)
	}
}

// handleChat is the direct chat endpoint used by the web widget and
// manual testing, bypassing the messaging platform.
func (s *Service) handleChat(c *fiber.Ctx) error {
	var req chatRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(statusResponse{
			Status:  "error",
			Message: "invalid JSON format",
		})
	}

	return c.JSON(chatResponse{
		Response: s.processor.Process(c.UserContext(), req.Message),
	})
}
