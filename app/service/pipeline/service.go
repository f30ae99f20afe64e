package pipeline

import (
	"context"
	"dotori/app/service/knowledge"
	"dotori/app/service/lookup"
	"dotori/app/service/reply"
	"log/slog"
	"strings"

	"github.com/samber/do"
	"golang.org/x/sync/singleflight"
)

// Messages containing any of these skip the lookups entirely.
var greetingTokens = []string{"안녕", "hi", "hello", "ㅎㅇ"}

// Generator is the reply-producing stage of the pipeline.
type Generator interface {
	Generate(ctx context.Context, userMessage string, convCtx *reply.Context) (string, error)
}

// Service orchestrates one inbound message: guard, lazy knowledge
// recovery, greeting short-circuit, lookups, context assembly,
// generation. Process never fails outward, every path ends in a
// string the customer can be sent.
type Service struct {
	knowledgeSvc *knowledge.Service
	lookupSvc    *lookup.Service
	generator    Generator

	reloadGroup singleflight.Group
}

func New(di *do.Injector) (*Service, error) {
	return NewService(
		do.MustInvoke[*knowledge.Service](di),
		do.MustInvoke[*lookup.Service](di),
		do.MustInvoke[*reply.Service](di),
	), nil
}

func NewService(knowledgeSvc *knowledge.Service, lookupSvc *lookup.Service, generator Generator) *Service {
	return &Service{
		knowledgeSvc: knowledgeSvc,
		lookupSvc:    lookupSvc,
		generator:    generator,
	}
}

func (s *Service) Process(ctx context.Context, message string) (result string) {
	defer func() {
		if r := recover(); r != nil {
			slog.Error("Panic in message pipeline", "message", message, "panic", r)
			result = reply.MsgTemporaryError
		}
	}()

	text := strings.TrimSpace(message)
	if text == "" {
		return reply.MsgCannotUnderstand
	}

	if s.knowledgeSvc.Empty() {
		if err := s.reload(ctx); err != nil {
			slog.Error("Knowledge reload failed, continuing with empty tables", "error", err)
		}
	}

	if isGreeting(text) {
		slog.Debug("Greeting detected, skipping lookups")
		return s.respond(ctx, text, nil)
	}

	return s.respond(ctx, text, s.assembleContext(text))
}

// assembleContext runs the three lookups independently and merges
// the hits. A miss in one table never suppresses the others. Returns
// nil when nothing matched.
func (s *Service) assembleContext(text string) *reply.Context {
	convCtx := reply.Context{
		Product: s.lookupSvc.FindProduct(text),
		Size:    s.lookupSvc.FindSizeInfo(text),
		Faq:     s.lookupSvc.FindFaq(text),
	}

	if convCtx.Empty() {
		return nil
	}

	slog.Info("Assembled context",
		"product", convCtx.Product != nil,
		"size", convCtx.Size != nil,
		"faq", convCtx.Faq != nil)

	return &convCtx
}

func (s *Service) respond(ctx context.Context, text string, convCtx *reply.Context) string {
	replyText, err := s.generator.Generate(ctx, text, convCtx)
	if err != nil {
		slog.Error("Failed to generate reply", "text", text, "error", err)
		return reply.MsgTemporaryError
	}

	return replyText
}

// reload coalesces concurrent recovery attempts into a single load.
func (s *Service) reload(ctx context.Context) error {
	_, err, _ := s.reloadGroup.Do("reload", func() (any, error) {
		return nil, s.knowledgeSvc.Load(ctx)
	})

	return err
}

func isGreeting(text string) bool {
	folded := strings.ToLower(text)

	for _, token := range greetingTokens {
		if strings.Contains(folded, token) {
			return true
		}
	}

	return false
}
