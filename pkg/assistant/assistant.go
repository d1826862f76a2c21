package assistant

import (
	"context"
	"errors"
	"strings"

	"github.com/rs/zerolog/log"

	"gearshop/pkg/catalog"
	"gearshop/pkg/domain"
	"gearshop/pkg/metrics"
	"gearshop/pkg/models"
	"gearshop/pkg/parser"
	"gearshop/pkg/prompting"
	"gearshop/pkg/session"
)

// Completer streams a model reply. *openai.Client satisfies it.
type Completer interface {
	Complete(ctx context.Context, req models.CompletionRequest) (models.TextStream, error)
}

// Service turns shopper questions into model replies and catalog products.
type Service struct {
	catalog   *catalog.Catalog
	completer Completer
	mode      prompting.Mode
	prompt    string
	sessions  *session.Registry
	reg       *metrics.Registry
}

// New builds the service. The system prompt is rendered once because the
// catalog never changes. sessions and reg may be nil.
func New(c *catalog.Catalog, completer Completer, mode prompting.Mode, sessions *session.Registry, reg *metrics.Registry) *Service {
	return &Service{
		catalog:   c,
		completer: completer,
		mode:      mode,
		prompt:    prompting.SystemPrompt(c.All(), mode),
		sessions:  sessions,
		reg:       reg,
	}
}

// Mode returns the configured recommendation mode.
func (s *Service) Mode() prompting.Mode {
	return s.mode
}

// Answer is a fully received reply and the products it references.
type Answer struct {
	Reply      string           `json:"reply"`
	Products   []models.Product `json:"products"`
	Unresolved []string         `json:"unresolved,omitempty"`
}

// Ask validates the query and starts streaming the model's reply. When
// sessionID is set, a later Ask for the same session cancels this one.
// The caller must Close the returned stream.
func (s *Service) Ask(ctx context.Context, sessionID, query string) (models.TextStream, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		s.count(ctx, "rejected")
		return nil, domain.ValidationError("prompt must not be empty", nil)
	}

	var ticket *session.Ticket
	if s.sessions != nil && sessionID != "" {
		ctx, ticket = s.sessions.Begin(ctx, sessionID)
	}

	stream, err := s.completer.Complete(ctx, models.CompletionRequest{
		System:      s.prompt,
		Query:       query,
		Temperature: s.mode.Temperature(),
	})
	if err != nil {
		if ticket != nil {
			ticket.Release()
		}
		s.count(ctx, string(domain.TypeOf(err)))
		log.Ctx(ctx).Error().Err(err).Msg("completion failed to start")
		return nil, err
	}

	return &trackedStream{TextStream: stream, svc: s, ctx: ctx, ticket: ticket}, nil
}

// Recommend asks the model and waits for the whole reply, then resolves
// the bracketed product IDs it contains.
func (s *Service) Recommend(ctx context.Context, sessionID, query string) (*Answer, error) {
	stream, err := s.Ask(ctx, sessionID, query)
	if err != nil {
		return nil, err
	}
	defer stream.Close()

	var reply strings.Builder
	for stream.Next() {
		reply.WriteString(stream.Text())
	}
	if err := stream.Err(); err != nil {
		return nil, err
	}

	// A newer query may have replaced this one just as it finished.
	if ts, ok := stream.(*trackedStream); ok && ts.ticket != nil && !ts.ticket.Current() {
		ts.superseded = true
		return nil, domain.SupersededError("a newer query replaced this one", nil)
	}

	return s.Resolve(ctx, reply.String()), nil
}

// Resolve parses a complete reply into products.
func (s *Service) Resolve(ctx context.Context, reply string) *Answer {
	products, unresolved := parser.Split(parser.Parse(reply, s.catalog))
	if len(unresolved) > 0 {
		log.Ctx(ctx).Debug().Strs("ids", unresolved).Msg("dropping unknown product references")
	}
	s.reg.Inc(ctx, metrics.AssistantTokens, metrics.Labels{"resolved": "true"}, int64(len(products)))
	s.reg.Inc(ctx, metrics.AssistantTokens, metrics.Labels{"resolved": "false"}, int64(len(unresolved)))

	return &Answer{Reply: reply, Products: products, Unresolved: unresolved}
}

func (s *Service) count(ctx context.Context, outcome string) {
	s.reg.Inc(ctx, metrics.AssistantQueries, metrics.Labels{"mode": string(s.mode), "outcome": outcome}, 1)
}

// trackedStream releases the session slot and records the outcome when the
// stream is closed.
type trackedStream struct {
	models.TextStream
	svc    *Service
	ctx    context.Context
	ticket *session.Ticket
	done   bool
	// superseded is set when the caller found the call replaced after the
	// stream itself ended cleanly.
	superseded bool
}

// Err reports supersession as a categorized error.
func (t *trackedStream) Err() error {
	err := t.TextStream.Err()
	if err == nil {
		return nil
	}
	if errors.Is(err, session.ErrSuperseded) || (t.ticket != nil && t.ticket.Superseded()) {
		return domain.SupersededError("a newer query replaced this one", nil)
	}
	if errors.Is(err, session.ErrExpired) || (t.ticket != nil && t.ticket.Expired()) {
		return domain.UpstreamError("the model did not finish replying in time", session.ErrExpired)
	}
	return err
}

func (t *trackedStream) Close() error {
	if t.done {
		return nil
	}
	t.done = true

	outcome := "ok"
	if t.superseded {
		outcome = string(domain.ErrorTypeSuperseded)
	} else if err := t.Err(); err != nil {
		outcome = string(domain.TypeOf(err))
		if errors.Is(err, context.Canceled) {
			outcome = "canceled"
		}
	}
	t.svc.count(t.ctx, outcome)

	err := t.TextStream.Close()
	if t.ticket != nil {
		t.ticket.Release()
	}
	return err
}
