package openai

import (
	"context"
	"errors"
	"net/http"

	"github.com/openai/openai-go/v3"
	"github.com/openai/openai-go/v3/option"
	"github.com/openai/openai-go/v3/packages/ssestream"
	"github.com/rs/zerolog/log"

	"gearshop/pkg/config"
	"gearshop/pkg/domain"
	"gearshop/pkg/models"
)

const (
	DefaultModel     = "gpt-3.5-turbo"
	defaultMaxTokens = 1024
)

// Client streams chat completions from an OpenAI-compatible endpoint.
type Client struct {
	client    openai.Client
	apiKey    string
	model     string
	maxTokens int64
}

// Options controls optional parameters for NewClient.
type Options struct {
	BaseURL    string
	Model      string
	MaxTokens  int
	HTTPClient *http.Client
}

// NewClient builds a client. It performs no network I/O, so it succeeds
// even without an API key; Complete reports the missing key instead.
func NewClient(key string, opts Options) *Client {
	if opts.Model == "" {
		opts.Model = DefaultModel
	}
	if opts.MaxTokens <= 0 {
		opts.MaxTokens = defaultMaxTokens
	}

	reqOpts := []option.RequestOption{
		option.WithAPIKey(key),
		// one attempt per query, failures go straight back to the caller
		option.WithMaxRetries(0),
	}
	if opts.BaseURL != "" {
		reqOpts = append(reqOpts, option.WithBaseURL(opts.BaseURL))
	}
	if opts.HTTPClient != nil {
		reqOpts = append(reqOpts, option.WithHTTPClient(opts.HTTPClient))
	}

	return &Client{
		client:    openai.NewClient(reqOpts...),
		apiKey:    key,
		model:     opts.Model,
		maxTokens: int64(opts.MaxTokens),
	}
}

// NewFromConfig constructs a client from app config.
func NewFromConfig(cfg config.Config) *Client {
	return NewClient(cfg.OpenAI.APIKey, Options{
		BaseURL:   cfg.OpenAI.BaseURL,
		Model:     cfg.OpenAI.Model,
		MaxTokens: cfg.OpenAI.MaxTokens,
	})
}

// Model returns the model identifier sent upstream.
func (c *Client) Model() string {
	return c.model
}

func (c *Client) makePromptParams(req models.CompletionRequest) openai.ChatCompletionNewParams {
	messages := req.Messages()
	params := openai.ChatCompletionNewParams{
		Model:       openai.ChatModel(c.model),
		MaxTokens:   openai.Int(c.maxTokens),
		Temperature: openai.Float(clampTemperature(req.Temperature)),
		Messages:    make([]openai.ChatCompletionMessageParamUnion, 0, len(messages)),
	}
	for _, m := range messages {
		params.Messages = append(params.Messages, toParam(m))
	}
	return params
}

func toParam(m models.Message) openai.ChatCompletionMessageParamUnion {
	switch m.Role {
	case models.RoleSystem:
		return openai.ChatCompletionMessageParamUnion{
			OfSystem: &openai.ChatCompletionSystemMessageParam{
				Content: openai.ChatCompletionSystemMessageParamContentUnion{
					OfString: openai.String(m.Content),
				},
			},
		}
	case models.RoleAssistant:
		return openai.ChatCompletionMessageParamUnion{
			OfAssistant: &openai.ChatCompletionAssistantMessageParam{
				Content: openai.ChatCompletionAssistantMessageParamContentUnion{
					OfString: openai.String(m.Content),
				},
			},
		}
	default:
		return openai.ChatCompletionMessageParamUnion{
			OfUser: &openai.ChatCompletionUserMessageParam{
				Content: openai.ChatCompletionUserMessageParamContentUnion{
					OfString: openai.String(m.Content),
				},
			},
		}
	}
}

// Complete starts a streaming completion for the system prompt and the
// user's query. A missing API key fails before any request is sent.
func (c *Client) Complete(ctx context.Context, req models.CompletionRequest) (models.TextStream, error) {
	if c.apiKey == "" {
		return nil, domain.ConfigError("OPENAI_API_KEY is not set", nil)
	}

	ctx, cancel := context.WithCancel(ctx)
	log.Ctx(ctx).Debug().
		Str("model", c.model).
		Float64("temperature", clampTemperature(req.Temperature)).
		Int("query_len", len(req.Query)).
		Msg("starting completion stream")

	stream := c.client.Chat.Completions.NewStreaming(ctx, c.makePromptParams(req))
	return &Stream{stream: stream, ctx: ctx, cancel: cancel}, nil
}

// Stream adapts the SDK's SSE stream to models.TextStream.
type Stream struct {
	stream *ssestream.Stream[openai.ChatCompletionChunk]
	ctx    context.Context
	cancel context.CancelFunc
	text   string
	closed bool
}

// Next advances to the next non-empty text fragment.
func (s *Stream) Next() bool {
	if s.closed {
		return false
	}
	for s.stream.Next() {
		chunk := s.stream.Current()
		if len(chunk.Choices) == 0 {
			continue
		}
		if content := chunk.Choices[0].Delta.Content; content != "" {
			s.text = content
			return true
		}
	}
	s.text = ""
	return false
}

// Text returns the current fragment.
func (s *Stream) Text() string {
	return s.text
}

// Err maps the stream's terminal error. Cancellation by the caller is
// passed through untouched so supersession can be told apart from
// upstream failures.
func (s *Stream) Err() error {
	err := s.stream.Err()
	if err == nil {
		return nil
	}
	if ctxErr := s.ctx.Err(); ctxErr != nil {
		return context.Cause(s.ctx)
	}
	return upstreamError(err)
}

// Close cancels the request and releases the response body.
func (s *Stream) Close() error {
	if s.closed {
		return nil
	}
	s.closed = true
	s.cancel()
	return s.stream.Close()
}

func upstreamError(err error) error {
	var apiErr *openai.Error
	if errors.As(err, &apiErr) {
		msg := apiErr.Message
		if msg == "" {
			msg = http.StatusText(apiErr.StatusCode)
		}
		return domain.UpstreamError("model provider returned an error", errors.New(msg))
	}
	return domain.UpstreamError("model provider request failed", err)
}

func clampTemperature(t float64) float64 {
	return min(max(t, 0), 1)
}
