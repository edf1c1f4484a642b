package provider

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
)

// DefaultTimeout bounds a single generative call.
const DefaultTimeout = 90 * time.Second

// OpenAIConfig configures the chat-completions client.
type OpenAIConfig struct {
	APIKey  string
	BaseURL string
	Model   string
	Timeout time.Duration
}

// OpenAI is a Client backed by the OpenAI chat-completions API (or any
// compatible endpoint). SDK-level retries are disabled: retry policy belongs
// to the job runner.
type OpenAI struct {
	client  openai.Client
	model   string
	timeout time.Duration
	logger  *slog.Logger
}

// NewOpenAI builds a client. Extra request options are appended after the
// ones derived from cfg.
func NewOpenAI(cfg OpenAIConfig, logger *slog.Logger, extra ...option.RequestOption) *OpenAI {
	if logger == nil {
		logger = slog.Default()
	}
	opts := []option.RequestOption{option.WithMaxRetries(0)}
	if cfg.APIKey != "" {
		opts = append(opts, option.WithAPIKey(cfg.APIKey))
	}
	if cfg.BaseURL != "" {
		opts = append(opts, option.WithBaseURL(cfg.BaseURL))
	}
	opts = append(opts, extra...)

	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &OpenAI{
		client:  openai.NewClient(opts...),
		model:   cfg.Model,
		timeout: timeout,
		logger:  logger,
	}
}

// Generate sends the rendered prompt and asks for a JSON object reply.
func (o *OpenAI) Generate(ctx context.Context, req Request) (Response, error) {
	ctx, cancel := context.WithTimeout(ctx, o.timeout)
	defer cancel()

	msgs := []openai.ChatCompletionMessageParamUnion{}
	if req.System != "" {
		msgs = append(msgs, openai.SystemMessage(req.System))
	}
	msgs = append(msgs, openai.UserMessage(req.Prompt))

	start := time.Now()
	resp, err := o.client.Chat.Completions.New(ctx, openai.ChatCompletionNewParams{
		Model:    openai.ChatModel(o.model),
		Messages: msgs,
		ResponseFormat: openai.ChatCompletionNewParamsResponseFormatUnion{
			OfJSONObject: &openai.ResponseFormatJSONObjectParam{},
		},
	})
	if err != nil {
		classified := classify(ctx, err)
		o.logger.Error("provider call failed",
			"action", req.Action,
			"kind", classified.Kind,
			"elapsed", time.Since(start),
			"error", err)
		return Response{}, classified
	}

	if len(resp.Choices) == 0 || strings.TrimSpace(resp.Choices[0].Message.Content) == "" {
		return Response{}, &Error{Kind: KindEmpty, Err: errors.New("no content in response")}
	}

	out := Response{Text: resp.Choices[0].Message.Content}
	if resp.Usage.PromptTokens > 0 || resp.Usage.CompletionTokens > 0 {
		out.Usage = &Usage{
			InputTokens:  resp.Usage.PromptTokens,
			OutputTokens: resp.Usage.CompletionTokens,
		}
	}
	o.logger.Debug("provider call completed",
		"action", req.Action,
		"elapsed", time.Since(start),
		"usage_reported", out.Usage != nil)
	return out, nil
}

// classify maps SDK and transport errors onto provider error kinds.
func classify(ctx context.Context, err error) *Error {
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(ctx.Err(), context.DeadlineExceeded) {
		return &Error{Kind: KindTimeout, Err: err}
	}

	var apiErr *openai.Error
	if errors.As(err, &apiErr) {
		switch {
		case apiErr.StatusCode == http.StatusTooManyRequests:
			return &Error{Kind: KindRateLimit, Err: err}
		case apiErr.StatusCode == http.StatusRequestTimeout || apiErr.StatusCode == http.StatusGatewayTimeout:
			return &Error{Kind: KindTimeout, Err: err}
		case apiErr.StatusCode >= 500:
			return &Error{Kind: KindTransport, Err: err}
		default:
			return &Error{Kind: KindRejected, Err: fmt.Errorf("status %d: %s", apiErr.StatusCode, apiErr.Message)}
		}
	}

	return &Error{Kind: KindTransport, Err: err}
}
