// Package engine implements the conversation continuation protocol between
// the client and the story-serving endpoint. The server holds no session
// state; the client-held conversation history is round-tripped on every
// request and the engine infers what to do from its shape.
package engine

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"time"

	"adventure-engine/internal/services"
	"adventure-engine/internal/storage"
	"adventure-engine/pkg/story"
)

// ErrChoiceRequired means the history cannot be continued without a choice.
var ErrChoiceRequired = errors.New("a choice is required to continue the story")

// ErrInvalidChoice means the choice number is outside 1..3.
var ErrInvalidChoice = fmt.Errorf("choice must be between 1 and %d", story.OptionCount)

const usageRecordTimeout = 5 * time.Second

// UsageSink receives best-effort analytics increments. Delivery is not
// exactly-once; a lost event only skews the running counters.
type UsageSink interface {
	Record(ctx context.Context, ev story.UsageEvent) error
}

// Engine decides, per request, whether to start a fresh conversation,
// continue via a short choice message, or replay cached history.
type Engine struct {
	llm    services.LLMService
	store  storage.StoryStore
	usage  UsageSink
	logger *slog.Logger
}

// New creates an engine. usage may be nil when analytics are disabled.
func New(llm services.LLMService, store storage.StoryStore, usage UsageSink, logger *slog.Logger) *Engine {
	return &Engine{
		llm:    llm,
		store:  store,
		usage:  usage,
		logger: logger,
	}
}

// StepRequest is one advance of a conversation.
type StepRequest struct {
	StorySlug    string
	Language     string
	Choice       int
	ForceRestart bool
	History      []story.Message
}

// StepResult is the outcome of a step. History carries the conversation
// state the client should hold next; the short continuation branch leaves
// it empty on purpose.
type StepResult struct {
	Step    int
	Current *story.Step
	History []story.Message
}

// Step runs one turn of the continuation protocol.
func (e *Engine) Step(ctx context.Context, req StepRequest) (*StepResult, error) {
	if err := story.ValidateHistory(req.History); err != nil {
		return nil, err
	}

	if len(req.History) == 0 || req.ForceRestart {
		return e.start(ctx, req)
	}
	if req.Choice != 0 {
		if req.Choice < 1 || req.Choice > story.OptionCount {
			return nil, ErrInvalidChoice
		}
		return e.advance(ctx, req)
	}
	if last := req.History[len(req.History)-1]; last.Role == story.RoleAssistant {
		return e.replay(ctx, req)
	}
	return nil, ErrChoiceRequired
}

// start seeds a fresh conversation from the story record.
func (e *Engine) start(ctx context.Context, req StepRequest) (*StepResult, error) {
	s, err := e.store.GetStory(ctx, req.StorySlug)
	if err != nil {
		return nil, err
	}
	if !s.IsActive {
		return nil, storage.ErrNotFound
	}

	history := []story.Message{
		{Role: story.RoleUser, Content: story.Prompt(s.Content, req.Language)},
	}

	resp, err := e.llm.Chat(ctx, history)
	if err != nil {
		return nil, err
	}
	history = append(history, story.Message{Role: story.RoleAssistant, Content: resp.Message})

	usage := story.Usage{Requests: 1, Tokens: int64(resp.Tokens()), Costs: resp.Cost}

	step, err := story.ParseStep(resp.Message)
	if err != nil {
		// The call was still paid for. No session is counted because no
		// step was served.
		e.recordUsage(req.StorySlug, usage)
		return nil, err
	}

	usage.Sessions = 1
	e.recordUsage(req.StorySlug, usage)

	return &StepResult{Step: 1, Current: step, History: history}, nil
}

// advance continues via a single short "Choice {n}" message, relying on the
// upstream having retained the prior turns of the conversation. When that
// reliance produces unparsable output, the full transcript is resent once.
// That resend is the system's only retry, and a parse failure is its only
// trigger; transport errors surface directly.
func (e *Engine) advance(ctx context.Context, req StepRequest) (*StepResult, error) {
	choiceMsg := story.ChoiceMessage(req.Choice)
	stepNo := story.CountChoices(req.History) + 2

	resp, err := e.llm.Chat(ctx, []story.Message{choiceMsg})
	if err != nil {
		return nil, err
	}
	usage := story.Usage{Requests: 1, Tokens: int64(resp.Tokens()), Costs: resp.Cost}

	step, perr := story.ParseStep(resp.Message)
	if perr == nil {
		e.recordUsage(req.StorySlug, usage)
		return &StepResult{Step: stepNo, Current: step, History: nil}, nil
	}

	e.logger.Warn("Short continuation was unparsable, retrying with full history",
		"story", req.StorySlug, "choice", req.Choice, "error", perr)

	full := append(slices.Clone(req.History), choiceMsg)
	retry, err := e.llm.Chat(ctx, full)
	if err != nil {
		return nil, err
	}
	usage.Requests++
	usage.Tokens += int64(retry.Tokens())
	usage.Costs += retry.Cost

	step, err = story.ParseStep(retry.Message)
	if err != nil {
		e.recordUsage(req.StorySlug, usage)
		return nil, err
	}
	full = append(full, story.Message{Role: story.RoleAssistant, Content: retry.Message})

	e.recordUsage(req.StorySlug, usage)
	return &StepResult{Step: stepNo, Current: step, History: full}, nil
}

// replay serves a request whose history already ends with an assistant turn
// and carries no choice, e.g. after a page reload. The cached entry is
// parsed without any outbound call. If that entry is unparsable, a fresh
// completion over the full history regenerates it; the bad entry is
// replaced so the returned history still alternates and the next replay
// hits the cache.
func (e *Engine) replay(ctx context.Context, req StepRequest) (*StepResult, error) {
	last := req.History[len(req.History)-1]
	stepNo := story.CountChoices(req.History) + 1

	step, perr := story.ParseStep(last.Content)
	if perr == nil {
		return &StepResult{Step: stepNo, Current: step, History: req.History}, nil
	}

	e.logger.Warn("Cached assistant turn was unparsable, regenerating",
		"story", req.StorySlug, "error", perr)

	resp, err := e.llm.Chat(ctx, req.History)
	if err != nil {
		return nil, err
	}
	usage := story.Usage{Requests: 1, Tokens: int64(resp.Tokens()), Costs: resp.Cost}

	step, err = story.ParseStep(resp.Message)
	if err != nil {
		e.recordUsage(req.StorySlug, usage)
		return nil, err
	}

	history := append(slices.Clone(req.History[:len(req.History)-1]),
		story.Message{Role: story.RoleAssistant, Content: resp.Message})
	e.recordUsage(req.StorySlug, usage)

	return &StepResult{Step: stepNo, Current: step, History: history}, nil
}

// recordUsage emits an analytics increment without blocking the request.
func (e *Engine) recordUsage(slug string, delta story.Usage) {
	if e.usage == nil || delta.IsZero() {
		return
	}
	ev := story.UsageEvent{Slug: slug, Delta: delta, At: time.Now().UTC()}

	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), usageRecordTimeout)
		defer cancel()
		if err := e.usage.Record(ctx, ev); err != nil {
			e.logger.Warn("Failed to record usage", "story", slug, "error", err)
		}
	}()
}
