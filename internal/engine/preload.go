package engine

import (
	"context"
	"slices"
	"sync"

	"adventure-engine/pkg/story"
)

// PreloadRequest asks for speculative continuations of an already-advanced
// conversation, one per candidate choice.
type PreloadRequest struct {
	StorySlug string
	History   []story.Message
	Choices   []int
}

// PreloadResult maps choice numbers to parsed steps, with a parallel error
// map for the candidates that failed. It lives only until the client's
// next accepted choice.
type PreloadResult struct {
	Steps  map[int]*story.Step
	Errors map[int]string
}

// Success reports whether at least one candidate succeeded.
func (r *PreloadResult) Success() bool {
	return len(r.Steps) > 0
}

// Preload issues one continuation per candidate concurrently, each sending
// the full history plus "Choice {n}" directly; there is no short-circuit
// branch here and no retry. Candidates are independent: every outcome is
// collected, and one failure never cancels the others.
func (e *Engine) Preload(ctx context.Context, req PreloadRequest) *PreloadResult {
	result := &PreloadResult{
		Steps:  make(map[int]*story.Step),
		Errors: make(map[int]string),
	}

	var (
		wg sync.WaitGroup
		mu sync.Mutex // protects result maps
	)
	var usage story.Usage

	for _, choice := range req.Choices {
		wg.Add(1)
		go func(choice int) {
			defer wg.Done()

			if choice < 1 || choice > story.OptionCount {
				mu.Lock()
				result.Errors[choice] = ErrInvalidChoice.Error()
				mu.Unlock()
				return
			}

			messages := append(slices.Clone(req.History), story.ChoiceMessage(choice))
			resp, err := e.llm.Chat(ctx, messages)
			if err != nil {
				mu.Lock()
				result.Errors[choice] = err.Error()
				mu.Unlock()
				return
			}

			step, err := story.ParseStep(resp.Message)
			mu.Lock()
			defer mu.Unlock()
			usage.Requests++
			usage.Tokens += int64(resp.Tokens())
			usage.Costs += resp.Cost
			if err != nil {
				result.Errors[choice] = err.Error()
				return
			}
			result.Steps[choice] = step
		}(choice)
	}

	wg.Wait()
	e.recordUsage(req.StorySlug, usage)
	return result
}
