// Package service contains the story orchestrator: the state machine that
// gates each generation request through connectivity, credential and rate
// checks, memoizes request contexts, and keeps the conversation state
// persisted across restarts.
package service

import (
	"context"
	"errors"
	"strings"
	"sync"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"story-client/internal/cache"
	"story-client/internal/gemini"
	"story-client/internal/models"
	"story-client/internal/parser"
	"story-client/internal/repository"
)

// ErrBusy rejects a start or choose call issued while another request is in
// flight. The orchestrator admits one in-flight request per conversation and
// does not queue.
var ErrBusy = &models.RequestError{Kind: models.ErrKindUnknown, Message: "another request is already in flight"}

// Generator produces a raw model response for a fully formatted prompt.
type Generator interface {
	Generate(ctx context.Context, prompt string) (*gemini.GenerateContentResponse, error)
}

// OnlineChecker reports current connectivity. It never fails; uncertainty
// degrades to offline.
type OnlineChecker interface {
	IsOnline(ctx context.Context) bool
}

// RateLimiter enforces the client-side request budget.
type RateLimiter interface {
	CheckAndRecord() error
}

// Snapshot is the read surface exposed to the UI layer.
type Snapshot struct {
	Prompt       string                `json:"prompt"`
	Story        string                `json:"story"`
	Choices      []string              `json:"choices"`
	PriorChoices []string              `json:"previousChoices"`
	History      []models.StorySegment `json:"storyHistory"`
	IsLoading    bool                  `json:"isLoading"`
	LastError    string                `json:"lastError"`
	Offline      bool                  `json:"isOffline"`
}

// StoryService drives one conversation: Idle → Requesting → {Succeeded,
// Failed} → Idle. One request is in flight at a time; an overlapping start or
// choose call is rejected instead of queued. All mutable state (conversation,
// cache, rate window) is owned by the service instance, never process-global.
type StoryService struct {
	generator Generator
	checker   OnlineChecker
	limiter   RateLimiter
	repo      repository.StateRepository
	cache     *cache.Store
	prompts   PromptProvider
	hasAPIKey bool
	logger    *zap.Logger

	mu        sync.Mutex
	state     *models.ConversationState
	loading   bool
	offline   bool
	lastError string
}

// NewStoryService creates an orchestrator with a fresh conversation state.
// Call Restore to pick up a persisted session.
func NewStoryService(
	generator Generator,
	checker OnlineChecker,
	limiter RateLimiter,
	repo repository.StateRepository,
	hasAPIKey bool,
	logger *zap.Logger,
) *StoryService {
	return &StoryService{
		generator: generator,
		checker:   checker,
		limiter:   limiter,
		repo:      repo,
		cache:     cache.NewStore(),
		hasAPIKey: hasAPIKey,
		logger:    logger.Named("StoryService").With(zap.String("session_id", uuid.NewString())),
		state:     models.NewConversationState(),
	}
}

// Restore replaces the in-memory conversation with the persisted one. Absent
// or corrupt persisted data leaves the default-empty state in place.
func (s *StoryService) Restore(ctx context.Context) error {
	state, err := s.repo.Load(ctx)
	if err != nil {
		s.logger.Warn("Failed to restore persisted session, starting fresh", zap.Error(err))
		return err
	}

	s.mu.Lock()
	s.state = state
	s.mu.Unlock()

	if len(state.History) > 0 {
		s.logger.Info("Restored persisted session",
			zap.Int("history_len", len(state.History)),
			zap.Int("prior_choices", len(state.PriorChoices)),
		)
	}
	return nil
}

// StartNewStory begins a fresh play-through from promptText, clearing prior
// choices and history before requesting the opening segment.
func (s *StoryService) StartNewStory(ctx context.Context, promptText string) error {
	promptText = strings.TrimSpace(promptText)
	if promptText == "" {
		err := &models.RequestError{Kind: models.ErrKindUnknown, Message: "please enter a story prompt"}
		s.setLastError(err)
		return err
	}

	if err := s.beginRequest(func(state *models.ConversationState) {
		state.Prompt = promptText
		state.PriorChoices = []string{}
		state.History = []models.StorySegment{}
	}); err != nil {
		return err
	}
	s.persist(ctx)

	return s.fetchStory(ctx, promptText)
}

// SelectChoice continues the story with the current choice at index i. An
// out-of-range index is a no-op, not an error; the caller validates indices
// before invoking the orchestrator.
func (s *StoryService) SelectChoice(ctx context.Context, i int) error {
	var requestText string
	if err := s.beginRequest(func(state *models.ConversationState) {
		if i < 0 || i >= len(state.Choices) {
			return
		}
		choice := state.Choices[i]
		state.PriorChoices = append(state.PriorChoices, choice)
		requestText = s.prompts.ChoiceRequestText(choice)
	}); err != nil {
		return err
	}
	if requestText == "" {
		s.endRequest(nil)
		return nil
	}
	s.persist(ctx)

	return s.fetchStory(ctx, requestText)
}

// ResetSession returns the orchestrator to Idle with a fully cleared
// conversation and removes the durable session unit. The in-memory request
// cache is deliberately left intact.
func (s *StoryService) ResetSession(ctx context.Context) error {
	s.mu.Lock()
	s.state = models.NewConversationState()
	s.loading = false
	s.lastError = ""
	s.mu.Unlock()

	if err := s.repo.Clear(ctx); err != nil {
		return err
	}
	s.logger.Info("Session reset")
	return nil
}

// RefreshConnectivity probes connectivity and updates the offline flag.
func (s *StoryService) RefreshConnectivity(ctx context.Context) bool {
	online := s.checker.IsOnline(ctx)
	s.mu.Lock()
	s.offline = !online
	s.mu.Unlock()
	return online
}

// Snapshot returns a copy of the readable state for the UI layer.
func (s *StoryService) Snapshot() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	return Snapshot{
		Prompt:       s.state.Prompt,
		Story:        s.state.Story,
		Choices:      append([]string(nil), s.state.Choices...),
		PriorChoices: append([]string(nil), s.state.PriorChoices...),
		History:      append([]models.StorySegment(nil), s.state.History...),
		IsLoading:    s.loading,
		LastError:    s.lastError,
		Offline:      s.offline,
	}
}

// beginRequest transitions Idle → Requesting, applying mutate to the state
// under the lock. A second call while Requesting is rejected.
func (s *StoryService) beginRequest(mutate func(*models.ConversationState)) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.loading {
		return ErrBusy
	}
	s.loading = true
	s.lastError = ""
	mutate(s.state)
	return nil
}

// endRequest transitions back to Idle, recording the outcome.
func (s *StoryService) endRequest(err error) {
	s.mu.Lock()
	s.loading = false
	if err != nil {
		s.lastError = errorMessage(err)
	}
	s.mu.Unlock()
}

func (s *StoryService) setLastError(err error) {
	s.mu.Lock()
	s.lastError = errorMessage(err)
	s.mu.Unlock()
}

// fetchStory runs the gated request pipeline for the Requesting state:
// connectivity → credential → rate budget → cache → network → parse.
// requestText identifies the request context for memoization.
func (s *StoryService) fetchStory(ctx context.Context, requestText string) error {
	err := s.doFetch(ctx, requestText)
	s.endRequest(err)
	if err != nil {
		s.logger.Warn("Story request failed",
			zap.String("kind", string(models.KindOf(err))),
			zap.Error(err),
		)
	}
	return err
}

func (s *StoryService) doFetch(ctx context.Context, requestText string) error {
	online := s.checker.IsOnline(ctx)
	s.mu.Lock()
	s.offline = !online
	priorChoices := append([]string(nil), s.state.PriorChoices...)
	s.mu.Unlock()

	if !online {
		return models.NewNetworkError("you are currently offline, please check your internet connection", 0, nil)
	}

	if !s.hasAPIKey {
		return models.NewConfigurationError("API key is not configured")
	}

	if err := s.limiter.CheckAndRecord(); err != nil {
		return err
	}

	key := cache.NewKey(requestText, priorChoices)
	if entry, ok := s.cache.Get(key); ok {
		s.logger.Debug("Cache hit, skipping network call")
		s.applyResult(ctx, entry.StoryText, entry.Choices, priorChoices)
		return nil
	}

	prompt := s.prompts.FormatRequest(requestText, priorChoices)
	resp, err := s.generator.Generate(ctx, prompt)
	if err != nil {
		return err
	}

	result, err := parser.ParseResponse(resp)
	if err != nil {
		return err
	}

	s.cache.Put(key, models.CacheEntry{StoryText: result.StoryText, Choices: result.Choices})
	s.applyResult(ctx, result.StoryText, result.Choices, priorChoices)
	return nil
}

// applyResult appends the new segment, updates the current story view and
// persists the whole conversation as one unit.
func (s *StoryService) applyResult(ctx context.Context, storyText string, choices []string, priorChoices []string) {
	s.mu.Lock()
	s.state.Story = storyText
	s.state.Choices = append([]string(nil), choices...)
	if len(priorChoices) > 0 {
		taken := priorChoices[len(priorChoices)-1]
		s.state.History = append(s.state.History, models.StorySegment{Text: storyText, ChoiceTaken: &taken})
	} else {
		s.state.History = []models.StorySegment{{Text: storyText, ChoiceTaken: nil}}
	}
	s.mu.Unlock()

	s.persist(ctx)
}

// persist saves the whole conversation as one unit. A failed save is logged,
// not surfaced: the generated segment is already live in memory.
func (s *StoryService) persist(ctx context.Context) {
	s.mu.Lock()
	state := *s.state
	s.mu.Unlock()

	if err := s.repo.Save(ctx, &state); err != nil {
		s.logger.Error("Failed to persist conversation state", zap.Error(err))
	}
}

func errorMessage(err error) string {
	var reqErr *models.RequestError
	if errors.As(err, &reqErr) {
		return reqErr.Message
	}
	return err.Error()
}
