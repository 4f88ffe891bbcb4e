package service_test

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"story-client/internal/gemini"
	"story-client/internal/models"
	"story-client/internal/repository"
	"story-client/internal/service"
	"story-client/internal/service/mocks"
)

func makeResponse(text string) *gemini.GenerateContentResponse {
	return &gemini.GenerateContentResponse{
		Candidates: []gemini.Candidate{
			{Content: &gemini.CandidateContent{Parts: []gemini.Part{{Text: text}}}},
		},
	}
}

type fixture struct {
	generator *mocks.MockGenerator
	checker   *mocks.MockOnlineChecker
	limiter   *mocks.MockRateLimiter
	repo      repository.StateRepository
	svc       *service.StoryService
}

func newFixture(t *testing.T, hasAPIKey bool) *fixture {
	t.Helper()
	f := &fixture{
		generator: new(mocks.MockGenerator),
		checker:   new(mocks.MockOnlineChecker),
		limiter:   new(mocks.MockRateLimiter),
		repo:      repository.NewMemoryStateRepository(),
	}
	f.svc = service.NewStoryService(f.generator, f.checker, f.limiter, f.repo, hasAPIKey, zap.NewNop())
	return f
}

func (f *fixture) allowThrough() {
	f.checker.On("IsOnline", mock.Anything).Return(true).Maybe()
	f.limiter.On("CheckAndRecord").Return(nil).Maybe()
}

func TestStartNewStory(t *testing.T) {
	ctx := context.Background()

	t.Run("successful start populates state and persists it", func(t *testing.T) {
		f := newFixture(t, true)
		f.allowThrough()
		f.generator.On("Generate", mock.Anything, mock.MatchedBy(func(p string) bool {
			return strings.HasPrefix(p, "Start a new short story") && strings.Contains(p, "a dragon cave")
		})).Return(makeResponse("You stand before the cave. [Enter] [Leave] [Shout]"), nil).Once()

		require.NoError(t, f.svc.StartNewStory(ctx, "a dragon cave"))

		snap := f.svc.Snapshot()
		assert.Equal(t, "a dragon cave", snap.Prompt)
		assert.Equal(t, "You stand before the cave.", snap.Story)
		assert.Equal(t, []string{"Enter", "Leave", "Shout"}, snap.Choices)
		assert.Empty(t, snap.PriorChoices)
		require.Len(t, snap.History, 1)
		assert.Nil(t, snap.History[0].ChoiceTaken)
		assert.False(t, snap.IsLoading)
		assert.Empty(t, snap.LastError)

		persisted, err := f.repo.Load(ctx)
		require.NoError(t, err)
		assert.Equal(t, "You stand before the cave.", persisted.Story)
		f.generator.AssertExpectations(t)
	})

	t.Run("identical repeat is served from cache without a network call", func(t *testing.T) {
		f := newFixture(t, true)
		f.allowThrough()
		f.generator.On("Generate", mock.Anything, mock.Anything).
			Return(makeResponse("Text. [A] [B]"), nil).Once()

		require.NoError(t, f.svc.StartNewStory(ctx, "same prompt"))
		first := f.svc.Snapshot()
		require.NoError(t, f.svc.StartNewStory(ctx, "same prompt"))
		second := f.svc.Snapshot()

		assert.Equal(t, first.Story, second.Story)
		assert.Equal(t, first.Choices, second.Choices)
		f.generator.AssertNumberOfCalls(t, "Generate", 1)
	})

	t.Run("empty prompt is rejected before any gating", func(t *testing.T) {
		f := newFixture(t, true)
		err := f.svc.StartNewStory(ctx, "   ")
		require.Error(t, err)
		assert.Equal(t, "please enter a story prompt", f.svc.Snapshot().LastError)
		f.checker.AssertNotCalled(t, "IsOnline", mock.Anything)
		f.generator.AssertNotCalled(t, "Generate", mock.Anything, mock.Anything)
	})

	t.Run("offline fails immediately with zero network calls", func(t *testing.T) {
		f := newFixture(t, true)
		f.checker.On("IsOnline", mock.Anything).Return(false).Once()

		err := f.svc.StartNewStory(ctx, "prompt")
		require.Error(t, err)
		assert.Equal(t, models.ErrKindNetwork, models.KindOf(err))

		snap := f.svc.Snapshot()
		assert.True(t, snap.Offline)
		assert.NotEmpty(t, snap.LastError)
		f.generator.AssertNotCalled(t, "Generate", mock.Anything, mock.Anything)
		f.limiter.AssertNotCalled(t, "CheckAndRecord")
	})

	t.Run("missing API key fails with a configuration error", func(t *testing.T) {
		f := newFixture(t, false)
		f.checker.On("IsOnline", mock.Anything).Return(true).Once()

		err := f.svc.StartNewStory(ctx, "prompt")
		require.Error(t, err)
		assert.Equal(t, models.ErrKindConfiguration, models.KindOf(err))
		f.generator.AssertNotCalled(t, "Generate", mock.Anything, mock.Anything)
	})

	t.Run("rate limit rejection is terminal for the invocation", func(t *testing.T) {
		f := newFixture(t, true)
		f.checker.On("IsOnline", mock.Anything).Return(true).Once()
		f.limiter.On("CheckAndRecord").Return(models.NewRateLimitedError()).Once()

		err := f.svc.StartNewStory(ctx, "prompt")
		require.Error(t, err)
		assert.Equal(t, models.ErrKindRateLimited, models.KindOf(err))
		assert.Empty(t, f.svc.Snapshot().Story)
		f.generator.AssertNotCalled(t, "Generate", mock.Anything, mock.Anything)
	})

	t.Run("generator failure surfaces with its kind unchanged", func(t *testing.T) {
		f := newFixture(t, true)
		f.allowThrough()
		f.generator.On("Generate", mock.Anything, mock.Anything).
			Return(nil, models.NewTimeoutError(nil)).Once()

		err := f.svc.StartNewStory(ctx, "prompt")
		require.Error(t, err)
		assert.Equal(t, models.ErrKindTimeout, models.KindOf(err))

		snap := f.svc.Snapshot()
		assert.Equal(t, "request timed out", snap.LastError)
		assert.Empty(t, snap.History)
	})

	t.Run("response without choices is an invalid-response failure", func(t *testing.T) {
		f := newFixture(t, true)
		f.allowThrough()
		f.generator.On("Generate", mock.Anything, mock.Anything).
			Return(makeResponse("An ending with no way forward."), nil).Once()

		err := f.svc.StartNewStory(ctx, "prompt")
		require.Error(t, err)
		assert.Equal(t, models.ErrKindInvalidResponse, models.KindOf(err))
		assert.Empty(t, f.svc.Snapshot().Story)
	})

	t.Run("overlapping request is rejected, not queued", func(t *testing.T) {
		f := newFixture(t, true)
		f.allowThrough()

		release := make(chan struct{})
		f.generator.On("Generate", mock.Anything, mock.Anything).
			Run(func(args mock.Arguments) { <-release }).
			Return(makeResponse("Text. [A]"), nil).Once()

		done := make(chan error, 1)
		go func() { done <- f.svc.StartNewStory(ctx, "slow prompt") }()

		require.Eventually(t, func() bool { return f.svc.Snapshot().IsLoading }, time.Second, 5*time.Millisecond)

		err := f.svc.StartNewStory(ctx, "second prompt")
		require.Error(t, err)
		assert.Contains(t, err.Error(), "already in flight")

		close(release)
		require.NoError(t, <-done)
	})
}

func TestSelectChoice(t *testing.T) {
	ctx := context.Background()

	startStory := func(t *testing.T, f *fixture) {
		f.generator.On("Generate", mock.Anything, mock.MatchedBy(func(p string) bool {
			return strings.HasPrefix(p, "Start a new short story")
		})).Return(makeResponse("You stand before the cave. [Enter] [Leave]"), nil).Once()
		require.NoError(t, f.svc.StartNewStory(ctx, "a dragon cave"))
	}

	t.Run("choice continues the story and records history", func(t *testing.T) {
		f := newFixture(t, true)
		f.allowThrough()
		startStory(t, f)

		f.generator.On("Generate", mock.Anything, mock.MatchedBy(func(p string) bool {
			return strings.HasPrefix(p, "Continue the story based on the following choices: Enter.") &&
				strings.Contains(p, "Continue the story based on the choice: Enter")
		})).Return(makeResponse("Inside it is dark. [Light a torch] [Feel the walls]"), nil).Once()

		require.NoError(t, f.svc.SelectChoice(ctx, 0))

		snap := f.svc.Snapshot()
		assert.Equal(t, "Inside it is dark.", snap.Story)
		assert.Equal(t, []string{"Light a torch", "Feel the walls"}, snap.Choices)
		assert.Equal(t, []string{"Enter"}, snap.PriorChoices)
		require.Len(t, snap.History, 2)
		require.NotNil(t, snap.History[1].ChoiceTaken)
		assert.Equal(t, "Enter", *snap.History[1].ChoiceTaken)
		f.generator.AssertExpectations(t)
	})

	t.Run("out-of-range index is a no-op", func(t *testing.T) {
		f := newFixture(t, true)
		f.allowThrough()
		startStory(t, f)
		before := f.svc.Snapshot()

		require.NoError(t, f.svc.SelectChoice(ctx, 5))
		require.NoError(t, f.svc.SelectChoice(ctx, -1))

		after := f.svc.Snapshot()
		assert.Equal(t, before.Story, after.Story)
		assert.Equal(t, before.PriorChoices, after.PriorChoices)
		assert.Equal(t, before.History, after.History)
		f.generator.AssertNumberOfCalls(t, "Generate", 1)
	})

	t.Run("choice on an empty session is a no-op", func(t *testing.T) {
		f := newFixture(t, true)
		require.NoError(t, f.svc.SelectChoice(ctx, 0))
		f.generator.AssertNotCalled(t, "Generate", mock.Anything, mock.Anything)
	})
}

func TestResetSession(t *testing.T) {
	ctx := context.Background()

	t.Run("reset clears state and the durable unit", func(t *testing.T) {
		f := newFixture(t, true)
		f.allowThrough()
		f.generator.On("Generate", mock.Anything, mock.Anything).
			Return(makeResponse("Text. [A] [B]"), nil).Once()
		require.NoError(t, f.svc.StartNewStory(ctx, "prompt"))

		require.NoError(t, f.svc.ResetSession(ctx))

		snap := f.svc.Snapshot()
		assert.Empty(t, snap.Prompt)
		assert.Empty(t, snap.Story)
		assert.Empty(t, snap.Choices)
		assert.Empty(t, snap.PriorChoices)
		assert.Empty(t, snap.History)
		assert.Empty(t, snap.LastError)

		persisted, err := f.repo.Load(ctx)
		require.NoError(t, err)
		assert.Equal(t, models.NewConversationState(), persisted)
	})
}

func TestRestore(t *testing.T) {
	ctx := context.Background()

	t.Run("a persisted session survives a service restart", func(t *testing.T) {
		f := newFixture(t, true)
		f.allowThrough()
		f.generator.On("Generate", mock.Anything, mock.Anything).
			Return(makeResponse("Text. [A] [B]"), nil).Once()
		require.NoError(t, f.svc.StartNewStory(ctx, "prompt"))
		before := f.svc.Snapshot()

		restarted := service.NewStoryService(f.generator, f.checker, f.limiter, f.repo, true, zap.NewNop())
		require.NoError(t, restarted.Restore(ctx))

		snap := restarted.Snapshot()
		assert.Equal(t, before.Prompt, snap.Prompt)
		assert.Equal(t, before.Story, snap.Story)
		assert.Equal(t, before.Choices, snap.Choices)
		assert.Equal(t, before.History, snap.History)
	})
}
