package router

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ImogeneOctaviap794/Toolify-code/circuitbreaker"
	"github.com/ImogeneOctaviap794/Toolify-code/types"
)

func svc(name string, priority int, models ...string) types.UpstreamService {
	return types.UpstreamService{
		Name:     name,
		APIKey:   "key-" + name,
		Priority: priority,
		Models:   models,
	}
}

func TestCandidatesOrderedByDescendingPriority(t *testing.T) {
	r := New([]types.UpstreamService{
		svc("low", 1, "gpt-4"),
		svc("high", 10, "gpt-4"),
		svc("mid", 5, "gpt-4"),
	}, nil)

	got := r.Candidates("gpt-4")
	require.Len(t, got, 3)
	assert.Equal(t, "high", got[0].Name)
	assert.Equal(t, "mid", got[1].Name)
	assert.Equal(t, "low", got[2].Name)
}

func TestCandidatesFiltersByModelAndMissingKey(t *testing.T) {
	noKey := svc("no-key", 10, "gpt-4")
	noKey.APIKey = ""
	r := New([]types.UpstreamService{
		svc("gpt-upstream", 1, "gpt-4"),
		svc("claude-upstream", 1, "claude-3"),
		noKey,
	}, nil)

	got := r.Candidates("gpt-4")
	require.Len(t, got, 1)
	assert.Equal(t, "gpt-upstream", got[0].Name)
}

func TestClassifyHTTPStatus(t *testing.T) {
	assert.Equal(t, ClassRetriable, ClassifyHTTPStatus(429))
	assert.Equal(t, ClassRetriable, ClassifyHTTPStatus(503))
	assert.Equal(t, ClassClientError, ClassifyHTTPStatus(400))
	assert.Equal(t, ClassClientError, ClassifyHTTPStatus(404))
	assert.Equal(t, ClassSuccess, ClassifyHTTPStatus(200))
}

func TestForwardStopsOnFirstSuccess(t *testing.T) {
	r := New([]types.UpstreamService{
		svc("primary", 10, "gpt-4"),
		svc("backup", 1, "gpt-4"),
	}, circuitbreaker.NewHealthManager(circuitbreaker.DefaultConfig()))

	var tried []string
	result, err := r.Forward(context.Background(), "gpt-4", func(ctx context.Context, s types.UpstreamService) Attempt {
		tried = append(tried, s.Name)
		return Attempt{Service: s, Class: ClassSuccess}
	}, nil)

	require.NoError(t, err)
	assert.Equal(t, []string{"primary"}, tried)
	assert.Equal(t, "primary", result.Service.Name)
}

func TestForwardFailsOverToNextCandidateOnRetriable(t *testing.T) {
	r := New([]types.UpstreamService{
		svc("primary", 10, "gpt-4"),
		svc("backup", 1, "gpt-4"),
	}, circuitbreaker.NewHealthManager(circuitbreaker.DefaultConfig()))

	var tried []string
	result, err := r.Forward(context.Background(), "gpt-4", func(ctx context.Context, s types.UpstreamService) Attempt {
		tried = append(tried, s.Name)
		if s.Name == "primary" {
			return Attempt{Service: s, Class: ClassRetriable}
		}
		return Attempt{Service: s, Class: ClassSuccess}
	}, nil)

	require.NoError(t, err)
	assert.Equal(t, []string{"primary", "backup"}, tried)
	assert.Equal(t, "backup", result.Service.Name)
}

func TestForwardStopsOnClientErrorWithoutTryingNextCandidate(t *testing.T) {
	r := New([]types.UpstreamService{
		svc("primary", 10, "gpt-4"),
		svc("backup", 1, "gpt-4"),
	}, nil)

	var tried []string
	_, err := r.Forward(context.Background(), "gpt-4", func(ctx context.Context, s types.UpstreamService) Attempt {
		tried = append(tried, s.Name)
		return Attempt{Service: s, Class: ClassClientError}
	}, nil)

	require.NoError(t, err)
	assert.Equal(t, []string{"primary"}, tried)
}

func TestForwardDoesNotFailOverOnceStreamingHasStarted(t *testing.T) {
	r := New([]types.UpstreamService{
		svc("primary", 10, "gpt-4"),
		svc("backup", 1, "gpt-4"),
	}, circuitbreaker.NewHealthManager(circuitbreaker.DefaultConfig()))

	started := true
	var tried []string
	_, err := r.Forward(context.Background(), "gpt-4", func(ctx context.Context, s types.UpstreamService) Attempt {
		tried = append(tried, s.Name)
		return Attempt{Service: s, Class: ClassRetriable}
	}, func() bool { return started })

	require.NoError(t, err)
	assert.Equal(t, []string{"primary"}, tried)
}

func TestForwardNoCandidatesReturnsErrNoHealthyCandidate(t *testing.T) {
	r := New(nil, nil)
	_, err := r.Forward(context.Background(), "gpt-4", func(ctx context.Context, s types.UpstreamService) Attempt {
		t.Fatal("attempt should never be called with zero candidates")
		return Attempt{}
	}, nil)
	assert.ErrorIs(t, err, ErrNoHealthyCandidate)
}

func TestSnapshotReportsHealthPerUpstream(t *testing.T) {
	hm := circuitbreaker.NewHealthManager(circuitbreaker.DefaultConfig())
	r := New([]types.UpstreamService{svc("a", 1, "gpt-4")}, hm)

	snap := r.Snapshot()
	require.Len(t, snap, 1)
	assert.Equal(t, "a", snap[0].Name)
	assert.True(t, snap[0].Healthy)
}
