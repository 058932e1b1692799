package metric

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/citadel-ai/langcheckchat/internal/scoring"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type storedValue struct {
	name        string
	value       *float64
	explanation *string
}

type fakeStore struct {
	mu     sync.Mutex
	nextID int64
	rows   map[int64]*storedValue
}

func newFakeStore() *fakeStore {
	return &fakeStore{rows: map[int64]*storedValue{}}
}

func (s *fakeStore) Register(ctx context.Context, logID int64, name string) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.nextID++
	s.rows[s.nextID] = &storedValue{name: name}
	return s.nextID, nil
}

func (s *fakeStore) UpdateValue(ctx context.Context, id int64, value *float64, explanation *string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.rows[id].value = value
	s.rows[id].explanation = explanation
	return nil
}

func (s *fakeStore) byName() map[string]*storedValue {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := map[string]*storedValue{}
	for _, r := range s.rows {
		out[r.name] = r
	}
	return out
}

type countingScorer struct {
	mu    sync.Mutex
	calls int
	score scoring.Score
	err   error
	got   []string
}

func (c *countingScorer) Score(ctx context.Context, inputs []string) (scoring.Score, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.calls++
	c.got = inputs
	return c.score, c.err
}

func explained(v float64, why string) scoring.Score {
	return scoring.Score{Value: v, Explanation: &why}
}

func TestNewDescriptor_NeedsABackend(t *testing.T) {
	_, err := NewDescriptor("response_toxicity", nil, nil, false, false, "openai", newFakeStore())
	assert.ErrorIs(t, err, ErrConfiguration)

	_, err = NewDescriptor("response_toxicity", nil, nil, false, true, "", newFakeStore())
	assert.ErrorIs(t, err, ErrConfiguration)
}

func TestDescriptor_LocalAndRemote(t *testing.T) {
	store := newFakeStore()
	local := &countingScorer{score: explained(0.1, "ignored for local")}
	remote := &countingScorer{score: explained(0.25, "mildly rude")}

	d, err := NewDescriptor("response_toxicity",
		map[string]Scorers{"en": {Local: local, Remote: remote}},
		[]string{"the response"}, true, true, "openai", store)
	require.NoError(t, err)
	assert.Equal(t, []string{"response_toxicity", "response_toxicity_openai"}, d.RecordNames("en"))

	ctx := context.Background()
	require.NoError(t, d.Register(ctx, 1, "en"))
	rows := store.byName()
	require.Len(t, rows, 2)
	assert.Nil(t, rows["response_toxicity"].value)
	assert.Nil(t, rows["response_toxicity_openai"].value)

	require.NoError(t, d.ComputeAndStore(ctx, "en"))
	rows = store.byName()
	assert.InDelta(t, 0.1, *rows["response_toxicity"].value, 1e-9)
	assert.Nil(t, rows["response_toxicity"].explanation)
	assert.InDelta(t, 0.25, *rows["response_toxicity_openai"].value, 1e-9)
	assert.Equal(t, "mildly rude", *rows["response_toxicity_openai"].explanation)
	assert.Equal(t, []string{"the response"}, local.got)

	// no caching: a second call scores again
	require.NoError(t, d.ComputeAndStore(ctx, "en"))
	assert.Equal(t, 2, local.calls)
	assert.Equal(t, 2, remote.calls)
}

func TestDescriptor_UnsupportedLanguageIsNoop(t *testing.T) {
	store := newFakeStore()
	local := &countingScorer{}
	d, err := NewDescriptor("request_readability",
		map[string]Scorers{"en": {Local: local}}, []string{"q"}, true, false, "openai", store)
	require.NoError(t, err)

	require.NoError(t, d.Register(context.Background(), 1, "fr"))
	require.NoError(t, d.ComputeAndStore(context.Background(), "fr"))
	assert.Empty(t, store.byName())
	assert.Zero(t, local.calls)
	assert.Empty(t, d.RecordNames("fr"))
}

func TestDescriptor_FlagWithoutScorerSkipsBackend(t *testing.T) {
	store := newFakeStore()
	d, err := NewDescriptor("ai_disclaimer_similarity",
		map[string]Scorers{"en": {Local: &countingScorer{}}}, []string{"r"}, true, true, "openai", store)
	require.NoError(t, err)

	require.NoError(t, d.Register(context.Background(), 1, "en"))
	assert.Equal(t, []string{"ai_disclaimer_similarity"}, d.RecordNames("en"))
	assert.Len(t, store.byName(), 1)
}

func TestDescriptor_FailureLeavesNullAndContinues(t *testing.T) {
	store := newFakeStore()
	boom := errors.New("model crashed")
	d, err := NewDescriptor("response_fluency",
		map[string]Scorers{"en": {
			Local:  &countingScorer{err: boom},
			Remote: &countingScorer{score: explained(1, "fluent")},
		}},
		[]string{"r"}, true, true, "gemini", store)
	require.NoError(t, err)

	ctx := context.Background()
	require.NoError(t, d.Register(ctx, 1, "en"))
	err = d.ComputeAndStore(ctx, "en")
	require.Error(t, err)
	assert.ErrorIs(t, err, boom)

	var compErr *ComputationError
	require.ErrorAs(t, err, &compErr)
	assert.Equal(t, "response_fluency", compErr.Metric)
	assert.Equal(t, BackendLocal, compErr.Backend)

	rows := store.byName()
	assert.Nil(t, rows["response_fluency"].value)
	require.NotNil(t, rows["response_fluency_gemini"].value)
	assert.InDelta(t, 1, *rows["response_fluency_gemini"].value, 1e-9)
}
