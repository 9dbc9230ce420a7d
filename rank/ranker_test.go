package rank

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func c(ts time.Duration, score float64) Candidate {
	return Candidate{Timestamp: ts, Score: score}
}

func TestRanker_MinScoreNeverInserted(t *testing.T) {
	r := New(3, 0.6, 0)

	assert.False(t, r.Offer(c(time.Second, 0.5)))
	assert.False(t, r.Offer(c(time.Second, 0.6)), "threshold itself does not qualify")
	assert.True(t, r.Offer(c(time.Second, 0.61)))
	assert.Equal(t, 1, r.Len())
}

func TestRanker_BoundedTopK(t *testing.T) {
	r := New(2, 0, 0)

	require.True(t, r.Offer(c(1*time.Second, 0.7)))
	require.True(t, r.Offer(c(2*time.Second, 0.8)))
	assert.Equal(t, 2, r.Len())

	// Weaker than the current minimum: rejected, occupancy unchanged.
	assert.False(t, r.Offer(c(3*time.Second, 0.65)))
	assert.Equal(t, 2, r.Len())

	// Stronger: evicts the 0.7 candidate.
	assert.True(t, r.Offer(c(4*time.Second, 0.9)))

	got := r.Finalize()
	require.Len(t, got, 2)
	assert.Equal(t, 0.9, got[0].Score)
	assert.Equal(t, 0.8, got[1].Score)
}

func TestRanker_TieBreakPrefersEarlierTimestamp(t *testing.T) {
	r := New(1, 0, 0)

	require.True(t, r.Offer(c(5*time.Second, 0.8)))

	// Same score, later timestamp: the incumbent stays.
	assert.False(t, r.Offer(c(9*time.Second, 0.8)))

	// Same score, earlier timestamp: replaces the incumbent.
	assert.True(t, r.Offer(c(2*time.Second, 0.8)))

	got := r.Finalize()
	require.Len(t, got, 1)
	assert.Equal(t, 2*time.Second, got[0].Timestamp)
}

func TestRanker_FinalizeOrdering(t *testing.T) {
	r := New(5, 0, 0)
	r.Offer(c(8*time.Second, 0.7))
	r.Offer(c(2*time.Second, 0.9))
	r.Offer(c(6*time.Second, 0.8))
	r.Offer(c(4*time.Second, 0.8))

	got := r.Finalize()
	require.Len(t, got, 4)
	assert.Equal(t, 0.9, got[0].Score)
	// Equal scores ordered by ascending timestamp.
	assert.Equal(t, 4*time.Second, got[1].Timestamp)
	assert.Equal(t, 6*time.Second, got[2].Timestamp)
	assert.Equal(t, 0.7, got[3].Score)

	assert.Equal(t, 0, r.Len(), "finalize drains the ranker")
}

func TestRanker_DiversityWindow(t *testing.T) {
	r := New(5, 0, time.Second)
	r.Offer(c(5*time.Second, 0.95))
	r.Offer(c(5300*time.Millisecond, 0.90)) // within 1s of the winner
	r.Offer(c(8*time.Second, 0.85))

	got := r.Finalize()
	require.Len(t, got, 2)
	assert.Equal(t, 5*time.Second, got[0].Timestamp)
	assert.Equal(t, 8*time.Second, got[1].Timestamp)
}

func TestRanker_Deterministic(t *testing.T) {
	offer := func(r *Ranker, order []Candidate) []Candidate {
		for _, cand := range order {
			r.Offer(cand)
		}
		return r.Finalize()
	}

	cands := []Candidate{
		c(1*time.Second, 0.7), c(3*time.Second, 0.9), c(5*time.Second, 0.8),
	}
	reversed := []Candidate{cands[2], cands[1], cands[0]}

	a := offer(New(2, 0, 0), cands)
	b := offer(New(2, 0, 0), reversed)
	assert.Equal(t, a, b)
}
