package models

import (
	"sync"
	"testing"

	"github.com/fyrsmithlabs/treedoc/internal/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testRegistry(t *testing.T) *Registry {
	t.Helper()
	reg, err := NewRegistry([]config.ModelConfig{
		{ID: "small", MaxTokens: 100, InputCostPer1K: 1, OutputCostPer1K: 2},
		{ID: "medium", MaxTokens: 1000},
		{ID: "large", MaxTokens: 10000},
	})
	require.NoError(t, err)
	return reg
}

func TestRegistry_Select(t *testing.T) {
	reg := testRegistry(t)

	tests := []struct {
		need   int
		want   string
		wantOK bool
	}{
		{need: 0, want: "small", wantOK: true},
		{need: 99, want: "small", wantOK: true},
		{need: 100, want: "medium", wantOK: true}, // ceiling must strictly exceed need
		{need: 999, want: "medium", wantOK: true},
		{need: 1000, want: "large", wantOK: true},
		{need: 9999, want: "large", wantOK: true},
		{need: 10000, wantOK: false},
		{need: 50000, wantOK: false},
	}

	for _, tt := range tests {
		rec, ok := reg.Select(tt.need)
		assert.Equal(t, tt.wantOK, ok, "need=%d", tt.need)
		if tt.wantOK {
			assert.Equal(t, tt.want, rec.ID, "need=%d", tt.need)
		} else {
			assert.Nil(t, rec)
		}
	}
}

// Selection picks the smallest fitting ceiling for any need when the
// registry is ordered by ceiling.
func TestRegistry_SelectSmallestFitting(t *testing.T) {
	reg := testRegistry(t)
	for need := 0; need < 10500; need += 37 {
		rec, ok := reg.Select(need)

		var want *Record
		for _, r := range reg.Records() {
			if r.MaxTokens > need && (want == nil || r.MaxTokens < want.MaxTokens) {
				want = r
			}
		}
		if want == nil {
			assert.False(t, ok, "need=%d", need)
			continue
		}
		require.True(t, ok, "need=%d", need)
		assert.Equal(t, want.ID, rec.ID, "need=%d", need)
	}
}

func TestRegistry_PriorityOrderNotCeilingOrder(t *testing.T) {
	// A preferred model listed first wins even if a smaller one follows.
	reg, err := NewRegistry([]config.ModelConfig{
		{ID: "preferred", MaxTokens: 8000},
		{ID: "tiny", MaxTokens: 500},
	})
	require.NoError(t, err)

	rec, ok := reg.Select(10)
	require.True(t, ok)
	assert.Equal(t, "preferred", rec.ID)
	assert.Equal(t, "preferred", reg.Largest().ID)
}

func TestNewRegistry_Errors(t *testing.T) {
	_, err := NewRegistry(nil)
	assert.ErrorIs(t, err, ErrNoModels)

	_, err = NewRegistry([]config.ModelConfig{{ID: "a", MaxTokens: 0}})
	assert.Error(t, err)

	_, err = NewRegistry([]config.ModelConfig{{ID: "a", MaxTokens: 1}, {ID: "a", MaxTokens: 2}})
	assert.Error(t, err)
}

func TestRecord_Counters(t *testing.T) {
	reg := testRegistry(t)
	small, _ := reg.Get("small")

	small.RecordSuccess(120, 1000)
	small.RecordFailure()
	small.RecordFolder(true, 50, 1000)
	small.RecordFolder(false, 999, 999)

	u := small.Usage()
	assert.Equal(t, Usage{
		InputTokens:     170,
		OutputTokens:    2000,
		Succeeded:       1,
		Failed:          1,
		Total:           1,
		FolderSucceeded: 1,
		FolderFailed:    1,
	}, u)
	assert.InDelta(t, 0.17+4.0, small.Cost(u), 1e-9)
}

func TestRecord_ConcurrentUpdates(t *testing.T) {
	reg := testRegistry(t)
	rec := reg.Largest()

	var wg sync.WaitGroup
	for i := 0; i < 200; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			if i%4 == 0 {
				rec.RecordFailure()
				return
			}
			rec.RecordSuccess(10, 1000)
		}(i)
	}
	wg.Wait()

	u := rec.Usage()
	assert.Equal(t, 150, u.Succeeded)
	assert.Equal(t, 50, u.Failed)
	assert.Equal(t, 150, u.Total)
	assert.Equal(t, 1500, u.InputTokens)
	assert.Equal(t, 150000, u.OutputTokens)
}

func TestRegistry_Snapshot(t *testing.T) {
	reg := testRegistry(t)
	small, _ := reg.Get("small")
	large, _ := reg.Get("large")
	small.RecordSuccess(1000, 1000)
	large.RecordFailure()

	lines, total := reg.Snapshot()
	require.Len(t, lines, 3)
	assert.Equal(t, []string{"small", "medium", "large"}, []string{lines[0].ID, lines[1].ID, lines[2].ID})
	assert.Equal(t, 1, total.Succeeded)
	assert.Equal(t, 1, total.Failed)
	assert.Equal(t, 1000, total.InputTokens)
	assert.InDelta(t, 3.0, total.Cost, 1e-9)
}
