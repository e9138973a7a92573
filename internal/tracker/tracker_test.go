package tracker

import (
	"fmt"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/raphaelgruber/clipforge/internal/pipeline"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMarkPendingOnePerStage(t *testing.T) {
	tr := New()
	regen := Key{IdeaID: "i1", Stage: pipeline.StageScript, Regenerate: true}
	plain := Key{IdeaID: "i1", Stage: pipeline.StageScript}

	require.True(t, tr.MarkPending(regen, "req-1"))
	assert.False(t, tr.MarkPending(regen, "req-2"), "duplicate key")
	assert.False(t, tr.MarkPending(plain, "req-3"), "same slot, other flag")

	e, ok := tr.Get("i1", pipeline.StageScript)
	require.True(t, ok)
	assert.Equal(t, "req-1", e.RequestID)

	assert.True(t, tr.IsPending(regen))
	assert.False(t, tr.IsPending(plain))
	assert.True(t, tr.IsStagePending("i1", pipeline.StageScript))
	assert.Equal(t, 1, tr.Len())
}

func TestClearLeavesOtherKeys(t *testing.T) {
	tr := New()
	script := Key{IdeaID: "i1", Stage: pipeline.StageScript, Regenerate: true}
	caption := Key{IdeaID: "i1", Stage: pipeline.StageCaption}
	other := Key{IdeaID: "i2", Stage: pipeline.StageScript, Regenerate: true}

	require.True(t, tr.MarkPending(script, "a"))
	require.True(t, tr.MarkPending(caption, "b"))
	require.True(t, tr.MarkPending(other, "c"))

	// Mismatched flag does not clear.
	tr.Clear(Key{IdeaID: "i1", Stage: pipeline.StageScript})
	assert.True(t, tr.IsPending(script))

	tr.Clear(script)
	assert.False(t, tr.IsStagePending("i1", pipeline.StageScript))
	assert.True(t, tr.IsPending(caption))
	assert.True(t, tr.IsPending(other))
	assert.Len(t, tr.Pending(), 2)

	// Clearing an absent key is a no-op.
	tr.Clear(script)
	assert.Equal(t, 2, tr.Len())
}

func TestConcurrentMarkPending(t *testing.T) {
	tr := New()
	const workers = 32

	var won atomic.Int32
	var wg sync.WaitGroup
	for i := range workers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			key := Key{IdeaID: "i1", Stage: pipeline.StageImage, Regenerate: i%2 == 0}
			if tr.MarkPending(key, fmt.Sprintf("req-%d", i)) {
				won.Add(1)
			}
			// Unrelated slots are independent.
			tr.MarkPending(Key{IdeaID: fmt.Sprintf("idea-%d", i), Stage: pipeline.StageImage}, "x")
		}()
	}
	wg.Wait()

	assert.Equal(t, int32(1), won.Load())
	assert.Equal(t, workers+1, tr.Len())
}

func TestPendingOrder(t *testing.T) {
	tr := New()
	tr.MarkPending(Key{IdeaID: "b", Stage: pipeline.StageVideo}, "1")
	tr.MarkPending(Key{IdeaID: "a", Stage: pipeline.StageVideo}, "2")
	tr.MarkPending(Key{IdeaID: "a", Stage: pipeline.StageCaption}, "3")

	got := tr.Pending()
	require.Len(t, got, 3)
	for i := 1; i < len(got); i++ {
		assert.False(t, got[i].Since.Before(got[i-1].Since))
	}
}
