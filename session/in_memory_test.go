package session

import (
	"context"
	"sync"
	"testing"

	"github.com/hupe1980/predator/core"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// Interface compliance (compile-time assertion)
var _ core.EventLog = (*InMemoryStore)(nil)

func TestInMemoryStore_AppendAssignsSeq(t *testing.T) {
	ctx := context.Background()
	s := NewInMemoryStore()

	_, err := s.Append(ctx, "missing", core.NewUserMessageEvent("u", "x"))
	assert.ErrorIs(t, err, core.ErrTaskNotFound)

	task, err := s.CreateTask(ctx, core.Task{ID: "t1", SessionID: "s1", UserID: "u1"})
	require.NoError(t, err)
	assert.False(t, task.Created.IsZero())

	again, err := s.CreateTask(ctx, core.Task{ID: "t1", SessionID: "other"})
	require.NoError(t, err)
	assert.Equal(t, "s1", again.SessionID, "create is idempotent")

	for i := 0; i < 3; i++ {
		ev, err := s.Append(ctx, "t1", core.NewUserMessageEvent("u", "x"))
		require.NoError(t, err)
		assert.Equal(t, int64(i+1), ev.Seq)
		assert.Equal(t, "t1", ev.TaskID)
	}

	events, err := s.Events(ctx, "t1")
	require.NoError(t, err)
	require.Len(t, events, 3)

	events[0].Text = "mutated"
	fresh, err := s.Events(ctx, "t1")
	require.NoError(t, err)
	assert.Equal(t, "x", fresh[0].Text)
}

func TestInMemoryStore_ReplacePrefix(t *testing.T) {
	ctx := context.Background()
	s := NewInMemoryStore()
	_, err := s.CreateTask(ctx, core.Task{ID: "t1"})
	require.NoError(t, err)

	for i := 0; i < 4; i++ {
		_, err := s.Append(ctx, "t1", core.NewUserMessageEvent("u", "x"))
		require.NoError(t, err)
	}

	require.NoError(t, s.ReplacePrefix(ctx, "t1", 2, core.NewSummaryEvent("c", core.Summary{Text: "recap"})))

	events, err := s.Events(ctx, "t1")
	require.NoError(t, err)
	require.Len(t, events, 3)
	assert.Equal(t, core.KindSummary, events[0].Kind)
	assert.Equal(t, int64(2), events[0].Seq)
	assert.Equal(t, int64(3), events[1].Seq)

	next, err := s.Append(ctx, "t1", core.NewUserMessageEvent("u", "y"))
	require.NoError(t, err)
	assert.Equal(t, int64(5), next.Seq, "seq keeps increasing after compaction")

	assert.Error(t, s.ReplacePrefix(ctx, "t1", 1, core.NewSummaryEvent("c", core.Summary{})))
}

func TestInMemoryStore_ConcurrentTasks(t *testing.T) {
	ctx := context.Background()
	s := NewInMemoryStore()

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func(id string) {
			defer wg.Done()
			_, err := s.CreateTask(ctx, core.Task{ID: id})
			assert.NoError(t, err)
			for j := 0; j < 10; j++ {
				_, err := s.Append(ctx, id, core.NewUserMessageEvent("u", "x"))
				assert.NoError(t, err)
			}
		}(core.NewID())
	}
	wg.Wait()
}
