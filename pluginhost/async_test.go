package pluginhost

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	lua "github.com/yuin/gopher-lua"
)

func TestAsyncDispatcherFiresHookInBackground(t *testing.T) {
	r := newTestRegistry(&Instance{
		Metadata: Metadata{ID: "listener", Hooks: []string{HookAfterSave}},
		Source:   `function after_save(x) return x end`,
		State:    StateActive,
	})
	d := NewDispatcher(r, DefaultSandbox(), API{})

	async := NewAsyncDispatcher(d, nil, 1)
	async.Start()
	defer async.Stop()

	require.NoError(t, async.Fire(HookAfterSave, lua.LString("saved")))

	time.Sleep(200 * time.Millisecond)
	inst, _ := r.Get("listener")
	assert.Equal(t, StateActive, inst.State)
}

func TestMemQueueEnqueueDequeueRoundTrip(t *testing.T) {
	q := NewMemQueue(4)
	job := HookJob{JobID: "1", HookName: HookAfterSave}
	require.NoError(t, q.Enqueue(job))

	got, err := q.Dequeue("hooks", time.Second)
	require.NoError(t, err)
	assert.Equal(t, job, got)
}

func TestMemQueueDequeueTimesOutWithNilJob(t *testing.T) {
	q := NewMemQueue(1)
	got, err := q.Dequeue("hooks", 20*time.Millisecond)
	require.NoError(t, err)
	assert.Nil(t, got)
}

func TestMemQueueEnqueueFailsWhenFull(t *testing.T) {
	q := NewMemQueue(1)
	require.NoError(t, q.Enqueue(HookJob{JobID: "a"}))
	err := q.Enqueue(HookJob{JobID: "b"})
	assert.Error(t, err)
}
