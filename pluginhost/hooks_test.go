package pluginhost

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	lua "github.com/yuin/gopher-lua"
)

func newTestRegistry(instances ...*Instance) *Registry {
	r := NewRegistry(nil, nil)
	m := make(map[string]*Instance, len(instances))
	for _, inst := range instances {
		m[inst.Metadata.ID] = inst
	}
	r.snapshot.Store(&m)
	return r
}

func TestDispatcherRunsHandlersInPriorityOrder(t *testing.T) {
	r := newTestRegistry(
		&Instance{
			Metadata: Metadata{ID: "second", Priority: 20, Hooks: []string{HookBeforeRender}},
			Source:   `function before_render(s) return s .. "-second" end`,
			State:    StateActive,
		},
		&Instance{
			Metadata: Metadata{ID: "first", Priority: 10, Hooks: []string{HookBeforeRender}},
			Source:   `function before_render(s) return s .. "-first" end`,
			State:    StateActive,
		},
	)
	d := NewDispatcher(r, DefaultSandbox(), API{})

	out, err := d.Dispatch(context.Background(), HookBeforeRender, lua.LString("start"))
	require.NoError(t, err)
	assert.Equal(t, lua.LString("start-first-second"), out)
}

func TestDispatcherSkipsInactivePlugins(t *testing.T) {
	r := newTestRegistry(&Instance{
		Metadata: Metadata{ID: "dormant", Hooks: []string{HookBeforeRender}},
		Source:   `function before_render(s) return "changed" end`,
		State:    StateInactive,
	})
	d := NewDispatcher(r, DefaultSandbox(), API{})

	out, err := d.Dispatch(context.Background(), HookBeforeRender, lua.LString("unchanged"))
	require.NoError(t, err)
	assert.Equal(t, lua.LString("unchanged"), out)
}

func TestDispatcherStopsOnFirstHandlerError(t *testing.T) {
	r := newTestRegistry(&Instance{
		Metadata: Metadata{ID: "broken", Hooks: []string{HookValidateData}},
		Source:   `function validate_data(s) error("boom") end`,
		State:    StateActive,
	})
	d := NewDispatcher(r, DefaultSandbox(), API{})

	_, err := d.Dispatch(context.Background(), HookValidateData, lua.LString("x"))
	assert.Error(t, err)
}
