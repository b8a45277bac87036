package sessionmesh

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sessionmesh/sessionmesh/agents"
	"github.com/sessionmesh/sessionmesh/core"
)

func TestMesh_EndToEnd(t *testing.T) {
	mesh, err := New(func(o *Options) {
		o.Agents = []core.Agent{agents.NewReverseAgent(), agents.NewUppercaseAgent()}
	})
	require.NoError(t, err)

	_, err = mesh.Session().Set("text", "hello")
	require.NoError(t, err)

	result := mesh.Run([]core.CapabilityCall{
		{Capability: "reverse", Params: map[string]any{"key": "text"}},
		{Capability: "uppercase", Params: map[string]any{"key": "text"}},
	})
	require.True(t, result.Success)

	v, _ := mesh.Session().Get("text")
	assert.Equal(t, "OLLEH", v)
}

func TestMesh_SaveAndOpen(t *testing.T) {
	mesh, err := New(func(o *Options) { o.SessionID = "mesh-roundtrip" })
	require.NoError(t, err)
	_, err = mesh.Session().Set("n", 1)
	require.NoError(t, err)

	path := filepath.Join(t.TempDir(), "mesh.db")
	require.NoError(t, mesh.Save(path))

	reopened, err := Open(path, func(o *Options) {
		o.Agents = []core.Agent{agents.NewReverseAgent()}
	})
	require.NoError(t, err)
	assert.Equal(t, "mesh-roundtrip", reopened.Session().ID())
	assert.True(t, reopened.Dispatcher().HasCapability("reverse"))
}

func TestMesh_RegisterConflictSurfaces(t *testing.T) {
	mesh, err := New()
	require.NoError(t, err)
	require.NoError(t, mesh.Register(agents.NewReverseAgent()))

	err = mesh.Register(agents.NewReverseAgent())
	require.Error(t, err)
	assert.Equal(t, core.CodeDuplicateCapability, core.CodeOf(err))
}
