package capability_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/slok/comfylaunch/internal/capability"
)

type versioner interface{ Name() string }

type gitVersioner struct{}

func (gitVersioner) Name() string { return "git" }

func TestRegistry(t *testing.T) {
	r := capability.NewRegistry()

	require.NoError(t, r.Register(capability.Versions, gitVersioner{}))
	require.NoError(t, r.Register(capability.Diagnosis, "api-key"))

	assert.Error(t, r.Register(capability.Versions, gitVersioner{}), "duplicated names should fail")
	assert.Error(t, r.Register(capability.Nodes, nil), "nil handles should fail")
	assert.Error(t, r.Register("", 1), "empty names should fail")

	assert.True(t, r.Lookup(capability.Versions).Present())
	assert.False(t, r.Lookup(capability.Nodes).Present())
	assert.Nil(t, r.Lookup(capability.Nodes).Handle())
	assert.True(t, r.Has(capability.Diagnosis))
	assert.Equal(t, []string{capability.Diagnosis, capability.Versions}, r.Names())
}

func TestGet(t *testing.T) {
	r := capability.NewRegistry()
	require.NoError(t, r.Register(capability.Versions, gitVersioner{}))

	v, ok := capability.Get[versioner](r, capability.Versions)
	require.True(t, ok)
	assert.Equal(t, "git", v.Name())

	_, ok = capability.Get[string](r, capability.Versions)
	assert.False(t, ok, "a handle of another type should not be returned")

	_, ok = capability.Get[versioner](r, capability.Nodes)
	assert.False(t, ok, "absent capabilities should not be returned")

	var nilRegistry *capability.Registry
	_, ok = capability.Get[versioner](nilRegistry, capability.Versions)
	assert.False(t, ok)
}
