package agent

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/valkryhx/patent-agents-sub002/testutil/mocks"
	"github.com/valkryhx/patent-agents-sub002/types"
)

func TestRegistry_LookupByMode(t *testing.T) {
	p := mocks.NewMockProvider().WithResponse(`{"novelty_score": 3}`)
	reg := NewDefaultRegistry(clientWith(p), RegistryOptions{})

	assert.Len(t, reg.Roles(), len(AllRoles))

	realExec, err := reg.Lookup(RolePlanner, false)
	require.NoError(t, err)
	assert.IsType(t, &Planner{}, realExec)

	testExec, err := reg.Lookup(RolePlanner, true)
	require.NoError(t, err)
	assert.IsType(t, &stubExecutor{}, testExec)

	res, err := realExec.Execute(context.Background(), newTask("planning"))
	require.NoError(t, err)
	assert.Equal(t, 3.0, res["strategy"].(map[string]any)["novelty_score"])
	assert.Equal(t, 1, p.CallCount())
}

func TestRegistry_UnknownRole(t *testing.T) {
	reg := NewDefaultRegistry(nil, RegistryOptions{})

	_, err := reg.Lookup(Role("translator"), true)
	require.Error(t, err)
	assert.True(t, types.IsErrorCode(err, types.ErrInternal))
}

func TestRegistry_NoClientMeansNoRealMode(t *testing.T) {
	reg := NewDefaultRegistry(nil, RegistryOptions{})

	_, err := reg.Lookup(RoleWriter, false)
	require.Error(t, err)
	assert.True(t, types.IsErrorCode(err, types.ErrUnavailable))
	assert.False(t, reg.HasReal(RoleWriter))

	// 压缩不需要 LLM
	c, err := reg.Lookup(RoleCompressor, false)
	require.NoError(t, err)
	assert.Equal(t, RoleCompressor, c.Role())
	assert.True(t, reg.HasReal(RoleCompressor))
}

func TestParseRole(t *testing.T) {
	r, err := ParseRole(" Planner ")
	require.NoError(t, err)
	assert.Equal(t, RolePlanner, r)

	_, err = ParseRole("lawyer")
	assert.True(t, types.IsErrorCode(err, types.ErrNotFound))
}

func TestCapabilities(t *testing.T) {
	for _, role := range AllRoles {
		assert.NotEmpty(t, CapabilitiesOf(role), role)
	}
	caps := CapabilitiesOf(RolePlanner)
	caps[0] = "mutated"
	assert.NotEqual(t, "mutated", CapabilitiesOf(RolePlanner)[0])
}

func TestResult_CloneIsDeep(t *testing.T) {
	orig := Result{"strategy": map[string]any{"areas": []string{"a"}}}
	cp := orig.Clone()
	cp["strategy"].(map[string]any)["areas"].([]string)[0] = "b"
	assert.Equal(t, "a", orig["strategy"].(map[string]any)["areas"].([]string)[0])
}
