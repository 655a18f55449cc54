package registry

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mmr-tortoise/flotilla/internal/model"
)

func testDef(name string) *model.ContainerDefinition {
	return &model.ContainerDefinition{
		Name:  name,
		Image: "docker.io/library/busybox:1.36",
	}
}

func TestRegisterDuplicateGroup(t *testing.T) {
	r := New()
	require.NoError(t, r.Register(&model.GroupDefinition{Name: "backend"}))

	err := r.Register(&model.GroupDefinition{Name: "backend"})
	var derr *model.DuplicateGroupError
	require.ErrorAs(t, err, &derr)
	assert.Equal(t, "backend", derr.Group)
}

// TestAddContainerGlobalNames verifies that container names are global:
// the same name cannot be registered under two different groups, and the
// first registration stays intact.
func TestAddContainerGlobalNames(t *testing.T) {
	r := New()
	require.NoError(t, r.Register(&model.GroupDefinition{Name: "alpha"}))
	require.NoError(t, r.Register(&model.GroupDefinition{Name: "beta"}))

	require.NoError(t, r.AddContainer("alpha", testDef("db")))

	err := r.AddContainer("beta", testDef("db"))
	var derr *model.DuplicateContainerError
	require.ErrorAs(t, err, &derr)
	assert.Equal(t, "db", derr.Container)
	assert.Equal(t, "alpha", derr.Group, "error names the group holding the first registration")

	// First registration is untouched.
	def, err := r.Definition("db")
	require.NoError(t, err)
	assert.Equal(t, "alpha", def.Group)

	beta, err := r.Group("beta")
	require.NoError(t, err)
	assert.Empty(t, beta.Members, "failed registration must not touch group membership")
}

func TestAddContainerUnknownGroup(t *testing.T) {
	r := New()
	err := r.AddContainer("ghost", testDef("db"))
	var uerr *model.UnknownGroupError
	require.ErrorAs(t, err, &uerr)
	assert.Equal(t, "ghost", uerr.Group)
}

func TestAddContainerUngrouped(t *testing.T) {
	r := New()
	require.NoError(t, r.AddContainer("", testDef("standalone")))

	st, err := r.Status("standalone")
	require.NoError(t, err)
	assert.Equal(t, model.StatusUndefined, st.State)
}

func TestDefinitionsKeepDeclarationOrder(t *testing.T) {
	r := New()
	require.NoError(t, r.Register(&model.GroupDefinition{Name: "g"}))
	for _, name := range []string{"c", "a", "b"} {
		require.NoError(t, r.AddContainer("g", testDef(name)))
	}

	var names []string
	for _, d := range r.Definitions() {
		names = append(names, d.Name)
	}
	assert.Equal(t, []string{"c", "a", "b"}, names)
}

func TestResolvedMembers(t *testing.T) {
	r := New()
	require.NoError(t, r.Register(&model.GroupDefinition{Name: "g", Members: []string{"phantom"}}))

	_, err := r.ResolvedMembers("g")
	var uerr *model.UnknownContainerError
	require.ErrorAs(t, err, &uerr, "a member without a definition must not resolve")
	assert.Equal(t, "phantom", uerr.Container)

	require.NoError(t, r.AddContainer("", testDef("phantom")))
	// Still fails: the container was registered ungrouped, the group's
	// member list refers to it though, so resolution now succeeds.
	members, err := r.ResolvedMembers("g")
	require.NoError(t, err)
	require.Len(t, members, 1)
	assert.Equal(t, "phantom", members[0].Name)
}

// TestTransitionGuard verifies the single-writer rule: a second
// BeginTransition on the same name is rejected until the first completes.
func TestTransitionGuard(t *testing.T) {
	r := New()
	require.NoError(t, r.AddContainer("", testDef("db")))

	require.NoError(t, r.BeginTransition("db"))

	err := r.BeginTransition("db")
	var cerr *model.ConcurrentOperationError
	require.ErrorAs(t, err, &cerr)
	assert.Equal(t, "db", cerr.Container)

	r.EndTransition("db")
	assert.NoError(t, r.BeginTransition("db"), "slot reopens after EndTransition")
}

func TestStatusFailedKeepsCause(t *testing.T) {
	r := New()
	require.NoError(t, r.AddContainer("", testDef("db")))

	cause := errors.New("image not found")
	r.SetStatus("db", model.StatusFailed, cause)

	st, err := r.Status("db")
	require.NoError(t, err)
	assert.Equal(t, model.StatusFailed, st.State)
	assert.Same(t, cause, st.Cause, "the causing error must be retrievable")

	r.SetStatus("db", model.StatusRunning, nil)
	st, _ = r.Status("db")
	assert.Nil(t, st.Cause, "leaving Failed clears the cause")
}

func TestStatusUnknownContainer(t *testing.T) {
	r := New()
	_, err := r.Status("ghost")
	var uerr *model.UnknownContainerError
	assert.ErrorAs(t, err, &uerr)
}

func TestTopology(t *testing.T) {
	r := New()
	require.NoError(t, r.Register(&model.GroupDefinition{Name: "g"}))
	require.NoError(t, r.AddContainer("g", testDef("db")))
	require.NoError(t, r.AddContainer("g", testDef("app")))
	require.NoError(t, r.AddContainer("", testDef("loner")))

	r.SetTopology([]string{"db", "app", "loner"})

	all, err := r.Topology("")
	require.NoError(t, err)
	assert.Equal(t, []string{"db", "app", "loner"}, all)

	scoped, err := r.Topology("g")
	require.NoError(t, err)
	assert.Equal(t, []string{"db", "app"}, scoped, "group topology excludes non-members")

	_, err = r.Topology("ghost")
	assert.Error(t, err)
}

func TestGroupStatus(t *testing.T) {
	r := New()
	require.NoError(t, r.Register(&model.GroupDefinition{Name: "g"}))
	require.NoError(t, r.AddContainer("g", testDef("db")))
	require.NoError(t, r.AddContainer("g", testDef("app")))

	r.SetStatus("db", model.StatusRunning, nil)

	statuses, err := r.GroupStatus("g")
	require.NoError(t, err)
	require.Len(t, statuses, 2)
	assert.Equal(t, model.StatusRunning, statuses[0].State)
	assert.Equal(t, model.StatusUndefined, statuses[1].State)
}
