package graph

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mmr-tortoise/flotilla/internal/model"
)

// def builds a minimal container definition with an optional net dependency.
func def(name, net string) *model.ContainerDefinition {
	return &model.ContainerDefinition{
		Name:  name,
		Image: "docker.io/library/busybox:1.36",
		Net:   net,
	}
}

// positions maps each name in order to its index, for precedence assertions.
func positions(order []string) map[string]int {
	pos := make(map[string]int, len(order))
	for i, n := range order {
		pos[n] = i
	}
	return pos
}

// TestBuild_DependencyPrecedesDependent verifies the core ordering
// property: for every edge, the dependency appears before the dependent,
// and the stop order is the exact reverse of the start order.
func TestBuild_DependencyPrecedesDependent(t *testing.T) {
	defs := []*model.ContainerDefinition{
		def("app", "db"),
		def("db", ""),
		def("worker", "db"),
		def("metrics", "app"),
	}

	g, err := Build(defs, nil)
	require.NoError(t, err)

	start := g.StartOrder()
	require.Len(t, start, 4)
	pos := positions(start)
	assert.Less(t, pos["db"], pos["app"], "db must precede app")
	assert.Less(t, pos["db"], pos["worker"], "db must precede worker")
	assert.Less(t, pos["app"], pos["metrics"], "app must precede metrics")

	stop := g.StopOrder()
	for i := range start {
		assert.Equal(t, start[i], stop[len(stop)-1-i], "stop order must be the exact reverse")
	}
}

// TestBuild_DeclarationOrderTieBreak verifies that containers with no
// ordering constraint between them come out in declaration order, making
// the result deterministic.
func TestBuild_DeclarationOrderTieBreak(t *testing.T) {
	defs := []*model.ContainerDefinition{
		def("c", ""),
		def("a", ""),
		def("b", ""),
	}

	g, err := Build(defs, nil)
	require.NoError(t, err)
	assert.Equal(t, []string{"c", "a", "b"}, g.StartOrder(),
		"unconstrained containers keep declaration order")
}

// TestBuild_NetChain covers the spec example: A(net=B), B, C unrelated.
// Any computed order is acceptable as long as B precedes A.
func TestBuild_NetChain(t *testing.T) {
	defs := []*model.ContainerDefinition{
		def("a", "b"),
		def("b", ""),
		def("c", ""),
	}

	g, err := Build(defs, nil)
	require.NoError(t, err)

	pos := positions(g.StartOrder())
	assert.Less(t, pos["b"], pos["a"], "b must precede a")
	// With declaration-order tie-break the full order is fixed.
	assert.Equal(t, []string{"b", "a", "c"}, g.StartOrder())
}

// TestBuild_Cycle verifies that a cyclic dependency set fails with a
// CycleError naming every container in the cycle exactly once.
func TestBuild_Cycle(t *testing.T) {
	defs := []*model.ContainerDefinition{
		def("a", "b"),
		def("b", "c"),
		def("c", "a"),
		def("outsider", ""),
	}

	_, err := Build(defs, nil)
	require.Error(t, err)

	var cerr *model.CycleError
	require.ErrorAs(t, err, &cerr)
	assert.Len(t, cerr.Cycle, 3, "cycle should name each member exactly once")
	assert.ElementsMatch(t, []string{"a", "b", "c"}, cerr.Cycle)
	assert.Equal(t, "a", cerr.Cycle[0], "cycle starts at the earliest-declared member")
	assert.NotContains(t, cerr.Cycle, "outsider")
}

func TestBuild_SelfCycleViaTwoNodes(t *testing.T) {
	defs := []*model.ContainerDefinition{
		def("x", "y"),
		def("y", "x"),
	}

	_, err := Build(defs, nil)
	var cerr *model.CycleError
	require.ErrorAs(t, err, &cerr)
	assert.ElementsMatch(t, []string{"x", "y"}, cerr.Cycle)
}

// TestBuild_UnresolvedTarget verifies that a net reference outside the
// registered set fails instead of silently dropping the edge.
func TestBuild_UnresolvedTarget(t *testing.T) {
	defs := []*model.ContainerDefinition{
		def("app", "ghost"),
	}

	_, err := Build(defs, nil)
	require.Error(t, err)

	var uerr *model.UnresolvedDependencyError
	require.ErrorAs(t, err, &uerr)
	assert.Equal(t, "app", uerr.Container)
	assert.Equal(t, "ghost", uerr.Target)
}

// TestBuild_MasterHint verifies that a group master is preferred among
// equally ready containers but never overrides a derived edge.
func TestBuild_MasterHint(t *testing.T) {
	defs := []*model.ContainerDefinition{
		def("cache", ""),
		def("db", ""),
		def("app", "db"),
	}
	groups := map[string]*model.GroupDefinition{
		"backend": {Name: "backend", Master: "db", Members: []string{"cache", "db", "app"}},
	}

	g, err := Build(defs, groups)
	require.NoError(t, err)
	assert.Equal(t, []string{"db", "cache", "app"}, g.StartOrder(),
		"master db is scheduled before the earlier-declared cache")

	// A master with a dependency still waits for it.
	groups["backend"].Master = "app"
	g, err = Build(defs, groups)
	require.NoError(t, err)
	pos := positions(g.StartOrder())
	assert.Less(t, pos["db"], pos["app"], "master hint must not override an edge")
}

func TestTransitiveSets(t *testing.T) {
	defs := []*model.ContainerDefinition{
		def("db", ""),
		def("app", "db"),
		def("sidecar", "app"),
		def("other", ""),
	}

	g, err := Build(defs, nil)
	require.NoError(t, err)

	assert.ElementsMatch(t, []string{"app", "sidecar"}, g.TransitiveDependents("db"))
	assert.ElementsMatch(t, []string{"app", "db"}, g.TransitiveDependencies("sidecar"))
	assert.Empty(t, g.TransitiveDependents("other"))
	assert.Empty(t, g.TransitiveDependencies("db"))
}

func TestFilter(t *testing.T) {
	defs := []*model.ContainerDefinition{
		def("db", ""),
		def("app", "db"),
		def("other", ""),
	}

	g, err := Build(defs, nil)
	require.NoError(t, err)

	assert.Equal(t, []string{"db", "app"}, g.Filter([]string{"app", "db"}),
		"filter preserves graph order, not request order")
	assert.Empty(t, g.Filter([]string{"ghost"}))
	assert.True(t, g.Contains("app"))
	assert.False(t, g.Contains("ghost"))
}

func TestBuild_Empty(t *testing.T) {
	g, err := Build(nil, nil)
	require.NoError(t, err)
	assert.Empty(t, g.StartOrder())
	assert.Empty(t, g.StopOrder())
}
