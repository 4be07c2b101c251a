package topology

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewAssignsMininetNames(t *testing.T) {
	topo, err := New(DefaultSpec())
	require.NoError(t, err)

	l, err := topo.Between("h3", "s2")
	require.NoError(t, err)
	assert.Equal(t, "h3-eth0", l.AIntf)
	assert.Equal(t, "s2-eth1", l.BIntf)

	trunk, err := topo.Between("s2", "s1")
	require.NoError(t, err)
	assert.Equal(t, "s2-eth2", trunk.AIntf)
	assert.Equal(t, "s1-eth3", trunk.BIntf)

	assert.Equal(t, "s1-eth4", topo.NextInterface("s1"))
	assert.Equal(t, "h3-eth1", topo.NextInterface("h3"))
	assert.Equal(t, []string{"s1-eth1", "s1-eth2", "s1-eth3"}, topo.Interfaces("s1"))
}

func TestAddAndRemoveLink(t *testing.T) {
	topo, err := New(DefaultSpec())
	require.NoError(t, err)

	l, err := topo.AddLink("h3", "s1", "", "")
	require.NoError(t, err)
	assert.Equal(t, Link{A: "h3", B: "s1", AIntf: "h3-eth1", BIntf: "s1-eth4"}, l)

	_, err = topo.AddLink("h3", "s1", "h3-eth1", "")
	assert.Error(t, err, "reusing an interface must fail")

	removed, err := topo.RemoveLink("s2-eth1")
	require.NoError(t, err)
	assert.Equal(t, "h3-eth0", removed.AIntf)
	assert.Len(t, topo.Links(), 4)

	_, err = topo.RemoveLink("s2-eth1")
	assert.ErrorIs(t, err, ErrNoLink)
}

func TestExplicitInterfaceAdvancesCounter(t *testing.T) {
	topo, err := New(DefaultSpec())
	require.NoError(t, err)

	_, err = topo.AddLink("h1", "s2", "h1-eth5", "s2-eth9")
	require.NoError(t, err)
	assert.Equal(t, "h1-eth6", topo.NextInterface("h1"))
	assert.Equal(t, "s2-eth10", topo.NextInterface("s2"))
}

func TestNewRejectsUnknownNodes(t *testing.T) {
	spec := DefaultSpec()
	spec.Links = append(spec.Links, Link{A: "h9", B: "s1"})

	_, err := New(spec)
	assert.Error(t, err)
}
