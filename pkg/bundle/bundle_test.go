package bundle

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/paulmach/osm"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"routex/pkg/ch"
	"routex/pkg/graph"
	osmparser "routex/pkg/osm"
)

func buildTestBundle(t *testing.T) (*graph.Graph, *ch.CHGraph) {
	t.Helper()
	result := &osmparser.ParseResult{
		Edges: []osmparser.RawEdge{
			{FromNodeID: 1, ToNodeID: 2, WeightMS: 1000, MainRoad: true},
			{FromNodeID: 2, ToNodeID: 1, WeightMS: 1000, MainRoad: true},
			{FromNodeID: 2, ToNodeID: 3, WeightMS: 2000, MainRoad: true},
			{FromNodeID: 3, ToNodeID: 2, WeightMS: 2000, MainRoad: true},
		},
		NodeLat: map[osm.NodeID]float64{1: 1.0, 2: 1.01, 3: 1.02},
		NodeLon: map[osm.NodeID]float64{1: 103.0, 2: 103.0, 3: 103.0},
	}
	g := graph.Build(result)
	chg := ch.Contract(g, nil)
	return g, chg
}

func TestSaveLoadRoundTrip(t *testing.T) {
	g, chg := buildTestBundle(t)
	path := filepath.Join(t.TempDir(), "test.auto.routing")

	require.NoError(t, Save(path, g, chg))

	gotG, gotCHG, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, g.NumNodes, gotG.NumNodes)
	assert.Equal(t, g.NumEdges, gotG.NumEdges)
	assert.Equal(t, g.FirstOut, gotG.FirstOut)
	assert.Equal(t, g.Head, gotG.Head)
	assert.Equal(t, g.Weight, gotG.Weight)
	assert.Equal(t, g.NodeLat, gotG.NodeLat)
	assert.Equal(t, g.NodeLon, gotG.NodeLon)
	assert.Equal(t, g.MainRoad, gotG.MainRoad)

	assert.Equal(t, chg.NumNodes, gotCHG.NumNodes)
	assert.Equal(t, chg.Rank, gotCHG.Rank)
	assert.Equal(t, chg.FwdFirstOut, gotCHG.FwdFirstOut)
	assert.Equal(t, chg.FwdHead, gotCHG.FwdHead)
	assert.Equal(t, chg.FwdWeight, gotCHG.FwdWeight)
	assert.Equal(t, chg.FwdMiddle, gotCHG.FwdMiddle)
	assert.Equal(t, chg.BwdFirstOut, gotCHG.BwdFirstOut)
	assert.Equal(t, chg.BwdHead, gotCHG.BwdHead)
	assert.Equal(t, chg.BwdWeight, gotCHG.BwdWeight)
	assert.Equal(t, chg.BwdMiddle, gotCHG.BwdMiddle)
}

func TestLoadRejectsBadMagic(t *testing.T) {
	g, chg := buildTestBundle(t)
	path := filepath.Join(t.TempDir(), "test.auto.routing")
	require.NoError(t, Save(path, g, chg))

	b, err := os.ReadFile(path)
	require.NoError(t, err)
	b[0] ^= 0xFF
	require.NoError(t, os.WriteFile(path, b, 0o644))

	_, _, err = Load(path)
	assert.ErrorIs(t, err, ErrInvalidBundle)
}

func TestLoadRejectsCorruptedBody(t *testing.T) {
	g, chg := buildTestBundle(t)
	path := filepath.Join(t.TempDir(), "test.auto.routing")
	require.NoError(t, Save(path, g, chg))

	b, err := os.ReadFile(path)
	require.NoError(t, err)
	// Flip a byte well past the header, inside the body, without touching
	// the trailing CRC32 itself.
	mid := len(b) - 16
	b[mid] ^= 0xFF
	require.NoError(t, os.WriteFile(path, b, 0o644))

	_, _, err = Load(path)
	assert.ErrorIs(t, err, ErrInvalidBundle)
}

func TestLoadMissingFile(t *testing.T) {
	_, _, err := Load(filepath.Join(t.TempDir(), "missing.routing"))
	assert.Error(t, err)
}

func TestSaveLoadEmptyGraph(t *testing.T) {
	g := graph.Build(&osmparser.ParseResult{})
	chg := ch.Contract(g, nil)
	path := filepath.Join(t.TempDir(), "empty.auto.routing")

	require.NoError(t, Save(path, g, chg))
	gotG, gotCHG, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, uint32(0), gotG.NumNodes)
	assert.Equal(t, uint32(0), gotCHG.NumNodes)
}
