package graph

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"git.canoozie.net/riddling/propgraph/pkg/model"
)

func edgeIDs(edges []Edge) []uint64 {
	ids := make([]uint64, len(edges))
	for i, e := range edges {
		ids[i] = e.ID()
	}
	return ids
}

func TestEdgeEndpointsAfterCommit(t *testing.T) {
	g, _ := newGraph(t)

	var n1, n2 Node
	var e1 Edge
	update(t, g, func(tx *Tx) {
		var err error
		n1, err = tx.AddNode("myTag1")
		require.NoError(t, err)
		n2, err = tx.AddNode("myTag2")
		require.NoError(t, err)
		e1, err = tx.AddEdge(n1, n2, "myTag3")
		require.NoError(t, err)
	})

	tx := begin(t, g, TxOptions{ReadOnly: true})
	defer tx.Abort()

	src, err := e1.Source(tx)
	require.NoError(t, err)
	assert.Equal(t, n1.ID(), src.ID())
	dst, err := e1.Destination(tx)
	require.NoError(t, err)
	assert.Equal(t, n2.ID(), dst.ID())
	tag, err := e1.Tag(tx)
	require.NoError(t, err)
	assert.Equal(t, "myTag3", tag)

	assert.Positive(t, e1.ID())
	again, err := tx.Edge(e1.ID())
	require.NoError(t, err)
	assert.Equal(t, e1.ID(), again.ID())
}

func TestNodePropertiesSetGetRemove(t *testing.T) {
	g, _ := newGraph(t)

	var n1 Node
	update(t, g, func(tx *Tx) {
		var err error
		n1, err = tx.AddNode("myTag1")
		require.NoError(t, err)
	})

	tx := begin(t, g, TxOptions{})
	require.NoError(t, n1.SetProperty(tx, "Name", model.NewString("katelin")))
	require.NoError(t, n1.SetProperty(tx, "Age", model.NewInt(26)))
	require.NoError(t, tx.Commit())

	tx = begin(t, g, TxOptions{})
	name, ok, err := n1.Property(tx, "Name")
	require.NoError(t, err)
	require.True(t, ok)
	s, err := name.StringValue()
	require.NoError(t, err)
	assert.Equal(t, "katelin", s)

	_, err = name.IntValue()
	assert.ErrorIs(t, err, model.ErrTypeMismatch)

	require.NoError(t, n1.RemoveProperty(tx, "Age"))
	_, ok, err = n1.Property(tx, "Age")
	require.NoError(t, err)
	assert.False(t, ok)
	require.NoError(t, tx.Commit())

	tx = begin(t, g, TxOptions{ReadOnly: true})
	defer tx.Abort()
	has, err := n1.HasProperty(tx, "Age")
	require.NoError(t, err)
	assert.False(t, has)
}

func addNamed(t *testing.T, tx *Tx, tag, name string) Node {
	t.Helper()
	n, err := tx.AddNode(tag)
	require.NoError(t, err)
	require.NoError(t, n.SetProperty(tx, "Name", model.NewString(name)))
	return n
}

func TestNameRangeExcludesBothBounds(t *testing.T) {
	for _, indexed := range []bool{false, true} {
		name := "scan"
		if indexed {
			name = "index"
		}
		t.Run(name, func(t *testing.T) {
			var opts []func(*Options)
			if indexed {
				opts = append(opts, WithNodeIndexes("Name"))
			}
			g, _ := newGraph(t, opts...)

			var katelin, philip, alain Node
			update(t, g, func(tx *Tx) {
				katelin = addNamed(t, tx, "myTag1", "katelin")
				philip = addNamed(t, tx, "myTag2", "philip")
				alain = addNamed(t, tx, "myTag2", "alain")
				addNamed(t, tx, "", "vishakha")
				// Values equal to a bound are outside the open interval.
				addNamed(t, tx, "", "f")
				addNamed(t, tx, "", "s")
			})

			tx := begin(t, g, TxOptions{ReadOnly: true})
			defer tx.Abort()

			between, err := model.GtLt("Name", model.NewString("f"), model.NewString("s"))
			require.NoError(t, err)
			nodes, err := Collect(tx.Nodes(QueryOptions{Predicate: &between}))
			require.NoError(t, err)
			assert.Equal(t, []uint64{katelin.ID(), philip.ID()}, nodeIDs(nodes))

			narrow, err := model.GtLt("Name", model.NewString("l"), model.NewString("s"))
			require.NoError(t, err)
			nodes, err = Collect(tx.Nodes(QueryOptions{Predicate: &narrow}))
			require.NoError(t, err)
			assert.Equal(t, []uint64{philip.ID()}, nodeIDs(nodes))

			tagged, err := model.GtLt("Name", model.NewString("a"), model.NewString("s"))
			require.NoError(t, err)
			nodes, err = Collect(tx.Nodes(QueryOptions{Tag: "myTag2", Predicate: &tagged}))
			require.NoError(t, err)
			assert.Equal(t, []uint64{philip.ID(), alain.ID()}, nodeIDs(nodes))
		})
	}
}

func TestTaggedAdjacencyByDirection(t *testing.T) {
	g, _ := newGraph(t)

	var n1 Node
	var out, in Edge
	update(t, g, func(tx *Tx) {
		var err error
		n1, err = tx.AddNode("myTag1")
		require.NoError(t, err)
		n2, err := tx.AddNode("myTag2")
		require.NoError(t, err)
		n3, err := tx.AddNode("myTag2")
		require.NoError(t, err)
		n4, err := tx.AddNode("")
		require.NoError(t, err)

		_, err = tx.AddEdge(n1, n2, "other")
		require.NoError(t, err)
		out, err = tx.AddEdge(n1, n3, "myTag3")
		require.NoError(t, err)
		_, err = tx.AddEdge(n4, n1, "")
		require.NoError(t, err)
		in, err = tx.AddEdge(n4, n1, "myTag3")
		require.NoError(t, err)
		_, err = tx.AddEdge(n4, n2, "myTag3")
		require.NoError(t, err)
	})

	tx := begin(t, g, TxOptions{ReadOnly: true})
	defer tx.Abort()

	edges, err := Collect(n1.Edges(tx, Outgoing, "myTag3"))
	require.NoError(t, err)
	assert.Equal(t, []uint64{out.ID()}, edgeIDs(edges))

	edges, err = Collect(n1.Edges(tx, Incoming, "myTag3"))
	require.NoError(t, err)
	assert.Equal(t, []uint64{in.ID()}, edgeIDs(edges))

	edges, err = Collect(n1.Edges(tx, Any, "myTag3"))
	require.NoError(t, err)
	assert.Equal(t, []uint64{out.ID(), in.ID()}, edgeIDs(edges))
}
