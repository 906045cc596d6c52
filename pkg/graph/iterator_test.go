package graph

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"git.canoozie.net/riddling/propgraph/pkg/model"
)

func TestIteratorExhaustion(t *testing.T) {
	g, _ := newGraph(t)
	update(t, g, func(tx *Tx) {
		for i := 0; i < 2; i++ {
			_, err := tx.AddNode("n")
			require.NoError(t, err)
		}
	})

	tx := begin(t, g, TxOptions{ReadOnly: true})
	defer tx.Abort()

	it, err := tx.Nodes(QueryOptions{})
	require.NoError(t, err)

	var seen []uint64
	for !it.Done() {
		n, err := it.Current()
		require.NoError(t, err)
		seen = append(seen, n.ID())
		require.NoError(t, it.Next())
	}
	assert.Equal(t, []uint64{1, 2}, seen)
	require.NoError(t, it.Err())

	_, err = it.Current()
	assert.ErrorIs(t, err, model.ErrIteratorDone)
	assert.NoError(t, it.Next())
	assert.NoError(t, it.Next())
	assert.True(t, it.Done())
}

func TestEmptyIterator(t *testing.T) {
	g, _ := newGraph(t)
	tx := begin(t, g, TxOptions{ReadOnly: true})
	defer tx.Abort()

	it, err := tx.Edges(QueryOptions{Tag: "none"})
	require.NoError(t, err)
	assert.True(t, it.Done())
	_, err = it.Current()
	assert.ErrorIs(t, err, model.ErrIteratorDone)
}

func TestIteratorInvalidatedByTransactionEnd(t *testing.T) {
	g, _ := newGraph(t)
	var n Node
	update(t, g, func(tx *Tx) {
		var err error
		n, err = tx.AddNode("n")
		require.NoError(t, err)
		require.NoError(t, n.SetProperty(tx, "a", model.NewInt(1)))
		require.NoError(t, n.SetProperty(tx, "b", model.NewInt(2)))
	})

	for _, end := range []struct {
		name string
		fn   func(*Tx) error
	}{
		{"commit", func(tx *Tx) error { return tx.Commit() }},
		{"abort", func(tx *Tx) error { tx.Abort(); return nil }},
	} {
		t.Run(end.name, func(t *testing.T) {
			tx := begin(t, g, TxOptions{})
			props, err := n.Properties(tx)
			require.NoError(t, err)
			nodes, err := tx.Nodes(QueryOptions{})
			require.NoError(t, err)
			require.False(t, props.Done())

			require.NoError(t, end.fn(tx))

			assert.True(t, props.Done())
			assert.ErrorIs(t, props.Err(), model.ErrInvalidIterator)
			_, err = props.Current()
			assert.ErrorIs(t, err, model.ErrInvalidIterator)
			assert.ErrorIs(t, nodes.Next(), model.ErrInvalidIterator)
			_, err = nodes.Current()
			assert.ErrorIs(t, err, model.ErrInvalidIterator)
		})
	}
}

func TestPropertyIteratorIsSortedSnapshot(t *testing.T) {
	g, _ := newGraph(t)
	tx := begin(t, g, TxOptions{})
	defer tx.Abort()

	n, err := tx.AddNode("n")
	require.NoError(t, err)
	for _, k := range []string{"zeta", "alpha", "mid"} {
		require.NoError(t, n.SetProperty(tx, k, model.NewString(k)))
	}

	it, err := n.Properties(tx)
	require.NoError(t, err)
	require.NoError(t, n.SetProperty(tx, "beta", model.NewBool(true)))

	entries, err := Collect(it, nil)
	require.NoError(t, err)
	keys := make([]string, len(entries))
	for i, e := range entries {
		keys[i] = e.Key
	}
	assert.Equal(t, []string{"alpha", "mid", "zeta"}, keys)
}

func TestForEachStopsOnCallbackError(t *testing.T) {
	g, _ := newGraph(t)
	update(t, g, func(tx *Tx) {
		for i := 0; i < 3; i++ {
			_, err := tx.AddNode("n")
			require.NoError(t, err)
		}
	})

	tx := begin(t, g, TxOptions{ReadOnly: true})
	defer tx.Abort()
	it, err := tx.Nodes(QueryOptions{})
	require.NoError(t, err)

	stop := errors.New("stop")
	calls := 0
	err = it.ForEach(func(Node) error {
		calls++
		if calls == 2 {
			return stop
		}
		return nil
	})
	assert.ErrorIs(t, err, stop)
	assert.Equal(t, 2, calls)
}
