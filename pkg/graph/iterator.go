package graph

import (
	"fmt"

	"git.canoozie.net/riddling/propgraph/pkg/model"
)

// Iterator is a forward-only cursor over the results of one query. It is
// bound to the transaction that created it: once that transaction commits
// or aborts every call fails with model.ErrInvalidIterator. Results are
// produced lazily as the cursor advances.
//
// The usual loop is
//
//	for !it.Done() {
//		v, err := it.Current()
//		...
//		if err := it.Next(); err != nil { ... }
//	}
//	if err := it.Err(); err != nil { ... }
type Iterator[T any] struct {
	tx   *Tx
	next func() (T, bool, error)
	cur  T
	done bool
	err  error
}

func newIterator[T any](tx *Tx, next func() (T, bool, error)) *Iterator[T] {
	it := &Iterator[T]{tx: tx, next: next}
	it.advance()
	return it
}

func (it *Iterator[T]) advance() {
	v, ok, err := it.next()
	switch {
	case err != nil:
		it.err = err
		it.done = true
	case !ok:
		it.done = true
	default:
		it.cur = v
	}
	if it.done {
		var zero T
		it.cur = zero
		it.next = nil
	}
}

func (it *Iterator[T]) check() error {
	if it.tx == nil || it.tx.status != txActive {
		return fmt.Errorf("%w: owning transaction has ended", model.ErrInvalidIterator)
	}
	return nil
}

// Done reports whether the iterator is exhausted, failed, or no longer
// valid.
func (it *Iterator[T]) Done() bool {
	if err := it.check(); err != nil {
		it.err = err
		return true
	}
	return it.done
}

// Current returns the element at the cursor. It fails with
// model.ErrIteratorDone once the iterator is exhausted.
func (it *Iterator[T]) Current() (T, error) {
	var zero T
	if err := it.check(); err != nil {
		it.err = err
		return zero, err
	}
	if it.err != nil {
		return zero, it.err
	}
	if it.done {
		return zero, model.ErrIteratorDone
	}
	return it.cur, nil
}

// Next advances the cursor. Past the end it does nothing.
func (it *Iterator[T]) Next() error {
	if err := it.check(); err != nil {
		it.err = err
		return err
	}
	if it.done {
		return it.err
	}
	it.advance()
	return it.err
}

// Err returns the error that ended the iteration, if any.
func (it *Iterator[T]) Err() error {
	return it.err
}

// ForEach calls fn for every remaining element. It stops at the first error
// returned by fn or by the iterator.
func (it *Iterator[T]) ForEach(fn func(T) error) error {
	for !it.Done() {
		v, err := it.Current()
		if err != nil {
			return err
		}
		if err := fn(v); err != nil {
			return err
		}
		if err := it.Next(); err != nil {
			return err
		}
	}
	return it.Err()
}

// Collect drains it into a slice. It accepts the result of a query call
// directly: Collect(tx.Nodes(opts)).
func Collect[T any](it *Iterator[T], err error) ([]T, error) {
	if err != nil {
		return nil, err
	}
	var out []T
	if err := it.ForEach(func(v T) error {
		out = append(out, v)
		return nil
	}); err != nil {
		return nil, err
	}
	return out, nil
}

// sliceSource yields the elements of items in order.
func sliceSource[T any](items []T) func() (T, bool, error) {
	i := 0
	return func() (T, bool, error) {
		if i >= len(items) {
			var zero T
			return zero, false, nil
		}
		v := items[i]
		i++
		return v, true, nil
	}
}
