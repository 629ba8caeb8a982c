package txn

import "fmt"

// savepointRegistry tracks a transaction's savepoints in insertion order, so
// RollbackToSavepoint can discard every savepoint created after the target
// in a single pass. Neither reference implementation in the corpus
// implements savepoints (the teacher's transaction.go has only a TODO
// stub), so this is a fresh addition built in the teacher's registry idiom
// (slice for order, map for O(1) existence checks).
type savepointRegistry struct {
	order []string
	index map[string]int
}

func newSavepointRegistry() *savepointRegistry {
	return &savepointRegistry{index: make(map[string]int)}
}

// create registers a new savepoint. Creating a savepoint with a name that
// already exists replaces its position, matching Cypher engines that treat
// a repeated savepoint name as "move the marker forward".
func (r *savepointRegistry) create(name string) {
	if i, ok := r.index[name]; ok {
		r.order = append(r.order[:i], r.order[i+1:]...)
		for n, idx := range r.index {
			if idx > i {
				r.index[n] = idx - 1
			}
		}
	}
	r.index[name] = len(r.order)
	r.order = append(r.order, name)
}

// release discards a single savepoint without affecting the others.
// Releasing a name that was never created (or already released) is a
// no-op, not an error — spec's invariant is that release always succeeds.
func (r *savepointRegistry) release(name string) error {
	i, ok := r.index[name]
	if !ok {
		return nil
	}
	r.order = append(r.order[:i], r.order[i+1:]...)
	delete(r.index, name)
	for n, idx := range r.index {
		if idx > i {
			r.index[n] = idx - 1
		}
	}
	return nil
}

// rollbackTo discards every savepoint created after the target, leaving
// the target itself addressable — rollbackTo(s) immediately followed by
// rollbackTo(s) again, with no intervening creates, is a no-op. Returns
// the discarded names (everything after the target) in creation order.
func (r *savepointRegistry) rollbackTo(name string) ([]string, error) {
	i, ok := r.index[name]
	if !ok {
		return nil, fmt.Errorf("txn: unknown savepoint %q", name)
	}
	discarded := append([]string(nil), r.order[i+1:]...)
	r.order = r.order[:i+1]
	for _, n := range discarded {
		delete(r.index, n)
	}
	return discarded, nil
}

func (r *savepointRegistry) has(name string) bool {
	_, ok := r.index[name]
	return ok
}

func (r *savepointRegistry) names() []string {
	out := make([]string, len(r.order))
	copy(out, r.order)
	return out
}
