package graph

// Branch is one parallel node's output within a wave.
type Branch[S any] struct {
	Node  string
	State S
}

// MergeFunc folds the outputs of a multi-node wave into one state. base is
// the state the wave started from; branches are sorted by node id, so the
// result never depends on completion order.
type MergeFunc[S any] func(base S, branches []Branch[S]) (S, error)

// LastWriterWins is the default merge: the branch with the greatest node id
// wins outright.
func LastWriterWins[S any](base S, branches []Branch[S]) (S, error) {
	if len(branches) == 0 {
		return base, nil
	}
	return branches[len(branches)-1].State, nil
}

// Cloner is implemented by states that know how to copy themselves. Parallel
// branches each receive a clone so they never share mutable sub-objects.
type Cloner[S any] interface {
	Clone() S
}
