package petite

import (
	mapset "github.com/deckarep/golang-set/v2"
)

// evaluator is anything that can be the active subscriber during a tracked
// read: a Computed or a Watcher.
type evaluator interface {
	// notify tells the evaluator one of its dependencies changed value.
	notify()
	// dropEdges removes the evaluator from every subscriber set it joined
	// during its previous run.
	dropEdges()
	// recordEdge remembers a subscriber set the evaluator just joined so a
	// later dropEdges can leave it again.
	recordEdge(set mapset.Set[evaluator])
	// alive reports whether the evaluator still accepts notifications.
	alive() bool
}

// node carries the outgoing-edge bookkeeping shared by computeds and
// watchers. Edges are dropped and rebuilt on every tracked run, so a branch
// the latest run never reached stops notifying its old subscriber.
type node struct {
	self  evaluator
	edges []mapset.Set[evaluator]
}

func (n *node) recordEdge(set mapset.Set[evaluator]) {
	n.edges = append(n.edges, set)
}

func (n *node) dropEdges() {
	for _, set := range n.edges {
		set.Remove(n.self)
	}
	n.edges = n.edges[:0]
}
