package db

// depGraph stores fragment dependency edges as adjacency sets in both
// directions: fwd answers "what do I need", rev answers "who needs me".
// Not safe for concurrent use on its own — the owning Database's lock
// guards every access.
type depGraph struct {
	fwd map[FragID]map[FragID]struct{}
	rev map[FragID]map[FragID]struct{}
}

func newDepGraph() *depGraph {
	return &depGraph{
		fwd: make(map[FragID]map[FragID]struct{}),
		rev: make(map[FragID]map[FragID]struct{}),
	}
}

// setEdges replaces from's outgoing edges wholesale. Recomputing a changed
// fragment's edges from scratch is simpler than diffing and bounded by the
// fragment's own edge count.
func (g *depGraph) setEdges(from FragID, tos []FragID) {
	for old := range g.fwd[from] {
		delete(g.rev[old], from)
		if len(g.rev[old]) == 0 {
			delete(g.rev, old)
		}
	}
	delete(g.fwd, from)

	if len(tos) == 0 {
		return
	}
	set := make(map[FragID]struct{}, len(tos))
	for _, to := range tos {
		set[to] = struct{}{}
		if g.rev[to] == nil {
			g.rev[to] = make(map[FragID]struct{})
		}
		g.rev[to][from] = struct{}{}
	}
	g.fwd[from] = set
}

// removeNode drops a fragment and every edge touching it, in both
// directions. No dangling endpoints survive.
func (g *depGraph) removeNode(id FragID) {
	for to := range g.fwd[id] {
		delete(g.rev[to], id)
		if len(g.rev[to]) == 0 {
			delete(g.rev, to)
		}
	}
	delete(g.fwd, id)

	for from := range g.rev[id] {
		delete(g.fwd[from], id)
		if len(g.fwd[from]) == 0 {
			delete(g.fwd, from)
		}
	}
	delete(g.rev, id)
}

func (g *depGraph) dependencies(id FragID) []FragID {
	return keys(g.fwd[id])
}

func (g *depGraph) dependents(id FragID) []FragID {
	return keys(g.rev[id])
}

func (g *depGraph) edgeCount() int {
	n := 0
	for _, set := range g.fwd {
		n += len(set)
	}
	return n
}

func keys(set map[FragID]struct{}) []FragID {
	if len(set) == 0 {
		return nil
	}
	out := make([]FragID, 0, len(set))
	for id := range set {
		out = append(out, id)
	}
	return out
}
