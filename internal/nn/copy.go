package nn

// Copy returns a deep copy of l with fresh identities. Nodes are cloned in
// Nodes order and edges are rebuilt by walking each original node's inputs
// in order, so the copy's topology follows list position rather than shared
// references. Edges to nodes outside l are not copied.
func (l *Layer) Copy() *Layer {
	nodes := make(map[*Node]*Node)
	clone := l.cloneStructure(nodes)
	for _, old := range l.Nodes() {
		to := nodes[old]
		for slot, in := range old.inputs {
			from, ok := nodes[in]
			if !ok {
				continue
			}
			link(from, to, old.priorities[slot])
		}
	}
	return clone
}

func (l *Layer) cloneStructure(nodes map[*Node]*Node) *Layer {
	clone := NewLayer()
	clone.members = make([]Component, len(l.members))
	for i, m := range l.members {
		var c Component
		switch v := m.(type) {
		case *Node:
			n := v.cloneEmpty()
			nodes[v] = n
			c = n
		case *Layer:
			c = v.cloneStructure(nodes)
		}
		clone.members[i] = c
		if m == l.input {
			clone.input = c
		}
		if m == l.output {
			clone.output = c
		}
	}
	return clone
}
