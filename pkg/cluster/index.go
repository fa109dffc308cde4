package cluster

// Index groups classified nodes by ASG and, within each ASG, by AZ. Nodes
// with HasASG == false never appear here (spec §4.2: absent ASG label means
// the node is ignored).
type Index struct {
	asgs map[string]map[string][]Node
	// order preserves first-seen ASG ordering for ASGNames. The per-ASG
	// decisions (and therefore cloud calls) are ordered separately, by
	// ascending ASG name, in scaling.Compute.
	order []string
}

// NewIndex classifies and groups raw nodes into an Index.
func NewIndex(nodes []Node) *Index {
	idx := &Index{asgs: make(map[string]map[string][]Node)}
	for _, n := range nodes {
		if !n.HasASG {
			continue
		}
		idx.add(n)
	}
	return idx
}

func (idx *Index) add(n Node) {
	azs, ok := idx.asgs[n.ASG]
	if !ok {
		azs = make(map[string][]Node)
		idx.asgs[n.ASG] = azs
		idx.order = append(idx.order, n.ASG)
	}
	azs[n.AZ] = append(azs[n.AZ], n)
}

// ASGNames returns the known ASG names in first-seen order.
func (idx *Index) ASGNames() []string {
	out := make([]string, len(idx.order))
	copy(out, idx.order)
	return out
}

// Partitions returns the AZ -> nodes grouping for asg, or nil if the ASG has
// no known nodes.
func (idx *Index) Partitions(asg string) map[string][]Node {
	return idx.asgs[asg]
}

// AllNodes returns every node known to the index across all ASGs and AZs.
func (idx *Index) AllNodes() []Node {
	var out []Node
	for _, az := range idx.asgs {
		for _, nodes := range az {
			out = append(out, nodes...)
		}
	}
	return out
}
