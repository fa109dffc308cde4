// Package partition aggregates demand and capacity onto the (ASG, AZ) grid:
// it walks pods into per-partition usage or the global pending bucket,
// distributes pending demand evenly across usable partitions, and selects
// each partition's weakest node.
package partition

import (
	"nodescaler/pkg/cluster"
	"nodescaler/pkg/quantity"
)

// Pod is the minimal view of an orchestrator pod the decision needs.
type Pod struct {
	Namespace    string
	Name         string
	Phase        string
	AssignedNode string
	HasAssigned  bool
	Requests     quantity.ResourceVector
}

// Terminal phases are excluded from demand entirely (spec §4.3).
const (
	PhaseSucceeded = "Succeeded"
	PhaseFailed    = "Failed"
)

func isTerminal(phase string) bool {
	return phase == PhaseSucceeded || phase == PhaseFailed
}

// Partition is keyed by (ASG, AZ); it holds the nodes assigned to it and the
// usage accumulated from pods scheduled onto those nodes.
type Partition struct {
	ASG        string
	AZ         string
	Nodes      []cluster.Node
	Usage      quantity.ResourceVector
	Pending    quantity.ResourceVector // this partition's share of PendingBucket, filled in later
	Weakest    quantity.ResourceVector
	HasWeakest bool
}

// UsableNodes returns the nodes in the partition that count toward capacity.
func (p Partition) UsableNodes(includeMasterNodes bool) []cluster.Node {
	var out []cluster.Node
	for _, n := range p.Nodes {
		if n.Usable(includeMasterNodes) {
			out = append(out, n)
		}
	}
	return out
}

// DataErrors records non-fatal classification problems encountered while
// aggregating demand, each logged per-item per spec §7's DataError kind.
type DataErrors struct {
	UnknownAssignedNode []string // pod identifiers (namespace/name)
}

// Aggregate walks pods against the node index and returns one Partition per
// known (ASG, AZ) key, plus the global PendingBucket (without its per-
// partition distribution yet — see Distribute) and any data errors observed.
func Aggregate(idx *cluster.Index, pods []Pod, includeMasterNodes bool) (map[string]map[string]*Partition, quantity.ResourceVector, DataErrors) {
	partitions := make(map[string]map[string]*Partition)
	for _, asg := range idx.ASGNames() {
		partitions[asg] = make(map[string]*Partition)
		for az, nodes := range idx.Partitions(asg) {
			partitions[asg][az] = &Partition{ASG: asg, AZ: az, Nodes: nodes}
		}
	}

	byName := make(map[string]cluster.Node)
	for _, n := range idx.AllNodes() {
		byName[n.Name] = n
	}

	var pending quantity.ResourceVector
	var errs DataErrors

	for _, pod := range pods {
		if isTerminal(pod.Phase) {
			continue
		}
		if !pod.HasAssigned {
			pending = pending.Add(pod.Requests)
			continue
		}

		node, known := byName[pod.AssignedNode]
		if !known {
			// assigned_node references a node outside the index: either the
			// node genuinely doesn't exist, or it has no ASG label. Either
			// way this is a DataError and the pod is reclassified pending.
			errs.UnknownAssignedNode = append(errs.UnknownAssignedNode, pod.Namespace+"/"+pod.Name)
			pending = pending.Add(pod.Requests)
			continue
		}

		if !node.Usable(includeMasterNodes) {
			// Assigned to an excluded node (e.g. a master when masters are
			// excluded): contributes to neither usage nor pending. The
			// caller skips the ASG's decision only when the ASG has no
			// usable node at all (no weakest node); an ASG that also has
			// usable nodes is still computed, without this pod's demand.
			continue
		}

		part := partitions[node.ASG][node.AZ]
		if part == nil {
			// Node is usable and has an ASG per construction of idx, so
			// this partition must exist.
			continue
		}
		part.Usage = part.Usage.Add(pod.Requests)
	}

	return partitions, pending, errs
}

// SeedKnownAZs ensures a Partition entry exists for every (asg, az) pair
// named in knownAZs, even when the node index currently has no live node
// there. A previously-scaled-to-zero AZ, or one the cloud just added to an
// ASG's span, would otherwise never enter SelectWeakest or scaling.Compute
// and so could never be scaled up from zero (spec §3 keys partitions by az
// independent of current node presence). Call this after Aggregate and
// before Distribute/SelectWeakest so a seeded partition can still borrow an
// ASG-wide weakest-node fallback. Having no usable node, a seeded partition
// receives a pending share from Distribute only when no partition anywhere
// has a usable node.
func SeedKnownAZs(partitions map[string]map[string]*Partition, knownAZs map[string][]string) {
	for asg, azs := range knownAZs {
		if _, ok := partitions[asg]; !ok {
			partitions[asg] = make(map[string]*Partition)
		}
		for _, az := range azs {
			if _, ok := partitions[asg][az]; !ok {
				partitions[asg][az] = &Partition{ASG: asg, AZ: az}
			}
		}
	}
}

// Distribute spreads pending evenly (rounded up per partition so the total
// distributed is >= pending) across every partition that has at least one
// usable node. If no partition has a usable node, pending is attached to
// every known (ASG, AZ) partition equally instead.
func Distribute(partitions map[string]map[string]*Partition, pending quantity.ResourceVector, includeMasterNodes bool) {
	var usableTargets []*Partition
	var allTargets []*Partition
	for _, azs := range partitions {
		for _, p := range azs {
			allTargets = append(allTargets, p)
			if len(p.UsableNodes(includeMasterNodes)) > 0 {
				usableTargets = append(usableTargets, p)
			}
		}
	}

	targets := usableTargets
	if len(targets) == 0 {
		targets = allTargets
	}
	if len(targets) == 0 {
		// Zero partitions exist at all: pending is unsatisfiable. The
		// caller surfaces this as a warning; no share is distributed.
		return
	}

	share := quantity.ResourceVector{
		CPUMilli:    ceilDivShare(pending.CPUMilli, int64(len(targets))),
		MemoryBytes: ceilDivShare(pending.MemoryBytes, int64(len(targets))),
		Pods:        ceilDivShare(pending.Pods, int64(len(targets))),
	}
	for _, p := range targets {
		p.Pending = share
	}
}

func ceilDivShare(total, n int64) int64 {
	if n <= 0 || total <= 0 {
		return 0
	}
	v := total / n
	if total%n != 0 {
		v++
	}
	return v
}

// SelectWeakest fills in the Weakest field of every partition: the usable
// node with minimal allocatable under the CPU/memory/pods total order
// (spec §4.4). A partition with no usable nodes borrows the weakest usable
// node from any other partition in the same ASG; if the ASG has no usable
// nodes at all, HasWeakest stays false and the caller must skip that ASG.
func SelectWeakest(partitions map[string]map[string]*Partition, includeMasterNodes bool) {
	for _, azs := range partitions {
		var asgWeakest quantity.ResourceVector
		asgHasWeakest := false

		for _, p := range azs {
			usable := p.UsableNodes(includeMasterNodes)
			if len(usable) == 0 {
				continue
			}
			weakest := usable[0].Allocatable
			for _, n := range usable[1:] {
				if n.Allocatable.Less(weakest) {
					weakest = n.Allocatable
				}
			}
			p.Weakest = weakest
			p.HasWeakest = true
			if !asgHasWeakest || weakest.Less(asgWeakest) {
				asgWeakest = weakest
				asgHasWeakest = true
			}
		}

		if !asgHasWeakest {
			continue
		}
		for _, p := range azs {
			if !p.HasWeakest {
				p.Weakest = asgWeakest
				p.HasWeakest = true
			}
		}
	}
}
