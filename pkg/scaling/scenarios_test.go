package scaling

import (
	"testing"

	"nodescaler/pkg/cluster"
	"nodescaler/pkg/partition"
	"nodescaler/pkg/quantity"
)

func defaultParams() Params {
	return Params{
		Buffers: quantity.Buffers{
			CPUPercent: 0.10, MemoryPercent: 0.10, PodsPercent: 0.10,
			CPUFixed: 200, MemoryFixed: 200 << 20, PodsFixed: 10,
		},
		BufferSpareNodes:   1,
		ScaleDownStepFixed: 1,
	}
}

func azNode(name, asg, az string, cpuMilli, memBytes, pods int64) cluster.Node {
	return cluster.Node{
		Name: name, ASG: asg, HasASG: true, AZ: az, Ready: true,
		Allocatable: quantity.ResourceVector{CPUMilli: cpuMilli, MemoryBytes: memBytes, Pods: pods},
	}
}

func pod(node string, cpuMilli, memBytes int64) partition.Pod {
	return partition.Pod{
		Namespace: "default", Name: node + "-pod", Phase: "Running",
		AssignedNode: node, HasAssigned: true,
		Requests: quantity.ResourceVector{CPUMilli: cpuMilli, MemoryBytes: memBytes, Pods: 1},
	}
}

func pendingPod(cpuMilli, memBytes int64) partition.Pod {
	return partition.Pod{
		Namespace: "default", Name: "pending", Phase: "Pending",
		Requests: quantity.ResourceVector{CPUMilli: cpuMilli, MemoryBytes: memBytes, Pods: 1},
	}
}

func run(t *testing.T, nodes []cluster.Node, pods []partition.Pod, info ASGInfo, params Params) Decision {
	t.Helper()
	idx := cluster.NewIndex(nodes)
	parts, pending, _ := partition.Aggregate(idx, pods, params.IncludeMasterNodes)
	partition.Distribute(parts, pending, params.IncludeMasterNodes)
	partition.SelectWeakest(parts, params.IncludeMasterNodes)

	decisions := Compute(idx, parts, map[string]ASGInfo{info.Name: info}, params)
	if len(decisions) != 1 {
		t.Fatalf("expected exactly one decision, got %d", len(decisions))
	}
	return decisions[0]
}

// S1 - steady state: three AZs, one node each, three pods exactly matching
// usage, buffer absorbed by the spare floor. Target stays at 3.
func TestScenario_S1_SteadyState(t *testing.T) {
	nodes := []cluster.Node{
		azNode("n1", "A", "az1", 4000, 8<<30, 110),
		azNode("n2", "A", "az2", 4000, 8<<30, 110),
		azNode("n3", "A", "az3", 4000, 8<<30, 110),
	}
	pods := []partition.Pod{pod("n1", 500, 1<<30), pod("n2", 500, 1<<30), pod("n3", 500, 1<<30)}
	info := ASGInfo{Name: "A", Min: 1, Max: 10, Desired: 3}

	d := run(t, nodes, pods, info, defaultParams())
	if d.Final != 3 {
		t.Errorf("S1: expected final=3, got %d (reason=%s)", d.Final, d.Reason)
	}
	if d.Reason != ReasonUnchanged {
		t.Errorf("S1: expected reason unchanged, got %s", d.Reason)
	}
}

// S2 - light pending load across the same cluster as S1 should not
// spuriously scale up: buffers on a small per-AZ share still fit in the
// existing weakest node.
func TestScenario_S2_LightPendingNoScaleUp(t *testing.T) {
	nodes := []cluster.Node{
		azNode("n1", "A", "az1", 4000, 8<<30, 110),
		azNode("n2", "A", "az2", 4000, 8<<30, 110),
		azNode("n3", "A", "az3", 4000, 8<<30, 110),
	}
	pods := []partition.Pod{pod("n1", 500, 1<<30), pod("n2", 500, 1<<30), pod("n3", 500, 1<<30)}
	for i := 0; i < 12; i++ {
		pods = append(pods, pendingPod(500, 1<<30))
	}
	info := ASGInfo{Name: "A", Min: 1, Max: 10, Desired: 3}

	d := run(t, nodes, pods, info, defaultParams())
	if d.Final != 3 {
		t.Errorf("S2: expected final=3 (buffers absorbed by spare), got %d", d.Final)
	}
}

// S3 - a much larger pending load forces a real scale-up: 2 nodes needed
// per AZ, 6 total.
func TestScenario_S3_ScaleUpForced(t *testing.T) {
	nodes := []cluster.Node{
		azNode("n1", "A", "az1", 4000, 8<<30, 110),
		azNode("n2", "A", "az2", 4000, 8<<30, 110),
		azNode("n3", "A", "az3", 4000, 8<<30, 110),
	}
	pods := []partition.Pod{pod("n1", 500, 1<<30), pod("n2", 500, 1<<30), pod("n3", 500, 1<<30)}
	for i := 0; i < 300; i++ {
		pods = append(pods, pendingPod(10, 10<<20))
	}
	info := ASGInfo{Name: "A", Min: 1, Max: 10, Desired: 3}

	d := run(t, nodes, pods, info, defaultParams())
	if d.Final != 6 {
		t.Errorf("S3: expected final=6, got %d", d.Final)
	}
	if d.Reason != ReasonScaleUp {
		t.Errorf("S3: expected reason scale_up, got %s", d.Reason)
	}
}

// S4 - scale-down damping converges gradually rather than jumping straight
// to the required count.
func TestScenario_S4_ScaleDownDamped(t *testing.T) {
	nodes := []cluster.Node{azNode("n1", "A", "az1", 4000, 8<<30, 110)}
	pods := []partition.Pod{pod("n1", 500, 1<<30)}
	params := defaultParams()

	current := int64(6)
	for i, want := range []int64{5, 4} {
		info := ASGInfo{Name: "A", Min: 1, Max: 10, Desired: current}
		d := run(t, nodes, pods, info, params)
		if d.Final != want {
			t.Fatalf("S4 iteration %d: expected final=%d, got %d", i, want, d.Final)
		}
		current = d.Final
	}
}

// S5 - AZ imbalance: each AZ gets 25 pending pods. The small AZ needs 3
// nodes for its share (CPU: 2500m*1.1+200m = 2950m over 1000m nodes; pods
// alone would need 2) while the large AZ needs only 1, so the ASG total is 4.
func TestScenario_S5_AZImbalance(t *testing.T) {
	nodes := []cluster.Node{
		azNode("n1", "A", "az1", 1000, 2<<30, 20),
		azNode("n2", "A", "az2", 4000, 8<<30, 110),
	}
	var pods []partition.Pod
	for i := 0; i < 50; i++ {
		pods = append(pods, pendingPod(100, 100<<20))
	}
	info := ASGInfo{Name: "A", Min: 1, Max: 10, Desired: 2}

	d := run(t, nodes, pods, info, defaultParams())
	if d.Final != 4 {
		t.Errorf("S5: expected final=4, got %d", d.Final)
	}
}

// S6 - no usable nodes: the decision is skipped entirely and the prior
// desired capacity is preserved.
func TestScenario_S6_NoUsableNodes(t *testing.T) {
	nodes := []cluster.Node{
		{Name: "n1", ASG: "A", HasASG: true, AZ: "az1", Ready: false},
		{Name: "n2", ASG: "A", HasASG: true, AZ: "az2", Ready: false},
	}
	info := ASGInfo{Name: "A", Min: 1, Max: 10, Desired: 2}

	d := run(t, nodes, nil, info, defaultParams())
	if d.Reason != ReasonSkippedNoNodes {
		t.Errorf("S6: expected reason skipped_no_nodes, got %s", d.Reason)
	}
	if d.Final != 2 {
		t.Errorf("S6: expected no change to desired capacity, got %d", d.Final)
	}
	if d.Changed() {
		t.Error("S6: expected no effector call (Changed() == false)")
	}
}
