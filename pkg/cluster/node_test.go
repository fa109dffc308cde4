package cluster

import (
	"testing"

	corev1 "k8s.io/api/core/v1"
	"k8s.io/apimachinery/pkg/api/resource"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
)

func readyNode(name, asg, az string) *corev1.Node {
	return &corev1.Node{
		ObjectMeta: metav1.ObjectMeta{
			Name: name,
			Labels: map[string]string{
				"eks.amazonaws.com/nodegroup": asg,
				"topology.kubernetes.io/zone": az,
			},
		},
		Status: corev1.NodeStatus{
			Conditions: []corev1.NodeCondition{
				{Type: corev1.NodeReady, Status: corev1.ConditionTrue},
			},
			Allocatable: corev1.ResourceList{
				corev1.ResourceCPU:    resource.MustParse("2"),
				corev1.ResourceMemory: resource.MustParse("4Gi"),
				corev1.ResourcePods:   resource.MustParse("20"),
			},
		},
	}
}

func TestClassify_MissingASGLabelIgnored(t *testing.T) {
	raw := &corev1.Node{ObjectMeta: metav1.ObjectMeta{Name: "orphan"}}
	n := Classify(raw, DefaultLabels())
	if n.HasASG {
		t.Error("node without ASG label should have HasASG == false")
	}
}

func TestClassify_AllocatableVector(t *testing.T) {
	raw := readyNode("n1", "ng-a", "us-east-1a")
	n := Classify(raw, DefaultLabels())

	if !n.HasASG || n.ASG != "ng-a" {
		t.Fatalf("expected ASG ng-a, got %+v", n)
	}
	if n.AZ != "us-east-1a" {
		t.Errorf("expected AZ us-east-1a, got %s", n.AZ)
	}
	if n.Allocatable.CPUMilli != 2000 {
		t.Errorf("expected 2000 CPU milli, got %d", n.Allocatable.CPUMilli)
	}
	if n.Allocatable.Pods != 20 {
		t.Errorf("expected 20 pods, got %d", n.Allocatable.Pods)
	}
	if !n.Ready {
		t.Error("expected node to be ready")
	}
}

func TestClassify_NotReady(t *testing.T) {
	raw := readyNode("n1", "ng-a", "us-east-1a")
	raw.Status.Conditions[0].Status = corev1.ConditionFalse
	n := Classify(raw, DefaultLabels())
	if n.Ready {
		t.Error("expected node to be not-ready")
	}
	if n.Usable(false) {
		t.Error("not-ready node must not be usable")
	}
}

func TestClassify_Unschedulable(t *testing.T) {
	raw := readyNode("n1", "ng-a", "us-east-1a")
	raw.Spec.Unschedulable = true
	n := Classify(raw, DefaultLabels())
	if n.Usable(false) {
		t.Error("unschedulable node must not be usable")
	}
}

func TestClassify_MasterExcludedByDefault(t *testing.T) {
	raw := readyNode("n1", "ng-a", "us-east-1a")
	raw.Labels["node-role.kubernetes.io/control-plane"] = ""
	n := Classify(raw, DefaultLabels())

	if !n.IsMaster {
		t.Fatal("expected node to be classified as master")
	}
	if n.Usable(false) {
		t.Error("master node must not be usable when includeMasterNodes is false")
	}
	if !n.Usable(true) {
		t.Error("master node must be usable when includeMasterNodes is true")
	}
}

func TestIndex_GroupsByASGAndAZ(t *testing.T) {
	nodes := []Node{
		Classify(readyNode("n1", "ng-a", "us-east-1a"), DefaultLabels()),
		Classify(readyNode("n2", "ng-a", "us-east-1b"), DefaultLabels()),
		Classify(readyNode("n3", "ng-b", "us-east-1a"), DefaultLabels()),
		Classify(&corev1.Node{ObjectMeta: metav1.ObjectMeta{Name: "orphan"}}, DefaultLabels()),
	}
	idx := NewIndex(nodes)

	names := idx.ASGNames()
	if len(names) != 2 {
		t.Fatalf("expected 2 ASGs, got %d: %v", len(names), names)
	}

	parts := idx.Partitions("ng-a")
	if len(parts) != 2 {
		t.Fatalf("expected 2 partitions in ng-a, got %d", len(parts))
	}
	if len(parts["us-east-1a"]) != 1 || parts["us-east-1a"][0].Name != "n1" {
		t.Errorf("unexpected partition contents: %+v", parts["us-east-1a"])
	}

	all := idx.AllNodes()
	if len(all) != 3 {
		t.Errorf("expected 3 classified nodes (orphan excluded), got %d", len(all))
	}
}
