// Package cluster classifies orchestrator nodes into the ASG/AZ partitions
// the autoscale decision operates on: which ASG and availability zone a node
// belongs to, whether it is usable, and its allocatable resource vector.
package cluster

import (
	corev1 "k8s.io/api/core/v1"

	"nodescaler/pkg/quantity"
)

// Labels names the well-known orchestrator labels a node is classified by.
// The zero value is not valid; use DefaultLabels.
type Labels struct {
	ASGName string
	AZ      string
}

// DefaultLabels matches the defaults a real EKS-style cluster carries,
// overridable via --asg-name-label/--az-label.
func DefaultLabels() Labels {
	return Labels{
		ASGName: "eks.amazonaws.com/nodegroup",
		AZ:      "topology.kubernetes.io/zone",
	}
}

const (
	labelControlPlane = "node-role.kubernetes.io/control-plane"
	labelMaster       = "node-role.kubernetes.io/master"
)

// Node is the classified view of an orchestrator node that the rest of
// nodescaler reasons about.
type Node struct {
	Name          string
	ASG           string
	HasASG        bool
	AZ            string
	Ready         bool
	Unschedulable bool
	IsMaster      bool
	Allocatable   quantity.ResourceVector
}

// Usable reports whether the node counts toward capacity and is eligible as
// a weakest-node candidate (spec §4.2): ready, schedulable, and either not a
// master or masters are explicitly included.
func (n Node) Usable(includeMasterNodes bool) bool {
	if !n.Ready || n.Unschedulable {
		return false
	}
	if n.IsMaster && !includeMasterNodes {
		return false
	}
	return true
}

// Classify derives a Node from a raw orchestrator node using the given label
// names. HasASG is false when the ASG label is absent, signalling the
// caller to ignore the node entirely per spec §4.2.
func Classify(raw *corev1.Node, labels Labels) Node {
	n := Node{
		Name: raw.Name,
	}

	if v, ok := raw.Labels[labels.ASGName]; ok && v != "" {
		n.ASG = v
		n.HasASG = true
	}
	n.AZ = raw.Labels[labels.AZ]

	n.Ready = isNodeReady(raw)
	n.Unschedulable = raw.Spec.Unschedulable

	if _, ok := raw.Labels[labelControlPlane]; ok {
		n.IsMaster = true
	}
	if _, ok := raw.Labels[labelMaster]; ok {
		n.IsMaster = true
	}

	n.Allocatable = allocatableVector(raw)

	return n
}

// isNodeReady reports whether the node's Ready condition is True; a node
// with no Ready condition counts as not ready.
func isNodeReady(node *corev1.Node) bool {
	for _, cond := range node.Status.Conditions {
		if cond.Type == corev1.NodeReady {
			return cond.Status == corev1.ConditionTrue
		}
	}
	return false
}

func allocatableVector(node *corev1.Node) quantity.ResourceVector {
	cpu := node.Status.Allocatable[corev1.ResourceCPU]
	mem := node.Status.Allocatable[corev1.ResourceMemory]
	pods := node.Status.Allocatable[corev1.ResourcePods]

	return quantity.ResourceVector{
		CPUMilli:    cpu.MilliValue(),
		MemoryBytes: mem.Value(),
		Pods:        pods.Value(),
	}
}
