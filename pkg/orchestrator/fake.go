package orchestrator

import (
	"context"

	corev1 "k8s.io/api/core/v1"
)

// FakeReader is a zero-I/O Reader backed by an in-memory slice, used to test
// the decision core against fixed snapshots without standing up a cluster.
type FakeReader struct {
	Nodes []*corev1.Node
	Pods  []*corev1.Pod
}

// NewFakeReader builds a FakeReader from the given nodes and pods.
func NewFakeReader(nodes []*corev1.Node, pods []*corev1.Pod) *FakeReader {
	return &FakeReader{Nodes: nodes, Pods: pods}
}

func (f *FakeReader) ListNodes(ctx context.Context) ([]*corev1.Node, error) {
	return f.Nodes, nil
}

func (f *FakeReader) ListPods(ctx context.Context) ([]*corev1.Pod, error) {
	return f.Pods, nil
}
