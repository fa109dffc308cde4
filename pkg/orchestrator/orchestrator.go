// Package orchestrator is the read-only view onto the container platform's
// live node and pod state. The decision core never talks to the API server
// directly; it consumes the Reader interface, which both the informer-
// backed live implementation here and an in-memory fake in tests satisfy.
package orchestrator

import (
	"context"

	corev1 "k8s.io/api/core/v1"
)

// Reader is the orchestrator read interface spec §6 describes:
// list_nodes() and list_pods(), both returning a point-in-time snapshot.
type Reader interface {
	ListNodes(ctx context.Context) ([]*corev1.Node, error)
	ListPods(ctx context.Context) ([]*corev1.Pod, error)
}
