package orchestrator

import (
	"context"
	"fmt"

	corev1 "k8s.io/api/core/v1"
	"k8s.io/client-go/informers"
	"k8s.io/client-go/kubernetes"
	"k8s.io/client-go/tools/cache"
	"k8s.io/klog/v2"
)

// LiveReader is a Reader backed by client-go shared informers: nodes and
// pods are cached locally and kept in sync by watch, so each iteration's
// ListNodes/ListPods calls are cheap local reads rather than API round
// trips.
type LiveReader struct {
	nodeIndexer cache.Indexer
	podIndexer  cache.Indexer
}

// NewLiveReader starts the node and pod informers and blocks until their
// caches have synced once.
func NewLiveReader(ctx context.Context, client kubernetes.Interface) (*LiveReader, error) {
	factory := informers.NewSharedInformerFactory(client, 0)

	nodeInformer := factory.Core().V1().Nodes().Informer()
	podInformer := factory.Core().V1().Pods().Informer()

	factory.Start(ctx.Done())

	if !cache.WaitForCacheSync(ctx.Done(), nodeInformer.HasSynced, podInformer.HasSynced) {
		return nil, fmt.Errorf("orchestrator: failed to sync node/pod informer caches")
	}

	klog.InfoS("Orchestrator informers started and synced")

	return &LiveReader{
		nodeIndexer: nodeInformer.GetIndexer(),
		podIndexer:  podInformer.GetIndexer(),
	}, nil
}

// ListNodes returns every node currently in the local cache.
func (r *LiveReader) ListNodes(ctx context.Context) ([]*corev1.Node, error) {
	objs := r.nodeIndexer.List()
	nodes := make([]*corev1.Node, 0, len(objs))
	for _, obj := range objs {
		node, ok := obj.(*corev1.Node)
		if !ok {
			continue
		}
		nodes = append(nodes, node)
	}
	return nodes, nil
}

// ListPods returns every pod currently in the local cache.
func (r *LiveReader) ListPods(ctx context.Context) ([]*corev1.Pod, error) {
	objs := r.podIndexer.List()
	pods := make([]*corev1.Pod, 0, len(objs))
	for _, obj := range objs {
		pod, ok := obj.(*corev1.Pod)
		if !ok {
			continue
		}
		pods = append(pods, pod)
	}
	return pods, nil
}
