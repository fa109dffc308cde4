// Package driver wires the decision core to the outside world: it owns the
// single-threaded polling loop that fetches orchestrator and cloud
// snapshots, runs the pure decision function, and issues effector calls.
package driver

import (
	"context"
	"time"

	corev1 "k8s.io/api/core/v1"
	"k8s.io/klog/v2"

	"nodescaler/pkg/cloud"
	"nodescaler/pkg/cluster"
	"nodescaler/pkg/config"
	"nodescaler/pkg/metrics"
	"nodescaler/pkg/nodescalererr"
	"nodescaler/pkg/orchestrator"
	"nodescaler/pkg/partition"
	"nodescaler/pkg/quantity"
	"nodescaler/pkg/scaling"
)

// Driver runs the outer iteration loop described in spec §5: wake every
// interval, fetch both snapshots, compute, then apply serially.
type Driver struct {
	cfg          *config.Config
	orchestrator orchestrator.Reader
	cloudClient  cloud.ASGClient
	effectorOpts cloud.EffectorOptions
	health       *Health

	// knownASGs is the set of ASG names seen in the previous iteration, so
	// runIteration can tell which ones dropped out of the cloud's report
	// and clear their metrics. Only ever touched from runIteration, which
	// spec §5 guarantees runs with no intra-iteration concurrency.
	knownASGs map[string]bool
}

// New builds a Driver from its dependencies. cfg is assumed already
// validated (config.LoadConfig does this).
func New(cfg *config.Config, reader orchestrator.Reader, cloudClient cloud.ASGClient) *Driver {
	return &Driver{
		cfg:          cfg,
		orchestrator: reader,
		cloudClient:  cloudClient,
		effectorOpts: cloud.DefaultEffectorOptions(),
		health:       NewHealth(),
	}
}

// Health exposes the driver's health tracker, e.g. for wiring into an HTTP
// health server.
func (d *Driver) Health() *Health { return d.health }

// Run executes iterations on cfg.IntervalSeconds until ctx is cancelled, or
// a single time if cfg.Once is set. It returns the error from the last
// iteration if cfg.Once and that iteration failed fatally (SnapshotError),
// matching the CLI's non-zero exit code contract for --once.
func (d *Driver) Run(ctx context.Context) error {
	if d.cfg.Once {
		return d.runIteration(ctx)
	}

	ticker := time.NewTicker(d.cfg.IntervalDuration())
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			klog.InfoS("Driver shutting down", "reason", ctx.Err())
			return nil
		case <-ticker.C:
			if err := d.runIteration(ctx); err != nil {
				klog.ErrorS(err, "Iteration failed")
			}
		}
	}
}

func (d *Driver) runIteration(ctx context.Context) error {
	start := time.Now()
	defer func() {
		metrics.ObserveIterationDuration(time.Since(start).Seconds())
	}()

	rawNodes, rawPods, asgInfos, err := d.fetchSnapshots(ctx)
	if err != nil {
		d.health.RecordIterationError(err)
		return err
	}

	d.clearStaleASGMetrics(asgInfos)

	decisions, err := d.computeDecisions(rawNodes, rawPods, asgInfos)
	if err != nil {
		d.health.RecordIterationError(err)
		return err
	}

	results := cloud.Apply(ctx, d.cloudClient, decisions, d.effectorOpts)
	d.logResults(results)
	d.health.RecordIterationSuccess()
	return nil
}

// fetchSnapshots collects the orchestrator and cloud reads. Implementations
// may parallelise these (spec §5), but the driver keeps it simple and
// sequential since both are cheap local informer/cache reads.
func (d *Driver) fetchSnapshots(ctx context.Context) ([]*corev1.Node, []*corev1.Pod, map[string]scaling.ASGInfo, error) {
	nodes, err := d.orchestrator.ListNodes(ctx)
	if err != nil {
		return nil, nil, nil, nodescalererr.Wrap(nodescalererr.SnapshotError, "list_nodes failed", err)
	}
	pods, err := d.orchestrator.ListPods(ctx)
	if err != nil {
		return nil, nil, nil, nodescalererr.Wrap(nodescalererr.SnapshotError, "list_pods failed", err)
	}

	// No name filter: this must return every ASG the cloud knows about,
	// not just the ones with a currently-live node, so an ASG previously
	// scaled to zero (or one whose only AZ was just added) still enters
	// the decision.
	cloudASGs, err := d.cloudClient.DescribeASGs(ctx)
	if err != nil {
		return nil, nil, nil, nodescalererr.Wrap(nodescalererr.SnapshotError, "describe_asgs failed", err)
	}

	infos := make(map[string]scaling.ASGInfo, len(cloudASGs))
	for _, a := range cloudASGs {
		infos[a.Name] = scaling.ASGInfo{
			Name:    a.Name,
			Min:     int64(a.Min),
			Max:     int64(a.Max),
			Desired: int64(a.Desired),
			AZs:     a.AZs,
		}
	}

	return nodes, pods, infos, nil
}

// clearStaleASGMetrics drops the per-ASG desired/required gauges (see
// metrics.ClearASGMetrics) for any ASG that was present in the previous
// iteration's cloud report but is absent from this one.
func (d *Driver) clearStaleASGMetrics(asgInfos map[string]scaling.ASGInfo) {
	for name := range d.knownASGs {
		if _, ok := asgInfos[name]; !ok {
			metrics.ClearASGMetrics(name)
		}
	}
	knownASGs := make(map[string]bool, len(asgInfos))
	for name := range asgInfos {
		knownASGs[name] = true
	}
	d.knownASGs = knownASGs
}

func (d *Driver) computeDecisions(rawNodes []*corev1.Node, rawPods []*corev1.Pod, asgInfos map[string]scaling.ASGInfo) ([]scaling.Decision, error) {
	labels := cluster.Labels{ASGName: d.cfg.ASGNameLabel, AZ: d.cfg.AZLabel}

	classified := make([]cluster.Node, 0, len(rawNodes))
	for _, n := range rawNodes {
		classified = append(classified, cluster.Classify(n, labels))
	}
	idx := cluster.NewIndex(classified)

	pods := make([]partition.Pod, 0, len(rawPods))
	for _, p := range rawPods {
		pods = append(pods, translatePod(p))
	}

	parts, pending, dataErrs := partition.Aggregate(idx, pods, d.cfg.IncludeMasterNodes)
	for _, podID := range dataErrs.UnknownAssignedNode {
		klog.Warningf("pod %s assigned to unknown node; treated as pending", podID)
	}

	knownAZs := make(map[string][]string, len(asgInfos))
	for name, info := range asgInfos {
		knownAZs[name] = info.AZs
	}
	partition.SeedKnownAZs(parts, knownAZs)

	partition.Distribute(parts, pending, d.cfg.IncludeMasterNodes)
	if !pending.IsZero() && allPartitionsEmpty(parts) {
		metrics.RecordPendingUnsatisfiable()
		klog.Warningf("pending demand %v has no partition to distribute onto", pending)
	}
	partition.SelectWeakest(parts, d.cfg.IncludeMasterNodes)

	buffers, err := d.cfg.Buffers()
	if err != nil {
		return nil, nodescalererr.Wrap(nodescalererr.ConfigError, "resolving buffers", err)
	}
	params := scaling.Params{
		Buffers:            buffers,
		BufferSpareNodes:   d.cfg.BufferSpareNodes,
		IncludeMasterNodes: d.cfg.IncludeMasterNodes,
		ScaleDownStepFixed: d.cfg.ScaleDownStepFixed,
		ScaleDownStepPct:   d.cfg.ScaleDownStepPct,
	}

	decisions := scaling.Compute(idx, parts, asgInfos, params)

	for asg, azs := range parts {
		for az, p := range azs {
			demand := p.Usage.Add(p.Pending).Buffered(buffers)
			metrics.RecordPartitionDemand(asg, az, demand.CPUMilli, demand.MemoryBytes)
		}
	}
	for _, dec := range decisions {
		metrics.RecordDecision(dec.ASG, dec.Required, dec.Final)
	}

	return decisions, nil
}

func allPartitionsEmpty(parts map[string]map[string]*partition.Partition) bool {
	for _, azs := range parts {
		if len(azs) > 0 {
			return false
		}
	}
	return true
}

func translatePod(p *corev1.Pod) partition.Pod {
	requests := sumContainerRequests(p)
	return partition.Pod{
		Namespace:    p.Namespace,
		Name:         p.Name,
		Phase:        string(p.Status.Phase),
		AssignedNode: p.Spec.NodeName,
		HasAssigned:  p.Spec.NodeName != "",
		Requests:     requests,
	}
}

func sumContainerRequests(p *corev1.Pod) quantity.ResourceVector {
	var cpuMilli, memBytes int64
	for _, c := range p.Spec.Containers {
		if q, ok := c.Resources.Requests[corev1.ResourceCPU]; ok {
			cpuMilli += q.MilliValue()
		}
		if q, ok := c.Resources.Requests[corev1.ResourceMemory]; ok {
			memBytes += q.Value()
		}
	}
	return quantity.ResourceVector{CPUMilli: cpuMilli, MemoryBytes: memBytes, Pods: 1}
}

func (d *Driver) logResults(results []cloud.Result) {
	for _, r := range results {
		switch {
		case r.Err != nil:
			klog.ErrorS(r.Err, "ASG decision error", "asg", r.Decision.ASG, "reason", scaling.ReasonError)
			metrics.RecordEffectorCall(r.Decision.ASG, false)
		case r.Applied:
			klog.InfoS("ASG scaled", "asg", r.Decision.ASG, "current", r.Decision.Current,
				"final", r.Decision.Final, "reason", r.Decision.Reason)
			metrics.RecordEffectorCall(r.Decision.ASG, true)
		default:
			klog.V(2).InfoS("ASG unchanged", "asg", r.Decision.ASG, "desired", r.Decision.Final,
				"reason", r.Decision.Reason)
		}
	}
}
