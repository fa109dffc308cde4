package cloud

import (
	"context"
	"time"

	"k8s.io/klog/v2"

	"nodescaler/pkg/nodescalererr"
	"nodescaler/pkg/scaling"
)

// EffectorOptions bound how hard the effector retries a rejected
// SetDesiredCapacity call before giving up on that ASG for this iteration.
type EffectorOptions struct {
	MaxRetries int
	RetryDelay time.Duration
}

// DefaultEffectorOptions matches the retry/backoff shape the resize
// actuator uses for conflicting pod patches, adapted here for ASG writes.
func DefaultEffectorOptions() EffectorOptions {
	return EffectorOptions{MaxRetries: 3, RetryDelay: 200 * time.Millisecond}
}

// Result is the per-ASG outcome of applying a Decision, for the driver to
// log and aggregate.
type Result struct {
	Decision scaling.Decision
	Applied  bool
	Err      error
}

// Apply issues SetDesiredCapacity for every Decision that changed (spec
// §4.7: targets equal to current are no-ops), in the order given. A failure
// on one ASG does not abort the others; each outcome is reported in the
// returned slice regardless of success.
func Apply(ctx context.Context, client ASGClient, decisions []scaling.Decision, opts EffectorOptions) []Result {
	results := make([]Result, 0, len(decisions))
	for _, d := range decisions {
		if d.Err != nil {
			results = append(results, Result{Decision: d, Err: d.Err})
			continue
		}
		if !d.Changed() {
			results = append(results, Result{Decision: d, Applied: false})
			continue
		}
		err := applyOneWithRetry(ctx, client, d, opts)
		if err != nil {
			klog.ErrorS(err, "set_desired_capacity failed", "asg", d.ASG, "desired", d.Final)
			results = append(results, Result{Decision: d, Err: nodescalererr.ForASG(nodescalererr.EffectorError, d.ASG, err.Error())})
			continue
		}
		klog.InfoS("set_desired_capacity applied", "asg", d.ASG, "current", d.Current, "final", d.Final, "reason", d.Reason)
		results = append(results, Result{Decision: d, Applied: true})
	}
	return results
}

func applyOneWithRetry(ctx context.Context, client ASGClient, d scaling.Decision, opts EffectorOptions) error {
	var lastErr error
	for attempt := 0; attempt < opts.MaxRetries; attempt++ {
		lastErr = client.SetDesiredCapacity(ctx, d.ASG, int32(d.Final))
		if lastErr == nil {
			return nil
		}
		if attempt+1 < opts.MaxRetries {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(opts.RetryDelay):
			}
		}
	}
	return lastErr
}
