// Package scaling implements the decision core: turning per-partition
// demand and weakest-node profiles into a required node count per ASG, then
// damping scale-down and clamping into the ASG's [min, max] band.
package scaling

import (
	"sort"

	"nodescaler/pkg/cluster"
	"nodescaler/pkg/nodescalererr"
	"nodescaler/pkg/partition"
	"nodescaler/pkg/quantity"
)

// Reason codes a Decision is tagged with, for the one-line-per-ASG log the
// driver emits every iteration.
const (
	ReasonUnchanged        = "unchanged"
	ReasonScaleUp          = "scale_up"
	ReasonScaleDownClamped = "scale_down_clamped"
	ReasonSkippedNoNodes   = "skipped_no_nodes"
	ReasonError            = "error"
)

// ASGInfo is the cloud-reported metadata for one ASG: its current desired
// count, its provider-enforced [min, max] band, and the AZs the ASG spans.
// AZs is the full cloud-reported span, independent of which AZs currently
// hold a live node, so a zero-node AZ can still be seeded a Partition and
// scaled up from zero (spec §3's ASGState/Partition data model).
type ASGInfo struct {
	Name    string
	Min     int64
	Max     int64
	Desired int64
	AZs     []string
}

// Buffers and damping knobs, read once from Config and passed explicitly
// into Compute (spec §9: no ambient state).
type Params struct {
	Buffers            quantity.Buffers
	BufferSpareNodes   int64
	IncludeMasterNodes bool
	ScaleDownStepFixed int64
	ScaleDownStepPct   float64
}

// Decision is the computed outcome for one ASG.
type Decision struct {
	ASG      string
	Current  int64
	Required int64
	Final    int64
	Reason   string
	Err      error
}

// Changed reports whether the effector must act on this decision.
func (d Decision) Changed() bool {
	return d.Err == nil && d.Final != d.Current
}

// Compute is the pure autoscale decision function (spec §1/§5): given the
// classified node index, aggregated partitions, and each ASG's cloud state,
// it returns one Decision per ASG in deterministic (name-ascending) order.
// It performs no I/O.
func Compute(
	idx *cluster.Index,
	partitions map[string]map[string]*partition.Partition,
	asgInfos map[string]ASGInfo,
	params Params,
) []Decision {
	names := make([]string, 0, len(asgInfos))
	for name := range asgInfos {
		names = append(names, name)
	}
	sort.Strings(names)

	decisions := make([]Decision, 0, len(names))
	for _, name := range names {
		decisions = append(decisions, computeOne(name, partitions[name], asgInfos[name], params))
	}
	return decisions
}

func computeOne(name string, azs map[string]*partition.Partition, info ASGInfo, params Params) Decision {
	if len(azs) == 0 {
		return skippedNoNodes(name, info)
	}

	var required int64
	anyUsable := false

	for _, p := range azs {
		if !p.HasWeakest {
			// No usable nodes in this partition and the ASG-wide fallback
			// (SelectWeakest) found none either: the whole ASG is skipped.
			continue
		}
		anyUsable = true

		demand := p.Usage.Add(p.Pending).Buffered(params.Buffers)
		n, zeroDim, ok := quantity.NodesToCover(demand, p.Weakest)
		if !ok {
			return Decision{
				ASG:     name,
				Current: info.Desired,
				Final:   info.Desired,
				Reason:  ReasonError,
				Err: nodescalererr.ForASG(nodescalererr.InvariantError, name,
					"weakest node has zero "+zeroDim.String()+" capacity"),
			}
		}
		if n < params.BufferSpareNodes {
			n = params.BufferSpareNodes
		}
		required += n
	}

	if !anyUsable {
		return skippedNoNodes(name, info)
	}

	return damp(name, info, required, params)
}

func skippedNoNodes(name string, info ASGInfo) Decision {
	final := info.Desired
	reason := ReasonSkippedNoNodes
	return Decision{ASG: name, Current: info.Desired, Required: info.Desired, Final: final, Reason: reason}
}

// damp applies spec §4.6: scale-ups are never damped; scale-downs are capped
// to the larger of the fixed step and the percentage step (the resolved
// reading of the spec's open question), then the result is clamped into
// [min, max].
func damp(name string, info ASGInfo, required int64, params Params) Decision {
	current := info.Desired

	var final int64
	var reason string

	if required >= current {
		final = required
		reason = ReasonUnchanged
		if required > current {
			reason = ReasonScaleUp
		}
	} else {
		pctStep := ceilPct(current, params.ScaleDownStepPct)
		step := params.ScaleDownStepFixed
		if pctStep > step {
			step = pctStep
		}
		minAllowed := current - step
		final = required
		if final < minAllowed {
			final = minAllowed
		}
		if final == current {
			reason = ReasonUnchanged
		} else {
			reason = ReasonScaleDownClamped
		}
	}

	if final < info.Min {
		final = info.Min
	}
	if final > info.Max {
		final = info.Max
	}
	if final == current {
		reason = ReasonUnchanged
	}

	return Decision{ASG: name, Current: current, Required: required, Final: final, Reason: reason}
}

func ceilPct(current int64, pct float64) int64 {
	if pct <= 0 || current <= 0 {
		return 0
	}
	const scale = 1_000_000
	num := int64(pct * scale)
	total := current * num
	v := total / scale
	if total%scale != 0 {
		v++
	}
	return v
}
