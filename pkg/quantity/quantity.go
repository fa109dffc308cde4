// Package quantity implements the resource arithmetic that the rest of
// nodescaler builds on: parsing and normalizing CPU, memory and pod-count
// quantities, and the non-negative, dimension-tagged scalar operations
// (add, compare, scale, max) the autoscale decision needs.
package quantity

import (
	"fmt"
	"math"

	"k8s.io/apimachinery/pkg/api/resource"
)

// Dimension identifies which resource axis a Quantity measures.
type Dimension int

const (
	CPU Dimension = iota
	Memory
	Pods
)

func (d Dimension) String() string {
	switch d {
	case CPU:
		return "cpu"
	case Memory:
		return "memory"
	case Pods:
		return "pods"
	default:
		return "unknown"
	}
}

// Quantity is a non-negative scalar tagged by dimension. Internally CPU is
// milli-cores, memory is bytes and pods is a plain count, matching the
// integer representation spec.md §4.1 requires.
type Quantity struct {
	Dim   Dimension
	Value int64
}

// Zero returns the additive identity for dim.
func Zero(dim Dimension) Quantity {
	return Quantity{Dim: dim}
}

func (q Quantity) mustSameDim(o Quantity) {
	if q.Dim != o.Dim {
		panic(fmt.Sprintf("quantity: dimension mismatch: %s vs %s", q.Dim, o.Dim))
	}
}

// Add returns q+o. Panics if the dimensions differ.
func (q Quantity) Add(o Quantity) Quantity {
	q.mustSameDim(o)
	return Quantity{Dim: q.Dim, Value: q.Value + o.Value}
}

// Sub returns q-o, saturating at zero rather than going negative.
func (q Quantity) Sub(o Quantity) Quantity {
	q.mustSameDim(o)
	v := q.Value - o.Value
	if v < 0 {
		v = 0
	}
	return Quantity{Dim: q.Dim, Value: v}
}

// Cmp returns -1, 0 or 1 as q is less than, equal to, or greater than o.
func (q Quantity) Cmp(o Quantity) int {
	q.mustSameDim(o)
	switch {
	case q.Value < o.Value:
		return -1
	case q.Value > o.Value:
		return 1
	default:
		return 0
	}
}

// GTE reports whether q >= o.
func (q Quantity) GTE(o Quantity) bool { return q.Cmp(o) >= 0 }

// Max returns the component-wise larger of a and b.
func Max(a, b Quantity) Quantity {
	a.mustSameDim(b)
	if a.Value >= b.Value {
		return a
	}
	return b
}

// percentScale is the fixed-point denominator used to turn a float64
// percentage into an exact rational before ceiling division, so buffer math
// never depends on binary floating point rounding of decimal percentages.
const percentScale = 1_000_000

// ScaleOnePlusPercentCeil returns q*(1+pct) rounded UP to the next integer
// unit (pct is a fraction, e.g. 0.10 for 10%). Fractional milli-units are
// never dropped, so the result never under-provisions.
func (q Quantity) ScaleOnePlusPercentCeil(pct float64) Quantity {
	num := int64(math.Round(pct * percentScale))
	den := int64(percentScale)
	total := q.Value * (den + num)
	v := total / den
	if total%den != 0 {
		v++
	}
	return Quantity{Dim: q.Dim, Value: v}
}

// CeilDiv returns ceil(q.Value / unit.Value). The caller is responsible for
// treating unit.Value == 0 as an InvariantError; CeilDiv itself reports it
// back as ok=false rather than dividing by zero.
func (q Quantity) CeilDiv(unit Quantity) (result int64, ok bool) {
	q.mustSameDim(unit)
	if unit.Value <= 0 {
		return 0, false
	}
	v := q.Value / unit.Value
	if q.Value%unit.Value != 0 {
		v++
	}
	return v, true
}

func (q Quantity) String() string {
	return fmt.Sprintf("%d%s", q.Value, q.Dim)
}

// ParseCPU parses a CPU quantity using the orchestrator's canonical
// quantity grammar (decimal and binary SI suffixes, "m" for milli) and
// returns the value in milli-cores.
func ParseCPU(s string) (Quantity, error) {
	rq, err := resource.ParseQuantity(s)
	if err != nil {
		return Quantity{}, fmt.Errorf("parse cpu quantity %q: %w", s, err)
	}
	v := rq.MilliValue()
	if v < 0 {
		return Quantity{}, fmt.Errorf("cpu quantity %q must be non-negative", s)
	}
	return Quantity{Dim: CPU, Value: v}, nil
}

// ParseMemory parses a memory quantity and returns the value in bytes.
func ParseMemory(s string) (Quantity, error) {
	rq, err := resource.ParseQuantity(s)
	if err != nil {
		return Quantity{}, fmt.Errorf("parse memory quantity %q: %w", s, err)
	}
	v := rq.Value()
	if v < 0 {
		return Quantity{}, fmt.Errorf("memory quantity %q must be non-negative", s)
	}
	return Quantity{Dim: Memory, Value: v}, nil
}

// ParsePods builds a Pods-dimension Quantity from a plain count.
func ParsePods(n int64) Quantity {
	if n < 0 {
		n = 0
	}
	return Quantity{Dim: Pods, Value: n}
}

// FormatCPU renders milli-cores back into the orchestrator's canonical
// quantity string (e.g. 500 -> "500m").
func FormatCPU(milli int64) string {
	return resource.NewMilliQuantity(milli, resource.DecimalSI).String()
}

// FormatMemory renders bytes back into the orchestrator's canonical
// quantity string.
func FormatMemory(bytesVal int64) string {
	return resource.NewQuantity(bytesVal, resource.BinarySI).String()
}
