package quantity

// ResourceVector is the triple (cpu, memory, pods) spec.md §3 defines:
// component-wise add, max, and the >= relation used to decide sufficiency.
type ResourceVector struct {
	CPUMilli    int64
	MemoryBytes int64
	Pods        int64
}

// Add returns the component-wise sum of v and o.
func (v ResourceVector) Add(o ResourceVector) ResourceVector {
	return ResourceVector{
		CPUMilli:    v.CPUMilli + o.CPUMilli,
		MemoryBytes: v.MemoryBytes + o.MemoryBytes,
		Pods:        v.Pods + o.Pods,
	}
}

// Sub returns the component-wise difference of v and o, saturating each
// component at zero.
func (v ResourceVector) Sub(o ResourceVector) ResourceVector {
	return ResourceVector{
		CPUMilli:    saturatingSub(v.CPUMilli, o.CPUMilli),
		MemoryBytes: saturatingSub(v.MemoryBytes, o.MemoryBytes),
		Pods:        saturatingSub(v.Pods, o.Pods),
	}
}

func saturatingSub(a, b int64) int64 {
	d := a - b
	if d < 0 {
		return 0
	}
	return d
}

// Max returns the component-wise maximum of v and o.
func (v ResourceVector) Max(o ResourceVector) ResourceVector {
	return ResourceVector{
		CPUMilli:    maxInt64(v.CPUMilli, o.CPUMilli),
		MemoryBytes: maxInt64(v.MemoryBytes, o.MemoryBytes),
		Pods:        maxInt64(v.Pods, o.Pods),
	}
}

func maxInt64(a, b int64) int64 {
	if a > b {
		return a
	}
	return b
}

// Covers reports whether v can satisfy demand o on every dimension:
// v.cpu >= o.cpu && v.memory >= o.memory && v.pods >= o.pods.
func (v ResourceVector) Covers(o ResourceVector) bool {
	return v.CPUMilli >= o.CPUMilli && v.MemoryBytes >= o.MemoryBytes && v.Pods >= o.Pods
}

// IsZero reports whether every component is zero.
func (v ResourceVector) IsZero() bool {
	return v.CPUMilli == 0 && v.MemoryBytes == 0 && v.Pods == 0
}

// Less implements the total order used to pick the weakest node (spec.md
// §4.4): compare CPU, then memory, then pods.
func (v ResourceVector) Less(o ResourceVector) bool {
	if v.CPUMilli != o.CPUMilli {
		return v.CPUMilli < o.CPUMilli
	}
	if v.MemoryBytes != o.MemoryBytes {
		return v.MemoryBytes < o.MemoryBytes
	}
	return v.Pods < o.Pods
}

func (v ResourceVector) cpu() Quantity    { return Quantity{Dim: CPU, Value: v.CPUMilli} }
func (v ResourceVector) memory() Quantity { return Quantity{Dim: Memory, Value: v.MemoryBytes} }
func (v ResourceVector) pods() Quantity   { return Quantity{Dim: Pods, Value: v.Pods} }

// Buffers bundles the per-dimension multiplicative and additive overhead
// from spec.md §3's Config table.
type Buffers struct {
	CPUPercent    float64
	MemoryPercent float64
	PodsPercent   float64
	CPUFixed      int64
	MemoryFixed   int64
	PodsFixed     int64
}

// Buffered applies spec.md §4.5 step 1 to v, independently on each
// dimension: demand = v*(1+pct) + fixed.
func (v ResourceVector) Buffered(b Buffers) ResourceVector {
	return ResourceVector{
		CPUMilli:    v.cpu().ScaleOnePlusPercentCeil(b.CPUPercent).Value + b.CPUFixed,
		MemoryBytes: v.memory().ScaleOnePlusPercentCeil(b.MemoryPercent).Value + b.MemoryFixed,
		Pods:        v.pods().ScaleOnePlusPercentCeil(b.PodsPercent).Value + b.PodsFixed,
	}
}

// NodesToCover returns the smallest n such that n*unit covers demand
// component-wise (spec.md §4.5 step 2), equivalently
// max over dims of ceil(demand[d]/unit[d]). zeroDim names the first
// dimension for which unit is zero: a zero-capacity weakest-node dimension
// is a fatal input error regardless of demand on that dimension, per
// spec.md §4.5 step 2. ok is false in that case and n is meaningless.
func NodesToCover(demand, unit ResourceVector) (n int64, zeroDim Dimension, ok bool) {
	dims := []struct {
		dim         Dimension
		demandValue int64
		unitValue   int64
	}{
		{CPU, demand.CPUMilli, unit.CPUMilli},
		{Memory, demand.MemoryBytes, unit.MemoryBytes},
		{Pods, demand.Pods, unit.Pods},
	}

	var best int64
	for _, d := range dims {
		if d.unitValue <= 0 {
			return 0, d.dim, false
		}
		dq := Quantity{Dim: d.dim, Value: d.demandValue}
		uq := Quantity{Dim: d.dim, Value: d.unitValue}
		count, _ := dq.CeilDiv(uq)
		if count > best {
			best = count
		}
	}
	return best, 0, true
}
