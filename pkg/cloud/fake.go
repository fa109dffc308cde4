package cloud

import (
	"context"
	"fmt"
	"sync"
)

// FakeClient is a zero-I/O ASGClient used to test the effector and the
// driver loop without a real cloud account. SetDesiredCapacity enforces the
// same min/max clamp a real provider API would.
type FakeClient struct {
	mu   sync.Mutex
	asgs map[string]ASGInfo

	// RejectNames, if set, makes SetDesiredCapacity fail for the named
	// ASGs, to exercise EffectorError handling in tests.
	RejectNames map[string]bool
}

// NewFakeClient seeds a FakeClient with the given ASGs.
func NewFakeClient(asgs ...ASGInfo) *FakeClient {
	m := make(map[string]ASGInfo, len(asgs))
	for _, a := range asgs {
		m[a.Name] = a
	}
	return &FakeClient{asgs: m}
}

func (f *FakeClient) DescribeASGs(ctx context.Context, names ...string) ([]ASGInfo, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if len(names) == 0 {
		out := make([]ASGInfo, 0, len(f.asgs))
		for _, a := range f.asgs {
			out = append(out, a)
		}
		return out, nil
	}
	out := make([]ASGInfo, 0, len(names))
	for _, n := range names {
		a, ok := f.asgs[n]
		if !ok {
			return nil, fmt.Errorf("fake cloud: unknown asg %q", n)
		}
		out = append(out, a)
	}
	return out, nil
}

func (f *FakeClient) SetDesiredCapacity(ctx context.Context, name string, value int32) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.RejectNames[name] {
		return fmt.Errorf("fake cloud: rejected set_desired_capacity for %q", name)
	}

	a, ok := f.asgs[name]
	if !ok {
		return fmt.Errorf("fake cloud: unknown asg %q", name)
	}
	if value < a.Min || value > a.Max {
		return fmt.Errorf("fake cloud: desired %d outside [%d,%d] for asg %q", value, a.Min, a.Max, name)
	}
	a.Desired = value
	f.asgs[name] = a
	return nil
}

// Desired returns the current desired capacity the fake holds for name, for
// assertions in tests.
func (f *FakeClient) Desired(name string) (int32, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	a, ok := f.asgs[name]
	return a.Desired, ok
}
