package retry

import (
	"testing"
	"time"
)

func TestDelayModes(t *testing.T) {
	cases := []struct {
		name   string
		policy Policy
		tries  []time.Duration
	}{
		{
			"fixed",
			NewPolicy(BackoffFixed, 2*time.Second, time.Minute, 3),
			[]time.Duration{2 * time.Second, 2 * time.Second, 2 * time.Second},
		},
		{
			"linear",
			NewPolicy(BackoffLinear, time.Second, time.Minute, 3),
			[]time.Duration{time.Second, 2 * time.Second, 3 * time.Second},
		},
		{
			"exponential",
			NewPolicy(BackoffExponential, time.Second, time.Minute, 5),
			[]time.Duration{time.Second, 2 * time.Second, 4 * time.Second, 8 * time.Second},
		},
	}
	for _, tc := range cases {
		for i, want := range tc.tries {
			if got := tc.policy.Delay(i + 1); got != want {
				t.Errorf("%s retry %d: delay = %v, want %v", tc.name, i+1, got, want)
			}
		}
	}
}

func TestDelayCapped(t *testing.T) {
	p := NewPolicy(BackoffExponential, time.Second, 4*time.Second, 10)
	if got := p.Delay(10); got != 4*time.Second {
		t.Errorf("delay = %v, want cap", got)
	}
	if got := p.Delay(0); got != 0 {
		t.Errorf("retry 0 delay = %v, want 0", got)
	}
}

func TestNewPolicyFallbacks(t *testing.T) {
	p := NewPolicy("bogus", 0, 0, -1)
	if p != DefaultPolicy() {
		t.Errorf("invalid inputs must yield defaults, got %+v", p)
	}
	if err := p.Validate(); err != nil {
		t.Errorf("default policy must validate: %v", err)
	}
}
