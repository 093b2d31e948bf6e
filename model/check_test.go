package model

import (
	"testing"
	"time"
)

func TestOperatorCompare(t *testing.T) {
	cases := []struct {
		op        Operator
		value     float64
		threshold float64
		want      bool
	}{
		{OpGT, 5, 3, true},
		{OpGT, 3, 3, false},
		{OpGTE, 3, 3, true},
		{OpGTE, 2, 3, false},
		{OpLT, 2, 3, true},
		{OpLT, 3, 3, false},
		{OpLTE, 3, 3, true},
		{OpLTE, 4, 3, false},
		{"eq", 3, 3, false}, // unknown operator never matches
	}
	for _, tc := range cases {
		if got := tc.op.Compare(tc.value, tc.threshold); got != tc.want {
			t.Errorf("%q.Compare(%v, %v) = %v, want %v", tc.op, tc.value, tc.threshold, got, tc.want)
		}
	}
}

func TestCheckTimeout(t *testing.T) {
	c := CheckDefinition{}
	if c.Timeout() != 10*time.Second {
		t.Errorf("default Timeout = %v, want 10s", c.Timeout())
	}

	c.TimeoutSeconds = 30
	if c.Timeout() != 30*time.Second {
		t.Errorf("Timeout = %v, want 30s", c.Timeout())
	}

	c.TimeoutSeconds = -1
	if c.Timeout() != 10*time.Second {
		t.Errorf("negative TimeoutSeconds: Timeout = %v, want 10s", c.Timeout())
	}
}

func TestCheckTypes(t *testing.T) {
	types := []CheckType{
		CheckHTTP, CheckKeyword, CheckSSL, CheckPort, CheckPing,
		CheckHeartbeat, CheckAzureMetric, CheckAzureHealth,
	}
	seen := map[CheckType]bool{}
	for _, ct := range types {
		if seen[ct] {
			t.Errorf("duplicate check type: %q", ct)
		}
		seen[ct] = true
		if string(ct) == "" {
			t.Error("empty check type string")
		}
	}
}

func TestResultFailed(t *testing.T) {
	if (CheckResult{Status: StatusSuccess}).Failed() {
		t.Error("success counts as failed")
	}
	if (CheckResult{Status: StatusWarning}).Failed() {
		t.Error("warning counts as failed")
	}
	if !(CheckResult{Status: StatusFailure}).Failed() {
		t.Error("failure does not count as failed")
	}
}
