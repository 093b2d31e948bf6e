package engine

import (
	"testing"

	"watchpost/model"
)

func TestAggregateStatus(t *testing.T) {
	s := model.CheckResult{Status: model.StatusSuccess}
	w := model.CheckResult{Status: model.StatusWarning}
	f := model.CheckResult{Status: model.StatusFailure}

	cases := []struct {
		name    string
		results []model.CheckResult
		want    model.ResourceStatus
	}{
		{"no results", nil, model.ResourceUnknown},
		{"all success", []model.CheckResult{s, s, s}, model.ResourceUp},
		{"single success", []model.CheckResult{s}, model.ResourceUp},
		{"all failure", []model.CheckResult{f, f}, model.ResourceDown},
		{"single failure", []model.CheckResult{f}, model.ResourceDown},
		{"mixed failure", []model.CheckResult{s, f}, model.ResourceDegraded},
		{"warning only", []model.CheckResult{s, w}, model.ResourceDegraded},
		{"all warning", []model.CheckResult{w, w}, model.ResourceDegraded},
		{"failure and warning", []model.CheckResult{f, w}, model.ResourceDegraded},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := AggregateStatus(tc.results); got != tc.want {
				t.Errorf("AggregateStatus = %q, want %q", got, tc.want)
			}
		})
	}
}
