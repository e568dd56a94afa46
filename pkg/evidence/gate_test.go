package evidence

import (
	"reflect"
	"testing"
)

func TestEvaluate(t *testing.T) {
	tests := []struct {
		name         string
		bundle       Bundle
		wantEligible bool
		wantReasons  []string
	}{
		{
			name:         "all thresholds met",
			bundle:       Bundle{ResourceAvailable: true, RelationCount: 3, CaseCount: 2},
			wantEligible: true,
			wantReasons:  nil,
		},
		{
			name:         "well above thresholds",
			bundle:       Bundle{ResourceAvailable: true, RelationCount: 10, CaseCount: 7},
			wantEligible: true,
			wantReasons:  nil,
		},
		{
			name:         "resource unavailable",
			bundle:       Bundle{ResourceAvailable: false, RelationCount: 5, CaseCount: 5},
			wantEligible: false,
			wantReasons:  []string{"resource unavailable"},
		},
		{
			name:         "too few relations",
			bundle:       Bundle{ResourceAvailable: true, RelationCount: 2, CaseCount: 2},
			wantEligible: false,
			wantReasons:  []string{"relations<3"},
		},
		{
			name:         "too few cases",
			bundle:       Bundle{ResourceAvailable: true, RelationCount: 3, CaseCount: 1},
			wantEligible: false,
			wantReasons:  []string{"cases<2"},
		},
		{
			name:         "every check fails",
			bundle:       Bundle{ResourceAvailable: false, RelationCount: 0, CaseCount: 0},
			wantEligible: false,
			wantReasons:  []string{"resource unavailable", "relations<3", "cases<2"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			eligible, reasons := Evaluate(tt.bundle)

			if eligible != tt.wantEligible {
				t.Errorf("eligible = %v, want %v", eligible, tt.wantEligible)
			}
			if !reflect.DeepEqual(reasons, tt.wantReasons) {
				t.Errorf("reasons = %v, want %v", reasons, tt.wantReasons)
			}
		})
	}
}

func TestEvaluateIsDeterministic(t *testing.T) {
	bundle := Bundle{ResourceAvailable: false, RelationCount: 2, CaseCount: 1}

	firstEligible, firstReasons := Evaluate(bundle)
	for i := 0; i < 50; i++ {
		eligible, reasons := Evaluate(bundle)
		if eligible != firstEligible || !reflect.DeepEqual(reasons, firstReasons) {
			t.Fatalf("verdict changed between evaluations of the same bundle")
		}
	}
}
