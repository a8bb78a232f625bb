package scoring

import (
	"testing"

	"skuldbot.io/attest/control"
)

func TestScore_Table(t *testing.T) {
	cases := []struct {
		name       string
		counts     control.Counts
		wantScore  int
		wantStatus OverallStatus
	}{
		{
			name:       "all passed",
			counts:     control.Counts{Total: 5, Passed: 5},
			wantScore:  100,
			wantStatus: Compliant,
		},
		{
			name:       "spec scenario 8 passed 1 partial 1 failed",
			counts:     control.Counts{Total: 10, Passed: 8, PartiallyMet: 1, Failed: 1},
			wantScore:  85,
			wantStatus: PartiallyCompliant,
		},
		{
			name:       "all not applicable is vacuously compliant",
			counts:     control.Counts{Total: 4, NotApplicable: 4},
			wantScore:  100,
			wantStatus: Compliant,
		},
		{
			name:       "nothing in scope but review outstanding",
			counts:     control.Counts{Total: 5, NotApplicable: 4, RequiresReview: 1},
			wantScore:  0,
			wantStatus: PendingReview,
		},
		{
			name:       "review overrides perfect score",
			counts:     control.Counts{Total: 5, Passed: 4, RequiresReview: 1},
			wantScore:  80,
			wantStatus: PendingReview,
		},
		{
			name:       "below threshold",
			counts:     control.Counts{Total: 10, Passed: 6, Failed: 4},
			wantScore:  60,
			wantStatus: NonCompliant,
		},
		{
			name:       "exactly at threshold",
			counts:     control.Counts{Total: 10, Passed: 7, Failed: 3},
			wantScore:  70,
			wantStatus: PartiallyCompliant,
		},
		{
			name:       "floor truncates toward zero",
			counts:     control.Counts{Total: 3, Passed: 2, Failed: 1},
			wantScore:  66, // 66.66... truncates, never rounds up
			wantStatus: NonCompliant,
		},
		{
			name:       "partial credit is exactly half",
			counts:     control.Counts{Total: 2, PartiallyMet: 2},
			wantScore:  50,
			wantStatus: NonCompliant,
		},
		{
			name:       "not applicable excluded from denominator",
			counts:     control.Counts{Total: 10, Passed: 5, NotApplicable: 5},
			wantScore:  100,
			wantStatus: Compliant,
		},
		{
			name:       "score 100 with a failure is not compliant",
			counts:     control.Counts{Total: 10, Passed: 9, Failed: 1, NotApplicable: 0, PartiallyMet: 0},
			wantScore:  90,
			wantStatus: PartiallyCompliant,
		},
		{
			name:       "empty counts",
			counts:     control.Counts{},
			wantScore:  100,
			wantStatus: Compliant,
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got := Score(tc.counts)
			if got.ComplianceScore != tc.wantScore {
				t.Fatalf("score = %d, want %d", got.ComplianceScore, tc.wantScore)
			}
			if got.OverallStatus != tc.wantStatus {
				t.Fatalf("status = %q, want %q", got.OverallStatus, tc.wantStatus)
			}
		})
	}
}

func TestScore_Idempotent(t *testing.T) {
	counts := control.Counts{Total: 12, Passed: 7, PartiallyMet: 2, Failed: 2, NotApplicable: 1}
	first := Score(counts)
	for i := 0; i < 100; i++ {
		if got := Score(counts); got != first {
			t.Fatalf("run %d: result changed: %+v vs %+v", i, got, first)
		}
	}
}

func TestScore_ReviewPrecedenceOverEverything(t *testing.T) {
	counts := control.Counts{Total: 10, Passed: 9, RequiresReview: 1}
	got := Score(counts)
	if got.OverallStatus != PendingReview {
		t.Fatalf("status = %q, want pending_review even at score %d", got.OverallStatus, got.ComplianceScore)
	}
}

func TestScoreWithPolicy_PartiallySpecifiedPolicy(t *testing.T) {
	// Only the threshold is negotiated; the unset weight must fall back to
	// 1/2 instead of dividing by zero.
	counts := control.Counts{Total: 10, Passed: 8}
	got := ScoreWithPolicy(counts, Policy{PartialThreshold: 80})
	if got.ComplianceScore != 80 {
		t.Fatalf("score = %d, want 80", got.ComplianceScore)
	}
	if got.OverallStatus != PartiallyCompliant {
		t.Fatalf("status = %q, want %q", got.OverallStatus, PartiallyCompliant)
	}
}

func TestScoreWithPolicy_ZeroPolicyMatchesDefault(t *testing.T) {
	counts := control.Counts{Total: 10, Passed: 7, PartiallyMet: 2, Failed: 1}
	got := ScoreWithPolicy(counts, Policy{})
	if want := Score(counts); got != want {
		t.Fatalf("zero policy = %+v, want default %+v", got, want)
	}
}

func TestScoreWithPolicy_CustomThreshold(t *testing.T) {
	counts := control.Counts{Total: 10, Passed: 6, Failed: 4}
	p := DefaultPolicy()
	p.PartialThreshold = 60
	got := ScoreWithPolicy(counts, p)
	if got.OverallStatus != PartiallyCompliant {
		t.Fatalf("status = %q, want partially_compliant at custom threshold", got.OverallStatus)
	}
}
