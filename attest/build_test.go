package attest

import (
	"strings"
	"testing"
	"time"

	"skuldbot.io/attest/control"
	"skuldbot.io/attest/scoring"
)

var buildTime = time.Date(2025, 7, 15, 9, 30, 0, 0, time.UTC)

func testEvaluations() []control.Evaluation {
	return []control.Evaluation{
		{ControlID: "164.312(b)", Framework: "hipaa", Name: "Audit Controls",
			Category: "Technical Safeguards", Status: control.Passed,
			Findings: "Audit logging verified", EvaluatedAt: buildTime},
		{ControlID: "164.312(a)(1)", Framework: "hipaa", Name: "Access Control",
			Category: "Technical Safeguards", Status: control.PartiallyMet,
			Findings:        "Authentication records missing",
			Recommendations: "Provide additional evidence for: authentication_records",
			EvaluatedAt:     buildTime},
		{ControlID: "164.530(j)", Framework: "hipaa", Name: "Documentation Retention",
			Category: "Administrative Safeguards", Status: control.Failed,
			Findings:        "No retention policy on file",
			Recommendations: "Document and enforce a six-year retention policy",
			EvaluatedAt:     buildTime},
	}
}

func testInput() BuildInput {
	return BuildInput{
		Organization: "Acme Health",
		Subject:      "claims-intake-bot",
		GeneratedBy:  "attest-engine",
		Framework:    control.HIPAA,
		GeneratedAt:  buildTime,
		Evaluations:  testEvaluations(),
		Packs: []PackReference{
			{PackID: "pk-1", MerkleRoot: strings.Repeat("ab", 32), ItemCount: 3, Valid: true},
		},
	}
}

func TestBuild_Record(t *testing.T) {
	rec, err := Build(testInput())
	if err != nil {
		t.Fatalf("Build: %v", err)
	}

	if !strings.HasPrefix(rec.Metadata.AttestationID, "ATT-20250715093000-") {
		t.Fatalf("unexpected attestation ID %q", rec.Metadata.AttestationID)
	}
	if len(rec.Metadata.AttestationID) != len("ATT-20250715093000-")+8 {
		t.Fatalf("attestation ID suffix should be 8 hex chars: %q", rec.Metadata.AttestationID)
	}

	if len(rec.ControlsByCategory) != 2 {
		t.Fatalf("categories = %d, want 2", len(rec.ControlsByCategory))
	}
	if rec.ControlsByCategory[0].Category != "Technical Safeguards" {
		t.Fatalf("first-seen category order not preserved")
	}

	// 1 passed + 0.5 partial of 3 effective -> floor(50) = 50, non_compliant.
	if rec.Summary.ComplianceScore != 50 {
		t.Fatalf("score = %d, want 50", rec.Summary.ComplianceScore)
	}
	if rec.Summary.OverallStatus != scoring.NonCompliant {
		t.Fatalf("status = %s, want non_compliant", rec.Summary.OverallStatus)
	}

	if len(rec.Recommendations) != 2 {
		t.Fatalf("recommendations = %d, want 2", len(rec.Recommendations))
	}
	if rec.Recommendations[0] != "[164.312(a)(1)] Provide additional evidence for: authentication_records" {
		t.Fatalf("unexpected recommendation: %q", rec.Recommendations[0])
	}

	if !strings.Contains(rec.ExecutiveSummary, "Compliance Score: 50%") {
		t.Fatalf("executive summary missing score:\n%s", rec.ExecutiveSummary)
	}
	if !strings.Contains(rec.ExecutiveSummary, "HIPAA Security Rule") {
		t.Fatalf("executive summary missing framework display name")
	}
	if !strings.Contains(rec.ExecutiveSummary, "non-compliant with critical findings") {
		t.Fatalf("executive summary missing status description")
	}
}

func TestBuild_RejectsMissingInputs(t *testing.T) {
	cases := []struct {
		name   string
		mutate func(*BuildInput)
		ruleID string
	}{
		{"organization", func(in *BuildInput) { in.Organization = "" }, "ATT-BUILD-101"},
		{"subject", func(in *BuildInput) { in.Subject = "" }, "ATT-BUILD-102"},
		{"generatedAt", func(in *BuildInput) { in.GeneratedAt = time.Time{} }, "ATT-BUILD-103"},
		{"framework", func(in *BuildInput) { in.Framework = "" }, "ATT-BUILD-104"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			in := testInput()
			tc.mutate(&in)
			_, err := Build(in)
			if err == nil {
				t.Fatalf("Build should fail")
			}
			if !IsKind(err, KindBuild) {
				t.Fatalf("kind = %v, want Build", err)
			}
			if RuleID(err) != tc.ruleID {
				t.Fatalf("rule = %s, want %s", RuleID(err), tc.ruleID)
			}
		})
	}
}

func TestBuild_InvalidStatusAbortsWholeBuild(t *testing.T) {
	in := testInput()
	in.Evaluations = append(in.Evaluations, control.Evaluation{
		ControlID: "164.312(d)", Category: "Technical Safeguards", Status: "maybe",
	})
	rec, err := Build(in)
	if err == nil {
		t.Fatalf("Build with unknown status should fail")
	}
	if !IsKind(err, KindStatus) {
		t.Fatalf("kind = %v, want Status", err)
	}
	if rec.Metadata.AttestationID != "" {
		t.Fatalf("no partial record may be returned on error")
	}
}

func TestBuild_CustomPolicyThreshold(t *testing.T) {
	in := testInput()
	in.Policy = scoring.Policy{PartialWeightNum: 1, PartialWeightDen: 2, PartialThreshold: 50}
	rec, err := Build(in)
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	if rec.Summary.OverallStatus != scoring.PartiallyCompliant {
		t.Fatalf("score 50 under threshold 50 should be partially_compliant, got %s", rec.Summary.OverallStatus)
	}
}
