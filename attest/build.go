package attest

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strings"
	"time"

	"skuldbot.io/attest/control"
	"skuldbot.io/attest/scoring"
)

// BuildInput is everything the builder needs. The builder is a pure
// transform: identical inputs with identical GeneratedAt yield a Record whose
// canonical serialization is byte-identical.
type BuildInput struct {
	Organization string
	Subject      string
	GeneratedBy  string
	Framework    control.Framework
	GeneratedAt  time.Time

	Evaluations []control.Evaluation
	Packs       []PackReference

	// Policy fields left unset take the scoring defaults.
	Policy scoring.Policy
}

// Build assembles an unsealed attestation record. It aggregates the
// evaluations, computes the summary, and generates the executive summary and
// recommendation list. Any invalid input aborts with no partial record: an
// incorrect attestation is worse than none.
func Build(in BuildInput) (Record, error) {
	if in.Organization == "" {
		return Record{}, newError(KindBuild, "ATT-BUILD-101", "missing organization")
	}
	if in.Subject == "" {
		return Record{}, newError(KindBuild, "ATT-BUILD-102", "missing subject")
	}
	if in.GeneratedAt.IsZero() {
		return Record{}, newError(KindBuild, "ATT-BUILD-103", "missing generatedAt")
	}
	if in.Framework == "" {
		return Record{}, newError(KindBuild, "ATT-BUILD-104", "missing framework")
	}

	agg, err := control.Aggregate(in.Evaluations)
	if err != nil {
		return Record{}, wrapError(KindStatus, "ATT-STATUS-101", "invalid control evaluation", err)
	}
	summary := scoring.ScoreWithPolicy(agg.Counts, in.Policy)

	generatedAt := in.GeneratedAt.UTC()
	rec := Record{
		Version: FormatVersion,
		Metadata: Metadata{
			AttestationID: attestationID(in.Organization, in.Subject, in.Framework, generatedAt),
			Framework:     in.Framework,
			Organization:  in.Organization,
			Subject:       in.Subject,
			GeneratedBy:   in.GeneratedBy,
			GeneratedAt:   generatedAt,
		},
		Summary:            summary,
		ControlsByCategory: agg.ByCategory,
		EvidenceReferences: append([]PackReference(nil), in.Packs...),
		ExecutiveSummary:   executiveSummary(in.Framework, in.Organization, in.Subject, summary),
		Recommendations:    recommendations(in.Evaluations),
	}
	return rec, nil
}

// attestationID derives the record ID deterministically from the identifying
// inputs, so rebuilding the same attestation yields the same ID.
func attestationID(org, subject string, fw control.Framework, at time.Time) string {
	stamp := at.UTC().Format("20060102150405")
	components := org + ":" + subject + ":" + string(fw) + ":" + stamp
	sum := sha256.Sum256([]byte(components))
	return "ATT-" + stamp + "-" + strings.ToUpper(hex.EncodeToString(sum[:4]))
}

func frameworkDisplayName(f control.Framework) string {
	switch f {
	case control.HIPAA:
		return "HIPAA Security Rule"
	case control.SOC2:
		return "SOC 2 Type II"
	case control.PCIDSS:
		return "PCI DSS v4.0"
	case control.GDPR:
		return "GDPR Articles"
	}
	return strings.ToUpper(string(f))
}

func statusDescription(s scoring.OverallStatus) string {
	switch s {
	case scoring.Compliant:
		return "fully compliant"
	case scoring.PartiallyCompliant:
		return "partially compliant with noted gaps"
	case scoring.NonCompliant:
		return "non-compliant with critical findings"
	case scoring.PendingReview:
		return "pending manual review for final determination"
	}
	return "under evaluation"
}

func executiveSummary(fw control.Framework, org, subject string, s scoring.Summary) string {
	attention := s.Counts.Failed + s.Counts.PartiallyMet + s.Counts.RequiresReview
	return fmt.Sprintf(`This attestation report certifies that the automated process %q
operated by %s has been evaluated against %s requirements.

Based on automated evidence collection and control evaluation, the process is %s.

Compliance Score: %d%%
Controls Evaluated: %d
Controls Passed: %d
Controls Requiring Attention: %d

This attestation is based on evidence automatically collected during bot execution and
stored in a cryptographically secured evidence pack. The evidence pack includes audit logs,
data lineage records, agent decision documentation, and integrity verification data.`,
		subject, org, frameworkDisplayName(fw), statusDescription(s.OverallStatus),
		s.ComplianceScore, s.Counts.Total, s.Counts.Passed, attention)
}

// recommendations collects per-control remediation advice for every control
// that did not fully pass, in evaluation order.
func recommendations(evals []control.Evaluation) []string {
	var out []string
	for _, e := range evals {
		switch e.Status {
		case control.Failed, control.PartiallyMet, control.RequiresReview:
			if e.Recommendations != "" {
				out = append(out, "["+e.ControlID+"] "+e.Recommendations)
			}
		}
	}
	return out
}
