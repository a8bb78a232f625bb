// Package scoring converts control counts into a deterministic compliance
// score and an overall status classification.
//
// The arithmetic is exact integer math so attestations are bit-for-bit
// reproducible: no floats, and rounding always truncates toward zero so a
// score never overstates compliance.
package scoring

import (
	"skuldbot.io/attest/control"
)

// OverallStatus classifies a scored attestation.
type OverallStatus string

const (
	Compliant          OverallStatus = "compliant"
	PartiallyCompliant OverallStatus = "partially_compliant"
	NonCompliant       OverallStatus = "non_compliant"
	PendingReview      OverallStatus = "pending_review"
)

// Policy carries the tunable scoring constants. The weights and thresholds
// are policy, not law: auditors may agree different ones per engagement.
// Unset fields take the DefaultPolicy values, so a caller may specify only
// the constants it negotiates.
type Policy struct {
	// PartialWeightNum/Den weight partially-met controls. Default 1/2.
	PartialWeightNum int
	PartialWeightDen int
	// PartialThreshold is the minimum score classified partially_compliant.
	// Default 70.
	PartialThreshold int
}

// normalized fills unset fields with their defaults. The weight must never
// reach the score division as zero.
func (p Policy) normalized() Policy {
	d := DefaultPolicy()
	if p.PartialWeightDen <= 0 {
		p.PartialWeightNum = d.PartialWeightNum
		p.PartialWeightDen = d.PartialWeightDen
	}
	if p.PartialThreshold <= 0 {
		p.PartialThreshold = d.PartialThreshold
	}
	return p
}

// DefaultPolicy is half credit for partial controls and a 70-point
// partially-compliant floor.
func DefaultPolicy() Policy {
	return Policy{PartialWeightNum: 1, PartialWeightDen: 2, PartialThreshold: 70}
}

// Summary is the derived compliance summary embedded in an attestation.
// It is always recomputed from evaluations, never hand-edited.
type Summary struct {
	Counts          control.Counts `json:"counts"`
	ComplianceScore int            `json:"complianceScore"`
	OverallStatus   OverallStatus  `json:"overallStatus"`
}

// Score computes the compliance score and status for counts under the
// default policy.
func Score(counts control.Counts) Summary {
	return ScoreWithPolicy(counts, DefaultPolicy())
}

// ScoreWithPolicy computes the compliance score and status for counts.
//
// Not-applicable controls are excluded from the denominator: they are out of
// scope, not failures. With nothing in scope the attestation is vacuously
// compliant unless manual review is outstanding. Classification priority is
// fixed: outstanding review always overrides the numeric score.
func ScoreWithPolicy(counts control.Counts, p Policy) Summary {
	p = p.normalized()
	s := Summary{Counts: counts}

	effective := counts.Total - counts.NotApplicable
	if effective <= 0 {
		s.ComplianceScore = 100
		if counts.RequiresReview > 0 {
			s.OverallStatus = PendingReview
		} else {
			s.OverallStatus = Compliant
		}
		return s
	}

	// floor(100 * (passed + num/den*partial) / effective), exactly.
	num := 100 * (counts.Passed*p.PartialWeightDen + counts.PartiallyMet*p.PartialWeightNum)
	s.ComplianceScore = num / (p.PartialWeightDen * effective)

	switch {
	case counts.RequiresReview > 0:
		s.OverallStatus = PendingReview
	case s.ComplianceScore == 100 && counts.Failed == 0:
		s.OverallStatus = Compliant
	case s.ComplianceScore >= p.PartialThreshold:
		s.OverallStatus = PartiallyCompliant
	default:
		s.OverallStatus = NonCompliant
	}
	return s
}
