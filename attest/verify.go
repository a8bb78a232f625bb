package attest

import (
	"crypto/ed25519"
	"fmt"

	"skuldbot.io/attest/control"
	"skuldbot.io/attest/evidence"
	"skuldbot.io/attest/keys"
	"skuldbot.io/attest/scoring"
)

// Discrepancy codes. Stable: callers and report renderers branch on them.
const (
	CodeEvidenceAltered  = "evidence-altered"
	CodeSummaryMismatch  = "summary-mismatch"
	CodeSignatureInvalid = "signature-invalid"
)

// Discrepancy describes one verification finding.
type Discrepancy struct {
	Code   string `json:"code"`
	Detail string `json:"detail"`
}

// Report is the outcome of verification. A tampered attestation is an
// expected business outcome, not a fault: Verify never returns an error for
// a mismatch, it enumerates everything wrong in one pass.
type Report struct {
	Valid         bool          `json:"valid"`
	Discrepancies []Discrepancy `json:"discrepancies"`
}

// Verify independently re-checks a sealed record under the default scoring
// policy: evidence roots against src, the stored summary against a recount of
// the record's own evaluations, and the signature against pub. All three
// checks always run; Valid is true iff every one passes.
func Verify(s *SealedRecord, pub keys.PublicKey, src evidence.Source) Report {
	return VerifyWithPolicy(s, pub, src, scoring.DefaultPolicy())
}

// VerifyWithPolicy is Verify with an explicit scoring policy, for records
// built under non-default thresholds.
func VerifyWithPolicy(s *SealedRecord, pub keys.PublicKey, src evidence.Source, policy scoring.Policy) Report {
	var out Report
	if s == nil {
		out.Discrepancies = append(out.Discrepancies,
			Discrepancy{Code: CodeSignatureInvalid, Detail: "no sealed record"})
		return out
	}
	rec := s.record

	// Check 1: every referenced evidence pack's current root.
	for _, ref := range rec.EvidenceReferences {
		root, err := src.Root(ref.PackID)
		if err != nil {
			out.Discrepancies = append(out.Discrepancies, Discrepancy{
				Code:   CodeEvidenceAltered,
				Detail: fmt.Sprintf("pack %s: %v", ref.PackID, err),
			})
			continue
		}
		if root.Hex() != ref.MerkleRoot {
			out.Discrepancies = append(out.Discrepancies, Discrepancy{
				Code:   CodeEvidenceAltered,
				Detail: fmt.Sprintf("pack %s: merkle root changed since sealing", ref.PackID),
			})
		}
	}

	// Check 2: the stored summary against a recount of the record's own
	// grouped evaluations.
	counts, err := control.Recount(rec.ControlsByCategory)
	if err != nil {
		out.Discrepancies = append(out.Discrepancies, Discrepancy{
			Code:   CodeSummaryMismatch,
			Detail: fmt.Sprintf("cannot recount evaluations: %v", err),
		})
	} else if got := scoring.ScoreWithPolicy(counts, policy); got != rec.Summary {
		out.Discrepancies = append(out.Discrepancies, Discrepancy{
			Code: CodeSummaryMismatch,
			Detail: fmt.Sprintf("stored summary (score %d, %s) does not match recomputed (score %d, %s)",
				rec.Summary.ComplianceScore, rec.Summary.OverallStatus,
				got.ComplianceScore, got.OverallStatus),
		})
	}

	// Check 3: the signature over the record's current field values.
	if d, ok := verifySignature(rec, s.sig, pub); !ok {
		out.Discrepancies = append(out.Discrepancies, d)
	}

	out.Valid = len(out.Discrepancies) == 0
	return out
}

func verifySignature(rec Record, sig Signature, pub keys.PublicKey) (Discrepancy, bool) {
	bad := func(detail string) (Discrepancy, bool) {
		return Discrepancy{Code: CodeSignatureInvalid, Detail: detail}, false
	}

	if sig.Algorithm != pub.Alg {
		return bad(fmt.Sprintf("signature algorithm %q does not match key algorithm %q", sig.Algorithm, pub.Alg))
	}
	msg, err := SignableBytes(rec)
	if err != nil {
		return bad(fmt.Sprintf("cannot serialize record: %v", err))
	}

	var ok bool
	switch sig.Algorithm {
	case keys.AlgEd25519:
		ok, err = keys.VerifyEd25519(msg, sig.HashAlgorithm, ed25519.PublicKey(pub.Bytes), sig.Signature)
	case keys.AlgDilithium3:
		ok, err = keys.VerifyDilithium3(msg, sig.HashAlgorithm, pub.Bytes, sig.Signature)
	default:
		return bad(fmt.Sprintf("unsupported signature algorithm %q", sig.Algorithm))
	}
	if err != nil {
		return bad(fmt.Sprintf("signature check failed: %v", err))
	}
	if !ok {
		return bad("signature does not verify against the record's current contents")
	}
	return Discrepancy{}, true
}
