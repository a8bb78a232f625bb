package attest

import (
	"crypto/ed25519"
	"encoding/json"
	"testing"
	"time"

	"github.com/ipfs/go-cid"

	"skuldbot.io/attest/control"
	"skuldbot.io/attest/evidence"
	"skuldbot.io/attest/keys"
	"skuldbot.io/attest/scoring"
	"skuldbot.io/attest/storage/testkit"
)

func ed25519Keypair(t *testing.T) (keys.PublicKey, ed25519.PrivateKey) {
	t.Helper()
	seed := make([]byte, ed25519.SeedSize)
	for i := range seed {
		seed[i] = byte(i * 3)
	}
	priv := ed25519.NewKeyFromSeed(seed)
	pub, err := keys.ParseIssuerKey(keys.GenerateIssuerKeyFromSeed(seed))
	if err != nil {
		t.Fatalf("ParseIssuerKey: %v", err)
	}
	return pub, priv
}

// scenario wires a full attestation: evidence in a store, a sealed record
// signed over it, and a Source the verifier can use to re-fetch bytes.
type scenario struct {
	cas      *testkit.MemCAS
	src      *evidence.StoreSource
	manifest evidence.Manifest
	sealed   *SealedRecord
	pub      keys.PublicKey
}

func newScenario(t *testing.T) *scenario {
	t.Helper()
	cas := testkit.NewMem()

	p, err := evidence.NewPack("pk-exec-42", "exec-42")
	if err != nil {
		t.Fatalf("NewPack: %v", err)
	}
	p.Add(evidence.Item{Kind: "audit_log", CapturedAt: buildTime, Bytes: []byte("GET /phi/records 200")})
	p.Add(evidence.Item{Kind: "screenshot", CapturedAt: buildTime, Bytes: []byte{0x89, 0x50, 0x4e, 0x47}})
	p.Add(evidence.Item{Kind: "api_response", CapturedAt: buildTime, Bytes: []byte(`{"ok":true}`)})
	sealedPack := p.Seal(buildTime)

	m, mid, err := evidence.Persist(sealedPack, cas)
	if err != nil {
		t.Fatalf("Persist: %v", err)
	}
	src := &evidence.StoreSource{CAS: cas, Manifests: map[string]cid.Cid{"pk-exec-42": mid}}

	in := testInput()
	ref := PackRef(sealedPack)
	ref.ManifestCID = mid.String()
	in.Packs = []PackReference{ref}

	rec, err := Build(in)
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	pub, priv := ed25519Keypair(t)
	sealed, err := SealEd25519(rec, priv, buildTime.Add(time.Minute))
	if err != nil {
		t.Fatalf("SealEd25519: %v", err)
	}
	return &scenario{cas: cas, src: src, manifest: m, sealed: sealed, pub: pub}
}

func codes(r Report) []string {
	out := make([]string, len(r.Discrepancies))
	for i, d := range r.Discrepancies {
		out[i] = d.Code
	}
	return out
}

func TestVerify_UnmodifiedRecordIsValid(t *testing.T) {
	sc := newScenario(t)
	report := Verify(sc.sealed, sc.pub, sc.src)
	if !report.Valid {
		t.Fatalf("unmodified record must verify: %+v", report.Discrepancies)
	}
	if len(report.Discrepancies) != 0 {
		t.Fatalf("expected no discrepancies, got %+v", report.Discrepancies)
	}
}

func TestVerify_AlteredEvidenceIsTheOnlyDiscrepancy(t *testing.T) {
	sc := newScenario(t)

	itemID, err := cid.Decode(sc.manifest.Items[0].CID)
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	sc.cas.Corrupt(itemID, []byte("GET /phi/records 500"))

	report := Verify(sc.sealed, sc.pub, sc.src)
	if report.Valid {
		t.Fatalf("altered evidence must invalidate the attestation")
	}
	if got := codes(report); len(got) != 1 || got[0] != CodeEvidenceAltered {
		t.Fatalf("discrepancies = %v, want [evidence-altered] only", got)
	}
}

func TestVerify_UnknownPackReportsEvidenceAltered(t *testing.T) {
	sc := newScenario(t)
	report := Verify(sc.sealed, sc.pub, evidence.MapSource{})
	if report.Valid {
		t.Fatalf("missing evidence must invalidate the attestation")
	}
	if got := codes(report); len(got) != 1 || got[0] != CodeEvidenceAltered {
		t.Fatalf("discrepancies = %v, want [evidence-altered]", got)
	}
}

func TestVerify_TamperedSummaryReportsBothChecks(t *testing.T) {
	sc := newScenario(t)

	// Inflate the stored score behind the signature's back.
	tampered := &SealedRecord{record: cloneRecord(sc.sealed.record), sig: sc.sealed.Signature()}
	tampered.record.Summary.ComplianceScore = 100

	report := Verify(tampered, sc.pub, sc.src)
	if report.Valid {
		t.Fatalf("tampered summary must invalidate the attestation")
	}
	got := codes(report)
	if len(got) != 2 || got[0] != CodeSummaryMismatch || got[1] != CodeSignatureInvalid {
		t.Fatalf("discrepancies = %v, want [summary-mismatch signature-invalid]", got)
	}
}

func TestVerify_FlippedRecommendationOnlyBreaksSignature(t *testing.T) {
	sc := newScenario(t)

	// A field outside the summary and evidence roots still breaks the
	// signature: everything in the record is covered.
	tampered := &SealedRecord{record: cloneRecord(sc.sealed.record), sig: sc.sealed.Signature()}
	tampered.record.Recommendations[0] = "[164.312(a)(1)] Ignore this control"

	report := Verify(tampered, sc.pub, sc.src)
	if report.Valid {
		t.Fatalf("edited recommendation must invalidate the attestation")
	}
	if got := codes(report); len(got) != 1 || got[0] != CodeSignatureInvalid {
		t.Fatalf("discrepancies = %v, want [signature-invalid] only", got)
	}
}

func TestVerifyWithPolicy_PartiallySpecifiedPolicy(t *testing.T) {
	sc := newScenario(t)

	// Unset weight fields fall back to the defaults; a threshold equal to the
	// default one leaves the recount identical to the stored summary.
	report := VerifyWithPolicy(sc.sealed, sc.pub, sc.src, scoring.Policy{PartialThreshold: 70})
	if !report.Valid {
		t.Fatalf("default-equivalent policy must verify: %+v", report.Discrepancies)
	}

	// A genuinely different threshold reclassifies the record, which is a
	// summary mismatch, never a fault.
	report = VerifyWithPolicy(sc.sealed, sc.pub, sc.src, scoring.Policy{PartialThreshold: 40})
	if report.Valid {
		t.Fatalf("reclassifying threshold must surface a mismatch")
	}
	if got := codes(report); len(got) != 1 || got[0] != CodeSummaryMismatch {
		t.Fatalf("discrepancies = %v, want [summary-mismatch] only", got)
	}
}

func TestVerify_WrongKeyFails(t *testing.T) {
	sc := newScenario(t)

	otherSeed := make([]byte, ed25519.SeedSize)
	otherSeed[0] = 0xFF
	otherPub, err := keys.ParseIssuerKey(keys.GenerateIssuerKeyFromSeed(otherSeed))
	if err != nil {
		t.Fatalf("ParseIssuerKey: %v", err)
	}

	report := Verify(sc.sealed, otherPub, sc.src)
	if report.Valid {
		t.Fatalf("wrong public key must not verify")
	}
	if got := codes(report); len(got) != 1 || got[0] != CodeSignatureInvalid {
		t.Fatalf("discrepancies = %v, want [signature-invalid]", got)
	}
}

func TestVerify_SerializationRoundTrip(t *testing.T) {
	sc := newScenario(t)

	b, err := json.Marshal(sc.sealed)
	if err != nil {
		t.Fatalf("Marshal: %v", err)
	}
	var restored SealedRecord
	if err := json.Unmarshal(b, &restored); err != nil {
		t.Fatalf("Unmarshal: %v", err)
	}

	report := Verify(&restored, sc.pub, sc.src)
	if !report.Valid {
		t.Fatalf("round-tripped record must verify: %+v", report.Discrepancies)
	}

	b2, err := json.Marshal(&restored)
	if err != nil {
		t.Fatalf("Marshal restored: %v", err)
	}
	if string(b) != string(b2) {
		t.Fatalf("serialization must round-trip byte-identically")
	}
}

func TestSealedRecord_AccessorsReturnCopies(t *testing.T) {
	sc := newScenario(t)

	rec := sc.sealed.Record()
	rec.Summary.ComplianceScore = 0
	rec.Recommendations[0] = "edited"
	rec.ControlsByCategory[0].Controls[0].Status = control.Failed

	sig := sc.sealed.Signature()
	sig.Signature[0] ^= 0xFF

	report := Verify(sc.sealed, sc.pub, sc.src)
	if !report.Valid {
		t.Fatalf("mutating returned copies must not affect the sealed record: %+v", report.Discrepancies)
	}
}
