// attestgen generates, signs, and self-verifies a sample attestation, then
// prints the sealed record JSON. Used to produce conformance vectors and to
// sanity-check the whole pipeline end to end.
package main

import (
	"crypto/ed25519"
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/ipfs/go-cid"

	"skuldbot.io/attest/attest"
	"skuldbot.io/attest/control"
	"skuldbot.io/attest/evidence"
	"skuldbot.io/attest/keys"
	"skuldbot.io/attest/storage/testkit"
)

func mustKeypair(seedByte byte) (keys.PublicKey, ed25519.PrivateKey) {
	seed := make([]byte, ed25519.SeedSize)
	for i := range seed {
		seed[i] = seedByte
	}
	priv := ed25519.NewKeyFromSeed(seed)
	pub, err := keys.ParseIssuerKey(keys.GenerateIssuerKeyFromSeed(seed))
	if err != nil {
		panic(err)
	}
	return pub, priv
}

func main() {
	at := time.Date(2025, 7, 1, 0, 0, 0, 0, time.UTC)
	cas := testkit.NewMem()

	pack, err := evidence.NewPack("pk-sample-1", "exec-sample-1")
	if err != nil {
		panic(err)
	}
	pack.Add(evidence.Item{Kind: "audit_logs", CapturedAt: at, Bytes: []byte("2025-07-01T00:00:00Z action=read resource=ehr/1234 result=ok")})
	pack.Add(evidence.Item{Kind: "evidence_pack", CapturedAt: at, Bytes: []byte(`{"executionId":"exec-sample-1","steps":42}`)})
	pack.Add(evidence.Item{Kind: "integrity_verification", CapturedAt: at, Bytes: []byte("all item digests verified")})
	pack.Add(evidence.Item{Kind: "merkle_root", CapturedAt: at, Bytes: []byte("root recorded at seal time")})
	sealed := pack.Seal(at)

	_, mid, err := evidence.Persist(sealed, cas)
	if err != nil {
		panic(err)
	}

	ev := control.NewEvaluator()
	ev.RegisterEvidence("audit_logs", "pk-sample-1")
	ev.RegisterEvidence("evidence_pack", "pk-sample-1")
	ev.RegisterEvidence("integrity_verification", "pk-sample-1")
	ev.RegisterEvidence("merkle_root", "pk-sample-1")

	evals, err := ev.EvaluateFramework(control.HIPAA, at)
	if err != nil {
		panic(err)
	}

	ref := attest.PackRef(sealed)
	ref.ManifestCID = mid.String()

	rec, err := attest.Build(attest.BuildInput{
		Organization: "Sample Health Org",
		Subject:      "sample-claims-bot",
		GeneratedBy:  "attestgen",
		Framework:    control.HIPAA,
		GeneratedAt:  at,
		Evaluations:  evals,
		Packs:        []attest.PackReference{ref},
	})
	if err != nil {
		panic(err)
	}

	pub, priv := mustKeypair(0xA1)
	signed, err := attest.SealEd25519(rec, priv, at)
	if err != nil {
		panic(err)
	}

	src := &evidence.StoreSource{CAS: cas, Manifests: map[string]cid.Cid{"pk-sample-1": mid}}
	report := attest.Verify(signed, pub, src)
	if !report.Valid {
		fmt.Fprintf(os.Stderr, "self-verification failed: %+v\n", report.Discrepancies)
		os.Exit(1)
	}

	out, err := json.MarshalIndent(signed, "", "  ")
	if err != nil {
		panic(err)
	}
	fmt.Println(string(out))
	fmt.Fprintf(os.Stderr, "attestation %s verified (issuer %s)\n",
		rec.Metadata.AttestationID, pub.Fingerprint())
}
