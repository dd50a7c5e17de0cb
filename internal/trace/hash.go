package trace

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
)

// Domain prefixes for content hashes. The version suffix allows the
// algorithm to change without colliding with stored hashes.
const (
	DomainStep = "todocheck/step/v1"
	DomainCase = "todocheck/case/v1"
)

// hashWithDomain computes SHA256(domain + 0x00 + data).
// The null byte prevents domain/data boundary ambiguity.
func hashWithDomain(domain string, data []byte) string {
	h := sha256.New()
	h.Write([]byte(domain))
	h.Write([]byte{0x00})
	h.Write(data)
	return hex.EncodeToString(h.Sum(nil))
}

// StepID identifies a step by its case, position and content. The same
// suite against the same application yields the same IDs on every run.
func StepID(caseName string, seq int, s Step) (string, error) {
	obj := s.object()
	obj["case"] = caseName
	obj["seq"] = seq
	canonical, err := MarshalCanonical(obj)
	if err != nil {
		return "", fmt.Errorf("StepID: failed to marshal: %w", err)
	}
	return hashWithDomain(DomainStep, canonical), nil
}

// CaseHash digests a whole case trace. Two runs of a case behaved alike
// exactly when their hashes match.
func CaseHash(c CaseTrace) (string, error) {
	canonical, err := MarshalCanonical(c.object())
	if err != nil {
		return "", fmt.Errorf("CaseHash: failed to marshal: %w", err)
	}
	return hashWithDomain(DomainCase, canonical), nil
}
