package pattern

import (
	"crypto/sha256"
	"encoding/hex"

	"golang.org/x/text/unicode/norm"
)

// Domain prefixes for content hashes of generated artifacts.
// Version suffix enables future algorithm migration.
const (
	DomainContext = "patternweave/context/v1"
	DomainMachine = "patternweave/machine/v1"
)

// ContentHash computes SHA256(domain + 0x00 + NFC(text)) as hex.
// Two texts that differ only in Unicode composition hash identically.
func ContentHash(domain, text string) string {
	h := sha256.New()
	h.Write([]byte(domain))
	h.Write([]byte{0x00})
	h.Write([]byte(norm.NFC.String(text)))
	return hex.EncodeToString(h.Sum(nil))
}
