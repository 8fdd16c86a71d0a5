// Package ident produces employee codes, record identifiers and signature tokens.
package ident

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"strconv"
	"strings"

	"github.com/google/uuid"
)

// EmployeePrefix prefixes every sequential employee code.
const EmployeePrefix = "EMP"

// NextEmployeeCode returns EMP followed by max+1 over the existing codes that
// carry the prefix, zero padded to three digits. Codes with a non-numeric
// suffix are ignored, so gaps left by deactivated employees are never reused.
func NextEmployeeCode(existing []string) string {
	highest := 0
	for _, id := range existing {
		if !strings.HasPrefix(id, EmployeePrefix) {
			continue
		}
		n, err := strconv.Atoi(id[len(EmployeePrefix):])
		if err != nil || n < 0 {
			continue
		}
		if n > highest {
			highest = n
		}
	}
	return fmt.Sprintf("%s%03d", EmployeePrefix, highest+1)
}

// NewRecordID returns an opaque identifier for transactions, movements and items.
func NewRecordID() string {
	return uuid.NewString()
}

// NewToken returns an unguessable signature token (128 bits from crypto/rand).
func NewToken() string {
	var b [16]byte
	if _, err := rand.Read(b[:]); err != nil {
		panic(err)
	}
	return hex.EncodeToString(b[:])
}
