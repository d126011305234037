// Package ens resolves human-readable ENS names to wallet addresses using
// the name table shipped inside the chain-data snapshot. No live chain
// lookups happen here; the table is captured at snapshot time.
package ens

import (
	"strings"

	"github.com/ethereum/go-ethereum/common"
)

// IsName reports whether a participant string looks like an ENS name
// rather than a raw address.
func IsName(s string) bool {
	return strings.HasSuffix(strings.ToLower(s), ".eth")
}

// IsAddress reports whether a participant string is a literal hex address.
func IsAddress(s string) bool {
	return common.IsHexAddress(s)
}

// Resolve looks up an ENS name in the table, case-insensitively. Table
// keys are assumed to already be lowercase. The table is never mutated.
func Resolve(name string, table map[string]string) (string, bool) {
	if len(table) == 0 {
		return "", false
	}
	addr, ok := table[strings.ToLower(name)]
	return addr, ok
}
