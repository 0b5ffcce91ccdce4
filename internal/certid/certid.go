// Package certid formats and normalizes certificate identifiers.
//
// The contract only knows numeric ids. The CERT-YYYY-NNNN form is cosmetic and is
// what gets printed on certificates and encoded in verification links.
package certid

import (
	"errors"
	"fmt"
	"net/url"
	"regexp"
	"strconv"
	"strings"
)

var ErrInvalidID = errors.New("invalid certificate id format")

var certFormat = regexp.MustCompile(`(?i)^CERT-\d{4}-(\d+)$`)

// Format returns the display id, e.g. Format(2025, 15) == "CERT-2025-0015".
func Format(year int, n uint64) string {
	return fmt.Sprintf("CERT-%d-%04d", year, n)
}

// Normalize maps "15" and "CERT-2025-0015" to the lookup key 15.
func Normalize(id string) (uint64, error) {
	id = strings.TrimSpace(id)
	if id == "" {
		return 0, ErrInvalidID
	}

	if m := certFormat.FindStringSubmatch(id); m != nil {
		id = m[1]
	}

	n, err := strconv.ParseUint(id, 10, 64)
	if err != nil {
		return 0, ErrInvalidID
	}
	return n, nil
}

// NumericPart returns the text after the last dash ("CERT-2024-1234" -> "1234").
func NumericPart(certID string) string {
	if i := strings.LastIndex(certID, "-"); i >= 0 {
		return certID[i+1:]
	}
	return certID
}

// VerifyURL builds the "?verify=" link opened by QR scans and share buttons.
func VerifyURL(base, certID string) string {
	return strings.TrimRight(base, "/") + "?verify=" + url.QueryEscape(certID)
}

// QRTargetURL is the /verify/<n> page encoded inside the certificate QR code.
func QRTargetURL(base, certID string) string {
	return strings.TrimRight(base, "/") + "/verify/" + NumericPart(certID)
}

func ExplorerTxURL(base, txHash string) string {
	if base == "" || txHash == "" {
		return ""
	}
	return strings.TrimRight(base, "/") + "/tx/" + txHash
}

func ExplorerAddressURL(base, address string) string {
	if base == "" || address == "" {
		return ""
	}
	return strings.TrimRight(base, "/") + "/address/" + address
}
