// Package chain binds the certificate registry contract: read calls against a public
// endpoint, signed writes through server-held keys and event log lookups.
package chain

import (
	_ "embed"
	"fmt"
	"math/big"
	"strings"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
)

const (
	EventCertificateIssued  = "CertificateIssued"
	EventCertificateRevoked = "CertificateRevoked"
)

//go:embed registry.abi.json
var registryABIJSON string

var RegistryABI = mustParseABI(registryABIJSON)

func mustParseABI(raw string) abi.ABI {
	parsed, err := abi.JSON(strings.NewReader(raw))
	if err != nil {
		panic("chain: invalid registry abi: " + err.Error())
	}
	return parsed
}

// EventID returns the topic0 of a registry event.
func EventID(event string) (common.Hash, error) {
	ev, ok := RegistryABI.Events[event]
	if !ok {
		return common.Hash{}, fmt.Errorf("unknown registry event %q", event)
	}
	return ev.ID, nil
}

// CertTopic encodes an indexed uint256 certificate id.
func CertTopic(certID uint64) common.Hash {
	return common.BigToHash(new(big.Int).SetUint64(certID))
}

// AddressTopic encodes an indexed address.
func AddressTopic(addr common.Address) common.Hash {
	return common.BytesToHash(addr.Bytes())
}
