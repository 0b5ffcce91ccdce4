package chain

import (
	"errors"
	"fmt"

	"github.com/ethereum/go-ethereum/accounts"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/crypto"
)

var ErrBadSignature = errors.New("signature does not match address")

// LoginMessage is the text a wallet signs with personal_sign to open a session.
func LoginMessage(address, nonce string) string {
	return fmt.Sprintf("Certify sign-in\n\nAddress: %s\nNonce: %s", address, nonce)
}

// RecoverAddress recovers the signer of an EIP-191 personal message.
func RecoverAddress(message string, sig []byte) (common.Address, error) {
	if len(sig) != crypto.SignatureLength {
		return common.Address{}, fmt.Errorf("%w: signature must be %d bytes", ErrBadSignature, crypto.SignatureLength)
	}

	s := make([]byte, len(sig))
	copy(s, sig)
	if s[crypto.RecoveryIDOffset] >= 27 {
		s[crypto.RecoveryIDOffset] -= 27
	}

	pub, err := crypto.SigToPub(accounts.TextHash([]byte(message)), s)
	if err != nil {
		return common.Address{}, fmt.Errorf("%w: %v", ErrBadSignature, err)
	}
	return crypto.PubkeyToAddress(*pub), nil
}

func VerifySignature(address common.Address, message, sigHex string) error {
	sig, err := hexutil.Decode(sigHex)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrBadSignature, err)
	}

	signer, err := RecoverAddress(message, sig)
	if err != nil {
		return err
	}
	if signer != address {
		return ErrBadSignature
	}
	return nil
}
