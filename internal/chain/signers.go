package chain

import (
	"context"
	"crypto/ecdsa"
	"errors"
	"fmt"
	"math/big"
	"sort"
	"strings"
	"sync"

	"github.com/ethereum/go-ethereum/accounts/abi/bind"
	"github.com/ethereum/go-ethereum/accounts/keystore"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
)

var ErrNoSigner = errors.New("no signing key held for this address")

// Signers holds the transactors the service can send with, keyed by sender address.
type Signers struct {
	chainID *big.Int

	mu   sync.RWMutex
	opts map[common.Address]*bind.TransactOpts
}

func NewSigners(chainID *big.Int) *Signers {
	return &Signers{
		chainID: chainID,
		opts:    make(map[common.Address]*bind.TransactOpts),
	}
}

func (s *Signers) AddKey(key *ecdsa.PrivateKey) (common.Address, error) {
	opts, err := bind.NewKeyedTransactorWithChainID(key, s.chainID)
	if err != nil {
		return common.Address{}, fmt.Errorf("keyed transactor: %w", err)
	}
	s.add(opts)
	return opts.From, nil
}

func (s *Signers) AddHexKey(hexKey string) (common.Address, error) {
	key, err := crypto.HexToECDSA(strings.TrimPrefix(strings.TrimSpace(hexKey), "0x"))
	if err != nil {
		return common.Address{}, fmt.Errorf("parse signer private key: %w", err)
	}
	return s.AddKey(key)
}

// AddKeystore unlocks every account found in dir with the same passphrase.
func (s *Signers) AddKeystore(dir, passphrase string) ([]common.Address, error) {
	ks := keystore.NewKeyStore(dir, keystore.StandardScryptN, keystore.StandardScryptP)

	var added []common.Address
	for _, acc := range ks.Accounts() {
		if err := ks.Unlock(acc, passphrase); err != nil {
			return nil, fmt.Errorf("unlock %s: %w", acc.Address.Hex(), err)
		}
		opts, err := bind.NewKeyStoreTransactorWithChainID(ks, acc, s.chainID)
		if err != nil {
			return nil, fmt.Errorf("keystore transactor %s: %w", acc.Address.Hex(), err)
		}
		s.add(opts)
		added = append(added, acc.Address)
	}
	return added, nil
}

func (s *Signers) add(opts *bind.TransactOpts) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.opts[opts.From] = opts
}

func (s *Signers) Has(addr common.Address) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.opts[addr]
	return ok
}

func (s *Signers) Addresses() []common.Address {
	s.mu.RLock()
	defer s.mu.RUnlock()

	addrs := make([]common.Address, 0, len(s.opts))
	for a := range s.opts {
		addrs = append(addrs, a)
	}
	sort.Slice(addrs, func(i, j int) bool { return addrs[i].Hex() < addrs[j].Hex() })
	return addrs
}

// TransactOpts returns a copy bound to ctx so concurrent writes never share state.
func (s *Signers) TransactOpts(ctx context.Context, from common.Address) (*bind.TransactOpts, error) {
	s.mu.RLock()
	base, ok := s.opts[from]
	s.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrNoSigner, from.Hex())
	}

	opts := *base
	opts.Context = ctx
	return &opts, nil
}
