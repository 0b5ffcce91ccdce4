package chain

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"sync"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
)

// fakeBackend answers contract calls by packing canned outputs with the registry ABI and
// mines every sent transaction immediately.
type fakeBackend struct {
	mu sync.Mutex

	outputs map[string][]interface{}
	head    uint64
	logs    []types.Log
	queries []ethereum.FilterQuery

	sent     []*types.Transaction
	status   uint64
	mined    func(tx *types.Transaction) []*types.Log
	receipts map[common.Hash]*types.Receipt
	txs      map[common.Hash]*types.Transaction
}

func newFakeBackend() *fakeBackend {
	return &fakeBackend{
		outputs:  map[string][]interface{}{},
		status:   types.ReceiptStatusSuccessful,
		receipts: map[common.Hash]*types.Receipt{},
		txs:      map[common.Hash]*types.Transaction{},
	}
}

func (f *fakeBackend) CodeAt(ctx context.Context, contract common.Address, blockNumber *big.Int) ([]byte, error) {
	return []byte{0x60}, nil
}

func (f *fakeBackend) CallContract(ctx context.Context, call ethereum.CallMsg, blockNumber *big.Int) ([]byte, error) {
	if len(call.Data) < 4 {
		return nil, errors.New("short call data")
	}
	method, err := RegistryABI.MethodById(call.Data[:4])
	if err != nil {
		return nil, err
	}
	out, ok := f.outputs[method.Name]
	if !ok {
		return nil, fmt.Errorf("no canned output for %s", method.Name)
	}
	return method.Outputs.Pack(out...)
}

func (f *fakeBackend) HeaderByNumber(ctx context.Context, number *big.Int) (*types.Header, error) {
	return &types.Header{Number: new(big.Int).SetUint64(f.head)}, nil
}

func (f *fakeBackend) PendingCodeAt(ctx context.Context, account common.Address) ([]byte, error) {
	return []byte{0x60}, nil
}

func (f *fakeBackend) PendingNonceAt(ctx context.Context, account common.Address) (uint64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return uint64(len(f.sent)), nil
}

func (f *fakeBackend) SuggestGasPrice(ctx context.Context) (*big.Int, error) {
	return big.NewInt(2_000_000_000), nil
}

func (f *fakeBackend) SuggestGasTipCap(ctx context.Context) (*big.Int, error) {
	return big.NewInt(1), nil
}

func (f *fakeBackend) EstimateGas(ctx context.Context, call ethereum.CallMsg) (uint64, error) {
	return 150_000, nil
}

func (f *fakeBackend) SendTransaction(ctx context.Context, tx *types.Transaction) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.sent = append(f.sent, tx)
	f.txs[tx.Hash()] = tx

	r := &types.Receipt{
		Status:            f.status,
		TxHash:            tx.Hash(),
		GasUsed:           120_000,
		EffectiveGasPrice: tx.GasPrice(),
		BlockNumber:       new(big.Int).SetUint64(f.head + 1),
	}
	if f.mined != nil {
		r.Logs = f.mined(tx)
	}
	f.receipts[tx.Hash()] = r
	return nil
}

func (f *fakeBackend) FilterLogs(ctx context.Context, q ethereum.FilterQuery) ([]types.Log, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.queries = append(f.queries, q)
	return f.logs, nil
}

func (f *fakeBackend) SubscribeFilterLogs(ctx context.Context, q ethereum.FilterQuery, ch chan<- types.Log) (ethereum.Subscription, error) {
	return nil, errors.New("subscriptions not supported")
}

func (f *fakeBackend) TransactionReceipt(ctx context.Context, txHash common.Hash) (*types.Receipt, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	r, ok := f.receipts[txHash]
	if !ok {
		return nil, ethereum.NotFound
	}
	return r, nil
}

func (f *fakeBackend) BlockNumber(ctx context.Context) (uint64, error) {
	return f.head, nil
}

func (f *fakeBackend) ChainID(ctx context.Context) (*big.Int, error) {
	return big.NewInt(1337), nil
}

func (f *fakeBackend) TransactionByHash(ctx context.Context, hash common.Hash) (*types.Transaction, bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	tx, ok := f.txs[hash]
	if !ok {
		return nil, false, ethereum.NotFound
	}
	return tx, false, nil
}
