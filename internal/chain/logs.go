package chain

import (
	"context"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
)

const DefaultLogWindow = 50000

type LogBackend interface {
	BlockNumber(ctx context.Context) (uint64, error)
	FilterLogs(ctx context.Context, q ethereum.FilterQuery) ([]types.Log, error)
}

// LogWindow searches registry events in the most recent Window blocks.
type LogWindow struct {
	Backend  LogBackend
	Contract common.Address
	Window   uint64
}

// LogQuery selects registry events. Topics are the indexed arguments after the event
// signature; a nil entry matches anything. A nil From means the window start.
type LogQuery struct {
	Event  string
	Topics [][]common.Hash
	From   *uint64
}

func (w *LogWindow) Range(ctx context.Context) (uint64, uint64, error) {
	head, err := w.Backend.BlockNumber(ctx)
	if err != nil {
		return 0, 0, fmt.Errorf("block number: %w", err)
	}

	window := w.Window
	if window == 0 {
		window = DefaultLogWindow
	}
	if head < window {
		return 0, head, nil
	}
	return head - window, head, nil
}

// FindTx returns the hash of the transaction that emitted event for certID, or nil when
// no such log is inside the window.
func (w *LogWindow) FindTx(ctx context.Context, event string, certID uint64) (*common.Hash, error) {
	logs, err := w.filter(ctx, LogQuery{
		Event:  event,
		Topics: [][]common.Hash{{CertTopic(certID)}},
	})
	if err != nil {
		return nil, err
	}

	for _, l := range logs {
		if l.Removed {
			continue
		}
		h := l.TxHash
		return &h, nil
	}
	return nil, nil
}

// TxHashes maps certificate id (first indexed topic) to the emitting transaction.
func (w *LogWindow) TxHashes(ctx context.Context, q LogQuery) (map[uint64]common.Hash, error) {
	logs, err := w.filter(ctx, q)
	if err != nil {
		return nil, err
	}

	hashes := make(map[uint64]common.Hash, len(logs))
	for _, l := range logs {
		if l.Removed || len(l.Topics) < 2 {
			continue
		}
		id := new(big.Int).SetBytes(l.Topics[1].Bytes()).Uint64()
		if _, seen := hashes[id]; !seen {
			hashes[id] = l.TxHash
		}
	}
	return hashes, nil
}

func (w *LogWindow) filter(ctx context.Context, q LogQuery) ([]types.Log, error) {
	eventID, err := EventID(q.Event)
	if err != nil {
		return nil, err
	}

	from, head, err := w.Range(ctx)
	if err != nil {
		return nil, err
	}
	if q.From != nil {
		from = *q.From
	}
	if from > head {
		return nil, nil
	}

	topics := append([][]common.Hash{{eventID}}, q.Topics...)
	logs, err := w.Backend.FilterLogs(ctx, ethereum.FilterQuery{
		FromBlock: new(big.Int).SetUint64(from),
		ToBlock:   new(big.Int).SetUint64(head),
		Addresses: []common.Address{w.Contract},
		Topics:    topics,
	})
	if err != nil {
		return nil, fmt.Errorf("filter %s logs: %w", q.Event, err)
	}
	return logs, nil
}
