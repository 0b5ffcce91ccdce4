package chain

import (
	"errors"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/rpc"
)

// Reason returns the decoded revert reason carried by err, or err's message.
func Reason(err error) string {
	if err == nil {
		return ""
	}

	var de rpc.DataError
	if errors.As(err, &de) {
		if reason, ok := revertReason(de.ErrorData()); ok {
			return reason
		}
	}
	return err.Error()
}

func revertReason(data interface{}) (string, bool) {
	var raw []byte
	switch v := data.(type) {
	case string:
		b, err := hexutil.Decode(v)
		if err != nil {
			return "", false
		}
		raw = b
	case []byte:
		raw = v
	default:
		return "", false
	}

	reason, err := abi.UnpackRevert(raw)
	if err != nil {
		return "", false
	}
	return reason, true
}
