// Copyright (c) 2025 The VeChainThor developers

// Distributed under the GNU Lesser General Public License v3.0 software license, see the accompanying
// file LICENSE or <https://www.gnu.org/licenses/lgpl-3.0.html>

package txpool

import "github.com/pkg/errors"

// Admission errors. They are returned synchronously and leave the pool
// unchanged.
var (
	ErrAlreadyKnown        = errors.New("already known")
	ErrInvalidSender       = errors.New("invalid sender")
	ErrNonceTooLow         = errors.New("nonce too low")
	ErrQueueFull           = errors.New("too many queued transactions for sender")
	ErrInsufficientFunds   = errors.New("insufficient funds for gas * price + value")
	ErrGasLimit            = errors.New("exceeds block gas limit")
	ErrReplaceUnderpriced  = errors.New("replacement transaction underpriced")
	ErrTxPoolOverflow      = errors.New("txpool is full")
	ErrFeeCapBelowTip      = errors.New("max priority fee per gas higher than max fee per gas")
	ErrUnsupportedTxType   = errors.New("transaction type not supported")
	ErrImpersonationDenied = errors.New("sender is not impersonated")
)

// reason labels an admission error for metrics.
func reason(err error) string {
	switch errors.Cause(err) {
	case ErrAlreadyKnown:
		return "known"
	case ErrInvalidSender:
		return "sender"
	case ErrNonceTooLow:
		return "nonce"
	case ErrQueueFull:
		return "queue"
	case ErrInsufficientFunds:
		return "funds"
	case ErrGasLimit:
		return "gas"
	case ErrReplaceUnderpriced:
		return "underpriced"
	case ErrTxPoolOverflow:
		return "overflow"
	}
	return "other"
}

// IsAdmissionError reports whether err is a rejection by the pool rather
// than a failure to read state.
func IsAdmissionError(err error) bool {
	return reason(err) != "other" ||
		errors.Cause(err) == ErrFeeCapBelowTip ||
		errors.Cause(err) == ErrUnsupportedTxType ||
		errors.Cause(err) == ErrImpersonationDenied
}
