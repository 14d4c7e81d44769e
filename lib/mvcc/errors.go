package mvcc

import "fmt"

// --------------------------------------------------------------------------
// Custom Error Type
// --------------------------------------------------------------------------

// ErrCode classifies engine errors.
type ErrCode uint64

const (
	ErrCTxNotFound  ErrCode = iota + 1 // 1: The transaction id is unknown.
	ErrCTxNotActive                    // 2: The transaction is already committed or aborted.
)

func (c ErrCode) String() string {
	switch c {
	case ErrCTxNotFound:
		return "TxNotFound"
	case ErrCTxNotActive:
		return "TxNotActive"
	default:
		return "Unknown"
	}
}

// Error is returned by every engine operation that references a transaction.
type Error struct {
	Code  ErrCode       // The error code
	TxID  TransactionID // The transaction the operation referenced
	State TxState       // The state of the transaction (only for ErrCTxNotActive)
}

// Error implements the error interface.
func (e *Error) Error() string {
	switch e.Code {
	case ErrCTxNotFound:
		return fmt.Sprintf("mvcc: transaction %d not found", e.TxID)
	case ErrCTxNotActive:
		return fmt.Sprintf("mvcc: transaction %d is not active (state %s)", e.TxID, e.State)
	default:
		return fmt.Sprintf("mvcc: error (code %s) for transaction %d", e.Code, e.TxID)
	}
}

// Is reports whether target is an *Error with the same code.
// A target without a transaction id matches any transaction.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return t.Code == e.Code && (t.TxID == 0 || t.TxID == e.TxID)
}

var (
	// ErrTxNotFound matches every ErrCTxNotFound error with errors.Is
	ErrTxNotFound = &Error{Code: ErrCTxNotFound}
	// ErrTxNotActive matches every ErrCTxNotActive error with errors.Is
	ErrTxNotActive = &Error{Code: ErrCTxNotActive}
)

// NewTxNotFoundError creates the error for an unknown transaction.
func NewTxNotFoundError(id TransactionID) *Error {
	return &Error{Code: ErrCTxNotFound, TxID: id}
}

// NewTxNotActiveError creates the error for a transaction that already finished.
func NewTxNotActiveError(id TransactionID, state TxState) *Error {
	return &Error{Code: ErrCTxNotActive, TxID: id, State: state}
}
