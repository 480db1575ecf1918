package errors

import stderrors "errors"

// Listing and bid lifecycle failures. Messages match the revert reasons the
// marketplace has always surfaced so clients can keep matching on them.
var (
	ErrNotOwner       = stderrors.New("not owner")
	ErrOfferClosed    = stderrors.New("offer is closed")
	ErrWrongAmount    = stderrors.New("not the right amount")
	ErrAmountZero     = stderrors.New("offer amount is zero")
	ErrCancelTooEarly = stderrors.New("48h minimum before cancel")
	ErrOfferTooLow    = stderrors.New("offer too low")
	ErrOfferExpired   = stderrors.New("offer expired")
	ErrOfferNotFound  = stderrors.New("offer not available")
	ErrReentrantCall  = stderrors.New("reentrant call")
)

// Custody failures raised by the token layer.
var (
	ErrTransferRejected         = stderrors.New("token transfer rejected")
	ErrDirectTransferNotAllowed = stderrors.New("direct transfer not allowed")
	ErrUnsupportedStandard      = stderrors.New("unsupported token standard")
)

// Fee administration and accounting failures.
var (
	ErrNotOperator         = stderrors.New("caller is not the operator")
	ErrInvalidFee          = stderrors.New("fee bps out of range")
	ErrFeeOverflow         = stderrors.New("fee accrual overflow")
	ErrInsufficientBalance = stderrors.New("insufficient balance")
	ErrModulePaused        = stderrors.New("module paused")
)
