package core

import (
	"errors"

	"nftickets/core/ledger"
	"nftickets/core/state"
	"nftickets/native/assets"
	"nftickets/native/common"
	"nftickets/native/fees"
	"nftickets/native/market"
	"nftickets/native/platform"
	"nftickets/native/tickets"
)

// ErrInvalidParams is returned for malformed operation arguments.
var ErrInvalidParams = errors.New("node: invalid params")

// Error classes reported to clients and metrics.
const (
	ClassConflict      = "conflict"
	ClassForbidden     = "forbidden"
	ClassNotFound      = "not_found"
	ClassRejected      = "rejected"
	ClassInvalidParams = "invalid_params"
	ClassPaused        = "paused"
	ClassInternal      = "internal"
)

// ErrorClass maps an operation error to its taxonomy class. Order matters:
// a missing listing is an authorization failure, not a lookup miss.
func ErrorClass(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, common.ErrModulePaused), errors.Is(err, ErrFaucetDisabled):
		return ClassPaused
	case errors.Is(err, market.ErrUnauthorized),
		errors.Is(err, platform.ErrUnauthorized),
		errors.Is(err, tickets.ErrUnauthorized),
		errors.Is(err, tickets.ErrNotManager),
		errors.Is(err, assets.ErrOwnerMismatch),
		errors.Is(err, state.ErrProgramMismatch):
		return ClassForbidden
	case errors.Is(err, market.ErrListingExists),
		errors.Is(err, platform.ErrPlatformExists),
		errors.Is(err, platform.ErrManagerExists),
		errors.Is(err, tickets.ErrEventExists),
		errors.Is(err, state.ErrAddressInUse),
		errors.Is(err, state.ErrNonceMismatch),
		errors.Is(err, errStale):
		return ClassConflict
	case errors.Is(err, platform.ErrPlatformNotFound),
		errors.Is(err, platform.ErrManagerNotFound),
		errors.Is(err, tickets.ErrEventNotFound),
		errors.Is(err, tickets.ErrTicketNotFound),
		errors.Is(err, assets.ErrAccountNotFound),
		errors.Is(err, assets.ErrMintNotFound),
		errors.Is(err, state.ErrRecordNotFound),
		errors.Is(err, ledger.ErrReceiptNotFound):
		return ClassNotFound
	case errors.Is(err, state.ErrInsufficientBalance),
		errors.Is(err, state.ErrArithmetic),
		errors.Is(err, assets.ErrInsufficientFunds),
		errors.Is(err, assets.ErrSupplyOverflow),
		errors.Is(err, assets.ErrNonZeroBalance),
		errors.Is(err, market.ErrVaultInvariant),
		errors.Is(err, tickets.ErrSoldOut),
		errors.Is(err, tickets.ErrAlreadyScanned),
		errors.Is(err, tickets.ErrNotTransferable),
		errors.Is(err, fees.ErrArithmetic):
		return ClassRejected
	case errors.Is(err, ErrInvalidParams),
		errors.Is(err, ledger.ErrInvalidOp),
		errors.Is(err, market.ErrInvalidPrice),
		errors.Is(err, platform.ErrInvalidName),
		errors.Is(err, platform.ErrFeeOutOfRange),
		errors.Is(err, platform.ErrInvalidAmount),
		errors.Is(err, tickets.ErrInvalidEvent),
		errors.Is(err, fees.ErrRateOutOfRange),
		errors.Is(err, fees.ErrInvalidAmount),
		errors.Is(err, state.ErrNegativeAmount):
		return ClassInvalidParams
	default:
		return ClassInternal
	}
}
