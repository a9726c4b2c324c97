// Package fees computes the platform's share of a payment.
package fees

import (
	"errors"
	"math/big"

	"github.com/holiman/uint256"
)

// MaxBps is the basis-point denominator; a rate of MaxBps takes the full
// amount.
const MaxBps = 10_000

var (
	// ErrArithmetic is returned when fee arithmetic leaves the 256-bit range.
	ErrArithmetic = errors.New("fees: arithmetic overflow")
	// ErrRateOutOfRange is returned for rates above MaxBps.
	ErrRateOutOfRange = errors.New("fees: rate exceeds 10000 bps")
	// ErrInvalidAmount is returned for nil or negative gross amounts.
	ErrInvalidAmount = errors.New("fees: invalid gross amount")
)

// Split is the outcome of applying a rate to a gross amount. Fee + Net always
// equals the gross amount.
type Split struct {
	Gross *big.Int
	Fee   *big.Int
	Net   *big.Int
}

// Apply computes fee = floor(gross * bps / 10000) and net = gross - fee. Any
// rounding remainder stays in net.
func Apply(gross *big.Int, bps uint16) (Split, error) {
	if gross == nil || gross.Sign() < 0 {
		return Split{}, ErrInvalidAmount
	}
	if bps > MaxBps {
		return Split{}, ErrRateOutOfRange
	}
	amount, overflow := uint256.FromBig(gross)
	if overflow {
		return Split{}, ErrArithmetic
	}
	product, overflow := new(uint256.Int).MulOverflow(amount, uint256.NewInt(uint64(bps)))
	if overflow {
		return Split{}, ErrArithmetic
	}
	fee := new(uint256.Int).Div(product, uint256.NewInt(MaxBps))
	net, underflow := new(uint256.Int).SubOverflow(amount, fee)
	if underflow {
		return Split{}, ErrArithmetic
	}
	return Split{Gross: amount.ToBig(), Fee: fee.ToBig(), Net: net.ToBig()}, nil
}

// Totals aggregates fee accounting for reporting.
type Totals struct {
	Count uint64
	Gross *big.Int
	Fee   *big.Int
	Net   *big.Int
}

// Add folds a split into the totals.
func (t *Totals) Add(s Split) {
	if t.Gross == nil {
		t.Gross, t.Fee, t.Net = big.NewInt(0), big.NewInt(0), big.NewInt(0)
	}
	t.Count++
	if s.Gross != nil {
		t.Gross.Add(t.Gross, s.Gross)
	}
	if s.Fee != nil {
		t.Fee.Add(t.Fee, s.Fee)
	}
	if s.Net != nil {
		t.Net.Add(t.Net, s.Net)
	}
}
