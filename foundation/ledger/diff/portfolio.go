package diff

import (
	"math"

	"github.com/meridianchain/meridian/foundation/ledger/errs"
	"github.com/meridianchain/meridian/foundation/ledger/transaction"
	"github.com/meridianchain/meridian/foundation/ledger/wire"
)

// Portfolio represents an account balance delta: the native coin amount,
// lease amounts, and per asset amounts, all signed. The zero value is the
// identity and Combine is pointwise addition, associative and commutative.
type Portfolio struct {
	Balance  int64
	LeaseIn  int64
	LeaseOut int64
	Assets   map[transaction.Digest]int64
}

// NativePortfolio constructs a portfolio holding only a native coin delta.
func NativePortfolio(amount int64) Portfolio {
	return Portfolio{Balance: amount}
}

// AssetPortfolio constructs a portfolio holding a delta of one asset, or of
// the native coin when the marker is not present.
func AssetPortfolio(asset transaction.OptionalAsset, amount int64) Portfolio {
	if !asset.Present {
		return NativePortfolio(amount)
	}
	return Portfolio{Assets: map[transaction.Digest]int64{asset.ID: amount}}
}

// Combine adds two portfolios pointwise. The operation fails with a
// classified overflow instead of wrapping.
func (p Portfolio) Combine(other Portfolio) (Portfolio, error) {
	balance, err := checkedAdd(p.Balance, other.Balance)
	if err != nil {
		return Portfolio{}, err
	}
	leaseIn, err := checkedAdd(p.LeaseIn, other.LeaseIn)
	if err != nil {
		return Portfolio{}, err
	}
	leaseOut, err := checkedAdd(p.LeaseOut, other.LeaseOut)
	if err != nil {
		return Portfolio{}, err
	}

	combined := Portfolio{
		Balance:  balance,
		LeaseIn:  leaseIn,
		LeaseOut: leaseOut,
	}

	if len(p.Assets)+len(other.Assets) > 0 {
		combined.Assets = make(map[transaction.Digest]int64, len(p.Assets)+len(other.Assets))
		for id, amount := range p.Assets {
			combined.Assets[id] = amount
		}
		for id, amount := range other.Assets {
			sum, err := checkedAdd(combined.Assets[id], amount)
			if err != nil {
				return Portfolio{}, err
			}
			combined.Assets[id] = sum
		}
	}

	return combined, nil
}

// Asset returns the delta held for the specified asset marker.
func (p Portfolio) Asset(asset transaction.OptionalAsset) int64 {
	if !asset.Present {
		return p.Balance
	}
	return p.Assets[asset.ID]
}

// Negate returns the pointwise negation, the exact inverse under Combine.
func (p Portfolio) Negate() Portfolio {
	negated := Portfolio{
		Balance:  -p.Balance,
		LeaseIn:  -p.LeaseIn,
		LeaseOut: -p.LeaseOut,
	}
	if len(p.Assets) > 0 {
		negated.Assets = make(map[transaction.Digest]int64, len(p.Assets))
		for id, amount := range p.Assets {
			negated.Assets[id] = -amount
		}
	}
	return negated
}

// Spendable returns the native coin amount not locked by outgoing leases.
func (p Portfolio) Spendable() int64 {
	return p.Balance - p.LeaseOut
}

// Effective returns the native coin amount weighted for generation
// eligibility: own balance plus incoming leases minus outgoing leases.
func (p Portfolio) Effective() int64 {
	return p.Balance + p.LeaseIn - p.LeaseOut
}

// checkedAdd adds two signed amounts and fails on int64 overflow in either
// direction.
func checkedAdd(a int64, b int64) (int64, error) {
	if b > 0 && a > 0 && wire.AddWouldOverflow(a, b) {
		return 0, errs.NewOverflow("%d plus %d overflows", a, b)
	}
	if b < 0 && a < 0 && a < math.MinInt64-b {
		return 0, errs.NewOverflow("%d plus %d overflows", a, b)
	}
	return a + b, nil
}
