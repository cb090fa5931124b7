// Package fees implements the minimum fee sufficiency check. The schedule
// maps a transaction type and fee asset to a base minimum, and a small set
// of type specific shapes adjust the base: data transactions pay per
// kilobyte of body, mass transfers pay per recipient.
package fees

import (
	"github.com/meridianchain/meridian/foundation/ledger/errs"
	"github.com/meridianchain/meridian/foundation/ledger/settings"
	"github.com/meridianchain/meridian/foundation/ledger/transaction"
)

// FeatureProvider reports whether a protocol rule change is in force at a
// height.
type FeatureProvider interface {
	IsFeatureActivated(feature settings.Feature, height uint64) bool
}

// Calculator checks declared transaction fees against the configured
// minimum schedule. The schedule is built once and read only afterwards.
type Calculator struct {
	schedule settings.Fees
	features FeatureProvider
}

// New constructs a fee calculator over the configured schedule.
func New(schedule settings.Fees, features FeatureProvider) *Calculator {
	return &Calculator{
		schedule: schedule,
		features: features,
	}
}

// Enough checks the declared fee of the transaction against the computed
// minimum for its type and fee asset.
func (c *Calculator) Enough(tx transaction.Transaction) error {
	minimum, err := c.MinFee(tx)
	if err != nil {
		return err
	}

	if fee := tx.GetFee(); fee < minimum {
		return errs.NewInsufficientFee("declared fee %d for %s transaction is below the minimum %d", tx.GetFee(), tx.GetType(), minimum)
	}
	return nil
}

// EnoughSponsored checks fee sufficiency for a transaction entering a block
// at the specified height. Once sponsored fees are activated the schedule
// check is bypassed: a sponsoring asset declares its own minimum and the
// sponsor settles the native fee outside this calculator.
func (c *Calculator) EnoughSponsored(tx transaction.Transaction, height uint64) error {
	if c.features.IsFeatureActivated(settings.FeatureSponsoredFees, height) {
		return nil
	}
	return c.Enough(tx)
}

// MinFee computes the minimum fee for the transaction: the schedule base
// for its type and fee asset, adjusted by the type specific shape.
func (c *Calculator) MinFee(tx transaction.Transaction) (int64, error) {
	base, err := c.base(tx.GetType(), tx.GetFeeAsset())
	if err != nil {
		return 0, err
	}

	switch t := tx.(type) {
	case *transaction.Data:
		// Data transactions pay per started kilobyte of body bytes, with a
		// minimum of one unit.
		body, err := t.BodyBytes()
		if err != nil {
			return 0, err
		}
		kilobytes := int64((len(body) + 1023) / 1024)
		if kilobytes < 1 {
			kilobytes = 1
		}
		return base * kilobytes, nil

	case *transaction.MassTransfer:
		// Mass transfers pay the native transfer base once plus the mass
		// transfer base per recipient.
		transferBase, err := c.base(transaction.TypeTransfer, transaction.OptionalAsset{})
		if err != nil {
			return 0, err
		}
		return transferBase + base*int64(len(t.Transfers)), nil

	default:
		return base, nil
	}
}

// base looks up the schedule entry for a transaction type and fee asset.
func (c *Calculator) base(t transaction.Type, asset transaction.OptionalAsset) (int64, error) {
	key := settings.NativeAssetKey
	if asset.Present {
		key = asset.ID.String()
	}

	minimum, exists := c.schedule.Minimum[t.String()][key]
	if !exists {
		return 0, errs.NewGeneric("no minimum fee defined for %s transaction with fee asset %s", t, key)
	}
	return minimum, nil
}
