// Package validation implements the common check battery every transaction
// passes before its ledger delta is computed. The checks run in a fixed
// order with a short circuit on the first failure. The order is part of the
// consensus contract: independent nodes must reject the same invalid
// transaction with the same error kind.
package validation

import (
	"github.com/meridianchain/meridian/foundation/ledger/diff"
	"github.com/meridianchain/meridian/foundation/ledger/errs"
	"github.com/meridianchain/meridian/foundation/ledger/settings"
	"github.com/meridianchain/meridian/foundation/ledger/transaction"
	"github.com/meridianchain/meridian/foundation/ledger/wire"
)

// gatedFeatures maps each transaction type that requires a protocol rule
// change to the feature that governs it. Types absent from the map are
// always allowed.
var gatedFeatures = map[transaction.Type]settings.Feature{
	transaction.TypeMassTransfer: settings.FeatureMassTransfer,
	transaction.TypeData:         settings.FeatureDataTransactions,
	transaction.TypeSetScript:    settings.FeatureSmartAccounts,
	transaction.TypeSponsorship:  settings.FeatureSponsoredFees,
}

// Validator runs the ordered check battery against a point in time state
// snapshot.
type Validator struct {
	reader   diff.Reader
	features diff.FeatureProvider
	fn       settings.Functionality
}

// New constructs a validator reading through the specified snapshot.
func New(reader diff.Reader, features diff.FeatureProvider, fn settings.Functionality) *Validator {
	return &Validator{
		reader:   reader,
		features: features,
		fn:       fn,
	}
}

// Validate runs every check in battery order. blockTime is the timestamp of
// the block the transaction would land in and prevBlockTime is the
// timestamp of the block before it, zero when validating against the first
// block.
func (v *Validator) Validate(tx transaction.Transaction, blockTime int64, prevBlockTime int64) error {
	checks := []func(tx transaction.Transaction, blockTime int64, prevBlockTime int64) error{
		v.checkFutureTimestamp,
		v.checkPastTimestamp,
		v.checkDuplicateID,
		v.checkActivation,
		v.checkBalance,
	}

	for _, check := range checks {
		if err := check(tx, blockTime, prevBlockTime); err != nil {
			return err
		}
	}
	return nil
}

// checkFutureTimestamp rejects a transaction timestamped too far ahead of
// the block time. Chains configured with a future allowance accept early
// timestamps until the allowance expires.
func (v *Validator) checkFutureTimestamp(tx transaction.Transaction, blockTime int64, prevBlockTime int64) error {
	ts := tx.GetTimestamp()
	if ts < v.fn.AllowTransactionsFromFutureUntil {
		return nil
	}

	if ts-blockTime > v.fn.MaxTxTimeForwardOffset.Milliseconds() {
		return errs.NewMistiming("transaction timestamp %d is more than %v ahead of block time %d", ts, v.fn.MaxTxTimeForwardOffset, blockTime)
	}
	return nil
}

// checkPastTimestamp rejects a transaction timestamped too far behind the
// previous block.
func (v *Validator) checkPastTimestamp(tx transaction.Transaction, blockTime int64, prevBlockTime int64) error {
	if prevBlockTime == 0 {
		return nil
	}

	if ts := tx.GetTimestamp(); prevBlockTime-ts > v.fn.MaxTxTimeBackwardOffset.Milliseconds() {
		return errs.NewMistiming("transaction timestamp %d is more than %v behind previous block time %d", ts, v.fn.MaxTxTimeBackwardOffset, prevBlockTime)
	}
	return nil
}

// checkDuplicateID rejects a transaction whose id is already committed. The
// legacy genesis and payment types predate the id uniqueness rule and are
// exempt.
func (v *Validator) checkDuplicateID(tx transaction.Transaction, blockTime int64, prevBlockTime int64) error {
	switch tx.GetType() {
	case transaction.TypeGenesis, transaction.TypePayment:
		return nil
	}

	id, err := tx.ID()
	if err != nil {
		return err
	}

	if info, exists := v.reader.TransactionInfo(id); exists {
		return &errs.AlreadyInTheState{TxID: id.String(), Height: info.Height}
	}
	return nil
}

// checkActivation rejects a transaction whose type is gated behind a
// feature not yet activated at the current height.
func (v *Validator) checkActivation(tx transaction.Transaction, blockTime int64, prevBlockTime int64) error {
	feature, gated := gatedFeatures[tx.GetType()]
	if !gated {
		return nil
	}

	if height := v.reader.Height(); !v.features.IsFeatureActivated(feature, height) {
		return errs.NewActivation("%s transactions are not activated at height %d", tx.GetType(), height)
	}
	return nil
}

// checkBalance rejects a transaction whose sender cannot cover the amount
// and fee. Early chains ran without the check to let accounts go
// temporarily negative, so it is only enforced once the configured
// allowance has passed.
func (v *Validator) checkBalance(tx transaction.Transaction, blockTime int64, prevBlockTime int64) error {
	if blockTime <= v.fn.AllowTemporaryNegativeUntil {
		return nil
	}

	sender := transaction.AddressFromPublicKey(tx.GetSenderPK())

	switch t := tx.(type) {
	case *transaction.Payment:
		balance, err := v.reader.Balance(sender, transaction.OptionalAsset{})
		if err != nil {
			return err
		}
		spend, err := checkedAdd(t.Amount, t.Fee)
		if err != nil {
			return err
		}
		if balance < spend {
			return &errs.NegativeAmount{Amount: balance - spend, Unit: "native"}
		}
		return nil

	case *transaction.Transfer:
		spend, err := spendOf(t.AmountAsset, t.Amount, t.GetFeeAsset(), t.Fee)
		if err != nil {
			return err
		}
		return v.checkSpend(sender, spend)

	case *transaction.RegistryTransfer:
		spend, err := spendOf(transaction.OptionalAsset{}, t.Amount, t.GetFeeAsset(), t.Fee)
		if err != nil {
			return err
		}
		return v.checkSpend(sender, spend)

	case *transaction.MassTransfer:
		spend, err := spendOf(t.Asset, t.TotalAmount(), t.GetFeeAsset(), t.Fee)
		if err != nil {
			return err
		}
		return v.checkSpend(sender, spend)
	}

	return nil
}

// checkSpend verifies the sender portfolio covers the combined spend per
// touched asset.
func (v *Validator) checkSpend(sender transaction.Address, spend map[transaction.OptionalAsset]int64) error {
	assets := make([]transaction.OptionalAsset, 0, len(spend))
	for asset := range spend {
		assets = append(assets, asset)
	}

	p, err := v.reader.PartialPortfolio(sender, assets)
	if err != nil {
		return err
	}

	for asset, amount := range spend {
		if have := p.Asset(asset); have < amount {
			return &errs.NegativeAmount{Amount: have - amount, Unit: asset.String()}
		}
	}
	return nil
}

// spendOf combines the amount and fee legs into a per asset spend map,
// folding them together when they share the asset.
func spendOf(amountAsset transaction.OptionalAsset, amount int64, feeAsset transaction.OptionalAsset, fee int64) (map[transaction.OptionalAsset]int64, error) {
	spend := map[transaction.OptionalAsset]int64{
		amountAsset: amount,
	}

	sum, err := checkedAdd(spend[feeAsset], fee)
	if err != nil {
		return nil, err
	}
	spend[feeAsset] = sum

	return spend, nil
}

// checkedAdd adds two spend legs, classifying a wrap as an overflow instead
// of producing a negative total.
func checkedAdd(a int64, b int64) (int64, error) {
	if wire.AddWouldOverflow(a, b) {
		return 0, errs.NewOverflow("spend %d plus %d overflows", a, b)
	}
	return a + b, nil
}
