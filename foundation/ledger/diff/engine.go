package diff

import (
	"github.com/meridianchain/meridian/foundation/ledger/errs"
	"github.com/meridianchain/meridian/foundation/ledger/settings"
	"github.com/meridianchain/meridian/foundation/ledger/transaction"
	"github.com/meridianchain/meridian/foundation/ledger/wire"
)

// Engine computes the ledger delta of a single transaction. The computation
// is pure with respect to the snapshot it reads through: it never mutates
// state, it only reads and produces a Diff. Validation of balances, timing,
// and feature gating happens before the engine runs.
type Engine struct {
	reader Reader
	fn     settings.Functionality
	height uint64
	// blockTime is the timestamp of the block the transaction lands in. Time
	// based allowances compare against it, not the transaction timestamp,
	// because the block decides when a rule change takes effect.
	blockTime int64
}

// NewEngine constructs an engine producing deltas for the block being built
// at the specified height and timestamp.
func NewEngine(reader Reader, fn settings.Functionality, height uint64, blockTime int64) *Engine {
	return &Engine{
		reader:    reader,
		fn:        fn,
		height:    height,
		blockTime: blockTime,
	}
}

// CreateDiff computes the ledger delta of the specified transaction. The
// type switch is exhaustive over the sealed transaction set, so an unknown
// variant can only mean a version skew and fails loudly.
func (e *Engine) CreateDiff(tx transaction.Transaction) (Diff, error) {
	switch t := tx.(type) {
	case *transaction.Genesis:
		return e.genesisDiff(t)
	case *transaction.Payment:
		return e.paymentDiff(t)
	case *transaction.Issue:
		return e.issueDiff(t)
	case *transaction.Transfer:
		return e.transferDiff(t)
	case *transaction.Reissue:
		return e.reissueDiff(t)
	case *transaction.Burn:
		return e.burnDiff(t)
	case *transaction.Exchange:
		return e.exchangeDiff(t)
	case *transaction.Lease:
		return e.leaseDiff(t)
	case *transaction.LeaseCancel:
		return e.leaseCancelDiff(t)
	case *transaction.CreateAlias:
		return e.createAliasDiff(t)
	case *transaction.MassTransfer:
		return e.massTransferDiff(t)
	case *transaction.Data:
		return e.dataDiff(t)
	case *transaction.SetScript:
		return e.setScriptDiff(t)
	case *transaction.Sponsorship:
		return e.sponsorshipDiff(t)
	case *transaction.RegistryTransfer:
		return e.registryTransferDiff(t)
	default:
		return Diff{}, errs.NewGeneric("transaction type %d is not supported", tx.GetType())
	}
}

// newTxDiff starts the delta for a transaction: the applied transaction
// record plus the fee debited from the sender. Fees are not credited here,
// the block builder credits the collected fees to the generator.
func (e *Engine) newTxDiff(tx transaction.Transaction) (Diff, transaction.Address, error) {
	id, err := tx.ID()
	if err != nil {
		return Diff{}, transaction.Address{}, err
	}

	d := New(e.height)
	d.Transactions[id] = TxInfo{Height: e.height, Tx: tx}

	sender := transaction.AddressFromPublicKey(tx.GetSenderPK())
	if fee := tx.GetFee(); fee > 0 {
		feeAsset := tx.GetFeeAsset()
		if err := e.checkAssetUsable(feeAsset); err != nil {
			return Diff{}, transaction.Address{}, err
		}
		if err := d.addPortfolio(sender, AssetPortfolio(feeAsset, -fee)); err != nil {
			return Diff{}, transaction.Address{}, err
		}
	}

	return d, sender, nil
}

// checkAssetUsable verifies a referenced asset has been issued. Blocks
// before the unissued assets cutoff accepted references to assets that did
// not exist yet, so the check is skipped for them.
func (e *Engine) checkAssetUsable(asset transaction.OptionalAsset) error {
	if !asset.Present {
		return nil
	}
	if e.blockTime < e.fn.AllowUnissuedAssetsUntil {
		return nil
	}
	if _, exists := e.reader.AssetInfo(asset.ID); !exists {
		return errs.NewGeneric("asset %s is not issued", asset.ID)
	}
	return nil
}

// =============================================================================

func (e *Engine) genesisDiff(tx *transaction.Genesis) (Diff, error) {
	id, err := tx.ID()
	if err != nil {
		return Diff{}, err
	}

	d := New(e.height)
	d.Transactions[id] = TxInfo{Height: e.height, Tx: tx}

	if err := d.addPortfolio(tx.Recipient, NativePortfolio(tx.Amount)); err != nil {
		return Diff{}, err
	}
	return d, nil
}

func (e *Engine) paymentDiff(tx *transaction.Payment) (Diff, error) {
	d, sender, err := e.newTxDiff(tx)
	if err != nil {
		return Diff{}, err
	}

	if err := d.addPortfolio(sender, NativePortfolio(-tx.Amount)); err != nil {
		return Diff{}, err
	}
	if err := d.addPortfolio(tx.Recipient, NativePortfolio(tx.Amount)); err != nil {
		return Diff{}, err
	}
	return d, nil
}

func (e *Engine) transferDiff(tx *transaction.Transfer) (Diff, error) {
	if err := e.checkAssetUsable(tx.AmountAsset); err != nil {
		return Diff{}, err
	}

	d, sender, err := e.newTxDiff(tx)
	if err != nil {
		return Diff{}, err
	}

	recipient, err := e.reader.ResolveAlias(tx.Recipient)
	if err != nil {
		return Diff{}, err
	}

	if err := d.addPortfolio(sender, AssetPortfolio(tx.AmountAsset, -tx.Amount)); err != nil {
		return Diff{}, err
	}
	if err := d.addPortfolio(recipient, AssetPortfolio(tx.AmountAsset, tx.Amount)); err != nil {
		return Diff{}, err
	}
	return d, nil
}

func (e *Engine) issueDiff(tx *transaction.Issue) (Diff, error) {
	d, sender, err := e.newTxDiff(tx)
	if err != nil {
		return Diff{}, err
	}

	// The id of the new asset is the id of the issuing transaction.
	assetID, err := tx.ID()
	if err != nil {
		return Diff{}, err
	}

	d.IssuedAssets = setEntry(d.IssuedAssets, assetID, AssetInfo{
		Issuer:     sender,
		IssuerPK:   tx.GetSenderPK(),
		Name:       string(tx.Name),
		Decimals:   tx.Decimals,
		Reissuable: tx.Reissuable,
		Quantity:   tx.Quantity,
	})

	asset := transaction.NewOptionalAsset(assetID)
	if err := d.addPortfolio(sender, AssetPortfolio(asset, tx.Quantity)); err != nil {
		return Diff{}, err
	}
	return d, nil
}

func (e *Engine) reissueDiff(tx *transaction.Reissue) (Diff, error) {
	info, exists := e.reader.AssetInfo(tx.AssetID)
	if !exists {
		return Diff{}, errs.NewGeneric("asset %s is not issued", tx.AssetID)
	}
	if info.IssuerPK != tx.GetSenderPK() {
		return Diff{}, errs.NewGeneric("asset %s can only be reissued by the issuer", tx.AssetID)
	}
	if !info.Reissuable {
		return Diff{}, errs.NewGeneric("asset %s is not reissuable", tx.AssetID)
	}
	if wire.AddWouldOverflow(info.Quantity, tx.Quantity) {
		return Diff{}, errs.NewOverflow("reissuing %d of asset %s overflows the total quantity", tx.Quantity, tx.AssetID)
	}

	d, sender, err := e.newTxDiff(tx)
	if err != nil {
		return Diff{}, err
	}

	d.AssetQuantities = setEntry(d.AssetQuantities, tx.AssetID, tx.Quantity)
	if !tx.Reissuable {
		d.NonReissuable = setEntry(d.NonReissuable, tx.AssetID, struct{}{})
	}

	asset := transaction.NewOptionalAsset(tx.AssetID)
	if err := d.addPortfolio(sender, AssetPortfolio(asset, tx.Quantity)); err != nil {
		return Diff{}, err
	}
	return d, nil
}

func (e *Engine) burnDiff(tx *transaction.Burn) (Diff, error) {
	if _, exists := e.reader.AssetInfo(tx.AssetID); !exists {
		return Diff{}, errs.NewGeneric("asset %s is not issued", tx.AssetID)
	}

	d, sender, err := e.newTxDiff(tx)
	if err != nil {
		return Diff{}, err
	}

	d.AssetQuantities = setEntry(d.AssetQuantities, tx.AssetID, -tx.Amount)

	asset := transaction.NewOptionalAsset(tx.AssetID)
	if err := d.addPortfolio(sender, AssetPortfolio(asset, -tx.Amount)); err != nil {
		return Diff{}, err
	}
	return d, nil
}

func (e *Engine) exchangeDiff(tx *transaction.Exchange) (Diff, error) {
	if err := e.checkAssetUsable(tx.AmountAsset); err != nil {
		return Diff{}, err
	}
	if err := e.checkAssetUsable(tx.PriceAsset); err != nil {
		return Diff{}, err
	}

	priceValue, err := tx.PriceValue()
	if err != nil {
		return Diff{}, err
	}

	d, matcher, err := e.newTxDiff(tx)
	if err != nil {
		return Diff{}, err
	}

	buyer := transaction.AddressFromPublicKey(tx.BuyerPK)
	seller := transaction.AddressFromPublicKey(tx.SellerPK)

	// Trade legs: the amount asset moves seller to buyer, the price asset
	// moves buyer to seller.
	legs := []struct {
		addr transaction.Address
		p    Portfolio
	}{
		{buyer, AssetPortfolio(tx.AmountAsset, tx.Amount)},
		{seller, AssetPortfolio(tx.AmountAsset, -tx.Amount)},
		{buyer, AssetPortfolio(tx.PriceAsset, -priceValue)},
		{seller, AssetPortfolio(tx.PriceAsset, priceValue)},

		// Matcher fees are always native and flow to the matcher.
		{buyer, NativePortfolio(-tx.BuyMatcherFee)},
		{seller, NativePortfolio(-tx.SellMatcherFee)},
		{matcher, NativePortfolio(tx.BuyMatcherFee)},
		{matcher, NativePortfolio(tx.SellMatcherFee)},
	}
	for _, leg := range legs {
		if err := d.addPortfolio(leg.addr, leg.p); err != nil {
			return Diff{}, err
		}
	}

	return d, nil
}

func (e *Engine) leaseDiff(tx *transaction.Lease) (Diff, error) {
	d, sender, err := e.newTxDiff(tx)
	if err != nil {
		return Diff{}, err
	}

	recipient, err := e.reader.ResolveAlias(tx.Recipient)
	if err != nil {
		return Diff{}, err
	}
	if recipient == sender {
		return Diff{}, errs.NewGeneric("leasing to the own account is not allowed")
	}

	id, err := tx.ID()
	if err != nil {
		return Diff{}, err
	}
	d.NewLeases = setEntry(d.NewLeases, id, LeaseInfo{
		Sender:    sender,
		Recipient: recipient,
		Amount:    tx.Amount,
	})

	if err := d.addPortfolio(sender, Portfolio{LeaseOut: tx.Amount}); err != nil {
		return Diff{}, err
	}
	if err := d.addPortfolio(recipient, Portfolio{LeaseIn: tx.Amount}); err != nil {
		return Diff{}, err
	}
	return d, nil
}

func (e *Engine) leaseCancelDiff(tx *transaction.LeaseCancel) (Diff, error) {
	lease, exists := e.reader.LeaseInfo(tx.LeaseID)
	if !exists {
		return Diff{}, errs.NewGeneric("lease %s is not active", tx.LeaseID)
	}

	d, sender, err := e.newTxDiff(tx)
	if err != nil {
		return Diff{}, err
	}

	if lease.Sender != sender {
		return Diff{}, errs.NewGeneric("lease %s can only be cancelled by the sender", tx.LeaseID)
	}

	d.CancelledLeases = setEntry(d.CancelledLeases, tx.LeaseID, lease)

	if err := d.addPortfolio(lease.Sender, Portfolio{LeaseOut: -lease.Amount}); err != nil {
		return Diff{}, err
	}
	if err := d.addPortfolio(lease.Recipient, Portfolio{LeaseIn: -lease.Amount}); err != nil {
		return Diff{}, err
	}
	return d, nil
}

func (e *Engine) createAliasDiff(tx *transaction.CreateAlias) (Diff, error) {
	if _, err := e.reader.ResolveAlias(transaction.NewAliasRecipient(tx.Alias)); err == nil {
		return Diff{}, errs.NewGeneric("alias %q is already registered", tx.Alias)
	}

	d, sender, err := e.newTxDiff(tx)
	if err != nil {
		return Diff{}, err
	}

	d.Aliases = setEntry(d.Aliases, tx.Alias, sender)
	return d, nil
}

func (e *Engine) massTransferDiff(tx *transaction.MassTransfer) (Diff, error) {
	if err := e.checkAssetUsable(tx.Asset); err != nil {
		return Diff{}, err
	}

	d, sender, err := e.newTxDiff(tx)
	if err != nil {
		return Diff{}, err
	}

	if err := d.addPortfolio(sender, AssetPortfolio(tx.Asset, -tx.TotalAmount())); err != nil {
		return Diff{}, err
	}
	for _, entry := range tx.Transfers {
		recipient, err := e.reader.ResolveAlias(entry.Recipient)
		if err != nil {
			return Diff{}, err
		}
		if err := d.addPortfolio(recipient, AssetPortfolio(tx.Asset, entry.Amount)); err != nil {
			return Diff{}, err
		}
	}
	return d, nil
}

func (e *Engine) dataDiff(tx *transaction.Data) (Diff, error) {
	d, sender, err := e.newTxDiff(tx)
	if err != nil {
		return Diff{}, err
	}

	for _, entry := range tx.Entries {
		if d.AccountData == nil {
			d.AccountData = make(map[transaction.Address]map[string]transaction.DataEntry)
		}
		d.AccountData[sender] = setEntry(d.AccountData[sender], entry.Key, entry)
	}
	return d, nil
}

func (e *Engine) setScriptDiff(tx *transaction.SetScript) (Diff, error) {
	d, sender, err := e.newTxDiff(tx)
	if err != nil {
		return Diff{}, err
	}

	d.Scripts = setEntry(d.Scripts, sender, tx.Script)
	return d, nil
}

func (e *Engine) sponsorshipDiff(tx *transaction.Sponsorship) (Diff, error) {
	info, exists := e.reader.AssetInfo(tx.AssetID)
	if !exists {
		return Diff{}, errs.NewGeneric("asset %s is not issued", tx.AssetID)
	}
	if info.IssuerPK != tx.GetSenderPK() {
		return Diff{}, errs.NewGeneric("asset %s can only be sponsored by the issuer", tx.AssetID)
	}

	d, _, err := e.newTxDiff(tx)
	if err != nil {
		return Diff{}, err
	}

	d.Sponsorships = setEntry(d.Sponsorships, tx.AssetID, tx.MinAssetFee)
	return d, nil
}

func (e *Engine) registryTransferDiff(tx *transaction.RegistryTransfer) (Diff, error) {
	d, sender, err := e.newTxDiff(tx)
	if err != nil {
		return Diff{}, err
	}

	recipient, err := e.reader.ResolveAlias(tx.Recipient)
	if err != nil {
		return Diff{}, err
	}

	if err := d.addPortfolio(sender, NativePortfolio(-tx.Amount)); err != nil {
		return Diff{}, err
	}
	if err := d.addPortfolio(recipient, NativePortfolio(tx.Amount)); err != nil {
		return Diff{}, err
	}
	return d, nil
}
