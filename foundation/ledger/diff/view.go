package diff

import (
	"github.com/meridianchain/meridian/foundation/ledger/errs"
	"github.com/meridianchain/meridian/foundation/ledger/transaction"
)

// View layers an in progress block diff over a committed state snapshot.
// Later transactions in a block read through a View so they observe aliases
// registered, assets issued, and balances spent by earlier transactions in
// the same block.
type View struct {
	base    Reader
	overlay *Diff
}

// NewView constructs a View over the base snapshot and the block diff
// accumulated so far.
func NewView(base Reader, overlay *Diff) *View {
	return &View{base: base, overlay: overlay}
}

// Height returns the height of the block being built.
func (v *View) Height() uint64 {
	if v.overlay.Height != 0 {
		return v.overlay.Height
	}
	return v.base.Height()
}

// Balance returns the committed balance adjusted by the overlay delta.
func (v *View) Balance(addr transaction.Address, asset transaction.OptionalAsset) (int64, error) {
	balance, err := v.base.Balance(addr, asset)
	if err != nil {
		return 0, err
	}
	return balance + v.overlay.Portfolios[addr].Asset(asset), nil
}

// PartialPortfolio returns the committed portfolio restricted to the
// specified assets, adjusted by the overlay delta.
func (v *View) PartialPortfolio(addr transaction.Address, assets []transaction.OptionalAsset) (Portfolio, error) {
	p, err := v.base.PartialPortfolio(addr, assets)
	if err != nil {
		return Portfolio{}, err
	}

	delta, exists := v.overlay.Portfolios[addr]
	if !exists {
		return p, nil
	}

	restricted := Portfolio{
		Balance:  delta.Balance,
		LeaseIn:  delta.LeaseIn,
		LeaseOut: delta.LeaseOut,
	}
	for _, asset := range assets {
		if asset.Present && delta.Assets[asset.ID] != 0 {
			if restricted.Assets == nil {
				restricted.Assets = make(map[transaction.Digest]int64)
			}
			restricted.Assets[asset.ID] = delta.Assets[asset.ID]
		}
	}

	return p.Combine(restricted)
}

// ResolveAlias resolves a recipient, consulting aliases registered earlier
// in the same block before the committed state.
func (v *View) ResolveAlias(rcp transaction.Recipient) (transaction.Address, error) {
	if rcp.Addr != nil {
		return *rcp.Addr, nil
	}
	if addr, exists := v.overlay.Aliases[rcp.Alias]; exists {
		return addr, nil
	}
	return v.base.ResolveAlias(rcp)
}

// TransactionInfo reports a transaction already committed or already
// applied earlier in the same block.
func (v *View) TransactionInfo(id transaction.Digest) (TxInfo, bool) {
	if info, exists := v.overlay.Transactions[id]; exists {
		return info, true
	}
	return v.base.TransactionInfo(id)
}

// AssetInfo reports an asset from the committed registry or issued earlier
// in the same block, with in block quantity and reissuability changes
// folded in.
func (v *View) AssetInfo(id transaction.Digest) (AssetInfo, bool) {
	info, exists := v.overlay.IssuedAssets[id]
	if !exists {
		info, exists = v.base.AssetInfo(id)
		if !exists {
			return AssetInfo{}, false
		}
	}

	info.Quantity += v.overlay.AssetQuantities[id]
	if _, frozen := v.overlay.NonReissuable[id]; frozen {
		info.Reissuable = false
	}
	return info, true
}

// LeaseInfo reports an active lease, accounting for leases created or
// cancelled earlier in the same block.
func (v *View) LeaseInfo(id transaction.Digest) (LeaseInfo, bool) {
	if _, cancelled := v.overlay.CancelledLeases[id]; cancelled {
		return LeaseInfo{}, false
	}
	if lease, exists := v.overlay.NewLeases[id]; exists {
		return lease, true
	}
	return v.base.LeaseInfo(id)
}

// AccountData reports a data entry, preferring writes from earlier in the
// same block.
func (v *View) AccountData(addr transaction.Address, key string) (transaction.DataEntry, bool) {
	if entries, exists := v.overlay.AccountData[addr]; exists {
		if entry, exists := entries[key]; exists {
			return entry, true
		}
	}
	return v.base.AccountData(addr, key)
}

// EffectiveBalanceWithConfirmations delegates to the committed state: the
// generating balance window never includes the block being built.
func (v *View) EffectiveBalanceWithConfirmations(addr transaction.Address, height uint64, confirmations uint64) (int64, error) {
	return v.base.EffectiveBalanceWithConfirmations(addr, height, confirmations)
}

// ensure the layered view satisfies the snapshot contract.
var _ Reader = (*View)(nil)

// ErrAliasUnknown constructs the failure snapshot implementations return
// for an unresolved alias.
func ErrAliasUnknown(alias transaction.Alias) error {
	return errs.NewGeneric("alias %q is not registered", alias)
}
