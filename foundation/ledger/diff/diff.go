// Package diff implements the ledger delta produced by applying
// transactions and the pure per type functions that compute those deltas.
// Deltas combine with one associative merge function so a block diff can be
// built incrementally, while the per transaction computation order stays
// fixed because alias registration is visible to later transactions in the
// same block.
package diff

import (
	"github.com/meridianchain/meridian/foundation/ledger/errs"
	"github.com/meridianchain/meridian/foundation/ledger/settings"
	"github.com/meridianchain/meridian/foundation/ledger/transaction"
)

// TxInfo represents a committed transaction and the height it was applied.
type TxInfo struct {
	Height uint64
	Tx     transaction.Transaction
}

// AssetInfo represents the registry entry of an issued asset.
type AssetInfo struct {
	Issuer     transaction.Address
	IssuerPK   transaction.PublicKey
	Name       string
	Decimals   byte
	Reissuable bool
	Quantity   int64
}

// LeaseInfo represents an active lease.
type LeaseInfo struct {
	Sender    transaction.Address
	Recipient transaction.Address
	Amount    int64
}

// =============================================================================

// Reader is the point in time snapshot view of ledger state the validation
// and diff computations read through. Implementations must never observe a
// partially applied block.
type Reader interface {
	Height() uint64
	Balance(addr transaction.Address, asset transaction.OptionalAsset) (int64, error)
	PartialPortfolio(addr transaction.Address, assets []transaction.OptionalAsset) (Portfolio, error)
	ResolveAlias(rcp transaction.Recipient) (transaction.Address, error)
	TransactionInfo(id transaction.Digest) (TxInfo, bool)
	AssetInfo(id transaction.Digest) (AssetInfo, bool)
	LeaseInfo(id transaction.Digest) (LeaseInfo, bool)
	AccountData(addr transaction.Address, key string) (transaction.DataEntry, bool)
	EffectiveBalanceWithConfirmations(addr transaction.Address, height uint64, confirmations uint64) (int64, error)
}

// FeatureProvider reports whether a protocol rule change is in force at a
// height.
type FeatureProvider interface {
	IsFeatureActivated(feature settings.Feature, height uint64) bool
}

// =============================================================================

// Diff represents the ledger delta of one transaction, or of a whole block
// once per transaction diffs are merged.
type Diff struct {
	Height       uint64
	Transactions map[transaction.Digest]TxInfo
	Portfolios   map[transaction.Address]Portfolio

	Aliases         map[transaction.Alias]transaction.Address
	NewLeases       map[transaction.Digest]LeaseInfo
	CancelledLeases map[transaction.Digest]LeaseInfo
	IssuedAssets    map[transaction.Digest]AssetInfo
	AssetQuantities map[transaction.Digest]int64
	NonReissuable   map[transaction.Digest]struct{}
	Sponsorships    map[transaction.Digest]int64
	AccountData     map[transaction.Address]map[string]transaction.DataEntry
	Scripts         map[transaction.Address][]byte
}

// New constructs the identity diff at the specified height.
func New(height uint64) Diff {
	return Diff{
		Height:       height,
		Transactions: make(map[transaction.Digest]TxInfo),
		Portfolios:   make(map[transaction.Address]Portfolio),
	}
}

// addPortfolio folds a portfolio delta for an address into the diff.
func (d *Diff) addPortfolio(addr transaction.Address, p Portfolio) error {
	combined, err := d.Portfolios[addr].Combine(p)
	if err != nil {
		return err
	}
	d.Portfolios[addr] = combined
	return nil
}

// Merge combines two diffs. The merge is associative: merging a sequence of
// per transaction diffs gives the same block diff under any grouping. Maps
// that record replacements (sponsorship minimums, scripts, account data)
// take the value of the argument diff, which corresponds to later in block
// order. The receiver's maps are folded into and reused, so the receiver
// is consumed by the call.
func (d Diff) Merge(other Diff) (Diff, error) {
	merged := d
	if other.Height > merged.Height {
		merged.Height = other.Height
	}

	for id, info := range other.Transactions {
		if existing, exists := merged.Transactions[id]; exists {

			// The legacy genesis and payment types predate the id
			// uniqueness rule. A repeated id keeps its first seen record.
			switch info.Tx.GetType() {
			case transaction.TypeGenesis, transaction.TypePayment:
				continue
			}

			return Diff{}, &errs.AlreadyInTheState{TxID: id.String(), Height: existing.Height}
		}
		merged.Transactions[id] = info
	}
	for addr, p := range other.Portfolios {
		if err := merged.addPortfolio(addr, p); err != nil {
			return Diff{}, err
		}
	}

	for alias, addr := range other.Aliases {
		if existing, exists := merged.Aliases[alias]; exists && existing != addr {
			return Diff{}, errs.NewGeneric("alias %q registered twice in one block", alias)
		}
		merged.Aliases = setEntry(merged.Aliases, alias, addr)
	}
	for id, lease := range other.NewLeases {
		merged.NewLeases = setEntry(merged.NewLeases, id, lease)
	}
	for id, lease := range other.CancelledLeases {
		merged.CancelledLeases = setEntry(merged.CancelledLeases, id, lease)
	}
	for id, info := range other.IssuedAssets {
		merged.IssuedAssets = setEntry(merged.IssuedAssets, id, info)
	}
	for id, quantity := range other.AssetQuantities {
		merged.AssetQuantities = setEntry(merged.AssetQuantities, id, merged.AssetQuantities[id]+quantity)
	}
	for id := range other.NonReissuable {
		merged.NonReissuable = setEntry(merged.NonReissuable, id, struct{}{})
	}
	for id, minimum := range other.Sponsorships {
		merged.Sponsorships = setEntry(merged.Sponsorships, id, minimum)
	}
	for addr, entries := range other.AccountData {
		for key, entry := range entries {
			if merged.AccountData == nil {
				merged.AccountData = make(map[transaction.Address]map[string]transaction.DataEntry)
			}
			merged.AccountData[addr] = setEntry(merged.AccountData[addr], key, entry)
		}
	}
	for addr, script := range other.Scripts {
		merged.Scripts = setEntry(merged.Scripts, addr, script)
	}

	return merged, nil
}

// setEntry assigns into a possibly nil map, allocating it on first use.
func setEntry[K comparable, V any](m map[K]V, k K, v V) map[K]V {
	if m == nil {
		m = make(map[K]V)
	}
	m[k] = v
	return m
}
