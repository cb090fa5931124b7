// Package state provides an in memory ledger state store. The store is the
// single source of committed truth for the node: validation and diff
// computations read through its snapshot interface, and the blockchain
// updater is the only writer. Every applied diff is journaled so the store
// can roll back to any earlier point, which is how discarded blocks and
// replaced micro block sequences are unwound.
package state

import (
	"sync"

	"github.com/meridianchain/meridian/foundation/ledger/diff"
	"github.com/meridianchain/meridian/foundation/ledger/errs"
	"github.com/meridianchain/meridian/foundation/ledger/settings"
	"github.com/meridianchain/meridian/foundation/ledger/transaction"
)

// balanceAt records the effective balance of an account as of a height.
// History entries are appended in height order.
type balanceAt struct {
	height    uint64
	effective int64
}

// undoFn reverts one mutation made by an applied diff.
type undoFn func()

// Memory represents the committed ledger state held in memory.
type Memory struct {
	mu sync.RWMutex

	height       uint64
	portfolios   map[transaction.Address]diff.Portfolio
	aliases      map[transaction.Alias]transaction.Address
	transactions map[transaction.Digest]diff.TxInfo
	assets       map[transaction.Digest]diff.AssetInfo
	leases       map[transaction.Digest]diff.LeaseInfo
	sponsorships map[transaction.Digest]int64
	accountData  map[transaction.Address]map[string]transaction.DataEntry
	scripts      map[transaction.Address][]byte

	// effectiveHistory tracks the effective balance of every account over
	// time so generating balance can be computed over a confirmation window.
	effectiveHistory map[transaction.Address][]balanceAt

	features map[settings.Feature]uint64

	journal []undoFn
}

// New constructs an empty state store with the feature activation schedule
// taken from the chain settings.
func New(fn settings.Functionality) *Memory {
	features := make(map[settings.Feature]uint64, len(fn.PreactivatedFeatures))
	for feature, height := range fn.PreactivatedFeatures {
		features[feature] = height
	}

	return &Memory{
		portfolios:       make(map[transaction.Address]diff.Portfolio),
		aliases:          make(map[transaction.Alias]transaction.Address),
		transactions:     make(map[transaction.Digest]diff.TxInfo),
		assets:           make(map[transaction.Digest]diff.AssetInfo),
		leases:           make(map[transaction.Digest]diff.LeaseInfo),
		sponsorships:     make(map[transaction.Digest]int64),
		accountData:      make(map[transaction.Address]map[string]transaction.DataEntry),
		scripts:          make(map[transaction.Address][]byte),
		effectiveHistory: make(map[transaction.Address][]balanceAt),
		features:         features,
	}
}

// =============================================================================
// Snapshot reads. Memory satisfies the reader contract the validation and
// diff packages consume.

// Height returns the height of the last applied block.
func (m *Memory) Height() uint64 {
	m.mu.RLock()
	defer m.mu.RUnlock()

	return m.height
}

// Balance returns the committed balance of an account for one asset marker.
func (m *Memory) Balance(addr transaction.Address, asset transaction.OptionalAsset) (int64, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	return m.portfolios[addr].Asset(asset), nil
}

// PartialPortfolio returns the committed portfolio of an account restricted
// to the specified assets.
func (m *Memory) PartialPortfolio(addr transaction.Address, assets []transaction.OptionalAsset) (diff.Portfolio, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	full := m.portfolios[addr]
	p := diff.Portfolio{
		Balance:  full.Balance,
		LeaseIn:  full.LeaseIn,
		LeaseOut: full.LeaseOut,
	}
	for _, asset := range assets {
		if asset.Present && full.Assets[asset.ID] != 0 {
			if p.Assets == nil {
				p.Assets = make(map[transaction.Digest]int64)
			}
			p.Assets[asset.ID] = full.Assets[asset.ID]
		}
	}

	return p, nil
}

// Portfolio returns a copy of the full committed portfolio of an account.
func (m *Memory) Portfolio(addr transaction.Address) diff.Portfolio {
	m.mu.RLock()
	defer m.mu.RUnlock()

	full := m.portfolios[addr]
	p := diff.Portfolio{
		Balance:  full.Balance,
		LeaseIn:  full.LeaseIn,
		LeaseOut: full.LeaseOut,
	}
	if len(full.Assets) > 0 {
		p.Assets = make(map[transaction.Digest]int64, len(full.Assets))
		for id, amount := range full.Assets {
			p.Assets[id] = amount
		}
	}

	return p
}

// ResolveAlias resolves a recipient to a concrete address.
func (m *Memory) ResolveAlias(rcp transaction.Recipient) (transaction.Address, error) {
	if rcp.Addr != nil {
		return *rcp.Addr, nil
	}

	m.mu.RLock()
	defer m.mu.RUnlock()

	addr, exists := m.aliases[rcp.Alias]
	if !exists {
		return transaction.Address{}, diff.ErrAliasUnknown(rcp.Alias)
	}
	return addr, nil
}

// TransactionInfo reports a committed transaction by id.
func (m *Memory) TransactionInfo(id transaction.Digest) (diff.TxInfo, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	info, exists := m.transactions[id]
	return info, exists
}

// AssetInfo reports the registry entry of an issued asset.
func (m *Memory) AssetInfo(id transaction.Digest) (diff.AssetInfo, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	info, exists := m.assets[id]
	return info, exists
}

// LeaseInfo reports an active lease by id.
func (m *Memory) LeaseInfo(id transaction.Digest) (diff.LeaseInfo, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	lease, exists := m.leases[id]
	return lease, exists
}

// AccountData reports a typed data entry stored on an account.
func (m *Memory) AccountData(addr transaction.Address, key string) (transaction.DataEntry, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	entry, exists := m.accountData[addr][key]
	return entry, exists
}

// SponsorshipMinFee reports the declared minimum sponsored fee for an
// asset. A zero value means the asset does not sponsor fees.
func (m *Memory) SponsorshipMinFee(id transaction.Digest) int64 {
	m.mu.RLock()
	defer m.mu.RUnlock()

	return m.sponsorships[id]
}

// Script reports the account script attached to an address.
func (m *Memory) Script(addr transaction.Address) ([]byte, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	script, exists := m.scripts[addr]
	return script, exists
}

// IsFeatureActivated reports whether a protocol rule change is in force at
// the specified height.
func (m *Memory) IsFeatureActivated(feature settings.Feature, height uint64) bool {
	m.mu.RLock()
	defer m.mu.RUnlock()

	activation, exists := m.features[feature]
	return exists && height >= activation
}

// EffectiveBalanceWithConfirmations returns the lowest effective balance
// the account held over the last confirmations blocks ending at height.
// Generation eligibility uses the minimum so a deposit cannot raise
// generating power until it has aged through the whole window.
func (m *Memory) EffectiveBalanceWithConfirmations(addr transaction.Address, height uint64, confirmations uint64) (int64, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	from := uint64(1)
	if height > confirmations {
		from = height - confirmations
	}

	history := m.effectiveHistory[addr]

	minimum := effectiveAt(history, from)
	for _, entry := range history {
		if entry.height <= from || entry.height > height {
			continue
		}
		if entry.effective < minimum {
			minimum = entry.effective
		}
	}

	return minimum, nil
}

// effectiveAt returns the effective balance as of a height: the last
// history entry at or before it.
func effectiveAt(history []balanceAt, height uint64) int64 {
	var effective int64
	for _, entry := range history {
		if entry.height > height {
			break
		}
		effective = entry.effective
	}
	return effective
}

// =============================================================================
// Writes. The blockchain updater is the only caller.

// Apply folds a block or micro block diff into the store. It returns the
// journal sequence before the write: passing that sequence to RollbackTo
// unwinds this diff and everything applied after it.
func (m *Memory) Apply(d diff.Diff) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	seq := len(m.journal)

	prevHeight := m.height
	if d.Height > m.height {
		m.height = d.Height
		m.record(func() { m.height = prevHeight })
	}

	for id, info := range d.Transactions {
		if existing, exists := m.transactions[id]; exists {

			// The legacy genesis and payment types predate the id
			// uniqueness rule. A repeated id keeps its first seen record.
			switch info.Tx.GetType() {
			case transaction.TypeGenesis, transaction.TypePayment:
				continue
			}

			m.rollbackToLocked(seq)
			return 0, &errs.AlreadyInTheState{TxID: id.String(), Height: existing.Height}
		}
		m.transactions[id] = info
		m.record(func() { delete(m.transactions, id) })
	}

	for addr, delta := range d.Portfolios {
		prev, existed := m.portfolios[addr]
		combined, err := prev.Combine(delta)
		if err != nil {
			m.rollbackToLocked(seq)
			return 0, err
		}
		m.portfolios[addr] = combined
		m.record(func() {
			if existed {
				m.portfolios[addr] = prev
				return
			}
			delete(m.portfolios, addr)
		})

		if combined.Effective() != prev.Effective() {
			m.effectiveHistory[addr] = append(m.effectiveHistory[addr], balanceAt{
				height:    d.Height,
				effective: combined.Effective(),
			})
			m.record(func() {
				history := m.effectiveHistory[addr]
				m.effectiveHistory[addr] = history[:len(history)-1]
			})
		}
	}

	for alias, addr := range d.Aliases {
		if existing, exists := m.aliases[alias]; exists && existing != addr {
			m.rollbackToLocked(seq)
			return 0, errs.NewGeneric("alias %q is already registered", alias)
		}
		m.aliases[alias] = addr
		m.record(func() { delete(m.aliases, alias) })
	}

	for id, info := range d.IssuedAssets {
		m.assets[id] = info
		m.record(func() { delete(m.assets, id) })
	}
	for id, quantity := range d.AssetQuantities {
		prev, exists := m.assets[id]
		if !exists {
			m.rollbackToLocked(seq)
			return 0, errs.NewGeneric("asset %s is not issued", id)
		}
		next := prev
		next.Quantity += quantity
		m.assets[id] = next
		m.record(func() { m.assets[id] = prev })
	}
	for id := range d.NonReissuable {
		prev, exists := m.assets[id]
		if !exists {
			m.rollbackToLocked(seq)
			return 0, errs.NewGeneric("asset %s is not issued", id)
		}
		next := prev
		next.Reissuable = false
		m.assets[id] = next
		m.record(func() { m.assets[id] = prev })
	}

	for id, lease := range d.NewLeases {
		m.leases[id] = lease
		m.record(func() { delete(m.leases, id) })
	}
	for id := range d.CancelledLeases {
		prev, exists := m.leases[id]
		if !exists {
			m.rollbackToLocked(seq)
			return 0, errs.NewGeneric("lease %s is not active", id)
		}
		delete(m.leases, id)
		m.record(func() { m.leases[id] = prev })
	}

	for id, minimum := range d.Sponsorships {
		prev, existed := m.sponsorships[id]
		m.sponsorships[id] = minimum
		m.record(func() {
			if existed {
				m.sponsorships[id] = prev
				return
			}
			delete(m.sponsorships, id)
		})
	}

	for addr, entries := range d.AccountData {
		if m.accountData[addr] == nil {
			m.accountData[addr] = make(map[string]transaction.DataEntry)
		}
		for key, entry := range entries {
			prev, existed := m.accountData[addr][key]
			m.accountData[addr][key] = entry
			m.record(func() {
				if existed {
					m.accountData[addr][key] = prev
					return
				}
				delete(m.accountData[addr], key)
			})
		}
	}

	for addr, script := range d.Scripts {
		prev, existed := m.scripts[addr]
		if len(script) == 0 {
			delete(m.scripts, addr)
		} else {
			m.scripts[addr] = script
		}
		m.record(func() {
			if existed {
				m.scripts[addr] = prev
				return
			}
			delete(m.scripts, addr)
		})
	}

	return seq, nil
}

// Sequence returns the current journal position. Applying a diff and
// rolling back to this sequence leaves the store unchanged.
func (m *Memory) Sequence() int {
	m.mu.RLock()
	defer m.mu.RUnlock()

	return len(m.journal)
}

// RollbackTo unwinds every mutation journaled at or after the specified
// sequence, restoring the store to the state it had when that sequence was
// returned by Apply.
func (m *Memory) RollbackTo(seq int) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if seq < 0 || seq > len(m.journal) {
		return errs.NewGeneric("rollback sequence %d is out of range [0:%d]", seq, len(m.journal))
	}

	m.rollbackToLocked(seq)
	return nil
}

// rollbackToLocked runs journaled undo functions in reverse order until the
// journal shrinks to the specified sequence. Callers must hold the write
// lock.
func (m *Memory) rollbackToLocked(seq int) {
	for len(m.journal) > seq {
		last := len(m.journal) - 1
		m.journal[last]()
		m.journal = m.journal[:last]
	}
}

// record journals one undo function. Callers must hold the write lock.
func (m *Memory) record(undo undoFn) {
	m.journal = append(m.journal, undo)
}
