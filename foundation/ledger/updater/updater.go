// Package updater is the core API for the blockchain and implements the
// orchestration rules for extending, provisionally extending, and rolling
// back the chain. The ledger state is a single shared mutable resource with
// exactly one concurrent writer: block application, micro block
// application, and rollback are serialized behind one mutex.
package updater

import (
	"crypto/ed25519"
	"math/big"
	"sort"
	"sync"

	"github.com/ethereum/go-ethereum/common/hexutil"

	"github.com/meridianchain/meridian/foundation/events"
	"github.com/meridianchain/meridian/foundation/ledger/block"
	"github.com/meridianchain/meridian/foundation/ledger/diff"
	"github.com/meridianchain/meridian/foundation/ledger/errs"
	"github.com/meridianchain/meridian/foundation/ledger/fees"
	"github.com/meridianchain/meridian/foundation/ledger/pos"
	"github.com/meridianchain/meridian/foundation/ledger/settings"
	"github.com/meridianchain/meridian/foundation/ledger/state"
	"github.com/meridianchain/meridian/foundation/ledger/transaction"
	"github.com/meridianchain/meridian/foundation/ledger/validation"
)

// EventHandler defines a function that is called when events
// occur in the processing of blocks.
type EventHandler func(v string, args ...any)

// =============================================================================

// Config represents the configuration required to start the updater.
type Config struct {
	Settings  settings.Settings
	Store     *state.Memory
	Events    *events.Events
	EvHandler EventHandler
}

// appliedBlock is the chain bookkeeping for one committed block.
type appliedBlock struct {
	block *block.Block
	id    transaction.Digest
	seq   int
	score *big.Int
}

// Updater manages the chain of applied blocks over the state store.
type Updater struct {
	st        settings.Settings
	store     *state.Memory
	evts      *events.Events
	fees      *fees.Calculator
	evHandler EventHandler

	mu       sync.Mutex
	chain    []appliedBlock
	microTxs []transaction.Transaction
	microSeq int
	closed   bool
}

// New constructs an updater, builds the genesis block from the chain
// settings, and applies it as the first block.
func New(cfg Config) (*Updater, error) {
	ev := func(v string, args ...any) {
		if cfg.EvHandler != nil {
			cfg.EvHandler(v, args...)
		}
	}

	u := Updater{
		st:        cfg.Settings,
		store:     cfg.Store,
		evts:      cfg.Events,
		fees:      fees.New(cfg.Settings.Fees, cfg.Store),
		evHandler: ev,
	}

	genesisBlock, err := u.buildGenesisBlock()
	if err != nil {
		return nil, err
	}

	if err := u.applyBlock(genesisBlock); err != nil {
		return nil, err
	}

	u.evHandler("updater: genesis block %s applied with %d distributions", u.chain[0].id, len(genesisBlock.Transactions))
	u.publish()

	return &u, nil
}

// buildGenesisBlock constructs the first block from the configured initial
// distribution. The distribution order is fixed by sorting the addresses so
// every node derives the same block id.
func (u *Updater) buildGenesisBlock() (*block.Block, error) {
	gen := u.st.Genesis

	addresses := make([]string, 0, len(gen.Balances))
	for addr := range gen.Balances {
		addresses = append(addresses, addr)
	}
	sort.Strings(addresses)

	txs := make([]transaction.Transaction, 0, len(addresses))
	for _, addr := range addresses {
		raw, err := hexutil.Decode(addr)
		if err != nil {
			return nil, errs.NewGeneric("invalid genesis address %q: %s", addr, err)
		}
		recipient, err := transaction.AddressFromBytes(raw)
		if err != nil {
			return nil, err
		}

		tx, err := transaction.NewGenesis(recipient, gen.Balances[addr], gen.Timestamp)
		if err != nil {
			return nil, err
		}
		txs = append(txs, tx)
	}

	rawSig, err := hexutil.Decode(gen.GenerationSignature)
	if err != nil {
		return nil, errs.NewGeneric("invalid genesis generation signature: %s", err)
	}
	genSig, err := transaction.DigestFromBytes(rawSig)
	if err != nil {
		return nil, err
	}

	return block.New(transaction.Digest{}, gen.Timestamp, gen.BaseTarget, genSig, transaction.PublicKey{}, txs)
}

// =============================================================================

// ProcessBlock validates and atomically applies a block, extending the
// chain. A block building on an earlier ancestor triggers a reorganization:
// the blocks after that ancestor are unwound first, and their transactions
// that did not make it into the new chain are returned so callers can
// consider them for re-inclusion.
func (u *Updater) ProcessBlock(b *block.Block) ([]transaction.Transaction, error) {
	u.mu.Lock()
	defer u.mu.Unlock()

	if u.closed {
		return nil, errs.NewGeneric("updater is shut down")
	}

	id, err := b.ID()
	if err != nil {
		return nil, err
	}
	u.evHandler("updater: processBlock: block %s received", id)

	parentIdx := u.findBlock(b.Header.ParentID)
	if parentIdx < 0 {
		return nil, errs.NewGeneric("parent block %s is not on the chain", b.Header.ParentID)
	}

	// Consensus fields only depend on the ancestor chain, so verify before
	// anything is unwound and an invalid block leaves no trace.
	if err := u.verifyConsensus(b, parentIdx); err != nil {
		return nil, err
	}

	// Unwind the provisional micro block transactions. The incoming block
	// either includes them or they go back to the caller as discarded.
	discarded, err := u.discardMicro()
	if err != nil {
		return nil, err
	}

	// Unwind blocks above the parent when the new block reorganizes.
	if parentIdx != len(u.chain)-1 {
		u.evHandler("updater: processBlock: reorganization onto %s at height %d", b.Header.ParentID, parentIdx+1)

		for i := len(u.chain) - 1; i > parentIdx; i-- {
			discarded = append(discarded, u.chain[i].block.Transactions...)
		}
		if err := u.store.RollbackTo(u.chain[parentIdx+1].seq); err != nil {
			return nil, err
		}
		u.chain = u.chain[:parentIdx+1]
	}

	if err := u.applyBlock(b); err != nil {
		return nil, err
	}

	u.evHandler("updater: processBlock: block %s applied at height %d", id, len(u.chain))
	u.publish()

	discarded = pruneIncluded(discarded, b.Transactions)
	if len(discarded) == 0 {
		return nil, nil
	}
	return discarded, nil
}

// ProcessMicroBlock optimistically extends the latest block with a micro
// block before finalization.
func (u *Updater) ProcessMicroBlock(mb *block.MicroBlock) error {
	u.mu.Lock()
	defer u.mu.Unlock()

	if u.closed {
		return errs.NewGeneric("updater is shut down")
	}

	last := u.chain[len(u.chain)-1]
	if mb.RefID != last.id {
		return errs.NewGeneric("micro block extends %s but the last block is %s", mb.RefID, last.id)
	}
	if mb.GeneratorPK != last.block.Header.GeneratorPK {
		return errs.NewGeneric("micro block generator differs from the block generator")
	}
	if err := mb.Verify(); err != nil {
		return err
	}

	height := uint64(len(u.chain))
	blockTime := last.block.Header.Timestamp
	prevBlockTime := u.parentTimestamp(len(u.chain) - 1)

	d, err := u.computeBlockDiff(mb.Transactions, height, blockTime, prevBlockTime, false)
	if err != nil {
		return err
	}

	if _, err := u.store.Apply(d); err != nil {
		return err
	}
	u.microTxs = append(u.microTxs, mb.Transactions...)

	id, err := mb.ID()
	if err != nil {
		return err
	}
	u.evHandler("updater: processMicroBlock: micro block %s applied with %d transactions", id, len(mb.Transactions))
	u.publish()

	return nil
}

// RemoveAfter rolls the chain back to the named ancestor and returns the
// discarded blocks, newest last.
func (u *Updater) RemoveAfter(blockID transaction.Digest) ([]*block.Block, error) {
	u.mu.Lock()
	defer u.mu.Unlock()

	if u.closed {
		return nil, errs.NewGeneric("updater is shut down")
	}

	idx := u.findBlock(blockID)
	if idx < 0 {
		return nil, errs.NewGeneric("block %s is not on the chain", blockID)
	}

	if _, err := u.discardMicro(); err != nil {
		return nil, err
	}

	var removed []*block.Block
	for i := idx + 1; i < len(u.chain); i++ {
		removed = append(removed, u.chain[i].block)
	}
	if len(removed) == 0 {
		return nil, nil
	}

	if err := u.store.RollbackTo(u.chain[idx+1].seq); err != nil {
		return nil, err
	}
	u.chain = u.chain[:idx+1]
	u.microSeq = u.store.Sequence()

	u.evHandler("updater: removeAfter: %d blocks removed, chain back at height %d", len(removed), len(u.chain))
	u.publish()

	return removed, nil
}

// IsLastBlockID reports whether the specified id names the latest block.
func (u *Updater) IsLastBlockID(id transaction.Digest) bool {
	u.mu.Lock()
	defer u.mu.Unlock()

	return len(u.chain) > 0 && u.chain[len(u.chain)-1].id == id
}

// LastBlockInfo returns the notification payload of the latest committed
// state.
func (u *Updater) LastBlockInfo() events.BlockInfo {
	u.mu.Lock()
	defer u.mu.Unlock()

	return u.lastBlockInfoLocked()
}

// Height returns the current chain height.
func (u *Updater) Height() uint64 {
	u.mu.Lock()
	defer u.mu.Unlock()

	return uint64(len(u.chain))
}

// Shutdown stops the updater: the notification stream is closed and no
// further mutation is accepted.
func (u *Updater) Shutdown() {
	u.mu.Lock()
	defer u.mu.Unlock()

	if u.closed {
		return
	}
	u.closed = true
	u.evts.Shutdown()
	u.evHandler("updater: shutdown: chain stopped at height %d", len(u.chain))
}

// =============================================================================

// ForgeBlock builds, signs, and applies the next block over the current
// chain tip with the consensus fields derived for the specified generator.
func (u *Updater) ForgeBlock(generatorPK transaction.PublicKey, secret ed25519.PrivateKey, timestamp int64, txs []transaction.Transaction) (*block.Block, error) {
	u.mu.Lock()
	if u.closed {
		u.mu.Unlock()
		return nil, errs.NewGeneric("updater is shut down")
	}

	last := u.chain[len(u.chain)-1]
	hd := last.block.Header

	baseTarget := pos.CalculateBaseTarget(
		u.st.Functionality.AverageBlockDelaySeconds,
		uint64(len(u.chain)),
		hd.BaseTarget,
		hd.Timestamp,
		u.greatGrandParentTimestamp(),
		timestamp,
	)
	genSig := pos.GenerationSignature(hd.GenSig, generatorPK)

	b, err := block.New(last.id, timestamp, baseTarget, genSig, generatorPK, txs)
	if err != nil {
		u.mu.Unlock()
		return nil, err
	}
	if err := b.Sign(secret); err != nil {
		u.mu.Unlock()
		return nil, err
	}
	u.mu.Unlock()

	if _, err := u.ProcessBlock(b); err != nil {
		return nil, err
	}
	return b, nil
}

// NextBlockGenerationTime predicts when the account becomes eligible to
// generate the next block over the current chain tip.
func (u *Updater) NextBlockGenerationTime(addr transaction.Address, generatorPK transaction.PublicKey) (int64, error) {
	u.mu.Lock()
	defer u.mu.Unlock()

	last := u.chain[len(u.chain)-1]
	hd := last.block.Header

	genSig := pos.GenerationSignature(hd.GenSig, generatorPK)
	return pos.NextBlockGenerationTime(u.store, u.st.Functionality, uint64(len(u.chain)), hd.BaseTarget, hd.Timestamp, genSig, addr)
}

// =============================================================================

// verifyConsensus checks the incoming block's signature and consensus
// fields against the chain block it declares as parent. Callers must hold
// the mutex.
func (u *Updater) verifyConsensus(b *block.Block, parentIdx int) error {
	if err := b.Verify(); err != nil {
		return err
	}

	hd := u.chain[parentIdx].block.Header

	if b.Header.Timestamp <= hd.Timestamp {
		return errs.NewMistiming("block timestamp %d is not after parent timestamp %d", b.Header.Timestamp, hd.Timestamp)
	}

	if want := pos.GenerationSignature(hd.GenSig, b.Header.GeneratorPK); b.Header.GenSig != want {
		return errs.NewGeneric("generation signature mismatch: block %s, expected %s", b.Header.GenSig, want)
	}

	want := pos.CalculateBaseTarget(
		u.st.Functionality.AverageBlockDelaySeconds,
		uint64(parentIdx+1),
		hd.BaseTarget,
		hd.Timestamp,
		u.parentTimestamp(parentIdx-2),
		b.Header.Timestamp,
	)
	if b.Header.BaseTarget != want {
		return errs.NewGeneric("base target mismatch: block %d, expected %d", b.Header.BaseTarget, want)
	}

	return nil
}

// applyBlock validates the block transactions in order, folds their deltas
// into one block diff, and applies it to the store atomically. Callers must
// hold the mutex.
func (u *Updater) applyBlock(b *block.Block) error {
	height := uint64(len(u.chain) + 1)
	blockTime := b.Header.Timestamp
	prevBlockTime := u.parentTimestamp(len(u.chain) - 1)

	d, err := u.computeBlockDiff(b.Transactions, height, blockTime, prevBlockTime, height == 1)
	if err != nil {
		return err
	}

	seq, err := u.store.Apply(d)
	if err != nil {
		return err
	}

	id, err := b.ID()
	if err != nil {
		u.store.RollbackTo(seq)
		return err
	}

	score := pos.BlockScore(b.Header.BaseTarget)
	if len(u.chain) > 0 {
		score.Add(score, u.chain[len(u.chain)-1].score)
	}

	u.chain = append(u.chain, appliedBlock{
		block: b,
		id:    id,
		seq:   seq,
		score: score,
	})
	u.microSeq = u.store.Sequence()

	return nil
}

// computeBlockDiff runs the validation battery, the fee check, and the diff
// engine over every transaction strictly in block order, reading through a
// layered view so later transactions observe earlier effects.
func (u *Updater) computeBlockDiff(txs []transaction.Transaction, height uint64, blockTime int64, prevBlockTime int64, genesisBlock bool) (diff.Diff, error) {
	blockDiff := diff.New(height)
	view := diff.NewView(u.store, &blockDiff)
	validator := validation.New(view, u.store, u.st.Functionality)
	engine := diff.NewEngine(view, u.st.Functionality, height, blockTime)

	for _, tx := range txs {
		if tx.GetType() == transaction.TypeGenesis && !genesisBlock {
			return diff.Diff{}, errs.NewGeneric("genesis transactions are only allowed in the first block")
		}

		if err := transaction.Verify(tx); err != nil {
			return diff.Diff{}, err
		}
		if !genesisBlock {
			if err := validator.Validate(tx, blockTime, prevBlockTime); err != nil {
				return diff.Diff{}, err
			}
			if err := u.fees.EnoughSponsored(tx, height); err != nil {
				return diff.Diff{}, err
			}
		}

		txDiff, err := engine.CreateDiff(tx)
		if err != nil {
			return diff.Diff{}, err
		}

		blockDiff, err = blockDiff.Merge(txDiff)
		if err != nil {
			return diff.Diff{}, err
		}
	}

	return blockDiff, nil
}

// discardMicro unwinds the provisionally applied micro block transactions
// and returns them. Callers must hold the mutex.
func (u *Updater) discardMicro() ([]transaction.Transaction, error) {
	if len(u.microTxs) == 0 {
		return nil, nil
	}

	if err := u.store.RollbackTo(u.microSeq); err != nil {
		return nil, err
	}

	discarded := u.microTxs
	u.microTxs = nil
	return discarded, nil
}

// findBlock returns the chain index of a block id, or -1.
func (u *Updater) findBlock(id transaction.Digest) int {
	for i := len(u.chain) - 1; i >= 0; i-- {
		if u.chain[i].id == id {
			return i
		}
	}
	return -1
}

// parentTimestamp returns the timestamp of the block at the specified chain
// index, or zero when the index precedes the chain.
func (u *Updater) parentTimestamp(idx int) int64 {
	if idx < 0 || idx >= len(u.chain) {
		return 0
	}
	return u.chain[idx].block.Header.Timestamp
}

// greatGrandParentTimestamp returns the timestamp three blocks above the
// chain tip, or zero when the chain is too short. The retarget averages the
// last three block delays against it.
func (u *Updater) greatGrandParentTimestamp() int64 {
	return u.parentTimestamp(len(u.chain) - 3)
}

// lastBlockInfoLocked builds the notification payload. Callers must hold
// the mutex.
func (u *Updater) lastBlockInfoLocked() events.BlockInfo {
	last := u.chain[len(u.chain)-1]
	return events.BlockInfo{
		ID:     last.id,
		Height: uint64(len(u.chain)),
		Score:  new(big.Int).Set(last.score),
		Ready:  true,
	}
}

// publish sends the latest block info to every subscriber. Callers must
// hold the mutex.
func (u *Updater) publish() {
	if u.evts == nil {
		return
	}
	u.evts.Send(u.lastBlockInfoLocked())
}

// pruneIncluded filters out the discarded transactions the new block
// already carries.
func pruneIncluded(discarded []transaction.Transaction, included []transaction.Transaction) []transaction.Transaction {
	if len(discarded) == 0 || len(included) == 0 {
		return discarded
	}

	ids := make(map[transaction.Digest]struct{}, len(included))
	for _, tx := range included {
		if id, err := tx.ID(); err == nil {
			ids[id] = struct{}{}
		}
	}

	kept := discarded[:0]
	for _, tx := range discarded {
		id, err := tx.ID()
		if err != nil {
			continue
		}
		if _, exists := ids[id]; !exists {
			kept = append(kept, tx)
		}
	}
	return kept
}
