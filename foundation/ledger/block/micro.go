package block

import (
	"crypto/ed25519"
	"sync"

	"github.com/meridianchain/meridian/foundation/ledger/errs"
	"github.com/meridianchain/meridian/foundation/ledger/transaction"
	"github.com/meridianchain/meridian/foundation/ledger/wire"
)

// MicroBlock represents a provisional extension of the latest block. Micro
// blocks let the generator stream transactions before sealing the next key
// block; they reference the block they extend and are discarded wholesale
// if that block loses fork choice.
type MicroBlock struct {
	Version      byte
	RefID        transaction.Digest
	GeneratorPK  transaction.PublicKey
	Transactions []transaction.Transaction
	Signature    []byte

	once  sync.Once
	body  []byte
	id    transaction.Digest
	bdErr error
}

// NewMicroBlock constructs an unsigned micro block extending the block with
// the specified id.
func NewMicroBlock(refID transaction.Digest, generatorPK transaction.PublicKey, txs []transaction.Transaction) (*MicroBlock, error) {
	if len(txs) == 0 {
		return nil, errs.NewGeneric("micro block carries no transactions")
	}
	if len(txs) > MaxTransactionsPerBlock {
		return nil, errs.NewTooBigArray("%d transactions exceeds the block limit of %d", len(txs), MaxTransactionsPerBlock)
	}

	mb := MicroBlock{
		Version:      Version,
		RefID:        refID,
		GeneratorPK:  generatorPK,
		Transactions: txs,
	}
	return &mb, nil
}

// bodyBytes computes the canonical micro block encoding and its digest
// exactly once. The body commits to the transaction ids, not the full wire
// forms, matching the block header commitment.
func (mb *MicroBlock) bodyBytes() ([]byte, transaction.Digest, error) {
	mb.once.Do(func() {
		root, err := transactionsRoot(mb.Transactions)
		if err != nil {
			mb.bdErr = err
			return
		}

		w := wire.NewWriter()
		w.WriteU8(mb.Version)
		w.WriteBytes(mb.RefID[:])
		w.WriteBytes(root[:])
		w.WriteUint16(uint16(len(mb.Transactions)))
		w.WriteBytes(mb.GeneratorPK[:])

		mb.body = w.Bytes()
		mb.id = transaction.NewDigest(mb.body)
	})
	return mb.body, mb.id, mb.bdErr
}

// ID returns the content hash of the canonical micro block bytes.
func (mb *MicroBlock) ID() (transaction.Digest, error) {
	_, id, err := mb.bodyBytes()
	return id, err
}

// Sign installs the generator signature over the canonical bytes.
func (mb *MicroBlock) Sign(secret ed25519.PrivateKey) error {
	body, _, err := mb.bodyBytes()
	if err != nil {
		return err
	}

	mb.Signature = ed25519.Sign(secret, body)
	return nil
}

// Verify checks the generator signature over the canonical bytes.
func (mb *MicroBlock) Verify() error {
	body, _, err := mb.bodyBytes()
	if err != nil {
		return err
	}

	if len(mb.Signature) != SignatureSize {
		return errs.NewGeneric("micro block signature of %d bytes should be %d bytes", len(mb.Signature), SignatureSize)
	}
	if !ed25519.Verify(mb.GeneratorPK[:], body, mb.Signature) {
		id, _ := mb.ID()
		return errs.NewGeneric("invalid generator signature for micro block %s", id)
	}
	return nil
}

// Marshal produces the full wire form of the micro block.
func (mb *MicroBlock) Marshal() ([]byte, error) {
	body, _, err := mb.bodyBytes()
	if err != nil {
		return nil, err
	}

	w := wire.NewWriter()
	w.WriteBytes(body)
	w.WriteSized(mb.Signature)
	for _, tx := range mb.Transactions {
		blob, err := transaction.MarshalBinary(tx)
		if err != nil {
			return nil, err
		}
		w.WriteSized(blob)
	}

	return w.Bytes(), nil
}

// ParseMicroBlock consumes the full wire form of a micro block. The result
// is not verified: callers run Verify separately.
func ParseMicroBlock(data []byte) (*MicroBlock, error) {
	r := wire.NewReader(data)

	version := r.ReadU8()
	if r.Err() == nil && version != Version {
		return nil, errs.NewGeneric("unknown micro block version %d", version)
	}

	refID, err := transaction.DigestFromBytes(r.ReadBytes(32))
	if r.Err() == nil && err != nil {
		return nil, err
	}

	root, err := transaction.DigestFromBytes(r.ReadBytes(32))
	if r.Err() == nil && err != nil {
		return nil, err
	}

	count := int(r.ReadUint16())

	pk, err := transaction.PublicKeyFromBytes(r.ReadBytes(32))
	if r.Err() == nil && err != nil {
		return nil, err
	}

	signature := r.ReadSized()
	if err := r.Err(); err != nil {
		return nil, err
	}
	if count > MaxTransactionsPerBlock {
		return nil, errs.NewTooBigArray("%d transactions exceeds the block limit of %d", count, MaxTransactionsPerBlock)
	}

	txs := make([]transaction.Transaction, count)
	for i := range txs {
		tx, err := transaction.Parse(r.ReadSized())
		if rErr := r.Err(); rErr != nil {
			return nil, rErr
		}
		if err != nil {
			return nil, err
		}
		txs[i] = tx
	}
	if err := r.Close(); err != nil {
		return nil, err
	}

	mb := MicroBlock{
		Version:      version,
		RefID:        refID,
		GeneratorPK:  pk,
		Transactions: txs,
		Signature:    signature,
	}

	// The committed root must match the carried transactions before the
	// micro block is considered well formed.
	computed, err := transactionsRoot(txs)
	if err != nil {
		return nil, err
	}
	if computed != root {
		return nil, errs.NewGeneric("transaction root mismatch: body %s, transactions %s", root, computed)
	}

	return &mb, nil
}
