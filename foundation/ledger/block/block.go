// Package block implements the block and micro block containers: canonical
// header bytes, content addressed ids, generator signatures, and the wire
// form blocks travel in between nodes. A block id is the hash of the header
// bytes only, so the id is fixed the moment the generator seals the header
// and does not depend on the signature encoding.
package block

import (
	"crypto/ed25519"
	"sync"

	"github.com/meridianchain/meridian/foundation/ledger/errs"
	"github.com/meridianchain/meridian/foundation/ledger/transaction"
	"github.com/meridianchain/meridian/foundation/ledger/wire"
)

// Version is the only block layout version this node produces or accepts.
const Version = 1

// MaxTransactionsPerBlock bounds the transactions carried by one block or
// micro block.
const MaxTransactionsPerBlock = 6000

// SignatureSize is the exact length of a block signature.
const SignatureSize = ed25519.SignatureSize

// Header represents the consensus fields of a block. Headers are immutable
// once the block is constructed.
type Header struct {
	Version     byte
	ParentID    transaction.Digest
	Timestamp   int64
	BaseTarget  int64
	GenSig      transaction.Digest
	TransRoot   transaction.Digest
	GeneratorPK transaction.PublicKey
}

// Block represents a sealed set of transactions extending a parent block.
type Block struct {
	Header       Header
	Signature    []byte
	Transactions []transaction.Transaction

	once sync.Once
	hdr  []byte
	id   transaction.Digest
}

// New constructs an unsigned block over the specified transactions. The
// transaction root commits to the transaction ids in block order.
func New(parentID transaction.Digest, timestamp int64, baseTarget int64, genSig transaction.Digest, generatorPK transaction.PublicKey, txs []transaction.Transaction) (*Block, error) {
	if baseTarget <= 0 {
		return nil, errs.NewGeneric("base target should be positive, got %d", baseTarget)
	}
	if len(txs) > MaxTransactionsPerBlock {
		return nil, errs.NewTooBigArray("%d transactions exceeds the block limit of %d", len(txs), MaxTransactionsPerBlock)
	}

	root, err := transactionsRoot(txs)
	if err != nil {
		return nil, err
	}

	b := Block{
		Header: Header{
			Version:     Version,
			ParentID:    parentID,
			Timestamp:   timestamp,
			BaseTarget:  baseTarget,
			GenSig:      genSig,
			TransRoot:   root,
			GeneratorPK: generatorPK,
		},
		Transactions: txs,
	}

	return &b, nil
}

// transactionsRoot folds the transaction ids into the merkle commitment
// stored in the header.
func transactionsRoot(txs []transaction.Transaction) (transaction.Digest, error) {
	leaves := make([][]byte, len(txs))
	for i, tx := range txs {
		id, err := tx.ID()
		if err != nil {
			return transaction.Digest{}, err
		}
		leaf := id
		leaves[i] = leaf[:]
	}

	var root transaction.Digest
	copy(root[:], merkleRoot(leaves))
	return root, nil
}

// headerBytes computes the canonical header encoding and its digest exactly
// once.
func (b *Block) headerBytes() ([]byte, transaction.Digest) {
	b.once.Do(func() {
		w := wire.NewWriter()
		w.WriteU8(b.Header.Version)
		w.WriteBytes(b.Header.ParentID[:])
		w.WriteInt64(b.Header.Timestamp)
		w.WriteInt64(b.Header.BaseTarget)
		w.WriteBytes(b.Header.GenSig[:])
		w.WriteBytes(b.Header.TransRoot[:])
		w.WriteUint16(uint16(len(b.Transactions)))
		w.WriteBytes(b.Header.GeneratorPK[:])

		b.hdr = w.Bytes()
		b.id = transaction.NewDigest(b.hdr)
	})
	return b.hdr, b.id
}

// HeaderBytes returns the canonical header encoding, computed at most once.
func (b *Block) HeaderBytes() ([]byte, error) {
	hdr, _ := b.headerBytes()
	return hdr, nil
}

// ID returns the content hash of the header bytes.
func (b *Block) ID() (transaction.Digest, error) {
	_, id := b.headerBytes()
	return id, nil
}

// Sign installs the generator signature over the header bytes.
func (b *Block) Sign(secret ed25519.PrivateKey) error {
	hdr, err := b.HeaderBytes()
	if err != nil {
		return err
	}

	b.Signature = ed25519.Sign(secret, hdr)
	return nil
}

// Verify checks the generator signature over the header bytes and that the
// transaction root commits to the carried transactions.
func (b *Block) Verify() error {
	hdr, err := b.HeaderBytes()
	if err != nil {
		return err
	}

	if len(b.Signature) != SignatureSize {
		return errs.NewGeneric("block signature of %d bytes should be %d bytes", len(b.Signature), SignatureSize)
	}
	if !ed25519.Verify(b.Header.GeneratorPK[:], hdr, b.Signature) {
		id, _ := b.ID()
		return errs.NewGeneric("invalid generator signature for block %s", id)
	}

	root, err := transactionsRoot(b.Transactions)
	if err != nil {
		return err
	}
	if root != b.Header.TransRoot {
		return errs.NewGeneric("transaction root mismatch: header %s, transactions %s", b.Header.TransRoot, root)
	}

	return nil
}

// Marshal produces the full wire form of the block.
func (b *Block) Marshal() ([]byte, error) {
	hdr, err := b.HeaderBytes()
	if err != nil {
		return nil, err
	}

	w := wire.NewWriter()
	w.WriteBytes(hdr)
	w.WriteSized(b.Signature)
	for _, tx := range b.Transactions {
		blob, err := transaction.MarshalBinary(tx)
		if err != nil {
			return nil, err
		}
		w.WriteSized(blob)
	}

	return w.Bytes(), nil
}

// Parse consumes the full wire form of a block. The returned block is not
// verified: callers run Verify and the consensus checks separately.
func Parse(data []byte) (*Block, error) {
	r := wire.NewReader(data)

	var hd Header
	hd.Version = r.ReadU8()
	if r.Err() == nil && hd.Version != Version {
		return nil, errs.NewGeneric("unknown block version %d", hd.Version)
	}

	parent, err := transaction.DigestFromBytes(r.ReadBytes(32))
	if r.Err() == nil && err != nil {
		return nil, err
	}
	hd.ParentID = parent
	hd.Timestamp = r.ReadInt64()
	hd.BaseTarget = r.ReadInt64()

	genSig, err := transaction.DigestFromBytes(r.ReadBytes(32))
	if r.Err() == nil && err != nil {
		return nil, err
	}
	hd.GenSig = genSig

	root, err := transaction.DigestFromBytes(r.ReadBytes(32))
	if r.Err() == nil && err != nil {
		return nil, err
	}
	hd.TransRoot = root

	count := int(r.ReadUint16())

	pk, err := transaction.PublicKeyFromBytes(r.ReadBytes(32))
	if r.Err() == nil && err != nil {
		return nil, err
	}
	hd.GeneratorPK = pk

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

	b := Block{
		Header:       hd,
		Signature:    signature,
		Transactions: txs,
	}
	return &b, nil
}
