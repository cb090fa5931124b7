package transaction

import (
	"github.com/meridianchain/meridian/foundation/ledger/errs"
	"github.com/meridianchain/meridian/foundation/ledger/wire"
)

// Genesis represents an initial distribution of the native coin. It only
// appears in the first block, carries no fee, and is not signed.
type Genesis struct {
	head
	Recipient Address
	Amount    int64
}

// NewGenesis constructs a genesis distribution transaction.
func NewGenesis(recipient Address, amount int64, timestamp int64) (*Genesis, error) {
	tx := Genesis{
		Recipient: recipient,
		Amount:    amount,
	}
	tx.Timestamp = timestamp
	tx.Proofs = emptyProofs

	if err := tx.domainCheck(); err != nil {
		return nil, err
	}
	return &tx, nil
}

// domainCheck validates the field constraints. Both the constructor and the
// parser run it.
func (tx *Genesis) domainCheck() error {
	if tx.Amount <= 0 {
		return &errs.NegativeAmount{Amount: tx.Amount, Unit: "native"}
	}
	return nil
}

// GetType returns the transaction type tag.
func (tx *Genesis) GetType() Type { return TypeGenesis }

// BodyBytes returns the canonical body bytes, computed at most once.
func (tx *Genesis) BodyBytes() ([]byte, error) {
	body, _, err := tx.cache(tx.writeBody)
	return body, err
}

// ID returns the content hash of the body bytes, computed at most once.
func (tx *Genesis) ID() (Digest, error) {
	_, id, err := tx.cache(tx.writeBody)
	return id, err
}

func (tx *Genesis) writeBody(w *wire.Writer) error {
	w.WriteU8(byte(TypeGenesis))
	w.WriteInt64(tx.Timestamp)
	w.WriteBytes(tx.Recipient[:])
	w.WriteInt64(tx.Amount)
	return nil
}

func (tx *Genesis) readBody(r *wire.Reader) error {
	tx.Timestamp = r.ReadInt64()
	addr, err := AddressFromBytes(r.ReadBytes(20))
	if r.Err() == nil && err != nil {
		return err
	}
	tx.Recipient = addr
	tx.Amount = r.ReadInt64()
	if err := r.Err(); err != nil {
		return err
	}
	return tx.domainCheck()
}

// =============================================================================

// Payment represents the legacy native coin transfer. It predates custom
// assets: amount and fee are always in the native coin and the recipient is
// always a concrete address.
type Payment struct {
	head
	Recipient Address
	Amount    int64
}

// NewPayment constructs a legacy payment transaction.
func NewPayment(senderPK PublicKey, recipient Address, amount int64, fee int64, timestamp int64) (*Payment, error) {
	tx := Payment{
		Recipient: recipient,
		Amount:    amount,
	}
	tx.SenderPK = senderPK
	tx.Timestamp = timestamp
	tx.Fee = fee

	if err := tx.domainCheck(); err != nil {
		return nil, err
	}
	return &tx, nil
}

// domainCheck validates the field constraints. Both the constructor and the
// parser run it.
func (tx *Payment) domainCheck() error {
	if tx.Amount <= 0 {
		return &errs.NegativeAmount{Amount: tx.Amount, Unit: "native"}
	}
	if tx.Fee <= 0 {
		return errs.NewGeneric("fee should be positive, got %d", tx.Fee)
	}
	if wire.AddWouldOverflow(tx.Amount, tx.Fee) {
		return errs.NewOverflow("amount %d plus fee %d overflows", tx.Amount, tx.Fee)
	}
	return nil
}

// GetType returns the transaction type tag.
func (tx *Payment) GetType() Type { return TypePayment }

// BodyBytes returns the canonical body bytes, computed at most once.
func (tx *Payment) BodyBytes() ([]byte, error) {
	body, _, err := tx.cache(tx.writeBody)
	return body, err
}

// ID returns the content hash of the body bytes, computed at most once.
func (tx *Payment) ID() (Digest, error) {
	_, id, err := tx.cache(tx.writeBody)
	return id, err
}

func (tx *Payment) writeBody(w *wire.Writer) error {
	w.WriteU8(byte(TypePayment))
	w.WriteBytes(tx.SenderPK[:])
	w.WriteInt64(tx.Timestamp)
	w.WriteInt64(tx.Amount)
	w.WriteInt64(tx.Fee)
	w.WriteBytes(tx.Recipient[:])
	return nil
}

func (tx *Payment) readBody(r *wire.Reader) error {
	pk, err := PublicKeyFromBytes(r.ReadBytes(32))
	if r.Err() == nil && err != nil {
		return err
	}
	tx.SenderPK = pk
	tx.Timestamp = r.ReadInt64()
	tx.Amount = r.ReadInt64()
	tx.Fee = r.ReadInt64()
	addr, err := AddressFromBytes(r.ReadBytes(20))
	if r.Err() == nil && err != nil {
		return err
	}
	tx.Recipient = addr
	if err := r.Err(); err != nil {
		return err
	}
	return tx.domainCheck()
}
