package transaction

import (
	"github.com/meridianchain/meridian/foundation/ledger/errs"
	"github.com/meridianchain/meridian/foundation/ledger/wire"
)

// Lease represents locking native coins in favor of another account to
// raise its effective generating balance. The coins never leave the sender
// but cannot be spent while the lease is active.
type Lease struct {
	head
	Recipient Recipient
	Amount    int64
}

// NewLease constructs a lease transaction.
func NewLease(senderPK PublicKey, recipient Recipient, amount int64, fee int64, timestamp int64) (*Lease, error) {
	tx := Lease{
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
// parser run it, so a crafted wire form cannot produce a value the
// constructor would have refused.
func (tx *Lease) domainCheck() error {
	if err := tx.Recipient.Valid(); err != nil {
		return err
	}
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
func (tx *Lease) GetType() Type { return TypeLease }

// BodyBytes returns the canonical body bytes, computed at most once.
func (tx *Lease) BodyBytes() ([]byte, error) {
	body, _, err := tx.cache(tx.writeBody)
	return body, err
}

// ID returns the content hash of the body bytes, computed at most once.
func (tx *Lease) ID() (Digest, error) {
	_, id, err := tx.cache(tx.writeBody)
	return id, err
}

func (tx *Lease) writeBody(w *wire.Writer) error {
	w.WriteU8(byte(TypeLease))
	w.WriteBytes(tx.SenderPK[:])
	tx.Recipient.write(w)
	w.WriteInt64(tx.Amount)
	w.WriteInt64(tx.Fee)
	w.WriteInt64(tx.Timestamp)
	return nil
}

func (tx *Lease) readBody(r *wire.Reader) error {
	pk, err := PublicKeyFromBytes(r.ReadBytes(32))
	if r.Err() == nil && err != nil {
		return err
	}
	tx.SenderPK = pk
	tx.Recipient = readRecipient(r)
	tx.Amount = r.ReadInt64()
	tx.Fee = r.ReadInt64()
	tx.Timestamp = r.ReadInt64()
	if err := r.Err(); err != nil {
		return err
	}
	return tx.domainCheck()
}

// =============================================================================

// LeaseCancel represents releasing a previously created lease by its id.
type LeaseCancel struct {
	head
	LeaseID Digest
}

// NewLeaseCancel constructs a lease cancel transaction.
func NewLeaseCancel(senderPK PublicKey, leaseID Digest, fee int64, timestamp int64) (*LeaseCancel, error) {
	tx := LeaseCancel{
		LeaseID: leaseID,
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
func (tx *LeaseCancel) domainCheck() error {
	if tx.Fee <= 0 {
		return errs.NewGeneric("fee should be positive, got %d", tx.Fee)
	}
	return nil
}

// GetType returns the transaction type tag.
func (tx *LeaseCancel) GetType() Type { return TypeLeaseCancel }

// BodyBytes returns the canonical body bytes, computed at most once.
func (tx *LeaseCancel) BodyBytes() ([]byte, error) {
	body, _, err := tx.cache(tx.writeBody)
	return body, err
}

// ID returns the content hash of the body bytes, computed at most once.
func (tx *LeaseCancel) ID() (Digest, error) {
	_, id, err := tx.cache(tx.writeBody)
	return id, err
}

func (tx *LeaseCancel) writeBody(w *wire.Writer) error {
	w.WriteU8(byte(TypeLeaseCancel))
	w.WriteBytes(tx.SenderPK[:])
	w.WriteBytes(tx.LeaseID[:])
	w.WriteInt64(tx.Fee)
	w.WriteInt64(tx.Timestamp)
	return nil
}

func (tx *LeaseCancel) readBody(r *wire.Reader) error {
	pk, err := PublicKeyFromBytes(r.ReadBytes(32))
	if r.Err() == nil && err != nil {
		return err
	}
	tx.SenderPK = pk
	id, err := DigestFromBytes(r.ReadBytes(32))
	if r.Err() == nil && err != nil {
		return err
	}
	tx.LeaseID = id
	tx.Fee = r.ReadInt64()
	tx.Timestamp = r.ReadInt64()
	if err := r.Err(); err != nil {
		return err
	}
	return tx.domainCheck()
}

// =============================================================================

// CreateAlias represents registering a short name for the sender address.
// Aliases become visible to later transactions in the same block.
type CreateAlias struct {
	head
	Alias Alias
}

// NewCreateAlias constructs an alias registration transaction.
func NewCreateAlias(senderPK PublicKey, alias Alias, fee int64, timestamp int64) (*CreateAlias, error) {
	tx := CreateAlias{
		Alias: alias,
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
func (tx *CreateAlias) domainCheck() error {
	if err := tx.Alias.Valid(); err != nil {
		return err
	}
	if tx.Fee <= 0 {
		return errs.NewGeneric("fee should be positive, got %d", tx.Fee)
	}
	return nil
}

// GetType returns the transaction type tag.
func (tx *CreateAlias) GetType() Type { return TypeCreateAlias }

// BodyBytes returns the canonical body bytes, computed at most once.
func (tx *CreateAlias) BodyBytes() ([]byte, error) {
	body, _, err := tx.cache(tx.writeBody)
	return body, err
}

// ID returns the content hash of the body bytes, computed at most once.
func (tx *CreateAlias) ID() (Digest, error) {
	_, id, err := tx.cache(tx.writeBody)
	return id, err
}

func (tx *CreateAlias) writeBody(w *wire.Writer) error {
	w.WriteU8(byte(TypeCreateAlias))
	w.WriteBytes(tx.SenderPK[:])
	w.WriteSized([]byte(tx.Alias))
	w.WriteInt64(tx.Fee)
	w.WriteInt64(tx.Timestamp)
	return nil
}

func (tx *CreateAlias) readBody(r *wire.Reader) error {
	pk, err := PublicKeyFromBytes(r.ReadBytes(32))
	if r.Err() == nil && err != nil {
		return err
	}
	tx.SenderPK = pk
	tx.Alias = Alias(r.ReadSized())
	tx.Fee = r.ReadInt64()
	tx.Timestamp = r.ReadInt64()
	if err := r.Err(); err != nil {
		return err
	}
	return tx.domainCheck()
}
