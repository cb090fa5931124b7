package transaction

import (
	"github.com/meridianchain/meridian/foundation/ledger/errs"
	"github.com/meridianchain/meridian/foundation/ledger/wire"
)

// Bounds for registry transfer fields.
const (
	MaxRegistryKeyLength   = 100
	MaxRegistryPayloadSize = 1024
)

// RegistryTransfer represents a custodial movement of the native coin
// recorded against a registry key, carrying an opaque payload for the
// custodian. A payload above the size limit is rejected outright.
type RegistryTransfer struct {
	head
	Registry  string
	Recipient Recipient
	Amount    int64
	Payload   []byte
}

// NewRegistryTransfer constructs a registry transfer transaction.
func NewRegistryTransfer(senderPK PublicKey, registry string, recipient Recipient, amount int64, fee int64, timestamp int64, payload []byte) (*RegistryTransfer, error) {
	tx := RegistryTransfer{
		Registry:  registry,
		Recipient: recipient,
		Amount:    amount,
		Payload:   payload,
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
func (tx *RegistryTransfer) domainCheck() error {
	if tx.Registry == "" {
		return errs.NewGeneric("registry key is empty")
	}
	if len(tx.Registry) > MaxRegistryKeyLength {
		return errs.NewTooBigArray("registry key of %d bytes exceeds the limit of %d", len(tx.Registry), MaxRegistryKeyLength)
	}
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
	if len(tx.Payload) > MaxRegistryPayloadSize {
		return errs.NewTooBigArray("payload of %d bytes exceeds the limit of %d", len(tx.Payload), MaxRegistryPayloadSize)
	}
	return nil
}

// GetType returns the transaction type tag.
func (tx *RegistryTransfer) GetType() Type { return TypeRegistryTransfer }

// BodyBytes returns the canonical body bytes, computed at most once.
func (tx *RegistryTransfer) BodyBytes() ([]byte, error) {
	body, _, err := tx.cache(tx.writeBody)
	return body, err
}

// ID returns the content hash of the body bytes, computed at most once.
func (tx *RegistryTransfer) ID() (Digest, error) {
	_, id, err := tx.cache(tx.writeBody)
	return id, err
}

func (tx *RegistryTransfer) writeBody(w *wire.Writer) error {
	w.WriteU8(byte(TypeRegistryTransfer))
	w.WriteBytes(tx.SenderPK[:])
	w.WriteSized([]byte(tx.Registry))
	tx.Recipient.write(w)
	w.WriteInt64(tx.Amount)
	w.WriteInt64(tx.Fee)
	w.WriteInt64(tx.Timestamp)
	w.WriteSized(tx.Payload)
	return nil
}

func (tx *RegistryTransfer) readBody(r *wire.Reader) error {
	pk, err := PublicKeyFromBytes(r.ReadBytes(32))
	if r.Err() == nil && err != nil {
		return err
	}
	tx.SenderPK = pk
	tx.Registry = string(r.ReadSized())
	tx.Recipient = readRecipient(r)
	tx.Amount = r.ReadInt64()
	tx.Fee = r.ReadInt64()
	tx.Timestamp = r.ReadInt64()
	tx.Payload = r.ReadSized()
	if err := r.Err(); err != nil {
		return err
	}
	return tx.domainCheck()
}
