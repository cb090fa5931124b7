package transaction

import (
	"github.com/meridianchain/meridian/foundation/ledger/errs"
	"github.com/meridianchain/meridian/foundation/ledger/wire"
)

// MaxAttachmentSize bounds the free form attachment carried by transfers.
const MaxAttachmentSize = 140

// Transfer represents a movement of the native coin or a custom asset to an
// address or alias recipient.
type Transfer struct {
	head
	AmountAsset OptionalAsset
	Amount      int64
	Recipient   Recipient
	Attachment  []byte
}

// NewTransfer constructs a transfer transaction, validating every domain
// constraint before the value can exist.
func NewTransfer(senderPK PublicKey, amountAsset OptionalAsset, feeAsset OptionalAsset, recipient Recipient, amount int64, fee int64, timestamp int64, attachment []byte) (*Transfer, error) {
	tx := Transfer{
		AmountAsset: amountAsset,
		Amount:      amount,
		Recipient:   recipient,
		Attachment:  attachment,
	}
	tx.SenderPK = senderPK
	tx.Timestamp = timestamp
	tx.Fee = fee
	tx.FeeAsset = feeAsset

	if err := tx.domainCheck(); err != nil {
		return nil, err
	}
	return &tx, nil
}

// domainCheck validates the field constraints. Both the constructor and the
// parser run it, so a crafted wire form cannot produce a value the
// constructor would have refused.
func (tx *Transfer) domainCheck() error {
	if err := tx.Recipient.Valid(); err != nil {
		return err
	}
	if tx.Amount <= 0 {
		return &errs.NegativeAmount{Amount: tx.Amount, Unit: tx.AmountAsset.String()}
	}
	if tx.Fee <= 0 {
		return errs.NewGeneric("fee should be positive, got %d", tx.Fee)
	}
	if wire.AddWouldOverflow(tx.Amount, tx.Fee) {
		return errs.NewOverflow("amount %d plus fee %d overflows", tx.Amount, tx.Fee)
	}
	if len(tx.Attachment) > MaxAttachmentSize {
		return errs.NewTooBigArray("attachment of %d bytes exceeds the limit of %d", len(tx.Attachment), MaxAttachmentSize)
	}
	return nil
}

// GetType returns the transaction type tag.
func (tx *Transfer) GetType() Type { return TypeTransfer }

// BodyBytes returns the canonical body bytes, computed at most once.
func (tx *Transfer) BodyBytes() ([]byte, error) {
	body, _, err := tx.cache(tx.writeBody)
	return body, err
}

// ID returns the content hash of the body bytes, computed at most once.
func (tx *Transfer) ID() (Digest, error) {
	_, id, err := tx.cache(tx.writeBody)
	return id, err
}

func (tx *Transfer) writeBody(w *wire.Writer) error {
	w.WriteU8(byte(TypeTransfer))
	w.WriteBytes(tx.SenderPK[:])
	tx.AmountAsset.write(w)
	tx.FeeAsset.write(w)
	w.WriteInt64(tx.Timestamp)
	w.WriteInt64(tx.Amount)
	w.WriteInt64(tx.Fee)
	tx.Recipient.write(w)
	w.WriteSized(tx.Attachment)
	return nil
}

func (tx *Transfer) readBody(r *wire.Reader) error {
	pk, err := PublicKeyFromBytes(r.ReadBytes(32))
	if r.Err() == nil && err != nil {
		return err
	}
	tx.SenderPK = pk
	tx.AmountAsset = readOptionalAsset(r)
	tx.FeeAsset = readOptionalAsset(r)
	tx.Timestamp = r.ReadInt64()
	tx.Amount = r.ReadInt64()
	tx.Fee = r.ReadInt64()
	tx.Recipient = readRecipient(r)
	tx.Attachment = r.ReadSized()
	if err := r.Err(); err != nil {
		return err
	}
	return tx.domainCheck()
}
