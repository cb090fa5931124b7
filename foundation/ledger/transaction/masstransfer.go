package transaction

import (
	"github.com/meridianchain/meridian/foundation/ledger/errs"
	"github.com/meridianchain/meridian/foundation/ledger/wire"
)

// MaxTransferCount bounds the recipients of a single mass transfer.
const MaxTransferCount = 100

// TransferEntry represents one recipient and amount inside a mass transfer.
type TransferEntry struct {
	Recipient Recipient
	Amount    int64
}

// MassTransfer represents a single asset moved to many recipients in one
// transaction. The fee is always paid in the native coin.
type MassTransfer struct {
	head
	Asset      OptionalAsset
	Transfers  []TransferEntry
	Attachment []byte
}

// NewMassTransfer constructs a mass transfer transaction, validating every
// domain constraint before the value can exist.
func NewMassTransfer(senderPK PublicKey, asset OptionalAsset, transfers []TransferEntry, fee int64, timestamp int64, attachment []byte) (*MassTransfer, error) {
	tx := MassTransfer{
		Asset:      asset,
		Transfers:  transfers,
		Attachment: attachment,
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
func (tx *MassTransfer) domainCheck() error {
	if len(tx.Transfers) > MaxTransferCount {
		return errs.NewTooBigArray("%d transfers exceeds the limit of %d", len(tx.Transfers), MaxTransferCount)
	}
	if tx.Fee <= 0 {
		return errs.NewGeneric("fee should be positive, got %d", tx.Fee)
	}
	if len(tx.Attachment) > MaxAttachmentSize {
		return errs.NewTooBigArray("attachment of %d bytes exceeds the limit of %d", len(tx.Attachment), MaxAttachmentSize)
	}

	total := tx.Fee
	for _, entry := range tx.Transfers {
		if err := entry.Recipient.Valid(); err != nil {
			return err
		}
		if entry.Amount <= 0 {
			return &errs.NegativeAmount{Amount: entry.Amount, Unit: tx.Asset.String()}
		}
		if wire.AddWouldOverflow(total, entry.Amount) {
			return errs.NewOverflow("sum of transfers plus fee overflows")
		}
		total += entry.Amount
	}
	return nil
}

// TotalAmount returns the sum of all transfer amounts. Construction and
// parsing guarantee the sum cannot overflow.
func (tx *MassTransfer) TotalAmount() int64 {
	var total int64
	for _, entry := range tx.Transfers {
		total += entry.Amount
	}
	return total
}

// GetType returns the transaction type tag.
func (tx *MassTransfer) GetType() Type { return TypeMassTransfer }

// BodyBytes returns the canonical body bytes, computed at most once.
func (tx *MassTransfer) BodyBytes() ([]byte, error) {
	body, _, err := tx.cache(tx.writeBody)
	return body, err
}

// ID returns the content hash of the body bytes, computed at most once.
func (tx *MassTransfer) ID() (Digest, error) {
	_, id, err := tx.cache(tx.writeBody)
	return id, err
}

func (tx *MassTransfer) writeBody(w *wire.Writer) error {
	w.WriteU8(byte(TypeMassTransfer))
	w.WriteBytes(tx.SenderPK[:])
	tx.Asset.write(w)
	w.WriteUint16(uint16(len(tx.Transfers)))
	for _, entry := range tx.Transfers {
		entry.Recipient.write(w)
		w.WriteInt64(entry.Amount)
	}
	w.WriteInt64(tx.Timestamp)
	w.WriteInt64(tx.Fee)
	w.WriteSized(tx.Attachment)
	return nil
}

func (tx *MassTransfer) readBody(r *wire.Reader) error {
	pk, err := PublicKeyFromBytes(r.ReadBytes(32))
	if r.Err() == nil && err != nil {
		return err
	}
	tx.SenderPK = pk
	tx.Asset = readOptionalAsset(r)

	count := int(r.ReadUint16())
	if r.Err() != nil {
		return r.Err()
	}
	if count > MaxTransferCount {
		return errs.NewTooBigArray("%d transfers exceeds the limit of %d", count, MaxTransferCount)
	}

	tx.Transfers = make([]TransferEntry, count)
	for i := range tx.Transfers {
		tx.Transfers[i].Recipient = readRecipient(r)
		tx.Transfers[i].Amount = r.ReadInt64()
		if r.Err() != nil {
			return r.Err()
		}
	}

	tx.Timestamp = r.ReadInt64()
	tx.Fee = r.ReadInt64()
	tx.Attachment = r.ReadSized()
	if err := r.Err(); err != nil {
		return err
	}
	return tx.domainCheck()
}
