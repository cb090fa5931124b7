package transaction

import (
	"github.com/meridianchain/meridian/foundation/ledger/errs"
	"github.com/meridianchain/meridian/foundation/ledger/wire"
)

// MaxScriptSize bounds the compiled script attached to an account.
const MaxScriptSize = 8 * 1024

// SetScript represents attaching a compiled account script to the sender,
// or clearing it when the script is empty. The script itself is opaque to
// the ledger core and only evaluated through the contract environment.
type SetScript struct {
	head
	Script []byte
}

// NewSetScript constructs a set script transaction.
func NewSetScript(senderPK PublicKey, script []byte, fee int64, timestamp int64) (*SetScript, error) {
	tx := SetScript{
		Script: script,
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
func (tx *SetScript) domainCheck() error {
	if len(tx.Script) > MaxScriptSize {
		return errs.NewTooBigArray("script of %d bytes exceeds the limit of %d", len(tx.Script), MaxScriptSize)
	}
	if tx.Fee <= 0 {
		return errs.NewGeneric("fee should be positive, got %d", tx.Fee)
	}
	return nil
}

// GetType returns the transaction type tag.
func (tx *SetScript) GetType() Type { return TypeSetScript }

// BodyBytes returns the canonical body bytes, computed at most once.
func (tx *SetScript) BodyBytes() ([]byte, error) {
	body, _, err := tx.cache(tx.writeBody)
	return body, err
}

// ID returns the content hash of the body bytes, computed at most once.
func (tx *SetScript) ID() (Digest, error) {
	_, id, err := tx.cache(tx.writeBody)
	return id, err
}

func (tx *SetScript) writeBody(w *wire.Writer) error {
	w.WriteU8(byte(TypeSetScript))
	w.WriteBytes(tx.SenderPK[:])
	w.WriteBool(len(tx.Script) > 0)
	if len(tx.Script) > 0 {
		w.WriteSized(tx.Script)
	}
	w.WriteInt64(tx.Fee)
	w.WriteInt64(tx.Timestamp)
	return nil
}

func (tx *SetScript) readBody(r *wire.Reader) error {
	pk, err := PublicKeyFromBytes(r.ReadBytes(32))
	if r.Err() == nil && err != nil {
		return err
	}
	tx.SenderPK = pk
	if r.ReadBool() {
		tx.Script = r.ReadSized()
	}
	tx.Fee = r.ReadInt64()
	tx.Timestamp = r.ReadInt64()
	if err := r.Err(); err != nil {
		return err
	}
	return tx.domainCheck()
}

// =============================================================================

// Sponsorship represents enabling fee payments in a custom asset: the
// declared minimum asset fee buys the same priority as the native minimum
// fee. A zero minimum disables sponsorship for the asset.
type Sponsorship struct {
	head
	AssetID     Digest
	MinAssetFee int64
}

// NewSponsorship constructs a sponsorship transaction.
func NewSponsorship(senderPK PublicKey, assetID Digest, minAssetFee int64, fee int64, timestamp int64) (*Sponsorship, error) {
	tx := Sponsorship{
		AssetID:     assetID,
		MinAssetFee: minAssetFee,
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
func (tx *Sponsorship) domainCheck() error {
	if tx.MinAssetFee < 0 {
		return &errs.NegativeAmount{Amount: tx.MinAssetFee, Unit: "minimal sponsored fee"}
	}
	if tx.Fee <= 0 {
		return errs.NewGeneric("fee should be positive, got %d", tx.Fee)
	}
	return nil
}

// GetType returns the transaction type tag.
func (tx *Sponsorship) GetType() Type { return TypeSponsorship }

// BodyBytes returns the canonical body bytes, computed at most once.
func (tx *Sponsorship) BodyBytes() ([]byte, error) {
	body, _, err := tx.cache(tx.writeBody)
	return body, err
}

// ID returns the content hash of the body bytes, computed at most once.
func (tx *Sponsorship) ID() (Digest, error) {
	_, id, err := tx.cache(tx.writeBody)
	return id, err
}

func (tx *Sponsorship) writeBody(w *wire.Writer) error {
	w.WriteU8(byte(TypeSponsorship))
	w.WriteBytes(tx.SenderPK[:])
	w.WriteBytes(tx.AssetID[:])
	w.WriteInt64(tx.MinAssetFee)
	w.WriteInt64(tx.Fee)
	w.WriteInt64(tx.Timestamp)
	return nil
}

func (tx *Sponsorship) readBody(r *wire.Reader) error {
	pk, err := PublicKeyFromBytes(r.ReadBytes(32))
	if r.Err() == nil && err != nil {
		return err
	}
	tx.SenderPK = pk
	id, err := DigestFromBytes(r.ReadBytes(32))
	if r.Err() == nil && err != nil {
		return err
	}
	tx.AssetID = id
	tx.MinAssetFee = r.ReadInt64()
	tx.Fee = r.ReadInt64()
	tx.Timestamp = r.ReadInt64()
	if err := r.Err(); err != nil {
		return err
	}
	return tx.domainCheck()
}
