package transaction

import (
	"github.com/meridianchain/meridian/foundation/ledger/errs"
	"github.com/meridianchain/meridian/foundation/ledger/wire"
)

// Bounds for asset issue parameters.
const (
	MinAssetNameLength        = 4
	MaxAssetNameLength        = 16
	MaxAssetDescriptionLength = 1000
	MaxAssetDecimals          = 8
)

// Issue represents the creation of a custom asset. The id of the new asset
// is the id of the issuing transaction.
type Issue struct {
	head
	Name        []byte
	Description []byte
	Quantity    int64
	Decimals    byte
	Reissuable  bool
}

// NewIssue constructs an asset issue transaction, validating every domain
// constraint before the value can exist.
func NewIssue(senderPK PublicKey, name []byte, description []byte, quantity int64, decimals byte, reissuable bool, fee int64, timestamp int64) (*Issue, error) {
	tx := Issue{
		Name:        name,
		Description: description,
		Quantity:    quantity,
		Decimals:    decimals,
		Reissuable:  reissuable,
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
func (tx *Issue) domainCheck() error {
	if len(tx.Name) < MinAssetNameLength || len(tx.Name) > MaxAssetNameLength {
		return errs.NewGeneric("asset name length %d is out of range [%d:%d]", len(tx.Name), MinAssetNameLength, MaxAssetNameLength)
	}
	if len(tx.Description) > MaxAssetDescriptionLength {
		return errs.NewTooBigArray("asset description of %d bytes exceeds the limit of %d", len(tx.Description), MaxAssetDescriptionLength)
	}
	if tx.Quantity <= 0 {
		return &errs.NegativeAmount{Amount: tx.Quantity, Unit: "quantity"}
	}
	if tx.Decimals > MaxAssetDecimals {
		return errs.NewGeneric("asset decimals %d exceeds the limit of %d", tx.Decimals, MaxAssetDecimals)
	}
	if tx.Fee <= 0 {
		return errs.NewGeneric("fee should be positive, got %d", tx.Fee)
	}
	return nil
}

// GetType returns the transaction type tag.
func (tx *Issue) GetType() Type { return TypeIssue }

// BodyBytes returns the canonical body bytes, computed at most once.
func (tx *Issue) BodyBytes() ([]byte, error) {
	body, _, err := tx.cache(tx.writeBody)
	return body, err
}

// ID returns the content hash of the body bytes, computed at most once.
func (tx *Issue) ID() (Digest, error) {
	_, id, err := tx.cache(tx.writeBody)
	return id, err
}

func (tx *Issue) writeBody(w *wire.Writer) error {
	w.WriteU8(byte(TypeIssue))
	w.WriteBytes(tx.SenderPK[:])
	w.WriteSized(tx.Name)
	w.WriteSized(tx.Description)
	w.WriteInt64(tx.Quantity)
	w.WriteU8(tx.Decimals)
	w.WriteBool(tx.Reissuable)
	w.WriteInt64(tx.Fee)
	w.WriteInt64(tx.Timestamp)
	return nil
}

func (tx *Issue) readBody(r *wire.Reader) error {
	pk, err := PublicKeyFromBytes(r.ReadBytes(32))
	if r.Err() == nil && err != nil {
		return err
	}
	tx.SenderPK = pk
	tx.Name = r.ReadSized()
	tx.Description = r.ReadSized()
	tx.Quantity = r.ReadInt64()
	tx.Decimals = r.ReadU8()
	tx.Reissuable = r.ReadBool()
	tx.Fee = r.ReadInt64()
	tx.Timestamp = r.ReadInt64()
	if err := r.Err(); err != nil {
		return err
	}
	return tx.domainCheck()
}

// =============================================================================

// Reissue represents minting additional quantity of an existing asset.
type Reissue struct {
	head
	AssetID    Digest
	Quantity   int64
	Reissuable bool
}

// NewReissue constructs an asset reissue transaction.
func NewReissue(senderPK PublicKey, assetID Digest, quantity int64, reissuable bool, fee int64, timestamp int64) (*Reissue, error) {
	tx := Reissue{
		AssetID:    assetID,
		Quantity:   quantity,
		Reissuable: reissuable,
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
func (tx *Reissue) domainCheck() error {
	if tx.Quantity <= 0 {
		return &errs.NegativeAmount{Amount: tx.Quantity, Unit: "quantity"}
	}
	if tx.Fee <= 0 {
		return errs.NewGeneric("fee should be positive, got %d", tx.Fee)
	}
	return nil
}

// GetType returns the transaction type tag.
func (tx *Reissue) GetType() Type { return TypeReissue }

// BodyBytes returns the canonical body bytes, computed at most once.
func (tx *Reissue) BodyBytes() ([]byte, error) {
	body, _, err := tx.cache(tx.writeBody)
	return body, err
}

// ID returns the content hash of the body bytes, computed at most once.
func (tx *Reissue) ID() (Digest, error) {
	_, id, err := tx.cache(tx.writeBody)
	return id, err
}

func (tx *Reissue) writeBody(w *wire.Writer) error {
	w.WriteU8(byte(TypeReissue))
	w.WriteBytes(tx.SenderPK[:])
	w.WriteBytes(tx.AssetID[:])
	w.WriteInt64(tx.Quantity)
	w.WriteBool(tx.Reissuable)
	w.WriteInt64(tx.Fee)
	w.WriteInt64(tx.Timestamp)
	return nil
}

func (tx *Reissue) readBody(r *wire.Reader) error {
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
	tx.Quantity = r.ReadInt64()
	tx.Reissuable = r.ReadBool()
	tx.Fee = r.ReadInt64()
	tx.Timestamp = r.ReadInt64()
	if err := r.Err(); err != nil {
		return err
	}
	return tx.domainCheck()
}

// =============================================================================

// Burn represents destroying quantity of an existing asset from the sender
// balance.
type Burn struct {
	head
	AssetID Digest
	Amount  int64
}

// NewBurn constructs an asset burn transaction.
func NewBurn(senderPK PublicKey, assetID Digest, amount int64, fee int64, timestamp int64) (*Burn, error) {
	tx := Burn{
		AssetID: assetID,
		Amount:  amount,
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
func (tx *Burn) domainCheck() error {
	if tx.Amount <= 0 {
		return &errs.NegativeAmount{Amount: tx.Amount, Unit: "amount"}
	}
	if tx.Fee <= 0 {
		return errs.NewGeneric("fee should be positive, got %d", tx.Fee)
	}
	return nil
}

// GetType returns the transaction type tag.
func (tx *Burn) GetType() Type { return TypeBurn }

// BodyBytes returns the canonical body bytes, computed at most once.
func (tx *Burn) BodyBytes() ([]byte, error) {
	body, _, err := tx.cache(tx.writeBody)
	return body, err
}

// ID returns the content hash of the body bytes, computed at most once.
func (tx *Burn) ID() (Digest, error) {
	_, id, err := tx.cache(tx.writeBody)
	return id, err
}

func (tx *Burn) writeBody(w *wire.Writer) error {
	w.WriteU8(byte(TypeBurn))
	w.WriteBytes(tx.SenderPK[:])
	w.WriteBytes(tx.AssetID[:])
	w.WriteInt64(tx.Amount)
	w.WriteInt64(tx.Fee)
	w.WriteInt64(tx.Timestamp)
	return nil
}

func (tx *Burn) readBody(r *wire.Reader) error {
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
	tx.Amount = r.ReadInt64()
	tx.Fee = r.ReadInt64()
	tx.Timestamp = r.ReadInt64()
	if err := r.Err(); err != nil {
		return err
	}
	return tx.domainCheck()
}
