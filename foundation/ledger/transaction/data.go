package transaction

import (
	"github.com/meridianchain/meridian/foundation/ledger/errs"
	"github.com/meridianchain/meridian/foundation/ledger/wire"
)

// Bounds for data transaction entries.
const (
	MaxDataEntries   = 100
	MaxDataKeyLength = 100
	MaxDataValueSize = 32 * 1024
	MaxDataTxBytes   = 150 * 1024
)

// DataKind tags the value type of a data entry.
type DataKind byte

// Set of data entry value types.
const (
	DataInteger DataKind = iota
	DataBoolean
	DataBinary
	DataString
)

// DataEntry represents one typed key value pair stored on an account.
type DataEntry struct {
	Key  string
	Kind DataKind
	Int  int64
	Bool bool
	Bin  []byte
	Str  string
}

// Valid checks the entry key and value bounds.
func (de DataEntry) Valid() error {
	if de.Key == "" {
		return errs.NewGeneric("data entry key is empty")
	}
	if len(de.Key) > MaxDataKeyLength {
		return errs.NewTooBigArray("data entry key of %d bytes exceeds the limit of %d", len(de.Key), MaxDataKeyLength)
	}
	switch de.Kind {
	case DataInteger, DataBoolean:
	case DataBinary:
		if len(de.Bin) > MaxDataValueSize {
			return errs.NewTooBigArray("data entry %q value of %d bytes exceeds the limit of %d", de.Key, len(de.Bin), MaxDataValueSize)
		}
	case DataString:
		if len(de.Str) > MaxDataValueSize {
			return errs.NewTooBigArray("data entry %q value of %d bytes exceeds the limit of %d", de.Key, len(de.Str), MaxDataValueSize)
		}
	default:
		return errs.NewGeneric("unknown data entry kind %d", de.Kind)
	}
	return nil
}

func (de DataEntry) write(w *wire.Writer) {
	w.WriteSized([]byte(de.Key))
	w.WriteU8(byte(de.Kind))
	switch de.Kind {
	case DataInteger:
		w.WriteInt64(de.Int)
	case DataBoolean:
		w.WriteBool(de.Bool)
	case DataBinary:
		w.WriteSized(de.Bin)
	case DataString:
		w.WriteSized([]byte(de.Str))
	}
}

func readDataEntry(r *wire.Reader) (DataEntry, error) {
	var de DataEntry
	de.Key = string(r.ReadSized())
	de.Kind = DataKind(r.ReadU8())
	if r.Err() != nil {
		return DataEntry{}, r.Err()
	}

	switch de.Kind {
	case DataInteger:
		de.Int = r.ReadInt64()
	case DataBoolean:
		de.Bool = r.ReadBool()
	case DataBinary:
		de.Bin = r.ReadSized()
	case DataString:
		de.Str = string(r.ReadSized())
	default:
		return DataEntry{}, errs.NewGeneric("unknown data entry kind %d", de.Kind)
	}
	if r.Err() != nil {
		return DataEntry{}, r.Err()
	}

	if err := de.Valid(); err != nil {
		return DataEntry{}, err
	}
	return de, nil
}

// =============================================================================

// Data represents storing typed key value entries on the sender account.
// The minimum fee scales with the serialized size, so the calculator needs
// the body bytes of this type.
type Data struct {
	head
	Entries []DataEntry
}

// NewData constructs a data transaction, validating every domain constraint
// including the total serialized size before the value can exist.
func NewData(senderPK PublicKey, entries []DataEntry, fee int64, timestamp int64) (*Data, error) {
	tx := Data{
		Entries: entries,
	}
	tx.SenderPK = senderPK
	tx.Timestamp = timestamp
	tx.Fee = fee

	if err := tx.domainCheck(); err != nil {
		return nil, err
	}
	return &tx, nil
}

// domainCheck validates the field constraints, including the total
// serialized size. Both the constructor and the parser run it, so a crafted
// wire form cannot produce a value the constructor would have refused.
func (tx *Data) domainCheck() error {
	if len(tx.Entries) > MaxDataEntries {
		return errs.NewTooBigArray("%d data entries exceeds the limit of %d", len(tx.Entries), MaxDataEntries)
	}
	if tx.Fee <= 0 {
		return errs.NewGeneric("fee should be positive, got %d", tx.Fee)
	}
	for _, entry := range tx.Entries {
		if err := entry.Valid(); err != nil {
			return err
		}
	}

	body, err := tx.BodyBytes()
	if err != nil {
		return err
	}
	if len(body) > MaxDataTxBytes {
		return errs.NewTooBigArray("data transaction of %d bytes exceeds the limit of %d", len(body), MaxDataTxBytes)
	}
	return nil
}

// GetType returns the transaction type tag.
func (tx *Data) GetType() Type { return TypeData }

// BodyBytes returns the canonical body bytes, computed at most once.
func (tx *Data) BodyBytes() ([]byte, error) {
	body, _, err := tx.cache(tx.writeBody)
	return body, err
}

// ID returns the content hash of the body bytes, computed at most once.
func (tx *Data) ID() (Digest, error) {
	_, id, err := tx.cache(tx.writeBody)
	return id, err
}

func (tx *Data) writeBody(w *wire.Writer) error {
	w.WriteU8(byte(TypeData))
	w.WriteBytes(tx.SenderPK[:])
	w.WriteUint16(uint16(len(tx.Entries)))
	for _, entry := range tx.Entries {
		entry.write(w)
	}
	w.WriteInt64(tx.Timestamp)
	w.WriteInt64(tx.Fee)
	return nil
}

func (tx *Data) readBody(r *wire.Reader) error {
	pk, err := PublicKeyFromBytes(r.ReadBytes(32))
	if r.Err() == nil && err != nil {
		return err
	}
	tx.SenderPK = pk

	count := int(r.ReadUint16())
	if r.Err() != nil {
		return r.Err()
	}
	if count > MaxDataEntries {
		return errs.NewTooBigArray("%d data entries exceeds the limit of %d", count, MaxDataEntries)
	}

	tx.Entries = make([]DataEntry, count)
	for i := range tx.Entries {
		entry, err := readDataEntry(r)
		if err != nil {
			return err
		}
		tx.Entries[i] = entry
	}

	tx.Timestamp = r.ReadInt64()
	tx.Fee = r.ReadInt64()
	if err := r.Err(); err != nil {
		return err
	}
	return tx.domainCheck()
}
