package transaction

import (
	"crypto/ed25519"

	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/meridianchain/meridian/foundation/ledger/errs"
	"github.com/meridianchain/meridian/foundation/ledger/wire"
)

// PublicKey represents an account ed25519 public key.
type PublicKey [32]byte

// PublicKeyFromBytes converts a byte slice into a PublicKey.
func PublicKeyFromBytes(data []byte) (PublicKey, error) {
	var pk PublicKey
	if len(data) != len(pk) {
		return PublicKey{}, errs.NewGeneric("invalid public key length %d", len(data))
	}
	copy(pk[:], data)
	return pk, nil
}

// String implements the fmt.Stringer interface.
func (pk PublicKey) String() string {
	return hexutil.Encode(pk[:])
}

// =============================================================================

// Digest represents a 32 byte content hash. Transaction ids, asset ids,
// lease ids, and block ids are all digests of canonical bytes.
type Digest [32]byte

// NewDigest computes the content digest of the specified bytes.
func NewDigest(data []byte) Digest {
	var d Digest
	copy(d[:], crypto.Keccak256(data))
	return d
}

// DigestFromBytes converts a byte slice into a Digest.
func DigestFromBytes(data []byte) (Digest, error) {
	var d Digest
	if len(data) != len(d) {
		return Digest{}, errs.NewGeneric("invalid digest length %d", len(data))
	}
	copy(d[:], data)
	return d, nil
}

// String implements the fmt.Stringer interface.
func (d Digest) String() string {
	return hexutil.Encode(d[:])
}

// MarshalText implements the encoding.TextMarshaler interface.
func (d Digest) MarshalText() ([]byte, error) {
	return []byte(d.String()), nil
}

// =============================================================================

// Address represents the 20 byte account identifier derived from the
// account public key.
type Address [20]byte

// AddressFromPublicKey derives the account address for a public key.
func AddressFromPublicKey(pk PublicKey) Address {
	var a Address
	copy(a[:], crypto.Keccak256(pk[:])[12:])
	return a
}

// AddressFromBytes converts a byte slice into an Address.
func AddressFromBytes(data []byte) (Address, error) {
	var a Address
	if len(data) != len(a) {
		return Address{}, errs.NewGeneric("invalid address length %d", len(data))
	}
	copy(a[:], data)
	return a, nil
}

// String implements the fmt.Stringer interface.
func (a Address) String() string {
	return hexutil.Encode(a[:])
}

// MarshalText implements the encoding.TextMarshaler interface.
func (a Address) MarshalText() ([]byte, error) {
	return []byte(a.String()), nil
}

// =============================================================================

// Alias bounds for a registered account alias.
const (
	MinAliasLength = 4
	MaxAliasLength = 30
)

// Alias represents a registered short name for an account address.
type Alias string

// Valid checks the alias length and character set.
func (al Alias) Valid() error {
	if len(al) < MinAliasLength || len(al) > MaxAliasLength {
		return errs.NewGeneric("alias length %d is out of range [%d:%d]", len(al), MinAliasLength, MaxAliasLength)
	}
	for _, c := range al {
		switch {
		case c >= 'a' && c <= 'z':
		case c >= '0' && c <= '9':
		case c == '.' || c == '-' || c == '_' || c == '@':
		default:
			return errs.NewGeneric("alias contains invalid character %q", c)
		}
	}
	return nil
}

// =============================================================================

// Recipient markers used in the canonical byte layout.
const (
	recipientAddressMarker = 0x00
	recipientAliasMarker   = 0x01
)

// Recipient represents either a concrete address or an alias that must be
// resolved through the ledger state before balances can move.
type Recipient struct {
	Addr  *Address
	Alias Alias
}

// NewAddressRecipient constructs a Recipient from a concrete address.
func NewAddressRecipient(addr Address) Recipient {
	return Recipient{Addr: &addr}
}

// NewAliasRecipient constructs a Recipient from an alias.
func NewAliasRecipient(alias Alias) Recipient {
	return Recipient{Alias: alias}
}

// Valid checks the recipient identifies exactly one of address or alias.
func (rcp Recipient) Valid() error {
	switch {
	case rcp.Addr != nil && rcp.Alias != "":
		return errs.NewGeneric("recipient carries both address and alias")
	case rcp.Addr == nil && rcp.Alias == "":
		return errs.NewGeneric("recipient carries neither address nor alias")
	case rcp.Alias != "":
		return rcp.Alias.Valid()
	}
	return nil
}

// Equal reports whether two recipients identify the same target.
func (rcp Recipient) Equal(other Recipient) bool {
	if rcp.Alias != other.Alias {
		return false
	}
	if (rcp.Addr == nil) != (other.Addr == nil) {
		return false
	}
	if rcp.Addr != nil && *rcp.Addr != *other.Addr {
		return false
	}
	return true
}

// String implements the fmt.Stringer interface.
func (rcp Recipient) String() string {
	if rcp.Addr != nil {
		return rcp.Addr.String()
	}
	return string(rcp.Alias)
}

// write appends the self describing recipient encoding.
func (rcp Recipient) write(w *wire.Writer) {
	if rcp.Addr != nil {
		w.WriteU8(recipientAddressMarker)
		w.WriteBytes(rcp.Addr[:])
		return
	}
	w.WriteU8(recipientAliasMarker)
	w.WriteSized([]byte(rcp.Alias))
}

// readRecipient consumes a self describing recipient encoding.
func readRecipient(r *wire.Reader) Recipient {
	switch marker := r.ReadU8(); marker {
	case recipientAddressMarker:
		addr, _ := AddressFromBytes(r.ReadBytes(20))
		return Recipient{Addr: &addr}
	case recipientAliasMarker:
		return Recipient{Alias: Alias(r.ReadSized())}
	default:
		r.Abort(errs.NewGeneric("invalid recipient marker 0x%x", marker))
		return Recipient{}
	}
}

// =============================================================================

// OptionalAsset represents an asset id marker: either the native coin
// (a single zero byte on the wire) or a custom asset id (a one byte followed
// by the 32 byte id).
type OptionalAsset struct {
	Present bool
	ID      Digest
}

// NativeAsset is the marker for the native coin.
var NativeAsset = OptionalAsset{}

// NewOptionalAsset constructs a marker for a custom asset id.
func NewOptionalAsset(id Digest) OptionalAsset {
	return OptionalAsset{Present: true, ID: id}
}

// String implements the fmt.Stringer interface.
func (oa OptionalAsset) String() string {
	if !oa.Present {
		return "native"
	}
	return oa.ID.String()
}

// write appends the presence flagged asset id encoding.
func (oa OptionalAsset) write(w *wire.Writer) {
	w.WriteBool(oa.Present)
	if oa.Present {
		w.WriteBytes(oa.ID[:])
	}
}

// readOptionalAsset consumes a presence flagged asset id encoding.
func readOptionalAsset(r *wire.Reader) OptionalAsset {
	if !r.ReadBool() {
		return OptionalAsset{}
	}
	id, _ := DigestFromBytes(r.ReadBytes(32))
	return OptionalAsset{Present: true, ID: id}
}

// =============================================================================

// GenerateKeys produces a new ed25519 key pair for an account.
func GenerateKeys() (PublicKey, ed25519.PrivateKey, error) {
	pub, priv, err := ed25519.GenerateKey(nil)
	if err != nil {
		return PublicKey{}, nil, err
	}
	pk, err := PublicKeyFromBytes(pub)
	if err != nil {
		return PublicKey{}, nil, err
	}
	return pk, priv, nil
}
