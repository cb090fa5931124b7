// Package transaction implements the closed set of ledger transaction
// variants, their canonical byte layouts, content addressed ids, and the
// signing and parsing rules. Parsing is the exact left inverse of
// serialization: Parse(MarshalBinary(tx)) reproduces tx for every valid
// transaction and fails with a classified error on any malformed input.
package transaction

import (
	"crypto/ed25519"
	"sync"

	"github.com/meridianchain/meridian/foundation/ledger/errs"
	"github.com/meridianchain/meridian/foundation/ledger/wire"
)

// Type tags the transaction variant. The tag is the first byte of both the
// wire envelope and the canonical body.
type Type byte

// Set of transaction variants.
const (
	TypeGenesis Type = iota + 1
	TypePayment
	TypeIssue
	TypeTransfer
	TypeReissue
	TypeBurn
	TypeExchange
	TypeLease
	TypeLeaseCancel
	TypeCreateAlias
	TypeMassTransfer
	TypeData
	TypeSetScript
	TypeSponsorship
	TypeRegistryTransfer
)

// String implements the fmt.Stringer interface.
func (t Type) String() string {
	switch t {
	case TypeGenesis:
		return "genesis"
	case TypePayment:
		return "payment"
	case TypeIssue:
		return "issue"
	case TypeTransfer:
		return "transfer"
	case TypeReissue:
		return "reissue"
	case TypeBurn:
		return "burn"
	case TypeExchange:
		return "exchange"
	case TypeLease:
		return "lease"
	case TypeLeaseCancel:
		return "lease-cancel"
	case TypeCreateAlias:
		return "create-alias"
	case TypeMassTransfer:
		return "mass-transfer"
	case TypeData:
		return "data"
	case TypeSetScript:
		return "set-script"
	case TypeSponsorship:
		return "sponsorship"
	case TypeRegistryTransfer:
		return "registry-transfer"
	}
	return "unknown"
}

// =============================================================================

// Transaction is the behavior shared by every transaction variant. The
// interface is sealed: only types in this package can implement it, which
// keeps the variant set closed and makes dispatch exhaustive.
type Transaction interface {
	GetType() Type
	GetSenderPK() PublicKey
	GetTimestamp() int64
	GetFee() int64
	GetFeeAsset() OptionalAsset
	GetProofs() *Proofs

	// ID returns the content hash of the canonical body bytes. Both ID and
	// BodyBytes are computed at most once per instance and cached.
	ID() (Digest, error)
	BodyBytes() ([]byte, error)

	writeBody(w *wire.Writer) error
	readBody(r *wire.Reader) error
	setProofs(p *Proofs)
}

// head carries the fields common to every transaction variant plus the
// single computation cache for body bytes and id. Transactions are
// immutable once signed so the cache never invalidates.
type head struct {
	SenderPK  PublicKey
	Timestamp int64
	Fee       int64
	FeeAsset  OptionalAsset
	Proofs    *Proofs

	once sync.Once
	body []byte
	id   Digest
	err  error
}

// GetSenderPK returns the sender public key.
func (h *head) GetSenderPK() PublicKey { return h.SenderPK }

// GetTimestamp returns the transaction timestamp in epoch milliseconds.
func (h *head) GetTimestamp() int64 { return h.Timestamp }

// GetFee returns the declared fee.
func (h *head) GetFee() int64 { return h.Fee }

// GetFeeAsset returns the asset the fee is paid in.
func (h *head) GetFeeAsset() OptionalAsset { return h.FeeAsset }

// GetProofs returns the proof container, never nil.
func (h *head) GetProofs() *Proofs {
	if h.Proofs == nil {
		return emptyProofs
	}
	return h.Proofs
}

// setProofs installs the proof container. Only the signing and parsing
// paths may call this, before the transaction is shared.
func (h *head) setProofs(p *Proofs) { h.Proofs = p }

// cache computes the canonical body and its digest exactly once.
func (h *head) cache(writeBody func(w *wire.Writer) error) ([]byte, Digest, error) {
	h.once.Do(func() {
		w := wire.NewWriter()
		if err := writeBody(w); err != nil {
			h.err = err
			return
		}
		h.body = w.Bytes()
		h.id = NewDigest(h.body)
	})
	return h.body, h.id, h.err
}

// =============================================================================

// Sign computes the canonical body bytes and installs an ed25519 signature
// over them as the first proof.
func Sign(tx Transaction, secret ed25519.PrivateKey) error {
	body, err := tx.BodyBytes()
	if err != nil {
		return err
	}

	sig := ed25519.Sign(secret, body)
	proofs, err := NewProofs(sig)
	if err != nil {
		return err
	}

	tx.setProofs(proofs)
	return nil
}

// Verify checks the first proof is a valid signature over the canonical
// body bytes by the sender public key. Genesis transactions carry no
// signature and always verify.
func Verify(tx Transaction) error {
	if tx.GetType() == TypeGenesis {
		return nil
	}

	body, err := tx.BodyBytes()
	if err != nil {
		return err
	}

	sig, err := tx.GetProofs().Signature()
	if err != nil {
		return err
	}

	pk := tx.GetSenderPK()
	if !ed25519.Verify(pk[:], body, sig) {
		return errs.NewGeneric("invalid signature for transaction %s", tx.GetType())
	}
	return nil
}

// =============================================================================

// MarshalBinary produces the full wire form of a transaction:
// [type byte][proofs][canonical body].
func MarshalBinary(tx Transaction) ([]byte, error) {
	body, err := tx.BodyBytes()
	if err != nil {
		return nil, err
	}

	w := wire.NewWriter()
	w.WriteU8(byte(tx.GetType()))
	tx.GetProofs().write(w)
	w.WriteBytes(body)

	return w.Bytes(), nil
}

// Parse consumes the full wire form of a transaction. Any truncated,
// oversized, or structurally invalid input fails with a classified error.
func Parse(data []byte) (Transaction, error) {
	r := wire.NewReader(data)

	envelope := Type(r.ReadU8())
	if err := r.Err(); err != nil {
		return nil, err
	}

	tx := newByType(envelope)
	if tx == nil {
		return nil, errs.NewGeneric("unknown transaction type %d", envelope)
	}

	proofs := readProofs(r)
	if err := r.Err(); err != nil {
		return nil, err
	}

	// The body repeats the type tag so the body bytes alone are
	// self describing for hashing and signing.
	if bodyType := Type(r.ReadU8()); r.Err() == nil && bodyType != envelope {
		return nil, errs.NewGeneric("body type %d does not match envelope type %d", bodyType, envelope)
	}

	if err := tx.readBody(r); err != nil {
		return nil, err
	}
	if err := r.Close(); err != nil {
		return nil, err
	}

	tx.setProofs(proofs)
	return tx, nil
}

// newByType constructs the zero value for a transaction type tag.
func newByType(t Type) Transaction {
	switch t {
	case TypeGenesis:
		return &Genesis{}
	case TypePayment:
		return &Payment{}
	case TypeIssue:
		return &Issue{}
	case TypeTransfer:
		return &Transfer{}
	case TypeReissue:
		return &Reissue{}
	case TypeBurn:
		return &Burn{}
	case TypeExchange:
		return &Exchange{}
	case TypeLease:
		return &Lease{}
	case TypeLeaseCancel:
		return &LeaseCancel{}
	case TypeCreateAlias:
		return &CreateAlias{}
	case TypeMassTransfer:
		return &MassTransfer{}
	case TypeData:
		return &Data{}
	case TypeSetScript:
		return &SetScript{}
	case TypeSponsorship:
		return &Sponsorship{}
	case TypeRegistryTransfer:
		return &RegistryTransfer{}
	}
	return nil
}
