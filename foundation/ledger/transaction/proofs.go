package transaction

import (
	"crypto/ed25519"

	"github.com/meridianchain/meridian/foundation/ledger/errs"
	"github.com/meridianchain/meridian/foundation/ledger/wire"
)

// Bounds of the proof container. A signature is carried as the first proof.
const (
	ProofsVersion = 1
	MaxProofs     = 8
	MaxProofSize  = 64
)

// Proofs represents the ordered list of byte strings authorizing a
// transaction. The list is immutable once constructed.
type Proofs struct {
	Version byte
	Proofs  [][]byte
}

// emptyProofs is the shared singleton for a transaction that carries no
// proofs. It must never be mutated.
var emptyProofs = &Proofs{Version: ProofsVersion}

// EmptyProofs returns the cached singleton representing no proofs supplied.
func EmptyProofs() *Proofs {
	return emptyProofs
}

// NewProofs constructs a proof container from the specified byte strings.
func NewProofs(proofs ...[]byte) (*Proofs, error) {
	if len(proofs) == 0 {
		return emptyProofs, nil
	}
	if len(proofs) > MaxProofs {
		return nil, errs.NewTooBigArray("%d proofs exceeds the limit of %d", len(proofs), MaxProofs)
	}
	for i, proof := range proofs {
		if len(proof) > MaxProofSize {
			return nil, errs.NewTooBigArray("proof %d is %d bytes, limit is %d", i, len(proof), MaxProofSize)
		}
	}
	return &Proofs{Version: ProofsVersion, Proofs: proofs}, nil
}

// Signature returns the first proof when it has the shape of an ed25519
// signature.
func (p *Proofs) Signature() ([]byte, error) {
	if len(p.Proofs) == 0 {
		return nil, errs.NewGeneric("no proofs supplied")
	}
	if len(p.Proofs[0]) != ed25519.SignatureSize {
		return nil, errs.NewGeneric("proof 0 is %d bytes, not a signature", len(p.Proofs[0]))
	}
	return p.Proofs[0], nil
}

// write appends the versioned proof list encoding.
func (p *Proofs) write(w *wire.Writer) {
	w.WriteU8(p.Version)
	w.WriteUint16(uint16(len(p.Proofs)))
	for _, proof := range p.Proofs {
		w.WriteSized(proof)
	}
}

// readProofs consumes a versioned proof list encoding.
func readProofs(r *wire.Reader) *Proofs {
	version := r.ReadU8()
	if r.Err() != nil {
		return nil
	}
	if version != ProofsVersion {
		r.Abort(errs.NewGeneric("unsupported proofs version %d", version))
		return nil
	}

	count := int(r.ReadUint16())
	if r.Err() != nil {
		return nil
	}
	if count > MaxProofs {
		r.Abort(errs.NewTooBigArray("%d proofs exceeds the limit of %d", count, MaxProofs))
		return nil
	}
	if count == 0 {
		return emptyProofs
	}

	proofs := make([][]byte, count)
	for i := range proofs {
		proofs[i] = r.ReadSized()
		if r.Err() != nil {
			return nil
		}
		if len(proofs[i]) > MaxProofSize {
			r.Abort(errs.NewTooBigArray("proof %d is %d bytes, limit is %d", i, len(proofs[i]), MaxProofSize))
			return nil
		}
	}

	return &Proofs{Version: version, Proofs: proofs}
}
