// Package pos implements the proof of stake arithmetic: generation
// signatures, hit and target values, base target retargeting, and block
// generation time prediction. Every function is a pure computation over its
// inputs and must produce identical results on every conforming node, which
// is why the intermediate products run through big integers instead of
// saturating or wrapping machine words.
package pos

import (
	"math"
	"math/big"

	"github.com/ethereum/go-ethereum/crypto"

	"github.com/meridianchain/meridian/foundation/ledger/errs"
	"github.com/meridianchain/meridian/foundation/ledger/settings"
	"github.com/meridianchain/meridian/foundation/ledger/transaction"
)

// Consensus constants of the retarget algorithm.
const (
	// MinBaseTarget floors the base target so an 11 percent upward step can
	// still reach the next integer value.
	MinBaseTarget = 9

	// MinimalEffectiveBalance is the smallest effective balance allowed to
	// generate blocks.
	MinimalEffectiveBalance = 500_000_000_000

	minBlockDelaySeconds = 53
	maxBlockDelaySeconds = 67
	baseTargetGamma      = 64
)

// Generating balance look back windows in blocks.
const (
	GenerationWindowShallow = 50
	GenerationWindowDeep    = 1000
)

// Reader is the state the calculator consults for generating balances.
type Reader interface {
	EffectiveBalanceWithConfirmations(addr transaction.Address, height uint64, confirmations uint64) (int64, error)
}

// GenerationSignature derives the next generation signature by hashing the
// previous signature together with the generator public key.
func GenerationSignature(prevGenSig transaction.Digest, generatorPK transaction.PublicKey) transaction.Digest {
	data := make([]byte, 0, len(prevGenSig)+len(generatorPK))
	data = append(data, prevGenSig[:]...)
	data = append(data, generatorPK[:]...)

	var sig transaction.Digest
	copy(sig[:], crypto.Keccak256(data))
	return sig
}

// Hit forms the unsigned big integer from the first 8 bytes of the
// generation signature, byte order reversed.
func Hit(genSig transaction.Digest) *big.Int {
	var reversed [8]byte
	for i := range reversed {
		reversed[i] = genSig[7-i]
	}
	return new(big.Int).SetBytes(reversed[:])
}

// Target computes the threshold the hit is compared against: the previous
// base target scaled by the elapsed seconds and the generating balance.
func Target(prevTimestamp int64, prevBaseTarget int64, timestamp int64, balance int64) *big.Int {
	elapsedSeconds := (timestamp - prevTimestamp) / 1000

	target := big.NewInt(prevBaseTarget)
	target.Mul(target, big.NewInt(elapsedSeconds))
	target.Mul(target, big.NewInt(balance))
	return target
}

// CalculateBaseTarget retargets the chain toward the configured average
// block delay. The target is only recomputed when the parent height is
// even, odd heights inherit the parent's value. The observed delay averages
// the last three blocks when a great grandparent timestamp is known,
// otherwise only the delay since the parent.
func CalculateBaseTarget(avgDelaySeconds int64, prevHeight uint64, prevBaseTarget int64, parentTimestamp int64, greatGrandParentTimestamp int64, timestamp int64) int64 {
	if prevHeight%2 != 0 {
		return prevBaseTarget
	}

	avg := (timestamp - parentTimestamp) / 1000
	if greatGrandParentTimestamp > 0 {
		avg = (timestamp - greatGrandParentTimestamp) / 3 / 1000
	}

	minDelay := normalize(minBlockDelaySeconds, avgDelaySeconds)
	maxDelay := normalize(maxBlockDelaySeconds, avgDelaySeconds)
	gamma := normalize(baseTargetGamma, avgDelaySeconds)

	var baseTarget int64
	if avg > avgDelaySeconds {
		baseTarget = int64(float64(prevBaseTarget) * math.Min(float64(avg), maxDelay) / float64(avgDelaySeconds))
	} else {
		baseTarget = prevBaseTarget - int64(float64(prevBaseTarget)*gamma*(float64(avgDelaySeconds)-math.Max(float64(avg), minDelay))/float64(avgDelaySeconds*100))
	}

	return clampBaseTarget(baseTarget, avgDelaySeconds)
}

// normalize scales a constant tuned for a 60 second network to the
// configured average delay.
func normalize(value int64, avgDelaySeconds int64) float64 {
	return float64(value*avgDelaySeconds) / 60.0
}

// clampBaseTarget bounds the base target into its legal range.
func clampBaseTarget(baseTarget int64, avgDelaySeconds int64) int64 {
	maxBaseTarget := math.MaxInt64 / avgDelaySeconds
	switch {
	case baseTarget < MinBaseTarget:
		return MinBaseTarget
	case baseTarget > maxBaseTarget:
		return maxBaseTarget
	}
	return baseTarget
}

// GeneratingBalance returns the effective balance of an account over the
// generation look back window. The window widens permanently from 50 to
// 1000 blocks once the chain crosses the configured activation height.
func GeneratingBalance(reader Reader, fn settings.Functionality, addr transaction.Address, height uint64) (int64, error) {
	confirmations := uint64(GenerationWindowShallow)
	if fn.GenerationBalanceDepthFrom50To1000AfterHeight > 0 && height >= fn.GenerationBalanceDepthFrom50To1000AfterHeight {
		confirmations = GenerationWindowDeep
	}
	return reader.EffectiveBalanceWithConfirmations(addr, height, confirmations)
}

// NextBlockGenerationTime predicts when the account becomes eligible to
// generate the next block.
func NextBlockGenerationTime(reader Reader, fn settings.Functionality, height uint64, baseTarget int64, parentTimestamp int64, genSig transaction.Digest, addr transaction.Address) (int64, error) {
	balance, err := GeneratingBalance(reader, fn, addr, height)
	if err != nil {
		return 0, err
	}
	if balance < MinimalEffectiveBalance {
		return 0, errs.NewGeneric("generating balance %d of %s is below the required minimum %d", balance, addr, int64(MinimalEffectiveBalance))
	}

	// delay = hit * 1000 / (baseTarget * balance), in milliseconds.
	numerator := new(big.Int).Mul(Hit(genSig), big.NewInt(1000))
	denominator := new(big.Int).Mul(big.NewInt(baseTarget), big.NewInt(balance))
	if denominator.Sign() <= 0 {
		return 0, errs.NewGeneric("base target %d and balance %d give a non positive target", baseTarget, balance)
	}

	timestamp := numerator.Div(numerator, denominator)
	timestamp.Add(timestamp, big.NewInt(parentTimestamp))
	if !timestamp.IsInt64() {
		return 0, errs.NewOverflow("generation time for %s overflows", addr)
	}
	if ts := timestamp.Int64(); ts > 0 {
		return ts, nil
	}
	return 0, errs.NewGeneric("generation time for %s is not positive", addr)
}

// BlockScore converts a base target into the score contribution of one
// block. The chain with the highest cumulative score wins fork choice.
func BlockScore(baseTarget int64) *big.Int {
	if baseTarget <= 0 {
		return big.NewInt(0)
	}

	score := new(big.Int).Lsh(big.NewInt(1), 64)
	return score.Div(score, big.NewInt(baseTarget))
}
