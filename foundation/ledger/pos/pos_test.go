package pos_test

import (
	"math"
	"math/big"
	"testing"

	"github.com/meridianchain/meridian/foundation/ledger/pos"
	"github.com/meridianchain/meridian/foundation/ledger/settings"
	"github.com/meridianchain/meridian/foundation/ledger/transaction"
)

// Success and failure markers.
const (
	success = "✓"
	failed  = "✗"
)

// balanceReader stubs the state with one fixed effective balance and records
// the confirmation window it was asked for.
type balanceReader struct {
	balance       int64
	confirmations uint64
}

func (r *balanceReader) EffectiveBalanceWithConfirmations(addr transaction.Address, height uint64, confirmations uint64) (int64, error) {
	r.confirmations = confirmations
	return r.balance, nil
}

// =============================================================================

func Test_Hit(t *testing.T) {
	var genSig transaction.Digest
	for i := range genSig {
		genSig[i] = byte(i)
	}

	// The hit is the first 8 signature bytes in reversed order.
	want := new(big.Int).SetUint64(0x0706050403020100)
	if got := pos.Hit(genSig); got.Cmp(want) != 0 {
		t.Fatalf("\t%s\tShould reverse the first 8 bytes: got %s, exp %s", failed, got, want)
	}
	t.Logf("\t%s\tShould reverse the first 8 bytes.", success)
}

func Test_GenerationSignatureDeterminism(t *testing.T) {
	pk, _, err := transaction.GenerateKeys()
	if err != nil {
		t.Fatalf("\t%s\tShould be able to generate keys: %v", failed, err)
	}
	otherPK, _, err := transaction.GenerateKeys()
	if err != nil {
		t.Fatalf("\t%s\tShould be able to generate keys: %v", failed, err)
	}

	var prev transaction.Digest
	prev[0] = 0x42

	a := pos.GenerationSignature(prev, pk)
	b := pos.GenerationSignature(prev, pk)
	if a != b {
		t.Fatalf("\t%s\tShould derive the same signature for the same inputs.", failed)
	}
	t.Logf("\t%s\tShould derive the same signature for the same inputs.", success)

	if c := pos.GenerationSignature(prev, otherPK); c == a {
		t.Fatalf("\t%s\tShould derive different signatures for different generators.", failed)
	}
	t.Logf("\t%s\tShould derive different signatures for different generators.", success)
}

func Test_Target(t *testing.T) {
	// 30 elapsed seconds at base target 100 with a balance of 1000.
	want := big.NewInt(100 * 30 * 1000)
	if got := pos.Target(0, 100, 30_000, 1000); got.Cmp(want) != 0 {
		t.Fatalf("\t%s\tShould scale the base target by elapsed seconds and balance: got %s, exp %s", failed, got, want)
	}
	t.Logf("\t%s\tShould scale the base target by elapsed seconds and balance.", success)
}

func Test_CalculateBaseTarget(t *testing.T) {
	const avgDelay = 60

	t.Log("Given the need to retarget toward the average block delay.")
	{
		t.Log("\tTest 0:\tWhen the parent height is odd.")
		{
			got := pos.CalculateBaseTarget(avgDelay, 3, 100, 0, 0, 60_000)
			if got != 100 {
				t.Fatalf("\t%s\tTest 0:\tShould inherit the parent base target: got %d, exp %d", failed, got, 100)
			}
			t.Logf("\t%s\tTest 0:\tShould inherit the parent base target.", success)
		}

		t.Log("\tTest 1:\tWhen blocks arrive slower than the average delay.")
		{
			got := pos.CalculateBaseTarget(avgDelay, 2, 100, 0, 0, 90_000)
			if got <= 100 {
				t.Fatalf("\t%s\tTest 1:\tShould raise the base target: got %d", failed, got)
			}
			t.Logf("\t%s\tTest 1:\tShould raise the base target.", success)
		}

		t.Log("\tTest 2:\tWhen blocks arrive faster than the average delay.")
		{
			got := pos.CalculateBaseTarget(avgDelay, 2, 100, 0, 0, 30_000)
			if got >= 100 {
				t.Fatalf("\t%s\tTest 2:\tShould lower the base target: got %d", failed, got)
			}
			t.Logf("\t%s\tTest 2:\tShould lower the base target.", success)
		}

		t.Log("\tTest 3:\tWhen repeatedly retargeting a fast chain.")
		{
			baseTarget := int64(100)
			var parentTS, ts int64
			for i := 0; i < 100; i++ {
				parentTS = ts
				ts += 10_000
				next := pos.CalculateBaseTarget(avgDelay, 2, baseTarget, parentTS, 0, ts)
				if next > baseTarget {
					t.Fatalf("\t%s\tTest 3:\tShould never raise the base target on a fast chain: got %d after %d", failed, next, baseTarget)
				}
				baseTarget = next
			}
			if baseTarget >= 100 || baseTarget < pos.MinBaseTarget {
				t.Fatalf("\t%s\tTest 3:\tShould settle between the floor and the start: got %d", failed, baseTarget)
			}
			t.Logf("\t%s\tTest 3:\tShould keep lowering the base target without crossing the floor.", success)
		}

		t.Log("\tTest 4:\tWhen the base target would exceed the ceiling.")
		{
			got := pos.CalculateBaseTarget(avgDelay, 2, math.MaxInt64/avgDelay, 0, 0, 120_000)
			if got != math.MaxInt64/avgDelay {
				t.Fatalf("\t%s\tTest 4:\tShould clamp at the ceiling: got %d, exp %d", failed, got, int64(math.MaxInt64/avgDelay))
			}
			t.Logf("\t%s\tTest 4:\tShould clamp at the ceiling.", success)
		}

		t.Log("\tTest 5:\tWhen a great grandparent timestamp is known.")
		{
			// Three blocks spanning just under three average delays, so the
			// base target must stay close to its previous value.
			got := pos.CalculateBaseTarget(avgDelay, 2, 100, 120_000, 60, 180_000)
			if got > 100 || got < 90 {
				t.Fatalf("\t%s\tTest 5:\tShould stay close to the previous base target: got %d", failed, got)
			}
			t.Logf("\t%s\tTest 5:\tShould stay close to the previous base target.", success)
		}
	}
}

func Test_GeneratingBalanceWindow(t *testing.T) {
	fn := settings.Default().Functionality
	fn.GenerationBalanceDepthFrom50To1000AfterHeight = 100

	reader := balanceReader{balance: pos.MinimalEffectiveBalance}
	var addr transaction.Address

	if _, err := pos.GeneratingBalance(&reader, fn, addr, 99); err != nil {
		t.Fatalf("\t%s\tShould be able to read the generating balance: %v", failed, err)
	}
	if reader.confirmations != pos.GenerationWindowShallow {
		t.Fatalf("\t%s\tShould use the shallow window below the activation height: got %d, exp %d", failed, reader.confirmations, pos.GenerationWindowShallow)
	}
	t.Logf("\t%s\tShould use the shallow window below the activation height.", success)

	if _, err := pos.GeneratingBalance(&reader, fn, addr, 100); err != nil {
		t.Fatalf("\t%s\tShould be able to read the generating balance: %v", failed, err)
	}
	if reader.confirmations != pos.GenerationWindowDeep {
		t.Fatalf("\t%s\tShould use the deep window at the activation height: got %d, exp %d", failed, reader.confirmations, pos.GenerationWindowDeep)
	}
	t.Logf("\t%s\tShould use the deep window at the activation height.", success)
}

func Test_NextBlockGenerationTime(t *testing.T) {
	fn := settings.Default().Functionality
	var addr transaction.Address
	var genSig transaction.Digest
	genSig[7] = 0x10

	const parentTS = int64(1_700_000_000_000)

	t.Log("Given the need to predict the next generation slot.")
	{
		t.Log("\tTest 0:\tWhen the balance is below the minimum.")
		{
			reader := balanceReader{balance: pos.MinimalEffectiveBalance - 1}
			if _, err := pos.NextBlockGenerationTime(&reader, fn, 10, 100, parentTS, genSig, addr); err == nil {
				t.Fatalf("\t%s\tTest 0:\tShould reject a balance below the minimum.", failed)
			}
			t.Logf("\t%s\tTest 0:\tShould reject a balance below the minimum.", success)
		}

		t.Log("\tTest 1:\tWhen the balance grows.")
		{
			small := balanceReader{balance: pos.MinimalEffectiveBalance}
			large := balanceReader{balance: 10 * pos.MinimalEffectiveBalance}

			tsSmall, err := pos.NextBlockGenerationTime(&small, fn, 10, 100, parentTS, genSig, addr)
			if err != nil {
				t.Fatalf("\t%s\tTest 1:\tShould be able to predict the slot: %v", failed, err)
			}
			tsLarge, err := pos.NextBlockGenerationTime(&large, fn, 10, 100, parentTS, genSig, addr)
			if err != nil {
				t.Fatalf("\t%s\tTest 1:\tShould be able to predict the slot: %v", failed, err)
			}

			if tsSmall <= parentTS || tsLarge <= parentTS {
				t.Fatalf("\t%s\tTest 1:\tShould predict a slot after the parent block.", failed)
			}
			if tsLarge > tsSmall {
				t.Fatalf("\t%s\tTest 1:\tShould never delay the slot as the balance grows: got %d > %d", failed, tsLarge, tsSmall)
			}
			t.Logf("\t%s\tTest 1:\tShould move the slot earlier as the balance grows.", success)
		}
	}
}

func Test_BlockScore(t *testing.T) {
	two64 := new(big.Int).Lsh(big.NewInt(1), 64)

	if got := pos.BlockScore(1); got.Cmp(two64) != 0 {
		t.Fatalf("\t%s\tShould score 2^64 at base target one: got %s", failed, got)
	}
	t.Logf("\t%s\tShould score 2^64 at base target one.", success)

	half := new(big.Int).Rsh(two64, 1)
	if got := pos.BlockScore(2); got.Cmp(half) != 0 {
		t.Fatalf("\t%s\tShould halve the score as the base target doubles: got %s", failed, got)
	}
	t.Logf("\t%s\tShould halve the score as the base target doubles.", success)

	if got := pos.BlockScore(0); got.Sign() != 0 {
		t.Fatalf("\t%s\tShould score zero for a non positive base target: got %s", failed, got)
	}
	t.Logf("\t%s\tShould score zero for a non positive base target.", success)
}
