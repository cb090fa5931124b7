package validation_test

import (
	"errors"
	"testing"
	"time"

	"github.com/meridianchain/meridian/foundation/ledger/diff"
	"github.com/meridianchain/meridian/foundation/ledger/errs"
	"github.com/meridianchain/meridian/foundation/ledger/settings"
	"github.com/meridianchain/meridian/foundation/ledger/state"
	"github.com/meridianchain/meridian/foundation/ledger/transaction"
	"github.com/meridianchain/meridian/foundation/ledger/validation"
)

// Success and failure markers.
const (
	success = "✓"
	failed  = "✗"
)

const blockTime = int64(1_700_000_000_000)

// fund applies a diff crediting the address with the native amount.
func fund(t *testing.T, store *state.Memory, addr transaction.Address, amount int64) {
	t.Helper()

	d := diff.New(1)
	d.Portfolios[addr] = diff.NativePortfolio(amount)
	if _, err := store.Apply(d); err != nil {
		t.Fatalf("funding %s: %v", addr, err)
	}
}

// =============================================================================

func Test_TimestampChecks(t *testing.T) {
	senderPK, _, err := transaction.GenerateKeys()
	if err != nil {
		t.Fatalf("\t%s\tShould be able to generate keys: %v", failed, err)
	}
	sender := transaction.AddressFromPublicKey(senderPK)
	recipient := transaction.NewAddressRecipient(sender)

	fn := settings.Default().Functionality
	forward := fn.MaxTxTimeForwardOffset.Milliseconds()
	backward := fn.MaxTxTimeBackwardOffset.Milliseconds()

	store := state.New(fn)
	fund(t, store, sender, 1_000_000)
	v := validation.New(store, store, fn)

	t.Log("Given the need to bound transaction timestamps around the block time.")
	{
		t.Log("\tTest 0:\tWhen the timestamp sits exactly at the future boundary.")
		{
			tx, err := transaction.NewTransfer(senderPK, transaction.NativeAsset, transaction.NativeAsset, recipient, 1, 1, blockTime+forward, nil)
			if err != nil {
				t.Fatalf("\t%s\tTest 0:\tShould be able to build a transfer: %v", failed, err)
			}
			if err := v.Validate(tx, blockTime, blockTime-60_000); err != nil {
				t.Fatalf("\t%s\tTest 0:\tShould accept the boundary timestamp: %v", failed, err)
			}
			t.Logf("\t%s\tTest 0:\tShould accept the boundary timestamp.", success)
		}

		t.Log("\tTest 1:\tWhen the timestamp is one millisecond past the future boundary.")
		{
			tx, err := transaction.NewTransfer(senderPK, transaction.NativeAsset, transaction.NativeAsset, recipient, 1, 1, blockTime+forward+1, nil)
			if err != nil {
				t.Fatalf("\t%s\tTest 1:\tShould be able to build a transfer: %v", failed, err)
			}
			var mistiming *errs.Mistiming
			if err := v.Validate(tx, blockTime, blockTime-60_000); !errors.As(err, &mistiming) {
				t.Fatalf("\t%s\tTest 1:\tShould get a mistiming error: %v", failed, err)
			}
			t.Logf("\t%s\tTest 1:\tShould get a mistiming error.", success)
		}

		t.Log("\tTest 2:\tWhen the timestamp sits exactly at the past boundary.")
		{
			tx, err := transaction.NewTransfer(senderPK, transaction.NativeAsset, transaction.NativeAsset, recipient, 1, 1, blockTime-backward, nil)
			if err != nil {
				t.Fatalf("\t%s\tTest 2:\tShould be able to build a transfer: %v", failed, err)
			}
			if err := v.Validate(tx, blockTime, blockTime); err != nil {
				t.Fatalf("\t%s\tTest 2:\tShould accept the boundary timestamp: %v", failed, err)
			}
			t.Logf("\t%s\tTest 2:\tShould accept the boundary timestamp.", success)
		}

		t.Log("\tTest 3:\tWhen the timestamp is one millisecond past the past boundary.")
		{
			tx, err := transaction.NewTransfer(senderPK, transaction.NativeAsset, transaction.NativeAsset, recipient, 1, 1, blockTime-backward-1, nil)
			if err != nil {
				t.Fatalf("\t%s\tTest 3:\tShould be able to build a transfer: %v", failed, err)
			}
			var mistiming *errs.Mistiming
			if err := v.Validate(tx, blockTime, blockTime); !errors.As(err, &mistiming) {
				t.Fatalf("\t%s\tTest 3:\tShould get a mistiming error: %v", failed, err)
			}
			t.Logf("\t%s\tTest 3:\tShould get a mistiming error.", success)
		}

		t.Log("\tTest 4:\tWhen validating against the first block.")
		{
			tx, err := transaction.NewTransfer(senderPK, transaction.NativeAsset, transaction.NativeAsset, recipient, 1, 1, blockTime-backward-1, nil)
			if err != nil {
				t.Fatalf("\t%s\tTest 4:\tShould be able to build a transfer: %v", failed, err)
			}
			if err := v.Validate(tx, blockTime, 0); err != nil {
				t.Fatalf("\t%s\tTest 4:\tShould skip the past check without a previous block: %v", failed, err)
			}
			t.Logf("\t%s\tTest 4:\tShould skip the past check without a previous block.", success)
		}
	}
}

func Test_DuplicateID(t *testing.T) {
	senderPK, _, err := transaction.GenerateKeys()
	if err != nil {
		t.Fatalf("\t%s\tShould be able to generate keys: %v", failed, err)
	}
	sender := transaction.AddressFromPublicKey(senderPK)
	recipient := transaction.NewAddressRecipient(sender)

	fn := settings.Default().Functionality
	store := state.New(fn)
	fund(t, store, sender, 1_000_000)
	v := validation.New(store, store, fn)

	tx, err := transaction.NewTransfer(senderPK, transaction.NativeAsset, transaction.NativeAsset, recipient, 1, 1, blockTime, nil)
	if err != nil {
		t.Fatalf("\t%s\tShould be able to build a transfer: %v", failed, err)
	}

	if err := v.Validate(tx, blockTime, 0); err != nil {
		t.Fatalf("\t%s\tShould accept an uncommitted transaction: %v", failed, err)
	}
	t.Logf("\t%s\tShould accept an uncommitted transaction.", success)

	id, err := tx.ID()
	if err != nil {
		t.Fatalf("\t%s\tShould be able to compute the id: %v", failed, err)
	}
	d := diff.New(2)
	d.Transactions[id] = diff.TxInfo{Height: 2, Tx: tx}
	if _, err := store.Apply(d); err != nil {
		t.Fatalf("\t%s\tShould be able to commit the transaction: %v", failed, err)
	}

	var dup *errs.AlreadyInTheState
	if err := v.Validate(tx, blockTime, 0); !errors.As(err, &dup) {
		t.Fatalf("\t%s\tShould get an already in the state error: %v", failed, err)
	}
	if dup.Height != 2 {
		t.Fatalf("\t%s\tShould report the committed height: got %d, exp %d", failed, dup.Height, 2)
	}
	t.Logf("\t%s\tShould get an already in the state error with the committed height.", success)
}

func Test_FeatureActivation(t *testing.T) {
	senderPK, _, err := transaction.GenerateKeys()
	if err != nil {
		t.Fatalf("\t%s\tShould be able to generate keys: %v", failed, err)
	}
	sender := transaction.AddressFromPublicKey(senderPK)
	recipient := transaction.NewAddressRecipient(sender)

	tx, err := transaction.NewMassTransfer(senderPK, transaction.NativeAsset, []transaction.TransferEntry{
		{Recipient: recipient, Amount: 1},
	}, 1, blockTime, nil)
	if err != nil {
		t.Fatalf("\t%s\tShould be able to build a mass transfer: %v", failed, err)
	}

	t.Log("Given the need to gate transaction types behind feature activation.")
	{
		t.Log("\tTest 0:\tWhen the feature is not activated.")
		{
			fn := settings.Default().Functionality
			store := state.New(fn)
			fund(t, store, sender, 1_000_000)

			var activation *errs.Activation
			err := validation.New(store, store, fn).Validate(tx, blockTime, 0)
			if !errors.As(err, &activation) {
				t.Fatalf("\t%s\tTest 0:\tShould get an activation error: %v", failed, err)
			}
			t.Logf("\t%s\tTest 0:\tShould get an activation error.", success)
		}

		t.Log("\tTest 1:\tWhen the feature is preactivated.")
		{
			fn := settings.Default().Functionality
			fn.PreactivatedFeatures = map[settings.Feature]uint64{
				settings.FeatureMassTransfer: 1,
			}
			store := state.New(fn)
			fund(t, store, sender, 1_000_000)

			if err := validation.New(store, store, fn).Validate(tx, blockTime, 0); err != nil {
				t.Fatalf("\t%s\tTest 1:\tShould accept the gated type: %v", failed, err)
			}
			t.Logf("\t%s\tTest 1:\tShould accept the gated type.", success)
		}
	}
}

func Test_BalanceSufficiency(t *testing.T) {
	senderPK, _, err := transaction.GenerateKeys()
	if err != nil {
		t.Fatalf("\t%s\tShould be able to generate keys: %v", failed, err)
	}
	sender := transaction.AddressFromPublicKey(senderPK)
	recipientPK, _, err := transaction.GenerateKeys()
	if err != nil {
		t.Fatalf("\t%s\tShould be able to generate keys: %v", failed, err)
	}
	recipient := transaction.NewAddressRecipient(transaction.AddressFromPublicKey(recipientPK))

	const (
		amount = 500
		fee    = 100
	)

	tx, err := transaction.NewTransfer(senderPK, transaction.NativeAsset, transaction.NativeAsset, recipient, amount, fee, blockTime, nil)
	if err != nil {
		t.Fatalf("\t%s\tShould be able to build a transfer: %v", failed, err)
	}

	t.Log("Given the need to reject spends the sender cannot cover.")
	{
		t.Log("\tTest 0:\tWhen the balance covers amount plus fee exactly.")
		{
			fn := settings.Default().Functionality
			store := state.New(fn)
			fund(t, store, sender, amount+fee)

			if err := validation.New(store, store, fn).Validate(tx, blockTime, 0); err != nil {
				t.Fatalf("\t%s\tTest 0:\tShould accept the exact balance: %v", failed, err)
			}
			t.Logf("\t%s\tTest 0:\tShould accept the exact balance.", success)
		}

		t.Log("\tTest 1:\tWhen the balance is one unit short.")
		{
			fn := settings.Default().Functionality
			store := state.New(fn)
			fund(t, store, sender, amount+fee-1)

			var negative *errs.NegativeAmount
			err := validation.New(store, store, fn).Validate(tx, blockTime, 0)
			if !errors.As(err, &negative) {
				t.Fatalf("\t%s\tTest 1:\tShould get a negative amount error: %v", failed, err)
			}
			if negative.Amount != -1 {
				t.Fatalf("\t%s\tTest 1:\tShould report the shortfall: got %d, exp %d", failed, negative.Amount, -1)
			}
			t.Logf("\t%s\tTest 1:\tShould get a negative amount error with the shortfall.", success)
		}

		t.Log("\tTest 2:\tWhen the negative allowance is still open.")
		{
			fn := settings.Default().Functionality
			fn.AllowTemporaryNegativeUntil = blockTime + int64(time.Hour.Milliseconds())
			store := state.New(fn)

			if err := validation.New(store, store, fn).Validate(tx, blockTime, 0); err != nil {
				t.Fatalf("\t%s\tTest 2:\tShould skip the balance check: %v", failed, err)
			}
			t.Logf("\t%s\tTest 2:\tShould skip the balance check.", success)
		}
	}
}
