package state_test

import (
	"errors"
	"testing"

	"github.com/meridianchain/meridian/foundation/ledger/diff"
	"github.com/meridianchain/meridian/foundation/ledger/errs"
	"github.com/meridianchain/meridian/foundation/ledger/settings"
	"github.com/meridianchain/meridian/foundation/ledger/state"
	"github.com/meridianchain/meridian/foundation/ledger/transaction"
)

// Success and failure markers.
const (
	success = "✓"
	failed  = "✗"
)

func newAddr(t *testing.T) (transaction.PublicKey, transaction.Address) {
	t.Helper()

	pk, _, err := transaction.GenerateKeys()
	if err != nil {
		t.Fatalf("generating keys: %v", err)
	}
	return pk, transaction.AddressFromPublicKey(pk)
}

// =============================================================================

func Test_ApplyRollback(t *testing.T) {
	_, addr := newAddr(t)

	store := state.New(settings.Default().Functionality)

	d1 := diff.New(1)
	d1.Portfolios[addr] = diff.NativePortfolio(1_000)

	seq1, err := store.Apply(d1)
	if err != nil {
		t.Fatalf("\t%s\tShould be able to apply the first diff: %v", failed, err)
	}
	t.Logf("\t%s\tShould be able to apply the first diff.", success)

	d2 := diff.New(2)
	d2.Portfolios[addr] = diff.NativePortfolio(-400)
	d2.Aliases = map[transaction.Alias]transaction.Address{"main-account": addr}

	seq2, err := store.Apply(d2)
	if err != nil {
		t.Fatalf("\t%s\tShould be able to apply the second diff: %v", failed, err)
	}

	if balance, _ := store.Balance(addr, transaction.NativeAsset); balance != 600 {
		t.Fatalf("\t%s\tShould hold the folded balance: got %d, exp %d", failed, balance, 600)
	}
	if store.Height() != 2 {
		t.Fatalf("\t%s\tShould be at height 2: got %d", failed, store.Height())
	}
	if _, err := store.ResolveAlias(transaction.NewAliasRecipient("main-account")); err != nil {
		t.Fatalf("\t%s\tShould resolve the registered alias: %v", failed, err)
	}
	t.Logf("\t%s\tShould hold the folded state after both diffs.", success)

	if err := store.RollbackTo(seq2); err != nil {
		t.Fatalf("\t%s\tShould be able to roll back the second diff: %v", failed, err)
	}

	if balance, _ := store.Balance(addr, transaction.NativeAsset); balance != 1_000 {
		t.Fatalf("\t%s\tShould restore the first balance: got %d, exp %d", failed, balance, 1_000)
	}
	if store.Height() != 1 {
		t.Fatalf("\t%s\tShould restore height 1: got %d", failed, store.Height())
	}
	if _, err := store.ResolveAlias(transaction.NewAliasRecipient("main-account")); err == nil {
		t.Fatalf("\t%s\tShould forget the rolled back alias.", failed)
	}
	t.Logf("\t%s\tShould restore the state before the second diff.", success)

	if err := store.RollbackTo(seq1); err != nil {
		t.Fatalf("\t%s\tShould be able to roll back to the start: %v", failed, err)
	}
	if balance, _ := store.Balance(addr, transaction.NativeAsset); balance != 0 {
		t.Fatalf("\t%s\tShould restore the empty store: got %d", failed, balance)
	}
	t.Logf("\t%s\tShould restore the empty store.", success)
}

func Test_ApplyAtomicOnError(t *testing.T) {
	senderPK, addr := newAddr(t)
	recipient := transaction.NewAddressRecipient(addr)

	store := state.New(settings.Default().Functionality)

	tx, err := transaction.NewTransfer(senderPK, transaction.NativeAsset, transaction.NativeAsset, recipient, 1, 1, 1_700_000_000_000, nil)
	if err != nil {
		t.Fatalf("\t%s\tShould be able to build a transfer: %v", failed, err)
	}
	id, err := tx.ID()
	if err != nil {
		t.Fatalf("\t%s\tShould be able to compute the id: %v", failed, err)
	}

	d1 := diff.New(1)
	d1.Transactions[id] = diff.TxInfo{Height: 1, Tx: tx}
	if _, err := store.Apply(d1); err != nil {
		t.Fatalf("\t%s\tShould be able to apply the first diff: %v", failed, err)
	}

	before := store.Sequence()

	// The second diff carries a fresh balance and the duplicate id. The
	// balance mutation must not survive the rejection.
	d2 := diff.New(2)
	d2.Transactions[id] = diff.TxInfo{Height: 2, Tx: tx}
	d2.Portfolios[addr] = diff.NativePortfolio(1_000)

	var dup *errs.AlreadyInTheState
	if _, err := store.Apply(d2); !errors.As(err, &dup) {
		t.Fatalf("\t%s\tShould reject the duplicate transaction id: %v", failed, err)
	}
	t.Logf("\t%s\tShould reject the duplicate transaction id.", success)

	if store.Sequence() != before {
		t.Fatalf("\t%s\tShould leave the journal unchanged: got %d, exp %d", failed, store.Sequence(), before)
	}
	if balance, _ := store.Balance(addr, transaction.NativeAsset); balance != 0 {
		t.Fatalf("\t%s\tShould undo the partial balance mutation: got %d", failed, balance)
	}
	if store.Height() != 1 {
		t.Fatalf("\t%s\tShould undo the height bump: got %d", failed, store.Height())
	}
	t.Logf("\t%s\tShould undo every partial mutation of the rejected diff.", success)
}

func Test_LegacyDuplicateIDKeepsFirstRecord(t *testing.T) {
	senderPK, addr := newAddr(t)

	store := state.New(settings.Default().Functionality)

	// Payments predate the id uniqueness rule, so the same payment may be
	// committed more than once. The first seen record wins.
	tx, err := transaction.NewPayment(senderPK, addr, 500, 10, 1_700_000_000_000)
	if err != nil {
		t.Fatalf("\t%s\tShould be able to build a payment: %v", failed, err)
	}
	id, err := tx.ID()
	if err != nil {
		t.Fatalf("\t%s\tShould be able to compute the id: %v", failed, err)
	}

	d1 := diff.New(1)
	d1.Transactions[id] = diff.TxInfo{Height: 1, Tx: tx}
	if _, err := store.Apply(d1); err != nil {
		t.Fatalf("\t%s\tShould be able to apply the first diff: %v", failed, err)
	}

	d2 := diff.New(2)
	d2.Transactions[id] = diff.TxInfo{Height: 2, Tx: tx}
	d2.Portfolios[addr] = diff.NativePortfolio(1_000)
	if _, err := store.Apply(d2); err != nil {
		t.Fatalf("\t%s\tShould accept the repeated payment id: %v", failed, err)
	}
	t.Logf("\t%s\tShould accept the repeated payment id.", success)

	info, exists := store.TransactionInfo(id)
	if !exists || info.Height != 1 {
		t.Fatalf("\t%s\tShould keep the first seen record: got height %d, exp %d", failed, info.Height, 1)
	}
	t.Logf("\t%s\tShould keep the first seen record.", success)

	if balance, _ := store.Balance(addr, transaction.NativeAsset); balance != 1_000 {
		t.Fatalf("\t%s\tShould apply the rest of the diff: got %d, exp %d", failed, balance, 1_000)
	}
	t.Logf("\t%s\tShould apply the rest of the diff.", success)
}

func Test_AliasConflict(t *testing.T) {
	_, first := newAddr(t)
	_, second := newAddr(t)

	store := state.New(settings.Default().Functionality)

	d1 := diff.New(1)
	d1.Aliases = map[transaction.Alias]transaction.Address{"treasury": first}
	if _, err := store.Apply(d1); err != nil {
		t.Fatalf("\t%s\tShould be able to register the alias: %v", failed, err)
	}

	d2 := diff.New(2)
	d2.Aliases = map[transaction.Alias]transaction.Address{"treasury": second}
	if _, err := store.Apply(d2); err == nil {
		t.Fatalf("\t%s\tShould reject rebinding a registered alias.", failed)
	}
	t.Logf("\t%s\tShould reject rebinding a registered alias.", success)

	addr, err := store.ResolveAlias(transaction.NewAliasRecipient("treasury"))
	if err != nil || addr != first {
		t.Fatalf("\t%s\tShould keep the original binding: got %s, %v", failed, addr, err)
	}
	t.Logf("\t%s\tShould keep the original binding.", success)
}

func Test_EffectiveBalanceWindow(t *testing.T) {
	_, addr := newAddr(t)

	store := state.New(settings.Default().Functionality)

	// Height 1: 1000, height 5: 400, height 8: 900.
	steps := []struct {
		height uint64
		delta  int64
	}{
		{1, 1_000},
		{5, -600},
		{8, 500},
	}
	for _, step := range steps {
		d := diff.New(step.height)
		d.Portfolios[addr] = diff.NativePortfolio(step.delta)
		if _, err := store.Apply(d); err != nil {
			t.Fatalf("\t%s\tShould be able to apply the diff at height %d: %v", failed, step.height, err)
		}
	}

	t.Log("Given the need to compute the lowest effective balance over a window.")
	{
		tt := []struct {
			name          string
			height        uint64
			confirmations uint64
			want          int64
		}{
			{"window before the drop", 4, 2, 1_000},
			{"window spanning the drop", 8, 5, 400},
			{"window after the rise", 8, 0, 900},
			{"window wider than the chain", 8, 100, 400},
		}

		for testID, tst := range tt {
			t.Logf("\tTest %d:\tWhen asking for the %s.", testID, tst.name)
			{
				got, err := store.EffectiveBalanceWithConfirmations(addr, tst.height, tst.confirmations)
				if err != nil {
					t.Fatalf("\t%s\tTest %d:\tShould be able to compute the balance: %v", failed, testID, err)
				}
				if got != tst.want {
					t.Fatalf("\t%s\tTest %d:\tShould get the window minimum: got %d, exp %d", failed, testID, got, tst.want)
				}
				t.Logf("\t%s\tTest %d:\tShould get the window minimum.", success, testID)
			}
		}
	}
}

func Test_LeaseAffectsEffectiveBalance(t *testing.T) {
	_, sender := newAddr(t)
	_, recipient := newAddr(t)

	store := state.New(settings.Default().Functionality)

	d := diff.New(1)
	d.Portfolios[sender] = diff.NativePortfolio(1_000)
	if _, err := store.Apply(d); err != nil {
		t.Fatalf("\t%s\tShould be able to fund the sender: %v", failed, err)
	}

	lease := diff.New(2)
	lease.Portfolios[sender] = diff.Portfolio{LeaseOut: 300}
	lease.Portfolios[recipient] = diff.Portfolio{LeaseIn: 300}
	if _, err := store.Apply(lease); err != nil {
		t.Fatalf("\t%s\tShould be able to apply the lease: %v", failed, err)
	}

	got, err := store.EffectiveBalanceWithConfirmations(sender, 2, 0)
	if err != nil {
		t.Fatalf("\t%s\tShould be able to compute the sender balance: %v", failed, err)
	}
	if got != 700 {
		t.Fatalf("\t%s\tShould subtract outgoing leases from the sender: got %d, exp %d", failed, got, 700)
	}
	t.Logf("\t%s\tShould subtract outgoing leases from the sender.", success)

	got, err = store.EffectiveBalanceWithConfirmations(recipient, 2, 0)
	if err != nil {
		t.Fatalf("\t%s\tShould be able to compute the recipient balance: %v", failed, err)
	}
	if got != 300 {
		t.Fatalf("\t%s\tShould add incoming leases to the recipient: got %d, exp %d", failed, got, 300)
	}
	t.Logf("\t%s\tShould add incoming leases to the recipient.", success)
}
