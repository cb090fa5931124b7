package updater_test

import (
	"crypto/ed25519"
	"errors"
	"strings"
	"testing"

	"github.com/ethereum/go-ethereum/common/hexutil"

	"github.com/meridianchain/meridian/foundation/events"
	"github.com/meridianchain/meridian/foundation/ledger/block"
	"github.com/meridianchain/meridian/foundation/ledger/errs"
	"github.com/meridianchain/meridian/foundation/ledger/pos"
	"github.com/meridianchain/meridian/foundation/ledger/settings"
	"github.com/meridianchain/meridian/foundation/ledger/state"
	"github.com/meridianchain/meridian/foundation/ledger/transaction"
	"github.com/meridianchain/meridian/foundation/ledger/updater"
)

// Success and failure markers.
const (
	success = "✓"
	failed  = "✗"
)

const (
	genesisTS  = int64(1_700_000_000_000)
	blockDelay = int64(60_000)
	minFee     = int64(10)
)

// chain bundles everything a test needs to extend a running chain.
type chain struct {
	updater   *updater.Updater
	store     *state.Memory
	settings  settings.Settings
	genPK     transaction.PublicKey
	genSecret ed25519.PrivateKey
	userPK    transaction.PublicKey
	userAddr  transaction.Address
	usrSecret ed25519.PrivateKey
}

// newChain boots an updater with a genesis distribution funding one
// generator and one user account.
func newChain(t *testing.T) *chain {
	t.Helper()

	genPK, genSecret, err := transaction.GenerateKeys()
	if err != nil {
		t.Fatalf("generating generator keys: %v", err)
	}
	userPK, usrSecret, err := transaction.GenerateKeys()
	if err != nil {
		t.Fatalf("generating user keys: %v", err)
	}
	genAddr := transaction.AddressFromPublicKey(genPK)
	userAddr := transaction.AddressFromPublicKey(userPK)

	st := settings.Default()
	st.Fees.Minimum = map[string]map[string]int64{
		"transfer": {settings.NativeAssetKey: minFee},
	}
	st.Genesis = settings.Genesis{
		Timestamp:           genesisTS,
		BaseTarget:          100,
		GenerationSignature: "0x" + strings.Repeat("ab", 32),
		Balances: map[string]int64{
			genAddr.String():  pos.MinimalEffectiveBalance,
			userAddr.String(): 1_000_000,
		},
	}

	store := state.New(st.Functionality)
	u, err := updater.New(updater.Config{
		Settings: st,
		Store:    store,
		Events:   events.New(),
	})
	if err != nil {
		t.Fatalf("starting updater: %v", err)
	}

	return &chain{
		updater:   u,
		store:     store,
		settings:  st,
		genPK:     genPK,
		genSecret: genSecret,
		userPK:    userPK,
		userAddr:  userAddr,
		usrSecret: usrSecret,
	}
}

// transfer builds and signs a user transfer of the specified amount to a
// throwaway account.
func (c *chain) transfer(t *testing.T, amount int64, ts int64) *transaction.Transfer {
	t.Helper()

	sinkPK, _, err := transaction.GenerateKeys()
	if err != nil {
		t.Fatalf("generating sink keys: %v", err)
	}
	recipient := transaction.NewAddressRecipient(transaction.AddressFromPublicKey(sinkPK))

	tx, err := transaction.NewTransfer(c.userPK, transaction.NativeAsset, transaction.NativeAsset, recipient, amount, minFee, ts, nil)
	if err != nil {
		t.Fatalf("building transfer: %v", err)
	}
	if err := transaction.Sign(tx, c.usrSecret); err != nil {
		t.Fatalf("signing transfer: %v", err)
	}
	return tx
}

// =============================================================================

func Test_GenesisBootstrap(t *testing.T) {
	c := newChain(t)
	defer c.updater.Shutdown()

	if got := c.updater.Height(); got != 1 {
		t.Fatalf("\t%s\tShould start at height 1: got %d", failed, got)
	}
	t.Logf("\t%s\tShould start at height 1.", success)

	balance, err := c.store.Balance(c.userAddr, transaction.NativeAsset)
	if err != nil || balance != 1_000_000 {
		t.Fatalf("\t%s\tShould credit the genesis distribution: got %d, %v", failed, balance, err)
	}
	t.Logf("\t%s\tShould credit the genesis distribution.", success)

	info := c.updater.LastBlockInfo()
	if !info.Ready || info.Height != 1 || info.Score.Sign() <= 0 {
		t.Fatalf("\t%s\tShould report a ready chain tip: got %+v", failed, info)
	}
	if !c.updater.IsLastBlockID(info.ID) {
		t.Fatalf("\t%s\tShould confirm the tip id.", failed)
	}
	t.Logf("\t%s\tShould report a ready chain tip.", success)

	// A second updater over the same settings derives the same genesis id.
	other := newChainWithSettings(t, c.settings)
	defer other.Shutdown()
	if got := other.LastBlockInfo().ID; got != info.ID {
		t.Fatalf("\t%s\tShould derive a deterministic genesis id: got %s, exp %s", failed, got, info.ID)
	}
	t.Logf("\t%s\tShould derive a deterministic genesis id.", success)
}

// newChainWithSettings boots a second updater over existing settings.
func newChainWithSettings(t *testing.T, st settings.Settings) *updater.Updater {
	t.Helper()

	u, err := updater.New(updater.Config{
		Settings: st,
		Store:    state.New(st.Functionality),
		Events:   events.New(),
	})
	if err != nil {
		t.Fatalf("starting updater: %v", err)
	}
	return u
}

func Test_ForgeAndApply(t *testing.T) {
	c := newChain(t)
	defer c.updater.Shutdown()

	blockTime := genesisTS + blockDelay
	tx := c.transfer(t, 500, blockTime-1_000)

	b, err := c.updater.ForgeBlock(c.genPK, c.genSecret, blockTime, []transaction.Transaction{tx})
	if err != nil {
		t.Fatalf("\t%s\tShould be able to forge a block: %v", failed, err)
	}
	t.Logf("\t%s\tShould be able to forge a block.", success)

	if got := c.updater.Height(); got != 2 {
		t.Fatalf("\t%s\tShould be at height 2: got %d", failed, got)
	}
	id, err := b.ID()
	if err != nil {
		t.Fatalf("\t%s\tShould be able to compute the block id: %v", failed, err)
	}
	if !c.updater.IsLastBlockID(id) {
		t.Fatalf("\t%s\tShould have the forged block as the tip.", failed)
	}
	t.Logf("\t%s\tShould have the forged block as the tip.", success)

	balance, err := c.store.Balance(c.userAddr, transaction.NativeAsset)
	if err != nil || balance != 1_000_000-500-minFee {
		t.Fatalf("\t%s\tShould debit the sender amount and fee: got %d, %v", failed, balance, err)
	}
	t.Logf("\t%s\tShould debit the sender amount and fee.", success)

	// The same transaction cannot enter the chain twice.
	if _, err := c.updater.ForgeBlock(c.genPK, c.genSecret, blockTime+blockDelay, []transaction.Transaction{tx}); err == nil {
		t.Fatalf("\t%s\tShould reject a committed transaction id.", failed)
	}
	t.Logf("\t%s\tShould reject a committed transaction id.", success)

	if got := c.updater.Height(); got != 2 {
		t.Fatalf("\t%s\tShould stay at height 2 after the rejection: got %d", failed, got)
	}
	t.Logf("\t%s\tShould stay at height 2 after the rejection.", success)
}

func Test_ConsensusRejection(t *testing.T) {
	c := newChain(t)
	defer c.updater.Shutdown()

	info := c.updater.LastBlockInfo()
	rawSig, _ := hexutil.Decode(c.settings.Genesis.GenerationSignature)
	parentGenSig, _ := transaction.DigestFromBytes(rawSig)

	t.Log("Given the need to reject blocks with broken consensus fields.")
	{
		t.Log("\tTest 0:\tWhen the generation signature does not chain.")
		{
			var wrong transaction.Digest
			wrong[0] = 0x99

			b, err := block.New(info.ID, genesisTS+blockDelay, 100, wrong, c.genPK, nil)
			if err != nil {
				t.Fatalf("\t%s\tTest 0:\tShould be able to build the block: %v", failed, err)
			}
			if err := b.Sign(c.genSecret); err != nil {
				t.Fatalf("\t%s\tTest 0:\tShould be able to sign the block: %v", failed, err)
			}
			if _, err := c.updater.ProcessBlock(b); err == nil {
				t.Fatalf("\t%s\tTest 0:\tShould reject the block.", failed)
			}
			t.Logf("\t%s\tTest 0:\tShould reject the block.", success)
		}

		t.Log("\tTest 1:\tWhen the timestamp does not advance.")
		{
			genSig := pos.GenerationSignature(parentGenSig, c.genPK)
			b, err := block.New(info.ID, genesisTS, 100, genSig, c.genPK, nil)
			if err != nil {
				t.Fatalf("\t%s\tTest 1:\tShould be able to build the block: %v", failed, err)
			}
			if err := b.Sign(c.genSecret); err != nil {
				t.Fatalf("\t%s\tTest 1:\tShould be able to sign the block: %v", failed, err)
			}
			var mistiming *errs.Mistiming
			if _, err := c.updater.ProcessBlock(b); !errors.As(err, &mistiming) {
				t.Fatalf("\t%s\tTest 1:\tShould get a mistiming error: %v", failed, err)
			}
			t.Logf("\t%s\tTest 1:\tShould get a mistiming error.", success)
		}

		t.Log("\tTest 2:\tWhen the parent is unknown.")
		{
			var unknown transaction.Digest
			unknown[0] = 0x42

			genSig := pos.GenerationSignature(parentGenSig, c.genPK)
			b, err := block.New(unknown, genesisTS+blockDelay, 100, genSig, c.genPK, nil)
			if err != nil {
				t.Fatalf("\t%s\tTest 2:\tShould be able to build the block: %v", failed, err)
			}
			if err := b.Sign(c.genSecret); err != nil {
				t.Fatalf("\t%s\tTest 2:\tShould be able to sign the block: %v", failed, err)
			}
			if _, err := c.updater.ProcessBlock(b); err == nil {
				t.Fatalf("\t%s\tTest 2:\tShould reject the block.", failed)
			}
			t.Logf("\t%s\tTest 2:\tShould reject the block.", success)
		}

		if got := c.updater.Height(); got != 1 {
			t.Fatalf("\t%s\tShould leave the chain untouched: got height %d", failed, got)
		}
		t.Logf("\t%s\tShould leave the chain untouched.", success)
	}
}

func Test_MicroBlockFlow(t *testing.T) {
	c := newChain(t)
	defer c.updater.Shutdown()

	blockTime := genesisTS + blockDelay
	if _, err := c.updater.ForgeBlock(c.genPK, c.genSecret, blockTime, nil); err != nil {
		t.Fatalf("\t%s\tShould be able to forge an empty block: %v", failed, err)
	}

	tipID := c.updater.LastBlockInfo().ID
	tx := c.transfer(t, 700, blockTime-1_000)

	mb, err := block.NewMicroBlock(tipID, c.genPK, []transaction.Transaction{tx})
	if err != nil {
		t.Fatalf("\t%s\tShould be able to build a micro block: %v", failed, err)
	}
	if err := mb.Sign(c.genSecret); err != nil {
		t.Fatalf("\t%s\tShould be able to sign the micro block: %v", failed, err)
	}

	if err := c.updater.ProcessMicroBlock(mb); err != nil {
		t.Fatalf("\t%s\tShould be able to apply the micro block: %v", failed, err)
	}
	t.Logf("\t%s\tShould be able to apply the micro block.", success)

	balance, err := c.store.Balance(c.userAddr, transaction.NativeAsset)
	if err != nil || balance != 1_000_000-700-minFee {
		t.Fatalf("\t%s\tShould apply the micro transactions provisionally: got %d, %v", failed, balance, err)
	}
	t.Logf("\t%s\tShould apply the micro transactions provisionally.", success)

	// A micro block from a different generator must be rejected.
	otherPK, otherSecret, err := transaction.GenerateKeys()
	if err != nil {
		t.Fatalf("\t%s\tShould be able to generate keys: %v", failed, err)
	}
	rogue, err := block.NewMicroBlock(tipID, otherPK, []transaction.Transaction{c.transfer(t, 1, blockTime-1_000)})
	if err != nil {
		t.Fatalf("\t%s\tShould be able to build a rogue micro block: %v", failed, err)
	}
	if err := rogue.Sign(otherSecret); err != nil {
		t.Fatalf("\t%s\tShould be able to sign the rogue micro block: %v", failed, err)
	}
	if err := c.updater.ProcessMicroBlock(rogue); err == nil {
		t.Fatalf("\t%s\tShould reject a micro block from another generator.", failed)
	}
	t.Logf("\t%s\tShould reject a micro block from another generator.", success)

	// The next key block does not include the micro transaction, so it
	// comes back as discarded and its effects are unwound.
	if _, err := c.updater.ForgeBlock(c.genPK, c.genSecret, blockTime+blockDelay, nil); err != nil {
		t.Fatalf("\t%s\tShould be able to forge the next block: %v", failed, err)
	}

	balance, err = c.store.Balance(c.userAddr, transaction.NativeAsset)
	if err != nil || balance != 1_000_000 {
		t.Fatalf("\t%s\tShould unwind the discarded micro transactions: got %d, %v", failed, balance, err)
	}
	t.Logf("\t%s\tShould unwind the discarded micro transactions.", success)
}

func Test_Reorganization(t *testing.T) {
	c := newChain(t)
	defer c.updater.Shutdown()

	genesisID := c.updater.LastBlockInfo().ID
	rawSig, _ := hexutil.Decode(c.settings.Genesis.GenerationSignature)
	parentGenSig, _ := transaction.DigestFromBytes(rawSig)

	blockTime := genesisTS + blockDelay
	tx := c.transfer(t, 500, blockTime-1_000)

	if _, err := c.updater.ForgeBlock(c.genPK, c.genSecret, blockTime, []transaction.Transaction{tx}); err != nil {
		t.Fatalf("\t%s\tShould be able to forge the first branch: %v", failed, err)
	}

	// A competing block building directly on genesis. The parent height is
	// odd so the base target is inherited unchanged.
	genSig := pos.GenerationSignature(parentGenSig, c.genPK)
	competing, err := block.New(genesisID, blockTime+1_000, c.settings.Genesis.BaseTarget, genSig, c.genPK, nil)
	if err != nil {
		t.Fatalf("\t%s\tShould be able to build the competing block: %v", failed, err)
	}
	if err := competing.Sign(c.genSecret); err != nil {
		t.Fatalf("\t%s\tShould be able to sign the competing block: %v", failed, err)
	}

	discarded, err := c.updater.ProcessBlock(competing)
	if err != nil {
		t.Fatalf("\t%s\tShould be able to reorganize onto the competing block: %v", failed, err)
	}
	t.Logf("\t%s\tShould be able to reorganize onto the competing block.", success)

	if len(discarded) != 1 {
		t.Fatalf("\t%s\tShould get back the unwound transaction: got %d", failed, len(discarded))
	}
	wantID, _ := tx.ID()
	gotID, _ := discarded[0].ID()
	if gotID != wantID {
		t.Fatalf("\t%s\tShould get back the unwound transaction: got %s, exp %s", failed, gotID, wantID)
	}
	t.Logf("\t%s\tShould get back the unwound transaction.", success)

	competingID, _ := competing.ID()
	if !c.updater.IsLastBlockID(competingID) {
		t.Fatalf("\t%s\tShould have the competing block as the tip.", failed)
	}
	if got := c.updater.Height(); got != 2 {
		t.Fatalf("\t%s\tShould stay at height 2: got %d", failed, got)
	}
	t.Logf("\t%s\tShould have the competing block as the tip at height 2.", success)

	balance, err := c.store.Balance(c.userAddr, transaction.NativeAsset)
	if err != nil || balance != 1_000_000 {
		t.Fatalf("\t%s\tShould restore the unwound balance: got %d, %v", failed, balance, err)
	}
	t.Logf("\t%s\tShould restore the unwound balance.", success)
}

func Test_RemoveAfter(t *testing.T) {
	c := newChain(t)
	defer c.updater.Shutdown()

	genesisID := c.updater.LastBlockInfo().ID

	blockTime := genesisTS + blockDelay
	tx := c.transfer(t, 500, blockTime-1_000)
	if _, err := c.updater.ForgeBlock(c.genPK, c.genSecret, blockTime, []transaction.Transaction{tx}); err != nil {
		t.Fatalf("\t%s\tShould be able to forge block 2: %v", failed, err)
	}
	if _, err := c.updater.ForgeBlock(c.genPK, c.genSecret, blockTime+blockDelay, nil); err != nil {
		t.Fatalf("\t%s\tShould be able to forge block 3: %v", failed, err)
	}

	removed, err := c.updater.RemoveAfter(genesisID)
	if err != nil {
		t.Fatalf("\t%s\tShould be able to roll back to genesis: %v", failed, err)
	}
	if len(removed) != 2 {
		t.Fatalf("\t%s\tShould remove both blocks: got %d", failed, len(removed))
	}
	t.Logf("\t%s\tShould remove both blocks.", success)

	if got := c.updater.Height(); got != 1 {
		t.Fatalf("\t%s\tShould be back at height 1: got %d", failed, got)
	}
	balance, err := c.store.Balance(c.userAddr, transaction.NativeAsset)
	if err != nil || balance != 1_000_000 {
		t.Fatalf("\t%s\tShould restore the genesis balance: got %d, %v", failed, balance, err)
	}
	t.Logf("\t%s\tShould restore the genesis state.", success)

	var unknown transaction.Digest
	unknown[0] = 0x13
	if _, err := c.updater.RemoveAfter(unknown); err == nil {
		t.Fatalf("\t%s\tShould reject an unknown ancestor.", failed)
	}
	t.Logf("\t%s\tShould reject an unknown ancestor.", success)
}

func Test_Shutdown(t *testing.T) {
	c := newChain(t)

	c.updater.Shutdown()
	c.updater.Shutdown()
	t.Logf("\t%s\tShould tolerate repeated shutdowns.", success)

	if _, err := c.updater.ForgeBlock(c.genPK, c.genSecret, genesisTS+blockDelay, nil); err == nil {
		t.Fatalf("\t%s\tShould reject mutations after shutdown.", failed)
	}
	t.Logf("\t%s\tShould reject mutations after shutdown.", success)

	if got := c.updater.Height(); got != 1 {
		t.Fatalf("\t%s\tShould still answer reads: got %d", failed, got)
	}
	t.Logf("\t%s\tShould still answer reads.", success)
}
