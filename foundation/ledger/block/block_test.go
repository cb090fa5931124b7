package block_test

import (
	"testing"

	"github.com/meridianchain/meridian/foundation/ledger/block"
	"github.com/meridianchain/meridian/foundation/ledger/transaction"
)

// Success and failure markers.
const (
	success = "✓"
	failed  = "✗"
)

const blockTime = int64(1_700_000_000_000)

// buildTransfers constructs and signs count transfer transactions.
func buildTransfers(t *testing.T, count int) []transaction.Transaction {
	t.Helper()

	senderPK, senderSecret, err := transaction.GenerateKeys()
	if err != nil {
		t.Fatalf("generating keys: %v", err)
	}
	recipient := transaction.NewAddressRecipient(transaction.AddressFromPublicKey(senderPK))

	txs := make([]transaction.Transaction, count)
	for i := range txs {
		tx, err := transaction.NewTransfer(senderPK, transaction.NativeAsset, transaction.NativeAsset, recipient, int64(i+1), 100, blockTime+int64(i), nil)
		if err != nil {
			t.Fatalf("building transfer %d: %v", i, err)
		}
		if err := transaction.Sign(tx, senderSecret); err != nil {
			t.Fatalf("signing transfer %d: %v", i, err)
		}
		txs[i] = tx
	}
	return txs
}

// =============================================================================

func Test_BlockRoundTrip(t *testing.T) {
	generatorPK, generatorSecret, err := transaction.GenerateKeys()
	if err != nil {
		t.Fatalf("\t%s\tShould be able to generate keys: %v", failed, err)
	}

	var parentID, genSig transaction.Digest
	parentID[0] = 0x01
	genSig[0] = 0x02

	t.Log("Given the need to seal, serialize, and parse blocks.")
	{
		for _, count := range []int{0, 1, 2, 3} {
			t.Logf("\tTest:\tWhen handling a block with %d transactions.", count)
			{
				b, err := block.New(parentID, blockTime, 100, genSig, generatorPK, buildTransfers(t, count))
				if err != nil {
					t.Fatalf("\t%s\tShould be able to build the block: %v", failed, err)
				}
				if err := b.Sign(generatorSecret); err != nil {
					t.Fatalf("\t%s\tShould be able to sign the block: %v", failed, err)
				}
				if err := b.Verify(); err != nil {
					t.Fatalf("\t%s\tShould be able to verify the block: %v", failed, err)
				}
				t.Logf("\t%s\tShould be able to sign and verify the block.", success)

				blob, err := b.Marshal()
				if err != nil {
					t.Fatalf("\t%s\tShould be able to serialize the block: %v", failed, err)
				}
				parsed, err := block.Parse(blob)
				if err != nil {
					t.Fatalf("\t%s\tShould be able to parse the wire bytes: %v", failed, err)
				}
				t.Logf("\t%s\tShould be able to parse the wire bytes.", success)

				wantID, err := b.ID()
				if err != nil {
					t.Fatalf("\t%s\tShould be able to compute the id: %v", failed, err)
				}
				gotID, err := parsed.ID()
				if err != nil {
					t.Fatalf("\t%s\tShould be able to compute the parsed id: %v", failed, err)
				}
				if gotID != wantID {
					t.Fatalf("\t%s\tShould get back the same id: got %s, exp %s", failed, gotID, wantID)
				}
				if err := parsed.Verify(); err != nil {
					t.Fatalf("\t%s\tShould be able to verify the parsed block: %v", failed, err)
				}
				t.Logf("\t%s\tShould get back the same id and a verifiable block.", success)
			}
		}
	}
}

func Test_IDExcludesSignature(t *testing.T) {
	generatorPK, generatorSecret, err := transaction.GenerateKeys()
	if err != nil {
		t.Fatalf("\t%s\tShould be able to generate keys: %v", failed, err)
	}

	b, err := block.New(transaction.Digest{}, blockTime, 100, transaction.Digest{}, generatorPK, nil)
	if err != nil {
		t.Fatalf("\t%s\tShould be able to build the block: %v", failed, err)
	}

	before, err := b.ID()
	if err != nil {
		t.Fatalf("\t%s\tShould be able to compute the id: %v", failed, err)
	}

	if err := b.Sign(generatorSecret); err != nil {
		t.Fatalf("\t%s\tShould be able to sign the block: %v", failed, err)
	}

	after, err := b.ID()
	if err != nil {
		t.Fatalf("\t%s\tShould be able to compute the id again: %v", failed, err)
	}
	if before != after {
		t.Fatalf("\t%s\tShould get the same id before and after signing.", failed)
	}
	t.Logf("\t%s\tShould get the same id before and after signing.", success)

	b.Signature[0] ^= 0xff
	if err := b.Verify(); err == nil {
		t.Fatalf("\t%s\tShould reject a tampered signature.", failed)
	}
	t.Logf("\t%s\tShould reject a tampered signature.", success)
}

func Test_VerifyRejectsSwappedTransactions(t *testing.T) {
	generatorPK, generatorSecret, err := transaction.GenerateKeys()
	if err != nil {
		t.Fatalf("\t%s\tShould be able to generate keys: %v", failed, err)
	}

	txs := buildTransfers(t, 2)
	b, err := block.New(transaction.Digest{}, blockTime, 100, transaction.Digest{}, generatorPK, txs)
	if err != nil {
		t.Fatalf("\t%s\tShould be able to build the block: %v", failed, err)
	}
	if err := b.Sign(generatorSecret); err != nil {
		t.Fatalf("\t%s\tShould be able to sign the block: %v", failed, err)
	}

	// Reordering the transactions breaks the committed root.
	b.Transactions[0], b.Transactions[1] = b.Transactions[1], b.Transactions[0]
	if err := b.Verify(); err == nil {
		t.Fatalf("\t%s\tShould reject reordered transactions.", failed)
	}
	t.Logf("\t%s\tShould reject reordered transactions.", success)
}

func Test_MicroBlockRoundTrip(t *testing.T) {
	generatorPK, generatorSecret, err := transaction.GenerateKeys()
	if err != nil {
		t.Fatalf("\t%s\tShould be able to generate keys: %v", failed, err)
	}

	var refID transaction.Digest
	refID[0] = 0x07

	if _, err := block.NewMicroBlock(refID, generatorPK, nil); err == nil {
		t.Fatalf("\t%s\tShould reject an empty micro block.", failed)
	}
	t.Logf("\t%s\tShould reject an empty micro block.", success)

	mb, err := block.NewMicroBlock(refID, generatorPK, buildTransfers(t, 3))
	if err != nil {
		t.Fatalf("\t%s\tShould be able to build the micro block: %v", failed, err)
	}
	if err := mb.Sign(generatorSecret); err != nil {
		t.Fatalf("\t%s\tShould be able to sign the micro block: %v", failed, err)
	}
	if err := mb.Verify(); err != nil {
		t.Fatalf("\t%s\tShould be able to verify the micro block: %v", failed, err)
	}
	t.Logf("\t%s\tShould be able to sign and verify the micro block.", success)

	blob, err := mb.Marshal()
	if err != nil {
		t.Fatalf("\t%s\tShould be able to serialize the micro block: %v", failed, err)
	}
	parsed, err := block.ParseMicroBlock(blob)
	if err != nil {
		t.Fatalf("\t%s\tShould be able to parse the wire bytes: %v", failed, err)
	}

	wantID, err := mb.ID()
	if err != nil {
		t.Fatalf("\t%s\tShould be able to compute the id: %v", failed, err)
	}
	gotID, err := parsed.ID()
	if err != nil {
		t.Fatalf("\t%s\tShould be able to compute the parsed id: %v", failed, err)
	}
	if gotID != wantID {
		t.Fatalf("\t%s\tShould get back the same id: got %s, exp %s", failed, gotID, wantID)
	}
	if err := parsed.Verify(); err != nil {
		t.Fatalf("\t%s\tShould be able to verify the parsed micro block: %v", failed, err)
	}
	t.Logf("\t%s\tShould get back the same id and a verifiable micro block.", success)
}
