package cmd

import (
	"crypto/ed25519"
	"fmt"
	"log"
	"time"

	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/spf13/cobra"

	"github.com/meridianchain/meridian/foundation/ledger/transaction"
)

var (
	to         string
	amount     int64
	fee        int64
	assetID    string
	attachment string
)

// sendCmd builds a signed transfer and prints the wire blob. The blob is
// what a block producer includes, so the command never needs a node.
var sendCmd = &cobra.Command{
	Use:   "send",
	Short: "Build and sign a transfer",
	Run:   sendRun,
}

func init() {
	rootCmd.AddCommand(sendCmd)
	sendCmd.Flags().StringVarP(&to, "to", "t", "", "Recipient address or alias.")
	sendCmd.Flags().Int64VarP(&amount, "amount", "m", 0, "Amount to transfer.")
	sendCmd.Flags().Int64VarP(&fee, "fee", "f", 100_000, "Fee to pay.")
	sendCmd.Flags().StringVarP(&assetID, "asset", "s", "", "Asset id, empty for the native coin.")
	sendCmd.Flags().StringVarP(&attachment, "attachment", "x", "", "Optional attachment text.")
}

func sendRun(cmd *cobra.Command, args []string) {
	secret, err := loadPrivateKey()
	if err != nil {
		log.Fatal(err)
	}

	pk, err := transaction.PublicKeyFromBytes(secret.Public().(ed25519.PublicKey))
	if err != nil {
		log.Fatal(err)
	}

	rcp, err := parseRecipient(to)
	if err != nil {
		log.Fatal(err)
	}

	asset := transaction.NativeAsset
	if assetID != "" {
		raw, err := hexutil.Decode(assetID)
		if err != nil {
			log.Fatal(err)
		}
		id, err := transaction.DigestFromBytes(raw)
		if err != nil {
			log.Fatal(err)
		}
		asset = transaction.NewOptionalAsset(id)
	}

	ts := time.Now().UnixMilli()
	tx, err := transaction.NewTransfer(pk, asset, transaction.NativeAsset, rcp, amount, fee, ts, []byte(attachment))
	if err != nil {
		log.Fatal(err)
	}

	if err := transaction.Sign(tx, secret); err != nil {
		log.Fatal(err)
	}

	blob, err := transaction.MarshalBinary(tx)
	if err != nil {
		log.Fatal(err)
	}

	id, err := tx.ID()
	if err != nil {
		log.Fatal(err)
	}

	fmt.Println("id  :", id)
	fmt.Println("blob:", hexutil.Encode(blob))
}

// parseRecipient accepts either a 0x prefixed address or a bare alias.
func parseRecipient(value string) (transaction.Recipient, error) {
	if len(value) > 2 && value[:2] == "0x" {
		raw, err := hexutil.Decode(value)
		if err != nil {
			return transaction.Recipient{}, err
		}
		addr, err := transaction.AddressFromBytes(raw)
		if err != nil {
			return transaction.Recipient{}, err
		}
		return transaction.NewAddressRecipient(addr), nil
	}

	rcp := transaction.NewAliasRecipient(transaction.Alias(value))
	if err := rcp.Valid(); err != nil {
		return transaction.Recipient{}, err
	}
	return rcp, nil
}
