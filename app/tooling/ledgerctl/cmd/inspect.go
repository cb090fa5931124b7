package cmd

import (
	"fmt"
	"log"

	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/spf13/cobra"

	"github.com/meridianchain/meridian/foundation/ledger/transaction"
)

var inspectCmd = &cobra.Command{
	Use:   "inspect [blob]",
	Short: "Decode a transaction wire blob",
	Args:  cobra.ExactArgs(1),
	Run:   inspectRun,
}

func init() {
	rootCmd.AddCommand(inspectCmd)
}

func inspectRun(cmd *cobra.Command, args []string) {
	raw, err := hexutil.Decode(args[0])
	if err != nil {
		log.Fatal(err)
	}

	tx, err := transaction.Parse(raw)
	if err != nil {
		log.Fatal(err)
	}

	id, err := tx.ID()
	if err != nil {
		log.Fatal(err)
	}

	fmt.Println("id       :", id)
	fmt.Println("type     :", tx.GetType())
	fmt.Println("sender   :", transaction.AddressFromPublicKey(tx.GetSenderPK()))
	fmt.Println("fee      :", tx.GetFee())
	fmt.Println("timestamp:", tx.GetTimestamp())

	if err := transaction.Verify(tx); err != nil {
		fmt.Println("signature: INVALID:", err)
		return
	}
	fmt.Println("signature: ok")
}
