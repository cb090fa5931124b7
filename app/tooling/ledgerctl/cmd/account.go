package cmd

import (
	"crypto/ed25519"
	"fmt"
	"log"

	"github.com/spf13/cobra"

	"github.com/meridianchain/meridian/foundation/ledger/transaction"
)

var accountCmd = &cobra.Command{
	Use:   "account",
	Short: "Print the account identity behind the private key",
	Run:   accountRun,
}

func init() {
	rootCmd.AddCommand(accountCmd)
}

func accountRun(cmd *cobra.Command, args []string) {
	secret, err := loadPrivateKey()
	if err != nil {
		log.Fatal(err)
	}

	pk, err := transaction.PublicKeyFromBytes(secret.Public().(ed25519.PublicKey))
	if err != nil {
		log.Fatal(err)
	}

	fmt.Println("public key:", pk)
	fmt.Println("address   :", transaction.AddressFromPublicKey(pk))
}
