package cmd

import (
	"fmt"
	"log"
	"os"
	"path/filepath"

	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/spf13/cobra"

	"github.com/meridianchain/meridian/foundation/ledger/transaction"
)

var generateCmd = &cobra.Command{
	Use:   "generate",
	Short: "Generate new key pair",
	Run:   generateRun,
}

func init() {
	rootCmd.AddCommand(generateCmd)
}

func generateRun(cmd *cobra.Command, args []string) {
	pk, secret, err := transaction.GenerateKeys()
	if err != nil {
		log.Fatal(err)
	}

	path := getPrivateKeyPath()
	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		log.Fatal(err)
	}
	if err := os.WriteFile(path, []byte(hexutil.Encode(secret)), 0600); err != nil {
		log.Fatal(err)
	}

	fmt.Println("public key:", pk)
	fmt.Println("address   :", transaction.AddressFromPublicKey(pk))
}
