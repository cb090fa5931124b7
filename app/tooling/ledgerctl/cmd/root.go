// Package cmd contains the ledgerctl commands for working with accounts
// and signed transactions offline.
package cmd

import (
	"crypto/ed25519"
	"os"
	"path/filepath"
	"strings"

	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/spf13/cobra"
)

var (
	accountName string
	accountPath string
)

const (
	keyExtension = ".ed25519"
)

func init() {
	rootCmd.PersistentFlags().StringVarP(&accountName, "account", "a", "private.ed25519", "Path to the private key.")
	rootCmd.PersistentFlags().StringVarP(&accountPath, "account-path", "p", "zledger/accounts/", "Path to the directory with private keys.")
}

var rootCmd = &cobra.Command{
	Use:   "ledgerctl",
	Short: "Account and transaction tooling",
}

func Execute() {
	err := rootCmd.Execute()
	if err != nil {
		os.Exit(1)
	}
}

func getPrivateKeyPath() string {
	if !strings.HasSuffix(accountName, keyExtension) {
		accountName += keyExtension
	}

	return filepath.Join(accountPath, accountName)
}

func loadPrivateKey() (ed25519.PrivateKey, error) {
	data, err := os.ReadFile(getPrivateKeyPath())
	if err != nil {
		return nil, err
	}

	raw, err := hexutil.Decode(strings.TrimSpace(string(data)))
	if err != nil {
		return nil, err
	}

	return ed25519.PrivateKey(raw), nil
}
