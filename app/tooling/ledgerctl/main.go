package main

import "github.com/meridianchain/meridian/app/tooling/ledgerctl/cmd"

func main() {
	cmd.Execute()
}
