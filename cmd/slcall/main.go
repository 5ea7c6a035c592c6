package main

import (
	"os"

	"softlayer-rpc/cmd/slcall/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
