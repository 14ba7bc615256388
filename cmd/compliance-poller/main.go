package main

import (
	"os"

	"github.com/schubergphilis/azureenergylabelerlib/cmd/compliance-poller/cmd"
)

func main() {
	err := cmd.Execute()
	if err != nil {
		os.Exit(1)
	}
}
