package main

import (
	"os"

	"github.com/armadaproject/jobclass/cmd/jobclass/cmd"
)

func main() {
	err := cmd.RootCmd().Execute()
	if err != nil {
		os.Exit(1)
	}
}
