package main

import (
	"fmt"
	"os"

	"github.com/vidsum/vidsumd/cmd/vidsumd/commands"
)

func main() {
	if err := commands.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
