package main

import (
	"os"

	"github.com/conneroisu/anchorplay/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
