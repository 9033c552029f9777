// Command readoctl is a terminal client for the ReadoAI API.
package main

import (
	"os"

	"github.com/readoai/readoai-go/internal/cli"
)

func main() {
	if err := cli.NewRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}
