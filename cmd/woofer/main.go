// Command woofer runs the device or controller side of a pose link.
package main

import (
	"os"

	"github.com/teslashibe/go-woofer/internal/cli"
)

func main() {
	if err := cli.Execute(); err != nil {
		os.Exit(1)
	}
}
