// Command giftswap runs a secret gift exchange service.
package main

import (
	"fmt"
	"os"

	"github.com/roach88/giftswap/internal/cli"
)

func main() {
	if err := cli.NewRootCommand().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(cli.GetExitCode(err))
	}
}
