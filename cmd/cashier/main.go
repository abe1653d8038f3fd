// Command cashier moves phone records through upload and removal batches.
package main

import (
	"context"
	"os"

	"github.com/roach88/cashier/internal/cli"
)

func main() {
	err := cli.Execute(context.Background(), os.Args[1:])
	os.Exit(cli.GetExitCode(err))
}
