// package main is the entry point of the reposcan service and command line.
package main

import (
	"fmt"
	"os"

	"github.com/ortelius/pdvd-reposcan/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
