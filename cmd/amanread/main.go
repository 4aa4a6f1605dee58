// Package main provides the entry point for the amanread CLI.
package main

import (
	"fmt"
	"os"

	"github.com/Aman-CERP/amanread/cmd/amanread/cmd"
	amerrors "github.com/Aman-CERP/amanread/internal/errors"
)

func main() {
	if err := cmd.Execute(); err != nil {
		fmt.Fprint(os.Stderr, amerrors.FormatForCLI(err))
		os.Exit(1)
	}
}
