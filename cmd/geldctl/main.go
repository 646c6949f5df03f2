// Command geldctl is the operator CLI for geld. It works directly on the
// configured databases and never goes through the HTTP API.
package main

import (
	"os"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}
