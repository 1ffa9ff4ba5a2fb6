// Command tally is the operational CLI for the tally engine. It decodes and
// allocates identifiers, computes window bounds and runs discover and counter
// reconciliation against a YAML fixture.
package main

import (
	"os"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}
