package main

import (
	"os"

	_ "time/tzdata" // zonas IANA aunque el host no las tenga
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}
