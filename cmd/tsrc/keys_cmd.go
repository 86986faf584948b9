package main

import (
	"fmt"
	"io"

	"github.com/bowtae-labs/tsrc/pkg/keys"
)

func runKeysRotate(stdout, stderr io.Writer) int {
	keyring, err := keys.OpenKeyring(defaultKeyringPath)
	if err != nil {
		fmt.Fprintf(stderr, "open keyring: %v\n", err)
		return 1
	}

	newID, err := keyring.Rotate()
	if err != nil {
		fmt.Fprintf(stderr, "rotate key: %v\n", err)
		return 1
	}

	fmt.Fprintf(stdout, "active signing key is now %s\n", newID)
	return 0
}
