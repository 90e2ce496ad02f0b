// Package main is the entry point for the fabrictap RoCEv2 and NVMe/TCP test tool.
package main

import (
	"fmt"
	"os"

	"firestige.xyz/fabrictap/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
