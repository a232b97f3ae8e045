// Package main is the entry point for the listctl CLI
package main

import (
	"os"

	"vendor-dashboard-api/cmd/listctl/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Stderr.WriteString("Error: " + err.Error() + "\n")
		os.Exit(1)
	}
}
