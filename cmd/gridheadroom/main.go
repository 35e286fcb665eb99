package main

import (
	"os"
	_ "time/tzdata" // Europe/London without a system zoneinfo
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
