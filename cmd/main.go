package main

import (
	"os"

	"anthem-kiosk/internal/cli"
)

func main() {
	if err := cli.Execute(); err != nil {
		os.Exit(1)
	}
}
