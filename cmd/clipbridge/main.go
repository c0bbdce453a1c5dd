package main

import (
	"os"

	"github.com/barysiuk/clipbridge/cmd/clipbridge/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
