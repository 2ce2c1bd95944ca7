package main

import (
	"os"

	"github.com/soundprediction/noirgraph/cmd/noirgraph"
)

func main() {
	if err := noirgraph.Execute(); err != nil {
		os.Exit(1)
	}
}
