package main

import (
	"os"

	"github.com/labhacker007/Joti-sub001/internal/cli"
)

func main() {
	if err := cli.Execute(); err != nil {
		os.Exit(1)
	}
}
