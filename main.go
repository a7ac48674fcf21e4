package main

import (
	"os"

	"github.com/TechFutureAIFPT/hr-support/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
