package main

import (
	"os"

	"github.com/mvdnes/dmarc-reporter/internal/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
