package main

import (
	"os"

	"github.com/unzipd/unzipd/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
