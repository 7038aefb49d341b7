package main

import (
	"os"

	"github.com/sevaops/seva/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
