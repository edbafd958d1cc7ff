package main

import (
	"os"

	gravitycmder "github.com/neargravity/gravity/cmd/gravity"
)

func main() {
	cmd := gravitycmder.NewGravityCmd()
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
