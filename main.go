package main

import (
	"errors"
	"os"

	"retrace/cmd"
	"retrace/internal/config"
)

func main() {
	if err := cmd.Execute(); err != nil {
		if errors.Is(err, config.ErrInvalid) {
			os.Exit(2)
		}
		os.Exit(1)
	}
}
