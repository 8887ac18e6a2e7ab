package main

import (
	"fmt"
	"os"

	"github.com/notho/socialgen/internal/app"
)

func main() {
	if err := app.Run(os.Stdout, os.Args[1:]); err != nil {
		fmt.Fprintf(os.Stderr, "socialgen: %v\n", err)
		os.Exit(1)
	}
}
