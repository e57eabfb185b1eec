package main

import (
	"errors"
	"fmt"
	"os"
)

func main() {
	err := newRootCmd(os.Stdout).Execute()
	switch {
	case err == nil:
	case errors.Is(err, errDenied):
		os.Exit(3)
	default:
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}
