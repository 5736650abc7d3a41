package main

import (
	"fmt"
	"os"
	"runtime/debug"

	"github.com/vvka-141/polingest/internal/cli"
	"github.com/vvka-141/polingest/pkg/polingest"
)

func main() {
	defer func() {
		if r := recover(); r != nil {
			fmt.Fprintf(os.Stderr, "panic: %v\n%s\n", r, debug.Stack())
			os.Exit(polingest.ExitPanic)
		}
	}()

	if os.Getenv("POLINGEST_TEST_PANIC") == "1" {
		panic("intentional test panic")
	}

	if err := cli.Execute(); err != nil {
		os.Exit(polingest.ExitCodeForError(err))
	}
}
