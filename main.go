package main

import (
	"fmt"
	"log/slog"
	"os"
	"runtime/debug"

	"github.com/audiolibrelab/callguide/cmd"
)

func main() {
	defer func() {
		if r := recover(); r != nil {
			slog.Error("Unexpected error", "panic", fmt.Sprint(r), "stack", string(debug.Stack()))
			os.Exit(1)
		}
	}()

	cmd.Execute()
}
