package main

import (
	"log/slog"
	"os"

	"sportbot/cmd"
)

func main() {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, nil))
	slog.SetDefault(logger)

	os.Exit(cmd.Execute())
}
