package main

import (
	"log/slog"
	"os"

	"hrpayroll/internal/app/server"
)

func main() {
	if err := server.Run(); err != nil {
		slog.Error("payroll server exited", "err", err)
		os.Exit(1)
	}
}
