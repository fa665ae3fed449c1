package main

import (
	"os"

	"github.com/lavanderia-bot/laundrybot/internal/ctl"
)

func main() {
	if err := ctl.Execute(); err != nil {
		os.Exit(1)
	}
}
