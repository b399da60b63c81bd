package main

import (
	"os"

	"github.com/sandrolain/userkit/pkg/config"
	"github.com/sandrolain/userkit/pkg/toolutil"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		toolutil.PrintError("Invalid configuration: %v", err)
		os.Exit(1)
	}

	root := rootCommand(newApp(cfg))
	if err := root.Execute(); err != nil {
		toolutil.PrintError("%v", err)
		os.Exit(1)
	}
}
