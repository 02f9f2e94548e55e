package main

import (
	"fmt"
	"os"

	_ "go.uber.org/automaxprocs"

	"github.com/agrisight-io/agrisight/cmd/agrisight-agent/app"
)

func main() {
	if err := app.NewAgentCommand().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}
