// Package main is the entry point for the predator CLI.
package main

import (
	"github.com/alecthomas/kong"
	"github.com/joho/godotenv"
)

func main() {
	// API keys for model-backed oracles may live in .env
	_ = godotenv.Load()

	var cli CLI
	ctx := kong.Parse(&cli,
		kong.Name("predator"),
		kong.Description("Autonomous sales agent with remote delegation and human sign-off."),
		kong.UsageOnError(),
		kongVars(),
	)
	ctx.FatalIfErrorf(ctx.Run(&cli.Globals))
}
