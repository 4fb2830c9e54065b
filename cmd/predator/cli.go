package main

import (
	"fmt"

	"github.com/alecthomas/kong"

	"github.com/hupe1980/predator/config"
)

// Build-time variables (set via ldflags)
var (
	version = "dev"
	commit  = "unknown"
)

// Globals are flags shared by every command.
type Globals struct {
	Config string `short:"c" help:"Config file path" type:"path"`
	User   string `default:"admin" help:"User id recorded on messages"`
}

// CLI defines the command-line interface.
type CLI struct {
	Globals

	Run     RunCmd     `cmd:"" help:"Work a lead with the Predator sales agent"`
	Serve   ServeCmd   `cmd:"" help:"Serve the market oracle as a remote agent"`
	Version VersionCmd `cmd:"" help:"Show version information"`
}

// VersionCmd shows version information.
type VersionCmd struct{}

// Run prints the version.
func (VersionCmd) Run() error {
	fmt.Printf("predator version %s (commit: %s)\n", version, commit)
	return nil
}

// kongVars returns variables for kong (version info).
func kongVars() kong.Vars {
	return kong.Vars{
		"version":   version,
		"demo_lead": demoLead,
	}
}

func loadConfig(path string) (config.Config, error) {
	if path == "" {
		return config.Default(), nil
	}
	return config.Load(path)
}
