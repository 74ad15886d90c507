package main

import (
	"flag"
	"fmt"
	"os"

	"github.com/matheus3301/inbox/internal/config"
	"github.com/matheus3301/inbox/internal/daemon"
	"github.com/matheus3301/inbox/internal/profile"
	"go.uber.org/fx"
)

func main() {
	profileFlag := flag.String("profile", "", "profile name (overrides config default)")
	flag.Parse()

	profileName := profile.Resolve(*profileFlag)
	if err := profile.ValidateName(profileName); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}

	// The profile's .env wins over one in the working directory.
	if err := config.LoadEnv(profile.EnvPath(profileName), ".env"); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}

	app := fx.New(
		daemon.Module(daemon.Params{ProfileName: profileName}),
	)

	app.Run()
}
