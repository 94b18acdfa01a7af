package main

import (
	"flag"
	"fmt"
	"os"

	"go.uber.org/fx"

	"github.com/tbaldin/wirechat/internal/app"
	"github.com/tbaldin/wirechat/internal/creds"
)

func main() {
	profileFlag := flag.String("profile", "", "profile name (overrides config default)")
	flag.Parse()

	profile := creds.ResolveProfile(*profileFlag)
	if err := creds.ValidateProfileName(profile); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}

	fxApp := fx.New(
		app.Module(app.Params{Profile: profile}),
	)

	fxApp.Run()
}
