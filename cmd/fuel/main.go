// Command fuel is the player-side client for the Fuel Points API.
package main

import "github.com/fuelpoints/platform/internal/cli"

// version is set at build time via -ldflags.
var version = "dev"

func main() {
	cli.Execute(version)
}
