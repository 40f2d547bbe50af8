// Command server runs the dashboard bridge. It is shorthand for
// `netguard serve` and accepts the same flags.
package main

import (
	"os"

	"github.com/nshruti113/netguard-dashboard/internal/cli"
)

func main() {
	os.Exit(cli.Execute(append([]string{"serve"}, os.Args[1:]...)))
}
