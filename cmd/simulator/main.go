// Command simulator runs the mock NetGuard API with generated traffic.
// It is shorthand for `netguard mock`.
package main

import (
	"os"

	"github.com/nshruti113/netguard-dashboard/internal/cli"
)

func main() {
	os.Exit(cli.Execute(append([]string{"mock"}, os.Args[1:]...)))
}
