package main

import (
	"os"

	"github.com/nshruti113/netguard-dashboard/internal/cli"
)

func main() {
	os.Exit(cli.Execute(os.Args[1:]))
}
