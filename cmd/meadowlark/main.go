// Command meadowlark drives the Meadowlark document store from the shell.
package main

import (
	"os"

	"github.com/Ed-Fi-Exchange-OSS/Meadowlark-sub000/internal/cli"
)

func main() {
	os.Exit(cli.Execute(os.Args[1:], os.Stdout, os.Stderr))
}
