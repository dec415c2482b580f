package main

import (
	"os"

	"github.com/majorcontext/restpcv/cmd/restpcv/cli"
)

func main() {
	os.Exit(cli.ExitCode(cli.Execute()))
}
