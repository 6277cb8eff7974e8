package main

import (
	"fmt"
	"os"

	"github.com/tinoosan/launcher/internal/cli"
)

var version = "dev"

func main() {
	if err := cli.Execute(version); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
