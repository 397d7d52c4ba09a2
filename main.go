// ca-drive - terminal client for the CA dashboard document drive.
//
// Browse client folders by fiscal year, upload and download documents, and
// manage the bin, notifications and activity log from the command line or
// the interactive explorer ('ca-drive drive browse <client-id>').
package main

import (
	"os"

	"github.com/mrd/ca-drive/internal/cli"
)

func main() {
	if err := cli.Execute(); err != nil {
		os.Exit(1)
	}
}
