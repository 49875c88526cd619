// Command cli is the quarry client: datasets, queries, macros, API keys,
// and declarative manifest apply against a running quarry server.
package main

import (
	"os"

	"quarry/pkg/cli"
)

func main() {
	os.Exit(cli.Execute())
}
