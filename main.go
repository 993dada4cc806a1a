// Command reed runs the ReedCMS core server: a content management engine
// built around a single Universal Content Graph, with theme-aware
// rendering, RBAC-gated content operations, and a Lua plugin host.
package main

import (
	"fmt"
	"os"

	"github.com/reedcms/reed/cli"
)

func main() {
	if err := cli.RootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
