// Command sourcehost is a devtool for loading content-source plugin
// packages, driving their exported entry points, and inspecting the
// resulting resource-table/sandbox state. It is an external collaborator
// over internal/pluginhost, not part of the core embedding layer itself.
package main

import (
	"fmt"
	"os"
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
