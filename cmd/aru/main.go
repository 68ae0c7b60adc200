// Command aru builds, imports, queries and serves an offline knowledge base.
package main

import "os"

// version is overridden at link time (-ldflags "-X main.version=...").
var version = "dev"

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
