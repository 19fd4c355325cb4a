// Command wark runs WASM modules inside the sandbox, either directly
// off disk (the "run" subcommand) or as an HTTP service fronting the
// sandbox and judge coordinator (the "server" subcommand).
package main

import (
	"fmt"
	"os"
)

// Version is set via -ldflags "-X main.Version=..." at build time. The
// gateway's build-info response reads gateway.Version, which is set
// separately; this variable is not forwarded to it.
var Version = "dev"

func printUsage() {
	fmt.Fprintf(os.Stderr, `Usage: %s <command> [flags]

Commands:
  run     Run a wasm module locally against the sandbox
  server  Start the HTTP gateway

Run '%s <command> -h' for flags on a specific command.
`, os.Args[0], os.Args[0])
}

func main() {
	if len(os.Args) < 2 {
		printUsage()
		os.Exit(2)
	}

	var code int
	switch os.Args[1] {
	case "run":
		code = runCommand(os.Args[2:])
	case "server":
		code = serverCommand(os.Args[2:])
	case "-h", "--help", "help":
		printUsage()
		return
	default:
		fmt.Fprintf(os.Stderr, "unknown command %q\n\n", os.Args[1])
		printUsage()
		code = 2
	}
	os.Exit(code)
}
