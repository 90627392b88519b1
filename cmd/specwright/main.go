package main

import (
	"fmt"
	"os"
)

var version = "dev"

func main() {
	if len(os.Args) < 2 {
		usage()
		os.Exit(1)
	}

	switch os.Args[1] {
	case "serve":
		serve(os.Args[2:])
	case "inspect":
		inspect(os.Args[2:])
	case "version":
		fmt.Println(version)
	default:
		usage()
		os.Exit(1)
	}
}

func usage() {
	fmt.Fprintln(os.Stderr, "usage:")
	fmt.Fprintln(os.Stderr, "  specwright serve [--addr <host:port>] [--config <file.yaml>]")
	fmt.Fprintln(os.Stderr, "  specwright inspect --keyword <text> [--repo <path>] [--config <file.yaml>]")
	fmt.Fprintln(os.Stderr, "  specwright version")
}
