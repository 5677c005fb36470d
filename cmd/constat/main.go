/*
Package main provides the command line tool to draw the per-author
lines-of-code history of a Git repository. Usage:

	constat <URL or FS path>

The tool replays the whole commit DAG, attributes every surviving line to
the author who most recently wrote it and renders the evolution as a
stacked chart. Progress is written to stderr, the chart to the output file
(PNG by default).
*/
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
