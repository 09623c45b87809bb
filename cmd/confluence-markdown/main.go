/*
Copyright © 2024 paul <paul@denknerd.org>
*/

package main

import (
	"fmt"
	"os"

	"github.com/toothbrush/confluence-markdown/publish"
)

func main() {
	if err := Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "confluence-markdown: %s\n  %v\n", publish.Describe(err), err)
		os.Exit(publish.ExitCode(err))
	}
}
