// Command bdagent researches business-development leads and reports only
// what it can cite.
package main

import (
	"fmt"
	"os"

	"github.com/abdazzam00/biz-dev-agent/internal/cli"
)

func main() {
	if err := cli.Execute(os.Stdout, os.Stderr); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}
