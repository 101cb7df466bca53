package main

import (
	"context"
	"errors"
	"io"
	"os"

	"github.com/jvm-linkage/checker/internal/cli"
)

var exitFunc = os.Exit

// run builds the command tree, executes it, and maps the result to an
// exit code: 0 = no problems, 1 = problems found, 2 = input/resolution
// error (spec.md §6).
func run(args []string, out, errOut io.Writer) int {
	cmd := cli.NewRootCommand(out, errOut)
	cmd.SetArgs(args)

	err := cmd.ExecuteContext(context.Background())
	if err == nil {
		return 0
	}
	if errors.Is(err, cli.ErrProblemsFound) {
		return 1
	}
	io.WriteString(errOut, err.Error()+"\n")
	return 2
}

func main() {
	exitFunc(run(os.Args[1:], os.Stdout, os.Stderr))
}
