// Command buildstamp increments the persisted build counter and stamps the
// generated header with the new build number and build date.
package main

import (
	"context"
	"errors"
	"io"
	"os"
)

func main() {
	os.Exit(run(os.Args[1:], os.Stdout, os.Stderr))
}

func run(args []string, stdout, stderr io.Writer) int {
	cmd, a := newRootCmd(stdout, stderr)
	defer a.close()
	cmd.SetArgs(args)

	if err := cmd.ExecuteContext(context.Background()); err != nil {
		if !errors.Is(err, errReported) {
			a.print.Errorf("Error: %v", err)
		}
		return 1
	}
	return 0
}
