// Command sopchunk chunks SOP documents from the command line.
//
// Exit codes:
//   - 0: success
//   - 1: failure
//   - 2: invalid flags or configuration
//   - 3: sync published to some sinks only
package main

import (
	"errors"
	"fmt"
	"os"

	"github.com/urfave/cli/v2"

	sopcli "github.com/FadeevMax/test-web-sop/internal/cli"
)

var version = "dev"

func main() {
	app := sopcli.NewApp(version)
	app.ExitErrHandler = exitErrHandler

	if err := app.Run(os.Args); err != nil {
		os.Exit(1)
	}
}

func exitErrHandler(_ *cli.Context, err error) {
	if err == nil {
		return
	}
	code, msg := exitStatus(err)
	if msg != "" {
		fmt.Fprintln(os.Stderr, msg)
	}
	os.Exit(code)
}

// exitStatus maps an error to a process exit code and the message to print.
func exitStatus(err error) (int, string) {
	var exitCoder cli.ExitCoder
	if errors.As(err, &exitCoder) {
		code := exitCoder.ExitCode()
		msg := exitCoder.Error()
		if msg == fmt.Sprintf("exit status %d", code) {
			msg = ""
		}
		return code, msg
	}
	return 1, fmt.Sprintf("Error: %v", err)
}
