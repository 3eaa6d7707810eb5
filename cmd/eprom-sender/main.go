// cmd/eprom-sender/main.go
package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/urfave/cli/v2"

	"eprom-sender/internal/protocol"
	"eprom-sender/internal/service"
)

// version is set via ldflags at build time.
var version = "dev"

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	app := newApp(&runner{dial: protocol.DialSerial})
	if err := app.RunContext(ctx, os.Args); err != nil {
		// ExitErrHandler has already exited for errors returned by actions
		os.Exit(1)
	}
}

func newApp(r *runner) *cli.App {
	return &cli.App{
		Name:           "eprom-sender",
		Usage:          "Send a binary image to the EPROM emulator",
		UsageText:      "eprom-sender [options] <file>\n   eprom-sender [options] command [command options] [arguments...]",
		Version:        version,
		Flags:          globalFlags(),
		Action:         r.uploadAction,
		ExitErrHandler: exitErrHandler,
		Commands: []*cli.Command{
			r.cardCommand(),
			r.modesCommand(),
			r.portsCommand(),
		},
	}
}

// exitErrHandler prints the error and exits with a code that separates
// argument problems (2) from device and I/O failures (1).
func exitErrHandler(_ *cli.Context, err error) {
	if err == nil {
		return
	}

	fmt.Fprintf(os.Stderr, "Error: %v\n", err)
	os.Exit(exitCode(err))
}

func exitCode(err error) int {
	if err == nil {
		return 0
	}

	var exitCoder cli.ExitCoder
	if errors.As(err, &exitCoder) {
		return exitCoder.ExitCode()
	}

	var validationErr *service.ValidationError
	if errors.As(err, &validationErr) {
		return 2
	}
	return 1
}
