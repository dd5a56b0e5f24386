package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"runtime/debug"
	"sort"
	"syscall"

	"github.com/common-nighthawk/go-figure"
	"github.com/rs/zerolog/log"

	"github.com/jrsteele09/taproom-client/apierror"
	"github.com/jrsteele09/taproom-client/internal/config"
	"github.com/jrsteele09/taproom-client/internal/logging"
)

var errUsage = errors.New("usage")

func main() {
	err := run(os.Args[1:], os.Stdout)
	switch {
	case err == nil:
	case errors.Is(err, errUsage), errors.Is(err, flag.ErrHelp):
		os.Exit(2)
	default:
		if apiErr, ok := apierror.As(err); ok {
			log.Error().Err(apiErr).Str("kind", string(apiErr.Kind())).Bool("retryable", apiErr.Retryable()).Msg("command failed")
			fmt.Fprintln(os.Stderr, apiErr.UserMessage())
		} else {
			log.Error().Err(err).Msg("command failed")
		}
		os.Exit(1)
	}
}

func run(args []string, out io.Writer) (returnError error) {
	defer func() {
		if r := recover(); r != nil {
			log.Error().Interface("panic", r).Msg("recovered from panic")
			debug.PrintStack()
			returnError = errors.New("panic recovered")
		}
	}()

	global := flag.NewFlagSet("taproom", flag.ContinueOnError)
	configPath := global.String("config", "", "path to the YAML config file (default $TAPROOM_CONFIG or taproom.yaml)")
	showMetrics := global.Bool("metrics", false, "print client metrics to stderr after the command")
	quiet := global.Bool("quiet", false, "do not print the banner")
	global.Usage = func() { usage(global.Output()) }
	if err := global.Parse(args); err != nil {
		return err
	}
	if global.NArg() == 0 {
		usage(global.Output())
		return errUsage
	}

	name := global.Arg(0)
	cmd, ok := commands[name]
	if !ok {
		fmt.Fprintf(global.Output(), "unknown command %q\n\n", name)
		usage(global.Output())
		return errUsage
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		return err
	}
	logging.Setup(cfg.GetLogLevel(), cfg.GetEnv())
	if !*quiet {
		displayAppname(cfg.GetAppName())
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	e := &env{cfg: cfg, out: out}
	defer e.close()
	err = cmd.run(ctx, e, global.Args()[1:])
	if *showMetrics {
		e.printMetrics(os.Stderr)
	}
	return err
}

func usage(w io.Writer) {
	fmt.Fprintln(w, "usage: taproom [-config file] [-metrics] [-quiet] <command> [arguments]")
	fmt.Fprintln(w)
	fmt.Fprintln(w, "commands:")
	names := make([]string, 0, len(commands))
	for name := range commands {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		fmt.Fprintf(w, "  %-13s %s\n", name, commands[name].summary)
	}
}

func displayAppname(appname string) {
	myFigure := figure.NewFigure(appname, "cybermedium", true)
	fmt.Fprintln(os.Stderr, myFigure.String())
}
