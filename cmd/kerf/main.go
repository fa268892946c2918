// Kerf CLI - laser process calculators from the command line.
//
// Usage:
//
//	kerf list
//	kerf describe multipass
//	kerf calc --set material=stainless_steel --set thickness_mm=8 gas-pressure
//	kerf batch --input jobs.xlsx --output results.xlsx focus
//	kerf report --example thick-mild-steel --output plan.pdf multipass
//
// Flags go before the calculator id.
package main

import (
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/rs/zerolog"
	"github.com/urfave/cli/v2"

	"Kerf/internal/calc"
	"Kerf/internal/engine"
	"Kerf/internal/logging"
)

var (
	version = "dev"
	commit  = "none"
)

// Exit codes for scripts.
const (
	ExitInvalidInput = 2
	ExitInternal     = 3
)

func main() {
	if err := newApp(os.Stdout, os.Stderr).Run(os.Args); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		var ec cli.ExitCoder
		if errors.As(err, &ec) {
			os.Exit(ec.ExitCode())
		}
		os.Exit(1)
	}
}

type env struct {
	registry *engine.Registry
	log      zerolog.Logger
}

func newApp(stdout, stderr io.Writer) *cli.App {
	e := &env{log: zerolog.Nop()}
	return &cli.App{
		Name:      "kerf",
		Usage:     "Laser cutting process calculators",
		Version:   fmt.Sprintf("%s (commit: %s)", version, commit),
		Writer:    stdout,
		ErrWriter: stderr,

		// Exit codes are applied in main so tests can inspect them.
		ExitErrHandler: func(*cli.Context, error) {},

		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "log-level",
				Value:   "warn",
				Usage:   "Log level (debug, info, warn, error)",
				EnvVars: []string{"KERF_LOG_LEVEL"},
			},
			&cli.StringFlag{
				Name:    "tables",
				Usage:   "Property table YAML file (defaults to the built-in tables)",
				EnvVars: []string{"KERF_TABLES_FILE"},
			},
		},
		Before: func(c *cli.Context) error {
			l, err := logging.New(c.String("log-level"), "text", stderr)
			if err != nil {
				return err
			}
			e.log = l
			set, err := calc.Tables(c.String("tables"))
			if err != nil {
				return fmt.Errorf("property tables: %w", err)
			}
			e.registry, err = calc.Registry(set)
			return err
		},
		Commands: []*cli.Command{
			e.listCommand(),
			e.describeCommand(),
			e.defaultsCommand(),
			e.examplesCommand(),
			e.calcCommand(),
			e.batchCommand(),
			e.reportCommand(),
			hashPasswordCommand(),
		},
	}
}

func (e *env) calculator(c *cli.Context) (engine.Calculator, error) {
	id := c.Args().First()
	if id == "" {
		return nil, cli.Exit("calculator id required, see 'kerf list'", ExitInvalidInput)
	}
	calc, err := e.registry.Get(id)
	if err != nil {
		return nil, cli.Exit(err.Error(), ExitInvalidInput)
	}
	return calc, nil
}
