package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/urfave/cli/v2"

	"Kerf/internal/auth"
	"Kerf/internal/batch"
	"Kerf/internal/engine"
	"Kerf/internal/importer"
	"Kerf/internal/report"
)

func formatFlag() cli.Flag {
	return &cli.StringFlag{
		Name:    "format",
		Aliases: []string{"f"},
		Value:   "text",
		Usage:   "Output format (text, json)",
	}
}

func inputFlags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:    "example",
			Aliases: []string{"e"},
			Usage:   "Start from a named example input set",
		},
		&cli.StringFlag{
			Name:    "input",
			Aliases: []string{"i"},
			Usage:   "JSON file with an input object",
		},
		&cli.StringSliceFlag{
			Name:    "set",
			Aliases: []string{"s"},
			Usage:   "Field value as name=value, repeatable",
		},
	}
}

func (e *env) listCommand() *cli.Command {
	return &cli.Command{
		Name:  "list",
		Usage: "List the available calculators",
		Flags: []cli.Flag{formatFlag()},
		Action: func(c *cli.Context) error {
			calcs := e.registry.List()
			if c.String("format") == "json" {
				out := make([]map[string]string, len(calcs))
				for i, k := range calcs {
					out[i] = map[string]string{"id": k.ID(), "title": k.Title()}
				}
				return writeJSON(c, out)
			}
			tw := newTable(c.App.Writer)
			for _, k := range calcs {
				fmt.Fprintf(tw, "%s\t%s\n", k.ID(), k.Title())
			}
			return tw.Flush()
		},
	}
}

func (e *env) describeCommand() *cli.Command {
	return &cli.Command{
		Name:      "describe",
		Usage:     "Show the input fields of a calculator",
		ArgsUsage: "<calculator>",
		Flags:     []cli.Flag{formatFlag()},
		Action: func(c *cli.Context) error {
			k, err := e.calculator(c)
			if err != nil {
				return err
			}
			schema := k.Schema()
			if c.String("format") == "json" {
				return writeJSON(c, schema)
			}
			tw := newTable(c.App.Writer)
			fmt.Fprintln(tw, "FIELD\tKIND\tUNIT\tRANGE / OPTIONS\tDEFAULT\tREQUIRED")
			for _, f := range schema.Fields {
				bounds := fmt.Sprintf("%g .. %g", f.Min, f.Max)
				if f.Kind == engine.FieldEnum {
					bounds = strings.Join(f.Options, ", ")
				}
				def := ""
				if f.Default != nil {
					def = fmt.Sprint(f.Default)
				}
				fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\t%t\n", f.Name, f.Kind, f.Unit, bounds, def, f.Required)
			}
			return tw.Flush()
		},
	}
}

func (e *env) defaultsCommand() *cli.Command {
	return &cli.Command{
		Name:      "defaults",
		Usage:     "Print the default inputs of a calculator as JSON",
		ArgsUsage: "<calculator>",
		Action: func(c *cli.Context) error {
			k, err := e.calculator(c)
			if err != nil {
				return err
			}
			return writeJSON(c, k.DefaultInputs())
		},
	}
}

func (e *env) examplesCommand() *cli.Command {
	return &cli.Command{
		Name:      "examples",
		Usage:     "Print the example input sets of a calculator",
		ArgsUsage: "<calculator>",
		Flags:     []cli.Flag{formatFlag()},
		Action: func(c *cli.Context) error {
			k, err := e.calculator(c)
			if err != nil {
				return err
			}
			if c.String("format") == "json" {
				return writeJSON(c, k.ExampleInputs())
			}
			tw := newTable(c.App.Writer)
			for _, ex := range k.ExampleInputs() {
				fmt.Fprintf(tw, "%s\t%s\n", ex.Name, ex.Description)
			}
			return tw.Flush()
		},
	}
}

func (e *env) calcCommand() *cli.Command {
	return &cli.Command{
		Name:      "calc",
		Usage:     "Run one calculation",
		ArgsUsage: "<calculator>",
		Flags:     append([]cli.Flag{formatFlag()}, inputFlags()...),
		Action: func(c *cli.Context) error {
			k, err := e.calculator(c)
			if err != nil {
				return err
			}
			raw, err := gatherInputs(c, k)
			if err != nil {
				return err
			}
			res, err := e.run(k, raw)
			if err != nil {
				return err
			}
			if c.String("format") == "json" {
				return writeJSON(c, res)
			}
			printResult(c.App.Writer, res)
			return nil
		},
	}
}

func (e *env) batchCommand() *cli.Command {
	return &cli.Command{
		Name:      "batch",
		Usage:     "Run every request in a JSON array or XLSX sheet",
		ArgsUsage: "<calculator>",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "input", Aliases: []string{"i"}, Required: true, Usage: "JSON array or .xlsx file"},
			&cli.StringFlag{Name: "output", Aliases: []string{"o"}, Usage: "Write results to this .xlsx file instead of JSON on stdout"},
			&cli.IntFlag{Name: "workers", Aliases: []string{"w"}, Value: 4, EnvVars: []string{"KERF_BATCH_WORKERS"}},
		},
		Action: func(c *cli.Context) error {
			k, err := e.calculator(c)
			if err != nil {
				return err
			}
			rows, err := readBatch(c.String("input"), k.Schema())
			if err != nil {
				return cli.Exit(err.Error(), ExitInvalidInput)
			}
			rep, err := batch.Run(context.Background(), k, importer.Inputs(rows), c.Int("workers"))
			if err != nil {
				return cli.Exit(err.Error(), ExitInvalidInput)
			}
			e.log.Info().Str("calculator", k.ID()).Int("succeeded", rep.Succeeded).Int("failed", rep.Failed).Msg("batch done")

			if out := c.String("output"); out != "" {
				f, err := os.Create(out)
				if err != nil {
					return err
				}
				if err := importer.WriteResults(f, rows, rep); err != nil {
					f.Close()
					return err
				}
				if err := f.Close(); err != nil {
					return err
				}
				fmt.Fprintf(c.App.Writer, "%d succeeded, %d failed, written to %s\n", rep.Succeeded, rep.Failed, out)
				return nil
			}
			return writeJSON(c, rep)
		},
	}
}

func (e *env) reportCommand() *cli.Command {
	return &cli.Command{
		Name:      "report",
		Usage:     "Run one calculation and render it as PDF",
		ArgsUsage: "<calculator>",
		Flags: append([]cli.Flag{
			&cli.StringFlag{Name: "output", Aliases: []string{"o"}, Usage: "PDF path (defaults to <calculator>-<fingerprint>.pdf)"},
			&cli.StringFlag{Name: "project", Usage: "Project name printed on the report"},
			&cli.StringFlag{Name: "author", Value: "Kerf", EnvVars: []string{"KERF_REPORT_AUTHOR"}},
			&cli.StringFlag{Name: "notes", Usage: "Free text printed under the header"},
		}, inputFlags()...),
		Action: func(c *cli.Context) error {
			k, err := e.calculator(c)
			if err != nil {
				return err
			}
			raw, err := gatherInputs(c, k)
			if err != nil {
				return err
			}
			res, err := e.run(k, raw)
			if err != nil {
				return err
			}
			out := c.String("output")
			if out == "" {
				out = report.Filename(res)
			}
			f, err := os.Create(out)
			if err != nil {
				return err
			}
			in := report.Input{Project: c.String("project"), Author: c.String("author"), Notes: c.String("notes")}
			if err := report.Render(f, in, res); err != nil {
				f.Close()
				return err
			}
			if err := f.Close(); err != nil {
				return err
			}
			fmt.Fprintln(c.App.Writer, out)
			return nil
		},
	}
}

func hashPasswordCommand() *cli.Command {
	return &cli.Command{
		Name:      "hash-password",
		Usage:     "Print a bcrypt hash for KERF_OPERATOR_HASH",
		ArgsUsage: "<password>",
		Action: func(c *cli.Context) error {
			pw := c.Args().First()
			if pw == "" {
				return cli.Exit("password required", ExitInvalidInput)
			}
			h, err := auth.HashPassword(pw)
			if err != nil {
				return err
			}
			fmt.Fprintln(c.App.Writer, h)
			return nil
		},
	}
}

// run converts a failed outcome into an exit error.
func (e *env) run(k engine.Calculator, raw map[string]any) (*engine.Result, error) {
	switch out := engine.Run(k, raw).(type) {
	case *engine.Result:
		e.log.Debug().Str("calculator", k.ID()).Str("fingerprint", out.Metadata.Fingerprint).
			Dur("duration", out.Metadata.Duration).Msg("calculation done")
		return out, nil
	case *engine.Failure:
		code := ExitInvalidInput
		if out.Kind == engine.FailureInternal {
			code = ExitInternal
		}
		return nil, cli.Exit(out.Error(), code)
	default:
		return nil, cli.Exit(fmt.Sprintf("unexpected outcome %T", out), ExitInternal)
	}
}

// gatherInputs starts from the calculator's form defaults and applies the
// example, the input file and --set values, later sources overriding
// earlier ones.
func gatherInputs(c *cli.Context, k engine.Calculator) (map[string]any, error) {
	raw := k.DefaultInputs()
	if name := c.String("example"); name != "" {
		found := false
		for _, ex := range k.ExampleInputs() {
			if ex.Name == name {
				for key, v := range ex.Inputs {
					raw[key] = v
				}
				found = true
				break
			}
		}
		if !found {
			return nil, cli.Exit(fmt.Sprintf("no example %q for %s", name, k.ID()), ExitInvalidInput)
		}
	}
	if path := c.String("input"); path != "" {
		var fromFile map[string]any
		if err := readJSON(path, &fromFile); err != nil {
			return nil, cli.Exit(err.Error(), ExitInvalidInput)
		}
		for key, v := range fromFile {
			raw[key] = v
		}
	}
	schema := k.Schema()
	for _, kv := range c.StringSlice("set") {
		name, value, ok := strings.Cut(kv, "=")
		if !ok {
			return nil, cli.Exit(fmt.Sprintf("--set %q: expected name=value", kv), ExitInvalidInput)
		}
		name = strings.TrimSpace(name)
		raw[name] = schema.Coerce(name, value)
	}
	return raw, nil
}

func readJSON(path string, v any) error {
	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()
	dec := json.NewDecoder(f)
	dec.UseNumber()
	if err := dec.Decode(v); err != nil {
		return fmt.Errorf("%s: %w", path, err)
	}
	return nil
}

func readBatch(path string, schema engine.Schema) ([]importer.Row, error) {
	if strings.EqualFold(filepath.Ext(path), ".xlsx") {
		f, err := os.Open(path)
		if err != nil {
			return nil, err
		}
		defer f.Close()
		return importer.ReadRequests(f, schema)
	}
	var items []map[string]any
	if err := readJSON(path, &items); err != nil {
		return nil, err
	}
	rows := make([]importer.Row, len(items))
	for i, it := range items {
		rows[i] = importer.Row{Line: i + 1, Inputs: it}
	}
	return rows, nil
}

func writeJSON(c *cli.Context, v any) error {
	enc := json.NewEncoder(c.App.Writer)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
