// Command kin1d-solve resolves motion problems from the command line.
//
//	kin1d-solve -vi 10 -vf 30 -t 4
//	kin1d-solve -format markdown -Dx 225 -a -1.8 -t 12.75
//	kin1d-solve -file homework.txt
//	kin1d-solve -db kin1d.db -last 10
package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strconv"

	"github.com/star/kinematics1d/internal/history"
	"github.com/star/kinematics1d/internal/kinematics"
	"github.com/star/kinematics1d/internal/problems"
	"github.com/star/kinematics1d/internal/render"
)

const usage = "usage: kin1d-solve [-vi V] [-vf V] [-a V] [-Dx V] [-t V] [-v_avg V] [-precision N] [-format text|json|latex|markdown] [-file path|-] [-db path [-last N]]"

func main() {
	os.Exit(run(os.Args[1:], os.Stdin, os.Stdout, os.Stderr))
}

// run returns the process exit code: 0 on success, 1 when any problem fails
// to resolve, 2 on a usage error.
func run(args []string, stdin io.Reader, stdout, stderr io.Writer) int {
	fs := flag.NewFlagSet("kin1d-solve", flag.ContinueOnError)
	fs.SetOutput(stderr)

	raw := make(map[kinematics.Quantity]*string, len(kinematics.Quantities))
	for _, q := range kinematics.Quantities {
		raw[q] = fs.String(q.String(), "", "known "+q.String()+" in "+render.Unit(q)+" (empty = unknown)")
	}
	precision := fs.Int("precision", kinematics.DefaultPrecision, "decimal digits in results")
	format := fs.String("format", "text", "output format: text, json, latex or markdown")
	file := fs.String("file", "", "problem set to resolve, one problem per line (- for stdin)")
	dbPath := fs.String("db", "", "history database to record results in")
	last := fs.Int("last", 0, "with -db, list the N most recent resolutions and exit")

	if err := fs.Parse(args); err != nil {
		return 2
	}
	if fs.NArg() > 0 {
		fmt.Fprintln(stderr, usage)
		return 2
	}
	switch *format {
	case "text", "json", "latex", "markdown":
	default:
		fmt.Fprintf(stderr, "unknown format %q\n%s\n", *format, usage)
		return 2
	}

	ctx := context.Background()

	var store *history.Store
	if *dbPath != "" {
		var err error
		store, err = history.NewStore(*dbPath, 0)
		if err != nil {
			fmt.Fprintf(stderr, "open db: %v\n", err)
			return 1
		}
		defer store.Close()
	}

	if *last > 0 {
		if store == nil {
			fmt.Fprintln(stderr, "-last requires -db")
			return 2
		}
		if err := listRecent(ctx, store, *last, stdout); err != nil {
			fmt.Fprintf(stderr, "error: %v\n", err)
			return 1
		}
		return 0
	}

	var set []problems.Problem
	if *file != "" {
		var err error
		set, err = readProblems(*file, stdin, stderr)
		if err != nil {
			fmt.Fprintf(stderr, "read problems: %v\n", err)
			return 1
		}
	} else {
		state, err := stateFromFlags(raw)
		if err != nil {
			fmt.Fprintf(stderr, "%v\n%s\n", err, usage)
			return 2
		}
		set = []problems.Problem{{State: state}}
	}

	failed := 0
	for _, p := range set {
		digits := *precision
		if p.Precision != nil {
			digits = *p.Precision
		}
		res, err := kinematics.Resolve(p.State, digits)
		if err != nil {
			failed++
			fmt.Fprintf(stderr, "%s: %s: %v\n", problemName(p, len(set)), kinematics.Kind(err), err)
			continue
		}
		if store != nil {
			if _, err := store.Save(ctx, "cli", p.State, res); err != nil {
				fmt.Fprintf(stderr, "record: %v\n", err)
			}
		}
		if len(set) > 1 && *format != "json" {
			fmt.Fprintf(stdout, "## %s\n", problemName(p, len(set)))
		}
		if err := write(stdout, *format, p.Label, res); err != nil {
			fmt.Fprintf(stderr, "write: %v\n", err)
			return 1
		}
	}

	if failed > 0 {
		return 1
	}
	return 0
}

func stateFromFlags(raw map[kinematics.Quantity]*string) (kinematics.MotionState, error) {
	values := make(map[kinematics.Quantity]float64)
	for q, s := range raw {
		if *s == "" {
			continue
		}
		v, err := strconv.ParseFloat(*s, 64)
		if err != nil {
			return kinematics.MotionState{}, fmt.Errorf("-%s: %q is not a number", q, *s)
		}
		values[q] = v
	}
	return kinematics.NewMotionState(values), nil
}

func readProblems(path string, stdin io.Reader, stderr io.Writer) ([]problems.Problem, error) {
	logger := slog.New(slog.NewTextHandler(stderr, &slog.HandlerOptions{Level: slog.LevelWarn}))
	if path == "-" {
		return problems.Parse(stdin, logger)
	}
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return problems.Parse(f, logger)
}

func problemName(p problems.Problem, total int) string {
	if total == 1 && p.Line == 0 {
		return "problem"
	}
	return p.Name()
}

type jsonOutput struct {
	Label string `json:"label,omitempty"`
	kinematics.Resolution
}

func write(w io.Writer, format, label string, res kinematics.Resolution) error {
	var err error
	switch format {
	case "json":
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		err = enc.Encode(jsonOutput{Label: label, Resolution: res})
	case "latex":
		_, err = io.WriteString(w, render.AlignedBlock(res.Formulas()))
	case "markdown":
		_, err = io.WriteString(w, render.MarkdownTable(res.Solution, res.Known)+"\n$$\n"+render.AlignedBlock(res.Formulas())+"$$\n")
	default:
		_, err = io.WriteString(w, render.Summary(res))
	}
	return err
}

func listRecent(ctx context.Context, store *history.Store, n int, w io.Writer) error {
	recs, err := store.List(ctx, n)
	if err != nil {
		return err
	}
	if len(recs) == 0 {
		return errors.New("no resolutions recorded")
	}

	fmt.Fprintf(w, "%-36s  %-6s  %-14s  %s\n", "ID", "Source", "Known", "Time")
	for _, r := range recs {
		fmt.Fprintf(w, "%-36s  %-6s  %-14s  %s\n",
			r.ID, r.Source, r.Resolution.Combination.String(), r.CreatedAt.Format("2006-01-02T15:04:05Z"))
	}
	return nil
}
