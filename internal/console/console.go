// Package console provides an interactive operator shell over the query
// façade. It is intended for ad-hoc inspection of a live data directory:
// listing registered series, running aggregate queries, and exporting
// filtered samples to Parquet.
package console

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"sort"
	"strings"

	"github.com/c-bata/go-prompt"
	"golang.org/x/term"

	"github.com/lumohealth/vitalstore/internal/metrics/archive"
	"github.com/lumohealth/vitalstore/internal/metrics/query"
)

// Console is the interactive shell.
type Console struct {
	svc      *query.Service
	exporter *archive.Exporter
	out      *os.File
}

// New creates a console bound to the given service.
func New(svc *query.Service, exporter *archive.Exporter) *Console {
	return &Console{svc: svc, exporter: exporter, out: os.Stdout}
}

// Run starts the read-eval loop. It requires an interactive terminal.
func (c *Console) Run() error {
	if !term.IsTerminal(int(os.Stdin.Fd())) {
		return fmt.Errorf("console requires an interactive terminal")
	}

	fmt.Fprintln(c.out, "vitalstore console - type 'help' for commands")
	p := prompt.New(
		c.execute,
		c.complete,
		prompt.OptionTitle("vitalstore"),
		prompt.OptionPrefix("vitalstore> "),
	)
	p.Run()
	return nil
}

var commands = []prompt.Suggest{
	{Text: "series", Description: "List registered metric series"},
	{Text: "query", Description: "Run an aggregate query: query user=<uuid> [series=...] [interval=...] [agg_func=...] [start=...] [end=...] [session=<uuid>]"},
	{Text: "export", Description: "Export filtered samples to Parquet: export user=<uuid> [series=...] [start=...] [end=...]"},
	{Text: "stats", Description: "Show service counters"},
	{Text: "help", Description: "Show available commands"},
	{Text: "exit", Description: "Leave the console"},
}

var queryArgs = []prompt.Suggest{
	{Text: "user=", Description: "User UUID (required)"},
	{Text: "session=", Description: "Restrict to one session"},
	{Text: "series=", Description: "Comma-separated names or globs, e.g. session.urine.*"},
	{Text: "interval=", Description: "minute, week or month"},
	{Text: "agg_func=", Description: "avg, max, min, count, p50, p90, p95 or p99"},
	{Text: "start=", Description: "Window start (RFC3339 or date)"},
	{Text: "end=", Description: "Window end (RFC3339 or date)"},
}

func (c *Console) complete(d prompt.Document) []prompt.Suggest {
	text := d.TextBeforeCursor()
	if !strings.Contains(text, " ") {
		return prompt.FilterHasPrefix(commands, d.GetWordBeforeCursor(), true)
	}
	cmd := strings.Fields(text)[0]
	if cmd == "query" || cmd == "export" {
		return prompt.FilterHasPrefix(queryArgs, d.GetWordBeforeCursor(), true)
	}
	return nil
}

func (c *Console) execute(line string) {
	fields := strings.Fields(line)
	if len(fields) == 0 {
		return
	}

	ctx := context.Background()

	var err error
	switch fields[0] {
	case "help":
		c.printHelp()
	case "series":
		err = c.listSeries(ctx)
	case "query":
		err = c.runQuery(ctx, fields[1:])
	case "export":
		err = c.runExport(ctx, fields[1:])
	case "stats":
		c.printStats()
	case "exit", "quit":
		fmt.Fprintln(c.out, "bye")
		os.Exit(0)
	default:
		fmt.Fprintf(c.out, "unknown command %q, type 'help'\n", fields[0])
	}
	if err != nil {
		fmt.Fprintf(c.out, "error: %v\n", err)
	}
}

func (c *Console) printHelp() {
	for _, cmd := range commands {
		fmt.Fprintf(c.out, "  %-8s %s\n", cmd.Text, cmd.Description)
	}
}

func (c *Console) listSeries(ctx context.Context) error {
	metricTypes, err := c.svc.ListSeries(ctx)
	if err != nil {
		return err
	}
	for _, mt := range metricTypes {
		fmt.Fprintf(c.out, "  %-32s %s\n", mt.Series, mt.Description)
	}
	fmt.Fprintf(c.out, "%d series registered\n", len(metricTypes))
	return nil
}

func (c *Console) runQuery(ctx context.Context, args []string) error {
	params, err := parseParams(args)
	if err != nil {
		return err
	}
	result, err := c.svc.Query(ctx, params)
	if err != nil {
		return err
	}
	encoded, err := json.MarshalIndent(result, "", "  ")
	if err != nil {
		return err
	}
	fmt.Fprintln(c.out, string(encoded))
	return nil
}

func (c *Console) runExport(ctx context.Context, args []string) error {
	params, err := parseParams(args)
	if err != nil {
		return err
	}
	samples, err := c.svc.SamplesForExport(ctx, params)
	if err != nil {
		return err
	}
	path, err := c.exporter.ExportSamples(samples)
	if err != nil {
		return err
	}
	fmt.Fprintf(c.out, "wrote %d samples to %s\n", len(samples), path)
	return nil
}

func (c *Console) printStats() {
	stats := c.svc.Stats()
	fmt.Fprintf(c.out, "  queries executed:  %d\n", stats.QueriesExecuted)
	fmt.Fprintf(c.out, "  rows returned:     %d\n", stats.RowsReturned)
	fmt.Fprintf(c.out, "  ingests accepted:  %d\n", stats.IngestsAccepted)
	fmt.Fprintf(c.out, "  ingests rejected:  %d\n", stats.IngestsRejected)
}

// parseParams turns key=value arguments into query parameters.
func parseParams(args []string) (query.Params, error) {
	var p query.Params
	for _, arg := range args {
		key, value, ok := strings.Cut(arg, "=")
		if !ok {
			return p, fmt.Errorf("expected key=value, got %q", arg)
		}
		switch key {
		case "user":
			p.UserID = value
		case "session":
			p.SessionID = value
		case "series":
			p.Series = value
		case "interval":
			p.Interval = value
		case "agg_func":
			p.AggFunc = value
		case "start":
			p.StartTime = value
		case "end":
			p.EndTime = value
		default:
			return p, fmt.Errorf("unknown parameter %q (known: %s)", key, strings.Join(knownParams(), ", "))
		}
	}
	return p, nil
}

func knownParams() []string {
	names := make([]string, 0, len(queryArgs))
	for _, a := range queryArgs {
		names = append(names, strings.TrimSuffix(a.Text, "="))
	}
	sort.Strings(names)
	return names
}
