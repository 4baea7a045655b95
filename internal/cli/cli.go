// Package cli implements the porchcheck command: a one-shot weekend weather check for
// one or more towns, printed as text or JSON.
package cli

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/kjstillabower/hoosier-weekend-helper/internal/models"
	"github.com/kjstillabower/hoosier-weekend-helper/internal/resolver"
	"github.com/kjstillabower/hoosier-weekend-helper/internal/towns"
)

// Exit codes returned by Execute.
const (
	ExitOK       = 0
	ExitError    = 1
	ExitUsage    = 2
	ExitFallback = 3
)

const maxConcurrentResolutions = 6

// WeatherResolver is satisfied by *resolver.Resolver.
type WeatherResolver interface {
	Resolve(ctx context.Context, loc models.Location) resolver.Outcome
}

// Dependencies are the collaborators injected into the command tree.
type Dependencies struct {
	Resolver WeatherResolver
	Version  string
}

type exitError struct {
	code int
	err  error
}

func (e *exitError) Error() string {
	if e.err == nil {
		return ""
	}
	return e.err.Error()
}

func (e *exitError) Unwrap() error { return e.err }

type options struct {
	all         bool
	output      string
	requireLive bool
}

// NewRootCommand builds the porchcheck command.
func NewRootCommand(deps Dependencies) *cobra.Command {
	opts := &options{}
	cmd := &cobra.Command{
		Use:           "porchcheck [town...]",
		Short:         "Check whether this weekend's weather is porch-worthy",
		Long:          "Resolves current conditions from weather.gov for Central Indiana towns and reports whether it is a good time to be outside.",
		Version:       deps.Version,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(cmd, deps, opts, args)
		},
	}
	cmd.SetFlagErrorFunc(func(_ *cobra.Command, err error) error {
		return &exitError{code: ExitUsage, err: err}
	})
	cmd.Flags().BoolVarP(&opts.all, "all", "a", false, "check every supported town")
	cmd.Flags().StringVarP(&opts.output, "output", "o", "text", "output format: text or json")
	cmd.Flags().BoolVar(&opts.requireLive, "require-live", false, "exit 3 when any report is a fallback")
	return cmd
}

// Execute runs the command with args and returns a process exit code.
func Execute(ctx context.Context, args []string, deps Dependencies, stdout, stderr io.Writer) int {
	cmd := NewRootCommand(deps)
	cmd.SetOut(stdout)
	cmd.SetErr(stderr)
	if args == nil {
		// cobra falls back to os.Args when args is nil.
		args = []string{}
	}
	cmd.SetArgs(args)

	err := cmd.ExecuteContext(ctx)
	if err == nil {
		return ExitOK
	}
	code := ExitError
	var controlled *exitError
	if errors.As(err, &controlled) {
		code = controlled.code
	}
	if msg := err.Error(); msg != "" {
		_, _ = fmt.Fprintln(stderr, msg)
	}
	return code
}

func run(cmd *cobra.Command, deps Dependencies, opts *options, args []string) error {
	if deps.Resolver == nil {
		return errors.New("porchcheck: no resolver configured")
	}
	format := strings.ToLower(strings.TrimSpace(opts.output))
	if format != "text" && format != "json" {
		return &exitError{code: ExitUsage, err: fmt.Errorf("unsupported output %q (want text or json)", opts.output)}
	}

	selected, err := selectTowns(opts.all, args)
	if err != nil {
		return &exitError{code: ExitUsage, err: err}
	}

	reports, err := resolveAll(cmd.Context(), deps.Resolver, selected)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	if format == "json" {
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		if err := enc.Encode(reports); err != nil {
			return fmt.Errorf("write json: %w", err)
		}
	} else if err := writeText(out, reports); err != nil {
		return fmt.Errorf("write text: %w", err)
	}

	if opts.requireLive {
		for _, r := range reports {
			if r.IsFallback {
				return &exitError{code: ExitFallback}
			}
		}
	}
	return nil
}

func selectTowns(all bool, args []string) ([]models.Town, error) {
	if all {
		if len(args) > 0 {
			return nil, errors.New("--all cannot be combined with town arguments")
		}
		return towns.All(), nil
	}
	if len(args) == 0 {
		return nil, fmt.Errorf("name at least one town or pass --all (towns: %s)", strings.Join(towns.Names(), ", "))
	}
	selected := make([]models.Town, 0, len(args))
	for _, name := range args {
		t, err := towns.Lookup(name)
		if err != nil {
			return nil, fmt.Errorf("%q: %w", name, err)
		}
		selected = append(selected, t)
	}
	return selected, nil
}

// resolveAll resolves each town concurrently; each resolution is independent and
// results keep argument order.
func resolveAll(ctx context.Context, res WeatherResolver, selected []models.Town) ([]models.ConditionsReport, error) {
	reports := make([]models.ConditionsReport, len(selected))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(maxConcurrentResolutions)
	for i, t := range selected {
		i, t := i, t
		g.Go(func() error {
			reports[i] = res.Resolve(gctx, t.Location).Report
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return reports, nil
}

func writeText(w io.Writer, reports []models.ConditionsReport) error {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	_, _ = fmt.Fprintln(tw, "TOWN\tTEMP\tCONDITIONS\tICON\tPORCH\tSOURCE")
	for _, r := range reports {
		porch := "no"
		if r.OutdoorFavorable {
			porch = "yes"
		}
		source := "live"
		if r.IsFallback {
			source = "fallback"
		}
		_, _ = fmt.Fprintf(tw, "%s\t%d°F\t%s\t%s\t%s\t%s\n", r.Location, r.TemperatureFahrenheit, r.ShortDescription, r.Icon, porch, source)
	}
	return tw.Flush()
}
