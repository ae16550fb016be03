package main

import (
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/couchcryptid/geode/internal/adapter/nominatim"
	"github.com/couchcryptid/geode/internal/adapter/openmeteo"
	"github.com/couchcryptid/geode/internal/config"
	"github.com/couchcryptid/geode/internal/domain"
	"github.com/couchcryptid/geode/internal/expert"
	"github.com/couchcryptid/geode/internal/observability"
	"github.com/couchcryptid/geode/internal/plan"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/segmentio/encoding/json"
	"github.com/spf13/cobra"
)

// errPlanFailed makes the process exit non-zero after the error result has
// been printed.
var errPlanFailed = errors.New("plan failed")

type options struct {
	pretty bool
}

func newRootCmd() *cobra.Command {
	opts := &options{}
	root := &cobra.Command{
		Use:           "geodectl",
		Short:         "Run geode plans and look up places",
		Long:          `geodectl executes a plan file against the configured location and field providers and prints the result document.`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().BoolVarP(&opts.pretty, "pretty", "p", false, "Indent JSON output")

	root.AddCommand(newRunCmd(opts), newLocateCmd(opts), newOpsCmd())
	return root
}

func newRunCmd(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "run [plan-file]",
		Short: "Execute a plan and print its result",
		Long:  `Execute the plan read from plan-file, or from stdin when the file is "-" or omitted.`,
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			path := "-"
			if len(args) == 1 {
				path = args[0]
			}
			data, err := readInput(cmd.InOrStdin(), path)
			if err != nil {
				return err
			}
			p, err := plan.Parse(data)
			if err != nil {
				return err
			}

			env, err := newEnv(cmd.ErrOrStderr())
			if err != nil {
				return err
			}
			res := env.executor.Execute(cmd.Context(), p)
			if err := writeJSON(cmd.OutOrStdout(), res, opts.pretty); err != nil {
				return err
			}
			if res.Status == plan.StatusError {
				return fmt.Errorf("%w: %s at step %q", errPlanFailed, res.Error.Kind, res.Error.Step)
			}
			return nil
		},
	}
}

func newLocateCmd(opts *options) *cobra.Command {
	var point bool
	cmd := &cobra.Command{
		Use:   "locate <place name>",
		Short: "Resolve a place name to a location patch",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			env, err := newEnv(cmd.ErrOrStderr())
			if err != nil {
				return err
			}
			name := strings.Join(args, " ")
			locate := expert.PatchLocation
			if point {
				locate = expert.PointLocation
			}
			patch, err := locate(cmd.Context(), env.locator, name)
			if err != nil {
				return err
			}
			return writeJSON(cmd.OutOrStdout(), patch.View(), opts.pretty)
		},
	}
	cmd.Flags().BoolVar(&point, "point", false, "Return only the center point instead of the boundary")
	return cmd
}

func newOpsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "ops",
		Short: "List plan operators and field variables",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			w := cmd.OutOrStdout()
			fmt.Fprintln(w, "operators:")
			for _, op := range plan.Ops() {
				fmt.Fprintf(w, "  %s\n", op)
			}
			fmt.Fprintln(w, "variables:")
			for _, name := range domain.VariableNames() {
				v, _ := domain.LookupVariable(name)
				fmt.Fprintf(w, "  %-22s %-12s %s\n", v.Name, v.Family, v.Title())
			}
			return nil
		},
	}
}

// env is the provider wiring shared by the subcommands.
type env struct {
	locator  domain.Locator
	executor *plan.Executor
}

func newEnv(logOut io.Writer) (*env, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}
	logger := observability.NewLoggerTo(logOut, cfg)
	metrics := observability.NewMetricsWith(prometheus.NewRegistry())

	locator := nominatim.NewCachedLocator(
		nominatim.NewClient(cfg.NominatimURL, cfg.NominatimUserAgent, cfg.NominatimTimeout, metrics, logger),
		cfg.NominatimCacheSize, metrics)
	fields := openmeteo.NewClient(openmeteo.Endpoints{
		Forecast:   cfg.OpenMeteoForecastURL,
		AirQuality: cfg.OpenMeteoAirQualityURL,
		Elevation:  cfg.OpenMeteoElevationURL,
	}, cfg.OpenMeteoTimeout, metrics, logger)

	return &env{
		locator: locator,
		executor: plan.NewExecutor(locator, fields, plan.Config{
			GridSize:     cfg.GridSize,
			FieldSamples: cfg.FieldSamples,
		}, logger, metrics),
	}, nil
}

func readInput(stdin io.Reader, path string) ([]byte, error) {
	if path == "-" {
		return io.ReadAll(stdin)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read plan: %w", err)
	}
	return data, nil
}

func writeJSON(w io.Writer, v any, pretty bool) error {
	var (
		data []byte
		err  error
	)
	if pretty {
		data, err = json.MarshalIndent(v, "", "  ")
	} else {
		data, err = json.Marshal(v)
	}
	if err != nil {
		return fmt.Errorf("encode output: %w", err)
	}
	_, err = fmt.Fprintln(w, string(data))
	return err
}
