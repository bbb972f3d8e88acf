// Command sample is a small CoinGecko client built with apiclient.
//
// Run:
//
//	go run ./cmd/sample ping
//	go run ./cmd/sample price --ids bitcoin,ethereum --vs usd
//	go run ./cmd/sample describe --yaml
//
// COINGECKO_API_KEY is read from the environment or from --env-file.
package main

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"maps"
	"net/http"
	"os"
	"os/signal"
	"slices"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"github.com/bjaus/apiclient"
)

const defaultBaseURL = "https://api.coingecko.com/api/v3"

// PingResult is the /ping payload.
type PingResult struct {
	apiclient.Object
	GeckoSays string `json:"gecko_says" validate:"required"`
}

// PriceParams selects coins and quote currencies as comma-separated lists.
type PriceParams struct {
	IDs        string `query:"ids"`
	Currencies string `query:"vs_currencies"`
	MarketCap  bool   `query:"include_market_cap,omitempty"`
}

// Prices maps coin id to currency to price.
type Prices map[string]map[string]float64

var (
	Ping = apiclient.MustDeclare[apiclient.Void, PingResult](
		apiclient.WithVerb(http.MethodGet),
		apiclient.WithPath("/ping"),
	)

	GetPrice = apiclient.MustDeclare[PriceParams, Prices](
		apiclient.WithVerb(http.MethodGet),
		apiclient.WithPath("/simple/price"),
		apiclient.WithName("getSimplePrice"),
	)
)

type options struct {
	baseURL string
	config  string
	envFile string
	level   levelFlag
	verbose bool
}

// levelFlag is a zerolog level settable from the command line.
type levelFlag struct{ zerolog.Level }

var _ pflag.Value = (*levelFlag)(nil)

func (l *levelFlag) Set(s string) error {
	lvl, err := zerolog.ParseLevel(s)
	if err != nil {
		return err
	}
	l.Level = lvl
	return nil
}

func (l *levelFlag) Type() string { return "level" }

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	if err := newRootCmd().ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	opts := options{level: levelFlag{zerolog.InfoLevel}}

	root := &cobra.Command{
		Use:           "sample",
		Short:         "Query the CoinGecko API",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(*cobra.Command, []string) error {
			if err := godotenv.Load(opts.envFile); err != nil && !errors.Is(err, fs.ErrNotExist) {
				return fmt.Errorf("load env file: %w", err)
			}
			return nil
		},
	}

	flags := root.PersistentFlags()
	flags.StringVar(&opts.baseURL, "base-url", defaultBaseURL, "API base URL")
	flags.StringVar(&opts.config, "config", "", "YAML client config")
	flags.StringVar(&opts.envFile, "env-file", ".env", "dotenv file to load")
	flags.Var(&opts.level, "log-level", "log level (debug, info, warn, error)")
	flags.BoolVarP(&opts.verbose, "verbose", "v", false, "shorthand for --log-level=debug")

	root.AddCommand(newPingCmd(&opts), newPriceCmd(&opts), newDescribeCmd(&opts))
	return root
}

func newPingCmd(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "ping",
		Short: "Check API status",
		RunE: func(cmd *cobra.Command, _ []string) error {
			c, err := opts.client()
			if err != nil {
				return err
			}
			defer closeClient(c)

			res, err := Ping.Call(cmd.Context(), c, &apiclient.Void{})
			if err != nil {
				return err
			}
			_, err = fmt.Fprintln(cmd.OutOrStdout(), res.GeckoSays)
			return err
		},
	}
}

func newPriceCmd(opts *options) *cobra.Command {
	var (
		ids []string
		vs  []string
	)
	cmd := &cobra.Command{
		Use:   "price",
		Short: "Show simple prices",
		RunE: func(cmd *cobra.Command, _ []string) error {
			c, err := opts.client()
			if err != nil {
				return err
			}
			defer closeClient(c)

			prices, err := GetPrice.Call(cmd.Context(), c, &PriceParams{
				IDs:        strings.Join(ids, ","),
				Currencies: strings.Join(vs, ","),
			})
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			for _, id := range slices.Sorted(maps.Keys(*prices)) {
				for _, cur := range slices.Sorted(maps.Keys((*prices)[id])) {
					fmt.Fprintf(out, "%s\t%s\t%g\n", id, strings.ToUpper(cur), (*prices)[id][cur])
				}
			}
			return nil
		},
	}
	cmd.Flags().StringSliceVar(&ids, "ids", []string{"bitcoin"}, "coin ids")
	cmd.Flags().StringSliceVar(&vs, "vs", []string{"usd"}, "quote currencies")
	return cmd
}

func newDescribeCmd(opts *options) *cobra.Command {
	var asYAML bool
	cmd := &cobra.Command{
		Use:   "describe",
		Short: "Print an OpenAPI document for the declared methods",
		RunE: func(cmd *cobra.Command, _ []string) error {
			doc := apiclient.Describe(apiclient.DescribeInfo{
				Title:   "CoinGecko",
				Version: "v3",
				Servers: []string{opts.baseURL},
			}, Ping, GetPrice)
			if asYAML {
				return apiclient.WriteDescriptionYAML(cmd.OutOrStdout(), doc)
			}
			return apiclient.WriteDescription(cmd.OutOrStdout(), doc)
		},
	}
	cmd.Flags().BoolVar(&asYAML, "yaml", false, "write YAML instead of JSON")
	return cmd
}

func (o *options) client() (*apiclient.Client, error) {
	logger := zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.Kitchen}).
		Level(o.level.Level).
		With().Timestamp().Logger()
	if o.verbose {
		logger = logger.Level(zerolog.DebugLevel)
	}

	opts := []apiclient.Option{
		apiclient.WithLogger(logger),
		apiclient.WithErrorKey("error"),
		apiclient.WithGlobalFields(apiclient.RequestID()),
		apiclient.WithMiddleware(
			apiclient.Recovery(logger),
			apiclient.Logger(logger),
			apiclient.Retry(apiclient.RetryConfig{}),
		),
	}
	if key := os.Getenv("COINGECKO_API_KEY"); key != "" {
		opts = append(opts, apiclient.WithGlobalFields(apiclient.Header("x-cg-demo-api-key", key)))
	}

	if o.config == "" {
		return apiclient.New(o.baseURL, opts...)
	}
	cfg, err := apiclient.LoadConfig(o.config)
	if err != nil {
		return nil, err
	}
	if cfg.BaseURL == "" {
		cfg.BaseURL = o.baseURL
	}
	return apiclient.NewFromConfig(cfg, opts...)
}

func closeClient(c *apiclient.Client) {
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	_ = c.Close(ctx)
}
