package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"bookwatch/internal/config"
	appLog "bookwatch/internal/log"
	"bookwatch/internal/model"
	"bookwatch/internal/store"
	"bookwatch/internal/web"
)

const version = "0.3.0"

// flagConfig holds persistent CLI flag values.
type flagConfig struct {
	configPath string
	listen     string
	debug      bool
}

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	var flags flagConfig

	root := &cobra.Command{
		Use:          "bookwatch",
		Short:        "Watch a rental listing's availability calendar and report booking changes",
		Version:      version,
		SilenceUsage: true,
	}
	root.PersistentFlags().StringVar(&flags.configPath, "config", "/etc/bookwatch/config.yaml", "Path to config file")
	root.PersistentFlags().StringVar(&flags.listen, "listen", "", "HTTP listen address (overrides config if set)")
	root.PersistentFlags().BoolVar(&flags.debug, "debug", false, "Verbose development logging")

	root.AddCommand(
		&cobra.Command{
			Use:   "run",
			Short: "Poll on schedule and serve the HTTP API",
			RunE: func(cmd *cobra.Command, _ []string) error {
				return runDaemon(cmd.Context(), flags)
			},
		},
		&cobra.Command{
			Use:   "once",
			Short: "Run one pass, deliver any changes and exit",
			RunE: func(cmd *cobra.Command, _ []string) error {
				return runOnce(cmd.Context(), flags)
			},
		},
		&cobra.Command{
			Use:   "bookings",
			Short: "Print the stored bookings",
			RunE: func(cmd *cobra.Command, _ []string) error {
				return printBookings(cmd, flags)
			},
		},
	)
	return root
}

// setup loads the config and initializes logging.
func setup(flags flagConfig) (*config.Config, error) {
	conf, err := config.Load(flags.configPath)
	if err != nil {
		return nil, fmt.Errorf("load config %s: %w", flags.configPath, err)
	}

	// CLI --listen overrides config file listen if provided.
	if flags.listen != "" {
		conf.Listen = flags.listen
	}

	level := conf.LogLevel
	if flags.debug {
		level = "debug"
	}
	appLog.Init(flags.debug, level)

	appLog.Info("effective config",
		"version", version,
		"listen", conf.Listen,
		"timezone", conf.Timezone,
		"source_kind", conf.Source.Kind,
		"horizon_days", conf.Source.HorizonDays,
		"refresh", conf.Schedule.Refresh,
		"midnight", conf.Schedule.Midnight,
		"morning", conf.Schedule.Morning,
		"store", conf.Store.Path,
		"email", conf.Notify.Email != nil,
	)
	return conf, nil
}

// signalContext is canceled on SIGINT/SIGTERM.
func signalContext(parent context.Context) (context.Context, context.CancelFunc) {
	if parent == nil {
		parent = context.Background()
	}
	return signal.NotifyContext(parent, syscall.SIGINT, syscall.SIGTERM)
}

func runDaemon(parent context.Context, flags flagConfig) error {
	conf, err := setup(flags)
	if err != nil {
		return err
	}
	defer appLog.Sync()

	app, err := newApp(conf)
	if err != nil {
		return err
	}

	ctx, stop := signalContext(parent)
	defer stop()

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return app.monitor.Run(gctx, app.schedule)
	})
	if conf.Listen != "" {
		srv := web.NewServer(conf, app.monitor, app.registry)
		g.Go(func() error {
			return srv.ListenAndServe(gctx)
		})
	}

	err = g.Wait()
	appLog.Info("bookwatch exiting")
	return err
}

func runOnce(parent context.Context, flags flagConfig) error {
	conf, err := setup(flags)
	if err != nil {
		return err
	}
	defer appLog.Sync()

	app, err := newApp(conf)
	if err != nil {
		return err
	}

	ctx, stop := signalContext(parent)
	defer stop()

	err = app.monitor.Poll(ctx, false)
	app.monitor.Flush()
	return err
}

func printBookings(cmd *cobra.Command, flags flagConfig) error {
	conf, err := setup(flags)
	if err != nil {
		return err
	}

	bookings, err := store.NewFileStore(conf.Store.Path, conf.Store.Backups).Load()
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	if len(bookings) == 0 {
		fmt.Fprintln(out, "no bookings stored")
		return nil
	}

	guest := color.New(color.FgGreen)
	blocked := color.New(color.FgHiBlack)
	for _, b := range bookings {
		c := guest
		if b.IsBlockedOff {
			c = blocked
		}
		c.Fprintf(out, "%-36s  %s  %s  %2d nights  %s\n",
			b.ID, model.DateKey(b.CheckIn()), model.DateKey(b.CheckOut()), b.Nights(), kindLabel(b))
	}
	return nil
}

func kindLabel(b model.Booking) string {
	if b.IsBlockedOff {
		return "blocked-off"
	}
	return "guest"
}
