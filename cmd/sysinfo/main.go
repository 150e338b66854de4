// Copyright Antimetal, Inc. All rights reserved.
//
// Use of this source code is governed by a source available license that can be found in the
// LICENSE file or at:
// https://polyformproject.org/wp-content/uploads/2020/06/PolyForm-Shield-1.0.0.txt

// Command sysinfo collects a host snapshot and prints it as a login banner,
// a JSON or YAML document, or Prometheus metrics.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"os/user"
	"syscall"

	"github.com/go-logr/logr"
	"github.com/go-logr/zapr"
	"github.com/urfave/cli/v3"
	"go.uber.org/zap"

	"github.com/antimetal/sysinfo/internal/banner"
	"github.com/antimetal/sysinfo/internal/config"
	"github.com/antimetal/sysinfo/internal/metrics"
	"github.com/antimetal/sysinfo/internal/output"
	"github.com/antimetal/sysinfo/pkg/snapshot"
	"github.com/antimetal/sysinfo/pkg/sysinfo"
)

const name = "sysinfo"

var (
	// overridden during build with ldflags
	version = "dev"

	setupLog logr.Logger
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := rootCmd().Run(ctx, os.Args); err != nil {
		fmt.Fprintf(os.Stderr, "%s: %v\n", name, err)
		os.Exit(1)
	}
}

func rootCmd() *cli.Command {
	return &cli.Command{
		Name:    name,
		Usage:   "Collect a point-in-time snapshot of host telemetry",
		Version: version,
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "config",
				Usage:   "Path to a YAML or JSON config file",
				Sources: cli.EnvVars("SYSINFO_CONFIG"),
			},
			&cli.BoolFlag{
				Name:    "verbose",
				Aliases: []string{"v"},
				Usage:   "Enable verbose logging",
			},
			&cli.StringFlag{
				Name:  "host-proc",
				Usage: "Host procfs mount (overrides HOST_PROC)",
			},
			&cli.StringFlag{
				Name:  "host-sys",
				Usage: "Host sysfs mount (overrides HOST_SYS)",
			},
			&cli.StringFlag{
				Name:  "host-etc",
				Usage: "Host /etc directory (overrides HOST_ETC)",
			},
			&cli.DurationFlag{
				Name:  "sample-interval",
				Usage: "Wait between the two /proc/stat reads",
			},
			&cli.BoolFlag{
				Name:  "no-color",
				Usage: "Disable banner colors",
			},
		},
		Before: func(ctx context.Context, cmd *cli.Command) (context.Context, error) {
			if cmd.Bool("verbose") {
				zapLog, err := zap.NewDevelopment()
				if err != nil {
					return ctx, fmt.Errorf("failed to create logger: %w", err)
				}
				setupLog = zapr.NewLogger(zapLog)
			} else {
				setupLog = logr.Discard()
			}
			return ctx, nil
		},
		Commands: []*cli.Command{
			bannerCmd(),
			snapshotCmd(),
			metricsCmd(),
		},
	}
}

func bannerCmd() *cli.Command {
	return &cli.Command{
		Name:  "banner",
		Usage: "Print the login banner",
		Flags: []cli.Flag{
			&cli.IntFlag{
				Name:  "width",
				Usage: "Width of the section rules (overrides the config file)",
			},
		},
		Action: func(ctx context.Context, cmd *cli.Command) error {
			cfg, err := loadConfig(cmd)
			if err != nil {
				return err
			}
			opts := bannerOptions(cfg)
			if w := cmd.Int("width"); w > 0 {
				opts.Width = int(w)
			}

			return withSnapshot(ctx, cfg, func(snap *sysinfo.Snapshot) error {
				return banner.Render(os.Stdout, snap, opts)
			})
		},
	}
}

func snapshotCmd() *cli.Command {
	return &cli.Command{
		Name:  "snapshot",
		Usage: "Print the snapshot as a document",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "format",
				Aliases: []string{"f"},
				Usage:   fmt.Sprintf("Output format %v", output.SupportedFormats()),
				Value:   string(output.FormatJSON),
			},
		},
		Action: func(ctx context.Context, cmd *cli.Command) error {
			format := output.Format(cmd.String("format"))
			if format.IsUnknown() {
				return fmt.Errorf("unknown output format: %q", format)
			}

			cfg, err := loadConfig(cmd)
			if err != nil {
				return err
			}
			w, err := output.NewWriter(setupLog, format, os.Stdout)
			if err != nil {
				return err
			}
			w.Banner = bannerOptions(cfg)

			return withSnapshot(ctx, cfg, w.Serialize)
		},
	}
}

func metricsCmd() *cli.Command {
	return &cli.Command{
		Name:  "metrics",
		Usage: "Print Prometheus metrics or write them for the node-exporter textfile collector",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:  "textfile",
				Usage: "Write metrics atomically to this .prom file instead of stdout",
			},
		},
		Action: func(ctx context.Context, cmd *cli.Command) error {
			cfg, err := loadConfig(cmd)
			if err != nil {
				return err
			}

			return withSnapshot(ctx, cfg, func(snap *sysinfo.Snapshot) error {
				e := metrics.NewExporter(setupLog)
				e.Observe(snap)
				if path := cmd.String("textfile"); path != "" {
					return e.WriteTextfile(path)
				}
				return e.WriteText(os.Stdout)
			})
		},
	}
}

func loadConfig(cmd *cli.Command) (config.Config, error) {
	return config.Load(setupLog, cmd.String("config"), config.Overrides{
		HostProcPath:   cmd.String("host-proc"),
		HostSysPath:    cmd.String("host-sys"),
		HostEtcPath:    cmd.String("host-etc"),
		SampleInterval: cmd.Duration("sample-interval"),
		NoColor:        cmd.Bool("no-color"),
	})
}

// withSnapshot collects one snapshot, hands it to fn and releases it.
func withSnapshot(ctx context.Context, cfg config.Config, fn func(*sysinfo.Snapshot) error) error {
	c, err := snapshot.NewCollector(setupLog, cfg.Collection)
	if err != nil {
		return err
	}

	snap, err := c.Collect(ctx)
	if err != nil {
		return fmt.Errorf("failed to collect snapshot: %w", err)
	}
	defer func() {
		if _, err := snapshot.Release(snap); err != nil {
			setupLog.Error(err, "failed to release snapshot")
		}
	}()

	return fn(snap)
}

func bannerOptions(cfg config.Config) banner.Options {
	return banner.Options{
		Color:        cfg.Banner.Color,
		Width:        cfg.Banner.Width,
		Username:     currentUser(),
		MaxProcesses: maxProcesses(),
	}
}

func currentUser() string {
	if u, err := user.Current(); err == nil && u.Username != "" {
		return u.Username
	}
	return os.Getenv("USER")
}
