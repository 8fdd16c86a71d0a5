// Command custodyd runs the uniform custody service and its maintenance tasks.
package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"custodycore/internal/adapters/httpapi"
	"custodycore/internal/blob"
	"custodycore/internal/config"
	"custodycore/internal/core"
	"custodycore/internal/export"
	"custodycore/internal/logging"
	"custodycore/pkg/domain"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/urfave/cli/v2"
)

func main() {
	if err := newApp(os.Stdout).Run(os.Args); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newApp(stdout io.Writer) *cli.App {
	return &cli.App{
		Name:   "custodyd",
		Usage:  "uniform custody service",
		Writer: stdout,
		Flags: []cli.Flag{
			&cli.StringSliceFlag{Name: "env-file", Usage: "dotenv files to load before reading the environment"},
		},
		Commands: []*cli.Command{
			{
				Name:  "serve",
				Usage: "serve the HTTP API",
				Flags: []cli.Flag{
					&cli.StringFlag{Name: "addr", Usage: "listen address (overrides CUSTODY_HTTP_ADDR)"},
				},
				Action: serve,
			},
			{
				Name:   "seed",
				Usage:  "add the sample employees when none exist",
				Action: seed,
			},
			{
				Name:   "backup",
				Usage:  "write a JSON backup of the document to the blob store",
				Action: backup,
				Subcommands: []*cli.Command{
					{
						Name:   "list",
						Usage:  "list stored backups",
						Action: listBackups,
					},
					{
						Name:      "url",
						Usage:     "print a time-limited download link for a backup",
						ArgsUsage: "NAME",
						Flags: []cli.Flag{
							&cli.DurationFlag{Name: "expiry", Value: core.DefaultBackupURLExpiry, Usage: "link lifetime"},
						},
						Action: backupURL,
					},
					{
						Name:      "delete",
						Usage:     "delete a backup",
						ArgsUsage: "NAME",
						Action:    deleteBackup,
					},
				},
			},
			{
				Name:  "export",
				Usage: "write a report as CSV or XLSX",
				Flags: []cli.Flag{
					&cli.StringFlag{Name: "report", Value: export.ReportInventory, Usage: "employees|inventory|movements"},
					&cli.StringFlag{Name: "format", Value: string(export.FormatCSV), Usage: "csv|xlsx"},
					&cli.StringFlag{Name: "out", Value: "-", Usage: "output file, - for stdout"},
				},
				Action: exportReport,
			},
		},
	}
}

// runtime holds the collaborators shared by every command.
type runtime struct {
	cfg      *config.Config
	logger   *logging.Logger
	backend  domain.DocumentStore
	svc      *core.Service
	registry *prometheus.Registry
	closers  []io.Closer
}

func bootstrap(c *cli.Context) (*runtime, error) {
	cfg := config.Load(c.StringSlice("env-file")...)
	logger, err := logging.New(cfg.Logger)
	if err != nil {
		return nil, err
	}
	backend, err := core.OpenDocumentStore(c.Context, cfg.Storage, cfg.Blob)
	if err != nil {
		return nil, fmt.Errorf("open storage: %w", err)
	}

	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	metrics, tracer, closers, err := observers(cfg.Observe, registry)
	if err != nil {
		_ = backend.Close()
		return nil, err
	}

	opts := []core.Option{
		core.WithLogger(logger.Named("core")),
		core.WithMetricsRecorder(metrics),
		core.WithTracer(tracer),
		core.WithAuditRecorder(core.NewLogAuditRecorder(logger.Named("audit"))),
		core.WithLocker(core.LockerFor(backend, cfg.Custody.SignLockTTL)),
		core.WithPhoneRegion(cfg.Custody.PhoneRegion),
		core.WithLowStockThreshold(cfg.Custody.LowStockThreshold),
		core.WithMovementLimit(cfg.Custody.MovementLimit),
		core.WithLinkTTL(cfg.Custody.LinkTTL),
	}
	store := core.NewStore(c.Context, backend, opts...)
	return &runtime{
		cfg:      cfg,
		logger:   logger,
		backend:  backend,
		svc:      core.NewService(store, opts...),
		registry: registry,
		closers:  closers,
	}, nil
}

// observers builds the metrics recorder and tracer selected by
// CUSTODY_METRICS_BACKEND and CUSTODY_TRACER.
func observers(cfg config.ObserveConfig, registry *prometheus.Registry) (core.MetricsRecorder, core.Tracer, []io.Closer, error) {
	var metrics core.MetricsRecorder
	switch cfg.Metrics {
	case "", "prometheus":
		rec, err := core.NewPrometheusMetricsRecorder(registry)
		if err != nil {
			return nil, nil, nil, err
		}
		metrics = rec
	case "expvar":
		metrics = core.NewExpvarMetricsRecorder("")
	default:
		return nil, nil, nil, fmt.Errorf("unknown metrics backend %q", cfg.Metrics)
	}

	switch cfg.Tracer {
	case "", "otel":
		return metrics, core.NewOTelTracer(nil), nil, nil
	case "none":
		return metrics, nil, nil, nil
	case "json":
		if cfg.TraceFile == "" {
			return metrics, core.NewJSONTracer(os.Stderr), nil, nil
		}
		f, err := os.OpenFile(cfg.TraceFile, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
		if err != nil {
			return nil, nil, nil, fmt.Errorf("open trace file: %w", err)
		}
		return metrics, core.NewJSONTracer(f), []io.Closer{f}, nil
	}
	return nil, nil, nil, fmt.Errorf("unknown tracer %q", cfg.Tracer)
}

func (rt *runtime) close() {
	for _, c := range rt.closers {
		_ = c.Close()
	}
	if err := rt.backend.Close(); err != nil {
		rt.logger.Warn("close storage", "error", err)
	}
	_ = rt.logger.Sync()
}

func serve(c *cli.Context) error {
	rt, err := bootstrap(c)
	if err != nil {
		return err
	}
	defer rt.close()

	if rt.cfg.Custody.SeedSampleData {
		if _, err := rt.svc.SeedIfEmpty(c.Context); err != nil {
			return err
		}
	}
	blobs, err := blob.Open(c.Context, rt.cfg.Blob)
	if err != nil {
		rt.logger.Warn("blob store unavailable, backups disabled", "error", err)
		blobs = nil
	}

	addr := rt.cfg.Server.HTTPAddr
	if a := c.String("addr"); a != "" {
		addr = a
	}
	srv := &http.Server{
		Addr: addr,
		Handler: httpapi.NewRouter(httpapi.Options{
			Service:        rt.svc,
			Blobs:          blobs,
			Logger:         rt.logger.Named("http"),
			Gatherer:       rt.registry,
			AllowedOrigins: rt.cfg.Server.AllowedOrigins,
			PublicBaseURL:  rt.cfg.Server.PublicBaseURL,
		}),
		ReadHeaderTimeout: 10 * time.Second,
	}

	ctx, stop := signal.NotifyContext(c.Context, os.Interrupt, syscall.SIGTERM)
	defer stop()
	errCh := make(chan error, 1)
	go func() {
		rt.logger.Info("custodyd listening", "addr", addr, "driver", rt.backend.Driver())
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	rt.logger.Info("custodyd shutting down")
	return srv.Shutdown(shutdownCtx)
}

func seed(c *cli.Context) error {
	rt, err := bootstrap(c)
	if err != nil {
		return err
	}
	defer rt.close()
	seeded, err := rt.svc.SeedIfEmpty(c.Context)
	if err != nil {
		return err
	}
	if seeded {
		fmt.Fprintln(c.App.Writer, "sample employees added")
	} else {
		fmt.Fprintln(c.App.Writer, "employees already present, nothing seeded")
	}
	return nil
}

// withBlobs bootstraps the runtime and opens the configured blob store.
func withBlobs(c *cli.Context, fn func(rt *runtime, blobs blob.Store) error) error {
	rt, err := bootstrap(c)
	if err != nil {
		return err
	}
	defer rt.close()
	blobs, err := blob.Open(c.Context, rt.cfg.Blob)
	if err != nil {
		return fmt.Errorf("open blob store: %w", err)
	}
	return fn(rt, blobs)
}

func backup(c *cli.Context) error {
	return withBlobs(c, func(rt *runtime, blobs blob.Store) error {
		info, err := rt.svc.Backup(c.Context, blobs)
		if err != nil {
			return err
		}
		fmt.Fprintf(c.App.Writer, "backup written to %s (%d bytes)\n", info.Key, info.Size)
		return nil
	})
}

func listBackups(c *cli.Context) error {
	return withBlobs(c, func(rt *runtime, blobs blob.Store) error {
		infos, err := rt.svc.ListBackups(c.Context, blobs)
		if err != nil {
			return err
		}
		if len(infos) == 0 {
			fmt.Fprintln(c.App.Writer, "no backups")
			return nil
		}
		for _, info := range infos {
			fmt.Fprintf(c.App.Writer, "%s\t%d\t%s\n", strings.TrimPrefix(info.Key, core.BackupPrefix), info.Size, info.LastModified.Format(time.RFC3339))
		}
		return nil
	})
}

func backupName(c *cli.Context) (string, error) {
	if c.NArg() != 1 {
		return "", errors.New("expected exactly one backup NAME")
	}
	return c.Args().First(), nil
}

func backupURL(c *cli.Context) error {
	name, err := backupName(c)
	if err != nil {
		return err
	}
	return withBlobs(c, func(rt *runtime, blobs blob.Store) error {
		u, err := rt.svc.BackupURL(c.Context, blobs, name, c.Duration("expiry"))
		if errors.Is(err, blob.ErrUnsupported) {
			return fmt.Errorf("the %s blob driver cannot sign download links", blobs.Driver())
		}
		if err != nil {
			return err
		}
		fmt.Fprintln(c.App.Writer, u)
		return nil
	})
}

func deleteBackup(c *cli.Context) error {
	name, err := backupName(c)
	if err != nil {
		return err
	}
	return withBlobs(c, func(rt *runtime, blobs blob.Store) error {
		existed, err := rt.svc.DeleteBackup(c.Context, blobs, name)
		if err != nil {
			return err
		}
		if !existed {
			return fmt.Errorf("backup %s not found", name)
		}
		fmt.Fprintf(c.App.Writer, "backup %s deleted\n", name)
		return nil
	})
}

func exportReport(c *cli.Context) (err error) {
	rt, err := bootstrap(c)
	if err != nil {
		return err
	}
	defer rt.close()

	table, err := export.Build(c.String("report"), rt.svc.Document(), rt.svc.LowStockThreshold())
	if err != nil {
		return err
	}
	out := c.App.Writer
	if path := c.String("out"); path != "-" {
		f, err := os.Create(path)
		if err != nil {
			return err
		}
		defer func() {
			if cerr := f.Close(); err == nil {
				err = cerr
			}
		}()
		out = f
	}
	return export.Write(out, export.Format(c.String("format")), table)
}
