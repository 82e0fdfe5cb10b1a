// Command heredity loads a family CSV, imports it into the configured store,
// runs exact inference and prints each person's gene and trait posteriors.
//
// Usage:
//
//	heredity [-json] [-export] [-tables file.toml] [-workers n] data.csv
//
// Storage, blob and inference settings come from HEREDITY_* environment
// variables; flags override the tables file and worker count.
package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/sirupsen/logrus"

	"heredity/internal/blob"
	"heredity/internal/config"
	"heredity/internal/core"
	"heredity/internal/enumerate"
	"heredity/internal/pedigree"
	"heredity/internal/report"
	"heredity/plugins/evidence"
)

var exitFunc = os.Exit

func main() {
	code := cli(os.Args[1:], os.Stdout, os.Stderr)
	exitFunc(code)
}

func cli(args []string, stdout, stderr io.Writer) int {
	fs := flag.NewFlagSet("heredity", flag.ContinueOnError)
	fs.SetOutput(stderr)
	asJSON := fs.Bool("json", false, "print the report as JSON")
	export := fs.Bool("export", false, "write the report to the configured blob store")
	tablesPath := fs.String("tables", "", "population tables TOML file (overrides HEREDITY_TABLES_PATH)")
	workers := fs.Int("workers", 0, "enumeration workers (overrides HEREDITY_WORKERS)")
	fs.Usage = func() {
		fmt.Fprintln(stderr, "usage: heredity [flags] data.csv")
		fs.PrintDefaults()
	}
	if err := fs.Parse(args); err != nil {
		return 2
	}
	if fs.NArg() != 1 {
		fs.Usage()
		return 2
	}
	if *workers < 0 {
		fmt.Fprintf(stderr, "heredity: -workers must not be negative\n")
		return 2
	}

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(stderr, "heredity: %v\n", err)
		return 1
	}
	if *tablesPath != "" {
		cfg.Inference.TablesPath = *tablesPath
	}
	if *workers > 0 {
		cfg.Inference.Workers = *workers
	}

	opts := runOptions{dataPath: fs.Arg(0), asJSON: *asJSON, export: *export}
	if err := run(context.Background(), cfg, opts, stdout, stderr); err != nil {
		fmt.Fprintf(stderr, "heredity: %v\n", err)
		return 1
	}
	return 0
}

type runOptions struct {
	dataPath string
	asJSON   bool
	export   bool
}

func newLogger(level string, out io.Writer) (*logrus.Logger, error) {
	lvl, err := logrus.ParseLevel(level)
	if err != nil {
		return nil, err
	}
	logger := logrus.New()
	logger.SetOutput(out)
	logger.SetLevel(lvl)
	logger.SetFormatter(&logrus.TextFormatter{DisableTimestamp: true})
	return logger, nil
}

func run(ctx context.Context, cfg config.Config, opts runOptions, stdout, stderr io.Writer) (err error) {
	logger, err := newLogger(cfg.LogLevel, stderr)
	if err != nil {
		return err
	}
	tables, err := config.LoadTables(cfg.Inference.TablesPath)
	if err != nil {
		return err
	}
	people, err := pedigree.LoadFile(opts.dataPath)
	if err != nil {
		return err
	}

	store, err := core.OpenPersistentStore(ctx, cfg.Storage, core.NewDefaultRulesEngine())
	if err != nil {
		return fmt.Errorf("open %s store: %w", cfg.Storage.Driver, err)
	}
	if closer, ok := store.(io.Closer); ok {
		defer func() {
			if cerr := closer.Close(); cerr != nil && err == nil {
				err = fmt.Errorf("close store: %w", cerr)
			}
		}()
	}

	serviceOpts := []core.ServiceOption{
		core.WithLogger(core.NewLogrusLogger(logger)),
		core.WithTables(tables),
		core.WithInferenceOptions(enumerate.Options{
			Workers:   cfg.Inference.Workers,
			MaxPeople: cfg.Inference.MaxPeople,
		}),
	}
	if opts.export {
		blobs, err := blob.Open(ctx, cfg.Blob)
		if err != nil {
			return fmt.Errorf("open %s blob store: %w", cfg.Blob.Driver, err)
		}
		serviceOpts = append(serviceOpts, core.WithBlobStore(blobs))
	}
	svc := core.NewService(store, serviceOpts...)
	if _, err := svc.InstallPlugin(evidence.New(cfg.Inference.MaxPeople)); err != nil {
		return err
	}

	familyName := strings.TrimSuffix(filepath.Base(opts.dataPath), filepath.Ext(opts.dataPath))
	family, _, _, err := svc.ImportPedigree(ctx, familyName, people)
	if err != nil {
		return fmt.Errorf("import %s: %w", opts.dataPath, err)
	}
	rep, err := svc.RunInference(ctx, family.ID)
	if err != nil {
		return err
	}
	members, err := svc.Pedigree(ctx, family.ID)
	if err != nil {
		return err
	}

	doc := report.New(rep, members)
	if opts.asJSON {
		err = report.WriteJSON(stdout, doc)
	} else {
		err = report.WriteText(stdout, doc)
	}
	if err != nil {
		return fmt.Errorf("write report: %w", err)
	}

	if opts.export {
		info, err := svc.ExportReport(ctx, rep.ID)
		if err != nil {
			return err
		}
		fmt.Fprintf(stderr, "exported %s (%d bytes)\n", info.Key, info.Size)
	}
	return nil
}
