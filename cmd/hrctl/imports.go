package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"unicode/utf8"

	"github.com/spf13/cobra"

	"github.com/JonMunkholm/hrpipe/internal/app"
	"github.com/JonMunkholm/hrpipe/internal/config"
	"github.com/JonMunkholm/hrpipe/internal/core"
	"github.com/JonMunkholm/hrpipe/internal/store"
)

func newTemplateCmd() *cobra.Command {
	var asJSON bool

	cmd := &cobra.Command{
		Use:       "template KIND",
		Short:     "Print the import column layout for a kind",
		Args:      cobra.ExactArgs(1),
		ValidArgs: kindNames(),
		RunE: func(cmd *cobra.Command, args []string) error {
			kind, err := core.ParseKind(args[0])
			if err != nil {
				return err
			}
			tmpl := kind.Template()
			if asJSON {
				return printJSON(cmd.OutOrStdout(), tmpl)
			}
			return tmpl.WriteCSV(cmd.OutOrStdout())
		},
	}
	cmd.Flags().BoolVar(&asJSON, "json", false, "Print JSON instead of CSV")
	return cmd
}

type importOptions struct {
	kind        string
	file        string
	delimiter   string
	initiatedBy string
	dryRun      bool
}

func newImportCmd(root *rootOptions) *cobra.Command {
	var opts importOptions

	cmd := &cobra.Command{
		Use:   "import",
		Short: "Import a CSV file and print the resulting job",
		Long: `Import reads a delimited file with a header row and writes each row
independently. Rows that fail are listed in the job's errors; the command
only fails when the file itself cannot be processed.

With --dry-run nothing is written: rows are mapped and validated against
an in-memory store, with staff codes still resolved against the database.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runImport(cmd, root, opts)
		},
	}

	cmd.Flags().StringVar(&opts.kind, "kind", "", "Import kind: "+strings.Join(kindNames(), ", ")+" (required)")
	cmd.Flags().StringVar(&opts.file, "file", "", "Path of the file to import (required)")
	cmd.Flags().StringVar(&opts.delimiter, "delimiter", "", `Field delimiter, a single character or "tab" (default: IMPORT_DELIMITER)`)
	cmd.Flags().StringVar(&opts.initiatedBy, "as", os.Getenv("USER"), "Name recorded as the job's initiator")
	cmd.Flags().BoolVar(&opts.dryRun, "dry-run", false, "Validate rows without writing them")

	_ = cmd.MarkFlagRequired("kind")
	_ = cmd.MarkFlagRequired("file")

	return cmd
}

func runImport(cmd *cobra.Command, root *rootOptions, opts importOptions) error {
	ctx := cmd.Context()

	kind, err := core.ParseKind(opts.kind)
	if err != nil {
		return err
	}
	delim, err := cliDelimiter(opts.delimiter)
	if err != nil {
		return err
	}

	f, err := os.Open(opts.file)
	if err != nil {
		return err
	}
	defer f.Close()
	info, err := f.Stat()
	if err != nil {
		return err
	}

	svc, closeFn, err := importService(ctx, root, opts.dryRun)
	if err != nil {
		return err
	}
	defer closeFn()

	job, err := svc.Import(ctx, core.ImportRequest{
		Kind:        kind,
		FileName:    filepath.Base(opts.file),
		Body:        f,
		Size:        info.Size(),
		InitiatedBy: opts.initiatedBy,
		Delimiter:   delim,
	})
	if job != nil {
		if perr := printJSON(cmd.OutOrStdout(), job); perr != nil {
			return errors.Join(err, perr)
		}
	}
	if err != nil {
		return fmt.Errorf("%w [%s]", err, core.MapError(err).Code)
	}
	return nil
}

// importService builds the real service, or for a dry run one whose writes
// stay in memory.
func importService(ctx context.Context, root *rootOptions, dryRun bool) (*core.Service, func(), error) {
	if !dryRun {
		a, err := root.openApp(ctx)
		if err != nil {
			return nil, nil, err
		}
		return a.Imports, a.Close, nil
	}

	cfg, err := root.loadConfig()
	if err != nil {
		return nil, nil, err
	}
	pool, err := app.Connect(ctx, cfg.Database)
	if err != nil {
		return nil, nil, err
	}
	dry := app.NewDryRunStore(store.NewPostgres(pool))
	return core.NewService(dry, dry.Memory, nil, app.ServiceConfig(cfg)), pool.Close, nil
}

// cliDelimiter accepts the same spellings as IMPORT_DELIMITER. Empty means
// the configured default.
func cliDelimiter(s string) (rune, error) {
	if s == "" {
		return 0, nil
	}
	if s != "tab" && s != `\t` && utf8.RuneCountInString(s) != 1 {
		return 0, fmt.Errorf("--delimiter must be a single character or \"tab\", got %q", s)
	}
	d := (&config.ImportConfig{Delimiter: s}).DelimiterRune()
	if d == '\n' || d == '\r' || d == '"' || d == utf8.RuneError {
		return 0, fmt.Errorf("--delimiter %q is not usable", s)
	}
	return d, nil
}

func kindNames() []string {
	kinds := core.Kinds()
	names := make([]string, len(kinds))
	for i, k := range kinds {
		names[i] = k.String()
	}
	return names
}
