package cli

import (
	"fmt"
	"io"
	"log/slog"
	"slices"

	"github.com/NgigiN/groupbanker/internal/config"
	"github.com/NgigiN/groupbanker/internal/storage"
	"github.com/spf13/cobra"
)

// RootOptions holds global flags for all commands.
type RootOptions struct {
	DBPath        string
	SchemaVersion int
	Verbose       bool
	Format        string // "json" | "text"

	cfg    *config.Config
	logger *slog.Logger
}

// ValidFormats defines the allowed output formats.
var ValidFormats = []string{"text", "json"}

// NewRootCommand creates the groupbanker command. Flag defaults come from cfg.
func NewRootCommand(cfg *config.Config) *cobra.Command {
	opts := &RootOptions{cfg: cfg}

	cmd := &cobra.Command{
		Use:           "groupbanker",
		Short:         "Record and list wallet transactions",
		Long:          "groupbanker keeps a local SQLite ledger of transactions: amount, description and time.",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if !slices.Contains(ValidFormats, opts.Format) {
				return fmt.Errorf("invalid format %q: must be one of %v", opts.Format, ValidFormats)
			}
			opts.logger = newLogger(cmd.ErrOrStderr(), opts.logLevel())
			return nil
		},
	}

	cmd.PersistentFlags().StringVar(&opts.DBPath, "db", cfg.DatabasePath, "path to the database file")
	cmd.PersistentFlags().IntVar(&opts.SchemaVersion, "schema-version", cfg.SchemaVersion,
		"schema version to open the database at (raising it discards all transactions)")
	cmd.PersistentFlags().BoolVarP(&opts.Verbose, "verbose", "v", false, "verbose output")
	cmd.PersistentFlags().StringVar(&opts.Format, "format", "text", "output format (json|text)")

	cmd.AddCommand(NewAddCommand(opts))
	cmd.AddCommand(NewListCommand(opts))
	cmd.AddCommand(NewBotCommand(opts))

	return cmd
}

func (o *RootOptions) logLevel() slog.Level {
	if o.Verbose {
		return slog.LevelDebug
	}
	return o.cfg.LogLevel
}

func newLogger(w io.Writer, level slog.Level) *slog.Logger {
	return slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{Level: level}))
}

// openDatabase opens the store selected by the global flags. The caller
// closes it.
func (o *RootOptions) openDatabase() (*storage.Database, error) {
	db, err := storage.Open(o.DBPath,
		storage.WithSchemaVersion(o.SchemaVersion),
		storage.WithLogger(o.logger),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to open %s: %w", o.DBPath, err)
	}
	return db, nil
}
