package cli

import (
	"context"
	"errors"
	"fmt"
	"os"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/haatos/simple-cd/internal"
	"github.com/haatos/simple-cd/internal/configstore"
	"github.com/haatos/simple-cd/internal/cruise"
	"github.com/haatos/simple-cd/internal/logging"
	"github.com/haatos/simple-cd/internal/service"
	"github.com/haatos/simple-cd/internal/settings"
	"github.com/haatos/simple-cd/internal/store"
)

// NewRootCommand returns the simplecd admin command with every subcommand
// registered. Settings are read from the environment before any subcommand
// runs.
func NewRootCommand() *cobra.Command {
	root := &cobra.Command{
		Use:           "simplecd",
		Short:         "Administer a simple-cd server's configuration and database",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if err := settings.ReadDotenv(internal.DotEnvPath); err != nil {
				return err
			}
			settings.Settings = settings.NewSettings()
			return nil
		},
	}
	RegisterCommands(root)
	return root
}

// RegisterCommands adds all available commands to the root command.
func RegisterCommands(root *cobra.Command) {
	root.AddCommand(NewValidateCommand())
	root.AddCommand(NewDigestCommand())
	root.AddCommand(NewMigrateCommand())
	root.AddCommand(NewRevisionsCommand())
	root.AddCommand(NewSuperuserCommand())
}

func NewValidateCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "validate [file]",
		Short: "Parse, preprocess and validate a configuration file",
		Args:  cobra.MaximumNArgs(1),
		RunE:  runValidate,
	}
}

func runValidate(cmd *cobra.Command, args []string) error {
	content, err := readConfigFile(args)
	if err != nil {
		return err
	}
	holder, err := configstore.Parse(content, nil)
	if err != nil {
		var invalid *cruise.InvalidConfigError
		if errors.As(err, &invalid) {
			for _, e := range invalid.Errors {
				fmt.Fprintln(cmd.ErrOrStderr(), e)
			}
		}
		return fmt.Errorf("configuration is invalid: %w", err)
	}
	fmt.Fprintf(
		cmd.OutOrStdout(),
		"configuration is valid (md5 %s, %d pipeline groups, %d environments)\n",
		holder.Config.MD5, len(holder.Config.Groups), len(holder.Config.Environments),
	)
	return nil
}

func NewDigestCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "digest [file]",
		Short: "Print the md5 a configuration file is versioned under",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			content, err := readConfigFile(args)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), cruise.MD5Of(content))
			return nil
		},
	}
}

func NewMigrateCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Apply database migrations",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			db := store.InitDatabase(false)
			defer db.Close()
			dialect := store.Dialect()
			if err := store.RunMigrations(db, dialect); err != nil {
				return err
			}
			version, err := store.MigrationVersion(db, dialect)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s database at version %d\n", dialect, version)
			return nil
		},
	}
}

func NewRevisionsCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "revisions",
		Short: "List committed configuration revisions, newest first",
		Args:  cobra.NoArgs,
		RunE:  runRevisions,
	}
	cmd.Flags().IntP("limit", "l", 20, "Number of revisions to list")
	cmd.Flags().IntP("offset", "o", 0, "Number of revisions to skip")
	return cmd
}

func runRevisions(cmd *cobra.Command, args []string) error {
	limit, err := cmd.Flags().GetInt("limit")
	if err != nil {
		return err
	}
	offset, err := cmd.Flags().GetInt("offset")
	if err != nil {
		return err
	}
	logger := logging.New(settings.Settings.LogPath, settings.Settings.LogLevel)
	defer logger.Sync()

	repo, err := configstore.OpenVersionRepository(settings.Settings.ConfigRepoDir, logger)
	if err != nil {
		return err
	}
	revisions, err := repo.Revisions(limit, offset)
	if err != nil {
		return err
	}
	return printRevisions(cmd, revisions)
}

func printRevisions(cmd *cobra.Command, revisions []configstore.Revision) error {
	w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "MD5\tUSER\tSCHEMA\tTIME")
	for _, r := range revisions {
		fmt.Fprintf(w, "%s\t%s\t%d\t%s\n", r.MD5, r.Username, r.SchemaVersion, r.Time.Format(time.RFC3339))
	}
	return w.Flush()
}

func NewSuperuserCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "superuser",
		Short: "Create the first superuser when none exists",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			logger := logging.New(settings.Settings.LogPath, settings.Settings.LogLevel)
			defer logger.Sync()

			rdb := store.InitDatabase(true)
			defer rdb.Close()
			rwdb := store.InitDatabase(false)
			defer rwdb.Close()
			if err := store.RunMigrations(rwdb, store.Dialect()); err != nil {
				return err
			}
			userSvc := service.NewUserService(store.NewUserSQLiteStore(rdb, rwdb), logger)
			if err := userSvc.InitializeSuperuser(context.Background(), os.Stdin, cmd.OutOrStdout()); err != nil {
				logger.Error("creating superuser", zap.Error(err))
				return err
			}
			return nil
		},
	}
}

func readConfigFile(args []string) ([]byte, error) {
	path := settings.Settings.ConfigFile
	if len(args) == 1 {
		path = args[0]
	}
	content, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading configuration file: %w", err)
	}
	return content, nil
}
