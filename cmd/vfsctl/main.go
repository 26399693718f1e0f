package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"
	"github.com/tendant/simple-vfs/pkg/vfs"
	"github.com/tendant/simple-vfs/pkg/vfs/config"
	"github.com/tendant/simple-vfs/pkg/vfs/repo/postgres"
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

var (
	configPath string
	projectID  int
)

// loadConfig reads the config file when given and then the environment.
func loadConfig() (*config.Config, *slog.Logger, error) {
	opts := []config.Option{config.WithEnv()}
	if configPath != "" {
		opts = []config.Option{config.WithFile(configPath)}
	}
	cfg, err := config.Load(opts...)
	if err != nil {
		return nil, nil, fmt.Errorf("reading config: %w", err)
	}
	level, _ := cfg.Level()
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
	return cfg, logger, nil
}

// newStore builds the store. The caller must defer rt.Close().
func newStore(ctx context.Context) (*config.Runtime, error) {
	cfg, logger, err := loadConfig()
	if err != nil {
		return nil, err
	}
	rt, err := cfg.Build(ctx, logger)
	if err != nil {
		return nil, fmt.Errorf("initializing store: %w", err)
	}
	return rt, nil
}

var rootCmd = &cobra.Command{
	Use:          "vfsctl",
	Short:        "Inspect and maintain a versioned resource store",
	SilenceUsage: true,
}

// migrate command
var migrateCmd = &cobra.Command{
	Use:   "migrate [up|status]",
	Short: "Apply or check database migrations",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		action := "up"
		if len(args) == 1 {
			action = args[0]
		}

		cfg, logger, err := loadConfig()
		if err != nil {
			return err
		}
		if cfg.DatabaseType != "postgres" {
			return errors.New("migrations need database_type postgres")
		}

		offline, online, backup := cfg.Databases()
		for _, dsn := range distinct(offline, online, backup) {
			switch action {
			case "up":
				if err := postgres.Migrate(dsn, logger); err != nil {
					return err
				}
			case "status":
				status, err := postgres.CheckMigrations(dsn)
				if err != nil {
					return err
				}
				fmt.Printf("version %d of %d, dirty=%t, current=%t\n",
					status.Version, status.Latest, status.Dirty, status.Current())
			default:
				return fmt.Errorf("unknown migrate action %q (use up or status)", action)
			}
		}
		return nil
	},
}

var statCmd = &cobra.Command{
	Use:   "stat PATH",
	Short: "Show resource metadata",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		rt, err := newStore(ctx)
		if err != nil {
			return err
		}
		defer rt.Close()

		r, err := rt.Store.Resources().Read(ctx, projectID, args[0], vfs.IncludeDeleted())
		if err != nil {
			return err
		}
		fmt.Printf("Path:      %s\n", r.Path)
		fmt.Printf("ID:        %s\n", r.ID)
		fmt.Printf("Serial:    %d\n", r.Serial)
		fmt.Printf("Type:      %d\n", r.Type)
		fmt.Printf("State:     %s\n", r.State)
		fmt.Printf("Flags:     %d\n", r.Flags)
		fmt.Printf("Size:      %d\n", r.Size)
		fmt.Printf("Project:   %d\n", r.ProjectID)
		fmt.Printf("Created:   %s\n", r.CreatedAt.Format("2006-01-02 15:04:05"))
		fmt.Printf("Modified:  %s by %s\n", r.ModifiedAt.Format("2006-01-02 15:04:05"), r.ModifiedBy)
		return nil
	},
}

var lsCmd = &cobra.Command{
	Use:   "ls FOLDER",
	Short: "List a folder, subfolders first",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		all, _ := cmd.Flags().GetBool("all")
		ctx := cmd.Context()
		rt, err := newStore(ctx)
		if err != nil {
			return err
		}
		defer rt.Close()

		folder, err := rt.Store.Resources().ReadFolder(ctx, projectID, args[0])
		if err != nil {
			return err
		}
		entries, err := rt.Store.Tree().ResourcesInFolder(ctx, projectID, folder)
		if err != nil {
			return err
		}
		if !all {
			entries = vfs.UndeletedOf(entries)
		}
		for _, r := range entries {
			fmt.Printf("%-9s %8d  %s  %s\n", r.State, r.Size, r.ModifiedAt.Format("2006-01-02 15:04"), r.Name())
		}
		return nil
	},
}

var catCmd = &cobra.Command{
	Use:   "cat PATH",
	Short: "Print file content",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		rt, err := newStore(ctx)
		if err != nil {
			return err
		}
		defer rt.Close()

		f, err := rt.Store.Resources().ReadFile(ctx, projectID, args[0])
		if err != nil {
			return err
		}
		_, err = os.Stdout.Write(f.Content)
		return err
	},
}

var propsCmd = &cobra.Command{
	Use:   "props PATH",
	Short: "List resource properties",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		rt, err := newStore(ctx)
		if err != nil {
			return err
		}
		defer rt.Close()

		r, err := rt.Store.Resources().Read(ctx, projectID, args[0])
		if err != nil {
			return err
		}
		props, err := rt.Store.Properties().ReadAll(ctx, projectID, r)
		if err != nil {
			return err
		}
		for _, name := range sortedKeys(props) {
			fmt.Printf("%s=%s\n", name, props[name])
		}
		return nil
	},
}

var linksCmd = &cobra.Command{
	Use:   "links",
	Short: "List link resources and their targets",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		rt, err := newStore(ctx)
		if err != nil {
			return err
		}
		defer rt.Close()

		links, err := rt.Store.Links().FetchAllLinks(ctx, projectID)
		if err != nil {
			return err
		}
		if len(links) == 0 {
			fmt.Println("No links found.")
			return nil
		}
		for _, l := range links {
			fmt.Printf("#%d  %s -> %s\n", l.ResourceID, l.LinkPath, l.TargetPath)
		}
		return nil
	},
}

var historyCmd = &cobra.Command{
	Use:   "history PATH",
	Short: "List archived versions of a resource",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		rt, err := newStore(ctx)
		if err != nil {
			return err
		}
		defer rt.Close()

		versions, err := rt.Store.Backup().AllHeaders(ctx, args[0])
		if err != nil {
			return err
		}
		if len(versions) == 0 {
			fmt.Println("No versions recorded.")
			return nil
		}
		for _, v := range versions {
			fmt.Printf("v%-5d %s  %-10s %8d  %s\n",
				v.VersionID,
				v.ModifiedAt.Format("2006-01-02 15:04:05"),
				v.ModifiedByName,
				v.Size,
				v.State,
			)
		}
		return nil
	},
}

var envCmd = &cobra.Command{
	Use:   "env",
	Short: "Describe configuration environment variables",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Println(config.Usage())
	},
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "Config file (yaml, json, toml or env)")
	rootCmd.PersistentFlags().IntVarP(&projectID, "project", "p", vfs.DefaultOnlineProjectID+1, "Project id; the online project reads the published tree")

	rootCmd.AddCommand(migrateCmd)
	rootCmd.AddCommand(statCmd)
	rootCmd.AddCommand(lsCmd)
	lsCmd.Flags().BoolP("all", "a", false, "Include deleted resources")
	rootCmd.AddCommand(catCmd)
	rootCmd.AddCommand(propsCmd)
	rootCmd.AddCommand(linksCmd)
	rootCmd.AddCommand(historyCmd)
	rootCmd.AddCommand(envCmd)
	rootCmd.AddCommand(serveCmd)
	serveCmd.Flags().String("addr", "", "Listen address, overrides ops_addr")
}
