package main

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"
	"github.com/tendant/simple-vfs/pkg/vfs"
	"github.com/tendant/simple-vfs/pkg/vfs/scan"
)

var scanCmd = &cobra.Command{
	Use:   "scan [PREFIX]",
	Short: "Check content or purge temporaries across a project",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		checkContent, _ := cmd.Flags().GetBool("check-content")
		purgeTemps, _ := cmd.Flags().GetBool("purge-temporaries")
		dryRun, _ := cmd.Flags().GetBool("dry-run")
		batchSize, _ := cmd.Flags().GetInt("batch-size")

		if checkContent == purgeTemps && !dryRun {
			return errors.New("choose one of --check-content or --purge-temporaries")
		}

		ctx := cmd.Context()
		cfg, logger, err := loadConfig()
		if err != nil {
			return err
		}
		rt, err := cfg.Build(ctx, logger)
		if err != nil {
			return fmt.Errorf("initializing store: %w", err)
		}
		defer rt.Close()

		opts := scan.Options{
			ProjectID: projectID,
			Filter:    vfs.ResourceFilter{Kind: vfs.KindFile, LiveOnly: true},
			BatchSize: batchSize,
			DryRun:    dryRun,
			OnProgress: func(processed, total int64) {
				logger.Info("Scan progress", "processed", processed, "total", total)
			},
		}
		if len(args) == 1 {
			opts.Filter.PathPrefix = args[0]
		}
		switch {
		case checkContent:
			opts.Processor = scan.ContentCheck{Store: rt.Store}
		case purgeTemps:
			opts.Processor = scan.TemporaryPurge{Store: rt.Store}
		}

		result, err := scan.New(rt.Store, logger).Scan(ctx, opts)
		if err != nil {
			return err
		}

		fmt.Printf("Found:     %d\n", result.TotalFound)
		fmt.Printf("Processed: %d\n", result.TotalProcessed)
		fmt.Printf("Failed:    %d\n", result.TotalFailed)
		for _, p := range result.FailedPaths {
			fmt.Printf("  %s\n", p)
		}
		if result.TotalFailed > 0 {
			return fmt.Errorf("%d resources failed", result.TotalFailed)
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(scanCmd)
	scanCmd.Flags().Bool("check-content", false, "Verify every file has a payload of the recorded size")
	scanCmd.Flags().Bool("purge-temporaries", false, "Remove editor temporaries of every file")
	scanCmd.Flags().Bool("dry-run", false, "List what would be processed")
	scanCmd.Flags().Int("batch-size", 100, "Resources between progress reports")
}
