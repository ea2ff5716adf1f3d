package main

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"classlens/internal/config"
	"classlens/internal/storage"
)

func newDBCommand(configFlag *string) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "db",
		Short: "Manage the optional Postgres run store",
	}
	cmd.AddCommand(newDBInitCommand(configFlag))
	cmd.AddCommand(newDBSearchCommand(configFlag))
	return cmd
}

func loadPostgresConfig(configFlag *string) (*config.Config, error) {
	cfg, resolved, _, err := config.Load(*configFlag)
	if err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration %s: %w", resolved, err)
	}
	if !cfg.Postgres.Enabled {
		return nil, errors.New("postgres is not enabled in the configuration")
	}
	return cfg, nil
}

func newDBInitCommand(configFlag *string) *cobra.Command {
	return &cobra.Command{
		Use:   "init",
		Short: "Create the Postgres schema for run persistence",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadPostgresConfig(configFlag)
			if err != nil {
				return err
			}
			if err := storage.InitSchema(cmd.Context(), cfg.Postgres); err != nil {
				return err
			}
			fmt.Println("Schema ready.")
			return nil
		},
	}
}

func newDBSearchCommand(configFlag *string) *cobra.Command {
	var limit int

	cmd := &cobra.Command{
		Use:   "search <query>",
		Short: "Find past runs whose summaries resemble the query",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadPostgresConfig(configFlag)
			if err != nil {
				return err
			}

			store, err := storage.OpenPostgres(cmd.Context(), cfg.Postgres)
			if err != nil {
				return err
			}
			defer store.Close()

			results, err := store.SearchSimilarRuns(cmd.Context(), args[0], limit)
			if err != nil {
				return err
			}
			if len(results) == 0 {
				fmt.Println("No runs found.")
				return nil
			}

			rows := make([][]string, 0, len(results))
			for _, r := range results {
				rows = append(rows, []string{
					r.RunID,
					r.VideoName,
					r.Decision,
					fmt.Sprintf("%.2f", r.Similarity),
				})
			}
			fmt.Println(renderTable([]string{"Run", "Video", "Decision", "Similarity"}, rows))
			return nil
		},
	}
	cmd.Flags().IntVar(&limit, "limit", 5, "Maximum number of runs to return")
	return cmd
}
