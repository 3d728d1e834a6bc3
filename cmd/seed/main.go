package main

import (
	"context"
	"errors"
	"os"

	"github.com/spf13/cobra"

	"approval-tracker/backend/internal/config"
	"approval-tracker/backend/internal/logging"
	"approval-tracker/backend/internal/repository"
	"approval-tracker/backend/internal/services"
	"approval-tracker/backend/pkg/models"
)

var seedActivities = []models.Activity{
	{ID: "JU-HTML", Name: "Introducción a HTML y CSS", Area: "Tecnologías de la Información"},
	{ID: "JU-EXCEL", Name: "Planillas de cálculo avanzadas", Area: "Tecnologías de la Información"},
}

var seedCommissions = []services.CommissionInput{
	{ID: "JU-HTML-2024-01", ActivityID: "JU-HTML", StartDate: "2024-03-04", EndDate: "2024-04-12"},
	{ID: "JU-HTML-2024-02", ActivityID: "JU-HTML", StartDate: "2024-08-05", EndDate: "2024-09-13"},
	{ID: "JU-EXCEL-2024-01", ActivityID: "JU-EXCEL", StartDate: "2024-05-06", EndDate: "2024-06-14"},
}

func main() {
	var configPath string
	cmd := &cobra.Command{
		Use:          "seed",
		Short:        "Load sample activities and commissions",
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			logger := logging.NewLogger()
			cfg, err := config.LoadConfig(configPath)
			if err != nil {
				return err
			}
			store, err := repository.Open(cmd.Context(), cfg, logger)
			if err != nil {
				return err
			}
			defer store.Close()

			tracker := services.NewTrackerService(store, services.WithLogger(logger))
			return seed(cmd.Context(), tracker, logger)
		},
	}
	cmd.Flags().StringVar(&configPath, "config", "", "path to config.yaml")

	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}

// seed creates the sample data, skipping entries that already exist.
func seed(ctx context.Context, tracker services.Tracker, logger *logging.Logger) error {
	for _, a := range seedActivities {
		_, err := tracker.CreateActivity(ctx, a)
		switch {
		case errors.Is(err, services.ErrDuplicateID):
			logger.Info("Skipping existing activity", "id", a.ID)
		case err != nil:
			return err
		default:
			logger.Info("Seeded activity", "id", a.ID)
		}
	}

	for _, c := range seedCommissions {
		_, err := tracker.CreateCommission(ctx, c)
		switch {
		case errors.Is(err, services.ErrDuplicateID):
			logger.Info("Skipping existing commission", "id", c.ID)
		case err != nil:
			return err
		default:
			logger.Info("Seeded commission", "id", c.ID, "activity", c.ActivityID)
		}
	}

	logger.Info("Seeding complete!")
	return nil
}
