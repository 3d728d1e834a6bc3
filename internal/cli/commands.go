package cli

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"approval-tracker/backend/internal/render"
	"approval-tracker/backend/internal/services"
	"approval-tracker/backend/internal/workflow"
	"approval-tracker/backend/pkg/models"
)

func newWorkflowsCommand(app *App) *cobra.Command {
	return &cobra.Command{
		Use:         "workflows",
		Short:       "List workflow kinds and their step keys",
		Args:        cobra.NoArgs,
		Annotations: map[string]string{annotationOffline: "true"},
		RunE: func(cmd *cobra.Command, args []string) error {
			for _, k := range workflow.Kinds() {
				def, err := workflow.Lookup(k)
				if err != nil {
					return app.fail(err)
				}
				app.print(string(k) + "\n")
				for _, s := range def.Steps() {
					app.print(fmt.Sprintf("  %-26s %s\n", s.Key, s.Label))
				}
			}
			return nil
		},
	}
}

func newActivitiesCommand(app *App) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "activities",
		Short: "List or create activities",
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "list",
		Short: "List activities",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			activities, err := app.Tracker.ListActivities(cmd.Context())
			if err != nil {
				return app.fail(err)
			}
			app.print(render.Activities(activities))
			return nil
		},
	})

	var activity models.Activity
	create := &cobra.Command{
		Use:   "create",
		Short: "Create an activity with a fresh approval record",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			created, err := app.Tracker.CreateActivity(cmd.Context(), activity)
			if err != nil {
				return app.fail(err)
			}
			app.print(render.Success("created activity " + created.ID))
			return nil
		},
	}
	create.Flags().StringVar(&activity.ID, "id", "", "activity id")
	create.Flags().StringVar(&activity.Name, "name", "", "activity name")
	create.Flags().StringVar(&activity.Area, "area", "", "owning area")
	_ = create.MarkFlagRequired("id")
	_ = create.MarkFlagRequired("name")
	cmd.AddCommand(create)

	return cmd
}

func newCommissionsCommand(app *App) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "commissions",
		Short: "List or create commissions",
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "list <activity-id>",
		Short: "List the commissions of an activity",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			commissions, err := app.Tracker.ListCommissions(cmd.Context(), args[0])
			if err != nil {
				return app.fail(err)
			}
			app.print(render.Commissions(commissions))
			return nil
		},
	})

	var input services.CommissionInput
	create := &cobra.Command{
		Use:   "create",
		Short: "Create a commission with fresh campus and dictation records",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			created, err := app.Tracker.CreateCommission(cmd.Context(), input)
			if err != nil {
				return app.fail(err)
			}
			app.print(render.Success(fmt.Sprintf("created commission %s (%s)", created.ID, created.State)))
			return nil
		},
	}
	create.Flags().StringVar(&input.ID, "id", "", "commission id (generated when empty)")
	create.Flags().StringVar(&input.ActivityID, "activity", "", "parent activity id")
	create.Flags().IntVar(&input.Year, "year", 0, "commission year (defaults to the start date year)")
	create.Flags().StringVar(&input.StartDate, "start", "", "start date, YYYY-MM-DD")
	create.Flags().StringVar(&input.EndDate, "end", "", "end date, YYYY-MM-DD")
	_ = create.MarkFlagRequired("activity")
	_ = create.MarkFlagRequired("start")
	_ = create.MarkFlagRequired("end")
	cmd.AddCommand(create)

	return cmd
}

func newProgressCommand(app *App) *cobra.Command {
	var vs render.ViewState
	cmd := &cobra.Command{
		Use:   "progress <kind> <id>",
		Short: "Show the step progress of a workflow instance",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			p, err := app.Tracker.Progress(cmd.Context(), workflow.Kind(args[0]), args[1])
			if err != nil {
				return app.fail(err)
			}
			app.print(render.Progress(*p, vs))
			return nil
		},
	}
	cmd.Flags().BoolVar(&vs.ShowAudit, "audit", false, "show who completed each step and when")
	return cmd
}

func newUpdateCommand(app *App) *cobra.Command {
	var (
		done  []string
		actor string
	)
	cmd := &cobra.Command{
		Use:   "update <kind> <id>",
		Short: "Set the completed steps of a workflow instance",
		Long: `Set the completed steps of a workflow instance. Every step not listed
in --done is marked not done. A step can only be completed after every
earlier step.`,
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			def, err := workflow.Lookup(workflow.Kind(args[0]))
			if err != nil {
				return app.fail(err)
			}
			proposed, err := workflow.ProposalFromDone(def, done)
			if err != nil {
				return app.fail(err)
			}

			result, err := app.Tracker.UpdateSteps(cmd.Context(), def.Kind(), args[1], proposed, actor)
			if err != nil {
				return app.fail(err)
			}
			if result.Noop {
				app.print(render.Info("nothing to save"))
				return nil
			}
			app.print(render.Success("saved " + strings.Join(result.Changed, ", ")))
			app.print(render.Progress(*result.Progress, render.ViewState{}))
			return nil
		},
	}
	cmd.Flags().StringSliceVar(&done, "done", nil, "comma separated keys of completed steps")
	cmd.Flags().StringVar(&actor, "actor", "", "editor recorded in the audit fields")
	return cmd
}
