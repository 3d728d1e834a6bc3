// Package cli implements the trackerctl command tree.
package cli

import (
	"context"
	"io"
	"os"

	"github.com/spf13/cobra"

	"approval-tracker/backend/internal/render"
	"approval-tracker/backend/internal/services"
)

// annotationOffline marks commands that never touch the store, so no
// connection is opened for them.
const annotationOffline = "offline"

// ConnectFunc opens a tracker from a configuration file path. The returned
// close function releases the underlying store.
type ConnectFunc func(ctx context.Context, configPath string) (services.Tracker, func(), error)

// App holds the dependencies shared by every command.
type App struct {
	// Tracker is used as-is when set; otherwise Connect is called before the
	// first command runs.
	Tracker services.Tracker
	Connect ConnectFunc
	Out     io.Writer
	Err     io.Writer

	configPath string
	closeFn    func()
}

// ExecuteResult is the outcome of a command line invocation.
type ExecuteResult struct {
	ExitCode int
	Err      error
}

// NewRootCommand builds the trackerctl command tree bound to app.
func NewRootCommand(app *App) *cobra.Command {
	if app.Out == nil {
		app.Out = os.Stdout
	}
	if app.Err == nil {
		app.Err = os.Stderr
	}

	root := &cobra.Command{
		Use:           "trackerctl",
		Short:         "Inspect and advance activity approval, campus and dictation workflows",
		SilenceErrors: true,
		SilenceUsage:  true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if app.Tracker != nil || app.Connect == nil || cmd.Annotations[annotationOffline] == "true" {
				return nil
			}
			tracker, closeFn, err := app.Connect(cmd.Context(), app.configPath)
			if err != nil {
				return app.fail(err)
			}
			app.Tracker = tracker
			app.closeFn = closeFn
			return nil
		},
	}
	root.SetOut(app.Out)
	root.SetErr(app.Err)
	root.PersistentFlags().StringVar(&app.configPath, "config", "", "path to config.yaml")

	root.AddCommand(
		newWorkflowsCommand(app),
		newActivitiesCommand(app),
		newCommissionsCommand(app),
		newProgressCommand(app),
		newUpdateCommand(app),
	)
	return root
}

// Run executes the command line args against app and maps failures to exit
// codes.
func Run(ctx context.Context, app *App, args []string) ExecuteResult {
	root := NewRootCommand(app)
	root.SetArgs(args)
	defer func() {
		if app.closeFn != nil {
			app.closeFn()
		}
	}()

	if err := root.ExecuteContext(ctx); err != nil {
		if code, ok := IsExitError(err); ok {
			return ExecuteResult{ExitCode: code, Err: err}
		}
		// cobra usage errors: unknown command, bad flags, wrong arg count
		io.WriteString(app.Err, render.Error(err))
		return ExecuteResult{ExitCode: ExitFailure, Err: err}
	}
	return ExecuteResult{ExitCode: ExitOK}
}

// Execute runs trackerctl with the process arguments and exits.
func Execute(app *App) {
	result := Run(context.Background(), app, os.Args[1:])
	os.Exit(result.ExitCode)
}

func (app *App) fail(err error) error {
	io.WriteString(app.Err, render.Error(err))
	return NewExitError(exitCodeFor(err))
}

func (app *App) print(s string) {
	io.WriteString(app.Out, s)
}
