package main

import (
	"context"

	"github.com/spf13/cobra"

	"taskpulse/internal/auth"
	"taskpulse/internal/ops"
	"taskpulse/internal/task"
	"taskpulse/pkg/exception"
)

type app struct {
	configPath string
	loaded     ops.Loaded
}

// NewRootCommand builds the tasks command tree.
func NewRootCommand() *cobra.Command {
	a := &app{}
	cmd := &cobra.Command{
		Use:           "tasks",
		Short:         "A single-user task tracker with live refresh",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			loaded, err := ops.Load(a.configPath)
			if err != nil {
				return err
			}
			a.loaded = loaded
			return nil
		},
	}
	cmd.PersistentFlags().StringVarP(&a.configPath, "config", "c", "", "config file (.json, .toml, .yaml)")

	cmd.AddCommand(
		newLoginCommand(a),
		newLogoutCommand(a),
		newWhoamiCommand(a),
		newAddCommand(a),
		newListCommand(a),
		newEditCommand(a),
		newDoneCommand(a),
		newRemoveCommand(a),
		newCountsCommand(a),
		newTagsCommand(a),
		newClearCommand(a),
		newWatchCommand(a),
	)
	return cmd
}

func (a *app) session() (*auth.Session, error) {
	return auth.Load(a.loaded.SessionPath)
}

// requireLogin returns the session when a user is signed in.
func (a *app) requireLogin() (*auth.Session, error) {
	s, err := a.session()
	if err != nil {
		return nil, err
	}
	if !s.Authenticated() {
		return nil, exception.ErrNotAuthenticated
	}
	return s, nil
}

// withStore opens the configured store for a signed-in user and closes it after fn.
func (a *app) withStore(ctx context.Context, fn func(task.Store) error) error {
	if _, err := a.requireLogin(); err != nil {
		return err
	}
	store, err := task.Open(ctx, a.loaded.Store, task.Option{})
	if err != nil {
		return err
	}
	defer store.Close()
	return fn(store)
}
