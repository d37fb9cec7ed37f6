package main

import (
	"fmt"
	"io"
	"strconv"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/bytedance/sonic"
	"github.com/spf13/cobra"
	"github.com/yanun0323/errors"

	"taskpulse/internal/task"
	"taskpulse/pkg/exception"
)

const dueLayout = "2006-01-02"

func newAddCommand(a *app) *cobra.Command {
	var (
		description string
		priority    string
		due         string
		tags        []string
	)
	cmd := &cobra.Command{
		Use:   "add <title>",
		Short: "Add a task",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			draft := task.Draft{
				Title:       strings.Join(args, " "),
				Description: description,
				Tags:        tags,
			}
			if priority != "" {
				p, err := task.ParsePriority(priority)
				if err != nil {
					return err
				}
				draft.Priority = p
			}
			if due != "" {
				d, err := parseDue(due)
				if err != nil {
					return err
				}
				draft.DueDate = &d
			}
			return a.withStore(cmd.Context(), func(s task.Store) error {
				added, err := s.Add(cmd.Context(), draft)
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "added %d\n", added.ID)
				return nil
			})
		},
	}
	cmd.Flags().StringVarP(&description, "desc", "d", "", "description")
	cmd.Flags().StringVarP(&priority, "priority", "p", "", "Low, Medium or High (default Medium)")
	cmd.Flags().StringVar(&due, "due", "", "due date, YYYY-MM-DD or RFC 3339")
	cmd.Flags().StringSliceVarP(&tags, "tag", "t", nil, "tag, repeatable")
	return cmd
}

func newListCommand(a *app) *cobra.Command {
	var (
		filter   string
		text     string
		priority string
		tag      string
		asJSON   bool
	)
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List tasks",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			f, err := task.ParseFilter(filter)
			if err != nil {
				return err
			}
			query := task.Query{Text: text, Tag: tag}
			if priority != "" {
				if query.Priority, err = task.ParsePriority(priority); err != nil {
					return err
				}
			}
			return a.withStore(cmd.Context(), func(s task.Store) error {
				tasks, err := s.ListByFilter(cmd.Context(), f)
				if err != nil {
					return err
				}
				tasks = task.Search(tasks, query)
				if asJSON {
					return writeJSON(cmd.OutOrStdout(), tasks)
				}
				writeTasks(cmd.OutOrStdout(), tasks)
				return nil
			})
		},
	}
	cmd.Flags().StringVarP(&filter, "filter", "f", "all", "all, completed or pending")
	cmd.Flags().StringVarP(&text, "search", "s", "", "match title or description")
	cmd.Flags().StringVarP(&priority, "priority", "p", "", "only this priority")
	cmd.Flags().StringVarP(&tag, "tag", "t", "", "only tasks with this tag")
	cmd.Flags().BoolVar(&asJSON, "json", false, "print JSON")
	return cmd
}

func newEditCommand(a *app) *cobra.Command {
	var (
		title       string
		description string
		priority    string
		due         string
		clearDue    bool
		tags        []string
	)
	cmd := &cobra.Command{
		Use:   "edit <id>",
		Short: "Edit a task",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0])
			if err != nil {
				return err
			}
			var patch task.Patch
			flags := cmd.Flags()
			if flags.Changed("title") {
				patch.Title = &title
			}
			if flags.Changed("desc") {
				patch.Description = &description
			}
			if flags.Changed("priority") {
				p, err := task.ParsePriority(priority)
				if err != nil {
					return err
				}
				patch.Priority = &p
			}
			if flags.Changed("due") {
				d, err := parseDue(due)
				if err != nil {
					return err
				}
				patch.DueDate = &d
			}
			patch.ClearDue = clearDue
			if flags.Changed("tag") {
				patch.Tags = tags
				patch.SetTags = true
			}
			return a.withStore(cmd.Context(), func(s task.Store) error {
				updated, err := s.Update(cmd.Context(), id, patch)
				if err != nil {
					return err
				}
				writeTasks(cmd.OutOrStdout(), []task.Task{updated})
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&title, "title", "", "new title")
	cmd.Flags().StringVarP(&description, "desc", "d", "", "new description")
	cmd.Flags().StringVarP(&priority, "priority", "p", "", "Low, Medium or High")
	cmd.Flags().StringVar(&due, "due", "", "due date, YYYY-MM-DD or RFC 3339")
	cmd.Flags().BoolVar(&clearDue, "clear-due", false, "remove the due date")
	cmd.Flags().StringSliceVarP(&tags, "tag", "t", nil, "replace tags, repeatable")
	return cmd
}

func newDoneCommand(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "done <id>",
		Short: "Toggle completion",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0])
			if err != nil {
				return err
			}
			return a.withStore(cmd.Context(), func(s task.Store) error {
				toggled, err := s.Toggle(cmd.Context(), id)
				if err != nil {
					return err
				}
				state := "pending"
				if toggled.Completed {
					state = "completed"
				}
				fmt.Fprintf(cmd.OutOrStdout(), "%d %s\n", toggled.ID, state)
				return nil
			})
		},
	}
}

func newRemoveCommand(a *app) *cobra.Command {
	return &cobra.Command{
		Use:     "rm <id>",
		Aliases: []string{"delete"},
		Short:   "Delete a task",
		Args:    cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0])
			if err != nil {
				return err
			}
			return a.withStore(cmd.Context(), func(s task.Store) error {
				removed, err := s.Delete(cmd.Context(), id)
				if err != nil {
					return err
				}
				if !removed {
					return errors.Wrap(exception.ErrTaskNotFound, "delete").With("id", id)
				}
				fmt.Fprintf(cmd.OutOrStdout(), "deleted %d\n", id)
				return nil
			})
		},
	}
}

func newCountsCommand(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "counts",
		Short: "Show task counts per filter",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.withStore(cmd.Context(), func(s task.Store) error {
				counts, err := s.Counts(cmd.Context())
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "all %d\ncompleted %d\npending %d\n", counts.All, counts.Completed, counts.Pending)
				return nil
			})
		},
	}
}

func newTagsCommand(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "tags",
		Short: "List every tag in use",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.withStore(cmd.Context(), func(s task.Store) error {
				tasks, err := s.List(cmd.Context())
				if err != nil {
					return err
				}
				for _, tag := range task.Tags(tasks) {
					fmt.Fprintln(cmd.OutOrStdout(), tag)
				}
				return nil
			})
		},
	}
}

func newClearCommand(a *app) *cobra.Command {
	var yes bool
	cmd := &cobra.Command{
		Use:   "clear",
		Short: "Delete every task",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if !yes {
				return errors.Wrap(exception.ErrInvalidArgument, "refusing to clear without --yes")
			}
			return a.withStore(cmd.Context(), func(s task.Store) error {
				return s.Clear(cmd.Context())
			})
		},
	}
	cmd.Flags().BoolVar(&yes, "yes", false, "confirm")
	return cmd
}

func parseID(s string) (int64, error) {
	id, err := strconv.ParseInt(strings.TrimSpace(s), 10, 64)
	if err != nil || id <= 0 {
		return 0, errors.Wrap(exception.ErrInvalidArgument, "parse task id").With("id", s)
	}
	return id, nil
}

func parseDue(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	if d, err := time.ParseInLocation(dueLayout, s, time.Local); err == nil {
		return d, nil
	}
	d, err := time.Parse(time.RFC3339, s)
	if err != nil {
		return time.Time{}, errors.Wrap(exception.ErrInvalidArgument, "parse due date").With("due", s)
	}
	return d, nil
}

func writeJSON(w io.Writer, v any) error {
	data, err := sonic.ConfigStd.MarshalIndent(v, "", "  ")
	if err != nil {
		return errors.Wrap(err, "encode json")
	}
	_, err = fmt.Fprintln(w, string(data))
	return err
}

func writeTasks(w io.Writer, tasks []task.Task) {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tDONE\tPRIORITY\tDUE\tTITLE\tTAGS")
	for _, t := range tasks {
		done := " "
		if t.Completed {
			done = "x"
		}
		due := "-"
		if t.DueDate != nil {
			due = t.DueDate.Format(dueLayout)
		}
		fmt.Fprintf(tw, "%d\t%s\t%s\t%s\t%s\t%s\n", t.ID, done, t.Priority, due, t.Title, strings.Join(t.Tags, ","))
	}
	_ = tw.Flush()
}
