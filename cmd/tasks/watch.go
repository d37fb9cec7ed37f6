package main

import (
	"context"
	"fmt"
	"io"

	pyroscope "github.com/grafana/pyroscope-go"
	"github.com/spf13/cobra"
	"github.com/yanun0323/errors"
	"github.com/yanun0323/logs"
	"github.com/yanun0323/pkg/sys"

	"taskpulse/internal/notify"
	"taskpulse/internal/obs"
	"taskpulse/internal/task"
	"taskpulse/pkg/exception"
	"taskpulse/pkg/websocket"
)

func newWatchCommand(a *app) *cobra.Command {
	var (
		filter  string
		profile bool
	)
	cmd := &cobra.Command{
		Use:   "watch",
		Short: "Stay connected and reprint tasks whenever the server reports a change",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			f, err := task.ParseFilter(filter)
			if err != nil {
				return err
			}
			if profile || a.loaded.Profiling.Enabled {
				stop, err := startProfiler(a.loaded.Profiling.ApplicationName, a.loaded.Profiling.ServerAddress)
				if err != nil {
					return err
				}
				defer stop()
			}
			return a.watch(cmd.Context(), cmd.OutOrStdout(), f)
		},
	}
	cmd.Flags().StringVarP(&filter, "filter", "f", "all", "all, completed or pending")
	cmd.Flags().BoolVar(&profile, "pyroscope", false, "push profiles to the configured pyroscope server")
	return cmd
}

func (a *app) watch(parent context.Context, out io.Writer, filter task.Filter) error {
	session, err := a.requireLogin()
	if err != nil {
		return err
	}
	token, err := session.Token()
	if err != nil {
		return err
	}

	store, err := task.Open(parent, a.loaded.Store, task.Option{})
	if err != nil {
		return err
	}
	defer store.Close()

	ctx, cancel := context.WithCancel(parent)
	defer cancel()

	metrics := obs.NewMetrics()
	opt := a.loaded.Channel
	opt.Observer = metrics
	opt.OnConnect = func() {
		logs.Infof("notifications connected")
	}
	opt.OnDisconnect = func(err error) {
		logs.Warnf("notifications disconnected, err: %+v", err)
	}
	channel, err := websocket.Open(token, opt)
	if err != nil {
		return err
	}
	defer channel.Shutdown()

	refresher, err := notify.New(store, notify.Option{
		Filter:    filter,
		QueueSize: a.loaded.QueueSize,
		Sink: func(s notify.Snapshot) {
			fmt.Fprintf(out, "\n[%s] revision %d, %d all, %d completed, %d pending\n",
				s.At.Format("15:04:05"), s.Revision, s.Counts.All, s.Counts.Completed, s.Counts.Pending)
			writeTasks(out, s.Tasks)
		},
	})
	if err != nil {
		return err
	}

	go func() {
		err := session.Watch(ctx, func(token string) {
			if token == "" {
				logs.Warnf("signed out, stopping watch")
				cancel()
				return
			}
			if err := channel.Connect(token); err != nil {
				logs.Errorf("reconnect with new token, err: %+v", err)
			}
		})
		if err != nil {
			logs.Errorf("watch session, err: %+v", err)
		}
	}()

	done := make(chan error, 1)
	go func() {
		done <- refresher.Run(ctx, channel)
	}()

	select {
	case <-sys.Shutdown():
		logs.Infof("shutting down")
	case <-ctx.Done():
	}
	cancel()
	channel.Shutdown()
	runErr := <-done

	snap := metrics.Snapshot()
	logs.Infof("channel %s: dials %d, opens %d, disconnects %d, reconnects %d, cooldowns %d, deliveries %d",
		channel.ID(), snap.Dials, snap.Opens, snap.Disconnects, snap.Reconnects, snap.Cooldowns, snap.Deliveries)

	if parent.Err() == nil && !session.Authenticated() {
		return exception.ErrNotAuthenticated
	}
	return runErr
}

func startProfiler(name, addr string) (func(), error) {
	if addr == "" {
		return nil, errors.Wrap(exception.ErrInvalidArgument, "pyroscope server address is empty")
	}
	profiler, err := pyroscope.Start(pyroscope.Config{
		ApplicationName: name,
		ServerAddress:   addr,
		Logger:          profilerLogger{},
		ProfileTypes: []pyroscope.ProfileType{
			pyroscope.ProfileCPU,
			pyroscope.ProfileAllocObjects,
			pyroscope.ProfileAllocSpace,
			pyroscope.ProfileInuseObjects,
			pyroscope.ProfileInuseSpace,
			pyroscope.ProfileGoroutines,
		},
	})
	if err != nil {
		return nil, errors.Wrap(err, "start pyroscope")
	}
	return func() {
		_ = profiler.Stop()
	}, nil
}

type profilerLogger struct{}

func (profilerLogger) Infof(format string, args ...interface{})  { logs.Debugf(format, args...) }
func (profilerLogger) Debugf(format string, args ...interface{}) { logs.Debugf(format, args...) }
func (profilerLogger) Errorf(format string, args ...interface{}) { logs.Errorf(format, args...) }
