package notify

import (
	"context"
	"time"

	"github.com/yanun0323/errors"
	"github.com/yanun0323/logs"

	"taskpulse/internal/obs"
	"taskpulse/internal/task"
	"taskpulse/pkg/exception"
	"taskpulse/pkg/websocket"
)

const defaultQueueSize = 64

// Loader reads the views a refresh needs. task.Store satisfies it.
type Loader interface {
	ListByFilter(ctx context.Context, filter task.Filter) ([]task.Task, error)
	Counts(ctx context.Context) (task.Counts, error)
}

// Source delivers channel messages. *websocket.Channel satisfies it.
type Source interface {
	Subscribe(handler websocket.Handler) (unsubscribe func())
}

// Snapshot is one re-fetched view of the task list.
type Snapshot struct {
	Revision uint64
	Filter   task.Filter
	Tasks    []task.Task
	Counts   task.Counts
	At       time.Time
}

// Option configures a Refresher.
type Option struct {
	// Filter selects the listed tasks. Optional; default task.FilterAll.
	Filter task.Filter
	// QueueSize bounds buffered messages. Optional.
	QueueSize int
	// Sink receives every snapshot. Required.
	Sink func(Snapshot)
	// OnPayload receives non-update application messages. Optional; default logs them.
	OnPayload func(websocket.Message)
}

// Refresher re-fetches tasks whenever the channel reports that data changed.
type Refresher struct {
	loader Loader
	opt    Option
	seq    *obs.Sequence
}

func New(loader Loader, opt Option) (*Refresher, error) {
	if loader == nil || opt.Sink == nil {
		return nil, errors.Wrap(exception.ErrNilInstance, "new refresher")
	}
	if opt.Filter == 0 {
		opt.Filter = task.FilterAll
	}
	if !opt.Filter.IsAvailable() {
		return nil, errors.Wrap(exception.ErrTaskInvalidFilter, "new refresher").With("filter", uint8(opt.Filter))
	}
	if opt.QueueSize <= 0 {
		opt.QueueSize = defaultQueueSize
	}
	if opt.OnPayload == nil {
		opt.OnPayload = func(msg websocket.Message) {
			logs.Infof("notification: %s", msg.Text())
		}
	}
	return &Refresher{
		loader: loader,
		opt:    opt,
		seq:    obs.NewSequence(1),
	}, nil
}

// Refresh loads the filtered list and the counts and hands them to the sink.
func (r *Refresher) Refresh(ctx context.Context) (Snapshot, error) {
	tasks, err := r.loader.ListByFilter(ctx, r.opt.Filter)
	if err != nil {
		return Snapshot{}, errors.Wrap(err, "refresh tasks").With("filter", r.opt.Filter.String())
	}
	counts, err := r.loader.Counts(ctx)
	if err != nil {
		return Snapshot{}, errors.Wrap(err, "refresh counts")
	}
	snap := Snapshot{
		Revision: r.seq.Next(),
		Filter:   r.opt.Filter,
		Tasks:    tasks,
		Counts:   counts,
		At:       time.Now(),
	}
	r.opt.Sink(snap)
	return snap, nil
}

// Run subscribes to src, refreshes once, then refreshes after every update until ctx
// is done. Updates that queue up while a refresh runs collapse into one refresh.
func (r *Refresher) Run(ctx context.Context, src Source) error {
	consumer := websocket.NewConsumer(r.opt.QueueSize, websocket.OverflowDropOldest)
	unsubscribe := src.Subscribe(consumer.Handler())
	defer unsubscribe()
	stop := context.AfterFunc(ctx, consumer.Close)
	defer stop()

	r.refresh(ctx)
	for {
		msg, ok := consumer.Next()
		if !ok {
			return nil
		}
		pending := r.handle(msg)
		for consumer.Len() > 0 {
			next, ok := consumer.Next()
			if !ok {
				break
			}
			pending = r.handle(next) || pending
		}
		if pending && ctx.Err() == nil {
			r.refresh(ctx)
		}
	}
}

// handle reports whether msg asks for a refresh.
func (r *Refresher) handle(msg websocket.Message) bool {
	if msg.IsUpdate() {
		return true
	}
	r.opt.OnPayload(msg)
	return false
}

func (r *Refresher) refresh(ctx context.Context) {
	if _, err := r.Refresh(ctx); err != nil {
		logs.Errorf("refresh, err: %+v", err)
	}
}
