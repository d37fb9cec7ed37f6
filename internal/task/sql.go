package task

import (
	"context"
	"time"

	"github.com/bytedance/sonic"
	"github.com/yanun0323/errors"
	"gorm.io/gorm"

	"taskpulse/pkg/conn"
	"taskpulse/pkg/exception"
)

// record is the row layout of a task. Tags are stored as a JSON array.
type record struct {
	ID          int64     `gorm:"primaryKey;autoIncrement:false"`
	Title       string    `gorm:"not null"`
	Description string
	Completed   bool      `gorm:"not null;index"`
	CreatedAt   time.Time `gorm:"not null"`
	Priority    uint8     `gorm:"not null"`
	DueDate     *time.Time
	Tags        string `gorm:"not null;default:'[]'"`
}

func (record) TableName() string {
	return "tasks"
}

func toRecord(t Task) (record, error) {
	tags, err := sonic.MarshalString(t.Tags)
	if err != nil {
		return record{}, errors.Wrap(err, "encode tags").With("id", t.ID)
	}
	return record{
		ID:          t.ID,
		Title:       t.Title,
		Description: t.Description,
		Completed:   t.Completed,
		CreatedAt:   t.CreatedAt,
		Priority:    uint8(t.Priority),
		DueDate:     t.DueDate,
		Tags:        tags,
	}, nil
}

func (r record) task() (Task, error) {
	tags := []string{}
	if r.Tags != "" {
		if err := sonic.UnmarshalString(r.Tags, &tags); err != nil {
			return Task{}, errors.Wrap(err, "decode tags").With("id", r.ID)
		}
	}
	priority := Priority(r.Priority)
	if !priority.IsAvailable() {
		priority = DefaultPriority
	}
	return Task{
		ID:          r.ID,
		Title:       r.Title,
		Description: r.Description,
		Completed:   r.Completed,
		CreatedAt:   r.CreatedAt,
		Priority:    priority,
		DueDate:     r.DueDate,
		Tags:        tags,
	}, nil
}

// SQLStore keeps tasks in a SQL table through gorm.
type SQLStore struct {
	client *conn.Client
	db     *gorm.DB
	opt    Option
	ids    idSource
}

// NewSQLStore migrates the tasks table and seeds the id source from its contents.
func NewSQLStore(ctx context.Context, client *conn.Client, opt Option) (*SQLStore, error) {
	if client == nil || client.DB() == nil {
		return nil, errors.Wrap(exception.ErrNilInstance, "new sql store")
	}
	db := client.DB()
	if err := db.WithContext(ctx).AutoMigrate(&record{}); err != nil {
		return nil, errors.Wrap(err, "migrate tasks table")
	}
	var maxID int64
	if err := db.WithContext(ctx).Model(&record{}).Select("COALESCE(MAX(id), 0)").Scan(&maxID).Error; err != nil {
		return nil, errors.Wrap(err, "query max id")
	}
	s := &SQLStore{client: client, db: db, opt: opt}
	s.ids.Seed(maxID)
	return s, nil
}

func (s *SQLStore) List(ctx context.Context) ([]Task, error) {
	return s.ListByFilter(ctx, FilterAll)
}

func (s *SQLStore) ListByFilter(ctx context.Context, filter Filter) ([]Task, error) {
	if !filter.IsAvailable() {
		return nil, errors.Wrap(exception.ErrTaskInvalidFilter, "list tasks").With("filter", uint8(filter))
	}
	query := s.db.WithContext(ctx).Order("id ASC")
	switch filter {
	case FilterCompleted:
		query = query.Where("completed = ?", true)
	case FilterPending:
		query = query.Where("completed = ?", false)
	}
	var rows []record
	if err := query.Find(&rows).Error; err != nil {
		return nil, errors.Wrap(err, "select tasks").With("filter", filter.String())
	}
	tasks := make([]Task, 0, len(rows))
	for _, r := range rows {
		t, err := r.task()
		if err != nil {
			return nil, err
		}
		tasks = append(tasks, t)
	}
	return tasks, nil
}

func (s *SQLStore) Add(ctx context.Context, draft Draft) (Task, error) {
	now := s.opt.now()
	t, err := newTask(s.ids.Next(now), now, draft)
	if err != nil {
		return Task{}, err
	}
	row, err := toRecord(t)
	if err != nil {
		return Task{}, err
	}
	if err := s.db.WithContext(ctx).Create(&row).Error; err != nil {
		return Task{}, errors.Wrap(err, "insert task").With("id", t.ID)
	}
	s.opt.notify(OpAdd, t.ID)
	return t, nil
}

func (s *SQLStore) Update(ctx context.Context, id int64, patch Patch) (Task, error) {
	return s.modify(ctx, OpUpdate, id, patch.apply)
}

func (s *SQLStore) Toggle(ctx context.Context, id int64) (Task, error) {
	return s.modify(ctx, OpToggle, id, func(t Task) (Task, error) {
		t.Completed = !t.Completed
		return t, nil
	})
}

func (s *SQLStore) Delete(ctx context.Context, id int64) (bool, error) {
	result := s.db.WithContext(ctx).Delete(&record{}, id)
	if result.Error != nil {
		return false, errors.Wrap(result.Error, "delete task").With("id", id)
	}
	if result.RowsAffected == 0 {
		return false, nil
	}
	s.opt.notify(OpDelete, id)
	return true, nil
}

func (s *SQLStore) Counts(ctx context.Context) (Counts, error) {
	var rows []struct {
		Completed bool
		Total     int
	}
	err := s.db.WithContext(ctx).Model(&record{}).
		Select("completed, COUNT(*) AS total").
		Group("completed").
		Scan(&rows).Error
	if err != nil {
		return Counts{}, errors.Wrap(err, "count tasks")
	}
	var c Counts
	for _, r := range rows {
		c.All += r.Total
		if r.Completed {
			c.Completed += r.Total
		} else {
			c.Pending += r.Total
		}
	}
	return c, nil
}

func (s *SQLStore) Clear(ctx context.Context) error {
	if err := s.db.WithContext(ctx).Session(&gorm.Session{AllowGlobalUpdate: true}).Delete(&record{}).Error; err != nil {
		return errors.Wrap(err, "clear tasks")
	}
	s.opt.notify(OpClear, 0)
	return nil
}

// Close releases the connection pool.
func (s *SQLStore) Close() error {
	return s.client.Close()
}

func (s *SQLStore) modify(ctx context.Context, op Op, id int64, fn func(Task) (Task, error)) (Task, error) {
	var updated Task
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var row record
		result := tx.Limit(1).Find(&row, id)
		if result.Error != nil {
			return errors.Wrap(result.Error, "select task").With("id", id)
		}
		if result.RowsAffected == 0 {
			return errors.Wrap(exception.ErrTaskNotFound, string(op)).With("id", id)
		}
		current, err := row.task()
		if err != nil {
			return err
		}
		if updated, err = fn(current); err != nil {
			return err
		}
		next, err := toRecord(updated)
		if err != nil {
			return err
		}
		if err := tx.Save(&next).Error; err != nil {
			return errors.Wrap(err, "save task").With("id", id)
		}
		return nil
	})
	if err != nil {
		return Task{}, err
	}
	s.opt.notify(op, id)
	return updated, nil
}
