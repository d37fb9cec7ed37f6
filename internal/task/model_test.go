package task

import (
	"testing"
	"time"

	"github.com/bytedance/sonic"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/yanun0323/errors"

	"taskpulse/pkg/exception"
)

func TestParsePriority(t *testing.T) {
	testCases := []struct {
		in       string
		expected Priority
	}{
		{"low", PriorityLow},
		{"Medium", PriorityMedium},
		{" HIGH ", PriorityHigh},
	}
	for _, tc := range testCases {
		p, err := ParsePriority(tc.in)
		require.NoError(t, err)
		assert.Equal(t, tc.expected, p)
	}

	_, err := ParsePriority("urgent")
	require.True(t, errors.Is(err, exception.ErrTaskInvalidPriority))
}

func TestParseFilter(t *testing.T) {
	testCases := []struct {
		in       string
		expected Filter
	}{
		{"", FilterAll},
		{"all", FilterAll},
		{"Completed", FilterCompleted},
		{"pending", FilterPending},
	}
	for _, tc := range testCases {
		f, err := ParseFilter(tc.in)
		require.NoError(t, err)
		assert.Equal(t, tc.expected, f)
		assert.True(t, f.IsAvailable())
	}

	_, err := ParseFilter("archived")
	require.True(t, errors.Is(err, exception.ErrTaskInvalidFilter))
}

func TestTaskJSONShape(t *testing.T) {
	due := time.Date(2026, 5, 1, 12, 0, 0, 0, time.UTC)
	task := Task{
		ID:        1,
		Title:     "ship",
		CreatedAt: time.Date(2026, 4, 1, 8, 0, 0, 0, time.UTC),
		Priority:  PriorityHigh,
		DueDate:   &due,
		Tags:      []string{"release"},
	}

	data, err := sonic.Marshal(task)
	require.NoError(t, err)
	assert.JSONEq(t, `{
		"id": 1,
		"title": "ship",
		"completed": false,
		"createdAt": "2026-04-01T08:00:00Z",
		"priority": "High",
		"dueDate": "2026-05-01T12:00:00Z",
		"tags": ["release"]
	}`, string(data))

	var decoded Task
	require.NoError(t, sonic.Unmarshal([]byte(`{"id":2,"title":"x","priority":"low","tags":[]}`), &decoded))
	assert.Equal(t, PriorityLow, decoded.Priority)

	err = sonic.Unmarshal([]byte(`{"id":2,"title":"x","priority":"someday"}`), &decoded)
	require.Error(t, err)
}

func TestSearch(t *testing.T) {
	tasks := []Task{
		{ID: 1, Title: "Buy milk", Priority: PriorityLow, Tags: []string{"home"}},
		{ID: 2, Title: "Quarterly report", Description: "finance numbers for the BOARD", Priority: PriorityHigh, Tags: []string{"work"}},
		{ID: 3, Title: "Board game night", Priority: PriorityMedium, Tags: []string{"home", "fun"}},
	}

	testCases := []struct {
		desc     string
		query    Query
		expected []int64
	}{
		{"empty query matches all", Query{}, []int64{1, 2, 3}},
		{"text in title or description", Query{Text: "board"}, []int64{2, 3}},
		{"priority", Query{Priority: PriorityHigh}, []int64{2}},
		{"tag", Query{Tag: "home"}, []int64{1, 3}},
		{"combined", Query{Text: "BOARD", Tag: "home"}, []int64{3}},
		{"no match", Query{Text: "dentist"}, []int64{}},
	}

	for _, tc := range testCases {
		t.Run(tc.desc, func(t *testing.T) {
			ids := []int64{}
			for _, task := range Search(tasks, tc.query) {
				ids = append(ids, task.ID)
			}
			assert.Equal(t, tc.expected, ids)
		})
	}
}

func TestTags(t *testing.T) {
	tasks := []Task{
		{Tags: []string{"work", "urgent"}},
		{Tags: []string{}},
		{Tags: []string{"home", "work"}},
	}
	assert.Equal(t, []string{"work", "urgent", "home"}, Tags(tasks))
	assert.Empty(t, Tags(nil))
}

func TestCountOf(t *testing.T) {
	tasks := []Task{{Completed: true}, {}, {}, {Completed: true}, {}}
	assert.Equal(t, Counts{All: 5, Completed: 2, Pending: 3}, CountOf(tasks))
}
