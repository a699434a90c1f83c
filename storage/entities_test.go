package storage

import (
	"math"
	"reflect"
	"testing"

	"stageboard-api/domain"
)

func TestPageTopClampsToInt32(t *testing.T) {
	cases := map[int]int32{
		1:                  1,
		500:                500,
		math.MaxInt32:      math.MaxInt32,
		math.MaxInt32 + 1:  math.MaxInt32,
		math.MaxInt64 - 10: math.MaxInt32,
	}
	for in, want := range cases {
		if got := pageTop(in); got != want {
			t.Fatalf("pageTop(%d) = %d, want %d", in, got, want)
		}
	}
}

func TestTaskEntityRoundTrip(t *testing.T) {
	task := domain.Task{
		ID:          "t1",
		Title:       "Задача",
		Details:     "описание",
		Status:      "new",
		Priority:    3,
		Position:    4,
		DevColor:    "sky",
		DemoColor:   "amber",
		LTColor:     "emerald",
		ProdColor:   "rose",
		DevStatus:   "в работе",
		ProdStatus:  "готово",
		OrphanNotes: "[DEV] Морозов\n",
	}
	ent := entityFromTask(task)
	if ent.PartitionKey != tasksPartition || ent.RowKey != "t1" {
		t.Fatalf("unexpected keys: %s/%s", ent.PartitionKey, ent.RowKey)
	}
	if got := taskFromEntity(ent); got != task {
		t.Fatalf("round trip mismatch:\n%#v\n%#v", got, task)
	}
}

func TestChangeEntityRoundTrip(t *testing.T) {
	ev := domain.ChangeEvent{
		Seq:       42,
		Timestamp: "2025-06-01T12:30:45Z",
		Kind:      domain.KindTaskSave,
		Text:      "Сохранена задача",
		Payload:   map[string]any{"task_id": "t1", "title": "Задача"},
	}
	ent, err := entityFromChange(ev)
	if err != nil {
		t.Fatalf("entityFromChange: %v", err)
	}
	if ent.PartitionKey != changesPartition {
		t.Fatalf("unexpected partition: %s", ent.PartitionKey)
	}
	if ent.SeqType != EdmInt64 {
		t.Fatalf("seq odata type = %q", ent.SeqType)
	}

	got := changeFromEntity(ent)
	if got.Seq != ev.Seq || got.Timestamp != ev.Timestamp || got.Kind != ev.Kind || got.Text != ev.Text {
		t.Fatalf("round trip mismatch: %#v", got)
	}
	if !reflect.DeepEqual(got.Payload, ev.Payload) {
		t.Fatalf("payload mismatch: %#v", got.Payload)
	}
}

func TestChangeRowKeyOrdersNewestFirst(t *testing.T) {
	older := changeRowKey(100)
	newer := changeRowKey(200)
	if len(older) != 19 || len(newer) != 19 {
		t.Fatalf("row keys must be fixed width: %q %q", older, newer)
	}
	// Lexicographically smaller keys come first in table scans.
	if newer >= older {
		t.Fatalf("newer event must sort before older: %q vs %q", newer, older)
	}
}

func TestAssignmentEntityRoundTrip(t *testing.T) {
	a := domain.Assignment{ID: "a1", TaskID: "t1", PersonID: "p1", Stage: domain.StageLT, Comment: "настройка"}
	ent := entityFromAssignment(a)
	if ent.PartitionKey != assignmentsPartition {
		t.Fatalf("unexpected partition: %s", ent.PartitionKey)
	}
	if got := assignmentFromEntity(ent); got != a {
		t.Fatalf("round trip mismatch: %#v", got)
	}
}

func TestJiraEntityRoundTrip(t *testing.T) {
	item := domain.JiraItem{ID: "j1", TaskID: "t1", Key: "ABC-123", Title: "Подготовить API", URL: "https://jira.local/browse/ABC-123"}
	ent := entityFromJiraItem(item)
	if got := jiraItemFromEntity(ent); got != item {
		t.Fatalf("round trip mismatch: %#v", got)
	}
}
