package domain

import (
	"context"
	"sort"
)

// fakeStore is an in-memory Store plus ChangeSink used by the service tests.
// Slices keep insertion order so listings are deterministic.
type fakeStore struct {
	tasks       []Task
	assignments []Assignment
	people      []Person
	jira        []JiraItem

	changes   []ChangeEvent
	appendErr error
}

func (f *fakeStore) ListTasks(ctx context.Context) ([]Task, error) {
	return append([]Task(nil), f.tasks...), nil
}

func (f *fakeStore) GetTask(ctx context.Context, id string) (*Task, error) {
	for _, t := range f.tasks {
		if t.ID == id {
			cpy := t
			return &cpy, nil
		}
	}
	return nil, nil
}

func (f *fakeStore) UpsertTask(ctx context.Context, t Task) error {
	for i := range f.tasks {
		if f.tasks[i].ID == t.ID {
			f.tasks[i] = t
			return nil
		}
	}
	f.tasks = append(f.tasks, t)
	return nil
}

func (f *fakeStore) UpdateTaskPosition(ctx context.Context, id string, position int) error {
	for i := range f.tasks {
		if f.tasks[i].ID == id {
			f.tasks[i].Position = position
		}
	}
	return nil
}

func (f *fakeStore) UpdateTaskOrphanNotes(ctx context.Context, id, notes string) error {
	for i := range f.tasks {
		if f.tasks[i].ID == id {
			f.tasks[i].OrphanNotes = notes
		}
	}
	return nil
}

func (f *fakeStore) DeleteTask(ctx context.Context, id string) error {
	out := f.tasks[:0]
	for _, t := range f.tasks {
		if t.ID != id {
			out = append(out, t)
		}
	}
	f.tasks = out
	return nil
}

func (f *fakeStore) ListAssignments(ctx context.Context) ([]Assignment, error) {
	return append([]Assignment(nil), f.assignments...), nil
}

func (f *fakeStore) ListTaskAssignments(ctx context.Context, taskID string) ([]Assignment, error) {
	var rows []Assignment
	for _, a := range f.assignments {
		if a.TaskID == taskID {
			rows = append(rows, a)
		}
	}
	return rows, nil
}

func (f *fakeStore) ListPersonAssignments(ctx context.Context, personID string) ([]Assignment, error) {
	var rows []Assignment
	for _, a := range f.assignments {
		if a.PersonID == personID {
			rows = append(rows, a)
		}
	}
	return rows, nil
}

func (f *fakeStore) ReplaceAssignments(ctx context.Context, taskID string, rows []Assignment) error {
	out := f.assignments[:0]
	for _, a := range f.assignments {
		if a.TaskID != taskID {
			out = append(out, a)
		}
	}
	f.assignments = append(out, rows...)
	return nil
}

func (f *fakeStore) DeleteAssignment(ctx context.Context, id string) error {
	out := f.assignments[:0]
	for _, a := range f.assignments {
		if a.ID != id {
			out = append(out, a)
		}
	}
	f.assignments = out
	return nil
}

func (f *fakeStore) ListPeople(ctx context.Context) ([]Person, error) {
	return append([]Person(nil), f.people...), nil
}

func (f *fakeStore) GetPerson(ctx context.Context, id string) (*Person, error) {
	for _, p := range f.people {
		if p.ID == id {
			cpy := p
			return &cpy, nil
		}
	}
	return nil, nil
}

func (f *fakeStore) InsertPerson(ctx context.Context, p Person) error {
	f.people = append(f.people, p)
	return nil
}

func (f *fakeStore) DeletePerson(ctx context.Context, id string) error {
	out := f.people[:0]
	for _, p := range f.people {
		if p.ID != id {
			out = append(out, p)
		}
	}
	f.people = out
	return nil
}

func (f *fakeStore) ListJiraItems(ctx context.Context, taskID string) ([]JiraItem, error) {
	var items []JiraItem
	for _, it := range f.jira {
		if it.TaskID == taskID {
			items = append(items, it)
		}
	}
	return items, nil
}

func (f *fakeStore) GetJiraItem(ctx context.Context, id string) (*JiraItem, error) {
	for _, it := range f.jira {
		if it.ID == id {
			cpy := it
			return &cpy, nil
		}
	}
	return nil, nil
}

func (f *fakeStore) InsertJiraItem(ctx context.Context, item JiraItem) error {
	f.jira = append(f.jira, item)
	return nil
}

func (f *fakeStore) DeleteJiraItem(ctx context.Context, id string) error {
	out := f.jira[:0]
	for _, it := range f.jira {
		if it.ID != id {
			out = append(out, it)
		}
	}
	f.jira = out
	return nil
}

func (f *fakeStore) AppendChange(ctx context.Context, ev ChangeEvent) error {
	if f.appendErr != nil {
		return f.appendErr
	}
	f.changes = append(f.changes, ev)
	return nil
}

func (f *fakeStore) ListChanges(ctx context.Context, limit int) ([]ChangeEvent, error) {
	out := append([]ChangeEvent(nil), f.changes...)
	sort.Slice(out, func(i, j int) bool { return out[i].Seq > out[j].Seq })
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (f *fakeStore) eventsOfKind(kind string) []ChangeEvent {
	var out []ChangeEvent
	for _, ev := range f.changes {
		if ev.Kind == kind {
			out = append(out, ev)
		}
	}
	return out
}
