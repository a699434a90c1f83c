package storage

import (
	"encoding/json"
	"fmt"
	"math"

	"stageboard-api/domain"
)

// Entity represents base table entity keys.
type Entity struct {
	PartitionKey string `json:"PartitionKey"`
	RowKey       string `json:"RowKey"`
}

const (
	EdmInt32 = "Edm.Int32"
	EdmInt64 = "Edm.Int64"
)

// Fixed partition keys. Each table holds a single partition so listings
// stay ordered by RowKey.
const (
	tasksPartition       = "tasks"
	peoplePartition      = "people"
	assignmentsPartition = "assignments"
	jiraPartition        = "jira"
	changesPartition     = "changes"
)

type taskEntity struct {
	Entity
	Title       string `json:"Title"`
	Details     string `json:"Details"`
	Status      string `json:"Status"`
	Priority    int    `json:"Priority"`
	Position    int    `json:"Position"`
	DevColor    string `json:"DevColor"`
	DemoColor   string `json:"DemoColor"`
	LtColor     string `json:"LtColor"`
	ProdColor   string `json:"ProdColor"`
	DevStatus   string `json:"DevStatus"`
	DemoStatus  string `json:"DemoStatus"`
	LtStatus    string `json:"LtStatus"`
	ProdStatus  string `json:"ProdStatus"`
	OrphanNotes string `json:"OrphanNotes"`
}

// taskPositionUpdate carries a partial position change merged into an
// existing task entity.
type taskPositionUpdate struct {
	Entity
	Position     *int    `json:"Position,omitempty"`
	PositionType *string `json:"Position@odata.type,omitempty"`
}

type taskNotesUpdate struct {
	Entity
	OrphanNotes *string `json:"OrphanNotes,omitempty"`
}

type personEntity struct {
	Entity
	Name string `json:"Name"`
}

type assignmentEntity struct {
	Entity
	TaskID   string `json:"TaskId"`
	PersonID string `json:"PersonId"`
	Stage    string `json:"Stage"`
	Comment  string `json:"Comment"`
}

type jiraEntity struct {
	Entity
	TaskID string `json:"TaskId"`
	Key    string `json:"Key"`
	Title  string `json:"Title"`
	Url    string `json:"Url"`
}

// changeEntity stores one audit record. Payload holds the event payload as
// a JSON string so arbitrary keys survive the round trip through a table
// column.
type changeEntity struct {
	Entity
	Seq       int64  `json:"Seq,string"`
	SeqType   string `json:"Seq@odata.type"`
	Timestamp string `json:"EventTimestamp"`
	Kind      string `json:"Kind"`
	Text      string `json:"Text"`
	Payload   string `json:"Payload"`
}

// changeRowKey inverts the sequence number so that lexicographic RowKey
// order in the table is newest-first.
func changeRowKey(seq int64) string {
	return fmt.Sprintf("%019d", math.MaxInt64-seq)
}

func entityFromTask(t domain.Task) taskEntity {
	return taskEntity{
		Entity:      Entity{PartitionKey: tasksPartition, RowKey: t.ID},
		Title:       t.Title,
		Details:     t.Details,
		Status:      t.Status,
		Priority:    t.Priority,
		Position:    t.Position,
		DevColor:    t.DevColor,
		DemoColor:   t.DemoColor,
		LtColor:     t.LTColor,
		ProdColor:   t.ProdColor,
		DevStatus:   t.DevStatus,
		DemoStatus:  t.DemoStatus,
		LtStatus:    t.LTStatus,
		ProdStatus:  t.ProdStatus,
		OrphanNotes: t.OrphanNotes,
	}
}

func taskFromEntity(e taskEntity) domain.Task {
	return domain.Task{
		ID:          e.RowKey,
		Title:       e.Title,
		Details:     e.Details,
		Status:      e.Status,
		Priority:    e.Priority,
		Position:    e.Position,
		DevColor:    e.DevColor,
		DemoColor:   e.DemoColor,
		LTColor:     e.LtColor,
		ProdColor:   e.ProdColor,
		DevStatus:   e.DevStatus,
		DemoStatus:  e.DemoStatus,
		LTStatus:    e.LtStatus,
		ProdStatus:  e.ProdStatus,
		OrphanNotes: e.OrphanNotes,
	}
}

func entityFromPerson(p domain.Person) personEntity {
	return personEntity{
		Entity: Entity{PartitionKey: peoplePartition, RowKey: p.ID},
		Name:   p.Name,
	}
}

func personFromEntity(e personEntity) domain.Person {
	return domain.Person{ID: e.RowKey, Name: e.Name}
}

func entityFromAssignment(a domain.Assignment) assignmentEntity {
	return assignmentEntity{
		Entity:   Entity{PartitionKey: assignmentsPartition, RowKey: a.ID},
		TaskID:   a.TaskID,
		PersonID: a.PersonID,
		Stage:    a.Stage,
		Comment:  a.Comment,
	}
}

func assignmentFromEntity(e assignmentEntity) domain.Assignment {
	return domain.Assignment{
		ID:       e.RowKey,
		TaskID:   e.TaskID,
		PersonID: e.PersonID,
		Stage:    e.Stage,
		Comment:  e.Comment,
	}
}

func entityFromJiraItem(it domain.JiraItem) jiraEntity {
	return jiraEntity{
		Entity: Entity{PartitionKey: jiraPartition, RowKey: it.ID},
		TaskID: it.TaskID,
		Key:    it.Key,
		Title:  it.Title,
		Url:    it.URL,
	}
}

func jiraItemFromEntity(e jiraEntity) domain.JiraItem {
	return domain.JiraItem{
		ID:     e.RowKey,
		TaskID: e.TaskID,
		Key:    e.Key,
		Title:  e.Title,
		URL:    e.Url,
	}
}

func entityFromChange(ev domain.ChangeEvent) (changeEntity, error) {
	payload, err := json.Marshal(ev.Payload)
	if err != nil {
		return changeEntity{}, err
	}
	return changeEntity{
		Entity:    Entity{PartitionKey: changesPartition, RowKey: changeRowKey(ev.Seq)},
		Seq:       ev.Seq,
		SeqType:   EdmInt64,
		Timestamp: ev.Timestamp,
		Kind:      ev.Kind,
		Text:      ev.Text,
		Payload:   string(payload),
	}, nil
}

func changeFromEntity(e changeEntity) domain.ChangeEvent {
	ev := domain.ChangeEvent{
		Seq:       e.Seq,
		Timestamp: e.Timestamp,
		Kind:      e.Kind,
		Text:      e.Text,
	}
	if e.Payload != "" {
		var payload map[string]any
		if err := json.Unmarshal([]byte(e.Payload), &payload); err == nil {
			ev.Payload = payload
		}
	}
	return ev
}
