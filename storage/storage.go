package storage

import (
	"context"
	"encoding/json"
	"errors"
	"math"
	"time"

	"github.com/Azure/azure-sdk-for-go/sdk/azcore"
	"github.com/Azure/azure-sdk-for-go/sdk/azcore/policy"
	"github.com/Azure/azure-sdk-for-go/sdk/data/aztables"
	"github.com/Azure/azure-sdk-for-go/sdk/storage/azqueue"

	"stageboard-api/domain"
)

// Tables groups the table names used by the board.
type Tables struct {
	Tasks       string
	People      string
	Assignments string
	Jira        string
	Changes     string
}

// Storage provides access to the underlying persistence mechanisms. It
// implements the board's store contract plus the audit sink and feed.
type Storage struct {
	taskTable       *aztables.Client
	peopleTable     *aztables.Client
	assignmentTable *aztables.Client
	jiraTable       *aztables.Client
	changeTable     *aztables.Client
	changeQueue     *azqueue.QueueClient
}

// New creates a Storage instance from the given connection string.
// changeQueue may be empty, in which case change feed publishing is off.
func New(connStr string, tables Tables, changeQueue string) (*Storage, error) {
	tablesClientOptions := aztables.ClientOptions{
		ClientOptions: azcore.ClientOptions{
			Retry: policy.RetryOptions{
				MaxRetries:    3,
				TryTimeout:    time.Minute * 3,
				RetryDelay:    time.Second * 1,
				MaxRetryDelay: time.Second * 15,
				StatusCodes:   []int{408, 429, 500, 502, 503, 504},
			},
		},
	}
	svc, err := aztables.NewServiceClientFromConnectionString(connStr, &tablesClientOptions)
	if err != nil {
		return nil, err
	}
	s := &Storage{
		taskTable:       svc.NewClient(tables.Tasks),
		peopleTable:     svc.NewClient(tables.People),
		assignmentTable: svc.NewClient(tables.Assignments),
		jiraTable:       svc.NewClient(tables.Jira),
		changeTable:     svc.NewClient(tables.Changes),
	}
	if changeQueue != "" {
		queueClientOptions := azqueue.ClientOptions{
			ClientOptions: azcore.ClientOptions{
				Retry: policy.RetryOptions{
					MaxRetries:    5,
					TryTimeout:    time.Minute * 5,
					RetryDelay:    time.Second * 1,
					MaxRetryDelay: time.Second * 60,
					StatusCodes:   []int{408, 429, 500, 502, 503, 504},
				},
			},
		}
		cq, err := azqueue.NewQueueClientFromConnectionString(connStr, changeQueue, &queueClientOptions)
		if err != nil {
			return nil, err
		}
		s.changeQueue = cq
	}
	return s, nil
}

func isNotFound(err error) bool {
	var respErr *azcore.ResponseError
	return errors.As(err, &respErr) && respErr.StatusCode == 404
}

// ListTasks retrieves every task on the board.
func (s *Storage) ListTasks(ctx context.Context) ([]domain.Task, error) {
	filter := "PartitionKey eq '" + tasksPartition + "'"
	pager := s.taskTable.NewListEntitiesPager(&aztables.ListEntitiesOptions{Filter: &filter})
	tasks := []domain.Task{}
	for pager.More() {
		resp, err := pager.NextPage(ctx)
		if err != nil {
			return nil, err
		}
		for _, e := range resp.Entities {
			var ent taskEntity
			if err := json.Unmarshal(e, &ent); err != nil {
				return nil, err
			}
			tasks = append(tasks, taskFromEntity(ent))
		}
	}
	return tasks, nil
}

// GetTask retrieves a single task if present.
func (s *Storage) GetTask(ctx context.Context, id string) (*domain.Task, error) {
	ent, err := s.taskTable.GetEntity(ctx, tasksPartition, id, nil)
	if err != nil {
		if isNotFound(err) {
			return nil, nil
		}
		return nil, err
	}
	var raw taskEntity
	if err := json.Unmarshal(ent.Value, &raw); err != nil {
		return nil, err
	}
	task := taskFromEntity(raw)
	return &task, nil
}

// UpsertTask creates or replaces a task entity.
func (s *Storage) UpsertTask(ctx context.Context, t domain.Task) error {
	payload, err := json.Marshal(entityFromTask(t))
	if err == nil {
		_, err = s.taskTable.UpsertEntity(ctx, payload, nil)
	}
	return err
}

// UpdateTaskPosition merges a new position into an existing task entity.
func (s *Storage) UpdateTaskPosition(ctx context.Context, id string, position int) error {
	et := EdmInt32
	ent := taskPositionUpdate{
		Entity:       Entity{PartitionKey: tasksPartition, RowKey: id},
		Position:     &position,
		PositionType: &et,
	}
	payload, err := json.Marshal(ent)
	if err == nil {
		tag := azcore.ETagAny
		_, err = s.taskTable.UpdateEntity(ctx, payload, &aztables.UpdateEntityOptions{IfMatch: &tag, UpdateMode: aztables.UpdateModeMerge})
	}
	return err
}

// UpdateTaskOrphanNotes merges new orphan notes into an existing task entity.
func (s *Storage) UpdateTaskOrphanNotes(ctx context.Context, id, notes string) error {
	ent := taskNotesUpdate{
		Entity:      Entity{PartitionKey: tasksPartition, RowKey: id},
		OrphanNotes: &notes,
	}
	payload, err := json.Marshal(ent)
	if err == nil {
		tag := azcore.ETagAny
		_, err = s.taskTable.UpdateEntity(ctx, payload, &aztables.UpdateEntityOptions{IfMatch: &tag, UpdateMode: aztables.UpdateModeMerge})
	}
	return err
}

// DeleteTask removes a task entity. Missing entities are not an error.
func (s *Storage) DeleteTask(ctx context.Context, id string) error {
	_, err := s.taskTable.DeleteEntity(ctx, tasksPartition, id, nil)
	if err != nil && isNotFound(err) {
		return nil
	}
	return err
}

func (s *Storage) listAssignments(ctx context.Context, filter string) ([]domain.Assignment, error) {
	pager := s.assignmentTable.NewListEntitiesPager(&aztables.ListEntitiesOptions{Filter: &filter})
	rows := []domain.Assignment{}
	for pager.More() {
		resp, err := pager.NextPage(ctx)
		if err != nil {
			return nil, err
		}
		for _, e := range resp.Entities {
			var ent assignmentEntity
			if err := json.Unmarshal(e, &ent); err != nil {
				return nil, err
			}
			rows = append(rows, assignmentFromEntity(ent))
		}
	}
	return rows, nil
}

// ListAssignments retrieves every assignment on the board.
func (s *Storage) ListAssignments(ctx context.Context) ([]domain.Assignment, error) {
	return s.listAssignments(ctx, "PartitionKey eq '"+assignmentsPartition+"'")
}

// ListTaskAssignments retrieves the assignments of one task.
func (s *Storage) ListTaskAssignments(ctx context.Context, taskID string) ([]domain.Assignment, error) {
	return s.listAssignments(ctx, "PartitionKey eq '"+assignmentsPartition+"' and TaskId eq '"+taskID+"'")
}

// ListPersonAssignments retrieves the assignments held by one person.
func (s *Storage) ListPersonAssignments(ctx context.Context, personID string) ([]domain.Assignment, error) {
	return s.listAssignments(ctx, "PartitionKey eq '"+assignmentsPartition+"' and PersonId eq '"+personID+"'")
}

// ReplaceAssignments removes a task's assignment rows and writes the given
// snapshot in their place.
func (s *Storage) ReplaceAssignments(ctx context.Context, taskID string, rows []domain.Assignment) error {
	existing, err := s.ListTaskAssignments(ctx, taskID)
	if err != nil {
		return err
	}
	for _, a := range existing {
		if err := s.DeleteAssignment(ctx, a.ID); err != nil {
			return err
		}
	}
	for _, a := range rows {
		payload, err := json.Marshal(entityFromAssignment(a))
		if err != nil {
			return err
		}
		if _, err := s.assignmentTable.UpsertEntity(ctx, payload, nil); err != nil {
			return err
		}
	}
	return nil
}

// DeleteAssignment removes a single assignment row.
func (s *Storage) DeleteAssignment(ctx context.Context, id string) error {
	_, err := s.assignmentTable.DeleteEntity(ctx, assignmentsPartition, id, nil)
	if err != nil && isNotFound(err) {
		return nil
	}
	return err
}

// ListPeople retrieves every person.
func (s *Storage) ListPeople(ctx context.Context) ([]domain.Person, error) {
	filter := "PartitionKey eq '" + peoplePartition + "'"
	pager := s.peopleTable.NewListEntitiesPager(&aztables.ListEntitiesOptions{Filter: &filter})
	people := []domain.Person{}
	for pager.More() {
		resp, err := pager.NextPage(ctx)
		if err != nil {
			return nil, err
		}
		for _, e := range resp.Entities {
			var ent personEntity
			if err := json.Unmarshal(e, &ent); err != nil {
				return nil, err
			}
			people = append(people, personFromEntity(ent))
		}
	}
	return people, nil
}

// GetPerson retrieves a single person if present.
func (s *Storage) GetPerson(ctx context.Context, id string) (*domain.Person, error) {
	ent, err := s.peopleTable.GetEntity(ctx, peoplePartition, id, nil)
	if err != nil {
		if isNotFound(err) {
			return nil, nil
		}
		return nil, err
	}
	var raw personEntity
	if err := json.Unmarshal(ent.Value, &raw); err != nil {
		return nil, err
	}
	p := personFromEntity(raw)
	return &p, nil
}

// InsertPerson stores a new person entity.
func (s *Storage) InsertPerson(ctx context.Context, p domain.Person) error {
	payload, err := json.Marshal(entityFromPerson(p))
	if err == nil {
		_, err = s.peopleTable.UpsertEntity(ctx, payload, nil)
	}
	return err
}

// DeletePerson removes a person entity. Missing entities are not an error.
func (s *Storage) DeletePerson(ctx context.Context, id string) error {
	_, err := s.peopleTable.DeleteEntity(ctx, peoplePartition, id, nil)
	if err != nil && isNotFound(err) {
		return nil
	}
	return err
}

// ListJiraItems retrieves the reference links attached to one task.
func (s *Storage) ListJiraItems(ctx context.Context, taskID string) ([]domain.JiraItem, error) {
	filter := "PartitionKey eq '" + jiraPartition + "' and TaskId eq '" + taskID + "'"
	pager := s.jiraTable.NewListEntitiesPager(&aztables.ListEntitiesOptions{Filter: &filter})
	items := []domain.JiraItem{}
	for pager.More() {
		resp, err := pager.NextPage(ctx)
		if err != nil {
			return nil, err
		}
		for _, e := range resp.Entities {
			var ent jiraEntity
			if err := json.Unmarshal(e, &ent); err != nil {
				return nil, err
			}
			items = append(items, jiraItemFromEntity(ent))
		}
	}
	return items, nil
}

// GetJiraItem retrieves a single reference link if present.
func (s *Storage) GetJiraItem(ctx context.Context, id string) (*domain.JiraItem, error) {
	ent, err := s.jiraTable.GetEntity(ctx, jiraPartition, id, nil)
	if err != nil {
		if isNotFound(err) {
			return nil, nil
		}
		return nil, err
	}
	var raw jiraEntity
	if err := json.Unmarshal(ent.Value, &raw); err != nil {
		return nil, err
	}
	item := jiraItemFromEntity(raw)
	return &item, nil
}

// InsertJiraItem stores a new reference link entity.
func (s *Storage) InsertJiraItem(ctx context.Context, item domain.JiraItem) error {
	payload, err := json.Marshal(entityFromJiraItem(item))
	if err == nil {
		_, err = s.jiraTable.UpsertEntity(ctx, payload, nil)
	}
	return err
}

// DeleteJiraItem removes a reference link entity. Missing entities are not
// an error.
func (s *Storage) DeleteJiraItem(ctx context.Context, id string) error {
	_, err := s.jiraTable.DeleteEntity(ctx, jiraPartition, id, nil)
	if err != nil && isNotFound(err) {
		return nil
	}
	return err
}

// AppendChange stores one audit record.
func (s *Storage) AppendChange(ctx context.Context, ev domain.ChangeEvent) error {
	ent, err := entityFromChange(ev)
	if err != nil {
		return err
	}
	payload, err := json.Marshal(ent)
	if err == nil {
		_, err = s.changeTable.UpsertEntity(ctx, payload, nil)
	}
	return err
}

// ListChanges retrieves the newest audit records. Row keys embed the
// inverted sequence number, so table order is already newest-first.
func (s *Storage) ListChanges(ctx context.Context, limit int) ([]domain.ChangeEvent, error) {
	filter := "PartitionKey eq '" + changesPartition + "'"
	top := pageTop(limit)
	pager := s.changeTable.NewListEntitiesPager(&aztables.ListEntitiesOptions{Filter: &filter, Top: &top})
	events := []domain.ChangeEvent{}
	for pager.More() && len(events) < limit {
		resp, err := pager.NextPage(ctx)
		if err != nil {
			return nil, err
		}
		for _, e := range resp.Entities {
			if len(events) >= limit {
				break
			}
			var ent changeEntity
			if err := json.Unmarshal(e, &ent); err != nil {
				return nil, err
			}
			events = append(events, changeFromEntity(ent))
		}
	}
	return events, nil
}

// pageTop clamps a listing limit into the int32 range the table service
// accepts as a page size.
func pageTop(limit int) int32 {
	if limit > math.MaxInt32 {
		return math.MaxInt32
	}
	return int32(limit)
}

// PublishChange mirrors one audit record onto the change feed queue. It is
// a no-op when no queue is configured.
func (s *Storage) PublishChange(ctx context.Context, ev domain.ChangeEvent) error {
	if s.changeQueue == nil {
		return nil
	}
	data, err := json.Marshal(ev)
	if err != nil {
		return err
	}
	_, err = s.changeQueue.EnqueueMessage(ctx, string(data), nil)
	return err
}
