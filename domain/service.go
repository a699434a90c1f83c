package domain

import (
	"context"
	"sort"
	"strings"
	"sync"

	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"
)

// Store abstracts persistence for the mutation service. Implementations
// treat a missing record as (nil, nil) on Get calls.
type Store interface {
	ListTasks(ctx context.Context) ([]Task, error)
	GetTask(ctx context.Context, id string) (*Task, error)
	UpsertTask(ctx context.Context, t Task) error
	UpdateTaskPosition(ctx context.Context, id string, position int) error
	UpdateTaskOrphanNotes(ctx context.Context, id, notes string) error
	DeleteTask(ctx context.Context, id string) error

	ListAssignments(ctx context.Context) ([]Assignment, error)
	ListTaskAssignments(ctx context.Context, taskID string) ([]Assignment, error)
	ListPersonAssignments(ctx context.Context, personID string) ([]Assignment, error)
	ReplaceAssignments(ctx context.Context, taskID string, rows []Assignment) error
	DeleteAssignment(ctx context.Context, id string) error

	ListPeople(ctx context.Context) ([]Person, error)
	GetPerson(ctx context.Context, id string) (*Person, error)
	InsertPerson(ctx context.Context, p Person) error
	DeletePerson(ctx context.Context, id string) error

	ListJiraItems(ctx context.Context, taskID string) ([]JiraItem, error)
	GetJiraItem(ctx context.Context, id string) (*JiraItem, error)
	InsertJiraItem(ctx context.Context, item JiraItem) error
	DeleteJiraItem(ctx context.Context, id string) error
}

// SaveTaskInput carries one task-save request with already-parsed fields.
// AssignGuard signals that Assignments is a complete snapshot; without it
// the stored assignment set is left untouched.
type SaveTaskInput struct {
	ID          string
	Title       string
	Details     string
	Status      string
	Priority    int
	OrderIndex  *int
	DevColor    string
	DemoColor   string
	LTColor     string
	ProdColor   string
	DevStatus   string
	DemoStatus  string
	LTStatus    string
	ProdStatus  string
	OrphanNotes string
	Assignments []ProposedAssignment
	AssignGuard bool
}

// JiraItemInput carries one Jira reference to attach to a task.
type JiraItemInput struct {
	TaskID string
	Key    string
	Title  string
	URL    string
}

// BoardQuery selects and orders the board read.
type BoardQuery struct {
	Sort   string // "", "priority_desc", "priority_asc", "title"
	Search string
}

// BoardTask is a task with its assignment rows and Jira references attached
// for display.
type BoardTask struct {
	Task
	Assignments []Assignment `json:"assignments"`
	Jira        []JiraItem   `json:"jira"`
}

// Board is the full board read model handed to the presentation layer.
// Stages and Colors carry the fixed vocabulary so clients render columns
// and palettes without hardcoding them.
type Board struct {
	Tasks  []BoardTask `json:"tasks"`
	People []Person    `json:"people"`
	Stages []string    `json:"stages"`
	Colors []string    `json:"colors"`
}

// Service orchestrates all board mutations and emits audit events for each
// of them. Mutations serialize through one mutex so a save is applied as a
// single unit; reads take no lock.
type Service struct {
	mu      sync.Mutex
	store   Store
	changes *ChangeLog
	logger  *log.Logger
}

// NewService creates the mutation service.
func NewService(store Store, changes *ChangeLog, logger *log.Logger) *Service {
	if store == nil {
		panic("domain.NewService: store is required")
	}
	if changes == nil {
		panic("domain.NewService: change log is required")
	}
	if logger == nil {
		logger = log.StandardLogger()
	}
	return &Service{store: store, changes: changes, logger: logger}
}

// SaveTask creates or updates one task: scalar normalization, optional
// repositioning, guarded assignment replacement and the audit trail for all
// of it. It returns the task id.
func (s *Service) SaveTask(ctx context.Context, in SaveTaskInput) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var task Task
	if in.ID != "" {
		existing, err := s.store.GetTask(ctx, in.ID)
		if err != nil {
			return "", err
		}
		if existing == nil {
			return "", ErrTaskNotFound
		}
		task = *existing
	} else {
		all, err := s.store.ListTasks(ctx)
		if err != nil {
			return "", err
		}
		task = Task{ID: uuid.NewString(), Position: len(all)}
	}

	prev := AssignmentSet{}
	if in.ID != "" {
		rows, err := s.store.ListTaskAssignments(ctx, task.ID)
		if err != nil {
			return "", err
		}
		prev = SetFromAssignments(rows)
	}

	task.Title = NormalizeTitle(in.Title)
	task.Details = strings.TrimSpace(in.Details)
	// The "new" default applies only when no status was supplied at all; a
	// whitespace-only status deliberately clears the label.
	status := in.Status
	if status == "" {
		status = "new"
	}
	task.Status = strings.TrimSpace(status)
	task.Priority = ClampPriority(in.Priority)
	task.DevColor = NormalizeColor(in.DevColor)
	task.DemoColor = NormalizeColor(in.DemoColor)
	task.LTColor = NormalizeColor(in.LTColor)
	task.ProdColor = NormalizeColor(in.ProdColor)
	task.DevStatus = strings.TrimSpace(in.DevStatus)
	task.DemoStatus = strings.TrimSpace(in.DemoStatus)
	task.LTStatus = strings.TrimSpace(in.LTStatus)
	task.ProdStatus = strings.TrimSpace(in.ProdStatus)
	task.OrphanNotes = in.OrphanNotes

	if err := s.store.UpsertTask(ctx, task); err != nil {
		return "", err
	}

	if in.OrderIndex != nil {
		if err := s.reposition(ctx, task, *in.OrderIndex); err != nil {
			return "", err
		}
	}

	next := prev
	var delta Delta
	if in.AssignGuard {
		next = BuildAssignmentSet(in.Assignments)
		delta = Reconcile(prev, next)
		rows := make([]Assignment, 0, len(next))
		for key, comment := range next {
			rows = append(rows, Assignment{
				ID:       uuid.NewString(),
				TaskID:   task.ID,
				PersonID: key.PersonID,
				Stage:    key.Stage,
				Comment:  comment,
			})
		}
		if err := s.store.ReplaceAssignments(ctx, task.ID, rows); err != nil {
			return "", err
		}
	}

	if err := s.changes.Log(ctx, KindTaskSave, map[string]any{
		"task_id":       task.ID,
		"title":         task.Title,
		"priority":      task.Priority,
		"priority_text": PriorityText(task.Priority),
		"dev_status":    task.DevStatus,
		"demo_status":   task.DemoStatus,
		"lt_status":     task.LTStatus,
		"prod_status":   task.ProdStatus,
	}); err != nil {
		return "", err
	}
	if in.AssignGuard && !delta.Empty() {
		if err := s.logAssignmentDelta(ctx, task, delta, next); err != nil {
			return "", err
		}
	}
	return task.ID, nil
}

// reposition moves the task to the desired board index and persists every
// position that changed, leaving a dense 0..N-1 sequence behind.
func (s *Service) reposition(ctx context.Context, target Task, index int) error {
	all, err := s.store.ListTasks(ctx)
	if err != nil {
		return err
	}
	before := make(map[string]int, len(all))
	for _, t := range all {
		before[t.ID] = t.Position
	}
	SortTasks(all)
	for _, t := range Reposition(all, target, index) {
		if pos, ok := before[t.ID]; ok && pos == t.Position {
			continue
		}
		if err := s.store.UpdateTaskPosition(ctx, t.ID, t.Position); err != nil {
			return err
		}
	}
	return nil
}

func (s *Service) logAssignmentDelta(ctx context.Context, task Task, delta Delta, next AssignmentSet) error {
	names, err := s.personNames(ctx)
	if err != nil {
		return err
	}
	for _, key := range delta.Added {
		if err := s.changes.Log(ctx, KindAssignAdd, map[string]any{
			"task_id": task.ID, "title": task.Title, "stage": key.Stage, "person": names(key.PersonID),
		}); err != nil {
			return err
		}
	}
	for _, key := range delta.Removed {
		if err := s.changes.Log(ctx, KindAssignRemove, map[string]any{
			"task_id": task.ID, "title": task.Title, "stage": key.Stage, "person": names(key.PersonID),
		}); err != nil {
			return err
		}
	}
	for _, key := range delta.Updated {
		if err := s.changes.Log(ctx, KindAssignUpdate, map[string]any{
			"task_id": task.ID, "title": task.Title, "stage": key.Stage, "person": names(key.PersonID),
			"comment": next[key],
		}); err != nil {
			return err
		}
	}
	return nil
}

func (s *Service) personNames(ctx context.Context) (func(id string) string, error) {
	people, err := s.store.ListPeople(ctx)
	if err != nil {
		return nil, err
	}
	byID := make(map[string]string, len(people))
	for _, p := range people {
		byID[p.ID] = p.Name
	}
	return func(id string) string {
		if name, ok := byID[id]; ok {
			return name
		}
		return "ID " + id
	}, nil
}

// DeleteTask removes the task and cascades its assignments and Jira items.
// Remaining tasks keep their positions; the gap is tolerated until the next
// reposition compacts the sequence.
func (s *Service) DeleteTask(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	task, err := s.store.GetTask(ctx, id)
	if err != nil {
		return err
	}
	if task == nil {
		return ErrTaskNotFound
	}
	if err := s.store.ReplaceAssignments(ctx, id, nil); err != nil {
		return err
	}
	items, err := s.store.ListJiraItems(ctx, id)
	if err != nil {
		return err
	}
	for _, it := range items {
		if err := s.store.DeleteJiraItem(ctx, it.ID); err != nil {
			return err
		}
	}
	if err := s.store.DeleteTask(ctx, id); err != nil {
		return err
	}
	return s.changes.Log(ctx, KindTaskDelete, map[string]any{"task_id": id, "title": task.Title})
}

// ReorderTasks persists position = index for every known id in the given
// order. Unknown ids are skipped; reapplying the same sequence is a no-op
// for positions.
func (s *Service) ReorderTasks(ctx context.Context, ids []string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for idx, id := range ids {
		task, err := s.store.GetTask(ctx, id)
		if err != nil {
			return err
		}
		if task == nil {
			continue
		}
		if task.Position == idx {
			continue
		}
		if err := s.store.UpdateTaskPosition(ctx, id, idx); err != nil {
			return err
		}
	}
	return s.changes.Log(ctx, KindTasksReorder, map[string]any{"ids": ids})
}

// CreatePerson adds a person with a unique trimmed name. A duplicate name is
// a silent no-op returning the existing id, with no audit event.
func (s *Service) CreatePerson(ctx context.Context, name string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	name = strings.TrimSpace(name)
	if name == "" {
		return "", ErrEmptyPersonName
	}
	people, err := s.store.ListPeople(ctx)
	if err != nil {
		return "", err
	}
	for _, p := range people {
		if p.Name == name {
			return p.ID, nil
		}
	}
	p := Person{ID: uuid.NewString(), Name: name}
	if err := s.store.InsertPerson(ctx, p); err != nil {
		return "", err
	}
	if err := s.changes.Log(ctx, KindPeopleCreate, map[string]any{"name": name}); err != nil {
		return "", err
	}
	return p.ID, nil
}

// DeletePerson removes the person and every assignment they hold. Each
// removed assignment's comment is folded into the owning task's orphan
// notes first so no free-text context is lost. Missing ids are a no-op.
func (s *Service) DeletePerson(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	person, err := s.store.GetPerson(ctx, id)
	if err != nil {
		return err
	}
	if person == nil {
		return nil
	}
	rows, err := s.store.ListPersonAssignments(ctx, id)
	if err != nil {
		return err
	}
	notes := make(map[string]string)
	order := make([]string, 0, len(rows))
	missing := make(map[string]bool)
	for _, a := range rows {
		if _, seen := notes[a.TaskID]; !seen && !missing[a.TaskID] {
			task, err := s.store.GetTask(ctx, a.TaskID)
			if err != nil {
				return err
			}
			if task == nil {
				missing[a.TaskID] = true
			} else {
				notes[a.TaskID] = task.OrphanNotes
				order = append(order, a.TaskID)
			}
		}
		// Fold the comment only when the owning task still exists; the row
		// itself goes away regardless.
		if !missing[a.TaskID] {
			notes[a.TaskID] += OrphanLine(a.Stage, person.Name, a.Comment)
		}
		if err := s.store.DeleteAssignment(ctx, a.ID); err != nil {
			return err
		}
	}
	for _, taskID := range order {
		if err := s.store.UpdateTaskOrphanNotes(ctx, taskID, notes[taskID]); err != nil {
			return err
		}
	}
	if err := s.store.DeletePerson(ctx, id); err != nil {
		return err
	}
	return s.changes.Log(ctx, KindPeopleDelete, map[string]any{"id": id, "name": person.Name})
}

// People lists everybody, ordered by name.
func (s *Service) People(ctx context.Context) ([]Person, error) {
	people, err := s.store.ListPeople(ctx)
	if err != nil {
		return nil, err
	}
	sort.Slice(people, func(i, j int) bool { return people[i].Name < people[j].Name })
	return people, nil
}

// AddJiraItem attaches a Jira reference to a task.
func (s *Service) AddJiraItem(ctx context.Context, in JiraItemInput) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	task, err := s.store.GetTask(ctx, in.TaskID)
	if err != nil {
		return "", err
	}
	if task == nil {
		return "", ErrTaskNotFound
	}
	item := JiraItem{
		ID:     uuid.NewString(),
		TaskID: in.TaskID,
		Key:    strings.TrimSpace(in.Key),
		Title:  strings.TrimSpace(in.Title),
		URL:    strings.TrimSpace(in.URL),
	}
	if err := s.store.InsertJiraItem(ctx, item); err != nil {
		return "", err
	}
	if err := s.changes.Log(ctx, KindJiraAdd, map[string]any{
		"task_id": task.ID, "title": task.Title, "key": item.Key,
	}); err != nil {
		return "", err
	}
	return item.ID, nil
}

// DeleteJiraItem removes a Jira reference scoped to its task.
func (s *Service) DeleteJiraItem(ctx context.Context, taskID, itemID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	item, err := s.store.GetJiraItem(ctx, itemID)
	if err != nil {
		return err
	}
	if item == nil || item.TaskID != taskID {
		return ErrJiraItemNotFound
	}
	if err := s.store.DeleteJiraItem(ctx, itemID); err != nil {
		return err
	}
	return s.changes.Log(ctx, KindJiraDelete, map[string]any{"task_id": taskID, "item_id": itemID})
}

// JiraItems lists the Jira references of one task.
func (s *Service) JiraItems(ctx context.Context, taskID string) ([]JiraItem, error) {
	task, err := s.store.GetTask(ctx, taskID)
	if err != nil {
		return nil, err
	}
	if task == nil {
		return nil, ErrTaskNotFound
	}
	return s.store.ListJiraItems(ctx, taskID)
}

// Changes returns the newest audit records, most recent first.
func (s *Service) Changes(ctx context.Context, limit int) ([]ChangeEvent, error) {
	return s.changes.Recent(ctx, limit)
}

// BoardView returns the board read model: tasks in display order with their
// assignment rows, plus people ordered by name. Position gaps left by
// deletions are absorbed by the stable position-then-id sort.
func (s *Service) BoardView(ctx context.Context, q BoardQuery) (Board, error) {
	tasks, err := s.store.ListTasks(ctx)
	if err != nil {
		return Board{}, err
	}
	if needle := strings.ToLower(strings.TrimSpace(q.Search)); needle != "" {
		filtered := tasks[:0]
		for _, t := range tasks {
			if strings.Contains(strings.ToLower(t.Title), needle) ||
				strings.Contains(strings.ToLower(t.Details), needle) {
				filtered = append(filtered, t)
			}
		}
		tasks = filtered
	}
	sortBoard(tasks, q.Sort)

	assignments, err := s.store.ListAssignments(ctx)
	if err != nil {
		return Board{}, err
	}
	byTask := make(map[string][]Assignment, len(tasks))
	for _, a := range assignments {
		byTask[a.TaskID] = append(byTask[a.TaskID], a)
	}

	board := Board{
		Tasks:  make([]BoardTask, 0, len(tasks)),
		Stages: Stages,
		Colors: Colors,
	}
	for _, t := range tasks {
		rows := byTask[t.ID]
		if rows == nil {
			rows = []Assignment{}
		}
		items, err := s.store.ListJiraItems(ctx, t.ID)
		if err != nil {
			return Board{}, err
		}
		if items == nil {
			items = []JiraItem{}
		}
		board.Tasks = append(board.Tasks, BoardTask{Task: t, Assignments: rows, Jira: items})
	}
	board.People, err = s.People(ctx)
	if err != nil {
		return Board{}, err
	}
	return board, nil
}

func sortBoard(tasks []Task, mode string) {
	SortTasks(tasks)
	switch mode {
	case "priority_desc":
		sort.SliceStable(tasks, func(i, j int) bool { return tasks[i].Priority > tasks[j].Priority })
	case "priority_asc":
		sort.SliceStable(tasks, func(i, j int) bool { return tasks[i].Priority < tasks[j].Priority })
	case "title":
		sort.SliceStable(tasks, func(i, j int) bool { return tasks[i].Title < tasks[j].Title })
	}
}
