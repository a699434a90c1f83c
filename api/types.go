package api

import (
	"context"

	"stageboard-api/domain"
)

// Service abstracts the board mutation and read operations for handlers.
type Service interface {
	BoardView(ctx context.Context, q domain.BoardQuery) (domain.Board, error)
	SaveTask(ctx context.Context, in domain.SaveTaskInput) (string, error)
	DeleteTask(ctx context.Context, id string) error
	ReorderTasks(ctx context.Context, ids []string) error

	People(ctx context.Context) ([]domain.Person, error)
	CreatePerson(ctx context.Context, name string) (string, error)
	DeletePerson(ctx context.Context, id string) error

	JiraItems(ctx context.Context, taskID string) ([]domain.JiraItem, error)
	AddJiraItem(ctx context.Context, in domain.JiraItemInput) (string, error)
	DeleteJiraItem(ctx context.Context, taskID, itemID string) error

	Changes(ctx context.Context, limit int) ([]domain.ChangeEvent, error)
}

// saveTaskMaxSize bounds the request body accepted by the save endpoint.
const saveTaskMaxSize = 1 << 20

// saveTaskRequest is the wire form of a task save. AssignGuard carries the
// literal flag value; only "1" activates assignment replacement.
type saveTaskRequest struct {
	ID          string                      `json:"id"`
	Title       string                      `json:"title"`
	Details     string                      `json:"details"`
	Status      string                      `json:"status"`
	Priority    int                         `json:"priority"`
	OrderIndex  *int                        `json:"orderIndex"`
	DevColor    string                      `json:"devColor"`
	DemoColor   string                      `json:"demoColor"`
	LTColor     string                      `json:"ltColor"`
	ProdColor   string                      `json:"prodColor"`
	DevStatus   string                      `json:"devStatus"`
	DemoStatus  string                      `json:"demoStatus"`
	LTStatus    string                      `json:"ltStatus"`
	ProdStatus  string                      `json:"prodStatus"`
	OrphanNotes string                      `json:"orphanNotes"`
	Assignments []domain.ProposedAssignment `json:"assignments"`
	AssignGuard string                      `json:"assignGuard"`
}

func (r saveTaskRequest) toInput() domain.SaveTaskInput {
	return domain.SaveTaskInput{
		ID:          r.ID,
		Title:       r.Title,
		Details:     r.Details,
		Status:      r.Status,
		Priority:    r.Priority,
		OrderIndex:  r.OrderIndex,
		DevColor:    r.DevColor,
		DemoColor:   r.DemoColor,
		LTColor:     r.LTColor,
		ProdColor:   r.ProdColor,
		DevStatus:   r.DevStatus,
		DemoStatus:  r.DemoStatus,
		LTStatus:    r.LTStatus,
		ProdStatus:  r.ProdStatus,
		OrphanNotes: r.OrphanNotes,
		Assignments: r.Assignments,
		AssignGuard: r.AssignGuard == "1",
	}
}

type saveTaskResponse struct {
	ID string `json:"id"`
}

type reorderRequest struct {
	IDs []string `json:"ids"`
}

type createPersonRequest struct {
	Name string `json:"name"`
}

type createPersonResponse struct {
	ID string `json:"id"`
}

type addJiraRequest struct {
	Key   string `json:"key"`
	Title string `json:"title"`
	URL   string `json:"url"`
}

type addJiraResponse struct {
	ID string `json:"id"`
}

type historyResponse struct {
	Events []domain.ChangeEvent `json:"events"`
}
