package domain

import "strings"

// Pipeline stages every task passes through, in board column order.
const (
	StageDev  = "DEV"
	StageDemo = "DEMO"
	StageLT   = "LT"
	StageProd = "PROD"
)

// Stages lists the fixed pipeline stages in display order.
var Stages = []string{StageDev, StageDemo, StageLT, StageProd}

// Colors is the fixed palette for stage color tags.
var Colors = []string{"sky", "amber", "emerald", "rose", "violet", "slate"}

// DefaultColor is applied to any stage whose color tag is blank.
const DefaultColor = "sky"

// DefaultTitle substitutes an empty task title after trimming.
const DefaultTitle = "Без названия"

// Task priorities. Anything outside the range collapses to medium.
const (
	PriorityLow    = 1
	PriorityMedium = 2
	PriorityHigh   = 3
)

// Task represents a single board item.
type Task struct {
	ID          string `json:"id"`
	Title       string `json:"title"`
	Details     string `json:"details,omitempty"`
	Status      string `json:"status"`
	Priority    int    `json:"priority"`
	Position    int    `json:"position"`
	DevColor    string `json:"devColor"`
	DemoColor   string `json:"demoColor"`
	LTColor     string `json:"ltColor"`
	ProdColor   string `json:"prodColor"`
	DevStatus   string `json:"devStatus,omitempty"`
	DemoStatus  string `json:"demoStatus,omitempty"`
	LTStatus    string `json:"ltStatus,omitempty"`
	ProdStatus  string `json:"prodStatus,omitempty"`
	OrphanNotes string `json:"orphanNotes,omitempty"`
}

// Person represents somebody assignable to a stage of a task.
type Person struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// Assignment binds a person to one stage of one task with an optional comment.
type Assignment struct {
	ID       string `json:"id"`
	TaskID   string `json:"taskId"`
	PersonID string `json:"personId"`
	Stage    string `json:"stage"`
	Comment  string `json:"comment,omitempty"`
}

// JiraItem is a reference link attached to a task.
type JiraItem struct {
	ID     string `json:"id"`
	TaskID string `json:"taskId"`
	Key    string `json:"key"`
	Title  string `json:"title,omitempty"`
	URL    string `json:"url,omitempty"`
}

// ValidStage reports whether s is one of the fixed pipeline stages.
func ValidStage(s string) bool {
	for _, stage := range Stages {
		if s == stage {
			return true
		}
	}
	return false
}

// NormalizeTitle trims the title and substitutes the placeholder when empty.
func NormalizeTitle(s string) string {
	s = strings.TrimSpace(s)
	if s == "" {
		return DefaultTitle
	}
	return s
}

// NormalizeColor defaults blank color tags to the palette default.
func NormalizeColor(s string) string {
	if strings.TrimSpace(s) == "" {
		return DefaultColor
	}
	return s
}

// ClampPriority collapses anything outside the 3-level enum to medium.
func ClampPriority(p int) int {
	if p < PriorityLow || p > PriorityHigh {
		return PriorityMedium
	}
	return p
}

// PriorityText returns the Russian display label for a priority value.
func PriorityText(p int) string {
	switch ClampPriority(p) {
	case PriorityHigh:
		return "высокий"
	case PriorityLow:
		return "низкий"
	default:
		return "средний"
	}
}

// StageStatus returns the status text recorded for the given stage.
func (t Task) StageStatus(stage string) string {
	switch stage {
	case StageDev:
		return t.DevStatus
	case StageDemo:
		return t.DemoStatus
	case StageLT:
		return t.LTStatus
	case StageProd:
		return t.ProdStatus
	}
	return ""
}

// StageColor returns the color tag recorded for the given stage.
func (t Task) StageColor(stage string) string {
	switch stage {
	case StageDev:
		return t.DevColor
	case StageDemo:
		return t.DemoColor
	case StageLT:
		return t.LTColor
	case StageProd:
		return t.ProdColor
	}
	return ""
}
