package domain

import "errors"

var (
	// ErrTaskNotFound is returned when a task id does not resolve to a record.
	ErrTaskNotFound = errors.New("task not found")
	// ErrJiraItemNotFound is returned when a Jira item id does not resolve
	// to a record belonging to the addressed task.
	ErrJiraItemNotFound = errors.New("jira item not found")
	// ErrEmptyPersonName rejects person creation with a blank name.
	ErrEmptyPersonName = errors.New("person name is empty")
)
