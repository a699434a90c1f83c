package domain

import (
	"context"
	"fmt"
	"sync/atomic"
	"time"

	log "github.com/sirupsen/logrus"
)

// Change event kinds recorded in the audit log.
const (
	KindTaskSave     = "task.save"
	KindTaskDelete   = "task.delete"
	KindAssignAdd    = "assign.add"
	KindAssignRemove = "assign.remove"
	KindAssignUpdate = "assign.update"
	KindPeopleCreate = "people.create"
	KindPeopleDelete = "people.delete"
	KindJiraAdd      = "jira.add"
	KindJiraDelete   = "jira.delete"
	KindTasksReorder = "tasks.reorder"
)

// ChangeEvent is one immutable audit record. Seq is a process-monotonic
// sequence used by the store to keep same-second events ordered.
type ChangeEvent struct {
	Seq       int64          `json:"seq"`
	Timestamp string         `json:"ts"`
	Kind      string         `json:"kind"`
	Text      string         `json:"text"`
	Payload   map[string]any `json:"payload"`
}

// ChangeSink persists audit records append-only.
type ChangeSink interface {
	AppendChange(ctx context.Context, ev ChangeEvent) error
	ListChanges(ctx context.Context, limit int) ([]ChangeEvent, error)
}

// ChangeFeed mirrors appended audit records onto a queue for downstream
// consumers. Publishing is best-effort.
type ChangeFeed interface {
	PublishChange(ctx context.Context, ev ChangeEvent) error
}

// ChangeLog derives human-readable audit text and appends immutable records.
type ChangeLog struct {
	sink   ChangeSink
	feed   ChangeFeed
	strict bool
	now    func() time.Time
	logger *log.Logger
}

// NewChangeLog creates a change log over the given sink. feed may be nil.
// When strict is set, a failed append fails the triggering mutation instead
// of only being logged.
func NewChangeLog(sink ChangeSink, feed ChangeFeed, strict bool, logger *log.Logger) *ChangeLog {
	if sink == nil {
		panic("domain.NewChangeLog: sink is required")
	}
	if logger == nil {
		logger = log.StandardLogger()
	}
	return &ChangeLog{sink: sink, feed: feed, strict: strict, now: time.Now, logger: logger}
}

// Log appends one audit record for the given kind. The derived text is also
// stored inside the payload under "text" so replaying consumers need no
// template table of their own.
func (l *ChangeLog) Log(ctx context.Context, kind string, payload map[string]any) error {
	if payload == nil {
		payload = map[string]any{}
	}
	ev := ChangeEvent{
		Seq:       nextSeq(),
		Timestamp: l.now().UTC().Format("2006-01-02T15:04:05Z"),
		Kind:      kind,
		Text:      RenderText(kind, payload),
		Payload:   payload,
	}
	payload["text"] = ev.Text

	if err := l.sink.AppendChange(ctx, ev); err != nil {
		if l.strict {
			return err
		}
		l.logger.WithError(err).WithField("kind", kind).Error("change append failed")
		return nil
	}
	if l.feed != nil {
		if err := l.feed.PublishChange(ctx, ev); err != nil {
			l.logger.WithError(err).WithField("kind", kind).Warn("change feed publish failed")
		}
	}
	return nil
}

// Recent returns the newest audit records, most recent first.
func (l *ChangeLog) Recent(ctx context.Context, limit int) ([]ChangeEvent, error) {
	if limit <= 0 {
		limit = 500
	}
	return l.sink.ListChanges(ctx, limit)
}

// RenderText derives the fixed human-readable summary for a change event.
// Unknown kinds, and any failure while deriving, fall back to the raw kind
// string; logging must never break on a malformed payload.
func RenderText(kind string, payload map[string]any) (text string) {
	defer func() {
		if recover() != nil {
			text = kind
		}
	}()
	get := func(key string) string { return payloadString(payload, key) }

	switch kind {
	case KindTaskSave:
		title := get("title")
		if title == "" {
			title = DefaultTitle
		}
		return fmt.Sprintf("Сохранена задача «%s» (%s). Статусы: DEV='%s', DEMO='%s', LT='%s', PROD='%s'.",
			title, get("priority_text"), get("dev_status"), get("demo_status"), get("lt_status"), get("prod_status"))
	case KindAssignAdd:
		return fmt.Sprintf("Назначен %s на %s по задаче «%s»", get("person"), get("stage"), get("title"))
	case KindAssignRemove:
		return fmt.Sprintf("Удалена задача у %s на %s (задача «%s»)", get("person"), get("stage"), get("title"))
	case KindAssignUpdate:
		return fmt.Sprintf("Обновлён комментарий у %s на %s (задача «%s»): «%s»", get("person"), get("stage"), get("title"), get("comment"))
	case KindTaskDelete:
		title := get("title")
		if title == "" {
			title = "ID " + get("task_id")
		}
		return fmt.Sprintf("Удалена задача «%s»", title)
	case KindPeopleCreate:
		return fmt.Sprintf("Создан ответственный %s", get("name"))
	case KindPeopleDelete:
		name := get("name")
		if name == "" {
			name = "ID " + get("id")
		}
		return fmt.Sprintf("Удалён ответственный %s", name)
	case KindJiraAdd:
		return fmt.Sprintf("Добавлена Jira-задача %s к «%s»", get("key"), get("title"))
	case KindJiraDelete:
		return fmt.Sprintf("Удалена Jira-задача ID %s", get("item_id"))
	case KindTasksReorder:
		return "Обновлён порядок задач на доске"
	default:
		return kind
	}
}

func payloadString(payload map[string]any, key string) string {
	if payload == nil {
		return ""
	}
	v, ok := payload[key]
	if !ok || v == nil {
		return ""
	}
	if s, ok := v.(string); ok {
		return s
	}
	return fmt.Sprint(v)
}

var lastSeq int64

// nextSeq hands out strictly increasing sequence numbers even when the
// wall clock stalls or steps backwards.
func nextSeq() int64 {
	for {
		now := time.Now().UnixNano()
		last := atomic.LoadInt64(&lastSeq)
		if now <= last {
			now = last + 1
		}
		if atomic.CompareAndSwapInt64(&lastSeq, last, now) {
			return now
		}
	}
}
