package main

import (
	"context"
	"errors"
	"os"
	"strconv"

	"github.com/Azure/azure-sdk-for-go/sdk/azcore"
	"github.com/Azure/azure-sdk-for-go/sdk/data/aztables"
	"github.com/Azure/azure-sdk-for-go/sdk/storage/azqueue"
	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"

	"stageboard-api/domain"
	"stageboard-api/storage"
)

func main() {
	if dbg, err := strconv.ParseBool(os.Getenv("DEBUG")); err == nil && dbg {
		log.SetLevel(log.DebugLevel)
	}
	log.Info("storage init starting")

	connStr := os.Getenv("STORAGE_CONNECTION_STRING")
	if connStr == "" {
		log.Fatal("missing STORAGE_CONNECTION_STRING")
	}

	tables := storage.Tables{
		Tasks:       envString("TASKS_TABLE", "boardtasks"),
		People:      envString("PEOPLE_TABLE", "boardpeople"),
		Assignments: envString("ASSIGNMENTS_TABLE", "boardassignments"),
		Jira:        envString("JIRA_TABLE", "boardjira"),
		Changes:     envString("CHANGES_TABLE", "boardchanges"),
	}

	ctx := context.Background()

	if err := createTables(ctx, connStr, []string{
		tables.Tasks,
		tables.People,
		tables.Assignments,
		tables.Jira,
		tables.Changes,
	}); err != nil {
		log.Fatalf("create tables: %v", err)
	}

	if err := createQueues(ctx, connStr, []string{
		os.Getenv("CHANGE_FEED_QUEUE"),
	}); err != nil {
		log.Fatalf("create queues: %v", err)
	}

	if os.Getenv("SEED_DEMO_DATA") == "1" {
		store, err := storage.New(connStr, tables, "")
		if err != nil {
			log.Fatalf("storage: %v", err)
		}
		if err := seed(ctx, store); err != nil {
			log.Fatalf("seed: %v", err)
		}
	}

	log.Info("storage init complete")
}

func envString(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func createTables(ctx context.Context, connStr string, names []string) error {
	svc, err := aztables.NewServiceClientFromConnectionString(connStr, nil)
	if err != nil {
		return err
	}
	for _, name := range names {
		if name == "" {
			continue
		}
		c := svc.NewClient(name)
		_, err := c.CreateTable(ctx, nil)
		if err != nil {
			var respErr *azcore.ResponseError
			if !(errors.As(err, &respErr) && respErr.ErrorCode == string(aztables.TableAlreadyExists)) {
				return err
			}
		}
	}
	return nil
}

func createQueues(ctx context.Context, connStr string, names []string) error {
	for _, name := range names {
		if name == "" {
			continue
		}
		q, err := azqueue.NewQueueClientFromConnectionString(connStr, name, nil)
		if err != nil {
			return err
		}
		_, err = q.Create(ctx, nil)
		if err != nil {
			var respErr *azcore.ResponseError
			if !(errors.As(err, &respErr) && respErr.ErrorCode == "QueueAlreadyExists") {
				return err
			}
		}
	}
	return nil
}

// seed fills empty tables with the demo board used on first deployment.
func seed(ctx context.Context, store *storage.Storage) error {
	people, err := store.ListPeople(ctx)
	if err != nil {
		return err
	}
	if len(people) == 0 {
		for _, name := range []string{"Катышкин", "Морозов", "Намдаков", "Траулько", "Чистов"} {
			p := domain.Person{ID: uuid.NewString(), Name: name}
			if err := store.InsertPerson(ctx, p); err != nil {
				return err
			}
			people = append(people, p)
		}
		log.Infof("seeded %d people", len(people))
	}

	tasks, err := store.ListTasks(ctx)
	if err != nil {
		return err
	}
	if len(tasks) > 0 {
		return nil
	}

	t1 := domain.Task{
		ID:       uuid.NewString(),
		Title:    "Пример задачи 1",
		Details:  "Демонстрация длинного описания для проверки адаптивности и переносов строк в ячейках.",
		Status:   "in progress",
		Priority: domain.PriorityMedium,
		Position: 0,
		DevColor: "sky", DemoColor: "amber", LTColor: "emerald", ProdColor: "rose",
		DevStatus: "подготовка", DemoStatus: "демо запланировано", LTStatus: "тест", ProdStatus: "—",
	}
	t2 := domain.Task{
		ID:       uuid.NewString(),
		Title:    "Пример задачи 2",
		Details:  "Описание второй задачи",
		Status:   "new",
		Priority: domain.PriorityHigh,
		Position: 1,
		DevColor: "emerald", DemoColor: "sky", LTColor: "amber", ProdColor: "rose",
		DevStatus: "идёт разработка",
	}
	for _, t := range []domain.Task{t1, t2} {
		if err := store.UpsertTask(ctx, t); err != nil {
			return err
		}
	}

	if len(people) >= 3 {
		longComment := "Очень длинный комментарий ответственного, который показывает переносы строк, устойчивость окна, отсутствие ограничения по размеру и корректную позицию в правом верхнем углу относительно фамилии пользователя."
		assignments := []domain.Assignment{
			{ID: uuid.NewString(), TaskID: t1.ID, PersonID: people[0].ID, Stage: domain.StageDev, Comment: longComment},
			{ID: uuid.NewString(), TaskID: t1.ID, PersonID: people[1].ID, Stage: domain.StageDemo, Comment: "Готовит презентацию"},
			{ID: uuid.NewString(), TaskID: t2.ID, PersonID: people[2].ID, Stage: domain.StageDev, Comment: "Настраивает CI/CD"},
		}
		if err := store.ReplaceAssignments(ctx, t1.ID, assignments[:2]); err != nil {
			return err
		}
		if err := store.ReplaceAssignments(ctx, t2.ID, assignments[2:]); err != nil {
			return err
		}
	}

	jira := []domain.JiraItem{
		{ID: uuid.NewString(), TaskID: t1.ID, Key: "ABC-123", Title: "Подготовить API"},
		{ID: uuid.NewString(), TaskID: t1.ID, Key: "ABC-124", Title: "Сделать демо"},
	}
	for _, item := range jira {
		if err := store.InsertJiraItem(ctx, item); err != nil {
			return err
		}
	}
	log.Info("seeded demo board")
	return nil
}
