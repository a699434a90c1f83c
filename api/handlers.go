package api

import (
	"errors"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/bytedance/sonic"
	"github.com/labstack/echo/v4"
	log "github.com/sirupsen/logrus"

	"stageboard-api/domain"
)

// Register wires up all API routes on the provided Echo instance.
func Register(e *echo.Echo, svc Service, logger *log.Logger) {
	e.GET("/api/board", getBoard(svc))
	e.POST("/api/tasks/save", saveTask(svc, logger))
	e.POST("/api/tasks/reorder", reorderTasks(svc))
	e.DELETE("/api/tasks/:id", deleteTask(svc))

	e.GET("/api/people", getPeople(svc))
	e.POST("/api/people", createPerson(svc))
	e.DELETE("/api/people/:id", deletePerson(svc))

	e.GET("/api/tasks/:id/jira", getJiraItems(svc))
	e.POST("/api/tasks/:id/jira", addJiraItem(svc))
	e.DELETE("/api/tasks/:id/jira/:itemId", deleteJiraItem(svc))

	e.GET("/api/history", getHistory(svc))
	e.GET("/api/export/csv", exportCSV(svc))
	e.GET("/healthz", healthz())
}

func healthz() echo.HandlerFunc {
	return func(c echo.Context) error {
		return c.NoContent(http.StatusOK)
	}
}

func decodeBody(c echo.Context, out any) error {
	lr := io.LimitReader(c.Request().Body, saveTaskMaxSize)
	dec := sonic.ConfigStd.NewDecoder(lr)
	dec.DisallowUnknownFields()
	return dec.Decode(out)
}

// serviceError maps domain sentinels onto HTTP statuses.
func serviceError(c echo.Context, err error) error {
	switch {
	case errors.Is(err, domain.ErrTaskNotFound):
		return c.String(http.StatusNotFound, "task not found")
	case errors.Is(err, domain.ErrJiraItemNotFound):
		return c.String(http.StatusNotFound, "jira item not found")
	case errors.Is(err, domain.ErrEmptyPersonName):
		return c.String(http.StatusBadRequest, "name is required")
	default:
		c.Logger().Error(err)
		return c.String(http.StatusInternalServerError, err.Error())
	}
}

func getBoard(svc Service) echo.HandlerFunc {
	return func(c echo.Context) error {
		board, err := svc.BoardView(c.Request().Context(), domain.BoardQuery{
			Sort:   c.QueryParam("sort"),
			Search: c.QueryParam("q"),
		})
		if err != nil {
			return serviceError(c, err)
		}
		return c.JSON(http.StatusOK, board)
	}
}

func saveTask(svc Service, logger *log.Logger) echo.HandlerFunc {
	return func(c echo.Context) (err error) {
		ctx := c.Request().Context()
		metrics, spanCtx := newSaveRequestMetrics(ctx, logger)
		if spanCtx != nil {
			c.SetRequest(c.Request().WithContext(spanCtx))
			ctx = spanCtx
		}
		defer func() {
			metrics.Log(c.Response().Status, err)
		}()

		var req saveTaskRequest
		decodeStart := time.Now()
		decodeErr := decodeBody(c, &req)
		metrics.ObserveDecode(time.Since(decodeStart))
		if decodeErr != nil {
			metrics.SetErrorStage("decode")
			err = c.String(http.StatusBadRequest, "invalid body")
			return err
		}
		in := req.toInput()
		metrics.SetGuardActive(in.AssignGuard)
		metrics.SetAssignmentsSubmitted(len(in.Assignments))

		applyStart := time.Now()
		id, saveErr := svc.SaveTask(ctx, in)
		metrics.ObserveApply(time.Since(applyStart))
		if saveErr != nil {
			if errors.Is(saveErr, domain.ErrTaskNotFound) {
				metrics.SetErrorStage("not_found")
			} else {
				metrics.SetErrorStage("apply")
			}
			err = serviceError(c, saveErr)
			return err
		}
		err = c.JSON(http.StatusOK, saveTaskResponse{ID: id})
		if err != nil {
			metrics.SetErrorStage("encode_response")
		}
		return err
	}
}

func reorderTasks(svc Service) echo.HandlerFunc {
	return func(c echo.Context) error {
		var req reorderRequest
		if err := decodeBody(c, &req); err != nil {
			return c.String(http.StatusBadRequest, "invalid body")
		}
		if err := svc.ReorderTasks(c.Request().Context(), req.IDs); err != nil {
			return serviceError(c, err)
		}
		return c.NoContent(http.StatusNoContent)
	}
}

func deleteTask(svc Service) echo.HandlerFunc {
	return func(c echo.Context) error {
		if err := svc.DeleteTask(c.Request().Context(), c.Param("id")); err != nil {
			return serviceError(c, err)
		}
		return c.NoContent(http.StatusNoContent)
	}
}

func getPeople(svc Service) echo.HandlerFunc {
	return func(c echo.Context) error {
		people, err := svc.People(c.Request().Context())
		if err != nil {
			return serviceError(c, err)
		}
		return c.JSON(http.StatusOK, people)
	}
}

func createPerson(svc Service) echo.HandlerFunc {
	return func(c echo.Context) error {
		var req createPersonRequest
		if err := decodeBody(c, &req); err != nil {
			return c.String(http.StatusBadRequest, "invalid body")
		}
		id, err := svc.CreatePerson(c.Request().Context(), req.Name)
		if err != nil {
			return serviceError(c, err)
		}
		return c.JSON(http.StatusOK, createPersonResponse{ID: id})
	}
}

func deletePerson(svc Service) echo.HandlerFunc {
	return func(c echo.Context) error {
		if err := svc.DeletePerson(c.Request().Context(), c.Param("id")); err != nil {
			return serviceError(c, err)
		}
		return c.NoContent(http.StatusNoContent)
	}
}

func getJiraItems(svc Service) echo.HandlerFunc {
	return func(c echo.Context) error {
		items, err := svc.JiraItems(c.Request().Context(), c.Param("id"))
		if err != nil {
			return serviceError(c, err)
		}
		return c.JSON(http.StatusOK, items)
	}
}

func addJiraItem(svc Service) echo.HandlerFunc {
	return func(c echo.Context) error {
		var req addJiraRequest
		if err := decodeBody(c, &req); err != nil {
			return c.String(http.StatusBadRequest, "invalid body")
		}
		id, err := svc.AddJiraItem(c.Request().Context(), domain.JiraItemInput{
			TaskID: c.Param("id"),
			Key:    req.Key,
			Title:  req.Title,
			URL:    req.URL,
		})
		if err != nil {
			return serviceError(c, err)
		}
		return c.JSON(http.StatusOK, addJiraResponse{ID: id})
	}
}

func deleteJiraItem(svc Service) echo.HandlerFunc {
	return func(c echo.Context) error {
		if err := svc.DeleteJiraItem(c.Request().Context(), c.Param("id"), c.Param("itemId")); err != nil {
			return serviceError(c, err)
		}
		return c.NoContent(http.StatusNoContent)
	}
}

func getHistory(svc Service) echo.HandlerFunc {
	return func(c echo.Context) error {
		limit := 0
		if raw := strings.TrimSpace(c.QueryParam("limit")); raw != "" {
			parsed, err := strconv.Atoi(raw)
			if err != nil || parsed <= 0 {
				return c.String(http.StatusBadRequest, "invalid limit")
			}
			limit = parsed
		}
		events, err := svc.Changes(c.Request().Context(), limit)
		if err != nil {
			return serviceError(c, err)
		}
		return c.JSON(http.StatusOK, historyResponse{Events: events})
	}
}

func exportCSV(svc Service) echo.HandlerFunc {
	return func(c echo.Context) error {
		board, err := svc.BoardView(c.Request().Context(), domain.BoardQuery{})
		if err != nil {
			return serviceError(c, err)
		}
		res := c.Response()
		res.Header().Set(echo.HeaderContentType, "text/csv; charset=utf-8")
		res.Header().Set(echo.HeaderContentDisposition, `attachment; filename="board.csv"`)
		res.WriteHeader(http.StatusOK)
		return writeBoardCSV(res, board.Tasks)
	}
}
