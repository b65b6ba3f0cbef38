package api

import (
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/bytedance/sonic"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	log "github.com/sirupsen/logrus"

	"tasks-api/domain"
)

// Register wires up all API routes on the provided Echo instance.
func Register(e *echo.Echo, store Storage, ids domain.IDStrategy, logger *log.Logger) {
	e.JSONSerializer = SonicSerializer{}
	e.HTTPErrorHandler = httpErrorHandler(logger)
	e.Pre(middleware.RemoveTrailingSlash())

	decompress := DecompressRequestMiddleware()
	e.GET("/tasks", listTasks(store, logger))
	e.GET("/tasks/:id", getTask(store, logger))
	e.POST("/tasks", createTask(store, ids, logger), decompress)
	e.PUT("/tasks/:id", updateTask(store, logger), decompress)
	e.DELETE("/tasks/:id", deleteTask(store, logger))
	e.GET("/healthz", healthz(store))
}

// taskInput is the validated body of create and update requests.
type taskInput struct {
	Title       string
	Description string
	Completed   bool
}

func (in taskInput) task(id int64) domain.Task {
	return domain.Task{ID: id, Title: in.Title, Description: in.Description, Completed: in.Completed}
}

// decodeTaskInput accepts only a JSON request whose body is an object with
// string title and description and a boolean completed. Other fields are
// ignored.
func decodeTaskInput(req *http.Request) (taskInput, bool) {
	if !isJSONRequest(req) {
		return taskInput{}, false
	}
	data, err := io.ReadAll(io.LimitReader(req.Body, taskBodyMaxSize+1))
	if err != nil || len(data) > taskBodyMaxSize {
		return taskInput{}, false
	}
	var fields map[string]interface{}
	if err := sonic.ConfigStd.Unmarshal(data, &fields); err != nil {
		return taskInput{}, false
	}
	title, ok := fields["title"].(string)
	if !ok {
		return taskInput{}, false
	}
	description, ok := fields["description"].(string)
	if !ok {
		return taskInput{}, false
	}
	completed, ok := fields["completed"].(bool)
	if !ok {
		return taskInput{}, false
	}
	return taskInput{Title: title, Description: description, Completed: completed}, true
}

func isJSONRequest(req *http.Request) bool {
	ctype := strings.ToLower(strings.TrimSpace(req.Header.Get(echo.HeaderContentType)))
	return strings.HasPrefix(ctype, echo.MIMEApplicationJSON)
}

// pathID returns the percent-decoded :id segment and its numeric value.
func pathID(c echo.Context) (string, int64, bool) {
	raw := c.Param("id")
	if decoded, err := url.PathUnescape(raw); err == nil {
		raw = decoded
	}
	id, ok := domain.ParseID(raw)
	return raw, id, ok
}

type instrumentedHandler func(c echo.Context, m *requestMetrics) error

// instrument opens a span and request metrics around h and logs them once the
// response is written.
func instrument(logger *log.Logger, operation, route string, h instrumentedHandler) echo.HandlerFunc {
	return func(c echo.Context) (err error) {
		req := c.Request()
		metrics, spanCtx := newRequestMetrics(req.Context(), logger, operation, req.Method, route)
		c.SetRequest(req.WithContext(spanCtx))
		defer func() {
			metrics.Log(c.Response().Status, err)
		}()

		requestID := c.Response().Header().Get(echo.HeaderXRequestID)
		if requestID == "" {
			requestID = req.Header.Get(echo.HeaderXRequestID)
		}
		metrics.SetRequestID(requestID)
		return h(c, metrics)
	}
}

func listTasks(store Storage, logger *log.Logger) echo.HandlerFunc {
	return instrument(logger, "list", "/tasks", func(c echo.Context, m *requestMetrics) error {
		storeStart := time.Now()
		tasks, err := store.LoadAll(c.Request().Context())
		m.ObserveStore(time.Since(storeStart))
		if err != nil {
			return storageFailure(c, m, logger, err, msgInternal)
		}
		m.SetTasksReturned(len(tasks))
		return writeJSON(c, m, http.StatusOK, tasks)
	})
}

func getTask(store Storage, logger *log.Logger) echo.HandlerFunc {
	return instrument(logger, "get", "/tasks/:id", func(c echo.Context, m *requestMetrics) error {
		raw, id, ok := pathID(c)
		m.SetTaskID(raw)

		storeStart := time.Now()
		tasks, err := store.LoadAll(c.Request().Context())
		m.ObserveStore(time.Since(storeStart))
		if err != nil {
			return storageFailure(c, m, logger, err, msgInternal)
		}
		i := -1
		if ok {
			i = domain.IndexOf(tasks, id)
		}
		if i < 0 {
			return notFound(c, m)
		}
		return writeJSON(c, m, http.StatusOK, tasks[i])
	})
}

func createTask(store Storage, ids domain.IDStrategy, logger *log.Logger) echo.HandlerFunc {
	return instrument(logger, "create", "/tasks", func(c echo.Context, m *requestMetrics) error {
		in, valid := decodeTaskInput(c.Request())
		if !valid {
			m.SetErrorStage("validation")
			return c.JSON(http.StatusBadRequest, errorResponse{Error: msgInvalidTask})
		}

		var created domain.Task
		storeStart := time.Now()
		err := store.Update(c.Request().Context(), func(tasks []domain.Task) ([]domain.Task, error) {
			created = in.task(domain.NextID(tasks, ids))
			return append(tasks, created), nil
		})
		m.ObserveStore(time.Since(storeStart))
		if err != nil {
			return storageFailure(c, m, logger, err, msgCreateFailed)
		}
		m.SetTaskID(formatID(created.ID))
		return writeJSON(c, m, http.StatusCreated, created)
	})
}

func updateTask(store Storage, logger *log.Logger) echo.HandlerFunc {
	return instrument(logger, "update", "/tasks/:id", func(c echo.Context, m *requestMetrics) error {
		raw, id, ok := pathID(c)
		m.SetTaskID(raw)
		in, valid := decodeTaskInput(c.Request())
		if !valid {
			m.SetErrorStage("validation")
			return c.JSON(http.StatusBadRequest, errorResponse{Error: msgInvalidTask})
		}

		var updated domain.Task
		storeStart := time.Now()
		err := store.Update(c.Request().Context(), func(tasks []domain.Task) ([]domain.Task, error) {
			i := -1
			if ok {
				i = domain.IndexOf(tasks, id)
			}
			if i < 0 {
				return nil, domain.ErrTaskNotFound
			}
			updated = in.task(id)
			tasks[i] = updated
			return tasks, nil
		})
		m.ObserveStore(time.Since(storeStart))
		if errors.Is(err, domain.ErrTaskNotFound) {
			return notFound(c, m)
		}
		if err != nil {
			return storageFailure(c, m, logger, err, msgUpdateFailed)
		}
		return writeJSON(c, m, http.StatusOK, updated)
	})
}

func deleteTask(store Storage, logger *log.Logger) echo.HandlerFunc {
	return instrument(logger, "delete", "/tasks/:id", func(c echo.Context, m *requestMetrics) error {
		raw, id, ok := pathID(c)
		m.SetTaskID(raw)

		storeStart := time.Now()
		err := store.Update(c.Request().Context(), func(tasks []domain.Task) ([]domain.Task, error) {
			if !ok {
				return nil, domain.ErrTaskNotFound
			}
			remaining := domain.Without(tasks, id)
			if len(remaining) == len(tasks) {
				return nil, domain.ErrTaskNotFound
			}
			return remaining, nil
		})
		m.ObserveStore(time.Since(storeStart))
		if errors.Is(err, domain.ErrTaskNotFound) {
			return notFound(c, m)
		}
		if err != nil {
			return storageFailure(c, m, logger, err, msgDeleteFailed)
		}
		return writeJSON(c, m, http.StatusOK, messageResponse{
			Message: fmt.Sprintf("Task with ID %d deleted successfully.", id),
		})
	})
}

func healthz(store Storage) echo.HandlerFunc {
	return func(c echo.Context) error {
		if _, err := store.LoadAll(c.Request().Context()); err != nil {
			return c.JSON(http.StatusServiceUnavailable, errorResponse{Error: err.Error()})
		}
		return c.NoContent(http.StatusOK)
	}
}

func writeJSON(c echo.Context, m *requestMetrics, status int, body interface{}) error {
	encodeStart := time.Now()
	err := c.JSON(status, body)
	m.ObserveEncode(time.Since(encodeStart))
	if err != nil {
		m.SetErrorStage("encode_response")
	}
	return err
}

func notFound(c echo.Context, m *requestMetrics) error {
	m.SetErrorStage("not_found")
	return c.JSON(http.StatusNotFound, errorResponse{Error: msgNotFound})
}

// storageFailure answers 500 with a message naming the failed step. writeMsg
// is used when persisting the new collection failed.
func storageFailure(c echo.Context, m *requestMetrics, logger *log.Logger, err error, writeMsg string) error {
	msg := msgInternal
	stage := "storage"
	var se StorageError
	if errors.As(err, &se) {
		stage = "storage_" + se.StorageStage()
		switch se.StorageStage() {
		case "read":
			msg = msgReadFailed
		case "parse":
			msg = msgParseFailed
		case "write":
			msg = writeMsg
		}
	}
	m.Fail(stage, err)
	if logger != nil {
		logger.WithError(err).WithField("stage", stage).Error("task storage failure")
	}
	return c.JSON(http.StatusInternalServerError, errorResponse{Error: msg})
}

func httpErrorHandler(logger *log.Logger) echo.HTTPErrorHandler {
	return func(err error, c echo.Context) {
		if c.Response().Committed {
			return
		}
		code := http.StatusInternalServerError
		msg := msgInternal
		var he *echo.HTTPError
		if errors.As(err, &he) {
			code = he.Code
			if s, ok := he.Message.(string); ok {
				msg = s
			} else {
				msg = http.StatusText(code)
			}
		} else if logger != nil {
			logger.WithError(err).Error("unhandled request error")
		}

		var werr error
		if c.Request().Method == http.MethodHead {
			werr = c.NoContent(code)
		} else {
			werr = c.JSON(code, errorResponse{Error: msg})
		}
		if werr != nil && logger != nil {
			logger.WithError(werr).Warn("failed to write error response")
		}
	}
}
