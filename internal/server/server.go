// Package server exposes the chore API over HTTP: CRUD for every
// entity kind, transition actions, task actions and the bulk todo
// reminder.
package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/danielgtaylor/huma/v2"
	humachi "github.com/danielgtaylor/huma/v2/adapters/humachi"
	"github.com/go-chi/chi/v5"

	"choreline/internal/domain"
	"choreline/internal/engine"
	"choreline/internal/events"
	"choreline/internal/repo"
)

// Config for the HTTP API handler.
type Config struct {
	Engine   *engine.Engine
	BasePath string
}

type apiErrorBody struct {
	Code    string         `json:"code" example:"not_found"`
	Message string         `json:"message" example:"todo 9 not found"`
	Details map[string]any `json:"details,omitempty" jsonschema:"type=object,additionalProperties=true"`
}

// apiError models the error envelope.
type apiError struct {
	status int
	Body   apiErrorBody `json:"error"`
}

func (e *apiError) GetStatus() int { return e.status }
func (e *apiError) Error() string  { return e.Body.Message }

// New returns an HTTP handler exposing the chore API.
func New(cfg Config) (http.Handler, error) {
	huma.DefaultArrayNullable = false
	huma.NewError = func(status int, msg string, errs ...error) huma.StatusError {
		return newAPIError(status, "", msg, nil)
	}
	huma.NewErrorWithContext = func(_ huma.Context, status int, msg string, errs ...error) huma.StatusError {
		if status == http.StatusUnprocessableEntity && strings.Contains(strings.ToLower(msg), "validation") {
			status = http.StatusBadRequest
		}
		var details map[string]any
		if len(errs) > 0 {
			details = map[string]any{"errors": errs}
		}
		return newAPIError(status, "", msg, details)
	}

	router := chi.NewRouter()
	hcfg := huma.DefaultConfig("Choreline API", "0.1.0")
	hcfg.OpenAPIPath = "/openapi"
	api := humachi.New(router, hcfg)

	var target huma.API = api
	if base := strings.TrimRight(cfg.BasePath, "/"); base != "" {
		if !strings.HasPrefix(base, "/") {
			base = "/" + base
		}
		target = huma.NewGroup(api, base)
	}

	registerHealth(target)
	registerPersons(target, cfg.Engine)
	registerTemplates(target, cfg.Engine)
	for _, kind := range domain.ValueKinds {
		registerValue(target, cfg.Engine, kind)
	}
	for _, kind := range domain.StateKinds {
		registerState(target, cfg.Engine, kind)
	}
	registerTodos(target, cfg.Engine)
	registerTasks(target, cfg.Engine)
	registerEvents(target, cfg.Engine)

	return router, nil
}

func newAPIError(status int, code, message string, details map[string]any) huma.StatusError {
	if code == "" {
		code = defaultCodeForStatus(status)
	}
	return &apiError{
		status: status,
		Body: apiErrorBody{
			Code:    code,
			Message: message,
			Details: details,
		},
	}
}

func handleError(err error) huma.StatusError {
	if err == nil {
		return nil
	}
	if errors.Is(err, repo.ErrNotFound) {
		return newAPIError(http.StatusNotFound, "not_found", err.Error(), nil)
	}
	if errors.Is(err, engine.ErrUnknownAction) {
		return newAPIError(http.StatusBadRequest, "bad_request", err.Error(), nil)
	}
	msg := err.Error()
	lowered := strings.ToLower(msg)
	if strings.Contains(lowered, "invalid") || strings.Contains(lowered, "required") {
		return newAPIError(http.StatusBadRequest, "bad_request", msg, nil)
	}
	return newAPIError(http.StatusInternalServerError, "internal_error", "internal error", map[string]any{"error": msg})
}

func defaultCodeForStatus(status int) string {
	switch status {
	case http.StatusBadRequest:
		return "bad_request"
	case http.StatusNotFound:
		return "not_found"
	case http.StatusInternalServerError:
		return "internal_error"
	default:
		return strings.ToLower(strings.ReplaceAll(http.StatusText(status), " ", "_"))
	}
}

func registerHealth(api huma.API) {
	huma.Register(api, huma.Operation{
		OperationID: "health",
		Method:      http.MethodGet,
		Path:        "/health",
		Summary:     "Health check",
	}, func(ctx context.Context, _ *struct{}) (*struct {
		Body map[string]string `json:"body"`
	}, error) {
		return &struct {
			Body map[string]string `json:"body"`
		}{Body: map[string]string{"message": "OK"}}, nil
	})
}

func registerEvents(api huma.API, e *engine.Engine) {
	type eventsInput struct {
		Limit int `query:"limit" default:"20"`
	}
	type eventsOutput struct {
		Body struct {
			Items []events.Logged `json:"items"`
		}
	}
	huma.Register(api, huma.Operation{
		OperationID: "list-events",
		Method:      http.MethodGet,
		Path:        "/events",
		Summary:     "Tail the durable event log",
	}, func(ctx context.Context, input *eventsInput) (*eventsOutput, error) {
		items, err := events.Tail(ctx, e.DB, input.Limit)
		if err != nil {
			return nil, handleError(err)
		}
		out := &eventsOutput{}
		out.Body.Items = items
		return out, nil
	})
}

// registerTodos adds the bulk reminder: every open todo of a person in
// one envelope.
func registerTodos(api huma.API, e *engine.Engine) {
	type todosInput struct {
		Body struct {
			Todos map[string]any `json:"todos"`
		}
	}
	huma.Register(api, huma.Operation{
		OperationID:   "remind-todos",
		Method:        http.MethodPatch,
		Path:          "/todo",
		Summary:       "Remind all open todos of a person",
		DefaultStatus: http.StatusAccepted,
	}, func(ctx context.Context, input *todosInput) (*updatedOutput, error) {
		if input.Body.Todos == nil {
			return nil, newAPIError(http.StatusBadRequest, "bad_request", "todos is required", nil)
		}
		updated, err := e.RemindTodos(ctx, input.Body.Todos)
		if err != nil {
			return nil, handleError(err)
		}
		return &updatedOutput{Body: updatedBody{Updated: updated}}, nil
	})
}

func registerTasks(api huma.API, e *engine.Engine) {
	type taskActionInput struct {
		ID     int64  `path:"id"`
		TaskID int    `path:"task_id"`
		Action string `path:"action" enum:"remind,pause,unpause,skip,unskip,complete,uncomplete"`
	}
	huma.Register(api, huma.Operation{
		OperationID:   "task-action",
		Method:        http.MethodPatch,
		Path:          "/routine/{id}/task/{task_id}/{action}",
		Summary:       "Apply a transition to one task of a routine",
		DefaultStatus: http.StatusAccepted,
	}, func(ctx context.Context, input *taskActionInput) (*updatedOutput, error) {
		updated, err := e.TaskAction(ctx, input.ID, input.TaskID, input.Action)
		if err != nil {
			return nil, handleError(err)
		}
		return &updatedOutput{Body: updatedBody{Updated: updated}}, nil
	})
}

func opID(verb string, kind domain.Kind) string {
	return fmt.Sprintf("%s-%s", verb, kind)
}
