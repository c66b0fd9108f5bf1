package server

import (
	"context"
	"net/http"

	"github.com/danielgtaylor/huma/v2"

	"choreline/internal/domain"
	"choreline/internal/engine"
)

func registerTemplates(api huma.API, e *engine.Engine) {
	type templateOutput struct {
		Body domain.Template
	}
	type templateListOutput struct {
		Body struct {
			Items []domain.Template `json:"items"`
		}
	}
	type templateBody struct {
		Name string         `json:"name,omitempty"`
		Kind domain.Kind    `json:"kind,omitempty" enum:"area,act,todo,routine"`
		Data map[string]any `json:"data,omitempty"`
	}

	huma.Register(api, huma.Operation{
		OperationID:   "create-template",
		Method:        http.MethodPost,
		Path:          "/template",
		Summary:       "Create a template",
		DefaultStatus: http.StatusCreated,
	}, func(ctx context.Context, input *struct{ Body templateBody }) (*templateOutput, error) {
		if input.Body.Name == "" {
			return nil, newAPIError(http.StatusBadRequest, "bad_request", "name is required", nil)
		}
		if input.Body.Kind == "" {
			return nil, newAPIError(http.StatusBadRequest, "bad_request", "kind is required", nil)
		}
		tmpl := domain.Template{Name: input.Body.Name, Kind: input.Body.Kind, Data: input.Body.Data}
		if tmpl.Data == nil {
			tmpl.Data = map[string]any{}
		}
		if err := e.Repo.InsertTemplate(ctx, &tmpl); err != nil {
			return nil, handleError(err)
		}
		return &templateOutput{Body: tmpl}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "list-templates",
		Method:      http.MethodGet,
		Path:        "/template",
		Summary:     "List templates",
	}, func(ctx context.Context, input *struct {
		Kind domain.Kind `query:"kind"`
	}) (*templateListOutput, error) {
		items, err := e.Repo.ListTemplates(ctx, input.Kind)
		if err != nil {
			return nil, handleError(err)
		}
		out := &templateListOutput{}
		out.Body.Items = items
		return out, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "get-template",
		Method:      http.MethodGet,
		Path:        "/template/{id}",
		Summary:     "Get a template",
	}, func(ctx context.Context, input *idPath) (*templateOutput, error) {
		tmpl, err := e.Repo.GetTemplate(ctx, input.ID)
		if err != nil {
			return nil, handleError(err)
		}
		return &templateOutput{Body: tmpl}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "update-template",
		Method:      http.MethodPatch,
		Path:        "/template/{id}",
		Summary:     "Update a template",
	}, func(ctx context.Context, input *struct {
		idPath
		Body templateBody
	}) (*templateOutput, error) {
		tmpl, err := e.Repo.GetTemplate(ctx, input.ID)
		if err != nil {
			return nil, handleError(err)
		}
		if input.Body.Name != "" {
			tmpl.Name = input.Body.Name
		}
		if input.Body.Kind != "" {
			tmpl.Kind = input.Body.Kind
		}
		if input.Body.Data != nil {
			tmpl.Data = input.Body.Data
		}
		if err := e.Repo.UpdateTemplate(ctx, tmpl); err != nil {
			return nil, handleError(err)
		}
		return &templateOutput{Body: tmpl}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID:   "delete-template",
		Method:        http.MethodDelete,
		Path:          "/template/{id}",
		Summary:       "Delete a template",
		DefaultStatus: http.StatusNoContent,
	}, func(ctx context.Context, input *idPath) (*struct{}, error) {
		if err := e.Repo.DeleteTemplate(ctx, input.ID); err != nil {
			return nil, handleError(err)
		}
		return &struct{}{}, nil
	})
}
