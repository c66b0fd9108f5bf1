package server

import (
	"context"
	"net/http"

	"github.com/danielgtaylor/huma/v2"

	"choreline/internal/domain"
	"choreline/internal/engine"
)

func registerPersons(api huma.API, e *engine.Engine) {
	type personOutput struct {
		Body domain.Person
	}
	type personListOutput struct {
		Body struct {
			Items []domain.Person `json:"items"`
		}
	}
	type personBody struct {
		Name string         `json:"name,omitempty"`
		Data map[string]any `json:"data,omitempty"`
	}

	huma.Register(api, huma.Operation{
		OperationID:   "create-person",
		Method:        http.MethodPost,
		Path:          "/person",
		Summary:       "Create a person",
		DefaultStatus: http.StatusCreated,
	}, func(ctx context.Context, input *struct{ Body personBody }) (*personOutput, error) {
		if input.Body.Name == "" {
			return nil, newAPIError(http.StatusBadRequest, "bad_request", "name is required", nil)
		}
		person := domain.Person{Name: input.Body.Name, Data: input.Body.Data}
		if person.Data == nil {
			person.Data = map[string]any{}
		}
		if err := e.Repo.InsertPerson(ctx, &person); err != nil {
			return nil, handleError(err)
		}
		return &personOutput{Body: person}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "list-persons",
		Method:      http.MethodGet,
		Path:        "/person",
		Summary:     "List persons",
	}, func(ctx context.Context, _ *struct{}) (*personListOutput, error) {
		items, err := e.Repo.ListPersons(ctx)
		if err != nil {
			return nil, handleError(err)
		}
		out := &personListOutput{}
		out.Body.Items = items
		return out, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "get-person",
		Method:      http.MethodGet,
		Path:        "/person/{id}",
		Summary:     "Get a person",
	}, func(ctx context.Context, input *idPath) (*personOutput, error) {
		person, err := e.Repo.GetPerson(ctx, input.ID)
		if err != nil {
			return nil, handleError(err)
		}
		return &personOutput{Body: person}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "update-person",
		Method:      http.MethodPatch,
		Path:        "/person/{id}",
		Summary:     "Update a person",
	}, func(ctx context.Context, input *struct {
		idPath
		Body personBody
	}) (*personOutput, error) {
		person, err := e.Repo.GetPerson(ctx, input.ID)
		if err != nil {
			return nil, handleError(err)
		}
		if input.Body.Name != "" {
			person.Name = input.Body.Name
		}
		if input.Body.Data != nil {
			person.Data = input.Body.Data
		}
		if err := e.Repo.UpdatePerson(ctx, person); err != nil {
			return nil, handleError(err)
		}
		return &personOutput{Body: person}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID:   "delete-person",
		Method:        http.MethodDelete,
		Path:          "/person/{id}",
		Summary:       "Delete a person",
		DefaultStatus: http.StatusNoContent,
	}, func(ctx context.Context, input *idPath) (*struct{}, error) {
		if err := e.Repo.DeletePerson(ctx, input.ID); err != nil {
			return nil, handleError(err)
		}
		return &struct{}{}, nil
	})
}
