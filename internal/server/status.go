package server

import (
	"context"
	"fmt"
	"net/http"

	"github.com/danielgtaylor/huma/v2"

	"choreline/internal/domain"
	"choreline/internal/engine"
)

// registerValue wires the CRUD and transition surface of an area or
// act.
func registerValue(api huma.API, e *engine.Engine, kind domain.Kind) {
	type valueOutput struct {
		Body domain.Value
	}
	type valueListOutput struct {
		Body struct {
			Items []domain.Value `json:"items"`
		}
	}

	huma.Register(api, huma.Operation{
		OperationID:   opID("create", kind),
		Method:        http.MethodPost,
		Path:          "/" + string(kind),
		Summary:       fmt.Sprintf("Create a %s", kind),
		DefaultStatus: http.StatusCreated,
	}, func(ctx context.Context, input *struct{ Body createBody }) (*valueOutput, error) {
		v, err := e.CreateValue(ctx, kind, input.Body.input())
		if err != nil {
			return nil, handleError(err)
		}
		return &valueOutput{Body: v}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: opID("list", kind),
		Method:      http.MethodGet,
		Path:        "/" + string(kind),
		Summary:     fmt.Sprintf("List %ss", kind),
	}, func(ctx context.Context, input *listQuery) (*valueListOutput, error) {
		items, err := e.Repo.ListValues(ctx, kind, input.filter(), e.Epoch())
		if err != nil {
			return nil, handleError(err)
		}
		out := &valueListOutput{}
		out.Body.Items = items
		return out, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: opID("get", kind),
		Method:      http.MethodGet,
		Path:        fmt.Sprintf("/%s/{id}", kind),
		Summary:     fmt.Sprintf("Get a %s", kind),
	}, func(ctx context.Context, input *idPath) (*valueOutput, error) {
		v, err := e.Repo.GetValue(ctx, kind, input.ID)
		if err != nil {
			return nil, handleError(err)
		}
		return &valueOutput{Body: v}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: opID("update", kind),
		Method:      http.MethodPatch,
		Path:        fmt.Sprintf("/%s/{id}", kind),
		Summary:     fmt.Sprintf("Update a %s", kind),
	}, func(ctx context.Context, input *struct {
		idPath
		Body updateBody
	}) (*valueOutput, error) {
		v, err := e.UpdateValue(ctx, kind, input.ID, input.Body.fields())
		if err != nil {
			return nil, handleError(err)
		}
		return &valueOutput{Body: v}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID:   opID("delete", kind),
		Method:        http.MethodDelete,
		Path:          fmt.Sprintf("/%s/{id}", kind),
		Summary:       fmt.Sprintf("Delete a %s", kind),
		DefaultStatus: http.StatusNoContent,
	}, func(ctx context.Context, input *idPath) (*struct{}, error) {
		if err := e.Repo.DeleteValue(ctx, kind, input.ID); err != nil {
			return nil, handleError(err)
		}
		return &struct{}{}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID:   opID("action", kind),
		Method:        http.MethodPatch,
		Path:          fmt.Sprintf("/%s/{id}/{action}", kind),
		Summary:       fmt.Sprintf("Apply a transition to a %s", kind),
		DefaultStatus: http.StatusAccepted,
	}, func(ctx context.Context, input *actionPath) (*updatedOutput, error) {
		updated, err := e.ValueAction(ctx, kind, input.ID, input.Action)
		if err != nil {
			return nil, handleError(err)
		}
		return &updatedOutput{Body: updatedBody{Updated: updated}}, nil
	})
}

// registerState wires the CRUD and transition surface of a todo or
// routine.
func registerState(api huma.API, e *engine.Engine, kind domain.Kind) {
	type stateOutput struct {
		Body domain.State
	}
	type stateListOutput struct {
		Body struct {
			Items []domain.State `json:"items"`
		}
	}

	huma.Register(api, huma.Operation{
		OperationID:   opID("create", kind),
		Method:        http.MethodPost,
		Path:          "/" + string(kind),
		Summary:       fmt.Sprintf("Create a %s", kind),
		DefaultStatus: http.StatusCreated,
	}, func(ctx context.Context, input *struct{ Body createBody }) (*stateOutput, error) {
		s, err := e.CreateState(ctx, kind, input.Body.input())
		if err != nil {
			return nil, handleError(err)
		}
		return &stateOutput{Body: s}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: opID("list", kind),
		Method:      http.MethodGet,
		Path:        "/" + string(kind),
		Summary:     fmt.Sprintf("List %ss", kind),
	}, func(ctx context.Context, input *listQuery) (*stateListOutput, error) {
		items, err := e.Repo.ListStates(ctx, kind, input.filter(), e.Epoch())
		if err != nil {
			return nil, handleError(err)
		}
		out := &stateListOutput{}
		out.Body.Items = items
		return out, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: opID("get", kind),
		Method:      http.MethodGet,
		Path:        fmt.Sprintf("/%s/{id}", kind),
		Summary:     fmt.Sprintf("Get a %s", kind),
	}, func(ctx context.Context, input *idPath) (*stateOutput, error) {
		s, err := e.Repo.GetState(ctx, kind, input.ID)
		if err != nil {
			return nil, handleError(err)
		}
		return &stateOutput{Body: s}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: opID("update", kind),
		Method:      http.MethodPatch,
		Path:        fmt.Sprintf("/%s/{id}", kind),
		Summary:     fmt.Sprintf("Update a %s", kind),
	}, func(ctx context.Context, input *struct {
		idPath
		Body updateBody
	}) (*stateOutput, error) {
		s, err := e.UpdateState(ctx, kind, input.ID, input.Body.fields())
		if err != nil {
			return nil, handleError(err)
		}
		return &stateOutput{Body: s}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID:   opID("delete", kind),
		Method:        http.MethodDelete,
		Path:          fmt.Sprintf("/%s/{id}", kind),
		Summary:       fmt.Sprintf("Delete a %s", kind),
		DefaultStatus: http.StatusNoContent,
	}, func(ctx context.Context, input *idPath) (*struct{}, error) {
		if err := e.Repo.DeleteState(ctx, kind, input.ID); err != nil {
			return nil, handleError(err)
		}
		return &struct{}{}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID:   opID("action", kind),
		Method:        http.MethodPatch,
		Path:          fmt.Sprintf("/%s/{id}/{action}", kind),
		Summary:       fmt.Sprintf("Apply a transition to a %s", kind),
		DefaultStatus: http.StatusAccepted,
	}, func(ctx context.Context, input *actionPath) (*updatedOutput, error) {
		updated, err := e.StateAction(ctx, kind, input.ID, input.Action)
		if err != nil {
			return nil, handleError(err)
		}
		return &updatedOutput{Body: updatedBody{Updated: updated}}, nil
	})
}
