package server

import (
	"choreline/internal/engine"
	"choreline/internal/repo"
)

// createBody is the open creation payload shared by every status
// entity kind. Template (inline payload) wins over TemplateID; Data
// merges over both.
type createBody struct {
	Person     string         `json:"person,omitempty"`
	PersonID   int64          `json:"person_id,omitempty"`
	Name       string         `json:"name,omitempty"`
	Status     string         `json:"status,omitempty"`
	Created    int64          `json:"created,omitempty"`
	TemplateID int64          `json:"template_id,omitempty"`
	Template   map[string]any `json:"template,omitempty"`
	Data       map[string]any `json:"data,omitempty"`
}

func (b createBody) input() engine.CreateInput {
	return engine.CreateInput{
		Person:     b.Person,
		PersonID:   b.PersonID,
		Name:       b.Name,
		Status:     b.Status,
		Created:    b.Created,
		TemplateID: b.TemplateID,
		Template:   b.Template,
		Data:       b.Data,
	}
}

// updateBody is the plain CRUD patch; fields present are replaced
// wholesale.
type updateBody struct {
	PersonID *int64         `json:"person_id,omitempty"`
	Name     *string        `json:"name,omitempty"`
	Status   *string        `json:"status,omitempty"`
	Created  *int64         `json:"created,omitempty"`
	Data     map[string]any `json:"data,omitempty"`
}

func (b updateBody) fields() engine.UpdateFields {
	return engine.UpdateFields{
		PersonID: b.PersonID,
		Name:     b.Name,
		Status:   b.Status,
		Created:  b.Created,
		Data:     b.Data,
	}
}

type listQuery struct {
	PersonID int64  `query:"person_id"`
	Status   string `query:"status"`
	Name     string `query:"name"`
	Since    int    `query:"since" doc:"Lookback window in days over updated; -1 disables it"`
}

func (q listQuery) filter() repo.StatusFilter {
	return repo.StatusFilter{
		PersonID: q.PersonID,
		Status:   q.Status,
		Name:     q.Name,
		Since:    q.Since,
	}
}

type idPath struct {
	ID int64 `path:"id"`
}

type actionPath struct {
	ID     int64  `path:"id"`
	Action string `path:"action"`
}

type updatedBody struct {
	Updated bool `json:"updated"`
}

type updatedOutput struct {
	Body updatedBody
}
