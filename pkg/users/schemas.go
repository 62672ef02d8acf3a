package users

import "github.com/hayden74/cogira-frontend/pkg/validation"

var nameFields = []validation.FieldRule{
	{Name: "firstName", MinLength: 1, MaxLength: 100, DisallowScript: true},
	{Name: "lastName", MinLength: 1, MaxLength: 100, DisallowScript: true},
}

// CreateSchema accepts a new user: both names required.
var CreateSchema = validation.Schema{
	Fields:   nameFields,
	Required: []string{"firstName", "lastName"},
}

// UpdateSchema accepts a partial update: any subset of the names, at least one.
var UpdateSchema = validation.Schema{
	Fields:        nameFields,
	MinProperties: 1,
}

var (
	createValidator = validation.MustCompile(CreateSchema)
	updateValidator = validation.MustCompile(UpdateSchema)
)
