package users

import (
	_ "embed"

	"github.com/hayden74/cogira-frontend/pkg/docs"
)

//go:embed openapi.json
var openAPIFragment []byte

// OpenAPI returns the users paths and schemas for the API document.
func OpenAPI() (docs.Fragment, error) {
	return docs.ParseFragment(openAPIFragment)
}
