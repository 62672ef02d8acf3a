// Package docs serves the API documentation: an OpenAPI 3.0.3 document merged from
// per-domain fragments and an HTML viewer that loads it.
package docs

import (
	"context"
	_ "embed"
	"fmt"
	"net/http"
	"strings"

	jsoniter "github.com/json-iterator/go"

	"github.com/hayden74/cogira-frontend/pkg/api"
)

// Domain is the routing key of the documentation endpoint.
const Domain = "docs"

const (
	openAPIVersion = "3.0.3"
	documentPath   = "/docs/openapi.json"
)

//go:embed viewer.html
var viewerHTML []byte

var codec = jsoniter.ConfigCompatibleWithStandardLibrary

// Fragment is one domain's contribution to the API document.
type Fragment struct {
	Paths   map[string]any `json:"paths"`
	Schemas map[string]any `json:"schemas"`
}

// ParseFragment decodes a JSON fragment with top-level "paths" and "schemas" objects.
func ParseFragment(raw []byte) (Fragment, error) {
	var f Fragment
	if err := codec.Unmarshal(raw, &f); err != nil {
		return Fragment{}, fmt.Errorf("docs: parse fragment: %w", err)
	}
	return f, nil
}

// Info is the document's info object.
type Info struct {
	Title       string `json:"title"`
	Version     string `json:"version"`
	Description string `json:"description,omitempty"`
}

// DefaultInfo describes this API.
var DefaultInfo = Info{
	Title:       "Cogira API",
	Version:     "1.0.0",
	Description: "OpenAPI specification generated from domain fragments.",
}

type document struct {
	OpenAPI    string         `json:"openapi"`
	Info       Info           `json:"info"`
	Paths      map[string]any `json:"paths"`
	Components components     `json:"components"`
}

type components struct {
	Schemas map[string]any `json:"schemas"`
}

// Merge combines fragments into one OpenAPI document. Later fragments win on
// duplicate path or schema names.
func Merge(info Info, fragments ...Fragment) ([]byte, error) {
	doc := document{
		OpenAPI:    openAPIVersion,
		Info:       info,
		Paths:      map[string]any{},
		Components: components{Schemas: map[string]any{}},
	}
	for _, f := range fragments {
		for k, v := range f.Paths {
			doc.Paths[k] = v
		}
		for k, v := range f.Schemas {
			doc.Components.Schemas[k] = v
		}
	}
	return codec.Marshal(doc)
}

// Handler serves the documentation domain.
type Handler struct {
	document []byte
}

// NewHandler builds the document from fragments.
func NewHandler(info Info, fragments ...Fragment) (*Handler, error) {
	doc, err := Merge(info, fragments...)
	if err != nil {
		return nil, fmt.Errorf("docs: build document: %w", err)
	}
	return &Handler{document: doc}, nil
}

// Handle returns the OpenAPI document for /docs/openapi.json and the viewer for
// every other path of the domain.
func (h *Handler) Handle(_ context.Context, req *api.Request) (*api.Response, error) {
	if strings.TrimSuffix(req.Path, "/") == documentPath {
		return api.Raw(http.StatusOK, "application/json", h.document), nil
	}
	return api.Raw(http.StatusOK, "text/html", viewerHTML), nil
}
