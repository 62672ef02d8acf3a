// Package users implements the users domain: CRUD over the keyed store with
// validated payloads and opaque-cursor listing.
package users

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"strings"

	jsoniter "github.com/json-iterator/go"

	"github.com/hayden74/cogira-frontend/pkg/api"
	"github.com/hayden74/cogira-frontend/pkg/domain"
	"github.com/hayden74/cogira-frontend/pkg/pagination"
	"github.com/hayden74/cogira-frontend/pkg/pipeline"
	"github.com/hayden74/cogira-frontend/pkg/router"
)

// Domain is the routing key of the users domain.
const Domain = "users"

const (
	msgInvalidLimit = "Invalid limit parameter."
	msgInvalidID    = "Invalid id parameter"
	msgInvalidBody  = "Invalid body"
	msgInvalidToken = "Invalid pagination token"
	msgUserNotFound = "User not found"
	msgNotFound     = "Not Found"
)

var codec = jsoniter.ConfigCompatibleWithStandardLibrary

// Controller dispatches users requests to the Service.
type Controller struct {
	svc *Service
}

var _ router.Handler = (*Controller)(nil)

// NewController creates a Controller on svc.
func NewController(svc *Service) *Controller {
	return &Controller{svc: svc}
}

type listBody struct {
	Domain    string        `json:"domain"`
	Method    string        `json:"method"`
	Users     []domain.User `json:"users"`
	NextToken string        `json:"nextToken,omitempty"`
}

type userBody struct {
	Domain string      `json:"domain"`
	Method string      `json:"method"`
	User   domain.User `json:"user"`
}

type notFoundBody struct {
	Message string `json:"message"`
	Details string `json:"details"`
}

// Handle selects the operation from the method and the presence of an id. Paths
// deeper than /users/{id} are not part of the domain.
func (c *Controller) Handle(ctx context.Context, req *api.Request) (*api.Response, error) {
	if depth(req.Path) > 2 {
		return api.JSON(http.StatusNotFound, notFoundBody{Message: msgNotFound, Details: req.Path})
	}
	hasID := req.Params["id"] != ""

	switch {
	case req.Method == http.MethodGet && !hasID:
		return c.list(ctx, req)
	case req.Method == http.MethodGet:
		return c.get(ctx, req)
	case req.Method == http.MethodPost && !hasID:
		return c.create(ctx, req)
	case (req.Method == http.MethodPut || req.Method == http.MethodPatch) && hasID:
		return c.update(ctx, req)
	case req.Method == http.MethodDelete && hasID:
		return c.delete(ctx, req)
	}
	return api.JSON(http.StatusNotFound, notFoundBody{Message: msgNotFound, Details: req.Path})
}

func (c *Controller) list(ctx context.Context, req *api.Request) (*api.Response, error) {
	var limit int
	if raw, ok := req.Query["limit"]; ok {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed <= 0 {
			return nil, domain.BadRequest(msgInvalidLimit, nil)
		}
		limit = parsed
	}
	nextToken := req.Query["nextToken"]

	pipeline.LoggerFrom(ctx).Info("Listing users", "limit", limit, "has_next_token", nextToken != "")

	result, err := c.svc.List(ctx, ListOptions{Limit: limit, NextToken: nextToken})
	if err != nil {
		if errors.Is(err, pagination.ErrInvalidToken) {
			return nil, domain.BadRequest(msgInvalidToken, nil).WithCause(err)
		}
		return nil, err
	}

	return api.JSON(http.StatusOK, listBody{
		Domain:    Domain,
		Method:    req.Method,
		Users:     result.Users,
		NextToken: result.NextToken,
	})
}

func (c *Controller) get(ctx context.Context, req *api.Request) (*api.Response, error) {
	id, err := pathID(req)
	if err != nil {
		return nil, err
	}

	user, err := c.svc.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if user == nil {
		return nil, domain.NotFound(msgUserNotFound, map[string]string{"id": id})
	}
	return api.JSON(http.StatusOK, userBody{Domain: Domain, Method: req.Method, User: *user})
}

func (c *Controller) create(ctx context.Context, req *api.Request) (*api.Response, error) {
	if result := createValidator.Validate(req.RawBody); !result.OK {
		return nil, domain.BadRequest(msgInvalidBody, result.Errors)
	}

	var input domain.NewUser
	if err := codec.Unmarshal(req.RawBody, &input); err != nil {
		return nil, domain.BadRequest(msgInvalidBody, nil).WithCause(err)
	}

	pipeline.LoggerFrom(ctx).Info("Creating user", "first_name", input.FirstName)

	user, err := c.svc.Create(ctx, input)
	if err != nil {
		return nil, err
	}
	return api.JSON(http.StatusCreated,
		userBody{Domain: Domain, Method: req.Method, User: user},
		api.Headers{"Location": req.BasePath + "/" + Domain + "/" + user.ID},
	)
}

func (c *Controller) update(ctx context.Context, req *api.Request) (*api.Response, error) {
	id, err := pathID(req)
	if err != nil {
		return nil, err
	}
	if result := updateValidator.Validate(req.RawBody); !result.OK {
		return nil, domain.BadRequest(msgInvalidBody, result.Errors)
	}

	var patch domain.UserPatch
	if err := codec.Unmarshal(req.RawBody, &patch); err != nil {
		return nil, domain.BadRequest(msgInvalidBody, nil).WithCause(err)
	}

	pipeline.LoggerFrom(ctx).Info("Updating user", "id", id)

	user, err := c.svc.Update(ctx, id, patch)
	if err != nil {
		return nil, err
	}
	if user == nil {
		return nil, domain.NotFound(msgUserNotFound, map[string]string{"id": id})
	}
	return api.JSON(http.StatusOK, userBody{Domain: Domain, Method: req.Method, User: *user})
}

func (c *Controller) delete(ctx context.Context, req *api.Request) (*api.Response, error) {
	id, err := pathID(req)
	if err != nil {
		return nil, err
	}

	pipeline.LoggerFrom(ctx).Info("Deleting user", "id", id)

	if err := c.svc.Delete(ctx, id); err != nil {
		return nil, err
	}
	return api.NoContent(), nil
}

// pathID rejects ids that are empty or the literal strings left by unset client variables.
func pathID(req *api.Request) (string, error) {
	id := req.Params["id"]
	if id == "" || id == "null" || id == "undefined" {
		return "", domain.BadRequest(msgInvalidID, nil)
	}
	return id, nil
}

func depth(path string) int {
	var n int
	for _, seg := range strings.Split(path, "/") {
		if seg != "" {
			n++
		}
	}
	return n
}
