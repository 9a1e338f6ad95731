package api

import (
	"encoding/json"

	"github.com/gofiber/fiber/v2"
	"go.mongodb.org/mongo-driver/bson"

	userdomain "github.com/example/task-tracker-api/domain/user"
	"github.com/example/task-tracker-api/modules/store"
)

// listParams collects the raw query parameters for a list endpoint.
func listParams(c *fiber.Ctx) store.Params {
	return store.Params{
		Where:  c.Query("where"),
		Select: c.Query("select"),
		Sort:   c.Query("sort"),
		Skip:   c.Query("skip"),
		Limit:  c.Query("limit"),
		Count:  c.Query("count"),
	}
}

// projectionParam parses an optional select parameter on a single-fetch
// endpoint.
func projectionParam(c *fiber.Ctx) (bson.M, error) {
	raw := c.Query("select")
	if raw == "" {
		return nil, nil
	}
	var projection bson.M
	if err := json.Unmarshal([]byte(raw), &projection); err != nil {
		return nil, &store.ParseError{Param: "select", Err: err}
	}
	return projection, nil
}

// listUsers handles GET /users. Users carry no default limit.
func (h *handlers) listUsers(c *fiber.Ctx) error {
	q, err := store.Translate(listParams(c), 0)
	if err != nil {
		return fail(c, err)
	}
	if q.CountOnly {
		n, err := h.users.Count(c.Context(), q.Filter)
		if err != nil {
			return fail(c, err)
		}
		return respond(c, fiber.StatusOK, "OK", CountResult{Count: n})
	}

	users, err := h.users.List(c.Context(), q)
	if err != nil {
		return fail(c, err)
	}
	return respond(c, fiber.StatusOK, "OK", users)
}

// getUser handles GET /users/:id.
func (h *handlers) getUser(c *fiber.Ctx) error {
	projection, err := projectionParam(c)
	if err != nil {
		return fail(c, err)
	}
	u, err := h.users.Get(c.Context(), c.Params("id"), projection)
	if err != nil {
		return fail(c, err)
	}
	return respond(c, fiber.StatusOK, "OK", u)
}

// createUser handles POST /users.
func (h *handlers) createUser(c *fiber.Ctx) error {
	var payload userdomain.User
	if err := c.BodyParser(&payload); err != nil {
		return fail(c, &store.ParseError{Param: "body", Err: err})
	}

	u, err := h.users.Create(c.Context(), payload)
	if err != nil {
		return fail(c, err)
	}
	return respond(c, fiber.StatusCreated, "Created", u)
}

// replaceUser handles PUT /users/:id, including the pendingTasks diff
// cascade.
func (h *handlers) replaceUser(c *fiber.Ctx) error {
	var payload userdomain.User
	if err := c.BodyParser(&payload); err != nil {
		return fail(c, &store.ParseError{Param: "body", Err: err})
	}

	u, err := h.users.Replace(c.Context(), c.Params("id"), payload)
	if err != nil {
		return fail(c, err)
	}
	return respond(c, fiber.StatusOK, "OK", u)
}

// deleteUser handles DELETE /users/:id, unassigning the user's tasks first.
func (h *handlers) deleteUser(c *fiber.Ctx) error {
	u, err := h.users.Delete(c.Context(), c.Params("id"))
	if err != nil {
		return fail(c, err)
	}
	return respond(c, fiber.StatusOK, "OK", u)
}
