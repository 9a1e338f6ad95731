package api

import (
	"github.com/gofiber/fiber/v2"

	taskdomain "github.com/example/task-tracker-api/domain/task"
	"github.com/example/task-tracker-api/modules/store"
	"github.com/example/task-tracker-api/modules/tracker"
)

// listTasks handles GET /tasks. Absent limit defaults to 100.
func (h *handlers) listTasks(c *fiber.Ctx) error {
	q, err := store.Translate(listParams(c), tracker.DefaultListLimit)
	if err != nil {
		return fail(c, err)
	}
	if q.CountOnly {
		n, err := h.tasks.Count(c.Context(), q.Filter)
		if err != nil {
			return fail(c, err)
		}
		return respond(c, fiber.StatusOK, "OK", CountResult{Count: n})
	}

	tasks, err := h.tasks.List(c.Context(), q)
	if err != nil {
		return fail(c, err)
	}
	return respond(c, fiber.StatusOK, "OK", tasks)
}

// getTask handles GET /tasks/:id with optional select.
func (h *handlers) getTask(c *fiber.Ctx) error {
	projection, err := projectionParam(c)
	if err != nil {
		return fail(c, err)
	}
	t, err := h.tasks.Get(c.Context(), c.Params("id"), projection)
	if err != nil {
		return fail(c, err)
	}
	return respond(c, fiber.StatusOK, "OK", t)
}

// createTask handles POST /tasks. A nonexistent assignee rejects the
// request before the task is created.
func (h *handlers) createTask(c *fiber.Ctx) error {
	var payload taskdomain.Task
	if err := c.BodyParser(&payload); err != nil {
		return fail(c, &store.ParseError{Param: "body", Err: err})
	}

	t, err := h.tasks.Create(c.Context(), payload)
	if err != nil {
		return fail(c, err)
	}
	return respond(c, fiber.StatusCreated, "Created", t)
}

// replaceTask handles PUT /tasks/:id, including the reassignment cascade.
func (h *handlers) replaceTask(c *fiber.Ctx) error {
	var payload taskdomain.Task
	if err := c.BodyParser(&payload); err != nil {
		return fail(c, &store.ParseError{Param: "body", Err: err})
	}

	t, err := h.tasks.Replace(c.Context(), c.Params("id"), payload)
	if err != nil {
		return fail(c, err)
	}
	return respond(c, fiber.StatusOK, "OK", t)
}

// deleteTask handles DELETE /tasks/:id, returning the deleted task's prior
// state.
func (h *handlers) deleteTask(c *fiber.Ctx) error {
	t, err := h.tasks.Delete(c.Context(), c.Params("id"))
	if err != nil {
		return fail(c, err)
	}
	return respond(c, fiber.StatusOK, "OK", t)
}
