package web

import (
	"errors"

	"github.com/askdb/askdb/pkg/workflow"
	"github.com/gofiber/fiber/v3"
	"github.com/moogar0880/problems"
)

func badRequest(c fiber.Ctx, detail string) error {
	problem := problems.NewStatusProblem(400).
		WithInstance(c.Path()).
		WithType("validation_error").
		WithDetail(detail)

	return c.Status(fiber.StatusBadRequest).JSON(problem)
}

func notFound(c fiber.Ctx, detail string) error {
	problem := problems.NewStatusProblem(404).
		WithInstance(c.Path()).
		WithType("not_found").
		WithDetail(detail)

	return c.Status(fiber.StatusNotFound).JSON(problem)
}

func internalError(c fiber.Ctx, err error) error {
	problem := problems.NewStatusProblem(500).
		WithInstance(c.Path()).
		WithType("internal_error").
		WithError(err)

	return c.Status(fiber.StatusInternalServerError).JSON(problem)
}

// handleEngineError provides typed error handling for engine errors.
func handleEngineError(c fiber.Ctx, err error) error {
	switch {
	case workflow.IsNotSuspended(err):
		return notFound(c, "query is not awaiting confirmation")
	case errors.Is(err, workflow.ErrUnknownGenerator):
		return badRequest(c, err.Error())
	default:
		return internalError(c, err)
	}
}
