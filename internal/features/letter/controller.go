package letter

import (
	"errors"
	"strconv"

	"go-letter/internal/features/signature"
	"go-letter/internal/features/workflow"
	"go-letter/pkg/utils"

	"github.com/gofiber/fiber/v2"
)

type LetterController struct {
	Service LetterService
}

func NewLetterController(service LetterService) *LetterController {
	return &LetterController{Service: service}
}

func claims(ctx *fiber.Ctx) (*utils.UserClaims, error) {
	c, ok := ctx.Locals(utils.UserClaimsKey).(*utils.UserClaims)
	if !ok {
		return nil, fiber.ErrUnauthorized
	}
	return c, nil
}

// respondError maps workflow outcomes onto HTTP statuses. Every branch here
// is an expected interaction result, not a server fault.
func respondError(ctx *fiber.Ctx, err error) error {
	var unresolved *workflow.UnresolvedStepsError
	var ambiguous *workflow.AmbiguousStepError
	switch {
	case errors.As(err, &unresolved):
		return ctx.Status(fiber.StatusUnprocessableEntity).JSON(fiber.Map{
			"error":    err.Error(),
			"step_ids": unresolved.StepIDs,
		})
	case errors.As(err, &ambiguous):
		return ctx.Status(fiber.StatusUnprocessableEntity).JSON(fiber.Map{
			"error":   err.Error(),
			"step_id": ambiguous.StepID,
		})
	case errors.Is(err, ErrLetterNotFound),
		errors.Is(err, workflow.ErrStepNotFound):
		return ctx.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": err.Error()})
	case errors.Is(err, workflow.ErrUnauthorized):
		return ctx.Status(fiber.StatusForbidden).JSON(fiber.Map{"error": err.Error()})
	case errors.Is(err, workflow.ErrAlreadyDecided),
		errors.Is(err, workflow.ErrNotActionable),
		errors.Is(err, workflow.ErrShapeFrozen):
		return ctx.Status(fiber.StatusConflict).JSON(fiber.Map{"error": err.Error()})
	case errors.Is(err, workflow.ErrRemarksRequired),
		errors.Is(err, workflow.ErrInvalidPlacement),
		errors.Is(err, signature.ErrOutOfCanvas):
		return ctx.Status(fiber.StatusUnprocessableEntity).JSON(fiber.Map{"error": err.Error()})
	case errors.Is(err, workflow.ErrResolutionEmpty):
		return ctx.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": err.Error()})
	case errors.Is(err, workflow.ErrDirectoryUnavailable):
		return ctx.Status(fiber.StatusServiceUnavailable).JSON(fiber.Map{"error": err.Error()})
	default:
		return ctx.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": err.Error()})
	}
}

// CreateLetter godoc
// @Summary Create a letter from a template
// @Description Instantiates the template's approval route for the caller as sender
// @Tags letters
// @Accept json
// @Produce json
// @Param letter body CreateLetterRequest true "Letter"
// @Success 201 {object} Letter
// @Failure 400 {object} map[string]string "Invalid request body"
// @Router /api/letters [post]
func (c *LetterController) CreateLetter(ctx *fiber.Ctx) error {
	actor, err := claims(ctx)
	if err != nil {
		return ctx.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "Authentication required"})
	}
	var input CreateLetterRequest
	if err := ctx.BodyParser(&input); err != nil {
		return ctx.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid request body"})
	}

	l, err := c.Service.Create(ctx.UserContext(), actor.UserID, &input)
	if err != nil {
		return respondError(ctx, err)
	}
	return ctx.Status(fiber.StatusCreated).JSON(l)
}

// GetLetter godoc
// @Summary Get a letter with its full approval state
// @Tags letters
// @Produce json
// @Param id path string true "Letter ID"
// @Success 200 {object} Letter
// @Failure 404 {object} map[string]string "Letter not found"
// @Router /api/letters/{id} [get]
func (c *LetterController) GetLetter(ctx *fiber.Ctx) error {
	l, err := c.Service.Get(ctx.UserContext(), ctx.Params("id"))
	if err != nil {
		return respondError(ctx, err)
	}
	return ctx.JSON(l)
}

// Inbox godoc
// @Summary List letters waiting on the caller
// @Tags letters
// @Produce json
// @Success 200 {array} Letter
// @Router /api/letters/inbox [get]
func (c *LetterController) Inbox(ctx *fiber.Ctx) error {
	actor, err := claims(ctx)
	if err != nil {
		return ctx.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "Authentication required"})
	}
	letters, err := c.Service.Inbox(ctx.UserContext(), actor.UserID)
	if err != nil {
		return respondError(ctx, err)
	}
	return ctx.JSON(letters)
}

// Outbox godoc
// @Summary List letters the caller has drafted or sent
// @Tags letters
// @Produce json
// @Success 200 {array} Letter
// @Router /api/letters/outbox [get]
func (c *LetterController) Outbox(ctx *fiber.Ctx) error {
	actor, err := claims(ctx)
	if err != nil {
		return ctx.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "Authentication required"})
	}
	letters, err := c.Service.Outbox(ctx.UserContext(), actor.UserID)
	if err != nil {
		return respondError(ctx, err)
	}
	return ctx.JSON(letters)
}

// Candidates godoc
// @Summary List occupant candidates for an unresolved step
// @Tags letters
// @Produce json
// @Param id path string true "Letter ID"
// @Param stepId path int true "Step ID"
// @Success 200 {array} models.User
// @Failure 404 {object} map[string]string "No candidate found"
// @Router /api/letters/{id}/steps/{stepId}/candidates [get]
func (c *LetterController) Candidates(ctx *fiber.Ctx) error {
	stepID, err := strconv.Atoi(ctx.Params("stepId"))
	if err != nil {
		return ctx.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid step id"})
	}
	candidates, err := c.Service.Candidates(ctx.UserContext(), ctx.Params("id"), stepID)
	if err != nil {
		return respondError(ctx, err)
	}
	return ctx.JSON(candidates)
}

// AssignApprover godoc
// @Summary Assign a concrete approver to a step
// @Tags letters
// @Accept json
// @Produce json
// @Param id path string true "Letter ID"
// @Param assignment body AssignApproverRequest true "Assignment"
// @Success 200 {object} Letter
// @Router /api/letters/{id}/steps/assign [put]
func (c *LetterController) AssignApprover(ctx *fiber.Ctx) error {
	actor, err := claims(ctx)
	if err != nil {
		return ctx.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "Authentication required"})
	}
	var input AssignApproverRequest
	if err := ctx.BodyParser(&input); err != nil {
		return ctx.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid request body"})
	}
	l, err := c.Service.Assign(ctx.UserContext(), ctx.Params("id"), actor.UserID, &input)
	if err != nil {
		return respondError(ctx, err)
	}
	return ctx.JSON(l)
}

// InsertStep godoc
// @Summary Insert an ad-hoc approval step into a draft letter
// @Tags letters
// @Accept json
// @Produce json
// @Param id path string true "Letter ID"
// @Param step body InsertStepRequest true "Step"
// @Success 200 {object} Letter
// @Failure 409 {object} map[string]string "Workflow shape is frozen"
// @Router /api/letters/{id}/steps [post]
func (c *LetterController) InsertStep(ctx *fiber.Ctx) error {
	actor, err := claims(ctx)
	if err != nil {
		return ctx.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "Authentication required"})
	}
	var input InsertStepRequest
	if err := ctx.BodyParser(&input); err != nil {
		return ctx.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid request body"})
	}
	l, err := c.Service.InsertStep(ctx.UserContext(), ctx.Params("id"), actor.UserID, &input)
	if err != nil {
		return respondError(ctx, err)
	}
	return ctx.JSON(l)
}

// RemoveStep godoc
// @Summary Remove a step from a draft letter
// @Tags letters
// @Produce json
// @Param id path string true "Letter ID"
// @Param stepId path int true "Step ID"
// @Success 200 {object} Letter
// @Router /api/letters/{id}/steps/{stepId} [delete]
func (c *LetterController) RemoveStep(ctx *fiber.Ctx) error {
	actor, err := claims(ctx)
	if err != nil {
		return ctx.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "Authentication required"})
	}
	stepID, err := strconv.Atoi(ctx.Params("stepId"))
	if err != nil {
		return ctx.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid step id"})
	}
	l, err := c.Service.RemoveStep(ctx.UserContext(), ctx.Params("id"), actor.UserID, stepID)
	if err != nil {
		return respondError(ctx, err)
	}
	return ctx.JSON(l)
}

// Submit godoc
// @Summary Submit a draft letter for approval
// @Description Fails with the offending step ids while any approver is unresolved
// @Tags letters
// @Produce json
// @Param id path string true "Letter ID"
// @Success 200 {object} Letter
// @Failure 422 {object} map[string]interface{} "Unresolved approvers"
// @Router /api/letters/{id}/submit [post]
func (c *LetterController) Submit(ctx *fiber.Ctx) error {
	actor, err := claims(ctx)
	if err != nil {
		return ctx.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "Authentication required"})
	}
	l, err := c.Service.Submit(ctx.UserContext(), ctx.Params("id"), actor.UserID)
	if err != nil {
		return respondError(ctx, err)
	}
	return ctx.JSON(l)
}

// Decide godoc
// @Summary Approve or reject a step
// @Description Rejection requires remarks; approval requires the signature to sit on its designated slot
// @Tags letters
// @Accept json
// @Produce json
// @Param id path string true "Letter ID"
// @Param decision body DecideRequest true "Decision"
// @Success 200 {object} Letter
// @Failure 403 {object} map[string]string "Not the step's approver"
// @Failure 409 {object} map[string]string "Already decided or not actionable"
// @Router /api/letters/{id}/decide [post]
func (c *LetterController) Decide(ctx *fiber.Ctx) error {
	actor, err := claims(ctx)
	if err != nil {
		return ctx.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "Authentication required"})
	}
	var input DecideRequest
	if err := ctx.BodyParser(&input); err != nil {
		return ctx.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid request body"})
	}
	l, err := c.Service.Decide(ctx.UserContext(), ctx.Params("id"), actor.UserID, &input)
	if err != nil {
		return respondError(ctx, err)
	}
	return ctx.JSON(l)
}

// PlaceSignature godoc
// @Summary Place a step's signature on the letter canvas
// @Description Coordinates are percentages; drops near a template slot snap onto it
// @Tags letters
// @Accept json
// @Produce json
// @Param id path string true "Letter ID"
// @Param placement body PlaceSignatureRequest true "Placement"
// @Success 200 {object} models.SignaturePosition
// @Failure 422 {object} map[string]string "Coordinates outside the canvas"
// @Router /api/letters/{id}/signature-position [put]
func (c *LetterController) PlaceSignature(ctx *fiber.Ctx) error {
	actor, err := claims(ctx)
	if err != nil {
		return ctx.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "Authentication required"})
	}
	var input PlaceSignatureRequest
	if err := ctx.BodyParser(&input); err != nil {
		return ctx.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid request body"})
	}
	pos, err := c.Service.PlaceSignature(ctx.UserContext(), ctx.Params("id"), actor.UserID, &input)
	if err != nil {
		return respondError(ctx, err)
	}
	return ctx.JSON(pos)
}

// RenderSignatures godoc
// @Summary Resolve the letter's signature display list
// @Tags letters
// @Produce json
// @Param id path string true "Letter ID"
// @Success 200 {array} signature.RenderedSignature
// @Router /api/letters/{id}/signatures [get]
func (c *LetterController) RenderSignatures(ctx *fiber.Ctx) error {
	rendered, err := c.Service.Render(ctx.UserContext(), ctx.Params("id"))
	if err != nil {
		return respondError(ctx, err)
	}
	return ctx.JSON(rendered)
}
