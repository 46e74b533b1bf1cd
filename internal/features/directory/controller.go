package directory

import (
	"errors"

	"go-letter/internal/common/models"
	"go-letter/internal/features/workflow"

	"github.com/gofiber/fiber/v2"
)

type DirectoryController struct {
	Service DirectoryService
}

func NewDirectoryController(service DirectoryService) *DirectoryController {
	return &DirectoryController{Service: service}
}

// CreatePosition godoc
// @Summary Create a position
// @Description Create an organizational position, optionally under a parent
// @Tags directory
// @Accept json
// @Produce json
// @Param position body models.Position true "Position"
// @Success 201 {object} models.Position
// @Failure 400 {object} map[string]string "Invalid request body"
// @Router /api/directory/positions [post]
func (c *DirectoryController) CreatePosition(ctx *fiber.Ctx) error {
	var input models.Position
	if err := ctx.BodyParser(&input); err != nil {
		return ctx.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid request body"})
	}
	if err := c.Service.CreatePosition(ctx.UserContext(), &input); err != nil {
		return ctx.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": err.Error()})
	}
	return ctx.Status(fiber.StatusCreated).JSON(input)
}

// UpdatePosition godoc
// @Summary Update a position
// @Tags directory
// @Accept json
// @Produce json
// @Param id path string true "Position ID"
// @Param position body models.Position true "Position"
// @Success 200 {object} map[string]string
// @Router /api/directory/positions/{id} [put]
func (c *DirectoryController) UpdatePosition(ctx *fiber.Ctx) error {
	id := ctx.Params("id")
	var input models.Position
	if err := ctx.BodyParser(&input); err != nil {
		return ctx.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid request body"})
	}
	if err := c.Service.UpdatePosition(ctx.UserContext(), id, &input); err != nil {
		return ctx.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": err.Error()})
	}
	return ctx.JSON(fiber.Map{"message": "Position updated successfully"})
}

// ListPositions godoc
// @Summary List positions
// @Tags directory
// @Produce json
// @Success 200 {array} models.Position
// @Router /api/directory/positions [get]
func (c *DirectoryController) ListPositions(ctx *fiber.Ctx) error {
	positions, err := c.Service.ListPositions(ctx.UserContext())
	if err != nil {
		return ctx.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": err.Error()})
	}
	return ctx.JSON(positions)
}

// GetOccupants godoc
// @Summary List a position's active occupants
// @Description Zero occupants is a valid result: the position exists but nobody holds it
// @Tags directory
// @Produce json
// @Param id path string true "Position ID"
// @Success 200 {array} models.User
// @Router /api/directory/positions/{id}/occupants [get]
func (c *DirectoryController) GetOccupants(ctx *fiber.Ctx) error {
	occupants, err := c.Service.ResolvePosition(ctx.UserContext(), ctx.Params("id"))
	if err != nil {
		return ctx.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": err.Error()})
	}
	if occupants == nil {
		occupants = []models.User{}
	}
	return ctx.JSON(occupants)
}

// GetSuperior godoc
// @Summary Resolve the superior of a user or position
// @Description Climbs one level up the hierarchy; used for ad-hoc approver insertion
// @Tags directory
// @Accept json
// @Produce json
// @Param reference body workflow.Reference true "Reference user or position"
// @Success 200 {object} map[string]interface{}
// @Failure 404 {object} map[string]string "No superior found"
// @Router /api/directory/superior [post]
func (c *DirectoryController) GetSuperior(ctx *fiber.Ctx) error {
	var ref workflow.Reference
	if err := ctx.BodyParser(&ref); err != nil {
		return ctx.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid request body"})
	}

	pos, occupants, err := workflow.ClimbSuperior(ctx.UserContext(), ref, c.Service)
	if err != nil {
		if errors.Is(err, workflow.ErrResolutionEmpty) {
			return ctx.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "No superior found"})
		}
		if errors.Is(err, workflow.ErrDirectoryUnavailable) {
			return ctx.Status(fiber.StatusServiceUnavailable).JSON(fiber.Map{"error": err.Error()})
		}
		return ctx.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": err.Error()})
	}

	return ctx.JSON(fiber.Map{
		"position":  pos,
		"occupants": occupants,
	})
}
