package template

import (
	"github.com/gofiber/fiber/v2"
)

type TemplateController struct {
	Service TemplateService
}

func NewTemplateController(service TemplateService) *TemplateController {
	return &TemplateController{Service: service}
}

// CreateTemplate godoc
// @Summary Create a letter template
// @Description Define the approval route and signature slots for a letter type
// @Tags templates
// @Accept json
// @Produce json
// @Param template body LetterTemplate true "Template"
// @Success 201 {object} LetterTemplate
// @Failure 400 {object} map[string]string "Invalid template"
// @Router /api/templates [post]
func (c *TemplateController) CreateTemplate(ctx *fiber.Ctx) error {
	var input LetterTemplate
	if err := ctx.BodyParser(&input); err != nil {
		return ctx.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid request body"})
	}
	if err := c.Service.Create(ctx.UserContext(), &input); err != nil {
		return ctx.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": err.Error()})
	}
	return ctx.Status(fiber.StatusCreated).JSON(input)
}

// UpdateTemplate godoc
// @Summary Update a letter template
// @Tags templates
// @Accept json
// @Produce json
// @Param id path string true "Template ID"
// @Param template body LetterTemplate true "Template"
// @Success 200 {object} map[string]string
// @Router /api/templates/{id} [put]
func (c *TemplateController) UpdateTemplate(ctx *fiber.Ctx) error {
	var input LetterTemplate
	if err := ctx.BodyParser(&input); err != nil {
		return ctx.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid request body"})
	}
	if err := c.Service.Update(ctx.UserContext(), ctx.Params("id"), &input); err != nil {
		return ctx.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": err.Error()})
	}
	return ctx.JSON(fiber.Map{"message": "Template updated successfully"})
}

// GetTemplate godoc
// @Summary Get a letter template by id
// @Tags templates
// @Produce json
// @Param id path string true "Template ID"
// @Success 200 {object} LetterTemplate
// @Failure 404 {object} map[string]string "Template not found"
// @Router /api/templates/{id} [get]
func (c *TemplateController) GetTemplate(ctx *fiber.Ctx) error {
	tpl, err := c.Service.GetByID(ctx.UserContext(), ctx.Params("id"))
	if err != nil {
		return ctx.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": err.Error()})
	}
	if tpl == nil {
		return ctx.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "Template not found"})
	}
	return ctx.JSON(tpl)
}

// ListTemplates godoc
// @Summary List letter templates
// @Tags templates
// @Produce json
// @Success 200 {array} LetterTemplate
// @Router /api/templates [get]
func (c *TemplateController) ListTemplates(ctx *fiber.Ctx) error {
	templates, err := c.Service.List(ctx.UserContext())
	if err != nil {
		return ctx.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": err.Error()})
	}
	return ctx.JSON(templates)
}

// DeleteTemplate godoc
// @Summary Delete a letter template
// @Tags templates
// @Produce json
// @Param id path string true "Template ID"
// @Success 200 {object} map[string]string
// @Router /api/templates/{id} [delete]
func (c *TemplateController) DeleteTemplate(ctx *fiber.Ctx) error {
	if err := c.Service.Delete(ctx.UserContext(), ctx.Params("id")); err != nil {
		return ctx.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": err.Error()})
	}
	return ctx.JSON(fiber.Map{"message": "Template deleted successfully"})
}
