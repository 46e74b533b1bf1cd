package report

import (
	"time"

	"go-letter/internal/common/models"

	"github.com/gofiber/fiber/v2"
)

type ReportController struct {
	Service ReportService
}

func NewReportController(service ReportService) *ReportController {
	return &ReportController{Service: service}
}

func parseFilter(ctx *fiber.Ctx) RegisterFilter {
	filter := RegisterFilter{
		LetterType: ctx.Query("letter_type"),
		Status:     models.LetterStatus(ctx.Query("status")),
	}
	if from, err := time.Parse("2006-01-02", ctx.Query("from")); err == nil {
		filter.From = &from
	}
	if to, err := time.Parse("2006-01-02", ctx.Query("to")); err == nil {
		// Inclusive end date.
		to = to.AddDate(0, 0, 1)
		filter.To = &to
	}
	return filter
}

// Register godoc
// @Summary The letter register
// @Description Lists routed letters filtered by type, status, and date range
// @Tags reports
// @Produce json
// @Param letter_type query string false "Letter type"
// @Param status query string false "Letter status"
// @Param from query string false "Start date (YYYY-MM-DD)"
// @Param to query string false "End date (YYYY-MM-DD), inclusive"
// @Success 200 {array} letter.Letter
// @Router /api/reports/register [get]
func (c *ReportController) Register(ctx *fiber.Ctx) error {
	letters, err := c.Service.LetterRegister(ctx.UserContext(), parseFilter(ctx))
	if err != nil {
		return ctx.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": err.Error()})
	}
	return ctx.JSON(letters)
}

// ExportRegister godoc
// @Summary Export the letter register as xlsx
// @Tags reports
// @Produce application/vnd.openxmlformats-officedocument.spreadsheetml.sheet
// @Param letter_type query string false "Letter type"
// @Param status query string false "Letter status"
// @Param from query string false "Start date (YYYY-MM-DD)"
// @Param to query string false "End date (YYYY-MM-DD), inclusive"
// @Success 200 {file} binary
// @Router /api/reports/register/export [get]
func (c *ReportController) ExportRegister(ctx *fiber.Ctx) error {
	data, filename, err := c.Service.ExportRegister(ctx.UserContext(), parseFilter(ctx))
	if err != nil {
		return ctx.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": err.Error()})
	}

	ctx.Set("Content-Type", "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")
	ctx.Set("Content-Disposition", `attachment; filename="`+filename+`"`)
	return ctx.Send(data)
}
