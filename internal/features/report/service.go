package report

import (
	"context"
	"fmt"
	"time"

	"go-letter/internal/common/models"
	"go-letter/internal/features/letter"
	"go-letter/internal/features/workflow"

	"github.com/xuri/excelize/v2"
	"go.mongodb.org/mongo-driver/bson"
)

type RegisterFilter struct {
	LetterType string
	Status     models.LetterStatus
	From       *time.Time
	To         *time.Time
}

type ReportService interface {
	LetterRegister(ctx context.Context, filter RegisterFilter) ([]letter.Letter, error)
	ExportRegister(ctx context.Context, filter RegisterFilter) ([]byte, string, error)
}

type ReportServiceImpl struct {
	LetterRepo letter.LetterRepository
}

func NewReportService(letterRepo letter.LetterRepository) ReportService {
	return &ReportServiceImpl{LetterRepo: letterRepo}
}

func (s *ReportServiceImpl) LetterRegister(ctx context.Context, filter RegisterFilter) ([]letter.Letter, error) {
	query := bson.M{}
	if filter.LetterType != "" {
		query["letter_type"] = filter.LetterType
	}
	if filter.Status != "" {
		query["status"] = filter.Status
	}
	created := bson.M{}
	if filter.From != nil {
		created["$gte"] = *filter.From
	}
	if filter.To != nil {
		created["$lt"] = *filter.To
	}
	if len(created) > 0 {
		query["created_at"] = created
	}
	return s.LetterRepo.List(ctx, query)
}

var registerColumns = []string{
	"Number", "Type", "Title", "Sender", "Status", "Waiting On", "Submitted", "Created",
}

// ExportRegister renders the filtered letter register as an xlsx workbook.
func (s *ReportServiceImpl) ExportRegister(ctx context.Context, filter RegisterFilter) ([]byte, string, error) {
	letters, err := s.LetterRegister(ctx, filter)
	if err != nil {
		return nil, "", err
	}

	f := excelize.NewFile()
	defer f.Close()

	sheetName := "Letter Register"
	index, err := f.NewSheet(sheetName)
	if err != nil {
		return nil, "", err
	}
	f.SetActiveSheet(index)
	f.DeleteSheet("Sheet1")

	headerStyle, _ := f.NewStyle(&excelize.Style{
		Font: &excelize.Font{Bold: true},
		Fill: excelize.Fill{Type: "pattern", Color: []string{"#E0E0E0"}, Pattern: 1},
	})
	for i, col := range registerColumns {
		cell, _ := excelize.CoordinatesToCellName(i+1, 1)
		f.SetCellValue(sheetName, cell, col)
		f.SetCellStyle(sheetName, cell, cell, headerStyle)
	}

	for rowIdx, l := range letters {
		row := []interface{}{
			l.Number,
			l.LetterType,
			l.Title,
			l.SenderName,
			string(l.Status),
			waitingOn(l.Steps),
			formatTime(l.SubmittedAt),
			l.CreatedAt.Format("2006-01-02 15:04:05"),
		}
		for colIdx, val := range row {
			cell, _ := excelize.CoordinatesToCellName(colIdx+1, rowIdx+2)
			f.SetCellValue(sheetName, cell, val)
		}
	}

	buf, err := f.WriteToBuffer()
	if err != nil {
		return nil, "", err
	}
	filename := fmt.Sprintf("letter-register-%s.xlsx", time.Now().Format("20060102-150405"))
	return buf.Bytes(), filename, nil
}

// waitingOn names the approvers whose steps are currently actionable.
func waitingOn(steps []workflow.StepRuntime) string {
	out := ""
	for _, step := range workflow.NextActionable(steps) {
		label := step.Name
		if label == "" {
			label = step.PositionLabel
		}
		if out != "" {
			out += ", "
		}
		out += label
	}
	return out
}

func formatTime(t *time.Time) string {
	if t == nil {
		return ""
	}
	return t.Format("2006-01-02 15:04:05")
}
