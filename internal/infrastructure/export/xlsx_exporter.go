package export

import (
	"context"
	"fmt"

	"github.com/xuri/excelize/v2"
	"go.uber.org/zap"

	"github.com/garyjia/workflow-approval/internal/application/port"
	"github.com/garyjia/workflow-approval/internal/domain/entity"
)

const (
	SheetRequests = "Requests"
	SheetSteps    = "Steps"

	timeLayout = "2006-01-02 15:04:05"
)

var requestHeaders = []string{
	"Request ID", "Workflow ID", "Type", "Initiator", "Status", "Title", "Description", "Created At", "Updated At",
}

var stepHeaders = []string{
	"Request ID", "Order", "Step", "Responsible Role", "Status", "Validator", "Validated At", "Comments", "Due (hours)",
}

// XLSXExporter renders requests and their steps into a two-sheet workbook
type XLSXExporter struct {
	logger *zap.Logger
}

// NewXLSXExporter creates a new exporter
func NewXLSXExporter(logger *zap.Logger) *XLSXExporter {
	return &XLSXExporter{logger: logger}
}

// Export returns the workbook bytes
func (e *XLSXExporter) Export(ctx context.Context, requests []*entity.Request) ([]byte, error) {
	f := excelize.NewFile()
	defer f.Close()

	// the default sheet becomes Requests
	if err := f.SetSheetName(f.GetSheetName(0), SheetRequests); err != nil {
		return nil, fmt.Errorf("failed to rename sheet: %w", err)
	}
	if _, err := f.NewSheet(SheetSteps); err != nil {
		return nil, fmt.Errorf("failed to create sheet: %w", err)
	}

	headerStyle, err := f.NewStyle(&excelize.Style{
		Font: &excelize.Font{Bold: true},
		Fill: excelize.Fill{Type: "pattern", Color: []string{"#E0E0E0"}, Pattern: 1},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create header style: %w", err)
	}

	if err := writeRow(f, SheetRequests, 1, toCells(requestHeaders), headerStyle); err != nil {
		return nil, err
	}
	if err := writeRow(f, SheetSteps, 1, toCells(stepHeaders), headerStyle); err != nil {
		return nil, err
	}

	stepRow := 2
	for i, req := range requests {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		if err := writeRow(f, SheetRequests, i+2, []interface{}{
			req.ID,
			req.WorkflowID,
			string(req.Type),
			req.InitiatorID,
			string(req.Status),
			deref(req.Title),
			deref(req.Description),
			req.CreatedAt.UTC().Format(timeLayout),
			req.UpdatedAt.UTC().Format(timeLayout),
		}, 0); err != nil {
			return nil, err
		}

		for _, step := range req.Steps {
			validatedAt := ""
			if step.ValidatedAt != nil {
				validatedAt = step.ValidatedAt.UTC().Format(timeLayout)
			}
			var due interface{} = ""
			if step.DueInHours != nil {
				due = *step.DueInHours
			}
			if err := writeRow(f, SheetSteps, stepRow, []interface{}{
				req.ID,
				step.StepOrder,
				step.StepName,
				step.ResponsibleRole,
				string(step.Status),
				deref(step.ValidatorID),
				validatedAt,
				deref(step.Comments),
				due,
			}, 0); err != nil {
				return nil, err
			}
			stepRow++
		}
	}

	for _, sheet := range []string{SheetRequests, SheetSteps} {
		if err := f.SetColWidth(sheet, "A", "I", 18); err != nil {
			return nil, fmt.Errorf("failed to set column width: %w", err)
		}
	}
	f.SetActiveSheet(0)

	buf, err := f.WriteToBuffer()
	if err != nil {
		e.logger.Error("Failed to write workbook", zap.Error(err))
		return nil, fmt.Errorf("failed to write workbook: %w", err)
	}

	e.logger.Info("Requests exported",
		zap.Int("requests", len(requests)),
		zap.Int("steps", stepRow-2),
		zap.Int("bytes", buf.Len()))
	return buf.Bytes(), nil
}

func writeRow(f *excelize.File, sheet string, row int, values []interface{}, style int) error {
	cell, err := excelize.CoordinatesToCellName(1, row)
	if err != nil {
		return err
	}
	if err := f.SetSheetRow(sheet, cell, &values); err != nil {
		return fmt.Errorf("failed to write row %d of %s: %w", row, sheet, err)
	}
	if style != 0 {
		last, _ := excelize.CoordinatesToCellName(len(values), row)
		if err := f.SetCellStyle(sheet, cell, last, style); err != nil {
			return fmt.Errorf("failed to style row %d of %s: %w", row, sheet, err)
		}
	}
	return nil
}

func toCells(headers []string) []interface{} {
	cells := make([]interface{}, len(headers))
	for i, h := range headers {
		cells[i] = h
	}
	return cells
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

var _ port.RequestExporter = (*XLSXExporter)(nil)
