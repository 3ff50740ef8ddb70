package dashboard

import (
	"bytes"
	"context"
	"fmt"
	"time"

	"github.com/xuri/excelize/v2"

	"blue-carbon/mrv-portal/mrv-portal-backend/internal/apperrors"
)

// ExportRegionalStats renders the regional rollup as an xlsx workbook.
func (s *dashboardService) ExportRegionalStats(ctx context.Context) ([]byte, error) {
	regions, err := s.repo.RegionalStats(ctx)
	if err != nil {
		return nil, apperrors.Internal(err)
	}

	f := excelize.NewFile()
	defer f.Close()

	const sheet = "Regional Stats"
	index, err := f.NewSheet(sheet)
	if err != nil {
		return nil, apperrors.Internal(err)
	}
	f.SetActiveSheet(index)
	f.DeleteSheet("Sheet1")

	headers := []string{"Region", "Projects", "Credits", "Area (ha)", "Approved", "Verified", "Pending"}
	for i, h := range headers {
		cell, _ := excelize.CoordinatesToCellName(i+1, 1)
		if err := f.SetCellValue(sheet, cell, h); err != nil {
			return nil, apperrors.Internal(err)
		}
	}

	headerStyle, err := f.NewStyle(&excelize.Style{
		Font: &excelize.Font{Bold: true},
		Fill: excelize.Fill{Type: "pattern", Pattern: 1, Color: []string{"#DDEBF7"}},
	})
	if err == nil {
		endCell, _ := excelize.CoordinatesToCellName(len(headers), 1)
		f.SetCellStyle(sheet, "A1", endCell, headerStyle)
	}

	for i, region := range regions {
		row := i + 2
		values := []any{
			region.Region, region.Count, region.Credits, region.AreaHa,
			region.Approved, region.Verified, region.Pending,
		}
		for col, v := range values {
			cell, _ := excelize.CoordinatesToCellName(col+1, row)
			if err := f.SetCellValue(sheet, cell, v); err != nil {
				return nil, apperrors.Internal(err)
			}
		}
	}

	summaryRow := len(regions) + 3
	cell, _ := excelize.CoordinatesToCellName(1, summaryRow)
	f.SetCellValue(sheet, cell, fmt.Sprintf("Generated %s", time.Now().Format("2006-01-02 15:04")))

	var buf bytes.Buffer
	if err := f.Write(&buf); err != nil {
		return nil, apperrors.Internal(err)
	}
	return buf.Bytes(), nil
}
