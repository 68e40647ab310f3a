package export

import (
	"fmt"

	"github.com/xuri/excelize/v2"

	"kessan/backend/internal/domain"
)

// SheetName 是导出工作表名
const SheetName = "AI回答"

var qaColumns = []struct {
	header string
	col    string
	width  float64
}{
	{"No", "A", 6},
	{"業務カテゴリ", "B", 20},
	{"質問", "C", 40},
	{"回答", "D", 80},
}

// Excel 将问答对输出为 .xlsx：表头 No / 業務カテゴリ / 質問 / 回答，每个问答对一行
func Excel(messages []domain.ConversationMessage, businessType string) (File, error) {
	pairs := domain.BuildQAPairs(messages)
	if len(pairs) == 0 {
		return File{}, ErrNothingToExport
	}

	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName(f.GetSheetName(0), SheetName); err != nil {
		return File{}, fmt.Errorf("rename sheet: %w", err)
	}

	header := make([]any, len(qaColumns))
	for i, c := range qaColumns {
		header[i] = c.header
		if err := f.SetColWidth(SheetName, c.col, c.col, c.width); err != nil {
			return File{}, fmt.Errorf("set column width: %w", err)
		}
	}
	if err := f.SetSheetRow(SheetName, "A1", &header); err != nil {
		return File{}, fmt.Errorf("write header: %w", err)
	}

	headerStyle, err := f.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true}})
	if err != nil {
		return File{}, fmt.Errorf("create style: %w", err)
	}
	if err := f.SetCellStyle(SheetName, "A1", "D1", headerStyle); err != nil {
		return File{}, fmt.Errorf("apply style: %w", err)
	}

	wrapStyle, err := f.NewStyle(&excelize.Style{Alignment: &excelize.Alignment{WrapText: true, Vertical: "top"}})
	if err != nil {
		return File{}, fmt.Errorf("create style: %w", err)
	}

	for i, qa := range pairs {
		row := i + 2
		cell, err := excelize.CoordinatesToCellName(1, row)
		if err != nil {
			return File{}, err
		}
		values := []any{i + 1, businessType, qa.Question, qa.Answer}
		if err := f.SetSheetRow(SheetName, cell, &values); err != nil {
			return File{}, fmt.Errorf("write row %d: %w", row, err)
		}
		if err := f.SetCellStyle(SheetName, fmt.Sprintf("C%d", row), fmt.Sprintf("D%d", row), wrapStyle); err != nil {
			return File{}, fmt.Errorf("apply style: %w", err)
		}
	}

	buf, err := f.WriteToBuffer()
	if err != nil {
		return File{}, fmt.Errorf("write workbook: %w", err)
	}

	return File{
		Name:        XlsxFileName,
		ContentType: ContentTypeXlsx,
		Data:        buf.Bytes(),
	}, nil
}
