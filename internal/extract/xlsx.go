package extract

import (
	"bytes"
	"fmt"
	"strings"

	"github.com/xuri/excelize/v2"
)

// Xlsx 按工作簿顺序输出每个工作表：先输出 【シート: 名称】 标记行，再逐行输出以制表符分隔的原始单元格值。
// 所有单元格都为空的行不输出。
func Xlsx(data []byte) (string, error) {
	f, err := excelize.OpenReader(bytes.NewReader(data))
	if err != nil {
		return "", fmt.Errorf("open workbook: %w", err)
	}
	defer f.Close()

	var lines []string
	for _, sheet := range f.GetSheetList() {
		rows, err := f.GetRows(sheet, excelize.Options{RawCellValue: true})
		if err != nil {
			return "", fmt.Errorf("read sheet %q: %w", sheet, err)
		}

		lines = append(lines, SheetMarker(sheet))
		for _, row := range rows {
			if isBlankRow(row) {
				continue
			}
			lines = append(lines, strings.Join(row, "\t"))
		}
	}

	return strings.Join(lines, "\n"), nil
}

// SheetMarker 返回工作表标记行
func SheetMarker(sheet string) string {
	return "【シート: " + sheet + "】"
}

func isBlankRow(row []string) bool {
	for _, cell := range row {
		if cell != "" {
			return false
		}
	}
	return true
}
