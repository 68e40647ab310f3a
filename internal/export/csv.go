package export

import (
	"bytes"
	"encoding/csv"
	"fmt"
	"strconv"

	"kessan/backend/internal/domain"
)

// utf8BOM 让 Excel 以 UTF-8 打开 CSV
var utf8BOM = []byte{0xEF, 0xBB, 0xBF}

// CSV 以与 Excel 导出相同的列输出问答对，带 UTF-8 BOM，行尾为 CRLF
func CSV(messages []domain.ConversationMessage, businessType string) (File, error) {
	pairs := domain.BuildQAPairs(messages)
	if len(pairs) == 0 {
		return File{}, ErrNothingToExport
	}

	var buf bytes.Buffer
	buf.Write(utf8BOM)

	w := csv.NewWriter(&buf)
	w.UseCRLF = true

	header := make([]string, len(qaColumns))
	for i, c := range qaColumns {
		header[i] = c.header
	}
	if err := w.Write(header); err != nil {
		return File{}, fmt.Errorf("write header: %w", err)
	}
	for i, qa := range pairs {
		if err := w.Write([]string{strconv.Itoa(i + 1), businessType, qa.Question, qa.Answer}); err != nil {
			return File{}, fmt.Errorf("write row: %w", err)
		}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return File{}, fmt.Errorf("flush csv: %w", err)
	}

	return File{
		Name:        CSVFileName,
		ContentType: ContentTypeCSV,
		Data:        buf.Bytes(),
	}, nil
}
