package extract

import (
	"encoding/base64"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

	"kessan/backend/internal/domain"
)

func TestDetectKind(t *testing.T) {
	tests := []struct {
		name     string
		fileName string
		mimeType string
		expected domain.FileKind
	}{
		{"PDF MIME", "a.bin", "application/pdf", domain.FileKindPDF},
		{"PDF 扩展名", "決算.PDF", "", domain.FileKindPDF},
		{"Word MIME", "a", MIMEDocx, domain.FileKindDocx},
		{"Word 扩展名", "memo.docx", "application/octet-stream", domain.FileKindDocx},
		{"旧版 Excel MIME", "tb.bin", MIMEXls, domain.FileKindXlsx},
		{"xls 扩展名", "tb.xls", "", domain.FileKindXlsx},
		{"PowerPoint 扩展名", "deck.pptx", "", domain.FileKindPptx},
		{"旧版 PowerPoint MIME", "deck", MIMEPpt, domain.FileKindPptx},
		{"EML", "mail.eml", "message/rfc822", domain.FileKindEML},
		{"MSG", "mail.MSG", "application/vnd.ms-outlook", domain.FileKindMSG},
		{"text MIME", "notes", "text/csv", domain.FileKindText},
		{"txt 扩展名", "notes.txt", "", domain.FileKindText},
		{"PDF 优先于文本", "a.pdf", "text/plain", domain.FileKindPDF},
		{"未知类型", "image.png", "image/png", domain.FileKindUnknown},
		{"无 MIME 视为二进制", "archive.zip", "", domain.FileKindUnknown},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, DetectKind(tt.fileName, tt.mimeType))
		})
	}
}

func TestKindFromExtension(t *testing.T) {
	assert.Equal(t, domain.FileKindPDF, KindFromExtension("a.pdf"))
	assert.Equal(t, domain.FileKindMSG, KindFromExtension("A.Msg"))
	assert.Equal(t, domain.FileKindText, KindFromExtension("a.txt"))
	assert.Equal(t, domain.FileKindUnknown, KindFromExtension("a.xls"))
	assert.Equal(t, domain.FileKindUnknown, KindFromExtension("a.csv"))
	assert.Equal(t, domain.FileKindUnknown, KindFromExtension("noext"))
}

func TestPDFReference(t *testing.T) {
	data := []byte("%PDF-1.4 fake")
	block := PDFReference("決算書.pdf", data)

	assert.Equal(t, domain.BlockFileReference, block.Kind)
	assert.Equal(t, "決算書.pdf", block.FileName)
	assert.Equal(t, MIMEPDF, block.MIMEType)

	decoded, err := base64.StdEncoding.DecodeString(block.Base64Payload)
	require.NoError(t, err)
	assert.Equal(t, data, decoded)
	assert.True(t, strings.HasPrefix(block.DataURL(), "data:application/pdf;base64,"))
}

func TestPDFText(t *testing.T) {
	t.Run("提取文本和页数", func(t *testing.T) {
		text, pages, err := PDFText(buildTextPDF("Trial balance FY2024"))
		require.NoError(t, err)
		assert.Equal(t, 1, pages)
		assert.Contains(t, text, "Trial balance FY2024")
	})

	t.Run("无效 PDF", func(t *testing.T) {
		_, _, err := PDFText([]byte("not a pdf"))
		require.Error(t, err)
	})
}

func TestTextFromContentStream(t *testing.T) {
	content := []byte("BT\n/F1 12 Tf\n72 720 Td\n(Hello \\(world\\)) Tj\nT*\n[(A) -120 (B)] TJ\nET")
	assert.Equal(t, "Hello (world)\nAB", textFromContentStream(content))
}

func TestUnescapePDFString(t *testing.T) {
	assert.Equal(t, "a b", unescapePDFString([]byte(`a\040b`)))
	assert.Equal(t, "x\ny", unescapePDFString([]byte(`x\ny`)))
	assert.Equal(t, `\`, unescapePDFString([]byte(`\\`)))
}

func TestDocx(t *testing.T) {
	document := `<?xml version="1.0" encoding="UTF-8" standalone="yes"?>
<w:document xmlns:w="http://schemas.openxmlformats.org/wordprocessingml/2006/main"><w:body>
<w:p><w:pPr><w:tabs><w:tab w:val="left" w:pos="720"/></w:tabs></w:pPr><w:r><w:t>売上高</w:t></w:r><w:r><w:tab/><w:t>1,000</w:t></w:r></w:p>
<w:p><w:r><w:t xml:space="preserve">減価償却の </w:t></w:r><w:r><w:t>検討</w:t><w:br/><w:t>二行目</w:t></w:r></w:p>
</w:body></w:document>`

	data := buildZip(t, [][2]string{
		{"[Content_Types].xml", `<Types/>`},
		{"word/document.xml", document},
	})

	text, err := Docx(data)
	require.NoError(t, err)
	assert.Equal(t, "売上高\t1,000\n\n減価償却の 検討\n二行目", text)
}

func TestDocx_Errors(t *testing.T) {
	_, err := Docx([]byte("not a zip"))
	require.Error(t, err)

	_, err = Docx(buildZip(t, [][2]string{{"other.xml", "<x/>"}}))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "word/document.xml")
}

func TestXlsx(t *testing.T) {
	f := excelize.NewFile()
	require.NoError(t, f.SetSheetName("Sheet1", "試算表"))
	require.NoError(t, f.SetSheetRow("試算表", "A1", &[]any{"科目", "金額"}))
	require.NoError(t, f.SetSheetRow("試算表", "A2", &[]any{"現金", 1200}))
	require.NoError(t, f.SetSheetRow("試算表", "A4", &[]any{"売掛金", 3400.5}))
	_, err := f.NewSheet("メモ")
	require.NoError(t, err)
	require.NoError(t, f.SetCellValue("メモ", "B1", "注記"))

	buf, err := f.WriteToBuffer()
	require.NoError(t, err)
	require.NoError(t, f.Close())

	text, err := Xlsx(buf.Bytes())
	require.NoError(t, err)

	lines := strings.Split(text, "\n")
	assert.Equal(t, []string{
		"【シート: 試算表】",
		"科目\t金額",
		"現金\t1200",
		"売掛金\t3400.5",
		"【シート: メモ】",
		"\t注記",
	}, lines)
}

func TestXlsx_InvalidWorkbook(t *testing.T) {
	_, err := Xlsx([]byte("not a workbook"))
	require.Error(t, err)
}

func TestPptx(t *testing.T) {
	data := buildZip(t, [][2]string{
		{"ppt/slides/slide10.xml", slideXML("十枚目")},
		{"ppt/slides/slide2.xml", slideXML("業績概要", "売上 前年比 110%")},
		{"ppt/slides/_rels/slide2.xml.rels", `<Relationships/>`},
		{"ppt/slides/slide1.xml", slideXML("決算説明会")},
		{"ppt/notesSlides/notesSlide1.xml", slideXML("ノート")},
	})

	text, err := Pptx(data)
	require.NoError(t, err)
	assert.Equal(t, strings.Join([]string{
		"【スライド: ppt/slides/slide1.xml】",
		"決算説明会",
		"【スライド: ppt/slides/slide2.xml】",
		"業績概要",
		"売上 前年比 110%",
		"【スライド: ppt/slides/slide10.xml】",
		"十枚目",
	}, "\n"), text)
}

func TestPptx_NoSlides(t *testing.T) {
	text, err := Pptx(buildZip(t, [][2]string{{"ppt/presentation.xml", "<p/>"}}))
	require.NoError(t, err)
	assert.Empty(t, text)
}

func TestText(t *testing.T) {
	assert.Equal(t, "確認お願いします", Text([]byte("確認お願いします")))
	assert.Equal(t, "a�b", Text([]byte("a\xffb")))
}
