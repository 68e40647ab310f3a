package export

import (
	"archive/zip"
	"bytes"
	"encoding/xml"
	"fmt"
	"strings"
	"text/template"

	"kessan/backend/internal/domain"
)

// PptxTitle 是首张幻灯片的标题
const PptxTitle = "決算サポートAI 出力"

// 1 英寸 = 914400 EMU，幻灯片为 16:9（10 x 5.625 英寸）
const (
	emuPerInch  = 914400
	slideWidth  = 10 * emuPerInch
	slideHeight = 5625 * emuPerInch / 1000
)

type textBox struct {
	ID         int
	X, Y, W, H int
	Size       int // 百分之一磅
	Bold       bool
	Paragraphs []string
}

type slide struct {
	Boxes []textBox
}

func inch(v float64) int { return int(v * emuPerInch) }

// Pptx 输出标题页加每个问答对一页：上方为 "Q{n}: 问题"，下方为回答
func Pptx(messages []domain.ConversationMessage) (File, error) {
	pairs := domain.BuildQAPairs(messages)
	if len(pairs) == 0 {
		return File{}, ErrNothingToExport
	}

	slides := make([]slide, 0, len(pairs)+1)
	slides = append(slides, slide{Boxes: []textBox{{
		ID: 2, X: inch(0.5), Y: inch(1), W: inch(9), H: inch(1),
		Size: 2800, Bold: true, Paragraphs: []string{PptxTitle},
	}}})
	for i, qa := range pairs {
		slides = append(slides, slide{Boxes: []textBox{
			{
				ID: 2, X: inch(0.5), Y: inch(0.5), W: inch(9), H: inch(0.8),
				Size: 1800, Bold: true, Paragraphs: splitLines(fmt.Sprintf("Q%d: %s", i+1, qa.Question)),
			},
			{
				ID: 3, X: inch(0.5), Y: inch(1.4), W: inch(9), H: inch(4),
				Size: 1400, Paragraphs: splitLines(qa.Answer),
			},
		}})
	}

	data, err := writePptx(slides)
	if err != nil {
		return File{}, err
	}
	return File{
		Name:        PptxFileName,
		ContentType: ContentTypePptx,
		Data:        data,
	}, nil
}

func splitLines(s string) []string {
	return strings.Split(strings.ReplaceAll(s, "\r\n", "\n"), "\n")
}

func writePptx(slides []slide) ([]byte, error) {
	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)

	write := func(name string, tmpl *template.Template, data any) error {
		w, err := zw.Create(name)
		if err != nil {
			return fmt.Errorf("create %s: %w", name, err)
		}
		if err := tmpl.Execute(w, data); err != nil {
			return fmt.Errorf("render %s: %w", name, err)
		}
		return nil
	}

	parts := []struct {
		name string
		tmpl *template.Template
		data any
	}{
		{"[Content_Types].xml", contentTypesTmpl, slides},
		{"_rels/.rels", rootRelsTmpl, nil},
		{"ppt/presentation.xml", presentationTmpl, map[string]any{"Slides": slides, "CX": slideWidth, "CY": slideHeight}},
		{"ppt/_rels/presentation.xml.rels", presentationRelsTmpl, slides},
		{"ppt/slideMasters/slideMaster1.xml", slideMasterTmpl, nil},
		{"ppt/slideMasters/_rels/slideMaster1.xml.rels", slideMasterRelsTmpl, nil},
		{"ppt/slideLayouts/slideLayout1.xml", slideLayoutTmpl, nil},
		{"ppt/slideLayouts/_rels/slideLayout1.xml.rels", slideLayoutRelsTmpl, nil},
		{"ppt/theme/theme1.xml", themeTmpl, nil},
	}
	for _, p := range parts {
		if err := write(p.name, p.tmpl, p.data); err != nil {
			return nil, err
		}
	}

	for i, s := range slides {
		n := i + 1
		if err := write(fmt.Sprintf("ppt/slides/slide%d.xml", n), slideTmpl, s); err != nil {
			return nil, err
		}
		if err := write(fmt.Sprintf("ppt/slides/_rels/slide%d.xml.rels", n), slideRelsTmpl, nil); err != nil {
			return nil, err
		}
	}

	if err := zw.Close(); err != nil {
		return nil, fmt.Errorf("close pptx: %w", err)
	}
	return buf.Bytes(), nil
}

func escapeXML(s string) string {
	var sb strings.Builder
	_ = xml.EscapeText(&sb, []byte(s))
	return sb.String()
}

var tmplFuncs = template.FuncMap{
	"esc": escapeXML,
	"add": func(a, b int) int { return a + b },
}

func mustTmpl(name, text string) *template.Template {
	return template.Must(template.New(name).Funcs(tmplFuncs).Parse(text))
}

const (
	xmlHeader = `<?xml version="1.0" encoding="UTF-8" standalone="yes"?>` + "\n"
	nsA       = `xmlns:a="http://schemas.openxmlformats.org/drawingml/2006/main"`
	nsR       = `xmlns:r="http://schemas.openxmlformats.org/officeDocument/2006/relationships"`
	nsP       = `xmlns:p="http://schemas.openxmlformats.org/presentationml/2006/main"`
	nsRels    = `xmlns="http://schemas.openxmlformats.org/package/2006/relationships"`
	relBase   = `http://schemas.openxmlformats.org/officeDocument/2006/relationships/`
	emptyTree = `<p:nvGrpSpPr><p:cNvPr id="1" name=""/><p:cNvGrpSpPr/><p:nvPr/></p:nvGrpSpPr>` +
		`<p:grpSpPr><a:xfrm><a:off x="0" y="0"/><a:ext cx="0" cy="0"/><a:chOff x="0" y="0"/><a:chExt cx="0" cy="0"/></a:xfrm></p:grpSpPr>`
)

var contentTypesTmpl = mustTmpl("content_types", xmlHeader+
	`<Types xmlns="http://schemas.openxmlformats.org/package/2006/content-types">`+
	`<Default Extension="rels" ContentType="application/vnd.openxmlformats-package.relationships+xml"/>`+
	`<Default Extension="xml" ContentType="application/xml"/>`+
	`<Override PartName="/ppt/presentation.xml" ContentType="application/vnd.openxmlformats-officedocument.presentationml.presentation.main+xml"/>`+
	`<Override PartName="/ppt/slideMasters/slideMaster1.xml" ContentType="application/vnd.openxmlformats-officedocument.presentationml.slideMaster+xml"/>`+
	`<Override PartName="/ppt/slideLayouts/slideLayout1.xml" ContentType="application/vnd.openxmlformats-officedocument.presentationml.slideLayout+xml"/>`+
	`<Override PartName="/ppt/theme/theme1.xml" ContentType="application/vnd.openxmlformats-officedocument.theme+xml"/>`+
	`{{range $i, $s := .}}<Override PartName="/ppt/slides/slide{{add $i 1}}.xml" ContentType="application/vnd.openxmlformats-officedocument.presentationml.slide+xml"/>{{end}}`+
	`</Types>`)

var rootRelsTmpl = mustTmpl("root_rels", xmlHeader+
	`<Relationships `+nsRels+`>`+
	`<Relationship Id="rId1" Type="`+relBase+`officeDocument" Target="ppt/presentation.xml"/>`+
	`</Relationships>`)

// 幻灯片的关系 ID 从 rId3 开始，rId1 为母版，rId2 为主题
var presentationTmpl = mustTmpl("presentation", xmlHeader+
	`<p:presentation `+nsA+` `+nsR+` `+nsP+` saveSubsetFonts="1">`+
	`<p:sldMasterIdLst><p:sldMasterId id="2147483648" r:id="rId1"/></p:sldMasterIdLst>`+
	`<p:sldIdLst>{{range $i, $s := .Slides}}<p:sldId id="{{add $i 256}}" r:id="rId{{add $i 3}}"/>{{end}}</p:sldIdLst>`+
	`<p:sldSz cx="{{.CX}}" cy="{{.CY}}"/>`+
	`<p:notesSz cx="6858000" cy="9144000"/>`+
	`</p:presentation>`)

var presentationRelsTmpl = mustTmpl("presentation_rels", xmlHeader+
	`<Relationships `+nsRels+`>`+
	`<Relationship Id="rId1" Type="`+relBase+`slideMaster" Target="slideMasters/slideMaster1.xml"/>`+
	`<Relationship Id="rId2" Type="`+relBase+`theme" Target="theme/theme1.xml"/>`+
	`{{range $i, $s := .}}<Relationship Id="rId{{add $i 3}}" Type="`+relBase+`slide" Target="slides/slide{{add $i 1}}.xml"/>{{end}}`+
	`</Relationships>`)

var slideMasterTmpl = mustTmpl("slide_master", xmlHeader+
	`<p:sldMaster `+nsA+` `+nsR+` `+nsP+`>`+
	`<p:cSld><p:bg><p:bgRef idx="1001"><a:schemeClr val="bg1"/></p:bgRef></p:bg><p:spTree>`+emptyTree+`</p:spTree></p:cSld>`+
	`<p:clrMap bg1="lt1" tx1="dk1" bg2="lt2" tx2="dk2" accent1="accent1" accent2="accent2" accent3="accent3" accent4="accent4" accent5="accent5" accent6="accent6" hlink="hlink" folHlink="folHlink"/>`+
	`<p:sldLayoutIdLst><p:sldLayoutId id="2147483649" r:id="rId1"/></p:sldLayoutIdLst>`+
	`<p:txStyles><p:titleStyle><a:lvl1pPr><a:defRPr sz="4400"/></a:lvl1pPr></p:titleStyle>`+
	`<p:bodyStyle><a:lvl1pPr><a:defRPr sz="1800"/></a:lvl1pPr></p:bodyStyle>`+
	`<p:otherStyle><a:lvl1pPr><a:defRPr sz="1800"/></a:lvl1pPr></p:otherStyle></p:txStyles>`+
	`</p:sldMaster>`)

var slideMasterRelsTmpl = mustTmpl("slide_master_rels", xmlHeader+
	`<Relationships `+nsRels+`>`+
	`<Relationship Id="rId1" Type="`+relBase+`slideLayout" Target="../slideLayouts/slideLayout1.xml"/>`+
	`<Relationship Id="rId2" Type="`+relBase+`theme" Target="../theme/theme1.xml"/>`+
	`</Relationships>`)

var slideLayoutTmpl = mustTmpl("slide_layout", xmlHeader+
	`<p:sldLayout `+nsA+` `+nsR+` `+nsP+` type="blank" preserve="1">`+
	`<p:cSld name="Blank"><p:spTree>`+emptyTree+`</p:spTree></p:cSld>`+
	`<p:clrMapOvr><a:masterClrMapping/></p:clrMapOvr>`+
	`</p:sldLayout>`)

var slideLayoutRelsTmpl = mustTmpl("slide_layout_rels", xmlHeader+
	`<Relationships `+nsRels+`>`+
	`<Relationship Id="rId1" Type="`+relBase+`slideMaster" Target="../slideMasters/slideMaster1.xml"/>`+
	`</Relationships>`)

var slideRelsTmpl = mustTmpl("slide_rels", xmlHeader+
	`<Relationships `+nsRels+`>`+
	`<Relationship Id="rId1" Type="`+relBase+`slideLayout" Target="../slideLayouts/slideLayout1.xml"/>`+
	`</Relationships>`)

var slideTmpl = mustTmpl("slide", xmlHeader+
	`<p:sld `+nsA+` `+nsR+` `+nsP+`>`+
	`<p:cSld><p:spTree>`+emptyTree+
	`{{range .Boxes}}`+
	`<p:sp><p:nvSpPr><p:cNvPr id="{{.ID}}" name="TextBox {{.ID}}"/><p:cNvSpPr txBox="1"/><p:nvPr/></p:nvSpPr>`+
	`<p:spPr><a:xfrm><a:off x="{{.X}}" y="{{.Y}}"/><a:ext cx="{{.W}}" cy="{{.H}}"/></a:xfrm><a:prstGeom prst="rect"><a:avLst/></a:prstGeom><a:noFill/></p:spPr>`+
	`<p:txBody><a:bodyPr wrap="square" rtlCol="0"><a:normAutofit/></a:bodyPr><a:lstStyle/>`+
	`{{$box := .}}{{range .Paragraphs}}<a:p>`+
	`{{if .}}<a:r><a:rPr lang="ja-JP" altLang="en-US" sz="{{$box.Size}}"{{if $box.Bold}} b="1"{{end}} dirty="0"/><a:t>{{esc .}}</a:t></a:r>{{end}}`+
	`<a:endParaRPr lang="ja-JP" altLang="en-US" sz="{{$box.Size}}" dirty="0"/></a:p>{{end}}`+
	`</p:txBody></p:sp>`+
	`{{end}}`+
	`</p:spTree></p:cSld>`+
	`<p:clrMapOvr><a:masterClrMapping/></p:clrMapOvr>`+
	`</p:sld>`)

var themeTmpl = mustTmpl("theme", xmlHeader+
	`<a:theme `+nsA+` name="Kessan">`+
	`<a:themeElements>`+
	`<a:clrScheme name="Office">`+
	`<a:dk1><a:sysClr val="windowText" lastClr="000000"/></a:dk1>`+
	`<a:lt1><a:sysClr val="window" lastClr="FFFFFF"/></a:lt1>`+
	`<a:dk2><a:srgbClr val="44546A"/></a:dk2>`+
	`<a:lt2><a:srgbClr val="E7E6E6"/></a:lt2>`+
	`<a:accent1><a:srgbClr val="4472C4"/></a:accent1>`+
	`<a:accent2><a:srgbClr val="ED7D31"/></a:accent2>`+
	`<a:accent3><a:srgbClr val="A5A5A5"/></a:accent3>`+
	`<a:accent4><a:srgbClr val="FFC000"/></a:accent4>`+
	`<a:accent5><a:srgbClr val="5B9BD5"/></a:accent5>`+
	`<a:accent6><a:srgbClr val="70AD47"/></a:accent6>`+
	`<a:hlink><a:srgbClr val="0563C1"/></a:hlink>`+
	`<a:folHlink><a:srgbClr val="954F72"/></a:folHlink>`+
	`</a:clrScheme>`+
	`<a:fontScheme name="Office">`+
	`<a:majorFont><a:latin typeface="Meiryo"/><a:ea typeface="Meiryo"/><a:cs typeface=""/></a:majorFont>`+
	`<a:minorFont><a:latin typeface="Meiryo"/><a:ea typeface="Meiryo"/><a:cs typeface=""/></a:minorFont>`+
	`</a:fontScheme>`+
	`<a:fmtScheme name="Office">`+
	`<a:fillStyleLst>`+
	`<a:solidFill><a:schemeClr val="phClr"/></a:solidFill>`+
	`<a:solidFill><a:schemeClr val="phClr"/></a:solidFill>`+
	`<a:solidFill><a:schemeClr val="phClr"/></a:solidFill>`+
	`</a:fillStyleLst>`+
	`<a:lnStyleLst>`+
	`<a:ln w="6350"><a:solidFill><a:schemeClr val="phClr"/></a:solidFill></a:ln>`+
	`<a:ln w="12700"><a:solidFill><a:schemeClr val="phClr"/></a:solidFill></a:ln>`+
	`<a:ln w="19050"><a:solidFill><a:schemeClr val="phClr"/></a:solidFill></a:ln>`+
	`</a:lnStyleLst>`+
	`<a:effectStyleLst>`+
	`<a:effectStyle><a:effectLst/></a:effectStyle>`+
	`<a:effectStyle><a:effectLst/></a:effectStyle>`+
	`<a:effectStyle><a:effectLst/></a:effectStyle>`+
	`</a:effectStyleLst>`+
	`<a:bgFillStyleLst>`+
	`<a:solidFill><a:schemeClr val="phClr"/></a:solidFill>`+
	`<a:solidFill><a:schemeClr val="phClr"/></a:solidFill>`+
	`<a:solidFill><a:schemeClr val="phClr"/></a:solidFill>`+
	`</a:bgFillStyleLst>`+
	`</a:fmtScheme>`+
	`</a:themeElements>`+
	`</a:theme>`)
