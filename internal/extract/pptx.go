package extract

import (
	"archive/zip"
	"bytes"
	"encoding/xml"
	"errors"
	"fmt"
	"io"
	"regexp"
	"sort"
	"strconv"
	"strings"
)

var slideEntry = regexp.MustCompile(`^ppt/slides/slide(\d+)\.xml$`)

type slidePart struct {
	index int
	file  *zip.File
}

// Pptx 提取每张幻灯片中 a:t 文本。幻灯片按编号数值排序（slide2 在 slide10 之前），
// 每张先输出 【スライド: 条目名】 标记行，再输出以换行连接的文本。
func Pptx(data []byte) (string, error) {
	zr, err := zip.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return "", fmt.Errorf("open pptx: %w", err)
	}

	var slides []slidePart
	for _, f := range zr.File {
		m := slideEntry.FindStringSubmatch(f.Name)
		if m == nil {
			continue
		}
		idx, err := strconv.Atoi(m[1])
		if err != nil {
			continue
		}
		slides = append(slides, slidePart{index: idx, file: f})
	}
	sort.Slice(slides, func(i, j int) bool { return slides[i].index < slides[j].index })

	parts := make([]string, 0, len(slides)*2)
	for _, s := range slides {
		texts, err := slideTexts(s.file)
		if err != nil {
			return "", err
		}
		parts = append(parts, SlideMarker(s.file.Name), strings.Join(texts, "\n"))
	}

	return strings.Join(parts, "\n"), nil
}

// SlideMarker 返回幻灯片标记行
func SlideMarker(entry string) string {
	return "【スライド: " + entry + "】"
}

// slideTexts 按文档顺序收集 a:t 元素的文本
func slideTexts(f *zip.File) ([]string, error) {
	rc, err := f.Open()
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", f.Name, err)
	}
	defer rc.Close()

	decoder := xml.NewDecoder(rc)
	var texts []string
	var current strings.Builder
	inText := false

	for {
		tok, err := decoder.Token()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("parse %s: %w", f.Name, err)
		}

		switch t := tok.(type) {
		case xml.StartElement:
			if t.Name.Local == "t" {
				inText = true
				current.Reset()
			}
		case xml.CharData:
			if inText {
				current.Write(t)
			}
		case xml.EndElement:
			if t.Name.Local == "t" && inText {
				inText = false
				if current.Len() > 0 {
					texts = append(texts, current.String())
				}
			}
		}
	}
	return texts, nil
}
