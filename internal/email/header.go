// Package email 解析上传的邮件文件（.eml / .msg），提取正文和 From/To/Cc/Subject 摘要。
package email

import (
	"fmt"
	"io"
	"mime"
	"strings"

	"golang.org/x/text/encoding"
	"golang.org/x/text/encoding/japanese"
	"golang.org/x/text/encoding/korean"
	"golang.org/x/text/encoding/simplifiedchinese"
	"golang.org/x/text/encoding/traditionalchinese"

	"kessan/backend/internal/domain"
)

var wordDecoder = &mime.WordDecoder{CharsetReader: charsetReader}

// ParseHeaders 解析 RFC822 头部块。
//
// 以空白开头的行是上一个头部的折行，去除首尾空白后以一个空格拼接；
// 其余行按第一个冒号拆分为名称和值，并先提交上一个头部。
// 头部名称不区分大小写，只保留 from / to / cc / subject。
func ParseHeaders(block string) domain.EmailMeta {
	var meta domain.EmailMeta
	var name string
	var value strings.Builder

	flush := func() {
		if name == "" {
			return
		}
		v := decodeHeaderValue(strings.TrimSpace(value.String()))
		switch strings.ToLower(name) {
		case "from":
			meta.From = v
		case "to":
			meta.To = v
		case "cc":
			meta.Cc = v
		case "subject":
			meta.Subject = v
		}
	}

	for _, line := range strings.Split(block, "\n") {
		line = strings.TrimSuffix(line, "\r")

		if line != "" && (line[0] == ' ' || line[0] == '\t') {
			if name != "" {
				value.WriteByte(' ')
				value.WriteString(strings.TrimSpace(line))
			}
			continue
		}

		flush()
		name = ""
		value.Reset()

		idx := strings.IndexByte(line, ':')
		if idx == -1 {
			continue
		}
		name = strings.TrimSpace(line[:idx])
		value.WriteString(strings.TrimSpace(line[idx+1:]))
	}
	flush()

	return meta
}

// decodeHeaderValue 解码 RFC 2047 编码字（如 =?ISO-2022-JP?B?...?=），失败时原样返回
func decodeHeaderValue(v string) string {
	if !strings.Contains(v, "=?") {
		return v
	}
	decoded, err := wordDecoder.DecodeHeader(v)
	if err != nil {
		return v
	}
	return decoded
}

// charsetReader 为 mime.WordDecoder 提供非 UTF-8 字符集的解码
func charsetReader(charset string, input io.Reader) (io.Reader, error) {
	enc := getCharsetEncoding(strings.ToLower(strings.TrimSpace(charset)))
	if enc == nil {
		return nil, fmt.Errorf("unsupported charset %q", charset)
	}
	return enc.NewDecoder().Reader(input), nil
}

// getCharsetEncoding 根据字符集名称返回编码器
func getCharsetEncoding(charset string) encoding.Encoding {
	switch charset {
	case "iso-2022-jp", "csiso2022jp":
		return japanese.ISO2022JP
	case "shift_jis", "shift-jis", "sjis", "windows-31j", "cp932", "x-sjis":
		return japanese.ShiftJIS
	case "euc-jp":
		return japanese.EUCJP
	case "gb2312", "gbk", "gb18030":
		return simplifiedchinese.GBK
	case "big5":
		return traditionalchinese.Big5
	case "euc-kr", "ks_c_5601-1987":
		return korean.EUCKR
	default:
		return nil
	}
}
