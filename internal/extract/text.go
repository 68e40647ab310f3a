package extract

import "strings"

// Text 按 UTF-8 解码，非法字节序列替换为 U+FFFD
func Text(data []byte) string {
	return strings.ToValidUTF8(string(data), "�")
}
