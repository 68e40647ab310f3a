package email

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"kessan/backend/internal/domain"
)

func TestParseHeaders(t *testing.T) {
	tests := []struct {
		name     string
		block    string
		expected domain.EmailMeta
	}{
		{
			name:  "基本头部",
			block: "From: a@x.jp\r\nTo: b@y.jp\r\nSubject: 見積依頼",
			expected: domain.EmailMeta{
				From:    "a@x.jp",
				To:      "b@y.jp",
				Subject: "見積依頼",
			},
		},
		{
			name:  "折行拼接",
			block: "Subject: 決算\r\n  資料の件\r\nFrom: a@x.jp",
			expected: domain.EmailMeta{
				From:    "a@x.jp",
				Subject: "決算 資料の件",
			},
		},
		{
			name:  "名称不区分大小写",
			block: "FROM: a@x.jp\nCC: c@z.jp\nsubject: hello",
			expected: domain.EmailMeta{
				From:    "a@x.jp",
				Cc:      "c@z.jp",
				Subject: "hello",
			},
		},
		{
			name:     "忽略无关头部和无冒号行",
			block:    "Received: from mx\nX-Mailer: test\ngarbage line\nTo: b@y.jp",
			expected: domain.EmailMeta{To: "b@y.jp"},
		},
		{
			name:     "值中包含冒号",
			block:    "Subject: Re: 決算: 確認",
			expected: domain.EmailMeta{Subject: "Re: 決算: 確認"},
		},
		{
			name:     "RFC 2047 UTF-8 编码字",
			block:    "Subject: =?UTF-8?B?6KaL56mN5L6d6aC8?=",
			expected: domain.EmailMeta{Subject: "見積依頼"},
		},
		{
			name:     "RFC 2047 ISO-2022-JP 编码字",
			block:    "Subject: =?ISO-2022-JP?B?GyRCOCtAUTBNTWobKEI=?=",
			expected: domain.EmailMeta{Subject: "見積依頼"},
		},
		{
			name:     "空块",
			block:    "",
			expected: domain.EmailMeta{},
		},
		{
			name:     "前导折行被忽略",
			block:    "  orphan\nFrom: a@x.jp",
			expected: domain.EmailMeta{From: "a@x.jp"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, ParseHeaders(tt.block))
		})
	}
}

func TestDecodeHeaderValue_InvalidEncodingKeepsRaw(t *testing.T) {
	raw := "=?x-unknown?B?AAAA?="
	assert.Equal(t, raw, decodeHeaderValue(raw))
}

func TestGetCharsetEncoding(t *testing.T) {
	assert.NotNil(t, getCharsetEncoding("iso-2022-jp"))
	assert.NotNil(t, getCharsetEncoding("shift_jis"))
	assert.NotNil(t, getCharsetEncoding("euc-jp"))
	assert.NotNil(t, getCharsetEncoding("gbk"))
	assert.Nil(t, getCharsetEncoding("x-unknown"))
}
