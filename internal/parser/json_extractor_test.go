package parser

import (
	"encoding/json"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TestFenceStrippingRoundTrip 任意JSON对象包进```json围栏后应能原样恢复
func TestFenceStrippingRoundTrip(t *testing.T) {
	original := map[string]interface{}{
		"question": "你最喜欢哪门学科?",
		"options":  []interface{}{"Math", "Biology", "History"},
		"depth":    map[string]interface{}{"nested": true},
	}
	serialized, err := json.Marshal(original)
	require.NoError(t, err)

	fenced := fmt.Sprintf("```json\n%s\n```", string(serialized))

	extractor := NewJSONExtractor()
	var got map[string]interface{}
	err = extractor.Extract(fenced, &got)
	require.NoError(t, err)

	// 往返应深度相等
	assert.Equal(t, original["question"], got["question"])
	assert.Equal(t, original["options"], got["options"])
	assert.Equal(t, original["depth"], got["depth"])
}

// TestLocateBraceSlice 前后有散文包裹时，回退到首{末}切片
func TestLocateBraceSlice(t *testing.T) {
	text := `Sure! Here is what I found for you.
{"field": "Engineering", "score": 8}
Hope that helps.`

	extractor := NewJSONExtractor()
	var got struct {
		Field string `json:"field"`
		Score int    `json:"score"`
	}
	err := extractor.Extract(text, &got)
	require.NoError(t, err)
	assert.Equal(t, "Engineering", got.Field)
	assert.Equal(t, 8, got.Score)
}

// TestGenericFenceStripped 无json标记的通用围栏也应被剥离
func TestGenericFenceStripped(t *testing.T) {
	text := "```\n{\"ok\": true}\n```"

	extractor := NewJSONExtractor()
	var got map[string]interface{}
	err := extractor.Extract(text, &got)
	require.NoError(t, err)
	assert.Equal(t, true, got["ok"])
}

// TestRepairTrailingComma 尾随逗号应在第二层修复中被移除
func TestRepairTrailingComma(t *testing.T) {
	text := `{"options": ["A", "B",], "question": "Q?",}`

	extractor := NewJSONExtractor()
	var got struct {
		Question string   `json:"question"`
		Options  []string `json:"options"`
	}
	err := extractor.Extract(text, &got)
	require.NoError(t, err)
	assert.Equal(t, "Q?", got.Question)
	assert.Equal(t, []string{"A", "B"}, got.Options)
}

// TestRepairBareKeysAndSingleQuotes 裸键和单引号应在第二层修复中被规范化
func TestRepairBareKeysAndSingleQuotes(t *testing.T) {
	text := `{question: 'Which stream?', options: ['Science', 'Arts']}`

	extractor := NewJSONExtractor()
	var got struct {
		Question string   `json:"question"`
		Options  []string `json:"options"`
	}
	err := extractor.Extract(text, &got)
	require.NoError(t, err)
	assert.Equal(t, "Which stream?", got.Question)
	assert.Equal(t, []string{"Science", "Arts"}, got.Options)
}

// TestTolerantRepairTier 文本修复会破坏值内单引号的场景，由容错修复层兜底
func TestTolerantRepairTier(t *testing.T) {
	// 值内含单引号：第二层的全局单引号替换会产生非法JSON，
	// 第三层的jsonrepair应能正确处理
	text := `{reason: "India's IT sector is growing"}`

	extractor := NewJSONExtractor()
	var got struct {
		Reason string `json:"reason"`
	}
	err := extractor.Extract(text, &got)
	require.NoError(t, err)
	assert.Contains(t, got.Reason, "IT sector")
}

// TestExtractNoJSON 文本中不存在JSON对象时返回ParseFailureError
func TestExtractNoJSON(t *testing.T) {
	extractor := NewJSONExtractor()
	var got map[string]interface{}
	err := extractor.Extract("这里没有任何结构化数据", &got)
	require.Error(t, err)

	var pf *ParseFailureError
	assert.ErrorAs(t, err, &pf)
}

// TestExtractInvertedBraces 末}在首{之前时提取失败
func TestExtractInvertedBraces(t *testing.T) {
	extractor := NewJSONExtractor()
	var got map[string]interface{}
	err := extractor.Extract("} nothing here {", &got)
	require.Error(t, err)

	var pf *ParseFailureError
	assert.ErrorAs(t, err, &pf)
}

// TestExtractRawKeepsCandidate 解析失败时错误中保留候选片段供排查
func TestExtractRawKeepsCandidate(t *testing.T) {
	extractor := NewJSONExtractor()
	_, err := extractor.ExtractRaw(`{"broken": `)
	require.Error(t, err)
}
