package parser

import (
	"encoding/json"
	"testing"

	"career-agent-go/internal/types"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TestBulletOptionExtraction 项目符号启发式：首个非符号行为问题，-行为选项
func TestBulletOptionExtraction(t *testing.T) {
	n := NewResponseNormalizer()
	got := n.Normalize("Q?\n- A\n- B\n- C", types.AssessmentMode)

	require.Equal(t, KindQuestion, got.Kind)
	require.NotNil(t, got.Question)
	assert.Equal(t, "Q?", got.Question.QuestionText)
	assert.Equal(t, []string{"A", "B", "C"}, got.Question.Options)
}

// TestEmptyBulletFiltered 剥离符号后为空的选项必须被丢弃
func TestEmptyBulletFiltered(t *testing.T) {
	n := NewResponseNormalizer()
	got := n.Normalize("Q?\n- \n- B", types.AssessmentMode)

	require.Equal(t, KindQuestion, got.Kind)
	require.NotNil(t, got.Question)
	assert.Equal(t, []string{"B"}, got.Question.Options)
}

// TestLeadingBulletsSkippedForQuestion 开头的符号行被跳过，问题取首个非符号行
func TestLeadingBulletsSkippedForQuestion(t *testing.T) {
	n := NewResponseNormalizer()
	got := n.Normalize("- A\n- B\nWhich one do you prefer?", types.AssessmentMode)

	require.Equal(t, KindQuestion, got.Kind)
	assert.Equal(t, "Which one do you prefer?", got.Question.QuestionText)
	assert.Equal(t, []string{"A", "B"}, got.Question.Options)
}

// TestCareerReportPrecedenceOverProse 散文+JSON块时必须优先识别为报告
func TestCareerReportPrecedenceOverProse(t *testing.T) {
	raw := "Here are results:\n```json\n{\"recommended_careers\":[{\"field\":\"Software Engineering\",\"reason\":\"strong analytical skills\"}],\"reasons\":[]}\n```"

	n := NewResponseNormalizer()
	got := n.Normalize(raw, types.AssessmentMode)

	require.Equal(t, KindCareerReport, got.Kind)
	require.NotNil(t, got.Report)
	require.Len(t, got.Report.RecommendedCareers, 1)
	assert.Equal(t, "Software Engineering", got.Report.RecommendedCareers[0].Field)
	// reasons规范化为空切片而非nil
	assert.NotNil(t, got.Report.Reasons)
	assert.Empty(t, got.Report.Reasons)
	assert.False(t, got.Supplementary)
}

// TestCareerReportAcceptedInAssessmentMode 测评阶段收到报告JSON也必须接受
func TestCareerReportAcceptedInAssessmentMode(t *testing.T) {
	raw := `{"recommended_careers":[{"field":"Medicine","reason":"biology aptitude"}],"reasons":["interest in life sciences"]}`

	n := NewResponseNormalizer()
	got := n.Normalize(raw, types.AssessmentMode)

	require.Equal(t, KindCareerReport, got.Kind)
	assert.Equal(t, []string{"interest in life sciences"}, got.Report.Reasons)
}

// TestSupplementaryReportInPostReportMode 报告后阶段的职业JSON标记为补充数据
func TestSupplementaryReportInPostReportMode(t *testing.T) {
	raw := `{"recommended_careers":[{"field":"Data Science","reason":"math aptitude"}]}`

	n := NewResponseNormalizer()
	got := n.Normalize(raw, types.PostReportMode)

	require.Equal(t, KindCareerReport, got.Kind)
	assert.True(t, got.Supplementary)
}

// TestPlainMessageInPostReportMode 报告后阶段的非JSON文本按纯文本处理
func TestPlainMessageInPostReportMode(t *testing.T) {
	n := NewResponseNormalizer()
	got := n.Normalize("Engineering colleges in your city have good placement rates.", types.PostReportMode)

	require.Equal(t, KindPlainMessage, got.Kind)
	assert.Contains(t, got.Message, "placement rates")
}

// TestQuestionJSON question+options形态的JSON识别为问题
func TestQuestionJSON(t *testing.T) {
	raw := `{"question": "Which subject do you enjoy most?", "options": ["Math", "Biology", "History"]}`

	n := NewResponseNormalizer()
	got := n.Normalize(raw, types.AssessmentMode)

	require.Equal(t, KindQuestion, got.Kind)
	assert.Equal(t, "Which subject do you enjoy most?", got.Question.QuestionText)
	assert.Len(t, got.Question.Options, 3)
}

// TestLegacyCamelCaseReportKey 旧写法recommendedCareers同样识别为报告
func TestLegacyCamelCaseReportKey(t *testing.T) {
	raw := `{"recommendedCareers":[{"field":"Design","reason":"creative portfolio"}]}`

	n := NewResponseNormalizer()
	got := n.Normalize(raw, types.AssessmentMode)

	require.Equal(t, KindCareerReport, got.Kind)
	assert.Equal(t, "Design", got.Report.RecommendedCareers[0].Field)
}

// TestPartiallyShapedReportRejected 缺少必填字段的推荐记录拒绝透传，归为解析失败
func TestPartiallyShapedReportRejected(t *testing.T) {
	raw := `{"recommended_careers":[{"field":"", "reason":"missing field"}]}`

	n := NewResponseNormalizer()
	got := n.Normalize(raw, types.AssessmentMode)

	require.Equal(t, KindParseFailure, got.Kind)
	assert.Equal(t, ParseFailureMessage, got.Message)
}

// TestComparativeCaseStudyReport 家长版仅含对比案例的JSON也识别为报告
func TestComparativeCaseStudyReport(t *testing.T) {
	raw := `{"comparative_case_study":{"career_comparison_table":{},"pros_cons_analysis":{}}}`

	n := NewResponseNormalizer()
	got := n.Normalize(raw, types.AssessmentMode)

	require.Equal(t, KindCareerReport, got.Kind)
	require.NotNil(t, got.Report.ComparativeCaseStudy)
}

// TestIdempotentReportReparse 报告解析→序列化→再解析应逐字段相等
func TestIdempotentReportReparse(t *testing.T) {
	raw := `{"recommended_careers":[{"field":"Finance","reason":"numerical aptitude","recommended_degrees":["B.Com"],"relevant_courses":["CFA"]}],"reasons":["family priority"]}`

	n := NewResponseNormalizer()
	first := n.Normalize(raw, types.AssessmentMode)
	require.Equal(t, KindCareerReport, first.Kind)

	reserialized, err := json.Marshal(first.Report)
	require.NoError(t, err)

	second := n.Normalize(string(reserialized), types.AssessmentMode)
	require.Equal(t, KindCareerReport, second.Kind)
	assert.Equal(t, first.Report, second.Report)
}

// TestNoUsableLinesParseFailure 无可用内容时按解析失败处理，固定道歉文案
func TestNoUsableLinesParseFailure(t *testing.T) {
	n := NewResponseNormalizer()
	got := n.Normalize("   \n\n  ", types.AssessmentMode)

	require.Equal(t, KindParseFailure, got.Kind)
	assert.Equal(t, ParseFailureMessage, got.Message)
}
