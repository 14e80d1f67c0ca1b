package parser

import (
	"encoding/json"
	"io"
	"log"
	"strings"

	"career-agent-go/internal/types"
)

// ResponseKind 单轮助手回复的归一化分类
type ResponseKind string

const (
	// KindCareerReport 回复携带结构化职业推荐报告
	KindCareerReport ResponseKind = "CAREER_REPORT"
	// KindQuestion 回复是"问题+选项"
	KindQuestion ResponseKind = "QUESTION"
	// KindPlainMessage 回复是纯文本消息
	KindPlainMessage ResponseKind = "PLAIN_MESSAGE"
	// KindParseFailure 回复无法识别，本轮终止，不自动重试
	KindParseFailure ResponseKind = "PARSE_FAILURE"
)

// ParseFailureMessage 解析失败时展示给用户的固定道歉文案
const ParseFailureMessage = "I encountered an issue. Please restart the conversation."

// NormalizedResponse 归一化结果，按Kind取对应载荷
type NormalizedResponse struct {
	Kind     ResponseKind          `json:"kind"`
	Report   *types.CareerReport   `json:"report,omitempty"`
	Question *types.QuestionPrompt `json:"question,omitempty"`
	// Message 纯文本消息内容；ParseFailure时为固定道歉文案
	Message string `json:"message,omitempty"`
	// Supplementary 报告后阶段收到的内联职业数据，作为补充展示而非替换主报告
	Supplementary bool `json:"supplementary,omitempty"`
}

// ResponseNormalizer 对单轮助手回复做分类与载荷提取
// 无状态，可安全并发调用，分类行为依赖传入的会话模式
type ResponseNormalizer struct {
	extractor *JSONExtractor
	logger    *log.Logger
}

// NormalizerOption 归一化器的配置选项
type NormalizerOption func(*ResponseNormalizer)

// WithNormalizerLogger 设置归一化器使用的日志记录器
func WithNormalizerLogger(logger *log.Logger) NormalizerOption {
	return func(n *ResponseNormalizer) {
		n.logger = logger
		n.extractor = NewJSONExtractor(WithExtractorLogger(logger))
	}
}

// NewResponseNormalizer 创建归一化器
func NewResponseNormalizer(options ...NormalizerOption) *ResponseNormalizer {
	n := &ResponseNormalizer{
		extractor: NewJSONExtractor(),
		logger:    log.New(io.Discard, "", 0),
	}
	for _, opt := range options {
		opt(n)
	}
	return n
}

// reportPayload 报告JSON的双写法探测结构
// 兼容 recommended_careers 与旧写法 recommendedCareers
type reportPayload struct {
	RecommendedCareers     []types.CareerRecommendation  `json:"recommended_careers"`
	RecommendedCareersAlt  []types.CareerRecommendation  `json:"recommendedCareers"`
	Reasons                []string                      `json:"reasons"`
	ComparativeCaseStudy   *types.ComparativeCaseStudy   `json:"comparative_case_study"`
	LocalSuccessStories    []types.LocalSuccessStory     `json:"local_success_stories"`
	HeatmapData            *types.HeatmapData            `json:"heatmap_data"`
	YoutubeRecommendations []types.YoutubeRecommendation `json:"youtube_recommendations"`
	AlternativeSuggestions []types.AlternativeSuggestion `json:"alternative_suggestions"`
}

// questionPayload 问题JSON的探测结构
type questionPayload struct {
	Question string   `json:"question"`
	Options  []string `json:"options"`
}

// Normalize 对一轮原始回复做分类
// 分类优先级：职业报告 > 问题+选项 > 纯文本/项目符号启发式
// 内部任何异常降级为ParseFailure，绝不向调用方抛出
func (n *ResponseNormalizer) Normalize(rawText string, mode types.SessionMode) *NormalizedResponse {
	raw, err := n.extractor.ExtractRaw(rawText)
	if err == nil {
		// 先探测职业报告：含非空 recommended_careers，或家长版的对比案例
		var rp reportPayload
		if jsonErr := json.Unmarshal([]byte(raw), &rp); jsonErr == nil {
			careers := rp.RecommendedCareers
			if len(careers) == 0 {
				careers = rp.RecommendedCareersAlt
			}
			if len(careers) > 0 || rp.ComparativeCaseStudy != nil {
				report, ok := n.buildReport(&rp, careers)
				if !ok {
					// 报告形状残缺：拒绝透传半成品记录
					return &NormalizedResponse{Kind: KindParseFailure, Message: ParseFailureMessage}
				}
				return &NormalizedResponse{
					Kind:          KindCareerReport,
					Report:        report,
					Supplementary: mode == types.PostReportMode,
				}
			}

			// 再探测"问题+选项"
			var qp questionPayload
			if jsonErr := json.Unmarshal([]byte(raw), &qp); jsonErr == nil && qp.Question != "" && qp.Options != nil {
				return &NormalizedResponse{
					Kind:     KindQuestion,
					Question: &types.QuestionPrompt{QuestionText: qp.Question, Options: qp.Options},
				}
			}
		}
	}

	// 报告后阶段：没有职业JSON就按纯文本处理
	if mode == types.PostReportMode {
		return &NormalizedResponse{Kind: KindPlainMessage, Message: strings.TrimSpace(rawText)}
	}

	// 测评阶段的行级启发式：项目符号行作为选项，首个非符号行作为问题
	question, options := extractBulletPrompt(rawText)
	if question == "" {
		n.logger.Printf("[ResponseNormalizer] 启发式解析无结果, 文本长度=%d", len(rawText))
		return &NormalizedResponse{Kind: KindParseFailure, Message: ParseFailureMessage}
	}
	return &NormalizedResponse{
		Kind:     KindQuestion,
		Question: &types.QuestionPrompt{QuestionText: question, Options: options},
	}
}

// buildReport 校验并规范化报告载荷
// 缺少 field 或 reason 的推荐记录视为形状残缺；Reasons 规范化为空切片而非nil
func (n *ResponseNormalizer) buildReport(rp *reportPayload, careers []types.CareerRecommendation) (*types.CareerReport, bool) {
	for _, c := range careers {
		if strings.TrimSpace(c.Field) == "" || strings.TrimSpace(c.Reason) == "" {
			n.logger.Printf("[ResponseNormalizer] 推荐记录缺少必填字段, field=%q", c.Field)
			return nil, false
		}
	}
	if len(careers) == 0 && rp.ComparativeCaseStudy == nil {
		return nil, false
	}

	reasons := rp.Reasons
	if reasons == nil {
		reasons = []string{}
	}
	return &types.CareerReport{
		RecommendedCareers:     careers,
		Reasons:                reasons,
		ComparativeCaseStudy:   rp.ComparativeCaseStudy,
		LocalSuccessStories:    rp.LocalSuccessStories,
		HeatmapData:            rp.HeatmapData,
		YoutubeRecommendations: rp.YoutubeRecommendations,
		AlternativeSuggestions: rp.AlternativeSuggestions,
	}, true
}

// extractBulletPrompt 行级启发式解析
// 跳过开头的项目符号行找到问题行；所有以 - 开头的行剥离符号后作为选项，
// 剥离后为空的选项被丢弃。无可用行时返回空问题
func extractBulletPrompt(rawText string) (string, []string) {
	var lines []string
	for _, line := range strings.Split(rawText, "\n") {
		if strings.TrimSpace(line) != "" {
			lines = append(lines, line)
		}
	}
	if len(lines) == 0 {
		return "", nil
	}

	questionIdx := 0
	for questionIdx < len(lines) && strings.HasPrefix(strings.TrimSpace(lines[questionIdx]), "-") {
		questionIdx++
	}
	question := lines[0]
	if questionIdx < len(lines) {
		question = lines[questionIdx]
	}

	options := make([]string, 0, len(lines))
	for _, line := range lines {
		trimmed := strings.TrimSpace(line)
		if !strings.HasPrefix(trimmed, "-") {
			continue
		}
		option := strings.TrimSpace(strings.TrimPrefix(trimmed, "-"))
		if option != "" {
			options = append(options, option)
		}
	}
	return strings.TrimSpace(question), options
}
