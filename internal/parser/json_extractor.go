package parser

import (
	"encoding/json"
	"fmt"
	"io"
	"log"
	"regexp"
	"strings"

	"github.com/kaptinlin/jsonrepair"
)

// ParseFailureError 表示无法从文本中恢复出有效JSON
// 保留原始候选文本以便排查
type ParseFailureError struct {
	Reason string
	// Candidate 提取阶段得到的候选JSON片段（可能为空）
	Candidate string
}

func (e *ParseFailureError) Error() string {
	return fmt.Sprintf("JSON解析失败: %s", e.Reason)
}

// JSONExtractor 从LLM返回的任意文本中恢复单个JSON对象
// 容忍markdown代码围栏、前后缀散文、尾随逗号、未加引号的键和单引号字符串
type JSONExtractor struct {
	logger *log.Logger
}

// JSONExtractorOption JSON提取器的配置选项
type JSONExtractorOption func(*JSONExtractor)

// WithExtractorLogger 设置提取器使用的日志记录器
func WithExtractorLogger(logger *log.Logger) JSONExtractorOption {
	return func(e *JSONExtractor) {
		e.logger = logger
	}
}

// NewJSONExtractor 创建JSON提取器
func NewJSONExtractor(options ...JSONExtractorOption) *JSONExtractor {
	e := &JSONExtractor{
		logger: log.New(io.Discard, "", 0),
	}
	for _, opt := range options {
		opt(e)
	}
	return e
}

var (
	// ```json ... ``` 代码块
	jsonFenceRe = regexp.MustCompile("(?s)```json\\s*(\\{.*?\\})\\s*```")
	// 尾随逗号: ,} 或 ,]
	trailingCommaRe = regexp.MustCompile(`,(\s*[}\]])`)
	// 未加引号的对象键: { key: 或 , key:
	bareKeyRe = regexp.MustCompile(`([{,])(\s*)([a-zA-Z0-9_]+?)\s*:`)
)

// Extract 从文本中定位候选JSON并解析到target
// 依次尝试：严格解析 → 有界文本修复后重解析 → jsonrepair容错修复后重解析
// 全部失败时返回 *ParseFailureError，绝不执行输入内容
func (e *JSONExtractor) Extract(text string, target interface{}) error {
	candidate := e.Locate(text)
	if candidate == "" {
		e.logger.Printf("[JSONExtractor] 未能从文本中定位JSON候选片段, 文本长度=%d", len(text))
		return &ParseFailureError{Reason: "文本中不存在JSON对象"}
	}

	// 第一层：严格解析
	if err := json.Unmarshal([]byte(candidate), target); err == nil {
		return nil
	}

	// 第二层：有界文本修复
	repaired := RepairJSON(candidate)
	if err := json.Unmarshal([]byte(repaired), target); err == nil {
		e.logger.Printf("[JSONExtractor] 文本修复后解析成功")
		return nil
	}

	// 第三层：jsonrepair容错修复，替代原有的动态求值方案
	tolerant, repairErr := jsonrepair.JSONRepair(candidate)
	if repairErr == nil {
		if err := json.Unmarshal([]byte(tolerant), target); err == nil {
			e.logger.Printf("[JSONExtractor] 容错修复后解析成功")
			return nil
		}
	}

	e.logger.Printf("[JSONExtractor] 所有修复层均失败, 候选片段: %.200s", candidate)
	return &ParseFailureError{Reason: "修复后仍无法解析", Candidate: candidate}
}

// ExtractRaw 与 Extract 相同的提取和修复流程，但返回修复后的JSON文本本身
func (e *JSONExtractor) ExtractRaw(text string) (string, error) {
	candidate := e.Locate(text)
	if candidate == "" {
		return "", &ParseFailureError{Reason: "文本中不存在JSON对象"}
	}

	if json.Valid([]byte(candidate)) {
		return candidate, nil
	}

	repaired := RepairJSON(candidate)
	if json.Valid([]byte(repaired)) {
		return repaired, nil
	}

	tolerant, err := jsonrepair.JSONRepair(candidate)
	if err == nil && json.Valid([]byte(tolerant)) {
		return tolerant, nil
	}

	return "", &ParseFailureError{Reason: "修复后仍无法解析", Candidate: candidate}
}

// Locate 在文本中定位候选JSON片段
// 优先取 ```json 围栏内容；其次剥离包裹整段文本的通用围栏；
// 最后回退到首个 { 和末个 } 之间的切片
func (e *JSONExtractor) Locate(text string) string {
	text = strings.TrimSpace(text)
	if text == "" {
		return ""
	}

	if matches := jsonFenceRe.FindStringSubmatch(text); len(matches) > 1 {
		return strings.TrimSpace(matches[1])
	}

	// 整段文本被通用围栏包裹的情况
	if strings.HasPrefix(text, "```") && strings.HasSuffix(text, "```") {
		inner := strings.TrimSuffix(strings.TrimPrefix(text, "```"), "```")
		inner = strings.TrimPrefix(strings.TrimSpace(inner), "json")
		text = strings.TrimSpace(inner)
	}

	start := strings.Index(text, "{")
	end := strings.LastIndex(text, "}")
	if start == -1 || end == -1 || end < start {
		return ""
	}
	return strings.TrimSpace(text[start : end+1])
}

// RepairJSON 对候选JSON施加有界的文本修复，按固定顺序：
// 1. 删除 }/] 前的尾随逗号
// 2. 为裸标识符键加引号
// 3. 单引号替换为双引号
func RepairJSON(candidate string) string {
	repaired := trailingCommaRe.ReplaceAllString(candidate, "$1")
	repaired = bareKeyRe.ReplaceAllString(repaired, `$1$2"$3":`)
	repaired = strings.ReplaceAll(repaired, "'", `"`)
	return repaired
}
