package agent

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"strings"

	"github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/schema"
)

const (
	// Gemini REST API 端点模板，%s 为模型名
	geminiGenerateURLTemplate = "https://generativelanguage.googleapis.com/v1beta/models/%s:generateContent"
	defaultGeminiModelName    = "gemini-2.5-flash"
)

// --- Gemini REST 请求/响应结构 ---

// GeminiPart 内容片段
type GeminiPart struct {
	Text string `json:"text,omitempty"`
}

// GeminiContent 一条对话内容，Role 为 user 或 model
type GeminiContent struct {
	Role  string       `json:"role,omitempty"`
	Parts []GeminiPart `json:"parts"`
}

// GeminiGenerationConfig 生成参数
type GeminiGenerationConfig struct {
	Temperature     float64 `json:"temperature,omitempty"`
	MaxOutputTokens int     `json:"maxOutputTokens,omitempty"`
}

// GeminiFunctionDeclaration 函数声明
type GeminiFunctionDeclaration struct {
	Name        string                 `json:"name"`
	Description string                 `json:"description"`
	Parameters  map[string]interface{} `json:"parameters,omitempty"`
}

// GeminiTool 工具声明；GoogleSearch 非空时启用搜索增强
type GeminiTool struct {
	FunctionDeclarations []GeminiFunctionDeclaration `json:"functionDeclarations,omitempty"`
	GoogleSearch         *struct{}                   `json:"googleSearch,omitempty"`
}

// GeminiRequest generateContent 请求体
type GeminiRequest struct {
	Contents          []GeminiContent         `json:"contents"`
	SystemInstruction *GeminiContent          `json:"systemInstruction,omitempty"`
	GenerationConfig  *GeminiGenerationConfig `json:"generationConfig,omitempty"`
	Tools             []GeminiTool            `json:"tools,omitempty"`
}

// GeminiResponse generateContent 响应体
type GeminiResponse struct {
	Candidates []struct {
		Content struct {
			Parts []GeminiPart `json:"parts"`
			Role  string       `json:"role"`
		} `json:"content"`
		FinishReason string `json:"finishReason"`
	} `json:"candidates"`
	UsageMetadata struct {
		PromptTokenCount     int `json:"promptTokenCount"`
		CandidatesTokenCount int `json:"candidatesTokenCount"`
		TotalTokenCount      int `json:"totalTokenCount"`
	} `json:"usageMetadata"`
}

// GeminiChatModel 实现 model.ChatModel 和 model.ToolCallingChatModel 接口，
// 通过 REST 与 Gemini 模型交互。管道只消费候选文本。
type GeminiChatModel struct {
	apiKey       string
	modelName    string
	apiURL       string
	httpClient   *http.Client
	boundTools   []GeminiTool
	enableSearch bool
	logger       *log.Logger
}

// GeminiOption Gemini 模型的配置选项
type GeminiOption func(*GeminiChatModel)

// WithGoogleSearch 启用搜索增强工具，市场数据流程使用
func WithGoogleSearch() GeminiOption {
	return func(g *GeminiChatModel) {
		g.enableSearch = true
	}
}

// WithGeminiLogger 设置模型客户端的日志记录器
func WithGeminiLogger(logger *log.Logger) GeminiOption {
	return func(g *GeminiChatModel) {
		g.logger = logger
	}
}

// NewGeminiChatModel 创建一个新的 GeminiChatModel 实例
func NewGeminiChatModel(apiKey string, modelName string, apiURL string, options ...GeminiOption) (*GeminiChatModel, error) {
	if strings.TrimSpace(apiKey) == "" {
		return nil, fmt.Errorf("API 密钥不能为空")
	}

	mn := modelName
	if strings.TrimSpace(mn) == "" {
		mn = defaultGeminiModelName
	}

	url := apiURL
	if strings.TrimSpace(url) == "" {
		url = fmt.Sprintf(geminiGenerateURLTemplate, mn)
	}

	g := &GeminiChatModel{
		apiKey:     apiKey,
		modelName:  mn,
		apiURL:     url,
		httpClient: &http.Client{},
		boundTools: make([]GeminiTool, 0),
		logger:     log.New(io.Discard, "", 0),
	}
	for _, opt := range options {
		opt(g)
	}

	g.logger.Printf("[Gemini模型] 使用 Gemini 客户端, API URL: %s, 模型: %s, 搜索增强: %v", url, mn, g.enableSearch)
	return g, nil
}

// Generate 实现 model.ChatModel 接口
// system 角色消息汇入 systemInstruction，user/assistant 映射为 user/model
func (g *GeminiChatModel) Generate(ctx context.Context, messages []*schema.Message, options ...model.Option) (*schema.Message, error) {
	for _, opt := range options {
		_ = opt
	}

	var systemParts []GeminiPart
	contents := make([]GeminiContent, 0, len(messages))
	for _, msg := range messages {
		switch msg.Role {
		case schema.System:
			systemParts = append(systemParts, GeminiPart{Text: msg.Content})
		case schema.Assistant:
			contents = append(contents, GeminiContent{Role: "model", Parts: []GeminiPart{{Text: msg.Content}}})
		default:
			contents = append(contents, GeminiContent{Role: "user", Parts: []GeminiPart{{Text: msg.Content}}})
		}
	}

	reqPayload := GeminiRequest{Contents: contents}
	if len(systemParts) > 0 {
		reqPayload.SystemInstruction = &GeminiContent{Parts: systemParts}
	}

	tools := g.boundTools
	if g.enableSearch {
		tools = append([]GeminiTool{{GoogleSearch: &struct{}{}}}, tools...)
	}
	if len(tools) > 0 {
		reqPayload.Tools = tools
	}

	jsonData, err := json.Marshal(reqPayload)
	if err != nil {
		return nil, fmt.Errorf("序列化请求体失败: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, g.apiURL, bytes.NewBuffer(jsonData))
	if err != nil {
		return nil, fmt.Errorf("创建 HTTP 请求失败: %w", err)
	}
	httpReq.Header.Set("x-goog-api-key", g.apiKey)
	httpReq.Header.Set("Content-Type", "application/json")

	g.logger.Printf("[Gemini模型] 发送请求到 %s, 消息数 %d", g.apiURL, len(contents))

	httpResp, err := g.httpClient.Do(httpReq)
	if err != nil {
		return nil, &NetworkError{Err: err}
	}
	defer httpResp.Body.Close()

	bodyBytes, err := io.ReadAll(httpResp.Body)
	if err != nil {
		return nil, &NetworkError{Err: err}
	}

	if httpResp.StatusCode != http.StatusOK {
		// 状态码与响应体进入错误文本，供上层按类别处理
		apiErr := fmt.Errorf("API 请求失败, 状态 %s: %s", httpResp.Status, string(bodyBytes))
		return nil, ClassifyModelError(apiErr)
	}

	var geminiResp GeminiResponse
	if err := json.Unmarshal(bodyBytes, &geminiResp); err != nil {
		return nil, fmt.Errorf("反序列化 API 响应失败: %w", err)
	}

	if len(geminiResp.Candidates) == 0 {
		return nil, fmt.Errorf("从 API 收到空候选: %.200s", string(bodyBytes))
	}

	var sb strings.Builder
	for _, part := range geminiResp.Candidates[0].Content.Parts {
		sb.WriteString(part.Text)
	}

	g.logger.Printf("[Gemini模型] 收到响应, finishReason=%s, tokens=%d",
		geminiResp.Candidates[0].FinishReason, geminiResp.UsageMetadata.TotalTokenCount)

	return &schema.Message{
		Role:    schema.Assistant,
		Content: sb.String(),
	}, nil
}

// Stream 实现 model.ChatModel 接口 (未实现)
func (g *GeminiChatModel) Stream(ctx context.Context, messages []*schema.Message, options ...model.Option) (*schema.StreamReader[*schema.Message], error) {
	return nil, fmt.Errorf("GeminiChatModel 的 Stream 方法未实现")
}

// BindTools 实现 model.ChatModel 接口
// 工具参数 schema 无法从 schema.ParamsOneOf 外部可靠导出，统一使用空对象
func (g *GeminiChatModel) BindTools(tools []*schema.ToolInfo) error {
	decls := make([]GeminiFunctionDeclaration, 0, len(tools))
	for _, toolInfo := range tools {
		if toolInfo == nil {
			continue
		}
		decls = append(decls, GeminiFunctionDeclaration{
			Name:        toolInfo.Name,
			Description: toolInfo.Desc,
		})
	}

	g.boundTools = g.boundTools[:0]
	if len(decls) > 0 {
		g.boundTools = append(g.boundTools, GeminiTool{FunctionDeclarations: decls})
	}
	return nil
}

// WithTools 实现 model.ToolCallingChatModel 接口，内部复用 BindTools
func (g *GeminiChatModel) WithTools(tools []*schema.ToolInfo) (model.ToolCallingChatModel, error) {
	if err := g.BindTools(tools); err != nil {
		return nil, err
	}
	return g, nil
}

var _ model.ChatModel = (*GeminiChatModel)(nil)
var _ model.ToolCallingChatModel = (*GeminiChatModel)(nil)
