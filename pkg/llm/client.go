// Package llm provides a client for the streaming chat completion endpoint.
package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	"plugin-chat-go/internal/config"
)

// DefaultErrorMessage 在错误响应体中没有可用的 error 字段时使用。
const DefaultErrorMessage = "Failed to get response"

// Client 定义了流式补全接口的客户端。
type Client interface {
	// Complete 发起一次补全请求。返回时只完成了响应头的读取，
	// 调用方负责读取并关闭返回的响应体。
	Complete(ctx context.Context, req CompletionRequest) (io.ReadCloser, error)
}

// Message 表示一条角色消息
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// CompletionRequest 是一次请求携带的上下文与能力模式的系统提示词。
type CompletionRequest struct {
	Messages     []Message
	SystemPrompt string
}

type completionBody struct {
	Model        string    `json:"model,omitempty"`
	Messages     []Message `json:"messages"`
	SystemPrompt string    `json:"systemPrompt"`
}

// RequestError 表示补全接口返回了非 2xx 状态。
type RequestError struct {
	Status  int
	Message string
}

func (e *RequestError) Error() string {
	return e.Message
}

type streamingClient struct {
	cfg    config.LLMConfig
	client *http.Client
}

// NewClient 根据配置创建一个新的 Client。
func NewClient(cfg config.LLMConfig) Client {
	return &streamingClient{
		cfg:    cfg,
		client: &http.Client{},
	}
}

func (c *streamingClient) endpoint() string {
	return strings.TrimRight(c.cfg.BaseURL, "/") + c.cfg.Path
}

func (c *streamingClient) Complete(ctx context.Context, in CompletionRequest) (io.ReadCloser, error) {
	messages := in.Messages
	if messages == nil {
		messages = []Message{}
	}
	reqBytes, err := json.Marshal(completionBody{
		Model:        c.cfg.Model,
		Messages:     messages,
		SystemPrompt: in.SystemPrompt,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to marshal completion request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint(), bytes.NewReader(reqBytes))
	if err != nil {
		return nil, fmt.Errorf("failed to create completion request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.cfg.APIKey)
	req.Header.Set("Accept", "text/event-stream")

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to call completion api: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		defer resp.Body.Close()
		bodyBytes, _ := io.ReadAll(resp.Body)
		return nil, &RequestError{Status: resp.StatusCode, Message: errorMessage(bodyBytes)}
	}
	return resp.Body, nil
}

// errorMessage 从错误响应体中取出 error 字段，支持字符串和 {"message": ...} 两种形式。
func errorMessage(body []byte) string {
	var payload struct {
		Error json.RawMessage `json:"error"`
	}
	if err := json.Unmarshal(body, &payload); err != nil || len(payload.Error) == 0 {
		return DefaultErrorMessage
	}

	var s string
	if err := json.Unmarshal(payload.Error, &s); err == nil {
		if s == "" {
			return DefaultErrorMessage
		}
		return s
	}
	var obj struct {
		Message string `json:"message"`
	}
	if err := json.Unmarshal(payload.Error, &obj); err == nil && obj.Message != "" {
		return obj.Message
	}
	return DefaultErrorMessage
}
