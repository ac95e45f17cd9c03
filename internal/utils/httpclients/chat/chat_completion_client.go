// Package chat wraps the upstream OpenAI-compatible completion endpoint. The
// streaming path relays SSE lines to the caller while accumulating the
// assistant reply so it can be persisted after the stream ends.
package chat

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"sync"
	"time"

	"chat-server/services/chat-api/internal/domain/tokenizer"
	"chat-server/services/chat-api/internal/infrastructure/logger"
	"chat-server/services/chat-api/internal/utils/platformerrors"

	"github.com/gin-gonic/gin"
	"github.com/sashabaranov/go-openai"
	"resty.dev/v3"
)

const (
	channelBufferSize    = 100
	errorBufferSize      = 10
	dataPrefix           = "data: "
	doneMarker           = "[DONE]"
	newlineChar          = "\n"
	scannerInitialBuffer = 12 * 1024        // 12KB
	scannerMaxBuffer     = 10 * 1024 * 1024 // 10MB
)

type StreamOption func(*resty.Request)

// BeforeDoneCallback is called before writing the [DONE] marker.
type BeforeDoneCallback func(*gin.Context) error

type TokenUsage struct {
	PromptTokens     int `json:"prompt_tokens"`
	CompletionTokens int `json:"completion_tokens"`
	TotalTokens      int `json:"total_tokens"`
}

type ChoiceDelta struct {
	Content string `json:"content"`
}

type StreamChoice struct {
	Delta        ChoiceDelta `json:"delta"`
	FinishReason string      `json:"finish_reason"`
}

// StreamResult is the accumulated assistant reply of a finished stream.
type StreamResult struct {
	Content      string
	FinishReason string
	Model        string
	Usage        TokenUsage
}

func WithHeader(key, value string) StreamOption {
	return func(r *resty.Request) {
		if strings.TrimSpace(key) == "" {
			return
		}
		r.SetHeader(key, value)
	}
}

type CompletionClient struct {
	client  *resty.Client
	baseURL string
	name    string
	timeout time.Duration
}

func NewCompletionClient(client *resty.Client, name, baseURL string, timeout time.Duration) *CompletionClient {
	if timeout <= 0 {
		timeout = 120 * time.Second
	}
	return &CompletionClient{
		client:  client,
		baseURL: normalizeBaseURL(baseURL),
		name:    name,
		timeout: timeout,
	}
}

// CreateCompletion issues a non-streaming completion request.
func (c *CompletionClient) CreateCompletion(ctx context.Context, apiKey string, request openai.ChatCompletionRequest) (*openai.ChatCompletionResponse, error) {
	var respBody openai.ChatCompletionResponse
	resp, err := c.prepareRequest(ctx, apiKey).
		SetBody(request).
		SetResult(&respBody).
		Post(c.endpoint("/chat/completions"))
	if err != nil {
		return nil, err
	}
	if resp.IsError() {
		return nil, c.errorFromResponse(ctx, resp, "completion request failed")
	}
	return &respBody, nil
}

// StreamCompletionToContext relays the upstream SSE stream onto the gin
// response writer and returns the accumulated reply. The beforeDone callback
// runs after the last content chunk but before the [DONE] marker is written.
func (c *CompletionClient) StreamCompletionToContext(reqCtx *gin.Context, apiKey string, request openai.ChatCompletionRequest, beforeDone BeforeDoneCallback, opts ...StreamOption) (*StreamResult, error) {
	// forced on so the final chunk carries token usage
	request.StreamOptions = &openai.StreamOptions{
		IncludeUsage: true,
	}

	ctx, cancel := context.WithTimeout(reqCtx.Request.Context(), c.timeout)
	defer cancel()

	c.SetupSSEHeaders(reqCtx)

	dataChan := make(chan string, channelBufferSize)
	errChan := make(chan error, errorBufferSize)

	var wg sync.WaitGroup
	wg.Add(1)

	go c.streamResponseToChannel(ctx, apiKey, request, dataChan, errChan, &wg, opts)

	var contentBuilder strings.Builder
	result := &StreamResult{
		Model:        request.Model,
		FinishReason: string(openai.FinishReasonStop),
	}

	streamingComplete := false

	for !streamingComplete {
		select {
		case line, ok := <-dataChan:
			if !ok {
				streamingComplete = true
				break
			}

			if data, found := strings.CutPrefix(line, dataPrefix); found {
				if data == doneMarker {
					// Persist hooks run before the client sees [DONE]
					if beforeDone != nil {
						if err := beforeDone(reqCtx); err != nil {
							log := logger.GetLogger()
							log.Warn().Err(err).Msg("beforeDone callback failed")
						}
					}
					if err := c.writeSSELine(reqCtx, line); err != nil {
						cancel()
						wg.Wait()
						return nil, platformerrors.AsError(ctx, platformerrors.LayerDomain, err, "unable to write SSE line")
					}
					streamingComplete = true
					cancel()
					break
				}
			}

			if err := c.writeSSELine(reqCtx, line); err != nil {
				cancel()
				wg.Wait()
				return nil, platformerrors.AsError(ctx, platformerrors.LayerDomain, err, "unable to write SSE line")
			}

			if data, found := strings.CutPrefix(line, dataPrefix); found {
				choice, usage := c.processStreamChunk(data)
				if choice != nil {
					if choice.Delta.Content != "" {
						contentBuilder.WriteString(choice.Delta.Content)
					}
					if choice.FinishReason != "" {
						result.FinishReason = choice.FinishReason
					}
				}
				if usage != nil {
					result.Usage = *usage
				}
			}

		case err, ok := <-errChan:
			if ok && err != nil {
				cancel()
				wg.Wait()
				return nil, platformerrors.AsError(ctx, platformerrors.LayerDomain, err, "streaming error")
			}

		case <-ctx.Done():
			wg.Wait()
			return nil, platformerrors.AsError(ctx, platformerrors.LayerDomain, ctx.Err(), "streaming context cancelled")

		case <-reqCtx.Request.Context().Done():
			cancel()
			wg.Wait()
			return nil, platformerrors.AsError(reqCtx.Request.Context(), platformerrors.LayerDomain, reqCtx.Request.Context().Err(), "client request cancelled")
		}
	}

	cancel()
	wg.Wait()

	close(dataChan)
	close(errChan)

	result.Content = contentBuilder.String()
	applyUsageFallback(result)

	return result, nil
}

// applyUsageFallback estimates completion tokens when the final chunk carried
// no usage block. Provider-reported counts are never overridden.
func applyUsageFallback(result *StreamResult) {
	if result.Usage.CompletionTokens == 0 && result.Content != "" {
		result.Usage.CompletionTokens = estimateTokens(result.Content)
		result.Usage.TotalTokens = result.Usage.PromptTokens + result.Usage.CompletionTokens
	}
}

func (c *CompletionClient) SetupSSEHeaders(reqCtx *gin.Context) {
	if reqCtx == nil {
		return
	}

	reqCtx.Header("Content-Type", "text/event-stream")
	reqCtx.Header("Cache-Control", "no-cache")
	reqCtx.Header("Connection", "keep-alive")
	reqCtx.Header("Access-Control-Allow-Origin", "*")
	reqCtx.Header("Access-Control-Allow-Headers", "Cache-Control")
	reqCtx.Header("Transfer-Encoding", "chunked")
	reqCtx.Writer.WriteHeaderNow()
}

func (c *CompletionClient) prepareRequest(ctx context.Context, apiKey string) *resty.Request {
	req := c.client.R().SetContext(ctx)
	req.SetHeader("Content-Type", "application/json")
	if strings.TrimSpace(apiKey) != "" {
		req.SetHeader("Authorization", fmt.Sprintf("Bearer %s", apiKey))
	}
	return req
}

func (c *CompletionClient) endpoint(path string) string {
	if path == "" {
		return c.baseURL
	}
	if strings.HasPrefix(path, "http://") || strings.HasPrefix(path, "https://") {
		return path
	}
	if c.baseURL == "" {
		return path
	}
	if strings.HasPrefix(path, "/") {
		return c.baseURL + path
	}
	return c.baseURL + "/" + path
}

func (c *CompletionClient) errorFromResponse(ctx context.Context, resp *resty.Response, message string) error {
	if resp == nil || resp.RawResponse == nil || resp.RawResponse.Body == nil {
		return platformerrors.NewError(ctx, platformerrors.LayerDomain, platformerrors.ErrorTypeExternal, message, nil, "3476dd55-5fc0-4653-bd10-665895ecc099")
	}
	defer resp.RawResponse.Body.Close()
	body, err := io.ReadAll(resp.RawResponse.Body)
	if err != nil {
		return platformerrors.NewError(ctx, platformerrors.LayerDomain, platformerrors.ErrorTypeExternal, message, nil, "8cd2cae7-9ad9-40fe-ac00-8f9b24251064")
	}
	trimmed := strings.TrimSpace(string(body))
	if trimmed == "" {
		return platformerrors.NewError(ctx, platformerrors.LayerDomain, platformerrors.ErrorTypeExternal, message, nil, "b8797de4-38cb-4bd9-9ae8-b9a04e70f6ab")
	}
	return platformerrors.NewError(ctx, platformerrors.LayerDomain, platformerrors.ErrorTypeExternal, fmt.Sprintf("%s: %s", message, trimmed), nil, "a1f46e0d-4017-4411-ac05-987946c3066d")
}

func (c *CompletionClient) doStreamingRequest(ctx context.Context, apiKey string, request openai.ChatCompletionRequest, opts ...StreamOption) (*resty.Response, error) {
	req := c.prepareRequest(ctx, apiKey).
		SetBody(request).
		SetDoNotParseResponse(true)

	for _, opt := range opts {
		if opt == nil {
			continue
		}
		opt(req)
	}

	if req.Header.Get("Accept-Encoding") == "" {
		req.SetHeader("Accept-Encoding", "identity")
	}

	resp, err := req.Post(c.endpoint("/chat/completions"))
	if err != nil {
		return nil, err
	}
	if resp.IsError() {
		return nil, c.errorFromResponse(ctx, resp, "streaming request failed")
	}
	if resp.RawResponse == nil || resp.RawResponse.Body == nil {
		return nil, platformerrors.NewError(ctx, platformerrors.LayerDomain, platformerrors.ErrorTypeExternal, "streaming request failed: empty response body", nil, "1b3ab461-dbf9-4034-8abb-dfc6ea8486c5")
	}

	return resp, nil
}

func (c *CompletionClient) streamResponseToChannel(ctx context.Context, apiKey string, request openai.ChatCompletionRequest, dataChan chan<- string, errChan chan<- error, wg *sync.WaitGroup, opts []StreamOption) {
	defer wg.Done()

	resp, err := c.doStreamingRequest(ctx, apiKey, request, opts...)
	if err != nil {
		c.sendAsyncError(errChan, err)
		return
	}

	defer func() {
		if closeErr := resp.RawResponse.Body.Close(); closeErr != nil {
			log := logger.GetLogger()
			log.Error().Err(closeErr).Str("client", c.name).Msg("unable to close response body")
		}
	}()

	scanner := bufio.NewScanner(resp.RawResponse.Body)
	scanner.Buffer(make([]byte, 0, scannerInitialBuffer), scannerMaxBuffer)

	for scanner.Scan() {
		select {
		case <-ctx.Done():
			c.sendAsyncError(errChan, ctx.Err())
			return
		default:
		}

		line := scanner.Text()

		select {
		case dataChan <- line:
		case <-ctx.Done():
			c.sendAsyncError(errChan, ctx.Err())
			return
		}
	}

	if err := scanner.Err(); err != nil {
		c.sendAsyncError(errChan, err)
	}
}

func (c *CompletionClient) writeSSELine(reqCtx *gin.Context, line string) error {
	if reqCtx == nil {
		return platformerrors.NewError(context.Background(), platformerrors.LayerDomain, platformerrors.ErrorTypeValidation, "nil gin context provided", nil, "8ee6e88f-07e9-49e5-9c7a-6e1dfe151456")
	}
	_, err := reqCtx.Writer.Write([]byte(line + newlineChar))
	if err != nil {
		return err
	}
	reqCtx.Writer.Flush()
	return nil
}

func (c *CompletionClient) processStreamChunk(data string) (*StreamChoice, *TokenUsage) {
	var streamData struct {
		Choices []StreamChoice `json:"choices"`
		Usage   *TokenUsage    `json:"usage"`
	}

	if err := json.Unmarshal([]byte(data), &streamData); err != nil {
		log := logger.GetLogger()
		log.Error().Err(err).Str("client", c.name).Str("data", data).Msg("failed to parse stream chunk JSON")
		return nil, nil
	}

	result := &StreamChoice{}
	for _, choice := range streamData.Choices {
		if choice.Delta.Content != "" {
			result.Delta.Content += choice.Delta.Content
		}
		if choice.FinishReason != "" {
			result.FinishReason = choice.FinishReason
		}
	}

	return result, streamData.Usage
}

func (c *CompletionClient) sendAsyncError(errChan chan<- error, err error) {
	if err == nil {
		return
	}

	select {
	case errChan <- err:
	default:
	}
}

func (c *CompletionClient) BaseURL() string {
	return c.baseURL
}

func normalizeBaseURL(base string) string {
	trimmed := strings.TrimSpace(base)
	trimmed = strings.TrimRight(trimmed, "/")
	return trimmed
}

// fallbackEstimator keeps token counts on the same heuristic the message
// store uses when the provider omits usage.
var fallbackEstimator = tokenizer.NewHeuristicEstimator()

func estimateTokens(content string) int {
	return fallbackEstimator.Estimate(content)
}
