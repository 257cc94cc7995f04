// Package client 后端 REST 资源客户端（一个资源一个实例）。
//
// 每个操作只尝试一次：不重试、不退避、没有幂等 key。
package client

import (
	"context"
	"net/http"
	"strings"
	"time"

	"trust-console/internal/resource"
	"trust-console/internal/session"

	"github.com/go-resty/resty/v2"
	"go.uber.org/zap"
)

// Client 单个资源的 list/get/create/update/delete
type Client struct {
	desc       *resource.Descriptor
	httpClient *resty.Client
	tokens     session.TokenSource
	logger     *zap.Logger
}

// New 创建资源客户端
// baseURL: 统一配置的 API 地址（API_BASE_URL）
func New(desc *resource.Descriptor, baseURL string, tokens session.TokenSource, timeout time.Duration, logger *zap.Logger) *Client {
	if logger == nil {
		logger = zap.NewNop()
	}
	httpClient := resty.New().
		SetBaseURL(strings.TrimRight(baseURL, "/")).
		SetRetryCount(0).
		SetHeader("Content-Type", "application/json").
		SetHeader("Accept", "application/json")
	if timeout > 0 {
		httpClient.SetTimeout(timeout)
	}

	return &Client{
		desc:       desc,
		httpClient: httpClient,
		tokens:     tokens,
		logger:     logger.With(zap.String("resource", desc.Name)),
	}
}

// Descriptor 返回资源描述
func (c *Client) Descriptor() *resource.Descriptor { return c.desc }

func (c *Client) collectionPath() string {
	return "/" + strings.Trim(c.desc.Endpoint, "/")
}

func (c *Client) itemPath(id resource.ID) string {
	return c.collectionPath() + "/" + id.String()
}

// request 带上 context 和 bearer token
func (c *Client) request(ctx context.Context) (*resty.Request, error) {
	if c.tokens == nil {
		return nil, session.ErrNoSession
	}
	token, err := c.tokens.Token(ctx)
	if err != nil {
		return nil, err
	}
	return c.httpClient.R().SetContext(ctx).SetAuthToken(token), nil
}

func (c *Client) fail(kind error, op string, resp *resty.Response, err error) *RequestError {
	re := &RequestError{Kind: kind, Op: op, Resource: c.desc.Name, Err: err}
	if resp != nil && resp.RawResponse != nil {
		re.Status = resp.StatusCode()
		re.Message = serverMessage(resp.Body())
	}
	c.logger.Warn("Backend request failed",
		zap.String("op", op),
		zap.Int("status_code", re.Status),
		zap.String("server_message", re.Message),
		zap.Error(err),
	)
	return re
}

// List GET /resource。失败时返回空列表（非 nil）和 ErrFetchFailed。
func (c *Client) List(ctx context.Context) ([]resource.Record, error) {
	req, err := c.request(ctx)
	if err != nil {
		return []resource.Record{}, c.fail(ErrFetchFailed, "list", nil, err)
	}

	resp, err := req.Get(c.collectionPath())
	if err != nil {
		return []resource.Record{}, c.fail(ErrFetchFailed, "list", resp, err)
	}
	if !resp.IsSuccess() {
		return []resource.Record{}, c.fail(ErrFetchFailed, "list", resp, nil)
	}

	records, err := resource.Unwrap(resp.Body(), c.desc.Envelope)
	if err != nil {
		return []resource.Record{}, c.fail(ErrFetchFailed, "list", resp, err)
	}

	c.logger.Debug("Listed records", zap.Int("count", len(records)))
	return records, nil
}

// Get GET /resource/{id}
func (c *Client) Get(ctx context.Context, id resource.ID) (resource.Record, error) {
	req, err := c.request(ctx)
	if err != nil {
		return nil, c.fail(ErrFetchFailed, "get", nil, err)
	}

	resp, err := req.Get(c.itemPath(id))
	if err != nil {
		return nil, c.fail(ErrFetchFailed, "get", resp, err)
	}
	if !resp.IsSuccess() {
		return nil, c.fail(ErrFetchFailed, "get", resp, nil)
	}

	records, err := resource.Unwrap(resp.Body(), c.desc.Envelope)
	if err != nil {
		return nil, c.fail(ErrFetchFailed, "get", resp, err)
	}
	if len(records) == 0 {
		return nil, c.fail(ErrFetchFailed, "get", resp, nil)
	}
	return records[0], nil
}

// Create POST /resource，只有 201 视为成功
func (c *Client) Create(ctx context.Context, draft resource.Record) (resource.Record, error) {
	req, err := c.request(ctx)
	if err != nil {
		return nil, c.fail(ErrSubmitFailed, "create", nil, err)
	}

	resp, err := req.SetBody(draft).Post(c.collectionPath())
	if err != nil {
		return nil, c.fail(ErrSubmitFailed, "create", resp, err)
	}
	if resp.StatusCode() != http.StatusCreated {
		return nil, c.fail(ErrSubmitFailed, "create", resp, nil)
	}

	saved := draft.Clone()
	if records, err := resource.Unwrap(resp.Body(), c.desc.Envelope); err == nil && len(records) > 0 {
		saved = records[0]
	} else if err != nil {
		// 已经 201：后端已提交，响应体无法解析时退回草稿
		c.logger.Warn("Create response not decodable, using draft", zap.Error(err))
	}

	c.logger.Debug("Created record")
	return saved, nil
}

// Update PUT /resource/{id}，期望 200
func (c *Client) Update(ctx context.Context, id resource.ID, record resource.Record) error {
	req, err := c.request(ctx)
	if err != nil {
		return c.fail(ErrSubmitFailed, "update", nil, err)
	}

	resp, err := req.SetBody(record).Put(c.itemPath(id))
	if err != nil {
		return c.fail(ErrSubmitFailed, "update", resp, err)
	}
	if resp.StatusCode() != http.StatusOK {
		return c.fail(ErrSubmitFailed, "update", resp, nil)
	}

	c.logger.Debug("Updated record", zap.Int64("id", int64(id)))
	return nil
}

// Remove DELETE /resource/{id}，期望 200
func (c *Client) Remove(ctx context.Context, id resource.ID) error {
	req, err := c.request(ctx)
	if err != nil {
		return c.fail(ErrDeleteFailed, "delete", nil, err)
	}

	resp, err := req.Delete(c.itemPath(id))
	if err != nil {
		return c.fail(ErrDeleteFailed, "delete", resp, err)
	}
	if resp.StatusCode() != http.StatusOK {
		return c.fail(ErrDeleteFailed, "delete", resp, nil)
	}

	c.logger.Debug("Deleted record", zap.Int64("id", int64(id)))
	return nil
}
