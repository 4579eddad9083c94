// internal/pkg/httpclient/client.go

package httpclient

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	"backoffice/internal/pkg/nacos"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/trace"
)

// Client 是一个可追踪的、可注入的HTTP客户端
type Client struct {
	Tracer     trace.Tracer
	HTTPClient *http.Client
	Nacos      *nacos.Client // 可选，CallService 依赖它做服务发现
}

// NewClient 创建一个新的客户端实例
func NewClient(tracer trace.Tracer) *Client {
	// 不设置 Timeout 字段，让请求完全受控于每次传入的 context
	httpClient := &http.Client{
		Transport: &http.Transport{
			MaxIdleConns:        100,
			MaxIdleConnsPerHost: 100,
		},
	}
	return &Client{
		Tracer:     tracer,
		HTTPClient: httpClient,
	}
}

// WithNacos 注入服务发现客户端。
func (c *Client) WithNacos(n *nacos.Client) *Client {
	c.Nacos = n
	return c
}

// Post 发起一个带追踪上下文的 POST 请求，参数通过 query string 传递。
func (c *Client) Post(ctx context.Context, serviceURL string, params url.Values) error {
	parsedURL, err := url.Parse(serviceURL)
	if err != nil {
		return err
	}
	spanName := fmt.Sprintf("call-%s", strings.Split(parsedURL.Host, ":")[0])

	ctx, span := c.Tracer.Start(ctx, spanName, trace.WithSpanKind(trace.SpanKindClient))
	defer span.End()

	downstreamURL := *parsedURL
	q := downstreamURL.Query()
	for key, values := range params {
		for _, value := range values {
			q.Add(key, value)
		}
	}
	downstreamURL.RawQuery = q.Encode()

	req, err := http.NewRequestWithContext(ctx, "POST", downstreamURL.String(), nil)
	if err != nil {
		span.RecordError(err)
		return err
	}

	span.SetAttributes(
		attribute.String("http.url", downstreamURL.String()),
		attribute.String("http.method", "POST"),
	)
	otel.GetTextMapPropagator().Inject(ctx, propagation.HeaderCarrier(req.Header))

	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		err := fmt.Errorf("service %s returned status %s", serviceURL, resp.Status)
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return err
	}
	return nil
}

// CallService 通过 Nacos 发现目标服务的一个健康实例，然后调用 Post。
func (c *Client) CallService(ctx context.Context, serviceName, path string, params url.Values) error {
	if c.Nacos == nil {
		return fmt.Errorf("httpclient: nacos client is not configured, cannot call service %q", serviceName)
	}
	ip, port, err := c.Nacos.DiscoverServiceInstance(serviceName)
	if err != nil {
		return err
	}
	return c.Post(ctx, fmt.Sprintf("http://%s:%d%s", ip, port, path), params)
}

// PostJSON 通过服务发现调用下游服务，请求体和响应体均为 JSON。
// 非 2xx 响应时把响应体原样带回，由调用方解析成业务错误。
func (c *Client) PostJSON(ctx context.Context, serviceName, path string, reqBody, respBody interface{}) (int, []byte, error) {
	if c.Nacos == nil {
		return 0, nil, fmt.Errorf("httpclient: nacos client is not configured, cannot call service %q", serviceName)
	}
	ip, port, err := c.Nacos.DiscoverServiceInstance(serviceName)
	if err != nil {
		return 0, nil, err
	}
	target := fmt.Sprintf("http://%s:%d%s", ip, port, path)

	ctx, span := c.Tracer.Start(ctx, fmt.Sprintf("call-%s", serviceName), trace.WithSpanKind(trace.SpanKindClient))
	defer span.End()

	payload, err := json.Marshal(reqBody)
	if err != nil {
		span.RecordError(err)
		return 0, nil, err
	}

	req, err := http.NewRequestWithContext(ctx, "POST", target, bytes.NewReader(payload))
	if err != nil {
		span.RecordError(err)
		return 0, nil, err
	}
	req.Header.Set("Content-Type", "application/json")

	span.SetAttributes(
		attribute.String("http.url", target),
		attribute.String("http.method", "POST"),
	)
	otel.GetTextMapPropagator().Inject(ctx, propagation.HeaderCarrier(req.Header))

	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return 0, nil, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		span.RecordError(err)
		return resp.StatusCode, nil, err
	}

	if resp.StatusCode >= 200 && resp.StatusCode < 300 && respBody != nil {
		if err := json.Unmarshal(body, respBody); err != nil {
			span.RecordError(err)
			return resp.StatusCode, body, err
		}
	}
	if resp.StatusCode >= 400 {
		span.SetStatus(codes.Error, resp.Status)
	}
	return resp.StatusCode, body, nil
}
