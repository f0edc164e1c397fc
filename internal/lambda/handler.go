// Package lambda adapts API Gateway events to the api router. Both REST (v1)
// and HTTP API (v2) payloads are accepted on the same function.
package lambda

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/aws/aws-lambda-go/events"
	"github.com/aws/aws-lambda-go/lambdacontext"

	"finapi/internal/api"
	applog "finapi/internal/log"
)

// Router is implemented by *api.Router.
type Router interface {
	Handle(ctx context.Context, env api.Envelope) api.Response
}

type Handler struct {
	router Router
	logger *applog.Logger
}

func NewHandler(router Router, logger *applog.Logger) *Handler {
	if logger == nil {
		logger = applog.New(applog.DefaultConfig())
	}
	return &Handler{router: router, logger: logger.WithComponent(applog.ComponentLambda)}
}

// eventProbe holds just enough of an event to tell v1 from v2.
type eventProbe struct {
	RequestContext struct {
		HTTP struct {
			Method string `json:"method"`
		} `json:"http"`
	} `json:"requestContext"`
}

// Invoke is the function passed to lambda.Start. It never returns an error:
// a malformed event becomes a 400 response.
func (h *Handler) Invoke(ctx context.Context, event json.RawMessage) (any, error) {
	ctx = applog.WithContext(ctx, h.logger)

	var probe eventProbe
	if err := json.Unmarshal(event, &probe); err != nil {
		return h.malformed(ctx, err), nil
	}

	if probe.RequestContext.HTTP.Method != "" {
		var req events.APIGatewayV2HTTPRequest
		if err := json.Unmarshal(event, &req); err != nil {
			return h.malformed(ctx, err), nil
		}
		return h.handleV2(ctx, req), nil
	}

	var req events.APIGatewayProxyRequest
	if err := json.Unmarshal(event, &req); err != nil {
		return h.malformed(ctx, err), nil
	}
	return h.handleV1(ctx, req), nil
}

func (h *Handler) handleV2(ctx context.Context, req events.APIGatewayV2HTTPRequest) events.APIGatewayV2HTTPResponse {
	ctx = withRequestID(ctx, req.RequestContext.RequestID)
	path := req.RawPath
	if path == "" {
		path = req.RequestContext.HTTP.Path
	}

	resp := h.router.Handle(ctx, api.Envelope{
		Method:                req.RequestContext.HTTP.Method,
		Path:                  path,
		Headers:               api.Headers(req.Headers),
		Body:                  req.Body,
		IsBase64Encoded:       req.IsBase64Encoded,
		QueryStringParameters: req.QueryStringParameters,
	})
	return events.APIGatewayV2HTTPResponse{
		StatusCode: resp.StatusCode,
		Headers:    resp.Headers,
		Body:       resp.Body,
	}
}

func (h *Handler) handleV1(ctx context.Context, req events.APIGatewayProxyRequest) events.APIGatewayProxyResponse {
	ctx = withRequestID(ctx, req.RequestContext.RequestID)
	resp := h.router.Handle(ctx, api.Envelope{
		Method:                req.HTTPMethod,
		Path:                  req.Path,
		Headers:               flattenHeaders(req.Headers, req.MultiValueHeaders),
		Body:                  req.Body,
		IsBase64Encoded:       req.IsBase64Encoded,
		QueryStringParameters: flattenQuery(req.QueryStringParameters, req.MultiValueQueryStringParameters),
	})
	return events.APIGatewayProxyResponse{
		StatusCode: resp.StatusCode,
		Headers:    resp.Headers,
		Body:       resp.Body,
	}
}

func (h *Handler) malformed(ctx context.Context, err error) events.APIGatewayProxyResponse {
	err = fmt.Errorf("malformed event: %w", err)
	h.logger.ErrorContext(ctx, "Cannot decode invocation event",
		applog.NewFields().WithError(err, applog.ErrorTypeValidation).ToSlice()...)
	resp := api.BadRequest(err)
	return events.APIGatewayProxyResponse{
		StatusCode: resp.StatusCode,
		Headers:    resp.Headers,
		Body:       resp.Body,
	}
}

// withRequestID prefers the API Gateway request id and falls back to the
// Lambda invocation id.
func withRequestID(ctx context.Context, id string) context.Context {
	if id == "" {
		if lc, ok := lambdacontext.FromContext(ctx); ok {
			id = lc.AwsRequestID
		}
	}
	if id == "" {
		return ctx
	}
	return applog.WithRequestID(ctx, id)
}

// flattenHeaders keeps the first value of every header. Single-value headers
// win over their multi-value copy.
func flattenHeaders(single map[string]string, multi map[string][]string) api.Headers {
	out := make(api.Headers, len(single)+len(multi))
	for k, vs := range multi {
		if len(vs) > 0 {
			out[k] = vs[0]
		}
	}
	for k, v := range single {
		out[k] = v
	}
	return out
}

func flattenQuery(single map[string]string, multi map[string][]string) map[string]string {
	out := make(map[string]string, len(single)+len(multi))
	for k, vs := range multi {
		if len(vs) > 0 {
			out[k] = strings.TrimSpace(vs[0])
		}
	}
	for k, v := range single {
		out[k] = v
	}
	return out
}
