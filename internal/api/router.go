package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"finapi/internal/core"
	"finapi/internal/ingest"
	applog "finapi/internal/log"
)

// Service is the part of services.TransactionService the router drives.
type Service interface {
	Record(ctx context.Context, in ingest.RawInput) (core.TransactionRecord, error)
	List(ctx context.Context, owner, period string) ([]core.TransactionRecord, error)
	MonthlyReport(ctx context.Context, owner, period string) (core.MonthlyReport, error)
}

const (
	routeTransactions = "/tx"
	routeMonthly      = "/report/monthly"
	monthParam        = "month"
)

// Router dispatches an Envelope by method and path suffix, so the same
// routes work behind any stage or base path prefix.
type Router struct {
	svc   Service
	owner string
}

func NewRouter(svc Service) *Router {
	return &Router{svc: svc, owner: core.AnonymousOwner}
}

// Handle never returns an error: every failure, including a panic in a
// route, becomes a JSON response.
func (rt *Router) Handle(ctx context.Context, env Envelope) (resp Response) {
	start := time.Now()
	logger := applog.FromContext(ctx).WithComponent(applog.ComponentAPI)
	method := strings.ToUpper(env.Method)

	defer func() {
		if p := recover(); p != nil {
			err := fmt.Errorf("%v", p)
			logger.ErrorContext(ctx, "Route panicked",
				applog.NewFields().
					WithRequest(method, env.Path).
					WithError(err, applog.ErrorTypePanic).
					ToSlice()...)
			resp = jsonResponse(http.StatusBadRequest, errorJSON{OK: false, Error: err.Error()})
		}
		logger.DebugContext(ctx, "Invocation handled",
			applog.NewFields().
				WithRequest(method, env.Path).
				WithResponse(resp.StatusCode, time.Since(start).Milliseconds()).
				ToSlice()...)
	}()

	path := strings.TrimRight(env.Path, "/")
	switch {
	case method == http.MethodPost && strings.HasSuffix(path, routeTransactions):
		return rt.handleRecord(ctx, logger, env)
	case method == http.MethodGet && strings.HasSuffix(path, routeTransactions):
		return rt.handleList(ctx, logger, env)
	case method == http.MethodGet && strings.HasSuffix(path, routeMonthly):
		return rt.handleMonthly(ctx, logger, env)
	default:
		return jsonResponse(http.StatusNotFound, notFoundJSON{
			Message: fmt.Sprintf("Not found: %s %s", method, env.Path),
		})
	}
}

func (rt *Router) handleRecord(ctx context.Context, logger *applog.Logger, env Envelope) Response {
	r, err := rt.svc.Record(ctx, ingest.RawInput{
		Body:            env.Body,
		IsBase64Encoded: env.IsBase64Encoded,
		ContentType:     env.Headers.Get("Content-Type"),
	})
	if err != nil {
		return errorResponse(ctx, logger, applog.OpRecord, err)
	}
	return jsonResponse(http.StatusCreated, savedJSON{OK: true, Saved: toRecordJSON(r)})
}

func (rt *Router) handleList(ctx context.Context, logger *applog.Logger, env Envelope) Response {
	records, err := rt.svc.List(ctx, rt.owner, env.Query(monthParam))
	if err != nil {
		return errorResponse(ctx, logger, applog.OpList, err)
	}
	return jsonResponse(http.StatusOK, toItemsJSON(records))
}

func (rt *Router) handleMonthly(ctx context.Context, logger *applog.Logger, env Envelope) Response {
	rep, err := rt.svc.MonthlyReport(ctx, rt.owner, env.Query(monthParam))
	if err != nil {
		return errorResponse(ctx, logger, applog.OpReport, err)
	}
	return jsonResponse(http.StatusOK, toReportJSON(rep))
}

// errorResponse maps every failure to 400. Validation problems are the
// caller's fault and logged at warn; anything else is logged at error.
func errorResponse(ctx context.Context, logger *applog.Logger, op string, err error) Response {
	var verr *core.ValidationError
	var serr *core.StoreError
	switch {
	case errors.As(err, &verr):
		logger.WarnContext(ctx, "Invalid request",
			applog.NewFields().WithOperation(op).WithError(err, applog.ErrorTypeValidation).ToSlice()...)
	case errors.As(err, &serr):
		logger.ErrorContext(ctx, "Store call failed",
			applog.NewFields().WithOperation(op).WithError(err, applog.ErrorTypeStore).ToSlice()...)
	default:
		logger.ErrorContext(ctx, "Request failed",
			applog.NewFields().WithOperation(op).WithError(err, applog.ErrorTypeInternal).ToSlice()...)
	}
	return jsonResponse(http.StatusBadRequest, errorJSON{OK: false, Error: err.Error()})
}

// BadRequest is the response adapters return for invocations they cannot
// turn into an Envelope.
func BadRequest(err error) Response {
	return jsonResponse(http.StatusBadRequest, errorJSON{OK: false, Error: err.Error()})
}

func jsonResponse(status int, v any) Response {
	body, err := json.Marshal(v)
	if err != nil {
		status = http.StatusBadRequest
		body, _ = json.Marshal(errorJSON{OK: false, Error: err.Error()})
	}
	return Response{
		StatusCode: status,
		Headers:    map[string]string{"Content-Type": "application/json"},
		Body:       string(body),
	}
}
