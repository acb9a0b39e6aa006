package utils

import (
	"context"

	"github.com/google/uuid"
	"github.com/mmdatafocus/fulfillment_backend/appctx"
)

var (
	ContextKeyRunId         = appctx.ContextKeyRunId
	ContextKeyOperator      = appctx.ContextKeyOperator
	ContextKeyCorrelationId = appctx.ContextKeyCorrelationId
)

func GetRunIdFromContext(ctx context.Context) (string, bool) {
	return appctx.GetString(ctx, ContextKeyRunId)
}

func SetRunIdInContext(ctx context.Context, runId string) context.Context {
	return appctx.Set(ctx, ContextKeyRunId, runId)
}

func GetOperatorFromContext(ctx context.Context) (string, bool) {
	return appctx.GetString(ctx, ContextKeyOperator)
}

func SetOperatorInContext(ctx context.Context, operator string) context.Context {
	return appctx.Set(ctx, ContextKeyOperator, operator)
}

func GetCorrelationIdFromContext(ctx context.Context) (string, bool) {
	return appctx.GetString(ctx, ContextKeyCorrelationId)
}

func SetCorrelationIdInContext(ctx context.Context, correlationId string) context.Context {
	return appctx.Set(ctx, ContextKeyCorrelationId, correlationId)
}

// EnsureRunId returns ctx carrying a run id, generating one if absent.
func EnsureRunId(ctx context.Context) (context.Context, string) {
	if id, ok := GetRunIdFromContext(ctx); ok && id != "" {
		return ctx, id
	}
	id := uuid.NewString()
	return SetRunIdInContext(ctx, id), id
}
