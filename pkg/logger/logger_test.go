package logger

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"go.uber.org/zap"
)

func TestContextFieldsEmptyContext(t *testing.T) {
	assert.Empty(t, ContextFields(context.Background()))
}

func TestContextFieldsCarriesRunScope(t *testing.T) {
	ctx := context.WithValue(context.Background(), RunIDKey, "20240301T103000.000")
	ctx = context.WithValue(ctx, ObjectKey, "Account")
	ctx = context.WithValue(ctx, StageKey, "EXTRACTING")

	assert.Equal(t, []zap.Field{
		zap.String("run_id", "20240301T103000.000"),
		zap.String("object", "Account"),
		zap.String("stage", "EXTRACTING"),
	}, ContextFields(ctx))
}

func TestContextFieldsSkipsUnsetKeys(t *testing.T) {
	ctx := context.WithValue(context.Background(), ObjectKey, "Contact")

	fields := ContextFields(ctx)
	assert.Equal(t, []zap.Field{zap.String("object", "Contact")}, fields)
}

func TestWithContextReturnsLogger(t *testing.T) {
	ctx := context.WithValue(context.Background(), RunIDKey, "r1")
	assert.NotNil(t, WithContext(ctx))
}
