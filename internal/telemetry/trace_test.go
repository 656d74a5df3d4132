package telemetry

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"go.opentelemetry.io/otel/trace"
)

func TestStartUsesGlobalProvider(t *testing.T) {
	ctx, span := Start(context.Background(), "resolve", Package("foo"))
	assert.NotNil(t, ctx)
	assert.Equal(t, span, trace.SpanFromContext(ctx))
	End(span, nil)
}

func TestEndRecordsError(t *testing.T) {
	_, span := Start(context.Background(), "fetch")
	assert.NotPanics(t, func() { End(span, errors.New("boom")) })
}

func TestPackageAttribute(t *testing.T) {
	kv := Package("git")
	assert.Equal(t, "shovel.package", string(kv.Key))
	assert.Equal(t, "git", kv.Value.AsString())
}
