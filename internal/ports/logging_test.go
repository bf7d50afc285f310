package ports

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
)

func TestEnsureCorrelationID(t *testing.T) {
	ctx := EnsureCorrelationID(context.Background())
	id := CorrelationID(ctx)
	_, err := uuid.Parse(id)
	require.NoError(t, err)

	require.Equal(t, id, CorrelationID(EnsureCorrelationID(ctx)))
	require.Equal(t, "fixed", CorrelationID(EnsureCorrelationID(WithCorrelationID(context.Background(), "fixed"))))
}

func TestCorrelationIDMissing(t *testing.T) {
	require.Empty(t, CorrelationID(context.Background()))
	require.Empty(t, CorrelationID(nil)) //nolint:staticcheck
}
