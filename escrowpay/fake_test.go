package escrowpay

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFakeProvider_Idempotency(t *testing.T) {
	ctx := context.Background()
	p := NewFakeProvider()

	ref1, err := p.CreateEscrow(ctx, "esc-1", "creator", 10000)
	require.NoError(t, err)
	ref2, err := p.CreateEscrow(ctx, "esc-1", "creator", 10000)
	require.NoError(t, err)
	assert.Equal(t, ref1, ref2)

	ext1, err := p.ExtendEscrow(ctx, "esc-1", "opponent", 10000)
	require.NoError(t, err)
	ext2, err := p.ExtendEscrow(ctx, "esc-1", "opponent", 10000)
	require.NoError(t, err)
	assert.Equal(t, ext1, ext2)
	assert.NotEqual(t, ref1, ext1)

	rel1, err := p.ReleaseEscrow(ctx, "esc-1", "creator", 20000)
	require.NoError(t, err)
	rel2, err := p.ReleaseEscrow(ctx, "esc-1", "creator", 20000)
	require.NoError(t, err)
	assert.Equal(t, rel1, rel2)
}

func TestFakeProvider_TerminalConflicts(t *testing.T) {
	ctx := context.Background()
	p := NewFakeProvider()

	_, err := p.CreateEscrow(ctx, "esc-1", "creator", 10000)
	require.NoError(t, err)
	_, err = p.ReleaseEscrow(ctx, "esc-1", "creator", 10000)
	require.NoError(t, err)

	// Released escrows cannot be refunded, and vice versa
	_, err = p.RefundEscrow(ctx, "esc-1", "late cancel")
	require.Error(t, err)

	_, err = p.CreateEscrow(ctx, "esc-2", "creator", 10000)
	require.NoError(t, err)
	_, err = p.RefundEscrow(ctx, "esc-2", "cancelled")
	require.NoError(t, err)
	_, err = p.ReleaseEscrow(ctx, "esc-2", "creator", 10000)
	require.Error(t, err)
}

func TestFakeProvider_UnknownEscrow(t *testing.T) {
	ctx := context.Background()
	p := NewFakeProvider()

	_, err := p.ExtendEscrow(ctx, "missing", "opponent", 100)
	require.Error(t, err)
	_, err = p.ReleaseEscrow(ctx, "missing", "winner", 100)
	require.Error(t, err)
	_, err = p.RefundEscrow(ctx, "missing", "reason")
	require.Error(t, err)
}

func TestFakeProvider_FaultInjection(t *testing.T) {
	ctx := context.Background()
	p := NewFakeProvider()

	p.FailNext = true
	_, err := p.CreateEscrow(ctx, "esc-1", "creator", 10000)
	require.Error(t, err)

	// Failure fires once; the retry succeeds
	ref, err := p.CreateEscrow(ctx, "esc-1", "creator", 10000)
	require.NoError(t, err)
	assert.NotEmpty(t, ref)
}
