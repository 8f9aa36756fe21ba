package biz

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kart-io/ragx/internal/model"
	"github.com/kart-io/ragx/pkg/utils/errors"
)

func TestNoneTransformerIdentity(t *testing.T) {
	tr, err := NewTransformer(model.StrategyBinding{Code: "TRF_NONE"}, nil)
	require.NoError(t, err)
	assert.Equal(t, "how does raft work", tr.Transform(context.Background(), "how does raft work"))
}

func TestHydeTransformerReturnsHypotheticalDoc(t *testing.T) {
	chat := &fakeChat{responses: []string{"Raft elects a leader via randomized timeouts."}}
	tr, err := NewTransformer(model.StrategyBinding{Code: "TRF_HYDE"}, chat)
	require.NoError(t, err)

	out := tr.Transform(context.Background(), "how does raft work")
	assert.Equal(t, "Raft elects a leader via randomized timeouts.", out)
}

func TestHydeFallsBackOnError(t *testing.T) {
	chat := &fakeChat{fail: true}
	tr, err := NewTransformer(model.StrategyBinding{Code: "TRF_HYDE"}, chat)
	require.NoError(t, err)

	assert.Equal(t, "original", tr.Transform(context.Background(), "original"))
}

func TestHydeFallsBackOnEmptyOutput(t *testing.T) {
	chat := &fakeChat{responses: []string{"   "}}
	tr, err := NewTransformer(model.StrategyBinding{Code: "TRF_HYDE"}, chat)
	require.NoError(t, err)

	assert.Equal(t, "original", tr.Transform(context.Background(), "original"))
}

func TestUnknownTransformerCode(t *testing.T) {
	_, err := NewTransformer(model.StrategyBinding{Code: "TRF_XYZ"}, nil)
	require.Error(t, err)
	assert.Equal(t, "INVALID_STRATEGY", errors.GetReason(err))
}
