package redpanda

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fairyhunter13/psychometric-engine/internal/adapter/observability"
	"github.com/fairyhunter13/psychometric-engine/internal/domain"
)

var fastBackoff = BackoffConfig{
	MaxElapsedTime:  time.Second,
	InitialInterval: time.Millisecond,
	MaxInterval:     5 * time.Millisecond,
	Multiplier:      2,
}

func TestPublishScored_RetriesTransientErrors(t *testing.T) {
	fp := &fakeProducer{errs: []error{errors.New("not leader"), errors.New("not leader")}}
	pub := NewEventPublisher(fp, fastBackoff)

	ev := domain.ScoredEvent{AssessmentType: "core", CalibrationVersion: "v1", PrimaryType: "INTJ"}
	require.NoError(t, pub.PublishScored(context.Background(), ev))

	recs := fp.produced()
	require.Len(t, recs, 1)
	assert.Equal(t, TopicScored, recs[0].Topic)
	assert.Equal(t, "INTJ", string(recs[0].Key))
	var got domain.ScoredEvent
	require.NoError(t, json.Unmarshal(recs[0].Value, &got))
	assert.Equal(t, "v1", got.CalibrationVersion)
	assert.Equal(t, observability.StateClosed, pub.Breaker().State())
}

func TestPublishScored_OpenBreakerFailsFast(t *testing.T) {
	errs := make([]error, 20)
	for i := range errs {
		errs[i] = errors.New("broker unreachable")
	}
	fp := &fakeProducer{errs: errs}
	pub := NewEventPublisher(fp, fastBackoff)

	err := pub.PublishScored(context.Background(), domain.ScoredEvent{PrimaryType: "ENFP"})
	require.Error(t, err)
	assert.ErrorIs(t, err, observability.ErrCircuitOpen)
	assert.Equal(t, observability.StateOpen, pub.Breaker().State())
	assert.Empty(t, fp.produced())
}
