package queue

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/jmehdipour/orderdesk/internal/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type MockPublisher struct{ mock.Mock }

func (m *MockPublisher) Publish(ctx context.Context, key string, value []byte) error {
	args := m.Called(ctx, key, value)
	return args.Error(0)
}

func TestService_EnqueueExport(t *testing.T) {
	pub := new(MockPublisher)
	s := New(pub)
	fixed := time.Date(2024, 3, 9, 14, 0, 0, 0, time.FixedZone("SGT", 8*3600))
	s.now = func() time.Time { return fixed }

	var key string
	var payload []byte
	pub.On("Publish", mock.Anything, mock.AnythingOfType("string"), mock.Anything).
		Run(func(args mock.Arguments) {
			key = args.String(1)
			payload = args.Get(2).([]byte)
		}).Return(nil).Once()

	id, err := s.EnqueueExport(context.Background(), 7, map[string]string{"search": "alice"})
	require.NoError(t, err)
	assert.Len(t, id, 26)
	assert.Equal(t, id, key)

	var env model.ExportEnvelope
	require.NoError(t, json.Unmarshal(payload, &env))
	assert.Equal(t, id, env.Request.ExportID)
	assert.Equal(t, int64(7), env.Request.RequesterID)
	assert.Equal(t, "alice", env.Request.Params["search"])
	assert.Equal(t, 0, env.Attempt)
	assert.True(t, env.EnqueuedAt.Equal(fixed))
	assert.Equal(t, time.UTC, env.EnqueuedAt.Location())
	pub.AssertExpectations(t)
}

func TestService_EnqueueExport_UniqueIDs(t *testing.T) {
	pub := new(MockPublisher)
	pub.On("Publish", mock.Anything, mock.Anything, mock.Anything).Return(nil)
	s := New(pub)

	a, err := s.EnqueueExport(context.Background(), 1, nil)
	require.NoError(t, err)
	b, err := s.EnqueueExport(context.Background(), 1, nil)
	require.NoError(t, err)

	assert.NotEqual(t, a, b)
	assert.Less(t, a, b)
}

func TestService_EnqueueExport_PublishError(t *testing.T) {
	pub := new(MockPublisher)
	pub.On("Publish", mock.Anything, mock.Anything, mock.Anything).Return(errors.New("broker down")).Once()
	s := New(pub)

	id, err := s.EnqueueExport(context.Background(), 7, nil)

	assert.Empty(t, id)
	assert.ErrorContains(t, err, "broker down")
}

func TestService_Publish_KeepsAttempt(t *testing.T) {
	pub := new(MockPublisher)
	s := New(pub)

	pub.On("Publish", mock.Anything, "e1", mock.MatchedBy(func(b []byte) bool {
		var env model.ExportEnvelope
		return json.Unmarshal(b, &env) == nil && env.Attempt == 2 && env.Request.ExportID == "e1"
	})).Return(nil).Once()

	err := s.Publish(context.Background(), model.ExportEnvelope{
		Request: model.ExportRequest{ExportID: "e1", RequesterID: 7},
		Attempt: 2,
	})

	require.NoError(t, err)
	pub.AssertExpectations(t)
}
