package models

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func allStreamStatuses() []StreamStatus {
	return []StreamStatus{
		StreamStatusInactive,
		StreamStatusStarting,
		StreamStatusStreaming,
		StreamStatusStopping,
		StreamStatusError,
		StreamStatusCompleted,
	}
}

func TestStreamStatus_CanTransition_FullMatrix(t *testing.T) {
	allowed := map[StreamStatus]map[StreamStatus]bool{
		StreamStatusInactive:  {StreamStatusStarting: true},
		StreamStatusStarting:  {StreamStatusStreaming: true, StreamStatusError: true},
		StreamStatusStreaming: {StreamStatusStopping: true, StreamStatusError: true},
		StreamStatusStopping:  {StreamStatusInactive: true, StreamStatusCompleted: true},
		StreamStatusError:     {StreamStatusStarting: true},
		StreamStatusCompleted: {},
	}

	for _, from := range allStreamStatuses() {
		for _, to := range allStreamStatuses() {
			got := from.CanTransition(to)
			want := allowed[from][to]
			assert.Equal(t, want, got, "transition %s -> %s", from, to)
		}
	}
}

func TestStreamStatus_IsActive(t *testing.T) {
	assert.True(t, StreamStatusStarting.IsActive())
	assert.True(t, StreamStatusStreaming.IsActive())
	assert.True(t, StreamStatusStopping.IsActive())
	assert.False(t, StreamStatusInactive.IsActive())
	assert.False(t, StreamStatusError.IsActive())
	assert.False(t, StreamStatusCompleted.IsActive())
}

func TestStream_Transition_RecordsTimestamp(t *testing.T) {
	s := &Stream{Status: StreamStatusInactive}
	require.Nil(t, s.LastStatusAt)

	require.NoError(t, s.Transition(StreamStatusStarting))
	assert.Equal(t, StreamStatusStarting, s.Status)
	require.NotNil(t, s.LastStatusAt)
	assert.WithinDuration(t, time.Now(), *s.LastStatusAt, time.Second)
}

func TestStream_Transition_RejectsIllegalEdge(t *testing.T) {
	s := &Stream{BaseModel: BaseModel{ID: NewULID()}, Status: StreamStatusInactive}

	err := s.Transition(StreamStatusStreaming)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrInvalidTransition)

	var terr *TransitionError
	require.ErrorAs(t, err, &terr)
	assert.Equal(t, StreamStatusInactive, terr.From)
	assert.Equal(t, StreamStatusStreaming, terr.To)
	assert.Equal(t, StreamStatusInactive, s.Status, "status unchanged after rejection")
}

func TestStream_MarkStarting_ClearsError(t *testing.T) {
	s := &Stream{Status: StreamStatusError, ErrorMessage: "rtmp handshake failed"}

	require.NoError(t, s.MarkStarting())
	assert.Equal(t, StreamStatusStarting, s.Status)
	assert.Empty(t, s.ErrorMessage)
}

func TestStream_MarkStreaming_AssignsWorker(t *testing.T) {
	s := &Stream{Status: StreamStatusStarting}
	workerID := NewULID()

	require.NoError(t, s.MarkStreaming(workerID))
	assert.Equal(t, StreamStatusStreaming, s.Status)
	require.NotNil(t, s.AssignedWorkerID)
	assert.Equal(t, workerID, *s.AssignedWorkerID)
}

func TestStream_MarkError_ReleasesWorker(t *testing.T) {
	workerID := NewULID()
	s := &Stream{Status: StreamStatusStreaming, AssignedWorkerID: &workerID}

	require.NoError(t, s.MarkError("process exited"))
	assert.Equal(t, StreamStatusError, s.Status)
	assert.Equal(t, "process exited", s.ErrorMessage)
	assert.Nil(t, s.AssignedWorkerID)
}

func TestStream_MarkInactive_ReleasesWorker(t *testing.T) {
	workerID := NewULID()
	s := &Stream{Status: StreamStatusStopping, AssignedWorkerID: &workerID}

	require.NoError(t, s.MarkInactive())
	assert.Equal(t, StreamStatusInactive, s.Status)
	assert.Nil(t, s.AssignedWorkerID)
}

func TestStream_MarkCompleted_IsTerminal(t *testing.T) {
	s := &Stream{Status: StreamStatusStopping}

	require.NoError(t, s.MarkCompleted())
	assert.Equal(t, StreamStatusCompleted, s.Status)

	err := s.MarkStarting()
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrInvalidTransition)
}

func validStream() *Stream {
	return &Stream{
		OwnerID:   NewULID(),
		Name:      "sunday service",
		Platform:  PlatformYouTube,
		RTMPURL:   "rtmp://a.rtmp.youtube.com/live2",
		StreamKey: "abcd-1234",
	}
}

func TestStream_Validate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Stream)
		wantErr error
	}{
		{"valid", func(s *Stream) {}, nil},
		{"missing name", func(s *Stream) { s.Name = "  " }, ErrStreamNameRequired},
		{"missing rtmp url", func(s *Stream) { s.RTMPURL = "" }, ErrRTMPURLRequired},
		{"missing stream key", func(s *Stream) { s.StreamKey = "" }, ErrStreamKeyRequired},
		{"bad platform", func(s *Stream) { s.Platform = "dailymotion" }, ErrInvalidPlatform},
		{"bad order mode", func(s *Stream) { s.OrderMode = "shuffled" }, ErrInvalidOrderMode},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := validStream()
			tt.mutate(s)
			err := s.Validate()
			if tt.wantErr == nil {
				assert.NoError(t, err)
			} else {
				assert.ErrorIs(t, err, tt.wantErr)
			}
		})
	}
}

func TestStream_Validate_RejectsNonRTMPURL(t *testing.T) {
	s := validStream()
	s.RTMPURL = "https://youtube.com/live"

	err := s.Validate()
	require.Error(t, err)

	var verr *ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Equal(t, "rtmp_url", verr.Field)
}

func TestStream_Validate_ScheduleOrdering(t *testing.T) {
	s := validStream()
	start := time.Now().Add(time.Hour)
	end := start.Add(-time.Minute)
	s.ScheduledAt = &start
	s.ScheduledEndAt = &end

	err := s.Validate()
	require.Error(t, err)

	var verr *ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Equal(t, "scheduled_end_at", verr.Field)
}

func TestStream_IsScheduledToStart(t *testing.T) {
	now := time.Now()
	past := now.Add(-time.Minute)
	future := now.Add(time.Minute)

	tests := []struct {
		name   string
		status StreamStatus
		at     *time.Time
		want   bool
	}{
		{"inactive due", StreamStatusInactive, &past, true},
		{"error due retries", StreamStatusError, &past, true},
		{"not yet due", StreamStatusInactive, &future, false},
		{"no schedule", StreamStatusInactive, nil, false},
		{"already streaming", StreamStatusStreaming, &past, false},
		{"already starting", StreamStatusStarting, &past, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := &Stream{Status: tt.status, ScheduledAt: tt.at}
			assert.Equal(t, tt.want, s.IsScheduledToStart(now))
		})
	}
}

func TestStream_IsScheduledToStop(t *testing.T) {
	now := time.Now()
	past := now.Add(-time.Minute)

	s := &Stream{Status: StreamStatusStreaming, ScheduledEndAt: &past}
	assert.True(t, s.IsScheduledToStop(now))

	s.Status = StreamStatusStopping
	assert.False(t, s.IsScheduledToStop(now), "stop already in flight")

	s.Status = StreamStatusStreaming
	s.ScheduledEndAt = nil
	assert.False(t, s.IsScheduledToStop(now))
}

func TestStream_AssetsEligibleForCleanup(t *testing.T) {
	now := time.Now()

	tests := []struct {
		name   string
		mutate func(*Stream)
		want   bool
	}{
		{"ephemeral completed", func(s *Stream) { s.Status = StreamStatusCompleted }, true},
		{"never started", func(s *Stream) {}, false},
		{"errored stays retryable", func(s *Stream) { s.Status = StreamStatusError }, false},
		{"not ephemeral", func(s *Stream) { s.Ephemeral = false }, false},
		{"retained", func(s *Stream) { s.RetainAssets = true }, false},
		{"still streaming", func(s *Stream) { s.Status = StreamStatusStreaming }, false},
		{"already cleaned", func(s *Stream) { s.AssetsDeletedAt = &now }, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := &Stream{Status: StreamStatusInactive, Ephemeral: true}
			tt.mutate(s)
			assert.Equal(t, tt.want, s.AssetsEligibleForCleanup())
		})
	}
}

func TestWorkerFailureError_Message(t *testing.T) {
	err := &WorkerFailureError{WorkerID: NewULID(), Reason: "ffmpeg exited with code 1"}
	assert.Contains(t, err.Error(), "ffmpeg exited with code 1")
}

func TestNoCapacityError_Unwrap(t *testing.T) {
	var err error = &NoCapacityError{Workers: 3}
	assert.True(t, errors.Is(err, ErrWorkerNotAvailable))
	assert.Contains(t, err.Error(), "3")

	empty := &NoCapacityError{}
	assert.Contains(t, empty.Error(), "no healthy workers")
}
