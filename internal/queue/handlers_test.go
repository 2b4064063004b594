package queue

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/hibiken/asynq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeStore struct {
	deleted []string
	err     error
}

func (f *fakeStore) Delete(_ context.Context, name string) error {
	f.deleted = append(f.deleted, name)
	return f.err
}

type fakeSweeper struct {
	maxAge time.Duration
}

func (f *fakeSweeper) Sweep(_ context.Context, maxAge time.Duration) (int, error) {
	f.maxAge = maxAge
	return 2, nil
}

func TestAudioWorkerExpire(t *testing.T) {
	store := &fakeStore{}
	w := NewAudioWorker(store, nil)

	task, err := newTask(TypeAudioExpire, AudioExpirePayload{Name: "a.mp3"})
	require.NoError(t, err)

	require.NoError(t, NewMux(w).ProcessTask(context.Background(), task))
	assert.Equal(t, []string{"a.mp3"}, store.deleted)
}

func TestAudioWorkerExpireSurfacesErrors(t *testing.T) {
	w := NewAudioWorker(&fakeStore{err: errors.New("disk gone")}, nil)

	task, err := newTask(TypeAudioExpire, AudioExpirePayload{Name: "a.mp3"})
	require.NoError(t, err)

	err = w.Expire(context.Background(), task)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "disk gone")
}

func TestAudioWorkerRejectsBadPayload(t *testing.T) {
	w := NewAudioWorker(&fakeStore{}, &fakeSweeper{})

	err := w.Expire(context.Background(), asynq.NewTask(TypeAudioExpire, []byte("{")))
	assert.ErrorIs(t, err, asynq.SkipRetry)

	err = w.Sweep(context.Background(), asynq.NewTask(TypeAudioSweep, []byte(`{"max_age_seconds":0}`)))
	assert.ErrorIs(t, err, asynq.SkipRetry)
}

func TestAudioWorkerSweep(t *testing.T) {
	sweeper := &fakeSweeper{}
	w := NewAudioWorker(&fakeStore{}, sweeper)

	task, err := NewAudioSweepTask(6 * time.Hour)
	require.NoError(t, err)
	assert.Equal(t, TypeAudioSweep, task.Type())

	require.NoError(t, NewMux(w).ProcessTask(context.Background(), task))
	assert.Equal(t, 6*time.Hour, sweeper.maxAge)
}

func TestAudioWorkerSweepWithoutSweeper(t *testing.T) {
	task, err := NewAudioSweepTask(time.Hour)
	require.NoError(t, err)
	assert.NoError(t, NewAudioWorker(&fakeStore{}, nil).Sweep(context.Background(), task))
}
