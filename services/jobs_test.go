package services

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/voicevibe/backend/tasks"
)

func TestSessionXP(t *testing.T) {
	tests := []struct {
		overall float64
		want    int
	}{
		{0, 20},
		{9.9, 20},
		{10, 25},
		{57, 45},
		{100, 70},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, sessionXP(tt.overall), "overall %v", tt.overall)
	}
}

func TestResetLink(t *testing.T) {
	j := &Jobs{frontendURL: "https://app.voicevibe.test"}
	assert.Equal(t, "https://app.voicevibe.test/reset-password?token=abc123", j.resetLink("abc123"))
	assert.Equal(t, "https://app.voicevibe.test/reset-password?token=a%2Bb%3D", j.resetLink("a+b="))
}

func TestPasswordResetEmail(t *testing.T) {
	j := &Jobs{frontendURL: "http://localhost:3000"}

	task, err := tasks.NewTask(tasks.TypePasswordResetEmail, PasswordResetPayload{UserID: "u1", Email: "a@b.c", Token: "t"})
	require.NoError(t, err)
	assert.NoError(t, j.PasswordResetEmail(context.Background(), task))

	bad := tasks.Task{Type: tasks.TypePasswordResetEmail, Payload: []byte("{")}
	assert.Error(t, j.PasswordResetEmail(context.Background(), bad))
}

func TestJobsSchedule(t *testing.T) {
	j := &Jobs{}
	s := tasks.NewScheduler()
	require.NoError(t, j.Schedule(s))
	s.Stop(context.Background())
}
