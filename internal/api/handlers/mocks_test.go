package handlers

import (
	"context"

	"github.com/rmpassist/rmp-assistant/internal/models"
)

type mockChatResponder struct {
	respondFunc func(ctx context.Context, messages []models.Message) (models.FragmentStream, error)
	calls       int
	received    []models.Message
}

func (m *mockChatResponder) Respond(ctx context.Context, messages []models.Message) (models.FragmentStream, error) {
	m.calls++
	m.received = messages

	if m.respondFunc != nil {
		return m.respondFunc(ctx, messages)
	}

	return &fakeStream{}, nil
}

// fakeStream yields fragments, then stops with err (nil for a clean end).
type fakeStream struct {
	fragments []string
	err       error
	pos       int
	current   string
	closes    int
}

func (s *fakeStream) Next() bool {
	if s.pos >= len(s.fragments) {
		return false
	}

	s.current = s.fragments[s.pos]
	s.pos++

	return true
}

func (s *fakeStream) Current() string { return s.current }

func (s *fakeStream) Err() error {
	if s.pos >= len(s.fragments) {
		return s.err
	}

	return nil
}

func (s *fakeStream) Close() error {
	s.closes++

	return nil
}

type mockURLSubmitter struct {
	submitFunc func(ctx context.Context, rawURL string) (int, error)
	calls      int
	urls       []string
}

func (m *mockURLSubmitter) SubmitURL(ctx context.Context, rawURL string) (int, error) {
	m.calls++
	m.urls = append(m.urls, rawURL)

	if m.submitFunc != nil {
		return m.submitFunc(ctx, rawURL)
	}

	return 1, nil
}
