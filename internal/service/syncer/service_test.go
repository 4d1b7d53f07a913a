package syncer

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"google.golang.org/api/gmail/v1"

	"inboxintel/internal/model"
	"inboxintel/internal/service/analyze"
)

type fakeMail struct {
	ids      []string
	listErr  error
	messages map[string]*gmail.Message
	getErr   map[string]error

	mu       sync.Mutex
	gotQuery string
}

func (f *fakeMail) ListMessageIDs(ctx context.Context, accessToken, query string) ([]string, error) {
	f.mu.Lock()
	f.gotQuery = query
	f.mu.Unlock()
	return f.ids, f.listErr
}

func (f *fakeMail) GetMessage(ctx context.Context, accessToken, id string) (*gmail.Message, error) {
	if err := f.getErr[id]; err != nil {
		return nil, err
	}
	return f.messages[id], nil
}

type fakeAnalyzer struct {
	mu          sync.Mutex
	gotExisting [][]string
	err         error
}

func (f *fakeAnalyzer) Analyze(ctx context.Context, email analyze.EmailContent, existingTasks []string) (*model.AnalysisResult, error) {
	f.mu.Lock()
	f.gotExisting = append(f.gotExisting, existingTasks)
	f.mu.Unlock()
	if f.err != nil {
		return nil, f.err
	}
	action := "Reply to " + email.From
	return &model.AnalysisResult{Sender: email.From, Summary: "summary", Action: &action}, nil
}

type fakeTasks struct {
	tasks []model.Task
	err   error
}

func (f *fakeTasks) ListOpen(ctx context.Context, userEmail string) ([]model.Task, error) {
	return f.tasks, f.err
}

func textMessage(from, subject, body string) *gmail.Message {
	payload := &gmail.MessagePart{
		Headers: []*gmail.MessagePartHeader{
			{Name: "From", Value: from},
			{Name: "Subject", Value: subject},
		},
	}
	if body != "" {
		payload.Body = &gmail.MessagePartBody{
			Data: base64.RawURLEncoding.EncodeToString([]byte(body)),
		}
	}
	return &gmail.Message{Payload: payload}
}

func newTestService(m *fakeMail, a *fakeAnalyzer, tasks *fakeTasks) *Service {
	return NewService(m, a, tasks, zap.NewNop())
}

func TestRunEmptyWindowIsNotAnError(t *testing.T) {
	s := newTestService(&fakeMail{}, &fakeAnalyzer{}, &fakeTasks{})

	results, err := s.Run(context.Background(), "user@example.com", "tok")
	require.NoError(t, err)
	assert.NotNil(t, results)
	assert.Empty(t, results)
}

func TestRunListFailureAbortsCall(t *testing.T) {
	s := newTestService(&fakeMail{listErr: errors.New("gmail down")}, &fakeAnalyzer{}, &fakeTasks{})

	_, err := s.Run(context.Background(), "user@example.com", "tok")
	assert.Error(t, err)
}

func TestRunTaskStoreFailureAbortsCall(t *testing.T) {
	s := newTestService(&fakeMail{}, &fakeAnalyzer{}, &fakeTasks{err: errors.New("store down")})

	_, err := s.Run(context.Background(), "user@example.com", "tok")
	assert.Error(t, err)
}

func TestRunDropsOnlyTheFailedMessage(t *testing.T) {
	m := &fakeMail{
		ids: []string{"m1", "m2", "m3"},
		messages: map[string]*gmail.Message{
			"m1": textMessage("a@example.com", "A", "body a"),
			"m3": textMessage("c@example.com", "C", "body c"),
		},
		getErr: map[string]error{"m2": errors.New("fetch failed")},
	}
	s := newTestService(m, &fakeAnalyzer{}, &fakeTasks{})

	results, err := s.Run(context.Background(), "user@example.com", "tok")
	require.NoError(t, err)
	assert.Len(t, results, 2)
}

func TestRunSkipsMessagesWithoutBody(t *testing.T) {
	m := &fakeMail{
		ids: []string{"m1", "m2"},
		messages: map[string]*gmail.Message{
			"m1": textMessage("a@example.com", "A", ""),
			"m2": textMessage("b@example.com", "B", "body b"),
		},
	}
	s := newTestService(m, &fakeAnalyzer{}, &fakeTasks{})

	results, err := s.Run(context.Background(), "user@example.com", "tok")
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, "b@example.com", results[0].Sender)
}

func TestRunDropsMessagesTheAnalyzerRejects(t *testing.T) {
	m := &fakeMail{
		ids: []string{"m1"},
		messages: map[string]*gmail.Message{
			"m1": textMessage("a@example.com", "A", "body a"),
		},
	}
	s := newTestService(m, &fakeAnalyzer{err: errors.New("parse failure")}, &fakeTasks{})

	results, err := s.Run(context.Background(), "user@example.com", "tok")
	require.NoError(t, err)
	assert.Empty(t, results)
}

func TestRunThreadsDedupContextToEveryMessage(t *testing.T) {
	m := &fakeMail{
		ids: []string{"m1", "m2"},
		messages: map[string]*gmail.Message{
			"m1": textMessage("a@example.com", "A", "body a"),
			"m2": textMessage("b@example.com", "B", "body b"),
		},
	}
	a := &fakeAnalyzer{}
	tasks := &fakeTasks{tasks: []model.Task{
		{Text: "Reply to Alice"},
		{Text: "Pay the invoice"},
	}}
	s := newTestService(m, a, tasks)

	_, err := s.Run(context.Background(), "user@example.com", "tok")
	require.NoError(t, err)

	require.Len(t, a.gotExisting, 2)
	for _, existing := range a.gotExisting {
		assert.Equal(t, []string{"Reply to Alice", "Pay the invoice"}, existing)
	}
}

func TestRunDefaultsMissingHeaders(t *testing.T) {
	msg := &gmail.Message{Payload: &gmail.MessagePart{
		Body: &gmail.MessagePartBody{
			Data: base64.RawURLEncoding.EncodeToString([]byte("hello")),
		},
	}}
	m := &fakeMail{ids: []string{"m1"}, messages: map[string]*gmail.Message{"m1": msg}}
	s := newTestService(m, &fakeAnalyzer{}, &fakeTasks{})

	results, err := s.Run(context.Background(), "user@example.com", "tok")
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, "Unknown Sender", results[0].Sender)
}

func TestScanWindowIsYesterdayMidnightThroughTodayEnd(t *testing.T) {
	m := &fakeMail{ids: nil}
	s := newTestService(m, &fakeAnalyzer{}, &fakeTasks{})
	s.now = func() time.Time {
		return time.Date(2024, time.March, 10, 15, 4, 5, 0, time.UTC)
	}

	_, err := s.Run(context.Background(), "user@example.com", "tok")
	require.NoError(t, err)

	start := time.Date(2024, time.March, 9, 0, 0, 0, 0, time.UTC)
	end := time.Date(2024, time.March, 10, 23, 59, 59, 0, time.UTC)
	expected := fmt.Sprintf("category:primary after:%d before:%d", start.Unix(), end.Unix())
	assert.Equal(t, expected, m.gotQuery)
}
