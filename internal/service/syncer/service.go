package syncer

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"
	"google.golang.org/api/gmail/v1"

	"inboxintel/internal/model"
	"inboxintel/internal/service/analyze"
	"inboxintel/internal/service/mail"
	"inboxintel/pkg/metrics"
)

// MailClient lists and fetches the caller's inbox messages.
type MailClient interface {
	ListMessageIDs(ctx context.Context, accessToken, query string) ([]string, error)
	GetMessage(ctx context.Context, accessToken, id string) (*gmail.Message, error)
}

// Analyzer turns one decoded email into an analysis result.
type Analyzer interface {
	Analyze(ctx context.Context, email analyze.EmailContent, existingTasks []string) (*model.AnalysisResult, error)
}

// TaskStore supplies the dedup context for the prompt.
type TaskStore interface {
	ListOpen(ctx context.Context, userEmail string) ([]model.Task, error)
}

// Service runs one inbox sync: compute the scan window, list matching
// message IDs, then fetch, extract, and analyze every message concurrently.
type Service struct {
	mail     MailClient
	analyzer Analyzer
	tasks    TaskStore
	logger   *zap.Logger

	now func() time.Time
}

func NewService(mailClient MailClient, analyzer Analyzer, tasks TaskStore, logger *zap.Logger) *Service {
	return &Service{
		mail:     mailClient,
		analyzer: analyzer,
		tasks:    tasks,
		logger:   logger,
		now:      time.Now,
	}
}

// scanWindow is the fixed rolling two-day window: yesterday 00:00:00 through
// today 23:59:59, in the server's local zone. Behavior near midnight in the
// user's own zone is inherited as-is.
func (s *Service) scanWindow() (time.Time, time.Time) {
	now := s.now()
	start := time.Date(now.Year(), now.Month(), now.Day()-1, 0, 0, 0, 0, now.Location())
	end := time.Date(now.Year(), now.Month(), now.Day(), 23, 59, 59, 0, now.Location())
	return start, end
}

// Run executes one sync for the caller. A failure listing message IDs fails
// the whole call; a failure on any single message only drops that message.
// Result order is completion order and carries no guarantee.
func (s *Service) Run(ctx context.Context, userEmail, accessToken string) ([]model.AnalysisResult, error) {
	open, err := s.tasks.ListOpen(ctx, userEmail)
	if err != nil {
		return nil, fmt.Errorf("failed to load open tasks: %w", err)
	}
	existing := make([]string, 0, len(open))
	for _, t := range open {
		existing = append(existing, t.Text)
	}

	start, end := s.scanWindow()
	query := fmt.Sprintf("category:primary after:%d before:%d", start.Unix(), end.Unix())

	ids, err := s.mail.ListMessageIDs(ctx, accessToken, query)
	if err != nil {
		return nil, fmt.Errorf("failed to list inbox messages: %w", err)
	}
	if len(ids) == 0 {
		s.logger.Info("No messages in scan window", zap.String("user_email", userEmail))
		return []model.AnalysisResult{}, nil
	}

	s.logger.Info("Analyzing inbox messages",
		zap.String("user_email", userEmail),
		zap.Int("message_count", len(ids)),
		zap.Int("open_task_count", len(existing)),
	)

	slots := make([]*model.AnalysisResult, len(ids))
	var wg sync.WaitGroup
	for i, id := range ids {
		wg.Add(1)
		go func(i int, id string) {
			defer wg.Done()
			slots[i] = s.processMessage(ctx, accessToken, id, existing)
		}(i, id)
	}
	wg.Wait()

	results := make([]model.AnalysisResult, 0, len(ids))
	for _, r := range slots {
		if r != nil {
			results = append(results, *r)
		}
	}
	return results, nil
}

// processMessage handles one message end to end. Every failure path drops
// the message and returns nil; nothing here retries or aborts the batch.
func (s *Service) processMessage(ctx context.Context, accessToken, id string, existing []string) *model.AnalysisResult {
	msg, err := s.mail.GetMessage(ctx, accessToken, id)
	if err != nil {
		s.logger.Warn("Dropping message: detail fetch failed",
			zap.String("message_id", id),
			zap.Error(err),
		)
		metrics.IncrementEmailAnalyzed("dropped")
		return nil
	}

	from := "Unknown Sender"
	subject := "No Subject"
	if msg.Payload != nil {
		for _, h := range msg.Payload.Headers {
			switch h.Name {
			case "From":
				if h.Value != "" {
					from = h.Value
				}
			case "Subject":
				if h.Value != "" {
					subject = h.Value
				}
			}
		}
	}

	body := mail.ExtractPlainText(msg.Payload)
	if body == "" {
		s.logger.Debug("Dropping message: no plain-text body", zap.String("message_id", id))
		metrics.IncrementEmailAnalyzed("dropped")
		return nil
	}

	result, err := s.analyzer.Analyze(ctx, analyze.EmailContent{
		From:    from,
		Subject: subject,
		Body:    body,
	}, existing)
	if err != nil {
		s.logger.Warn("Dropping message: analysis failed",
			zap.String("message_id", id),
			zap.Error(err),
		)
		metrics.IncrementEmailAnalyzed("dropped")
		return nil
	}

	if result.Action != nil {
		metrics.IncrementEmailAnalyzed("actionable")
	} else {
		metrics.IncrementEmailAnalyzed("no_action")
	}
	return result
}
