package mail

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"
	"golang.org/x/oauth2"
	"google.golang.org/api/gmail/v1"
	"google.golang.org/api/option"

	"inboxintel/pkg/metrics"
)

const gmailUser = "me"

// Client is a thin wrapper over the Gmail REST API. Every call authenticates
// with the caller's own access token, so one Client serves all sessions.
type Client struct {
	logger *zap.Logger
	opts   []option.ClientOption
}

// NewClient builds a Gmail client. Extra options are appended to every
// service construction; tests use them to point at a local server.
func NewClient(logger *zap.Logger, opts ...option.ClientOption) *Client {
	return &Client{logger: logger, opts: opts}
}

func (c *Client) service(ctx context.Context, accessToken string) (*gmail.Service, error) {
	ts := oauth2.StaticTokenSource(&oauth2.Token{AccessToken: accessToken, TokenType: "Bearer"})
	opts := append([]option.ClientOption{option.WithTokenSource(ts)}, c.opts...)
	srv, err := gmail.NewService(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("unable to create Gmail service: %w", err)
	}
	return srv, nil
}

// ListMessageIDs returns the IDs of every message matching the Gmail search
// query, following pagination to the end.
func (c *Client) ListMessageIDs(ctx context.Context, accessToken, query string) ([]string, error) {
	srv, err := c.service(ctx, accessToken)
	if err != nil {
		return nil, err
	}

	var ids []string
	pageToken := ""
	for {
		call := srv.Users.Messages.List(gmailUser).Q(query).Context(ctx)
		if pageToken != "" {
			call = call.PageToken(pageToken)
		}

		start := time.Now()
		resp, err := call.Do()
		if err != nil {
			metrics.RecordGmailCallLatency("list", "error", time.Since(start))
			c.logger.Error("Gmail message list failed", zap.String("query", query), zap.Error(err))
			return nil, fmt.Errorf("failed to list messages: %w", err)
		}
		metrics.RecordGmailCallLatency("list", "success", time.Since(start))

		for _, m := range resp.Messages {
			ids = append(ids, m.Id)
		}
		if resp.NextPageToken == "" {
			break
		}
		pageToken = resp.NextPageToken
	}

	c.logger.Info("Gmail messages listed",
		zap.String("query", query),
		zap.Int("count", len(ids)),
	)
	return ids, nil
}

// GetMessage fetches one message with its full payload tree.
func (c *Client) GetMessage(ctx context.Context, accessToken, id string) (*gmail.Message, error) {
	srv, err := c.service(ctx, accessToken)
	if err != nil {
		return nil, err
	}

	start := time.Now()
	msg, err := srv.Users.Messages.Get(gmailUser, id).Format("full").Context(ctx).Do()
	if err != nil {
		metrics.RecordGmailCallLatency("get", "error", time.Since(start))
		return nil, fmt.Errorf("failed to fetch message %s: %w", id, err)
	}
	metrics.RecordGmailCallLatency("get", "success", time.Since(start))
	return msg, nil
}
