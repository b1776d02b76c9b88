package notify

import (
	"context"
	"fmt"
	"log/slog"

	firebase "firebase.google.com/go/v4"
	"firebase.google.com/go/v4/messaging"
	"google.golang.org/api/option"
)

// fcmMulticastLimit is the token cap of one FCM multicast request.
const fcmMulticastLimit = 500

// FCMNotifier delivers notifications through Firebase Cloud Messaging.
type FCMNotifier struct {
	client *messaging.Client
	logger *slog.Logger
}

// NewFCMNotifier initialises the Firebase Admin SDK messaging client.
// If credentialsFile is empty, application-default credentials are used.
func NewFCMNotifier(ctx context.Context, projectID, credentialsFile string, logger *slog.Logger) (*FCMNotifier, error) {
	opts := []option.ClientOption{}
	if credentialsFile != "" {
		opts = append(opts, option.WithCredentialsFile(credentialsFile))
	}
	app, err := firebase.NewApp(ctx, &firebase.Config{ProjectID: projectID}, opts...)
	if err != nil {
		return nil, fmt.Errorf("initialising firebase app: %w", err)
	}
	client, err := app.Messaging(ctx)
	if err != nil {
		return nil, fmt.Errorf("initialising firebase messaging client: %w", err)
	}
	return &FCMNotifier{client: client, logger: logger}, nil
}

// Notify sends one notification to every token, in chunks of the multicast limit.
// A transport error on one chunk is counted as failure of all its tokens.
func (n *FCMNotifier) Notify(ctx context.Context, tokens []string, title, body string, data map[string]string) (BatchResult, error) {
	var result BatchResult
	var firstErr error

	for start := 0; start < len(tokens); start += fcmMulticastLimit {
		end := min(start+fcmMulticastLimit, len(tokens))
		chunk := tokens[start:end]

		resp, err := n.client.SendEachForMulticast(ctx, &messaging.MulticastMessage{
			Tokens:       chunk,
			Data:         data,
			Notification: &messaging.Notification{Title: title, Body: body},
			Android:      &messaging.AndroidConfig{Priority: "high"},
		})
		if err != nil {
			if firstErr == nil {
				firstErr = fmt.Errorf("sending FCM multicast: %w", err)
			}
			result.Merge(BatchResult{FailureCount: len(chunk), FailedTokens: chunk})
			continue
		}

		part := BatchResult{SuccessCount: resp.SuccessCount, FailureCount: resp.FailureCount}
		for i, r := range resp.Responses {
			if !r.Success {
				part.FailedTokens = append(part.FailedTokens, chunk[i])
				n.logger.DebugContext(ctx, "fcm token failed", "error", r.Error)
			}
		}
		result.Merge(part)
	}

	return result, firstErr
}
