// Package feedback records per-message ratings and serves per-session
// summaries of them.
package feedback

import (
	"context"
	"errors"
	"log/slog"
	"strings"

	"github.com/coworkhq/coworkd/internal/session"
	"github.com/coworkhq/coworkd/internal/store"
)

// ErrInvalidRating is returned when a rating is not positive or negative.
var ErrInvalidRating = errors.New("rating must be positive or negative")

const maxCommentLen = 2000

// Summary is the aggregate view over a session's feedback.
type Summary struct {
	Total    int `json:"total"`
	Positive int `json:"positive"`
	Negative int `json:"negative"`
}

// Aggregator validates and persists message feedback, and serves listings
// with their aggregate counts.
type Aggregator struct {
	log *slog.Logger
	st  *store.Store
}

// Options configures an Aggregator.
type Options struct {
	Logger *slog.Logger
	Store  *store.Store
}

func New(opts Options) (*Aggregator, error) {
	if opts.Store == nil {
		return nil, errors.New("missing store")
	}
	log := opts.Logger
	if log == nil {
		log = slog.Default()
	}
	return &Aggregator{log: log, st: opts.Store}, nil
}

// RecordRequest is one rating submission for one transcript message.
type RecordRequest struct {
	MessageID string `json:"messageId"`
	Rating    string `json:"rating"`
	Comment   string `json:"comment"`
}

// Record appends a feedback row for a session the caller owns. Re-rating the
// same message appends a new row; history is never rewritten.
func (a *Aggregator) Record(ctx context.Context, p session.Principal, sessionID string, req RecordRequest) (*store.Feedback, error) {
	if a == nil || a.st == nil {
		return nil, errors.New("aggregator not initialized")
	}
	req.MessageID = strings.TrimSpace(req.MessageID)
	req.Rating = strings.TrimSpace(req.Rating)
	req.Comment = strings.TrimSpace(req.Comment)
	if req.MessageID == "" {
		return nil, errors.New("missing messageId")
	}
	if !store.IsValidRating(req.Rating) {
		return nil, ErrInvalidRating
	}
	if len([]rune(req.Comment)) > maxCommentLen {
		req.Comment = string([]rune(req.Comment)[:maxCommentLen])
	}

	sess, err := a.st.GetSessionOwned(ctx, p.OrgID, p.UserID, sessionID)
	if err != nil {
		return nil, err
	}

	fb := &store.Feedback{
		SessionID: sess.SessionID,
		MessageID: req.MessageID,
		Rating:    req.Rating,
		Comment:   req.Comment,
	}
	if err := a.st.InsertFeedback(ctx, fb); err != nil {
		return nil, err
	}
	a.log.Info("feedback recorded", "feedback_id", fb.FeedbackID, "session_id", sess.SessionID, "rating", fb.Rating)
	return fb, nil
}

// ListForSession returns a session's feedback in creation order plus counts
// computed in the same pass.
func (a *Aggregator) ListForSession(ctx context.Context, p session.Principal, sessionID string) ([]store.Feedback, Summary, error) {
	if a == nil || a.st == nil {
		return nil, Summary{}, errors.New("aggregator not initialized")
	}
	sess, err := a.st.GetSessionOwned(ctx, p.OrgID, p.UserID, sessionID)
	if err != nil {
		return nil, Summary{}, err
	}
	items, err := a.st.ListFeedback(ctx, sess.SessionID)
	if err != nil {
		return nil, Summary{}, err
	}

	var sum Summary
	for _, fb := range items {
		sum.Total++
		switch fb.Rating {
		case store.RatingPositive:
			sum.Positive++
		case store.RatingNegative:
			sum.Negative++
		}
	}
	return items, sum, nil
}
