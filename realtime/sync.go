package realtime

import (
	"context"
	"errors"
	"net/http"

	"go.opentelemetry.io/otel/attribute"

	apperrors "github.com/kbukum/pbkit/errors"
	"github.com/kbukum/pbkit/httpclient"
	"github.com/kbukum/pbkit/logger"
	"github.com/kbukum/pbkit/observability"
)

type submission struct {
	ClientID      string   `json:"clientId"`
	Subscriptions []string `json:"subscriptions"`
}

// cancelKey groups submissions of one client so a newer one aborts an
// older one still in flight.
func cancelKey(clientID string) string {
	return "realtime_" + clientID
}

// submitSubscriptions rebinds every listener on the transport and sends
// the full topic set to the server. Without a live session it does
// nothing. A failed submission leaves the registry drifted so the next
// one resends every topic.
func (r *Realtime) submitSubscriptions(ctx context.Context) error {
	r.mu.Lock()
	if !r.canSubmitLocked() {
		r.mu.Unlock()
		return nil
	}
	r.detachAllLocked()
	r.attachAllLocked()
	topics := r.subs.markSent()
	sendGen := r.subs.sendGen
	clientID := r.clientID
	r.mu.Unlock()

	err := r.post(ctx, clientID, topics)
	if err != nil {
		r.mu.Lock()
		r.subs.forgetSent(sendGen)
		r.mu.Unlock()
	}
	return err
}

func (r *Realtime) post(ctx context.Context, clientID string, topics []string) error {
	key := cancelKey(clientID)
	ctx, op := observability.StartOperation(ctx, observability.SpanRealtimeSubmit, nil,
		attribute.String(observability.AttrClientID, clientID),
		attribute.Int(observability.AttrTopicCount, len(topics)),
	)

	_, err := r.doer.Do(ctx, httpclient.Request{
		Method:    http.MethodPost,
		Path:      r.cfg.Path,
		Body:      submission{ClientID: clientID, Subscriptions: topics},
		Query:     map[string]string{"$cancelKey": key},
		CancelKey: key,
	})
	if err != nil && httpclient.IsCancelled(err) && ctx.Err() == nil {
		// Superseded by a newer submission that carries the current set.
		err = nil
	}
	err = apiError(err)

	op.End(err)
	r.metrics.submission(ctx, err)
	if err != nil {
		r.log.Warn("Subscription submit failed", logger.Fields(
			logger.FieldClientID, clientID,
			logger.FieldError, err.Error(),
		))
		return err
	}
	r.log.Debug("Subscriptions submitted", logger.Fields(
		logger.FieldClientID, clientID,
		logger.FieldTopics, topics,
		logger.FieldDuration, op.Duration().Milliseconds(),
	))
	return nil
}

// apiError surfaces a backend error envelope as an AppError.
func apiError(err error) error {
	var he *httpclient.Error
	if err == nil || !errors.As(err, &he) || he.StatusCode == 0 {
		return err
	}
	return apperrors.FromAPI(he.StatusCode, he.Body).WithCause(err)
}

// syncAfterConnect runs once per handshake: submit, then resubmit while
// the topic set keeps drifting, at most MaxResubmits more times. This
// narrows but does not close the window for a subscribe racing the
// submission.
func (r *Realtime) syncAfterConnect(ctx context.Context, gen uint64) {
	r.mu.Lock()
	attempt := r.attempts
	clientID := r.clientID
	r.mu.Unlock()

	ctx, op := observability.StartOperation(ctx, observability.SpanRealtimeConnect, nil,
		attribute.String(observability.AttrClientID, clientID),
		attribute.Int(observability.AttrAttempt, attempt),
	)
	err := r.submitSubscriptions(ctx)
	for retries := r.cfg.MaxResubmits; err == nil && retries > 0 && r.HasUnsentSubscriptions(); retries-- {
		err = r.submitSubscriptions(ctx)
	}
	op.End(err)

	r.mu.Lock()
	if gen != r.gen {
		r.mu.Unlock()
		return
	}
	r.syncing = false
	if err != nil {
		r.clientID = ""
		r.mu.Unlock()
		r.handleError(gen, err)
		return
	}

	pending := r.pending
	r.pending = nil
	r.attempts = 0
	r.connecting = false
	r.stopTimersLocked()
	topics := r.subs.len()
	r.mu.Unlock()

	rejectAll(pending, nil)
	r.log.Info("Realtime connected", logger.Fields(
		logger.FieldClientID, clientID,
		logger.FieldTopics, topics,
	))
}
