package realtime

import (
	"context"
	"errors"
	"slices"
	"time"

	"github.com/kbukum/pbkit/logger"
)

var errMissingClientID = errors.New("realtime: connect event carried no client id")

// Connect opens the event stream and waits until the topic set has been
// submitted. Concurrent callers share one physical attempt. While a
// background reconnect is in progress Connect returns nil immediately.
func (r *Realtime) Connect(ctx context.Context) error {
	r.mu.Lock()
	if r.attempts > 0 || r.isConnectedLocked() {
		r.mu.Unlock()
		return nil
	}

	done := make(chan error, 1)
	r.pending = append(r.pending, done)

	var (
		gen     uint64
		dialErr error
	)
	if !r.connecting {
		gen, dialErr = r.initConnectLocked()
	}
	r.mu.Unlock()

	if dialErr != nil {
		r.handleError(gen, dialErr)
	}

	select {
	case err := <-done:
		return err
	case <-ctx.Done():
		r.removePending(done)
		return ctx.Err()
	}
}

// IsConnected reports whether a stream is open, the server assigned a
// client id and no caller is still waiting for the handshake.
func (r *Realtime) IsConnected() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.isConnectedLocked()
}

// ClientID returns the id assigned by the server, or "" when not connected.
func (r *Realtime) ClientID() string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.clientID
}

// State returns the current lifecycle state.
func (r *Realtime) State() State {
	r.mu.Lock()
	defer r.mu.Unlock()

	switch {
	case r.attempts > 0:
		return StateReconnecting
	case r.transport == nil && !r.connecting:
		return StateDisconnected
	case r.clientID != "" && r.syncing:
		return StateSyncing
	case r.clientID != "" && len(r.pending) == 0:
		return StateConnected
	default:
		return StateConnecting
	}
}

// Disconnect closes the stream, keeps the registered subscriptions and
// fails every caller still waiting on Connect with ErrDisconnected.
func (r *Realtime) Disconnect() {
	r.mu.Lock()
	pending := r.disconnectLocked(false)
	r.mu.Unlock()

	rejectAll(pending, ErrDisconnected)
	r.log.Debug("Realtime disconnected")
}

func (r *Realtime) isConnectedLocked() bool {
	return r.transport != nil && r.clientID != "" && len(r.pending) == 0
}

func (r *Realtime) canSubmitLocked() bool {
	return r.transport != nil && r.clientID != ""
}

// initConnectLocked tears down whatever is left and starts a physical
// attempt. The returned generation identifies it.
func (r *Realtime) initConnectLocked() (uint64, error) {
	r.teardownLocked()

	gen := r.gen
	r.genCtx, r.genCancel = context.WithCancel(context.Background())
	r.connecting = true
	r.connectTimer = time.AfterFunc(r.cfg.ConnectTimeout, func() {
		r.handleError(gen, ErrConnectTimeout)
	})
	r.metrics.connectAttempt()

	t, err := r.dialer.Dial(r.genCtx, Hooks{
		OnConnect: func(clientID string) { r.handleConnect(gen, clientID) },
		OnError:   func(err error) { r.handleError(gen, err) },
	})
	if err != nil {
		return gen, err
	}
	r.transport = t
	return gen, nil
}

func (r *Realtime) handleConnect(gen uint64, clientID string) {
	r.mu.Lock()
	if gen != r.gen {
		r.mu.Unlock()
		return
	}
	if clientID == "" {
		r.mu.Unlock()
		r.handleError(gen, errMissingClientID)
		return
	}
	r.clientID = clientID
	r.syncing = true
	ctx := r.genCtx
	r.mu.Unlock()

	r.log.Debug("Realtime stream opened", logger.Fields(logger.FieldClientID, clientID))
	go r.syncAfterConnect(ctx, gen)
}

// handleError classifies a failure of attempt gen. A session that never
// got a client id, or that ran out of reconnects, fails every waiting
// caller; anything else reconnects in the background.
func (r *Realtime) handleError(gen uint64, err error) {
	r.mu.Lock()
	if gen != r.gen {
		r.mu.Unlock()
		return
	}
	r.stopTimersLocked()

	if (r.clientID == "" && r.attempts == 0) || r.attempts > r.cfg.MaxReconnectAttempts {
		attempts := r.attempts
		pending := r.disconnectLocked(false)
		r.mu.Unlock()

		r.log.Warn("Realtime connection failed", logger.Fields(
			logger.FieldError, err.Error(),
			logger.FieldAttempt, attempts,
		))
		rejectAll(pending, err)
		return
	}

	r.teardownLocked()
	delay := r.cfg.ReconnectIntervals.Delay(r.attempts)
	r.attempts++
	attempt := r.attempts
	timerGen := r.gen
	r.reconnectTimer = time.AfterFunc(delay, func() { r.reconnect(timerGen) })
	r.mu.Unlock()

	r.metrics.reconnect()
	r.log.Warn("Realtime connection lost, reconnecting", logger.Fields(
		logger.FieldError, err.Error(),
		logger.FieldAttempt, attempt,
		logger.FieldDelay, delay.Milliseconds(),
	))
}

func (r *Realtime) reconnect(timerGen uint64) {
	r.mu.Lock()
	if timerGen != r.gen {
		r.mu.Unlock()
		return
	}
	gen, err := r.initConnectLocked()
	r.mu.Unlock()

	if err != nil {
		r.handleError(gen, err)
	}
}

// teardownLocked drops the current physical connection and invalidates
// every callback bound to it.
func (r *Realtime) teardownLocked() {
	r.stopTimersLocked()
	r.detachAllLocked()
	if r.transport != nil {
		_ = r.transport.Close()
		r.transport = nil
	}
	if r.genCancel != nil {
		r.genCancel()
		r.genCancel = nil
	}
	r.clientID = ""
	r.syncing = false
	r.gen++
}

// disconnectLocked tears down the connection. Unless fromReconnect, it
// also resets the attempt counter and hands back the waiting callers for
// the caller to reject outside the lock.
func (r *Realtime) disconnectLocked(fromReconnect bool) []chan error {
	r.teardownLocked()
	if fromReconnect {
		return nil
	}
	r.attempts = 0
	r.connecting = false
	pending := r.pending
	r.pending = nil
	return pending
}

func (r *Realtime) stopTimersLocked() {
	if r.connectTimer != nil {
		r.connectTimer.Stop()
		r.connectTimer = nil
	}
	if r.reconnectTimer != nil {
		r.reconnectTimer.Stop()
		r.reconnectTimer = nil
	}
}

func (r *Realtime) removePending(done chan error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.pending = slices.DeleteFunc(r.pending, func(ch chan error) bool { return ch == done })
}

func (r *Realtime) attachLocked(l *Listener) {
	if r.transport == nil || l.attached {
		return
	}
	r.transport.On(l.topic, l)
	l.attached = true
}

func (r *Realtime) detachLocked(l *Listener) {
	if r.transport == nil || !l.attached {
		l.attached = false
		return
	}
	r.transport.Off(l.topic, l)
	l.attached = false
}

func (r *Realtime) attachAllLocked() {
	r.subs.each(func(_ string, l *Listener) { r.attachLocked(l) })
}

func (r *Realtime) detachAllLocked() {
	r.subs.each(func(_ string, l *Listener) { r.detachLocked(l) })
}

// rejectAll settles waiting callers in queue order. A nil err resolves them.
func rejectAll(pending []chan error, err error) {
	for _, ch := range pending {
		ch <- err
	}
}
