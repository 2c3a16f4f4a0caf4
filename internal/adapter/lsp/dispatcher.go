package lsp

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
)

// Call sends a request and blocks until the response with the matching id
// arrives or ctx expires. It requires the session to be Ready. A deadline
// expiry surfaces as ErrTimeout and leaves the session Ready with the id
// abandoned; ids are never reused.
func (s *Session) Call(ctx context.Context, method string, params any) (json.RawMessage, error) {
	if s.State() != StateReady {
		return nil, fmt.Errorf("%w: %s", ErrNotReady, method)
	}
	return s.roundTrip(ctx, method, params)
}

// Notify sends a notification and does not await any reply. Success means
// the bytes were handed to the transport; delivery is unconfirmed.
func (s *Session) Notify(method string, params any) error {
	if s.State() != StateReady {
		return fmt.Errorf("%w: %s", ErrNotReady, method)
	}
	msg, err := newNotification(method, params)
	if err != nil {
		return fmt.Errorf("notify %s: %w", method, err)
	}
	if err := s.framer.WriteMessage(msg); err != nil {
		return fmt.Errorf("notify %s: %w", method, err)
	}
	return nil
}

// roundTrip performs one correlated exchange. It is ungated so the
// handshake can use it before the session is Ready.
func (s *Session) roundTrip(ctx context.Context, method string, params any) (json.RawMessage, error) {
	id := s.nextID.Add(1)
	msg, err := newRequest(id, method, params)
	if err != nil {
		return nil, fmt.Errorf("call %s: %w", method, err)
	}

	ch := make(chan *Message, 1)
	s.pendMu.Lock()
	s.pending[id] = ch
	s.pendMu.Unlock()

	defer func() {
		s.pendMu.Lock()
		delete(s.pending, id)
		s.pendMu.Unlock()
	}()

	if err := s.framer.WriteMessage(msg); err != nil {
		return nil, fmt.Errorf("call %s: %w", method, err)
	}

	select {
	case resp := <-ch:
		if resp.Error != nil {
			return nil, resp.Error
		}
		return resp.Result, nil
	case <-ctx.Done():
		if errors.Is(ctx.Err(), context.DeadlineExceeded) {
			return nil, fmt.Errorf("%w: %s", ErrTimeout, method)
		}
		return nil, ctx.Err()
	case <-s.done:
		return nil, ErrSessionClosed
	}
}
