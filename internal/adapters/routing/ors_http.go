package routing

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"strconv"
	"strings"
	"time"
)

// maxRetryAfter caps the wait a 429 response may ask for.
const maxRetryAfter = 5 * time.Second

// ORSError is a failed directions call. Code and Message come from the
// ORS error body when it has one, e.g. {"error":{"code":2010,"message":"..."}}.
type ORSError struct {
	Status  int
	Code    int
	Message string

	retryAfter time.Duration
}

func (e *ORSError) Error() string {
	if e.Code != 0 {
		return fmt.Sprintf("ors status %d, code %d: %s", e.Status, e.Code, e.Message)
	}
	return fmt.Sprintf("ors status %d: %s", e.Status, e.Message)
}

// Transient reports whether the call may succeed when repeated.
func (e *ORSError) Transient() bool {
	return e.Status == http.StatusTooManyRequests || e.Status >= 500
}

// NoRoute reports the ORS codes for waypoints that cannot be routed
// (2009 route not found, 2010 point not found).
func (e *ORSError) NoRoute() bool { return e.Code == 2009 || e.Code == 2010 }

func decodeORSError(resp *http.Response) *ORSError {
	b, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
	out := &ORSError{Status: resp.StatusCode, Message: strings.TrimSpace(string(b))}

	var body struct {
		Error json.RawMessage `json:"error"`
	}
	if json.Unmarshal(b, &body) == nil && len(body.Error) > 0 {
		var detail struct {
			Code    int    `json:"code"`
			Message string `json:"message"`
		}
		var text string
		switch {
		case json.Unmarshal(body.Error, &detail) == nil && detail.Message != "":
			out.Code, out.Message = detail.Code, detail.Message
		case json.Unmarshal(body.Error, &text) == nil && text != "":
			out.Message = text
		}
	}

	if s := resp.Header.Get("Retry-After"); s != "" {
		if secs, err := strconv.Atoi(s); err == nil && secs > 0 {
			out.retryAfter = min(time.Duration(secs)*time.Second, maxRetryAfter)
		}
	}
	return out
}

// postDirections sends payload to endpoint and returns the response body.
// Network errors and transient ORS errors are retried with exponential
// backoff; a Retry-After header replaces the backoff for that attempt.
func (o *ORSRouter) postDirections(ctx context.Context, endpoint string, payload []byte) ([]byte, error) {
	backoff := o.backoff
	var lastErr error

	for attempt := 1; attempt <= o.maxAttempts; attempt++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		body, wait, err := o.postOnce(ctx, endpoint, payload)
		if err == nil {
			return body, nil
		}
		lastErr = err

		var oe *ORSError
		var netErr net.Error
		retry := (errors.As(err, &oe) && oe.Transient()) || errors.As(err, &netErr)
		if !retry || attempt == o.maxAttempts {
			break
		}

		if wait == 0 {
			wait = backoff
			backoff *= 2
		}
		o.logger.Debug("ors directions retry", "attempt", attempt, "wait", wait, "err", err)

		timer := time.NewTimer(wait)
		select {
		case <-ctx.Done():
			timer.Stop()
			return nil, ctx.Err()
		case <-timer.C:
		}
	}
	return nil, lastErr
}

func (o *ORSRouter) postOnce(ctx context.Context, endpoint string, payload []byte) ([]byte, time.Duration, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(payload))
	if err != nil {
		return nil, 0, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Authorization", o.apiKey)
	req.Header.Set("Accept", "application/geo+json, application/json")
	req.Header.Set("Content-Type", "application/json; charset=utf-8")

	resp, err := o.session.Do(req)
	if err != nil {
		return nil, 0, err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		oe := decodeORSError(resp)
		return nil, oe.retryAfter, oe
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, 0, fmt.Errorf("read directions response: %w", err)
	}
	return body, 0, nil
}
