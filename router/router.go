// Package router implements the Upstream Router: selecting which
// configured UpstreamService to forward a request to, in
// priority order, retrying on retriable failures and stopping
// immediately on terminal ones.
//
// Grounded on circuitbreaker/health.go + circuitbreaker/breaker.go
// (failure-threshold circuit breaking, capped linear backoff, health
// gating) and proxy/handler.go's selectProvider/
// proxyWithImmediateFailover attempt-loop pattern, generalized from
// the teacher's fixed big-model/small-model split to spec.md §4.6's
// arbitrary priority-ordered candidate list.
package router

import (
	"context"
	"errors"
	"net"
	"net/http"
	"sort"

	"github.com/ImogeneOctaviap794/Toolify-code/circuitbreaker"
	"github.com/ImogeneOctaviap794/Toolify-code/types"
)

// ErrNoHealthyCandidate is returned when every priority-ordered
// candidate for a model was unhealthy, incomplete, or exhausted by
// retries.
var ErrNoHealthyCandidate = errors.New("router: no healthy upstream candidate for model")

// Router selects and iterates upstream candidates for a mapped model
// name, gating selection on a shared circuit breaker health manager.
type Router struct {
	services []types.UpstreamService
	health   *circuitbreaker.HealthManager
}

// New returns a Router over the given upstream services, sorted once
// by descending priority (stable, so configuration order breaks
// ties — spec.md §4.6: never reorder beyond this deterministic order).
func New(services []types.UpstreamService, health *circuitbreaker.HealthManager) *Router {
	sorted := make([]types.UpstreamService, len(services))
	copy(sorted, services)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].Priority > sorted[j].Priority
	})
	return &Router{services: sorted, health: health}
}

// Candidates returns the priority-ordered upstreams eligible for the
// given (already client-mapped) model name: models set empty or
// containing the model, and a non-empty API key configured.
func (r *Router) Candidates(model string) []types.UpstreamService {
	var out []types.UpstreamService
	for _, s := range r.services {
		if s.APIKey == "" {
			continue
		}
		if !s.MatchesModel(model) {
			continue
		}
		out = append(out, s)
	}
	return out
}

// FailureClass categorizes an attempt's outcome for the router's
// retry decision (spec.md §4.6).
type FailureClass int

const (
	// ClassSuccess: 2xx, or any complete response body. Terminal.
	ClassSuccess FailureClass = iota
	// ClassClientError: 4xx except 429. Terminal — the request itself
	// is what's wrong, retrying another upstream won't help.
	ClassClientError
	// ClassRetriable: 429, 5xx, or a network-level error. Try the next
	// candidate.
	ClassRetriable
)

// ClassifyHTTPStatus maps an upstream HTTP status code to a
// FailureClass.
func ClassifyHTTPStatus(status int) FailureClass {
	switch {
	case status == http.StatusTooManyRequests:
		return ClassRetriable
	case status >= 500:
		return ClassRetriable
	case status >= 400:
		return ClassClientError
	default:
		return ClassSuccess
	}
}

// ClassifyError categorizes a transport-level error (no HTTP status
// at all) as retriable unless the caller's context was canceled or
// deadline-exceeded, which is never worth retrying against a
// different upstream.
func ClassifyError(err error) FailureClass {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return ClassClientError
	}
	var netErr net.Error
	if errors.As(err, &netErr) {
		return ClassRetriable
	}
	return ClassRetriable
}

// Attempt is one candidate's outcome, reported back to the router so
// it can record circuit breaker health and decide whether to continue.
type Attempt struct {
	Service types.UpstreamService
	Class   FailureClass
	Err     error
}

// Attemptor performs one forwarding attempt against a candidate
// upstream and reports its outcome. The router calls it once per
// candidate, in priority order, until one succeeds, one fails with a
// terminal class, or candidates are exhausted.
type Attemptor func(ctx context.Context, svc types.UpstreamService) Attempt

// Forward iterates candidates for model, invoking attempt for each in
// priority order, recording circuit breaker health as it goes, and
// stopping at the first success or terminal failure. streamingStarted
// reports, when non-nil, whether any bytes have already been written
// to the client — per spec.md §4.6, a streaming request may only fail
// over to the next candidate before the first byte reaches the client.
func (r *Router) Forward(ctx context.Context, model string, attempt Attemptor, streamingStarted func() bool) (Attempt, error) {
	candidates := r.Candidates(model)
	if len(candidates) == 0 {
		return Attempt{}, ErrNoHealthyCandidate
	}

	var last Attempt
	for _, svc := range candidates {
		if r.health != nil && !r.health.IsHealthy(svc.Name) {
			continue
		}

		result := attempt(ctx, svc)
		last = result

		switch result.Class {
		case ClassSuccess:
			if r.health != nil {
				r.health.RecordSuccess(svc.Name)
			}
			return result, nil
		case ClassClientError:
			// Terminal: the client's request is what's wrong.
			return result, nil
		case ClassRetriable:
			if r.health != nil {
				r.health.RecordFailure(svc.Name)
			}
			if streamingStarted != nil && streamingStarted() {
				// Already streamed to the client; cannot fail over.
				return result, nil
			}
			continue
		}
	}

	if last.Err == nil {
		last.Err = ErrNoHealthyCandidate
	}
	return last, ErrNoHealthyCandidate
}

// HealthSnapshot is a read-only view of per-upstream health for
// metrics/debug endpoints. It never feeds back into candidate
// ordering — see DESIGN.md for why success-rate-based reordering is
// not part of candidate selection.
type HealthSnapshot struct {
	Name        string
	Healthy     bool
	SuccessRate float64
}

// Snapshot reports current health for every configured upstream.
func (r *Router) Snapshot() []HealthSnapshot {
	out := make([]HealthSnapshot, 0, len(r.services))
	for _, s := range r.services {
		healthy := true
		rate := 1.0
		if r.health != nil {
			healthy = r.health.IsHealthy(s.Name)
			rate = r.health.CalculateSuccessRate(s.Name)
		}
		out = append(out, HealthSnapshot{Name: s.Name, Healthy: healthy, SuccessRate: rate})
	}
	return out
}
