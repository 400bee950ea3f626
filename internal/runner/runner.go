// Package runner executes a compiled scenario plan against a live
// target: a pool of virtual users runs full sessions concurrently,
// step results are aggregated into statistics and persisted as
// per-request metrics.
package runner

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"math/rand"
	"net"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"

	"github.com/studiowebux/loadcli/internal/assert"
	"github.com/studiowebux/loadcli/internal/extract"
	"github.com/studiowebux/loadcli/internal/results"
	"github.com/studiowebux/loadcli/internal/scenario"
	"github.com/studiowebux/loadcli/internal/session"
	"github.com/studiowebux/loadcli/internal/template"
	"github.com/studiowebux/loadcli/internal/types"
)

const (
	// HTTP client configuration timeouts
	TCPDialTimeout        = 5 * time.Second
	TCPKeepAliveInterval  = 30 * time.Second
	TLSHandshakeTimeout   = 5 * time.Second
	IdleConnTimeout       = 90 * time.Second
	ExpectContinueTimeout = 1 * time.Second
	ShutdownGracePeriod   = 100 * time.Millisecond
)

// SessionTask represents a single session to be executed by a worker
type SessionTask struct {
	SessionNum  int
	StartOffset time.Duration
}

// stepResult carries the outcome of one dispatched step to the collector
type stepResult struct {
	SessionNum       int
	StepID           string
	StatusCode       int
	DurationMs       int64
	ElapsedMs        int64
	RequestSize      int64
	ResponseSize     int64
	DispatchError    string
	AssertionFailure string
	Timestamp        time.Time
}

// extractor is satisfied by both the full and the legacy extraction engines
type extractor interface {
	Apply(specs map[string]types.ExtractionSpec, result *types.RequestResult, store *session.Store)
}

// Executor handles concurrent load run execution
type Executor struct {
	config        *Config
	plan          *scenario.Plan
	manager       *results.Manager
	run           *results.Run
	stats         *Stats
	seed          int64
	log           zerolog.Logger
	ctx           context.Context
	cancelFunc    context.CancelFunc
	wg            sync.WaitGroup
	workersReady  sync.WaitGroup
	sessionChan   chan *SessionTask
	resultChan    chan *stepResult
	closeOnce     sync.Once // Ensures resultChan is only closed once
	runStart      time.Time
	statsMu       sync.Mutex
	sessionsSent  int   // Actual number of sessions queued
	activeWorkers int32 // Atomic counter for active workers
	metricsBuf    []*results.Metric
	bufferSize    int
	httpClient    *http.Client // Shared HTTP client with connection pooling
}

// NewExecutor creates a new load run executor and its run record
func NewExecutor(plan *scenario.Plan, config *Config, manager *results.Manager, log zerolog.Logger) (*Executor, error) {
	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	// Seed 0 means non-reproducible: derive from the wall clock.
	seed := config.Seed
	if seed == 0 {
		seed = time.Now().UnixNano()
	}

	ctx, cancel := context.WithCancel(context.Background())

	run := &results.Run{
		ScenarioName:  plan.Definition.Name,
		Mode:          string(plan.Mode),
		Seed:          seed,
		StartedAt:     time.Now(),
		Status:        "running",
		TotalSessions: config.Sessions,
	}

	if err := manager.CreateRun(run); err != nil {
		cancel()
		return nil, fmt.Errorf("failed to create run record: %w", err)
	}

	stats := NewStats()
	stats.TotalSessions = config.Sessions

	return &Executor{
		config:      config,
		plan:        plan,
		manager:     manager,
		run:         run,
		stats:       stats,
		seed:        seed,
		log:         log,
		ctx:         ctx,
		cancelFunc:  cancel,
		sessionChan: make(chan *SessionTask, config.Users*2),
		resultChan:  make(chan *stepResult, config.Users*2),
		metricsBuf:  make([]*results.Metric, 0, 100),
		bufferSize:  100,
		httpClient:  buildLoadHTTPClient(config),
	}, nil
}

// Start begins the load run execution
func (e *Executor) Start() {
	e.runStart = time.Now()

	// Signal we need N workers to be ready before scheduling
	e.workersReady.Add(e.config.Users)

	// Start virtual user goroutines
	for i := 0; i < e.config.Users; i++ {
		e.wg.Add(1)
		go e.worker()
	}

	// Start result collector
	go e.collectResults()

	// Wait for all workers to be ready, then schedule sessions.
	// This prevents the channel closing before workers start.
	go func() {
		done := make(chan struct{})
		go func() {
			e.workersReady.Wait()
			close(done)
		}()

		select {
		case <-done:
			e.scheduleSessions()
		case <-e.ctx.Done():
			return
		}
	}()

	// Start duration timer if run duration is set
	runDuration := e.config.GetRunDuration()
	if runDuration > 0 {
		go e.durationTimer(runDuration)
	}
}

// durationTimer cancels the run after the specified duration
func (e *Executor) durationTimer(duration time.Duration) {
	select {
	case <-time.After(duration):
		e.cancelFunc()
	case <-e.ctx.Done():
		return
	}
}

// scheduleSessions queues sessions with optional ramp-up offsets
func (e *Executor) scheduleSessions() {
	rampUpPerSession := time.Duration(0)
	totalSessions := e.config.Sessions
	rampUpDuration := e.config.GetRampUpDuration()

	if rampUpDuration > 0 && totalSessions > 0 {
		rampUpPerSession = rampUpDuration / time.Duration(totalSessions)
	}

	for i := 0; i < totalSessions; i++ {
		select {
		case <-e.ctx.Done():
			close(e.sessionChan)
			return
		case e.sessionChan <- &SessionTask{
			SessionNum:  i,
			StartOffset: time.Duration(i) * rampUpPerSession,
		}:
			e.statsMu.Lock()
			e.sessionsSent++
			e.statsMu.Unlock()
		}
	}

	close(e.sessionChan)
}

// worker runs whole sessions from the session channel
func (e *Executor) worker() {
	defer e.wg.Done()

	// Signal this worker is ready to receive tasks
	e.workersReady.Done()

	for {
		select {
		case <-e.ctx.Done():
			return
		case task, ok := <-e.sessionChan:
			if !ok {
				return
			}

			// Wait for ramp-up offset if needed
			if task.StartOffset > 0 {
				select {
				case <-e.ctx.Done():
					return
				case <-time.After(task.StartOffset):
				}
			}

			atomic.AddInt32(&e.activeWorkers, 1)
			completed := e.runSession(task.SessionNum)
			atomic.AddInt32(&e.activeWorkers, -1)

			if completed {
				e.statsMu.Lock()
				e.stats.CompletedSessions++
				e.statsMu.Unlock()
			}
		}
	}
}

// runSession executes every step of the plan for one virtual session.
// Returns false when the session was interrupted by cancellation.
func (e *Executor) runSession(sessionNum int) bool {
	// Each session gets its own deterministic generator so runs with
	// the same seed replay the same fixture rows and random values
	// regardless of worker interleaving.
	rng := rand.New(rand.NewSource(e.seed + int64(sessionNum)))

	log := e.log.With().Int("session", sessionNum).Logger()
	store := session.NewStore(e.plan.Definition.DataSources, e.plan.Tables, rng, log)
	tmpl := template.NewEngine(store, log)
	asserter := assert.NewEngine(log)

	var ex extractor
	if e.plan.Mode == scenario.ModeFull {
		ex = extract.NewEngine(log)
	} else {
		ex = extract.NewLegacyEngine(log)
	}

	for i, step := range e.plan.Steps {
		select {
		case <-e.ctx.Done():
			return false
		default:
		}

		stepURL := tmpl.Resolve(step.URL)
		headers := tmpl.ResolveMap(step.Headers)
		params := tmpl.ResolveMap(step.Params)

		body := ""
		if step.Body != nil {
			body = tmpl.ResolveBody(step.Body)
		}

		stepURL = appendQueryParams(stepURL, params)
		headers = withDefaultHeaders(headers, body)

		start := time.Now()
		result := e.dispatch(step.Method, stepURL, headers, body)
		elapsed := time.Since(e.runStart)

		sr := &stepResult{
			SessionNum:    sessionNum,
			StepID:        step.ID,
			StatusCode:    result.Status,
			DurationMs:    result.Duration,
			ElapsedMs:     elapsed.Milliseconds(),
			RequestSize:   int64(result.RequestSize),
			ResponseSize:  int64(result.ResponseSize),
			DispatchError: result.Error,
			Timestamp:     start,
		}

		// Extraction and assertions only apply to responses that arrived.
		if result.Error == "" {
			ex.Apply(step.Extract, result, store)

			failures := asserter.Evaluate(step.Assertions, result)
			outcome := &types.StepOutcome{
				StepID:     step.ID,
				StepName:   step.Name,
				Status:     result.Status,
				DurationMs: result.Duration,
				Failures:   failures,
			}
			sr.AssertionFailure = outcome.FailureMessage()
			if !outcome.Passed() {
				log.Debug().Str("step", step.ID).Str("failures", sr.AssertionFailure).
					Msg("step assertions failed")
			}
		} else {
			log.Debug().Str("step", step.ID).Str("error", result.Error).
				Msg("step dispatch failed")
		}

		select {
		case <-e.ctx.Done():
			return false
		case e.resultChan <- sr:
		}

		// Pace between steps, never after the last one
		if i < len(e.plan.Steps)-1 {
			if !e.waitBetweenSteps(rng) {
				return false
			}
		}
	}

	return true
}

// waitBetweenSteps sleeps for a uniformly random duration within the
// scenario's wait bounds. Returns false if the run was cancelled.
func (e *Executor) waitBetweenSteps(rng *rand.Rand) bool {
	minWait := e.plan.Definition.MinWaitMs
	maxWait := e.plan.Definition.MaxWaitMs
	if maxWait <= 0 {
		return true
	}

	wait := minWait
	if maxWait > minWait {
		wait += rng.Intn(maxWait - minWait + 1)
	}
	if wait <= 0 {
		return true
	}

	select {
	case <-e.ctx.Done():
		return false
	case <-time.After(time.Duration(wait) * time.Millisecond):
		return true
	}
}

// dispatch executes a single HTTP request using the shared client.
// Transport failures are reported in the result's Error field.
func (e *Executor) dispatch(method, requestURL string, headers map[string]string, body string) *types.RequestResult {
	startTime := time.Now()

	var bodyReader io.Reader
	requestSize := 0
	if body != "" {
		bodyReader = bytes.NewBufferString(body)
		requestSize = len(body)
	}

	// Use context to allow cancellation of in-flight requests
	httpReq, err := http.NewRequestWithContext(e.ctx, method, requestURL, bodyReader)
	if err != nil {
		return &types.RequestResult{
			Error:       fmt.Sprintf("failed to create request: %v", err),
			RequestSize: requestSize,
		}
	}

	for key, value := range headers {
		httpReq.Header.Set(key, value)
	}

	resp, err := e.httpClient.Do(httpReq)
	duration := time.Since(startTime).Milliseconds()

	if err != nil {
		// Connection failed, timeout, or other network error
		return &types.RequestResult{
			Error:       err.Error(),
			Duration:    duration,
			RequestSize: requestSize,
			Status:      0, // Status 0 indicates connection failure
		}
	}
	defer resp.Body.Close()

	bodyBytes, err := io.ReadAll(resp.Body)
	if err != nil {
		return &types.RequestResult{
			Status:      resp.StatusCode,
			StatusText:  resp.Status,
			Error:       fmt.Sprintf("failed to read response body: %v", err),
			Duration:    duration,
			RequestSize: requestSize,
		}
	}

	respHeaders := make(map[string]string)
	for key, values := range resp.Header {
		respHeaders[key] = strings.Join(values, ", ")
	}

	return &types.RequestResult{
		Status:       resp.StatusCode,
		StatusText:   resp.Status,
		Headers:      respHeaders,
		Body:         string(bodyBytes),
		Duration:     duration,
		RequestSize:  requestSize,
		ResponseSize: len(bodyBytes),
	}
}

// appendQueryParams encodes resolved params onto the request URL
func appendQueryParams(requestURL string, params map[string]string) string {
	if len(params) == 0 {
		return requestURL
	}

	values := url.Values{}
	for key, value := range params {
		values.Set(key, value)
	}

	sep := "?"
	if strings.Contains(requestURL, "?") {
		sep = "&"
	}
	return requestURL + sep + values.Encode()
}

// withDefaultHeaders ensures an Accept header is present and, when the
// step sends a JSON body, a Content-Type as well. Headers declared in
// the scenario always win.
func withDefaultHeaders(headers map[string]string, body string) map[string]string {
	if headers == nil {
		headers = make(map[string]string)
	}
	if !hasHeader(headers, "Accept") {
		headers["Accept"] = "application/json"
	}
	if body != "" && json.Valid([]byte(body)) && !hasHeader(headers, "Content-Type") {
		headers["Content-Type"] = "application/json"
	}
	return headers
}

func hasHeader(headers map[string]string, name string) bool {
	for key := range headers {
		if strings.EqualFold(key, name) {
			return true
		}
	}
	return false
}

// collectResults collects and processes step results
func (e *Executor) collectResults() {
	for result := range e.resultChan {
		isDispatchError := result.DispatchError != ""
		isAssertionFailure := result.AssertionFailure != ""

		e.statsMu.Lock()
		e.stats.AddResult(result.DurationMs, isDispatchError, isAssertionFailure)
		e.statsMu.Unlock()

		// Buffer metric for batch insert
		metric := &results.Metric{
			RunID:            e.run.ID,
			SessionNum:       result.SessionNum,
			StepID:           result.StepID,
			Timestamp:        result.Timestamp,
			ElapsedMs:        result.ElapsedMs,
			StatusCode:       result.StatusCode,
			DurationMs:       result.DurationMs,
			RequestSize:      result.RequestSize,
			ResponseSize:     result.ResponseSize,
			ErrorMessage:     result.DispatchError,
			AssertionFailure: result.AssertionFailure,
		}

		e.metricsBuf = append(e.metricsBuf, metric)

		// Flush buffer if full
		if len(e.metricsBuf) >= e.bufferSize {
			e.flushMetrics()
		}
	}

	// Flush any remaining metrics
	e.flushMetrics()
}

// flushMetrics writes buffered metrics to database
func (e *Executor) flushMetrics() {
	if len(e.metricsBuf) == 0 {
		return
	}

	if err := e.manager.SaveMetricsBatch(e.metricsBuf); err != nil {
		// Log the error but don't stop execution
		e.log.Error().Err(err).Int("count", len(e.metricsBuf)).Msg("failed to save metrics")
	}

	e.metricsBuf = e.metricsBuf[:0]
}

// Stop cancels the load run execution
func (e *Executor) Stop() {
	e.cancelFunc()
	e.wg.Wait()
	e.closeResultChan()
	e.finalize("cancelled")
}

// StopWithContext cancels the load run with a timeout.
// Returns an error if cleanup doesn't complete within the context deadline.
func (e *Executor) StopWithContext(ctx context.Context) error {
	e.cancelFunc()

	done := make(chan struct{})
	go func() {
		e.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		e.closeResultChan()
		e.finalize("cancelled")
		return nil
	case <-ctx.Done():
		// Workers didn't finish; still close channels to prevent leaks
		e.closeResultChan()
		e.finalize("cancelled (timeout)")
		return ctx.Err()
	}
}

// closeResultChan safely closes the result channel (only once)
func (e *Executor) closeResultChan() {
	e.closeOnce.Do(func() {
		close(e.resultChan)
	})
}

// Wait waits for the load run to complete and finalizes the run record
func (e *Executor) Wait() error {
	e.wg.Wait()
	e.closeResultChan()

	// Give the collector time to drain the closed channel
	time.Sleep(ShutdownGracePeriod)

	status := "completed"
	e.statsMu.Lock()
	completedSessions := e.stats.CompletedSessions
	totalSessions := e.stats.TotalSessions
	e.statsMu.Unlock()

	if completedSessions < totalSessions {
		runDuration := e.config.GetRunDuration()
		elapsed := time.Since(e.runStart)

		if runDuration > 0 && elapsed >= runDuration {
			status = "completed" // Duration reached is still "completed"
		} else {
			status = "cancelled" // Manually cancelled or stopped early
		}
	}

	e.finalize(status)
	return nil
}

// GetStats returns the current statistics (thread-safe)
func (e *Executor) GetStats() *Stats {
	e.statsMu.Lock()
	defer e.statsMu.Unlock()

	statsCopy := &Stats{
		TotalSessions:         e.config.Sessions,
		CompletedSessions:     e.stats.CompletedSessions,
		CompletedRequests:     e.stats.CompletedRequests,
		ErrorCount:            e.stats.ErrorCount,
		AssertionFailureCount: e.stats.AssertionFailureCount,
		SuccessCount:          e.stats.SuccessCount,
		TotalDurationMs:       e.stats.TotalDurationMs,
		MinDurationMs:         e.stats.MinDurationMs,
		MaxDurationMs:         e.stats.MaxDurationMs,
		Durations:             make([]int64, len(e.stats.Durations)),
	}
	copy(statsCopy.Durations, e.stats.Durations)

	return statsCopy
}

// GetRun returns the current run record
func (e *Executor) GetRun() *results.Run {
	return e.run
}

// Seed returns the effective seed used by this run
func (e *Executor) Seed() int64 {
	return e.seed
}

// ActiveWorkers returns the number of workers currently running a session
func (e *Executor) ActiveWorkers() int {
	return int(atomic.LoadInt32(&e.activeWorkers))
}

// IsExecutionComplete returns true if all queued sessions have finished
// or the run context was cancelled
func (e *Executor) IsExecutionComplete() bool {
	e.statsMu.Lock()
	defer e.statsMu.Unlock()

	select {
	case <-e.ctx.Done():
		return true
	default:
	}

	return e.sessionsSent > 0 && e.stats.CompletedSessions >= e.sessionsSent
}

// finalize completes the run record with final statistics
func (e *Executor) finalize(status string) {
	e.statsMu.Lock()
	defer e.statsMu.Unlock()

	now := time.Now()
	e.run.CompletedAt = &now
	e.run.Status = status
	e.run.CompletedSessions = e.stats.CompletedSessions
	e.run.TotalRequests = e.stats.CompletedRequests
	e.run.TotalErrors = e.stats.ErrorCount
	e.run.TotalAssertionFailures = e.stats.AssertionFailureCount
	e.run.AvgDurationMs = e.stats.AvgDurationMs()
	e.run.MinDurationMs = e.stats.Min()
	e.run.MaxDurationMs = e.stats.Max()
	e.run.P50DurationMs = e.stats.P50()
	e.run.P90DurationMs = e.stats.P90()
	e.run.P95DurationMs = e.stats.P95()
	e.run.P99DurationMs = e.stats.P99()

	if err := e.manager.UpdateRun(e.run); err != nil {
		e.log.Error().Err(err).Int64("run", e.run.ID).Msg("failed to update run record")
	}
}

// buildLoadHTTPClient creates an HTTP client sized for the configured
// user pool, with connection pooling and timeouts
func buildLoadHTTPClient(config *Config) *http.Client {
	transport := &http.Transport{
		MaxIdleConns:        config.Users,
		MaxIdleConnsPerHost: config.Users,
		MaxConnsPerHost:     config.Users * 2,
		IdleConnTimeout:     IdleConnTimeout,
		DisableKeepAlives:   false,
		DisableCompression:  false,
		ForceAttemptHTTP2:   true,

		DialContext: (&net.Dialer{
			Timeout:   TCPDialTimeout,
			KeepAlive: TCPKeepAliveInterval,
		}).DialContext,

		TLSHandshakeTimeout:   TLSHandshakeTimeout,
		ResponseHeaderTimeout: config.GetRequestTimeout(),
		ExpectContinueTimeout: ExpectContinueTimeout,
	}

	return &http.Client{
		Timeout:   config.GetRequestTimeout(),
		Transport: transport,
	}
}
