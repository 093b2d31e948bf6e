package engine

import (
	"context"
	"fmt"
	"io"
	"net"
	"net/http"
	"strings"
	"time"

	"watchpost/model"
)

// Prober runs exactly one probe attempt. Implementations never return an
// error: every failure mode becomes a failure result with a message.
type Prober interface {
	Probe(ctx context.Context, def *model.CheckDefinition) model.CheckResult
}

// Executor is the production Prober. It owns the outbound HTTP client
// and reads Azure sync data through the store.
type Executor struct {
	Client *http.Client
	Store  Store
	Now    func() time.Time
}

func NewExecutor(st Store) *Executor {
	return &Executor{
		// Per-attempt deadlines come from each check's own timeout via
		// the request context, so the client itself carries none.
		Client: &http.Client{},
		Store:  st,
		Now:    time.Now,
	}
}

func (e *Executor) Probe(ctx context.Context, def *model.CheckDefinition) model.CheckResult {
	res := model.CheckResult{
		CheckID:   def.ID,
		CheckedAt: e.Now(),
	}

	switch def.Type {
	case model.CheckHTTP:
		e.probeHTTP(ctx, def, &res)
	case model.CheckKeyword:
		e.probeKeyword(ctx, def, &res)
	case model.CheckSSL:
		e.probeSSL(ctx, def, &res)
	case model.CheckPort, model.CheckPing:
		e.probeTCP(ctx, def, &res)
	case model.CheckHeartbeat:
		e.probeHeartbeat(def, &res)
	case model.CheckAzureMetric:
		e.probeAzureMetric(ctx, def, &res)
	case model.CheckAzureHealth:
		e.probeAzureHealth(ctx, def, &res)
	default:
		res.Status = model.StatusFailure
		res.ErrorMessage = fmt.Sprintf("unknown check type %q", def.Type)
	}
	return res
}

func (e *Executor) request(ctx context.Context, def *model.CheckDefinition, method string) (*http.Response, time.Duration, error) {
	ctx, cancel := context.WithTimeout(ctx, def.Timeout())
	defer cancel()

	if method == "" {
		method = http.MethodGet
	}
	req, err := http.NewRequestWithContext(ctx, method, def.URL, nil)
	if err != nil {
		return nil, 0, err
	}
	for k, v := range def.CustomHeaders {
		req.Header.Set(k, v)
	}
	switch def.AuthType {
	case "basic":
		req.SetBasicAuth(def.AuthUsername, def.AuthPassword)
	case "bearer":
		req.Header.Set("Authorization", "Bearer "+def.AuthToken)
	}

	start := e.Now()
	resp, err := e.Client.Do(req)
	return resp, e.Now().Sub(start), err
}

func (e *Executor) probeHTTP(ctx context.Context, def *model.CheckDefinition, res *model.CheckResult) {
	resp, elapsed, err := e.request(ctx, def, def.HTTPMethod)
	if err != nil {
		res.Status = model.StatusFailure
		res.ErrorMessage = fmt.Sprintf("request failed: %v", err)
		return
	}
	defer resp.Body.Close()
	io.Copy(io.Discard, resp.Body)

	ms := float64(elapsed.Milliseconds())
	res.ResponseTimeMs = &ms
	code := resp.StatusCode
	res.StatusCode = &code

	want := def.ExpectedStatusCode
	if want == 0 {
		want = http.StatusOK
	}
	if code == want {
		res.Status = model.StatusSuccess
	} else {
		res.Status = model.StatusFailure
		res.ErrorMessage = fmt.Sprintf("expected status %d, got %d", want, code)
	}
}

func (e *Executor) probeKeyword(ctx context.Context, def *model.CheckDefinition, res *model.CheckResult) {
	resp, elapsed, err := e.request(ctx, def, def.HTTPMethod)
	if err != nil {
		res.Status = model.StatusFailure
		res.ErrorMessage = fmt.Sprintf("request failed: %v", err)
		return
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		res.Status = model.StatusFailure
		res.ErrorMessage = fmt.Sprintf("read body: %v", err)
		return
	}

	ms := float64(elapsed.Milliseconds())
	res.ResponseTimeMs = &ms
	code := resp.StatusCode
	res.StatusCode = &code

	found := strings.Contains(string(body), def.KeywordValue)
	switch {
	case def.MatchMode == model.MatchNotContains && !found,
		def.MatchMode != model.MatchNotContains && found:
		res.Status = model.StatusSuccess
	case def.MatchMode == model.MatchNotContains:
		res.Status = model.StatusFailure
		res.ErrorMessage = fmt.Sprintf("keyword %q present in response", def.KeywordValue)
	default:
		res.Status = model.StatusFailure
		res.ErrorMessage = fmt.Sprintf("keyword %q not found in response", def.KeywordValue)
	}
}

// probeSSL succeeds when the TLS handshake and a HEAD request complete.
// Certificate expiry fields stay unset: the engine models them but does
// not collect them.
func (e *Executor) probeSSL(ctx context.Context, def *model.CheckDefinition, res *model.CheckResult) {
	resp, elapsed, err := e.request(ctx, def, http.MethodHead)
	if err != nil {
		res.Status = model.StatusFailure
		res.ErrorMessage = fmt.Sprintf("ssl check failed: %v", err)
		return
	}
	resp.Body.Close()

	ms := float64(elapsed.Milliseconds())
	res.ResponseTimeMs = &ms
	code := resp.StatusCode
	res.StatusCode = &code
	res.Status = model.StatusSuccess
}

// probeTCP handles both port and ping checks. Ping is a TCP-reachability
// proxy, not real ICMP (raw sockets would need elevated privileges); the
// original system behaves the same way, with port 80 as the ping default.
func (e *Executor) probeTCP(ctx context.Context, def *model.CheckDefinition, res *model.CheckResult) {
	port := def.Port
	if port == 0 {
		port = 80
	}
	addr := net.JoinHostPort(def.IPAddress, fmt.Sprintf("%d", port))

	d := net.Dialer{Timeout: def.Timeout()}
	start := e.Now()
	conn, err := d.DialContext(ctx, "tcp", addr)
	if err != nil {
		res.Status = model.StatusFailure
		res.ErrorMessage = fmt.Sprintf("connect %s: %v", addr, err)
		return
	}
	conn.Close()

	ms := float64(e.Now().Sub(start).Milliseconds())
	res.ResponseTimeMs = &ms
	res.Status = model.StatusSuccess
}

// probeHeartbeat needs no network call: it compares the age of the last
// received heartbeat against the expected interval, with a 1.5x grace
// period before an overdue heartbeat counts as down.
func (e *Executor) probeHeartbeat(def *model.CheckDefinition, res *model.CheckResult) {
	if def.LastHeartbeatAt == nil {
		res.Status = model.StatusFailure
		res.ErrorMessage = "no heartbeat ever received"
		return
	}

	age := e.Now().Sub(*def.LastHeartbeatAt)
	ms := float64(age.Milliseconds())
	res.ResponseTimeMs = &ms

	interval := time.Duration(def.ExpectedIntervalSeconds) * time.Second
	grace := interval + interval/2
	switch {
	case age <= interval:
		res.Status = model.StatusSuccess
	case age <= grace:
		res.Status = model.StatusWarning
		res.ErrorMessage = fmt.Sprintf("heartbeat overdue by %s (within grace period)", (age - interval).Round(time.Second))
	default:
		res.Status = model.StatusFailure
		res.ErrorMessage = fmt.Sprintf("no heartbeat for %s, expected every %ds", age.Round(time.Second), def.ExpectedIntervalSeconds)
	}
}

// probeAzureMetric reduces recent samples from the sync job's metric
// table and compares the aggregate against the configured threshold.
// Semantics are inverted relative to the reachability checks: a breached
// threshold is the failure case.
func (e *Executor) probeAzureMetric(ctx context.Context, def *model.CheckDefinition, res *model.CheckResult) {
	if def.AzureResourceID == "" {
		res.Status = model.StatusFailure
		res.ErrorMessage = "azure_metric check has no linked Azure resource"
		return
	}

	timeframe := def.TimeframeMinutes
	if timeframe <= 0 {
		timeframe = 5
	}
	since := e.Now().Add(-time.Duration(timeframe) * time.Minute)

	samples, err := e.Store.MetricSamples(ctx, def.AzureResourceID, def.MetricName, def.MetricNamespace, since)
	if err != nil {
		res.Status = model.StatusFailure
		res.ErrorMessage = fmt.Sprintf("read metric samples: %v", err)
		return
	}
	if len(samples) == 0 {
		res.Status = model.StatusFailure
		res.ErrorMessage = fmt.Sprintf("no %s samples in the last %d minutes", def.MetricName, timeframe)
		return
	}

	value := reduce(def.Aggregation, samples)
	res.ResponseTimeMs = &value

	if def.ComparisonOperator.Compare(value, def.ThresholdValue) {
		res.Status = model.StatusFailure
		res.ErrorMessage = fmt.Sprintf("%s %s = %.2f breached threshold %s %.2f",
			def.MetricName, def.Aggregation, value, def.ComparisonOperator, def.ThresholdValue)
	} else {
		res.Status = model.StatusSuccess
	}
}

func reduce(agg model.Aggregation, samples []model.MetricSample) float64 {
	switch agg {
	case model.AggMax:
		max := samples[0].Value
		for _, s := range samples[1:] {
			if s.Value > max {
				max = s.Value
			}
		}
		return max
	case model.AggMin:
		min := samples[0].Value
		for _, s := range samples[1:] {
			if s.Value < min {
				min = s.Value
			}
		}
		return min
	case model.AggTotal:
		var sum float64
		for _, s := range samples {
			sum += s.Value
		}
		return sum
	default: // average
		var sum float64
		for _, s := range samples {
			sum += s.Value
		}
		return sum / float64(len(samples))
	}
}

// azureHealthMaxAge is the staleness cutoff for sync data: an Azure
// resource not synced within this window counts as unhealthy.
const azureHealthMaxAge = time.Hour

func (e *Executor) probeAzureHealth(ctx context.Context, def *model.CheckDefinition, res *model.CheckResult) {
	if def.AzureResourceID == "" {
		res.Status = model.StatusFailure
		res.ErrorMessage = "azure_health check has no linked Azure resource"
		return
	}

	az, err := e.Store.AzureResource(ctx, def.AzureResourceID)
	if err != nil {
		res.Status = model.StatusFailure
		res.ErrorMessage = fmt.Sprintf("read azure resource: %v", err)
		return
	}

	if az.OptimizationScore != nil {
		score := *az.OptimizationScore
		res.ResponseTimeMs = &score
	}

	if az.LastSyncedAt == nil {
		res.Status = model.StatusFailure
		res.ErrorMessage = "azure resource has never synced"
		return
	}
	if age := e.Now().Sub(*az.LastSyncedAt); age > azureHealthMaxAge {
		res.Status = model.StatusFailure
		res.ErrorMessage = fmt.Sprintf("azure sync data is stale (last synced %s ago)", age.Round(time.Minute))
		return
	}
	res.Status = model.StatusSuccess
}
