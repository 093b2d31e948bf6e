package engine

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"watchpost/model"
)

// Full retry cycle against a real server: 503 on the first four attempts,
// 200 on the confirmation.
func TestRetryCycleRecoversOnConfirmation(t *testing.T) {
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if hits.Add(1) <= 4 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	three, ten, twenty := 3, 10, 20
	def := &model.CheckDefinition{
		ID: "c1", Type: model.CheckHTTP, URL: srv.URL,
		ExpectedStatusCode: 200,
		Retry: model.RetryConfig{
			MaxRetries:          &three,
			RetryDelayMs:        &ten,
			ConfirmationDelayMs: &twenty,
		},
	}

	r := NewRetrier(NewExecutor(nil), RetryDefaults{})
	start := time.Now()
	res := r.RunCycle(context.Background(), def)
	elapsed := time.Since(start)

	if res.Status != model.StatusSuccess {
		t.Fatalf("Status = %q, want success (%s)", res.Status, res.ErrorMessage)
	}
	if res.ErrorMessage != "" {
		t.Errorf("ErrorMessage = %q, want empty after a clean confirmation", res.ErrorMessage)
	}
	if n := hits.Load(); n != 5 {
		t.Errorf("server hits = %d, want 5 (initial + 3 retries + confirmation)", n)
	}
	// 3 retry delays plus the confirmation delay must actually elapse.
	if min := 3*10*time.Millisecond + 20*time.Millisecond; elapsed < min {
		t.Errorf("elapsed = %v, want at least %v", elapsed, min)
	}
}
