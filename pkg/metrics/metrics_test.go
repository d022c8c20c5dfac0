// Copyright (c) 2025 Jeremy Hahn
// Copyright (c) 2025 Automate The Things, LLC
//
// This file is part of go-passkeygate.
//
// go-passkeygate is dual-licensed:
//
// 1. GNU Affero General Public License v3.0 (AGPL-3.0)
//    See LICENSE file or visit https://www.gnu.org/licenses/agpl-3.0.html
//
// 2. Commercial License
//    Contact licensing@automatethethings.com for commercial licensing options.

package metrics

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestRecordCeremony(t *testing.T) {
	before := testutil.ToFloat64(CeremoniesTotal.WithLabelValues(CeremonyRegistration, OutcomeSuccess))
	RecordCeremony(CeremonyRegistration, OutcomeSuccess, 0.01)
	after := testutil.ToFloat64(CeremoniesTotal.WithLabelValues(CeremonyRegistration, OutcomeSuccess))
	assert.Equal(t, before+1, after)
}

func TestDisable(t *testing.T) {
	Disable()
	defer Enable()
	assert.False(t, IsEnabled())

	before := testutil.ToFloat64(InvitationEventsTotal.WithLabelValues(EventIssued))
	RecordInvitationEvent(EventIssued)
	assert.Equal(t, before, testutil.ToFloat64(InvitationEventsTotal.WithLabelValues(EventIssued)))
}

func TestSetStoreHealth(t *testing.T) {
	SetStoreHealth("docstore", true)
	assert.Equal(t, 1.0, testutil.ToFloat64(StoreHealthy.WithLabelValues("docstore")))
	SetStoreHealth("docstore", false)
	assert.Equal(t, 0.0, testutil.ToFloat64(StoreHealthy.WithLabelValues("docstore")))
}

func TestHTTPMiddleware_UsesRoutePattern(t *testing.T) {
	r := chi.NewRouter()
	r.Use(HTTPMiddleware)
	r.Get("/posts/{slug}", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTeapot)
	})

	counter := HTTPRequestsTotal.WithLabelValues(http.MethodGet, "/posts/{slug}", "418")
	before := testutil.ToFloat64(counter)

	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/posts/hello", nil))

	assert.Equal(t, http.StatusTeapot, rec.Code)
	assert.Equal(t, before+1, testutil.ToFloat64(counter))
	assert.Equal(t, 0.0, testutil.ToFloat64(HTTPInFlight))
}

func TestHTTPMiddleware_WithoutRouter(t *testing.T) {
	counter := HTTPRequestsTotal.WithLabelValues(http.MethodGet, unmatchedRoute, "200")
	before := testutil.ToFloat64(counter)

	h := HTTPMiddleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("ok"))
	}))
	h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/anything", nil))

	assert.Equal(t, before+1, testutil.ToFloat64(counter))
}

func TestCollectResources(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		CollectResources(ctx, time.Hour)
		close(done)
	}()

	assert.Eventually(t, func() bool { return testutil.ToFloat64(Goroutines) > 0 }, time.Second, 10*time.Millisecond)
	cancel()
	<-done
}
