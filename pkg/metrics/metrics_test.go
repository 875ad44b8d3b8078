package metrics

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestInstrumentRecordsStatus(t *testing.T) {
	m := NewAPI(prometheus.NewRegistry())
	h := m.Instrument("/messages", http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusCreated)
	}))

	h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodPost, "/messages", nil))
	h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodPost, "/messages", nil))

	assert.Equal(t, 2.0, testutil.ToFloat64(m.Requests.WithLabelValues("/messages", "201")))
	assert.Equal(t, 1, testutil.CollectAndCount(m.Duration))
}

func TestInstrumentDefaultsToOK(t *testing.T) {
	m := NewAPI(prometheus.NewRegistry())
	h := m.Instrument("/healthz", http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("ok"))
	}))

	h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/healthz", nil))

	assert.Equal(t, 1.0, testutil.ToFloat64(m.Requests.WithLabelValues("/healthz", "200")))
}

func TestCollectorsRegisterPerRegistry(t *testing.T) {
	assert.NotPanics(t, func() {
		NewGateway(prometheus.NewRegistry())
		NewGateway(prometheus.NewRegistry())
		NewMessaging(prometheus.NewRegistry())
	})
}
