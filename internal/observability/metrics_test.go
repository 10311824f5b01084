package observability

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestMetricsCounters(t *testing.T) {
	m := NewMetrics()

	m.RecordRequest("/chat/rooms", "GET", 200, 20*time.Millisecond)
	m.RecordRequest("/chat/rooms", "GET", 200, 10*time.Millisecond)
	m.RecordError("/chat/rooms/:id", "GET", "FORBIDDEN")
	m.RecordChatOp("pin", "limit_exceeded")

	assert.Equal(t, 2.0, testutil.ToFloat64(m.requestsTotal.WithLabelValues("/chat/rooms", "GET", "200")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.errorsTotal.WithLabelValues("/chat/rooms/:id", "GET", "FORBIDDEN")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.chatOpsTotal.WithLabelValues("pin", "limit_exceeded")))
}

func TestNilMetricsAreSafe(t *testing.T) {
	var m *Metrics
	assert.NotPanics(t, func() {
		m.RecordRequest("/", "GET", 200, time.Millisecond)
		m.RecordError("/", "GET", "X")
		m.RecordChatOp("send", "ok")
	})
}
