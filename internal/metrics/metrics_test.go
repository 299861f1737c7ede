package metrics

import (
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHandlerExposesCounters(t *testing.T) {
	m := New()
	m.MessagesSent.Inc()
	m.MessagesRejected.WithLabelValues("empty").Inc()

	assert.Equal(t, 1.0, testutil.ToFloat64(m.MessagesSent))

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	body, err := io.ReadAll(rec.Body)
	require.NoError(t, err)
	assert.Contains(t, string(body), "devnet_chat_messages_sent_total 1")
	assert.Contains(t, string(body), `devnet_chat_messages_rejected_total{reason="empty"} 1`)
}
