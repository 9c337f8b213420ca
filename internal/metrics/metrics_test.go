package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestCountersAreRegistered(t *testing.T) {
	before := testutil.ToFloat64(Logins.WithLabelValues(OutcomeSuccess))
	Logins.WithLabelValues(OutcomeSuccess).Inc()
	assert.Equal(t, before+1, testutil.ToFloat64(Logins.WithLabelValues(OutcomeSuccess)))

	WithdrawnPoints.Add(525)
	assert.GreaterOrEqual(t, testutil.ToFloat64(WithdrawnPoints), float64(525))
}
