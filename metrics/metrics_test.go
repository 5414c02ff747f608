package metrics

import (
	"errors"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestObserveBuild(t *testing.T) {
	m := New(prometheus.NewRegistry())

	m.ObserveBuild(time.Second, Summary{Requirements: 3, References: 5, Unresolved: 1}, nil)
	m.ObserveBuild(time.Second, Summary{Requirements: 99}, errors.New("boom"))

	assert.Equal(t, 1.0, testutil.ToFloat64(m.Builds.WithLabelValues("ok")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.Builds.WithLabelValues("failed")))
	assert.Equal(t, 3.0, testutil.ToFloat64(m.Requirements), "failed build keeps last gauges")
	assert.Equal(t, 5.0, testutil.ToFloat64(m.References))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.Unresolved))
	assert.Equal(t, 1, testutil.CollectAndCount(m.BuildDuration))
}

func TestDocumentsAndPublished(t *testing.T) {
	m := New(prometheus.NewRegistry())
	m.IncrementDocument("parsed")
	m.IncrementDocument("parsed")
	m.IncrementDocument("cached")
	m.AddPublished(4)

	assert.Equal(t, 2.0, testutil.ToFloat64(m.Documents.WithLabelValues("parsed")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.Documents.WithLabelValues("cached")))
	assert.Equal(t, 4.0, testutil.ToFloat64(m.Published))
}

func TestNilMetrics(t *testing.T) {
	var m *Metrics
	assert.NotPanics(t, func() {
		m.ObserveBuild(time.Second, Summary{}, nil)
		m.IncrementDocument("parsed")
		m.AddPublished(1)
	})
}
