package metrics

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBackfill_Observe(t *testing.T) {
	m := NewBackfill()
	m.ObserveBatch(10, 4)
	m.ObserveBatch(3, 0)
	m.ObserveRun(nil, time.Unix(1700000000, 0))
	m.ObserveRun(errors.New("boom"), time.Unix(1700000100, 0))

	assert.Equal(t, 13.0, testutil.ToFloat64(m.usersScanned))
	assert.Equal(t, 4.0, testutil.ToFloat64(m.attributesCreated))
	assert.Equal(t, 2.0, testutil.ToFloat64(m.batches))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.runs.WithLabelValues("success")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.runs.WithLabelValues("failed")))
	assert.Equal(t, 1700000100.0, testutil.ToFloat64(m.lastRun))
}

func TestBackfill_WriteTextfile(t *testing.T) {
	m := NewBackfill()
	m.ObserveBatch(2, 2)
	m.SetAttributeRows(5)

	path := filepath.Join(t.TempDir(), "optin.prom")
	require.NoError(t, m.WriteTextfile(path))

	b, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(b), "optin_backfill_attributes_created_total 2")
	assert.Contains(t, string(b), "optin_backfill_attribute_rows 5")
}
