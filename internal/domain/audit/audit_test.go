package audit

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestBuildQueryAddsFiltersInOrder(t *testing.T) {
	query, args := buildQuery("SELECT id", Filter{EntityType: "payroll_run", EntityID: "run-1"})
	assert.Equal(t, "SELECT id FROM audit_events WHERE 1=1 AND entity_type = $1 AND entity_id = $2", query)
	assert.Equal(t, []any{"payroll_run", "run-1"}, args)

	query, args = buildQuery("SELECT id", Filter{})
	assert.Equal(t, "SELECT id FROM audit_events WHERE 1=1", query)
	assert.Empty(t, args)
}

func TestSnapshotSkipsNil(t *testing.T) {
	payload, err := snapshot(nil)
	assert.NoError(t, err)
	assert.Nil(t, payload)

	payload, err = snapshot(map[string]string{"status": "LOCKED"})
	assert.NoError(t, err)
	assert.JSONEq(t, `{"status":"LOCKED"}`, string(payload))
}
