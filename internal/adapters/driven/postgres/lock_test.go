package postgres

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestHashLockName(t *testing.T) {
	assert.Equal(t, hashLockName("ingest:doc-1"), hashLockName("ingest:doc-1"))
	assert.NotEqual(t, hashLockName("ingest:doc-1"), hashLockName("ingest:doc-2"))
}

func TestAdvisoryLock_UnheldLock(t *testing.T) {
	l := NewAdvisoryLock(nil)

	assert.NoError(t, l.Release(context.Background(), "ingest:doc-1"))
	assert.Error(t, l.Extend(context.Background(), "ingest:doc-1", time.Minute))
}
