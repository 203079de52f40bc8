package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nainya/timegraph/pkg/timeindex"
)

func TestDefaults(t *testing.T) {
	cfg, err := New()
	require.NoError(t, err)

	assert.Equal(t, "./data/timegraph.db", cfg.DBPath)
	assert.Equal(t, 50051, cfg.GRPCPort)
	assert.Equal(t, 9090, cfg.HTTPPort)
	assert.Equal(t, "graph://", cfg.GraphPrefix)
	assert.False(t, cfg.DropStale)
	assert.Equal(t, timeindex.DefaultVocabulary(), cfg.Vocabulary())
}

func TestEnvironmentOverrides(t *testing.T) {
	t.Setenv("TIMEGRAPH_DB_PATH", "/tmp/x.db")
	t.Setenv("TIMEGRAPH_GRPC_PORT", "6000")
	t.Setenv("TIMEGRAPH_DROP_STALE", "true")
	t.Setenv("TIMEGRAPH_BEGIN_YEAR_PREDICATE", "http://example.org/from")

	cfg, err := New()
	require.NoError(t, err)

	assert.Equal(t, "/tmp/x.db", cfg.DBPath)
	assert.Equal(t, 6000, cfg.GRPCPort)
	assert.True(t, cfg.DropStale)

	v := cfg.Vocabulary()
	assert.Equal(t, "http://example.org/from", v.BeginYear)
	assert.Equal(t, timeindex.DefaultVocabulary().BeginMonth, v.BeginMonth)
}

func TestInvalidValues(t *testing.T) {
	t.Setenv("TIMEGRAPH_LOG_LEVEL", "chatty")
	_, err := New()
	assert.Error(t, err)
}

func TestInvalidPort(t *testing.T) {
	t.Setenv("TIMEGRAPH_HTTP_PORT", "not-a-number")
	_, err := New()
	assert.Error(t, err)
}
