package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestCSV(t *testing.T) {
	assert.Nil(t, CSV(""))
	assert.Equal(t, []string{"a", "b"}, CSV(" a, ,b ,"))
}

func TestEnvDefaults(t *testing.T) {
	t.Setenv("RECORDS_TEST_STR", "  value ")
	t.Setenv("RECORDS_TEST_INT", "42")
	t.Setenv("RECORDS_TEST_BAD_INT", "forty")

	assert.Equal(t, "value", EnvDefault("RECORDS_TEST_STR", "def"))
	assert.Equal(t, "def", EnvDefault("RECORDS_TEST_MISSING", "def"))
	assert.Equal(t, 42, EnvIntDefault("RECORDS_TEST_INT", 1))
	assert.Equal(t, 1, EnvIntDefault("RECORDS_TEST_BAD_INT", 1))
	assert.Equal(t, 42*time.Minute, EnvDurationDefault("RECORDS_TEST_INT", 5, time.Minute))
	assert.Equal(t, 5*time.Hour, EnvDurationDefault("RECORDS_TEST_MISSING", 5, time.Hour))
}

func TestMissing(t *testing.T) {
	t.Setenv("RECORDS_TEST_SET", "x")
	t.Setenv("RECORDS_TEST_UNSET_A", "")
	t.Setenv("RECORDS_TEST_UNSET_B", " ")

	var m Missing
	assert.Equal(t, "x", m.Require("RECORDS_TEST_SET"))
	assert.NoError(t, m.Err())

	assert.Empty(t, m.Require("RECORDS_TEST_UNSET_A"))
	m.Require("RECORDS_TEST_UNSET_B")
	assert.EqualError(t, m.Err(), "missing required env RECORDS_TEST_UNSET_A, RECORDS_TEST_UNSET_B")
}
