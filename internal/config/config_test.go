package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "sqlite", cfg.Store.Driver)
	assert.Equal(t, "compliance.db", cfg.Store.DatabaseURL)
	assert.Equal(t, "info", cfg.Log.Level)
	assert.Equal(t, "json", cfg.Log.Format)
	assert.Equal(t, 8080, cfg.Server.Port)
	assert.Equal(t, 5, cfg.Batch.MaxConcurrentSubjects)

	assert.Equal(t, 3, cfg.Scoring.Medium)
	assert.Equal(t, 5, cfg.Scoring.High)

	assert.Equal(t, 3, cfg.Schedule.YearsLow)
	assert.Equal(t, 2, cfg.Schedule.YearsMedium)
	assert.Equal(t, 1, cfg.Schedule.YearsHigh)
	assert.Equal(t, 30, cfg.Schedule.ReminderDaysBefore)

	assert.Equal(t, 3600, cfg.Reminder.CheckIntervalSecs)
}

func TestLoad_EnvOverrides(t *testing.T) {
	t.Setenv("PLANNETIC_STORE_DRIVER", "postgres")
	t.Setenv("PLANNETIC_SCHEDULE_YEARS_HIGH", "2")
	t.Setenv("PLANNETIC_LOG_LEVEL", "debug")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "postgres", cfg.Store.Driver)
	assert.Equal(t, 2, cfg.Schedule.YearsHigh)
	assert.Equal(t, "debug", cfg.Log.Level)
}

func TestLoad_RejectsInvalidThresholds(t *testing.T) {
	t.Setenv("PLANNETIC_SCORING_MEDIUM", "7")

	_, err := Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "high must be >= medium")
}

func TestLoad_RejectsNegativeSchedule(t *testing.T) {
	t.Setenv("PLANNETIC_SCHEDULE_YEARS_LOW", "-1")

	_, err := Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "years_low")
}

func TestInitLogger(t *testing.T) {
	require.NoError(t, InitLogger(LogConfig{Level: "debug", Format: "console"}))
	require.NoError(t, InitLogger(LogConfig{Level: "info", Format: "json"}))

	err := InitLogger(LogConfig{Level: "nope", Format: "json"})
	require.Error(t, err)
}
