package app

import (
	"testing"

	"github.com/stretchr/testify/assert"

	coreconfig "github.com/filegate/filegate/core/config"
)

func TestHistoryDBConfigMapsEveryField(t *testing.T) {
	cfg := &coreconfig.Config{
		Database: coreconfig.DatabaseConfig{
			Host:           "db.internal",
			Port:           "5433",
			User:           "bot",
			Password:       "hunter2",
			Name:           "filegate",
			SSLMode:        "require",
			MaxConnections: 8,
		},
	}

	db := HistoryDBConfig(cfg)
	assert.Equal(t, "db.internal", db.Host)
	assert.Equal(t, "5433", db.Port)
	assert.Equal(t, "bot", db.User)
	assert.Equal(t, "hunter2", db.Password)
	assert.Equal(t, "filegate", db.Name)
	assert.Equal(t, "require", db.SSLMode)
	assert.Equal(t, 8, db.MaxConnections)
	assert.True(t, db.Enabled())
}
