package app_test

import (
	"testing"
	"time"

	"github.com/code19m/errx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rise-and-shine/filesmanager/cfgloader"
	"github.com/rise-and-shine/filesmanager/internal/app"
)

func TestLoadConfig(t *testing.T) {
	t.Setenv("ENVIRONMENT", cfgloader.EnvTest)

	cfg, err := cfgloader.Load[app.Config](cfgloader.WithDir("../../config"), cfgloader.WithSilent())
	require.NoError(t, err)

	assert.Equal(t, app.QueueMemory, cfg.Queue.Driver)
	assert.Equal(t, "files", cfg.Queue.Name)
	assert.Equal(t, app.BlobLocal, cfg.Blob.Driver)
	assert.Equal(t, 10*time.Second, cfg.Thumbnail.SizeTimeout)
	assert.Equal(t, 24*time.Hour, cfg.Auth.SessionTTL)
	assert.ElementsMatch(t, []string{app.RoleAPI, app.RoleWorker, app.RoleScheduler}, cfg.Roles)
}

func TestLoadLocalConfig(t *testing.T) {
	t.Setenv("ENVIRONMENT", cfgloader.EnvLocal)
	t.Setenv("POSTGRES_PASSWORD", "secret")
	t.Setenv("FOLDER_PATH", t.TempDir())

	cfg, err := cfgloader.Load[app.Config](cfgloader.WithDir("../../config"), cfgloader.WithSilent())
	require.NoError(t, err)

	assert.Equal(t, "secret", cfg.Postgres.Password)
	assert.Equal(t, app.QueuePostgres, cfg.Queue.Driver)
	assert.Equal(t, "taskmill", cfg.Queue.Postgres.Schema)
	assert.Equal(t, "*/10 * * * *", cfg.Scheduler.ReconcileCron)
	assert.Equal(t, 1, cfg.Worker.BatchSize)
	assert.Greater(t, cfg.Queue.Postgres.VisibilityTimeout, cfg.Worker.ProcessTimeout)
	require.NoError(t, cfg.Validate())
}

func TestConfigValidateClaimCoversBatch(t *testing.T) {
	base := func(driver string, batch int, process, visibility time.Duration) app.Config {
		var cfg app.Config
		cfg.Queue.Driver = driver
		cfg.Queue.Postgres.VisibilityTimeout = visibility
		cfg.Worker.BatchSize = batch
		cfg.Worker.ProcessTimeout = process
		return cfg
	}

	tests := []struct {
		name    string
		cfg     app.Config
		wantErr bool
	}{
		{"one task within claim", base(app.QueuePostgres, 1, 2*time.Minute, 5*time.Minute), false},
		{"batch within claim", base(app.QueuePostgres, 2, 2*time.Minute, 5*time.Minute), false},
		{"single task outlives claim", base(app.QueuePostgres, 1, 2*time.Minute, time.Minute), true},
		{"batch outlives claim", base(app.QueuePostgres, 10, 2*time.Minute, 5*time.Minute), true},
		{"equal is not enough", base(app.QueuePostgres, 1, time.Minute, time.Minute), true},
		{"other drivers have no claim", base(app.QueueMemory, 10, 2*time.Minute, time.Minute), false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.cfg.Validate()
			if !tt.wantErr {
				require.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Equal(t, app.CodeInvalidConfig, errx.AsErrorX(err).Code())
		})
	}
}
