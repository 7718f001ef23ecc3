package postgres

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/saaga0h/jeeves-comfort/pkg/config"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelError}))
}

func TestHealthCheck(t *testing.T) {
	tests := []struct {
		name        string
		pingErr     error
		wantUp      bool
		wantErrText string
	}{
		{name: "ping succeeds", wantUp: true},
		{name: "ping fails", pingErr: errors.New("connection reset"), wantErrText: "ping failed: connection reset"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			db, mock, err := sqlmock.New(sqlmock.MonitorPingsOption(true))
			require.NoError(t, err)
			defer db.Close()

			ping := mock.ExpectPing()
			if tt.pingErr != nil {
				ping.WillReturnError(tt.pingErr)
			}

			client := NewFromDB(db, config.NewConfig(), testLogger())
			status, err := client.HealthCheck(context.Background())
			require.NoError(t, err)

			assert.Equal(t, tt.wantUp, status.Connected)
			assert.Equal(t, "jeeves", status.Database)
			assert.Equal(t, tt.wantErrText, status.Error)
			assert.NoError(t, mock.ExpectationsWereMet())
		})
	}
}

func TestNotConnected(t *testing.T) {
	client := NewClient(config.NewConfig(), testLogger())

	status, err := client.HealthCheck(context.Background())
	require.NoError(t, err)
	assert.False(t, status.Connected)
	assert.Equal(t, "not connected", status.Error)

	_, err = client.Exec(context.Background(), "SELECT 1")
	assert.ErrorIs(t, err, ErrNotConnected)
	_, err = client.Query(context.Background(), "SELECT 1")
	assert.ErrorIs(t, err, ErrNotConnected)
	assert.NoError(t, client.Disconnect())
}
