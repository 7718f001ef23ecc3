package health

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/saaga0h/jeeves-comfort/pkg/mqtt"
	"github.com/saaga0h/jeeves-comfort/pkg/postgres"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelError}))
}

type fakeMQTT struct{ connected bool }

func (f *fakeMQTT) Connect(ctx context.Context) error { return nil }
func (f *fakeMQTT) Disconnect()                       {}
func (f *fakeMQTT) IsConnected() bool                 { return f.connected }
func (f *fakeMQTT) Subscribe(topic string, qos byte, handler mqtt.MessageHandler) error {
	return nil
}
func (f *fakeMQTT) Publish(topic string, qos byte, retained bool, payload []byte) error {
	return nil
}

type fakeRedis struct{ pingErr error }

func (f *fakeRedis) Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error {
	return nil
}
func (f *fakeRedis) Get(ctx context.Context, key string) (string, error)        { return "", nil }
func (f *fakeRedis) HSet(ctx context.Context, key, field string, v interface{}) error { return nil }
func (f *fakeRedis) HGet(ctx context.Context, key, field string) (string, error) { return "", nil }
func (f *fakeRedis) HGetAll(ctx context.Context, key string) (map[string]string, error) {
	return nil, nil
}
func (f *fakeRedis) HDel(ctx context.Context, key string, fields ...string) error { return nil }
func (f *fakeRedis) Ping(ctx context.Context) error                               { return f.pingErr }
func (f *fakeRedis) Close() error                                                 { return nil }

type fakePostgres struct{ connected bool }

func (f *fakePostgres) Connect(ctx context.Context) error { return nil }
func (f *fakePostgres) Disconnect() error                 { return nil }
func (f *fakePostgres) Exec(ctx context.Context, query string, args ...interface{}) (sql.Result, error) {
	return nil, nil
}
func (f *fakePostgres) Query(ctx context.Context, query string, args ...interface{}) (*sql.Rows, error) {
	return nil, nil
}
func (f *fakePostgres) HealthCheck(ctx context.Context) (*postgres.HealthStatus, error) {
	return &postgres.HealthStatus{Connected: f.connected}, nil
}

func TestHandlerFunc(t *testing.T) {
	checker := NewChecker(&fakeMQTT{}, nil, nil, testLogger())

	rec := httptest.NewRecorder()
	checker.HandlerFunc()(rec, httptest.NewRequest(http.MethodGet, "/health", nil))

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"status":"ok"`)
}

func TestDetailedHandlerFunc(t *testing.T) {
	tests := []struct {
		name       string
		checker    func() *Checker
		wantCode   int
		wantStatus string
		want       Services
	}{
		{
			name: "live with all backends",
			checker: func() *Checker {
				return NewChecker(&fakeMQTT{connected: true}, &fakeRedis{}, &fakePostgres{connected: true}, testLogger()).
					WithSource(func() string { return "connected" })
			},
			wantCode:   http.StatusOK,
			wantStatus: "healthy",
			want:       Services{MQTT: Connected, Redis: Connected, Postgres: Connected, Source: "connected"},
		},
		{
			name: "demo without optional backends",
			checker: func() *Checker {
				return NewChecker(&fakeMQTT{connected: true}, nil, nil, testLogger()).
					WithSource(func() string { return "demo" })
			},
			wantCode:   http.StatusOK,
			wantStatus: "healthy",
			want:       Services{MQTT: Connected, Redis: Disabled, Postgres: Disabled, Source: "demo"},
		},
		{
			name: "sensor source degraded",
			checker: func() *Checker {
				return NewChecker(&fakeMQTT{connected: true}, nil, nil, testLogger()).
					WithSource(func() string { return SourceDegraded })
			},
			wantCode:   http.StatusServiceUnavailable,
			wantStatus: "degraded",
			want:       Services{MQTT: Connected, Redis: Disabled, Postgres: Disabled, Source: SourceDegraded},
		},
		{
			name: "redis unreachable",
			checker: func() *Checker {
				return NewChecker(&fakeMQTT{connected: true}, &fakeRedis{pingErr: errors.New("dial tcp: refused")}, nil, testLogger())
			},
			wantCode:   http.StatusServiceUnavailable,
			wantStatus: "degraded",
			want:       Services{MQTT: Connected, Redis: Disconnected, Postgres: Disabled},
		},
		{
			name: "mqtt and postgres down",
			checker: func() *Checker {
				return NewChecker(&fakeMQTT{}, nil, &fakePostgres{}, testLogger())
			},
			wantCode:   http.StatusServiceUnavailable,
			wantStatus: "degraded",
			want:       Services{MQTT: Disconnected, Redis: Disabled, Postgres: Disconnected},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := httptest.NewRecorder()
			tt.checker().DetailedHandlerFunc()(rec, httptest.NewRequest(http.MethodGet, "/health/detailed", nil))

			assert.Equal(t, tt.wantCode, rec.Code)

			var resp HealthResponse
			require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
			assert.Equal(t, tt.wantStatus, resp.Status)
			require.NotNil(t, resp.Services)
			assert.Equal(t, tt.want, *resp.Services)
		})
	}
}
