package api

import (
	"encoding/base64"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/rentdesk/realtime/internal/auth"
	"github.com/rentdesk/realtime/internal/config"
	"github.com/rentdesk/realtime/internal/database"
	"github.com/rentdesk/realtime/internal/gateway"
	"github.com/rentdesk/realtime/internal/registry"
	"github.com/rentdesk/realtime/internal/rooms"
	"github.com/rentdesk/realtime/internal/stats"
	"github.com/rentdesk/realtime/internal/testutil"
	"github.com/stretchr/testify/mock"
)

var testSigningKey = []byte("test-signing-key")

// newTestServer wires a full server around the given repository and returns
// it together with a running httptest server.
func newTestServer(t *testing.T, repo database.Repository) (*Server, *httptest.Server) {
	t.Helper()

	logger := testutil.TestLogger(t)

	su := &stats.MockStatsUpdater{}
	su.On("RegisterMetric", mock.Anything).Times(5)
	su.On("Incr", mock.Anything).Maybe()
	su.On("Decr", mock.Anything).Maybe()

	verifier := auth.NewJWTVerifier(testSigningKey)

	gw, err := gateway.NewGateway(logger, repo, verifier,
		registry.NewSessionRegistry(), rooms.NewRoster(), su, time.Second)
	if err != nil {
		t.Fatalf("failed to create gateway: %v", err)
	}

	cfg, err := config.NewConfig("localhost:0", "test-dsn",
		base64.StdEncoding.EncodeToString(testSigningKey), nil, time.Second)
	if err != nil {
		t.Fatalf("failed to create config: %v", err)
	}

	mux := http.NewServeMux()
	s := NewServer(mux, logger, gw, gateway.NewBridge(gw, logger), repo, verifier, cfg)

	ts := httptest.NewServer(s.mux.Handler)
	t.Cleanup(ts.Close)

	return s, ts
}

func signToken(t *testing.T, userId string, role string) string {
	t.Helper()

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"sub":  userId,
		"role": role,
		"exp":  time.Now().Add(time.Hour).Unix(),
	})
	tokenString, err := token.SignedString(testSigningKey)
	if err != nil {
		t.Fatalf("failed to sign token: %v", err)
	}
	return tokenString
}
