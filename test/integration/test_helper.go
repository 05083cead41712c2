//go:build integration

package integration

import (
	"bytes"
	"encoding/json"
	"net/http"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

// BaseURL and Secret point the suite at a running api, e.g.
// BOUTIQUE_API_URL=http://localhost:8080 BOUTIQUE_SECRET=... go test -tags integration ./test/integration
var (
	BaseURL = envOr("BOUTIQUE_API_URL", "http://localhost:8080")
	Secret  = os.Getenv("BOUTIQUE_SECRET")
)

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func TestMain(m *testing.M) {
	if !waitForAPI(30 * time.Second) {
		os.Stderr.WriteString("api at " + BaseURL + " is not reachable\n")
		os.Exit(1)
	}
	os.Exit(m.Run())
}

func waitForAPI(timeout time.Duration) bool {
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		resp, err := http.Get(BaseURL + "/health")
		if err == nil {
			resp.Body.Close()
			if resp.StatusCode == http.StatusOK {
				return true
			}
		}
		time.Sleep(time.Second)
	}
	return false
}

func call(t *testing.T, method, path, auth string, body interface{}) (int, map[string]interface{}) {
	t.Helper()
	var payload []byte
	if body != nil {
		var err error
		payload, err = json.Marshal(body)
		require.NoError(t, err)
	}

	req, err := http.NewRequest(method, BaseURL+path, bytes.NewReader(payload))
	require.NoError(t, err)
	req.Header.Set("Content-Type", "application/json")
	if auth != "" {
		req.Header.Set("Authorization", auth)
	}

	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	var out map[string]interface{}
	_ = json.NewDecoder(resp.Body).Decode(&out)
	return resp.StatusCode, out
}
