package solana

import (
	"context"
	"sync"
	"time"

	"github.com/gagliardetto/solana-go/rpc"
)

// RPCCheckResult represents the result of checking an RPC endpoint
type RPCCheckResult struct {
	Name    string        `json:"name"`
	OK      bool          `json:"ok"`
	Latency time.Duration `json:"latency"`
	Error   string        `json:"error,omitempty"`
}

// RPCEndpoint is a named node to probe. The name is reported instead of the url,
// which may carry an api key.
type RPCEndpoint struct {
	Name string
	URL  string
}

func checkRPC(ctx context.Context, endpoint RPCEndpoint, timeout time.Duration) RPCCheckResult {
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	start := time.Now()
	status, err := rpc.New(endpoint.URL).GetHealth(ctx)
	latency := time.Since(start)
	if err != nil {
		return RPCCheckResult{Name: endpoint.Name, OK: false, Latency: latency, Error: err.Error()}
	}
	if status != rpc.HealthOk {
		return RPCCheckResult{Name: endpoint.Name, OK: false, Latency: latency, Error: "node reported " + status}
	}
	return RPCCheckResult{Name: endpoint.Name, OK: true, Latency: latency}
}

// CheckRPCList probes every endpoint concurrently with getHealth and returns results in input order
func CheckRPCList(ctx context.Context, endpoints []RPCEndpoint, timeout time.Duration) []RPCCheckResult {
	results := make([]RPCCheckResult, len(endpoints))

	var wg sync.WaitGroup
	for i, endpoint := range endpoints {
		wg.Add(1)
		go func(i int, endpoint RPCEndpoint) {
			defer wg.Done()
			results[i] = checkRPC(ctx, endpoint, timeout)
		}(i, endpoint)
	}
	wg.Wait()

	return results
}
