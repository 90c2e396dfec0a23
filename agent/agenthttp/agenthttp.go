// Package agenthttp serves a read-only view of a deployed donation over HTTP.
package agenthttp

import (
	"encoding/json"
	"net/http"

	"github.com/rs/cors"
	"github.com/stellar/starlight/donation/host"
	"github.com/stellar/starlight/donation/state"
)

// Snapshot is the JSON document served for an instance.
type Snapshot struct {
	Contract       string
	Owner          string
	State          state.DonationState
	Balance        state.Amount
	BalanceDecimal string
	SweepPending   bool
}

func New(i *host.Instance) http.Handler {
	m := http.NewServeMux()
	m.HandleFunc("/", handleSnapshot(i))
	return cors.Default().Handler(m)
}

func handleSnapshot(i *host.Instance) func(w http.ResponseWriter, r *http.Request) {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
			return
		}
		result, err := i.Invoke(r.Context(), host.Call{Entrypoint: host.EntrypointView})
		if err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		_ = enc.Encode(Snapshot{
			Contract:       i.Contract().Address(),
			Owner:          i.Owner().Address(),
			State:          result.State,
			Balance:        result.Balance,
			BalanceDecimal: result.Balance.String(),
			SweepPending:   result.SweepPending,
		})
	}
}
