// Copyright (c) 2025 The VeChainThor developers

// Distributed under the GNU Lesser General Public License v3.0 software license, see the accompanying
// file LICENSE or <https://www.gnu.org/licenses/lgpl-3.0.html>

package health

import (
	"net/http"
	"time"

	"github.com/gorilla/mux"

	"github.com/vechain/devnode/api/utils"
)

const defaultDelayBuffer = 5 * time.Second

type API struct {
	health *Health
}

func NewAPI(health *Health) *API {
	return &API{
		health: health,
	}
}

func (a *API) handleGetHealth(w http.ResponseWriter, r *http.Request) error {
	delayBuffer := defaultDelayBuffer
	if q := r.URL.Query().Get("delayBuffer"); q != "" {
		if parsed, err := time.ParseDuration(q); err == nil {
			delayBuffer = parsed
		}
	}

	status := a.health.Status(delayBuffer)
	if !status.Healthy {
		return utils.WriteJSONStatus(w, http.StatusServiceUnavailable, status)
	}
	return utils.WriteJSON(w, status)
}

func (a *API) Mount(root *mux.Router, pathPrefix string) {
	sub := root.PathPrefix(pathPrefix).Subrouter()

	sub.Path("").
		Methods(http.MethodGet).
		Name("health").
		HandlerFunc(utils.WrapHandlerFunc(a.handleGetHealth))
}
