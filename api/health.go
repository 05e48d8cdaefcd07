package api

import (
	"net/http"
	"time"

	"github.com/dimiro1/health"
	"github.com/vaultbridge/vaultbridge-node/health/checkers"
)

func (a *API) healthRoute(version string) http.Handler {
	healthHandler := health.NewHandler()

	if a.historyDB != nil {
		historyDBChecker := checkers.NewCheckerWithDB(a.historyDB.DB())
		healthHandler.AddChecker("historyDB", historyDBChecker)
	}
	if a.kvdb != nil {
		healthHandler.AddChecker("stateDB", checkers.NewKVDBChecker(a.kvdb))
	}
	healthHandler.AddChecker("redemption", checkers.NewReconcileChecker(a.manager))
	healthHandler.AddInfo("version", version)
	t := time.Now().UTC()
	healthHandler.AddInfo("timestamp", t)
	return healthHandler
}
