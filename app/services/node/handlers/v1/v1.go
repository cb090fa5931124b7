// Package v1 contains the full set of handler functions and routes
// supported by the v1 web api.
package v1

import (
	"net/http"

	"github.com/meridianchain/meridian/app/services/node/handlers/v1/private"
	"github.com/meridianchain/meridian/app/services/node/handlers/v1/public"
	"github.com/meridianchain/meridian/foundation/events"
	"github.com/meridianchain/meridian/foundation/ledger/settings"
	"github.com/meridianchain/meridian/foundation/ledger/state"
	"github.com/meridianchain/meridian/foundation/ledger/updater"
	"github.com/meridianchain/meridian/foundation/web"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

const version = "v1"

// Config contains all the mandatory systems required by handlers.
type Config struct {
	Log      *zap.SugaredLogger
	Settings settings.Settings
	Updater  *updater.Updater
	Store    *state.Memory
	Evts     *events.Events
}

// PublicRoutes binds all the version 1 public routes.
func PublicRoutes(app *web.App, cfg Config) {
	pbl := public.Handlers{
		Log:      cfg.Log,
		Settings: cfg.Settings,
		Updater:  cfg.Updater,
		Store:    cfg.Store,
		WS:       websocket.Upgrader{},
		Evts:     cfg.Evts,
	}

	app.Handle(http.MethodGet, version, "/events", pbl.Events)
	app.Handle(http.MethodGet, version, "/genesis", pbl.Genesis)
	app.Handle(http.MethodGet, version, "/chain/status", pbl.Status)
	app.Handle(http.MethodGet, version, "/accounts/:address", pbl.Account)
	app.Handle(http.MethodGet, version, "/assets/:asset", pbl.Asset)
	app.Handle(http.MethodGet, version, "/accounts/:address/data/:key", pbl.AccountData)
	app.Handle(http.MethodGet, version, "/tx/:id", pbl.Transaction)
}

// PrivateRoutes binds all the version 1 private routes.
func PrivateRoutes(app *web.App, cfg Config) {
	prv := private.Handlers{
		Log:     cfg.Log,
		Updater: cfg.Updater,
	}

	app.Handle(http.MethodGet, version, "/node/status", prv.Status)
	app.Handle(http.MethodPost, version, "/node/block", prv.SubmitBlock)
	app.Handle(http.MethodPost, version, "/node/microblock", prv.SubmitMicroBlock)
	app.Handle(http.MethodPost, version, "/node/rollback/:block", prv.Rollback)
}
