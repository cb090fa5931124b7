// Package public maintains the group of handlers for public access.
package public

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/meridianchain/meridian/business/web/errs"
	"github.com/meridianchain/meridian/foundation/events"
	"github.com/meridianchain/meridian/foundation/ledger/settings"
	"github.com/meridianchain/meridian/foundation/ledger/state"
	"github.com/meridianchain/meridian/foundation/ledger/transaction"
	"github.com/meridianchain/meridian/foundation/ledger/updater"
	"github.com/meridianchain/meridian/foundation/web"
)

// Handlers manages the set of public node endpoints.
type Handlers struct {
	Log      *zap.SugaredLogger
	Settings settings.Settings
	Updater  *updater.Updater
	Store    *state.Memory
	WS       websocket.Upgrader
	Evts     *events.Events
}

// Events handles a web socket to provide last block notifications to a
// client.
func (h Handlers) Events(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
	v, err := web.GetValues(ctx)
	if err != nil {
		return web.NewShutdownError("web value missing from context")
	}

	h.WS.CheckOrigin = func(r *http.Request) bool { return true }

	c, err := h.WS.Upgrade(w, r, nil)
	if err != nil {
		return err
	}
	defer c.Close()

	ch := h.Evts.Acquire(v.TraceID)
	defer h.Evts.Release(v.TraceID)

	ticker := time.NewTicker(time.Second)
	defer ticker.Stop()

	for {
		select {
		case info, wd := <-ch:
			if !wd {
				return nil
			}

			msg, err := json.Marshal(toBlockInfo(info))
			if err != nil {
				return err
			}
			if err := c.WriteMessage(websocket.TextMessage, msg); err != nil {
				return err
			}

		case <-ticker.C:
			if err := c.WriteMessage(websocket.PingMessage, []byte("ping")); err != nil {
				return nil
			}
		}
	}
}

// Genesis returns the chain bootstrap information.
func (h Handlers) Genesis(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
	return web.Respond(ctx, w, h.Settings.Genesis, http.StatusOK)
}

// Status returns the latest committed block information.
func (h Handlers) Status(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
	info := h.Updater.LastBlockInfo()
	return web.Respond(ctx, w, toBlockInfo(info), http.StatusOK)
}

// Account returns the committed portfolio of an account.
func (h Handlers) Account(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
	addr, err := parseAddress(web.Param(r, "address"))
	if err != nil {
		return errs.NewTrusted(err, http.StatusBadRequest)
	}

	p := h.Store.Portfolio(addr)
	return web.Respond(ctx, w, toPortfolio(addr, p), http.StatusOK)
}

// Asset returns the registry entry of an issued asset.
func (h Handlers) Asset(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
	id, err := parseDigest(web.Param(r, "asset"))
	if err != nil {
		return errs.NewTrusted(err, http.StatusBadRequest)
	}

	info, exists := h.Store.AssetInfo(id)
	if !exists {
		return errs.NewTrusted(errNotFound("asset", id.String()), http.StatusNotFound)
	}

	return web.Respond(ctx, w, toAssetInfo(id, info), http.StatusOK)
}

// AccountData returns a typed data entry stored on an account.
func (h Handlers) AccountData(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
	addr, err := parseAddress(web.Param(r, "address"))
	if err != nil {
		return errs.NewTrusted(err, http.StatusBadRequest)
	}
	key := web.Param(r, "key")

	entry, exists := h.Store.AccountData(addr, key)
	if !exists {
		return errs.NewTrusted(errNotFound("data entry", key), http.StatusNotFound)
	}

	return web.Respond(ctx, w, toDataEntry(entry), http.StatusOK)
}

// Transaction returns a committed transaction by id.
func (h Handlers) Transaction(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
	id, err := parseDigest(web.Param(r, "id"))
	if err != nil {
		return errs.NewTrusted(err, http.StatusBadRequest)
	}

	info, exists := h.Store.TransactionInfo(id)
	if !exists {
		return errs.NewTrusted(errNotFound("transaction", id.String()), http.StatusNotFound)
	}

	return web.Respond(ctx, w, toTxInfo(id, info), http.StatusOK)
}

// =============================================================================

func parseAddress(value string) (transaction.Address, error) {
	raw, err := hexutil.Decode(value)
	if err != nil {
		return transaction.Address{}, err
	}
	return transaction.AddressFromBytes(raw)
}

func parseDigest(value string) (transaction.Digest, error) {
	raw, err := hexutil.Decode(value)
	if err != nil {
		return transaction.Digest{}, err
	}
	return transaction.DigestFromBytes(raw)
}
