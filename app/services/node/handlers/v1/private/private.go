// Package private maintains the group of handlers for node to node access.
package private

import (
	"context"
	"net/http"

	"github.com/ethereum/go-ethereum/common/hexutil"
	"go.uber.org/zap"

	"github.com/meridianchain/meridian/business/web/errs"
	"github.com/meridianchain/meridian/foundation/ledger/block"
	"github.com/meridianchain/meridian/foundation/ledger/transaction"
	"github.com/meridianchain/meridian/foundation/ledger/updater"
	"github.com/meridianchain/meridian/foundation/web"
)

// Handlers manages the set of node to node endpoints.
type Handlers struct {
	Log     *zap.SugaredLogger
	Updater *updater.Updater
}

// Status returns the latest committed block information.
func (h Handlers) Status(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
	info := h.Updater.LastBlockInfo()

	resp := struct {
		ID     string `json:"id"`
		Height uint64 `json:"height"`
		Score  string `json:"score"`
	}{
		ID:     info.ID.String(),
		Height: info.Height,
		Score:  info.Score.String(),
	}

	return web.Respond(ctx, w, resp, http.StatusOK)
}

// SubmitBlock accepts a block in wire form and applies it to the chain.
func (h Handlers) SubmitBlock(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
	var payload struct {
		Block string `json:"block"`
	}
	if err := web.Decode(r, &payload); err != nil {
		return errs.NewTrusted(err, http.StatusBadRequest)
	}

	raw, err := hexutil.Decode(payload.Block)
	if err != nil {
		return errs.NewTrusted(err, http.StatusBadRequest)
	}

	b, err := block.Parse(raw)
	if err != nil {
		return errs.NewTrusted(err, http.StatusBadRequest)
	}

	discarded, err := h.Updater.ProcessBlock(b)
	if err != nil {
		return errs.NewTrusted(err, http.StatusConflict)
	}

	ids := make([]string, 0, len(discarded))
	for _, tx := range discarded {
		id, err := tx.ID()
		if err != nil {
			continue
		}
		ids = append(ids, id.String())
	}

	resp := struct {
		Status    string   `json:"status"`
		Discarded []string `json:"discarded,omitempty"`
	}{
		Status:    "block accepted",
		Discarded: ids,
	}

	return web.Respond(ctx, w, resp, http.StatusOK)
}

// SubmitMicroBlock accepts a micro block in wire form and provisionally
// extends the latest block.
func (h Handlers) SubmitMicroBlock(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
	var payload struct {
		MicroBlock string `json:"micro_block"`
	}
	if err := web.Decode(r, &payload); err != nil {
		return errs.NewTrusted(err, http.StatusBadRequest)
	}

	raw, err := hexutil.Decode(payload.MicroBlock)
	if err != nil {
		return errs.NewTrusted(err, http.StatusBadRequest)
	}

	mb, err := block.ParseMicroBlock(raw)
	if err != nil {
		return errs.NewTrusted(err, http.StatusBadRequest)
	}

	if err := h.Updater.ProcessMicroBlock(mb); err != nil {
		return errs.NewTrusted(err, http.StatusConflict)
	}

	resp := struct {
		Status string `json:"status"`
	}{
		Status: "micro block accepted",
	}

	return web.Respond(ctx, w, resp, http.StatusOK)
}

// Rollback unwinds the chain back to the named ancestor block.
func (h Handlers) Rollback(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
	raw, err := hexutil.Decode(web.Param(r, "block"))
	if err != nil {
		return errs.NewTrusted(err, http.StatusBadRequest)
	}
	id, err := transaction.DigestFromBytes(raw)
	if err != nil {
		return errs.NewTrusted(err, http.StatusBadRequest)
	}

	removed, err := h.Updater.RemoveAfter(id)
	if err != nil {
		return errs.NewTrusted(err, http.StatusConflict)
	}

	ids := make([]string, 0, len(removed))
	for _, b := range removed {
		id, err := b.ID()
		if err != nil {
			continue
		}
		ids = append(ids, id.String())
	}

	resp := struct {
		Status  string   `json:"status"`
		Removed []string `json:"removed,omitempty"`
	}{
		Status:  "chain rolled back",
		Removed: ids,
	}

	return web.Respond(ctx, w, resp, http.StatusOK)
}
