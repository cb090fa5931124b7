package public

import (
	"fmt"

	"github.com/meridianchain/meridian/foundation/events"
	"github.com/meridianchain/meridian/foundation/ledger/diff"
	"github.com/meridianchain/meridian/foundation/ledger/transaction"
)

type blockInfo struct {
	ID     string `json:"id"`
	Height uint64 `json:"height"`
	Score  string `json:"score"`
	Ready  bool   `json:"ready"`
}

func toBlockInfo(info events.BlockInfo) blockInfo {
	score := "0"
	if info.Score != nil {
		score = info.Score.String()
	}

	return blockInfo{
		ID:     info.ID.String(),
		Height: info.Height,
		Score:  score,
		Ready:  info.Ready,
	}
}

type portfolio struct {
	Address  string           `json:"address"`
	Balance  int64            `json:"balance"`
	LeaseIn  int64            `json:"lease_in"`
	LeaseOut int64            `json:"lease_out"`
	Assets   map[string]int64 `json:"assets,omitempty"`
}

func toPortfolio(addr transaction.Address, p diff.Portfolio) portfolio {
	model := portfolio{
		Address:  addr.String(),
		Balance:  p.Balance,
		LeaseIn:  p.LeaseIn,
		LeaseOut: p.LeaseOut,
	}
	if len(p.Assets) > 0 {
		model.Assets = make(map[string]int64, len(p.Assets))
		for id, amount := range p.Assets {
			model.Assets[id.String()] = amount
		}
	}
	return model
}

type assetInfo struct {
	ID         string `json:"id"`
	Issuer     string `json:"issuer"`
	Name       string `json:"name"`
	Decimals   byte   `json:"decimals"`
	Reissuable bool   `json:"reissuable"`
	Quantity   int64  `json:"quantity"`
}

func toAssetInfo(id transaction.Digest, info diff.AssetInfo) assetInfo {
	return assetInfo{
		ID:         id.String(),
		Issuer:     info.Issuer.String(),
		Name:       info.Name,
		Decimals:   info.Decimals,
		Reissuable: info.Reissuable,
		Quantity:   info.Quantity,
	}
}

type dataEntry struct {
	Key   string `json:"key"`
	Kind  string `json:"kind"`
	Value any    `json:"value"`
}

func toDataEntry(entry transaction.DataEntry) dataEntry {
	model := dataEntry{Key: entry.Key}
	switch entry.Kind {
	case transaction.DataInteger:
		model.Kind = "integer"
		model.Value = entry.Int
	case transaction.DataBoolean:
		model.Kind = "boolean"
		model.Value = entry.Bool
	case transaction.DataBinary:
		model.Kind = "binary"
		model.Value = entry.Bin
	case transaction.DataString:
		model.Kind = "string"
		model.Value = entry.Str
	}
	return model
}

type txInfo struct {
	ID        string `json:"id"`
	Type      string `json:"type"`
	Height    uint64 `json:"height"`
	Timestamp int64  `json:"timestamp"`
	Fee       int64  `json:"fee"`
}

func toTxInfo(id transaction.Digest, info diff.TxInfo) txInfo {
	return txInfo{
		ID:        id.String(),
		Type:      info.Tx.GetType().String(),
		Height:    info.Height,
		Timestamp: info.Tx.GetTimestamp(),
		Fee:       info.Tx.GetFee(),
	}
}

func errNotFound(kind string, id string) error {
	return fmt.Errorf("%s %s not found", kind, id)
}
