// Package settings maintains access to the chain settings file. The values
// are consensus critical: every node on a network must run with the same
// settings or the nodes will diverge. Settings are loaded once at startup
// and treated as immutable afterwards.
package settings

import (
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/meridianchain/meridian/foundation/validate"
)

// Feature identifies a protocol rule change that activates at a height.
type Feature uint16

// Set of features that gate transaction types or consensus behavior.
const (
	FeatureMassTransfer Feature = iota + 1
	FeatureDataTransactions
	FeatureSmartAccounts
	FeatureSponsoredFees
)

// NativeAssetKey is the fee schedule key representing the native coin.
const NativeAssetKey = "native"

// =============================================================================

// Functionality represents the consensus thresholds consumed by value across
// the validation, diff, and proof of stake packages.
type Functionality struct {
	MaxTxTimeForwardOffset  time.Duration `json:"max_tx_time_forward_offset" validate:"required"`
	MaxTxTimeBackwardOffset time.Duration `json:"max_tx_time_backward_offset" validate:"required"`

	AllowTransactionsFromFutureUntil int64 `json:"allow_transactions_from_future_until"`
	AllowTemporaryNegativeUntil      int64 `json:"allow_temporary_negative_until"`
	AllowUnissuedAssetsUntil         int64 `json:"allow_unissued_assets_until"`

	GenerationBalanceDepthFrom50To1000AfterHeight uint64 `json:"generation_balance_depth_from_50_to_1000_after_height"`

	AverageBlockDelaySeconds int64 `json:"average_block_delay_seconds" validate:"required,gt=0"`

	// PreactivatedFeatures maps a feature id to the height the rule change
	// takes effect. A missing entry means the feature never activates.
	PreactivatedFeatures map[Feature]uint64 `json:"preactivated_features"`
}

// Fees represents the minimum base fee schedule. The outer key is the
// transaction type name, the inner key is either NativeAssetKey or the hex
// id of a sponsored asset.
type Fees struct {
	Minimum map[string]map[string]int64 `json:"minimum" validate:"required"`
}

// Genesis represents the chain bootstrap information.
type Genesis struct {
	Timestamp           int64            `json:"timestamp" validate:"required"`
	BaseTarget          int64            `json:"base_target" validate:"required,gt=0"`
	GenerationSignature string           `json:"generation_signature" validate:"required"`
	Balances            map[string]int64 `json:"balances" validate:"required"`
}

// Settings represents the full chain settings file.
type Settings struct {
	Functionality Functionality `json:"functionality"`
	Fees          Fees          `json:"fees"`
	Genesis       Genesis       `json:"genesis"`
}

// =============================================================================

// Default returns the settings used by networks that do not override the
// consensus thresholds.
func Default() Settings {
	return Settings{
		Functionality: Functionality{
			MaxTxTimeForwardOffset:   90 * time.Minute,
			MaxTxTimeBackwardOffset:  2 * time.Hour,
			AverageBlockDelaySeconds: 60,
			PreactivatedFeatures:     map[Feature]uint64{},
		},
		Fees: Fees{
			Minimum: map[string]map[string]int64{},
		},
	}
}

// Load opens and consumes the settings file.
func Load(path string) (Settings, error) {
	content, err := os.ReadFile(path)
	if err != nil {
		return Settings{}, fmt.Errorf("reading settings file: %w", err)
	}

	settings := Default()
	if err := json.Unmarshal(content, &settings); err != nil {
		return Settings{}, fmt.Errorf("parsing settings file: %w", err)
	}

	if err := validate.Check(settings); err != nil {
		return Settings{}, fmt.Errorf("validating settings: %w", err)
	}

	return settings, nil
}
