package types

import (
	"github.com/go-playground/validator/v10"
)

// Config carries every externally supplied parameter the scheme and the
// settlement executor consume. There are no trusted in-code defaults:
// a Config that fails validation is a fatal startup error.
type Config struct {
	// ChainID selects the ledger network, one of the closed set.
	ChainID string `json:"chainId" validate:"required,oneof=1 D T"`

	// Gas schedule. All four constants feed transfer.EstimateGas and are
	// never baked into the encoder itself.
	GasBaseCost          uint64 `json:"gasBaseCost" validate:"required"`
	GasPerByteCost       uint64 `json:"gasPerByteCost" validate:"required"`
	GasTransferSurcharge uint64 `json:"gasTransferSurcharge" validate:"required"`
	GasRelayedSurcharge  uint64 `json:"gasRelayedSurcharge" validate:"required"`

	// GasPrice declared on constructed transactions.
	GasPrice uint64 `json:"gasPrice" validate:"required"`

	// Validity window defaults.
	DefaultValiditySeconds    int64 `json:"defaultValiditySeconds" validate:"required,gt=0"`
	ClockSkewAllowanceSeconds int64 `json:"clockSkewAllowanceSeconds" validate:"gte=0"`

	// Settlement polling bounds.
	MaxSettlementPollSeconds      int64 `json:"maxSettlementPollSeconds" validate:"required,gt=0"`
	SettlementPollIntervalSeconds int64 `json:"settlementPollIntervalSeconds" validate:"required,gt=0"`

	// SubmitRetries bounds resubmission attempts for transient errors.
	SubmitRetries int `json:"submitRetries" validate:"gte=0"`

	// ProxyURL is the gateway endpoint used by the HTTP network provider.
	// Optional when the caller injects its own NetworkProvider.
	ProxyURL string `json:"proxyUrl,omitempty" validate:"omitempty,url"`
}

var validate = validator.New()

// Validate fails fast with MissingConfiguration when a required key is
// absent or out of range.
func (c *Config) Validate() error {
	if c == nil {
		return Errf(ErrMissingConfiguration, "configuration is nil")
	}
	if err := validate.Struct(c); err != nil {
		return Errf(ErrMissingConfiguration, "invalid configuration: %v", err)
	}
	if _, err := ParseChainID(c.ChainID); err != nil {
		return Errf(ErrMissingConfiguration, "invalid chain id %q", c.ChainID)
	}
	return nil
}

// GasSchedule is the subset of Config consumed by the transfer encoder.
type GasSchedule struct {
	BaseCost          uint64
	PerByteCost       uint64
	TransferSurcharge uint64
	RelayedSurcharge  uint64
}

// GasSchedule extracts the encoder's gas constants.
func (c *Config) GasSchedule() GasSchedule {
	return GasSchedule{
		BaseCost:          c.GasBaseCost,
		PerByteCost:       c.GasPerByteCost,
		TransferSurcharge: c.GasTransferSurcharge,
		RelayedSurcharge:  c.GasRelayedSurcharge,
	}
}
