package safety

import (
	"fmt"
	"strings"
	"time"

	errorsmod "cosmossdk.io/errors"
	clienttypes "github.com/cosmos/ibc-go/v10/modules/core/02-client/types"
	commitmenttypes "github.com/cosmos/ibc-go/v10/modules/core/23-commitment/types"
	ibctm "github.com/cosmos/ibc-go/v10/modules/light-clients/07-tendermint"
)

// DefaultUpgradePath is the upgrade path of Cosmos SDK chains
var DefaultUpgradePath = []string{"upgrade", "upgradedIBCState"}

// ClientStateView is the subset of an on-chain client state that carries the
// safety parameters.
type ClientStateView struct {
	ChainID        string
	MaxClockDrift  time.Duration
	TrustingPeriod time.Duration
	TrustThreshold ibctm.Fraction
}

// ViewFromClientState extracts the safety parameters of a Tendermint client state
func ViewFromClientState(cs *ibctm.ClientState) ClientStateView {
	return ClientStateView{
		ChainID:        cs.ChainId,
		MaxClockDrift:  cs.MaxClockDrift,
		TrustingPeriod: cs.TrustingPeriod,
		TrustThreshold: cs.TrustLevel,
	}
}

// NewClientState builds the Tendermint client state of subjectChainID at
// latestHeight carrying params, and validates it with ibc-go's own rules.
func NewClientState(subjectChainID string, params EffectiveClientParams, latestHeight uint64) (*ibctm.ClientState, error) {
	height := clienttypes.NewHeight(clienttypes.ParseChainID(subjectChainID), latestHeight)

	cs := ibctm.NewClientState(
		subjectChainID,
		params.TrustThreshold,
		params.TrustingPeriod,
		params.UnbondingPeriod,
		params.MaxClockDrift,
		height,
		commitmenttypes.GetSDKSpecs(),
		DefaultUpgradePath,
	)

	if err := cs.Validate(); err != nil {
		return nil, fmt.Errorf("invalid client state for %s: %w", subjectChainID, err)
	}
	return cs, nil
}

// VerifyEmbedded checks that the client state read back from the host chain
// carries exactly the resolved parameters.
func VerifyEmbedded(expected EffectiveClientParams, view ClientStateView) error {
	var diffs []string
	if view.MaxClockDrift != expected.MaxClockDrift {
		diffs = append(diffs, fmt.Sprintf("max_clock_drift: observed %s, expected %s", view.MaxClockDrift, expected.MaxClockDrift))
	}
	if view.TrustingPeriod != expected.TrustingPeriod {
		diffs = append(diffs, fmt.Sprintf("trusting_period: observed %s, expected %s", view.TrustingPeriod, expected.TrustingPeriod))
	}
	if view.TrustThreshold.Numerator != expected.TrustThreshold.Numerator ||
		view.TrustThreshold.Denominator != expected.TrustThreshold.Denominator {
		diffs = append(diffs, fmt.Sprintf("trust_threshold: observed %s, expected %s",
			FormatFraction(view.TrustThreshold), FormatFraction(expected.TrustThreshold)))
	}

	if len(diffs) > 0 {
		return errorsmod.Wrapf(ErrClientStateMismatch, "client of %s: %s", view.ChainID, strings.Join(diffs, "; "))
	}
	return nil
}
