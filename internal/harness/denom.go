package harness

import (
	"strings"

	transfertypes "github.com/cosmos/ibc-go/v10/modules/apps/transfer/types"

	"github.com/MoonbridgeInc/hermes/internal/chain"
)

const (
	// MemoChar fills congestion-inflating memos
	MemoChar = "a"
	// DefaultMemoSize is large enough to raise the gas of a transfer noticeably
	DefaultMemoSize = 10_000
)

// DeriveIBCDenom returns the denom a recipient on a chain of the given kind
// holds after receiving baseDenom over port/channel. Cosmos SDK chains hold
// the hashed ibc/ denom; Namada keeps the full trace path.
func DeriveIBCDenom(kind chain.Kind, port, channel, baseDenom string) (string, error) {
	denom := transfertypes.NewDenom(baseDenom, transfertypes.NewHop(port, channel))

	switch kind {
	case chain.KindCosmosSDK:
		return denom.IBCDenom(), nil
	case chain.KindNamada:
		return denom.Path(), nil
	default:
		return "", chain.ErrUnsupportedChainKind.Wrapf("derive ibc denom on %s chain", kind)
	}
}

// LargeMemo returns a memo of size bytes
func LargeMemo(size int) string {
	if size <= 0 {
		return ""
	}
	return strings.Repeat(MemoChar, size)
}
