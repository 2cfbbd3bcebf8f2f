package chain

import (
	"fmt"
	"strings"
)

// Kind selects the client implementation used to talk to a chain.
type Kind string

const (
	KindCosmosSDK Kind = "cosmos-sdk"
	KindNamada    Kind = "namada"
	KindPenumbra  Kind = "penumbra"
)

// ParseKind parses the `type` field of a chain config. Both the dashed form
// and the config file spelling (CosmosSdk) are accepted; an empty value means
// cosmos-sdk.
func ParseKind(s string) (Kind, error) {
	normalized := strings.NewReplacer("-", "", "_", "").Replace(strings.ToLower(strings.TrimSpace(s)))
	switch normalized {
	case "", "cosmossdk":
		return KindCosmosSDK, nil
	case "namada":
		return KindNamada, nil
	case "penumbra":
		return KindPenumbra, nil
	default:
		return "", ErrUnsupportedChainKind.Wrapf("unknown chain type %q", s)
	}
}

// ConfigName is the spelling used in the `type` field of config.toml
func (k Kind) ConfigName() string {
	switch k {
	case KindCosmosSDK:
		return "CosmosSdk"
	case KindNamada:
		return "Namada"
	case KindPenumbra:
		return "Penumbra"
	default:
		return string(k)
	}
}

// Supported reports whether the relayer can query and sign for this kind.
func (k Kind) Supported() bool {
	return k == KindCosmosSDK || k == KindNamada
}

func (k Kind) String() string {
	return string(k)
}

// errUnsupported builds the error returned by every operation on an
// unsupported chain.
func errUnsupported(kind Kind, chainID, op string) error {
	return ErrUnsupportedChainKind.Wrap(fmt.Sprintf("chain %s of type %s: %s", chainID, kind, op))
}
