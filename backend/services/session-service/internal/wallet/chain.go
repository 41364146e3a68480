package wallet

import (
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/params"
)

// NativeCurrency is the EIP-3085 currency descriptor.
type NativeCurrency struct {
	Name     string `json:"name"`
	Symbol   string `json:"symbol"`
	Decimals int    `json:"decimals"`
}

// ChainParams describes the network the wallet must be on.
type ChainParams struct {
	ChainID      uint64
	ChainName    string
	Currency     NativeCurrency
	RPCURLs      []string
	ExplorerURLs []string
}

// Sepolia returns the Sepolia test network parameters with the given endpoints.
func Sepolia(rpcURL, explorerURL string) ChainParams {
	p := ChainParams{
		ChainID:   params.SepoliaChainConfig.ChainID.Uint64(),
		ChainName: "Sepolia Test Network",
		Currency:  NativeCurrency{Name: "SepoliaETH", Symbol: "ETH", Decimals: 18},
	}
	if rpcURL != "" {
		p.RPCURLs = []string{rpcURL}
	}
	if explorerURL != "" {
		p.ExplorerURLs = []string{explorerURL}
	}
	return p
}

// HexChainID returns the chain id as a 0x-prefixed quantity.
func (p ChainParams) HexChainID() string {
	return hexutil.EncodeUint64(p.ChainID)
}

type switchChainParam struct {
	ChainID string `json:"chainId"`
}

type addChainParam struct {
	ChainID           string         `json:"chainId"`
	ChainName         string         `json:"chainName"`
	NativeCurrency    NativeCurrency `json:"nativeCurrency"`
	RPCURLs           []string       `json:"rpcUrls"`
	BlockExplorerURLs []string       `json:"blockExplorerUrls,omitempty"`
}

func (p ChainParams) addParam() addChainParam {
	return addChainParam{
		ChainID:           p.HexChainID(),
		ChainName:         p.ChainName,
		NativeCurrency:    p.Currency,
		RPCURLs:           p.RPCURLs,
		BlockExplorerURLs: p.ExplorerURLs,
	}
}
