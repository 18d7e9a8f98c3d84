package config

import (
	"fmt"
	"os"
	"strings"
)

const (
	EnvMainnet = "mainnet"
	EnvFuji    = "fuji"
	EnvTestnet = "testnet"
)

var (
	ErrInvalidEnvironment = fmt.Errorf("invalid environment")
)

type NetworkConfig struct {
	Moniker   string
	APIURL    string
	NetworkID uint32
	HRP       string
}

// PChainURL is the JSON-RPC endpoint of the platform API.
func (c *NetworkConfig) PChainURL() string {
	return strings.TrimRight(c.APIURL, "/") + PChainPath
}

// InfoURL is the JSON-RPC endpoint of the info API.
func (c *NetworkConfig) InfoURL() string {
	return strings.TrimRight(c.APIURL, "/") + InfoPath
}

func NetworkConfigForEnv(env string) (*NetworkConfig, error) {
	var config *NetworkConfig
	switch env {
	case EnvMainnet:
		config = &NetworkConfig{
			Moniker:   EnvMainnet,
			APIURL:    MainnetAPIURL,
			NetworkID: MainnetNetworkID,
			HRP:       MainnetHRP,
		}
	case EnvFuji, EnvTestnet:
		config = &NetworkConfig{
			Moniker:   EnvFuji,
			APIURL:    FujiAPIURL,
			NetworkID: FujiNetworkID,
			HRP:       FujiHRP,
		}
	default:
		return nil, fmt.Errorf("%w %q, must be one of: %s, %s", ErrInvalidEnvironment, env, EnvMainnet, EnvFuji)
	}

	apiURL := os.Getenv(APIURLEnvVar)
	if apiURL != "" {
		config.APIURL = apiURL
	}

	return config, nil
}
