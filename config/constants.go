package config

const (
	// Mainnet constants.
	MainnetAPIURL    = "https://api.avax.network"
	MainnetNetworkID = 1
	MainnetHRP       = "avax"

	// Fuji constants.
	FujiAPIURL    = "https://api.avax-test.network"
	FujiNetworkID = 5
	FujiHRP       = "fuji"

	// Endpoint paths relative to the API base URL.
	PChainPath = "/ext/bc/P"
	InfoPath   = "/ext/info"

	// APIURLEnvVar overrides the API base URL of any environment.
	APIURLEnvVar = "STAKES_API_URL"
)
