// Package config loads the service configuration from environment variables.
//
// Defaults target a local Anvil node on chain 31337 with static deployment
// data under ./static and a Redis instance on localhost. Chain endpoints are
// given as a chainId=url list:
//
//	CHAIN_RPC_URLS=31337=http://localhost:8545,11155111=https://sepolia.example
//	CHAIN_PRIVATE_KEY=0x...
//	POWERS_STORAGE=memory
//
// Load applies the environment and runs Validate.
package config
