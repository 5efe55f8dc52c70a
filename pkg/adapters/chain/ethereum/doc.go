// Package ethereum implements the chain port on go-ethereum's ethclient.
//
// A Client signs with one private key and serializes its own transactions,
// so nonces stay ordered when several deployments share an account.
package ethereum
