// Package abicodec encodes and decodes Ethereum ABI payloads for the Powers
// contracts: free-form mandate parameters, the constitute payload, the
// constructor arguments and the role and ownership calls issued while
// deploying an organization.
//
// Values are accepted in the loose shapes produced by forms and config files
// (decimal or hex strings, JSON numbers, hex byte strings) and returned in a
// canonical shape that can be fed back to Encode.
package abicodec
