// Package ledger provides implementations of ports.LedgerGateway.
//
// # Memory
//
// Memory is an in-process stand-in for the match and token-store contracts.
// Every call is recorded as a block in a SHA-256 hash chain, so receipts carry
// realistic transaction hashes and increasing block numbers. Contract rule
// violations are mined as reverted transactions (Success=false) just like a
// real chain would report them. It is used for demos and tests.
//
// # Relayer
//
// Relayer submits the same operations to an HTTP relayer that signs and
// broadcasts them on a real chain. Requests are authenticated with a
// short-lived HS256 token whose subject is the calling account, which is how
// the relayer knows who is staking or buying.
package ledger
