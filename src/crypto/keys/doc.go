// Package keys implements the key-pair that identifies an overlay node.
//
// Every node owns a secp256k1 key-pair. The public key, in hexadecimal form,
// is the node ID that a node announces in its Hello message; two connections
// carrying the same node ID on both ends are a node talking to itself, and the
// handshake refuses them. The private key never leaves the node's data
// directory.
package keys
