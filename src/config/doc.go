// Package config defines the configuration for an overlay node.
//
// Regardless of how the node is started, directly from Go code or as a
// standalone process from the command line, it uses the Config object defined
// in this package to store and forward configuration options. On top of these
// configuration options, the node relies on a data directory, defined by
// Config.DataDir, where it expects to find a few additional files:
//
//  priv_key // a plain text file containing the raw private key (cf. overlay keygen).
//  peers.json // (optional) a JSON file containing the seed peer addresses.
//  overlay.toml // (optional) the configuration file; .json and .yaml also work.
package config
