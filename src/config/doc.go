// Package config defines the configuration of a game table.
//
// The same Config serves the host and the players. It is filled with
// defaults, then with the content of gametable.toml (or .yaml, .json) in the
// data directory, then with command line flags. The data directory also holds
// the database of saved tables:
//
//  gametable.toml // (optional) configuration file.
//  badger_db/     // (optional) saved tables, when the store is enabled.
package config
