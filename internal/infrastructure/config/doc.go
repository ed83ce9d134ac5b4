// Package config loads the Helios Core configuration file.
//
// Precedence, lowest to highest: built-in defaults, the YAML file,
// HELIOS_* environment variables. The whole tree is validated after
// merging and Load fails with every problem listed, not just the
// first.
//
// Secrets (broker password, InfluxDB token) are expected to arrive
// via the environment so the YAML file can be committed to an
// installation's dotfiles without leaking credentials.
//
//	cfg, err := config.Load("configs/config.yaml")
//	if err != nil {
//	    log.Fatal(err)
//	}
package config
