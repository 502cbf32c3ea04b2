// Package config loads application configuration from a YAML file with
// environment overrides.
//
// Resolution order: built-in defaults, then the YAML file (DOCSEARCH_CONFIG
// or ./docsearch.yaml), then environment variables. A missing file is fine;
// secrets like API keys are read only from the environment.
package config
