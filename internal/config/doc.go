// Package config defines the daemon configuration.
//
// [Config] is loaded from a YAML file with [LoadFile]; secrets may be
// supplied through the environment instead. Per-call timeouts and start-up
// retry settings come from [LoadTimeouts]. [Capabilities] is the fixed table
// of network service capabilities the provider advertises.
package config
