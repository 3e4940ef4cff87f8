// Package config loads named resilience policies from a resilience.yml /
// .env pair using viper, with RESILIENCE_-prefixed environment overrides.
//
//	breakers:
//	  payments:
//	    failure_threshold: 3
//	    reset_timeout: 5s
//	limiters:
//	  api:
//	    strategy: token_bucket
//	    max: 100
//	    window: 1s
//
// The loaded Policies document is materialized into live components by
// resilience.NewRegistrySetFromPolicies.
package config
