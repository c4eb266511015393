// Package constants holds shared domain-level constants.
package constants

// Deployment environment names, matched against config.Env.Env.
const (
	EnvDevelop    = "develop"
	EnvProduction = "production"
)

// Pub/Sub provider selector values, matched against config.PubSub.Provider.
const (
	PubSubProviderNoop   = "noop"
	PubSubProviderLocal  = "local"
	PubSubProviderGoogle = "google"
	PubSubProviderKafka  = "kafka"
)
