package config

const (
	// TopicSummaryEmbed is the NSQ topic for background summary embedding tasks.
	TopicSummaryEmbed = "document.summary.embed"
)
