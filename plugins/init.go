// Package plugins registers all built-in detectors and handlers.
package plugins

import (
	"firestige.xyz/wiresentry/pkg/plugin"
	"firestige.xyz/wiresentry/plugins/detector/arpspoof"
	"firestige.xyz/wiresentry/plugins/detector/dnsspoof"
	"firestige.xyz/wiresentry/plugins/detector/portscan"
	"firestige.xyz/wiresentry/plugins/handler/email"
	"firestige.xyz/wiresentry/plugins/handler/kafka"
	"firestige.xyz/wiresentry/plugins/handler/logger"
	"firestige.xyz/wiresentry/plugins/handler/webhook"
)

func init() {
	// Register detector plugins
	plugin.RegisterDetector("arpspoof", arpspoof.New)
	plugin.RegisterDetector("portscan", portscan.New)
	plugin.RegisterDetector("dnsspoof", dnsspoof.New)

	// Register handler plugins
	plugin.RegisterHandler(logger.Name, logger.New)
	plugin.RegisterHandler(email.Name, email.New)
	plugin.RegisterHandler(webhook.Name, webhook.New)
	plugin.RegisterHandler(kafka.Name, kafka.New)
}
