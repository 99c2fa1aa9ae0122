// Package builtin registers the pocsync.builtin integration: the stock
// actions every deployment ships with (webhook passthrough, HTTP requests,
// logging, field transforms).
package builtin

import (
	"log/slog"

	"github.com/pocsync/innhook/integration"
)

// IntegrationName is the namespace the stock actions register under.
const IntegrationName = "pocsync.builtin"

// Register installs the builtin integration into the registry.
func Register(registry *integration.Registry, logger *slog.Logger) error {
	if logger == nil {
		logger = slog.Default()
	}

	return registry.Register(integration.Integration{
		Name:        IntegrationName,
		Description: "Built-in webhook, HTTP, logging and transform actions",
		Actions: map[string]integration.ActionDefinition{
			"pocsync.webhook.receive": {
				Name:        "pocsync.webhook.receive",
				Description: "Trigger passthrough: emits the incoming event data unchanged",
				Executor:    webhookReceive,
			},
			"pocsync.http.request": {
				Name:        "pocsync.http.request",
				Description: "Performs an HTTP request and returns status, headers and body",
				Executor:    httpRequest,
				InputSchema: map[string]any{"required": []any{"url"}},
			},
			"pocsync.log.info": {
				Name:        "pocsync.log.info",
				Description: "Logs its input at info level and passes it through",
				Executor:    logAction(logger, slog.LevelInfo),
			},
			"pocsync.log.error": {
				Name:        "pocsync.log.error",
				Description: "Logs its input at error level and passes it through",
				Executor:    logAction(logger, slog.LevelError),
			},
			"pocsync.transform.map_fields": {
				Name:        "pocsync.transform.map_fields",
				Description: "Renames top-level fields by a {from: to} mapping table",
				Executor:    mapFields,
				InputSchema: map[string]any{"required": []any{"mapping"}},
			},
			"pocsync.transform.pick": {
				Name:        "pocsync.transform.pick",
				Description: "Projects the listed top-level fields",
				Executor:    pickFields,
				InputSchema: map[string]any{"required": []any{"fields"}},
			},
			"pocsync.transform.merge": {
				Name:        "pocsync.transform.merge",
				Description: "Overlays a static values map onto the input",
				Executor:    mergeValues,
				InputSchema: map[string]any{"required": []any{"values"}},
			},
			"pocsync.transform.jq": {
				Name:        "pocsync.transform.jq",
				Description: "Applies a jq expression to the input",
				Executor:    jqTransform,
				InputSchema: map[string]any{"required": []any{"expression"}},
			},
			"pocsync.transform.condition": {
				Name:        "pocsync.transform.condition",
				Description: "Evaluates a boolean expression over the input",
				Executor:    condition,
				InputSchema: map[string]any{"required": []any{"expression"}},
			},
		},
	})
}

// reservedInputKeys are the executor-assembled keys stripped from
// passthrough outputs so they don't echo back as data.
var reservedInputKeys = map[string]bool{
	"pipeline_data": true,
	"context":       true,
}

// dataOf returns the input minus the executor-assembled helper keys.
func dataOf(input map[string]any) map[string]any {
	out := make(map[string]any, len(input))
	for k, v := range input {
		if reservedInputKeys[k] {
			continue
		}
		out[k] = v
	}
	return out
}
