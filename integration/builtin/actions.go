package builtin

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"time"
)

// webhookReceive is the trigger passthrough: the event data flowing into
// the first step comes back out unchanged so downstream steps can read it.
func webhookReceive(_ context.Context, input map[string]any) (map[string]any, error) {
	return dataOf(input), nil
}

// httpRequest performs an HTTP call described by the input map. Only
// http(s) URLs are accepted.
func httpRequest(ctx context.Context, input map[string]any) (map[string]any, error) {
	rawURL, _ := input["url"].(string)
	parsed, err := url.Parse(rawURL)
	if err != nil || (parsed.Scheme != "http" && parsed.Scheme != "https") || parsed.Host == "" {
		return nil, fmt.Errorf("Invalid URL: %s", rawURL)
	}

	method, _ := input["method"].(string)
	if method == "" {
		method = http.MethodGet
	}

	timeout := 30 * time.Second
	if raw, ok := input["timeout"].(string); ok && raw != "" {
		if d, parseErr := time.ParseDuration(raw); parseErr == nil {
			timeout = d
		}
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	var bodyReader io.Reader
	if body, ok := input["body"].(map[string]any); ok {
		data, marshalErr := json.Marshal(body)
		if marshalErr != nil {
			return nil, fmt.Errorf("encode request body: %w", marshalErr)
		}
		bodyReader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, rawURL, bodyReader)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	if bodyReader != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if headers, ok := input["headers"].(map[string]any); ok {
		for k, v := range headers {
			if s, sok := v.(string); sok {
				req.Header.Set(k, s)
			}
		}
	}

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("http request failed: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 10<<20))
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}

	// Parse JSON responses; anything else comes back as a string.
	var body any
	if json.Unmarshal(raw, &body) != nil {
		body = string(raw)
	}

	respHeaders := make(map[string]any, len(resp.Header))
	for k, values := range resp.Header {
		if len(values) > 0 {
			respHeaders[k] = values[0]
		}
	}

	return map[string]any{
		"status":  resp.StatusCode,
		"body":    body,
		"headers": respHeaders,
	}, nil
}

// logAction returns an action that logs its data at the given level and
// passes it through unchanged.
func logAction(logger *slog.Logger, level slog.Level) func(context.Context, map[string]any) (map[string]any, error) {
	return func(ctx context.Context, input map[string]any) (map[string]any, error) {
		data := dataOf(input)
		message, _ := input["message"].(string)
		if message == "" {
			message = "Pipeline log"
		}
		logger.Log(ctx, level, message, "data", data)
		return data, nil
	}
}

// mapFields renames top-level fields by a {from: to} table. Only mapped
// fields appear in the output.
func mapFields(_ context.Context, input map[string]any) (map[string]any, error) {
	mapping, ok := input["mapping"].(map[string]any)
	if !ok {
		return nil, fmt.Errorf("map_fields: 'mapping' must be a map")
	}

	out := make(map[string]any, len(mapping))
	for from, rawTo := range mapping {
		to, tok := rawTo.(string)
		if !tok {
			return nil, fmt.Errorf("map_fields: target for %q must be a string", from)
		}
		if v, present := input[from]; present {
			out[to] = v
		}
	}
	return out, nil
}

// pickFields projects the listed top-level fields from the input.
func pickFields(_ context.Context, input map[string]any) (map[string]any, error) {
	rawFields, ok := input["fields"].([]any)
	if !ok {
		return nil, fmt.Errorf("pick: 'fields' must be a list")
	}

	out := make(map[string]any, len(rawFields))
	for _, raw := range rawFields {
		field, fok := raw.(string)
		if !fok {
			return nil, fmt.Errorf("pick: field names must be strings")
		}
		if v, present := input[field]; present {
			out[field] = v
		}
	}
	return out, nil
}

// mergeValues overlays a static values map onto the upstream data, the
// static values winning.
func mergeValues(_ context.Context, input map[string]any) (map[string]any, error) {
	values, ok := input["values"].(map[string]any)
	if !ok {
		return nil, fmt.Errorf("merge: 'values' must be a map")
	}

	out := dataOf(input)
	delete(out, "values")
	for k, v := range values {
		out[k] = v
	}
	return out, nil
}
