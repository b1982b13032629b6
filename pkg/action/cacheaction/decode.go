package cacheaction

import (
	"encoding/json"
	"fmt"

	"github.com/fla/fsmforge/pkg/bridge"
	"github.com/fla/fsmforge/pkg/cache"
)

// decodeEntries parses a `{capability}/list` response's result body into
// cache.Entries, per the MCP list-result shapes (spec §6): tools/list ->
// {tools:[...]}, prompts/list -> {prompts:[...]}, resources/list ->
// {resources:[...]}.
func decodeEntries(cap cache.Capability, resp bridge.Response) (cache.Entries, error) {
	if resp.Error != nil {
		return cache.Entries{}, fmt.Errorf("%s/list: %s", cap, resp.Error.Message)
	}

	switch cap {
	case cache.Tools:
		var body struct {
			Tools []struct {
				Name        string                 `json:"name"`
				Description string                 `json:"description"`
				InputSchema map[string]interface{} `json:"inputSchema"`
			} `json:"tools"`
		}
		if err := json.Unmarshal(resp.Result, &body); err != nil {
			return cache.Entries{}, err
		}
		out := make([]cache.ToolEntry, 0, len(body.Tools))
		for _, t := range body.Tools {
			out = append(out, cache.ToolEntry{Name: t.Name, Description: t.Description, InputSchema: t.InputSchema})
		}
		return cache.Entries{Tools: out}, nil

	case cache.Resources:
		var body struct {
			Resources []struct {
				URI      string `json:"uri"`
				Name     string `json:"name"`
				MimeType string `json:"mimeType"`
			} `json:"resources"`
		}
		if err := json.Unmarshal(resp.Result, &body); err != nil {
			return cache.Entries{}, err
		}
		out := make([]cache.ResourceEntry, 0, len(body.Resources))
		for _, r := range body.Resources {
			out = append(out, cache.ResourceEntry{URI: r.URI, Name: r.Name, MimeType: r.MimeType})
		}
		return cache.Entries{Resources: out}, nil

	case cache.Prompts:
		var body struct {
			Prompts []struct {
				Name      string `json:"name"`
				Arguments []struct {
					Name     string `json:"name"`
					Required bool   `json:"required"`
				} `json:"arguments"`
			} `json:"prompts"`
		}
		if err := json.Unmarshal(resp.Result, &body); err != nil {
			return cache.Entries{}, err
		}
		out := make([]cache.PromptEntry, 0, len(body.Prompts))
		for _, p := range body.Prompts {
			args := make([]cache.PromptArgument, 0, len(p.Arguments))
			for _, a := range p.Arguments {
				args = append(args, cache.PromptArgument{Name: a.Name, Required: a.Required})
			}
			out = append(out, cache.PromptEntry{Name: p.Name, Arguments: args})
		}
		return cache.Entries{Prompts: out}, nil

	default:
		return cache.Entries{}, fmt.Errorf("unknown capability %q", cap)
	}
}
