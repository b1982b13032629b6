package cache

import "github.com/fla/fsmforge/pkg/schema"

// RequestSchema projects c into the union over legal outgoing JSON-RPC
// envelopes spec §4.4 describes: one branch per known tool (tools/call),
// a single resources/read branch whose uri is an enum of every known
// resource URI (present only when there is at least one), one branch per
// known prompt (prompts/get), plus a standing logging/setLevel branch.
// Recomputed fresh
// from the snapshot every call — never memoized — so a tool just
// discovered via tools/list is visible on the very next resolution.
func RequestSchema(c *Cache) schema.Value {
	branches := []schema.Value{loggingSetLevelSchema()}

	if tools := c.Get(Tools); tools != nil {
		for _, t := range tools.Tools {
			branches = append(branches, toolCallBranch(t))
		}
	}
	if resources := c.Get(Resources); resources != nil {
		uris := make([]interface{}, 0, len(resources.Resources))
		for _, r := range resources.Resources {
			uris = append(uris, r.URI)
		}
		if len(uris) > 0 {
			branches = append(branches, resourceReadBranch(uris))
		}
	}
	if prompts := c.Get(Prompts); prompts != nil {
		for _, p := range prompts.Prompts {
			branches = append(branches, promptGetBranch(p))
		}
	}

	return schema.Union(branches...)
}

func toolCallBranch(t ToolEntry) schema.Value {
	return schema.Map(true,
		schema.Entry{Key: "jsonrpc", Value: schema.Literal("2.0")},
		schema.Entry{Key: "id", Value: schema.Any()},
		schema.Entry{Key: "method", Value: schema.Literal("tools/call")},
		schema.Entry{Key: "params", Value: schema.Map(true,
			schema.Entry{Key: "name", Value: schema.Literal(t.Name)},
			schema.Entry{Key: "arguments", Value: jsonSchemaToValue(t.InputSchema)},
		)},
	)
}

func resourceReadBranch(uris []interface{}) schema.Value {
	return schema.Map(true,
		schema.Entry{Key: "jsonrpc", Value: schema.Literal("2.0")},
		schema.Entry{Key: "id", Value: schema.Any()},
		schema.Entry{Key: "method", Value: schema.Literal("resources/read")},
		schema.Entry{Key: "params", Value: schema.Map(true,
			schema.Entry{Key: "uri", Value: schema.Enum(uris...)},
		)},
	)
}

func promptGetBranch(p PromptEntry) schema.Value {
	entries := make([]schema.Entry, 0, len(p.Arguments))
	for _, a := range p.Arguments {
		entries = append(entries, schema.Entry{Key: a.Name, Optional: !a.Required, Value: schema.String()})
	}
	return schema.Map(true,
		schema.Entry{Key: "jsonrpc", Value: schema.Literal("2.0")},
		schema.Entry{Key: "id", Value: schema.Any()},
		schema.Entry{Key: "method", Value: schema.Literal("prompts/get")},
		schema.Entry{Key: "params", Value: schema.Map(true,
			schema.Entry{Key: "name", Value: schema.Literal(p.Name)},
			schema.Entry{Key: "arguments", Value: schema.Map(false, entries...)},
		)},
	)
}

func loggingSetLevelSchema() schema.Value {
	return schema.Map(true,
		schema.Entry{Key: "jsonrpc", Value: schema.Literal("2.0")},
		schema.Entry{Key: "id", Value: schema.Any()},
		schema.Entry{Key: "method", Value: schema.Literal("logging/setLevel")},
		schema.Entry{Key: "params", Value: schema.Map(true,
			schema.Entry{Key: "level", Value: schema.Enum("debug", "info", "warning", "error")},
		)},
	)
}

// ResponseSchema projects c into the union over legal `result` bodies spec
// §4.4/§6 describe: tool-call content blocks, resource-read contents,
// prompt-get messages, plus one notification envelope.
func ResponseSchema(c *Cache) schema.Value {
	return schema.Union(
		toolResultSchema(),
		resourceReadResultSchema(),
		promptGetResultSchema(),
		notificationEnvelopeSchema(),
	)
}

func contentBlockSchema() schema.Value {
	return schema.Map(false,
		schema.Entry{Key: "type", Value: schema.Enum("text", "image", "audio", "resource_link", "resource")},
		schema.Entry{Key: "text", Optional: true, Value: schema.String()},
		schema.Entry{Key: "data", Optional: true, Value: schema.String()},
		schema.Entry{Key: "mimeType", Optional: true, Value: schema.String()},
		schema.Entry{Key: "uri", Optional: true, Value: schema.String()},
	)
}

func toolResultSchema() schema.Value {
	return schema.Map(true,
		schema.Entry{Key: "content", Value: schema.CollectionOf(schema.Vector, contentBlockSchema())},
		schema.Entry{Key: "isError", Optional: true, Value: schema.Bool()},
		schema.Entry{Key: "structuredContent", Optional: true, Value: schema.Any()},
	)
}

func resourceReadResultSchema() schema.Value {
	content := schema.Map(false,
		schema.Entry{Key: "uri", Value: schema.String()},
		schema.Entry{Key: "text", Optional: true, Value: schema.String()},
		schema.Entry{Key: "blob", Optional: true, Value: schema.String()},
		schema.Entry{Key: "mimeType", Optional: true, Value: schema.String()},
	)
	return schema.Map(true,
		schema.Entry{Key: "contents", Value: schema.CollectionOf(schema.Vector, content)},
	)
}

func promptGetResultSchema() schema.Value {
	message := schema.Map(true,
		schema.Entry{Key: "role", Value: schema.Enum("user", "assistant")},
		schema.Entry{Key: "content", Value: contentBlockSchema()},
	)
	return schema.Map(true,
		schema.Entry{Key: "description", Optional: true, Value: schema.String()},
		schema.Entry{Key: "messages", Value: schema.CollectionOf(schema.Vector, message)},
	)
}

func notificationEnvelopeSchema() schema.Value {
	return schema.Map(false,
		schema.Entry{Key: "jsonrpc", Value: schema.Literal("2.0")},
		schema.Entry{Key: "method", Value: schema.String()},
		schema.Entry{Key: "params", Optional: true, Value: schema.Any()},
	)
}

// jsonSchemaToValue lifts a raw `inputSchema` JSON-Schema-ish map (as
// reported by a tool's tools/list entry) into our own closed schema
// algebra. Only the subset MCP tool input schemas actually use is
// supported: {"type":"object","properties":{...},"required":[...]}; any
// other shape degrades to KindAny rather than failing, since the wire data
// here comes from a live tool server, not from this codebase's own
// definitions.
func jsonSchemaToValue(raw map[string]interface{}) schema.Value {
	if raw == nil {
		return schema.Any()
	}
	typ, _ := raw["type"].(string)
	if typ != "object" {
		return schema.Any()
	}
	props, _ := raw["properties"].(map[string]interface{})
	required := map[string]bool{}
	if reqList, ok := raw["required"].([]interface{}); ok {
		for _, r := range reqList {
			if s, ok := r.(string); ok {
				required[s] = true
			}
		}
	}
	entries := make([]schema.Entry, 0, len(props))
	for name, propRaw := range props {
		propMap, _ := propRaw.(map[string]interface{})
		entries = append(entries, schema.Entry{
			Key:      name,
			Optional: !required[name],
			Value:    jsonScalarToValue(propMap),
		})
	}
	return schema.Map(false, entries...)
}

func jsonScalarToValue(prop map[string]interface{}) schema.Value {
	if prop == nil {
		return schema.Any()
	}
	switch prop["type"] {
	case "string":
		return schema.String()
	case "integer", "number":
		return schema.Int()
	case "boolean":
		return schema.Bool()
	case "object":
		return jsonSchemaToValue(prop)
	default:
		return schema.Any()
	}
}
