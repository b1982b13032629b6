// Package llmaction implements the LLM action (spec §4.6): composing a
// prompt stack, invoking an LLM client, parsing and validating the reply
// against a union over the destination state's legal outgoing
// transitions, and retrying on failure up to a configured limit.
package llmaction

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/fla/fsmforge/pkg/action"
	"github.com/fla/fsmforge/pkg/emission"
	"github.com/fla/fsmforge/pkg/fsm"
	"github.com/fla/fsmforge/pkg/fsmerr"
	"github.com/fla/fsmforge/pkg/llmclient"
	"github.com/fla/fsmforge/pkg/schema"
)

// Name is the registry key for this action.
const Name = "llm"

// Config is this action's per-state configuration.
type Config struct {
	ClientName string // key into the llmclient.Registry passed to Register
	MaxRetries int
	RetryDelay time.Duration
	ErrorEdge  *fsm.XitionID // transition taken on retry exhaustion, if the FSM defines one
}

// ConfigSchema validates the action's per-state configuration block.
func ConfigSchema() schema.Value {
	return schema.Map(false,
		schema.Entry{Key: "client", Value: schema.String()},
		schema.Entry{Key: "max_retries", Optional: true, Value: schema.Int()},
	)
}

// Register installs the LLM action. schemaRegistry resolves the dynamic
// and named schemas transitions reference; errorEdges maps a state id to
// the pre-declared error transition its retry-exhaustion path should take,
// if any (spec §4.6: "emits an llm-error event on a pre-declared error
// transition if the FSM defines one, or fails the session otherwise").
func Register(reg *action.Registry, clients *llmclient.Registry, schemaRegistry *schema.Registry, dynamic schema.DynamicRegistry, defaultMaxRetries int, defaultRetryDelay time.Duration, errorEdges map[fsm.State]fsm.XitionID) {
	reg.Register(action.Registration{
		Name:         Name,
		ConfigSchema: ConfigSchema(),
		Factory: func(config map[string]interface{}, fsmDefRaw interface{}, xitionRaw interface{}, stateRaw interface{}) (action.Invocable, error) {
			fsmDef, _ := fsmDefRaw.(*fsm.FSMDef)
			state, _ := stateRaw.(fsm.StateDef)

			clientName, _ := config["client"].(string)
			maxRetries := defaultMaxRetries
			if mr, ok := config["max_retries"].(int); ok {
				maxRetries = mr
			}
			var errorEdge *fsm.XitionID
			if e, ok := errorEdges[state.ID]; ok {
				errorEdge = &e
			}

			client, ok := clients.Lookup(clientName)
			if !ok {
				return nil, fmt.Errorf("llm action: no such client %q", clientName)
			}

			cfg := Config{ClientName: clientName, MaxRetries: maxRetries, RetryDelay: defaultRetryDelay, ErrorEdge: errorEdge}
			return action.InvocableFunc(func(ctxRaw, eventRaw, trailRaw interface{}, continuation action.Continuation) error {
				return invoke(ctxRaw, eventRaw, trailRaw, fsmDef, state, client, schemaRegistry, dynamic, cfg, continuation)
			}), nil
		},
	})
}

func invoke(ctxRaw interface{}, eventRaw interface{}, trailRaw interface{}, fsmDef *fsm.FSMDef, state fsm.StateDef, client llmclient.Client, schemaRegistry *schema.Registry, dynamic schema.DynamicRegistry, cfg Config, continuation action.Continuation) error {
	ctx, _ := ctxRaw.(fsm.Context)
	trail, _ := trailRaw.(*fsm.Trail)
	arrived, _ := eventRaw.(fsm.Event)

	outgoing, err := fsmDef.OutgoingAvailable(state.ID, ctx, arrived)
	if err != nil {
		return err
	}
	if len(outgoing) == 0 {
		return fmt.Errorf("llm action: state %q has no outgoing transitions", state.ID)
	}

	outputSchema, auxName, auxRegistry, err := buildOutputSchema(outgoing, ctx, schemaRegistry, dynamic)
	if err != nil {
		return err
	}

	prompts := composePromptStack(fsmDef, state, outgoing, trail)
	schemaDescription := describeSchema(auxName, outputSchema, auxRegistry)

	messages := []llmclient.Message{{Role: "system", Content: strings.Join(prompts, "\n\n")}}

	var lastErr error
	for attempt := 0; attempt <= cfg.MaxRetries; attempt++ {
		if attempt > 0 {
			messages = append(messages, llmclient.Message{Role: "user", Content: fmt.Sprintf("%v", lastErr)})
			if cfg.RetryDelay > 0 {
				time.Sleep(cfg.RetryDelay)
			}
		}

		reply, err := client.Invoke(context.Background(), messages, schemaDescription)
		if err != nil {
			lastErr = err
			continue
		}

		parsed, err := parseReply(reply.Text)
		if err != nil {
			lastErr = err
			continue
		}

		if err := schema.Validate(outputSchema, parsed, schemaRegistry); err != nil {
			lastErr = fmt.Errorf("response failed schema validation: %w", err)
			continue
		}

		event, ok := parsed.(map[string]interface{})
		if !ok {
			lastErr = fmt.Errorf("llm action: parsed reply is not an object")
			continue
		}
		return continuation(ctx, fsm.Event(event))
	}

	if cfg.ErrorEdge != nil {
		errEvent := fsm.Event{
			"id":    []interface{}{string(cfg.ErrorEdge.From), string(cfg.ErrorEdge.To)},
			"error": fmt.Sprintf("%v", lastErr),
		}
		return continuation(ctx, errEvent)
	}
	return fsmerr.New(fsmerr.Validation, fmt.Errorf("llm action: exhausted %d retries: %w", cfg.MaxRetries, lastErr))
}

// buildOutputSchema unions the resolved schemas of every available
// outgoing transition (spec §4.6: "a union over the legal next
// transitions"), then emits it (spec §4.8/C9) to minimize prompt tokens.
func buildOutputSchema(outgoing []fsm.XitionDef, ctx fsm.Context, schemaRegistry *schema.Registry, dynamic schema.DynamicRegistry) (schema.Value, string, *schema.Registry, error) {
	branches := make([]schema.Value, 0, len(outgoing))
	for _, x := range outgoing {
		resolved, err := schema.Resolve(x.Schema, ctx, x, dynamic)
		if err != nil {
			return schema.Value{}, "", nil, err
		}
		branches = append(branches, resolved)
	}
	union := schema.Union(branches...)

	const rootName = "__llm_output"
	layered := schemaRegistry.Layer(map[string]schema.Value{rootName: union})
	result := emission.Emit(rootName, layered)

	auxRegistry := schema.Compose(nil, result.Auxiliary)
	return result.Inlined, rootName, auxRegistry, nil
}

// describeSchema renders a machine-readable description of the output
// schema plus its auxiliary registry for the model's benefit (spec §4.6
// step 1: "a machine-readable description of the input/output schemas").
func describeSchema(name string, inlined schema.Value, auxRegistry *schema.Registry) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Respond with structured data matching this schema (%s):\n", name)
	b.WriteString(describeValue(inlined, 0))
	if names := auxRegistry.Names(); len(names) > 0 {
		b.WriteString("\nAuxiliary named schemas:\n")
		for refName, v := range names {
			fmt.Fprintf(&b, "  %s: %s\n", refName, describeValue(v, 1))
		}
	}
	return b.String()
}

func describeValue(v schema.Value, indent int) string {
	b, err := json.Marshal(describeJSON(v))
	if err != nil {
		return fmt.Sprintf("<schema: %v>", v.Kind)
	}
	return string(b)
}

// describeJSON renders a schema.Value as a plain JSON-ish structure a
// model can read, independent of schema.Value's internal representation.
func describeJSON(v schema.Value) interface{} {
	switch v.Kind {
	case schema.KindString:
		return "string"
	case schema.KindInt:
		return "int"
	case schema.KindBool:
		return "boolean"
	case schema.KindAny:
		return "any"
	case schema.KindLiteral:
		return map[string]interface{}{"const": v.Literal}
	case schema.KindEnum:
		return map[string]interface{}{"enum": v.Enum}
	case schema.KindRef:
		return map[string]interface{}{"$ref": v.Ref}
	case schema.KindCollection:
		return map[string]interface{}{"collection": v.Collection, "elem": describeJSON(*v.Elem)}
	case schema.KindUnion:
		branches := make([]interface{}, 0, len(v.Branches))
		for _, b := range v.Branches {
			branches = append(branches, describeJSON(b))
		}
		return map[string]interface{}{"oneOf": branches}
	case schema.KindMap:
		entries := map[string]interface{}{}
		for _, e := range v.Entries {
			entries[e.Key] = map[string]interface{}{"optional": e.Optional, "schema": describeJSON(e.Value)}
		}
		return map[string]interface{}{"closed": v.Closed, "entries": entries}
	default:
		return "unknown"
	}
}

// composePromptStack builds the FSM-level, transition, and state prompt
// stack plus a serialized trail view (spec §4.6 step 1).
func composePromptStack(fsmDef *fsm.FSMDef, state fsm.StateDef, outgoing []fsm.XitionDef, trail *fsm.Trail) []string {
	var stack []string
	stack = append(stack, fsmDef.Prompts...)
	for _, x := range outgoing {
		stack = append(stack, x.Prompts...)
	}
	stack = append(stack, state.Prompts...)
	if trail != nil {
		stack = append(stack, serializeTrail(trail))
	}
	return stack
}

func serializeTrail(trail *fsm.Trail) string {
	entries := trail.Entries()
	var b strings.Builder
	b.WriteString("Trail so far:\n")
	for _, e := range entries {
		payload, _ := json.Marshal(map[string]interface{}(e.Event))
		fmt.Fprintf(&b, "  %s %s: %s\n", e.SeqID, e.Xition, payload)
	}
	return b.String()
}

// parseReply strips incidental Markdown fencing (spec §4.6 step 5) before
// parsing the reply text as JSON.
func parseReply(text string) (interface{}, error) {
	trimmed := strings.TrimSpace(text)
	if strings.HasPrefix(trimmed, "```") {
		trimmed = strings.TrimPrefix(trimmed, "```json")
		trimmed = strings.TrimPrefix(trimmed, "```")
		if idx := strings.LastIndex(trimmed, "```"); idx >= 0 {
			trimmed = trimmed[:idx]
		}
		trimmed = strings.TrimSpace(trimmed)
	}
	var v interface{}
	if err := json.Unmarshal([]byte(trimmed), &v); err != nil {
		return nil, fmt.Errorf("response was not valid structured data: %w", err)
	}
	return v, nil
}
