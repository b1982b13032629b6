package fsm

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/fla/fsmforge/pkg/schema"
	"github.com/pkg/errors"
	"gopkg.in/yaml.v2"
)

// DefDocument is the on-disk shape of an FSM definition: the YAML/JSON
// document a store.FSMStore hands back as raw bytes. Field names are kept
// short and snake_case for hand-authored definitions, mirroring the
// teacher's ConfigMachine/StateConfig/TransitionConfig document shapes in
// the original config.go.
type DefDocument struct {
	ID          string                   `json:"id" yaml:"id"`
	Description string                   `json:"description" yaml:"description"`
	Prompts     []string                 `json:"prompts" yaml:"prompts"`
	Schemas     map[string]SchemaDoc     `json:"schemas" yaml:"schemas"`
	Hats        map[string]HatDoc        `json:"hats" yaml:"hats"`
	States      []StateDoc               `json:"states" yaml:"states"`
	Xitions     []XitionDoc              `json:"xitions" yaml:"xitions"`
}

// StateDoc is one state entry in a DefDocument.
type StateDoc struct {
	ID      string                 `json:"id" yaml:"id"`
	Action  string                 `json:"action" yaml:"action"`
	Prompts []string               `json:"prompts" yaml:"prompts"`
	Hats    []string               `json:"hats" yaml:"hats"`
	Config  map[string]interface{} `json:"config" yaml:"config"`
}

// XitionDoc is one transition entry in a DefDocument. From/To use "@" as
// the hat-anchor placeholder when the document is itself a hat body.
type XitionDoc struct {
	From        string      `json:"from" yaml:"from"`
	To          string      `json:"to" yaml:"to"`
	Label       string      `json:"label" yaml:"label"`
	Description string      `json:"description" yaml:"description"`
	Prompts     []string    `json:"prompts" yaml:"prompts"`
	// Schema is a ref name into Schemas, a dynamic key (when Dynamic is
	// true), or the literal boolean `true` (spec §9's Open Question,
	// resolved in SPEC_FULL.md §4.1): "permit anything", recognized via
	// schema.IsWildcardTrue before either of the other two interpretations
	// is tried.
	Schema      interface{} `json:"schema" yaml:"schema"`
	Dynamic     bool        `json:"dynamic" yaml:"dynamic"` // true: Schema names a dynamic schema function key
	Omit        bool        `json:"omit" yaml:"omit"`
	When        string      `json:"when" yaml:"when"` // optional expr-lang guard expression
}

// HatDoc is one hat entry: states/xitions written relative to "@".
type HatDoc struct {
	States  []StateDoc  `json:"states" yaml:"states"`
	Xitions []XitionDoc `json:"xitions" yaml:"xitions"`
}

// SchemaDoc is a structural schema written as nested YAML/JSON, the
// document-level counterpart of schema.Value. Only a subset of shapes is
// representable this way: primitives by kind name, closed/open maps,
// vectors/sets, unions, literals, enums, and refs. Dynamic schemas never
// appear here — they're registered in Go and referenced by key from
// XitionDoc.Dynamic.
type SchemaDoc struct {
	Kind     string               `json:"kind" yaml:"kind"` // string|int|bool|any|map|vector|set|union|literal|enum|ref
	Closed   bool                 `json:"closed" yaml:"closed"`
	Entries  []SchemaEntryDoc     `json:"entries" yaml:"entries"`
	Elem     *SchemaDoc           `json:"elem" yaml:"elem"`
	Branches []SchemaDoc          `json:"branches" yaml:"branches"`
	Literal  interface{}          `json:"literal" yaml:"literal"`
	Enum     []interface{}        `json:"enum" yaml:"enum"`
	Ref      string               `json:"ref" yaml:"ref"`
}

// SchemaEntryDoc is one map entry in a SchemaDoc.
type SchemaEntryDoc struct {
	Key      string    `json:"key" yaml:"key"`
	Optional bool      `json:"optional" yaml:"optional"`
	Value    SchemaDoc `json:"value" yaml:"value"`
}

// LoadDefFromYAML reads and parses an FSM definition document from YAML.
func LoadDefFromYAML(path string) (*DefDocument, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrapf(err, "fsm: read %q", path)
	}
	var doc DefDocument
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, errors.Wrapf(err, "fsm: parse YAML %q", path)
	}
	return &doc, nil
}

// LoadDefFromJSON reads and parses an FSM definition document from JSON.
func LoadDefFromJSON(path string) (*DefDocument, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrapf(err, "fsm: read %q", path)
	}
	var doc DefDocument
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, errors.Wrapf(err, "fsm: parse JSON %q", path)
	}
	return &doc, nil
}

// LoadDef dispatches to LoadDefFromYAML or LoadDefFromJSON by extension.
func LoadDef(path string) (*DefDocument, error) {
	if strings.HasSuffix(path, ".json") {
		return LoadDefFromJSON(path)
	}
	return LoadDefFromYAML(path)
}

// BuildSchema converts a SchemaDoc into a schema.Value.
func BuildSchema(doc SchemaDoc) (schema.Value, error) {
	switch doc.Kind {
	case "string":
		return schema.String(), nil
	case "int":
		return schema.Int(), nil
	case "bool", "boolean":
		return schema.Bool(), nil
	case "any", "":
		return schema.Any(), nil
	case "map":
		entries := make([]schema.Entry, 0, len(doc.Entries))
		for _, e := range doc.Entries {
			v, err := BuildSchema(e.Value)
			if err != nil {
				return schema.Value{}, fmt.Errorf("map entry %q: %w", e.Key, err)
			}
			entries = append(entries, schema.Entry{Key: e.Key, Optional: e.Optional, Value: v})
		}
		return schema.Map(doc.Closed, entries...), nil
	case "vector", "set":
		if doc.Elem == nil {
			return schema.Value{}, fmt.Errorf("%s schema missing elem", doc.Kind)
		}
		elem, err := BuildSchema(*doc.Elem)
		if err != nil {
			return schema.Value{}, err
		}
		kind := schema.Vector
		if doc.Kind == "set" {
			kind = schema.Set
		}
		return schema.CollectionOf(kind, elem), nil
	case "union":
		branches := make([]schema.Value, 0, len(doc.Branches))
		for i, b := range doc.Branches {
			v, err := BuildSchema(b)
			if err != nil {
				return schema.Value{}, fmt.Errorf("union branch %d: %w", i, err)
			}
			branches = append(branches, v)
		}
		return schema.Union(branches...), nil
	case "literal":
		return schema.Literal(doc.Literal), nil
	case "enum":
		return schema.Enum(doc.Enum...), nil
	case "ref":
		return schema.Ref(doc.Ref), nil
	default:
		return schema.Value{}, fmt.Errorf("unknown schema kind %q", doc.Kind)
	}
}

// BuildDef converts a parsed DefDocument into a hat-expanded *FSMDef,
// compiling every transition's optional guard and resolving its schema
// reference. schemaOrDynamicKey: when XitionDoc.Dynamic is true, Schema is
// stored as the string key itself (for schema.Resolve); otherwise it is
// resolved eagerly against the document's own Schemas map.
func BuildDef(doc *DefDocument) (*FSMDef, error) {
	builtSchemas := map[string]schema.Value{}
	for name, sdoc := range doc.Schemas {
		v, err := BuildSchema(sdoc)
		if err != nil {
			return nil, fmt.Errorf("schema %q: %w", name, err)
		}
		builtSchemas[name] = v
	}

	hats := map[string]Hat{}
	for name, hdoc := range doc.Hats {
		hat, err := buildHat(name, hdoc, builtSchemas)
		if err != nil {
			return nil, err
		}
		hats[name] = hat
	}

	def := &FSMDef{
		ID:          doc.ID,
		Description: doc.Description,
		Prompts:     doc.Prompts,
		Schemas:     builtSchemas,
		Hats:        hats,
	}

	for _, sdoc := range doc.States {
		def.States = append(def.States, StateDef{
			ID:      State(sdoc.ID),
			Action:  sdoc.Action,
			Prompts: sdoc.Prompts,
			Hats:    sdoc.Hats,
		})
	}

	for _, xdoc := range doc.Xitions {
		xition, err := buildXition(xdoc, builtSchemas)
		if err != nil {
			return nil, err
		}
		def.Xitions = append(def.Xitions, xition)
	}

	return ExpandHats(def)
}

// ExtractStateConfigs pulls each state's action configuration block out of
// doc, keyed by state id, for callers building the stateConfigs argument
// NewEngine requires. BuildDef itself drops StateDoc.Config because FSMDef
// is meant to describe shape, not per-state action wiring (spec §4.7:
// "configurations are validated at session start", which happens against
// this map, not against anything carried on StateDef).
func ExtractStateConfigs(doc *DefDocument) map[State]map[string]interface{} {
	out := map[State]map[string]interface{}{}
	for _, sdoc := range doc.States {
		if sdoc.Config != nil {
			out[State(sdoc.ID)] = sdoc.Config
		}
	}
	return out
}

func buildHat(name string, hdoc HatDoc, schemas map[string]schema.Value) (Hat, error) {
	hat := Hat{Name: name}
	for _, sdoc := range hdoc.States {
		hat.States = append(hat.States, StateDef{
			ID:      State(sdoc.ID),
			Action:  sdoc.Action,
			Prompts: sdoc.Prompts,
			Hats:    sdoc.Hats,
		})
	}
	for _, xdoc := range hdoc.Xitions {
		xition, err := buildXition(xdoc, schemas)
		if err != nil {
			return Hat{}, fmt.Errorf("hat %q: %w", name, err)
		}
		hat.Xitions = append(hat.Xitions, xition)
	}
	return hat, nil
}

func buildXition(xdoc XitionDoc, schemas map[string]schema.Value) (XitionDef, error) {
	var guard *Guard
	if xdoc.When != "" {
		g, err := CompileGuard(xdoc.When)
		if err != nil {
			return XitionDef{}, fmt.Errorf("transition %s->%s: guard: %w", xdoc.From, xdoc.To, err)
		}
		guard = g
	}

	var schemaOrKey interface{}
	switch {
	case schema.IsWildcardTrue(xdoc.Schema):
		schemaOrKey = schema.Any()
	case xdoc.Dynamic:
		key, _ := xdoc.Schema.(string)
		schemaOrKey = key
	default:
		name, _ := xdoc.Schema.(string)
		v, ok := schemas[name]
		if !ok {
			return XitionDef{}, fmt.Errorf("transition %s->%s: unknown schema %q", xdoc.From, xdoc.To, xdoc.Schema)
		}
		schemaOrKey = v
	}

	return XitionDef{
		ID:          XitionID{From: State(xdoc.From), To: State(xdoc.To)},
		Label:       xdoc.Label,
		Description: xdoc.Description,
		Prompts:     xdoc.Prompts,
		Schema:      schemaOrKey,
		Omit:        xdoc.Omit,
		When:        guard,
	}, nil
}
