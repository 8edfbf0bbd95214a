package productboard

import (
	"bytes"
	_ "embed"
	"encoding/json"
	"fmt"
	"net/url"
	"strings"

	"github.com/santhosh-tekuri/jsonschema/v6"

	"github.com/AlieInmar1/pbtoado-sub002/pkg/types"
)

//go:embed schema/event.json
var eventSchemaJSON []byte

var eventSchema = mustCompileSchema("https://pbtoado.local/schema/event.json", eventSchemaJSON)

func mustCompileSchema(name string, data []byte) *jsonschema.Schema {
	doc, err := jsonschema.UnmarshalJSON(bytes.NewReader(data))
	if err != nil {
		panic(fmt.Sprintf("parsing %s: %v", name, err))
	}
	c := jsonschema.NewCompiler()
	if err := c.AddResource(name, doc); err != nil {
		panic(fmt.Sprintf("adding %s: %v", name, err))
	}
	sch, err := c.Compile(name)
	if err != nil {
		panic(fmt.Sprintf("compiling %s: %v", name, err))
	}
	return sch
}

// Family groups the recognized inbound event types.
type Family string

const (
	FamilyFeature     Family = "feature"
	FamilyCustomField Family = "custom_field"
)

// Event type prefixes.
const (
	featureEventPrefix     = "feature."
	customFieldEventPrefix = "hierarchy-entity.custom-field-value."
	hierarchyEntityParam   = "hierarchyEntity.id"
)

// Event is a parsed inbound webhook event.
type Event struct {
	Type     string
	Family   Family
	ItemID   string
	ItemType string
	Target   string
}

type rawEvent struct {
	Data struct {
		EventType string  `json:"eventType"`
		ID        *string `json:"id"`
		Links     *struct {
			Target *string `json:"target"`
		} `json:"links"`
	} `json:"data"`
}

// ParseEvent validates and decodes an inbound payload and resolves the item id.
// It returns a *types.ParseError for malformed payloads, unrecognized event
// types and unresolvable ids. The returned Event carries whatever could be
// decoded, so callers can still record the event type.
func ParseEvent(body []byte) (Event, error) {
	inst, err := jsonschema.UnmarshalJSON(bytes.NewReader(body))
	if err != nil {
		return Event{}, &types.ParseError{Reason: "malformed JSON: " + err.Error()}
	}
	if err := eventSchema.Validate(inst); err != nil {
		return Event{}, &types.ParseError{Reason: "payload does not match event schema: " + firstLine(err.Error())}
	}

	var raw rawEvent
	if err := json.Unmarshal(body, &raw); err != nil {
		return Event{}, &types.ParseError{Reason: "decoding event: " + err.Error()}
	}
	ev := Event{Type: raw.Data.EventType}
	if raw.Data.Links != nil && raw.Data.Links.Target != nil {
		ev.Target = *raw.Data.Links.Target
	}

	switch {
	case strings.HasPrefix(ev.Type, featureEventPrefix):
		ev.Family = FamilyFeature
		ev.ItemType = "feature"
		if raw.Data.ID != nil {
			ev.ItemID = strings.TrimSpace(*raw.Data.ID)
		}
		if ev.ItemID == "" {
			ev.ItemID = featureIDFromTarget(ev.Target)
		}
	case strings.HasPrefix(ev.Type, customFieldEventPrefix):
		ev.Family = FamilyCustomField
		ev.ItemType = "feature"
		ev.ItemID = hierarchyEntityFromTarget(ev.Target)
	default:
		return ev, &types.ParseError{Reason: fmt.Sprintf("unrecognized event type %q", ev.Type)}
	}

	if ev.ItemID == "" {
		return ev, &types.ParseError{Reason: fmt.Sprintf("no item id in %s event", ev.Type)}
	}
	return ev, nil
}

// hierarchyEntityFromTarget reads the hierarchyEntity.id query parameter that
// custom field events embed in links.target.
func hierarchyEntityFromTarget(target string) string {
	if target == "" {
		return ""
	}
	u, err := url.Parse(target)
	if err != nil {
		return ""
	}
	return strings.TrimSpace(u.Query().Get(hierarchyEntityParam))
}

func featureIDFromTarget(target string) string {
	if target == "" {
		return ""
	}
	u, err := url.Parse(target)
	if err != nil {
		return ""
	}
	parts := strings.Split(strings.Trim(u.Path, "/"), "/")
	if len(parts) >= 2 && parts[len(parts)-2] == "features" {
		return parts[len(parts)-1]
	}
	return ""
}

func firstLine(s string) string {
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		return s[:i]
	}
	return s
}
