package domain

// Entity is a persisted host-platform record.
type Entity struct {
	GUID       string         `json:"guid"`
	EntityName string         `json:"entity,omitempty"`
	Attributes map[string]any `json:"attributes"`
}

func NewEntity(guid, entityName string) *Entity {
	return &Entity{
		GUID:       guid,
		EntityName: entityName,
		Attributes: make(map[string]any),
	}
}

func (e *Entity) Set(attribute string, value any) {
	if e.Attributes == nil {
		e.Attributes = make(map[string]any)
	}
	e.Attributes[attribute] = value
}

func (e *Entity) Get(attribute string) (any, bool) {
	v, ok := e.Attributes[attribute]
	return v, ok
}

// Origin identifies the host form/context an action is issued from.
type Origin string

const ApplyToSelection = "selection"

type ActionRequest struct {
	ActionName string   `json:"actionname"`
	ApplyTo    string   `json:"applyto"`
	GUIDs      []string `json:"guids"`
	Origin     Origin   `json:"origin,omitempty"`
}
