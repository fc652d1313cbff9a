package home

import (
	"encoding/json"
	"fmt"
)

// --------------------------------------------------------------------------
// Constants
// --------------------------------------------------------------------------

const (
	// DefaultClientURL is the client used when no custom client is configured.
	DefaultClientURL = "https://client.moera.org/releases/latest"

	// PayloadVersion is the layout version reported in every Envelope.
	PayloadVersion = 2

	// EnvelopeSource and EnvelopeAction identify the messages sent to tabs.
	EnvelopeSource = "moera"
	EnvelopeAction = "loadedData"

	// LockName is the name of the lock serializing all client data mutations.
	LockName = "clientData"
)

// Reserved field names of the client data blob
const (
	fieldHome     = "home"
	fieldLocation = "location"
	fieldNodeName = "nodeName"
	fieldClientID = "clientId"
	fieldVersion  = "version"
	fieldRoots    = "roots"
)

// --------------------------------------------------------------------------
// Root
// --------------------------------------------------------------------------

// Root is one home location known for a client URL.
// URL is the identity of the root, Name is a display label and may be nil.
type Root struct {
	URL  string  `json:"url"`
	Name *string `json:"name"`
}

// findRoot returns the root with the given url or nil
func findRoot(roots []Root, url string) *Root {
	for i := range roots {
		if roots[i].URL == url {
			return &roots[i]
		}
	}
	return nil
}

// rootName returns the name of the root with the given url, nil if unknown or unnamed
func rootName(roots []Root, url string) *string {
	if root := findRoot(roots, url); root != nil {
		return root.Name
	}
	return nil
}

// setRoot replaces the root with the given url in place or appends it.
func setRoot(roots []Root, url string, name *string) []Root {
	updated := make([]Root, 0, len(roots)+1)
	found := false
	for _, root := range roots {
		if root.URL == url {
			root = Root{URL: url, Name: name}
			found = true
		}
		updated = append(updated, root)
	}
	if !found {
		updated = append(updated, Root{URL: url, Name: name})
	}
	return updated
}

// removeRoot returns roots without the entry for url, keeping the order
func removeRoot(roots []Root, url string) []Root {
	pruned := make([]Root, 0, len(roots))
	for _, root := range roots {
		if root.URL != url {
			pruned = append(pruned, root)
		}
	}
	return pruned
}

// --------------------------------------------------------------------------
// Client Data
// --------------------------------------------------------------------------

// HomeInfo is the "home" object of the client data.
// Location and NodeName are managed by the store, every other field of
// the object is kept in Extra.
type HomeInfo struct {
	Location string
	NodeName *string
	Extra    map[string]json.RawMessage
}

func (h *HomeInfo) clone() *HomeInfo {
	if h == nil {
		return nil
	}
	c := &HomeInfo{Location: h.Location, NodeName: h.NodeName, Extra: make(map[string]json.RawMessage, len(h.Extra))}
	for k, v := range h.Extra {
		c.Extra[k] = v
	}
	return c
}

// ClientData is the opaque data blob stored per (client URL, root).
// All top level fields except "home" are kept verbatim in Fields.
//
// MarshalJSON produces the persisted form: home.location, home.nodeName
// and clientId are never written.
type ClientData struct {
	Home   *HomeInfo
	Fields map[string]json.RawMessage
}

// NewClientData returns an empty client data blob
func NewClientData() *ClientData {
	return &ClientData{Fields: map[string]json.RawMessage{}}
}

// Location returns home.location, or "" if absent
func (d *ClientData) Location() string {
	if d == nil || d.Home == nil {
		return ""
	}
	return d.Home.Location
}

// NodeName returns home.nodeName, or nil if absent
func (d *ClientData) NodeName() *string {
	if d == nil || d.Home == nil {
		return nil
	}
	return d.Home.NodeName
}

// Merge overwrites the top level fields of d with the fields of other.
// A "home" object in other replaces the home of d as a whole.
func (d *ClientData) Merge(other *ClientData) {
	if other == nil {
		return
	}
	if d.Fields == nil {
		d.Fields = map[string]json.RawMessage{}
	}
	for k, v := range other.Fields {
		d.Fields[k] = v
	}
	if other.Home != nil {
		d.Home = other.Home.clone()
	}
}

func (d *ClientData) UnmarshalJSON(b []byte) error {
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(b, &raw); err != nil {
		return fmt.Errorf("client data: %w", err)
	}

	d.Home = nil
	d.Fields = make(map[string]json.RawMessage, len(raw))
	for k, v := range raw {
		if k == fieldHome {
			home, err := parseHome(v)
			if err != nil {
				return err
			}
			d.Home = home
			continue
		}
		d.Fields[k] = v
	}
	return nil
}

func (d ClientData) MarshalJSON() ([]byte, error) {
	out := make(map[string]json.RawMessage, len(d.Fields)+1)
	for k, v := range d.Fields {
		if k == fieldClientID {
			continue
		}
		out[k] = v
	}
	if d.Home != nil {
		home, err := renderHome(d.Home.Extra, nil)
		if err != nil {
			return nil, err
		}
		out[fieldHome] = home
	}
	return json.Marshal(out)
}

// parseHome splits a raw "home" value into the managed and the extra fields.
// A null home is treated as absent.
func parseHome(raw json.RawMessage) (*HomeInfo, error) {
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(raw, &fields); err != nil {
		return nil, fmt.Errorf("client data: home must be an object: %w", err)
	}
	if fields == nil {
		return nil, nil
	}

	home := &HomeInfo{Extra: make(map[string]json.RawMessage, len(fields))}
	for k, v := range fields {
		switch k {
		case fieldLocation:
			var location *string
			if err := json.Unmarshal(v, &location); err != nil {
				return nil, fmt.Errorf("client data: home.location must be a string: %w", err)
			}
			if location != nil {
				home.Location = *location
			}
		case fieldNodeName:
			if err := json.Unmarshal(v, &home.NodeName); err != nil {
				return nil, fmt.Errorf("client data: home.nodeName must be a string: %w", err)
			}
		default:
			home.Extra[k] = v
		}
	}
	return home, nil
}

// homeView holds the managed fields rendered into a home object
type homeView struct {
	location string
	nodeName *string
}

// renderHome encodes a home object from its extra fields and, if view is not nil,
// the location and nodeName (nodeName is rendered as null when unset).
func renderHome(extra map[string]json.RawMessage, view *homeView) (json.RawMessage, error) {
	out := make(map[string]any, len(extra)+2)
	for k, v := range extra {
		out[k] = v
	}
	if view != nil {
		out[fieldLocation] = view.location
		out[fieldNodeName] = view.nodeName
	}
	return json.Marshal(out)
}

// --------------------------------------------------------------------------
// Envelope
// --------------------------------------------------------------------------

// Envelope is the message returned to and broadcast to tabs.
type Envelope struct {
	Source  string  `json:"source"`
	Action  string  `json:"action"`
	Payload Payload `json:"payload"`
}

// Payload is the versioned content of an Envelope.
//
// Home is nil when no current root resolved. Roots is nil when the
// registry was not part of the response; an empty registry is an empty,
// non-nil slice.
type Payload struct {
	Version int
	Home    *HomeInfo
	Fields  map[string]json.RawMessage
	Roots   []Root
}

// emptyEnvelope returns an Envelope with neither home nor roots
func emptyEnvelope() Envelope {
	return Envelope{
		Source:  EnvelopeSource,
		Action:  EnvelopeAction,
		Payload: Payload{Version: PayloadVersion},
	}
}

// loadedEnvelope returns an Envelope presenting data as the data of the
// current root, with the managed home fields derived from the registry.
func loadedEnvelope(current string, data *ClientData, roots []Root) Envelope {
	env := emptyEnvelope()
	if data == nil {
		data = NewClientData()
	}

	home := &HomeInfo{Location: current, NodeName: rootName(roots, current)}
	if data.Home != nil {
		home.Extra = data.Home.clone().Extra
	}

	env.Payload.Home = home
	env.Payload.Fields = data.Fields
	env.Payload.Roots = roots
	return env
}

// HasHome reports whether the payload carries the data of a current root
func (p Payload) HasHome() bool {
	return p.Home != nil
}

func (p Payload) MarshalJSON() ([]byte, error) {
	out := make(map[string]any, len(p.Fields)+3)
	for k, v := range p.Fields {
		out[k] = v
	}
	if p.Home != nil {
		home, err := renderHome(p.Home.Extra, &homeView{location: p.Home.Location, nodeName: p.Home.NodeName})
		if err != nil {
			return nil, err
		}
		out[fieldHome] = home
	}
	if p.Roots != nil {
		out[fieldRoots] = p.Roots
	}
	out[fieldVersion] = p.Version
	return json.Marshal(out)
}

func (p *Payload) UnmarshalJSON(b []byte) error {
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(b, &raw); err != nil {
		return fmt.Errorf("payload: %w", err)
	}

	*p = Payload{Fields: map[string]json.RawMessage{}}
	for k, v := range raw {
		switch k {
		case fieldVersion:
			if err := json.Unmarshal(v, &p.Version); err != nil {
				return fmt.Errorf("payload: version: %w", err)
			}
		case fieldRoots:
			var roots []Root
			if err := json.Unmarshal(v, &roots); err != nil {
				return fmt.Errorf("payload: roots: %w", err)
			}
			if roots == nil {
				roots = []Root{}
			}
			p.Roots = roots
		case fieldHome:
			home, err := parseHome(v)
			if err != nil {
				return err
			}
			p.Home = home
		default:
			p.Fields[k] = v
		}
	}
	return nil
}
