// Package relay maps dispatch targets to broker topics and payload
// encodings. Adding a target is a configuration change, not a code change.
package relay

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
)

// ErrUnknownTarget is returned when a dispatch names a target that is not
// registered. Checked before any code verification or publish.
var ErrUnknownTarget = errors.New("unknown target")

// Encoder turns the user-supplied command string into the broker payload
// for one target.
type Encoder func(command string) ([]byte, error)

// RawCommand passes the command token through unchanged, e.g. "ON" for a
// relay board that parses bare tokens.
func RawCommand(command string) ([]byte, error) {
	return []byte(command), nil
}

// SwitchState wraps the command in a structured set-state message for
// devices that expect JSON.
func SwitchState(command string) ([]byte, error) {
	return json.Marshal(struct {
		Command string `json:"command"`
		State   string `json:"state"`
	}{Command: "set_state", State: command})
}

// Target is one actuator reachable through the transport.
type Target struct {
	ID     string
	Topic  string
	Encode Encoder
}

// Registry is the per-target configuration table.
type Registry struct {
	targets map[string]Target
}

// NewRegistry returns a registry containing the given targets. Later
// entries with a duplicate ID replace earlier ones.
func NewRegistry(targets ...Target) *Registry {
	r := &Registry{targets: make(map[string]Target, len(targets))}
	for _, t := range targets {
		r.targets[t.ID] = t
	}
	return r
}

// DefaultTargets covers the stock installation: a light switch expecting
// structured state commands and two relays taking bare tokens on their own
// topics.
func DefaultTargets() []Target {
	return []Target{
		{ID: "light", Topic: "light", Encode: SwitchState},
		{ID: "relay_1", Topic: "relay_1", Encode: RawCommand},
		{ID: "relay_2", Topic: "relay_2", Encode: RawCommand},
	}
}

// Resolve returns the target registered under id.
func (r *Registry) Resolve(id string) (Target, bool) {
	t, ok := r.targets[id]
	return t, ok
}

// IDs returns the registered target ids, unordered.
func (r *Registry) IDs() []string {
	out := make([]string, 0, len(r.targets))
	for id := range r.targets {
		out = append(out, id)
	}
	return out
}

// ParseTargets parses the TARGETS config value, a comma-separated list of
// "id=topic:encoding" items where encoding is "raw" or "switch", e.g.
// "gate=barn/gate:raw,porch=home/porch:switch".
func ParseTargets(spec string) ([]Target, error) {
	spec = strings.TrimSpace(spec)
	if spec == "" {
		return nil, nil
	}
	var out []Target
	for _, item := range strings.Split(spec, ",") {
		item = strings.TrimSpace(item)
		if item == "" {
			continue
		}
		id, rest, ok := strings.Cut(item, "=")
		if !ok {
			return nil, fmt.Errorf("target %q: want id=topic:encoding", item)
		}
		topic, encoding, ok := strings.Cut(rest, ":")
		if !ok {
			return nil, fmt.Errorf("target %q: want id=topic:encoding", item)
		}
		id, topic = strings.TrimSpace(id), strings.TrimSpace(topic)
		if id == "" || topic == "" {
			return nil, fmt.Errorf("target %q: empty id or topic", item)
		}
		var enc Encoder
		switch strings.TrimSpace(encoding) {
		case "raw":
			enc = RawCommand
		case "switch":
			enc = SwitchState
		default:
			return nil, fmt.Errorf("target %q: unknown encoding %q", item, encoding)
		}
		out = append(out, Target{ID: id, Topic: topic, Encode: enc})
	}
	return out, nil
}
