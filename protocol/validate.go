package protocol

import "fmt"

// ValidateManifest checks the structural rules a PolicyManifest must
// satisfy before a client will accept it: a non-empty server name, a set
// protocol version, and every policy naming at least one event type with a
// positive timeout when blocking.
func ValidateManifest(m PolicyManifest) error {
	if m.ServerName == "" {
		return fmt.Errorf("protocol: manifest missing server_name")
	}
	if m.ProtocolVersion == "" {
		return fmt.Errorf("protocol: manifest missing protocol_version")
	}
	seen := make(map[string]bool, len(m.Policies))
	for _, p := range m.Policies {
		if p.Name == "" {
			return fmt.Errorf("protocol: policy definition missing name")
		}
		if seen[p.Name] {
			return fmt.Errorf("protocol: duplicate policy name %q", p.Name)
		}
		seen[p.Name] = true
		if len(p.Events) == 0 {
			return fmt.Errorf("protocol: policy %q declares no events", p.Name)
		}
		for _, et := range p.Events {
			if !et.Valid() {
				return fmt.Errorf("protocol: policy %q declares unknown event type %q", p.Name, et)
			}
		}
		if p.Blocking && p.TimeoutMS <= 0 {
			return fmt.Errorf("protocol: blocking policy %q must declare a positive timeout_ms", p.Name)
		}
	}
	return nil
}
