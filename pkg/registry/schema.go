// pkg/registry/schema.go
package registry

// AgentManifest describes the agents the router can pick from. The router
// builds its classification prompt from it.
type AgentManifest struct {
	Version     string  `json:"version"`
	LastUpdated string  `json:"lastUpdated"`
	Agents      []Agent `json:"agents"`
}

type Agent struct {
	ID                   string   `json:"id"`
	DisplayName          string   `json:"displayName"`
	Description          string   `json:"description"`
	Category             string   `json:"category"`
	Version              string   `json:"version"`
	ImplementationStatus string   `json:"implementationStatus"`
	Examples             []string `json:"examples"`
	Tags                 []string `json:"tags"`
}
