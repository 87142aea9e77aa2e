package graph

// Node is a typed vertex scoped to an organization. Identity is the
// composite (ID, OrgID); the same ID may exist in different orgs.
type Node struct {
	ID         string                 `json:"id"`
	OrgID      string                 `json:"org_id"`
	Type       string                 `json:"type"`
	Properties map[string]interface{} `json:"properties"`

	CreatedAt string `json:"created_at"`
	UpdatedAt string `json:"updated_at"`
	CreatedBy string `json:"created_by"`
	UpdatedBy string `json:"updated_by"`
	UserAgent string `json:"user_agent,omitempty"`
	ClientIP  string `json:"client_ip,omitempty"`
}

// DefaultNodeType is assigned when a create request carries no type.
const DefaultNodeType = "default"

// MergeProperties shallow-merges overlay into the node's properties.
// Overlay wins on overlapping top-level keys; nested values are replaced,
// never merged.
func (n *Node) MergeProperties(overlay map[string]interface{}) {
	if len(overlay) == 0 {
		return
	}
	if n.Properties == nil {
		n.Properties = make(map[string]interface{}, len(overlay))
	}
	for k, v := range overlay {
		n.Properties[k] = v
	}
}
