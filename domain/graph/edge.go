package graph

// Edge is a directed, typed relationship between two nodes in the same
// org. FromNode and ToNode are node ids; self-loops are allowed and no
// referential integrity is enforced beyond the schema keys.
type Edge struct {
	ID               string                 `json:"id"`
	OrgID            string                 `json:"org_id"`
	FromNode         string                 `json:"from_node"`
	ToNode           string                 `json:"to_node"`
	RelationshipType string                 `json:"relationship_type"`
	Properties       map[string]interface{} `json:"properties"`

	CreatedAt string `json:"created_at"`
	UpdatedAt string `json:"updated_at"`
	CreatedBy string `json:"created_by"`
	UpdatedBy string `json:"updated_by"`
	UserAgent string `json:"user_agent,omitempty"`
	ClientIP  string `json:"client_ip,omitempty"`
}

// DefaultRelationshipType is assigned when a create request carries no
// relationship_type.
const DefaultRelationshipType = "related"

// MergeProperties shallow-merges overlay into the edge's properties.
func (e *Edge) MergeProperties(overlay map[string]interface{}) {
	if len(overlay) == 0 {
		return
	}
	if e.Properties == nil {
		e.Properties = make(map[string]interface{}, len(overlay))
	}
	for k, v := range overlay {
		e.Properties[k] = v
	}
}
