package models

import "encoding/json"

const (
	metadataRequestedSlug  = "requestedSlug"
	metadataIsOrganization = "isOrganization"
)

type Team struct {
	ID             int64           `json:"id"`
	Name           string          `json:"name"`
	Slug           *string         `json:"slug"`
	ParentID       *int64          `json:"parent_id"`
	IsOrganization bool            `json:"is_organization"`
	Metadata       json.RawMessage `json:"metadata,omitempty"`
}

// ParsedTeam is a Team with its metadata decoded and requestedSlug lifted
// out of it.
type ParsedTeam struct {
	ID             int64          `json:"id"`
	Name           string         `json:"name"`
	Slug           *string        `json:"slug"`
	ParentID       *int64         `json:"parent_id"`
	IsOrganization bool           `json:"is_organization"`
	RequestedSlug  *string        `json:"requested_slug"`
	Metadata       map[string]any `json:"metadata"`
}

type OrganizationsResponse struct {
	Organizations []*ParsedTeam `json:"organizations"`
}

type OrganizationResponse struct {
	Organization *ParsedTeam   `json:"organization"`
	Teams        []*ParsedTeam `json:"teams"`
}

type OrganizationMembersResponse struct {
	OrganizationID int64   `json:"organization_id"`
	Members        []*User `json:"members"`
}

// ParseTeam decodes team metadata. Malformed metadata is treated as empty.
func ParseTeam(t *Team) *ParsedTeam {
	if t == nil {
		return nil
	}
	parsed := &ParsedTeam{
		ID:             t.ID,
		Name:           t.Name,
		Slug:           t.Slug,
		ParentID:       t.ParentID,
		IsOrganization: IsOrganization(t),
		Metadata:       decodeMetadata(t.Metadata),
	}
	if slug, ok := parsed.Metadata[metadataRequestedSlug].(string); ok {
		parsed.RequestedSlug = &slug
	}
	delete(parsed.Metadata, metadataRequestedSlug)
	return parsed
}

// IsOrganization reports whether the team is an organization, either by
// column or by the legacy metadata flag.
func IsOrganization(t *Team) bool {
	if t == nil {
		return false
	}
	if t.IsOrganization {
		return true
	}
	flag, _ := decodeMetadata(t.Metadata)[metadataIsOrganization].(bool)
	return flag
}

func decodeMetadata(raw json.RawMessage) map[string]any {
	meta := make(map[string]any)
	if len(raw) == 0 {
		return meta
	}
	if err := json.Unmarshal(raw, &meta); err != nil || meta == nil {
		return make(map[string]any)
	}
	return meta
}
