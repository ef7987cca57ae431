package model

// LeadPatch is a partial update to a Lead. Nil fields are untouched by
// Apply and omitted from request bodies, which is what keeps partial
// server payloads from erasing fields they don't mention.
type LeadPatch struct {
	CompanyName *string `json:"company_name,omitempty"`
	ContactName *string `json:"contact_name,omitempty"`
	Email       *string `json:"email,omitempty"`
	Phone       *string `json:"phone,omitempty"`
	Website     *string `json:"website,omitempty"`
	Stage       *string `json:"stage,omitempty"`
	Score       *int    `json:"score,omitempty"`
	OwnerID     *string `json:"owner_id,omitempty"`
	Source      *string `json:"source,omitempty"`
}

// Apply merges the non-nil fields into l.
func (p LeadPatch) Apply(l *Lead) {
	if p.CompanyName != nil {
		l.CompanyName = *p.CompanyName
	}
	if p.ContactName != nil {
		l.ContactName = *p.ContactName
	}
	if p.Email != nil {
		l.Email = *p.Email
	}
	if p.Phone != nil {
		l.Phone = *p.Phone
	}
	if p.Website != nil {
		l.Website = *p.Website
	}
	if p.Stage != nil {
		l.Stage = *p.Stage
	}
	if p.Score != nil {
		l.Score = *p.Score
	}
	if p.OwnerID != nil {
		l.OwnerID = *p.OwnerID
	}
	if p.Source != nil {
		l.Source = *p.Source
	}
}

// IsZero reports whether the patch changes nothing.
func (p LeadPatch) IsZero() bool {
	return p == LeadPatch{}
}
