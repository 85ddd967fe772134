package domain

import "strings"

type Shipping struct {
	RecipientName string `json:"recipient_name"`
	Phone         string `json:"phone"`
	Address       string `json:"address"`
	PostalCode    string `json:"postal_code"`
}

// Trimmed returns a copy with surrounding whitespace removed from every field.
func (s Shipping) Trimmed() Shipping {
	return Shipping{
		RecipientName: strings.TrimSpace(s.RecipientName),
		Phone:         strings.TrimSpace(s.Phone),
		Address:       strings.TrimSpace(s.Address),
		PostalCode:    strings.TrimSpace(s.PostalCode),
	}
}

// WithDefaults fills blank fields from a profile's saved defaults.
func (s Shipping) WithDefaults(defaults Shipping) Shipping {
	s, defaults = s.Trimmed(), defaults.Trimmed()
	if s.RecipientName == "" {
		s.RecipientName = defaults.RecipientName
	}
	if s.Phone == "" {
		s.Phone = defaults.Phone
	}
	if s.Address == "" {
		s.Address = defaults.Address
	}
	if s.PostalCode == "" {
		s.PostalCode = defaults.PostalCode
	}
	return s
}

// Validate requires all four fields, reporting the first one missing.
func (s Shipping) Validate() error {
	s = s.Trimmed()
	switch {
	case s.RecipientName == "":
		return &ValidationError{Field: "recipient_name", Reason: "recipient name is required"}
	case s.Phone == "":
		return &ValidationError{Field: "phone", Reason: "phone is required"}
	case s.Address == "":
		return &ValidationError{Field: "address", Reason: "address is required"}
	case s.PostalCode == "":
		return &ValidationError{Field: "postal_code", Reason: "postal code is required"}
	}
	return nil
}

type Identity struct {
	ID   string
	Role string
}

const RoleAdmin = "admin"

func (i Identity) IsAdmin() bool {
	return i.Role == RoleAdmin
}
