package models

import "strings"

// User is one row of the users sheet. Rows are maintained by administrators directly in the
// workbook; the API only reads them.
type User struct {
	Name   string
	Email  string
	Alias  string
	Secret string
}

// DisplayName returns the stored name or the generic placeholder.
func (u User) DisplayName() string {
	if name := strings.TrimSpace(u.Name); name != "" {
		return name
	}
	return "Usuario"
}

// LoginAlias returns the stored alias or the local-part of the email.
func (u User) LoginAlias() string {
	if alias := strings.TrimSpace(u.Alias); alias != "" {
		return alias
	}
	return LocalPart(u.Email)
}

// LocalPart returns the text before the first "@" of an address.
func LocalPart(email string) string {
	if idx := strings.Index(email, "@"); idx >= 0 {
		return email[:idx]
	}
	return email
}
