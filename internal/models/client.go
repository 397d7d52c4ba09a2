package models

import "strings"

// ClientType distinguishes individual taxpayers from businesses.
type ClientType string

const (
	ClientTypeIndividual ClientType = "individual"
	ClientTypeBusiness   ClientType = "business"
)

// Client is a CA firm's customer whose documents live in the drive.
type Client struct {
	ID             string     `json:"_id" yaml:"id"`
	Name           string     `json:"name" yaml:"name"`
	Type           ClientType `json:"type" yaml:"type"`
	PANNumber      string     `json:"panNumber" yaml:"panNumber"`
	MobileNumber   string     `json:"mobileNumber" yaml:"mobileNumber"`
	Email          string     `json:"email,omitempty" yaml:"email,omitempty"`
	GSTNumber      string     `json:"gstNumber,omitempty" yaml:"gstNumber,omitempty"`
	TANNumber      string     `json:"tanNumber,omitempty" yaml:"tanNumber,omitempty"`
	DeviceApproved bool       `json:"deviceApproved" yaml:"deviceApproved"`
}

// Matches reports whether the query appears in the name, PAN or mobile number, case-insensitively.
func (c Client) Matches(query string) bool {
	q := strings.ToLower(strings.TrimSpace(query))
	if q == "" {
		return true
	}
	return strings.Contains(strings.ToLower(c.Name), q) ||
		strings.Contains(strings.ToLower(c.PANNumber), q) ||
		strings.Contains(c.MobileNumber, q)
}
