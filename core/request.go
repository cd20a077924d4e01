package core

import (
	"fmt"
	"strings"
)

// Request is the inbound unit of work: a company (or topic) plus the industry
// it operates in. Both fields are required; the coordinator rejects requests
// that fail Validate.
type Request struct {
	Company  string `json:"company"`
	Industry string `json:"industry"`
}

// Validate reports whether the request carries both required fields.
func (r Request) Validate() error {
	if strings.TrimSpace(r.Company) == "" {
		return fmt.Errorf("request: company is required")
	}
	if strings.TrimSpace(r.Industry) == "" {
		return fmt.Errorf("request: industry is required")
	}
	return nil
}

// Topic returns a short human-readable label for logs and document headers.
func (r Request) Topic() string {
	return fmt.Sprintf("%s (%s)", r.Company, r.Industry)
}
