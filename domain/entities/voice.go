package entities

import "fmt"

// Voice describes a synthesis voice offered by the speech provider
type Voice struct {
	ID       string `json:"id"`
	Name     string `json:"name"`
	Language string `json:"language"`
}

// Label renders the voice the way the selection control shows it
func (v Voice) Label() string {
	if v.Language == "" {
		return v.Name
	}
	return fmt.Sprintf("%s (%s)", v.Name, v.Language)
}
