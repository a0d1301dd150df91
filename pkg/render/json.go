package render

import (
	"encoding/json"
	"fmt"
)

// JSON renders the bag as an indented JSON document for automation.
type JSON struct{}

// NewJSON creates a JSON renderer.
func NewJSON() *JSON {
	return &JSON{}
}

type jsonOutput struct {
	Version string `json:"version"`
	*Bag
}

// Render formats the bag as JSON.
func (j *JSON) Render(b *Bag) (string, error) {
	data, err := json.MarshalIndent(jsonOutput{Version: "1.0", Bag: b}, "", "  ")
	if err != nil {
		return "", fmt.Errorf("marshal report: %w", err)
	}
	return string(data) + "\n", nil
}
