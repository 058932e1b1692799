package rag

import (
	"encoding/json"
	"fmt"
	"os"
	"sort"
	"strings"
)

// DemoResponse is a pre-generated answer used to keep live demos fast.
// Metrics other than the stored factual consistency are still computed live.
type DemoResponse struct {
	ResponseMessage         string   `json:"response_message"`
	Source                  string   `json:"source"`
	FactualConsistencyScore *float64 `json:"factual_consistency_score"`
}

// DemoResponses maps lower-cased message prefixes to canned answers.
type DemoResponses struct {
	keys      []string
	responses map[string]DemoResponse
}

// LoadDemoResponses reads a JSON object of prefix -> DemoResponse. An empty
// path yields an empty set.
func LoadDemoResponses(path string) (*DemoResponses, error) {
	d := &DemoResponses{responses: map[string]DemoResponse{}}
	if path == "" {
		return d, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read demo responses: %w", err)
	}
	raw := map[string]DemoResponse{}
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("decode demo responses: %w", err)
	}
	for k, v := range raw {
		d.responses[strings.ToLower(k)] = v
	}

	for k := range d.responses {
		d.keys = append(d.keys, k)
	}
	// longest prefix wins
	sort.Slice(d.keys, func(i, j int) bool {
		if len(d.keys[i]) != len(d.keys[j]) {
			return len(d.keys[i]) > len(d.keys[j])
		}
		return d.keys[i] < d.keys[j]
	})
	return d, nil
}

// Match returns the canned answer whose key prefixes the lower-cased message.
func (d *DemoResponses) Match(message string) (DemoResponse, bool) {
	message = strings.ToLower(message)
	for _, k := range d.keys {
		if strings.HasPrefix(message, k) {
			return d.responses[k], true
		}
	}
	return DemoResponse{}, false
}

// Len is the number of canned answers.
func (d *DemoResponses) Len() int { return len(d.keys) }
