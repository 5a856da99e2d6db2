package loadtest

import (
	"encoding/json"

	"github.com/wI2L/jsondiff"
)

// volatileFields differ on every run and carry no comparison value.
var volatileFields = []string{"run_id", "started_at", "finished_at"}

// DiffReports returns the RFC 6902 patch turning a into b.
func DiffReports(a, b *Report) (jsondiff.Patch, error) {
	left, err := comparableJSON(a)
	if err != nil {
		return nil, err
	}
	right, err := comparableJSON(b)
	if err != nil {
		return nil, err
	}
	return jsondiff.CompareJSON(left, right)
}

func comparableJSON(r *Report) ([]byte, error) {
	raw, err := json.Marshal(r)
	if err != nil {
		return nil, err
	}
	var doc map[string]any
	if err := json.Unmarshal(raw, &doc); err != nil {
		return nil, err
	}
	for _, k := range volatileFields {
		delete(doc, k)
	}
	return json.Marshal(doc)
}
