package gate

import (
	"bytes"
	"encoding/json"
)

type reportEntry struct {
	Passed []string `json:"passed"`
	Failed []string `json:"failed"`
	Errors []string `json:"errors,omitempty"`
}

// MarshalReport encodes results as {"<phase>": {"passed": [...], "failed": [...]}}
// with phases in the order given.
func MarshalReport(results []Result) ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteString("{")
	for i, r := range results {
		if i > 0 {
			buf.WriteString(",")
		}
		key, err := json.Marshal(string(r.Phase))
		if err != nil {
			return nil, err
		}
		e := reportEntry{Passed: r.Passed(), Failed: r.Failed()}
		for _, ce := range r.ConfigErrors() {
			e.Errors = append(e.Errors, ce.Error())
		}
		val, err := json.Marshal(e)
		if err != nil {
			return nil, err
		}
		buf.Write(key)
		buf.WriteString(":")
		buf.Write(val)
	}
	buf.WriteString("}")
	var out bytes.Buffer
	if err := json.Indent(&out, buf.Bytes(), "", "  "); err != nil {
		return nil, err
	}
	out.WriteByte('\n')
	return out.Bytes(), nil
}
