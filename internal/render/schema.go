package render

import (
	"encoding/json"

	"github.com/invopop/jsonschema"

	"github.com/sawpanic/surveyrun/internal/likert"
)

// CellsDocument is the JSON envelope for a diverging transform result,
// shared by the CLI and the HTTP API.
type CellsDocument struct {
	RunID  string        `json:"run_id,omitempty" jsonschema:"description=Persisted run id when the run store is enabled"`
	Cached bool          `json:"cached" jsonschema:"description=True when the cells came from the cache"`
	Cells  []likert.Cell `json:"cells"`
}

// Schema returns the JSON Schema of CellsDocument, indented.
func Schema() ([]byte, error) {
	reflector := jsonschema.Reflector{
		AllowAdditionalProperties: false,
		DoNotReference:            true,
	}
	schema := reflector.Reflect(&CellsDocument{})
	schema.Title = "surveyrun diverging cells"

	raw, err := schema.MarshalJSON()
	if err != nil {
		return nil, err
	}
	var v any
	if err := json.Unmarshal(raw, &v); err != nil {
		return nil, err
	}
	return json.MarshalIndent(v, "", "  ")
}
