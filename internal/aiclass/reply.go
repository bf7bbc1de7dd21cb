package aiclass

import (
	_ "embed"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"github.com/rotisserie/eris"
	"github.com/santhosh-tekuri/jsonschema/v5"

	"github.com/sells-group/dpgf-extract/internal/classify"
)

//go:embed labels.schema.json
var labelSchemaJSON string

var labelSchema = jsonschema.MustCompileString("labels.schema.json", labelSchemaJSON)

type replyItem struct {
	Row  int           `json:"row"`
	Type classify.Kind `json:"type"`
	Data struct {
		Numero any    `json:"numero"`
		Title  string `json:"title"`
		Level  int    `json:"level"`
		Reason string `json:"reason"`
	} `json:"data"`
}

// stripFences removes a surrounding markdown code fence, if any.
func stripFences(text string) string {
	text = strings.TrimSpace(text)
	if strings.HasPrefix(text, "```json") {
		text = strings.TrimPrefix(text, "```json")
		if idx := strings.LastIndex(text, "```"); idx >= 0 {
			text = text[:idx]
		}
	} else if strings.HasPrefix(text, "```") {
		text = strings.TrimPrefix(text, "```")
		if idx := strings.LastIndex(text, "```"); idx >= 0 {
			text = text[:idx]
		}
	}
	return strings.TrimSpace(text)
}

// parseReply decodes and validates a labeling reply. Row numbers in the
// reply are 1-based worksheet lines; labels for rows outside the batch are
// dropped.
func parseReply(text string, rows []classify.RowText) ([]classify.Label, error) {
	body := stripFences(text)

	var doc any
	if err := json.Unmarshal([]byte(body), &doc); err != nil {
		return nil, eris.Wrap(err, "aiclass: decode reply")
	}
	if err := labelSchema.Validate(doc); err != nil {
		return nil, eris.Wrap(err, "aiclass: reply does not match schema")
	}

	var items []replyItem
	if err := json.Unmarshal([]byte(body), &items); err != nil {
		return nil, eris.Wrap(err, "aiclass: decode reply items")
	}

	wanted := make(map[int]bool, len(rows))
	for _, r := range rows {
		wanted[r.Row] = true
	}

	seen := make(map[int]bool, len(items))
	out := make([]classify.Label, 0, len(items))
	for _, it := range items {
		row := it.Row - 1
		if !wanted[row] || seen[row] {
			continue
		}
		seen[row] = true
		out = append(out, classify.Label{
			Row:    row,
			Kind:   it.Type,
			Numero: numeroString(it.Data.Numero),
			Title:  strings.TrimSpace(it.Data.Title),
			Level:  it.Data.Level,
			Reason: it.Data.Reason,
		})
	}
	return out, nil
}

func numeroString(v any) string {
	switch n := v.(type) {
	case nil:
		return ""
	case string:
		return strings.TrimSpace(n)
	case float64:
		return strconv.FormatFloat(n, 'f', -1, 64)
	default:
		return fmt.Sprint(n)
	}
}
