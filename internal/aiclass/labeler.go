// Package aiclass labels worksheet rows with an external language model and
// wraps that call with caching, rate limiting, timeouts and a run-scoped
// circuit breaker. Every failure path degrades to the built-in heuristic.
package aiclass

import (
	"context"
	"fmt"
	"strings"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/dpgf-extract/internal/classify"
	"github.com/sells-group/dpgf-extract/pkg/anthropic"
)

// DefaultChunkSize is the number of rows sent per labeling call.
const DefaultChunkSize = 20

const (
	defaultMaxTokens int64 = 4096
	maxCellRunes           = 120
)

const labelInstructions = `Tu analyses des lignes extraites d'un fichier Excel DPGF/BPU/DQE (décomposition du prix global et forfaitaire).

Classe chaque ligne :
- "section" : titre de section ou de chapitre (ex : "2.9 FERRURES", "LOT 06", "A. MENUISERIES")
- "element" : ouvrage chiffré avec désignation et au moins une quantité, une unité ou un prix
- "ignore" : en-tête de tableau, total, sous-total, note, ligne non pertinente

Pour une section, renseigne data.numero, data.title et data.level (1 pour le niveau le plus haut).
Pour une ligne ignorée, renseigne data.reason.
Pour un élément, data peut rester vide.

Réponds uniquement en JSON, sans commentaire :
[{"row": N, "type": "section|element|ignore", "data": {...}}]
où N est le numéro de ligne indiqué.`

// AnthropicLabeler labels rows with one message call per batch.
type AnthropicLabeler struct {
	client    anthropic.Client
	model     string
	maxTokens int64
}

// NewAnthropicLabeler creates a labeler. An empty model selects
// anthropic.DefaultModel.
func NewAnthropicLabeler(client anthropic.Client, model string) *AnthropicLabeler {
	if model == "" {
		model = anthropic.DefaultModel
	}
	return &AnthropicLabeler{client: client, model: model, maxTokens: defaultMaxTokens}
}

// Label implements classify.Labeler. Callers are expected to keep batches
// to DefaultChunkSize rows or so; see Chunks.
func (l *AnthropicLabeler) Label(ctx context.Context, rows []classify.RowText) ([]classify.Label, error) {
	if len(rows) == 0 {
		return nil, nil
	}
	zero := 0.0
	resp, err := l.client.CreateMessage(ctx, anthropic.MessageRequest{
		Model:       l.model,
		MaxTokens:   l.maxTokens,
		System:      anthropic.CachedSystem(labelInstructions),
		Messages:    []anthropic.Message{{Role: "user", Content: renderRows(rows)}},
		Temperature: &zero,
	})
	if err != nil {
		return nil, eris.Wrap(err, "aiclass: label rows")
	}
	resp.Usage.LogCost(l.model, "labels")

	labels, err := parseReply(resp.Text(), rows)
	if err != nil {
		return nil, err
	}
	zap.L().Debug("aiclass: rows labeled",
		zap.Int("rows", len(rows)),
		zap.Int("labels", len(labels)),
	)
	return labels, nil
}

// renderRows formats rows as "Ligne N: a | b | c" with 1-based line numbers.
func renderRows(rows []classify.RowText) string {
	var b strings.Builder
	for _, r := range rows {
		cells := make([]string, len(r.Cells))
		for i, c := range r.Cells {
			cells[i] = clip(c, maxCellRunes)
		}
		fmt.Fprintf(&b, "Ligne %d: %s\n", r.Row+1, strings.Join(cells, " | "))
	}
	return b.String()
}

func clip(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n])
}

// Chunks splits rows into consecutive batches of at most size rows.
func Chunks(rows []classify.RowText, size int) [][]classify.RowText {
	if size <= 0 {
		size = DefaultChunkSize
	}
	var out [][]classify.RowText
	for start := 0; start < len(rows); start += size {
		end := min(start+size, len(rows))
		out = append(out, rows[start:end])
	}
	return out
}
