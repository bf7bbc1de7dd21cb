package aiclass

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/rotisserie/eris"
	"golang.org/x/time/rate"

	"github.com/sells-group/dpgf-extract/internal/lot"
	"github.com/sells-group/dpgf-extract/internal/model"
	"github.com/sells-group/dpgf-extract/internal/resilience"
	"github.com/sells-group/dpgf-extract/pkg/anthropic"
)

const lotInstructions = `Tu identifies le lot d'un document DPGF/BPU/DQE à partir de son nom de fichier et de ses premières lignes.
Le numéro de lot est généralement compris entre 1 et 99.

Formats fréquents : "LOT 06 - MÉTALLERIE SERRURERIE", "Lot 4 - Charpente & Ossature bois", "DPGF Lot 10 - Platrerie".

Réponds EXACTEMENT sur une ligne :
LOT_FOUND:numéro|description
ou, si aucun lot n'est clairement identifiable :
NO_LOT_FOUND`

// LotService is the language-model strategy of the lot identifier. It shares
// the labeler's breaker and limiter.
type LotService struct {
	Client  anthropic.Client
	Model   string
	Circuit *resilience.CircuitBreaker
	Limiter *rate.Limiter
	// Retry governs retries of transient failures. A zero MaxAttempts makes a
	// single attempt.
	Retry resilience.RetryConfig
}

// IdentifyLot implements lot.Service.
func (s LotService) IdentifyLot(ctx context.Context, req lot.ServiceRequest) (model.Lot, bool, error) {
	call := func(ctx context.Context) (string, error) {
		if s.Limiter != nil {
			if err := s.Limiter.Wait(ctx); err != nil {
				return "", eris.Wrap(err, "aiclass: rate limit wait")
			}
		}
		m := s.Model
		if m == "" {
			m = anthropic.DefaultModel
		}
		resp, err := s.Client.CreateMessage(ctx, anthropic.MessageRequest{
			Model:     m,
			MaxTokens: 128,
			System:    anthropic.CachedSystem(lotInstructions),
			Messages:  []anthropic.Message{{Role: "user", Content: renderLotRequest(req)}},
		})
		if err != nil {
			return "", eris.Wrap(err, "aiclass: identify lot")
		}
		resp.Usage.LogCost(m, "lot")
		return resp.Text(), nil
	}

	if s.Retry.MaxAttempts > 0 {
		once := call
		call = func(ctx context.Context) (string, error) {
			return resilience.DoVal(ctx, s.Retry, once)
		}
	}

	var (
		reply string
		err   error
	)
	if s.Circuit != nil {
		reply, err = resilience.ExecuteVal(ctx, s.Circuit, call)
	} else {
		reply, err = call(ctx)
	}
	if errors.Is(err, resilience.ErrCircuitOpen) {
		return model.Lot{}, false, lot.ErrServiceUnavailable
	}
	if err != nil {
		return model.Lot{}, false, err
	}
	return lot.ParseReply(reply)
}

func renderLotRequest(req lot.ServiceRequest) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Nom du fichier : %s\n\nContenu :\n", req.Filename)
	for i, row := range req.Rows {
		fmt.Fprintf(&b, "Ligne %d: %s\n", i+1, strings.Join(row, " | "))
	}
	return b.String()
}
