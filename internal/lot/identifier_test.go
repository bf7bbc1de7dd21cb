package lot

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/dpgf-extract/internal/model"
	"github.com/sells-group/dpgf-extract/internal/workbook"
)

type mockService struct {
	mock.Mock
}

func (m *mockService) IdentifyLot(ctx context.Context, req ServiceRequest) (model.Lot, bool, error) {
	args := m.Called(ctx, req)
	return args.Get(0).(model.Lot), args.Bool(1), args.Error(2)
}

func contentMatrix() *workbook.Matrix {
	return workbook.FromStrings([][]string{
		{"Opération : réhabilitation de 40 logements"},
		{"", "LOT 05 – Plâtrerie isolation"},
		{"Désignation", "Unité", "Qté"},
	})
}

func TestIdentify_FilenameFirst(t *testing.T) {
	t.Parallel()

	svc := new(mockService)
	id := NewIdentifier(WithService(svc))

	res := id.Identify(context.Background(), "DPGF - Lot 06 - Métallerie.xlsx", contentMatrix())
	assert.True(t, res.Found)
	assert.Equal(t, model.LotStrategyFilename, res.Strategy)
	assert.Equal(t, model.Lot{Numero: "06", Name: "Métallerie"}, res.Lot)
	svc.AssertNotCalled(t, "IdentifyLot", mock.Anything, mock.Anything)
}

func TestIdentify_Service(t *testing.T) {
	t.Parallel()

	svc := new(mockService)
	svc.On("IdentifyLot", mock.Anything, mock.MatchedBy(func(req ServiceRequest) bool {
		return req.Filename == "offre.xlsx" && len(req.Rows) == 3
	})).Return(model.Lot{Numero: "7", Name: "Chauffage"}, true, nil)

	res := NewIdentifier(WithService(svc), WithTimeout(time.Second)).Identify(context.Background(), "offre.xlsx", contentMatrix())
	assert.True(t, res.Found)
	assert.Equal(t, model.LotStrategyService, res.Strategy)
	assert.Equal(t, "Chauffage", res.Lot.Name)
	svc.AssertExpectations(t)
}

func TestIdentify_ServiceFailureFallsBackToContent(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name     string
		err      error
		warnings int
	}{
		{"error", errors.New("timeout"), 1},
		{"unavailable", ErrServiceUnavailable, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			svc := new(mockService)
			svc.On("IdentifyLot", mock.Anything, mock.Anything).Return(model.Lot{}, false, tt.err)

			res := NewIdentifier(WithService(svc)).Identify(context.Background(), "offre.xlsx", contentMatrix())
			require.True(t, res.Found)
			assert.Equal(t, model.LotStrategyContent, res.Strategy)
			assert.Equal(t, model.Lot{Numero: "05", Name: "Plâtrerie isolation"}, res.Lot)
			assert.Len(t, res.Warnings, tt.warnings)
		})
	}
}

func TestIdentify_NotFound(t *testing.T) {
	t.Parallel()

	m := workbook.FromStrings([][]string{{"Désignation", "Prix"}})
	res := NewIdentifier().Identify(context.Background(), "offre.xlsx", m)
	assert.False(t, res.Found)
	assert.Equal(t, model.LotStrategyNone, res.Strategy)
	assert.Equal(t, model.Lot{}, res.Lot)
}

func TestIdentifyInSheet(t *testing.T) {
	t.Parallel()

	id := NewIdentifier()
	ctx := context.Background()

	res := id.IdentifyInSheet(ctx, "offre.xlsx", workbook.Sheet{Name: "Lot 03 Plomberie", Data: workbook.FromStrings(nil)})
	assert.True(t, res.Found)
	assert.Equal(t, model.Lot{Numero: "03", Name: "Plomberie"}, res.Lot)

	res = id.IdentifyInSheet(ctx, "offre.xlsx", workbook.Sheet{Name: "Feuil1", Data: contentMatrix()})
	assert.True(t, res.Found)
	assert.Equal(t, model.LotStrategyContent, res.Strategy)

	res = id.IdentifyInSheet(ctx, "Lot 09 - Ascenseurs.xlsx", workbook.Sheet{Name: "Feuil1", Data: workbook.FromStrings(nil)})
	assert.Equal(t, model.Lot{Numero: "09", Name: "Ascenseurs"}, res.Lot)
}

func TestLeadingRows(t *testing.T) {
	t.Parallel()

	rows := make([][]string, 0, 40)
	for i := 0; i < 40; i++ {
		if i%2 == 0 {
			rows = append(rows, nil)
			continue
		}
		rows = append(rows, []string{"a", "b", "c", "d", "e", "f", "g", "h", "i", "j", "k", "l"})
	}
	got := LeadingRows(workbook.FromStrings(rows))
	assert.Len(t, got, ContextRows)
	assert.Len(t, got[0], ContextCells)
	assert.Nil(t, LeadingRows(nil))
}

func TestParseReply(t *testing.T) {
	t.Parallel()

	tests := []struct {
		reply   string
		want    model.Lot
		found   bool
		wantErr bool
	}{
		{"LOT_FOUND:06|Métallerie", model.Lot{Numero: "06", Name: "Métallerie"}, true, false},
		{"  LOT_FOUND: 2 | Gros oeuvre \nexplication", model.Lot{Numero: "2", Name: "Gros oeuvre"}, true, false},
		{"NO_LOT_FOUND", model.Lot{}, false, false},
		{"LOT_FOUND:06", model.Lot{}, false, true},
		{"je ne sais pas", model.Lot{}, false, true},
	}
	for _, tt := range tests {
		t.Run(tt.reply, func(t *testing.T) {
			t.Parallel()
			got, found, err := ParseReply(tt.reply)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.found, found)
			assert.Equal(t, tt.want, got)
		})
	}
}
