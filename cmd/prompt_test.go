package main

import (
	"bytes"
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/dpgf-extract/internal/header"
	"github.com/sells-group/dpgf-extract/internal/model"
)

func promptRequest() header.ManualRequest {
	return header.ManualRequest{
		Document:  "lot07.xlsx",
		Signature: "a1b2c3d4",
		Headers:   []string{"Libellé", "U", "Qté", "PU", "Montant"},
		Sample:    [][]string{{"Cloison placo", "m2", "12", "45", "540"}},
		Proposed:  model.RoleMap{model.RoleDesignation: 0},
		Width:     5,
	}
}

func TestPromptResolver(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name  string
		input string
		want  model.RoleMap
	}{
		{
			name:  "numbers and letters",
			input: "\nB\n2\nD\n-\ny\n",
			want: model.RoleMap{
				model.RoleDesignation: 0,
				model.RoleUnit:        1,
				model.RoleQuantity:    2,
				model.RoleUnitPrice:   3,
			},
		},
		{
			name:  "bad column asked again",
			input: "\n9\n1\n-\n-\nzz1\nE\noui\n",
			want: model.RoleMap{
				model.RoleDesignation: 0,
				model.RoleUnit:        1,
				model.RoleTotalPrice:  4,
			},
		},
		{
			name:  "refused then redone",
			input: "\n-\n-\n-\n4\nn\n\n-\n2\n-\n4\ny\n",
			want: model.RoleMap{
				model.RoleDesignation: 0,
				model.RoleQuantity:    2,
				model.RoleTotalPrice:  4,
			},
		},
		{
			name:  "missing designation starts over",
			input: "-\n-\n-\n-\n-\nA\n-\n-\n-\nE\ny\n",
			want: model.RoleMap{
				model.RoleDesignation: 0,
				model.RoleTotalPrice:  4,
			},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			var out bytes.Buffer
			resolve := newPromptResolver(strings.NewReader(tt.input), &out)

			got, err := resolve(context.Background(), promptRequest())
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
			assert.Contains(t, out.String(), "lot07.xlsx")
			assert.Contains(t, out.String(), "3 (D): PU")
		})
	}
}

func TestPromptResolver_EndOfInputDeclines(t *testing.T) {
	t.Parallel()

	var out bytes.Buffer
	got, err := newPromptResolver(strings.NewReader("\nB\n"), &out)(context.Background(), promptRequest())
	require.NoError(t, err)
	assert.Nil(t, got)
}

func TestPromptResolver_Cancelled(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	var out bytes.Buffer
	_, err := newPromptResolver(strings.NewReader("\n"), &out)(ctx, promptRequest())
	assert.ErrorIs(t, err, context.Canceled)
}

func TestParseColumn(t *testing.T) {
	t.Parallel()

	for in, want := range map[string]int{"0": 0, "3": 3, "A": 0, "c": 2, "AA": 26} {
		got, err := parseColumn(in)
		require.NoError(t, err, in)
		assert.Equal(t, want, got, in)
	}
	for _, in := range []string{"-1", "1A", "é"} {
		_, err := parseColumn(in)
		assert.Error(t, err, in)
	}
}
