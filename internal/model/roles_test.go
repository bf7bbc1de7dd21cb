package model

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRoleValues(t *testing.T) {
	t.Parallel()

	tests := []struct {
		role      Role
		want      string
		essential bool
	}{
		{RoleDesignation, "designation", true},
		{RoleUnit, "unit", false},
		{RoleQuantity, "quantity", false},
		{RoleUnitPrice, "unit_price", true},
		{RoleTotalPrice, "total_price", false},
	}

	for _, tt := range tests {
		t.Run(tt.want, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tt.want, string(tt.role))
			assert.Equal(t, tt.essential, tt.role.IsEssential())
			assert.True(t, tt.role.Valid())
		})
	}
	assert.False(t, Role("price").Valid())
}

func TestConfidenceAtLeast(t *testing.T) {
	t.Parallel()

	assert.True(t, ConfidenceHigh.AtLeast(ConfidenceMedium))
	assert.True(t, ConfidenceManual.AtLeast(ConfidenceHigh))
	assert.True(t, ConfidenceMedium.AtLeast(ConfidenceMedium))
	assert.False(t, ConfidenceLow.AtLeast(ConfidenceMedium))
	assert.False(t, Confidence("").AtLeast(ConfidenceLow))
}

func TestRoleMap_Validate(t *testing.T) {
	t.Parallel()

	ok := RoleMap{RoleDesignation: 0, RoleUnit: 1, RoleTotalPrice: 4}
	require.NoError(t, ok.Validate(5))

	err := RoleMap{RoleUnit: 1}.Validate(5)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no designation")

	err = RoleMap{RoleDesignation: 0, RoleUnit: 0}.Validate(5)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "share column 0")

	err = RoleMap{RoleDesignation: 0, RoleQuantity: 7}.Validate(5)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "out of bounds")

	err = RoleMap{RoleDesignation: 0, Role("bogus"): 2}.Validate(5)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown role")
}

func TestRoleMap_Helpers(t *testing.T) {
	t.Parallel()

	m := RoleMap{RoleDesignation: 2, RoleUnitPrice: 5}
	idx, ok := m.Get(RoleUnitPrice)
	assert.True(t, ok)
	assert.Equal(t, 5, idx)
	assert.False(t, m.Has(RoleQuantity))
	assert.True(t, m.ColumnTaken(2))
	assert.False(t, m.ColumnTaken(3))
	assert.Equal(t, []Role{RoleDesignation, RoleUnitPrice}, m.Mapped())

	c := m.Clone()
	c[RoleQuantity] = 3
	assert.False(t, m.Has(RoleQuantity))

	var nilMap RoleMap
	_, ok = nilMap.Get(RoleDesignation)
	assert.False(t, ok)
}
