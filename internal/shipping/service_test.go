package shipping

import (
	"context"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/millworks/backoffice/internal/apperr"
	"github.com/millworks/backoffice/internal/database/dbtest"
	"github.com/millworks/backoffice/utils"
)

func dec(s string) *decimal.Decimal {
	d := decimal.RequireFromString(s)
	return &d
}

func TestWeightPresetService_Create(t *testing.T) {
	db := dbtest.New(t, Models()...)
	svc := NewWeightPresetService(db)
	ctx := context.Background()

	created, err := svc.Create(ctx, &CreateWeightPresetRequest{Name: "Small Box", Weight: dec("2.5"), MeasurementUnit: MeasurementUnitImperial})
	require.NoError(t, err)
	assert.True(t, created.IsActive)

	got, err := svc.Get(ctx, created.ID)
	require.NoError(t, err)
	assert.True(t, got.Weight.Equal(decimal.RequireFromString("2.5")), "weight %s", got.Weight)
	assert.Equal(t, MeasurementUnitImperial, got.MeasurementUnit)
	assert.True(t, got.IsActive)

	_, err = svc.Create(ctx, &CreateWeightPresetRequest{Name: "Small Box", Weight: dec("3"), MeasurementUnit: MeasurementUnitMetric})
	require.ErrorIs(t, err, apperr.ErrConflict)

	var count int64
	require.NoError(t, db.Model(&WeightPreset{}).Count(&count).Error)
	assert.Equal(t, int64(1), count)

	_, err = svc.Create(ctx, &CreateWeightPresetRequest{Name: "Nothing", Weight: dec("0"), MeasurementUnit: MeasurementUnitMetric})
	assert.ErrorIs(t, err, apperr.ErrInvalidInput)
}

func TestPresetFilters(t *testing.T) {
	svc := NewDimensionPresetService(dbtest.New(t, Models()...))
	ctx := context.Background()

	inactive := false
	for _, req := range []*CreateDimensionPresetRequest{
		{Name: "Shoe box", Length: dec("13"), Width: dec("8"), Height: dec("5"), MeasurementUnit: MeasurementUnitImperial},
		{Name: "Garment box", Length: dec("40"), Width: dec("30"), Height: dec("10"), MeasurementUnit: MeasurementUnitMetric},
		{Name: "Legacy crate", Length: dec("1.2"), Width: dec("0.8"), Height: dec("0.6"), MeasurementUnit: MeasurementUnitMetric, IsActive: &inactive},
	} {
		_, err := svc.Create(ctx, req)
		require.NoError(t, err)
	}

	active := true
	page, err := svc.List(ctx, PresetFilter{IsActive: &active, MeasurementUnit: MeasurementUnitMetric}, utils.GetPaginationParams("", ""), svc.SortParams("", ""))
	require.NoError(t, err)
	require.Len(t, page.Items, 1)
	assert.Equal(t, "Garment box", page.Items[0].Name)

	page, err = svc.List(ctx, PresetFilter{Search: "BOX"}, utils.GetPaginationParams("", ""), svc.SortParams("name", "desc"))
	require.NoError(t, err)
	require.Len(t, page.Items, 2)
	assert.Equal(t, "Shoe box", page.Items[0].Name)

	_, err = svc.Update(ctx, page.Items[1].ID, &UpdateDimensionPresetRequest{Name: &page.Items[0].Name})
	assert.ErrorIs(t, err, apperr.ErrConflict)

	updated, err := svc.Update(ctx, page.Items[1].ID, &UpdateDimensionPresetRequest{Height: dec("12.5")})
	require.NoError(t, err)
	assert.Equal(t, "12.5", updated.Height.String())
}

func TestPackageSpecItemService(t *testing.T) {
	svc := NewPackageSpecItemService(dbtest.New(t, Models()...))
	ctx := context.Background()

	a, err := svc.Create(ctx, &CreatePackageSpecItemRequest{PackageSpecID: 1, ProductionOrderID: 4, ItemID: 10, Quantity: 6})
	require.NoError(t, err)
	_, err = svc.Create(ctx, &CreatePackageSpecItemRequest{PackageSpecID: 2, ProductionOrderID: 4, ItemID: 10, Quantity: 2})
	require.NoError(t, err)

	page, err := svc.List(ctx, PackageSpecItemFilter{PackageSpecID: 1}, utils.GetPaginationParams("", ""), svc.SortParams("", ""))
	require.NoError(t, err)
	require.Len(t, page.Items, 1)
	assert.Equal(t, a.ID, page.Items[0].ID)

	page, err = svc.List(ctx, PackageSpecItemFilter{ItemID: 10}, utils.GetPaginationParams("", ""), svc.SortParams("", ""))
	require.NoError(t, err)
	assert.Equal(t, int64(2), page.Meta.TotalItems)

	require.NoError(t, svc.Delete(ctx, a.ID))
	assert.ErrorIs(t, svc.Delete(ctx, a.ID), apperr.ErrNotFound)
}
