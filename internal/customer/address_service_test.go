package customer

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/millworks/backoffice/internal/apperr"
	"github.com/millworks/backoffice/internal/database/dbtest"
	"github.com/millworks/backoffice/utils"
)

func setupTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	db := dbtest.New(t, Models()...)
	require.NoError(t, db.Create(&[]Customer{
		{Name: "Northwind Knitting", Email: "buyer@northwind.test"},
		{Name: "Contoso Apparel", Email: "ops@contoso.test"},
	}).Error)
	return db
}

func strPtr(s string) *string { return &s }

func TestAddressService_CreateAndGet(t *testing.T) {
	svc := NewAddressService(setupTestDB(t))
	ctx := context.Background()

	req := &CreateAddressRequest{
		CustomerID:   1,
		AddressType:  AddressTypeShipping,
		AddressLine1: "12 Mill Lane",
		AddressLine2: strPtr("Unit 4"),
		City:         "Leeds",
		PostalCode:   "LS1 4AP",
		Country:      "UK",
	}
	created, err := svc.Create(ctx, req)
	require.NoError(t, err)
	require.NotZero(t, created.ID)

	got, err := svc.Get(ctx, created.ID)
	require.NoError(t, err)
	assert.Equal(t, req.CustomerID, got.CustomerID)
	assert.Equal(t, req.AddressType, got.AddressType)
	assert.Equal(t, req.AddressLine1, got.AddressLine1)
	assert.Equal(t, "Unit 4", *got.AddressLine2)
	assert.Equal(t, req.City, got.City)
	assert.Equal(t, req.PostalCode, got.PostalCode)
	assert.Equal(t, req.Country, got.Country)
	assert.False(t, got.IsPrimary)
}

func TestAddressService_CreateUnknownCustomer(t *testing.T) {
	svc := NewAddressService(setupTestDB(t))

	_, err := svc.Create(context.Background(), &CreateAddressRequest{
		CustomerID: 99, AddressType: AddressTypeBilling, AddressLine1: "x", City: "y", Country: "z",
	})
	assert.ErrorIs(t, err, apperr.ErrInvalidInput)
}

func TestAddressService_PrimaryIsExclusivePerType(t *testing.T) {
	svc := NewAddressService(setupTestDB(t))
	ctx := context.Background()

	newAddr := func(addressType AddressType, primary bool) *Address {
		a, err := svc.Create(ctx, &CreateAddressRequest{
			CustomerID: 1, AddressType: addressType, AddressLine1: "line", City: "city", Country: "US", IsPrimary: primary,
		})
		require.NoError(t, err)
		return a
	}

	first := newAddr(AddressTypeShipping, true)
	billing := newAddr(AddressTypeBilling, true)
	second := newAddr(AddressTypeShipping, true)

	reloaded, err := svc.Get(ctx, first.ID)
	require.NoError(t, err)
	assert.False(t, reloaded.IsPrimary)

	reloaded, err = svc.Get(ctx, billing.ID)
	require.NoError(t, err)
	assert.True(t, reloaded.IsPrimary)

	primary := true
	_, err = svc.Update(ctx, first.ID, &UpdateAddressRequest{IsPrimary: &primary})
	require.NoError(t, err)
	reloaded, err = svc.Get(ctx, second.ID)
	require.NoError(t, err)
	assert.False(t, reloaded.IsPrimary)

	// moving a primary billing address to shipping keeps one shipping primary
	shipping := AddressTypeShipping
	moved, err := svc.Update(ctx, billing.ID, &UpdateAddressRequest{AddressType: &shipping})
	require.NoError(t, err)
	assert.True(t, moved.IsPrimary)
	assert.Equal(t, AddressTypeShipping, moved.AddressType)

	var primaries int64
	require.NoError(t, svc.db.Model(&Address{}).
		Where("customer_id = ? AND address_type = ? AND is_primary = ?", 1, AddressTypeShipping, true).
		Count(&primaries).Error)
	assert.Equal(t, int64(1), primaries)

	reloaded, err = svc.Get(ctx, first.ID)
	require.NoError(t, err)
	assert.False(t, reloaded.IsPrimary)
}

func TestAddressService_UpdateAndDelete(t *testing.T) {
	svc := NewAddressService(setupTestDB(t))
	ctx := context.Background()

	created, err := svc.Create(ctx, &CreateAddressRequest{
		CustomerID: 2, AddressType: AddressTypeBilling, AddressLine1: "1 Loom St", City: "Porto", Country: "PT",
	})
	require.NoError(t, err)

	updated, err := svc.Update(ctx, created.ID, &UpdateAddressRequest{City: strPtr("Braga")})
	require.NoError(t, err)
	assert.Equal(t, "Braga", updated.City)
	assert.Equal(t, "1 Loom St", updated.AddressLine1)

	_, err = svc.Update(ctx, 404, &UpdateAddressRequest{City: strPtr("x")})
	assert.ErrorIs(t, err, apperr.ErrNotFound)

	require.NoError(t, svc.Delete(ctx, created.ID))
	assert.ErrorIs(t, svc.Delete(ctx, created.ID), apperr.ErrNotFound)
	_, err = svc.Get(ctx, created.ID)
	assert.ErrorIs(t, err, apperr.ErrNotFound)
}

func TestAddressService_ListFilters(t *testing.T) {
	svc := NewAddressService(setupTestDB(t))
	ctx := context.Background()

	for _, c := range []struct {
		customer uint
		kind     AddressType
	}{{1, AddressTypeBilling}, {1, AddressTypeShipping}, {1, AddressTypeShipping}, {2, AddressTypeShipping}} {
		_, err := svc.Create(ctx, &CreateAddressRequest{CustomerID: c.customer, AddressType: c.kind, AddressLine1: "l", City: "c", Country: "US"})
		require.NoError(t, err)
	}

	page, err := svc.List(ctx, AddressFilter{CustomerID: 1, AddressType: "shipping"}, utils.GetPaginationParams("", ""), svc.SortParams("", ""))
	require.NoError(t, err)
	assert.Equal(t, int64(2), page.Meta.TotalItems)
	for _, a := range page.Items {
		assert.Equal(t, uint(1), a.CustomerID)
		assert.Equal(t, AddressTypeShipping, a.AddressType)
	}
	// newest first by default
	assert.Greater(t, page.Items[0].ID, page.Items[1].ID)
}
