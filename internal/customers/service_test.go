package customers

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/dukapos/dukapos/internal/shared"
)

type memoryRepo struct {
	customers map[int64]Customer
	nextID    int64
}

func newMemoryRepo() *memoryRepo {
	return &memoryRepo{customers: make(map[int64]Customer)}
}

func (r *memoryRepo) Get(_ context.Context, id int64) (Customer, error) {
	c, ok := r.customers[id]
	if !ok {
		return Customer{}, shared.ErrNotFound
	}
	return c, nil
}

func (r *memoryRepo) FindByName(_ context.Context, shopID int64, name string) (Customer, error) {
	for _, c := range r.customers {
		if c.ShopID == shopID && strings.EqualFold(c.Name, name) {
			return c, nil
		}
	}
	return Customer{}, shared.ErrNotFound
}

func (r *memoryRepo) Insert(_ context.Context, c Customer) (int64, error) {
	r.nextID++
	c.ID = r.nextID
	r.customers[c.ID] = c
	return c.ID, nil
}

func (r *memoryRepo) List(_ context.Context, shopID int64, search string) ([]Customer, error) {
	out := []Customer{}
	for _, c := range r.customers {
		if c.ShopID != shopID {
			continue
		}
		if search != "" && !strings.Contains(strings.ToLower(c.Name), strings.ToLower(search)) {
			continue
		}
		out = append(out, c)
	}
	return out, nil
}

func TestCreateTrimsAndValidatesName(t *testing.T) {
	svc := NewService(newMemoryRepo())

	c, err := svc.Create(context.Background(), CreateInput{ShopID: 1, Name: "  Amina  ", Phone: " 0712000000 "})
	require.NoError(t, err)
	require.Equal(t, "Amina", c.Name)
	require.Equal(t, "0712000000", c.Phone)

	_, err = svc.Create(context.Background(), CreateInput{ShopID: 1, Name: "   "})
	require.ErrorIs(t, err, ErrNameRequired)
}

func TestResolveOrCreateReturnsExisting(t *testing.T) {
	repo := newMemoryRepo()
	svc := NewService(repo)

	first, err := svc.ResolveOrCreate(context.Background(), 1, "Juma", "0712111111")
	require.NoError(t, err)

	second, err := svc.ResolveOrCreate(context.Background(), 1, "juma", "")
	require.NoError(t, err)
	require.Equal(t, first.ID, second.ID)
	require.Len(t, repo.customers, 1)
}

func TestResolveOrCreateScopedPerShop(t *testing.T) {
	svc := NewService(newMemoryRepo())

	a, err := svc.ResolveOrCreate(context.Background(), 1, "Juma", "")
	require.NoError(t, err)
	b, err := svc.ResolveOrCreate(context.Background(), 2, "Juma", "")
	require.NoError(t, err)
	require.NotEqual(t, a.ID, b.ID)
}
