package listview

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"strings"
	"testing"

	"trust-console/internal/client"
	"trust-console/internal/resource"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeStore struct {
	records   []resource.Record
	listErr   error
	removeErr error
	removed   []resource.ID
	lists     int
}

func (f *fakeStore) List(ctx context.Context) ([]resource.Record, error) {
	f.lists++
	if f.listErr != nil {
		return []resource.Record{}, f.listErr
	}
	out := make([]resource.Record, len(f.records))
	copy(out, f.records)
	return out, nil
}

func (f *fakeStore) Remove(ctx context.Context, id resource.ID) error {
	f.removed = append(f.removed, id)
	return f.removeErr
}

func peopleDescriptor() *resource.Descriptor {
	return &resource.Descriptor{
		Name: "devotees", Endpoint: "devotees",
		Fields:     []resource.Field{{Name: "Name"}, {Name: "City"}, {Name: "Phone"}},
		Searchable: []string{"Name", "City", "Phone"},
	}
}

func makeRecords(n int) []resource.Record {
	out := make([]resource.Record, n)
	for i := range out {
		out[i] = resource.Record{"Id": float64(i + 1), "Name": fmt.Sprintf("Name %d", i+1), "City": "Pune"}
	}
	return out
}

func ids(records []resource.Record) []resource.ID {
	out := make([]resource.ID, 0, len(records))
	for _, r := range records {
		id, _ := r.IDOf("")
		out = append(out, id)
	}
	return out
}

func TestSearch_ExampleScenario(t *testing.T) {
	store := &fakeStore{records: []resource.Record{
		{"Id": float64(1), "Name": "A", "City": "Pune"},
		{"Id": float64(2), "Name": "B", "City": "Mumbai"},
	}}
	c := NewController(peopleDescriptor(), store, 10)
	require.NoError(t, c.Refresh(context.Background(), true))

	c.SetSearchTerm("pune")
	assert.Equal(t, []resource.ID{1}, ids(c.Filtered()))

	c.SetSearchTerm("")
	assert.Equal(t, []resource.ID{1, 2}, ids(c.Filtered()))
}

func TestSearch_MissingAndNilFieldsDoNotMatch(t *testing.T) {
	store := &fakeStore{records: []resource.Record{
		{"Id": float64(1), "Name": "Asha", "City": nil},
		{"Id": float64(2), "Name": "Bina"},
		{"Id": float64(3), "Name": "Nil City", "City": "Nilanga"},
		{"Id": float64(4), "Name": "Phone", "Phone": float64(9876543210)},
	}}
	c := NewController(peopleDescriptor(), store, 10)
	require.NoError(t, c.Refresh(context.Background(), true))

	c.SetSearchTerm("nil")
	assert.Equal(t, []resource.ID{3}, ids(c.Filtered()))

	c.SetSearchTerm("6543")
	assert.Equal(t, []resource.ID{4}, ids(c.Filtered()))
}

func TestSearch_NonSearchableFieldsIgnored(t *testing.T) {
	store := &fakeStore{records: []resource.Record{{"Id": float64(1), "Name": "A", "Secret": "pune"}}}
	c := NewController(peopleDescriptor(), store, 10)
	require.NoError(t, c.Refresh(context.Background(), true))

	c.SetSearchTerm("pune")
	assert.Empty(t, c.Filtered())
}

func TestSearch_MatchesReferenceFilter(t *testing.T) {
	rng := rand.New(rand.NewSource(7))
	words := []string{"Pune", "MUMBAI", "nashik", "Satara", "", "Kolhapur"}
	records := make([]resource.Record, 60)
	for i := range records {
		r := resource.Record{"Id": float64(i + 1)}
		for _, f := range []string{"Name", "City", "Other"} {
			switch w := words[rng.Intn(len(words))]; w {
			case "":
				// absent
			default:
				r[f] = w
			}
		}
		records[i] = r
	}
	c := NewController(peopleDescriptor(), &fakeStore{records: records}, 10)
	require.NoError(t, c.Refresh(context.Background(), true))

	for _, term := range []string{"pu", "MUM", "ik", "tar", "zzz", "a"} {
		c.SetSearchTerm(term)
		var want []resource.ID
		for _, r := range records {
			for _, f := range []string{"Name", "City", "Phone"} {
				if s, ok := r[f].(string); ok && strings.Contains(strings.ToLower(s), strings.ToLower(term)) {
					id, _ := r.IDOf("")
					want = append(want, id)
					break
				}
			}
		}
		got := ids(c.Filtered())
		if len(want) == 0 {
			assert.Empty(t, got, term)
		} else {
			assert.Equal(t, want, got, term)
		}
	}
}

func TestSetSearchTerm_ResetsPage(t *testing.T) {
	c := NewController(peopleDescriptor(), &fakeStore{records: makeRecords(30)}, 10)
	require.NoError(t, c.Refresh(context.Background(), true))
	c.GoToPage(3)
	require.Equal(t, 3, c.CurrentPage())

	c.SetSearchTerm("name")
	assert.Equal(t, 1, c.CurrentPage())
}

func TestPagination_CoversFilteredExactly(t *testing.T) {
	for _, n := range []int{0, 1, 9, 10, 11, 25, 37} {
		for size := 1; size <= 12; size++ {
			c := NewController(peopleDescriptor(), &fakeStore{records: makeRecords(n)}, size)
			require.NoError(t, c.Refresh(context.Background(), true))

			var all []resource.ID
			for p := 1; p <= c.TotalPages(); p++ {
				require.Equal(t, p, c.GoToPage(p))
				page := c.Page()
				assert.LessOrEqual(t, len(page), size)
				all = append(all, ids(page)...)
			}
			want := ids(c.Filtered())
			if n == 0 {
				assert.Empty(t, all)
				assert.Equal(t, 1, c.TotalPages())
				continue
			}
			assert.Equal(t, want, all, "n=%d size=%d", n, size)
		}
	}
}

func TestGoToPage_Clamps(t *testing.T) {
	c := NewController(peopleDescriptor(), &fakeStore{records: makeRecords(25)}, 10)
	require.NoError(t, c.Refresh(context.Background(), true))

	assert.Equal(t, 3, c.TotalPages())
	assert.Equal(t, 3, c.GoToPage(5))
	assert.Equal(t, 3, c.CurrentPage())
	assert.Len(t, c.Page(), 5)
	assert.Equal(t, 1, c.GoToPage(0))
	assert.Equal(t, 1, c.GoToPage(-4))
}

func TestRefresh_KeepsPageUnlessReset(t *testing.T) {
	store := &fakeStore{records: makeRecords(25)}
	c := NewController(peopleDescriptor(), store, 10)
	require.NoError(t, c.Refresh(context.Background(), true))
	c.GoToPage(2)

	require.NoError(t, c.Refresh(context.Background(), false))
	assert.Equal(t, 2, c.CurrentPage())

	require.NoError(t, c.Refresh(context.Background(), true))
	assert.Equal(t, 1, c.CurrentPage())
}

func TestRefresh_FailureEmptiesListAndReturnsFetchFailed(t *testing.T) {
	store := &fakeStore{records: makeRecords(5)}
	c := NewController(peopleDescriptor(), store, 10)
	require.NoError(t, c.Refresh(context.Background(), true))
	require.Len(t, c.Records(), 5)

	store.listErr = &client.RequestError{Kind: client.ErrFetchFailed, Op: "list", Resource: "devotees", Status: 502}
	err := c.Refresh(context.Background(), false)
	assert.ErrorIs(t, err, client.ErrFetchFailed)
	assert.Empty(t, c.Records())
	assert.Equal(t, 1, c.TotalPages())
	assert.Equal(t, 1, c.CurrentPage())
}

func TestRemove_LocalRemovalWithoutRefetch(t *testing.T) {
	store := &fakeStore{records: makeRecords(3)}
	c := NewController(peopleDescriptor(), store, 10)
	require.NoError(t, c.Refresh(context.Background(), true))
	require.Equal(t, 1, store.lists)

	require.NoError(t, c.Remove(context.Background(), 2))
	assert.Equal(t, []resource.ID{1, 3}, ids(c.Records()))
	assert.Equal(t, 1, store.lists)

	// second remove of the same id is a no-op
	require.NoError(t, c.Remove(context.Background(), 2))
	assert.Equal(t, []resource.ID{2}, store.removed)
	assert.Equal(t, []resource.ID{1, 3}, ids(c.Records()))
}

func TestRemove_FailureLeavesRecord(t *testing.T) {
	store := &fakeStore{records: makeRecords(3)}
	store.removeErr = &client.RequestError{Kind: client.ErrDeleteFailed, Op: "delete", Resource: "devotees", Status: 500}
	c := NewController(peopleDescriptor(), store, 10)
	require.NoError(t, c.Refresh(context.Background(), true))

	err := c.Remove(context.Background(), 1)
	assert.True(t, errors.Is(err, client.ErrDeleteFailed))
	assert.Len(t, c.Records(), 3)
}

func TestRemove_ClampsPageWhenLastPageEmpties(t *testing.T) {
	store := &fakeStore{records: makeRecords(11)}
	c := NewController(peopleDescriptor(), store, 10)
	require.NoError(t, c.Refresh(context.Background(), true))
	require.Equal(t, 2, c.GoToPage(2))

	require.NoError(t, c.Remove(context.Background(), 11))
	assert.Equal(t, 1, c.CurrentPage())
	assert.Len(t, c.Page(), 10)
}

func TestRemove_UsesDescriptorIDField(t *testing.T) {
	desc := peopleDescriptor()
	desc.IDField = "id"
	store := &fakeStore{records: []resource.Record{{"id": float64(5), "Name": "G"}, {"id": float64(6), "Name": "H"}}}
	c := NewController(desc, store, 10)
	require.NoError(t, c.Refresh(context.Background(), true))

	require.NoError(t, c.Remove(context.Background(), 5))
	require.Len(t, c.Records(), 1)
	assert.Equal(t, "H", c.Records()[0]["Name"])
}

func TestView(t *testing.T) {
	c := NewController(peopleDescriptor(), &fakeStore{records: makeRecords(25)}, 0)
	require.NoError(t, c.Refresh(context.Background(), true))
	c.SetSearchTerm("name 2")
	v := c.View()

	// "Name 2" and "Name 20".."Name 25"
	assert.Equal(t, 7, v.Total)
	assert.Equal(t, 1, v.TotalPages)
	assert.Equal(t, DefaultPageSize, v.PageSize)
	assert.Equal(t, "name 2", v.SearchTerm)
	assert.Len(t, v.Records, 7)
}
