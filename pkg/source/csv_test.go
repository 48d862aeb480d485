package source

import (
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"weekly-cohorts/pkg/calendar"
	"weekly-cohorts/pkg/models"
)

const fiveCustomers = `id,created
35410,2015-07-03 22:01:11
35411,2015-07-03 22:11:23
35412,2015-07-03 22:02:52
35413,2015-07-03 22:05:02
35414,2015-07-03 22:21:55
`

const threeOrders = `id,order_number,user_id,created
1,1000,35410,2015-07-04 10:00:00
2,1001,35411,2015-07-04 11:00:00

3,1002,35412,2015-07-05 12:00:00
`

func minus5(t *testing.T) *time.Location {
	t.Helper()
	loc, err := calendar.ParseOffset("-0500")
	require.NoError(t, err)
	return loc
}

func readCustomers(t *testing.T, r *CustomerReader) []models.Customer {
	t.Helper()
	var out []models.Customer
	for {
		c, err := r.Next()
		if err == io.EOF {
			return out
		}
		require.NoError(t, err)
		out = append(out, c)
	}
}

func TestCustomerReader_FiveRows(t *testing.T) {
	loc := minus5(t)
	r, err := NewCustomerReader(strings.NewReader(fiveCustomers), loc)
	require.NoError(t, err)

	got := readCustomers(t, r)
	require.Len(t, got, 5)
	assert.Equal(t, uint64(35410), got[0].ID)
	assert.Equal(t, uint64(35414), got[4].ID)

	want := time.Date(2015, time.July, 3, 17, 21, 55, 0, loc)
	assert.True(t, want.Equal(got[4].Created))
	assert.Equal(t, loc, got[4].Created.Location())
}

func TestCustomerReader_HeaderOrder(t *testing.T) {
	in := "created,id\n2015-07-03 22:01:11,7\n"
	r, err := NewCustomerReader(strings.NewReader(in), time.UTC)
	require.NoError(t, err)

	got := readCustomers(t, r)
	require.Len(t, got, 1)
	assert.Equal(t, uint64(7), got[0].ID)
}

func TestCustomerReader_Malformed(t *testing.T) {
	cases := map[string]string{
		"id":       "id,created\nabc,2015-07-03 22:01:11\n",
		"date":     "id,created\n1,03/07/2015\n",
		"short":    "id,created\n1\n",
		"negative": "id,created\n-4,2015-07-03 22:01:11\n",
	}
	for name, in := range cases {
		r, err := NewCustomerReader(strings.NewReader(in), time.UTC)
		require.NoError(t, err, name)
		_, err = r.Next()
		assert.ErrorIs(t, err, ErrMalformedRow, name)
		assert.Contains(t, err.Error(), "customers row 2", name)
	}
}

func TestCustomerReader_EmptyFile(t *testing.T) {
	_, err := NewCustomerReader(strings.NewReader(""), time.UTC)
	assert.ErrorIs(t, err, ErrMalformedRow)
}

func TestOrderReader(t *testing.T) {
	loc := minus5(t)
	r, err := NewOrderReader(strings.NewReader(threeOrders), loc)
	require.NoError(t, err)

	var got []models.Order
	for {
		o, err := r.Next()
		if err == io.EOF {
			break
		}
		require.NoError(t, err)
		got = append(got, o)
	}

	require.Len(t, got, 3)
	assert.Equal(t, models.Order{ID: 3, UserID: 35412, Created: got[2].Created}, got[2])
	assert.Equal(t, 7, got[2].Created.Hour())
}

func TestOrderReader_BadUserID(t *testing.T) {
	in := "id,order_number,user_id,created\n1,1000,x,2015-07-04 10:00:00\n"
	r, err := NewOrderReader(strings.NewReader(in), time.UTC)
	require.NoError(t, err)

	_, err = r.Next()
	assert.ErrorIs(t, err, ErrMalformedRow)
	assert.Contains(t, err.Error(), "user_id")
}

func TestOpen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "customers.csv")
	require.NoError(t, os.WriteFile(path, []byte(fiveCustomers), 0o600))

	for _, progress := range []bool{false, true} {
		f, err := Open(path, "customers", progress)
		require.NoError(t, err)

		r, err := NewCustomerReader(f, time.UTC)
		require.NoError(t, err)
		assert.Len(t, readCustomers(t, r), 5)
		require.NoError(t, f.Close())
	}

	_, err := Open(filepath.Join(t.TempDir(), "missing.csv"), "customers", false)
	assert.Error(t, err)
}
