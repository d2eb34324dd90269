package dbtypes

import (
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestUUIDArrayScanPostgresLiteral(t *testing.T) {
	a := uuid.MustParse("11111111-1111-1111-1111-111111111111")
	b := uuid.MustParse("22222222-2222-2222-2222-222222222222")

	var arr UUIDArray
	require.NoError(t, arr.Scan([]byte(`{"`+a.String()+`",`+b.String()+`,NULL}`)))
	assert.Equal(t, UUIDArray{a, b}, arr)

	require.NoError(t, arr.Scan("{}"))
	assert.Empty(t, arr)

	require.NoError(t, arr.Scan(nil))
	assert.Empty(t, arr)
}

func TestUUIDArrayScanRejectsGarbage(t *testing.T) {
	var arr UUIDArray
	assert.Error(t, arr.Scan("{not-a-uuid}"))
	assert.Error(t, arr.Scan(42))
}

func TestUUIDArrayValue(t *testing.T) {
	a := uuid.MustParse("11111111-1111-1111-1111-111111111111")
	v, err := UUIDArray{a}.Value()
	require.NoError(t, err)
	assert.Equal(t, "{"+a.String()+"}", v)

	v, err = UUIDArray(nil).Value()
	require.NoError(t, err)
	assert.Equal(t, "{}", v)
}

func TestUUIDArrayCompactAndContains(t *testing.T) {
	a := uuid.New()
	b := uuid.New()
	arr := UUIDArray{a, uuid.Nil, b, a}

	compact := arr.Compact()
	assert.Equal(t, UUIDArray{a, b}, compact)
	assert.True(t, compact.Contains(b))
	assert.False(t, compact.Contains(uuid.New()))
}
