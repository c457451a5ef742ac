package dataset

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"toolatlas/pkg/catalogapi"
)

func intPtr(v int) *int { return &v }

func TestBuildKeyIsOrderIndependent(t *testing.T) {
	a := catalogapi.Filters{
		catalogapi.FieldServices: {"QC", "Encoding"},
		catalogapi.FieldLicense:  {"MIT"},
	}
	b := catalogapi.Filters{}
	b[catalogapi.FieldLicense] = []string{" MIT ", "MIT"}
	b[catalogapi.FieldServices] = []string{"Encoding", "QC"}
	b[catalogapi.FieldHasAPI] = nil

	keyA := BuildKey(a, "trans", intPtr(2000), nil)
	keyB := BuildKey(b, " trans ", intPtr(2000), nil)
	assert.Equal(t, keyA, keyB)
	assert.Equal(t, "license=MIT&services=Encoding,QC&q=trans&yearMin=2000&yearMax=", keyA)
}

func TestBuildKeyEmpty(t *testing.T) {
	assert.Equal(t, "q=&yearMin=&yearMax=", BuildKey(nil, "", nil, nil))
}

func TestQueryKeyPagination(t *testing.T) {
	q := Query{Search: "x"}
	assert.Equal(t, "q=x&yearMin=&yearMax=", q.Key())
	q.Limit = 50
	q.Offset = 100
	assert.Equal(t, "q=x&yearMin=&yearMax=&limit=50&offset=100", q.Key())
}

func TestQueryCloneIsDeep(t *testing.T) {
	q := Query{Filters: catalogapi.Filters{catalogapi.FieldServices: {"QC"}}, YearMin: intPtr(2000)}
	clone := q.Clone()
	clone.Filters[catalogapi.FieldServices][0] = "changed"
	*clone.YearMin = 1999
	assert.Equal(t, "QC", q.Filters[catalogapi.FieldServices][0])
	assert.Equal(t, 2000, *q.YearMin)
}

func TestParseYearBound(t *testing.T) {
	assert.Nil(t, ParseYearBound(""))
	assert.Nil(t, ParseYearBound("20x0"))
	assert.Nil(t, ParseYearBound("2000.5"))
	if got := ParseYearBound(" 2010 "); assert.NotNil(t, got) {
		assert.Equal(t, 2010, *got)
	}
}
