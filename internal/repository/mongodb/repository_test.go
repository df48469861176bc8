package mongodb

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson"

	"github.com/mamadbah2/mandi/internal/repository"
)

func TestLotQuery_Empty(t *testing.T) {
	assert.Empty(t, lotQuery(repository.LotFilter{}))
}

func TestLotQuery_FarmerAndWindow(t *testing.T) {
	from := time.Date(2026, 1, 22, 0, 0, 0, 0, time.UTC)
	to := from.AddDate(0, 0, 1)

	query := lotQuery(repository.LotFilter{FarmerID: "f-1", From: from, To: to})

	assert.Equal(t, "f-1", query["farmer_id"])
	or, ok := query["$or"].(bson.A)
	require.True(t, ok)
	require.Len(t, or, 3)
	assert.Equal(t, bson.M{"createdAt": bson.M{"$gte": from, "$lt": to}}, or[0])
}

func TestLotQuery_TraderAndWindowCombine(t *testing.T) {
	from := time.Date(2026, 1, 22, 0, 0, 0, 0, time.UTC)

	query := lotQuery(repository.LotFilter{TraderID: "t-1", From: from})

	_, hasOr := query["$or"]
	assert.False(t, hasOr)
	and, ok := query["$and"].(bson.A)
	require.True(t, ok)
	assert.Len(t, and, 2)
}
