package types

import (
	"testing"

	"github.com/samber/lo"
	"github.com/stretchr/testify/assert"
)

func TestNewListResponse(t *testing.T) {
	filter := &QueryFilter{Limit: lo.ToPtr(2), Offset: lo.ToPtr(2)}
	resp := NewListResponse([]string{"c", "d"}, 5, filter)
	assert.Equal(t, PaginationResponse{Total: 5, Limit: 2, Offset: 2, HasMore: true}, resp.Pagination)

	last := NewListResponse([]string{"e"}, 5, &QueryFilter{Limit: lo.ToPtr(2), Offset: lo.ToPtr(4)})
	assert.False(t, last.Pagination.HasMore)

	unlimited := NewListResponse[string](nil, 0, NewNoLimitQueryFilter())
	assert.NotNil(t, unlimited.Items)
	assert.Equal(t, PaginationResponse{}, unlimited.Pagination)
}
