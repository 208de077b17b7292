package service

import (
	"github.com/ahc-eng/payflow-api/internal/domain"
	"github.com/ahc-eng/payflow-api/internal/repository"
)

// paginated wraps a page of results with the clamped paging metadata.
func paginated(data interface{}, total int64, page, pageSize int) *domain.PaginatedResponse {
	page = repository.ClampPage(page)
	pageSize = repository.ClampPageSize(pageSize)

	totalPages := int(total) / pageSize
	if int(total)%pageSize != 0 {
		totalPages++
	}

	return &domain.PaginatedResponse{
		Data:       data,
		Total:      total,
		Page:       page,
		PageSize:   pageSize,
		TotalPages: totalPages,
	}
}
