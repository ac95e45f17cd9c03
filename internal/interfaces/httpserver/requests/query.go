package requests

import (
	"strconv"

	"github.com/gin-gonic/gin"

	"chat-server/services/chat-api/internal/domain/query"
	"chat-server/services/chat-api/internal/utils/platformerrors"
)

// GetPaginationFromQuery parses limit and cursor query parameters. The cursor
// is the opaque token returned in a previous page's next_cursor field.
func GetPaginationFromQuery(reqCtx *gin.Context) (*query.Pagination, error) {
	limitStr := reqCtx.Query("limit")
	cursorStr := reqCtx.Query("cursor")
	order := reqCtx.DefaultQuery("order", "desc")

	var limit *int
	if limitStr != "" {
		limitInt, err := strconv.Atoi(limitStr)
		if err != nil || limitInt < 1 {
			return nil, platformerrors.NewError(reqCtx.Request.Context(), platformerrors.LayerHandler, platformerrors.ErrorTypeValidation, "invalid limit number", nil, "04aecd25-bd32-428b-864d-aeb7ecb06e53")
		}
		limit = &limitInt
	}

	pagination := &query.Pagination{
		Limit: limit,
		Order: order,
	}

	if cursorStr != "" {
		before, err := query.DecodeCursor(cursorStr)
		if err != nil {
			return nil, platformerrors.NewError(reqCtx.Request.Context(), platformerrors.LayerHandler, platformerrors.ErrorTypeValidation, "invalid pagination cursor", err, "9a5c2c48-5c59-4f40-9f27-5861e9c62d2f")
		}
		pagination.Before = &before
	}

	if order != "asc" && order != "desc" {
		return nil, platformerrors.NewError(reqCtx.Request.Context(), platformerrors.LayerHandler, platformerrors.ErrorTypeValidation, "invalid order", nil, "c3598493-7770-4e94-b44f-f571aabf2bdd")
	}

	return pagination, nil
}
