package http

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/jmehdipour/orderdesk/internal/filter"
	"github.com/jmehdipour/orderdesk/internal/http/middleware"
	"github.com/jmehdipour/orderdesk/internal/model"
	"github.com/labstack/echo/v4"
	"go.uber.org/zap"
)

type ExportQueue interface {
	EnqueueExport(ctx context.Context, requesterID int64, params map[string]string) (string, error)
}

type StatusReader interface {
	Get(ctx context.Context, key string) (*model.ExportStatus, error)
}

type ExportHistory interface {
	ListByRequester(ctx context.Context, requesterID int64, limit, offset int) ([]model.ExportRun, error)
}

type createExportReq struct {
	Params map[string]string `json:"params"`
}

// createExportHandler checks the filter up front so bad input is a 422 now
// rather than a failed export later.
func createExportHandler(q ExportQueue, loc *time.Location, log *zap.Logger) echo.HandlerFunc {
	return func(c echo.Context) error {
		userID, ok := middleware.UserIDFromCtx(c)
		if !ok || userID <= 0 {
			return c.JSON(http.StatusUnauthorized, map[string]string{"error": "unauthorized"})
		}

		var req createExportReq
		if err := c.Bind(&req); err != nil {
			return c.JSON(http.StatusBadRequest, map[string]string{"error": "bad request"})
		}
		params := make(map[string]string, len(req.Params))
		for k, v := range req.Params {
			if v = strings.TrimSpace(v); v != "" {
				params[k] = v
			}
		}

		if _, err := filter.NewOrderFilter(params, loc).Build(); err != nil {
			if errors.Is(err, filter.ErrInvalidFilter) {
				return c.JSON(http.StatusUnprocessableEntity, map[string]string{"error": err.Error()})
			}
			return c.JSON(http.StatusBadRequest, map[string]string{"error": "bad request"})
		}

		id, err := q.EnqueueExport(c.Request().Context(), userID, params)
		if err != nil {
			log.Error("enqueue export", zap.Int64("user_id", userID), zap.Error(err))
			return c.JSON(http.StatusInternalServerError, map[string]string{"error": "enqueue failed"})
		}

		return c.JSON(http.StatusAccepted, map[string]any{
			"export_id": id,
			"status":    model.ExportPending,
		})
	}
}

func exportStatusHandler(st StatusReader, log *zap.Logger) echo.HandlerFunc {
	return func(c echo.Context) error {
		userID, ok := middleware.UserIDFromCtx(c)
		if !ok || userID <= 0 {
			return c.JSON(http.StatusUnauthorized, map[string]string{"error": "unauthorized"})
		}

		exportID := strings.TrimSpace(c.Param("export_id"))
		if exportID == "" {
			return c.JSON(http.StatusBadRequest, map[string]string{"error": "missing export id"})
		}

		res, err := st.Get(c.Request().Context(), model.ExportStatusKey(userID, exportID))
		if err != nil {
			log.Error("read export status", zap.String("export_id", exportID), zap.Error(err))
			return c.JSON(http.StatusInternalServerError, map[string]string{"error": "status lookup failed"})
		}
		if res == nil {
			return c.JSON(http.StatusOK, model.ExportStatus{Status: model.ExportPending})
		}
		return c.JSON(http.StatusOK, res)
	}
}

func listExportsHandler(runs ExportHistory, log *zap.Logger) echo.HandlerFunc {
	return func(c echo.Context) error {
		userID, ok := middleware.UserIDFromCtx(c)
		if !ok || userID <= 0 {
			return c.JSON(http.StatusUnauthorized, map[string]string{"error": "unauthorized"})
		}
		if runs == nil {
			return c.JSON(http.StatusNotFound, map[string]string{"error": "export history disabled"})
		}

		limit := 50
		offset := 0
		if v := c.QueryParam("limit"); v != "" {
			if n, err := strconv.Atoi(v); err == nil && n > 0 && n <= 500 {
				limit = n
			}
		}
		if v := c.QueryParam("offset"); v != "" {
			if n, err := strconv.Atoi(v); err == nil && n >= 0 {
				offset = n
			}
		}

		list, err := runs.ListByRequester(c.Request().Context(), userID, limit, offset)
		if err != nil {
			log.Error("clickhouse list export runs", zap.Error(err))
			return c.JSON(http.StatusInternalServerError, map[string]string{"error": "query failed"})
		}

		return c.JSON(http.StatusOK, map[string]any{
			"limit":   limit,
			"offset":  offset,
			"count":   len(list),
			"results": list,
		})
	}
}
