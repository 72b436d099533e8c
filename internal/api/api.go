package api

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"time"

	"tcg-pricer/internal/database"
	"tcg-pricer/internal/models"
	"tcg-pricer/internal/pricing"
	"tcg-pricer/internal/services/excel"
	"tcg-pricer/internal/services/pricer"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
	"github.com/xuri/excelize/v2"
)

const (
	dateLayout     = "2006-01-02"
	maxTrendDays   = 365
	maxSearchItems = 100
	xlsxMIME       = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
)

// Pricer runs price updates.
type Pricer interface {
	UpdateItem(ctx context.Context, item pricing.CatalogItem, date time.Time, ro pricer.RunOptions) (pricer.ItemResult, error)
	UpdateGame(ctx context.Context, game pricing.Game, date time.Time, ro pricer.RunOptions) (*pricer.Summary, error)
}

// Catalog reads card versions and their price history.
type Catalog interface {
	GetCatalogItem(ctx context.Context, id uint) (pricing.CatalogItem, error)
	PriceTrend(ctx context.Context, cardVersionID uint, from, to time.Time) ([]models.DailyPriceHistory, error)
}

// Sheets reprices product sheets.
type Sheets interface {
	Preview(ctx context.Context, rows []excel.ProductRow) []excel.RowResult
	Process(ctx context.Context, r io.Reader) (*excelize.File, excel.Report, error)
}

type APIHandler struct {
	pricer  Pricer
	catalog Catalog
	sheets  Sheets
	log     zerolog.Logger
	now     func() time.Time

	// price jobs
	jobMu sync.Mutex
	jobs  map[string]*priceJob
}

func SetupRoutes(r *gin.RouterGroup, p Pricer, catalog Catalog, sheets Sheets, log zerolog.Logger) *APIHandler {
	handler := &APIHandler{
		pricer:  p,
		catalog: catalog,
		sheets:  sheets,
		log:     log.With().Str("component", "api").Logger(),
		now:     time.Now,
		jobs:    make(map[string]*priceJob),
	}

	prices := r.Group("/prices")
	{
		prices.GET("/cards/:id/trend", handler.GetPriceTrend)
		prices.POST("/cards/:id/update", handler.UpdateCardPrice)

		// Batch updates per game
		prices.POST("/jobs", handler.StartPriceJob)
		prices.GET("/jobs/:id", handler.PriceJobStatus)
		prices.POST("/jobs/:id/stop", handler.StopPriceJob)
		prices.GET("/jobs/:id/ws", handler.PriceJobStream)

		prices.POST("/search", handler.SearchPrices)
	}

	r.POST("/excel/process", handler.ProcessExcel)

	return handler
}

func ok(c *gin.Context, data interface{}) {
	c.JSON(http.StatusOK, gin.H{"code": 200, "msg": "ok", "data": data})
}

func fail(c *gin.Context, status int, msg string) {
	c.JSON(status, gin.H{"code": status, "error": msg})
}

func cardID(c *gin.Context) (uint, bool) {
	id, err := strconv.ParseUint(c.Param("id"), 10, 64)
	if err != nil || id == 0 {
		fail(c, http.StatusBadRequest, "invalid card version id")
		return 0, false
	}
	return uint(id), true
}

// parseDate reads a YYYY-MM-DD date, defaulting to today.
func (h *APIHandler) parseDate(s string) (time.Time, error) {
	if s == "" {
		return database.Day(h.now()), nil
	}
	t, err := time.ParseInLocation(dateLayout, s, time.Local)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid date %q, expected YYYY-MM-DD", s)
	}
	return t, nil
}

func (h *APIHandler) loadItem(c *gin.Context, id uint) (pricing.CatalogItem, bool) {
	item, err := h.catalog.GetCatalogItem(c.Request.Context(), id)
	switch {
	case errors.Is(err, database.ErrNotFound):
		fail(c, http.StatusNotFound, err.Error())
		return item, false
	case err != nil:
		h.log.Error().Err(err).Uint("card_version_id", id).Msg("load catalog item")
		fail(c, http.StatusInternalServerError, err.Error())
		return item, false
	}
	return item, true
}

type trendPoint struct {
	Date   string `json:"date"`
	Price  int    `json:"price"`
	Source string `json:"source"`
}

func (h *APIHandler) GetPriceTrend(c *gin.Context) {
	id, valid := cardID(c)
	if !valid {
		return
	}
	days := 30
	if v := c.Query("days"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 || n > maxTrendDays {
			fail(c, http.StatusBadRequest, fmt.Sprintf("days must be between 1 and %d", maxTrendDays))
			return
		}
		days = n
	}
	item, found := h.loadItem(c, id)
	if !found {
		return
	}

	to := database.Day(h.now())
	from := to.AddDate(0, 0, -(days - 1))
	rows, err := h.catalog.PriceTrend(c.Request.Context(), id, from, to)
	if err != nil {
		h.log.Error().Err(err).Uint("card_version_id", id).Msg("price trend")
		fail(c, http.StatusInternalServerError, err.Error())
		return
	}
	points := make([]trendPoint, 0, len(rows))
	for _, r := range rows {
		points = append(points, trendPoint{Date: r.Date.Format(dateLayout), Price: r.OnlineLowestPrice, Source: r.Source})
	}
	ok(c, gin.H{
		"card_version_id": id,
		"name":            item.Name,
		"game":            item.Game,
		"from":            from.Format(dateLayout),
		"to":              to.Format(dateLayout),
		"points":          points,
	})
}

func (h *APIHandler) UpdateCardPrice(c *gin.Context) {
	id, valid := cardID(c)
	if !valid {
		return
	}
	var req struct {
		Date   string `json:"date"`
		Force  bool   `json:"force"`
		DryRun bool   `json:"dry_run"`
	}
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			fail(c, http.StatusBadRequest, err.Error())
			return
		}
	}
	date, err := h.parseDate(req.Date)
	if err != nil {
		fail(c, http.StatusBadRequest, err.Error())
		return
	}
	item, found := h.loadItem(c, id)
	if !found {
		return
	}

	res, err := h.pricer.UpdateItem(c.Request.Context(), item, date, pricer.RunOptions{Force: req.Force, DryRun: req.DryRun})
	if err != nil {
		h.log.Error().Err(err).Uint("card_version_id", id).Msg("update card price")
		fail(c, http.StatusInternalServerError, err.Error())
		return
	}
	ok(c, res)
}

func (h *APIHandler) SearchPrices(c *gin.Context) {
	var req struct {
		Items []excel.ProductRow `json:"items" binding:"required,min=1,dive"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, http.StatusBadRequest, err.Error())
		return
	}
	if len(req.Items) > maxSearchItems {
		fail(c, http.StatusBadRequest, fmt.Sprintf("at most %d items per request", maxSearchItems))
		return
	}
	ok(c, h.sheets.Preview(c.Request.Context(), req.Items))
}

func (h *APIHandler) ProcessExcel(c *gin.Context) {
	fh, err := c.FormFile("file")
	if err != nil {
		fail(c, http.StatusBadRequest, "missing file")
		return
	}
	if ext := strings.ToLower(filepath.Ext(fh.Filename)); ext != ".xlsx" && ext != ".xlsm" {
		fail(c, http.StatusBadRequest, "only .xlsx files are supported")
		return
	}
	src, err := fh.Open()
	if err != nil {
		fail(c, http.StatusBadRequest, err.Error())
		return
	}
	defer src.Close()

	f, report, err := h.sheets.Process(c.Request.Context(), src)
	if err != nil {
		h.log.Warn().Err(err).Str("file", fh.Filename).Msg("process workbook")
		fail(c, http.StatusUnprocessableEntity, err.Error())
		return
	}
	defer f.Close()

	var buf bytes.Buffer
	if err := f.Write(&buf); err != nil {
		fail(c, http.StatusInternalServerError, err.Error())
		return
	}
	name := "processed_" + filepath.Base(fh.Filename)
	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=%q", name))
	c.Header("X-Rows-Changed", strconv.Itoa(report.Changed))
	c.Header("X-Rows-Total", strconv.Itoa(report.Rows))
	c.Data(http.StatusOK, xlsxMIME, buf.Bytes())
}
