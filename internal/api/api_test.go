package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"tcg-pricer/internal/database"
	"tcg-pricer/internal/models"
	"tcg-pricer/internal/pricing"
	"tcg-pricer/internal/services/excel"
	"tcg-pricer/internal/services/pricer"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"
	"github.com/smartystreets/goconvey/convey"
	"github.com/xuri/excelize/v2"
)

type fakePricer struct {
	mu       sync.Mutex
	items    int
	release  chan struct{}
	untilCtx bool
	lastDate time.Time
	lastRO   pricer.RunOptions
	storeErr error
}

func (p *fakePricer) UpdateItem(_ context.Context, item pricing.CatalogItem, date time.Time, ro pricer.RunOptions) (pricer.ItemResult, error) {
	p.mu.Lock()
	p.lastDate, p.lastRO = date, ro
	p.mu.Unlock()
	if p.storeErr != nil {
		return pricer.ItemResult{}, p.storeErr
	}
	price := 12000
	return pricer.ItemResult{CardVersionID: item.ID, Name: item.Name, Date: date.Format(dateLayout), Success: true, Created: !ro.DryRun, DryRun: ro.DryRun, Price: &price}, nil
}

func (p *fakePricer) UpdateGame(ctx context.Context, game pricing.Game, date time.Time, ro pricer.RunOptions) (*pricer.Summary, error) {
	s := &pricer.Summary{Game: game, Date: date.Format(dateLayout), Total: p.items}
	if p.release != nil {
		select {
		case <-p.release:
		case <-ctx.Done():
		}
	}
	if p.untilCtx {
		<-ctx.Done()
		s.Interrupted = true
		return s, nil
	}
	for i := 0; i < p.items; i++ {
		r := pricer.ItemResult{CardVersionID: uint(i + 1), Success: i%2 == 0, Created: i%2 == 0}
		if ro.Progress != nil {
			ro.Progress(i+1, p.items, r)
		}
	}
	return s, nil
}

type fakeCatalog struct {
	from, to time.Time
}

func (c *fakeCatalog) GetCatalogItem(_ context.Context, id uint) (pricing.CatalogItem, error) {
	if id != 7 {
		return pricing.CatalogItem{}, fmt.Errorf("card version %d: %w", id, database.ErrNotFound)
	}
	return pricing.CatalogItem{ID: 7, Game: pricing.GameOnePiece, Name: "몽키 D. 루피", CardNumber: "OP07-001"}, nil
}

func (c *fakeCatalog) PriceTrend(_ context.Context, id uint, from, to time.Time) ([]models.DailyPriceHistory, error) {
	c.from, c.to = from, to
	day := time.Date(2024, 12, 1, 0, 0, 0, 0, time.Local)
	return []models.DailyPriceHistory{
		{CardVersionID: id, Date: day, OnlineLowestPrice: 11000, Source: models.SourceSearch},
		{CardVersionID: id, Date: day.AddDate(0, 0, 1), OnlineLowestPrice: 10500, Source: models.SourceCarried},
	}, nil
}

type fakeSheets struct{}

func (fakeSheets) Preview(_ context.Context, rows []excel.ProductRow) []excel.RowResult {
	out := make([]excel.RowResult, 0, len(rows))
	for _, r := range rows {
		out = append(out, excel.RowResult{ProductName: r.ProductName, OldPrice: r.CurrentPrice, NewPrice: r.CurrentPrice + 100, Diff: 100, Matched: true})
	}
	return out
}

func (fakeSheets) Process(_ context.Context, r io.Reader) (*excelize.File, excel.Report, error) {
	b, _ := io.ReadAll(r)
	if string(b) == "broken" {
		return nil, excel.Report{}, errors.New("open workbook: zip: not a valid zip file")
	}
	f := excelize.NewFile()
	_ = f.SetCellValue("Sheet1", "H6", 10800)
	return f, excel.Report{Sheet: "Sheet1", Rows: 3, Changed: 2}, nil
}

type envelope struct {
	Code  int             `json:"code"`
	Msg   string          `json:"msg"`
	Error string          `json:"error"`
	Data  json.RawMessage `json:"data"`
}

func newRouter(p *fakePricer, cat *fakeCatalog) (*gin.Engine, *APIHandler) {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	h := SetupRoutes(r.Group("/api/v1"), p, cat, fakeSheets{}, zerolog.Nop())
	h.now = func() time.Time { return time.Date(2024, 12, 10, 14, 0, 0, 0, time.Local) }
	return r, h
}

func do(r http.Handler, method, path, body string) (*httptest.ResponseRecorder, envelope) {
	var rd io.Reader
	if body != "" {
		rd = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, path, rd)
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	var env envelope
	_ = json.Unmarshal(w.Body.Bytes(), &env)
	return w, env
}

func TestPriceTrend(t *testing.T) {
	convey.Convey("Given the price routes", t, func() {
		cat := &fakeCatalog{}
		r, _ := newRouter(&fakePricer{}, cat)

		convey.Convey("When the trend of a known card is requested", func() {
			w, env := do(r, http.MethodGet, "/api/v1/prices/cards/7/trend?days=7", "")

			convey.Convey("Then the points are returned for the window ending today", func() {
				convey.So(w.Code, convey.ShouldEqual, http.StatusOK)
				var data struct {
					Name   string       `json:"name"`
					From   string       `json:"from"`
					To     string       `json:"to"`
					Points []trendPoint `json:"points"`
				}
				convey.So(json.Unmarshal(env.Data, &data), convey.ShouldBeNil)
				convey.So(data.Name, convey.ShouldEqual, "몽키 D. 루피")
				convey.So(data.From, convey.ShouldEqual, "2024-12-04")
				convey.So(data.To, convey.ShouldEqual, "2024-12-10")
				convey.So(data.Points, convey.ShouldHaveLength, 2)
				convey.So(data.Points[1], convey.ShouldResemble, trendPoint{Date: "2024-12-02", Price: 10500, Source: "carried"})
				convey.So(cat.to.Hour(), convey.ShouldEqual, 0)
			})
		})

		convey.Convey("When the parameters are invalid", func() {
			w, _ := do(r, http.MethodGet, "/api/v1/prices/cards/abc/trend", "")
			convey.So(w.Code, convey.ShouldEqual, http.StatusBadRequest)
			w, _ = do(r, http.MethodGet, "/api/v1/prices/cards/7/trend?days=0", "")
			convey.So(w.Code, convey.ShouldEqual, http.StatusBadRequest)
			w, _ = do(r, http.MethodGet, "/api/v1/prices/cards/7/trend?days=400", "")
			convey.So(w.Code, convey.ShouldEqual, http.StatusBadRequest)
		})

		convey.Convey("When the card does not exist", func() {
			w, env := do(r, http.MethodGet, "/api/v1/prices/cards/8/trend", "")
			convey.So(w.Code, convey.ShouldEqual, http.StatusNotFound)
			convey.So(env.Error, convey.ShouldContainSubstring, "not found")
		})
	})
}

func TestUpdateCardPrice(t *testing.T) {
	convey.Convey("Given the single card update route", t, func() {
		p := &fakePricer{}
		r, _ := newRouter(p, &fakeCatalog{})

		convey.Convey("When called with a date and dry run", func() {
			w, env := do(r, http.MethodPost, "/api/v1/prices/cards/7/update", `{"date":"2024-12-01","dry_run":true,"force":true}`)

			convey.So(w.Code, convey.ShouldEqual, http.StatusOK)
			var res pricer.ItemResult
			convey.So(json.Unmarshal(env.Data, &res), convey.ShouldBeNil)
			convey.So(res.DryRun, convey.ShouldBeTrue)
			convey.So(*res.Price, convey.ShouldEqual, 12000)
			convey.So(p.lastDate.Format(dateLayout), convey.ShouldEqual, "2024-12-01")
			convey.So(p.lastRO.Force, convey.ShouldBeTrue)
		})

		convey.Convey("When called without a body the date defaults to today", func() {
			w, _ := do(r, http.MethodPost, "/api/v1/prices/cards/7/update", "")
			convey.So(w.Code, convey.ShouldEqual, http.StatusOK)
			convey.So(p.lastDate.Format(dateLayout), convey.ShouldEqual, "2024-12-10")
			convey.So(p.lastRO.DryRun, convey.ShouldBeFalse)
		})

		convey.Convey("When the date is malformed", func() {
			w, _ := do(r, http.MethodPost, "/api/v1/prices/cards/7/update", `{"date":"12/01/2024"}`)
			convey.So(w.Code, convey.ShouldEqual, http.StatusBadRequest)
		})

		convey.Convey("When storage fails", func() {
			p.storeErr = errors.New("connection refused")
			w, env := do(r, http.MethodPost, "/api/v1/prices/cards/7/update", "")
			convey.So(w.Code, convey.ShouldEqual, http.StatusInternalServerError)
			convey.So(env.Error, convey.ShouldEqual, "connection refused")
		})
	})
}

func TestSearchPrices(t *testing.T) {
	convey.Convey("Given the search route", t, func() {
		r, _ := newRouter(&fakePricer{}, &fakeCatalog{})

		convey.Convey("When items are posted they are previewed", func() {
			w, env := do(r, http.MethodPost, "/api/v1/prices/search", `{"items":[{"product_name":"원피스 OP01-120","current_price":3000}]}`)
			convey.So(w.Code, convey.ShouldEqual, http.StatusOK)
			var res []excel.RowResult
			convey.So(json.Unmarshal(env.Data, &res), convey.ShouldBeNil)
			convey.So(res, convey.ShouldHaveLength, 1)
			convey.So(res[0].NewPrice, convey.ShouldEqual, 3100)
		})

		convey.Convey("When no items or a nameless item are posted", func() {
			w, _ := do(r, http.MethodPost, "/api/v1/prices/search", `{"items":[]}`)
			convey.So(w.Code, convey.ShouldEqual, http.StatusBadRequest)
			w, _ = do(r, http.MethodPost, "/api/v1/prices/search", `{"items":[{"current_price":1}]}`)
			convey.So(w.Code, convey.ShouldEqual, http.StatusBadRequest)
		})
	})
}

func upload(r http.Handler, filename, content string) *httptest.ResponseRecorder {
	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	if filename != "" {
		fw, _ := mw.CreateFormFile("file", filename)
		_, _ = fw.Write([]byte(content))
	}
	_ = mw.Close()
	req := httptest.NewRequest(http.MethodPost, "/api/v1/excel/process", &body)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestProcessExcel(t *testing.T) {
	convey.Convey("Given the excel route", t, func() {
		r, _ := newRouter(&fakePricer{}, &fakeCatalog{})

		convey.Convey("When a workbook is uploaded the processed file is returned", func() {
			w := upload(r, "prices.xlsx", "workbook")
			convey.So(w.Code, convey.ShouldEqual, http.StatusOK)
			convey.So(w.Header().Get("Content-Type"), convey.ShouldEqual, xlsxMIME)
			convey.So(w.Header().Get("Content-Disposition"), convey.ShouldContainSubstring, "processed_prices.xlsx")
			convey.So(w.Header().Get("X-Rows-Changed"), convey.ShouldEqual, "2")

			f, err := excelize.OpenReader(w.Body)
			convey.So(err, convey.ShouldBeNil)
			v, _ := f.GetCellValue("Sheet1", "H6")
			convey.So(v, convey.ShouldEqual, "10800")
		})

		convey.Convey("When the upload is unusable", func() {
			convey.So(upload(r, "", "").Code, convey.ShouldEqual, http.StatusBadRequest)
			convey.So(upload(r, "prices.csv", "a,b").Code, convey.ShouldEqual, http.StatusBadRequest)
			convey.So(upload(r, "prices.xlsx", "broken").Code, convey.ShouldEqual, http.StatusUnprocessableEntity)
		})
	})
}

func jobStatusOf(r http.Handler, id string) jobStatus {
	_, env := do(r, http.MethodGet, "/api/v1/prices/jobs/"+id, "")
	var st jobStatus
	_ = json.Unmarshal(env.Data, &st)
	return st
}

func waitFinished(r http.Handler, id string) jobStatus {
	deadline := time.Now().Add(2 * time.Second)
	for {
		st := jobStatusOf(r, id)
		if !st.Running || time.Now().After(deadline) {
			return st
		}
		time.Sleep(10 * time.Millisecond)
	}
}

func TestPriceJobs(t *testing.T) {
	convey.Convey("Given the job routes", t, func() {
		convey.Convey("When a job is started it runs to completion", func() {
			r, _ := newRouter(&fakePricer{items: 4}, &fakeCatalog{})
			w, env := do(r, http.MethodPost, "/api/v1/prices/jobs", `{"game":"원피스","limit":4}`)
			convey.So(w.Code, convey.ShouldEqual, http.StatusAccepted)
			var st jobStatus
			convey.So(json.Unmarshal(env.Data, &st), convey.ShouldBeNil)
			convey.So(st.Game, convey.ShouldEqual, "onepiece")
			convey.So(st.Date, convey.ShouldEqual, "2024-12-10")

			final := waitFinished(r, st.ID)
			convey.So(final.Running, convey.ShouldBeFalse)
			convey.So(final.Done, convey.ShouldEqual, 4)
			convey.So(final.Success, convey.ShouldEqual, 2)
			convey.So(final.Failed, convey.ShouldEqual, 2)
			convey.So(final.FinishedAt, convey.ShouldNotBeNil)
		})

		convey.Convey("When a second job for the same game is started", func() {
			p := &fakePricer{untilCtx: true}
			r, _ := newRouter(p, &fakeCatalog{})
			_, env := do(r, http.MethodPost, "/api/v1/prices/jobs", `{"game":"digimon"}`)
			var st jobStatus
			_ = json.Unmarshal(env.Data, &st)

			w, _ := do(r, http.MethodPost, "/api/v1/prices/jobs", `{"game":"digimon"}`)
			convey.So(w.Code, convey.ShouldEqual, http.StatusConflict)

			convey.Convey("Then stopping cancels the running one", func() {
				w, env := do(r, http.MethodPost, "/api/v1/prices/jobs/"+st.ID+"/stop", "")
				convey.So(w.Code, convey.ShouldEqual, http.StatusOK)
				convey.So(env.Msg, convey.ShouldEqual, "stopping")

				final := waitFinished(r, st.ID)
				convey.So(final.Running, convey.ShouldBeFalse)
				convey.So(final.Interrupted, convey.ShouldBeTrue)

				_, env = do(r, http.MethodPost, "/api/v1/prices/jobs/"+st.ID+"/stop", "")
				convey.So(env.Msg, convey.ShouldEqual, "no running job")
			})
		})

		convey.Convey("When the request is invalid", func() {
			r, _ := newRouter(&fakePricer{}, &fakeCatalog{})
			w, _ := do(r, http.MethodPost, "/api/v1/prices/jobs", `{"game":"yugioh"}`)
			convey.So(w.Code, convey.ShouldEqual, http.StatusBadRequest)
			w, _ = do(r, http.MethodPost, "/api/v1/prices/jobs", `{}`)
			convey.So(w.Code, convey.ShouldEqual, http.StatusBadRequest)
			w, _ = do(r, http.MethodGet, "/api/v1/prices/jobs/nope", "")
			convey.So(w.Code, convey.ShouldEqual, http.StatusNotFound)
		})
	})
}

func TestPriceJobStream(t *testing.T) {
	convey.Convey("Given a job waiting to start", t, func() {
		p := &fakePricer{items: 3, release: make(chan struct{})}
		r, _ := newRouter(p, &fakeCatalog{})
		srv := httptest.NewServer(r)
		defer srv.Close()

		_, env := do(r, http.MethodPost, "/api/v1/prices/jobs", `{"game":"pokemon"}`)
		var st jobStatus
		convey.So(json.Unmarshal(env.Data, &st), convey.ShouldBeNil)

		url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/api/v1/prices/jobs/" + st.ID + "/ws"
		conn, _, err := websocket.DefaultDialer.Dial(url, nil)
		convey.So(err, convey.ShouldBeNil)
		defer conn.Close()

		convey.Convey("Then the stream sends the status, each item and the final state", func() {
			var first jobEvent
			convey.So(conn.ReadJSON(&first), convey.ShouldBeNil)
			convey.So(first.Type, convey.ShouldEqual, eventStatus)
			convey.So(first.Job.Running, convey.ShouldBeTrue)

			close(p.release)

			var events []jobEvent
			_ = conn.SetReadDeadline(time.Now().Add(2 * time.Second))
			for {
				var ev jobEvent
				if err := conn.ReadJSON(&ev); err != nil {
					break
				}
				events = append(events, ev)
				if ev.Type == eventDone {
					break
				}
			}
			convey.So(events, convey.ShouldHaveLength, 4)
			convey.So(events[0].Type, convey.ShouldEqual, eventProgress)
			convey.So(events[0].Item.CardVersionID, convey.ShouldEqual, 1)
			convey.So(events[2].Job.Done, convey.ShouldEqual, 3)
			convey.So(events[3].Type, convey.ShouldEqual, eventDone)
			convey.So(events[3].Job.Running, convey.ShouldBeFalse)
		})
	})
}
