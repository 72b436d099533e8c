package api

import (
	"context"
	"net/http"
	"time"

	"tcg-pricer/internal/pricing"
	"tcg-pricer/internal/services/pricer"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
)

// -------- Price jobs (async batch per game) --------

type jobStatus struct {
	ID          string     `json:"id"`
	Game        string     `json:"game"`
	Date        string     `json:"date"`
	Running     bool       `json:"running"`
	Force       bool       `json:"force"`
	DryRun      bool       `json:"dry_run"`
	Limit       int        `json:"limit"`
	Total       int        `json:"total"`
	Done        int        `json:"done"`
	Success     int        `json:"success"`
	Created     int        `json:"created"`
	Skipped     int        `json:"skipped"`
	Failed      int        `json:"failed"`
	Interrupted bool       `json:"interrupted"`
	StartedAt   time.Time  `json:"started_at"`
	FinishedAt  *time.Time `json:"finished_at"`
	Error       string     `json:"error"`
}

type jobEvent struct {
	Type string             `json:"type"`
	Job  jobStatus          `json:"job"`
	Item *pricer.ItemResult `json:"item,omitempty"`
}

type priceJob struct {
	status jobStatus
	cancel context.CancelFunc
	subs   map[chan jobEvent]struct{}
}

const (
	eventStatus   = "status"
	eventProgress = "progress"
	eventDone     = "done"

	wsPingInterval = 30 * time.Second
	wsWriteTimeout = 10 * time.Second
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin:     func(r *http.Request) bool { return true },
}

func (h *APIHandler) StartPriceJob(c *gin.Context) {
	var req struct {
		Game   string `json:"game" binding:"required"`
		Date   string `json:"date"`
		Limit  int    `json:"limit"`
		Force  bool   `json:"force"`
		DryRun bool   `json:"dry_run"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, http.StatusBadRequest, err.Error())
		return
	}
	game, valid := pricing.ParseGame(req.Game)
	if !valid {
		fail(c, http.StatusBadRequest, "unknown game "+req.Game)
		return
	}
	date, err := h.parseDate(req.Date)
	if err != nil {
		fail(c, http.StatusBadRequest, err.Error())
		return
	}
	if req.Limit < 0 {
		req.Limit = 0
	}

	h.jobMu.Lock()
	for _, j := range h.jobs {
		if j.status.Running && j.status.Game == string(game) {
			st := j.status
			h.jobMu.Unlock()
			c.JSON(http.StatusConflict, gin.H{"code": http.StatusConflict, "error": "job already running", "data": st})
			return
		}
	}
	ctx, cancel := context.WithCancel(context.Background())
	job := &priceJob{
		status: jobStatus{
			ID:        uuid.NewString(),
			Game:      string(game),
			Date:      date.Format(dateLayout),
			Running:   true,
			Force:     req.Force,
			DryRun:    req.DryRun,
			Limit:     req.Limit,
			StartedAt: h.now(),
		},
		cancel: cancel,
		subs:   make(map[chan jobEvent]struct{}),
	}
	h.jobs[job.status.ID] = job
	st := job.status
	h.jobMu.Unlock()

	go h.runPriceJob(ctx, job, game, date)
	c.JSON(http.StatusAccepted, gin.H{"code": 200, "msg": "started", "data": st})
}

func (h *APIHandler) runPriceJob(ctx context.Context, job *priceJob, game pricing.Game, date time.Time) {
	defer job.cancel()
	h.jobMu.Lock()
	ro := pricer.RunOptions{Force: job.status.Force, DryRun: job.status.DryRun, Limit: job.status.Limit}
	h.jobMu.Unlock()

	ro.Progress = func(done, total int, r pricer.ItemResult) {
		h.jobMu.Lock()
		defer h.jobMu.Unlock()
		st := &job.status
		st.Done, st.Total = done, total
		switch {
		case !r.Success:
			st.Failed++
		default:
			st.Success++
			if r.Created {
				st.Created++
			}
			if r.Skipped {
				st.Skipped++
			}
		}
		item := r
		h.publish(job, jobEvent{Type: eventProgress, Job: *st, Item: &item})
	}

	summary, err := h.pricer.UpdateGame(ctx, game, date, ro)

	h.jobMu.Lock()
	defer h.jobMu.Unlock()
	st := &job.status
	st.Running = false
	now := h.now()
	st.FinishedAt = &now
	if summary != nil {
		st.Total = summary.Total
		st.Interrupted = summary.Interrupted
	}
	if err != nil {
		st.Error = err.Error()
		h.log.Error().Err(err).Str("job_id", st.ID).Msg("price job failed")
	}
	h.publish(job, jobEvent{Type: eventDone, Job: *st})
	for ch := range job.subs {
		close(ch)
		delete(job.subs, ch)
	}
}

// publish fans ev out to the job's subscribers. Slow subscribers miss
// events rather than block the run. Callers hold jobMu.
func (h *APIHandler) publish(job *priceJob, ev jobEvent) {
	for ch := range job.subs {
		select {
		case ch <- ev:
		default:
		}
	}
}

func (h *APIHandler) job(c *gin.Context) (*priceJob, bool) {
	h.jobMu.Lock()
	job := h.jobs[c.Param("id")]
	h.jobMu.Unlock()
	if job == nil {
		fail(c, http.StatusNotFound, "job not found")
		return nil, false
	}
	return job, true
}

func (h *APIHandler) PriceJobStatus(c *gin.Context) {
	job, found := h.job(c)
	if !found {
		return
	}
	h.jobMu.Lock()
	st := job.status
	h.jobMu.Unlock()
	ok(c, st)
}

func (h *APIHandler) StopPriceJob(c *gin.Context) {
	job, found := h.job(c)
	if !found {
		return
	}
	h.jobMu.Lock()
	running := job.status.Running
	h.jobMu.Unlock()
	if !running {
		c.JSON(http.StatusOK, gin.H{"code": 200, "msg": "no running job"})
		return
	}
	job.cancel()
	c.JSON(http.StatusOK, gin.H{"code": 200, "msg": "stopping"})
}

// PriceJobStream sends the job status, then one event per priced item,
// then a final done event.
func (h *APIHandler) PriceJobStream(c *gin.Context) {
	job, found := h.job(c)
	if !found {
		return
	}
	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		h.log.Warn().Err(err).Msg("websocket upgrade")
		return
	}
	defer conn.Close()

	events := make(chan jobEvent, 64)
	h.jobMu.Lock()
	first := jobEvent{Type: eventStatus, Job: job.status}
	if job.status.Running {
		job.subs[events] = struct{}{}
	} else {
		first.Type = eventDone
		close(events)
	}
	h.jobMu.Unlock()
	defer h.unsubscribe(job, events)

	// Reads only serve to notice the client going away.
	gone := make(chan struct{})
	go func() {
		defer close(gone)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	write := func(v interface{}) error {
		_ = conn.SetWriteDeadline(time.Now().Add(wsWriteTimeout))
		return conn.WriteJSON(v)
	}
	if err := write(first); err != nil {
		return
	}

	ping := time.NewTicker(wsPingInterval)
	defer ping.Stop()
	for {
		select {
		case <-gone:
			return
		case <-ping.C:
			_ = conn.SetWriteDeadline(time.Now().Add(wsWriteTimeout))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		case ev, open := <-events:
			if !open {
				_ = conn.WriteControl(websocket.CloseMessage,
					websocket.FormatCloseMessage(websocket.CloseNormalClosure, "job finished"),
					time.Now().Add(wsWriteTimeout))
				return
			}
			if err := write(ev); err != nil {
				return
			}
		}
	}
}

func (h *APIHandler) unsubscribe(job *priceJob, ch chan jobEvent) {
	h.jobMu.Lock()
	defer h.jobMu.Unlock()
	if _, subscribed := job.subs[ch]; subscribed {
		delete(job.subs, ch)
		close(ch)
	}
}
