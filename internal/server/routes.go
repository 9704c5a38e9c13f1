package server

import (
	"errors"
	"log"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/example/tourdesk/internal/booking"
	"github.com/example/tourdesk/internal/dispatch"
	"github.com/example/tourdesk/internal/maintenance"
	"github.com/example/tourdesk/internal/queue"
)

// registerRoutes sets up all API routes on the Gin router.
func registerRoutes(router *gin.Engine, svc *booking.Service, d *dispatch.Dispatcher, sweeper *maintenance.Sweeper) {
	router.GET("/healthz", handleHealth())

	router.POST("/sessions", handleCreateSession(svc))
	router.GET("/sessions/stats", handleSessionStats(svc))
	router.GET("/sessions/:id", handleGetSession(svc))
	router.PATCH("/sessions/:id/state", handleSetSessionState(svc))

	router.GET("/users/:id/sessions", handleUserSessions(svc))

	router.POST("/tours/booked-hours", handleBookedHours(svc))
	router.POST("/tours/day-tours", handleDayTours(svc))
	router.GET("/tours/:id", handleGetTour(svc))
	router.PATCH("/tours/:id/sessions/state", handleSetTourSessionsState(svc))

	router.GET("/queue", handleListQueue(d))
	router.GET("/queue/next", handlePeekQueue(d))
	router.POST("/queue/pop", handlePopQueue(d))

	router.POST("/maintenance/clean", handleClean(sweeper))
	router.POST("/maintenance/expire", handleExpire(sweeper))
}

func handleHealth() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	}
}

type teamRequest struct {
	Name      string `json:"name"`
	Size      int    `json:"size"`
	Notes     string `json:"notes"`
	ContactID string `json:"contactId"`
}

type createSessionRequest struct {
	BookingUserID string       `json:"bookingUserId"`
	UserID        string       `json:"userId"`
	From          string       `json:"from"`
	To            string       `json:"to"`
	DepartureTime time.Time    `json:"departureTime"`
	Team          *teamRequest `json:"team"`
}

func handleCreateSession(svc *booking.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req createSessionRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		opts := booking.CreateSessionOpts{
			BookingUserID: req.BookingUserID,
			UserID:        req.UserID,
			From:          req.From,
			To:            req.To,
			DepartureTime: req.DepartureTime,
		}
		if req.Team != nil {
			opts.Team = &booking.TeamOpts{
				Name:      req.Team.Name,
				Size:      req.Team.Size,
				Notes:     req.Team.Notes,
				ContactID: req.Team.ContactID,
			}
		}
		session, err := svc.CreateSession(c.Request.Context(), opts)
		if err != nil {
			renderError(c, err)
			return
		}
		c.JSON(http.StatusCreated, session)
	}
}

func handleGetSession(svc *booking.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		session, err := svc.GetSession(c.Request.Context(), c.Param("id"))
		if err != nil {
			renderError(c, err)
			return
		}
		c.JSON(http.StatusOK, session)
	}
}

type stateRequest struct {
	State   string `json:"state"`
	Message string `json:"message"`
}

func handleSetSessionState(svc *booking.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req stateRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		session, err := svc.SetSessionState(c.Request.Context(), c.Param("id"), req.State, req.Message)
		if err != nil {
			renderError(c, err)
			return
		}
		c.JSON(http.StatusOK, session)
	}
}

func handleSessionStats(svc *booking.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		stats, err := svc.SessionStats(c.Request.Context())
		if err != nil {
			renderError(c, err)
			return
		}
		c.JSON(http.StatusOK, stats)
	}
}

func handleUserSessions(svc *booking.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		var filters booking.UserSessionFilters
		if v := c.Query("startDate"); v != "" {
			t, err := time.Parse(time.RFC3339, v)
			if err != nil {
				c.JSON(http.StatusBadRequest, gin.H{"error": "invalid startDate"})
				return
			}
			filters.StartDate = t
		}
		if v := c.Query("endDate"); v != "" {
			t, err := time.Parse(time.RFC3339, v)
			if err != nil {
				c.JSON(http.StatusBadRequest, gin.H{"error": "invalid endDate"})
				return
			}
			filters.EndDate = t
		}
		filters.State = c.Query("state")

		sessions, err := svc.ListUserSessions(c.Request.Context(), c.Param("id"), filters)
		if err != nil {
			renderError(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"sessions": sessions})
	}
}

func handleGetTour(svc *booking.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		tour, err := svc.GetTour(c.Request.Context(), c.Param("id"))
		if err != nil {
			renderError(c, err)
			return
		}
		c.JSON(http.StatusOK, tour)
	}
}

func handleSetTourSessionsState(svc *booking.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req stateRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		updated, err := svc.SetTourSessionsState(c.Request.Context(), c.Param("id"), req.State, req.Message)
		if err != nil {
			renderError(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"updatedCount": updated})
	}
}

type dateRequest struct {
	Date time.Time `json:"date"`
}

func handleBookedHours(svc *booking.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req dateRequest
		if err := c.ShouldBindJSON(&req); err != nil || req.Date.IsZero() {
			c.JSON(http.StatusBadRequest, gin.H{"error": "date is required"})
			return
		}
		hours, err := svc.GetBookedCapacity(c.Request.Context(), req.Date)
		if err != nil {
			renderError(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"bookedHours": hours, "maxCapacity": svc.MaxCapacity()})
	}
}

func handleDayTours(svc *booking.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req dateRequest
		if err := c.ShouldBindJSON(&req); err != nil || req.Date.IsZero() {
			c.JSON(http.StatusBadRequest, gin.H{"error": "date is required"})
			return
		}
		tours, err := svc.ListDayTours(c.Request.Context(), req.Date)
		if err != nil {
			renderError(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"tours": tours})
	}
}

func handleListQueue(d *dispatch.Dispatcher) gin.HandlerFunc {
	return func(c *gin.Context) {
		var statuses []string
		if v := c.Query("status"); v != "" {
			statuses = append(statuses, v)
		}
		summaries, err := d.ListQueued(c.Request.Context(), statuses...)
		if err != nil {
			// Queue views are advisory; degrade to an empty list rather
			// than failing the whole page.
			if errors.Is(err, queue.ErrUnavailable) {
				log.Printf("server: queue listing unavailable: %v", err)
				c.JSON(http.StatusOK, gin.H{"tours": []dispatch.TourSummary{}})
				return
			}
			renderError(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"tours": summaries})
	}
}

func handlePeekQueue(d *dispatch.Dispatcher) gin.HandlerFunc {
	return func(c *gin.Context) {
		summary, err := d.Peek(c.Request.Context())
		if err != nil {
			if errors.Is(err, queue.ErrEmptyQueue) {
				c.JSON(http.StatusOK, gin.H{"empty": true})
				return
			}
			renderError(c, err)
			return
		}
		c.JSON(http.StatusOK, summary)
	}
}

type popRequest struct {
	TargetState string `json:"targetState"`
	Message     string `json:"message"`
}

func handlePopQueue(d *dispatch.Dispatcher) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req popRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		result, err := d.PopNext(c.Request.Context(), req.TargetState, req.Message)
		if err != nil {
			if errors.Is(err, queue.ErrEmptyQueue) {
				c.JSON(http.StatusOK, gin.H{"empty": true})
				return
			}
			renderError(c, err)
			return
		}
		c.JSON(http.StatusOK, result)
	}
}

func handleClean(sweeper *maintenance.Sweeper) gin.HandlerFunc {
	return func(c *gin.Context) {
		if err := sweeper.RemoveEmptyTours(c.Request.Context()); err != nil {
			renderError(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	}
}

func handleExpire(sweeper *maintenance.Sweeper) gin.HandlerFunc {
	return func(c *gin.Context) {
		if err := sweeper.ProcessExpiredTours(c.Request.Context()); err != nil {
			renderError(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	}
}

// renderError maps domain errors onto HTTP status codes.
func renderError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, booking.ErrCapacityExceeded):
		c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
	case errors.Is(err, booking.ErrInvalidState), errors.Is(err, dispatch.ErrInvalidTargetState):
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
	case errors.Is(err, booking.ErrNotFound), errors.Is(err, booking.ErrInvalidBookingIdentity):
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
	case errors.Is(err, queue.ErrUnavailable):
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": err.Error()})
	default:
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
	}
}
