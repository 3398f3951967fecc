package httpapi

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/sicilystay/stayservice/internal/audit"
	"github.com/sicilystay/stayservice/internal/booking"
	"github.com/sicilystay/stayservice/internal/dates"
	"github.com/sicilystay/stayservice/internal/domain"
	"github.com/sicilystay/stayservice/internal/export"
	"github.com/sicilystay/stayservice/internal/log"
	"github.com/sicilystay/stayservice/internal/repository"
)

const (
	reasonMissingParameters = "missing_parameters"
	reasonPersistence       = "persistence_error"
	reasonInternal          = "internal_error"
	reasonRateLimited       = "rate_limited"
)

type handler struct {
	svc    BookingService
	lister BookingLister
	trail  *audit.Trail
}

// guestCount accepts both 3 and "3".
type guestCount int

func (g *guestCount) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if len(b) > 0 && b[0] == '"' {
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return err
		}
		b = []byte(strings.TrimSpace(s))
	}
	n, err := strconv.Atoi(string(b))
	if err != nil {
		return fmt.Errorf("guests must be an integer")
	}
	*g = guestCount(n)
	return nil
}

type quoteRequest struct {
	CheckIn  *string     `json:"checkin"`
	CheckOut *string     `json:"checkout"`
	Guests   *guestCount `json:"guests"`
	RoomType string      `json:"room_type"`
	Coupon   string      `json:"coupon"`
}

func (r quoteRequest) missing() []string {
	var out []string
	if r.CheckIn == nil {
		out = append(out, "checkin")
	}
	if r.CheckOut == nil {
		out = append(out, "checkout")
	}
	if r.Guests == nil {
		out = append(out, "guests")
	}
	return out
}

func (r quoteRequest) input() booking.QuoteInput {
	return booking.QuoteInput{
		CheckIn:  *r.CheckIn,
		CheckOut: *r.CheckOut,
		Guests:   int(*r.Guests),
		RoomType: r.RoomType,
		Coupon:   r.Coupon,
	}
}

type bookRequest struct {
	quoteRequest
	Customer *domain.Customer `json:"customer"`
}

func (h *handler) healthz(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"ok": true})
}

func (h *handler) readyz(c *gin.Context) {
	if err := h.svc.Ready(c.Request.Context()); err != nil {
		log.L(c.Request.Context()).Warn("Readiness check failed", zap.Error(err))
		c.JSON(http.StatusServiceUnavailable, gin.H{"ok": false, "error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"ok": true})
}

func (h *handler) availability(c *gin.Context) {
	raw, ok := c.GetQuery("date")
	if !ok {
		c.JSON(http.StatusBadRequest, errorBody("missing required parameter: date", reasonMissingParameters))
		return
	}

	a, err := h.svc.Availability(c.Request.Context(), raw)
	if err != nil {
		writeError(c, err)
		return
	}

	body := gin.H{"ok": true, "date": dates.Format(a.Date), "available": a.Available}
	if a.Reason != "" {
		body["reason"] = a.Reason
	} else {
		body["slots"] = a.Slots
	}
	c.JSON(http.StatusOK, body)
}

func (h *handler) quote(c *gin.Context) {
	var req quoteRequest
	if !bindJSON(c, &req) {
		return
	}
	if missing := req.missing(); len(missing) > 0 {
		c.JSON(http.StatusBadRequest, errorBody("missing required parameters: "+strings.Join(missing, ", "), reasonMissingParameters))
		return
	}

	q, err := h.svc.Quote(c.Request.Context(), req.input())
	if err != nil {
		writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"ok":          true,
		"product":     q.ProductID,
		"room_type":   q.RoomType,
		"nights":      q.Nights,
		"total_price": q.TotalPrice,
		"currency":    q.Currency,
	})
}

func (h *handler) book(c *gin.Context) {
	var req bookRequest
	if !bindJSON(c, &req) {
		return
	}
	missing := req.missing()
	if req.Customer == nil {
		missing = append(missing, "customer")
	}
	if len(missing) > 0 {
		c.JSON(http.StatusBadRequest, errorBody("missing required parameters: "+strings.Join(missing, ", "), reasonMissingParameters))
		return
	}

	b, err := h.svc.Book(c.Request.Context(), booking.BookInput{
		QuoteInput: req.input(),
		Customer:   *req.Customer,
	})
	if err != nil {
		writeError(c, err)
		return
	}

	c.JSON(http.StatusCreated, gin.H{
		"ok":          true,
		"booking_id":  b.ID,
		"product":     b.ProductID,
		"room_type":   b.RoomType,
		"customer":    b.Customer,
		"checkin":     dates.Format(b.CheckIn),
		"checkout":    dates.Format(b.CheckOut),
		"nights":      b.Nights,
		"guests":      b.Guests,
		"total_price": b.TotalPrice,
		"currency":    b.Currency,
		"status":      b.Status,
	})
}

func (h *handler) exportCSV(c *gin.Context) {
	var filter repository.Filter
	var ok bool
	if filter.CheckInFrom, ok = queryDate(c, "from"); !ok {
		return
	}
	if filter.CheckInTo, ok = queryDate(c, "to"); !ok {
		return
	}

	bookings, err := h.lister.List(c.Request.Context(), filter)
	if err != nil {
		writeError(c, fmt.Errorf("failed to list bookings: %w", err))
		return
	}

	c.Header("Content-Type", "text/csv; charset=utf-8")
	c.Header("Content-Disposition", `attachment; filename="bookings.csv"`)
	c.Status(http.StatusOK)
	if err := export.WriteCSV(c.Writer, bookings); err != nil {
		log.L(c.Request.Context()).Error("CSV export failed", zap.Error(err))
		return
	}
	if err := h.trail.BookingsExported(c.Request.Context(), c.GetString(ctxKeyAdmin), filter, len(bookings)); err != nil {
		log.L(c.Request.Context()).Warn("Audit event not recorded", zap.Error(err))
	}
}

// queryDate reads an optional date parameter. It writes the error response
// and returns false when the value is malformed.
func queryDate(c *gin.Context, param string) (time.Time, bool) {
	raw := c.Query(param)
	if raw == "" {
		return time.Time{}, true
	}
	d, err := dates.Parse(raw)
	if err != nil {
		writeError(c, domain.NewMalformedDate(param, raw))
		return time.Time{}, false
	}
	return d, true
}

// bindJSON decodes the body into dst. An empty body leaves dst zeroed so the
// caller reports the missing parameters.
func bindJSON(c *gin.Context, dst any) bool {
	if err := c.ShouldBindJSON(dst); err != nil && !errors.Is(err, io.EOF) {
		c.JSON(http.StatusBadRequest, errorBody("invalid request body: "+err.Error(), "invalid_request"))
		return false
	}
	return true
}

func errorBody(msg, reason string) gin.H {
	return gin.H{"ok": false, "error": msg, "reason": reason}
}

// rejectionBody adds the offending day and the bound when the reason has them.
func rejectionBody(rej *domain.Rejection) gin.H {
	body := errorBody(rej.Message, string(rej.Reason))
	if !rej.Date.IsZero() {
		body["date"] = dates.Format(rej.Date)
	}
	if rej.Limit > 0 {
		body["limit"] = rej.Limit
	}
	return body
}

// writeError maps rejections to 400 and everything else to 500.
func writeError(c *gin.Context, err error) {
	if rej, ok := domain.AsRejection(err); ok {
		c.JSON(http.StatusBadRequest, rejectionBody(rej))
		return
	}

	if perr, ok := domain.AsPersistenceError(err); ok {
		body := errorBody("booking was reserved but could not be stored", reasonPersistence)
		body["booking_id"] = perr.BookingID
		c.JSON(http.StatusInternalServerError, body)
		return
	}

	log.L(c.Request.Context()).Error("Request failed", zap.Error(err))
	c.JSON(http.StatusInternalServerError, errorBody("internal error", reasonInternal))
}
