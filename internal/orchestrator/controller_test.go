package orchestrator

import (
	"bytes"
	"context"
	"encoding/json"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"testing"

	"ferryline/internal/bookings"
	"ferryline/internal/pricing"
	"ferryline/internal/seats"
	"ferryline/internal/shared/apperrors"
	"ferryline/internal/shared/middleware"
	"ferryline/internal/users"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type mockService struct {
	createFn   func(ctx context.Context, actor middleware.Actor, scheduleID uuid.UUID, req CreateBookingRequest) (*bookings.Booking, error)
	cancelFn   func(ctx context.Context, actor middleware.Actor, bookingID uuid.UUID, req CancelRequest) (*CancelResult, error)
	issueFn    func(ctx context.Context, actor middleware.Actor, bookingID uuid.UUID, req IssueRequest) (*IssueResult, error)
	travelFn   func(ctx context.Context, actor middleware.Actor, ticketID uuid.UUID) (*seats.SeatAssignment, error)
	verifyFn   func(ctx context.Context, actor middleware.Actor, bookingID uuid.UUID, image []byte) (*TransferCheck, error)
	paymentFn  func(ctx context.Context, actor middleware.Actor, bookingID uuid.UUID) (*PaymentLink, error)
	seatMapErr error
}

func (m *mockService) CreateBooking(ctx context.Context, actor middleware.Actor, scheduleID uuid.UUID, req CreateBookingRequest) (*bookings.Booking, error) {
	return m.createFn(ctx, actor, scheduleID, req)
}

func (m *mockService) CancelBooking(ctx context.Context, actor middleware.Actor, bookingID uuid.UUID, req CancelRequest) (*CancelResult, error) {
	return m.cancelFn(ctx, actor, bookingID, req)
}

func (m *mockService) IssueTicket(ctx context.Context, actor middleware.Actor, bookingID uuid.UUID, req IssueRequest) (*IssueResult, error) {
	return m.issueFn(ctx, actor, bookingID, req)
}

func (m *mockService) MarkTravelled(ctx context.Context, actor middleware.Actor, ticketID uuid.UUID) (*seats.SeatAssignment, error) {
	return m.travelFn(ctx, actor, ticketID)
}

func (m *mockService) GetSeatMap(ctx context.Context, scheduleID uuid.UUID) (*seats.SeatMap, error) {
	if m.seatMapErr != nil {
		return nil, m.seatMapErr
	}
	return &seats.SeatMap{ScheduleID: scheduleID.String(), Total: 40, Available: 38, Booked: []string{"A1", "A2"}}, nil
}

func (m *mockService) Quote(ctx context.Context, actor middleware.Actor, scheduleID uuid.UUID, req QuoteRequest) (*pricing.Quote, error) {
	return &pricing.Quote{Currency: "MVR"}, nil
}

func (m *mockService) PaymentLink(ctx context.Context, actor middleware.Actor, bookingID uuid.UUID) (*PaymentLink, error) {
	return m.paymentFn(ctx, actor, bookingID)
}

func (m *mockService) VerifyTransfer(ctx context.Context, actor middleware.Actor, bookingID uuid.UUID, image []byte) (*TransferCheck, error) {
	return m.verifyFn(ctx, actor, bookingID, image)
}

type envelope struct {
	Status     string          `json:"status"`
	StatusCode int             `json:"status_code"`
	Message    string          `json:"message"`
	Data       json.RawMessage `json:"data"`
	Errors     json.RawMessage `json:"errors"`
}

func newRouter(svc Service, actor middleware.Actor) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(func(c *gin.Context) {
		middleware.SetActor(c, actor)
		c.Next()
	})
	SetupBookingEngineRoutes(r.Group("/api/v1"), NewController(svc))
	return r
}

func do(t *testing.T, r *gin.Engine, method, path string, body interface{}) (*httptest.ResponseRecorder, envelope) {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	var env envelope
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &env))
	return w, env
}

func validCreateBody() map[string]interface{} {
	return map[string]interface{}{
		"buyer":                  map[string]string{"name": "Aisha Ibrahim", "phone": "7771234"},
		"pickup_destination_id":  uuid.NewString(),
		"dropoff_destination_id": uuid.NewString(),
		"tickets": []map[string]string{
			{"ticket_type_id": uuid.NewString(), "passenger_name": "Aisha Ibrahim", "seat_no": "A1"},
		},
	}
}

func TestCreateBooking_Created(t *testing.T) {
	scheduleID := uuid.New()
	svc := &mockService{createFn: func(ctx context.Context, actor middleware.Actor, id uuid.UUID, req CreateBookingRequest) (*bookings.Booking, error) {
		assert.Equal(t, scheduleID, id)
		assert.Equal(t, "PUBLIC", actor.Channel())
		return &bookings.Booking{ID: uuid.New(), Code: "K7QX2M"}, nil
	}}

	w, env := do(t, newRouter(svc, middleware.Anonymous), http.MethodPost, "/api/v1/schedules/"+scheduleID.String()+"/bookings", validCreateBody())
	assert.Equal(t, http.StatusCreated, w.Code)
	assert.Contains(t, string(env.Data), "K7QX2M")
}

func TestCreateBooking_ErrorMapping(t *testing.T) {
	tests := []struct {
		name   string
		err    error
		status int
	}{
		{"seat conflict", apperrors.SeatConflict("A1"), http.StatusConflict},
		{"invalid route", apperrors.InvalidRoute("pickup must come before dropoff"), http.StatusUnprocessableEntity},
		{"invalid ticket type", apperrors.InvalidTicketType("x"), http.StatusBadRequest},
		{"agent not approved", apperrors.Forbidden("not connected"), http.StatusForbidden},
		{"schedule missing", apperrors.NotFound("schedule", "x"), http.StatusNotFound},
		{"ledger broken", apperrors.LedgerInvariant("sum is %s", "1"), http.StatusInternalServerError},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc := &mockService{createFn: func(context.Context, middleware.Actor, uuid.UUID, CreateBookingRequest) (*bookings.Booking, error) {
				return nil, tt.err
			}}
			w, env := do(t, newRouter(svc, middleware.Anonymous), http.MethodPost, "/api/v1/schedules/"+uuid.NewString()+"/bookings", validCreateBody())
			assert.Equal(t, tt.status, w.Code)
			assert.Equal(t, "error", env.Status)
		})
	}
}

func TestCreateBooking_SeatConflictListsSeats(t *testing.T) {
	svc := &mockService{createFn: func(context.Context, middleware.Actor, uuid.UUID, CreateBookingRequest) (*bookings.Booking, error) {
		return nil, apperrors.SeatConflict("A1", "A2")
	}}
	_, env := do(t, newRouter(svc, middleware.Anonymous), http.MethodPost, "/api/v1/schedules/"+uuid.NewString()+"/bookings", validCreateBody())
	assert.JSONEq(t, `{"seats":["A1","A2"]}`, string(env.Errors))
}

func TestCreateBooking_BadInput(t *testing.T) {
	svc := &mockService{}
	r := newRouter(svc, middleware.Anonymous)

	w, _ := do(t, r, http.MethodPost, "/api/v1/schedules/not-a-uuid/bookings", validCreateBody())
	assert.Equal(t, http.StatusBadRequest, w.Code)

	body := validCreateBody()
	body["tickets"] = []map[string]string{}
	w, _ = do(t, r, http.MethodPost, "/api/v1/schedules/"+uuid.NewString()+"/bookings", body)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestCancelBooking(t *testing.T) {
	owner := uuid.New()
	actor := middleware.Actor{UserID: uuid.New(), Role: users.RoleOwner, OwnerID: &owner, Authenticated: true}

	var got CancelRequest
	svc := &mockService{cancelFn: func(ctx context.Context, a middleware.Actor, id uuid.UUID, req CancelRequest) (*CancelResult, error) {
		got = req
		return &CancelResult{BookingID: id, Full: len(req.Seats) == 0, SeatsFreed: []string{"A2"}}, nil
	}}
	r := newRouter(svc, actor)

	w, env := do(t, r, http.MethodPost, "/api/v1/bookings/"+uuid.NewString()+"/cancel", map[string]interface{}{"seats": []string{"A2"}})
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "Seats cancelled", env.Message)
	assert.Equal(t, []string{"A2"}, got.Seats)

	w, env = do(t, r, http.MethodPost, "/api/v1/bookings/"+uuid.NewString()+"/cancel", nil)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "Booking cancelled", env.Message)
}

func TestCancelBooking_RequiresAuth(t *testing.T) {
	w, _ := do(t, newRouter(&mockService{}, middleware.Anonymous), http.MethodPost, "/api/v1/bookings/"+uuid.NewString()+"/cancel", nil)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestIssueTicket(t *testing.T) {
	owner := uuid.New()
	actor := middleware.Actor{UserID: uuid.New(), Role: users.RoleStaff, OwnerID: &owner, Authenticated: true}
	svc := &mockService{issueFn: func(ctx context.Context, a middleware.Actor, id uuid.UUID, req IssueRequest) (*IssueResult, error) {
		if req.PaymentMethod == "cash" {
			return &IssueResult{BookingID: id, Reference: "PAY-1"}, nil
		}
		return nil, apperrors.StateConflictWrap(apperrors.ErrAlreadyIssued)
	}}
	r := newRouter(svc, actor)

	w, _ := do(t, r, http.MethodPost, "/api/v1/bookings/"+uuid.NewString()+"/issue-ticket", map[string]string{"payment_method": "cash"})
	assert.Equal(t, http.StatusOK, w.Code)

	w, _ = do(t, r, http.MethodPost, "/api/v1/bookings/"+uuid.NewString()+"/issue-ticket", map[string]string{"payment_method": "bank_transfer"})
	assert.Equal(t, http.StatusConflict, w.Code)

	w, _ = do(t, r, http.MethodPost, "/api/v1/bookings/"+uuid.NewString()+"/issue-ticket", map[string]string{"payment_method": "card"})
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestMarkTravelled_OwnerSideOnly(t *testing.T) {
	svc := &mockService{travelFn: func(ctx context.Context, a middleware.Actor, id uuid.UUID) (*seats.SeatAssignment, error) {
		return &seats.SeatAssignment{TicketID: id, TravelStatus: seats.TravelTravelled}, nil
	}}

	agent := middleware.Actor{UserID: uuid.New(), Role: users.RoleAgent, Authenticated: true}
	w, _ := do(t, newRouter(svc, agent), http.MethodPost, "/api/v1/tickets/"+uuid.NewString()+"/travelled", nil)
	assert.Equal(t, http.StatusForbidden, w.Code)

	owner := uuid.New()
	staff := middleware.Actor{UserID: uuid.New(), Role: users.RoleStaff, OwnerID: &owner, Authenticated: true}
	w, _ = do(t, newRouter(svc, staff), http.MethodPost, "/api/v1/tickets/"+uuid.NewString()+"/travelled", nil)
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestGetSeatMap(t *testing.T) {
	w, env := do(t, newRouter(&mockService{}, middleware.Anonymous), http.MethodGet, "/api/v1/schedules/"+uuid.NewString()+"/seat-map", nil)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, string(env.Data), `"available_seats":38`)

	w, _ = do(t, newRouter(&mockService{seatMapErr: apperrors.NotFound("schedule", "x")}, middleware.Anonymous), http.MethodGet, "/api/v1/schedules/"+uuid.NewString()+"/seat-map", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestPaymentLink_GatewayRejects(t *testing.T) {
	actor := middleware.Actor{UserID: uuid.New(), Role: users.RolePublic, Authenticated: true}
	svc := &mockService{paymentFn: func(context.Context, middleware.Actor, uuid.UUID) (*PaymentLink, error) {
		return &PaymentLink{BookingCode: "K7QX2M", Created: false, Gateway: map[string]interface{}{"error": "gateway returned 401"}}, nil
	}}
	w, env := do(t, newRouter(svc, actor), http.MethodPost, "/api/v1/bookings/"+uuid.NewString()+"/payment-link", nil)
	assert.Equal(t, http.StatusBadGateway, w.Code)
	assert.Contains(t, string(env.Data), "gateway returned 401")
}

func TestVerifyTransfer_Multipart(t *testing.T) {
	actor := middleware.Actor{UserID: uuid.New(), Role: users.RolePublic, Authenticated: true}
	svc := &mockService{verifyFn: func(ctx context.Context, a middleware.Actor, id uuid.UUID, image []byte) (*TransferCheck, error) {
		assert.Equal(t, []byte("png-bytes"), image)
		return &TransferCheck{BookingCode: "K7QX2M", Valid: false}, nil
	}}
	r := newRouter(svc, actor)

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	part, err := mw.CreateFormFile("receipt", "receipt.png")
	require.NoError(t, err)
	_, _ = part.Write([]byte("png-bytes"))
	require.NoError(t, mw.Close())

	req := httptest.NewRequest(http.MethodPost, "/api/v1/bookings/"+uuid.NewString()+"/verify-transfer", &buf)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
	var env envelope
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &env))
	assert.Equal(t, "Transfer could not be verified", env.Message)

	w2, _ := do(t, r, http.MethodPost, "/api/v1/bookings/"+uuid.NewString()+"/verify-transfer", nil)
	assert.Equal(t, http.StatusBadRequest, w2.Code)
}
