package app

import (
	"bytes"
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/goccy/go-json"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/stretchr/testify/suite"

	availabilityHttp "github.com/staydrive/inventory-engine/internal/availability/http"
	bookingHttp "github.com/staydrive/inventory-engine/internal/booking/http"
	"github.com/staydrive/inventory-engine/internal/calendar"
	catalogHttp "github.com/staydrive/inventory-engine/internal/catalog/http"
	"github.com/staydrive/inventory-engine/internal/db/dbtest"
	driverHttp "github.com/staydrive/inventory-engine/internal/driver/http"
	inventoryHttp "github.com/staydrive/inventory-engine/internal/inventory/http"
	"github.com/staydrive/inventory-engine/internal/pkg/response"
	retentionHttp "github.com/staydrive/inventory-engine/internal/retention/http"
)

type APISuite struct {
	suite.Suite
	// pool switches the suite to the PostgreSQL repositories.
	pool      *pgxpool.Pool
	container *Container
	today     calendar.Day

	adminToken string
	staffToken string
	aliceToken string
	bobToken   string
}

func TestAPISuite(t *testing.T) {
	suite.Run(t, new(APISuite))
}

func TestAPISuitePostgres(t *testing.T) {
	pool, cleanup := dbtest.New(context.Background(), t, time.Minute)
	defer cleanup()
	suite.Run(t, &APISuite{pool: pool})
}

func (s *APISuite) SetupSuite() {
	gin.SetMode(gin.TestMode)
}

func (s *APISuite) SetupTest() {
	if s.pool != nil {
		dbtest.Truncate(context.Background(), s.T(), s.pool)
	}
	s.container = s.newContainer(s.pool)
	s.today = calendar.Today(time.UTC)
	s.adminToken = s.token("admin-1", "admin")
	s.staffToken = s.token("staff-1", "staff")
	s.aliceToken = s.token("alice", "customer")
	s.bobToken = s.token("bob", "customer")
}

func (s *APISuite) newContainer(pool *pgxpool.Pool) *Container {
	return NewContainer(Config{
		DBPool:        pool,
		JWTSecret:     "test-secret",
		JWTTTL:        30 * time.Minute,
		CacheTTL:      time.Minute,
		TxMaxAttempts: 3,
		LockTimeout:   2 * time.Second,
	})
}

// smallPool opens a second pool on the suite database capped at maxConns.
func (s *APISuite) smallPool(maxConns int32) *pgxpool.Pool {
	cfg, err := pgxpool.ParseConfig(s.pool.Config().ConnString())
	s.Require().NoError(err)
	cfg.MaxConns = maxConns
	pool, err := pgxpool.NewWithConfig(context.Background(), cfg)
	s.Require().NoError(err)
	s.T().Cleanup(pool.Close)
	return pool
}

func (s *APISuite) token(userID, role string) string {
	token, err := s.container.JWTManager.GenerateAccessToken(userID, role)
	s.Require().NoError(err)
	return token
}

func (s *APISuite) executeRequest(method, path string, body any, token string) *httptest.ResponseRecorder {
	var reqBody []byte
	if body != nil {
		var err error
		reqBody, err = json.Marshal(body)
		s.Require().NoError(err)
	}

	req, _ := http.NewRequest(method, path, bytes.NewBuffer(reqBody))
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	w := httptest.NewRecorder()
	s.container.Router.ServeHTTP(w, req)
	return w
}

func (s *APISuite) decode(w *httptest.ResponseRecorder, out any) {
	s.Require().NoError(json.Unmarshal(w.Body.Bytes(), out), w.Body.String())
}

func (s *APISuite) createResource(kind, name string) string {
	w := s.executeRequest("POST", "/v1/resources", map[string]any{"kind": kind, "name": name, "default_units": 2}, s.adminToken)
	s.Require().Equal(http.StatusCreated, w.Code, w.Body.String())
	var res catalogHttp.ResourceResponse
	s.decode(w, &res)
	return res.ID
}

func (s *APISuite) initRange(kind, id string, start, end calendar.Day, total int) {
	w := s.executeRequest("POST", fmt.Sprintf("/v1/inventory/%s/%s/init", kind, id),
		map[string]any{"start": start, "end": end, "total_units": total}, s.staffToken)
	s.Require().Equal(http.StatusOK, w.Code, w.Body.String())
}

func (s *APISuite) availability(kind, id string, start, end calendar.Day) availabilityHttp.RangeResponse {
	w := s.executeRequest("GET", fmt.Sprintf("/v1/inventory/%s/%s/availability?start=%s&end=%s", kind, id, start, end), nil, "")
	s.Require().Equal(http.StatusOK, w.Code, w.Body.String())
	var resp availabilityHttp.RangeResponse
	s.decode(w, &resp)
	return resp
}

func (s *APISuite) TestHealthz() {
	w := s.executeRequest("GET", "/healthz", nil, "")
	s.Equal(http.StatusOK, w.Code)
}

func (s *APISuite) TestAuthAndRoles() {
	w := s.executeRequest("GET", "/v1/auth/me", nil, s.staffToken)
	s.Require().Equal(http.StatusOK, w.Code)
	s.JSONEq(`{"user_id":"staff-1","role":"staff","is_staff":true}`, w.Body.String())

	h1 := s.createResource("homestay", "Villa")
	path := fmt.Sprintf("/v1/inventory/homestay/%s/init", h1)
	body := map[string]any{"start": s.today, "total_units": 1}

	s.Equal(http.StatusUnauthorized, s.executeRequest("POST", path, body, "").Code)
	s.Equal(http.StatusUnauthorized, s.executeRequest("POST", path, body, "not-a-token").Code)
	s.Equal(http.StatusForbidden, s.executeRequest("POST", path, body, s.aliceToken).Code)
	s.Equal(http.StatusForbidden, s.executeRequest("POST", "/v1/resources", map[string]any{"kind": "car", "name": "Van"}, s.staffToken).Code)
	s.Equal(http.StatusOK, s.executeRequest("POST", path, body, s.staffToken).Code)
}

func (s *APISuite) TestValidationErrors() {
	h1 := s.createResource("homestay", "Villa")

	w := s.executeRequest("GET", fmt.Sprintf("/v1/inventory/boat/%s/availability?start=2024-07-01&end=2024-07-02", h1), nil, "")
	s.Equal(http.StatusBadRequest, w.Code)

	w = s.executeRequest("GET", fmt.Sprintf("/v1/inventory/homestay/%s/availability?start=2024-07-01&end=07/02/2024", h1), nil, "")
	s.Equal(http.StatusBadRequest, w.Code)
	var errResp response.ErrorResponse
	s.decode(w, &errResp)
	s.Contains(errResp.Details, "End")

	w = s.executeRequest("GET", fmt.Sprintf("/v1/inventory/homestay/%s/availability?start=2024-07-02&end=2024-07-01", h1), nil, "")
	s.Equal(http.StatusBadRequest, w.Code)

	w = s.executeRequest("POST", fmt.Sprintf("/v1/inventory/homestay/%s/init", h1),
		map[string]any{"start": s.today, "total_units": -1}, s.staffToken)
	s.Equal(http.StatusBadRequest, w.Code)
}

func (s *APISuite) TestBookingLifecycle() {
	h1 := s.createResource("homestay", "Villa")
	start := s.today.AddDays(1)
	s.initRange("homestay", h1, start, start.AddDays(30), 2)

	// Unset days before the initialized window.
	before := s.availability("homestay", h1, s.today, start.AddDays(1))
	s.Require().Len(before.Days, 2)
	s.Equal("unset", before.Days[0].Tier)
	s.Equal("available", before.Days[1].Tier)

	w := s.executeRequest("POST", "/v1/bookings", bookingHttp.CreateBookingRequest{
		Kind: "homestay", ResourceID: h1, Start: start.String(), End: start.AddDays(2).String(),
	}, s.aliceToken)
	s.Require().Equal(http.StatusCreated, w.Code, w.Body.String())
	var created bookingHttp.BookingResponse
	s.decode(w, &created)
	s.Equal("confirmed", string(created.Status))
	s.Equal(1, created.Units)
	s.Equal(2, created.Nights)

	after := s.availability("homestay", h1, start, start.AddDays(3))
	s.Equal([]string{"limited", "limited", "available"},
		[]string{after.Days[0].Tier, after.Days[1].Tier, after.Days[2].Tier})

	// Lowering total below booked units is refused with the offending dates.
	w = s.executeRequest("PUT", fmt.Sprintf("/v1/inventory/homestay/%s/days/%s", h1, start), map[string]any{"total_units": 0}, s.staffToken)
	s.Equal(http.StatusConflict, w.Code)
	s.Contains(w.Body.String(), start.String())

	s.Equal(http.StatusForbidden, s.executeRequest("GET", "/v1/bookings/"+created.ID, nil, s.bobToken).Code)
	s.Equal(http.StatusOK, s.executeRequest("GET", "/v1/bookings/"+created.ID, nil, s.staffToken).Code)

	w = s.executeRequest("GET", "/v1/bookings", nil, s.bobToken)
	s.Require().Equal(http.StatusOK, w.Code)
	var bobsPage response.PageResponse[bookingHttp.BookingResponse]
	s.decode(w, &bobsPage)
	s.Zero(bobsPage.Total)
	s.NotNil(bobsPage.Items)

	for i := 0; i < 2; i++ {
		w = s.executeRequest("POST", "/v1/bookings/"+created.ID+"/cancel", nil, s.aliceToken)
		s.Require().Equal(http.StatusOK, w.Code, w.Body.String())
		var cancelled bookingHttp.BookingResponse
		s.decode(w, &cancelled)
		s.Equal("cancelled", string(cancelled.Status))
	}

	restored := s.availability("homestay", h1, start, start.AddDays(2))
	s.Equal(2, restored.Days[0].Available)
	s.Equal("available", restored.Days[0].Tier)
}

func (s *APISuite) TestOversellIsRejected() {
	c1 := s.createResource("car", "Hatchback")
	start := s.today.AddDays(3)
	s.initRange("car", c1, start, start.AddDays(3), 1)

	// Middle day sold out by staff override.
	w := s.executeRequest("PUT", fmt.Sprintf("/v1/inventory/car/%s/days/%s", c1, start.AddDays(1)), map[string]any{"total_units": 0}, s.staffToken)
	s.Require().Equal(http.StatusOK, w.Code, w.Body.String())

	w = s.executeRequest("POST", "/v1/bookings", bookingHttp.CreateBookingRequest{
		Kind: "car", ResourceID: c1, Start: start.String(), End: start.AddDays(3).String(),
	}, s.aliceToken)
	s.Require().Equal(http.StatusConflict, w.Code, w.Body.String())
	var errResp struct {
		Error   string `json:"error"`
		Details struct {
			Dates []calendar.Day `json:"dates"`
		} `json:"details"`
	}
	s.decode(w, &errResp)
	s.Equal([]calendar.Day{start.AddDays(1)}, errResp.Details.Dates)

	// Nothing was booked on the days that still had room.
	days := s.availability("car", c1, start, start.AddDays(3)).Days
	s.Require().Len(days, 3)
	s.Equal([]int{1, 0, 1}, []int{days[0].Available, days[1].Available, days[2].Available})
}

func (s *APISuite) TestConcurrentBookingsForLastUnit() {
	h1 := s.createResource("homestay", "Cabin")
	start := s.today.AddDays(7)
	s.initRange("homestay", h1, start, start.AddDays(2), 1)

	body, err := json.Marshal(bookingHttp.CreateBookingRequest{
		Kind: "homestay", ResourceID: h1, Start: start.String(), End: start.AddDays(2).String(),
	})
	s.Require().NoError(err)

	const attempts = 12
	tokens := make([]string, attempts)
	for i := range tokens {
		tokens[i] = s.token(fmt.Sprintf("guest-%d", i), "customer")
	}
	codes := make([]int, attempts)
	var wg sync.WaitGroup
	for i := 0; i < attempts; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			req := httptest.NewRequest("POST", "/v1/bookings", bytes.NewReader(body))
			req.Header.Set("Content-Type", "application/json")
			req.Header.Set("Authorization", "Bearer "+tokens[i])
			w := httptest.NewRecorder()
			s.container.Router.ServeHTTP(w, req)
			codes[i] = w.Code
		}(i)
	}
	wg.Wait()

	created := 0
	for _, code := range codes {
		if code == http.StatusCreated {
			created++
			continue
		}
		s.Equal(http.StatusConflict, code)
	}
	s.Equal(1, created)

	days := s.availability("homestay", h1, start, start.AddDays(2)).Days
	s.Equal("full", days[0].Tier)
	s.Equal("full", days[1].Tier)
}

func (s *APISuite) TestConcurrentCarAndDriverBookings() {
	const cars, drivers = 6, 3
	if s.pool != nil {
		// Fewer connections than concurrent reservations: every statement
		// of a reservation must run on its own transaction's connection.
		s.container = s.newContainer(s.smallPool(2))
	}

	day := s.today.AddDays(9)
	carIDs := make([]string, cars)
	for i := range carIDs {
		carIDs[i] = s.createResource("car", fmt.Sprintf("Car %d", i))
		s.initRange("car", carIDs[i], day, day.AddDays(1), 1)
	}
	for i := 0; i < drivers; i++ {
		id := s.createResource("driver", fmt.Sprintf("Driver %d", i))
		w := s.executeRequest("POST", fmt.Sprintf("/v1/drivers/%s/schedule", id),
			driverHttp.SetScheduleRequest{Dates: []calendar.Day{day}, Status: "available"}, s.staffToken)
		s.Require().Equal(http.StatusOK, w.Code, w.Body.String())
	}

	bodies := make([][]byte, cars)
	for i, carID := range carIDs {
		b, err := json.Marshal(bookingHttp.CreateBookingRequest{
			Kind: "car", ResourceID: carID, Start: day.String(), End: day.AddDays(1).String(), WithDriver: true,
		})
		s.Require().NoError(err)
		bodies[i] = b
	}

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Second)
	defer cancel()

	codes := make([]int, cars)
	var wg sync.WaitGroup
	for i := range bodies {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			req := httptest.NewRequest("POST", "/v1/bookings", bytes.NewReader(bodies[i])).WithContext(ctx)
			req.Header.Set("Content-Type", "application/json")
			req.Header.Set("Authorization", "Bearer "+s.aliceToken)
			w := httptest.NewRecorder()
			s.container.Router.ServeHTTP(w, req)
			codes[i] = w.Code
		}(i)
	}
	wg.Wait()
	s.Require().NoError(ctx.Err(), "reservations must not stall")

	created := 0
	for _, code := range codes {
		if code == http.StatusCreated {
			created++
			continue
		}
		s.Equal(http.StatusConflict, code)
	}
	s.Equal(drivers, created, "one booking per scheduled driver")

	w := s.executeRequest("GET", "/v1/driver-availability?date="+day.String(), nil, "")
	s.Require().Equal(http.StatusOK, w.Code)
	var resp driverHttp.AvailableResponse
	s.decode(w, &resp)
	s.Empty(resp.DriverIDs)
}

func (s *APISuite) TestDriverScheduleAndRental() {
	c1 := s.createResource("car", "SUV")
	d1 := s.createResource("driver", "Driver One")
	day := s.today.AddDays(5)
	s.initRange("car", c1, day, day.AddDays(1), 1)

	w := s.executeRequest("POST", fmt.Sprintf("/v1/drivers/%s/schedule", d1),
		driverHttp.SetScheduleRequest{Dates: []calendar.Day{day}, Status: "available"}, s.staffToken)
	s.Require().Equal(http.StatusOK, w.Code, w.Body.String())

	available := func() []string {
		w := s.executeRequest("GET", "/v1/driver-availability?date="+day.String(), nil, "")
		s.Require().Equal(http.StatusOK, w.Code, w.Body.String())
		var resp driverHttp.AvailableResponse
		s.decode(w, &resp)
		return resp.DriverIDs
	}
	s.Equal([]string{d1}, available())

	w = s.executeRequest("POST", "/v1/bookings", bookingHttp.CreateBookingRequest{
		Kind: "car", ResourceID: c1, Start: day.String(), End: day.AddDays(1).String(), WithDriver: true,
	}, s.aliceToken)
	s.Require().Equal(http.StatusCreated, w.Code, w.Body.String())
	var created bookingHttp.BookingResponse
	s.decode(w, &created)
	s.Require().NotNil(created.DriverID)
	s.Equal(d1, *created.DriverID)
	s.Empty(available())

	w = s.executeRequest("GET", fmt.Sprintf("/v1/drivers/%s/schedule?start=%s&end=%s", d1, day, day.AddDays(1)), nil, s.staffToken)
	s.Require().Equal(http.StatusOK, w.Code)
	var sched driverHttp.ScheduleResponse
	s.decode(w, &sched)
	s.Require().Len(sched.Days, 1)
	s.Equal("booked", sched.Days[0].Status)

	// Staff cannot free a booked day by hand.
	w = s.executeRequest("POST", fmt.Sprintf("/v1/drivers/%s/schedule", d1),
		driverHttp.SetScheduleRequest{Dates: []calendar.Day{day}, Status: "off"}, s.staffToken)
	s.Equal(http.StatusConflict, w.Code)

	w = s.executeRequest("POST", "/v1/bookings/"+created.ID+"/cancel", nil, s.aliceToken)
	s.Require().Equal(http.StatusOK, w.Code)
	s.Equal([]string{d1}, available())
}

func (s *APISuite) TestCalendarAggregate() {
	ids := []string{s.createResource("homestay", "A"), s.createResource("homestay", "B"), s.createResource("homestay", "C")}
	day := s.today.AddDays(2)
	for i, total := range []int{2, 0, 3} {
		s.initRange("homestay", ids[i], day, day.AddDays(1), total)
	}
	for _, id := range []string{ids[0], ids[2]} {
		w := s.executeRequest("POST", "/v1/bookings", bookingHttp.CreateBookingRequest{
			Kind: "homestay", ResourceID: id, Start: day.String(), End: day.AddDays(1).String(),
		}, s.bobToken)
		s.Require().Equal(http.StatusCreated, w.Code, w.Body.String())
	}

	w := s.executeRequest("GET", fmt.Sprintf("/v1/calendar/homestay?start=%s&end=%s", day, day.AddDays(1)), nil, "")
	s.Require().Equal(http.StatusOK, w.Code, w.Body.String())
	var cal availabilityHttp.CalendarResponse
	s.decode(w, &cal)
	s.Require().Len(cal.Days, 1)
	s.Equal(3, cal.Days[0].Available)
	s.Equal(5, cal.Days[0].Capacity)
	s.Equal("available", cal.Days[0].Tier)
}

func (s *APISuite) TestPurgeHistory() {
	h1 := s.createResource("homestay", "Villa")
	s.initRange("homestay", h1, s.today, s.today.AddDays(3), 1)

	w := s.executeRequest("DELETE", fmt.Sprintf("/v1/inventory/homestay/%s/history?before=%s", h1, s.today.AddDays(10)), nil, s.staffToken)
	s.Require().Equal(http.StatusOK, w.Code, w.Body.String())
	var resp retentionHttp.PurgeResponse
	s.decode(w, &resp)
	s.Equal(s.today, resp.Cutoff, "future cutoffs are clamped to today")
	s.Zero(resp.Removed)

	s.Equal(http.StatusForbidden, s.executeRequest("DELETE", fmt.Sprintf("/v1/inventory/homestay/%s/history", h1), nil, s.aliceToken).Code)
}

func (s *APISuite) TestBatchUpdate() {
	h1 := s.createResource("homestay", "Villa")
	d := s.today.AddDays(4)
	w := s.executeRequest("POST", fmt.Sprintf("/v1/inventory/homestay/%s/batch", h1),
		inventoryHttp.BatchUpdateRequest{Dates: []calendar.Day{d.AddDays(2), d, d.AddDays(2)}, TotalUnits: intPtr(3)}, s.staffToken)
	s.Require().Equal(http.StatusOK, w.Code, w.Body.String())
	var resp struct {
		Days []inventoryHttp.RecordResponse `json:"days"`
	}
	s.decode(w, &resp)
	s.Require().Len(resp.Days, 2)
	s.Equal(d, resp.Days[0].Date)
	s.Equal(3, resp.Days[1].TotalUnits)
}

func intPtr(v int) *int { return &v }
