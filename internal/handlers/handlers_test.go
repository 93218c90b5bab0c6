package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/mux"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"

	"clinicbook/internal/apperrors"
	"clinicbook/internal/middlewares"
	"clinicbook/internal/models"
)

type stubDB struct{}

func (stubDB) Health() map[string]string       { return map[string]string{"status": "up"} }
func (stubDB) Client() *mongo.Client           { return nil }
func (stubDB) Database() *mongo.Database       { return nil }
func (stubDB) Close(ctx context.Context) error { return nil }

type stubOTPService struct {
	registrationErr error
	resetErr        error
	phones          []string
}

func (s *stubOTPService) RequestOTP(ctx context.Context, phone string, purpose models.OTPPurpose) (*models.OTP, error) {
	return nil, nil
}

func (s *stubOTPService) VerifyOTP(ctx context.Context, phone, code string, purpose models.OTPPurpose) error {
	return nil
}

func (s *stubOTPService) SendRegistrationOTP(ctx context.Context, phone string) error {
	s.phones = append(s.phones, phone)
	return s.registrationErr
}

func (s *stubOTPService) SendPasswordResetOTP(ctx context.Context, phone string) error {
	s.phones = append(s.phones, phone)
	return s.resetErr
}

type stubAuthService struct {
	session  *models.Session
	err      error
	me       *models.User
	lastReq  models.RegisterRequest
	resetReq models.ResetPasswordRequest
}

func (s *stubAuthService) Register(ctx context.Context, req models.RegisterRequest) (*models.Session, error) {
	s.lastReq = req
	return s.session, s.err
}

func (s *stubAuthService) Login(ctx context.Context, identifier, password string) (*models.Session, error) {
	return s.session, s.err
}

func (s *stubAuthService) ResetPassword(ctx context.Context, req models.ResetPasswordRequest) error {
	s.resetReq = req
	return s.err
}

func (s *stubAuthService) Me(ctx context.Context, userID primitive.ObjectID) (*models.User, error) {
	return s.me, s.err
}

func (s *stubAuthService) Authenticate(ctx context.Context, token string) (*models.User, error) {
	return s.me, s.err
}

type stubAppointmentService struct {
	slots    []models.Slot
	appt     *models.Appointment
	list     []models.Appointment
	err      error
	booked   models.BookingRequest
	bookedBy *models.User
	date     string
}

func (s *stubAppointmentService) GetSlots(ctx context.Context, date string) ([]models.Slot, error) {
	s.date = date
	return s.slots, s.err
}

func (s *stubAppointmentService) Book(ctx context.Context, user *models.User, req models.BookingRequest) (*models.Appointment, error) {
	s.bookedBy, s.booked = user, req
	return s.appt, s.err
}

func (s *stubAppointmentService) ListMine(ctx context.Context, userID primitive.ObjectID) ([]models.Appointment, error) {
	return s.list, s.err
}

func (s *stubAppointmentService) Cancel(ctx context.Context, user *models.User, id primitive.ObjectID) (*models.Appointment, error) {
	return s.appt, s.err
}

type stubAdminService struct {
	appts      []models.AppointmentWithUser
	appt       *models.Appointment
	users      []models.User
	user       *models.User
	stats      *models.DashboardStats
	err        error
	query      [2]string
	update     models.AppointmentUpdate
	blockedArg *bool
}

func (s *stubAdminService) ListAppointments(ctx context.Context, date, status string) ([]models.AppointmentWithUser, error) {
	s.query = [2]string{date, status}
	return s.appts, s.err
}

func (s *stubAdminService) UpdateAppointment(ctx context.Context, id primitive.ObjectID, update models.AppointmentUpdate) (*models.Appointment, error) {
	s.update = update
	return s.appt, s.err
}

func (s *stubAdminService) ListUsers(ctx context.Context) ([]models.User, error) {
	return s.users, s.err
}

func (s *stubAdminService) SetUserBlocked(ctx context.Context, id primitive.ObjectID, blocked bool) (*models.User, error) {
	s.blockedArg = &blocked
	return s.user, s.err
}

func (s *stubAdminService) Stats(ctx context.Context) (*models.DashboardStats, error) {
	return s.stats, s.err
}

func jsonRequest(method, target, body string) *http.Request {
	var r *http.Request
	if body == "" {
		r = httptest.NewRequest(method, target, nil)
	} else {
		r = httptest.NewRequest(method, target, bytes.NewBufferString(body))
	}
	r.Header.Set("Content-Type", "application/json")
	return r
}

func asUser(r *http.Request, u *models.User) *http.Request {
	return r.WithContext(middlewares.WithUser(r.Context(), u))
}

func decode(t *testing.T, rr *httptest.ResponseRecorder) map[string]interface{} {
	t.Helper()
	var body map[string]interface{}
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &body))
	return body
}

func TestCommonHandlers(t *testing.T) {
	h := NewCommonHandler(stubDB{}, "Eswari Physiotherapy")

	rr := httptest.NewRecorder()
	h.HelloWorldHandler(rr, httptest.NewRequest(http.MethodGet, "/", nil))
	assert.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, "Eswari Physiotherapy API", decode(t, rr)["message"])

	rr = httptest.NewRecorder()
	h.HealthHandler(rr, httptest.NewRequest(http.MethodGet, "/api/health", nil))
	body := decode(t, rr)
	assert.Equal(t, "OK", body["status"])
	assert.Equal(t, map[string]interface{}{"status": "up"}, body["database"])
}

func TestSendOTPHandler(t *testing.T) {
	otp := &stubOTPService{}
	h := NewAuthHandler(&stubAuthService{}, otp)

	rr := httptest.NewRecorder()
	h.SendOTP(rr, jsonRequest(http.MethodPost, "/api/auth/send-otp", `{"phone":"98765 43210"}`))
	assert.Equal(t, http.StatusOK, rr.Code)
	body := decode(t, rr)
	assert.Equal(t, "OTP sent successfully", body["message"])
	assert.Equal(t, "+919876543210", body["phone"])
	assert.Equal(t, []string{"98765 43210"}, otp.phones)

	otp.registrationErr = apperrors.RateLimit("Maximum OTP limit reached for today (5 OTPs)")
	rr = httptest.NewRecorder()
	h.SendOTP(rr, jsonRequest(http.MethodPost, "/api/auth/send-otp", `{"phone":"9876543210"}`))
	assert.Equal(t, http.StatusTooManyRequests, rr.Code)
	assert.Equal(t, "Maximum OTP limit reached for today (5 OTPs)", decode(t, rr)["message"])

	rr = httptest.NewRecorder()
	h.SendOTP(rr, jsonRequest(http.MethodPost, "/api/auth/send-otp", ""))
	assert.Equal(t, http.StatusBadRequest, rr.Code)
}

func TestVerifyOTPHandler(t *testing.T) {
	auth := &stubAuthService{session: &models.Session{Token: "tok", User: models.PublicUser{ID: "abc", Name: "Asha"}}}
	h := NewAuthHandler(auth, &stubOTPService{})

	rr := httptest.NewRecorder()
	h.VerifyOTP(rr, jsonRequest(http.MethodPost, "/api/auth/verify-otp",
		`{"phone":"9876543210","otp":"123456","name":"Asha","password":"longenough"}`))
	assert.Equal(t, http.StatusCreated, rr.Code)
	assert.Equal(t, "tok", decode(t, rr)["token"])
	assert.Equal(t, "123456", auth.lastReq.OTP)

	auth.err = apperrors.Validation("Invalid or expired OTP")
	rr = httptest.NewRecorder()
	h.VerifyOTP(rr, jsonRequest(http.MethodPost, "/api/auth/verify-otp", `{"phone":"9876543210"}`))
	assert.Equal(t, http.StatusBadRequest, rr.Code)
	assert.Equal(t, "Invalid or expired OTP", decode(t, rr)["message"])
}

func TestLoginHandler(t *testing.T) {
	auth := &stubAuthService{err: apperrors.Forbidden("Your account has been blocked. Contact admin: +919000000000")}
	h := NewAuthHandler(auth, &stubOTPService{})

	rr := httptest.NewRecorder()
	h.Login(rr, jsonRequest(http.MethodPost, "/api/auth/login", `{"identifier":"9876543210","password":"x"}`))
	assert.Equal(t, http.StatusForbidden, rr.Code)
	assert.True(t, strings.HasSuffix(decode(t, rr)["message"].(string), "+919000000000"))

	auth.err = nil
	auth.session = &models.Session{Token: "tok"}
	rr = httptest.NewRecorder()
	h.Login(rr, jsonRequest(http.MethodPost, "/api/auth/login", `{"identifier":"9876543210","password":"x"}`))
	assert.Equal(t, http.StatusOK, rr.Code)
}

func TestPasswordResetHandlers(t *testing.T) {
	otp := &stubOTPService{resetErr: apperrors.NotFound("Phone number not registered")}
	auth := &stubAuthService{}
	h := NewAuthHandler(auth, otp)

	rr := httptest.NewRecorder()
	h.ForgotPassword(rr, jsonRequest(http.MethodPost, "/api/auth/forgot-password", `{"phone":"9876543210"}`))
	assert.Equal(t, http.StatusNotFound, rr.Code)

	rr = httptest.NewRecorder()
	h.ResetPassword(rr, jsonRequest(http.MethodPost, "/api/auth/reset-password",
		`{"phone":"9876543210","otp":"123456","new_password":"brandnewpw"}`))
	assert.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, "brandnewpw", auth.resetReq.NewPassword)
}

func TestMeHandler(t *testing.T) {
	u := &models.User{ID: primitive.NewObjectID(), Name: "Asha", Phone: "+919876543210"}
	h := NewAuthHandler(&stubAuthService{me: u}, &stubOTPService{})

	rr := httptest.NewRecorder()
	h.Me(rr, asUser(httptest.NewRequest(http.MethodGet, "/api/auth/me", nil), u))
	assert.Equal(t, http.StatusOK, rr.Code)
	user := decode(t, rr)["user"].(map[string]interface{})
	assert.Equal(t, "Asha", user["name"])
	assert.Nil(t, user["email"])
	assert.NotContains(t, rr.Body.String(), "password")

	rr = httptest.NewRecorder()
	h.Me(rr, httptest.NewRequest(http.MethodGet, "/api/auth/me", nil))
	assert.Equal(t, http.StatusUnauthorized, rr.Code)
}

func TestGetSlotsHandler(t *testing.T) {
	svc := &stubAppointmentService{slots: []models.Slot{{Time: "10:00 AM - 10:50 AM", IsBooked: true}}}
	r := mux.NewRouter()
	r.HandleFunc("/api/appointments/slots/{date}", NewAppointmentHandler(svc).GetSlots)

	rr := httptest.NewRecorder()
	r.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/api/appointments/slots/2024-12-25", nil))
	assert.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, "2024-12-25", svc.date)
	slots := decode(t, rr)["slots"].([]interface{})
	require.Len(t, slots, 1)
	assert.Equal(t, true, slots[0].(map[string]interface{})["is_booked"])
}

func TestBookHandler(t *testing.T) {
	u := &models.User{ID: primitive.NewObjectID(), Name: "Asha"}
	svc := &stubAppointmentService{appt: &models.Appointment{
		ID:       primitive.NewObjectID(),
		Date:     time.Date(2024, 12, 25, 0, 0, 0, 0, time.UTC),
		TimeSlot: "10:00 AM - 10:50 AM",
		Status:   models.StatusPending,
	}}
	h := NewAppointmentHandler(svc)

	rr := httptest.NewRecorder()
	h.Book(rr, asUser(jsonRequest(http.MethodPost, "/api/appointments/book",
		`{"date":"2024-12-25","time_slot":"10:00 AM - 10:50 AM","reason":"knee"}`), u))
	assert.Equal(t, http.StatusCreated, rr.Code)
	assert.Equal(t, "Appointment booked successfully", decode(t, rr)["message"])
	assert.Equal(t, u, svc.bookedBy)
	assert.Equal(t, "knee", svc.booked.Reason)
	assert.NotContains(t, rr.Body.String(), `"active"`)

	svc.err = apperrors.Conflict("This slot is already booked")
	rr = httptest.NewRecorder()
	h.Book(rr, asUser(jsonRequest(http.MethodPost, "/api/appointments/book",
		`{"date":"2024-12-25","time_slot":"10:00 AM - 10:50 AM"}`), u))
	assert.Equal(t, http.StatusConflict, rr.Code)
	assert.Equal(t, "This slot is already booked", decode(t, rr)["message"])
}

func TestCancelHandler(t *testing.T) {
	u := &models.User{ID: primitive.NewObjectID()}
	svc := &stubAppointmentService{appt: &models.Appointment{Status: models.StatusCancelled}}
	r := mux.NewRouter()
	r.HandleFunc("/api/appointments/{id}", NewAppointmentHandler(svc).Cancel)

	rr := httptest.NewRecorder()
	r.ServeHTTP(rr, asUser(httptest.NewRequest(http.MethodDelete, "/api/appointments/not-an-id", nil), u))
	assert.Equal(t, http.StatusBadRequest, rr.Code)

	rr = httptest.NewRecorder()
	r.ServeHTTP(rr, asUser(httptest.NewRequest(http.MethodDelete, "/api/appointments/"+primitive.NewObjectID().Hex(), nil), u))
	assert.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, "Appointment cancelled successfully", decode(t, rr)["message"])

	svc.err = apperrors.Internal(assert.AnError)
	rr = httptest.NewRecorder()
	r.ServeHTTP(rr, asUser(httptest.NewRequest(http.MethodDelete, "/api/appointments/"+primitive.NewObjectID().Hex(), nil), u))
	assert.Equal(t, http.StatusInternalServerError, rr.Code)
	assert.NotContains(t, rr.Body.String(), assert.AnError.Error())
}

func TestAdminHandlers(t *testing.T) {
	svc := &stubAdminService{
		appts: []models.AppointmentWithUser{{User: &models.AppointmentOwner{Name: "Asha"}}},
		appt:  &models.Appointment{Status: models.StatusConfirmed},
		users: []models.User{{Name: "Asha", Password: "hash"}},
		user:  &models.User{Name: "Asha", IsBlocked: true},
		stats: &models.DashboardStats{TotalUsers: 3},
	}
	h := NewAdminHandler(svc)
	r := mux.NewRouter()
	r.HandleFunc("/api/admin/appointments", h.ListAppointments)
	r.HandleFunc("/api/admin/appointments/{id}", h.UpdateAppointment)
	r.HandleFunc("/api/admin/users", h.ListUsers)
	r.HandleFunc("/api/admin/users/{id}/block", h.SetUserBlocked)
	r.HandleFunc("/api/admin/stats", h.Stats)
	id := primitive.NewObjectID().Hex()

	rr := httptest.NewRecorder()
	r.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/api/admin/appointments?date=2024-12-25&status=pending", nil))
	assert.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, [2]string{"2024-12-25", "pending"}, svc.query)

	rr = httptest.NewRecorder()
	r.ServeHTTP(rr, jsonRequest(http.MethodPatch, "/api/admin/appointments/"+id, `{"status":"confirmed","notes":"bring reports"}`))
	assert.Equal(t, http.StatusOK, rr.Code)
	require.NotNil(t, svc.update.Status)
	assert.Equal(t, models.StatusConfirmed, *svc.update.Status)
	assert.Equal(t, "bring reports", *svc.update.Notes)

	rr = httptest.NewRecorder()
	r.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/api/admin/users", nil))
	assert.Equal(t, http.StatusOK, rr.Code)
	assert.NotContains(t, rr.Body.String(), "hash")

	rr = httptest.NewRecorder()
	r.ServeHTTP(rr, jsonRequest(http.MethodPatch, "/api/admin/users/"+id+"/block", `{}`))
	assert.Equal(t, http.StatusBadRequest, rr.Code)
	assert.Nil(t, svc.blockedArg)

	rr = httptest.NewRecorder()
	r.ServeHTTP(rr, jsonRequest(http.MethodPatch, "/api/admin/users/"+id+"/block", `{"is_blocked":true}`))
	assert.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, "User blocked successfully", decode(t, rr)["message"])
	require.NotNil(t, svc.blockedArg)
	assert.True(t, *svc.blockedArg)

	rr = httptest.NewRecorder()
	r.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/api/admin/stats", nil))
	assert.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, float64(3), decode(t, rr)["total_users"])
}
