package services

import (
	"context"
	"sync"
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"

	"clinicbook/internal/clinic"
	"clinicbook/internal/models"
	"clinicbook/internal/notify"
)

var ist = time.FixedZone("IST", 5*3600+30*60)

func dupKeyError() error {
	return mongo.WriteException{WriteErrors: mongo.WriteErrors{{Code: 11000, Message: "E11000 duplicate key error"}}}
}

type testClock struct {
	mu  sync.Mutex
	now time.Time
}

func newTestClock(t time.Time) *testClock { return &testClock{now: t} }

func (c *testClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *testClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

func newTestCalendar(clock *testClock) *clinic.Calendar {
	return clinic.NewCalendar(ist, time.Sunday, clock.Now)
}

// fakeUserRepo

type fakeUserRepo struct {
	mu    sync.Mutex
	users map[primitive.ObjectID]*models.User
}

func newFakeUserRepo() *fakeUserRepo {
	return &fakeUserRepo{users: make(map[primitive.ObjectID]*models.User)}
}

func (r *fakeUserRepo) Create(ctx context.Context, user *models.User) (*models.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, u := range r.users {
		if u.Phone == user.Phone || (user.Email != "" && u.Email == user.Email) {
			return nil, dupKeyError()
		}
	}
	if user.ID.IsZero() {
		user.ID = primitive.NewObjectID()
	}
	user.CreatedAt = time.Now()
	cp := *user
	r.users[user.ID] = &cp
	return user, nil
}

func (r *fakeUserRepo) find(match func(*models.User) bool) (*models.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, u := range r.users {
		if match(u) {
			cp := *u
			return &cp, nil
		}
	}
	return nil, mongo.ErrNoDocuments
}

func (r *fakeUserRepo) FindByPhone(ctx context.Context, phone string) (*models.User, error) {
	return r.find(func(u *models.User) bool { return u.Phone == phone })
}

func (r *fakeUserRepo) FindByEmail(ctx context.Context, email string) (*models.User, error) {
	return r.find(func(u *models.User) bool { return u.Email != "" && u.Email == email })
}

func (r *fakeUserRepo) FindByID(ctx context.Context, id primitive.ObjectID) (*models.User, error) {
	return r.find(func(u *models.User) bool { return u.ID == id })
}

func (r *fakeUserRepo) FindByIDs(ctx context.Context, ids []primitive.ObjectID) ([]models.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := []models.User{}
	for _, id := range ids {
		if u, ok := r.users[id]; ok {
			out = append(out, *u)
		}
	}
	return out, nil
}

func (r *fakeUserRepo) UpdatePassword(ctx context.Context, id primitive.ObjectID, hash string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	u, ok := r.users[id]
	if !ok {
		return mongo.ErrNoDocuments
	}
	u.Password = hash
	return nil
}

func (r *fakeUserRepo) SetBlocked(ctx context.Context, id primitive.ObjectID, blocked bool) (*models.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	u, ok := r.users[id]
	if !ok {
		return nil, mongo.ErrNoDocuments
	}
	u.IsBlocked = blocked
	cp := *u
	return &cp, nil
}

func (r *fakeUserRepo) ListPatients(ctx context.Context) ([]models.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := []models.User{}
	for _, u := range r.users {
		if !u.IsAdmin {
			cp := *u
			cp.Password = ""
			out = append(out, cp)
		}
	}
	return out, nil
}

func (r *fakeUserRepo) CountPatients(ctx context.Context) (int64, error) {
	users, _ := r.ListPatients(ctx)
	return int64(len(users)), nil
}

// fakeOTPRepo

type fakeOTPRepo struct {
	mu       sync.Mutex
	otps     []models.OTP
	requests []models.OTPRequest
	// createErr, when set, fails every Create.
	createErr error
}

func newFakeOTPRepo() *fakeOTPRepo { return &fakeOTPRepo{} }

func (r *fakeOTPRepo) Create(ctx context.Context, otp *models.OTP) (*models.OTP, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.createErr != nil {
		return nil, r.createErr
	}
	otp.ID = primitive.NewObjectID()
	r.otps = append(r.otps, *otp)
	return otp, nil
}

func (r *fakeOTPRepo) FindLatestValid(ctx context.Context, phone, code string, purpose models.OTPPurpose, now time.Time) (*models.OTP, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var best *models.OTP
	for i := range r.otps {
		o := &r.otps[i]
		if o.Phone != phone || o.Code != code || o.Purpose != purpose || !o.ExpiresAt.After(now) {
			continue
		}
		if best == nil || o.CreatedAt.After(best.CreatedAt) {
			best = o
		}
	}
	if best == nil {
		return nil, mongo.ErrNoDocuments
	}
	cp := *best
	return &cp, nil
}

func (r *fakeOTPRepo) DeleteAll(ctx context.Context, phone string, purpose models.OTPPurpose) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	kept := r.otps[:0]
	var deleted int64
	for _, o := range r.otps {
		if o.Phone == phone && o.Purpose == purpose {
			deleted++
			continue
		}
		kept = append(kept, o)
	}
	r.otps = kept
	return deleted, nil
}

func (r *fakeOTPRepo) RecordRequest(ctx context.Context, req *models.OTPRequest) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.requests = append(r.requests, *req)
	return nil
}

func (r *fakeOTPRepo) CountRequestsSince(ctx context.Context, phone string, since time.Time) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var n int64
	for _, req := range r.requests {
		if req.Phone == phone && !req.CreatedAt.Before(since) {
			n++
		}
	}
	return n, nil
}

func (r *fakeOTPRepo) ledgerRows(phone string) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	n := 0
	for _, req := range r.requests {
		if req.Phone == phone {
			n++
		}
	}
	return n
}

func (r *fakeOTPRepo) setCreateErr(err error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.createErr = err
}

func (r *fakeOTPRepo) outstanding(phone string, purpose models.OTPPurpose) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	n := 0
	for _, o := range r.otps {
		if o.Phone == phone && o.Purpose == purpose {
			n++
		}
	}
	return n
}

// fakeAppointmentRepo

type fakeAppointmentRepo struct {
	mu    sync.Mutex
	appts map[primitive.ObjectID]*models.Appointment
	// onCount runs after the pre-check count, before Create takes the lock.
	onCount func()
}

func newFakeAppointmentRepo() *fakeAppointmentRepo {
	return &fakeAppointmentRepo{appts: make(map[primitive.ObjectID]*models.Appointment)}
}

func (r *fakeAppointmentRepo) Create(ctx context.Context, appt *models.Appointment) (*models.Appointment, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	appt.Active = appt.Status.IsActive()
	if appt.Active {
		for _, a := range r.appts {
			if a.Active && a.Date.Equal(appt.Date) && a.TimeSlot == appt.TimeSlot {
				return nil, dupKeyError()
			}
		}
	}
	appt.ID = primitive.NewObjectID()
	appt.CreatedAt = time.Now()
	cp := *appt
	r.appts[appt.ID] = &cp
	return appt, nil
}

func (r *fakeAppointmentRepo) FindByID(ctx context.Context, id primitive.ObjectID) (*models.Appointment, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	a, ok := r.appts[id]
	if !ok {
		return nil, mongo.ErrNoDocuments
	}
	cp := *a
	return &cp, nil
}

func matches(a *models.Appointment, f models.AppointmentFilter) bool {
	if f.UserID != nil && a.UserID != *f.UserID {
		return false
	}
	if f.Date != nil && !a.Date.Equal(*f.Date) {
		return false
	}
	if f.Date == nil && f.From != nil && a.Date.Before(*f.From) {
		return false
	}
	if f.TimeSlot != "" && a.TimeSlot != f.TimeSlot {
		return false
	}
	if f.Status != "" && a.Status != f.Status {
		return false
	}
	if f.ActiveOnly && !a.Active {
		return false
	}
	return true
}

func (r *fakeAppointmentRepo) Find(ctx context.Context, f models.AppointmentFilter) ([]models.Appointment, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := []models.Appointment{}
	for _, a := range r.appts {
		if matches(a, f) {
			out = append(out, *a)
		}
	}
	return out, nil
}

func (r *fakeAppointmentRepo) Count(ctx context.Context, f models.AppointmentFilter) (int64, error) {
	appts, _ := r.Find(ctx, f)
	if r.onCount != nil {
		r.onCount()
	}
	return int64(len(appts)), nil
}

func (r *fakeAppointmentRepo) TransitionStatus(ctx context.Context, id primitive.ObjectID, from, to models.AppointmentStatus, notes *string) (*models.Appointment, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	a, ok := r.appts[id]
	if !ok || a.Status != from {
		return nil, mongo.ErrNoDocuments
	}
	a.Status = to
	a.Active = to.IsActive()
	if notes != nil {
		a.Notes = *notes
	}
	cp := *a
	return &cp, nil
}

func (r *fakeAppointmentRepo) UpdateNotes(ctx context.Context, id primitive.ObjectID, notes string) (*models.Appointment, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	a, ok := r.appts[id]
	if !ok {
		return nil, mongo.ErrNoDocuments
	}
	a.Notes = notes
	cp := *a
	return &cp, nil
}

func (r *fakeAppointmentRepo) seed(a models.Appointment) *models.Appointment {
	r.mu.Lock()
	defer r.mu.Unlock()
	a.ID = primitive.NewObjectID()
	a.Active = a.Status.IsActive()
	cp := a
	r.appts[a.ID] = &cp
	return &a
}

// fakeNotifier

type notification struct {
	kind  string
	phone string
	code  string
	slot  string
}

type fakeNotifier struct {
	mu   sync.Mutex
	sent []notification
	fail bool
}

func (n *fakeNotifier) record(x notification) notify.DeliveryResult {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.sent = append(n.sent, x)
	if n.fail {
		return notify.DeliveryResult{Provider: "fake", Err: context.DeadlineExceeded}
	}
	return notify.DeliveryResult{Delivered: true, Provider: "fake"}
}

func (n *fakeNotifier) SendOTP(ctx context.Context, phone, code string) notify.DeliveryResult {
	return n.record(notification{kind: "otp", phone: phone, code: code})
}

func (n *fakeNotifier) SendBookingConfirmation(ctx context.Context, phone string, date time.Time, slot string) notify.DeliveryResult {
	return n.record(notification{kind: "booking", phone: phone, slot: slot})
}

func (n *fakeNotifier) SendCancellationNotice(ctx context.Context, phone string) notify.DeliveryResult {
	return n.record(notification{kind: "cancellation", phone: phone})
}

func (n *fakeNotifier) byKind(kind string) []notification {
	n.mu.Lock()
	defer n.mu.Unlock()
	var out []notification
	for _, x := range n.sent {
		if x.kind == kind {
			out = append(out, x)
		}
	}
	return out
}

// lastCode returns the most recent OTP sent to phone.
func (n *fakeNotifier) lastCode(phone string) string {
	otps := n.byKind("otp")
	for i := len(otps) - 1; i >= 0; i-- {
		if otps[i].phone == phone {
			return otps[i].code
		}
	}
	return ""
}
