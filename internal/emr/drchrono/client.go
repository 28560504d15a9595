package drchrono

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"iter"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/oauth2"

	"github.com/jwalitptl/checkin-kiosk/internal/emr"
	"github.com/jwalitptl/checkin-kiosk/internal/model"
	apperrors "github.com/jwalitptl/checkin-kiosk/pkg/errors"
	"github.com/jwalitptl/checkin-kiosk/pkg/metrics"
)

const (
	// TimestampLayout is the upstream's timestamp format, e.g. 2014-02-24T15:32:19.
	TimestampLayout = "2006-01-02T15:04:05"
	DateLayout      = "2006-01-02"

	maxErrorBody = 4 << 10
)

// Config holds configuration for the drchrono client
type Config struct {
	BaseURL string // e.g. "https://drchrono.com"
	Timeout time.Duration
	// Location is the zone upstream timestamps and "today" are expressed in.
	Location *time.Location
}

// Client talks to the drchrono REST API. It is safe for concurrent use; a
// RecordService bound to one doctor's credential is obtained with Connect.
type Client struct {
	baseURL    *url.URL
	httpClient *http.Client
	location   *time.Location
	metrics    *metrics.Metrics
	tracer     trace.Tracer
}

// New creates a new drchrono client
func New(cfg Config, m *metrics.Metrics) (*Client, error) {
	if cfg.BaseURL == "" {
		return nil, fmt.Errorf("drchrono: BaseURL is required")
	}
	base, err := url.Parse(strings.TrimSuffix(cfg.BaseURL, "/"))
	if err != nil {
		return nil, fmt.Errorf("drchrono: invalid BaseURL: %w", err)
	}

	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = 30 * time.Second
	}

	loc := cfg.Location
	if loc == nil {
		loc = time.Local
	}

	return &Client{
		baseURL: base,
		httpClient: &http.Client{
			Timeout: timeout,
		},
		location: loc,
		metrics:  m,
		tracer:   otel.Tracer("github.com/jwalitptl/checkin-kiosk/internal/emr/drchrono"),
	}, nil
}

// Connect binds cred to a RecordService.
func (c *Client) Connect(cred emr.Credential) emr.RecordService {
	return &session{client: c, cred: cred}
}

func (c *Client) endpoint(path string, params url.Values) string {
	u := *c.baseURL
	u.Path = u.Path + path
	if len(params) > 0 {
		u.RawQuery = params.Encode()
	}
	return u.String()
}

// sameOrigin keeps paginated requests on the configured host so the bearer
// token never leaves it.
func (c *Client) sameOrigin(raw string) (string, error) {
	next, err := c.baseURL.Parse(raw)
	if err != nil {
		return "", fmt.Errorf("drchrono: invalid next link %q: %w", raw, err)
	}
	if next.Scheme != c.baseURL.Scheme || next.Host != c.baseURL.Host {
		return "", fmt.Errorf("drchrono: next link %q leaves %s", raw, c.baseURL.Host)
	}
	return next.String(), nil
}

type session struct {
	client *Client
	cred   emr.Credential
}

type page[T any] struct {
	Next    *string `json:"next"`
	Results []T     `json:"results"`
}

// flexID accepts identifiers encoded either as JSON numbers or strings.
type flexID int64

func (f *flexID) UnmarshalJSON(b []byte) error {
	s := strings.Trim(string(b), `"`)
	v, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return fmt.Errorf("invalid id %s: %w", b, err)
	}
	*f = flexID(v)
	return nil
}

type appointmentResource struct {
	ID            flexID  `json:"id"`
	Doctor        int64   `json:"doctor"`
	Patient       *int64  `json:"patient"`
	ScheduledTime string  `json:"scheduled_time"`
	Status        *string `json:"status"`
	UpdatedAt     string  `json:"updated_at"`
	DeletedFlag   bool    `json:"deleted_flag"`
}

func (r appointmentResource) toModel(loc *time.Location) (model.Appointment, error) {
	scheduled, err := time.ParseInLocation(TimestampLayout, r.ScheduledTime, loc)
	if err != nil {
		return model.Appointment{}, fmt.Errorf("drchrono: appointment %d: scheduled_time: %w", r.ID, err)
	}
	updated, err := time.ParseInLocation(TimestampLayout, r.UpdatedAt, loc)
	if err != nil {
		return model.Appointment{}, fmt.Errorf("drchrono: appointment %d: updated_at: %w", r.ID, err)
	}

	var status model.AppointmentStatus
	if r.Status != nil {
		status = model.AppointmentStatus(*r.Status)
	}

	return model.Appointment{
		ID:            int64(r.ID),
		Doctor:        r.Doctor,
		Patient:       r.Patient,
		ScheduledTime: scheduled,
		Status:        status,
		UpdatedAt:     updated,
		Deleted:       r.DeletedFlag,
	}, nil
}

// CurrentUser retrieves the account behind the credential
// GET /api/users/current
func (s *session) CurrentUser(ctx context.Context) (*model.User, error) {
	var user model.User
	if err := s.do(ctx, http.MethodGet, s.client.endpoint("/api/users/current", nil), nil, &user); err != nil {
		return nil, err
	}
	return &user, nil
}

// ListAppointments lists appointments of a doctor on one day
// GET /api/appointments?doctor={id}&date={yyyy-mm-dd}[&patient={id}]
func (s *session) ListAppointments(ctx context.Context, filter model.AppointmentFilter) iter.Seq2[model.Appointment, error] {
	params := url.Values{}
	params.Set("doctor", strconv.FormatInt(filter.Doctor, 10))
	params.Set("date", filter.Date.In(s.client.location).Format(DateLayout))
	if filter.Patient != 0 {
		params.Set("patient", strconv.FormatInt(filter.Patient, 10))
	}

	loc := s.client.location
	return paginate(ctx, s, s.client.endpoint("/api/appointments", params), func(r appointmentResource) (model.Appointment, error) {
		return r.toModel(loc)
	})
}

// GetAppointment retrieves an appointment by ID
// GET /api/appointments/{id}
func (s *session) GetAppointment(ctx context.Context, id int64) (*model.Appointment, error) {
	var r appointmentResource
	if err := s.do(ctx, http.MethodGet, s.client.endpoint(fmt.Sprintf("/api/appointments/%d", id), nil), nil, &r); err != nil {
		return nil, err
	}
	appt, err := r.toModel(s.client.location)
	if err != nil {
		return nil, err
	}
	return &appt, nil
}

// PatchAppointmentStatus changes only the status of an appointment
// PATCH /api/appointments/{id}
func (s *session) PatchAppointmentStatus(ctx context.Context, id int64, status model.AppointmentStatus) error {
	body := map[string]string{"status": string(status)}
	return s.do(ctx, http.MethodPatch, s.client.endpoint(fmt.Sprintf("/api/appointments/%d", id), nil), body, nil)
}

// ListPatients searches patients by name
// GET /api/patients?first_name={}&last_name={}
func (s *session) ListPatients(ctx context.Context, filter model.PatientFilter) iter.Seq2[model.Patient, error] {
	params := url.Values{}
	params.Set("first_name", filter.FirstName)
	params.Set("last_name", filter.LastName)

	return paginate(ctx, s, s.client.endpoint("/api/patients", params), func(p model.Patient) (model.Patient, error) {
		return p, nil
	})
}

// GetPatient retrieves a patient by ID
// GET /api/patients/{id}
func (s *session) GetPatient(ctx context.Context, id int64) (*model.Patient, error) {
	var p model.Patient
	if err := s.do(ctx, http.MethodGet, s.client.endpoint(fmt.Sprintf("/api/patients/%d", id), nil), nil, &p); err != nil {
		return nil, err
	}
	return &p, nil
}

// ReplacePatient overwrites a patient; the upstream has no partial update for
// patients.
// PUT /api/patients/{id}
func (s *session) ReplacePatient(ctx context.Context, id int64, patient *model.Patient) error {
	return s.do(ctx, http.MethodPut, s.client.endpoint(fmt.Sprintf("/api/patients/%d", id), nil), patient, nil)
}

func paginate[T, M any](ctx context.Context, s *session, first string, convert func(T) (M, error)) iter.Seq2[M, error] {
	return func(yield func(M, error) bool) {
		var zero M
		next := first
		for next != "" {
			var p page[T]
			if err := s.do(ctx, http.MethodGet, next, nil, &p); err != nil {
				yield(zero, err)
				return
			}

			for _, r := range p.Results {
				m, err := convert(r)
				if err != nil {
					yield(zero, err)
					return
				}
				if !yield(m, nil) {
					return
				}
			}

			next = ""
			if p.Next != nil && *p.Next != "" {
				link, err := s.client.sameOrigin(*p.Next)
				if err != nil {
					yield(zero, err)
					return
				}
				next = link
			}
		}
	}
}

func (s *session) do(ctx context.Context, method, endpoint string, body, out interface{}) (err error) {
	if s.cred == nil || s.cred.Invalid() {
		return fmt.Errorf("drchrono: %s %s: %w", method, endpoint, apperrors.ErrUnauthenticated)
	}

	ctx, span := s.client.tracer.Start(ctx, "drchrono "+method, trace.WithSpanKind(trace.SpanKindClient))
	span.SetAttributes(attribute.String("http.method", method), attribute.String("http.url", endpoint))
	defer func() {
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		}
		span.End()
	}()

	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("drchrono: failed to marshal request: %w", err)
		}
		reader = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, endpoint, reader)
	if err != nil {
		return fmt.Errorf("drchrono: failed to create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	if err := s.cred.Apply(req.Header); err != nil {
		if !credentialRejected(err) {
			return &apperrors.UpstreamError{Method: method, URL: endpoint, Err: fmt.Errorf("apply credential: %w", err)}
		}
		s.cred.Invalidate()
		return fmt.Errorf("drchrono: apply credential: %v: %w", err, apperrors.ErrUnauthenticated)
	}

	start := time.Now()
	resp, err := s.client.httpClient.Do(req)
	if err != nil {
		s.client.metrics.Upstream(method, "error", time.Since(start).Seconds())
		return &apperrors.UpstreamError{Method: method, URL: endpoint, Err: err}
	}
	defer resp.Body.Close()

	s.client.metrics.Upstream(method, strconv.Itoa(resp.StatusCode), time.Since(start).Seconds())
	span.SetAttributes(attribute.Int("http.status_code", resp.StatusCode))

	if resp.StatusCode == http.StatusUnauthorized {
		s.cred.Invalidate()
		return fmt.Errorf("drchrono: %s %s: %w", method, endpoint, apperrors.ErrUnauthenticated)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		respBody, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		return &apperrors.UpstreamError{
			Method: method,
			URL:    endpoint,
			Status: resp.StatusCode,
			Body:   string(respBody),
		}
	}

	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("drchrono: failed to decode response: %w", err)
	}
	return nil
}

// credentialRejected reports whether a failed refresh means the stored grant
// is gone. Token endpoint outages are not rejections.
func credentialRejected(err error) bool {
	if errors.Is(err, emr.ErrCredentialRejected) {
		return true
	}
	var re *oauth2.RetrieveError
	if errors.As(err, &re) && re.Response != nil {
		return re.Response.StatusCode >= 400 && re.Response.StatusCode < 500
	}
	return false
}
