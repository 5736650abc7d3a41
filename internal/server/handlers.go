package server

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/vvka-141/polingest/internal/domain"
	"github.com/vvka-141/polingest/internal/rows"
	"github.com/vvka-141/polingest/internal/worker"
	"github.com/vvka-141/polingest/pkg/polingest"
)

const uploadField = "file"

type errorBody struct {
	Error   string `json:"error,omitempty"`
	Message string `json:"message,omitempty"`
	Details string `json:"details,omitempty"`
}

type uploadBody struct {
	Message string         `json:"message"`
	Data    worker.Message `json:"data"`
}

type addressBody struct {
	Street string `json:"street,omitempty"`
	City   string `json:"city,omitempty"`
	State  string `json:"state,omitempty"`
	Zip    string `json:"zip,omitempty"`
}

type userBody struct {
	ID        *uuid.UUID   `json:"id,omitempty"`
	FirstName string       `json:"firstName"`
	Email     string       `json:"email"`
	Phone     string       `json:"phone,omitempty"`
	Address   *addressBody `json:"address,omitempty"`
	DOB       string       `json:"dob,omitempty"`
	State     string       `json:"state,omitempty"`
	ZipCode   string       `json:"zipCode,omitempty"`
}

func newUserBody(u domain.User) userBody {
	b := userBody{FirstName: u.FirstName, Email: u.Email, Phone: u.Phone, State: u.State, ZipCode: u.ZipCode}
	if u.Address != (domain.Address{}) {
		b.Address = &addressBody{Street: u.Address.Street, City: u.Address.City, State: u.Address.State, Zip: u.Address.Zip}
	}
	if u.DOB != nil {
		b.DOB = u.DOB.Format(time.DateOnly)
	}
	return b
}

type policyBody struct {
	Success       bool                `json:"success"`
	User          userBody            `json:"user"`
	TotalPolicies int                 `json:"totalPolicies"`
	Policies      []domain.PolicyView `json:"policies"`
}

type noPoliciesBody struct {
	Message string   `json:"message"`
	User    userBody `json:"user"`
}

type userPoliciesBody struct {
	UserID           uuid.UUID           `json:"userId"`
	User             userBody            `json:"user"`
	TotalPolicies    int                 `json:"totalPolicies"`
	UniqueCategories int                 `json:"uniqueCategories"`
	UniqueCompanies  int                 `json:"uniqueCompanies"`
	Policies         []domain.PolicyView `json:"policies"`
}

type aggregatedBody struct {
	Success    bool               `json:"success"`
	TotalUsers int                `json:"totalUsers"`
	Data       []userPoliciesBody `json:"data"`
}

type healthBody struct {
	Status    string    `json:"status"`
	Timestamp time.Time `json:"timestamp"`
	Uptime    string    `json:"uptime"`
	Store     string    `json:"store"`
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

func (s *Server) maxUploadBytes() int64 {
	return int64(s.settings.MaxUploadMB) << 20
}

// handleUpload stores the multipart "file" part, ingests it and replies with
// the run's outcome. The stored file is removed only when the run succeeds.
func (s *Server) handleUpload(w http.ResponseWriter, r *http.Request) {
	tooLarge := func() {
		writeJSON(w, http.StatusRequestEntityTooLarge, errorBody{
			Error: fmt.Sprintf("File too large; the limit is %d MB", s.settings.MaxUploadMB),
		})
	}
	if r.ContentLength > s.maxUploadBytes() {
		tooLarge()
		return
	}
	r.Body = http.MaxBytesReader(w, r.Body, s.maxUploadBytes())

	file, header, err := r.FormFile(uploadField)
	if err != nil {
		var maxErr *http.MaxBytesError
		switch {
		case errors.As(err, &maxErr):
			tooLarge()
		case errors.Is(err, http.ErrMissingFile):
			writeJSON(w, http.StatusBadRequest, errorBody{Error: "No file uploaded"})
		default:
			writeJSON(w, http.StatusBadRequest, errorBody{Error: "Invalid upload", Details: err.Error()})
		}
		return
	}
	defer file.Close()

	if !rows.SupportedExtension(header.Filename) {
		writeJSON(w, http.StatusBadRequest, errorBody{Error: "Only .csv and .xlsx files are accepted"})
		return
	}

	path, err := s.save(file, header.Filename)
	if err != nil {
		s.logger.Error("Save upload %s: %v", header.Filename, err)
		writeJSON(w, http.StatusInternalServerError, errorBody{Error: "Could not store upload"})
		return
	}

	res, err := s.ingester.Do(r.Context(), path)
	if err != nil {
		// The caller went away or the pool is closing; the file stays for inspection.
		writeJSON(w, http.StatusServiceUnavailable, errorBody{Error: "Error processing file", Details: err.Error()})
		return
	}

	if res.Err != nil {
		status := http.StatusInternalServerError
		if errors.Is(res.Err, polingest.ErrParse) || errors.Is(res.Err, polingest.ErrUnsupportedFormat) {
			status = http.StatusBadRequest
		}
		writeJSON(w, status, errorBody{Error: "Error processing file", Details: res.Message().Error})
		return
	}

	if err := os.Remove(path); err != nil {
		s.logger.Error("Remove %s: %v", path, err)
	}
	writeJSON(w, http.StatusOK, uploadBody{Message: "File processed successfully", Data: res.Message()})
}

// save writes the upload under a unique name that keeps its extension.
func (s *Server) save(src io.Reader, name string) (string, error) {
	if err := os.MkdirAll(s.settings.UploadDir, 0o755); err != nil {
		return "", err
	}
	path := filepath.Join(s.settings.UploadDir, uuid.NewString()+strings.ToLower(filepath.Ext(name)))

	dst, err := os.Create(path)
	if err != nil {
		return "", err
	}
	if _, err := io.Copy(dst, src); err != nil {
		dst.Close()
		os.Remove(path)
		return "", err
	}
	return path, dst.Close()
}

// handlePolicy looks up the first user whose first name contains the
// username parameter and lists that user's policies.
func (s *Server) handlePolicy(w http.ResponseWriter, r *http.Request) {
	username := strings.TrimSpace(r.URL.Query().Get("username"))
	if username == "" {
		writeJSON(w, http.StatusBadRequest, errorBody{Error: "Username parameter is required"})
		return
	}

	user, err := s.store.FindUserByFirstName(r.Context(), username)
	if err != nil {
		s.logger.Error("Find user %q: %v", username, err)
		writeJSON(w, http.StatusInternalServerError, errorBody{Error: "Internal server error", Message: err.Error()})
		return
	}
	if user == nil {
		writeJSON(w, http.StatusNotFound, errorBody{
			Error:   "User not found",
			Message: fmt.Sprintf("No user found with username: %s", username),
		})
		return
	}

	policies, err := s.store.PoliciesForUser(r.Context(), user.ID)
	if err != nil {
		s.logger.Error("Policies for user %s: %v", user.ID, err)
		writeJSON(w, http.StatusInternalServerError, errorBody{Error: "Internal server error", Message: err.Error()})
		return
	}

	ub := newUserBody(*user)
	ub.ID = &user.ID
	if len(policies) == 0 {
		writeJSON(w, http.StatusNotFound, noPoliciesBody{Message: "No policies found for this user", User: ub})
		return
	}
	writeJSON(w, http.StatusOK, policyBody{Success: true, User: ub, TotalPolicies: len(policies), Policies: policies})
}

func (s *Server) handleAggregatedPolicies(w http.ResponseWriter, r *http.Request) {
	groups, err := s.store.AggregatedPolicies(r.Context())
	if err != nil {
		s.logger.Error("Aggregate policies: %v", err)
		writeJSON(w, http.StatusInternalServerError, errorBody{Error: "Internal server error", Message: err.Error()})
		return
	}
	if len(groups) == 0 {
		writeJSON(w, http.StatusNotFound, errorBody{Message: "No policies found in the system"})
		return
	}

	data := make([]userPoliciesBody, len(groups))
	for i, g := range groups {
		data[i] = userPoliciesBody{
			UserID:           g.User.ID,
			User:             newUserBody(g.User),
			TotalPolicies:    len(g.Policies),
			UniqueCategories: g.UniqueCategories,
			UniqueCompanies:  g.UniqueCarriers,
			Policies:         g.Policies,
		}
	}
	writeJSON(w, http.StatusOK, aggregatedBody{Success: true, TotalUsers: len(groups), Data: data})
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	body := healthBody{
		Status:    "ok",
		Timestamp: s.now().UTC(),
		Uptime:    s.now().Sub(s.started).Round(time.Second).String(),
		Store:     "ok",
	}
	status := http.StatusOK
	if err := s.store.Ping(r.Context()); err != nil {
		body.Status, body.Store = "degraded", err.Error()
		status = http.StatusServiceUnavailable
	}
	writeJSON(w, status, body)
}
