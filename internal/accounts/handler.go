package accounts

import (
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"

	"github.com/krt-cliente/contas/internal/platform/httpx"
)

// Handler exposes the account endpoints as JSON.
type Handler struct {
	logger    *slog.Logger
	service   *Service
	validator *validator.Validate
}

// NewHandler constructs a Handler instance.
func NewHandler(logger *slog.Logger, service *Service) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{logger: logger, service: service, validator: validator.New()}
}

// MountRoutes registers account routes on the provided router.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Get("/", h.list)
	r.Post("/", h.create)
	r.Get("/active", h.listActive)
	r.Get("/inactive", h.listInactive)
	r.Get("/deleted", h.listDeleted)
	r.Get("/status-summary", h.statusSummary)
	r.Get("/totals-by-year", h.totalsByYear)
	r.Get("/by-period", h.listByPeriod)
	r.Get("/by-tax-id/{taxID}", h.getByTaxID)
	r.Get("/partner-view/{id}", h.partnerView)
	r.Route("/{id}", func(r chi.Router) {
		r.Get("/", h.get)
		r.Put("/", h.update)
		r.Delete("/", h.delete)
		r.Patch("/activate", h.activate)
		r.Patch("/deactivate", h.deactivate)
		r.Patch("/soft-delete", h.softDelete)
		r.Patch("/restore", h.restore)
	})
}

func (h *Handler) list(w http.ResponseWriter, r *http.Request) {
	accounts, err := h.service.List(r.Context())
	if err != nil {
		h.fail(w, r, err)
		return
	}
	httpx.JSON(w, http.StatusOK, accounts)
}

func (h *Handler) get(w http.ResponseWriter, r *http.Request) {
	id, ok := h.pathID(w, r)
	if !ok {
		return
	}
	account, err := h.service.Get(r.Context(), id)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	httpx.JSON(w, http.StatusOK, account)
}

func (h *Handler) partnerView(w http.ResponseWriter, r *http.Request) {
	id, ok := h.pathID(w, r)
	if !ok {
		return
	}
	view, err := h.service.GetPartnerView(r.Context(), id)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	httpx.JSON(w, http.StatusOK, view)
}

func (h *Handler) getByTaxID(w http.ResponseWriter, r *http.Request) {
	view, err := h.service.GetByTaxID(r.Context(), chi.URLParam(r, "taxID"))
	if err != nil {
		h.fail(w, r, err)
		return
	}
	httpx.JSON(w, http.StatusOK, view)
}

func (h *Handler) create(w http.ResponseWriter, r *http.Request) {
	var req CreateAccountRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", msgInvalidBody)
		return
	}
	if !h.validate(w, req) {
		return
	}
	account, err := h.service.Create(r.Context(), req)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	w.Header().Set("Location", fmt.Sprintf("%s/%s", strings.TrimSuffix(r.URL.Path, "/"), account.ID))
	httpx.JSON(w, http.StatusCreated, account)
}

func (h *Handler) update(w http.ResponseWriter, r *http.Request) {
	id, ok := h.pathID(w, r)
	if !ok {
		return
	}
	var req UpdateAccountRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", msgInvalidBody)
		return
	}
	if req.ID != id {
		httpx.RespondError(w, badRequest(msgIDMismatch))
		return
	}
	if !h.validate(w, req) {
		return
	}
	if err := h.service.Update(r.Context(), id, req); err != nil {
		h.fail(w, r, err)
		return
	}
	httpx.NoContent(w)
}

func (h *Handler) delete(w http.ResponseWriter, r *http.Request) {
	id, ok := h.pathID(w, r)
	if !ok {
		return
	}
	if err := h.service.Delete(r.Context(), id); err != nil {
		h.fail(w, r, err)
		return
	}
	httpx.NoContent(w)
}

func (h *Handler) listActive(w http.ResponseWriter, r *http.Request) {
	views, err := h.service.ListActive(r.Context())
	if err != nil {
		h.fail(w, r, err)
		return
	}
	httpx.JSON(w, http.StatusOK, views)
}

func (h *Handler) listInactive(w http.ResponseWriter, r *http.Request) {
	views, err := h.service.ListInactive(r.Context())
	if err != nil {
		h.fail(w, r, err)
		return
	}
	httpx.JSON(w, http.StatusOK, views)
}

func (h *Handler) listDeleted(w http.ResponseWriter, r *http.Request) {
	views, err := h.service.ListDeleted(r.Context())
	if err != nil {
		h.fail(w, r, err)
		return
	}
	httpx.JSON(w, http.StatusOK, views)
}

func (h *Handler) statusSummary(w http.ResponseWriter, r *http.Request) {
	summary, err := h.service.StatusSummary(r.Context())
	if err != nil {
		h.fail(w, r, err)
		return
	}
	httpx.JSON(w, http.StatusOK, summary)
}

func (h *Handler) totalsByYear(w http.ResponseWriter, r *http.Request) {
	years, err := parseYears(r.URL.Query()["years"])
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	totals, err := h.service.TotalsByYear(r.Context(), years)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	httpx.JSON(w, http.StatusOK, totals)
}

func (h *Handler) listByPeriod(w http.ResponseWriter, r *http.Request) {
	start, end, err := parsePeriod(r.URL.Query().Get("start"), r.URL.Query().Get("end"))
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	views, err := h.service.ListByPeriod(r.Context(), start, end)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	httpx.JSON(w, http.StatusOK, views)
}

func (h *Handler) activate(w http.ResponseWriter, r *http.Request) {
	id, ok := h.pathID(w, r)
	if !ok {
		return
	}
	change, err := h.service.Activate(r.Context(), id)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	httpx.JSON(w, http.StatusOK, change)
}

func (h *Handler) deactivate(w http.ResponseWriter, r *http.Request) {
	id, ok := h.pathID(w, r)
	if !ok {
		return
	}
	change, err := h.service.Deactivate(r.Context(), id)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	httpx.JSON(w, http.StatusOK, change)
}

func (h *Handler) softDelete(w http.ResponseWriter, r *http.Request) {
	id, ok := h.pathID(w, r)
	if !ok {
		return
	}
	change, err := h.service.SoftDelete(r.Context(), id)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	httpx.JSON(w, http.StatusOK, change)
}

func (h *Handler) restore(w http.ResponseWriter, r *http.Request) {
	id, ok := h.pathID(w, r)
	if !ok {
		return
	}
	change, err := h.service.Restore(r.Context(), id)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	httpx.JSON(w, http.StatusOK, change)
}

func (h *Handler) pathID(w http.ResponseWriter, r *http.Request) (uuid.UUID, bool) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		httpx.RespondError(w, badRequest(msgInvalidID))
		return uuid.Nil, false
	}
	return id, true
}

func (h *Handler) validate(w http.ResponseWriter, req any) bool {
	err := h.validator.Struct(req)
	if err == nil {
		return true
	}
	var fieldErrs validator.ValidationErrors
	if !errors.As(err, &fieldErrs) {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", msgInvalidBody)
		return false
	}
	fields := make(map[string]string, len(fieldErrs))
	for _, fe := range fieldErrs {
		fields[jsonField(fe.Field())] = fieldMessage(fe)
	}
	httpx.ValidationProblem(w, msgValidationFailed, fields)
	return false
}

func (h *Handler) fail(w http.ResponseWriter, r *http.Request, err error) {
	if !httpx.IsClientError(err) {
		h.logger.Error("account request failed",
			slog.String("method", r.Method),
			slog.String("path", r.URL.Path),
			slog.Any("error", err))
	}
	httpx.RespondError(w, err)
}

var jsonFields = map[string]string{
	"HolderName": "holder_name",
	"TaxID":      "tax_id",
	"Email":      "email",
}

func jsonField(name string) string {
	if field, ok := jsonFields[name]; ok {
		return field
	}
	return strings.ToLower(name)
}

func fieldMessage(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return "Campo obrigatório."
	case "len":
		return fmt.Sprintf("Deve conter exatamente %s caracteres.", fe.Param())
	case "numeric":
		return "Deve conter apenas dígitos."
	case "email":
		return "E-mail inválido."
	}
	return "Valor inválido."
}

// parseYears accepts repeated values and comma separated lists.
func parseYears(values []string) ([]int, error) {
	var years []int
	for _, value := range values {
		for _, part := range strings.Split(value, ",") {
			part = strings.TrimSpace(part)
			if part == "" {
				continue
			}
			year, err := strconv.Atoi(part)
			if err != nil || year < minYear || year > maxYear {
				return nil, badRequest(msgInvalidYear)
			}
			years = append(years, year)
		}
	}
	if len(years) == 0 {
		return nil, badRequest(msgYearsRequired)
	}
	return years, nil
}

var periodLayouts = []string{time.RFC3339, "2006-01-02"}

func parsePeriod(rawStart, rawEnd string) (time.Time, time.Time, error) {
	if rawStart == "" || rawEnd == "" {
		return time.Time{}, time.Time{}, badRequest(msgInvalidPeriod)
	}
	start, err := parseDate(rawStart)
	if err != nil {
		return time.Time{}, time.Time{}, err
	}
	end, err := parseDate(rawEnd)
	if err != nil {
		return time.Time{}, time.Time{}, err
	}
	return start, end, nil
}

func parseDate(raw string) (time.Time, error) {
	for _, layout := range periodLayouts {
		if t, err := time.Parse(layout, raw); err == nil {
			return t.UTC(), nil
		}
	}
	return time.Time{}, badRequest(msgInvalidPeriodDate)
}
