package httpapi

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"strings"

	playvalidator "github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/graph-gophers/dataloader"
	"go.uber.org/zap"

	"github.com/rpattn/engcrm/internal/auth"
	"github.com/rpattn/engcrm/internal/domain"
	"github.com/rpattn/engcrm/internal/entityloader"
	"github.com/rpattn/engcrm/internal/ingestion"
	"github.com/rpattn/engcrm/internal/middleware"
	"github.com/rpattn/engcrm/internal/registry"
	"github.com/rpattn/engcrm/internal/repository"
	"github.com/rpattn/engcrm/internal/smartlist"
	"github.com/rpattn/engcrm/pkg/validator"
)

const (
	maxBodyBytes   = 1 << 20
	maxUploadBytes = 32 << 20
)

// Handler serves the smart list and entity JSON API.
type Handler struct {
	service            *smartlist.Service
	registry           *registry.Registry
	entities           repository.EntityRepository
	importer           *ingestion.Service
	properties         *validator.PropertyValidator
	validate           *playvalidator.Validate
	logger             *zap.Logger
	refreshConcurrency int
}

// NewHandler creates the API handler.
func NewHandler(
	service *smartlist.Service,
	reg *registry.Registry,
	entities repository.EntityRepository,
	logger *zap.Logger,
	refreshConcurrency int,
) *Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Handler{
		service:            service,
		registry:           reg,
		entities:           entities,
		importer:           ingestion.NewService(reg, entities, logger),
		properties:         validator.NewPropertyValidator(reg),
		validate:           playvalidator.New(playvalidator.WithRequiredStructEnabled()),
		logger:             logger.Named("http"),
		refreshConcurrency: refreshConcurrency,
	}
}

type fieldResponse struct {
	domain.FieldDefinition
	Operators []domain.OperatorDefinition `json:"operators"`
}

type sortRequest struct {
	Field       string `json:"field" validate:"omitempty,oneof=created_at updated_at property"`
	Direction   string `json:"direction" validate:"omitempty,oneof=asc desc"`
	PropertyKey string `json:"property_key" validate:"required_if=Field property"`
}

type previewRequest struct {
	EntityType string                `json:"entity_type" validate:"required"`
	Filters    []domain.FilterClause `json:"filters" validate:"max=50"`
	Sort       *sortRequest          `json:"sort"`
	Limit      int                   `json:"limit" validate:"gte=0,lte=1000"`
}

type createEntityRequest struct {
	EntityType string         `json:"entity_type" validate:"required,oneof=contact company deal"`
	Properties map[string]any `json:"properties"`
}

type updateEntityRequest struct {
	Properties map[string]any `json:"properties"`
}

type batchEntitiesRequest struct {
	IDs []string `json:"ids" validate:"required,min=1,max=100,dive,uuid"`
}

func (h *Handler) listFields(w http.ResponseWriter, r *http.Request) {
	entityType := domain.EntityType(r.PathValue("entityType"))
	fields, err := h.registry.FieldsFor(entityType)
	if err != nil {
		writeJSON(w, http.StatusNotFound, errorResponse{Error: err.Error()})
		return
	}

	out := make([]fieldResponse, len(fields))
	for i, f := range fields {
		out[i] = fieldResponse{FieldDefinition: f, Operators: registry.OperatorsFor(f.Type)}
	}
	writeJSON(w, http.StatusOK, out)
}

func (h *Handler) listSmartLists(w http.ResponseWriter, r *http.Request) {
	org, err := auth.RequireOrganization(r.Context())
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	lists, err := h.service.List(r.Context(), org, domain.EntityType(r.URL.Query().Get("entity_type")), auth.UserIDFromContext(r.Context()))
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, lists)
}

func (h *Handler) createSmartList(w http.ResponseWriter, r *http.Request) {
	org, err := auth.RequireOrganization(r.Context())
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	var input smartlist.SmartListInput
	if err := decodeJSON(w, r, &input); err != nil {
		h.writeError(w, r, err)
		return
	}

	list, err := h.service.Create(r.Context(), org, auth.UserIDFromContext(r.Context()), input)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, list)
}

func (h *Handler) getSmartList(w http.ResponseWriter, r *http.Request) {
	org, id, ok := h.listScope(w, r)
	if !ok {
		return
	}
	list, visible := h.visibleList(w, r, org, id)
	if !visible {
		return
	}
	writeJSON(w, http.StatusOK, list)
}

func (h *Handler) updateSmartList(w http.ResponseWriter, r *http.Request) {
	org, id, ok := h.listScope(w, r)
	if !ok {
		return
	}
	if _, visible := h.visibleList(w, r, org, id); !visible {
		return
	}

	var input smartlist.SmartListInput
	if err := decodeJSON(w, r, &input); err != nil {
		h.writeError(w, r, err)
		return
	}

	list, err := h.service.Update(r.Context(), org, id, input)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, list)
}

func (h *Handler) deleteSmartList(w http.ResponseWriter, r *http.Request) {
	org, id, ok := h.listScope(w, r)
	if !ok {
		return
	}
	if _, visible := h.visibleList(w, r, org, id); !visible {
		return
	}

	if err := h.service.Delete(r.Context(), org, id); err != nil {
		h.writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) refreshSmartList(w http.ResponseWriter, r *http.Request) {
	org, id, ok := h.listScope(w, r)
	if !ok {
		return
	}
	if _, visible := h.visibleList(w, r, org, id); !visible {
		return
	}

	result, err := h.service.Refresh(r.Context(), org, id)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

func (h *Handler) refreshAllSmartLists(w http.ResponseWriter, r *http.Request) {
	org, err := auth.RequireOrganization(r.Context())
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	result, err := h.service.RefreshAll(r.Context(), org, domain.EntityType(r.URL.Query().Get("entity_type")), h.refreshConcurrency)
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	type failure struct {
		ListID uuid.UUID `json:"list_id"`
		Error  string    `json:"error"`
	}
	failed := make([]failure, len(result.Failed))
	for i, f := range result.Failed {
		failed[i] = failure{ListID: f.ListID, Error: f.Err.Error()}
	}
	writeJSON(w, http.StatusOK, map[string]any{"refreshed": result.Refreshed, "failed": failed})
}

func (h *Handler) exportSmartList(w http.ResponseWriter, r *http.Request) {
	org, id, ok := h.listScope(w, r)
	if !ok {
		return
	}
	list, visible := h.visibleList(w, r, org, id)
	if !visible {
		return
	}

	format, err := smartlist.ParseExportFormat(r.URL.Query().Get("format"))
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	var buf bytes.Buffer
	if _, err := h.service.Export(r.Context(), org, id, format, &buf); err != nil {
		h.writeError(w, r, err)
		return
	}

	w.Header().Set("Content-Type", format.ContentType())
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", fmt.Sprintf("smart-list-%s.%s", list.ID, format)))
	w.Header().Set("Content-Length", strconv.Itoa(buf.Len()))
	w.WriteHeader(http.StatusOK)
	_, _ = buf.WriteTo(w)
}

func (h *Handler) previewSmartList(w http.ResponseWriter, r *http.Request) {
	org, err := auth.RequireOrganization(r.Context())
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	var req previewRequest
	if err := decodeJSON(w, r, &req); err != nil {
		h.writeError(w, r, err)
		return
	}
	if err := h.validate.Struct(req); err != nil {
		h.writeError(w, r, err)
		return
	}

	opts := smartlist.PreviewOptions{Limit: req.Limit}
	if req.Sort != nil {
		opts.Sort = domain.EntitySort{
			Field:       domain.EntitySortField(req.Sort.Field),
			Direction:   domain.SortDirection(req.Sort.Direction),
			PropertyKey: req.Sort.PropertyKey,
		}
	}

	result, err := h.service.Preview(r.Context(), org, domain.EntityType(req.EntityType), req.Filters, opts)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

func (h *Handler) createEntity(w http.ResponseWriter, r *http.Request) {
	org, err := auth.RequireOrganization(r.Context())
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	var req createEntityRequest
	if err := decodeJSON(w, r, &req); err != nil {
		h.writeError(w, r, err)
		return
	}
	if err := h.validate.Struct(req); err != nil {
		h.writeError(w, r, err)
		return
	}

	entityType := domain.EntityType(req.EntityType)
	if err := h.checkProperties(entityType, req.Properties); err != nil {
		h.writeError(w, r, err)
		return
	}

	entity, err := h.entities.Create(r.Context(), domain.NewEntity(org, entityType, req.Properties))
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, entity)
}

func (h *Handler) getEntity(w http.ResponseWriter, r *http.Request) {
	if _, err := auth.RequireOrganization(r.Context()); err != nil {
		h.writeError(w, r, err)
		return
	}
	id, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		h.writeError(w, r, fmt.Errorf("%w: invalid entity id", errBadRequest))
		return
	}

	loader := middleware.EntityLoaderFromContext(r.Context())
	if loader == nil {
		h.writeError(w, r, fmt.Errorf("entity loader missing from request context"))
		return
	}
	value, err := loader.Load(r.Context(), dataloader.StringKey(id.String()))()
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	entity, ok := value.(domain.Entity)
	if !ok {
		h.writeError(w, r, repository.ErrNotFound)
		return
	}
	writeJSON(w, http.StatusOK, entity)
}

func (h *Handler) updateEntity(w http.ResponseWriter, r *http.Request) {
	org, err := auth.RequireOrganization(r.Context())
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	id, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		h.writeError(w, r, fmt.Errorf("%w: invalid entity id", errBadRequest))
		return
	}

	var req updateEntityRequest
	if err := decodeJSON(w, r, &req); err != nil {
		h.writeError(w, r, err)
		return
	}

	existing, err := h.entities.GetByID(r.Context(), org, id)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	if err := h.checkProperties(existing.EntityType, req.Properties); err != nil {
		h.writeError(w, r, err)
		return
	}

	updated, err := h.entities.Update(r.Context(), existing.WithProperties(req.Properties))
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, updated)
}

func (h *Handler) deleteEntity(w http.ResponseWriter, r *http.Request) {
	org, err := auth.RequireOrganization(r.Context())
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	id, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		h.writeError(w, r, fmt.Errorf("%w: invalid entity id", errBadRequest))
		return
	}
	if err := h.entities.Delete(r.Context(), org, id); err != nil {
		h.writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) batchEntities(w http.ResponseWriter, r *http.Request) {
	if _, err := auth.RequireOrganization(r.Context()); err != nil {
		h.writeError(w, r, err)
		return
	}

	var req batchEntitiesRequest
	if err := decodeJSON(w, r, &req); err != nil {
		h.writeError(w, r, err)
		return
	}
	if err := h.validate.Struct(req); err != nil {
		h.writeError(w, r, err)
		return
	}

	ids := make([]uuid.UUID, len(req.IDs))
	for i, raw := range req.IDs {
		ids[i] = uuid.MustParse(raw)
	}

	loader := middleware.EntityLoaderFromContext(r.Context())
	if loader == nil {
		h.writeError(w, r, fmt.Errorf("entity loader missing from request context"))
		return
	}
	entities, err := entityloader.LoadMany(r.Context(), loader, ids)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, entities)
}

func (h *Handler) importEntities(w http.ResponseWriter, r *http.Request) {
	org, err := auth.RequireOrganization(r.Context())
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, maxUploadBytes)
	if err := r.ParseMultipartForm(maxUploadBytes); err != nil {
		h.writeError(w, r, fmt.Errorf("%w: invalid form data: %v", errBadRequest, err))
		return
	}
	file, header, err := r.FormFile("file")
	if err != nil {
		h.writeError(w, r, fmt.Errorf("%w: file required: %v", errBadRequest, err))
		return
	}
	defer file.Close()

	req := ingestion.Request{
		OrganizationID: org,
		EntityType:     domain.EntityType(strings.TrimSpace(r.FormValue("entity_type"))),
		FileName:       header.Filename,
		DryRun:         r.FormValue("dry_run") == "true",
		Data:           file,
	}
	if raw := strings.TrimSpace(r.FormValue("header_row")); raw != "" {
		index, err := strconv.Atoi(raw)
		if err != nil {
			h.writeError(w, r, fmt.Errorf("%w: header_row must be an integer", errBadRequest))
			return
		}
		req.HeaderRowIndex = &index
	}

	summary, err := h.importer.Ingest(r.Context(), req)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, summary)
}

func (h *Handler) checkProperties(entityType domain.EntityType, properties map[string]any) error {
	result, err := h.properties.ValidateProperties(entityType, properties)
	if err != nil {
		return err
	}
	if !result.IsValid {
		return propertyErrors{result: result}
	}
	return nil
}

// listScope resolves the organization and list ID of a /smart-lists/{id} request.
func (h *Handler) listScope(w http.ResponseWriter, r *http.Request) (uuid.UUID, uuid.UUID, bool) {
	org, err := auth.RequireOrganization(r.Context())
	if err != nil {
		h.writeError(w, r, err)
		return uuid.Nil, uuid.Nil, false
	}
	id, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		h.writeError(w, r, fmt.Errorf("%w: invalid smart list id", errBadRequest))
		return uuid.Nil, uuid.Nil, false
	}
	return org, id, true
}

// visibleList loads a list and answers 404 when the caller may not see it,
// so private lists are indistinguishable from missing ones.
func (h *Handler) visibleList(w http.ResponseWriter, r *http.Request, org, id uuid.UUID) (domain.SmartList, bool) {
	list, err := h.service.Get(r.Context(), org, id)
	if err != nil {
		h.writeError(w, r, err)
		return domain.SmartList{}, false
	}
	if !list.VisibleTo(auth.UserIDFromContext(r.Context())) {
		h.writeError(w, r, repository.ErrNotFound)
		return domain.SmartList{}, false
	}
	return list, true
}

func decodeJSON(w http.ResponseWriter, r *http.Request, dst any) error {
	decoder := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(dst); err != nil {
		return fmt.Errorf("%w: %v", errBadRequest, err)
	}
	return nil
}
