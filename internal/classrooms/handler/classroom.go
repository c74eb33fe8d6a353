package handler

import (
	"encoding/json"
	"net/http"

	"classbook/internal/classrooms/service"
	"classbook/pkg/auth"
	apperrors "classbook/pkg/errors"
	httputil "classbook/pkg/http"
	"classbook/pkg/logger"
	"classbook/pkg/model"

	"github.com/julienschmidt/httprouter"
)

type ClassroomHandler struct {
	service service.ClassroomService
	log     *logger.Logger
}

func NewClassroomHandler(service service.ClassroomService, log *logger.Logger) *ClassroomHandler {
	return &ClassroomHandler{
		service: service,
		log:     log,
	}
}

func (h *ClassroomHandler) Create(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	identity, ok := h.identity(w, r)
	if !ok {
		return
	}

	var classroom model.Classroom
	if err := json.NewDecoder(r.Body).Decode(&classroom); err != nil {
		if writeErr := httputil.WriteJSON(w, http.StatusBadRequest, httputil.ErrorResponse{
			Error: "Invalid request body",
		}); writeErr != nil {
			h.log.Error("failed to write JSON response", "handler", "Create", "operation", "WriteJSON", "error", writeErr)
		}
		return
	}

	if err := h.service.Create(r.Context(), identity, &classroom); err != nil {
		h.writeError(w, "Create", err)
		return
	}

	if err := httputil.WriteCreated(w, classroom); err != nil {
		h.log.Error("failed to write created response", "handler", "Create", "operation", "WriteCreated", "error", err)
	}
}

func (h *ClassroomHandler) GetByID(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	classroom, err := h.service.GetByID(r.Context(), ps.ByName("id"))
	if err != nil {
		h.writeError(w, "GetByID", err)
		return
	}

	if err := httputil.WriteSuccess(w, classroom); err != nil {
		h.log.Error("failed to write success response", "handler", "GetByID", "operation", "WriteSuccess", "error", err)
	}
}

func (h *ClassroomHandler) GetAll(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	limit, offset, err := httputil.ExtractLimitOffset(r)
	if err != nil {
		h.writeError(w, "GetAll", err)
		return
	}

	onlyAvailable := r.URL.Query().Get("available") == "true"

	classrooms, total, err := h.service.GetAll(r.Context(), onlyAvailable, limit, offset)
	if err != nil {
		h.writeError(w, "GetAll", err)
		return
	}

	if err := httputil.WritePaginated(w, classrooms, total, limit, offset); err != nil {
		h.log.Error("failed to write paginated response", "handler", "GetAll", "operation", "WritePaginated", "error", err)
	}
}

func (h *ClassroomHandler) Update(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	identity, ok := h.identity(w, r)
	if !ok {
		return
	}

	var updates model.ClassroomUpdate
	if err := json.NewDecoder(r.Body).Decode(&updates); err != nil {
		if writeErr := httputil.WriteJSON(w, http.StatusBadRequest, httputil.ErrorResponse{
			Error: "Invalid request body",
		}); writeErr != nil {
			h.log.Error("failed to write JSON response", "handler", "Update", "operation", "WriteJSON", "error", writeErr)
		}
		return
	}

	classroom, err := h.service.Update(r.Context(), identity, ps.ByName("id"), &updates)
	if err != nil {
		h.writeError(w, "Update", err)
		return
	}

	if err := httputil.WriteSuccess(w, classroom); err != nil {
		h.log.Error("failed to write success response", "handler", "Update", "operation", "WriteSuccess", "error", err)
	}
}

func (h *ClassroomHandler) Delete(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	identity, ok := h.identity(w, r)
	if !ok {
		return
	}

	if err := h.service.Delete(r.Context(), identity, ps.ByName("id")); err != nil {
		h.writeError(w, "Delete", err)
		return
	}

	httputil.WriteNoContent(w)
}

func (h *ClassroomHandler) identity(w http.ResponseWriter, r *http.Request) (auth.Identity, bool) {
	identity, ok := auth.FromContext(r.Context())
	if !ok {
		h.writeError(w, "identity", apperrors.Unauthorized("Authentication required"))
		return auth.Identity{}, false
	}
	return identity, true
}

func (h *ClassroomHandler) writeError(w http.ResponseWriter, handlerName string, err error) {
	if writeErr := httputil.WriteError(w, err); writeErr != nil {
		h.log.Error("failed to write error response", "handler", handlerName, "operation", "WriteError", "error", writeErr)
	}
}

func (h *ClassroomHandler) RegisterRoutes(router *httprouter.Router) {
	router.POST("/api/v1/classrooms", h.Create)
	router.GET("/api/v1/classrooms", h.GetAll)
	router.GET("/api/v1/classrooms/id/:id", h.GetByID)
	router.PATCH("/api/v1/classrooms/id/:id", h.Update)
	router.DELETE("/api/v1/classrooms/id/:id", h.Delete)
}
