package http

import (
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/PykeW/update-all/internal/application"
)

type createSoftwareRequest struct {
	Name          string   `json:"name"`
	Version       string   `json:"version"`
	Description   string   `json:"description"`
	Category      string   `json:"category"`
	Platforms     []string `json:"platforms"`
	SizeBytes     int64    `json:"size_bytes"`
	Icon          string   `json:"icon"`
	OSSKey        string   `json:"oss_key"`
	IsPublished   bool     `json:"is_published"`
	IsRecommended bool     `json:"is_recommended"`
}

type updateSoftwareRequest struct {
	Name          *string  `json:"name"`
	Version       *string  `json:"version"`
	Description   *string  `json:"description"`
	Category      *string  `json:"category"`
	Platforms     []string `json:"platforms"`
	SizeBytes     *int64   `json:"size_bytes"`
	Icon          *string  `json:"icon"`
	OSSKey        *string  `json:"oss_key"`
	IsPublished   *bool    `json:"is_published"`
	IsRecommended *bool    `json:"is_recommended"`
}

func softwareIDFromPath(r *http.Request) (uuid.UUID, error) {
	raw := chi.URLParam(r, "software_id")
	id, err := uuid.Parse(raw)
	if err != nil {
		return uuid.Nil, errors.New("software_id must be a valid uuid")
	}
	return id, nil
}

func paginationFromQuery(r *http.Request) application.Pagination {
	return application.Pagination{
		Page:     parseIntDefault(r.URL.Query().Get("page"), 1),
		PageSize: parseIntDefault(r.URL.Query().Get("page_size"), 0),
	}
}

func (h *Handler) createSoftware(w http.ResponseWriter, r *http.Request) {
	actor, ok := mustActor(w, r)
	if !ok {
		return
	}
	var req createSoftwareRequest
	if err := decodeBody(r, &req); err != nil {
		writeValidationError(r.Context(), w, "create_software", err)
		return
	}

	entry, err := h.service.CreateSoftware(r.Context(), actor, application.CreateSoftwareInput{
		Name:          req.Name,
		Version:       req.Version,
		Description:   req.Description,
		Category:      req.Category,
		Platforms:     req.Platforms,
		SizeBytes:     req.SizeBytes,
		Icon:          req.Icon,
		OSSKey:        req.OSSKey,
		IsPublished:   req.IsPublished,
		IsRecommended: req.IsRecommended,
	})
	if err != nil {
		writeMappedError(r.Context(), w, "create_software", err)
		return
	}
	writeSuccess(w, http.StatusCreated, entry)
}

func (h *Handler) getSoftware(w http.ResponseWriter, r *http.Request) {
	actor, ok := mustActor(w, r)
	if !ok {
		return
	}
	id, err := softwareIDFromPath(r)
	if err != nil {
		writeValidationError(r.Context(), w, "get_software", err)
		return
	}

	entry, err := h.service.GetSoftware(r.Context(), actor, id)
	if err != nil {
		writeMappedError(r.Context(), w, "get_software", err)
		return
	}
	writeSuccess(w, http.StatusOK, entry)
}

func (h *Handler) listSoftware(w http.ResponseWriter, r *http.Request) {
	actor, ok := mustActor(w, r)
	if !ok {
		return
	}

	page, err := h.service.ListSoftware(r.Context(), actor,
		r.URL.Query().Get("category"),
		r.URL.Query().Get("platform"),
		paginationFromQuery(r),
	)
	if err != nil {
		writeMappedError(r.Context(), w, "list_software", err)
		return
	}
	writeSoftwarePage(w, page)
}

func (h *Handler) searchSoftware(w http.ResponseWriter, r *http.Request) {
	actor, ok := mustActor(w, r)
	if !ok {
		return
	}

	page, err := h.service.SearchSoftware(r.Context(), actor,
		r.URL.Query().Get("keyword"),
		paginationFromQuery(r),
	)
	if err != nil {
		writeMappedError(r.Context(), w, "search_software", err)
		return
	}
	writeSoftwarePage(w, page)
}

func (h *Handler) recommendedSoftware(w http.ResponseWriter, r *http.Request) {
	items, err := h.service.RecommendedSoftware(r.Context(), parseIntDefault(r.URL.Query().Get("limit"), 0))
	if err != nil {
		writeMappedError(r.Context(), w, "recommended_software", err)
		return
	}
	writeSuccess(w, http.StatusOK, map[string]any{"items": items})
}

func (h *Handler) updateSoftware(w http.ResponseWriter, r *http.Request) {
	actor, ok := mustActor(w, r)
	if !ok {
		return
	}
	id, err := softwareIDFromPath(r)
	if err != nil {
		writeValidationError(r.Context(), w, "update_software", err)
		return
	}
	var req updateSoftwareRequest
	if err := decodeBody(r, &req); err != nil {
		writeValidationError(r.Context(), w, "update_software", err)
		return
	}

	entry, err := h.service.UpdateSoftware(r.Context(), actor, id, application.UpdateSoftwareInput{
		Name:          req.Name,
		Version:       req.Version,
		Description:   req.Description,
		Category:      req.Category,
		Platforms:     req.Platforms,
		SizeBytes:     req.SizeBytes,
		Icon:          req.Icon,
		OSSKey:        req.OSSKey,
		IsPublished:   req.IsPublished,
		IsRecommended: req.IsRecommended,
	})
	if err != nil {
		writeMappedError(r.Context(), w, "update_software", err)
		return
	}
	writeSuccess(w, http.StatusOK, entry)
}

func (h *Handler) deleteSoftware(w http.ResponseWriter, r *http.Request) {
	actor, ok := mustActor(w, r)
	if !ok {
		return
	}
	id, err := softwareIDFromPath(r)
	if err != nil {
		writeValidationError(r.Context(), w, "delete_software", err)
		return
	}

	if err := h.service.DeleteSoftware(r.Context(), actor, id); err != nil {
		writeMappedError(r.Context(), w, "delete_software", err)
		return
	}
	writeMessage(w, http.StatusOK, "software deleted")
}

func (h *Handler) downloadSoftware(w http.ResponseWriter, r *http.Request) {
	actor, ok := mustActor(w, r)
	if !ok {
		return
	}
	id, err := softwareIDFromPath(r)
	if err != nil {
		writeValidationError(r.Context(), w, "download_software", err)
		return
	}

	grant, err := h.service.Download(r.Context(), actor, id, readIP(r), r.UserAgent())
	if err != nil {
		writeMappedError(r.Context(), w, "download_software", err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"success":     true,
		"downloadUrl": grant.URL,
		"filename":    grant.Filename,
		"expires":     grant.Expires,
	})
}

func (h *Handler) softwareDownloadHistory(w http.ResponseWriter, r *http.Request) {
	actor, ok := mustActor(w, r)
	if !ok {
		return
	}
	id, err := softwareIDFromPath(r)
	if err != nil {
		writeValidationError(r.Context(), w, "software_download_history", err)
		return
	}

	page, err := h.service.SoftwareDownloadHistory(r.Context(), actor, id, paginationFromQuery(r))
	if err != nil {
		writeMappedError(r.Context(), w, "software_download_history", err)
		return
	}
	writeHistoryPage(w, page)
}

func (h *Handler) softwareDownloadStats(w http.ResponseWriter, r *http.Request) {
	actor, ok := mustActor(w, r)
	if !ok {
		return
	}
	id, err := softwareIDFromPath(r)
	if err != nil {
		writeValidationError(r.Context(), w, "software_download_stats", err)
		return
	}

	stats, err := h.service.SoftwareDownloadStats(r.Context(), actor, id)
	if err != nil {
		writeMappedError(r.Context(), w, "software_download_stats", err)
		return
	}
	writeSuccess(w, http.StatusOK, map[string]any{
		"software_id":  stats.SoftwareID,
		"total":        stats.Total,
		"last_7_days":  stats.Last7Days,
		"last_30_days": stats.Last30Days,
	})
}

func (h *Handler) myDownloadHistory(w http.ResponseWriter, r *http.Request) {
	actor, ok := mustActor(w, r)
	if !ok {
		return
	}

	page, err := h.service.MyDownloadHistory(r.Context(), actor, paginationFromQuery(r))
	if err != nil {
		writeMappedError(r.Context(), w, "my_download_history", err)
		return
	}
	writeHistoryPage(w, page)
}

func writeSoftwarePage(w http.ResponseWriter, page application.SoftwarePage) {
	writeSuccess(w, http.StatusOK, map[string]any{
		"items": page.Items,
		"total": page.Total,
		"page":  page.Page,
		"pages": page.Pages,
	})
}

func writeHistoryPage(w http.ResponseWriter, page application.DownloadHistoryPage) {
	items := make([]map[string]any, 0, len(page.Items))
	for _, item := range page.Items {
		entry := map[string]any{
			"event": item.Event,
		}
		if item.Software != nil {
			entry["software"] = map[string]any{
				"software_id": item.Software.SoftwareID,
				"name":        item.Software.Name,
				"version":     item.Software.Version,
				"icon":        item.Software.Icon,
			}
		}
		items = append(items, entry)
	}
	writeSuccess(w, http.StatusOK, map[string]any{
		"items": items,
		"total": page.Total,
		"page":  page.Page,
		"pages": page.Pages,
	})
}
