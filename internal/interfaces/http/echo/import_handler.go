package echo

import (
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	"github.com/labstack/echo/v4"
	app "github.com/mohammadpnp/site-import/internal/application/siteimport"
)

const HeaderOrganizationID = "X-Organization-ID"

type ImportHandler struct {
	list   app.ListSiteImports
	start  app.StartSiteImport
	remove app.DeleteSiteImport
}

type createImportRequest struct {
	Platform  string `json:"platform" validate:"omitempty,max=32"`
	SourceRef string `json:"sourceRef" validate:"omitempty,max=255"`
}

type errorBody struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

type apiResponse struct {
	Data  any        `json:"data,omitempty"`
	Error *errorBody `json:"error,omitempty"`
}

func NewImportHandler(list app.ListSiteImports, start app.StartSiteImport, del app.DeleteSiteImport) *ImportHandler {
	return &ImportHandler{list: list, start: start, remove: del}
}

func (h *ImportHandler) ListSiteImports(c echo.Context) error {
	siteID, ok := parseSiteID(c)
	if !ok {
		return invalidSite(c)
	}

	out, err := h.list.Execute(c.Request().Context(), app.ListSiteImportsInput{SiteID: siteID})
	if err != nil {
		return writeError(c, err, "failed to list imports")
	}

	return c.JSON(http.StatusOK, apiResponse{Data: out})
}

func (h *ImportHandler) CreateSiteImport(c echo.Context) error {
	siteID, ok := parseSiteID(c)
	if !ok {
		return invalidSite(c)
	}

	var req createImportRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, apiResponse{Error: &errorBody{
			Code:    "bad_request",
			Message: "invalid request body",
		}})
	}
	if err := c.Validate(&req); err != nil {
		return c.JSON(http.StatusBadRequest, apiResponse{Error: &errorBody{
			Code:    "validation_error",
			Message: err.Error(),
		}})
	}

	out, err := h.start.Execute(c.Request().Context(), app.StartSiteImportInput{
		SiteID:    siteID,
		Platform:  req.Platform,
		SourceRef: req.SourceRef,
	})
	if err != nil {
		return writeError(c, err, "failed to create import")
	}

	return c.JSON(http.StatusCreated, apiResponse{Data: out})
}

func (h *ImportHandler) DeleteSiteImport(c echo.Context) error {
	siteID, ok := parseSiteID(c)
	if !ok {
		return invalidSite(c)
	}

	orgID := strings.TrimSpace(c.Request().Header.Get(HeaderOrganizationID))
	if orgID == "" {
		return c.JSON(http.StatusBadRequest, apiResponse{Error: &errorBody{
			Code:    "validation_error",
			Message: HeaderOrganizationID + " header is required",
		}})
	}

	err := h.remove.Execute(c.Request().Context(), app.DeleteSiteImportInput{
		SiteID:                   siteID,
		ImportID:                 c.Param("importId"),
		RequestingOrganizationID: orgID,
	})
	if err != nil {
		return writeError(c, err, "failed to delete import")
	}

	return c.NoContent(http.StatusNoContent)
}

func parseSiteID(c echo.Context) (int64, bool) {
	siteID, err := strconv.ParseInt(c.Param("site"), 10, 64)
	if err != nil || siteID <= 0 {
		return 0, false
	}
	return siteID, true
}

func invalidSite(c echo.Context) error {
	return c.JSON(http.StatusBadRequest, apiResponse{Error: &errorBody{
		Code:    "invalid_site",
		Message: "site must be a positive integer",
	}})
}

type errorMapping struct {
	target  error
	status  int
	code    string
	message string
}

var errorMappings = []errorMapping{
	{app.ErrInvalidSite, http.StatusBadRequest, "invalid_site", "site must be a positive integer"},
	{app.ErrInvalidPlatform, http.StatusBadRequest, "invalid_platform", "unsupported import platform"},
	{app.ErrInvalidSource, http.StatusBadRequest, "invalid_source", "invalid source reference"},
	{app.ErrInvalidImportID, http.StatusBadRequest, "invalid_import_id", "importId must be a valid UUID"},
	{app.ErrSiteNotFound, http.StatusNotFound, "site_not_found", "site not found"},
	{app.ErrImportNotFound, http.StatusNotFound, "not_found", "Import not found"},
	{app.ErrQuotaExceeded, http.StatusTooManyRequests, "quota_exceeded", "an import is already running for this organization"},
	{app.ErrPlanRestriction, http.StatusForbidden, "plan_restriction", "the current plan does not allow imports"},
	{app.ErrForbidden, http.StatusForbidden, "forbidden", "Forbidden"},
	{app.ErrActiveImport, http.StatusBadRequest, "active_import", "Cannot delete active import"},
	{app.ErrEventDeletionFailed, http.StatusInternalServerError, "event_deletion_failed", "Failed to delete imported events"},
	{app.ErrRecordDeletionFailed, http.StatusInternalServerError, "record_deletion_failed", "Failed to delete import record"},
}

func writeError(c echo.Context, err error, fallback string) error {
	for _, m := range errorMappings {
		if errors.Is(err, m.target) {
			return c.JSON(m.status, apiResponse{Error: &errorBody{Code: m.code, Message: m.message}})
		}
	}

	slog.ErrorContext(c.Request().Context(), "import request failed", "path", c.Path(), "error", err)
	return c.JSON(http.StatusInternalServerError, apiResponse{Error: &errorBody{
		Code:    "internal_error",
		Message: fallback,
	}})
}
