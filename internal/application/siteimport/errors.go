package siteimport

import "errors"

var (
	ErrInvalidSite          = errors.New("invalid site")
	ErrInvalidPlatform      = errors.New("invalid import platform")
	ErrInvalidSource        = errors.New("invalid import source")
	ErrSiteNotFound         = errors.New("site not found")
	ErrQuotaExceeded        = errors.New("organization already has an active import")
	ErrPlanRestriction      = errors.New("organization plan does not allow imports")
	ErrCreateImport         = errors.New("failed to create import")
	ErrListImports          = errors.New("failed to list imports")
	ErrImportNotFound       = errors.New("import not found")
	ErrInvalidImportID      = errors.New("invalid import id")
	ErrForbidden            = errors.New("import does not belong to requester")
	ErrActiveImport         = errors.New("cannot delete active import")
	ErrEventDeletionFailed  = errors.New("failed to delete imported events")
	ErrRecordDeletionFailed = errors.New("failed to delete import record")
	ErrFetchRecords         = errors.New("failed to fetch source records")
	ErrWriteEvents          = errors.New("failed to write events")
	ErrImportInterrupted    = errors.New("import interrupted")
)
