package application

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/PykeW/update-all/internal/domain"
)

// Download resolves a fresh signed URL for a published entry and records the
// attempt. Recording runs after the grant is decided and never changes the
// caller's outcome.
func (s *Service) Download(ctx context.Context, actor Actor, softwareID uuid.UUID, ip, userAgent string) (DownloadGrant, error) {
	entry, err := s.software.GetByID(ctx, softwareID)
	if err != nil {
		return DownloadGrant{}, fmt.Errorf("load software %s: %w", softwareID, err)
	}
	if !entry.IsPublished && !actor.isAdmin() {
		return DownloadGrant{}, fmt.Errorf("software %s is not published: %w", softwareID, domain.ErrForbidden)
	}
	if !entry.Downloadable() {
		s.Record(ctx, DownloadRecordInput{
			SoftwareID: softwareID,
			UserID:     actor.UserID,
			IPAddress:  ip,
			UserAgent:  userAgent,
			Status:     domain.DownloadStatusFailed,
		})
		return DownloadGrant{}, fmt.Errorf("software %s is not downloadable: %w", softwareID, domain.ErrPackageUnavailable)
	}

	url, expires, err := s.EnsureFreshURL(ctx, entry)
	status := domain.DownloadStatusSuccess
	if err != nil {
		status = domain.DownloadStatusFailed
	}
	s.Record(ctx, DownloadRecordInput{
		SoftwareID: softwareID,
		UserID:     actor.UserID,
		IPAddress:  ip,
		UserAgent:  userAgent,
		Status:     status,
	})
	if err != nil {
		return DownloadGrant{}, err
	}
	return DownloadGrant{URL: url, Filename: entry.Filename(), Expires: expires}, nil
}

// Record bumps the entry's counter and appends an event row. Both writes are
// best-effort: failures are logged and swallowed so delivery is never blocked
// by bookkeeping.
func (s *Service) Record(ctx context.Context, in DownloadRecordInput) {
	logger := appLogger().With("operation", "record_download", "software_id", in.SoftwareID)

	if in.Status == domain.DownloadStatusSuccess {
		if err := s.software.IncrementDownloads(ctx, in.SoftwareID); err != nil {
			logger.WarnContext(ctx, "download counter update failed", "error", err)
		}
	}

	event := domain.DownloadEvent{
		EventID:    uuid.New(),
		SoftwareID: in.SoftwareID,
		UserID:     in.UserID,
		IPAddress:  in.IPAddress,
		UserAgent:  in.UserAgent,
		Status:     in.Status,
		CreatedAt:  s.nowFn(),
	}
	if !domain.IsValidDownloadStatus(event.Status) {
		event.Status = domain.DownloadStatusFailed
	}
	if err := s.downloads.Append(ctx, event); err != nil {
		logger.WarnContext(ctx, "download event append failed", "error", err)
	}
}

// SoftwareDownloadHistory lists the event trail of one entry, newest first.
// Admin only.
func (s *Service) SoftwareDownloadHistory(ctx context.Context, actor Actor, softwareID uuid.UUID, p Pagination) (DownloadHistoryPage, error) {
	if !actor.isAdmin() {
		return DownloadHistoryPage{}, domain.ErrForbidden
	}
	p = s.clampPage(p)

	events, total, err := s.downloads.ListBySoftware(ctx, softwareID, p.PageSize, (p.Page-1)*p.PageSize)
	if err != nil {
		return DownloadHistoryPage{}, fmt.Errorf("list downloads for %s: %w", softwareID, err)
	}
	return s.historyPage(ctx, events, total, p), nil
}

// MyDownloadHistory lists the caller's own event trail, newest first.
func (s *Service) MyDownloadHistory(ctx context.Context, actor Actor, p Pagination) (DownloadHistoryPage, error) {
	p = s.clampPage(p)

	events, total, err := s.downloads.ListByUser(ctx, actor.UserID, p.PageSize, (p.Page-1)*p.PageSize)
	if err != nil {
		return DownloadHistoryPage{}, fmt.Errorf("list downloads for user %s: %w", actor.UserID, err)
	}
	return s.historyPage(ctx, events, total, p), nil
}

func (s *Service) historyPage(ctx context.Context, events []domain.DownloadEvent, total int64, p Pagination) DownloadHistoryPage {
	page := DownloadHistoryPage{
		Items: make([]DownloadHistoryItem, 0, len(events)),
		Total: total,
		Page:  p.Page,
		Pages: pageCount(total, p.PageSize),
	}
	// Catalog summaries are joined per page. Entries deleted since the
	// event was written simply have no summary.
	seen := map[uuid.UUID]*domain.SoftwareEntry{}
	for _, ev := range events {
		entry, ok := seen[ev.SoftwareID]
		if !ok {
			loaded, err := s.software.GetByID(ctx, ev.SoftwareID)
			if err != nil && !errors.Is(err, domain.ErrNotFound) {
				appLogger().WarnContext(ctx, "history join failed",
					"operation", "download_history",
					"software_id", ev.SoftwareID,
					"error", err,
				)
			}
			entry = loaded
			seen[ev.SoftwareID] = entry
		}
		page.Items = append(page.Items, DownloadHistoryItem{Event: ev, Software: entry})
	}
	return page
}

// DownloadStats reports the counter plus recent event volume for one entry.
type DownloadStats struct {
	SoftwareID uuid.UUID
	Total      int64
	Last7Days  int64
	Last30Days int64
}

func (s *Service) SoftwareDownloadStats(ctx context.Context, actor Actor, softwareID uuid.UUID) (DownloadStats, error) {
	if !actor.isAdmin() {
		return DownloadStats{}, domain.ErrForbidden
	}
	entry, err := s.software.GetByID(ctx, softwareID)
	if err != nil {
		return DownloadStats{}, fmt.Errorf("load software %s: %w", softwareID, err)
	}

	now := s.nowFn()
	stats := DownloadStats{SoftwareID: softwareID, Total: entry.Downloads}
	for _, window := range []struct {
		since time.Time
		dst   *int64
	}{
		{now.Add(-7 * 24 * time.Hour), &stats.Last7Days},
		{now.Add(-30 * 24 * time.Hour), &stats.Last30Days},
	} {
		since := window.since
		n, err := s.downloads.Count(ctx, &softwareID, &since)
		if err != nil {
			return DownloadStats{}, fmt.Errorf("count downloads for %s: %w", softwareID, err)
		}
		*window.dst = n
	}
	return stats, nil
}
