package application

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/PykeW/update-all/internal/domain"
)

// EnsureFreshURL returns a download URL for the entry that is valid strictly
// beyond now. A stored link whose expiry is in the future is reused as-is; a
// missing or stale link is re-signed for the on-demand window and persisted
// together with its new expiry before being returned. Entries with no object
// key cannot be signed at all.
func (s *Service) EnsureFreshURL(ctx context.Context, entry *domain.SoftwareEntry) (string, time.Time, error) {
	if entry.OSSKey == "" {
		return "", time.Time{}, fmt.Errorf("software %s has no stored object: %w", entry.SoftwareID, domain.ErrPackageUnavailable)
	}

	now := s.nowFn()
	if entry.HasFreshURL(now) {
		return entry.DownloadURL, *entry.DownloadURLExpires, nil
	}

	url, err := s.store.SignURL(ctx, entry.OSSKey, s.cfg.OnDemandURLTTL)
	if err != nil {
		return "", time.Time{}, fmt.Errorf("sign url for %s: %w", entry.SoftwareID, errors.Join(domain.ErrLinkGeneration, err))
	}
	expires := now.Add(s.cfg.OnDemandURLTTL)

	if err := s.software.SetDownloadURL(ctx, entry.SoftwareID, url, expires); err != nil {
		return "", time.Time{}, fmt.Errorf("persist url for %s: %w", entry.SoftwareID, err)
	}
	entry.DownloadURL = url
	entry.DownloadURLExpires = &expires
	return url, expires, nil
}

// RefreshExpiringLinks re-signs every stored entry whose link expires within
// the sweep horizon, including entries that have never been signed. Each item
// is handled independently so one bad object cannot stall the pass. Returns
// the number of links refreshed.
func (s *Service) RefreshExpiringLinks(ctx context.Context) (int, error) {
	now := s.nowFn()
	threshold := now.Add(s.cfg.SweepHorizon)

	expiring, err := s.software.ListExpiring(ctx, threshold, s.cfg.SweepBatchSize)
	if err != nil {
		return 0, fmt.Errorf("list expiring links: %w", err)
	}

	logger := appLogger().With("operation", "refresh_expiring_links")
	refreshed := 0
	for i := range expiring {
		entry := &expiring[i]
		if err := s.refreshOne(ctx, entry, now); err != nil {
			logger.WarnContext(ctx, "link refresh skipped",
				"software_id", entry.SoftwareID,
				"error", err,
			)
			continue
		}
		refreshed++
	}
	logger.InfoContext(ctx, "link refresh pass finished",
		"candidates", len(expiring),
		"refreshed", refreshed,
		"outcome", "success",
	)
	return refreshed, nil
}

func (s *Service) refreshOne(ctx context.Context, entry *domain.SoftwareEntry, now time.Time) error {
	if entry.OSSKey == "" {
		return domain.ErrPackageUnavailable
	}
	url, err := s.store.SignURL(ctx, entry.OSSKey, s.cfg.PublishURLTTL)
	if err != nil {
		return errors.Join(domain.ErrLinkGeneration, err)
	}
	expires := now.Add(s.cfg.PublishURLTTL)
	return s.software.SetDownloadURL(ctx, entry.SoftwareID, url, expires)
}

// signPublishURL signs a long-lived link at publish time. Failures are not
// fatal to the catalog write; the on-demand path covers the gap.
func (s *Service) signPublishURL(ctx context.Context, entry *domain.SoftwareEntry) {
	if entry.OSSKey == "" {
		return
	}
	url, err := s.store.SignURL(ctx, entry.OSSKey, s.cfg.PublishURLTTL)
	if err != nil {
		appLogger().WarnContext(ctx, "publish-time sign failed",
			"operation", "sign_publish_url",
			"software_id", entry.SoftwareID,
			"error", err,
		)
		return
	}
	expires := s.nowFn().Add(s.cfg.PublishURLTTL)
	if err := s.software.SetDownloadURL(ctx, entry.SoftwareID, url, expires); err != nil {
		appLogger().WarnContext(ctx, "publish-time url persist failed",
			"operation", "sign_publish_url",
			"software_id", entry.SoftwareID,
			"error", err,
		)
		return
	}
	entry.DownloadURL = url
	entry.DownloadURLExpires = &expires
}
