package application

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"io"
	"path"
	"strings"

	"github.com/google/uuid"

	"github.com/PykeW/update-all/internal/domain"
	"github.com/PykeW/update-all/internal/ports"
)

// CreateSoftware publishes a new catalog entry. When the entry already carries
// an object key a long-lived download link is signed immediately.
func (s *Service) CreateSoftware(ctx context.Context, actor Actor, in CreateSoftwareInput) (*domain.SoftwareEntry, error) {
	if !actor.isAdmin() {
		return nil, domain.ErrForbidden
	}
	if err := validateCreate(in); err != nil {
		return nil, err
	}

	now := s.nowFn()
	entry := &domain.SoftwareEntry{
		SoftwareID:    uuid.New(),
		Name:          strings.TrimSpace(in.Name),
		Version:       strings.TrimSpace(in.Version),
		Description:   in.Description,
		Category:      in.Category,
		Platforms:     in.Platforms,
		SizeBytes:     in.SizeBytes,
		Icon:          in.Icon,
		PublisherID:   actor.UserID,
		IsPublished:   in.IsPublished,
		IsRecommended: in.IsRecommended,
		OSSKey:        in.OSSKey,
		CreatedAt:     now,
		UpdatedAt:     now,
	}
	if err := s.software.Create(ctx, *entry); err != nil {
		return nil, fmt.Errorf("create software: %w", err)
	}

	s.signPublishURL(ctx, entry)
	return entry, nil
}

func validateCreate(in CreateSoftwareInput) error {
	if strings.TrimSpace(in.Name) == "" {
		return fmt.Errorf("name is required: %w", domain.ErrInvalidInput)
	}
	if strings.TrimSpace(in.Version) == "" {
		return fmt.Errorf("version is required: %w", domain.ErrInvalidInput)
	}
	if in.SizeBytes < 0 {
		return fmt.Errorf("size must not be negative: %w", domain.ErrInvalidInput)
	}
	for _, p := range in.Platforms {
		if !domain.IsValidPlatform(p) {
			return fmt.Errorf("unknown platform %q: %w", p, domain.ErrInvalidInput)
		}
	}
	return nil
}

func (s *Service) GetSoftware(ctx context.Context, actor Actor, id uuid.UUID) (*domain.SoftwareEntry, error) {
	entry, err := s.software.GetByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("load software %s: %w", id, err)
	}
	if !entry.IsPublished && !actor.isAdmin() {
		return nil, domain.ErrNotFound
	}
	return entry, nil
}

// ListSoftware pages the catalog. Non-admin callers only ever see published
// entries regardless of the requested filter.
func (s *Service) ListSoftware(ctx context.Context, actor Actor, category, platform string, p Pagination) (SoftwarePage, error) {
	p = s.clampPage(p)

	query := ports.SoftwareQuery{
		Category: category,
		Platform: platform,
		Limit:    p.PageSize,
		Offset:   (p.Page - 1) * p.PageSize,
	}
	if !actor.isAdmin() {
		published := true
		query.Published = &published
	}

	items, total, err := s.software.List(ctx, query)
	if err != nil {
		return SoftwarePage{}, fmt.Errorf("list software: %w", err)
	}
	return SoftwarePage{Items: items, Total: total, Page: p.Page, Pages: pageCount(total, p.PageSize)}, nil
}

func (s *Service) SearchSoftware(ctx context.Context, actor Actor, keyword string, p Pagination) (SoftwarePage, error) {
	keyword = strings.TrimSpace(keyword)
	if keyword == "" {
		return SoftwarePage{}, fmt.Errorf("search keyword is required: %w", domain.ErrInvalidInput)
	}
	p = s.clampPage(p)

	items, total, err := s.software.Search(ctx, keyword, !actor.isAdmin(), p.PageSize, (p.Page-1)*p.PageSize)
	if err != nil {
		return SoftwarePage{}, fmt.Errorf("search software: %w", err)
	}
	return SoftwarePage{Items: items, Total: total, Page: p.Page, Pages: pageCount(total, p.PageSize)}, nil
}

func (s *Service) RecommendedSoftware(ctx context.Context, limit int) ([]domain.SoftwareEntry, error) {
	if limit <= 0 || limit > s.cfg.MaxPageSize {
		limit = s.cfg.DefaultPageSize
	}
	items, err := s.software.ListRecommended(ctx, limit)
	if err != nil {
		return nil, fmt.Errorf("list recommended software: %w", err)
	}
	return items, nil
}

// UpdateSoftware applies a partial update. A changed object key invalidates
// the stored link so the next download re-signs against the new object.
func (s *Service) UpdateSoftware(ctx context.Context, actor Actor, id uuid.UUID, in UpdateSoftwareInput) (*domain.SoftwareEntry, error) {
	if !actor.isAdmin() {
		return nil, domain.ErrForbidden
	}
	for _, p := range in.Platforms {
		if !domain.IsValidPlatform(p) {
			return nil, fmt.Errorf("unknown platform %q: %w", p, domain.ErrInvalidInput)
		}
	}

	current, err := s.software.GetByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("load software %s: %w", id, err)
	}

	upd := ports.SoftwareUpdate{
		Name:          in.Name,
		Version:       in.Version,
		Description:   in.Description,
		Category:      in.Category,
		Platforms:     in.Platforms,
		SizeBytes:     in.SizeBytes,
		Icon:          in.Icon,
		OSSKey:        in.OSSKey,
		IsPublished:   in.IsPublished,
		IsRecommended: in.IsRecommended,
	}
	keyChanged := in.OSSKey != nil && *in.OSSKey != current.OSSKey
	if keyChanged {
		upd.ClearDownloadURL = true
	}

	if err := s.software.Update(ctx, id, upd, s.nowFn()); err != nil {
		return nil, fmt.Errorf("update software %s: %w", id, err)
	}

	entry, err := s.software.GetByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("reload software %s: %w", id, err)
	}
	if keyChanged {
		s.signPublishURL(ctx, entry)
	}
	return entry, nil
}

// DeleteSoftware removes the catalog entry. The backing object is deleted
// best-effort; storage failures do not keep the record alive.
func (s *Service) DeleteSoftware(ctx context.Context, actor Actor, id uuid.UUID) error {
	if !actor.isAdmin() {
		return domain.ErrForbidden
	}
	entry, err := s.software.GetByID(ctx, id)
	if err != nil {
		return fmt.Errorf("load software %s: %w", id, err)
	}

	if entry.OSSKey != "" {
		if err := s.store.Delete(ctx, entry.OSSKey); err != nil {
			appLogger().WarnContext(ctx, "backing object delete failed",
				"operation", "delete_software",
				"software_id", id,
				"oss_key", entry.OSSKey,
				"error", err,
			)
		}
	}
	if err := s.software.Delete(ctx, id); err != nil {
		return fmt.Errorf("delete software %s: %w", id, err)
	}
	return nil
}

// UploadPackage streams an installer payload into object storage under a
// collision-free key derived from the upload instant.
func (s *Service) UploadPackage(ctx context.Context, actor Actor, in UploadInput, payload io.Reader) (UploadResult, error) {
	if !actor.isAdmin() {
		return UploadResult{}, domain.ErrForbidden
	}
	ext := strings.ToLower(path.Ext(in.Filename))
	if !s.extensionAllowed(ext) {
		return UploadResult{}, fmt.Errorf("file type %q is not allowed: %w", ext, domain.ErrInvalidInput)
	}
	if in.SizeBytes > s.cfg.MaxUploadBytes {
		return UploadResult{}, fmt.Errorf("file exceeds %d bytes: %w", s.cfg.MaxUploadBytes, domain.ErrInvalidInput)
	}

	key := s.objectKey(ext)
	res, err := s.store.Put(ctx, key, payload, in.ContentType)
	if err != nil {
		return UploadResult{}, fmt.Errorf("store package %s: %w", key, err)
	}
	return UploadResult{OSSKey: res.Key, ETag: res.ETag, SizeBytes: in.SizeBytes}, nil
}

func (s *Service) extensionAllowed(ext string) bool {
	for _, allowed := range s.cfg.AllowedExtensions {
		if ext == allowed {
			return true
		}
	}
	return false
}

func (s *Service) objectKey(ext string) string {
	suffix := make([]byte, 8)
	if _, err := rand.Read(suffix); err != nil {
		// crypto/rand only fails when the platform entropy source is
		// broken; fall back to the uuid source.
		u := uuid.New()
		copy(suffix, u[:])
	}
	return fmt.Sprintf("software/%d-%s%s", s.nowFn().UnixMilli(), hex.EncodeToString(suffix), ext)
}
