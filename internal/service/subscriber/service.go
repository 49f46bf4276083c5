package subscriber

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/luminapress/comms-engine/internal/domain"
	"github.com/luminapress/comms-engine/internal/pkg/logger"
)

// Service implements subscriber registry business logic. All public methods
// are safe for concurrent use if the underlying repository is
// concurrency-safe.
type Service struct {
	repo Repository
	now  func() time.Time
}

// NewService creates a registry service backed by the given repository.
func NewService(repo Repository) *Service {
	return &Service{repo: repo, now: time.Now}
}

// Draft is a transient enrollment handle. It is never persisted by the
// registry itself; the verification session carries the draft identifiers
// until commit.
type Draft struct {
	Email    string
	Phone    string
	Existing *domain.Subscriber // non-nil if an enrollment already exists for the identifier
}

// Get returns a single subscriber.
func (s *Service) Get(ctx context.Context, id string) (*domain.Subscriber, error) {
	return s.repo.Get(ctx, id)
}

// UpsertDraft resolves an email and/or phone to an existing subscriber or a
// fresh draft handle. Idempotent: repeated calls with the same identifier
// return the same existing record.
func (s *Service) UpsertDraft(ctx context.Context, email, phone string) (*Draft, error) {
	if email == "" && phone == "" {
		return nil, ErrInvalidIdentifier
	}
	if email != "" && !domain.ValidEmail(email) {
		return nil, ErrInvalidIdentifier
	}
	if phone != "" && !domain.ValidPhone(phone) {
		return nil, ErrInvalidIdentifier
	}

	d := &Draft{Email: email, Phone: phone}
	if email != "" {
		if existing, err := s.repo.GetByEmail(ctx, email); err == nil {
			d.Existing = existing
			return d, nil
		} else if !errors.Is(err, ErrNotFound) {
			return nil, fmt.Errorf("lookup by email: %w", err)
		}
	}
	if phone != "" {
		if existing, err := s.repo.GetByPhone(ctx, phone); err == nil {
			d.Existing = existing
			return d, nil
		} else if !errors.Is(err, ErrNotFound) {
			return nil, fmt.Errorf("lookup by phone: %w", err)
		}
	}
	return d, nil
}

// CommitVerified creates or activates a subscriber from a completed
// verification. The email is the primary identifier: committing against an
// already-active subscriber fails with ErrDuplicateActiveSubscriber so the
// caller can decide whether re-enrollment is a success or a conflict.
func (s *Service) CommitVerified(ctx context.Context, d *Draft, verified []domain.Channel, prefs domain.Preferences) (*domain.Subscriber, error) {
	if !prefs.Validate() {
		return nil, ErrInvalidPreferences
	}

	optIns := domain.ChannelSet(verified)
	emailVerified := optIns.Contains(domain.ChannelEmail)
	phoneVerified := optIns.Contains(domain.ChannelWhatsApp) || optIns.Contains(domain.ChannelSMS)

	if d.Existing != nil {
		if d.Existing.Status == domain.SubscriberActive {
			return nil, ErrDuplicateActiveSubscriber
		}
		// Reactivation path: refresh verification state and preferences on
		// the existing row.
		sub := *d.Existing
		sub.ChannelOptIns = optIns
		sub.EmailVerified = sub.EmailVerified || emailVerified
		sub.PhoneVerified = sub.PhoneVerified || phoneVerified
		sub.Preferences = prefs
		if d.Phone != "" {
			sub.Phone = d.Phone
		}
		if sub.FullyVerified() && domain.CanTransitionSubscriber(sub.Status, domain.SubscriberActive) {
			sub.Status = domain.SubscriberActive
		}
		sub.UpdatedAt = s.now()
		if err := s.repo.Update(ctx, &sub); err != nil {
			return nil, fmt.Errorf("reactivate subscriber: %w", err)
		}
		logger.Info("subscriber reactivated", "subscriber_id", sub.ID, "status", string(sub.Status))
		return &sub, nil
	}

	now := s.now()
	sub := &domain.Subscriber{
		ID:            uuid.New().String(),
		Email:         d.Email,
		Phone:         d.Phone,
		ChannelOptIns: optIns,
		Status:        domain.SubscriberPending,
		Preferences:   prefs,
		EmailVerified: emailVerified,
		PhoneVerified: phoneVerified,
		CreatedAt:     now,
		UpdatedAt:     now,
	}
	if sub.FullyVerified() {
		sub.Status = domain.SubscriberActive
	}
	if err := s.repo.Create(ctx, sub); err != nil {
		return nil, fmt.Errorf("create subscriber: %w", err)
	}
	logger.Info("subscriber enrolled", "subscriber_id", sub.ID, "email", sub.Email, "status", string(sub.Status))
	return sub, nil
}

// ListActiveByChannel returns the active subscribers opted into a channel.
// Used by the dispatcher to resolve campaign audiences.
func (s *Service) ListActiveByChannel(ctx context.Context, ch domain.Channel) ([]domain.Subscriber, error) {
	return s.repo.ListActiveByChannel(ctx, ch)
}

// UpdateStatus enforces the legal transition table before persisting.
func (s *Service) UpdateStatus(ctx context.Context, id string, status domain.SubscriberStatus) error {
	sub, err := s.repo.Get(ctx, id)
	if err != nil {
		return err
	}
	if !domain.CanTransitionSubscriber(sub.Status, status) {
		return fmt.Errorf("%w: %s -> %s", ErrInvalidStatusTransition, sub.Status, status)
	}
	return s.repo.UpdateStatus(ctx, id, status)
}

// UpdatePreferences replaces the preferences record for a subscriber.
func (s *Service) UpdatePreferences(ctx context.Context, id string, prefs domain.Preferences) (*domain.Subscriber, error) {
	if !prefs.Validate() {
		return nil, ErrInvalidPreferences
	}
	sub, err := s.repo.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	sub.Preferences = prefs
	sub.UpdatedAt = s.now()
	if err := s.repo.Update(ctx, sub); err != nil {
		return nil, fmt.Errorf("update preferences: %w", err)
	}
	return sub, nil
}

// Patch holds the fields a bulk update may set. Nil fields are not applied.
type Patch struct {
	Status      *domain.SubscriberStatus
	Preferences *domain.Preferences
}

// BulkResult reports the outcome for one subscriber in a bulk operation.
type BulkResult struct {
	SubscriberID string `json:"subscriber_id"`
	Error        string `json:"error,omitempty"`
}

// BulkUpdate applies the patch per id. Partial failure returns a per-id
// result list; one bad id never aborts the whole batch.
func (s *Service) BulkUpdate(ctx context.Context, ids []string, patch Patch) []BulkResult {
	results := make([]BulkResult, 0, len(ids))
	for _, id := range ids {
		res := BulkResult{SubscriberID: id}
		if err := s.applyPatch(ctx, id, patch); err != nil {
			res.Error = err.Error()
		}
		results = append(results, res)
	}
	return results
}

func (s *Service) applyPatch(ctx context.Context, id string, patch Patch) error {
	if patch.Status != nil {
		if err := s.UpdateStatus(ctx, id, *patch.Status); err != nil {
			return err
		}
	}
	if patch.Preferences != nil {
		if _, err := s.UpdatePreferences(ctx, id, *patch.Preferences); err != nil {
			return err
		}
	}
	return nil
}

// BulkDelete tombstones each id, returning per-id results.
func (s *Service) BulkDelete(ctx context.Context, ids []string) []BulkResult {
	results := make([]BulkResult, 0, len(ids))
	for _, id := range ids {
		res := BulkResult{SubscriberID: id}
		if err := s.repo.Tombstone(ctx, id); err != nil {
			res.Error = err.Error()
		}
		results = append(results, res)
	}
	return results
}
