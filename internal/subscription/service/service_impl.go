package service

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/shopspring/decimal"
	"github.com/smallbiznis/lingohub/internal/clock"
	institutiondomain "github.com/smallbiznis/lingohub/internal/institution/domain"
	"github.com/smallbiznis/lingohub/internal/observability/metrics"
	subscriptiondomain "github.com/smallbiznis/lingohub/internal/subscription/domain"
	tierdomain "github.com/smallbiznis/lingohub/internal/tier/domain"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

const expireBatchSize = 500

var errNoChange = errors.New("subscription_no_change")

type Params struct {
	fx.In

	DB              *gorm.DB
	Log             *zap.Logger
	GenID           *snowflake.Node
	Clock           clock.Clock
	Repo            subscriptiondomain.Repository
	TierRepo        tierdomain.Repository
	InstitutionRepo institutiondomain.Repository
	Metrics         *metrics.Metrics `optional:"true"`
}

type Service struct {
	db              *gorm.DB
	log             *zap.Logger
	genID           *snowflake.Node
	clock           clock.Clock
	repo            subscriptiondomain.Repository
	tierRepo        tierdomain.Repository
	institutionRepo institutiondomain.Repository
	metrics         *metrics.Metrics
}

func NewService(p Params) subscriptiondomain.Service {
	return &Service{
		db:              p.DB,
		log:             p.Log.Named("subscription.service"),
		genID:           p.GenID,
		clock:           p.Clock,
		repo:            p.Repo,
		tierRepo:        p.TierRepo,
		institutionRepo: p.InstitutionRepo,
		metrics:         p.Metrics,
	}
}

// change describes what a mutation wrote besides the row itself.
type change struct {
	action      subscriptiondomain.LogAction
	billing     subscriptiondomain.BillingKind
	periodStart *time.Time
}

type mutateFunc func(tx *gorm.DB, sub *subscriptiondomain.Subscription, now time.Time) (change, error)

func (s *Service) Create(ctx context.Context, req subscriptiondomain.CreateRequest) (*subscriptiondomain.Subscription, error) {
	if !validHolder(req.Holder) {
		return nil, subscriptiondomain.ErrInvalidHolder
	}
	holderID, err := parseID(req.HolderID, subscriptiondomain.ErrInvalidHolderID)
	if err != nil {
		return nil, err
	}
	if !req.PlanType.ValidFor(req.Holder) {
		return nil, subscriptiondomain.ErrInvalidPlanType
	}
	if req.Trial && req.Pending {
		return nil, subscriptiondomain.ErrConflictingStartState
	}

	now := s.clock.Now()
	sub := &subscriptiondomain.Subscription{
		ID:        s.genID.Generate(),
		HolderID:  holderID,
		StartDate: now,
		AutoRenew: req.AutoRenew,
		CreatedAt: now,
		UpdatedAt: now,
		Holder:    req.Holder,
	}

	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if req.Holder == tierdomain.AudienceInstitution {
			institution, err := s.institutionRepo.FindByID(ctx, tx, holderID)
			if err != nil {
				return err
			}
			if institution == nil {
				return subscriptiondomain.ErrHolderNotFound
			}
		}

		existing, err := s.repo.FindByHolder(ctx, tx, req.Holder, holderID, subscriptiondomain.LiveStatuses)
		if err != nil {
			return err
		}
		if existing != nil {
			return subscriptiondomain.ErrActiveSubscriptionExists
		}

		tier, err := s.tierRepo.FindEffective(ctx, tx, req.Holder, req.PlanType, now)
		if err != nil {
			return err
		}
		if tier == nil {
			return tierdomain.ErrTierNotFound
		}
		sub.TierID = tier.ID
		sub.Tier = tier

		amount := decimal.Zero
		switch {
		case req.Pending:
			sub.Status = subscriptiondomain.SubscriptionStatusPending
		case req.Trial:
			sub.Status = subscriptiondomain.SubscriptionStatusTrial
			trialEnds := now.Add(subscriptiondomain.TrialPeriod)
			sub.TrialEndsAt = &trialEnds
		default:
			sub.Status = subscriptiondomain.SubscriptionStatusActive
			end := tier.BillingCycle.Advance(now)
			sub.EndDate = &end
			amount = tier.Price
		}

		if err := s.repo.Insert(ctx, tx, sub); err != nil {
			return err
		}
		if err := s.writeLog(ctx, tx, sub, subscriptiondomain.LogActionCreated, "", nil, snapshot(sub, tier), now); err != nil {
			return err
		}
		if err := s.writeBilling(ctx, tx, sub, tier, subscriptiondomain.BillingKindCreated, amount, sub.StartDate, now); err != nil {
			return err
		}
		return s.refreshCachedRate(ctx, tx, sub, tier, now)
	})
	if err != nil {
		return nil, err
	}

	s.metrics.RecordSubscriptionTransition(ctx, string(sub.Holder), "", string(sub.Status))
	s.log.Info("subscription created",
		zap.String("holder", string(sub.Holder)),
		zap.String("subscription_id", sub.ID.String()),
		zap.String("holder_id", sub.HolderID.String()),
		zap.String("status", string(sub.Status)),
		zap.String("tier_id", sub.TierID.String()),
	)
	return sub, nil
}

func (s *Service) Activate(ctx context.Context, holder tierdomain.Audience, id string) (*subscriptiondomain.Subscription, error) {
	return s.mutateByRawID(ctx, holder, id, func(tx *gorm.DB, sub *subscriptiondomain.Subscription, now time.Time) (change, error) {
		if err := requireFrom(sub, subscriptiondomain.SubscriptionStatusActive,
			subscriptiondomain.SubscriptionStatusPending, subscriptiondomain.SubscriptionStatusTrial); err != nil {
			return change{}, err
		}
		tier, err := s.loadTier(ctx, tx, sub)
		if err != nil {
			return change{}, err
		}
		sub.Status = subscriptiondomain.SubscriptionStatusActive
		startPeriod(sub, tier, now)
		return change{action: subscriptiondomain.LogActionActivated, billing: subscriptiondomain.BillingKindActivated}, nil
	})
}

func (s *Service) Renew(ctx context.Context, holder tierdomain.Audience, id string) (*subscriptiondomain.Subscription, error) {
	return s.mutateByRawID(ctx, holder, id, func(tx *gorm.DB, sub *subscriptiondomain.Subscription, now time.Time) (change, error) {
		if sub.Status != subscriptiondomain.SubscriptionStatusActive {
			return change{}, subscriptiondomain.ErrInvalidStateTransition
		}
		tier, err := s.loadTier(ctx, tx, sub)
		if err != nil {
			return change{}, err
		}
		from := now
		if sub.EndDate != nil && sub.EndDate.After(now) {
			from = *sub.EndDate
		}
		end := tier.BillingCycle.Advance(from)
		sub.EndDate = &end
		return change{
			action:      subscriptiondomain.LogActionRenewed,
			billing:     subscriptiondomain.BillingKindRenewed,
			periodStart: &from,
		}, nil
	})
}

// ChangeTier moves the subscription to the current version of another plan.
// Bookings already priced keep their frozen rate.
func (s *Service) ChangeTier(ctx context.Context, holder tierdomain.Audience, id string, planType tierdomain.PlanType) (*subscriptiondomain.Subscription, error) {
	if !planType.ValidFor(holder) {
		return nil, subscriptiondomain.ErrInvalidPlanType
	}
	return s.mutateByRawID(ctx, holder, id, func(tx *gorm.DB, sub *subscriptiondomain.Subscription, now time.Time) (change, error) {
		switch sub.Status {
		case subscriptiondomain.SubscriptionStatusActive, subscriptiondomain.SubscriptionStatusTrial:
		default:
			return change{}, subscriptiondomain.ErrInvalidStateTransition
		}
		next, err := s.tierRepo.FindEffective(ctx, tx, holder, planType, now)
		if err != nil {
			return change{}, err
		}
		if next == nil {
			return change{}, tierdomain.ErrTierNotFound
		}
		if next.ID == sub.TierID {
			return change{}, errNoChange
		}
		sub.TierID = next.ID
		return change{action: subscriptiondomain.LogActionTierChanged, billing: subscriptiondomain.BillingKindTierChanged}, nil
	})
}

func (s *Service) MarkPastDue(ctx context.Context, holder tierdomain.Audience, id string) (*subscriptiondomain.Subscription, error) {
	return s.mutateByRawID(ctx, holder, id, func(tx *gorm.DB, sub *subscriptiondomain.Subscription, now time.Time) (change, error) {
		if err := requireFrom(sub, subscriptiondomain.SubscriptionStatusPastDue,
			subscriptiondomain.SubscriptionStatusActive, subscriptiondomain.SubscriptionStatusTrial); err != nil {
			return change{}, err
		}
		sub.Status = subscriptiondomain.SubscriptionStatusPastDue
		return change{action: subscriptiondomain.LogActionMarkedPastDue}, nil
	})
}

func (s *Service) ApplyPayment(ctx context.Context, holder tierdomain.Audience, id string) (*subscriptiondomain.Subscription, error) {
	return s.mutateByRawID(ctx, holder, id, func(tx *gorm.DB, sub *subscriptiondomain.Subscription, now time.Time) (change, error) {
		if err := requireFrom(sub, subscriptiondomain.SubscriptionStatusActive,
			subscriptiondomain.SubscriptionStatusPastDue, subscriptiondomain.SubscriptionStatusPending); err != nil {
			return change{}, err
		}
		tier, err := s.loadTier(ctx, tx, sub)
		if err != nil {
			return change{}, err
		}
		sub.Status = subscriptiondomain.SubscriptionStatusActive
		startPeriod(sub, tier, now)
		return change{action: subscriptiondomain.LogActionPaymentApplied, billing: subscriptiondomain.BillingKindPaymentApplied}, nil
	})
}

func (s *Service) Cancel(ctx context.Context, holder tierdomain.Audience, id string) (*subscriptiondomain.Subscription, error) {
	return s.mutateByRawID(ctx, holder, id, func(tx *gorm.DB, sub *subscriptiondomain.Subscription, now time.Time) (change, error) {
		if err := moveTo(sub, subscriptiondomain.SubscriptionStatusCancelled); err != nil {
			return change{}, err
		}
		sub.CancelledAt = &now
		sub.AutoRenew = false
		return change{action: subscriptiondomain.LogActionCancelled}, nil
	})
}

func (s *Service) Expire(ctx context.Context, holder tierdomain.Audience, id string) (*subscriptiondomain.Subscription, error) {
	return s.mutateByRawID(ctx, holder, id, func(tx *gorm.DB, sub *subscriptiondomain.Subscription, now time.Time) (change, error) {
		if err := moveTo(sub, subscriptiondomain.SubscriptionStatusExpired); err != nil {
			return change{}, err
		}
		return change{action: subscriptiondomain.LogActionExpired}, nil
	})
}

// ExpireDue handles lapsed trials and periods. A renewing ACTIVE subscription
// goes PAST_DUE and waits for a payment; everything else expires.
func (s *Service) ExpireDue(ctx context.Context, now time.Time) (int, error) {
	count := 0
	for _, holder := range []tierdomain.Audience{tierdomain.AudienceInstitution, tierdomain.AudienceStudent} {
		due, err := s.repo.ListDue(ctx, s.db, holder, now, expireBatchSize)
		if err != nil {
			return count, err
		}
		for _, candidate := range due {
			_, err := s.mutate(ctx, holder, candidate.ID, func(tx *gorm.DB, sub *subscriptiondomain.Subscription, _ time.Time) (change, error) {
				return expireIfDue(sub, now)
			})
			if errors.Is(err, errNoChange) {
				continue
			}
			if err != nil {
				return count, err
			}
			count++
		}
	}
	return count, nil
}

func expireIfDue(sub *subscriptiondomain.Subscription, now time.Time) (change, error) {
	switch sub.Status {
	case subscriptiondomain.SubscriptionStatusTrial:
		if sub.TrialEndsAt == nil || sub.TrialEndsAt.After(now) {
			return change{}, errNoChange
		}
		sub.Status = subscriptiondomain.SubscriptionStatusExpired
		return change{action: subscriptiondomain.LogActionExpired}, nil
	case subscriptiondomain.SubscriptionStatusActive:
		if sub.EndDate == nil || sub.EndDate.After(now) {
			return change{}, errNoChange
		}
		if sub.AutoRenew {
			sub.Status = subscriptiondomain.SubscriptionStatusPastDue
			return change{action: subscriptiondomain.LogActionMarkedPastDue}, nil
		}
		sub.Status = subscriptiondomain.SubscriptionStatusExpired
		return change{action: subscriptiondomain.LogActionExpired}, nil
	case subscriptiondomain.SubscriptionStatusPending,
		subscriptiondomain.SubscriptionStatusPastDue,
		subscriptiondomain.SubscriptionStatusCancelled,
		subscriptiondomain.SubscriptionStatusExpired:
		return change{}, errNoChange
	default:
		return change{}, subscriptiondomain.ErrInvalidStateTransition
	}
}

func (s *Service) Reprice(ctx context.Context, holder tierdomain.Audience, fromTierID string) (*subscriptiondomain.RepriceResult, error) {
	if !validHolder(holder) {
		return nil, subscriptiondomain.ErrInvalidHolder
	}
	tierID, err := parseID(fromTierID, tierdomain.ErrInvalidID)
	if err != nil {
		return nil, err
	}

	result := &subscriptiondomain.RepriceResult{FromTierID: tierID.String()}
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		from, err := s.tierRepo.FindByIDForUpdate(ctx, tx, holder, tierID)
		if err != nil {
			return err
		}
		if from == nil {
			return tierdomain.ErrTierNotFound
		}
		if from.Current() {
			return subscriptiondomain.ErrTierNotSuperseded
		}

		now := s.clock.Now()
		to, err := s.tierRepo.FindEffective(ctx, tx, holder, from.PlanType, now)
		if err != nil {
			return err
		}
		if to == nil {
			return tierdomain.ErrTierNotFound
		}
		result.ToTierID = to.ID.String()

		subs, err := s.repo.ListLiveByTier(ctx, tx, holder, from.ID)
		if err != nil {
			return err
		}
		for i := range subs {
			sub := &subs[i]
			before := snapshot(sub, from)
			sub.TierID = to.ID
			sub.UpdatedAt = now
			if err := s.repo.Update(ctx, tx, sub); err != nil {
				return err
			}
			if err := s.writeLog(ctx, tx, sub, subscriptiondomain.LogActionRepriced, sub.Status, before, snapshot(sub, to), now); err != nil {
				return err
			}
			if err := s.writeBilling(ctx, tx, sub, to, subscriptiondomain.BillingKindRepriced, to.Price, now, now); err != nil {
				return err
			}
			if err := s.refreshCachedRate(ctx, tx, sub, to, now); err != nil {
				return err
			}
		}
		result.Moved = len(subs)
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.log.Info("subscriptions repriced",
		zap.String("holder", string(holder)),
		zap.String("from_tier_id", result.FromTierID),
		zap.String("to_tier_id", result.ToTierID),
		zap.Int("moved", result.Moved),
	)
	return result, nil
}

func (s *Service) Get(ctx context.Context, holder tierdomain.Audience, id string) (*subscriptiondomain.Subscription, error) {
	sub, err := s.find(ctx, holder, id)
	if err != nil {
		return nil, err
	}
	tier, err := s.tierRepo.FindByID(ctx, s.db, holder, sub.TierID)
	if err != nil {
		return nil, err
	}
	sub.Tier = tier
	return sub, nil
}

func (s *Service) ListByHolder(ctx context.Context, holder tierdomain.Audience, holderID string) ([]subscriptiondomain.Subscription, error) {
	if !validHolder(holder) {
		return nil, subscriptiondomain.ErrInvalidHolder
	}
	id, err := parseID(holderID, subscriptiondomain.ErrInvalidHolderID)
	if err != nil {
		return nil, err
	}
	return s.repo.ListByHolder(ctx, s.db, holder, id)
}

func (s *Service) ListLogs(ctx context.Context, holder tierdomain.Audience, id string) ([]subscriptiondomain.SubscriptionLog, error) {
	sub, err := s.find(ctx, holder, id)
	if err != nil {
		return nil, err
	}
	return s.repo.ListLogs(ctx, s.db, sub.ID)
}

func (s *Service) ListBillingHistory(ctx context.Context, holder tierdomain.Audience, id string) ([]subscriptiondomain.BillingHistory, error) {
	sub, err := s.find(ctx, holder, id)
	if err != nil {
		return nil, err
	}
	return s.repo.ListBillingHistory(ctx, s.db, sub.ID)
}

func (s *Service) find(ctx context.Context, holder tierdomain.Audience, rawID string) (*subscriptiondomain.Subscription, error) {
	if !validHolder(holder) {
		return nil, subscriptiondomain.ErrInvalidHolder
	}
	id, err := parseID(rawID, subscriptiondomain.ErrInvalidSubscriptionID)
	if err != nil {
		return nil, err
	}
	sub, err := s.repo.FindByID(ctx, s.db, holder, id)
	if err != nil {
		return nil, err
	}
	if sub == nil {
		return nil, subscriptiondomain.ErrSubscriptionNotFound
	}
	return sub, nil
}

func (s *Service) mutateByRawID(ctx context.Context, holder tierdomain.Audience, rawID string, fn mutateFunc) (*subscriptiondomain.Subscription, error) {
	if !validHolder(holder) {
		return nil, subscriptiondomain.ErrInvalidHolder
	}
	id, err := parseID(rawID, subscriptiondomain.ErrInvalidSubscriptionID)
	if err != nil {
		return nil, err
	}
	sub, err := s.mutate(ctx, holder, id, fn)
	if errors.Is(err, errNoChange) {
		return sub, nil
	}
	if err != nil {
		return nil, err
	}
	return sub, nil
}

// mutate runs fn against the locked row and persists the row, its log entry,
// an optional billing entry and the cached institution rate in one
// transaction. errNoChange from fn commits nothing and returns the row as is.
func (s *Service) mutate(ctx context.Context, holder tierdomain.Audience, id snowflake.ID, fn mutateFunc) (*subscriptiondomain.Subscription, error) {
	var (
		sub  *subscriptiondomain.Subscription
		from subscriptiondomain.SubscriptionStatus
	)
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var err error
		sub, err = s.repo.FindByIDForUpdate(ctx, tx, holder, id)
		if err != nil {
			return err
		}
		if sub == nil {
			return subscriptiondomain.ErrSubscriptionNotFound
		}
		before, err := s.loadTier(ctx, tx, sub)
		if err != nil {
			return err
		}
		beforeSnap := snapshot(sub, before)
		from = sub.Status
		prevTierID := sub.TierID

		now := s.clock.Now()
		ch, err := fn(tx, sub, now)
		if err != nil {
			return err
		}

		tier := before
		if sub.TierID != prevTierID {
			if tier, err = s.loadTier(ctx, tx, sub); err != nil {
				return err
			}
		}
		sub.Tier = tier
		sub.UpdatedAt = now

		if err := s.repo.Update(ctx, tx, sub); err != nil {
			return err
		}
		if err := s.writeLog(ctx, tx, sub, ch.action, from, beforeSnap, snapshot(sub, tier), now); err != nil {
			return err
		}
		if ch.billing != "" {
			periodStart := sub.StartDate
			if ch.periodStart != nil {
				periodStart = *ch.periodStart
			}
			if err := s.writeBilling(ctx, tx, sub, tier, ch.billing, tier.Price, periodStart, now); err != nil {
				return err
			}
		}
		return s.refreshCachedRate(ctx, tx, sub, tier, now)
	})
	if err != nil {
		return sub, err
	}

	if from != sub.Status {
		s.metrics.RecordSubscriptionTransition(ctx, string(holder), string(from), string(sub.Status))
	}
	s.log.Info("subscription updated",
		zap.String("holder", string(holder)),
		zap.String("subscription_id", sub.ID.String()),
		zap.String("from_status", string(from)),
		zap.String("to_status", string(sub.Status)),
		zap.String("tier_id", sub.TierID.String()),
	)
	return sub, nil
}

func (s *Service) loadTier(ctx context.Context, tx *gorm.DB, sub *subscriptiondomain.Subscription) (*tierdomain.Tier, error) {
	tier, err := s.tierRepo.FindByID(ctx, tx, sub.Holder, sub.TierID)
	if err != nil {
		return nil, err
	}
	if tier == nil {
		return nil, tierdomain.ErrTierNotFound
	}
	return tier, nil
}

func (s *Service) writeLog(
	ctx context.Context,
	tx *gorm.DB,
	sub *subscriptiondomain.Subscription,
	action subscriptiondomain.LogAction,
	from subscriptiondomain.SubscriptionStatus,
	before, after datatypes.JSONMap,
	now time.Time,
) error {
	return s.repo.InsertLog(ctx, tx, &subscriptiondomain.SubscriptionLog{
		ID:             s.genID.Generate(),
		SubscriptionID: sub.ID,
		HolderKind:     subscriptiondomain.HolderKindOf(sub.Holder),
		Action:         action,
		FromStatus:     from,
		ToStatus:       sub.Status,
		Before:         before,
		After:          after,
		CreatedAt:      now,
	})
}

func (s *Service) writeBilling(
	ctx context.Context,
	tx *gorm.DB,
	sub *subscriptiondomain.Subscription,
	tier *tierdomain.Tier,
	kind subscriptiondomain.BillingKind,
	amount decimal.Decimal,
	periodStart time.Time,
	now time.Time,
) error {
	return s.repo.InsertBillingHistory(ctx, tx, &subscriptiondomain.BillingHistory{
		ID:             s.genID.Generate(),
		SubscriptionID: sub.ID,
		HolderKind:     subscriptiondomain.HolderKindOf(sub.Holder),
		Kind:           kind,
		TierID:         tier.ID,
		Amount:         amount,
		Currency:       tier.Currency,
		PeriodStart:    periodStart,
		PeriodEnd:      sub.EndDate,
		CreatedAt:      now,
	})
}

// refreshCachedRate keeps Institution.commission_rate in step with the tier
// an institution is currently on. The cached value is display-only.
func (s *Service) refreshCachedRate(ctx context.Context, tx *gorm.DB, sub *subscriptiondomain.Subscription, tier *tierdomain.Tier, now time.Time) error {
	if sub.Holder != tierdomain.AudienceInstitution || !sub.Status.Effective() || !tier.CommissionRate.Valid {
		return nil
	}
	return s.institutionRepo.UpdateCommissionRate(ctx, tx, sub.HolderID, tier.CommissionRate.Decimal, now)
}

func snapshot(sub *subscriptiondomain.Subscription, tier *tierdomain.Tier) datatypes.JSONMap {
	snap := datatypes.JSONMap{
		"status":    string(sub.Status),
		"tier_id":   sub.TierID.String(),
		"plan_type": string(tier.PlanType),
		"amount":    tier.Price.StringFixed(2),
		"currency":  tier.Currency,
		"rate":      nil,
	}
	if tier.CommissionRate.Valid {
		snap["rate"] = tier.CommissionRate.Decimal.StringFixed(2)
	}
	if sub.EndDate != nil {
		snap["end_date"] = sub.EndDate.Format(time.RFC3339)
	}
	return snap
}

func startPeriod(sub *subscriptiondomain.Subscription, tier *tierdomain.Tier, now time.Time) {
	end := tier.BillingCycle.Advance(now)
	sub.StartDate = now
	sub.EndDate = &end
}

// requireFrom checks that sub may move to target and currently sits in one of
// the allowed source states. Already being at a non-terminal target is a no-op.
func requireFrom(sub *subscriptiondomain.Subscription, target subscriptiondomain.SubscriptionStatus, allowed ...subscriptiondomain.SubscriptionStatus) error {
	if sub.Status.Terminal() {
		return subscriptiondomain.ErrInvalidStateTransition
	}
	if sub.Status == target {
		return errNoChange
	}
	for _, status := range allowed {
		if sub.Status == status && subscriptiondomain.CanTransition(status, target) {
			return nil
		}
	}
	return subscriptiondomain.ErrInvalidStateTransition
}

func moveTo(sub *subscriptiondomain.Subscription, target subscriptiondomain.SubscriptionStatus) error {
	if sub.Status.Terminal() || !subscriptiondomain.CanTransition(sub.Status, target) {
		return subscriptiondomain.ErrInvalidStateTransition
	}
	sub.Status = target
	return nil
}

func validHolder(holder tierdomain.Audience) bool {
	return holder == tierdomain.AudienceInstitution || holder == tierdomain.AudienceStudent
}

func parseID(value string, invalidErr error) (snowflake.ID, error) {
	id, err := snowflake.ParseString(strings.TrimSpace(value))
	if err != nil || id <= 0 {
		return 0, invalidErr
	}
	return id, nil
}
