package access

import (
	"context"
	"time"

	"serialfic-monetization/pkg/errutil"
	"serialfic-monetization/pkg/logger"
	"serialfic-monetization/pkg/repository"
	"serialfic-monetization/services/catalog"
	"serialfic-monetization/services/monetization"

	"github.com/bwmarrin/snowflake"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

var accessChecks = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "chapter_access_checks_total",
	Help: "Chapter access decisions by reason.",
}, []string{"reason"})

type Service struct {
	db      *gorm.DB
	node    *snowflake.Node
	catalog catalog.Reader
	policy  monetization.Policy
	now     func() time.Time

	grants repository.Repository[EntitlementGrant]
}

type ServiceParams struct {
	fx.In
	DB      *gorm.DB
	Node    *snowflake.Node
	Catalog catalog.Reader
	Policy  monetization.Policy
}

func NewService(p ServiceParams) *Service {
	return &Service{
		db:      p.DB,
		node:    p.Node,
		catalog: p.Catalog,
		policy:  p.Policy,
		now:     time.Now,

		grants: repository.ProvideStore[EntitlementGrant](p.DB),
	}
}

// HasAccess decides whether userID may read chapterID. An empty userID is an
// anonymous reader.
func (s *Service) HasAccess(ctx context.Context, userID, chapterID string) (Decision, error) {
	meta, err := s.catalog.ChapterMetadata(ctx, chapterID)
	if err != nil {
		return Decision{}, err
	}

	d := Decision{
		NovelID:       meta.NovelID,
		ChapterNumber: meta.ChapterNumber,
		CoinCost:      s.policy.CoinCost(meta.CoinCost),
	}
	defer func() { accessChecks.WithLabelValues(d.Reason).Inc() }()

	switch {
	case !meta.IsPaid():
		d.CanAccess, d.AccessType, d.Reason = true, AccessFree, ReasonFreeNovel
		s.recordFreeRead(ctx, userID, meta)
		return d, nil
	case s.policy.IsFreeSample(meta.ChapterNumber):
		d.CanAccess, d.AccessType, d.Reason = true, AccessFree, ReasonFreeSample
		s.recordFreeRead(ctx, userID, meta)
		return d, nil
	case userID == "":
		d.Reason = errutil.ReasonLoginRequired
		return d, nil
	}

	grant, err := s.FindGrant(ctx, nil, userID, chapterID)
	if err != nil {
		return Decision{}, err
	}
	if grant != nil && grant.AccessType.Unlocks() {
		d.CanAccess, d.AccessType, d.Reason = true, grant.AccessType, ReasonUnlocked
		return d, nil
	}

	d.Reason = ReasonPurchaseRequired
	return d, nil
}

// recordFreeRead stores a free grant for signed-in readers. Failures never
// affect the access decision.
func (s *Service) recordFreeRead(ctx context.Context, userID string, meta *catalog.ChapterMetadata) {
	if userID == "" {
		return
	}
	if _, err := s.Grant(ctx, GrantParams{
		UserID:     userID,
		ChapterID:  meta.ChapterID,
		NovelID:    meta.NovelID,
		AccessType: AccessFree,
	}); err != nil {
		logger.FromContext(ctx).Warn("failed to record free read",
			zap.String("user_id", userID),
			zap.String("chapter_id", meta.ChapterID),
			zap.Error(err),
		)
	}
}

// FindGrant returns nil when the user holds no grant for the chapter. A nil
// tx reads outside any transaction.
func (s *Service) FindGrant(ctx context.Context, tx *gorm.DB, userID, chapterID string) (*EntitlementGrant, error) {
	g, err := s.grants.WithTrx(tx).FindOne(ctx, &EntitlementGrant{UserID: userID, ChapterID: chapterID})
	if err != nil {
		return nil, errutil.Internal("failed to load entitlement", err)
	}
	return g, nil
}

// Grant upserts the (user, chapter) grant. The same or a higher tier
// replaces the record; a lower tier leaves it untouched.
func (s *Service) Grant(ctx context.Context, p GrantParams) (*EntitlementGrant, error) {
	if p.UserID == "" || p.ChapterID == "" || !p.AccessType.Valid() {
		return nil, errutil.ValidationFailed("invalid grant", nil)
	}

	grant, existing, err := s.insertGrant(ctx, s.db, p)
	if err != nil || existing == nil {
		return grant, err
	}
	if existing.AccessType.Outranks(p.AccessType) {
		return existing, nil
	}

	if err := s.grants.Update(ctx, existing.ID, &map[string]any{
		"access_type": p.AccessType,
		"novel_id":    p.NovelID,
		"granted_at":  grant.GrantedAt,
	}); err != nil {
		return nil, errutil.Internal("failed to update entitlement", err)
	}

	existing.AccessType = p.AccessType
	existing.NovelID = p.NovelID
	existing.GrantedAt = grant.GrantedAt
	return existing, nil
}

// ClaimTx records a paid unlock inside the caller's transaction. It never
// overwrites another paid unlock: if a concurrent request got there first
// the claim fails with ALREADY_UNLOCKED and the caller rolls back. A free
// grant is upgraded in place.
func (s *Service) ClaimTx(ctx context.Context, tx *gorm.DB, p GrantParams) (*EntitlementGrant, error) {
	if p.UserID == "" || p.ChapterID == "" || !p.AccessType.Unlocks() {
		return nil, errutil.ValidationFailed("invalid unlock claim", nil)
	}

	grant, existing, err := s.insertGrant(ctx, tx, p)
	if err != nil || existing == nil {
		return grant, err
	}
	if existing.AccessType.Unlocks() {
		return nil, alreadyUnlocked()
	}

	res := tx.WithContext(ctx).
		Model(&EntitlementGrant{}).
		Where("id = ? AND access_type = ?", existing.ID, existing.AccessType).
		Updates(map[string]any{
			"access_type": p.AccessType,
			"novel_id":    p.NovelID,
			"granted_at":  grant.GrantedAt,
		})
	if res.Error != nil {
		return nil, errutil.Internal("failed to upgrade entitlement", res.Error)
	}
	if res.RowsAffected == 0 {
		return nil, alreadyUnlocked()
	}

	existing.AccessType = p.AccessType
	existing.NovelID = p.NovelID
	existing.GrantedAt = grant.GrantedAt
	return existing, nil
}

func alreadyUnlocked() error {
	return errutil.Conflict("chapter already unlocked", nil, errutil.WithReason(errutil.ReasonAlreadyUnlocked))
}

// insertGrant inserts p unless the pair already has a grant, in which case
// the stored grant comes back as existing.
func (s *Service) insertGrant(ctx context.Context, tx *gorm.DB, p GrantParams) (grant, existing *EntitlementGrant, err error) {
	grant = &EntitlementGrant{
		ID:         s.node.Generate().String(),
		UserID:     p.UserID,
		ChapterID:  p.ChapterID,
		NovelID:    p.NovelID,
		AccessType: p.AccessType,
		GrantedAt:  s.now(),
	}

	res := tx.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "user_id"}, {Name: "chapter_id"}},
			DoNothing: true,
		}).
		Create(grant)
	if res.Error != nil {
		return nil, nil, errutil.Internal("failed to create entitlement", res.Error)
	}
	if res.RowsAffected == 1 {
		return grant, nil, nil
	}

	existing, err = s.FindGrant(ctx, tx, p.UserID, p.ChapterID)
	if err != nil {
		return nil, nil, err
	}
	if existing == nil {
		return nil, nil, errutil.Internal("entitlement disappeared during upsert", nil)
	}
	return grant, existing, nil
}

func Models() []any {
	return []any{&EntitlementGrant{}}
}
