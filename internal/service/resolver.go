package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/inspeaker/smartlink/internal/models"
	"github.com/inspeaker/smartlink/internal/repository"
	"github.com/inspeaker/smartlink/internal/token"
	"github.com/inspeaker/smartlink/internal/traffic"
	"go.uber.org/zap"
)

// Ошибки резолвера. Снаружи 404 и 403 выглядят одинаково (одна и та же
// страница), но внутри и в аудите причины различаются.
var (
	ErrTokenNotFound = errors.New("короткий код не найден")
	ErrLinkGated     = errors.New("ссылка не проходит ворота публикации/истечения")
)

const resolveCacheTTL = 5 * time.Minute

// Resolution результат успешного прохода конвейера
type Resolution struct {
	TargetURL string
	Kind      traffic.Kind
}

// Resolver конвейер редиректа: декодирование → поиск → ворота →
// классификация → учёт → редирект
type Resolver interface {
	Resolve(ctx context.Context, publicToken, userAgent string) (*Resolution, error)
}

type resolver struct {
	linkRepo  repository.LinkRepository
	cacheRepo repository.CacheRepository
	audit     AuditSink
	logger    *zap.Logger
	loc       *time.Location // часовой пояс, в котором считается граница дня expires_at
}

func NewResolver(
	linkRepo repository.LinkRepository,
	cacheRepo repository.CacheRepository,
	audit AuditSink,
	logger *zap.Logger,
	loc *time.Location,
) Resolver {
	if loc == nil {
		loc = time.UTC
	}
	return &resolver{
		linkRepo:  linkRepo,
		cacheRepo: cacheRepo,
		audit:     audit,
		logger:    logger,
		loc:       loc,
	}
}

// Resolve проводит запрос через конвейер. Возвращает:
//   - Resolution при успехе (дальше — 302 на TargetURL);
//   - ErrTokenNotFound, если код не найден (404);
//   - ErrLinkGated, если группа не опубликована или ссылка истекла (403);
//   - иную ошибку при недоступном хранилище (500).
func (r *resolver) Resolve(ctx context.Context, publicToken, userAgent string) (*Resolution, error) {
	// Decoding: чистая функция, ошибок не бывает — максимум фоллбэк
	code := token.Unmask(publicToken)

	// Lookup: сначала кэш, затем join в базе
	target, err := r.lookup(ctx, code)
	if err != nil {
		return nil, err
	}

	// Gating
	if err := r.gate(target); err != nil {
		r.audit.Record(&models.AuditRecord{
			EntityType: "link",
			EntityID:   target.LinkID,
			Action:     models.ActionBlocked,
			Details:    fmt.Sprintf("%s: %s", target.ShortCode, gateReason(target)),
		})
		return nil, err
	}

	// Classifying
	kind := traffic.Classify(userAgent)

	// Recording: счётчик растёт только для людей; любой сбой учёта
	// проглатывается и не мешает редиректу
	if kind == traffic.Human {
		if err := r.linkRepo.IncrementClicks(ctx, target.LinkID); err != nil {
			r.logger.Warn("Не удалось инкрементировать счётчик кликов",
				zap.String("short_code", target.ShortCode),
				zap.Error(err),
			)
		}
		r.audit.Record(&models.AuditRecord{
			EntityType: "link",
			EntityID:   target.LinkID,
			Action:     models.ActionClickReal,
			Details:    fmt.Sprintf("%s UA=%s", target.ShortCode, userAgent),
		})
	} else {
		r.audit.Record(&models.AuditRecord{
			EntityType: "link",
			EntityID:   target.LinkID,
			Action:     models.ActionCrawlerPreview,
			Details:    fmt.Sprintf("%s UA=%s", target.ShortCode, userAgent),
		})
	}

	// Redirecting
	return &Resolution{TargetURL: target.TargetURL, Kind: kind}, nil
}

func (r *resolver) lookup(ctx context.Context, code string) (*models.ResolveTarget, error) {
	if target, err := r.cacheRepo.Get(ctx, code); err == nil {
		return target, nil
	}

	target, err := r.linkRepo.GetResolveTargetByShortCode(ctx, code)
	if err != nil {
		if errors.Is(err, repository.ErrLinkNotFound) {
			return nil, ErrTokenNotFound
		}
		return nil, err
	}

	if err := r.cacheRepo.Set(ctx, code, target, resolveCacheTTL); err != nil {
		r.logger.Debug("Не удалось закэшировать резолв", zap.String("code", code), zap.Error(err))
	}

	return target, nil
}

// gate ворота резолва: группа опубликована и текущий момент не позже конца
// календарного дня expires_at (включительно, в часовом поясе продукта)
func (r *resolver) gate(target *models.ResolveTarget) error {
	if target.GroupStatus != models.StatusPublished {
		return ErrLinkGated
	}
	if time.Now().After(endOfDay(target.ExpiresAt, r.loc)) {
		return ErrLinkGated
	}
	return nil
}

// endOfDay последний наносекундный момент календарного дня d в поясе loc
func endOfDay(d time.Time, loc *time.Location) time.Time {
	return time.Date(d.Year(), d.Month(), d.Day(), 23, 59, 59, int(time.Second-time.Nanosecond), loc)
}

func gateReason(target *models.ResolveTarget) string {
	if target.GroupStatus != models.StatusPublished {
		return "group unpublished"
	}
	return "expired " + target.ExpiresAt.Format(dateLayout)
}
