package service

import (
	"context"
	"crypto/rand"
	"errors"
	"fmt"
	"math/big"
	"time"

	"github.com/google/uuid"
	"github.com/inspeaker/smartlink/internal/models"
	"github.com/inspeaker/smartlink/internal/repository"
	"github.com/inspeaker/smartlink/internal/token"
	"go.uber.org/zap"
)

// Ошибки сервиса кампаний
var (
	ErrGroupPublished = errors.New("опубликованная группа неизменяема")
	ErrInvalidStatus  = errors.New("неизвестный статус группы")
	ErrInvalidDate    = errors.New("дата должна быть в формате YYYY-MM-DD")
	ErrCodeGeneration = errors.New("не удалось сгенерировать уникальный короткий код")
)

// Константы генерации коротких кодов
const (
	codeSuffixLength = 6
	codeCharset      = "ABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"
	maxCodeAttempts  = 5
	dateLayout       = "2006-01-02"
)

// CampaignService CRUD по дереву Group → Subgroup → Link.
// Каждая мутация даёт ровно одну запись аудита; смена статуса и удаления
// инвалидируют кэш резолва затронутых коротких кодов.
type CampaignService interface {
	CreateGroup(ctx context.Context, name string, subgroupCount int, actor string) (*models.Group, error)
	ListGroups(ctx context.Context) ([]*models.Group, error)
	RenameGroup(ctx context.Context, id, name, actor string) error
	SetGroupStatus(ctx context.Context, id string, status models.GroupStatus, actor string) error
	DeleteGroup(ctx context.Context, id, actor string) error

	CreateSubgroup(ctx context.Context, groupID, name, actor string) (*models.Subgroup, error)
	RenameSubgroup(ctx context.Context, id, name, actor string) error
	DeleteSubgroup(ctx context.Context, id, actor string) error

	CreateLinks(ctx context.Context, subgroupID string, input *models.CreateLinksInput, actor string) ([]*models.Link, error)
	UpdateLink(ctx context.Context, id string, input *models.UpdateLinkInput, actor string) (*models.Link, error)
	DeleteLink(ctx context.Context, id, actor string) error
}

type campaignService struct {
	groupRepo repository.GroupRepository
	linkRepo  repository.LinkRepository
	cacheRepo repository.CacheRepository
	audit     AuditSink
	logger    *zap.Logger
}

func NewCampaignService(
	groupRepo repository.GroupRepository,
	linkRepo repository.LinkRepository,
	cacheRepo repository.CacheRepository,
	audit AuditSink,
	logger *zap.Logger,
) CampaignService {
	return &campaignService{
		groupRepo: groupRepo,
		linkRepo:  linkRepo,
		cacheRepo: cacheRepo,
		audit:     audit,
		logger:    logger,
	}
}

// CreateGroup создаёт группу в статусе unpublished и subgroupCount дефолтных
// подгрупп. Дерево пишется одной транзакцией в репозитории: частично
// созданных групп не бывает.
func (s *campaignService) CreateGroup(ctx context.Context, name string, subgroupCount int, actor string) (*models.Group, error) {
	group := &models.Group{
		ID:        uuid.NewString(),
		Name:      name,
		Status:    models.StatusUnpublished,
		CreatedAt: time.Now().UTC(),
		CreatedBy: actor,
	}

	subgroups := make([]*models.Subgroup, 0, subgroupCount)
	for i := 0; i < subgroupCount; i++ {
		subgroups = append(subgroups, &models.Subgroup{
			ID:        uuid.NewString(),
			GroupID:   group.ID,
			Name:      fmt.Sprintf("Subgrupo %d", i+1),
			CreatedBy: actor,
			Links:     []*models.Link{},
		})
	}

	if err := s.groupRepo.CreateGroupWithSubgroups(ctx, group, subgroups); err != nil {
		return nil, err
	}

	s.audit.Record(&models.AuditRecord{
		EntityType: "group",
		EntityID:   group.ID,
		Action:     models.ActionCreate,
		ActorEmail: actor,
		Details:    fmt.Sprintf("%s (+%d subgrupos)", name, subgroupCount),
	})

	return group, nil
}

func (s *campaignService) ListGroups(ctx context.Context) ([]*models.Group, error) {
	return s.groupRepo.ListGroupsWithTree(ctx)
}

func (s *campaignService) RenameGroup(ctx context.Context, id, name, actor string) error {
	group, err := s.groupRepo.GetGroup(ctx, id)
	if err != nil {
		return err
	}
	if err := mutationAllowed(group); err != nil {
		return err
	}

	if err := s.groupRepo.RenameGroup(ctx, id, name); err != nil {
		return err
	}

	s.audit.Record(&models.AuditRecord{
		EntityType: "group",
		EntityID:   id,
		Action:     models.ActionRename,
		ActorEmail: actor,
		Details:    fmt.Sprintf("%s → %s", group.Name, name),
	})

	return nil
}

// SetGroupStatus переводит группу в любой из двух статусов. Повторная
// установка того же статуса — no-op: published_at не перештамповывается
// и запись аудита не создаётся.
func (s *campaignService) SetGroupStatus(ctx context.Context, id string, status models.GroupStatus, actor string) error {
	if !status.Valid() {
		return ErrInvalidStatus
	}

	group, err := s.groupRepo.GetGroup(ctx, id)
	if err != nil {
		return err
	}
	if group.Status == status {
		return nil
	}

	var publishedAt *time.Time
	if status == models.StatusPublished {
		now := time.Now().UTC()
		publishedAt = &now
	}

	if err := s.groupRepo.SetGroupStatus(ctx, id, status, publishedAt); err != nil {
		return err
	}

	// Ворота публикации изменились: кэшированные резолвы всех ссылок
	// группы больше не действительны
	s.invalidateGroupCache(ctx, id)

	action := models.ActionUnpublish
	if status == models.StatusPublished {
		action = models.ActionPublish
	}
	s.audit.Record(&models.AuditRecord{
		EntityType: "group",
		EntityID:   id,
		Action:     action,
		ActorEmail: actor,
		Details:    group.Name,
	})

	return nil
}

func (s *campaignService) DeleteGroup(ctx context.Context, id, actor string) error {
	group, err := s.groupRepo.GetGroup(ctx, id)
	if err != nil {
		return err
	}
	if err := mutationAllowed(group); err != nil {
		return err
	}

	codes, err := s.groupRepo.DeleteGroupCascade(ctx, id)
	if err != nil {
		return err
	}
	s.dropFromCache(ctx, codes)

	s.audit.Record(&models.AuditRecord{
		EntityType: "group",
		EntityID:   id,
		Action:     models.ActionDelete,
		ActorEmail: actor,
		Details:    fmt.Sprintf("%s (%d enlaces)", group.Name, len(codes)),
	})

	return nil
}

func (s *campaignService) CreateSubgroup(ctx context.Context, groupID, name, actor string) (*models.Subgroup, error) {
	group, err := s.groupRepo.GetGroup(ctx, groupID)
	if err != nil {
		return nil, err
	}
	if err := mutationAllowed(group); err != nil {
		return nil, err
	}

	subgroup := &models.Subgroup{
		ID:        uuid.NewString(),
		GroupID:   groupID,
		Name:      name,
		CreatedBy: actor,
		Links:     []*models.Link{},
	}

	if err := s.groupRepo.CreateSubgroup(ctx, subgroup); err != nil {
		return nil, err
	}

	s.audit.Record(&models.AuditRecord{
		EntityType: "subgroup",
		EntityID:   subgroup.ID,
		Action:     models.ActionCreate,
		ActorEmail: actor,
		Details:    name,
	})

	return subgroup, nil
}

func (s *campaignService) RenameSubgroup(ctx context.Context, id, name, actor string) error {
	subgroup, err := s.groupRepo.GetSubgroup(ctx, id)
	if err != nil {
		return err
	}
	if err := s.guardParentGroup(ctx, subgroup.GroupID); err != nil {
		return err
	}

	if err := s.groupRepo.RenameSubgroup(ctx, id, name); err != nil {
		return err
	}

	s.audit.Record(&models.AuditRecord{
		EntityType: "subgroup",
		EntityID:   id,
		Action:     models.ActionRename,
		ActorEmail: actor,
		Details:    fmt.Sprintf("%s → %s", subgroup.Name, name),
	})

	return nil
}

func (s *campaignService) DeleteSubgroup(ctx context.Context, id, actor string) error {
	subgroup, err := s.groupRepo.GetSubgroup(ctx, id)
	if err != nil {
		return err
	}
	if err := s.guardParentGroup(ctx, subgroup.GroupID); err != nil {
		return err
	}

	codes, err := s.groupRepo.DeleteSubgroupCascade(ctx, id)
	if err != nil {
		return err
	}
	s.dropFromCache(ctx, codes)

	s.audit.Record(&models.AuditRecord{
		EntityType: "subgroup",
		EntityID:   id,
		Action:     models.ActionDelete,
		ActorEmail: actor,
		Details:    fmt.Sprintf("%s (%d enlaces)", subgroup.Name, len(codes)),
	})

	return nil
}

// CreateLinks генерирует count ссылок со свежими уникальными короткими кодами.
// Уникальность гарантирует unique constraint в базе: коллизия кода ловится
// и повторяется с новым кодом, молчаливой перезаписи не бывает.
func (s *campaignService) CreateLinks(ctx context.Context, subgroupID string, input *models.CreateLinksInput, actor string) ([]*models.Link, error) {
	subgroup, err := s.groupRepo.GetSubgroup(ctx, subgroupID)
	if err != nil {
		return nil, err
	}
	if err := s.guardParentGroup(ctx, subgroup.GroupID); err != nil {
		return nil, err
	}

	expiresAt, err := time.Parse(dateLayout, input.ExpiresAt)
	if err != nil {
		return nil, ErrInvalidDate
	}

	links := make([]*models.Link, 0, input.Count)
	for i := 0; i < input.Count; i++ {
		link := &models.Link{
			ID:         uuid.NewString(),
			SubgroupID: subgroupID,
			Label:      input.Label,
			TargetURL:  input.TargetURL,
			Clicks:     0,
			CreatedAt:  time.Now().UTC(),
			ExpiresAt:  expiresAt,
			CreatedBy:  actor,
		}

		if err := s.createWithFreshCode(ctx, link); err != nil {
			return nil, err
		}
		links = append(links, link)
	}

	s.audit.Record(&models.AuditRecord{
		EntityType: "link",
		EntityID:   subgroupID,
		Action:     models.ActionCreate,
		ActorEmail: actor,
		Details:    fmt.Sprintf("%d enlaces → %s", len(links), input.TargetURL),
	})

	return links, nil
}

func (s *campaignService) UpdateLink(ctx context.Context, id string, input *models.UpdateLinkInput, actor string) (*models.Link, error) {
	link, err := s.linkRepo.GetLink(ctx, id)
	if err != nil {
		return nil, err
	}

	subgroup, err := s.groupRepo.GetSubgroup(ctx, link.SubgroupID)
	if err != nil {
		return nil, err
	}
	if err := s.guardParentGroup(ctx, subgroup.GroupID); err != nil {
		return nil, err
	}

	if input.Label != nil {
		link.Label = *input.Label
	}
	if input.TargetURL != nil {
		link.TargetURL = *input.TargetURL
	}
	if input.ExpiresAt != nil {
		expiresAt, err := time.Parse(dateLayout, *input.ExpiresAt)
		if err != nil {
			return nil, ErrInvalidDate
		}
		link.ExpiresAt = expiresAt
	}

	if err := s.linkRepo.Update(ctx, link); err != nil {
		return nil, err
	}
	s.dropFromCache(ctx, []string{link.ShortCode})

	s.audit.Record(&models.AuditRecord{
		EntityType: "link",
		EntityID:   id,
		Action:     models.ActionUpdate,
		ActorEmail: actor,
		Details:    link.ShortCode,
	})

	return link, nil
}

func (s *campaignService) DeleteLink(ctx context.Context, id, actor string) error {
	link, err := s.linkRepo.GetLink(ctx, id)
	if err != nil {
		return err
	}

	subgroup, err := s.groupRepo.GetSubgroup(ctx, link.SubgroupID)
	if err != nil {
		return err
	}
	if err := s.guardParentGroup(ctx, subgroup.GroupID); err != nil {
		return err
	}

	if err := s.linkRepo.Delete(ctx, id); err != nil {
		return err
	}
	s.dropFromCache(ctx, []string{link.ShortCode})

	s.audit.Record(&models.AuditRecord{
		EntityType: "link",
		EntityID:   id,
		Action:     models.ActionDelete,
		ActorEmail: actor,
		Details:    link.ShortCode,
	})

	return nil
}

// createWithFreshCode вставляет ссылку, повторяя генерацию кода при
// коллизии unique constraint
func (s *campaignService) createWithFreshCode(ctx context.Context, link *models.Link) error {
	for attempt := 0; attempt < maxCodeAttempts; attempt++ {
		code, err := generateShortCode()
		if err != nil {
			return fmt.Errorf("failed to generate code: %w", err)
		}
		link.ShortCode = code

		err = s.linkRepo.Create(ctx, link)
		if err == nil {
			return nil
		}
		if !errors.Is(err, repository.ErrCodeExists) {
			return err
		}

		s.logger.Debug("Коллизия короткого кода, повторная генерация",
			zap.String("code", code),
			zap.Int("attempt", attempt+1),
		)
	}

	return ErrCodeGeneration
}

// generateShortCode генерирует код вида INS-XXXXXX из криптостойкого источника
func generateShortCode() (string, error) {
	suffix := make([]byte, codeSuffixLength)
	for i := 0; i < codeSuffixLength; i++ {
		num, err := rand.Int(rand.Reader, big.NewInt(int64(len(codeCharset))))
		if err != nil {
			return "", err
		}
		suffix[i] = codeCharset[num.Int64()]
	}
	return token.CodePrefix + string(suffix), nil
}

// mutationAllowed единая политика: опубликованная группа неизменяема,
// кроме самого перехода статуса
func mutationAllowed(group *models.Group) error {
	if group.Status == models.StatusPublished {
		return ErrGroupPublished
	}
	return nil
}

// guardParentGroup применяет политику публикации к мутациям потомков
func (s *campaignService) guardParentGroup(ctx context.Context, groupID string) error {
	group, err := s.groupRepo.GetGroup(ctx, groupID)
	if err != nil {
		return err
	}
	return mutationAllowed(group)
}

// invalidateGroupCache сбрасывает кэш резолва всех ссылок группы
func (s *campaignService) invalidateGroupCache(ctx context.Context, groupID string) {
	codes, err := s.linkRepo.ListShortCodesByGroup(ctx, groupID)
	if err != nil {
		s.logger.Warn("Не удалось собрать коды группы для сброса кэша",
			zap.String("group_id", groupID),
			zap.Error(err),
		)
		return
	}
	s.dropFromCache(ctx, codes)
}

// dropFromCache сбрасывает коды из кэша; сбой кэша не фатален
func (s *campaignService) dropFromCache(ctx context.Context, codes []string) {
	if len(codes) == 0 {
		return
	}
	if err := s.cacheRepo.DeleteMany(ctx, codes); err != nil {
		s.logger.Warn("Не удалось сбросить кэш резолва",
			zap.Int("codes", len(codes)),
			zap.Error(err),
		)
	}
}
