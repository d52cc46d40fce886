package mocks

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/inspeaker/smartlink/internal/models"
	"github.com/inspeaker/smartlink/internal/repository"
)

// MockGroupRepository implements repository.GroupRepository for testing
type MockGroupRepository struct {
	mu        sync.RWMutex
	groups    map[string]*models.Group
	subgroups map[string]*models.Subgroup
	links     *MockLinkRepository // для каскадов и сборки дерева
}

func NewMockGroupRepository(links *MockLinkRepository) *MockGroupRepository {
	return &MockGroupRepository{
		groups:    make(map[string]*models.Group),
		subgroups: make(map[string]*models.Subgroup),
		links:     links,
	}
}

func (m *MockGroupRepository) CreateGroupWithSubgroups(ctx context.Context, group *models.Group, subgroups []*models.Subgroup) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	g := *group
	m.groups[group.ID] = &g
	for _, sg := range subgroups {
		copied := *sg
		m.subgroups[sg.ID] = &copied
	}
	group.Subgroups = subgroups
	return nil
}

func (m *MockGroupRepository) GetGroup(ctx context.Context, id string) (*models.Group, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	g, ok := m.groups[id]
	if !ok {
		return nil, repository.ErrGroupNotFound
	}
	copied := *g
	return &copied, nil
}

func (m *MockGroupRepository) ListGroupsWithTree(ctx context.Context) ([]*models.Group, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := []*models.Group{}
	for _, g := range m.groups {
		copied := *g
		copied.Subgroups = []*models.Subgroup{}
		for _, sg := range m.subgroups {
			if sg.GroupID != g.ID {
				continue
			}
			sgCopy := *sg
			sgCopy.Links = m.links.linksBySubgroup(sg.ID)
			copied.Subgroups = append(copied.Subgroups, &sgCopy)
		}
		out = append(out, &copied)
	}
	return out, nil
}

func (m *MockGroupRepository) RenameGroup(ctx context.Context, id, name string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	g, ok := m.groups[id]
	if !ok {
		return repository.ErrGroupNotFound
	}
	g.Name = name
	return nil
}

func (m *MockGroupRepository) SetGroupStatus(ctx context.Context, id string, status models.GroupStatus, publishedAt *time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	g, ok := m.groups[id]
	if !ok {
		return repository.ErrGroupNotFound
	}
	g.Status = status
	g.PublishedAt = publishedAt
	return nil
}

func (m *MockGroupRepository) DeleteGroupCascade(ctx context.Context, id string) ([]string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.groups[id]; !ok {
		return nil, repository.ErrGroupNotFound
	}

	var codes []string
	for sgID, sg := range m.subgroups {
		if sg.GroupID != id {
			continue
		}
		codes = append(codes, m.links.deleteBySubgroup(sgID)...)
		delete(m.subgroups, sgID)
	}
	delete(m.groups, id)
	return codes, nil
}

func (m *MockGroupRepository) CreateSubgroup(ctx context.Context, subgroup *models.Subgroup) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	copied := *subgroup
	m.subgroups[subgroup.ID] = &copied
	return nil
}

func (m *MockGroupRepository) GetSubgroup(ctx context.Context, id string) (*models.Subgroup, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	sg, ok := m.subgroups[id]
	if !ok {
		return nil, repository.ErrSubgroupNotFound
	}
	copied := *sg
	return &copied, nil
}

func (m *MockGroupRepository) RenameSubgroup(ctx context.Context, id, name string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	sg, ok := m.subgroups[id]
	if !ok {
		return repository.ErrSubgroupNotFound
	}
	sg.Name = name
	return nil
}

func (m *MockGroupRepository) DeleteSubgroupCascade(ctx context.Context, id string) ([]string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.subgroups[id]; !ok {
		return nil, repository.ErrSubgroupNotFound
	}
	codes := m.links.deleteBySubgroup(id)
	delete(m.subgroups, id)
	return codes, nil
}

// MockLinkRepository implements repository.LinkRepository for testing.
// IncrementClicks защищён мьютексом так же атомарно, как single-statement
// UPDATE в Postgres — на нём проверяется корректность под конкуренцией.
type MockLinkRepository struct {
	mu     sync.RWMutex
	links  map[string]*models.Link // по ID
	groups *MockGroupRepository    // для join'а в GetResolveTargetByShortCode

	FailIncrement bool // форсирует ошибку инкремента
	FailLookup    bool // форсирует ошибку резолва по короткому коду
}

func NewMockLinkRepository() *MockLinkRepository {
	return &MockLinkRepository{
		links: make(map[string]*models.Link),
	}
}

// AttachGroups связывает репозитории для join-запросов
func (m *MockLinkRepository) AttachGroups(groups *MockGroupRepository) {
	m.groups = groups
}

func (m *MockLinkRepository) Create(ctx context.Context, link *models.Link) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, existing := range m.links {
		if existing.ShortCode == link.ShortCode {
			return repository.ErrCodeExists
		}
	}
	copied := *link
	m.links[link.ID] = &copied
	return nil
}

func (m *MockLinkRepository) GetLink(ctx context.Context, id string) (*models.Link, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	l, ok := m.links[id]
	if !ok {
		return nil, repository.ErrLinkNotFound
	}
	copied := *l
	return &copied, nil
}

func (m *MockLinkRepository) GetResolveTargetByShortCode(ctx context.Context, code string) (*models.ResolveTarget, error) {
	// Ссылка копируется под локом, группы читаются уже без него:
	// иначе с каскадным удалением возможна инверсия порядка блокировок
	m.mu.RLock()
	if m.FailLookup {
		m.mu.RUnlock()
		return nil, errors.New("store unavailable")
	}
	var found *models.Link
	for _, l := range m.links {
		if l.ShortCode == code {
			copied := *l
			found = &copied
			break
		}
	}
	m.mu.RUnlock()

	if found == nil {
		return nil, repository.ErrLinkNotFound
	}

	sg, err := m.groups.GetSubgroup(ctx, found.SubgroupID)
	if err != nil {
		return nil, repository.ErrLinkNotFound
	}
	g, err := m.groups.GetGroup(ctx, sg.GroupID)
	if err != nil {
		return nil, repository.ErrLinkNotFound
	}
	return &models.ResolveTarget{
		LinkID:      found.ID,
		ShortCode:   found.ShortCode,
		TargetURL:   found.TargetURL,
		GroupID:     g.ID,
		GroupStatus: g.Status,
		ExpiresAt:   found.ExpiresAt,
	}, nil
}

func (m *MockLinkRepository) Update(ctx context.Context, link *models.Link) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	existing, ok := m.links[link.ID]
	if !ok {
		return repository.ErrLinkNotFound
	}
	existing.Label = link.Label
	existing.TargetURL = link.TargetURL
	existing.ExpiresAt = link.ExpiresAt
	return nil
}

func (m *MockLinkRepository) Delete(ctx context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.links[id]; !ok {
		return repository.ErrLinkNotFound
	}
	delete(m.links, id)
	return nil
}

func (m *MockLinkRepository) IncrementClicks(ctx context.Context, linkID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.FailIncrement {
		return errors.New("store unavailable")
	}

	l, ok := m.links[linkID]
	if !ok {
		return repository.ErrLinkNotFound
	}
	l.Clicks++
	return nil
}

func (m *MockLinkRepository) ListShortCodesByGroup(ctx context.Context, groupID string) ([]string, error) {
	m.mu.RLock()
	type pair struct{ code, subgroupID string }
	var pairs []pair
	for _, l := range m.links {
		pairs = append(pairs, pair{l.ShortCode, l.SubgroupID})
	}
	m.mu.RUnlock()

	var codes []string
	for _, p := range pairs {
		sg, err := m.groups.GetSubgroup(ctx, p.subgroupID)
		if err != nil || sg.GroupID != groupID {
			continue
		}
		codes = append(codes, p.code)
	}
	return codes, nil
}

// Clicks возвращает текущее значение счётчика (хелпер для тестов)
func (m *MockLinkRepository) Clicks(linkID string) int64 {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if l, ok := m.links[linkID]; ok {
		return l.Clicks
	}
	return 0
}

func (m *MockLinkRepository) linksBySubgroup(subgroupID string) []*models.Link {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var out []*models.Link
	for _, l := range m.links {
		if l.SubgroupID == subgroupID {
			copied := *l
			out = append(out, &copied)
		}
	}
	if out == nil {
		out = []*models.Link{}
	}
	return out
}

func (m *MockLinkRepository) deleteBySubgroup(subgroupID string) []string {
	m.mu.Lock()
	defer m.mu.Unlock()

	var codes []string
	for id, l := range m.links {
		if l.SubgroupID == subgroupID {
			codes = append(codes, l.ShortCode)
			delete(m.links, id)
		}
	}
	return codes
}

// MockCacheRepository implements repository.CacheRepository for testing
type MockCacheRepository struct {
	mu      sync.RWMutex
	entries map[string]*models.ResolveTarget
}

func NewMockCacheRepository() *MockCacheRepository {
	return &MockCacheRepository{
		entries: make(map[string]*models.ResolveTarget),
	}
}

func (m *MockCacheRepository) Get(ctx context.Context, code string) (*models.ResolveTarget, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	t, ok := m.entries[code]
	if !ok {
		return nil, errors.New("cache miss")
	}
	copied := *t
	return &copied, nil
}

func (m *MockCacheRepository) Set(ctx context.Context, code string, target *models.ResolveTarget, ttl time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	copied := *target
	m.entries[code] = &copied
	return nil
}

func (m *MockCacheRepository) Delete(ctx context.Context, code string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	delete(m.entries, code)
	return nil
}

func (m *MockCacheRepository) DeleteMany(ctx context.Context, codes []string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, code := range codes {
		delete(m.entries, code)
	}
	return nil
}

// Contains проверяет наличие кода в кэше (хелпер для тестов)
func (m *MockCacheRepository) Contains(code string) bool {
	m.mu.RLock()
	defer m.mu.RUnlock()

	_, ok := m.entries[code]
	return ok
}

// MockAuditRepository implements repository.AuditRepository for testing
type MockAuditRepository struct {
	mu      sync.Mutex
	records []*models.AuditRecord

	FailInsert bool // форсирует ошибку записи
}

func NewMockAuditRepository() *MockAuditRepository {
	return &MockAuditRepository{}
}

func (m *MockAuditRepository) Insert(ctx context.Context, record *models.AuditRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.FailInsert {
		return errors.New("audit store unavailable")
	}
	copied := *record
	m.records = append(m.records, &copied)
	return nil
}

// Records возвращает снимок накопленных записей
func (m *MockAuditRepository) Records() []*models.AuditRecord {
	m.mu.Lock()
	defer m.mu.Unlock()

	out := make([]*models.AuditRecord, len(m.records))
	copy(out, m.records)
	return out
}

// ByAction фильтрует записи по действию
func (m *MockAuditRepository) ByAction(action string) []*models.AuditRecord {
	var out []*models.AuditRecord
	for _, r := range m.Records() {
		if r.Action == action {
			out = append(out, r)
		}
	}
	return out
}

// MockErrorLogRepository implements repository.ErrorLogRepository for testing
type MockErrorLogRepository struct {
	mu      sync.Mutex
	entries []*models.ErrorLog
}

func NewMockErrorLogRepository() *MockErrorLogRepository {
	return &MockErrorLogRepository{}
}

func (m *MockErrorLogRepository) Insert(ctx context.Context, entry *models.ErrorLog) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	copied := *entry
	m.entries = append(m.entries, &copied)
	return nil
}

func (m *MockErrorLogRepository) Entries() []*models.ErrorLog {
	m.mu.Lock()
	defer m.mu.Unlock()

	out := make([]*models.ErrorLog, len(m.entries))
	copy(out, m.entries)
	return out
}
