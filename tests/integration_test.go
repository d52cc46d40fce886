package tests

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/inspeaker/smartlink/internal/config"
	"github.com/inspeaker/smartlink/internal/handler"
	"github.com/inspeaker/smartlink/internal/middleware"
	"github.com/inspeaker/smartlink/internal/models"
	"github.com/inspeaker/smartlink/internal/repository"
	"github.com/inspeaker/smartlink/internal/service"
	"github.com/inspeaker/smartlink/internal/token"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/modules/redis"
	"github.com/testcontainers/testcontainers-go/wait"
	"go.uber.org/zap"
)

const (
	browserUA = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 Chrome/120.0"
	crawlerUA = "WhatsApp/2.0"
	adminUser = "admin@inspeaker.com.co"
)

// TestMain настраивает тестовый режим gin
func TestMain(m *testing.M) {
	gin.SetMode(gin.TestMode)
	os.Exit(m.Run())
}

// TestEnv хранит окружение для интеграционных тестов
type TestEnv struct {
	router         *gin.Engine
	sink           service.AuditSink
	dbContainer    testcontainers.Container
	redisContainer testcontainers.Container
	db             *repository.PostgresDB
	redis          *repository.RedisDB
}

// setupTestEnv поднимает PostgreSQL и Redis контейнеры и собирает приложение
func setupTestEnv(t *testing.T) *TestEnv {
	ctx := context.Background()

	schema, err := filepath.Abs(filepath.Join("..", "migrations", "001_init.sql"))
	require.NoError(t, err)

	// Запускаем контейнер PostgreSQL со схемой
	dbContainer, err := postgres.Run(ctx,
		"postgres:15-alpine",
		postgres.WithInitScripts(schema),
		postgres.WithDatabase("smartlink"),
		postgres.WithUsername("user"),
		postgres.WithPassword("password"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(30*time.Second),
		),
	)
	require.NoError(t, err)

	// Запускаем контейнер Redis
	redisContainer, err := redis.Run(ctx,
		"redis:7-alpine",
	)
	require.NoError(t, err)

	// Получаем данные для подключения
	dbHost, err := dbContainer.Host(ctx)
	require.NoError(t, err)
	dbPort, err := dbContainer.MappedPort(ctx, "5432")
	require.NoError(t, err)

	redisHost, err := redisContainer.Host(ctx)
	require.NoError(t, err)
	redisPort, err := redisContainer.MappedPort(ctx, "6379")
	require.NoError(t, err)

	// Создаём подключение к БД
	db, err := repository.NewPostgresDB(config.DBConfig{
		Host:     dbHost,
		Port:     dbPort.Port(),
		User:     "user",
		Password: "password",
		Name:     "smartlink",
	})
	require.NoError(t, err)

	// Создаём подключение к Redis
	redisClient, err := repository.NewRedisClient(config.RedisConfig{
		Host: redisHost,
		Port: redisPort.Port(),
	})
	require.NoError(t, err)

	// Инициализируем репозитории и сервисы
	logger := zap.NewNop()

	groupRepo := repository.NewGroupRepository(db)
	linkRepo := repository.NewLinkRepository(db)
	cacheRepo := repository.NewCacheRepository(redisClient)
	auditRepo := repository.NewAuditRepository(db)
	errorRepo := repository.NewErrorLogRepository(db)

	sink := service.NewAuditSink(auditRepo, logger, 2, 1000)
	sink.Start()

	campaignService := service.NewCampaignService(groupRepo, linkRepo, cacheRepo, sink, logger)
	resolver := service.NewResolver(linkRepo, cacheRepo, sink, logger, time.UTC)
	reporter := service.NewErrorReporter(errorRepo, logger)

	rateLimiter := middleware.NewRateLimiter(middleware.RateLimiterConfig{
		RequestsPerSecond: 1000, // Высокий лимит для тестов
		BurstSize:         2000,
		CleanupInterval:   time.Minute,
	})

	router := handler.NewRouter(campaignService, resolver, reporter, rateLimiter, "http://localhost:8080", logger)

	return &TestEnv{
		router:         router,
		sink:           sink,
		dbContainer:    dbContainer,
		redisContainer: redisContainer,
		db:             db,
		redis:          redisClient,
	}
}

// teardown очищает ресурсы после теста
func (env *TestEnv) teardown(t *testing.T) {
	env.sink.Stop()
	env.db.Close()
	env.redis.Close()

	ctx := context.Background()
	if env.dbContainer != nil {
		env.dbContainer.Terminate(ctx)
	}
	if env.redisContainer != nil {
		env.redisContainer.Terminate(ctx)
	}
}

// doJSON выполняет JSON-запрос к роутеру от имени администратора
func (env *TestEnv) doJSON(t *testing.T, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()

	var reader *bytes.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(raw)
	} else {
		reader = bytes.NewReader(nil)
	}

	w := httptest.NewRecorder()
	req, _ := http.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Actor-Email", adminUser)
	env.router.ServeHTTP(w, req)
	return w
}

// follow выполняет запрос к редиректной поверхности с заданным User-Agent
func (env *TestEnv) follow(t *testing.T, publicToken, userAgent string) *httptest.ResponseRecorder {
	t.Helper()

	w := httptest.NewRecorder()
	req, _ := http.NewRequest("GET", "/l/"+publicToken, nil)
	req.Header.Set("User-Agent", userAgent)
	env.router.ServeHTTP(w, req)
	return w
}

// clicks читает счётчик ссылки напрямую из базы
func (env *TestEnv) clicks(t *testing.T, shortCode string) int64 {
	t.Helper()

	var clicks int64
	err := env.db.Pool.QueryRow(context.Background(),
		`SELECT clicks FROM links WHERE short_code = $1`, shortCode).Scan(&clicks)
	require.NoError(t, err)
	return clicks
}

// auditCount считает записи аудита по действию
func (env *TestEnv) auditCount(t *testing.T, action string) int64 {
	t.Helper()

	var count int64
	err := env.db.Pool.QueryRow(context.Background(),
		`SELECT COUNT(*) FROM audit_logs WHERE action = $1`, action).Scan(&count)
	require.NoError(t, err)
	return count
}

// seed создаёт опубликованную группу с одной ссылкой и возвращает её короткий код
func (env *TestEnv) seed(t *testing.T, expiresAt string, publish bool) string {
	t.Helper()

	w := env.doJSON(t, "POST", "/api/v1/groups", models.CreateGroupInput{Name: "Evento", SubgroupCount: 1})
	require.Equal(t, http.StatusCreated, w.Code)

	var group models.Group
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &group))
	require.Len(t, group.Subgroups, 1)

	w = env.doJSON(t, "POST", "/api/v1/subgroups/"+group.Subgroups[0].ID+"/links", models.CreateLinksInput{
		Count:     1,
		TargetURL: "https://inspeaker.com.co/evento",
		ExpiresAt: expiresAt,
	})
	require.Equal(t, http.StatusCreated, w.Code)

	var links []struct {
		ShortCode string `json:"short_code"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &links))
	require.Len(t, links, 1)

	if publish {
		w = env.doJSON(t, "PUT", "/api/v1/groups/"+group.ID+"/status", map[string]string{"status": "published"})
		require.Equal(t, http.StatusOK, w.Code)
	}

	return links[0].ShortCode
}

// TestIntegration_RedirectFlow полный цикл: создание дерева, публикация,
// человеческий редирект со счётчиком и краулерный без
func TestIntegration_RedirectFlow(t *testing.T) {
	if testing.Short() {
		t.Skip("Пропускаем интеграционный тест в коротком режиме")
	}

	env := setupTestEnv(t)
	defer env.teardown(t)

	// Пустой каталог отдаёт [], а не null
	w := env.doJSON(t, "GET", "/api/v1/groups", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "[]", w.Body.String())

	code := env.seed(t, "2099-12-31", true)

	// Человеческий переход по маскированному токену
	w = env.follow(t, token.Mask(code), browserUA)
	assert.Equal(t, http.StatusFound, w.Code)
	assert.Equal(t, "https://inspeaker.com.co/evento", w.Header().Get("Location"))
	assert.EqualValues(t, 1, env.clicks(t, code))

	// Переход по сырому коду (фоллбэк декодера)
	w = env.follow(t, code, browserUA)
	assert.Equal(t, http.StatusFound, w.Code)
	assert.EqualValues(t, 2, env.clicks(t, code))

	// Краулер получает редирект, но счётчик не двигается
	w = env.follow(t, code, crawlerUA)
	assert.Equal(t, http.StatusFound, w.Code)
	assert.EqualValues(t, 2, env.clicks(t, code))

	// Аудит пишется асинхронно — дожидаемся записей
	assert.Eventually(t, func() bool {
		return env.auditCount(t, models.ActionClickReal) == 2 &&
			env.auditCount(t, models.ActionCrawlerPreview) == 1
	}, 5*time.Second, 100*time.Millisecond)

	// Неизвестный токен — 404 со страницей ошибки
	w = env.follow(t, "INS-NADA99", browserUA)
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Contains(t, w.Body.String(), "Enlace no disponible")
}

// TestIntegration_PublishGate ворота публикации: до публикации 403,
// после снятия с публикации снова 403
func TestIntegration_PublishGate(t *testing.T) {
	if testing.Short() {
		t.Skip("Пропускаем интеграционный тест в коротком режиме")
	}

	env := setupTestEnv(t)
	defer env.teardown(t)

	// Группа создана, но не опубликована
	w := env.doJSON(t, "POST", "/api/v1/groups", models.CreateGroupInput{Name: "Borrador", SubgroupCount: 1})
	require.Equal(t, http.StatusCreated, w.Code)
	var group models.Group
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &group))

	w = env.doJSON(t, "POST", "/api/v1/subgroups/"+group.Subgroups[0].ID+"/links", models.CreateLinksInput{
		Count:     1,
		TargetURL: "https://example.com",
		ExpiresAt: "2099-01-01",
	})
	require.Equal(t, http.StatusCreated, w.Code)
	var links []struct {
		ShortCode string `json:"short_code"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &links))
	code := links[0].ShortCode

	w = env.follow(t, code, browserUA)
	assert.Equal(t, http.StatusForbidden, w.Code)
	assert.Contains(t, w.Body.String(), "Enlace no disponible")
	assert.EqualValues(t, 0, env.clicks(t, code))

	// Публикуем — ссылка открывается
	w = env.doJSON(t, "PUT", "/api/v1/groups/"+group.ID+"/status", map[string]string{"status": "published"})
	require.Equal(t, http.StatusOK, w.Code)

	w = env.follow(t, code, browserUA)
	assert.Equal(t, http.StatusFound, w.Code)

	// Снимаем с публикации — кэш сбрасывается, ссылка снова закрыта
	w = env.doJSON(t, "PUT", "/api/v1/groups/"+group.ID+"/status", map[string]string{"status": "unpublished"})
	require.Equal(t, http.StatusOK, w.Code)

	w = env.follow(t, code, browserUA)
	assert.Equal(t, http.StatusForbidden, w.Code)
}

// TestIntegration_ExpiredLink истёкшая ссылка закрыта несмотря на публикацию
func TestIntegration_ExpiredLink(t *testing.T) {
	if testing.Short() {
		t.Skip("Пропускаем интеграционный тест в коротком режиме")
	}

	env := setupTestEnv(t)
	defer env.teardown(t)

	code := env.seed(t, "2000-01-01", true)

	w := env.follow(t, code, browserUA)
	assert.Equal(t, http.StatusForbidden, w.Code)
	assert.EqualValues(t, 0, env.clicks(t, code))
}

// TestIntegration_ConcurrentClicks инкремент атомарен на уровне хранилища:
// параллельные редиректы не теряют кликов
func TestIntegration_ConcurrentClicks(t *testing.T) {
	if testing.Short() {
		t.Skip("Пропускаем интеграционный тест в коротком режиме")
	}

	env := setupTestEnv(t)
	defer env.teardown(t)

	code := env.seed(t, "2099-12-31", true)

	const writers = 50
	var wg sync.WaitGroup
	for i := 0; i < writers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			w := env.follow(t, code, browserUA)
			assert.Equal(t, http.StatusFound, w.Code)
		}()
	}
	wg.Wait()

	assert.EqualValues(t, writers, env.clicks(t, code))
}

// TestIntegration_PublishedGroupImmutable REST-поверхность отдаёт 409 на
// мутации опубликованной группы
func TestIntegration_PublishedGroupImmutable(t *testing.T) {
	if testing.Short() {
		t.Skip("Пропускаем интеграционный тест в коротком режиме")
	}

	env := setupTestEnv(t)
	defer env.teardown(t)

	w := env.doJSON(t, "POST", "/api/v1/groups", models.CreateGroupInput{Name: "Fijo", SubgroupCount: 0})
	require.Equal(t, http.StatusCreated, w.Code)
	var group models.Group
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &group))

	w = env.doJSON(t, "PUT", "/api/v1/groups/"+group.ID+"/status", map[string]string{"status": "published"})
	require.Equal(t, http.StatusOK, w.Code)

	w = env.doJSON(t, "PUT", "/api/v1/groups/"+group.ID, map[string]string{"name": "Otro"})
	assert.Equal(t, http.StatusConflict, w.Code)

	w = env.doJSON(t, "DELETE", "/api/v1/groups/"+group.ID, nil)
	assert.Equal(t, http.StatusConflict, w.Code)
}

// TestIntegration_CascadeDelete удаление группы уносит всё дерево
func TestIntegration_CascadeDelete(t *testing.T) {
	if testing.Short() {
		t.Skip("Пропускаем интеграционный тест в коротком режиме")
	}

	env := setupTestEnv(t)
	defer env.teardown(t)

	w := env.doJSON(t, "POST", "/api/v1/groups", models.CreateGroupInput{Name: "Temporal", SubgroupCount: 2})
	require.Equal(t, http.StatusCreated, w.Code)
	var group models.Group
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &group))

	for _, sg := range group.Subgroups {
		w = env.doJSON(t, "POST", "/api/v1/subgroups/"+sg.ID+"/links", models.CreateLinksInput{
			Count:     2,
			TargetURL: "https://example.com",
			ExpiresAt: "2099-01-01",
		})
		require.Equal(t, http.StatusCreated, w.Code)
	}

	w = env.doJSON(t, "DELETE", "/api/v1/groups/"+group.ID, nil)
	require.Equal(t, http.StatusOK, w.Code)

	var remaining int64
	err := env.db.Pool.QueryRow(context.Background(), `
		SELECT COUNT(*) FROM links l
		JOIN subgroups s ON l.subgroup_id = s.id
		WHERE s.group_id = $1
	`, group.ID).Scan(&remaining)
	require.NoError(t, err)
	assert.EqualValues(t, 0, remaining)

	w = env.doJSON(t, "GET", "/api/v1/groups", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.NotContains(t, w.Body.String(), fmt.Sprintf("%q", group.ID))
}

// TestIntegration_ShortCodeUniqueConstraint дубликат кода отбивается базой
func TestIntegration_ShortCodeUniqueConstraint(t *testing.T) {
	if testing.Short() {
		t.Skip("Пропускаем интеграционный тест в коротком режиме")
	}

	env := setupTestEnv(t)
	defer env.teardown(t)

	code := env.seed(t, "2099-12-31", false)

	var subgroupID string
	err := env.db.Pool.QueryRow(context.Background(),
		`SELECT subgroup_id FROM links WHERE short_code = $1`, code).Scan(&subgroupID)
	require.NoError(t, err)

	linkRepo := repository.NewLinkRepository(env.db)
	err = linkRepo.Create(context.Background(), &models.Link{
		ID:         "dup-attempt",
		SubgroupID: subgroupID,
		TargetURL:  "https://example.com",
		ShortCode:  code,
		CreatedAt:  time.Now().UTC(),
		ExpiresAt:  time.Now().AddDate(1, 0, 0),
	})
	assert.ErrorIs(t, err, repository.ErrCodeExists)
}
