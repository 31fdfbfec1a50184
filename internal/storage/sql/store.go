package sql

import (
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	_ "github.com/go-sql-driver/mysql" // MySQL driver
	_ "github.com/lib/pq"              // PostgreSQL driver
	"gorm.io/driver/mysql"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"agentmail/backend/internal/domain"
	"agentmail/backend/internal/storage/memory"
)

// Store SQL 数据库存储实现（支持 MySQL 5.7+ 和 PostgreSQL）
type Store struct {
	db         *sql.DB
	gormDB     *gorm.DB
	driverName string // "mysql" or "postgres"
}

// NewStore 创建 SQL 数据库存储。
func NewStore(
	driverName string,
	dsn string,
	maxOpenConns int,
	maxIdleConns int,
	connMaxLifetime time.Duration,
) (*Store, error) {
	if driverName != "mysql" && driverName != "postgres" {
		return nil, fmt.Errorf("unsupported database driver: %s (supported: mysql, postgres)", driverName)
	}

	db, err := sql.Open(driverName, dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	db.SetMaxOpenConns(maxOpenConns)
	db.SetMaxIdleConns(maxIdleConns)
	db.SetConnMaxLifetime(connMaxLifetime)

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	gormConfig := &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
		NowFunc: func() time.Time {
			return time.Now().UTC()
		},
	}

	var gormDB *gorm.DB
	if driverName == "mysql" {
		gormDB, err = gorm.Open(mysql.New(mysql.Config{Conn: db}), gormConfig)
	} else {
		gormDB, err = gorm.Open(postgres.New(postgres.Config{Conn: db}), gormConfig)
	}
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize GORM: %w", err)
	}

	store := &Store{
		db:         db,
		gormDB:     gormDB,
		driverName: driverName,
	}

	if err := store.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to migrate schema: %w", err)
	}

	return store, nil
}

// migrate 自动执行数据库迁移。
func (s *Store) migrate() error {
	return s.gormDB.AutoMigrate(
		&domain.Agent{},
		&domain.PaymentIntent{},
	)
}

// SaveAgent 保存代理。
func (s *Store) SaveAgent(agent *domain.Agent) error {
	err := s.gormDB.Create(agent).Error
	if err != nil && isDuplicateKey(err) {
		return memory.ErrAgentExists
	}
	return err
}

// GetAgent 根据 ID 获取代理。
func (s *Store) GetAgent(id string) (*domain.Agent, error) {
	var agent domain.Agent
	err := s.gormDB.First(&agent, "id = ?", id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, memory.ErrAgentNotFound
	}
	if err != nil {
		return nil, err
	}
	return &agent, nil
}

// GetAgentByOwnerID 根据所有者标识获取代理。
func (s *Store) GetAgentByOwnerID(ownerID string) (*domain.Agent, error) {
	var agent domain.Agent
	err := s.gormDB.First(&agent, "owner_id = ?", ownerID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, memory.ErrAgentNotFound
	}
	if err != nil {
		return nil, err
	}
	return &agent, nil
}

// GetAgentByAddress 根据收件地址（大小写不敏感）获取代理。
func (s *Store) GetAgentByAddress(address string) (*domain.Agent, error) {
	var agent domain.Agent
	err := s.gormDB.First(&agent, "LOWER(address) = ?", strings.ToLower(address)).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, memory.ErrAgentNotFound
	}
	if err != nil {
		return nil, err
	}
	return &agent, nil
}

// GetAgentByCredential 根据访问凭证获取代理。
func (s *Store) GetAgentByCredential(credential string) (*domain.Agent, error) {
	var agent domain.Agent
	err := s.gormDB.First(&agent, "credential = ?", credential).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, memory.ErrAgentNotFound
	}
	if err != nil {
		return nil, err
	}
	return &agent, nil
}

// ListAgents 返回全部代理。
func (s *Store) ListAgents() []domain.Agent {
	var agents []domain.Agent
	s.gormDB.Find(&agents)
	return agents
}

// ListAgentsWithWebhook 返回注册了投递目标的代理。
func (s *Store) ListAgentsWithWebhook() []domain.Agent {
	var agents []domain.Agent
	s.gormDB.Where("webhook_url IS NOT NULL AND webhook_url <> ''").Find(&agents)
	return agents
}

// UpdateAgent 更新代理记录。
func (s *Store) UpdateAgent(agent *domain.Agent) error {
	result := s.gormDB.Model(&domain.Agent{}).Where("id = ?", agent.ID).
		Select("OwnerName", "Address", "Credential", "WebhookURL", "WebhookSecret", "PublicKey", "Paid").
		Updates(agent)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return memory.ErrAgentNotFound
	}
	return nil
}

// DeleteAgent 删除代理。
func (s *Store) DeleteAgent(id string) error {
	result := s.gormDB.Delete(&domain.Agent{}, "id = ?", id)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return memory.ErrAgentNotFound
	}
	return nil
}

// ConsumeQuota 用条件 UPDATE 实现原子的"读取-校验-自增"，
// 并发请求同一代理时由行级写锁串行化，计数不会超过 limit。
func (s *Store) ConsumeQuota(agentID string, date string, limit int) (int, error) {
	// 日期翻转：存量日期不是今天时把计数重置为 1 并写入新日期
	rollover := s.gormDB.Model(&domain.Agent{}).
		Where("id = ? AND (last_send_date IS NULL OR last_send_date <> ?)", agentID, date).
		Updates(map[string]interface{}{
			"sends_today":    1,
			"last_send_date": date,
		})
	if rollover.Error != nil {
		return 0, rollover.Error
	}
	if rollover.RowsAffected == 1 {
		return 1, nil
	}

	// 同一天：仅当计数未达上限时自增
	increment := s.gormDB.Model(&domain.Agent{}).
		Where("id = ? AND last_send_date = ? AND sends_today < ?", agentID, date, limit).
		UpdateColumn("sends_today", gorm.Expr("sends_today + 1"))
	if increment.Error != nil {
		return 0, increment.Error
	}
	if increment.RowsAffected == 0 {
		agent, err := s.GetAgent(agentID)
		if err != nil {
			return 0, err
		}
		return agent.SendsToday, memory.ErrQuotaExhausted
	}

	agent, err := s.GetAgent(agentID)
	if err != nil {
		return 0, err
	}
	return agent.SendsToday, nil
}

// AdvanceWatermark 推进代理的投递水位线。
func (s *Store) AdvanceWatermark(agentID string, lastMessageID *string, polledAt time.Time) error {
	updates := map[string]interface{}{
		"last_poll_at": polledAt,
	}
	if lastMessageID != nil {
		updates["last_message_id"] = *lastMessageID
	}

	result := s.gormDB.Model(&domain.Agent{}).Where("id = ?", agentID).Updates(updates)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return memory.ErrAgentNotFound
	}
	return nil
}

// SaveIntent 保存支付意向。
func (s *Store) SaveIntent(intent *domain.PaymentIntent) error {
	return s.gormDB.Create(intent).Error
}

// GetIntent 根据引用获取支付意向。
func (s *Store) GetIntent(reference string) (*domain.PaymentIntent, error) {
	var intent domain.PaymentIntent
	err := s.gormDB.First(&intent, "reference = ?", reference).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, memory.ErrIntentNotFound
	}
	if err != nil {
		return nil, err
	}
	return &intent, nil
}

// MarkIntentConfirmed 将意向标记为链上已确认。
func (s *Store) MarkIntentConfirmed(reference, signature string) error {
	now := time.Now().UTC()
	result := s.gormDB.Model(&domain.PaymentIntent{}).
		Where("reference = ?", reference).
		Updates(map[string]interface{}{
			"status":       domain.PaymentConfirmed,
			"signature":    signature,
			"confirmed_at": now,
		})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return memory.ErrIntentNotFound
	}
	return nil
}

// MarkIntentFailed 将意向标记为验证失败。
func (s *Store) MarkIntentFailed(reference string) error {
	result := s.gormDB.Model(&domain.PaymentIntent{}).
		Where("reference = ?", reference).
		Update("status", domain.PaymentFailed)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return memory.ErrIntentNotFound
	}
	return nil
}

// ConsumeIntent 条件 UPDATE 保证"至多核销一次"：
// 只有已确认且未消费的行会被命中，命中数为 0 即不可用。
func (s *Store) ConsumeIntent(reference string) error {
	result := s.gormDB.Model(&domain.PaymentIntent{}).
		Where("reference = ? AND status = ? AND consumed = ?", reference, domain.PaymentConfirmed, false).
		Update("consumed", true)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return memory.ErrIntentUnavailable
	}
	return nil
}

// Close 关闭数据库连接。
func (s *Store) Close() error {
	return s.db.Close()
}

// Health 数据库连通性检查。
func (s *Store) Health() error {
	return s.db.Ping()
}

// isDuplicateKey 判断驱动返回的唯一约束冲突。
func isDuplicateKey(err error) bool {
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "duplicate") || strings.Contains(msg, "unique constraint")
}
