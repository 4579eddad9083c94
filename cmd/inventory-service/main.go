// cmd/inventory-service/main.go
package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"strconv"

	gosqlmysql "github.com/go-sql-driver/mysql"
	"go.opentelemetry.io/otel"
	"gorm.io/driver/mysql"
	"gorm.io/gorm"

	"backoffice/internal/pkg/bootstrap"
	"backoffice/internal/pkg/constants"
	"backoffice/internal/pkg/mq"
	"backoffice/internal/pkg/redis"
	"backoffice/internal/service/inventory/application"
	"backoffice/internal/service/inventory/domain"
	"backoffice/internal/service/inventory/infrastructure"
	"backoffice/internal/service/inventory/infrastructure/rule"
	"backoffice/internal/service/inventory/interfaces"
	"backoffice/internal/service/inventory/port"
	"backoffice/internal/zookeeper"
)

const serviceName = constants.InventoryService

// main 函数是应用的"组装根" (Composition Root)
// 它的核心职责是：创建并组装所有依赖项，然后启动应用。
func main() {
	bootstrap.Init()
	cfg := bootstrap.GetCurrentConfig()

	tracer := otel.Tracer(serviceName)

	// 1. MySQL：台账的持久化
	dsnConfig := gosqlmysql.Config{
		User:                 cfg.Infra.Mysql.User,
		Passwd:               cfg.Infra.Mysql.Password,
		Net:                  "tcp",
		Addr:                 fmt.Sprintf("%s:%d", cfg.Infra.Mysql.Host, cfg.Infra.Mysql.Port),
		DBName:               cfg.Infra.Mysql.Database,
		ParseTime:            true,
		AllowNativePasswords: true,
	}
	db, err := gorm.Open(mysql.Open(dsnConfig.FormatDSN()), &gorm.Config{})
	if err != nil {
		log.Fatalf("failed to connect to mysql: %v", err)
	}
	if err := db.AutoMigrate(
		&infrastructure.StockRecordModel{},
		&infrastructure.WarehouseModel{},
		&infrastructure.StockMovementModel{},
	); err != nil {
		log.Fatalf("failed to migrate inventory tables: %v", err)
	}
	stockRepo := infrastructure.NewGormStockRepository(db)
	warehouseRepo := infrastructure.NewGormWarehouseRepository(db)

	// 2. Redis：可用量的读穿缓存。缓存是可选依赖，连不上时直查数据库。
	var cache port.AvailabilityCache
	redisClient, err := redis.NewClient(cfg.Infra.Redis.Addrs)
	if err != nil {
		log.Printf("WARN: redis unavailable, availability cache disabled: %v", err)
	} else {
		cache = infrastructure.NewRedisAvailabilityCache(redisClient)
	}

	// 3. Zookeeper：补货首行创建的跨实例串行化。连不上时退化为进程内无锁。
	var locker domain.KeyLocker = infrastructure.NoopLocker{}
	zkConn, err := zookeeper.Connect(cfg.Infra.Zookeeper.Servers, 0)
	if err != nil {
		log.Printf("WARN: zookeeper unavailable, falling back to in-process locking: %v", err)
	} else {
		locker = infrastructure.NewZkKeyLocker(zkConn)
	}

	// 4. Kafka：台账变动事件广播
	stockEventsWriter := mq.NewKafkaWriter(cfg.Infra.Kafka.Brokers, constants.StockEventsTopic)
	events := infrastructure.NewKafkaStockEventProducer(stockEventsWriter)

	// 5. 仓库偏好策略（可选，由配置中心下发 CEL 表达式）
	var policy domain.SelectionPolicy
	if cfg.App.FeatureFlags.EnableAllocationRule && cfg.App.AllocationRule != "" {
		celPolicy, err := rule.NewCelSelectionPolicy(cfg.App.AllocationRule)
		if err != nil {
			log.Fatalf("failed to compile allocation rule: %v", err)
		}
		policy = celPolicy
		log.Printf("Allocation rule enabled: %s", cfg.App.AllocationRule)
	}

	// 6. 应用层组装
	ledger := application.NewStockLedgerService(stockRepo, warehouseRepo, locker, cache, events, tracer)
	engine := application.NewAllocationEngine(stockRepo, warehouseRepo, ledger, policy, tracer)
	directory := application.NewWarehouseDirectoryService(warehouseRepo, tracer)

	handler := interfaces.NewInventoryHandler(ledger, engine, directory)

	bootstrap.StartService(bootstrap.AppInfo{
		ServiceName: serviceName,
		Port:        servicePort(8082),
		RegisterHandlers: func(appCtx bootstrap.AppCtx) {
			handler.RegisterRoutes(appCtx.Mux)
		},
		OnShutdown: func(ctx context.Context) {
			stockEventsWriter.Close()
			if redisClient != nil {
				redisClient.Close()
			}
			if zkConn != nil {
				zkConn.Close()
			}
		},
	})
}

func servicePort(fallback int) int {
	raw, ok := os.LookupEnv("SERVICE_PORT")
	if !ok {
		return fallback
	}
	port, err := strconv.Atoi(raw)
	if err != nil {
		log.Fatalf("invalid SERVICE_PORT %q: %v", raw, err)
	}
	return port
}
