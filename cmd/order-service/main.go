// cmd/order-service/main.go
package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"strconv"
	"time"

	gosqlmysql "github.com/go-sql-driver/mysql"
	"go.opentelemetry.io/otel"
	"gorm.io/driver/mysql"
	"gorm.io/gorm"

	"backoffice/internal/pkg/bootstrap"
	"backoffice/internal/pkg/constants"
	"backoffice/internal/pkg/httpclient"
	"backoffice/internal/pkg/mq"
	"backoffice/internal/service/order/application"
	"backoffice/internal/service/order/infrastructure"
	"backoffice/internal/service/order/infrastructure/adapter"
	"backoffice/internal/service/order/interfaces"
)

const (
	serviceName            = constants.OrderService
	orderProcessingTimeout = 30 * time.Second // 单个下单流程的超时上限
	orderRequestsGroupID   = "order-requests-consumer-group"
)

// main 函数是应用的"组装根" (Composition Root)
// 它的核心职责是：创建并组装所有依赖项，然后启动应用。
func main() {
	bootstrap.Init()
	cfg := bootstrap.GetCurrentConfig()

	tracer := otel.Tracer(serviceName)

	// 1. MySQL：订单聚合的持久化
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
	orderRepo := infrastructure.NewGormOrderRepository(db)
	if err := orderRepo.AutoMigrate(); err != nil {
		log.Fatalf("failed to migrate order tables: %v", err)
	}

	// 2. Kafka：异步下单队列与通知、履约出站
	orderRequestsWriter := mq.NewKafkaWriter(cfg.Infra.Kafka.Brokers, constants.OrderRequestsTopic)
	notificationsWriter := mq.NewKafkaWriter(cfg.Infra.Kafka.Brokers, constants.NotificationsTopic)
	shipmentsWriter := mq.NewKafkaWriter(cfg.Infra.Kafka.Brokers, constants.ShipmentRequestsTopic)
	orderRequestsReader := mq.NewKafkaReader(cfg.Infra.Kafka.Brokers, constants.OrderRequestsTopic, orderRequestsGroupID)

	requestProducer := infrastructure.NewOrderRequestProducerAdapter(orderRequestsWriter)
	notifier := adapter.NewNotificationKafkaAdapter(notificationsWriter)
	shipper := adapter.NewShipmentKafkaAdapter(shipmentsWriter)

	var consumer *infrastructure.OrderConsumerAdapter
	consumerCtx, cancelConsumer := context.WithCancel(context.Background())

	bootstrap.StartService(bootstrap.AppInfo{
		ServiceName: serviceName,
		Port:        servicePort(8081),
		RegisterHandlers: func(appCtx bootstrap.AppCtx) {
			// 库存服务经由 Nacos 发现，所以适配器在拿到注册中心客户端之后组装
			httpClient := httpclient.NewClient(tracer).WithNacos(appCtx.Nacos)
			allocator := adapter.NewAllocationHTTPAdapter(httpClient)

			appSvc := application.NewOrderApplicationService(
				orderRepo, orderProcessingTimeout, tracer,
				requestProducer, allocator, allocator, shipper, notifier,
			)

			handler := interfaces.NewOrderHandler(appSvc)
			handler.RegisterRoutes(appCtx.Mux)

			consumer = infrastructure.NewOrderConsumerAdapter(orderRequestsReader, appSvc)
			consumer.Start(consumerCtx)
		},
		OnShutdown: func(ctx context.Context) {
			cancelConsumer()
			if consumer != nil {
				consumer.Stop()
			}
			orderRequestsWriter.Close()
			notificationsWriter.Close()
			shipmentsWriter.Close()
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
