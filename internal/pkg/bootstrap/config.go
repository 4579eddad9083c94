// internal/pkg/bootstrap/config.go
package bootstrap

import (
	"log"
	"os"
	"sync/atomic"

	"backoffice/internal/pkg/nacos"

	"github.com/nacos-group/nacos-sdk-go/v2/clients/config_client"
	"github.com/nacos-group/nacos-sdk-go/v2/vo"
	"gopkg.in/yaml.v3"
)

// Config 是所有服务共享的配置结构。
// 本地 yaml 提供默认值，Nacos 配置中心的同名配置可以在运行时覆盖它。
type Config struct {
	App struct {
		// AllocationRule 是仓库偏好的 CEL 表达式，为空时分配引擎使用纯确定性排序
		AllocationRule string `yaml:"allocationRule"`
		FeatureFlags   struct {
			EnableAllocationRule bool `yaml:"enableAllocationRule"`
		} `yaml:"featureFlags"`
	} `yaml:"app"`

	Infra struct {
		Jaeger struct {
			Endpoint string `yaml:"endpoint"`
		} `yaml:"jaeger"`
		Kafka struct {
			Brokers []string `yaml:"brokers"`
		} `yaml:"kafka"`
		Redis struct {
			Addrs string `yaml:"addrs"`
		} `yaml:"redis"`
		Mysql struct {
			User     string `yaml:"user"`
			Password string `yaml:"password"`
			Host     string `yaml:"host"`
			Port     int    `yaml:"port"`
			Database string `yaml:"database"`
		} `yaml:"mysql"`
		Zookeeper struct {
			Servers []string `yaml:"servers"`
		} `yaml:"zookeeper"`
	} `yaml:"infra"`
}

var (
	currentConfig     atomic.Value // *Config
	nacosConfigClient config_client.IConfigClient
)

func defaultConfig() *Config {
	cfg := &Config{}
	cfg.Infra.Jaeger.Endpoint = getEnv("JAEGER_ENDPOINT", "http://localhost:14268/api/traces")
	cfg.Infra.Kafka.Brokers = []string{getEnv("KAFKA_BROKERS", "localhost:9092")}
	cfg.Infra.Redis.Addrs = getEnv("REDIS_ADDRS", "localhost:6379")
	cfg.Infra.Mysql.User = getEnv("MYSQL_USER", "root")
	cfg.Infra.Mysql.Password = getEnv("MYSQL_PASSWORD", "root")
	cfg.Infra.Mysql.Host = getEnv("MYSQL_HOST", "localhost")
	cfg.Infra.Mysql.Port = 3306
	cfg.Infra.Mysql.Database = getEnv("MYSQL_DATABASE", "backoffice")
	cfg.Infra.Zookeeper.Servers = []string{getEnv("ZK_SERVERS", "localhost:2181")}
	return cfg
}

// Init 加载配置：先本地 yaml，再尝试从 Nacos 配置中心覆盖。
// 必须在 StartService 之前调用。
func Init() {
	cfg := defaultConfig()

	// 1. 本地 yaml 文件（可选）
	configFile := getEnv("CONFIG_FILE", "configs/config.yaml")
	if data, err := os.ReadFile(configFile); err == nil {
		if err := yaml.Unmarshal(data, cfg); err != nil {
			log.Fatalf("FATAL: failed to parse config file %s: %v", configFile, err)
		}
		log.Printf("Config loaded from %s", configFile)
	}

	currentConfig.Store(cfg)

	// 2. Nacos 配置中心（可选），配置变更时热更新
	dataID := os.Getenv("NACOS_CONFIG_DATA_ID")
	if dataID == "" {
		return
	}

	serverConfigs, err := nacos.ParseServerAddrs(getEnv("NACOS_SERVER_ADDRS", "localhost:8848"))
	if err != nil {
		log.Fatalf("FATAL: invalid Nacos server address format: %v", err)
	}
	clientConfig := nacos.NewClientConfig(os.Getenv("NACOS_NAMESPACE"))
	group := getEnv("NACOS_GROUP", "DEFAULT_GROUP")

	nacosConfigClient, err = nacos.NewConfigClient(serverConfigs, &clientConfig)
	if err != nil {
		log.Fatalf("FATAL: failed to create nacos config client: %v", err)
	}

	if content, err := nacosConfigClient.GetConfig(vo.ConfigParam{DataId: dataID, Group: group}); err == nil && content != "" {
		applyRemoteConfig(content)
	}

	err = nacosConfigClient.ListenConfig(vo.ConfigParam{
		DataId: dataID,
		Group:  group,
		OnChange: func(namespace, group, dataId, data string) {
			log.Printf("Config change received from Nacos (dataId=%s)", dataId)
			applyRemoteConfig(data)
		},
	})
	if err != nil {
		log.Printf("WARN: failed to listen nacos config: %v", err)
	}
}

// applyRemoteConfig 在当前配置的副本上应用远端内容，解析失败时保留旧配置。
func applyRemoteConfig(content string) {
	next := *GetCurrentConfig()
	if err := yaml.Unmarshal([]byte(content), &next); err != nil {
		log.Printf("ERROR: invalid remote config, keeping previous one: %v", err)
		return
	}
	currentConfig.Store(&next)
}

// GetCurrentConfig 返回当前生效的配置快照。
func GetCurrentConfig() *Config {
	if cfg, ok := currentConfig.Load().(*Config); ok {
		return cfg
	}
	// Init 未被调用时退回默认值，主要方便单元测试
	cfg := defaultConfig()
	currentConfig.Store(cfg)
	return cfg
}
