package main

import (
	"flag"
	"fmt"
	"io"
	"os"

	"github.com/sirupsen/logrus"

	"github.com/imgstash/imgstash/internal/cache"
	"github.com/imgstash/imgstash/internal/config"
	"github.com/imgstash/imgstash/internal/fsops"
	"github.com/imgstash/imgstash/internal/logging"
	"github.com/imgstash/imgstash/internal/server"
	"github.com/imgstash/imgstash/internal/store"
)

// cliOptions 汇总 CLI 标志解析后的结果，便于在测试中注入。
type cliOptions struct {
	configPath  string
	checkOnly   bool
	showVersion bool
}

var (
	stdOut io.Writer = os.Stdout
	stdErr io.Writer = os.Stderr
)

func main() {
	opts, err := parseCLIFlags(os.Args[1:])
	if err != nil {
		fmt.Fprintln(stdErr, err.Error())
		os.Exit(2)
	}
	os.Exit(run(opts))
}

// run 根据解析到的 CLI 选项执行业务流程，并返回退出码，方便测试。
func run(opts cliOptions) int {
	if opts.showVersion {
		printVersion()
		return 0
	}

	cfg, err := config.Load(opts.configPath)
	if err != nil {
		fmt.Fprintf(stdErr, "加载配置失败: %v\n", err)
		return 1
	}

	logger, err := logging.InitLogger(cfg.Global)
	if err != nil {
		fmt.Fprintf(stdErr, "初始化日志失败: %v\n", err)
		return 1
	}

	if opts.checkOnly {
		fields := logging.BaseFields("check_config", opts.configPath)
		fields["storage_path"] = cfg.Global.StoragePath
		fields["record_store"] = cfg.Global.RecordStore
		fields["result"] = "ok"
		logger.WithFields(fields).Info("配置校验通过")
		return 0
	}

	if err := os.MkdirAll(cfg.Global.StoragePath, 0o755); err != nil {
		fmt.Fprintf(stdErr, "初始化缓存目录失败: %v\n", err)
		return 1
	}

	// bolt 记录库文件默认落在缓存目录内，因此先确保目录存在。
	recordStore, err := newRecordStore(cfg)
	if err != nil {
		fmt.Fprintf(stdErr, "初始化记录库失败: %v\n", err)
		return 1
	}
	defer recordStore.Close()

	// 启动遵循「配置 → 记录库 → 缓存编排器 → Fiber server」顺序，
	// 保证所有请求共享同一份默认选项与协作方实例。
	manager := cache.New(recordStore, fsops.New(), cache.OptionsFromConfig(cfg.Global), logger)

	fields := logging.BaseFields("startup", opts.configPath)
	fields["listen_port"] = cfg.Global.ListenPort
	fields["storage_path"] = cfg.Global.StoragePath
	fields["record_store"] = cfg.Global.RecordStore
	fields["cache_ttl"] = cfg.Global.CacheTTL.DurationValue().String()
	logger.WithFields(fields).Info("配置加载完成")

	if err := startHTTPServer(cfg, manager, logger); err != nil {
		fmt.Fprintf(stdErr, "HTTP 服务启动失败: %v\n", err)
		return 1
	}
	return 0
}

// parseCLIFlags 解析 CLI 参数，并结合环境变量计算最终的配置路径。
func parseCLIFlags(args []string) (cliOptions, error) {
	fs := flag.NewFlagSet("imgstash", flag.ContinueOnError)
	fs.SetOutput(io.Discard)

	var (
		configFlag string
		checkOnly  bool
		showVer    bool
	)

	fs.StringVar(&configFlag, "config", "", "配置文件路径（默认无文件启动，可被 IMGSTASH_CONFIG 覆盖）")
	fs.BoolVar(&checkOnly, "check-config", false, "仅校验配置后退出")
	fs.BoolVar(&showVer, "version", false, "显示版本信息")

	if err := fs.Parse(args); err != nil {
		return cliOptions{}, fmt.Errorf("解析参数失败: %w", err)
	}

	path := os.Getenv("IMGSTASH_CONFIG")
	if configFlag != "" {
		path = configFlag
	}

	return cliOptions{
		configPath:  path,
		checkOnly:   checkOnly,
		showVersion: showVer,
	}, nil
}

func newRecordStore(cfg *config.Config) (store.RecordStore, error) {
	if cfg.Global.RecordStore == "bolt" {
		return store.NewBoltStore(cfg.Global.RecordDBPath)
	}
	return store.NewMemStore(), nil
}

func startHTTPServer(cfg *config.Config, manager *cache.Manager, logger *logrus.Logger) error {
	port := cfg.Global.ListenPort
	app, err := server.NewApp(server.AppOptions{
		Logger:     logger,
		Manager:    manager,
		ListenPort: port,
	})
	if err != nil {
		return err
	}

	logger.WithFields(logrus.Fields{
		"action": "listen",
		"port":   port,
	}).Info("Fiber 服务启动")

	return app.Listen(fmt.Sprintf(":%d", port))
}
