package config

import (
	"fmt"
	"reflect"
	"sync"

	"github.com/fsnotify/fsnotify"
	"github.com/sirupsen/logrus"
	"github.com/spf13/viper"
)

// ConfigWatcher 监听配置文件, 只热更新日志配置; 其它段落变更在重启后生效
type ConfigWatcher struct {
	configPath string
	viper      *viper.Viper
	logger     logrus.FieldLogger

	mu        sync.RWMutex
	current   *Config
	callbacks []func(*Config)
	stopped   bool
}

// NewConfigWatcher 创建配置监听器
func NewConfigWatcher(cfg *Config, configPath string, logger logrus.FieldLogger) *ConfigWatcher {
	v := viper.New()
	setDefaults(v)
	v.SetConfigFile(configPath)
	if logger == nil {
		logger = logrus.StandardLogger()
	}

	return &ConfigWatcher{
		configPath: configPath,
		viper:      v,
		logger:     logger.WithField("file", configPath),
		current:    cfg,
	}
}

// OnConfigChange 注册日志配置变更回调
func (w *ConfigWatcher) OnConfigChange(callback func(*Config)) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.callbacks = append(w.callbacks, callback)
}

// Start 启动配置监听
func (w *ConfigWatcher) Start() error {
	if err := w.viper.ReadInConfig(); err != nil {
		return fmt.Errorf("failed to read config file: %w", err)
	}

	w.viper.OnConfigChange(func(fsnotify.Event) { w.reload() })
	w.viper.WatchConfig()
	return nil
}

func (w *ConfigWatcher) reload() {
	var changed Config
	if err := w.viper.Unmarshal(&changed); err != nil {
		w.logger.WithError(err).Error("failed to unmarshal changed config")
		return
	}
	if _, err := logrus.ParseLevel(changed.Log.Level); err != nil {
		w.logger.WithField("level", changed.Log.Level).Error("ignoring config change with invalid log level")
		return
	}

	w.mu.Lock()
	if w.stopped {
		w.mu.Unlock()
		return
	}
	prev := w.current
	next := *prev
	next.Log = changed.Log
	w.current = &next
	callbacks := append([]func(*Config){}, w.callbacks...)
	w.mu.Unlock()

	if restartRequired(prev, &changed) {
		w.logger.Warn("config changes outside the log section take effect after restart")
	}
	if next.Log == prev.Log {
		return
	}

	for _, callback := range callbacks {
		callback(&next)
	}
	w.logger.WithField("level", next.Log.Level).Info("log config reloaded")
}

// restartRequired 比较除日志外的配置段
func restartRequired(prev, changed *Config) bool {
	a, b := *prev, *changed
	a.Log, b.Log = LogConfig{}, LogConfig{}
	return !reflect.DeepEqual(a, b)
}

// Stop 停止配置监听, 之后的文件变更被忽略
func (w *ConfigWatcher) Stop() {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.stopped = true
}

// GetConfig 获取当前生效配置
func (w *ConfigWatcher) GetConfig() *Config {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return w.current
}
