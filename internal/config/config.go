// Package config загружает настройки приложения из файла, переменных
// окружения (APRIL_*) и флагов командной строки.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/mitchellh/mapstructure"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"aprilgo/pkg/april"
)

// EnvPrefix - префикс переменных окружения: APRIL_MODEL_PATH и т.д.
const EnvPrefix = "APRIL"

// LogConfig настройки логирования.
type LogConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

// ModelConfig выбор модели: явный путь важнее ID из реестра.
type ModelConfig struct {
	ID   string `mapstructure:"id"`
	Path string `mapstructure:"path"`
}

// SessionConfig настройки сессии распознавания.
type SessionConfig struct {
	// Mode - "sync", "async-rt" или "async-nort".
	Mode string `mapstructure:"mode"`
	// Chunk - длительность одного куска аудио, подаваемого в сессию.
	Chunk time.Duration `mapstructure:"chunk"`
}

// DictationConfig настройки режима диктовки.
type DictationConfig struct {
	Hotkey   string `mapstructure:"hotkey"`
	TypeText bool   `mapstructure:"type_text"`
	// Partials - печатать промежуточные результаты в лог.
	Partials bool `mapstructure:"partials"`
	// Tray - иконка в системном трее на время listen.
	Tray bool `mapstructure:"tray"`
	// Overlay - плавающее окно с волной и текущим текстом.
	Overlay bool `mapstructure:"overlay"`
}

// ServerConfig настройки websocket-сервера.
type ServerConfig struct {
	Addr      string        `mapstructure:"addr"`
	ReadLimit int64         `mapstructure:"read_limit"`
	Results   int           `mapstructure:"results_buffer"`
	PongWait  time.Duration `mapstructure:"pong_wait"`
}

type settings struct {
	Log           LogConfig       `mapstructure:"log"`
	ModelsDir     string          `mapstructure:"models_dir"`
	Model         ModelConfig     `mapstructure:"model"`
	Session       SessionConfig   `mapstructure:"session"`
	Dictation     DictationConfig `mapstructure:"dictation"`
	Server        ServerConfig    `mapstructure:"server"`
	UILanguage    string          `mapstructure:"ui_language"`
	Notifications bool            `mapstructure:"notifications"`
}

// Config хранит настройки приложения.
type Config struct {
	mu         sync.RWMutex
	v          *viper.Viper
	s          settings
	mode       april.ConfigFlags
	hotkey     HotkeyConfig
	configPath string
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "console")
	v.SetDefault("models_dir", defaultModelsDir())
	v.SetDefault("model.id", "april-en-us-dev")
	v.SetDefault("model.path", "")
	v.SetDefault("session.mode", "sync")
	v.SetDefault("session.chunk", "100ms")
	v.SetDefault("dictation.hotkey", "ctrl+shift+space")
	v.SetDefault("dictation.type_text", false)
	v.SetDefault("dictation.partials", true)
	v.SetDefault("dictation.tray", true)
	v.SetDefault("dictation.overlay", true)
	v.SetDefault("server.addr", ":8090")
	v.SetDefault("server.read_limit", 1<<20)
	v.SetDefault("server.results_buffer", 64)
	v.SetDefault("server.pong_wait", "70s")
	v.SetDefault("ui_language", "ru")
	v.SetDefault("notifications", true)
}

// defaultModelsDir - директория models/ рядом с бинарником, как раньше.
func defaultModelsDir() string {
	execPath, err := os.Executable()
	if err != nil {
		return "models"
	}
	if resolved, err := filepath.EvalSymlinks(execPath); err == nil {
		execPath = resolved
	}
	return filepath.Join(filepath.Dir(execPath), "models")
}

// RegisterFlags добавляет флаги, которые перекрывают значения из файла.
func RegisterFlags(fs *pflag.FlagSet) {
	fs.String("config", "", "путь к файлу конфигурации (yaml, json, toml)")
	fs.String("log-level", "", "уровень логирования (debug, info, warn, error)")
	fs.String("model", "", "путь к файлу модели .april")
	fs.String("model-id", "", "ID модели из реестра")
	fs.String("models-dir", "", "директория моделей")
	fs.String("mode", "", "режим сессии: sync, async-rt, async-nort")
	fs.String("addr", "", "адрес websocket-сервера")
}

var flagKeys = map[string]string{
	"log-level":  "log.level",
	"model":      "model.path",
	"model-id":   "model.id",
	"models-dir": "models_dir",
	"mode":       "session.mode",
	"addr":       "server.addr",
}

// Load читает конфигурацию. path может быть пустым; тогда используется
// config.yaml в текущей директории, если он есть. fs может быть nil.
func Load(path string, fs *pflag.FlagSet) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if fs != nil {
		for name, key := range flagKeys {
			if f := fs.Lookup(name); f != nil {
				if err := v.BindPFlag(key, f); err != nil {
					return nil, fmt.Errorf("флаг %s: %w", name, err)
				}
			}
		}
		if path == "" {
			if f := fs.Lookup("config"); f != nil {
				path = f.Value.String()
			}
		}
	}

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("чтение конфигурации: %w", err)
		}
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		if err := v.ReadInConfig(); err != nil {
			var notFound viper.ConfigFileNotFoundError
			if !errors.As(err, &notFound) {
				return nil, fmt.Errorf("чтение конфигурации: %w", err)
			}
		}
	}

	var s settings
	hook := mapstructure.ComposeDecodeHookFunc(
		mapstructure.StringToTimeDurationHookFunc(),
		mapstructure.TextUnmarshallerHookFunc(),
	)
	if err := v.Unmarshal(&s, viper.DecodeHook(hook)); err != nil {
		return nil, fmt.Errorf("разбор конфигурации: %w", err)
	}

	c := &Config{v: v, s: s, configPath: v.ConfigFileUsed()}
	if err := c.validate(); err != nil {
		return nil, err
	}
	return c, nil
}

func (c *Config) validate() error {
	mode, err := april.ParseMode(c.s.Session.Mode)
	if err != nil {
		return fmt.Errorf("session.mode: %w", err)
	}
	c.mode = mode

	if c.s.Session.Chunk <= 0 {
		return fmt.Errorf("session.chunk должен быть положительным, получено %s", c.s.Session.Chunk)
	}

	hk, err := ParseHotkey(c.s.Dictation.Hotkey)
	if err != nil {
		return fmt.Errorf("dictation.hotkey: %w", err)
	}
	c.hotkey = hk

	if c.s.Server.ReadLimit <= 0 {
		return fmt.Errorf("server.read_limit должен быть положительным")
	}
	if c.s.Server.Results <= 0 {
		return fmt.Errorf("server.results_buffer должен быть положительным")
	}
	if c.s.Model.ID == "" && c.s.Model.Path == "" {
		return fmt.Errorf("нужно указать model.id или model.path")
	}
	return nil
}

// Log возвращает настройки логирования.
func (c *Config) Log() LogConfig {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.s.Log
}

// ModelsDir возвращает директорию моделей.
func (c *Config) ModelsDir() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.s.ModelsDir
}

// ModelID возвращает ID текущей модели распознавания.
func (c *Config) ModelID() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.s.Model.ID
}

// ModelPath возвращает явный путь к модели (может быть пустым).
func (c *Config) ModelPath() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.s.Model.Path
}

// SetModelID устанавливает ID модели и сбрасывает явный путь.
func (c *Config) SetModelID(id string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.s.Model.ID = id
	c.s.Model.Path = ""
	c.v.Set("model.id", id)
	c.v.Set("model.path", "")
}

// SetModelPath задаёт явный путь к модели на время работы (не сохраняется).
func (c *Config) SetModelPath(path string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.s.Model.Path = path
}

// SessionFlags возвращает флаги сессии, соответствующие session.mode.
func (c *Config) SessionFlags() april.ConfigFlags {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.mode
}

// Chunk возвращает длительность куска аудио.
func (c *Config) Chunk() time.Duration {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.s.Session.Chunk
}

// Dictation возвращает настройки диктовки.
func (c *Config) Dictation() DictationConfig {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.s.Dictation
}

// Hotkey возвращает разобранную горячую клавишу.
func (c *Config) Hotkey() HotkeyConfig {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.hotkey
}

// SetHotkey устанавливает горячую клавишу диктовки.
func (c *Config) SetHotkey(hk HotkeyConfig) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.hotkey = hk
	c.s.Dictation.Hotkey = hk.String()
	c.v.Set("dictation.hotkey", hk.String())
}

// Server возвращает настройки сервера.
func (c *Config) Server() ServerConfig {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.s.Server
}

// UILanguage возвращает язык интерфейса.
func (c *Config) UILanguage() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.s.UILanguage
}

// NotificationsEnabled возвращает true если уведомления включены.
func (c *Config) NotificationsEnabled() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.s.Notifications
}

// ToggleNotifications переключает уведомления и возвращает новое значение.
func (c *Config) ToggleNotifications() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.s.Notifications = !c.s.Notifications
	c.v.Set("notifications", c.s.Notifications)
	return c.s.Notifications
}

// Path возвращает файл, из которого загружена конфигурация (может быть пустым).
func (c *Config) Path() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.configPath
}

// Save сохраняет конфигурацию в файл, из которого она была загружена,
// или в path, если он указан.
func (c *Config) Save(path string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if path == "" {
		path = c.configPath
	}
	if path == "" {
		path = "config.yaml"
	}
	if err := c.v.WriteConfigAs(path); err != nil {
		return fmt.Errorf("сохранение конфигурации: %w", err)
	}
	c.configPath = path
	return nil
}
