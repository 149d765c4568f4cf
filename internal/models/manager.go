package models

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"sync"

	"go.uber.org/zap"
)

// ErrUnknownModel возвращается для ID, которого нет в реестре.
var ErrUnknownModel = errors.New("unknown model id")

// ErrNotDownloaded возвращается, если файл модели ещё не скачан.
var ErrNotDownloaded = errors.New("model is not downloaded")

// Progress информация о прогрессе загрузки.
type Progress struct {
	ModelID    string
	Downloaded int64
	Total      int64
	Done       bool
}

// Manager управляет моделями в одной директории.
type Manager struct {
	modelsDir string
	client    *http.Client
	log       *zap.Logger
	mu        sync.Mutex
}

// NewManager создаёт менеджер и директорию моделей, если её нет.
func NewManager(dir string, log *zap.Logger) (*Manager, error) {
	if dir == "" {
		return nil, errors.New("models: empty models directory")
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("models: create %s: %w", dir, err)
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &Manager{modelsDir: dir, client: http.DefaultClient, log: log}, nil
}

// SetHTTPClient заменяет клиент для скачивания.
func (m *Manager) SetHTTPClient(c *http.Client) {
	m.client = c
}

// ModelsDir возвращает путь к директории моделей.
func (m *Manager) ModelsDir() string {
	return m.modelsDir
}

// Path возвращает полный путь к файлу модели.
func (m *Manager) Path(info ModelInfo) string {
	return filepath.Join(m.modelsDir, info.Filename)
}

// IsDownloaded проверяет, что файл модели есть и не пустой.
func (m *Manager) IsDownloaded(info ModelInfo) bool {
	stat, err := os.Stat(m.Path(info))
	if err != nil {
		return false
	}
	return stat.Mode().IsRegular() && stat.Size() > 0
}

// ListDownloaded возвращает список скачанных моделей.
func (m *Manager) ListDownloaded() []ModelInfo {
	var downloaded []ModelInfo
	for _, model := range Registry {
		if m.IsDownloaded(model) {
			downloaded = append(downloaded, model)
		}
	}
	return downloaded
}

// Resolve возвращает путь к скачанной модели по ID.
func (m *Manager) Resolve(id string) (string, error) {
	info, ok := GetModel(id)
	if !ok {
		return "", fmt.Errorf("models: %q: %w", id, ErrUnknownModel)
	}
	if !m.IsDownloaded(info) {
		return "", fmt.Errorf("models: %q: %w (run `april models download %s`)", id, ErrNotDownloaded, id)
	}
	return m.Path(info), nil
}

// Download скачивает модель.
// progress получает обновления о прогрессе (можно nil); промежуточные
// обновления отбрасываются, если канал занят.
func (m *Manager) Download(ctx context.Context, info ModelInfo, progress chan<- Progress) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.IsDownloaded(info) {
		if progress != nil {
			progress <- Progress{ModelID: info.ID, Downloaded: info.Size, Total: info.Size, Done: true}
		}
		return nil
	}

	m.log.Info("downloading model", zap.String("id", info.ID), zap.String("url", info.URL))
	if err := m.downloadFile(ctx, info, progress); err != nil {
		return fmt.Errorf("models: download %s: %w", info.ID, err)
	}
	m.log.Info("model downloaded", zap.String("id", info.ID), zap.String("path", m.Path(info)))
	return nil
}

func (m *Manager) downloadFile(ctx context.Context, info ModelInfo, progress chan<- Progress) error {
	destPath := m.Path(info)

	// Временный файл рядом с целевым, чтобы rename был атомарным
	tmpPath := destPath + ".tmp"
	defer os.Remove(tmpPath)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, info.URL, nil)
	if err != nil {
		return err
	}

	resp, err := m.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("HTTP %s", resp.Status)
	}

	total := resp.ContentLength
	if total <= 0 {
		total = info.Size
	}

	file, err := os.Create(tmpPath)
	if err != nil {
		return err
	}
	defer file.Close()

	var downloaded int64
	buf := make([]byte, 32*1024)

	for {
		if err := ctx.Err(); err != nil {
			return err
		}

		n, err := resp.Body.Read(buf)
		if n > 0 {
			if _, werr := file.Write(buf[:n]); werr != nil {
				return werr
			}
			downloaded += int64(n)

			if progress != nil {
				select {
				case progress <- Progress{ModelID: info.ID, Downloaded: downloaded, Total: total}:
				default:
				}
			}
		}
		if err == io.EOF {
			break
		}
		if err != nil {
			return err
		}
	}

	if downloaded == 0 {
		return errors.New("empty response body")
	}
	if err := file.Close(); err != nil {
		return err
	}

	if err := os.Rename(tmpPath, destPath); err != nil {
		return err
	}

	if progress != nil {
		progress <- Progress{ModelID: info.ID, Downloaded: downloaded, Total: downloaded, Done: true}
	}
	return nil
}

// Delete удаляет файл модели.
func (m *Manager) Delete(info ModelInfo) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	err := os.Remove(m.Path(info))
	if errors.Is(err, os.ErrNotExist) {
		return nil
	}
	return err
}
