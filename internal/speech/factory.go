package speech

import (
	"fmt"
	"sync"

	"aprilgo/internal/models"
)

// Factory управляет созданием и переключением распознавателей.
type Factory struct {
	manager *models.Manager
	opts    Options
	current Recognizer
	modelID string
	mu      sync.RWMutex
}

// NewFactory создаёт фабрику распознавателей.
func NewFactory(manager *models.Manager, opts Options) *Factory {
	return &Factory{
		manager: manager,
		opts:    opts,
	}
}

// Create создаёт распознаватель для модели из реестра.
func (f *Factory) Create(modelID string) (Recognizer, error) {
	path, err := f.manager.Resolve(modelID)
	if err != nil {
		return nil, err
	}
	return f.CreateFromPath(path)
}

// CreateFromPath создаёт распознаватель для файла модели.
func (f *Factory) CreateFromPath(path string) (Recognizer, error) {
	rec, err := NewApril(path, f.opts)
	if err != nil {
		return nil, fmt.Errorf("ошибка создания распознавателя: %w", err)
	}
	return rec, nil
}

// Load загружает модель из реестра и устанавливает её как текущую.
func (f *Factory) Load(modelID string) error {
	rec, err := f.Create(modelID)
	if err != nil {
		return err
	}
	f.Use(rec, modelID)
	return nil
}

// LoadPath загружает модель из файла; ID текущей модели становится путём.
func (f *Factory) LoadPath(path string) error {
	rec, err := f.CreateFromPath(path)
	if err != nil {
		return err
	}
	f.Use(rec, path)
	return nil
}

// Swap атомарно меняет текущий распознаватель на новый (hot-swap).
// Старый закрывается в фоне; его открытые потоки доживают до своего Close.
func (f *Factory) Swap(modelID string) error {
	rec, err := f.Create(modelID)
	if err != nil {
		return err
	}
	if old := f.set(rec, modelID); old != nil {
		go old.Close()
	}
	return nil
}

// Use делает готовый распознаватель текущим и закрывает предыдущий.
func (f *Factory) Use(rec Recognizer, id string) {
	if old := f.set(rec, id); old != nil {
		old.Close()
	}
}

// set делает rec текущим и возвращает предыдущий.
func (f *Factory) set(rec Recognizer, id string) Recognizer {
	f.mu.Lock()
	defer f.mu.Unlock()
	old := f.current
	f.current = rec
	f.modelID = id
	return old
}

// Current возвращает текущий распознаватель (thread-safe).
func (f *Factory) Current() Recognizer {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return f.current
}

// CurrentModelID возвращает ID текущей модели.
func (f *Factory) CurrentModelID() string {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return f.modelID
}

// IsLoaded проверяет, загружена ли модель.
func (f *Factory) IsLoaded() bool {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return f.current != nil
}

// Close закрывает текущий распознаватель.
func (f *Factory) Close() {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.current != nil {
		f.current.Close()
		f.current = nil
	}
}
