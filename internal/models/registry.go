// Package models управляет файлами моделей April.
package models

import "strings"

// ModelInfo информация о модели.
type ModelInfo struct {
	ID       string // Уникальный идентификатор: "april-en-us-dev"
	Name     string // Отображаемое имя
	Language string // Код языка, как его возвращает модель: "en"
	Filename string // Имя файла: "april-english-dev-01110_en.april"
	URL      string // URL для скачивания
	Size     int64  // Размер в байтах (для прогресса, если сервер не прислал Content-Length)
}

// Registry все известные модели.
var Registry = []ModelInfo{
	{
		ID:       "april-en-us-dev",
		Name:     "English (dev 01110)",
		Language: "en",
		Filename: "april-english-dev-01110_en.april",
		URL:      "https://huggingface.co/abb128/april-english-dev-01110_en/resolve/main/april-english-dev-01110_en.april",
		Size:     190 * 1024 * 1024,
	},
	{
		ID:       "april-en-us-v0",
		Name:     "English v0",
		Language: "en",
		Filename: "aprilv0_en-us.april",
		URL:      "https://april.sapples.net/aprilv0_en-us.april",
		Size:     120 * 1024 * 1024,
	},
}

// DefaultModelID модель по умолчанию.
func DefaultModelID() string {
	return "april-en-us-dev"
}

// GetModel возвращает модель по ID.
func GetModel(id string) (ModelInfo, bool) {
	for _, m := range Registry {
		if m.ID == id {
			return m, true
		}
	}
	return ModelInfo{}, false
}

// GetModelsByLanguage возвращает модели для языка. Сравнение без учёта регистра,
// "en" совпадает и с "en-US".
func GetModelsByLanguage(lang string) []ModelInfo {
	var result []ModelInfo
	for _, m := range Registry {
		if strings.EqualFold(m.Language, lang) || strings.HasPrefix(strings.ToLower(lang), strings.ToLower(m.Language)+"-") {
			result = append(result, m)
		}
	}
	return result
}
