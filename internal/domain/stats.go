package domain

import "time"

// CurrentJob — краткое описание задачи в работе.
type CurrentJob struct {
	ID    string `json:"id"`
	Title string `json:"title,omitempty"`
}

// Stats — счётчики обработки.
//
// Инвариант: Processed == Succeeded + Failed после каждого
// терминального перехода.
type Stats struct {
	Processed int64 `json:"processed" yaml:"processed"`
	Succeeded int64 `json:"succeeded" yaml:"succeeded"`
	Failed    int64 `json:"failed" yaml:"failed"`

	// CurrentJob присутствует, только если в работе ровно одна задача.
	CurrentJob *CurrentJob `json:"currentJob,omitempty" yaml:"current_job,omitempty"`

	LastProcessedAt *time.Time `json:"lastProcessedAt,omitempty" yaml:"last_processed_at,omitempty"`
}

// HistoryItem — запись в истории обработанных задач.
type HistoryItem struct {
	ID        string        `json:"id" yaml:"id"`
	Title     string        `json:"title,omitempty" yaml:"title,omitempty"`
	URL       string        `json:"url" yaml:"url"`
	Status    HistoryStatus `json:"status" yaml:"status"`
	Timestamp time.Time     `json:"timestamp" yaml:"timestamp"`
	Price     int64         `json:"price" yaml:"price"`

	// Error — причина неудачи (только для failed).
	Error string `json:"error,omitempty" yaml:"error,omitempty"`
}
