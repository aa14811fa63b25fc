package domain

import "time"

// User-facing strings for the spam-blocked terminal result. These mirror the
// values support staff see in the SMAX interface, so they stay in Russian.
const (
	SpamGroup            = "СПАМ-ФИЛЬТР"
	SpamExpert           = "Система защиты"
	SpamLabel            = "Заблокировано"
	SpamModerationReason = "Обнаружен спам"
	SpamMessage          = "Запрос заблокирован спам-фильтром"
)

// Fallback values returned when no trained model is available.
const (
	FallbackGroup            = "Общая группа поддержки"
	FallbackExpert           = "Специалист первой линии"
	FallbackLabel            = "Стандартная заявка"
	FallbackConfidence       = 0.1
	FallbackModerationReason = "Модель не обучена - требуется ручная проверка"
	FallbackMessage          = "Модель не обучена. Загрузите данные через /api/v1/ingest"
)

// Prediction is the final triage decision for one ticket.
type Prediction struct {
	Group            string  `json:"group"`
	Expert           string  `json:"expert"`
	Label            string  `json:"label"`
	Confidence       float64 `json:"confidence"`
	GroupConfidence  float64 `json:"group_confidence"`
	ExpertConfidence float64 `json:"expert_confidence"`
	LabelConfidence  float64 `json:"label_confidence"`
	IsSpam           bool    `json:"is_spam"`
	SpamReason       string  `json:"spam_message,omitempty"`
	Fallback         bool    `json:"fallback,omitempty"`
	NeedsModeration  bool    `json:"needs_moderation"`
	ModerationReason string  `json:"moderation_reason,omitempty"`
	Message          string  `json:"message,omitempty"`
}

// SpamPrediction builds the terminal result for a gated request.
func SpamPrediction(gateReason string) Prediction {
	return Prediction{
		Group:            SpamGroup,
		Expert:           SpamExpert,
		Label:            SpamLabel,
		IsSpam:           true,
		SpamReason:       gateReason,
		NeedsModeration:  true,
		ModerationReason: SpamModerationReason,
		Message:          SpamMessage,
	}
}

// FallbackPrediction builds the generic result used when the model is not
// trained or a prediction-path error was swallowed.
func FallbackPrediction() Prediction {
	return Prediction{
		Group:            FallbackGroup,
		Expert:           FallbackExpert,
		Label:            FallbackLabel,
		Confidence:       FallbackConfidence,
		GroupConfidence:  FallbackConfidence,
		ExpertConfidence: FallbackConfidence,
		LabelConfidence:  FallbackConfidence,
		Fallback:         true,
		NeedsModeration:  true,
		ModerationReason: FallbackModerationReason,
		Message:          FallbackMessage,
	}
}

// SourceFileInfo describes one ingested source file.
type SourceFileInfo struct {
	Records  int       `json:"records"`
	LoadedAt time.Time `json:"loaded_at"`
}

// Stats summarizes the current corpus.
type Stats struct {
	TotalRecords      int                       `json:"total_records"`
	GroupsCount       int                       `json:"groups_count"`
	ExpertsCount      int                       `json:"experts_count"`
	LabelsCount       int                       `json:"labels_count"`
	IngestedFilesInfo map[string]SourceFileInfo `json:"loaded_files_info"`
}
