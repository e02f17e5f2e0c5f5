package models

// TransformedData содержит трансформированные данные для загрузки и отчетов
type TransformedData struct {
	// Месячные показатели
	Monthly     []MonthlyFact
	MarketShare []MarketShareFact

	// Когорты
	Cohorts     *CohortMatrix
	CohortValue []CohortValueSnapshot

	// Клиенты (nil, если показатель не удалось посчитать; причина в Metadata.Warnings)
	Segmentation  *SegmentationSummary
	Concentration *ConcentrationSummary
	ObservedValue *ObservedValueSummary
	Engagement    *EngagementSummary

	// Метаданные
	Metadata ETLMetadata
}
