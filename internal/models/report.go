package models

// Granularity selects the report bucket size.
type Granularity string

const (
	GranularityWeek  Granularity = "week"
	GranularityMonth Granularity = "month"
)

// WaitingSummary folds a teacher's standby assignments for one period bucket.
type WaitingSummary struct {
	Period      string `json:"period"`
	TeacherID   string `json:"teacher_id"`
	TeacherName string `json:"teacher_name"`
	Assignments int    `json:"assignments"`
	Notified    int    `json:"notified"`
	Confirmed   int    `json:"confirmed"`
}

// ExportKind selects which dataset an export renders.
type ExportKind string

const (
	ExportWaiting   ExportKind = "waiting"
	ExportTimetable ExportKind = "timetable"
)

// ExportFormat is the rendered file type.
type ExportFormat string

const (
	FormatXLSX ExportFormat = "xlsx"
	FormatCSV  ExportFormat = "csv"
	FormatPDF  ExportFormat = "pdf"
)
