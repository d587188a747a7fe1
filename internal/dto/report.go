package dto

// WaitingReportQuery selects the summary window and bucket size.
type WaitingReportQuery struct {
	From        string `form:"from" validate:"required,datetime=2006-01-02"`
	To          string `form:"to" validate:"required,datetime=2006-01-02"`
	Granularity string `form:"granularity" validate:"omitempty,oneof=week month"`
}

// ExportQuery selects the dataset and file format of an export. Waiting exports
// need a date window, timetable exports a batch id.
type ExportQuery struct {
	Kind        string `form:"kind" validate:"required,oneof=waiting timetable"`
	Format      string `form:"format" validate:"required,oneof=xlsx csv pdf"`
	From        string `form:"from" validate:"omitempty,datetime=2006-01-02"`
	To          string `form:"to" validate:"omitempty,datetime=2006-01-02"`
	Granularity string `form:"granularity" validate:"omitempty,oneof=week month"`
	BatchID     string `form:"batchId"`
}
