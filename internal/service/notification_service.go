package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/noah-isme/sma-standby-api/internal/models"
	appErrors "github.com/noah-isme/sma-standby-api/pkg/errors"
	"github.com/noah-isme/sma-standby-api/pkg/jobs"
)

// JobTypeNotifySubstitute is the queue job type for substitute notifications.
const JobTypeNotifySubstitute = "notify_substitute"

var arabicWeekdays = map[time.Weekday]string{
	time.Sunday:    "الأحد",
	time.Monday:    "الاثنين",
	time.Tuesday:   "الثلاثاء",
	time.Wednesday: "الأربعاء",
	time.Thursday:  "الخميس",
	time.Friday:    "الجمعة",
	time.Saturday:  "السبت",
}

// FormatMessage renders the notification text for a waiting assignment. Every
// field the template references must be present.
func FormatMessage(a models.WaitingAssignment, channel models.Channel, schoolName string) (string, error) {
	var missing []string
	if strings.TrimSpace(a.SubstituteTeacherName) == "" {
		missing = append(missing, "substitute_teacher_name")
	}
	if strings.TrimSpace(a.AbsentTeacherName) == "" {
		missing = append(missing, "absent_teacher_name")
	}
	if strings.TrimSpace(a.ClassName) == "" {
		missing = append(missing, "class_name")
	}
	if strings.TrimSpace(a.Subject) == "" {
		missing = append(missing, "subject")
	}
	if a.PeriodNumber <= 0 {
		missing = append(missing, "period_number")
	}
	if a.Date.IsZero() {
		missing = append(missing, "date")
	}
	if strings.TrimSpace(schoolName) == "" {
		missing = append(missing, "school_name")
	}
	if len(missing) > 0 {
		return "", appErrors.Clone(appErrors.ErrValidation, "notification fields missing: "+strings.Join(missing, ", "))
	}

	day := arabicWeekdays[a.Date.Weekday()]
	date := a.Date.Format("2006-01-02")

	switch channel {
	case models.ChannelWhatsApp:
		var b strings.Builder
		fmt.Fprintf(&b, "*%s*\n\n", schoolName)
		fmt.Fprintf(&b, "الأستاذ/ %s\n", a.SubstituteTeacherName)
		b.WriteString("السلام عليكم ورحمة الله وبركاته\n\n")
		b.WriteString("تم تكليفكم بحصة انتظار:\n")
		fmt.Fprintf(&b, "• اليوم: %s %s\n", day, date)
		fmt.Fprintf(&b, "• الحصة: %d\n", a.PeriodNumber)
		fmt.Fprintf(&b, "• الفصل: %s\n", a.ClassName)
		fmt.Fprintf(&b, "• المادة: %s\n", a.Subject)
		fmt.Fprintf(&b, "• بدلاً من: %s\n\n", a.AbsentTeacherName)
		b.WriteString("نرجو التأكيد، وشكراً لتعاونكم.")
		return b.String(), nil
	case models.ChannelSMS:
		return fmt.Sprintf("%s: أ. %s، لديك حصة انتظار %s %s الحصة %d فصل %s (%s) بدلاً من %s",
			schoolName, a.SubstituteTeacherName, day, date, a.PeriodNumber, a.ClassName, a.Subject, a.AbsentTeacherName), nil
	default:
		return "", appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("unsupported channel %q", channel))
	}
}

type jobDispatcher interface {
	Enqueue(job jobs.Job) error
}

type notificationAssignmentStore interface {
	FindByID(ctx context.Context, id string) (*models.WaitingAssignment, error)
	MarkNotified(ctx context.Context, id string) error
	MarkConfirmed(ctx context.Context, id string) error
}

type notificationTeacherReader interface {
	FindByID(ctx context.Context, id string) (*models.Teacher, error)
}

// NotificationSender delivers a rendered message.
type NotificationSender interface {
	Send(ctx context.Context, n models.Notification) error
}

// LogSender writes notifications to the log instead of a gateway.
type LogSender struct {
	logger *zap.Logger
}

// NewLogSender constructs a LogSender.
func NewLogSender(logger *zap.Logger) *LogSender {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &LogSender{logger: logger}
}

// Send logs the notification.
func (s *LogSender) Send(_ context.Context, n models.Notification) error {
	s.logger.Info("notification delivered",
		zap.String("assignment_id", n.AssignmentID),
		zap.String("teacher_id", n.TeacherID),
		zap.String("channel", string(n.Channel)),
		zap.Int("length", len(n.Body)),
	)
	return nil
}

// NotificationConfig carries defaults for rendering.
type NotificationConfig struct {
	SchoolName     string
	DefaultChannel models.Channel
}

type notifyPayload struct {
	Channel models.Channel
}

// NotificationService previews, dispatches and confirms substitute notifications.
type NotificationService struct {
	assignments notificationAssignmentStore
	queue       jobDispatcher
	cache       *CacheService
	metrics     *MetricsService
	logger      *zap.Logger
	cfg         NotificationConfig
}

// NewNotificationService wires notification dependencies.
func NewNotificationService(assignments notificationAssignmentStore, queue jobDispatcher, cache *CacheService, metrics *MetricsService, logger *zap.Logger, cfg NotificationConfig) *NotificationService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if !cfg.DefaultChannel.Valid() {
		cfg.DefaultChannel = models.ChannelWhatsApp
	}
	return &NotificationService{
		assignments: assignments,
		queue:       queue,
		cache:       cache,
		metrics:     metrics,
		logger:      logger,
		cfg:         cfg,
	}
}

// Preview renders the message for an assignment without sending it. A
// non-empty substituteID must match the assignment's substitute.
func (s *NotificationService) Preview(ctx context.Context, id, substituteID string, channel models.Channel, schoolName string) (string, error) {
	assignment, err := s.load(ctx, id)
	if err != nil {
		return "", err
	}
	if substituteID != "" && assignment.SubstituteTeacherID != substituteID {
		return "", appErrors.Clone(appErrors.ErrForbidden, "assignment belongs to another teacher")
	}
	if channel == "" {
		channel = s.cfg.DefaultChannel
	}
	if schoolName == "" {
		schoolName = s.cfg.SchoolName
	}
	return FormatMessage(*assignment, channel, schoolName)
}

// Dispatch validates the assignment renders and queues it for delivery.
func (s *NotificationService) Dispatch(ctx context.Context, id string, channel models.Channel) error {
	assignment, err := s.load(ctx, id)
	if err != nil {
		return err
	}
	return s.DispatchAssignments(ctx, []models.WaitingAssignment{*assignment}, channel)
}

// DispatchAssignments queues every assignment for delivery on channel.
func (s *NotificationService) DispatchAssignments(_ context.Context, assignments []models.WaitingAssignment, channel models.Channel) error {
	if channel == "" {
		channel = s.cfg.DefaultChannel
	}
	for _, a := range assignments {
		if _, err := FormatMessage(a, channel, s.cfg.SchoolName); err != nil {
			return err
		}
	}
	if s.queue == nil {
		return appErrors.Clone(appErrors.ErrInternal, "notification queue unavailable")
	}
	for _, a := range assignments {
		job := jobs.Job{ID: a.ID, Type: JobTypeNotifySubstitute, Payload: notifyPayload{Channel: channel}}
		if err := s.queue.Enqueue(job); err != nil {
			s.logger.Warn("failed to enqueue notification", zap.String("assignment_id", a.ID), zap.Error(err))
			return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to enqueue notification")
		}
	}
	return nil
}

// Confirm records the substitute's acknowledgement. A non-empty substituteID
// must match the assignment's substitute.
func (s *NotificationService) Confirm(ctx context.Context, id, substituteID string) (*models.WaitingAssignment, error) {
	assignment, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}
	if substituteID != "" && assignment.SubstituteTeacherID != substituteID {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "assignment belongs to another teacher")
	}
	if err := s.assignments.MarkConfirmed(ctx, id); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to confirm assignment")
	}
	s.metrics.RecordConfirmation()
	s.cache.Invalidate(ctx, "reports")
	return s.load(ctx, id)
}

func (s *NotificationService) load(ctx context.Context, id string) (*models.WaitingAssignment, error) {
	if strings.TrimSpace(id) == "" {
		return nil, appErrors.Clone(appErrors.ErrValidation, "assignment id is required")
	}
	assignment, err := s.assignments.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "waiting assignment not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load waiting assignment")
	}
	return assignment, nil
}

// NotificationWorker bridges queue jobs to the sender.
type NotificationWorker struct {
	assignments notificationAssignmentStore
	teachers    notificationTeacherReader
	sender      NotificationSender
	cache       *CacheService
	metrics     *MetricsService
	logger      *zap.Logger
	cfg         NotificationConfig
}

// NewNotificationWorker constructs a worker. A nil sender logs messages.
func NewNotificationWorker(assignments notificationAssignmentStore, teachers notificationTeacherReader, sender NotificationSender, cache *CacheService, metrics *MetricsService, logger *zap.Logger, cfg NotificationConfig) *NotificationWorker {
	if logger == nil {
		logger = zap.NewNop()
	}
	if sender == nil {
		sender = NewLogSender(logger)
	}
	if !cfg.DefaultChannel.Valid() {
		cfg.DefaultChannel = models.ChannelWhatsApp
	}
	return &NotificationWorker{
		assignments: assignments,
		teachers:    teachers,
		sender:      sender,
		cache:       cache,
		metrics:     metrics,
		logger:      logger,
		cfg:         cfg,
	}
}

// Handle renders and delivers one notification, then flags the assignment as sent.
func (w *NotificationWorker) Handle(ctx context.Context, job jobs.Job) error {
	assignment, err := w.assignments.FindByID(ctx, job.ID)
	if err != nil {
		return fmt.Errorf("load assignment %s: %w", job.ID, err)
	}
	if assignment.IsNotificationSent {
		return nil
	}

	channel := w.cfg.DefaultChannel
	if payload, ok := job.Payload.(notifyPayload); ok && payload.Channel.Valid() {
		channel = payload.Channel
	}

	body, err := FormatMessage(*assignment, channel, w.cfg.SchoolName)
	if err != nil {
		w.logger.Warn("notification not renderable", zap.String("assignment_id", job.ID), zap.Error(err))
		return nil
	}

	notification := models.Notification{
		AssignmentID: assignment.ID,
		TeacherID:    assignment.SubstituteTeacherID,
		Channel:      channel,
		Body:         body,
	}
	if w.teachers != nil {
		if teacher, err := w.teachers.FindByID(ctx, assignment.SubstituteTeacherID); err == nil && teacher.Phone != nil {
			notification.Phone = *teacher.Phone
		}
	}

	if err := w.sender.Send(ctx, notification); err != nil {
		w.metrics.RecordNotification(string(channel), false)
		return fmt.Errorf("send notification %s: %w", job.ID, err)
	}
	w.metrics.RecordNotification(string(channel), true)

	// The message is out; a retry here would deliver it twice.
	if err := w.assignments.MarkNotified(ctx, assignment.ID); err != nil {
		w.logger.Warn("notification sent but not flagged", zap.String("assignment_id", assignment.ID), zap.Error(err))
	}
	w.cache.Invalidate(ctx, "reports")
	return nil
}
