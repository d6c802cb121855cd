package workflow

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"github.com/oklog/ulid/v2"

	"github.com/m3rciful/coachbot/core/logger"
	"github.com/m3rciful/coachbot/internal/fault"
	"github.com/m3rciful/coachbot/internal/session"
	"github.com/m3rciful/coachbot/internal/storage"
)

// Plan file kinds.
const (
	PlanDocument = "document"
	PlanPhoto    = "photo"
)

// Plan is a training plan an admin delivered to a user.
type Plan struct {
	ID          string    `json:"id"`
	UserID      int64     `json:"user_id"`
	Course      string    `json:"course"`
	FileID      string    `json:"file_id"`
	FileKind    string    `json:"file_kind"`
	Description string    `json:"description"`
	UploadedBy  int64     `json:"uploaded_by"`
	CreatedAt   time.Time `json:"created_at"`
}

type planList struct {
	Plans []Plan `json:"plans"`
}

func planKey(userID int64) string { return strconv.FormatInt(userID, 10) }

// ErrNoUpload means a plan file or description arrived outside the upload flow.
var ErrNoUpload = errors.New("workflow: no plan upload in progress")

// BeginPlanUpload makes the admin's next file the plan for target.
func (m *Machine) BeginPlanUpload(ctx context.Context, adminID, target int64, course string) error {
	if _, ok := m.Catalog.Course(course); !ok {
		return fault.State("course.unknown", ErrUnknownCourse)
	}
	_, err := m.Sessions.Merge(ctx, adminID, session.Patch{
		Waiting: session.Ptr(session.AdminUpload(session.StagePlanFile, target, course)),
	})
	return err
}

// ReceivePlanFile stores the uploaded file and asks for a description.
func (m *Machine) ReceivePlanFile(ctx context.Context, adminID int64, fileID, kind string) (session.Waiting, error) {
	sess := m.Sessions.Get(ctx, adminID)
	w := sess.Waiting
	if w.Kind != session.WaitAdminUpload || w.Stage != session.StagePlanFile {
		return session.Waiting{}, fault.State("plan.no_upload", ErrNoUpload)
	}
	w.Stage = session.StageDescription
	w.FileID = fileID
	w.FileKind = kind
	if _, err := m.Sessions.Merge(ctx, adminID, session.Patch{Waiting: &w}); err != nil {
		return session.Waiting{}, err
	}
	return w, nil
}

// ReceivePlanDescription completes the upload, stores the plan and sends it to
// the user. A failed delivery is reported but the plan stays stored.
func (m *Machine) ReceivePlanDescription(ctx context.Context, adminID int64, text string) (Plan, error) {
	sess := m.Sessions.Get(ctx, adminID)
	w := sess.Waiting
	if w.Kind != session.WaitAdminUpload || w.Stage != session.StageDescription {
		return Plan{}, fault.State("plan.no_upload", ErrNoUpload)
	}
	desc := strings.TrimSpace(text)
	if desc == "" {
		return Plan{}, fault.Validation("plan.empty_description", "📝 لطفاً توضیحات برنامه را بنویسید.")
	}
	plan := Plan{
		ID:          ulid.Make().String(),
		UserID:      w.TargetUser,
		Course:      w.Course,
		FileID:      w.FileID,
		FileKind:    w.FileKind,
		Description: desc,
		UploadedBy:  adminID,
		CreatedAt:   m.now().UTC(),
	}
	err := storage.UpdateJSON(ctx, m.Docs, storage.Plans, planKey(plan.UserID), func(l *planList, _ bool) error {
		l.Plans = append(l.Plans, plan)
		return nil
	})
	if err != nil {
		return Plan{}, fmt.Errorf("store plan: %w", err)
	}
	if _, err := m.Sessions.ClearTransient(ctx, adminID, "plan_uploaded"); err != nil {
		return plan, err
	}
	logger.Info(ctx, component, "workflow.plan_upload",
		slog.String("status", "ok"),
		slog.Int64("admin_id", adminID),
		slog.Int64("user_id", plan.UserID),
		slog.String("course", plan.Course),
	)
	if m.Notifier != nil && m.Presenter != nil {
		if err := m.Notifier.User(ctx, plan.UserID, m.Presenter.PlanForUser(plan), plan.Description); err != nil {
			return plan, err
		}
	}
	return plan, nil
}

// Plans returns the plans delivered to userID, oldest first.
func (m *Machine) Plans(ctx context.Context, userID int64) ([]Plan, error) {
	l, err := storage.GetJSON[planList](ctx, m.Docs, storage.Plans, planKey(userID))
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return l.Plans, nil
}
