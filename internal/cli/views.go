package cli

import (
	"context"
	"fmt"
	"io"
	"strconv"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/google/uuid"

	"github.com/roach88/phasetrack/internal/domain"
)

const dateLayout = "2006-01-02"

// UserView is the public shape of a user. The password hash never leaves
// the service.
type UserView struct {
	ID                uuid.UUID  `json:"id"`
	Username          string     `json:"username"`
	CreatedAt         time.Time  `json:"created_at"`
	PasswordChangedAt *time.Time `json:"password_changed_at,omitempty"`
}

func userView(u domain.User) UserView {
	return UserView{ID: u.ID, Username: u.Username, CreatedAt: u.CreatedAt, PasswordChangedAt: u.PasswordChangedAt}
}

// ItemView flattens a phase item for output.
type ItemView struct {
	ID          uuid.UUID  `json:"id"`
	PhaseID     uuid.UUID  `json:"phase_id"`
	Type        string     `json:"type"`
	ParentID    *uuid.UUID `json:"parent_id,omitempty"`
	Number      int        `json:"number"`
	Name        string     `json:"name"`
	State       string     `json:"state"`
	Description string     `json:"description,omitempty"`
	StartDate   *time.Time `json:"start_date,omitempty"`
	EndDate     *time.Time `json:"end_date,omitempty"`
	CreatedBy   uuid.UUID  `json:"created_by"`
}

func itemView(it domain.PhaseItem) ItemView {
	return ItemView{
		ID:          it.ID,
		PhaseID:     it.PhaseID,
		Type:        string(it.Type()),
		ParentID:    it.ParentID(),
		Number:      it.Number,
		Name:        it.Name,
		State:       string(it.State),
		Description: it.Description,
		StartDate:   it.StartDate,
		EndDate:     it.EndDate,
		CreatedBy:   it.CreatedBy,
	}
}

// VersionView omits the payload, which is written separately.
type VersionView struct {
	ID            uuid.UUID `json:"id"`
	DocumentID    uuid.UUID `json:"document_id"`
	VersionNumber int       `json:"version"`
	CreatedBy     uuid.UUID `json:"created_by"`
	CreatedAt     time.Time `json:"created_at"`
	Observations  string    `json:"observations,omitempty"`
	Extension     string    `json:"extension,omitempty"`
	Size          int       `json:"size"`
}

func versionView(v domain.DocumentVersion) VersionView {
	return VersionView{
		ID:            v.ID,
		DocumentID:    v.DocumentID,
		VersionNumber: v.VersionNumber,
		CreatedBy:     v.CreatedBy,
		CreatedAt:     v.CreatedAt,
		Observations:  v.Observations,
		Extension:     v.Extension,
		Size:          len(v.Payload),
	}
}

// ArtifactVersionView omits the content.
type ArtifactVersionView struct {
	ArtifactID    int64     `json:"artifact_id"`
	VersionNumber int       `json:"version"`
	Notes         string    `json:"notes,omitempty"`
	CreatedBy     uuid.UUID `json:"created_by"`
	CreatedAt     time.Time `json:"created_at"`
	Size          int       `json:"size"`
}

func artifactVersionView(v domain.ArtifactVersion) ArtifactVersionView {
	return ArtifactVersionView{
		ArtifactID:    v.ArtifactID,
		VersionNumber: v.VersionNumber,
		Notes:         v.Notes,
		CreatedBy:     v.CreatedBy,
		CreatedAt:     v.CreatedAt,
		Size:          len(v.Content),
	}
}

// table writes tab-aligned rows.
func table(w io.Writer, header []string, rows [][]string) error {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, strings.Join(header, "\t"))
	for _, r := range rows {
		fmt.Fprintln(tw, strings.Join(r, "\t"))
	}
	return tw.Flush()
}

func lines(format string, args ...any) func(io.Writer) error {
	return func(w io.Writer) error {
		_, err := fmt.Fprintf(w, format+"\n", args...)
		return err
	}
}

func parseID(kind, s string) (uuid.UUID, error) {
	id, err := uuid.Parse(strings.TrimSpace(s))
	if err != nil {
		return uuid.Nil, domain.Validationf("invalid %s id %q", kind, s)
	}
	return id, nil
}

func parseArtifactID(s string) (int64, error) {
	id, err := strconv.ParseInt(strings.TrimSpace(s), 10, 64)
	if err != nil || id <= 0 {
		return 0, domain.Validationf("invalid artifact id %q", s)
	}
	return id, nil
}

// parseDate accepts YYYY-MM-DD. Empty means unset.
func parseDate(flag, s string) (*time.Time, error) {
	if s == "" {
		return nil, nil
	}
	t, err := time.ParseInLocation(dateLayout, s, time.UTC)
	if err != nil {
		return nil, domain.Validationf("--%s: expected YYYY-MM-DD, got %q", flag, s)
	}
	return &t, nil
}

func formatDate(t *time.Time) string {
	if t == nil {
		return "-"
	}
	return t.Format(dateLayout)
}

// Name resolution for arguments given by name rather than id.

func (s *session) userID(ctx context.Context, username string) (uuid.UUID, error) {
	u, err := s.svc.GetUserByName(ctx, username)
	return u.ID, err
}

func (s *session) project(ctx context.Context, identifier string) (domain.Project, error) {
	return s.svc.GetProjectByIdentifier(ctx, identifier)
}

func (s *session) phase(ctx context.Context, identifier, code string) (domain.Phase, error) {
	c, err := domain.ParsePhaseCode(code)
	if err != nil {
		return domain.Phase{}, err
	}
	p, err := s.project(ctx, identifier)
	if err != nil {
		return domain.Phase{}, err
	}
	return s.svc.GetPhaseByCode(ctx, p.ID, c)
}

func (s *session) roleID(ctx context.Context, name string) (uuid.UUID, error) {
	r, err := s.svc.GetRoleByName(ctx, name)
	return r.ID, err
}

func (s *session) permissionID(ctx context.Context, name string) (uuid.UUID, error) {
	p, err := s.svc.GetPermissionByName(ctx, name)
	return p.ID, err
}

func (s *session) artefactID(ctx context.Context, name string) (uuid.UUID, error) {
	a, err := s.svc.GetArtefactByName(ctx, name)
	return a.ID, err
}
