package plan

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/google/uuid"

	"github.com/roach88/phasetrack/internal/domain"
	"github.com/roach88/phasetrack/internal/service"
)

// Result counts what Apply created. Reused counts catalog entries (users,
// permissions, roles, artefacts) that already existed; Skipped counts
// projects that already existed and were left untouched.
type Result struct {
	Users       int `json:"users"`
	Permissions int `json:"permissions"`
	Roles       int `json:"roles"`
	Artefacts   int `json:"artefacts"`
	Projects    int `json:"projects"`
	Phases      int `json:"phases"`
	Items       int `json:"items"`
	Documents   int `json:"documents"`
	Versions    int `json:"versions"`
	Assignments int `json:"assignments"`
	Reused      int `json:"reused"`
	Skipped     int `json:"skipped"`
}

// Applier writes a Plan through a Service.
type Applier struct {
	svc    *service.Service
	logger *slog.Logger

	users       map[string]uuid.UUID
	roles       map[string]uuid.UUID
	permissions map[string]uuid.UUID
	artefacts   map[string]uuid.UUID
}

// NewApplier returns an Applier. A nil logger means slog.Default().
func NewApplier(svc *service.Service, logger *slog.Logger) *Applier {
	if logger == nil {
		logger = slog.Default()
	}
	return &Applier{
		svc:         svc,
		logger:      logger,
		users:       make(map[string]uuid.UUID),
		roles:       make(map[string]uuid.UUID),
		permissions: make(map[string]uuid.UUID),
		artefacts:   make(map[string]uuid.UUID),
	}
}

// Apply creates everything in p, in file order. Catalog entries that
// already exist are reused. A project that already exists is skipped; a
// project that fails partway is deleted again, so a failed apply can be
// re-run once the plan is fixed. The returned Result counts what was
// created before the failure.
func (a *Applier) Apply(ctx context.Context, p *Plan) (Result, error) {
	var res Result

	for _, u := range p.Users {
		user, err := a.svc.CreateUser(ctx, u.Username, u.Password)
		user, created, err := reuse(user, err, func() (domain.User, error) {
			return a.svc.GetUserByName(ctx, u.Username)
		})
		if err != nil {
			return res, fmt.Errorf("create user %q: %w", u.Username, err)
		}
		a.users[u.Username] = user.ID
		res.count(created, &res.Users)
	}

	for _, perm := range p.Permissions {
		got, err := a.svc.CreatePermission(ctx, perm.Name, perm.Description)
		got, created, err := reuse(got, err, func() (domain.Permission, error) {
			return a.svc.GetPermissionByName(ctx, perm.Name)
		})
		if err != nil {
			return res, fmt.Errorf("create permission %q: %w", perm.Name, err)
		}
		a.permissions[perm.Name] = got.ID
		res.count(created, &res.Permissions)
	}

	for _, r := range p.Roles {
		role, err := a.svc.CreateRole(ctx, r.Name, r.Description)
		role, created, err := reuse(role, err, func() (domain.Role, error) {
			return a.svc.GetRoleByName(ctx, r.Name)
		})
		if err != nil {
			return res, fmt.Errorf("create role %q: %w", r.Name, err)
		}
		a.roles[r.Name] = role.ID
		res.count(created, &res.Roles)
		for _, name := range r.Permissions {
			permID, err := a.permission(ctx, name)
			if err != nil {
				return res, fmt.Errorf("role %q: %w", r.Name, err)
			}
			err = a.svc.AssignPermission(ctx, role.ID, permID)
			if err != nil && !domain.IsConflict(err) {
				return res, fmt.Errorf("role %q: grant %q: %w", r.Name, name, err)
			}
		}
	}

	for _, art := range p.Artefacts {
		got, err := a.svc.CreateArtefact(ctx, art.Name, art.Description)
		got, created, err := reuse(got, err, func() (domain.Artefact, error) {
			return a.svc.GetArtefactByName(ctx, art.Name)
		})
		if err != nil {
			return res, fmt.Errorf("create artefact %q: %w", art.Name, err)
		}
		a.artefacts[art.Name] = got.ID
		res.count(created, &res.Artefacts)
	}

	for i := range p.Projects {
		if err := a.applyProject(ctx, &p.Projects[i], &res); err != nil {
			return res, fmt.Errorf("project %q: %w", p.Projects[i].Identifier, err)
		}
	}

	a.logger.Info("plan applied",
		"users", res.Users,
		"projects", res.Projects,
		"items", res.Items,
		"versions", res.Versions,
		"reused", res.Reused,
		"skipped", res.Skipped,
	)
	return res, nil
}

// reuse turns a Conflict from a create call into a lookup of the entity
// that is already there. created reports whether v is new.
func reuse[T any](v T, err error, lookup func() (T, error)) (T, bool, error) {
	if !domain.IsConflict(err) {
		return v, err == nil, err
	}
	existing, err := lookup()
	return existing, false, err
}

func (r *Result) count(created bool, n *int) {
	if created {
		*n++
		return
	}
	r.Reused++
}

// applyProject creates pp unless a project with its identifier exists. If
// any later step fails the new project is deleted again and res is
// restored.
func (a *Applier) applyProject(ctx context.Context, pp *Project, res *Result) error {
	_, err := a.svc.GetProjectByIdentifier(ctx, pp.Identifier)
	switch {
	case err == nil:
		a.logger.Info("project exists, skipping", "project", pp.Identifier)
		res.Skipped++
		return nil
	case !domain.IsNotFound(err):
		return err
	}

	before := *res
	projectID, err := a.createProject(ctx, pp, res)
	if err != nil && projectID != uuid.Nil {
		if delErr := a.svc.DeleteProject(ctx, projectID); delErr != nil {
			a.logger.Error("could not remove partially applied project",
				"project", pp.Identifier, "error", delErr)
		} else {
			a.logger.Debug("removed partially applied project", "project", pp.Identifier)
		}
		*res = before
	}
	return err
}

func (a *Applier) createProject(ctx context.Context, pp *Project, res *Result) (uuid.UUID, error) {
	ownerID, err := a.user(ctx, pp.Owner)
	if err != nil {
		return uuid.Nil, err
	}
	proj, err := a.svc.CreateProject(ctx, service.NewProject{
		Identifier:  pp.Identifier,
		Name:        pp.Name,
		Description: pp.Description,
		StartDate:   pp.StartDate,
		OwnerID:     ownerID,
	})
	if err != nil {
		return uuid.Nil, err
	}
	res.Projects++
	log := a.logger.With("project", proj.Identifier)

	if pp.State != "" {
		if _, err := a.svc.SetProjectState(ctx, proj.ID, domain.ProjectState(pp.State)); err != nil {
			return proj.ID, err
		}
	}

	for _, m := range pp.Members {
		userID, err := a.user(ctx, m.User)
		if err != nil {
			return proj.ID, err
		}
		roleID, err := a.role(ctx, m.Role)
		if err != nil {
			return proj.ID, err
		}
		if _, err := a.svc.AddProjectMember(ctx, proj.ID, userID, roleID); err != nil {
			return proj.ID, fmt.Errorf("member %q: %w", m.User, err)
		}
	}

	phases, err := a.svc.InitializePhases(ctx, proj.ID)
	if err != nil {
		return proj.ID, err
	}
	res.Phases += len(phases)
	byCode := make(map[domain.PhaseCode]domain.Phase, len(phases))
	for _, ph := range phases {
		byCode[ph.Code] = ph
	}

	for i := range pp.Phases {
		entry := &pp.Phases[i]
		phase := byCode[domain.PhaseCode(entry.Code)]
		if err := a.applyPhase(ctx, phase, entry, res); err != nil {
			return proj.ID, fmt.Errorf("phase %s: %w", entry.Code, err)
		}
	}

	log.Debug("project applied", "phases", len(phases), "members", len(pp.Members))
	return proj.ID, nil
}

func (a *Applier) applyPhase(ctx context.Context, phase domain.Phase, entry *Phase, res *Result) error {
	if entry.Name != "" && entry.Name != phase.Name {
		if _, err := a.svc.RenamePhase(ctx, phase.ID, entry.Name); err != nil {
			return err
		}
	}
	if entry.State != "" {
		if _, err := a.svc.SetPhaseState(ctx, phase.ID, domain.PhaseState(entry.State)); err != nil {
			return err
		}
	}

	docs := make(map[string]uuid.UUID)
	for i := range entry.Items {
		if err := a.applyItem(ctx, phase.ID, nil, &entry.Items[i], docs, res); err != nil {
			return err
		}
	}

	for _, as := range entry.Artefacts {
		artefactID, err := a.artefact(ctx, as.Artefact)
		if err != nil {
			return err
		}
		var docID *uuid.UUID
		if as.Document != "" {
			id := docs[as.Document]
			docID = &id
		}
		if _, err := a.svc.AssignArtefactToPhase(ctx, phase.ID, artefactID, docID, as.Registered); err != nil {
			return fmt.Errorf("assign artefact %q: %w", as.Artefact, err)
		}
		res.Assignments++
	}
	return nil
}

func (a *Applier) applyItem(ctx context.Context, phaseID uuid.UUID, parent *uuid.UUID, it *Item, docs map[string]uuid.UUID, res *Result) error {
	creatorID, err := a.user(ctx, it.CreatedBy)
	if err != nil {
		return err
	}
	in := service.NewItem{
		PhaseID:     phaseID,
		Name:        it.Name,
		Number:      it.Number,
		Description: it.Description,
		StartDate:   it.StartDate,
		EndDate:     it.EndDate,
		CreatedBy:   creatorID,
	}

	var item domain.PhaseItem
	if parent == nil {
		item, err = a.svc.CreateIteration(ctx, in)
	} else {
		item, err = a.svc.CreateMicroincrement(ctx, *parent, in)
	}
	if err != nil {
		return fmt.Errorf("item %q: %w", it.Name, err)
	}
	res.Items++

	if it.State != "" {
		if _, err := a.svc.SetItemState(ctx, item.ID, domain.ItemState(it.State)); err != nil {
			return fmt.Errorf("item %q: %w", it.Name, err)
		}
	}

	for _, m := range it.Members {
		userID, err := a.user(ctx, m.User)
		if err != nil {
			return err
		}
		if _, err := a.svc.AddItemMember(ctx, item.ID, userID, m.Label); err != nil {
			return fmt.Errorf("item %q: member %q: %w", it.Name, m.User, err)
		}
	}

	for i := range it.Documents {
		id, err := a.applyDocument(ctx, item.ID, creatorID, &it.Documents[i], res)
		if err != nil {
			return fmt.Errorf("item %q: %w", it.Name, err)
		}
		docs[it.Documents[i].Title] = id
	}

	for i := range it.Microincrements {
		if err := a.applyItem(ctx, phaseID, &item.ID, &it.Microincrements[i], docs, res); err != nil {
			return err
		}
	}
	return nil
}

func (a *Applier) applyDocument(ctx context.Context, itemID, defaultAuthor uuid.UUID, d *Document, res *Result) (uuid.UUID, error) {
	authorID := defaultAuthor
	if d.Author != "" {
		id, err := a.user(ctx, d.Author)
		if err != nil {
			return uuid.Nil, err
		}
		authorID = id
	}

	doc, err := a.svc.CreateDocument(ctx, itemID, d.Title, d.Description, authorID)
	if err != nil {
		return uuid.Nil, fmt.Errorf("document %q: %w", d.Title, err)
	}
	res.Documents++

	for _, v := range d.Versions {
		versionAuthor := authorID
		if v.Author != "" {
			id, err := a.user(ctx, v.Author)
			if err != nil {
				return uuid.Nil, err
			}
			versionAuthor = id
		}
		if _, err := a.svc.CreateVersion(ctx, service.NewVersion{
			DocumentID:   doc.ID,
			CreatedBy:    versionAuthor,
			Observations: v.Observations,
			Extension:    v.Extension,
			Payload:      []byte(v.Content),
		}); err != nil {
			return uuid.Nil, fmt.Errorf("document %q: version: %w", d.Title, err)
		}
		res.Versions++
	}
	return doc.ID, nil
}

func (a *Applier) user(ctx context.Context, name string) (uuid.UUID, error) {
	return resolve(ctx, a.users, name, "user", func(ctx context.Context, n string) (uuid.UUID, error) {
		u, err := a.svc.GetUserByName(ctx, n)
		return u.ID, err
	})
}

func (a *Applier) role(ctx context.Context, name string) (uuid.UUID, error) {
	return resolve(ctx, a.roles, name, "role", func(ctx context.Context, n string) (uuid.UUID, error) {
		r, err := a.svc.GetRoleByName(ctx, n)
		return r.ID, err
	})
}

func (a *Applier) permission(ctx context.Context, name string) (uuid.UUID, error) {
	return resolve(ctx, a.permissions, name, "permission", func(ctx context.Context, n string) (uuid.UUID, error) {
		p, err := a.svc.GetPermissionByName(ctx, n)
		return p.ID, err
	})
}

func (a *Applier) artefact(ctx context.Context, name string) (uuid.UUID, error) {
	return resolve(ctx, a.artefacts, name, "artefact", func(ctx context.Context, n string) (uuid.UUID, error) {
		art, err := a.svc.GetArtefactByName(ctx, n)
		return art.ID, err
	})
}

// resolve returns the cached id for name, falling back to a store lookup
// for entities created outside the plan.
func resolve(ctx context.Context, cache map[string]uuid.UUID, name, kind string, lookup func(context.Context, string) (uuid.UUID, error)) (uuid.UUID, error) {
	if id, ok := cache[name]; ok {
		return id, nil
	}
	id, err := lookup(ctx, name)
	if err != nil {
		return uuid.Nil, fmt.Errorf("resolve %s %q: %w", kind, name, err)
	}
	cache[name] = id
	return id, nil
}
