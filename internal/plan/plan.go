// Package plan loads a YAML project plan and applies it through the service
// layer. A plan seeds users, the role/permission matrix, the artefact
// catalog and any number of projects with their phases, items, documents,
// versions and artefact assignments.
//
// Entities are referenced by name (username, role name, permission name,
// artefact name, document title within a phase), so a plan may also refer
// to entities that already exist in the store.
package plan

import (
	"bytes"
	"fmt"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/roach88/phasetrack/internal/domain"
)

// Plan is the root of a plan file.
type Plan struct {
	// Users to create. Passwords are hashed on apply.
	Users []User `yaml:"users"`

	// Permissions to create.
	Permissions []Permission `yaml:"permissions"`

	// Roles to create, with the permission names they grant.
	Roles []Role `yaml:"roles"`

	// Artefacts is the deliverable catalog.
	Artefacts []Artefact `yaml:"artefacts"`

	// Projects to create. Each gets all four phases.
	Projects []Project `yaml:"projects"`
}

// User seeds an account.
type User struct {
	Username string `yaml:"username"`
	Password string `yaml:"password"`
}

// Permission seeds a capability.
type Permission struct {
	Name        string `yaml:"name"`
	Description string `yaml:"description"`
}

// Role seeds a role and its grants.
type Role struct {
	Name        string   `yaml:"name"`
	Description string   `yaml:"description"`
	Permissions []string `yaml:"permissions"`
}

// Artefact seeds a catalog entry.
type Artefact struct {
	Name        string `yaml:"name"`
	Description string `yaml:"description"`
}

// Project seeds a project and its subtree.
type Project struct {
	Identifier  string    `yaml:"identifier"`
	Name        string    `yaml:"name"`
	Description string    `yaml:"description"`
	StartDate   time.Time `yaml:"start_date"`
	Owner       string    `yaml:"owner"`

	// State is applied after creation when set.
	State string `yaml:"state"`

	Members []Member `yaml:"members"`
	Phases  []Phase  `yaml:"phases"`
}

// Member grants a user a role on the enclosing project.
type Member struct {
	User string `yaml:"user"`
	Role string `yaml:"role"`
}

// Phase configures one of the project's four phases.
type Phase struct {
	Code      string       `yaml:"code"`
	Name      string       `yaml:"name"`
	State     string       `yaml:"state"`
	Items     []Item       `yaml:"items"`
	Artefacts []Assignment `yaml:"artefacts"`
}

// Item seeds an iteration, or a microincrement when nested under one.
type Item struct {
	Name        string     `yaml:"name"`
	Number      int        `yaml:"number"`
	Description string     `yaml:"description"`
	StartDate   *time.Time `yaml:"start_date"`
	EndDate     *time.Time `yaml:"end_date"`
	CreatedBy   string     `yaml:"created_by"`
	State       string     `yaml:"state"`

	Members         []ItemMember `yaml:"members"`
	Documents       []Document   `yaml:"documents"`
	Microincrements []Item       `yaml:"microincrements"`
}

// ItemMember attaches a user to an item under a free-text label.
type ItemMember struct {
	User  string `yaml:"user"`
	Label string `yaml:"label"`
}

// Document seeds a document and its versions, in order.
type Document struct {
	Title       string    `yaml:"title"`
	Description string    `yaml:"description"`
	Author      string    `yaml:"author"`
	Versions    []Version `yaml:"versions"`
}

// Version seeds one document version.
type Version struct {
	Author       string `yaml:"author"`
	Extension    string `yaml:"extension"`
	Content      string `yaml:"content"`
	Observations string `yaml:"observations"`
}

// Assignment attaches a catalog artefact to the enclosing phase.
type Assignment struct {
	Artefact   string `yaml:"artefact"`
	Document   string `yaml:"document"` // title of a document in this phase
	Registered bool   `yaml:"registered"`
}

// Load reads and validates a plan file.
func Load(path string) (*Plan, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read plan file: %w", err)
	}
	return Parse(data)
}

// Parse decodes and validates plan YAML.
func Parse(data []byte) (*Plan, error) {
	// Parse YAML with strict field validation (catches typos)
	var p Plan
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true)
	if err := decoder.Decode(&p); err != nil {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}

	if err := validatePlan(&p); err != nil {
		return nil, fmt.Errorf("invalid plan: %w", err)
	}
	return &p, nil
}

func blank(s string) bool { return strings.TrimSpace(s) == "" }

// validatePlan checks shape and intra-plan references. Names that refer to
// entities outside the plan are resolved on apply.
func validatePlan(p *Plan) error {
	seen := make(map[string]bool)
	for i, u := range p.Users {
		if blank(u.Username) {
			return fmt.Errorf("users[%d]: username is required", i)
		}
		if blank(u.Password) {
			return fmt.Errorf("users[%d]: password is required", i)
		}
		if seen[u.Username] {
			return fmt.Errorf("users[%d]: duplicate username %q", i, u.Username)
		}
		seen[u.Username] = true
	}

	if err := uniqueNames("permissions", len(p.Permissions), func(i int) string { return p.Permissions[i].Name }); err != nil {
		return err
	}
	if err := uniqueNames("roles", len(p.Roles), func(i int) string { return p.Roles[i].Name }); err != nil {
		return err
	}
	if err := uniqueNames("artefacts", len(p.Artefacts), func(i int) string { return p.Artefacts[i].Name }); err != nil {
		return err
	}

	identifiers := make(map[string]bool)
	for i := range p.Projects {
		proj := &p.Projects[i]
		path := fmt.Sprintf("projects[%d]", i)
		if blank(proj.Identifier) {
			return fmt.Errorf("%s: identifier is required", path)
		}
		if identifiers[proj.Identifier] {
			return fmt.Errorf("%s: duplicate identifier %q", path, proj.Identifier)
		}
		identifiers[proj.Identifier] = true
		if blank(proj.Name) {
			return fmt.Errorf("%s: name is required", path)
		}
		if proj.StartDate.IsZero() {
			return fmt.Errorf("%s: start_date is required", path)
		}
		if blank(proj.Owner) {
			return fmt.Errorf("%s: owner is required", path)
		}
		if proj.State != "" {
			if _, err := domain.ParseProjectState(proj.State); err != nil {
				return fmt.Errorf("%s.state: %w", path, err)
			}
		}
		for j, m := range proj.Members {
			if blank(m.User) || blank(m.Role) {
				return fmt.Errorf("%s.members[%d]: user and role are required", path, j)
			}
		}
		if err := validatePhases(path, proj.Phases); err != nil {
			return err
		}
	}
	return nil
}

func uniqueNames(section string, n int, name func(int) string) error {
	seen := make(map[string]bool, n)
	for i := 0; i < n; i++ {
		v := name(i)
		if blank(v) {
			return fmt.Errorf("%s[%d]: name is required", section, i)
		}
		if seen[v] {
			return fmt.Errorf("%s[%d]: duplicate name %q", section, i, v)
		}
		seen[v] = true
	}
	return nil
}

func validatePhases(path string, phases []Phase) error {
	codes := make(map[domain.PhaseCode]bool)
	for i := range phases {
		ph := &phases[i]
		phPath := fmt.Sprintf("%s.phases[%d]", path, i)
		code, err := domain.ParsePhaseCode(ph.Code)
		if err != nil {
			return fmt.Errorf("%s.code: %w", phPath, err)
		}
		if codes[code] {
			return fmt.Errorf("%s: phase %s listed twice", phPath, code)
		}
		codes[code] = true
		if ph.State != "" {
			if _, err := domain.ParsePhaseState(ph.State); err != nil {
				return fmt.Errorf("%s.state: %w", phPath, err)
			}
		}

		titles := make(map[string]bool)
		for j := range ph.Items {
			if err := validateItem(fmt.Sprintf("%s.items[%d]", phPath, j), &ph.Items[j], true, titles); err != nil {
				return err
			}
		}

		artefacts := make(map[string]bool)
		for j, a := range ph.Artefacts {
			if blank(a.Artefact) {
				return fmt.Errorf("%s.artefacts[%d]: artefact is required", phPath, j)
			}
			if artefacts[a.Artefact] {
				return fmt.Errorf("%s.artefacts[%d]: artefact %q assigned twice", phPath, j, a.Artefact)
			}
			artefacts[a.Artefact] = true
			if a.Document != "" && !titles[a.Document] {
				return fmt.Errorf("%s.artefacts[%d]: document %q is not defined in this phase", phPath, j, a.Document)
			}
		}
	}
	return nil
}

// validateItem checks an item and records its document titles, which must
// be unique within the phase so assignments can refer to them.
func validateItem(path string, it *Item, topLevel bool, titles map[string]bool) error {
	if blank(it.Name) {
		return fmt.Errorf("%s: name is required", path)
	}
	if blank(it.CreatedBy) {
		return fmt.Errorf("%s: created_by is required", path)
	}
	if it.Number < 0 {
		return fmt.Errorf("%s: number must not be negative", path)
	}
	if it.StartDate != nil && it.EndDate != nil && it.EndDate.Before(*it.StartDate) {
		return fmt.Errorf("%s: end_date before start_date", path)
	}
	if it.State != "" {
		if _, err := domain.ParseItemState(it.State); err != nil {
			return fmt.Errorf("%s.state: %w", path, err)
		}
	}
	if !topLevel && len(it.Microincrements) > 0 {
		return fmt.Errorf("%s: microincrements cannot have children", path)
	}
	for k, m := range it.Members {
		if blank(m.User) || blank(m.Label) {
			return fmt.Errorf("%s.members[%d]: user and label are required", path, k)
		}
	}
	for k, d := range it.Documents {
		if blank(d.Title) {
			return fmt.Errorf("%s.documents[%d]: title is required", path, k)
		}
		if titles[d.Title] {
			return fmt.Errorf("%s.documents[%d]: duplicate document title %q in phase", path, k, d.Title)
		}
		titles[d.Title] = true
	}
	for k := range it.Microincrements {
		if err := validateItem(fmt.Sprintf("%s.microincrements[%d]", path, k), &it.Microincrements[k], false, titles); err != nil {
			return err
		}
	}
	return nil
}
