// Package report renders read-only text views of a project: the full
// project tree and the per-phase artefact completeness summary.
//
// Builders (BuildTree, BuildCompleteness) gather data through the service
// layer; writers (WriteTree, WriteCompleteness) render it. Output contains
// no ids or timestamps other than user-entered dates, so it is stable
// across runs.
package report

import (
	"context"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/roach88/phasetrack/internal/domain"
	"github.com/roach88/phasetrack/internal/service"
)

const dateLayout = "2006-01-02"

// Tree is a project with its phases and their contents.
type Tree struct {
	Project   domain.Project
	Owner     string
	Members   []MemberLine
	Phases    []PhaseNode
	Artifacts []ArtifactLine
}

// MemberLine is a project member resolved to names.
type MemberLine struct {
	Username string
	Role     string
}

// PhaseNode is one phase in a Tree.
type PhaseNode struct {
	Phase      domain.Phase
	Iterations []ItemNode
	Artefacts  []ArtefactLine
	Registered int
}

// ItemNode is an iteration with its microincrements, or a microincrement.
type ItemNode struct {
	Item      domain.PhaseItem
	Documents []DocumentLine
	Children  []ItemNode
}

// DocumentLine summarises a document's version state.
type DocumentLine struct {
	Title     string
	Versions  int
	Extension string
}

// ArtefactLine is one phase artefact assignment.
type ArtefactLine struct {
	Name       string
	Registered bool
	Document   string
}

// ArtifactLine is one legacy artifact lineage.
type ArtifactLine struct {
	Name      string
	Mandatory bool
	Latest    int
}

// BuildTree loads everything under a project.
func BuildTree(ctx context.Context, svc *service.Service, projectID uuid.UUID) (*Tree, error) {
	proj, err := svc.GetProject(ctx, projectID)
	if err != nil {
		return nil, err
	}
	owner, err := svc.GetUser(ctx, proj.OwnerID)
	if err != nil {
		return nil, err
	}
	tree := &Tree{Project: proj, Owner: owner.Username}

	members, err := svc.ProjectMembers(ctx, projectID)
	if err != nil {
		return nil, err
	}
	for _, m := range members {
		u, err := svc.GetUser(ctx, m.UserID)
		if err != nil {
			return nil, err
		}
		r, err := svc.GetRole(ctx, m.RoleID)
		if err != nil {
			return nil, err
		}
		tree.Members = append(tree.Members, MemberLine{Username: u.Username, Role: r.Name})
	}

	phases, err := svc.ListPhases(ctx, projectID)
	if err != nil {
		return nil, err
	}
	for _, ph := range phases {
		node, err := buildPhase(ctx, svc, ph)
		if err != nil {
			return nil, fmt.Errorf("phase %s: %w", ph.Code, err)
		}
		tree.Phases = append(tree.Phases, node)
	}

	artifacts, err := svc.ListArtifacts(ctx, projectID)
	if err != nil {
		return nil, err
	}
	for _, a := range artifacts {
		line := ArtifactLine{Name: a.Name, Mandatory: a.Mandatory}
		v, err := svc.GetLatestArtifactVersion(ctx, a.ID)
		switch {
		case err == nil:
			line.Latest = v.VersionNumber
		case domain.IsNotFound(err):
		default:
			return nil, err
		}
		tree.Artifacts = append(tree.Artifacts, line)
	}
	return tree, nil
}

func buildPhase(ctx context.Context, svc *service.Service, ph domain.Phase) (PhaseNode, error) {
	node := PhaseNode{Phase: ph}

	items, err := svc.ListItems(ctx, ph.ID)
	if err != nil {
		return node, err
	}
	index := make(map[uuid.UUID]int)
	for _, it := range items {
		n, err := buildItem(ctx, svc, it)
		if err != nil {
			return node, err
		}
		parent := it.ParentID()
		if parent == nil {
			index[it.ID] = len(node.Iterations)
			node.Iterations = append(node.Iterations, n)
			continue
		}
		// ListItems returns every iteration before any microincrement.
		i, ok := index[*parent]
		if !ok {
			return node, fmt.Errorf("item %s: parent %s not in phase", it.ID, *parent)
		}
		node.Iterations[i].Children = append(node.Iterations[i].Children, n)
	}

	assignments, err := svc.GetPhaseArtefacts(ctx, ph.ID)
	if err != nil {
		return node, err
	}
	for _, pa := range assignments {
		art, err := svc.GetArtefact(ctx, pa.ArtefactID)
		if err != nil {
			return node, err
		}
		line := ArtefactLine{Name: art.Name, Registered: pa.Registered}
		if pa.DocumentID != nil {
			doc, err := svc.GetDocument(ctx, *pa.DocumentID)
			if err != nil {
				return node, err
			}
			line.Document = doc.Title
		}
		if pa.Registered {
			node.Registered++
		}
		node.Artefacts = append(node.Artefacts, line)
	}
	return node, nil
}

func buildItem(ctx context.Context, svc *service.Service, it domain.PhaseItem) (ItemNode, error) {
	n := ItemNode{Item: it}
	docs, err := svc.ListDocuments(ctx, it.ID)
	if err != nil {
		return n, err
	}
	for _, d := range docs {
		line := DocumentLine{Title: d.Title, Versions: d.LastVersionNumber}
		if d.LastVersionNumber > 0 {
			v, err := svc.GetLatestVersion(ctx, d.ID)
			if err != nil {
				return n, err
			}
			line.Extension = v.Extension
		}
		n.Documents = append(n.Documents, line)
	}
	return n, nil
}

// WriteTree renders t as indented text.
func WriteTree(w io.Writer, t *Tree) error {
	p := &printer{w: w}
	p.line(0, "Project %s: %s [%s]", t.Project.Identifier, t.Project.Name, t.Project.State)
	p.line(1, "start: %s", t.Project.StartDate.Format(dateLayout))
	p.line(1, "owner: %s", t.Owner)
	if len(t.Members) > 0 {
		parts := make([]string, len(t.Members))
		for i, m := range t.Members {
			parts[i] = fmt.Sprintf("%s (%s)", m.Username, m.Role)
		}
		p.line(1, "members: %s", strings.Join(parts, ", "))
	}

	for _, ph := range t.Phases {
		p.line(0, "Phase %d %s: %s [%s]", ph.Phase.Order, ph.Phase.Code, ph.Phase.Name, ph.Phase.State)
		for _, it := range ph.Iterations {
			writeItem(p, 1, it, "")
		}
		if len(ph.Artefacts) > 0 {
			p.line(1, "Artefacts: %d/%d registered", ph.Registered, len(ph.Artefacts))
			for _, a := range ph.Artefacts {
				mark := "[ ]"
				if a.Registered {
					mark = "[x]"
				}
				if a.Document != "" {
					p.line(2, "%s %s -> %q", mark, a.Name, a.Document)
				} else {
					p.line(2, "%s %s", mark, a.Name)
				}
			}
		}
	}

	if len(t.Artifacts) > 0 {
		p.line(0, "Artifacts")
		for _, a := range t.Artifacts {
			req := "optional"
			if a.Mandatory {
				req = "mandatory"
			}
			p.line(1, "%s v%d (%s)", a.Name, a.Latest, req)
		}
	}
	return p.err
}

func writeItem(p *printer, depth int, n ItemNode, parentNumber string) {
	it := n.Item
	number := fmt.Sprintf("%d", it.Number)
	if parentNumber != "" {
		number = parentNumber + "." + number
	}

	header := fmt.Sprintf("%s %s: %s [%s]", it.Type(), number, it.Name, it.State)
	if span := dateSpan(it.StartDate, it.EndDate); span != "" {
		header += " " + span
	}
	p.line(depth, "%s", header)

	for _, d := range n.Documents {
		if d.Versions == 0 {
			p.line(depth+1, "Document %q (no versions)", d.Title)
			continue
		}
		ext := ""
		if d.Extension != "" {
			ext = " ." + d.Extension
		}
		p.line(depth+1, "Document %q v%d%s", d.Title, d.Versions, ext)
	}
	for _, c := range n.Children {
		writeItem(p, depth+1, c, number)
	}
}

// PhaseSummary is one row of the completeness report.
type PhaseSummary struct {
	Code    domain.PhaseCode
	Name    string
	Summary service.Completeness
}

// Completeness is the artefact completeness report of a project.
type Completeness struct {
	Identifier string
	Phases     []PhaseSummary
}

// BuildCompleteness computes the completeness summary of every phase.
func BuildCompleteness(ctx context.Context, svc *service.Service, projectID uuid.UUID) (*Completeness, error) {
	proj, err := svc.GetProject(ctx, projectID)
	if err != nil {
		return nil, err
	}
	phases, err := svc.ListPhases(ctx, projectID)
	if err != nil {
		return nil, err
	}
	out := &Completeness{Identifier: proj.Identifier}
	for _, ph := range phases {
		c, err := svc.PhaseCompleteness(ctx, ph.ID)
		if err != nil {
			return nil, err
		}
		out.Phases = append(out.Phases, PhaseSummary{Code: ph.Code, Name: ph.Name, Summary: c})
	}
	return out, nil
}

// WriteCompleteness renders c as one line per phase.
func WriteCompleteness(w io.Writer, c *Completeness) error {
	p := &printer{w: w}
	p.line(0, "%s artefact completeness", c.Identifier)
	for _, ph := range c.Phases {
		s := ph.Summary
		status := "complete"
		if !s.Complete() {
			status = "missing: " + strings.Join(s.Missing, ", ")
		}
		p.line(0, "%-12s %d/%d %s", ph.Code, s.Registered, s.Total, status)
	}
	return p.err
}

// dateSpan renders an item's planned dates; either end may be open.
func dateSpan(start, end *time.Time) string {
	switch {
	case start == nil && end == nil:
		return ""
	case end == nil:
		return "from " + start.Format(dateLayout)
	case start == nil:
		return "until " + end.Format(dateLayout)
	default:
		return start.Format(dateLayout) + " - " + end.Format(dateLayout)
	}
}

// printer writes indented lines and keeps the first write error.
type printer struct {
	w   io.Writer
	err error
}

func (p *printer) line(depth int, format string, args ...any) {
	if p.err != nil {
		return
	}
	_, p.err = fmt.Fprintf(p.w, strings.Repeat("  ", depth)+format+"\n", args...)
}
