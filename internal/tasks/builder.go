// Package tasks turns a business profile and its approved triggers into the
// independent search tasks of one hunt.
package tasks

import (
	"bytes"
	"fmt"
	"strings"
	"text/template"
	"time"

	"google.golang.org/genai"

	"github.com/Kocoro-lab/Shannon/go/hunter/internal/matching"
	"github.com/Kocoro-lab/Shannon/go/hunter/internal/models"
)

const (
	DefaultRecencyDays    = 14
	DefaultResultsPerTask = 6
	dateLayout            = "2006-01-02"
)

// Kind identifies which prompt produced a task.
type Kind string

const (
	KindTenders  Kind = "tenders"
	KindProjects Kind = "projects"
	KindIndustry Kind = "industry"
	KindSite     Kind = "site"
)

// SearchTask is one oracle invocation.
type SearchTask struct {
	ID     string        `json:"id"`
	Kind   Kind          `json:"kind"`
	Prompt string        `json:"prompt"`
	Site   string        `json:"site,omitempty"`
	Schema *genai.Schema `json:"schema,omitempty"`
}

// Mode is "web" or "site", the label used for per-task metrics.
func (t SearchTask) Mode() string {
	if t.Kind == KindSite {
		return "site"
	}
	return "web"
}

// Window is the inclusive publication date range searched.
type Window struct {
	From time.Time `json:"from"`
	To   time.Time `json:"to"`
}

func (w Window) String() string {
	return w.From.Format(dateLayout) + ".." + w.To.Format(dateLayout)
}

// Plan is the outcome of Build.
type Plan struct {
	Tasks     []SearchTask `json:"tasks"`
	WebMode   bool         `json:"webMode"`
	SitesMode bool         `json:"sitesMode"`
	Sites     []string     `json:"sites"`
	Region    string       `json:"region"`
	Window    Window       `json:"window"`
}

// Builder renders search tasks. The zero value uses the embedded prompts,
// the wall clock, a 14 day window and six results per task.
type Builder struct {
	Clock          func() time.Time
	RecencyDays    int
	ResultsPerTask int
	Templates      *template.Template
}

// NewBuilder returns a Builder whose prompts can be overridden from
// templatesDir.
func NewBuilder(recencyDays, resultsPerTask int, templatesDir string) (*Builder, error) {
	tmpl, err := LoadTemplates(templatesDir)
	if err != nil {
		return nil, err
	}
	return &Builder{
		Clock:          time.Now,
		RecencyDays:    recencyDays,
		ResultsPerTask: resultsPerTask,
		Templates:      tmpl,
	}, nil
}

type promptData struct {
	Name         string
	Industry     string
	Products     []string
	TargetGroups []string
	Region       string
	Triggers     []models.SalesTrigger
	From         string
	To           string
	Results      int
	Site         string
}

// Build decides the hunt's search modes and renders one task per web
// template and one per restricted site. Triggers that are not approved are
// ignored. The plan always has at least one task.
func (b *Builder) Build(profile models.BusinessProfile, triggers []models.SalesTrigger, regionOverride string) (Plan, error) {
	tmpl := b.Templates
	if tmpl == nil {
		var err error
		if tmpl, err = DefaultTemplates(); err != nil {
			return Plan{}, err
		}
	}

	approved := models.ApprovedTriggers(triggers)
	plan := Plan{
		Region: Region(profile, regionOverride),
		Window: b.window(),
		Sites:  CollectSites(approved),
	}

	wantSites := false
	for _, t := range approved {
		switch t.EffectiveMode() {
		case models.SearchModeWeb:
			plan.WebMode = true
		case models.SearchModeSites:
			wantSites = true
		case models.SearchModeBoth:
			plan.WebMode = true
			wantSites = true
		}
	}
	plan.SitesMode = wantSites && len(plan.Sites) > 0
	if !plan.WebMode && !plan.SitesMode {
		plan.WebMode = true
	}

	data := promptData{
		Name:         profile.Name,
		Industry:     profile.Industry,
		Products:     profile.Products,
		TargetGroups: profile.TargetGroups,
		Region:       plan.Region,
		Triggers:     approved,
		From:         plan.Window.From.Format(dateLayout),
		To:           plan.Window.To.Format(dateLayout),
		Results:      b.resultsPerTask(),
	}

	if plan.WebMode {
		for _, web := range []struct {
			kind Kind
			name string
		}{
			{KindTenders, tmplTenders},
			{KindProjects, tmplProjects},
			{KindIndustry, tmplIndustry},
		} {
			prompt, err := render(tmpl, web.name, data)
			if err != nil {
				return Plan{}, err
			}
			plan.Tasks = append(plan.Tasks, SearchTask{
				ID:     string(web.kind),
				Kind:   web.kind,
				Prompt: prompt,
				Schema: SignalSchema(),
			})
		}
	}
	if plan.SitesMode {
		for _, site := range plan.Sites {
			data.Site = site
			prompt, err := render(tmpl, tmplSite, data)
			if err != nil {
				return Plan{}, err
			}
			plan.Tasks = append(plan.Tasks, SearchTask{
				ID:     "site:" + site,
				Kind:   KindSite,
				Prompt: prompt,
				Site:   site,
				Schema: SignalSchema(),
			})
		}
	}
	return plan, nil
}

func (b *Builder) window() Window {
	clock := b.Clock
	if clock == nil {
		clock = time.Now
	}
	now := clock()
	today := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, now.Location())
	days := b.RecencyDays
	if days <= 0 {
		days = DefaultRecencyDays
	}
	return Window{From: today.AddDate(0, 0, -days), To: today}
}

func (b *Builder) resultsPerTask() int {
	if b.ResultsPerTask <= 0 {
		return DefaultResultsPerTask
	}
	return b.ResultsPerTask
}

func render(tmpl *template.Template, name string, data promptData) (string, error) {
	var buf bytes.Buffer
	if err := tmpl.ExecuteTemplate(&buf, name, data); err != nil {
		return "", fmt.Errorf("render prompt %s: %w", name, err)
	}
	return strings.TrimSpace(buf.String()), nil
}

// Region is the override when given, else the profile's geography joined
// with ", ".
func Region(profile models.BusinessProfile, override string) string {
	if o := strings.TrimSpace(override); o != "" {
		return o
	}
	return strings.Join(profile.Geography, ", ")
}

// CollectSites returns the normalised, deduplicated sites of triggers in
// order of first appearance.
func CollectSites(triggers []models.SalesTrigger) []string {
	seen := make(map[string]struct{})
	var sites []string
	for _, t := range triggers {
		for _, raw := range t.LimitToSite {
			site := matching.NormalizeSite(raw)
			if site == "" {
				continue
			}
			if _, dup := seen[site]; dup {
				continue
			}
			seen[site] = struct{}{}
			sites = append(sites, site)
		}
	}
	return sites
}
