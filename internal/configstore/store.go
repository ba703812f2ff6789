package configstore

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/vpittamp/i3pm-daemon/internal/domain"
	"github.com/vpittamp/i3pm-daemon/internal/errkind"
)

// Store loads and writes the daemon's JSON config files rooted under a
// config dir (`$XDG_CONFIG_HOME/{i3,sway}`) and a data dir
// (`$XDG_DATA_HOME/i3pm`).
type Store struct {
	ConfigDir string
	DataDir   string
	Repos     *ReposLoader
}

// New constructs a Store rooted at configDir/dataDir and wires its
// ReposLoader to configDir/repos.json.
func New(configDir, dataDir string) *Store {
	return &Store{
		ConfigDir: configDir,
		DataDir:   dataDir,
		Repos:     NewReposLoader(filepath.Join(configDir, "repos.json")),
	}
}

func (s *Store) path(name string) string { return filepath.Join(s.ConfigDir, name) }

// activeProjectFile is the wire schema of active-project.json.
type activeProjectFile struct {
	ProjectName *string `json:"project_name"`
}

// LoadActiveProject reads active-project.json, treating an absent file as
// global mode rather than an error.
func (s *Store) LoadActiveProject() (domain.ActiveProjectState, error) {
	var f activeProjectFile
	if err := readJSON(s.path("active-project.json"), &f); err != nil {
		if os.IsNotExist(err) {
			return domain.ActiveProjectState{}, nil
		}
		return domain.ActiveProjectState{}, errkind.Wrap(errkind.Parse, "parsing active-project.json", err)
	}
	return domain.ActiveProjectState{ProjectName: f.ProjectName}, nil
}

// SaveActiveProject atomically writes the active project pointer.
func (s *Store) SaveActiveProject(state domain.ActiveProjectState) error {
	return atomicWriteJSON(s.path("active-project.json"), activeProjectFile{ProjectName: state.ProjectName})
}

// appClassesFile is the wire schema of app-classes.json.
type appClassesFile struct {
	ScopedClasses []string         `json:"scoped_classes"`
	GlobalClasses []string         `json:"global_classes"`
	ClassPatterns []rawPatternRule `json:"class_patterns"`
}

type rawPatternRule struct {
	Pattern     string `json:"pattern"`
	Scope       string `json:"scope"`
	Priority    int    `json:"priority"`
	Description string `json:"description,omitempty"`
}

// AppClasses is the parsed, ready-to-use form of app-classes.json.
type AppClasses struct {
	ScopedClasses []string
	GlobalClasses []string
	Patterns      []*domain.PatternRule
}

// LoadAppClasses reads and parses app-classes.json, compiling each pattern
// rule (surfacing any invalid regex as a path-qualified Parse error).
func (s *Store) LoadAppClasses() (AppClasses, error) {
	var f appClassesFile
	path := s.path("app-classes.json")
	if err := readJSON(path, &f); err != nil {
		if os.IsNotExist(err) {
			return AppClasses{}, nil
		}
		return AppClasses{}, errkind.Wrap(errkind.Parse, "parsing app-classes.json", err).WithPath(path)
	}

	out := AppClasses{ScopedClasses: f.ScopedClasses, GlobalClasses: f.GlobalClasses}
	for i, rp := range f.ClassPatterns {
		pr, err := domain.ParsePattern(rp.Pattern, domain.Scope(rp.Scope), rp.Priority, rp.Description)
		if err != nil {
			return AppClasses{}, errkind.Wrap(errkind.Parse, fmt.Sprintf("class_patterns[%d]: %v", i, err), err).WithPath(path)
		}
		out.Patterns = append(out.Patterns, pr)
	}
	return out, nil
}

// windowRuleWire is the on-disk shape of a single WindowRule entry. Actions
// is left as a raw JSON array and handed to domain.UnmarshalActions so the
// tagged-sum decoding logic lives in one place.
type windowRuleWire struct {
	Pattern     string          `json:"pattern"`
	Scope       string          `json:"scope"`
	Priority    int             `json:"priority"`
	Description string          `json:"description,omitempty"`
	Workspace   int             `json:"workspace,omitempty"`
	Command     string          `json:"command,omitempty"`
	Actions     json.RawMessage `json:"actions,omitempty"`
	Modifier    string          `json:"modifier,omitempty"`
	Blacklist   []string        `json:"blacklist,omitempty"`
}

// LoadWindowRules reads window-rules.json, pre-sorting by priority
// descending (classify.SortRules performs the same sort; Store does it
// too so direct consumers — e.g. the RPC `config_reload` diagnostic — see
// rules in evaluation order).
func (s *Store) LoadWindowRules() ([]domain.WindowRule, error) {
	var wires []windowRuleWire
	path := s.path("window-rules.json")
	if err := readJSON(path, &wires); err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, errkind.Wrap(errkind.Parse, "parsing window-rules.json", err).WithPath(path)
	}

	rules := make([]domain.WindowRule, 0, len(wires))
	for i, w := range wires {
		pr, err := domain.ParsePattern(w.Pattern, domain.Scope(w.Scope), w.Priority, w.Description)
		if err != nil {
			return nil, errkind.Wrap(errkind.Parse, fmt.Sprintf("window-rules.json[%d]: %v", i, err), err).WithPath(path)
		}
		rule := domain.WindowRule{
			Pattern:         pr,
			LegacyWorkspace: w.Workspace,
			LegacyCommand:   w.Command,
			Modifier:        domain.RuleModifier(w.Modifier),
			Blacklist:       w.Blacklist,
		}
		if len(w.Actions) > 0 {
			actions, err := domain.UnmarshalActions(w.Actions)
			if err != nil {
				return nil, errkind.Wrap(errkind.Parse, fmt.Sprintf("window-rules.json[%d].actions: %v", i, err), err).WithPath(path)
			}
			rule.Actions = actions
		}
		if err := rule.Validate(); err != nil {
			return nil, errkind.Wrap(errkind.Parse, fmt.Sprintf("window-rules.json[%d]: %v", i, err), err).WithPath(path)
		}
		rules = append(rules, rule)
	}
	return sortByPriorityDesc(rules), nil
}

func sortByPriorityDesc(rules []domain.WindowRule) []domain.WindowRule {
	for i := 1; i < len(rules); i++ {
		for j := i; j > 0 && rules[j-1].Pattern.Priority < rules[j].Pattern.Priority; j-- {
			rules[j-1], rules[j] = rules[j], rules[j-1]
		}
	}
	return rules
}

// discoveryConfigFile is the wire schema of discovery-config.json: the
// app-registry projection generated out-of-band by the Nix-file editor
// (spec §9's "text-based Nix editing is a downstream tool" note) — the
// daemon only ever reads it.
type discoveryConfigFile struct {
	Apps []domain.AppRegistryEntry `json:"apps"`
}

// LoadRegistry reads discovery-config.json into two lookup maps: by app
// name (used by the workspace assigner's I3PM_APP_NAME tier) and by
// expected window class (used by its tiered-class-match tier).
func (s *Store) LoadRegistry() (byName, byClass map[string]domain.AppRegistryEntry, err error) {
	var f discoveryConfigFile
	path := s.path("discovery-config.json")
	if err := readJSON(path, &f); err != nil {
		if os.IsNotExist(err) {
			return map[string]domain.AppRegistryEntry{}, map[string]domain.AppRegistryEntry{}, nil
		}
		return nil, nil, errkind.Wrap(errkind.Parse, "parsing discovery-config.json", err).WithPath(path)
	}

	byName = make(map[string]domain.AppRegistryEntry, len(f.Apps))
	byClass = make(map[string]domain.AppRegistryEntry, len(f.Apps))
	for _, entry := range f.Apps {
		byName[entry.Name] = entry
		if entry.ExpectedClass != "" {
			byClass[entry.ExpectedClass] = entry
		}
	}
	return byName, byClass, nil
}

// LoadProject reads a single legacy per-project config file by name.
func (s *Store) LoadProject(name string) (domain.Project, error) {
	path := filepath.Join(s.ConfigDir, "projects", name+".json")
	var p domain.Project
	if err := readJSON(path, &p); err != nil {
		if os.IsNotExist(err) {
			return domain.Project{}, errkind.New(errkind.NotFound, "project not found: "+name).WithPath(path)
		}
		return domain.Project{}, errkind.Wrap(errkind.Parse, "parsing project file", err).WithPath(path)
	}
	return p, nil
}

// ListProjects returns the names of every saved per-project config file.
func (s *Store) ListProjects() ([]string, error) {
	dir := filepath.Join(s.ConfigDir, "projects")
	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}
	var names []string
	for _, e := range entries {
		if !e.IsDir() && strings.HasSuffix(e.Name(), ".json") {
			names = append(names, strings.TrimSuffix(e.Name(), ".json"))
		}
	}
	return names, nil
}

// SaveProject atomically writes a project's per-project config file.
func (s *Store) SaveProject(p domain.Project) error {
	if err := p.Validate(); err != nil {
		return errkind.Wrap(errkind.Invariant, "invalid project", err)
	}
	path := filepath.Join(s.ConfigDir, "projects", p.Name+".json")
	return atomicWriteJSON(path, p)
}

// DeleteProject removes a project's per-project config file.
func (s *Store) DeleteProject(name string) error {
	path := filepath.Join(s.ConfigDir, "projects", name+".json")
	if err := os.Remove(path); err != nil {
		if os.IsNotExist(err) {
			return errkind.New(errkind.NotFound, "project not found: "+name).WithPath(path)
		}
		return err
	}
	return nil
}

// layoutPath returns the file path for a project's named layout snapshot.
func (s *Store) layoutPath(project, layout string) string {
	return filepath.Join(s.DataDir, "layouts", project, layout+".json")
}

// SaveLayout atomically writes a layout snapshot (an arbitrary JSON
// payload the caller has already serialized the window tree into).
func (s *Store) SaveLayout(project, layout string, snapshot any) error {
	return atomicWriteJSON(s.layoutPath(project, layout), snapshot)
}

// LoadLayout reads a project's named layout snapshot into v.
func (s *Store) LoadLayout(project, layout string, v any) error {
	path := s.layoutPath(project, layout)
	if err := readJSON(path, v); err != nil {
		if os.IsNotExist(err) {
			return errkind.New(errkind.NotFound, "layout not found").WithPath(path)
		}
		return errkind.Wrap(errkind.Parse, "parsing layout", err).WithPath(path)
	}
	return nil
}

// ListLayouts returns the layout names saved for project.
func (s *Store) ListLayouts(project string) ([]string, error) {
	dir := filepath.Join(s.DataDir, "layouts", project)
	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}
	var names []string
	for _, e := range entries {
		if !e.IsDir() && strings.HasSuffix(e.Name(), ".json") {
			names = append(names, strings.TrimSuffix(e.Name(), ".json"))
		}
	}
	return names, nil
}

// DeleteLayout removes a project's named layout snapshot.
func (s *Store) DeleteLayout(project, layout string) error {
	return os.Remove(s.layoutPath(project, layout))
}

// EnsureDirs creates the config and data directories (and their projects/
// layouts subdirectories) if they don't already exist — Recovery
// Controller step 1.
func (s *Store) EnsureDirs() error {
	for _, d := range []string{s.ConfigDir, filepath.Join(s.ConfigDir, "projects"), s.DataDir, filepath.Join(s.DataDir, "layouts")} {
		if err := os.MkdirAll(d, 0o755); err != nil {
			return fmt.Errorf("configstore: creating %s: %w", d, err)
		}
	}
	return nil
}

// WorkspaceNumberFromString parses a workspace number string, used by the
// CLI and RPC layer for user-supplied values.
func WorkspaceNumberFromString(s string) (int, error) {
	n, err := strconv.Atoi(s)
	if err != nil {
		return 0, fmt.Errorf("invalid workspace number %q: %w", s, err)
	}
	return n, nil
}
