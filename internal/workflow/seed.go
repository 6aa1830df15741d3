package workflow

import (
	"context"
	"embed"
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/pelletier/go-toml/v2"
	"github.com/phrazzld/tasknotify/internal/domain"
)

//go:embed seed/default.toml
var seedFS embed.FS

type seedStatus struct {
	ID          string `toml:"id"`
	DisplayName string `toml:"display_name"`
	Color       string `toml:"color"`
	Order       int    `toml:"order"`
}

type seedTransition struct {
	From string   `toml:"from"`
	To   []string `toml:"to"`
}

type seedDocument struct {
	Name             string              `toml:"name"`
	Statuses         []seedStatus        `toml:"statuses"`
	Transitions      []seedTransition    `toml:"transitions"`
	RoleRestrictions map[string][]string `toml:"role_restrictions"`
}

// LoadSeed reads a TOML workflow definition from path, or the built-in
// standard workflow when path is empty.
func LoadSeed(path string) (*domain.WorkflowDefinition, error) {
	var (
		r   io.ReadCloser
		err error
	)
	if path == "" {
		r, err = seedFS.Open("seed/default.toml")
	} else {
		r, err = os.Open(path)
	}
	if err != nil {
		return nil, fmt.Errorf("open workflow seed: %w", err)
	}
	defer r.Close()

	var doc seedDocument
	decoder := toml.NewDecoder(r)
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(&doc); err != nil {
		return nil, fmt.Errorf("parse workflow seed: %w", err)
	}

	def := doc.toDomain()
	if err := def.Validate(); err != nil {
		return nil, fmt.Errorf("invalid workflow seed: %w", err)
	}
	return def, nil
}

func (d seedDocument) toDomain() *domain.WorkflowDefinition {
	def := &domain.WorkflowDefinition{
		Name:             d.Name,
		RoleRestrictions: d.RoleRestrictions,
	}
	for _, s := range d.Statuses {
		def.Statuses = append(def.Statuses, domain.WorkflowStatus{
			ID:          s.ID,
			DisplayName: s.DisplayName,
			Color:       s.Color,
			Order:       s.Order,
		})
	}
	for _, t := range d.Transitions {
		def.Transitions = append(def.Transitions, domain.WorkflowTransition{From: t.From, To: t.To})
	}
	return def
}

// Seed creates the seed workflow as the default when no workflow exists.
// It reports whether a definition was created.
func Seed(ctx context.Context, svc Service, seedFile string, logger *slog.Logger) (bool, error) {
	if logger == nil {
		logger = slog.Default()
	}

	existing, err := svc.List(ctx)
	if err != nil {
		return false, err
	}
	if len(existing) > 0 {
		return false, nil
	}

	def, err := LoadSeed(seedFile)
	if err != nil {
		return false, err
	}
	def.IsDefault = true
	if err := svc.Create(ctx, def); err != nil {
		return false, err
	}

	logger.Info("seeded default workflow",
		"workflow_id", def.ID,
		"name", def.Name,
		"source", seedSource(seedFile))
	return true, nil
}

func seedSource(path string) string {
	if path == "" {
		return "builtin"
	}
	return path
}
