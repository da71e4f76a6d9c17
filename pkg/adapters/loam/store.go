package loam

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strings"

	"github.com/aretw0/loam"
	"github.com/aretw0/loam/pkg/core"
	"github.com/aretw0/stepgraph/pkg/domain"
	"gopkg.in/yaml.v3"
)

const (
	ext       = ".md"
	fenceOpen = "```yaml\n"
	fenceEnd  = "```"
)

// Store implements ports.DocumentStore on a Loam repository.
// Each flow is a markdown file: YAML front matter for the header and a
// fenced YAML block with the step records as body.
type Store struct {
	dir   string
	repo  core.Repository
	typed *loam.TypedRepository[FlowMetadata]
}

// Open initializes a Loam repository at dir and wraps it.
func Open(dir string) (*Store, error) {
	absPath, err := filepath.Abs(dir)
	if err != nil {
		return nil, fmt.Errorf("invalid path: %w", err)
	}
	if err := os.MkdirAll(absPath, 0755); err != nil {
		return nil, fmt.Errorf("failed to ensure flow directory: %w", err)
	}

	repo, err := loam.Init(absPath, loam.WithVersioning(false), loam.WithForceTemp(false))
	if err != nil {
		return nil, fmt.Errorf("failed to initialize loam: %w", err)
	}
	return New(absPath, repo), nil
}

// New wraps an initialized repository rooted at dir.
func New(dir string, repo core.Repository) *Store {
	return &Store{
		dir:   dir,
		repo:  repo,
		typed: loam.NewTypedRepository[FlowMetadata](repo),
	}
}

// Save writes the document as a single markdown file.
func (s *Store) Save(ctx context.Context, doc domain.FlowDocument) error {
	if doc.Name == "" || doc.Name != filepath.Base(doc.Name) {
		return fmt.Errorf("invalid document name %q", doc.Name)
	}

	header, err := yaml.Marshal(FlowMetadata{Name: doc.Name, Description: doc.Description, Kind: KindFlow})
	if err != nil {
		return fmt.Errorf("failed to marshal front matter: %w", err)
	}
	body, err := yaml.Marshal(doc.Records())
	if err != nil {
		return fmt.Errorf("failed to marshal steps: %w", err)
	}

	var sb strings.Builder
	sb.WriteString("---\n")
	sb.Write(header)
	sb.WriteString("---\n")
	sb.WriteString(fenceOpen)
	sb.Write(body)
	sb.WriteString(fenceEnd + "\n")

	if err := s.repo.Save(ctx, core.Document{ID: doc.Name + ext, Content: sb.String()}); err != nil {
		return fmt.Errorf("loam save failed for %s: %w", doc.Name, err)
	}
	return nil
}

// Get reads and decodes a flow document.
func (s *Store) Get(ctx context.Context, name string) (domain.FlowDocument, error) {
	if name == "" || name != filepath.Base(name) {
		return domain.FlowDocument{}, fmt.Errorf("invalid document name %q", name)
	}
	if _, err := os.Stat(filepath.Join(s.dir, name+ext)); os.IsNotExist(err) {
		return domain.FlowDocument{}, domain.ErrDocumentNotFound
	}

	doc, err := s.typed.Get(ctx, name)
	if err != nil {
		return domain.FlowDocument{}, fmt.Errorf("loam get failed for %s: %w", name, err)
	}

	steps, err := decodeSteps(doc.Content)
	if err != nil {
		return domain.FlowDocument{}, fmt.Errorf("flow %s: %w", name, err)
	}

	out := domain.FlowDocument{
		Name:        doc.Data.Name,
		Description: doc.Data.Description,
		Steps:       steps,
	}
	if out.Name == "" {
		out.Name = name
	}
	return out, nil
}

// List returns the names of flow documents in ascending order.
func (s *Store) List(ctx context.Context) ([]string, error) {
	docs, err := s.typed.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("loam list failed: %w", err)
	}

	names := make([]string, 0, len(docs))
	for _, doc := range docs {
		if doc.Data.Kind != KindFlow {
			continue
		}
		name := doc.Data.Name
		if name == "" {
			name = strings.TrimSuffix(filepath.Base(doc.ID), filepath.Ext(doc.ID))
		}
		names = append(names, name)
	}
	slices.Sort(names)
	return names, nil
}

func decodeSteps(content string) ([]domain.Step, error) {
	body := strings.TrimSpace(content)
	body = strings.TrimPrefix(body, strings.TrimSpace(fenceOpen))
	body = strings.TrimSuffix(body, fenceEnd)

	var recs []domain.StepRecord
	if err := yaml.Unmarshal([]byte(body), &recs); err != nil {
		return nil, fmt.Errorf("failed to parse steps: %w", err)
	}
	return domain.StepsFromRecords(recs)
}
