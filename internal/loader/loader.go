// Package loader assembles Template aggregates from the template store.
//
// LoadTemplate validates the identifier, then reads the source file and every
// JSON document of a template concurrently. Each document is validated against
// its schema; any failure fails the whole load, so a partial Template is never
// returned. ListTemplates enumerates the store root.
package loader

import (
	"context"
	"slices"

	"golang.org/x/sync/errgroup"

	"github.com/conneroisu/anchorplay/internal/errors"
	"github.com/conneroisu/anchorplay/internal/logging"
	"github.com/conneroisu/anchorplay/internal/schema"
	"github.com/conneroisu/anchorplay/internal/store"
	"github.com/conneroisu/anchorplay/internal/types"
	"github.com/conneroisu/anchorplay/internal/validation"
)

// Store layout, relative to a template directory.
const (
	CodeFile               = "program/lib.rs"
	MetadataFile           = "metadata.json"
	ExplanationsFile       = "line-explanations.json"
	LegacyExplanationsFile = "explanations.json"
	ProgramMapFile         = "program-map.json"
	PrecomputedStateFile   = "precomputed-state.json"
	FunctionSpecsFile      = "function-specs.json"
)

// Options configures a Loader.
type Options struct {
	// ExplanationsFile is the canonical explanations document name
	ExplanationsFile string
	// LegacyExplanationsFile is read when the canonical one is absent.
	// Empty disables the fallback.
	LegacyExplanationsFile string
	// Validator checks documents; nil selects schema.Default
	Validator *schema.Validator
	Logger    logging.Logger
}

// Loader reads templates from a Store. It holds no mutable state and is safe
// for concurrent use.
type Loader struct {
	store          store.Store
	validator      *schema.Validator
	logger         logging.Logger
	explanations   string
	legacyExplains string
}

// New creates a loader over s.
func New(s store.Store, opts Options) (*Loader, error) {
	validator := opts.Validator
	if validator == nil {
		var err error
		validator, err = schema.Default()
		if err != nil {
			return nil, err
		}
	}

	logger := opts.Logger
	if logger == nil {
		logger = logging.NewNop()
	}

	explanations := opts.ExplanationsFile
	if explanations == "" {
		explanations = ExplanationsFile
	}

	return &Loader{
		store:          s,
		validator:      validator,
		logger:         logger.WithComponent("loader"),
		explanations:   explanations,
		legacyExplains: opts.LegacyExplanationsFile,
	}, nil
}

// field describes one Template slot backed by a JSON document.
type field struct {
	name string
	kind errors.Kind
	doc  schema.DocumentKind
}

var (
	metadataField      = field{"metadata", errors.KindInvalidMetadata, schema.KindMetadata}
	explanationsField  = field{"explanations", errors.KindInvalidExplanations, schema.KindExplanations}
	programMapField    = field{"programMap", errors.KindInvalidProgramMap, schema.KindProgramMap}
	precomputedField   = field{"precomputedState", errors.KindInvalidPrecomputedState, schema.KindPrecomputedState}
	functionSpecsField = field{"functionSpecs", errors.KindInvalidFunctionSpecs, schema.KindFunctionSpecs}
)

// slot indexes the per-read error table. The order is the precedence used
// when more than one read fails.
const (
	slotCode = iota
	slotMetadata
	slotExplanations
	slotProgramMap
	slotPrecomputed
	slotFunctionSpecs
	slotCount
)

// LoadTemplate reads, validates and assembles the template id.
//
// An unsafe id fails with KindInvalidIdentifier before any read. A missing
// program/lib.rs fails with KindTemplateNotFound. A missing, unparsable or
// schema-invalid document fails with the matching InvalidX kind, except that
// an absent function-specs.json yields an empty FunctionSpecs.
func (l *Loader) LoadTemplate(ctx context.Context, id string) (*types.Template, error) {
	if err := validation.ValidateTemplateID(id); err != nil {
		return nil, errors.NewInvalidIdentifier(id, err)
	}

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	tmpl := &types.Template{ID: id}
	var errs [slotCount]error
	var g errgroup.Group

	// Each read writes only its own field and error slot. The group has no
	// derived context, so one failure never cancels its siblings.
	g.Go(func() error {
		errs[slotCode] = l.readCode(id, &tmpl.Code)
		return errs[slotCode]
	})
	g.Go(func() error {
		errs[slotMetadata] = l.readDocument(id, MetadataFile, metadataField, &tmpl.Metadata)
		return errs[slotMetadata]
	})
	g.Go(func() error {
		errs[slotExplanations] = l.readExplanations(ctx, id, &tmpl.Explanations)
		return errs[slotExplanations]
	})
	g.Go(func() error {
		errs[slotProgramMap] = l.readDocument(id, ProgramMapFile, programMapField, &tmpl.ProgramMap)
		return errs[slotProgramMap]
	})
	g.Go(func() error {
		errs[slotPrecomputed] = l.readDocument(id, PrecomputedStateFile, precomputedField, &tmpl.PrecomputedState)
		return errs[slotPrecomputed]
	})
	g.Go(func() error {
		errs[slotFunctionSpecs] = l.readFunctionSpecs(id, &tmpl.FunctionSpecs)
		return errs[slotFunctionSpecs]
	})

	if err := g.Wait(); err != nil {
		err = firstError(errs[:])
		l.logger.Warn(ctx, err, "Template load failed",
			"template_id", id,
			"error_kind", string(errors.KindOf(err)),
		)
		return nil, err
	}

	normalize(tmpl)

	l.logger.Debug(ctx, "Template loaded",
		"template_id", id,
		"explanations", len(tmpl.Explanations),
		"scenarios", len(tmpl.PrecomputedState.Scenarios),
		"function_specs", len(tmpl.FunctionSpecs),
	)

	return tmpl, nil
}

// ListTemplates returns the store's template ids in lexical order. It does not
// check that each directory holds a loadable template.
func (l *Loader) ListTemplates(ctx context.Context) ([]string, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	ids, err := store.ListDirs(l.store)
	if err != nil {
		l.logger.Error(ctx, err, "Store root unreadable")
		return nil, errors.NewStoreUnavailable("cannot enumerate template store", err)
	}

	slices.Sort(ids)
	return ids, nil
}

func (l *Loader) readCode(id string, out *string) error {
	data, outcome, err := store.ReadOptional(l.store, store.TemplatePath(id, CodeFile))
	switch outcome {
	case store.Missing:
		return errors.NewTemplateNotFound(id, nil)
	case store.Failed:
		se := errors.NewStoreUnavailable("cannot read template source", err)
		se.TemplateID = id
		return se
	}

	*out = string(data)
	return nil
}

func (l *Loader) readDocument(id, name string, f field, out any) error {
	data, err := l.store.ReadFile(store.TemplatePath(id, name))
	if err != nil {
		return errors.NewInvalidField(f.kind, id, f.name, err)
	}

	return l.decode(id, f, data, out)
}

func (l *Loader) readExplanations(ctx context.Context, id string, out *[]types.LineExplanation) error {
	data, outcome, err := store.ReadOptional(l.store, store.TemplatePath(id, l.explanations))
	if outcome == store.Missing && l.legacyExplains != "" {
		data, outcome, err = store.ReadOptional(l.store, store.TemplatePath(id, l.legacyExplains))
		if outcome == store.Found {
			l.logger.Warn(ctx, nil, "Template uses deprecated explanations file name",
				"template_id", id,
				"file", l.legacyExplains,
				"canonical", l.explanations,
			)
		}
	}

	switch outcome {
	case store.Missing:
		return errors.NewInvalidField(explanationsField.kind, id, explanationsField.name,
			errMissingDocument(l.explanations))
	case store.Failed:
		return errors.NewInvalidField(explanationsField.kind, id, explanationsField.name, err)
	}

	return l.decode(id, explanationsField, data, out)
}

func (l *Loader) readFunctionSpecs(id string, out *[]types.FunctionSpec) error {
	data, outcome, err := store.ReadOptional(l.store, store.TemplatePath(id, FunctionSpecsFile))
	switch outcome {
	case store.Missing:
		*out = []types.FunctionSpec{}
		return nil
	case store.Failed:
		return errors.NewInvalidField(functionSpecsField.kind, id, functionSpecsField.name, err)
	}

	return l.decode(id, functionSpecsField, data, out)
}

func (l *Loader) decode(id string, f field, data []byte, out any) error {
	if err := l.validator.Decode(f.doc, data, out); err != nil {
		return errors.NewInvalidField(f.kind, id, f.name, err)
	}
	return nil
}

// normalize replaces nil collections so the aggregate always serializes with
// empty arrays.
func normalize(t *types.Template) {
	if t.Explanations == nil {
		t.Explanations = []types.LineExplanation{}
	}
	if t.FunctionSpecs == nil {
		t.FunctionSpecs = []types.FunctionSpec{}
	}
	if t.ProgramMap.Instructions == nil {
		t.ProgramMap.Instructions = []types.Instruction{}
	}
	if t.ProgramMap.Accounts == nil {
		t.ProgramMap.Accounts = []types.AccountDef{}
	}
	if t.PrecomputedState.Scenarios == nil {
		t.PrecomputedState.Scenarios = []types.ExecutionScenario{}
	}
}

func firstError(errs []error) error {
	for _, err := range errs {
		if err != nil {
			return err
		}
	}
	return nil
}
