package workflow

import (
	"fmt"
	"strings"

	"photosync/internal/pipeline"
	"photosync/internal/syncerr"
)

// Stage is one step of a workflow.
type Stage string

const (
	StageImport   Stage = pipeline.StageImport
	StageUpload   Stage = pipeline.StageUpload
	StageDownload Stage = pipeline.StageDownload
	StageExport   Stage = pipeline.StageExport
)

// executionOrder is the only order stages ever run in.
var executionOrder = []Stage{StageImport, StageUpload, StageDownload, StageExport}

var stageAliases = map[string][]Stage{
	"import":        {StageImport},
	"upload":        {StageUpload},
	"toblobstore":   {StageUpload},
	"download":      {StageDownload},
	"fromblobstore": {StageDownload},
	"export":        {StageExport},
	"azure":         {StageUpload, StageDownload},
	"blob":          {StageUpload, StageDownload},
	"all":           {StageImport, StageUpload, StageDownload, StageExport},
}

// StageSet is a validated set of stages.
type StageSet map[Stage]struct{}

// NewStageSet builds a set from stages.
func NewStageSet(stages ...Stage) StageSet {
	set := StageSet{}
	for _, s := range stages {
		set[s] = struct{}{}
	}
	return set
}

// ParseStages parses a comma separated step list such as "import,azure,export".
// Names are case-insensitive; unknown names are a validation error.
func ParseStages(raw string) (StageSet, error) {
	set := StageSet{}
	for _, part := range strings.Split(raw, ",") {
		name := strings.ToLower(strings.TrimSpace(part))
		if name == "" {
			continue
		}
		stages, ok := stageAliases[name]
		if !ok {
			return nil, syncerr.Validationf("parseStages", "unknown workflow step %q (valid: import, upload, download, export, azure, all)", part)
		}
		for _, s := range stages {
			set[s] = struct{}{}
		}
	}
	if len(set) == 0 {
		return nil, syncerr.Validationf("parseStages", "workflow needs at least one step")
	}
	return set, nil
}

// Has reports whether s is in the set.
func (set StageSet) Has(s Stage) bool {
	_, ok := set[s]
	return ok
}

// Ordered returns the stages in execution order.
func (set StageSet) Ordered() []Stage {
	out := make([]Stage, 0, len(set))
	for _, s := range executionOrder {
		if set.Has(s) {
			out = append(out, s)
		}
	}
	return out
}

func (set StageSet) String() string {
	ordered := set.Ordered()
	names := make([]string, len(ordered))
	for i, s := range ordered {
		names[i] = string(s)
	}
	return strings.Join(names, ",")
}

// DefaultStages is the full sync when no workflow is named.
func DefaultStages() StageSet {
	return NewStageSet(executionOrder...)
}

func (s Stage) String() string { return string(s) }

func (s Stage) valid() error {
	for _, known := range executionOrder {
		if s == known {
			return nil
		}
	}
	return fmt.Errorf("unknown stage %q", string(s))
}
