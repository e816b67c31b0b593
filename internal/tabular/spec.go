// Package tabular is the postgres-backed result store. Every pipeline
// unit owns one table; the registry maps output labels to table specs
// so a stage never has to spell SQL identifiers itself.
package tabular

import (
	"fmt"
	"sort"
	"strings"

	"factorlab/internal/config"
	"factorlab/internal/errors"
)

// TableSpec 描述一张结果表: 主键列 + 数值列
type TableSpec struct {
	Name      string
	KeyCols   []string
	ValueCols []string
}

// Row is one record of a result table. Keys aligns with KeyCols and
// Values with ValueCols.
type Row struct {
	Keys   []string
	Values []float64
}

// Standard result-table shapes.
var (
	keyDateInstrument = []string{"trade_date", "instrument"}
	keyDateOnly       = []string{"trade_date"}
)

// Registry maps output labels to their table specs. It is built once
// from config and never mutated afterwards.
type Registry struct {
	specs map[string]TableSpec
}

// tableName flattens a label into a SQL identifier.
func tableName(prefix, label string) string {
	s := strings.ToLower(label)
	s = strings.NewReplacer("-", "_", ".", "_").Replace(s)
	return prefix + s
}

// NewRegistry enumerates every label the configured pipeline can
// produce: test returns, factor exposures, their moving averages,
// IC/GP score tables and signal tables.
func NewRegistry(cfg *config.ResearchConfig) *Registry {
	r := &Registry{specs: make(map[string]TableSpec)}

	for _, lbl := range []string{"test_return_o", "test_return_c"} {
		r.add(lbl, TableSpec{
			Name:      lbl,
			KeyCols:   keyDateInstrument,
			ValueCols: []string{"value"},
		})
	}

	for _, lbl := range config.FactorLabels(&cfg.Factors) {
		r.addFactor(lbl)
		for _, w := range cfg.MovAveWindows {
			r.addFactor(config.MALabel(lbl, w))
		}
	}

	var sids []string
	for _, s := range cfg.Signals.Fixed {
		sids = append(sids, s.SID)
	}
	for _, s := range cfg.Signals.Dynamic {
		sids = append(sids, s.SID)
	}
	for _, sid := range sids {
		r.add("sig_"+sid, TableSpec{
			Name:      tableName("sig_", sid),
			KeyCols:   keyDateInstrument,
			ValueCols: []string{"value"},
		})
		r.add("simu_"+sid, TableSpec{
			Name:      tableName("simu_", sid),
			KeyCols:   keyDateOnly,
			ValueCols: []string{"rawret", "dltwgt", "fee", "netret", "nav"},
		})
	}
	return r
}

func (r *Registry) addFactor(label string) {
	r.add(label, TableSpec{
		Name:      tableName("factor_", label),
		KeyCols:   keyDateInstrument,
		ValueCols: []string{"value"},
	})
	r.add("ic-"+label, TableSpec{
		Name:      tableName("ic_", label),
		KeyCols:   keyDateOnly,
		ValueCols: []string{"pearson", "spearman"},
	})
	r.add("gp-"+label, TableSpec{
		Name:      tableName("gp_", label),
		KeyCols:   keyDateOnly,
		ValueCols: []string{"rl", "rs", "rh"},
	})
}

func (r *Registry) add(label string, spec TableSpec) {
	r.specs[label] = spec
}

// Lookup resolves a label to its table spec.
func (r *Registry) Lookup(label string) (TableSpec, error) {
	spec, ok := r.specs[label]
	if !ok {
		return TableSpec{}, errors.New(errors.ErrCodeUnknownLabel,
			fmt.Sprintf("no table registered for label %q", label))
	}
	return spec, nil
}

// Labels returns every registered label, sorted.
func (r *Registry) Labels() []string {
	out := make([]string, 0, len(r.specs))
	for l := range r.specs {
		out = append(out, l)
	}
	sort.Strings(out)
	return out
}
