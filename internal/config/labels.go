package config

import (
	"fmt"
	"sort"
)

// Label formats are fixed pipeline-wide; every stage addresses its
// input and output tables through them.

// AmtLabel 成交额因子标签
func AmtLabel(w int) string { return fmt.Sprintf("AMT%03d", w) }

// SgmLabel 波动率因子标签
func SgmLabel(w int) string { return fmt.Sprintf("SGM%03d", w) }

// SizeLabel 规模因子标签
func SizeLabel(w int) string { return fmt.Sprintf("SIZE%03d", w) }

// BetaLabel 贝塔因子标签
func BetaLabel(w int) string { return fmt.Sprintf("BETA%03d", w) }

// BetaDiffLabel 贝塔差分因子标签
func BetaDiffLabel(w int) string { return fmt.Sprintf("BETA_D%03d", w) }

// CxLabel 合约截面因子标签, family ∈ {CSP,CSR,CTP,CTR,CVP,CVR}
func CxLabel(family string, w int, topProp float64) string {
	return fmt.Sprintf("%s%03dT%02d", family, w, int(topProp*10))
}

// PosLabels returns the four smart-trader labels (hold long/short,
// delta long/short) for one top-player count.
func PosLabels(qty int) (hl, hs, dl, ds string) {
	hl = fmt.Sprintf("POSHLQ%02d", qty)
	hs = fmt.Sprintf("POSHSQ%02d", qty)
	dl = fmt.Sprintf("POSDLQ%02d", qty)
	ds = fmt.Sprintf("POSDSQ%02d", qty)
	return
}

// SmtLabels returns the smart-money price and return labels for one
// (window, lambda) pair.
func SmtLabels(w int, lbd float64) (p, r string) {
	p = fmt.Sprintf("SMTP%03dT%02d", w, int(lbd*10))
	r = fmt.Sprintf("SMTR%03dT%02d", w, int(lbd*10))
	return
}

// MALabel names the moving average of a factor label.
func MALabel(factor string, w int) string {
	return fmt.Sprintf("%s-M%03d", factor, w)
}

// FactorLabels enumerates every raw exposure label the configured
// grids produce, sorted for deterministic scheduling.
func FactorLabels(f *FactorsConfig) []string {
	var out []string
	for _, w := range f.AmtWindows {
		out = append(out, AmtLabel(w))
	}
	for _, w := range f.SgmWindows {
		out = append(out, SgmLabel(w))
	}
	for _, w := range f.SizeWindows {
		out = append(out, SizeLabel(w))
	}
	for i, w := range f.BetaWindows {
		out = append(out, BetaLabel(w))
		// 差分变体以首窗口为基准, 仅对其余窗口生成
		if i > 0 {
			out = append(out, BetaDiffLabel(w))
		}
	}
	families := make([]string, 0, len(f.CxWindows))
	for fam := range f.CxWindows {
		families = append(families, fam)
	}
	sort.Strings(families)
	for _, fam := range families {
		for _, w := range f.CxWindows[fam] {
			for _, p := range f.TopProps {
				out = append(out, CxLabel(fam, w, p))
			}
		}
	}
	for _, q := range f.TopPlayerQtys {
		hl, hs, dl, ds := PosLabels(q)
		out = append(out, hl, hs, dl, ds)
	}
	for _, w := range f.SmtWindows {
		for _, lbd := range f.SmtLambdas {
			p, r := SmtLabels(w, lbd)
			out = append(out, p, r)
		}
	}
	sort.Strings(out)
	return out
}
