// Package export renders victim reports as XLSX workbooks. Every workbook
// carries a RansomLook.io attribution sheet as the CC BY 4.0 license requires.
package export

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/rotisserie/eris"
	"github.com/tealeg/xlsx/v2"
	"go.uber.org/zap"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"github.com/sells-group/leakwatch/internal/model"
)

// Disclosure timing fills: green within the four business day deadline,
// yellow through two weeks, red beyond.
var (
	compliantFill = xlsx.NewFill("solid", "FFC6EFCE", "FFC6EFCE")
	lateFill      = xlsx.NewFill("solid", "FFFFEB9C", "FFFFEB9C")
	veryLateFill  = xlsx.NewFill("solid", "FFFFC7CE", "FFFFC7CE")
	headerFill    = xlsx.NewFill("solid", "FF1F4E79", "FF1F4E79")
)

var columns = []struct {
	header string
	width  float64
}{
	{"Post Date", 12},
	{"Group", 15},
	{"Victim (Raw)", 35},
	{"Company Name", 30},
	{"Type", 12},
	{"Region", 15},
	{"Country", 15},
	{"SEC Regulated", 12},
	{"CIK", 12},
	{"8-K Filed", 10},
	{"8-K Date", 12},
	{"Disclosure Days", 14},
	{"Subsidiary", 10},
	{"Parent Company", 25},
	{"ADR", 8},
	{"Status", 10},
	{"Notes", 50},
}

var titleCaser = cases.Title(language.English)

// Writer generates XLSX reports under a fixed directory.
type Writer struct {
	dir string
}

// NewWriter creates a Writer that saves workbooks under dir.
func NewWriter(dir string) *Writer {
	return &Writer{dir: dir}
}

// Export writes a victim report. An empty filename derives one from the
// current time; the returned path is the saved workbook.
func (w *Writer) Export(victims []model.Victim, filename, title string) (string, error) {
	if err := os.MkdirAll(w.dir, 0o755); err != nil {
		return "", eris.Wrap(err, "export: create export dir")
	}
	if filename == "" {
		filename = "victims_" + time.Now().Format("20060102_150405")
	}
	path := filepath.Join(w.dir, filename+".xlsx")

	file := xlsx.NewFile()
	if err := addVictimsSheet(file, victims, title); err != nil {
		return "", err
	}
	if err := addSummarySheet(file, victims); err != nil {
		return "", err
	}
	if err := addAttributionSheet(file); err != nil {
		return "", err
	}

	if err := file.Save(path); err != nil {
		return "", eris.Wrapf(err, "export: save %s", path)
	}
	zap.L().Info("victims exported", zap.Int("count", len(victims)), zap.String("path", path))
	return path, nil
}

func addVictimsSheet(file *xlsx.File, victims []model.Victim, title string) error {
	sheet, err := file.AddSheet("Victims")
	if err != nil {
		return eris.Wrap(err, "export: add victims sheet")
	}

	if title == "" {
		title = "Leak Monitor - Victim Report"
	}
	titleRow := sheet.AddRow()
	titleCell := titleRow.AddCell()
	titleCell.Value = title
	titleStyle := xlsx.NewStyle()
	titleStyle.Font.Bold = true
	titleStyle.Font.Size = 16
	titleStyle.ApplyFont = true
	titleCell.SetStyle(titleStyle)

	sheet.AddRow().AddCell().Value = "Generated: " + time.Now().Format("2006-01-02 15:04:05")
	sheet.AddRow().AddCell().Value = fmt.Sprintf("Total Records: %d", len(victims))
	sheet.AddRow().AddCell() // spacing

	headerStyle := xlsx.NewStyle()
	headerStyle.Font.Bold = true
	headerStyle.Font.Color = "FFFFFFFF"
	headerStyle.ApplyFont = true
	headerStyle.Fill = *headerFill
	headerStyle.ApplyFill = true

	header := sheet.AddRow()
	for i, col := range columns {
		cell := header.AddCell()
		cell.Value = col.header
		cell.SetStyle(headerStyle)
		sheet.SetColWidth(i, i, col.width)
	}

	for _, v := range victims {
		row := sheet.AddRow()
		for _, value := range victimRow(v) {
			row.AddCell().Value = value
		}
		if v.DisclosureDays != nil {
			style := xlsx.NewStyle()
			style.Fill = *disclosureFill(*v.DisclosureDays)
			style.ApplyFill = true
			row.Cells[11].SetStyle(style)
		}
	}
	return nil
}

func victimRow(v model.Victim) []string {
	filed := "Unknown"
	if v.Has8KFiling != nil {
		filed = yesNo(*v.Has8KFiling)
	}
	var filingDate string
	if v.SEC8KDate != nil {
		filingDate = v.SEC8KDate.Format("2006-01-02")
	}
	var disclosureDays string
	if v.DisclosureDays != nil {
		disclosureDays = fmt.Sprintf("%d", *v.DisclosureDays)
	}

	return []string{
		v.PostDate.Format("2006-01-02"),
		v.GroupName,
		v.VictimRaw,
		v.CompanyName,
		string(v.CompanyType),
		v.Region,
		v.Country,
		yesNo(v.SECRegulated),
		v.SECCIK,
		filed,
		filingDate,
		disclosureDays,
		yesNo(v.Subsidiary),
		v.ParentCompany,
		yesNo(v.HasADR),
		string(v.ReviewStatus),
		v.Notes,
	}
}

func disclosureFill(days int) *xlsx.Fill {
	switch {
	case days <= 4:
		return compliantFill
	case days <= 14:
		return lateFill
	default:
		return veryLateFill
	}
}

func addSummarySheet(file *xlsx.File, victims []model.Victim) error {
	sheet, err := file.AddSheet("Summary")
	if err != nil {
		return eris.Wrap(err, "export: add summary sheet")
	}

	addLabelRow(sheet, "Summary Statistics", "")
	sheet.AddRow()

	pending := 0
	secRegulated := 0
	byType := map[model.CompanyType]int{}
	byGroup := map[string]int{}
	with8K, without8K, unchecked8K := 0, 0, 0
	compliant, late, veryLate := 0, 0, 0
	var missingCIK []string

	for _, v := range victims {
		if v.ReviewStatus == model.ReviewPending {
			pending++
		}
		if v.SECRegulated {
			secRegulated++
			if v.SECCIK == "" {
				name := v.CompanyName
				if name == "" {
					name = v.VictimRaw
				}
				missingCIK = append(missingCIK, name)
			}
		}
		byType[v.CompanyType]++
		byGroup[v.GroupName]++

		switch {
		case v.Has8KFiling == nil:
			if v.SECRegulated {
				unchecked8K++
			}
		case *v.Has8KFiling:
			with8K++
		default:
			without8K++
		}
		if v.DisclosureDays != nil {
			switch d := *v.DisclosureDays; {
			case d <= 4:
				compliant++
			case d <= 14:
				late++
			default:
				veryLate++
			}
		}
	}

	addCountRow(sheet, "Total Victims:", len(victims))
	addCountRow(sheet, "Pending Review:", pending)
	sheet.AddRow()

	addLabelRow(sheet, "By Company Type", "")
	for _, ctype := range []model.CompanyType{
		model.CompanyPublic, model.CompanyPrivate, model.CompanyGovernment, model.CompanyUnknown,
	} {
		addCountRow(sheet, "  "+titleCaser.String(string(ctype))+":", byType[ctype])
	}
	sheet.AddRow()

	addCountRow(sheet, "SEC Regulated:", secRegulated)
	sheet.AddRow()

	addLabelRow(sheet, "SEC 8-K Filings", "")
	addCountRow(sheet, "  8-K Filed:", with8K)
	addCountRow(sheet, "  No 8-K Found:", without8K)
	addCountRow(sheet, "  Not Checked:", unchecked8K)
	if with8K > 0 {
		addCountRow(sheet, "  <=4 days (compliant):", compliant)
		addCountRow(sheet, "  5-14 days (late):", late)
		addCountRow(sheet, "  >14 days (very late):", veryLate)
	}
	sheet.AddRow()

	if len(missingCIK) > 0 {
		addLabelRow(sheet, "Missing CIK Numbers", "")
		shown := missingCIK
		if len(shown) > 10 {
			shown = shown[:10]
		}
		for _, name := range shown {
			addLabelRow(sheet, "  "+name, "")
		}
		if len(missingCIK) > 10 {
			addLabelRow(sheet, fmt.Sprintf("  ... and %d more", len(missingCIK)-10), "")
		}
		sheet.AddRow()
	}

	addLabelRow(sheet, "By Ransomware Group", "")
	type groupCount struct {
		name  string
		count int
	}
	groups := make([]groupCount, 0, len(byGroup))
	for name, count := range byGroup {
		groups = append(groups, groupCount{name, count})
	}
	sort.Slice(groups, func(i, j int) bool {
		if groups[i].count != groups[j].count {
			return groups[i].count > groups[j].count
		}
		return groups[i].name < groups[j].name
	})
	if len(groups) > 10 {
		groups = groups[:10]
	}
	for _, g := range groups {
		addCountRow(sheet, "  "+g.name+":", g.count)
	}

	sheet.SetColWidth(0, 0, 30)
	return nil
}

func addAttributionSheet(file *xlsx.File) error {
	sheet, err := file.AddSheet("Attribution")
	if err != nil {
		return eris.Wrap(err, "export: add attribution sheet")
	}

	addLabelRow(sheet, "Data Attribution", "")
	sheet.AddRow()
	addLabelRow(sheet, "Data Source:", "RansomLook.io")
	addLabelRow(sheet, "Website:", "https://www.ransomlook.io")
	addLabelRow(sheet, "License:", "Creative Commons Attribution 4.0 (CC BY 4.0)")
	addLabelRow(sheet, "License URL:", "https://creativecommons.org/licenses/by/4.0/")
	sheet.AddRow()
	addLabelRow(sheet,
		"This data is sourced from RansomLook.io, which tracks ransomware group leak sites. "+
			"The data is provided under the CC BY 4.0 license, which requires attribution when "+
			"sharing or adapting the data.", "")
	sheet.AddRow()
	addLabelRow(sheet, "Report generated: "+time.Now().Format("2006-01-02 15:04:05"), "")

	sheet.SetColWidth(0, 0, 15)
	sheet.SetColWidth(1, 1, 50)
	return nil
}

func addLabelRow(sheet *xlsx.Sheet, label, value string) {
	row := sheet.AddRow()
	row.AddCell().Value = label
	if value != "" {
		row.AddCell().Value = value
	}
}

func addCountRow(sheet *xlsx.Sheet, label string, count int) {
	row := sheet.AddRow()
	row.AddCell().Value = label
	row.AddCell().SetInt(count)
}

func yesNo(b bool) string {
	if b {
		return "Yes"
	}
	return "No"
}
